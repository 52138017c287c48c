package ripple

import (
	"slices"
)

func receiverList(st *loopState) *List {
	l, ok := st.receiver.(*List)
	if !ok {
		panic(internalf("list method called on %T", st.receiver))
	}
	return l
}

func listItems(st *loopState) []Value {
	return receiverList(st).Items()
}

func registerListBasis(b *Basis) {
	b.Define(ListKind, "combine").
		Doc("folds the list into one value, starting from initial").
		Params("initial", anything, "combiner", anything).
		Returns(func(ctx *Context, _ Type, inputs []Expression) Type {
			return Union(ctx, Generalize(inputType(ctx, inputs, 0)), callbackOutput(ctx, inputs, 1))
		}).
		Compiled(compileLoop("combine", loop{
			callback: "combiner",
			begin: func(ev *Evaluator, st *loopState) Value {
				st.inputs = indexed(receiverList(st))
				st.accumulator = ev.MustResolve("initial")
				return nil
			},
			prefix: func(st *loopState) []Value {
				return []Value{st.accumulator}
			},
			collect: func(_ *Evaluator, st *loopState, result Value) Value {
				st.accumulator = result
				return nil
			},
			end: func(st *loopState) Value {
				return st.accumulator
			},
		}))

	b.Define(ListKind, "until").
		Doc("the items before the first one that satisfies the check").
		Params("check", anything).
		Returns(sameAsReceiver).
		Compiled(compileLoop("until", loop{
			callback: "check",
			begin: func(_ *Evaluator, st *loopState) Value {
				st.inputs = indexed(receiverList(st))
				return nil
			},
			collect: func(ev *Evaluator, st *loopState, result Value) Value {
				stop, exc := predicate(ev, result)
				if exc != nil {
					return exc
				}
				if stop {
					st.done = true
					return nil
				}
				st.out = append(st.out, st.input(0))
				return nil
			},
			end: func(st *loopState) Value {
				return NewList(st.out...)
			},
		}))

	b.Define(ListKind, "translate").
		Doc("a list of the translator's result for each item").
		Params("translator", anything).
		Returns(func(ctx *Context, _ Type, inputs []Expression) Type {
			return ListType{Item: callbackOutput(ctx, inputs, 0)}
		}).
		Compiled(compileLoop("translate", loop{
			callback: "translator",
			begin: func(_ *Evaluator, st *loopState) Value {
				st.inputs = indexed(receiverList(st))
				return nil
			},
			collect: func(_ *Evaluator, st *loopState, result Value) Value {
				st.out = append(st.out, result)
				return nil
			},
			end: func(st *loopState) Value {
				return NewList(st.out...)
			},
		}))

	b.Define(ListKind, "filter").
		Doc("the items that satisfy the check").
		Params("check", anything).
		Returns(sameAsReceiver).
		Compiled(compileLoop("filter", loop{
			callback: "check",
			begin: func(_ *Evaluator, st *loopState) Value {
				st.inputs = indexed(receiverList(st))
				return nil
			},
			collect: func(ev *Evaluator, st *loopState, result Value) Value {
				keep, exc := predicate(ev, result)
				if exc != nil {
					return exc
				}
				if keep {
					st.out = append(st.out, st.input(0))
				}
				return nil
			},
			end: func(st *loopState) Value {
				return NewList(st.out...)
			},
		}))

	b.Define(ListKind, "find").
		Doc("the first item that satisfies the check, or ø").
		Params("check", anything).
		Returns(func(ctx *Context, receiver Type, _ []Expression) Type {
			return Union(ctx, receiverItem(receiver), NoneType{})
		}).
		Compiled(compileLoop("find", loop{
			callback: "check",
			begin: func(_ *Evaluator, st *loopState) Value {
				st.inputs = single(listItems(st))
				st.result = None{}
				return nil
			},
			collect: func(ev *Evaluator, st *loopState, result Value) Value {
				found, exc := predicate(ev, result)
				if exc != nil {
					return exc
				}
				if found {
					st.result = st.input(0)
					st.done = true
				}
				return nil
			},
			end: func(st *loopState) Value {
				return st.result
			},
		}))

	b.Define(ListKind, "all").
		Doc("whether every item satisfies the check").
		Params("check", anything).
		Returns(returns(BooleanType{})).
		Compiled(compileLoop("all", quantifier(true)))

	b.Define(ListKind, "any").
		Doc("whether some item satisfies the check").
		Params("check", anything).
		Returns(returns(BooleanType{})).
		Compiled(compileLoop("any", quantifier(false)))

	b.Define(ListKind, "length").
		Doc("the number of items").
		Returns(returns(NumberType{})).
		Impl(func(_ *Evaluator, _ Node, recv Value, _ []Value) Value {
			return Unitless(int64(recv.(*List).Length()))
		})

	b.Define(ListKind, "first").
		Doc("the first item, or ø if the list is empty").
		Returns(func(ctx *Context, receiver Type, _ []Expression) Type {
			return Union(ctx, receiverItem(receiver), NoneType{})
		}).
		Impl(func(_ *Evaluator, _ Node, recv Value, _ []Value) Value {
			if v, ok := recv.(*List).Get(1); ok {
				return v
			}
			return None{}
		})

	b.Define(ListKind, "last").
		Doc("the last item, or ø if the list is empty").
		Returns(func(ctx *Context, receiver Type, _ []Expression) Type {
			return Union(ctx, receiverItem(receiver), NoneType{})
		}).
		Impl(func(_ *Evaluator, _ Node, recv Value, _ []Value) Value {
			l := recv.(*List)
			if v, ok := l.Get(l.Length()); ok {
				return v
			}
			return None{}
		})

	b.Define(ListKind, "reverse").
		Doc("the items in reverse order").
		Returns(sameAsReceiver).
		Impl(func(_ *Evaluator, _ Node, recv Value, _ []Value) Value {
			items := recv.(*List).Items()
			slices.Reverse(items)
			return NewList(items...)
		})

	b.Define(ListKind, "append").
		Doc("the list with value added to the end").
		Params("value", anything).
		Returns(func(ctx *Context, receiver Type, inputs []Expression) Type {
			return ListType{Item: Union(ctx, receiverItem(receiver), Generalize(inputType(ctx, inputs, 0)))}
		}).
		Impl(func(_ *Evaluator, _ Node, recv Value, args []Value) Value {
			return recv.(*List).Append(args[0])
		})

	b.Define(ListKind, "has").
		Doc("whether the list contains value").
		Params("value", anything).
		Returns(returns(BooleanType{})).
		Impl(func(_ *Evaluator, _ Node, recv Value, args []Value) Value {
			return Bool{Bool: recv.(*List).Has(args[0])}
		})

	b.Define(ListKind, "sans").
		Doc("the list without any items equal to value").
		Params("value", anything).
		Returns(sameAsReceiver).
		Impl(func(_ *Evaluator, _ Node, recv Value, args []Value) Value {
			items := slices.DeleteFunc(recv.(*List).Items(), args[0].Equal)
			return NewList(items...)
		})
}

// quantifier checks every item until one differs from want.
func quantifier(want bool) loop {
	return loop{
		callback: "check",
		begin: func(_ *Evaluator, st *loopState) Value {
			st.inputs = single(listItems(st))
			st.result = Bool{Bool: want}
			return nil
		},
		collect: func(ev *Evaluator, st *loopState, result Value) Value {
			ok, exc := predicate(ev, result)
			if exc != nil {
				return exc
			}
			if ok != want {
				st.result = Bool{Bool: !want}
				st.done = true
			}
			return nil
		},
		end: func(st *loopState) Value {
			return st.result
		},
	}
}
