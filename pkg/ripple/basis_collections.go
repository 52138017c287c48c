package ripple

import (
	"strings"
	"unicode/utf8"
)

func registerSetBasis(b *Basis) {
	setItems := func(st *loopState) []Value {
		return st.receiver.(*Set).Items()
	}

	b.Define(SetKind, "translate").
		Doc("a set of the translator's result for each value").
		Params("translator", anything).
		Returns(func(ctx *Context, _ Type, inputs []Expression) Type {
			return SetType{Key: callbackOutput(ctx, inputs, 0)}
		}).
		Compiled(compileLoop("translate", loop{
			callback: "translator",
			begin: func(_ *Evaluator, st *loopState) Value {
				st.inputs = single(setItems(st))
				return nil
			},
			collect: func(_ *Evaluator, st *loopState, result Value) Value {
				st.out = append(st.out, result)
				return nil
			},
			end: func(st *loopState) Value {
				return NewSet(st.out...)
			},
		}))

	b.Define(SetKind, "filter").
		Doc("the values that satisfy the check").
		Params("check", anything).
		Returns(sameAsReceiver).
		Compiled(compileLoop("filter", loop{
			callback: "check",
			begin: func(_ *Evaluator, st *loopState) Value {
				st.inputs = single(setItems(st))
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
				return NewSet(st.out...)
			},
		}))

	b.Define(SetKind, "size").
		Doc("the number of values").
		Returns(returns(NumberType{})).
		Impl(func(_ *Evaluator, _ Node, recv Value, _ []Value) Value {
			return Unitless(int64(recv.(*Set).Size()))
		})

	b.Define(SetKind, "has").
		Doc("whether the set contains value").
		Params("value", anything).
		Returns(returns(BooleanType{})).
		Impl(func(_ *Evaluator, _ Node, recv Value, args []Value) Value {
			return Bool{Bool: recv.(*Set).Has(args[0])}
		})

	b.Define(SetKind, "add").
		Doc("the set with value included").
		Params("value", anything).
		Returns(func(ctx *Context, receiver Type, inputs []Expression) Type {
			return SetType{Key: Union(ctx, receiverItem(receiver), Generalize(inputType(ctx, inputs, 0)))}
		}).
		Impl(func(_ *Evaluator, _ Node, recv Value, args []Value) Value {
			return recv.(*Set).Add(args[0])
		})

	b.Define(SetKind, "remove").
		Doc("the set without value").
		Params("value", anything).
		Returns(sameAsReceiver).
		Impl(func(_ *Evaluator, _ Node, recv Value, args []Value) Value {
			return recv.(*Set).Remove(args[0])
		})
}

func registerMapBasis(b *Basis) {
	entries := func(st *loopState) func(int) []Value {
		m := st.receiver.(*Map)
		keys, values := m.Keys(), m.Values()
		return func(index int) []Value {
			return []Value{keys[index-1], values[index-1]}
		}
	}
	mapValue := func(receiver Type) Type {
		if m, ok := receiver.(MapType); ok {
			return m.Value
		}
		return UnknownType{Reason: "not a map"}
	}

	b.Define(MapKind, "translate").
		Doc("the map with each value replaced by the translator's result").
		Params("translator", anything).
		Returns(func(ctx *Context, receiver Type, inputs []Expression) Type {
			return MapType{Key: receiverItem(receiver), Value: callbackOutput(ctx, inputs, 0)}
		}).
		Compiled(compileLoop("translate", loop{
			callback: "translator",
			begin: func(_ *Evaluator, st *loopState) Value {
				st.inputs = entries(st)
				return nil
			},
			collect: func(_ *Evaluator, st *loopState, result Value) Value {
				st.keys = append(st.keys, st.input(0))
				st.out = append(st.out, result)
				return nil
			},
			end: func(st *loopState) Value {
				return NewMap(st.keys, st.out)
			},
		}))

	b.Define(MapKind, "filter").
		Doc("the entries that satisfy the check").
		Params("check", anything).
		Returns(sameAsReceiver).
		Compiled(compileLoop("filter", loop{
			callback: "check",
			begin: func(_ *Evaluator, st *loopState) Value {
				st.inputs = entries(st)
				return nil
			},
			collect: func(ev *Evaluator, st *loopState, result Value) Value {
				keep, exc := predicate(ev, result)
				if exc != nil {
					return exc
				}
				if keep {
					st.keys = append(st.keys, st.input(0))
					st.out = append(st.out, st.input(1))
				}
				return nil
			},
			end: func(st *loopState) Value {
				return NewMap(st.keys, st.out)
			},
		}))

	b.Define(MapKind, "size").
		Doc("the number of entries").
		Returns(returns(NumberType{})).
		Impl(func(_ *Evaluator, _ Node, recv Value, _ []Value) Value {
			return Unitless(int64(recv.(*Map).Size()))
		})

	b.Define(MapKind, "has").
		Doc("whether the map has an entry for key").
		Params("key", anything).
		Returns(returns(BooleanType{})).
		Impl(func(_ *Evaluator, _ Node, recv Value, args []Value) Value {
			return Bool{Bool: recv.(*Map).Has(args[0])}
		})

	b.Define(MapKind, "get").
		Doc("the value bound to key, or ø").
		Params("key", anything).
		Returns(func(ctx *Context, receiver Type, _ []Expression) Type {
			return Union(ctx, mapValue(receiver), NoneType{})
		}).
		Impl(func(_ *Evaluator, _ Node, recv Value, args []Value) Value {
			if v, ok := recv.(*Map).Get(args[0]); ok {
				return v
			}
			return None{}
		})

	b.Define(MapKind, "set").
		Doc("the map with key bound to value").
		Params("key", anything, "value", anything).
		Returns(func(ctx *Context, receiver Type, inputs []Expression) Type {
			return MapType{
				Key:   Union(ctx, receiverItem(receiver), Generalize(inputType(ctx, inputs, 0))),
				Value: Union(ctx, mapValue(receiver), Generalize(inputType(ctx, inputs, 1))),
			}
		}).
		Impl(func(_ *Evaluator, _ Node, recv Value, args []Value) Value {
			return recv.(*Map).Set(args[0], args[1])
		})

	b.Define(MapKind, "unset").
		Doc("the map without an entry for key").
		Params("key", anything).
		Returns(sameAsReceiver).
		Impl(func(_ *Evaluator, _ Node, recv Value, args []Value) Value {
			return recv.(*Map).Unset(args[0])
		})

	b.Define(MapKind, "keys").
		Doc("the keys, in insertion order").
		Returns(func(_ *Context, receiver Type, _ []Expression) Type {
			return ListType{Item: receiverItem(receiver)}
		}).
		Impl(func(_ *Evaluator, _ Node, recv Value, _ []Value) Value {
			return NewList(recv.(*Map).Keys()...)
		})

	b.Define(MapKind, "values").
		Doc("the values, in insertion order").
		Returns(func(_ *Context, receiver Type, _ []Expression) Type {
			return ListType{Item: mapValue(receiver)}
		}).
		Impl(func(_ *Evaluator, _ Node, recv Value, _ []Value) Value {
			return NewList(recv.(*Map).Values()...)
		})
}

func registerTextBasis(b *Basis) {
	b.Define(TextKind, "length").
		Doc("the number of characters").
		Returns(returns(NumberType{})).
		Impl(func(_ *Evaluator, _ Node, recv Value, _ []Value) Value {
			return Unitless(int64(utf8.RuneCountInString(recv.(Text).Text)))
		})

	b.Define(TextKind, "segment").
		Doc("splits the text on each occurrence of separator").
		Params("separator", TextType{}).
		Returns(returns(ListType{Item: TextType{}})).
		Impl(func(_ *Evaluator, _ Node, recv Value, args []Value) Value {
			var parts []Value
			for _, part := range strings.Split(recv.(Text).Text, args[0].(Text).Text) {
				parts = append(parts, Text{Text: part})
			}
			return NewList(parts...)
		})

	b.Define(TextKind, "has").
		Doc("whether the text contains other").
		Params("other", TextType{}).
		Returns(returns(BooleanType{})).
		Impl(func(_ *Evaluator, _ Node, recv Value, args []Value) Value {
			return Bool{Bool: strings.Contains(recv.(Text).Text, args[0].(Text).Text)}
		})
}

func registerNumberBasis(b *Basis) {
	number := func(fn func(Number) Number) NativeFunc {
		return func(_ *Evaluator, _ Node, recv Value, _ []Value) Value {
			return fn(recv.(Number))
		}
	}
	unitOf := func(_ *Context, receiver Type, _ []Expression) Type {
		if n, ok := receiver.(NumberType); ok {
			return NumberType{Unit: n.Unit}
		}
		return NumberType{}
	}

	b.Define(NumberKind, "roundDown").
		Doc("the largest whole number not greater than the number").
		Returns(unitOf).
		Impl(number(func(n Number) Number {
			return Number{Num: n.Num.Floor(), Unit: n.Unit}
		}))

	b.Define(NumberKind, "roundUp").
		Doc("the smallest whole number not less than the number").
		Returns(unitOf).
		Impl(number(func(n Number) Number {
			return Number{Num: n.Num.Ceil(), Unit: n.Unit}
		}))

	b.Define(NumberKind, "absolute").
		Doc("the number without its sign").
		Returns(unitOf).
		Impl(number(func(n Number) Number {
			return Number{Num: n.Num.Abs(), Unit: n.Unit}
		}))

	b.Define(NumberKind, "text").
		Doc("the number as text, with its unit").
		Returns(returns(TextType{})).
		Impl(func(_ *Evaluator, _ Node, recv Value, _ []Value) Value {
			return Text{Text: recv.(Number).String()}
		})
}
