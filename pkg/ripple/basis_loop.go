package ripple

import (
	"fmt"
)

// loopName is the binding that holds a running loop's state.
const loopName = "·loop"

// loopState is the progress of one hand-compiled loop. It lives in the
// basis evaluation's scope so that the loop's steps stay shared and
// stateless.
type loopState struct {
	receiver Value
	callback Value
	arity    int

	// inputs are the full callback inputs for a 1-based index; the
	// callback receives as many as it takes.
	inputs func(index int) []Value
	index  int
	length int
	done   bool

	accumulator Value
	keys        []Value
	out         []Value
	result      Value
}

func (s *loopState) Type() Type     { return UnknownType{Reason: "loop state"} }
func (s *loopState) String() string { return fmt.Sprintf("loop %d/%d", s.index, s.length) }
func (s *loopState) Equal(other Value) bool {
	return s == other
}

// input returns the current item's nth callback input.
func (s *loopState) input(n int) Value {
	return s.inputs(s.index)[n]
}

// container is a receiver a loop can visit item by item.
type container interface {
	Length() int
}

// loop describes a higher-order basis function as a callback loop.
type loop struct {
	// callback is the input holding the function to call.
	callback string
	// begin fills in the items to iterate and any initial state.
	begin func(ev *Evaluator, st *loopState) Value
	// prefix returns inputs passed before each item's own, like combine's
	// accumulator.
	prefix func(st *loopState) []Value
	// collect consumes the callback's result for the current item. It may
	// set st.done to stop early.
	collect func(ev *Evaluator, st *loopState, result Value) Value
	// end produces the function's result.
	end func(st *loopState) Value
}

// compileLoop hand-compiles a loop into
//
//	[Start, Initialize, Next, Check, Finish]
//
// Next calls the callback for the current item, or jumps past Check once
// the items are exhausted. Check consumes the callback's result and jumps
// back to Next.
func compileLoop(name string, l loop) []*Step {
	return steps(
		basisStep(StartStep, name, func(ev *Evaluator) Value {
			callback := ev.MustResolve(l.callback)
			n, ok := arity(callback)
			if !ok {
				return ev.TypeMismatch(ev.current().Definition, FunctionType{}, callback)
			}
			receiver := ev.MustResolve(receiverName)
			c, ok := receiver.(container)
			if !ok {
				panic(internalf("%s called on %T", name, receiver))
			}
			ev.Bind(loopName, &loopState{
				receiver: receiver,
				callback: callback,
				arity:    n,
				index:    1,
				length:   c.Length(),
			})
			return nil
		}),
		basisStep(InitializeStep, name, func(ev *Evaluator) Value {
			return l.begin(ev, currentLoop(ev))
		}),
		basisStep(NextStep, name, func(ev *Evaluator) Value {
			st := currentLoop(ev)
			if st.done || st.index > st.length {
				ev.Jump(1)
				return nil
			}
			var args []Value
			if l.prefix != nil {
				args = append(args, l.prefix(st)...)
			}
			args = append(args, st.inputs(st.index)...)
			if st.arity > len(args) {
				return ev.Exception(InputMismatch, ev.current().Definition,
					"%s takes at most %d inputs, but %s takes %d", name, len(args), st.callback, st.arity)
			}
			return ev.Call(ev.current().Definition, st.callback, args[:st.arity])
		}),
		basisStep(CheckStep, name, func(ev *Evaluator) Value {
			st := currentLoop(ev)
			result := ev.PopValue()
			if exc, ok := result.(*Exception); ok {
				return exc
			}
			if exc := l.collect(ev, st, result); exc != nil {
				return exc
			}
			st.index++
			ev.Jump(-2)
			return nil
		}),
		basisStep(FinishStep, name, func(ev *Evaluator) Value {
			return l.end(currentLoop(ev))
		}),
	)
}

func currentLoop(ev *Evaluator) *loopState {
	st, ok := ev.MustResolve(loopName).(*loopState)
	if !ok {
		panic(internalf("%s is not a loop", loopName))
	}
	return st
}

// predicate reads a callback result that must be a boolean.
func predicate(ev *Evaluator, result Value) (bool, Value) {
	b, ok := result.(Bool)
	if !ok {
		return false, ev.TypeMismatch(ev.current().Definition, BooleanType{}, result)
	}
	return b.Bool, nil
}

// indexed pairs each list item with its index.
func indexed(l *List) func(int) []Value {
	return func(index int) []Value {
		item, ok := l.Get(index)
		if !ok {
			panic(internalf("no item at %d in a list of %d", index, l.Length()))
		}
		return []Value{item, Unitless(int64(index))}
	}
}

// single passes each item alone.
func single(items []Value) func(int) []Value {
	return func(index int) []Value {
		return []Value{items[index-1]}
	}
}
