package ripple

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"strings"

	"github.com/kr/pretty"
)

// Limits bound a single evaluation pass.
type Limits struct {
	// Steps is the maximum number of steps executed per pass; zero means
	// unlimited.
	Steps int
	// Depth is the maximum number of nested evaluations; zero means
	// unlimited.
	Depth int
}

// TraceEntry records one executed step.
type TraceEntry struct {
	Index int
	Step  *Step
	// Depth is the number of evaluations on the stack when the step ran.
	Depth int
	// Result is what the step returned, or nil.
	Result Value
}

func (t TraceEntry) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%4d %s%s", t.Index, strings.Repeat("  ", t.Depth-1), t.Step)
	if t.Result != nil {
		fmt.Fprintf(&b, " → %s", t.Result)
	}
	return b.String()
}

// Frame is a snapshot of one evaluation on the stack.
type Frame struct {
	Name     string
	Node     Node
	IP       int
	Step     *Step
	Bindings map[string]Value
}

// Evaluator executes compiled steps with an explicit operand stack and an
// explicit stack of evaluations. A pass never recurses on the Go stack, so
// it can be paused, single-stepped and replayed.
type Evaluator struct {
	program *Program
	ctx     *Context
	root    Expression
	trigger Stream
	limits  Limits
	tracing bool

	values      []Value
	evaluations []*Evaluation
	count       int
	trace       []TraceEntry
	result      Value
	done        bool

	// priors collects Reaction values produced during the pass. They are
	// committed to the program only when the pass completes.
	priors map[Node]Value
}

// NewEvaluator prepares a pass over root. trigger is the stream whose
// reaction caused the pass, or nil for the initial pass.
func NewEvaluator(p *Program, root Expression, trigger Stream) *Evaluator {
	ev := &Evaluator{
		program: p,
		ctx:     p.Context,
		root:    root,
		trigger: trigger,
		limits:  p.Limits(),
		tracing: p.Config.Evaluation.Trace,
	}
	ev.Start()
	return ev
}

// Start resets the evaluator to the beginning of the pass.
func (ev *Evaluator) Start() {
	ev.values = nil
	ev.evaluations = nil
	ev.count = 0
	ev.trace = nil
	ev.result = nil
	ev.done = false
	ev.priors = map[Node]Value{}
	ev.StartEvaluation(NewEvaluation(ev.root, "program", ev.ctx.Compile(ev.root), nil))
	ev.settle()
}

func (ev *Evaluator) Context() *Context { return ev.ctx }
func (ev *Evaluator) Program() *Program { return ev.program }

// Trigger returns the stream whose reaction caused this pass.
func (ev *Evaluator) Trigger() Stream { return ev.trigger }

// Done reports whether the pass has produced its result.
func (ev *Evaluator) Done() bool { return ev.done }

// Result returns the pass's value once Done.
func (ev *Evaluator) Result() Value { return ev.result }

// Count returns the number of steps executed so far.
func (ev *Evaluator) Count() int { return ev.count }

// Trace returns the executed steps, when tracing is enabled.
func (ev *Evaluator) Trace() []TraceEntry { return ev.trace }

// Run steps until the pass completes. Internal errors abort the pass and
// are returned.
func (ev *Evaluator) Run(ctx context.Context) (Value, error) {
	err := ev.Guard(func() error {
		for !ev.Step() {
			if ev.count%1024 == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ev.result, nil
}

// Guard runs fn, converting an internal error panic into a returned error.
func (ev *Evaluator) Guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			ie, ok := r.(*InternalError)
			if !ok {
				panic(r)
			}
			slog.Error("evaluation aborted", "error", ie, "stack", pretty.Sprint(ev.Stack()))
			ev.done = true
			err = ie
		}
	}()
	return fn()
}

// Step executes the next step and reports whether the pass is done.
func (ev *Evaluator) Step() bool {
	if ev.done {
		return true
	}
	if ev.limits.Steps > 0 && ev.count >= ev.limits.Steps {
		ev.abort(ev.Exception(StepLimit, ev.root, "evaluation exceeded %d steps", ev.limits.Steps))
		return true
	}

	cur := ev.current()
	step := cur.steps[cur.ip]
	depth := len(ev.evaluations)
	result := step.Evaluate(ev)
	cur.ip++
	ev.count++
	if ev.tracing {
		ev.trace = append(ev.trace, TraceEntry{Index: ev.count - 1, Step: step, Depth: depth, Result: result})
	}

	if result != nil {
		if exc, ok := result.(*Exception); ok {
			ev.end(cur, exc)
		} else {
			ev.PushValue(result)
		}
	}
	ev.settle()
	return ev.done
}

// StepTo advances to the given step count. Going backwards replays the pass
// from the start, which is deterministic.
func (ev *Evaluator) StepTo(index int) {
	if index < ev.count {
		ev.Start()
	}
	for ev.count < index && !ev.Step() {
	}
}

// StepBack undoes one step by replaying.
func (ev *Evaluator) StepBack() {
	if ev.count > 0 {
		ev.StepTo(ev.count - 1)
	}
}

// Finish runs the rest of the pass.
func (ev *Evaluator) Finish() Value {
	for !ev.Step() {
	}
	return ev.result
}

// Stack snapshots the evaluation stack, outermost first.
func (ev *Evaluator) Stack() []Frame {
	frames := make([]Frame, 0, len(ev.evaluations))
	for _, e := range ev.evaluations {
		bindings := map[string]Value{}
		for sc := e.scope; sc != nil && sc.owner == e; sc = sc.parent {
			for name, v := range sc.names {
				if _, shadowed := bindings[name]; !shadowed {
					bindings[name] = v
				}
			}
		}
		frames = append(frames, Frame{
			Name:     e.Name,
			Node:     e.Definition,
			IP:       e.ip,
			Step:     e.Current(),
			Bindings: bindings,
		})
	}
	return frames
}

// Values returns a copy of the operand stack.
func (ev *Evaluator) Values() []Value {
	return append([]Value(nil), ev.values...)
}

// StartEvaluation pushes a new evaluation. Its result will be pushed onto
// the operand stack when it finishes. Exceeding the depth limit pushes a
// StackLimit exception instead.
func (ev *Evaluator) StartEvaluation(e *Evaluation) {
	if ev.limits.Depth > 0 && len(ev.evaluations) >= ev.limits.Depth {
		ev.PushValue(ev.Exception(StackLimit, e.Definition, "evaluation exceeded depth %d", ev.limits.Depth))
		return
	}
	e.base = len(ev.values)
	ev.evaluations = append(ev.evaluations, e)
}

// CurrentEvaluation returns the innermost evaluation.
func (ev *Evaluator) CurrentEvaluation() *Evaluation {
	if len(ev.evaluations) == 0 {
		return nil
	}
	return ev.current()
}

func (ev *Evaluator) current() *Evaluation {
	if len(ev.evaluations) == 0 {
		panic(internalf("no evaluation in progress"))
	}
	return ev.evaluations[len(ev.evaluations)-1]
}

// Jump moves the current evaluation's instruction pointer by n. Since the
// pointer also advances after every step, Jump(n) skips the next n steps.
func (ev *Evaluator) Jump(n int) {
	cur := ev.current()
	cur.ip += n
	if cur.ip < -1 || cur.ip >= len(cur.steps) {
		panic(internalf("jump %+d out of range in %s (%d steps)", n, cur.Name, len(cur.steps)))
	}
}

// Bind sets a name in the current scope.
func (ev *Evaluator) Bind(name string, v Value) {
	ev.current().scope.Bind(name, v)
}

// Resolve looks up a name through the current scope chain.
func (ev *Evaluator) Resolve(name string) (Value, bool) {
	return ev.current().scope.Resolve(name)
}

// MustResolve resolves a name the compiler guaranteed to be bound.
func (ev *Evaluator) MustResolve(name string) Value {
	v, ok := ev.Resolve(name)
	if !ok {
		panic(internalf("%q is not bound in %s", name, ev.current().Name))
	}
	return v
}

func (ev *Evaluator) PushScope() { ev.current().pushScope() }
func (ev *Evaluator) PopScope()  { ev.current().popScope() }

func (ev *Evaluator) PushValue(v Value) {
	ev.values = append(ev.values, v)
}

// PopValue removes the top operand, which must belong to the current
// evaluation.
func (ev *Evaluator) PopValue() Value {
	if len(ev.values) <= ev.current().base {
		panic(internalf("operand stack underflow in %s", ev.current().Name))
	}
	v := ev.values[len(ev.values)-1]
	ev.values = ev.values[:len(ev.values)-1]
	return v
}

// PopValues removes the top n operands, returning them in push order.
func (ev *Evaluator) PopValues(n int) []Value {
	out := make([]Value, n)
	for i := n - 1; i >= 0; i-- {
		out[i] = ev.PopValue()
	}
	return out
}

func (ev *Evaluator) PeekValue() Value {
	if len(ev.values) <= ev.current().base {
		panic(internalf("operand stack empty in %s", ev.current().Name))
	}
	return ev.values[len(ev.values)-1]
}

// Prior returns the value a Reaction produced in the previous pass.
func (ev *Evaluator) Prior(node Node) (Value, bool) {
	return ev.program.prior(node)
}

// SetPrior records a Reaction's value for the next pass.
func (ev *Evaluator) SetPrior(node Node, v Value) {
	ev.priors[node] = v
}

// Priors returns the Reaction values recorded during the pass.
func (ev *Evaluator) Priors() map[Node]Value {
	return maps.Clone(ev.priors)
}

// end finishes e and every evaluation above it with result v.
func (ev *Evaluator) end(e *Evaluation, v Value) {
	idx := len(ev.evaluations) - 1
	for idx >= 0 && ev.evaluations[idx] != e {
		idx--
	}
	if idx < 0 {
		panic(internalf("ending an evaluation that is not running: %s", e.Name))
	}
	ev.values = ev.values[:e.base]
	ev.evaluations = ev.evaluations[:idx]
	if len(ev.evaluations) == 0 {
		ev.result = v
		ev.done = true
		return
	}
	ev.PushValue(v)
}

// settle ends evaluations that have run out of steps, passing their value
// to the caller.
func (ev *Evaluator) settle() {
	for !ev.done && len(ev.evaluations) > 0 {
		top := ev.current()
		if !top.done() {
			return
		}
		var v Value = None{}
		switch n := len(ev.values) - top.base; {
		case n == 1:
			v = ev.values[len(ev.values)-1]
		case n > 1:
			panic(internalf("%s finished with %d values on the stack", top.Name, n))
		}
		ev.end(top, v)
	}
}

func (ev *Evaluator) abort(exc *Exception) {
	ev.values = nil
	ev.evaluations = nil
	ev.result = exc
	ev.done = true
}
