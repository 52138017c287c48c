package ripple

import (
	"fmt"
)

// StepKind identifies the role a step plays in its compiled sequence.
type StepKind int

const (
	StartStep StepKind = iota
	InitializeStep
	NextStep
	CheckStep
	FinishStep
	JumpStep
	JumpIfStep
)

func (k StepKind) String() string {
	switch k {
	case StartStep:
		return "Start"
	case InitializeStep:
		return "Initialize"
	case NextStep:
		return "Next"
	case CheckStep:
		return "Check"
	case FinishStep:
		return "Finish"
	case JumpStep:
		return "Jump"
	case JumpIfStep:
		return "JumpIf"
	}
	return fmt.Sprintf("StepKind(%d)", int(k))
}

// Action is the effect of a step. It returns nil to continue, a value to
// push onto the operand stack, or an exception to end the current
// evaluation.
type Action func(ev *Evaluator) Value

// Step is one unit of evaluation. Steps are immutable once compiled and
// shared by every evaluation of the same node.
type Step struct {
	Kind StepKind
	// Node is the expression the step belongs to; nil for basis steps.
	Node Node
	// Label describes basis steps, which have no node.
	Label string
	// Offset is the relative jump distance for Jump and JumpIf: executing it
	// skips the next Offset steps.
	Offset int

	action Action
}

// Evaluate runs the step's action.
func (s *Step) Evaluate(ev *Evaluator) Value {
	if s.action == nil {
		return nil
	}
	return s.action(ev)
}

func (s *Step) String() string {
	desc := s.Label
	if desc == "" {
		desc = Describe(s.Node)
	}
	switch s.Kind {
	case JumpStep, JumpIfStep:
		return fmt.Sprintf("%s(%+d) %s", s.Kind, s.Offset, desc)
	}
	return fmt.Sprintf("%s %s", s.Kind, desc)
}

// NewStart begins a node's sequence; action may be nil.
func NewStart(node Node, action Action) *Step {
	return &Step{Kind: StartStep, Node: node, action: action}
}

// NewFinish completes a node by calling its Evaluate.
func NewFinish(expr Expression) *Step {
	return &Step{Kind: FinishStep, Node: expr, action: expr.Evaluate}
}

// NewStep builds a step of any kind with a custom action.
func NewStep(kind StepKind, node Node, action Action) *Step {
	return &Step{Kind: kind, Node: node, action: action}
}

// NewJump skips the next n steps unconditionally.
func NewJump(node Node, n int) *Step {
	return &Step{Kind: JumpStep, Node: node, Offset: n, action: func(ev *Evaluator) Value {
		ev.Jump(n)
		return nil
	}}
}

// NewJumpIf skips the next n steps when the condition on top of the operand
// stack equals when. With peek the condition stays on the stack. When
// taken, push (if non-nil) is pushed before jumping, so short-circuited
// operators still finish with two operands.
func NewJumpIf(node Node, n int, when, peek bool, push Value) *Step {
	return &Step{Kind: JumpIfStep, Node: node, Offset: n, action: func(ev *Evaluator) Value {
		var cond Value
		if peek {
			cond = ev.PeekValue()
		} else {
			cond = ev.PopValue()
		}
		if exc, ok := cond.(*Exception); ok {
			return exc
		}
		b, ok := cond.(Bool)
		if !ok {
			return ev.TypeMismatch(node, BooleanType{}, cond)
		}
		if b.Bool == when {
			if push != nil {
				ev.PushValue(push)
			}
			ev.Jump(n)
		}
		return nil
	}}
}

// basisStep builds a step for hand-compiled basis functions.
func basisStep(kind StepKind, label string, action Action) *Step {
	return &Step{Kind: kind, Label: label, action: action}
}

// Compile returns the steps for an expression: its own sequence with its
// children's sequences spliced in.
func Compile(ctx *Context, expr Expression) []*Step {
	return expr.Compile(ctx)
}

// sequence joins step lists.
func sequence(parts ...[]*Step) []*Step {
	var n int
	for _, p := range parts {
		n += len(p)
	}
	out := make([]*Step, 0, n)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func steps(s ...*Step) []*Step {
	return s
}
