package ripple

import (
	"maps"
	"slices"
)

// Scope is one level of bindings. Scopes chain to their parent, and
// closures hold on to the scope they were created in.
type Scope struct {
	names  map[string]Value
	order  []string
	parent *Scope
	// owner is the evaluation the scope was created for.
	owner *Evaluation
}

func newScope(parent *Scope, owner *Evaluation) *Scope {
	return &Scope{names: map[string]Value{}, parent: parent, owner: owner}
}

// Bind sets name in this scope, shadowing any outer binding.
func (s *Scope) Bind(name string, v Value) {
	if _, exists := s.names[name]; !exists {
		s.order = append(s.order, name)
	}
	s.names[name] = v
}

// Resolve finds name in this scope or its ancestors.
func (s *Scope) Resolve(name string) (Value, bool) {
	for sc := s; sc != nil; sc = sc.parent {
		if v, ok := sc.names[name]; ok {
			return v, true
		}
	}
	return nil, false
}

// Names returns the names bound directly in this scope, in bind order.
func (s *Scope) Names() []string {
	return slices.Clone(s.order)
}

// Bindings returns a copy of the names bound directly in this scope.
func (s *Scope) Bindings() map[string]Value {
	return maps.Clone(s.names)
}

// Evaluation is the execution of one step sequence: a program, a function
// body, a structure constructor, or a basis function.
type Evaluation struct {
	// Definition is the node being evaluated; nil for basis functions.
	Definition Node
	Name       string

	steps []*Step
	ip    int
	scope *Scope
	// base is the operand stack height when the evaluation started.
	base int
}

// NewEvaluation prepares an evaluation whose bindings chain to closure.
func NewEvaluation(definition Node, name string, steps []*Step, closure *Scope) *Evaluation {
	e := &Evaluation{Definition: definition, Name: name, steps: steps}
	e.scope = newScope(closure, e)
	return e
}

// Closure returns the evaluation this one's bindings chain to, if any.
func (e *Evaluation) Closure() *Evaluation {
	for sc := e.scope; sc != nil; sc = sc.parent {
		if sc.owner != e {
			return sc.owner
		}
	}
	return nil
}

// Scope returns the innermost scope.
func (e *Evaluation) Scope() *Scope {
	return e.scope
}

// Steps returns the evaluation's compiled steps.
func (e *Evaluation) Steps() []*Step {
	return e.steps
}

// IP returns the index of the next step to execute.
func (e *Evaluation) IP() int {
	return e.ip
}

// Current returns the next step, or nil when the evaluation is done.
func (e *Evaluation) Current() *Step {
	if e.ip < 0 || e.ip >= len(e.steps) {
		return nil
	}
	return e.steps[e.ip]
}

func (e *Evaluation) done() bool {
	return e.ip >= len(e.steps)
}

func (e *Evaluation) pushScope() {
	e.scope = newScope(e.scope, e)
}

func (e *Evaluation) popScope() {
	if e.scope.parent == nil || e.scope.parent.owner != e {
		panic(internalf("scope underflow in %s", e.Name))
	}
	e.scope = e.scope.parent
}
