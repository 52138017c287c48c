package ripple

import (
	"fmt"
)

// ExceptionKind classifies runtime failures that surface as values.
type ExceptionKind string

const (
	UnboundName    ExceptionKind = "UnboundName"
	TypeMismatch   ExceptionKind = "TypeMismatch"
	MissingValue   ExceptionKind = "MissingValue"
	DivisionByZero ExceptionKind = "DivisionByZero"
	UnitMismatch   ExceptionKind = "UnitMismatch"
	NotAFunction   ExceptionKind = "NotAFunction"
	InputMismatch  ExceptionKind = "InputMismatch"
	StepLimit      ExceptionKind = "StepLimit"
	StackLimit     ExceptionKind = "StackLimit"
	StreamFault    ExceptionKind = "StreamFault"
	NumberLimit    ExceptionKind = "NumberLimit"
)

// Exception is the value produced when evaluation fails. Returning one from
// a step ends the current evaluation with the exception as its result.
type Exception struct {
	Kind    ExceptionKind
	Message string

	// Expected and Received are set for type mismatches.
	Expected Type
	Received Value

	// Node is the expression being evaluated, and Step the number of steps
	// executed in the pass when the exception was raised.
	Node Node
	Step int
}

func (e *Exception) Type() Type {
	return NeverType{Reason: e.Message}
}

func (e *Exception) String() string {
	return fmt.Sprintf("!%s: %s", e.Kind, e.Message)
}

func (e *Exception) Equal(other Value) bool {
	o, ok := other.(*Exception)
	return ok && o.Kind == e.Kind && o.Message == e.Message
}

// Error lets exceptions be reported through Go error paths.
func (e *Exception) Error() string {
	return e.String()
}

// IsException reports whether v is an exception.
func IsException(v Value) bool {
	_, ok := v.(*Exception)
	return ok
}

// Exception builds an exception at the current point of evaluation.
func (ev *Evaluator) Exception(kind ExceptionKind, node Node, format string, args ...any) *Exception {
	return &Exception{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		Node:    node,
		Step:    ev.count,
	}
}

// TypeMismatch reports a value that does not fit the expected type.
func (ev *Evaluator) TypeMismatch(node Node, expected Type, received Value) *Exception {
	exc := ev.Exception(TypeMismatch, node, "expected %s, got %s", expected, received)
	exc.Expected = expected
	exc.Received = received
	return exc
}

// firstException returns the first exception among values, or nil.
func firstException(values ...Value) *Exception {
	for _, v := range values {
		if exc, ok := v.(*Exception); ok {
			return exc
		}
	}
	return nil
}
