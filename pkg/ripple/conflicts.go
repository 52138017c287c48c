package ripple

import (
	"errors"
	"fmt"

	"github.com/iancoleman/strcase"
)

// ConflictKind classifies static problems found in a program.
type ConflictKind string

const (
	UnparsableConflict       ConflictKind = "UnparsableConflict"
	UnknownName              ConflictKind = "UnknownName"
	UnknownProperty          ConflictKind = "UnknownProperty"
	IncompatibleInput        ConflictKind = "IncompatibleInput"
	MissingInput             ConflictKind = "MissingInput"
	UnexpectedInputs         ConflictKind = "UnexpectedInputs"
	NotAFunctionConflict     ConflictKind = "NotAFunction"
	IncompatibleBind         ConflictKind = "IncompatibleBind"
	ExpectedBooleanCondition ConflictKind = "ExpectedBooleanCondition"
	IncompatibleUnits        ConflictKind = "IncompatibleUnits"
	IncompatibleOperand      ConflictKind = "IncompatibleOperand"
	DuplicateName            ConflictKind = "DuplicateName"
	OrderOfOperations        ConflictKind = "OrderOfOperations"
	ReferenceBeforeBind      ConflictKind = "ReferenceBeforeBind"
	NotAStream               ConflictKind = "NotAStream"
	ExpectedEndingExpression ConflictKind = "ExpectedEndingExpression"
	NotAList                 ConflictKind = "NotAList"
)

// Code is the kebab-case identifier of the kind, e.g. "unknown-name".
func (k ConflictKind) Code() string {
	return strcase.ToKebab(string(k))
}

// Conflict is a static problem with a node. Conflicts never stop
// evaluation; the affected code produces exceptions instead.
type Conflict struct {
	Kind    ConflictKind
	Node    Node
	Message string
	// Related points at other nodes involved, e.g. the earlier definition of
	// a duplicate name.
	Related []Node
}

func (c Conflict) String() string {
	return fmt.Sprintf("%s: %s [%s]", c.Node.GetSourceLocation(), c.Message, c.Kind.Code())
}

// Error converts the conflict into a SourceError for display.
func (c Conflict) Error(source string) *SourceError {
	return NewSourceError(errors.New(c.Message+" ["+c.Kind.Code()+"]"), c.Node.GetSourceLocation(), source)
}

// ComputeConflicts returns the conflicts of a single node, not including its
// descendants.
func ComputeConflicts(node Node, ctx *Context) []Conflict {
	if c, ok := node.(conflicted); ok {
		return c.Conflicts(ctx)
	}
	return nil
}

// AllConflicts returns the conflicts of every node under root in source
// order.
func AllConflicts(root Node, ctx *Context) []Conflict {
	var conflicts []Conflict
	Walk(root, func(n Node) bool {
		conflicts = append(conflicts, ComputeConflicts(n, ctx)...)
		return true
	})
	return conflicts
}
