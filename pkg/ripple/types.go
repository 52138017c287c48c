package ripple

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/vito/ripple/pkg/units"
)

// Type is the closed set of static types. Every implementation lives in
// this file.
type Type interface {
	fmt.Stringer

	// accepts reports whether values of other may be used where the receiver
	// is expected. other is never a union, stream, Unknown or Never; Accepts
	// unwraps those first.
	accepts(other Type, ctx *Context) bool

	isType()
}

// Accepts reports whether a value of type other can be used where t is
// expected.
func Accepts(t, other Type, ctx *Context) bool {
	switch o := other.(type) {
	case nil:
		return false
	case UnknownType, NeverType:
		return true
	case UnionType:
		return Accepts(t, o.Left, ctx) && Accepts(t, o.Right, ctx)
	case StreamType:
		if st, ok := t.(StreamType); ok {
			return Accepts(st.Value, o.Value, ctx)
		}
		return Accepts(t, o.Value, ctx)
	}
	switch tt := t.(type) {
	case nil:
		return false
	case UnknownType:
		return true
	case UnionType:
		return Accepts(tt.Left, other, ctx) || Accepts(tt.Right, other, ctx)
	}
	return t.accepts(other, ctx)
}

// AcceptsAll reports whether t accepts every member of the set.
func AcceptsAll(t Type, set *TypeSet, ctx *Context) bool {
	for _, m := range set.Members() {
		if !Accepts(t, m, ctx) {
			return false
		}
	}
	return true
}

// Concrete unwraps stream types to the type of their values.
func Concrete(t Type) Type {
	if st, ok := t.(StreamType); ok {
		return Concrete(st.Value)
	}
	return t
}

// Members flattens unions into their member types.
func Members(t Type) []Type {
	switch u := t.(type) {
	case UnionType:
		return append(Members(u.Left), Members(u.Right)...)
	case nil:
		return nil
	}
	return []Type{t}
}

// Union combines types, dropping members already accepted by another. An
// empty union is Never.
func Union(ctx *Context, types ...Type) Type {
	return NewTypeSet(ctx, types...).Type()
}

// Generalize strips literal information, e.g. turning the type of 3m into
// #m.
func Generalize(t Type) Type {
	switch g := t.(type) {
	case NumberType:
		g.Literal = ""
		return g
	case TextType:
		return TextType{}
	case BooleanType:
		return BooleanType{}
	case UnionType:
		var members []Type
		for _, m := range Members(g) {
			members = append(members, Generalize(m))
		}
		return Union(nil, members...)
	}
	return t
}

// UnitDeriver computes the unit of an arithmetic result from its operand
// units. constant is the right operand's literal value when it has one.
type UnitDeriver func(left, right units.Unit, constant *decimal.Decimal) units.Unit

// NumberType is a number with a unit, optionally restricted to one literal
// value.
type NumberType struct {
	Unit units.Unit
	// Literal is the normalized decimal text of a literal type, or empty.
	Literal string

	// Deriver, when set, derives the unit from the types of Left and Right
	// instead of using Unit.
	Deriver     UnitDeriver
	Left, Right Expression
}

func (NumberType) isType() {}

// ConcreteUnit resolves the type's unit, consulting the operand types when
// the unit is derived.
func (t NumberType) ConcreteUnit(ctx *Context) units.Unit {
	if t.Deriver == nil {
		return t.Unit
	}
	if ctx == nil {
		return units.Wildcard
	}
	left := operandUnit(ctx, t.Left)
	right := units.Empty
	var constant *decimal.Decimal
	if t.Right != nil {
		right = operandUnit(ctx, t.Right)
		if lit, ok := t.Right.(*NumberLiteral); ok && lit.Unit.IsUnitless() {
			n := lit.Number
			constant = &n
		}
	}
	return t.Deriver(left, right, constant)
}

func operandUnit(ctx *Context, e Expression) units.Unit {
	if nt, ok := Concrete(ctx.TypeOf(e)).(NumberType); ok {
		return nt.ConcreteUnit(ctx)
	}
	return units.Wildcard
}

func (t NumberType) accepts(other Type, ctx *Context) bool {
	o, ok := other.(NumberType)
	if !ok {
		return false
	}
	if !t.ConcreteUnit(ctx).Accepts(o.ConcreteUnit(ctx)) {
		return false
	}
	return t.Literal == "" || t.Literal == o.Literal
}

func (t NumberType) String() string {
	unit := t.Unit.String()
	if t.Deriver != nil {
		unit = "…"
	}
	if t.Literal != "" {
		return t.Literal + unit
	}
	return "#" + unit
}

// TextType is any text, or a single literal text.
type TextType struct {
	Literal    string
	HasLiteral bool
}

func (TextType) isType() {}

func (t TextType) accepts(other Type, _ *Context) bool {
	o, ok := other.(TextType)
	if !ok {
		return false
	}
	return !t.HasLiteral || (o.HasLiteral && o.Literal == t.Literal)
}

func (t TextType) String() string {
	if t.HasLiteral {
		return "'" + t.Literal + "'"
	}
	return "''"
}

// BooleanType is ⊤, ⊥, or either.
type BooleanType struct {
	Literal    bool
	HasLiteral bool
}

func (BooleanType) isType() {}

func (t BooleanType) accepts(other Type, _ *Context) bool {
	o, ok := other.(BooleanType)
	if !ok {
		return false
	}
	return !t.HasLiteral || (o.HasLiteral && o.Literal == t.Literal)
}

func (t BooleanType) String() string {
	if t.HasLiteral {
		if t.Literal {
			return "⊤"
		}
		return "⊥"
	}
	return "?"
}

// NoneType is the type of ø.
type NoneType struct{}

func (NoneType) isType() {}

func (NoneType) accepts(other Type, _ *Context) bool {
	_, ok := other.(NoneType)
	return ok
}

func (NoneType) String() string { return "ø" }

// ListType is a list whose items all have type Item.
type ListType struct {
	Item Type
}

func (ListType) isType() {}

func (t ListType) accepts(other Type, ctx *Context) bool {
	o, ok := other.(ListType)
	if !ok {
		return false
	}
	return Accepts(t.Item, o.Item, ctx)
}

func (t ListType) String() string { return "[" + t.Item.String() + "]" }

type SetType struct {
	Key Type
}

func (SetType) isType() {}

func (t SetType) accepts(other Type, ctx *Context) bool {
	o, ok := other.(SetType)
	if !ok {
		return false
	}
	return Accepts(t.Key, o.Key, ctx)
}

func (t SetType) String() string { return "{" + t.Key.String() + "}" }

type MapType struct {
	Key, Value Type
}

func (MapType) isType() {}

func (t MapType) accepts(other Type, ctx *Context) bool {
	o, ok := other.(MapType)
	if !ok {
		return false
	}
	return Accepts(t.Key, o.Key, ctx) && Accepts(t.Value, o.Value, ctx)
}

func (t MapType) String() string { return "{" + t.Key.String() + ":" + t.Value.String() + "}" }

// StructureType is the type of values created by a structure definition.
type StructureType struct {
	Definition *StructureDefinition
}

func (StructureType) isType() {}

func (t StructureType) accepts(other Type, _ *Context) bool {
	o, ok := other.(StructureType)
	return ok && o.Definition == t.Definition
}

func (t StructureType) String() string { return t.Definition.Name }

// StructureDefinitionType is the type of the definition itself, which is
// callable to construct structures.
type StructureDefinitionType struct {
	Definition *StructureDefinition
}

func (StructureDefinitionType) isType() {}

func (t StructureDefinitionType) accepts(other Type, _ *Context) bool {
	o, ok := other.(StructureDefinitionType)
	return ok && o.Definition == t.Definition
}

func (t StructureDefinitionType) String() string { return "•" + t.Definition.Name }

// FunctionType describes anything callable: user functions, basis
// functions bound to a receiver, and stream constructors.
type FunctionType struct {
	Inputs []Type
	Output Type

	Definition *FunctionDefinition
	Basis      *BasisFunction
	Receiver   Type
	Stream     *StreamDefinition
}

func (FunctionType) isType() {}

func (t FunctionType) accepts(other Type, ctx *Context) bool {
	o, ok := other.(FunctionType)
	if !ok || len(o.Inputs) != len(t.Inputs) {
		return false
	}
	for i, in := range t.Inputs {
		if !Accepts(o.Inputs[i], in, ctx) {
			return false
		}
	}
	if t.Output == nil || o.Output == nil {
		return true
	}
	return Accepts(t.Output, o.Output, ctx)
}

func (t FunctionType) String() string {
	var inputs []string
	for _, in := range t.Inputs {
		inputs = append(inputs, in.String())
	}
	out := "ƒ(" + strings.Join(inputs, " ") + ")"
	if t.Output != nil {
		out += " " + t.Output.String()
	}
	return out
}

// StreamType is a stream whose latest value has type Value. Streams are
// accepted wherever their value type is.
type StreamType struct {
	Value Type
}

func (StreamType) isType() {}

func (t StreamType) accepts(other Type, ctx *Context) bool {
	return Accepts(t.Value, other, ctx)
}

func (t StreamType) String() string { return "…" + t.Value.String() }

type UnionType struct {
	Left, Right Type
}

func (UnionType) isType() {}

func (t UnionType) accepts(other Type, ctx *Context) bool {
	return Accepts(t, other, ctx)
}

func (t UnionType) String() string { return t.Left.String() + "|" + t.Right.String() }

// NeverType has no values. It is the type of empty collections' items and
// of the empty TypeSet.
type NeverType struct {
	Reason string
}

func (NeverType) isType() {}

func (NeverType) accepts(other Type, _ *Context) bool {
	_, ok := other.(NeverType)
	return ok
}

func (NeverType) String() string { return "never" }

// UnknownType stands in when a type cannot be determined. It accepts and is
// accepted by everything.
type UnknownType struct {
	Reason string
}

func (UnknownType) isType() {}

func (UnknownType) accepts(Type, *Context) bool { return true }

func (UnknownType) String() string { return "_" }

func isUnknown(t Type) bool {
	_, ok := t.(UnknownType)
	return ok
}

// KindOf names the basis kind of a type, for method lookup.
func KindOf(t Type) string {
	switch Concrete(t).(type) {
	case NumberType:
		return NumberKind
	case TextType:
		return TextKind
	case BooleanType:
		return BooleanKind
	case ListType:
		return ListKind
	case SetType:
		return SetKind
	case MapType:
		return MapKind
	}
	return ""
}

// TypeEqual reports whether both types accept each other.
func TypeEqual(a, b Type, ctx *Context) bool {
	return Accepts(a, b, ctx) && Accepts(b, a, ctx)
}
