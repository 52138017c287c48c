package ripple

import (
	"github.com/vito/ripple/pkg/units"
)

var (
	itemTypeGrammar = Grammar{one("item", "Type")}
	keyTypeGrammar  = Grammar{one("key", "Type")}
	mapTypeGrammar  = Grammar{one("key", "Type"), one("value", "Type")}
	unionGrammar    = Grammar{one("left", "Type"), one("right", "Type")}
	literalGrammar  = Grammar{one("literal", "Expression")}
)

// NumberTypeNode is #unit.
type NumberTypeNode struct {
	Unit units.Unit
	Loc  *SourceLocation
}

var _ TypeNode = (*NumberTypeNode)(nil)

func (n *NumberTypeNode) Kind() string                       { return "NumberTypeNode" }
func (n *NumberTypeNode) Grammar() Grammar                   { return leafGrammar }
func (n *NumberTypeNode) Label() string                      { return "#" + n.Unit.String() }
func (n *NumberTypeNode) GetSourceLocation() *SourceLocation { return n.Loc }
func (n *NumberTypeNode) Get(field string) any               { panic(unknownField(n, field)) }
func (n *NumberTypeNode) With(field string, _ any) Node      { panic(unknownField(n, field)) }
func (n *NumberTypeNode) Resolve(*Context) Type              { return NumberType{Unit: n.Unit} }

// LiteralTypeNode is a number or text literal used as a type, e.g. 0 or
// 'yes'.
type LiteralTypeNode struct {
	Literal Expression
	Loc     *SourceLocation
}

var _ TypeNode = (*LiteralTypeNode)(nil)

func (l *LiteralTypeNode) Kind() string                       { return "LiteralTypeNode" }
func (l *LiteralTypeNode) Grammar() Grammar                   { return literalGrammar }
func (l *LiteralTypeNode) Label() string                      { return "" }
func (l *LiteralTypeNode) GetSourceLocation() *SourceLocation { return l.Loc }

func (l *LiteralTypeNode) Get(field string) any {
	if field == "literal" {
		return l.Literal
	}
	panic(unknownField(l, field))
}

func (l *LiteralTypeNode) With(field string, value any) Node {
	if field != "literal" {
		panic(unknownField(l, field))
	}
	c := *l
	c.Literal = nodeOf[Expression](value)
	return &c
}

func (l *LiteralTypeNode) Resolve(ctx *Context) Type {
	return l.Literal.ComputeType(ctx)
}

// TextTypeNode is '', any text.
type TextTypeNode struct {
	Loc *SourceLocation
}

var _ TypeNode = (*TextTypeNode)(nil)

func (t *TextTypeNode) Kind() string                       { return "TextTypeNode" }
func (t *TextTypeNode) Grammar() Grammar                   { return leafGrammar }
func (t *TextTypeNode) Label() string                      { return "''" }
func (t *TextTypeNode) GetSourceLocation() *SourceLocation { return t.Loc }
func (t *TextTypeNode) Get(field string) any               { panic(unknownField(t, field)) }
func (t *TextTypeNode) With(field string, _ any) Node      { panic(unknownField(t, field)) }
func (t *TextTypeNode) Resolve(*Context) Type              { return TextType{} }

// BooleanTypeNode is ?.
type BooleanTypeNode struct {
	Loc *SourceLocation
}

var _ TypeNode = (*BooleanTypeNode)(nil)

func (b *BooleanTypeNode) Kind() string                       { return "BooleanTypeNode" }
func (b *BooleanTypeNode) Grammar() Grammar                   { return leafGrammar }
func (b *BooleanTypeNode) Label() string                      { return "?" }
func (b *BooleanTypeNode) GetSourceLocation() *SourceLocation { return b.Loc }
func (b *BooleanTypeNode) Get(field string) any               { panic(unknownField(b, field)) }
func (b *BooleanTypeNode) With(field string, _ any) Node      { panic(unknownField(b, field)) }
func (b *BooleanTypeNode) Resolve(*Context) Type              { return BooleanType{} }

// NoneTypeNode is ø in type position.
type NoneTypeNode struct {
	Loc *SourceLocation
}

var _ TypeNode = (*NoneTypeNode)(nil)

func (n *NoneTypeNode) Kind() string                       { return "NoneTypeNode" }
func (n *NoneTypeNode) Grammar() Grammar                   { return leafGrammar }
func (n *NoneTypeNode) Label() string                      { return "ø" }
func (n *NoneTypeNode) GetSourceLocation() *SourceLocation { return n.Loc }
func (n *NoneTypeNode) Get(field string) any               { panic(unknownField(n, field)) }
func (n *NoneTypeNode) With(field string, _ any) Node      { panic(unknownField(n, field)) }
func (n *NoneTypeNode) Resolve(*Context) Type              { return NoneType{} }

// ListTypeNode is [T].
type ListTypeNode struct {
	Item TypeNode
	Loc  *SourceLocation
}

var _ TypeNode = (*ListTypeNode)(nil)

func (l *ListTypeNode) Kind() string                       { return "ListTypeNode" }
func (l *ListTypeNode) Grammar() Grammar                   { return itemTypeGrammar }
func (l *ListTypeNode) Label() string                      { return "" }
func (l *ListTypeNode) GetSourceLocation() *SourceLocation { return l.Loc }

func (l *ListTypeNode) Get(field string) any {
	if field == "item" {
		return l.Item
	}
	panic(unknownField(l, field))
}

func (l *ListTypeNode) With(field string, value any) Node {
	if field != "item" {
		panic(unknownField(l, field))
	}
	c := *l
	c.Item = nodeOf[TypeNode](value)
	return &c
}

func (l *ListTypeNode) Resolve(ctx *Context) Type {
	return ListType{Item: l.Item.Resolve(ctx)}
}

// SetTypeNode is {T}.
type SetTypeNode struct {
	Key TypeNode
	Loc *SourceLocation
}

var _ TypeNode = (*SetTypeNode)(nil)

func (s *SetTypeNode) Kind() string                       { return "SetTypeNode" }
func (s *SetTypeNode) Grammar() Grammar                   { return keyTypeGrammar }
func (s *SetTypeNode) Label() string                      { return "" }
func (s *SetTypeNode) GetSourceLocation() *SourceLocation { return s.Loc }

func (s *SetTypeNode) Get(field string) any {
	if field == "key" {
		return s.Key
	}
	panic(unknownField(s, field))
}

func (s *SetTypeNode) With(field string, value any) Node {
	if field != "key" {
		panic(unknownField(s, field))
	}
	c := *s
	c.Key = nodeOf[TypeNode](value)
	return &c
}

func (s *SetTypeNode) Resolve(ctx *Context) Type {
	return SetType{Key: s.Key.Resolve(ctx)}
}

// MapTypeNode is {K:V}.
type MapTypeNode struct {
	Key   TypeNode
	Value TypeNode
	Loc   *SourceLocation
}

var _ TypeNode = (*MapTypeNode)(nil)

func (m *MapTypeNode) Kind() string                       { return "MapTypeNode" }
func (m *MapTypeNode) Grammar() Grammar                   { return mapTypeGrammar }
func (m *MapTypeNode) Label() string                      { return "" }
func (m *MapTypeNode) GetSourceLocation() *SourceLocation { return m.Loc }

func (m *MapTypeNode) Get(field string) any {
	switch field {
	case "key":
		return m.Key
	case "value":
		return m.Value
	}
	panic(unknownField(m, field))
}

func (m *MapTypeNode) With(field string, value any) Node {
	c := *m
	switch field {
	case "key":
		c.Key = nodeOf[TypeNode](value)
	case "value":
		c.Value = nodeOf[TypeNode](value)
	default:
		panic(unknownField(m, field))
	}
	return &c
}

func (m *MapTypeNode) Resolve(ctx *Context) Type {
	return MapType{Key: m.Key.Resolve(ctx), Value: m.Value.Resolve(ctx)}
}

// UnionTypeNode is A|B.
type UnionTypeNode struct {
	Left  TypeNode
	Right TypeNode
	Loc   *SourceLocation
}

var _ TypeNode = (*UnionTypeNode)(nil)

func (u *UnionTypeNode) Kind() string                       { return "UnionTypeNode" }
func (u *UnionTypeNode) Grammar() Grammar                   { return unionGrammar }
func (u *UnionTypeNode) Label() string                      { return "|" }
func (u *UnionTypeNode) GetSourceLocation() *SourceLocation { return u.Loc }

func (u *UnionTypeNode) Get(field string) any {
	switch field {
	case "left":
		return u.Left
	case "right":
		return u.Right
	}
	panic(unknownField(u, field))
}

func (u *UnionTypeNode) With(field string, value any) Node {
	c := *u
	switch field {
	case "left":
		c.Left = nodeOf[TypeNode](value)
	case "right":
		c.Right = nodeOf[TypeNode](value)
	default:
		panic(unknownField(u, field))
	}
	return &c
}

func (u *UnionTypeNode) Resolve(ctx *Context) Type {
	return Union(ctx, u.Left.Resolve(ctx), u.Right.Resolve(ctx))
}

// NameTypeNode refers to a structure definition by name.
type NameTypeNode struct {
	Name string
	Loc  *SourceLocation
}

var _ TypeNode = (*NameTypeNode)(nil)

func (n *NameTypeNode) Kind() string                       { return "NameTypeNode" }
func (n *NameTypeNode) Grammar() Grammar                   { return leafGrammar }
func (n *NameTypeNode) Label() string                      { return n.Name }
func (n *NameTypeNode) GetSourceLocation() *SourceLocation { return n.Loc }
func (n *NameTypeNode) Get(field string) any               { panic(unknownField(n, field)) }
func (n *NameTypeNode) With(field string, _ any) Node      { panic(unknownField(n, field)) }

func (n *NameTypeNode) Resolve(ctx *Context) Type {
	if ctx == nil {
		return UnknownType{Reason: "unresolved type " + n.Name}
	}
	if def, ok := ctx.Resolve(n, n.Name).(*StructureDefinition); ok {
		return StructureType{Definition: def}
	}
	return UnknownType{Reason: "unknown type " + n.Name}
}

func (n *NameTypeNode) Conflicts(ctx *Context) []Conflict {
	if _, ok := ctx.Resolve(n, n.Name).(*StructureDefinition); ok {
		return nil
	}
	return []Conflict{{
		Kind:    UnknownName,
		Node:    n,
		Message: "'" + n.Name + "' is not a structure",
	}}
}
