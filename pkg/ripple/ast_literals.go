package ripple

import (
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/vito/ripple/pkg/units"
)

var (
	leafGrammar     = Grammar{}
	itemsGrammar    = Grammar{many("items", "Expression")}
	entriesGrammar  = Grammar{many("entries", "KeyValue")}
	keyValueGrammar = Grammar{one("key", "Expression"), one("value", "Expression")}
)

// NumberLiteral is a decimal number with an optional unit, e.g. 1.5m/s.
type NumberLiteral struct {
	Text   string
	Number decimal.Decimal
	Unit   units.Unit
	Loc    *SourceLocation
}

var _ Expression = (*NumberLiteral)(nil)

func (n *NumberLiteral) Kind() string                       { return "NumberLiteral" }
func (n *NumberLiteral) Grammar() Grammar                   { return leafGrammar }
func (n *NumberLiteral) Label() string                      { return n.Text + n.Unit.String() }
func (n *NumberLiteral) GetSourceLocation() *SourceLocation { return n.Loc }
func (n *NumberLiteral) Get(field string) any               { panic(unknownField(n, field)) }
func (n *NumberLiteral) With(field string, _ any) Node      { panic(unknownField(n, field)) }

func (n *NumberLiteral) ComputeType(*Context) Type {
	return NumberType{Unit: n.Unit, Literal: n.Number.String()}
}

func (n *NumberLiteral) Compile(*Context) []*Step {
	return steps(NewFinish(n))
}

func (n *NumberLiteral) Evaluate(*Evaluator) Value {
	return Number{Num: n.Number, Unit: n.Unit}
}

type TextLiteral struct {
	Text string
	Loc  *SourceLocation
}

var _ Expression = (*TextLiteral)(nil)

func (t *TextLiteral) Kind() string                       { return "TextLiteral" }
func (t *TextLiteral) Grammar() Grammar                   { return leafGrammar }
func (t *TextLiteral) Label() string                      { return strconv.Quote(t.Text) }
func (t *TextLiteral) GetSourceLocation() *SourceLocation { return t.Loc }
func (t *TextLiteral) Get(field string) any               { panic(unknownField(t, field)) }
func (t *TextLiteral) With(field string, _ any) Node      { panic(unknownField(t, field)) }

func (t *TextLiteral) ComputeType(*Context) Type {
	return TextType{Literal: t.Text, HasLiteral: true}
}

func (t *TextLiteral) Compile(*Context) []*Step {
	return steps(NewFinish(t))
}

func (t *TextLiteral) Evaluate(*Evaluator) Value {
	return Text{Text: t.Text}
}

type BooleanLiteral struct {
	Value bool
	Loc   *SourceLocation
}

var _ Expression = (*BooleanLiteral)(nil)

func (b *BooleanLiteral) Kind() string                       { return "BooleanLiteral" }
func (b *BooleanLiteral) Grammar() Grammar                   { return leafGrammar }
func (b *BooleanLiteral) Label() string                      { return Bool{Bool: b.Value}.String() }
func (b *BooleanLiteral) GetSourceLocation() *SourceLocation { return b.Loc }
func (b *BooleanLiteral) Get(field string) any               { panic(unknownField(b, field)) }
func (b *BooleanLiteral) With(field string, _ any) Node      { panic(unknownField(b, field)) }

func (b *BooleanLiteral) ComputeType(*Context) Type {
	return BooleanType{Literal: b.Value, HasLiteral: true}
}

func (b *BooleanLiteral) Compile(*Context) []*Step {
	return steps(NewFinish(b))
}

func (b *BooleanLiteral) Evaluate(*Evaluator) Value {
	return Bool{Bool: b.Value}
}

type NoneLiteral struct {
	Loc *SourceLocation
}

var _ Expression = (*NoneLiteral)(nil)

func (n *NoneLiteral) Kind() string                       { return "NoneLiteral" }
func (n *NoneLiteral) Grammar() Grammar                   { return leafGrammar }
func (n *NoneLiteral) Label() string                      { return "ø" }
func (n *NoneLiteral) GetSourceLocation() *SourceLocation { return n.Loc }
func (n *NoneLiteral) Get(field string) any               { panic(unknownField(n, field)) }
func (n *NoneLiteral) With(field string, _ any) Node      { panic(unknownField(n, field)) }
func (n *NoneLiteral) ComputeType(*Context) Type          { return NoneType{} }
func (n *NoneLiteral) Compile(*Context) []*Step           { return steps(NewFinish(n)) }
func (n *NoneLiteral) Evaluate(*Evaluator) Value          { return None{} }

// ListLiteral is [a b c].
type ListLiteral struct {
	Items []Expression
	Loc   *SourceLocation
}

var _ Expression = (*ListLiteral)(nil)

func (l *ListLiteral) Kind() string                       { return "ListLiteral" }
func (l *ListLiteral) Grammar() Grammar                   { return itemsGrammar }
func (l *ListLiteral) Label() string                      { return "" }
func (l *ListLiteral) GetSourceLocation() *SourceLocation { return l.Loc }

func (l *ListLiteral) Get(field string) any {
	if field == "items" {
		return nodeList(l.Items)
	}
	panic(unknownField(l, field))
}

func (l *ListLiteral) With(field string, value any) Node {
	if field != "items" {
		panic(unknownField(l, field))
	}
	c := *l
	c.Items = listOf[Expression](value)
	return &c
}

func (l *ListLiteral) ComputeType(ctx *Context) Type {
	return ListType{Item: itemsType(ctx, l.Items)}
}

func (l *ListLiteral) Compile(ctx *Context) []*Step {
	return compileItems(ctx, l, l.Items)
}

func (l *ListLiteral) Evaluate(ev *Evaluator) Value {
	items := ev.PopValues(len(l.Items))
	if exc := firstException(items...); exc != nil {
		return exc
	}
	return NewList(items...)
}

// SetLiteral is {a b c}.
type SetLiteral struct {
	Items []Expression
	Loc   *SourceLocation
}

var _ Expression = (*SetLiteral)(nil)

func (s *SetLiteral) Kind() string                       { return "SetLiteral" }
func (s *SetLiteral) Grammar() Grammar                   { return itemsGrammar }
func (s *SetLiteral) Label() string                      { return "" }
func (s *SetLiteral) GetSourceLocation() *SourceLocation { return s.Loc }

func (s *SetLiteral) Get(field string) any {
	if field == "items" {
		return nodeList(s.Items)
	}
	panic(unknownField(s, field))
}

func (s *SetLiteral) With(field string, value any) Node {
	if field != "items" {
		panic(unknownField(s, field))
	}
	c := *s
	c.Items = listOf[Expression](value)
	return &c
}

func (s *SetLiteral) ComputeType(ctx *Context) Type {
	return SetType{Key: itemsType(ctx, s.Items)}
}

func (s *SetLiteral) Compile(ctx *Context) []*Step {
	return compileItems(ctx, s, s.Items)
}

func (s *SetLiteral) Evaluate(ev *Evaluator) Value {
	items := ev.PopValues(len(s.Items))
	if exc := firstException(items...); exc != nil {
		return exc
	}
	return NewSet(items...)
}

// KeyValue is one entry of a map literal.
type KeyValue struct {
	Key   Expression
	Value Expression
	Loc   *SourceLocation
}

func (kv *KeyValue) Kind() string                       { return "KeyValue" }
func (kv *KeyValue) Grammar() Grammar                   { return keyValueGrammar }
func (kv *KeyValue) Label() string                      { return "" }
func (kv *KeyValue) GetSourceLocation() *SourceLocation { return kv.Loc }

func (kv *KeyValue) Get(field string) any {
	switch field {
	case "key":
		return kv.Key
	case "value":
		return kv.Value
	}
	panic(unknownField(kv, field))
}

func (kv *KeyValue) With(field string, value any) Node {
	c := *kv
	switch field {
	case "key":
		c.Key = nodeOf[Expression](value)
	case "value":
		c.Value = nodeOf[Expression](value)
	default:
		panic(unknownField(kv, field))
	}
	return &c
}

// MapLiteral is {k:v k:v}, or {:} when empty.
type MapLiteral struct {
	Entries []*KeyValue
	Loc     *SourceLocation
}

var _ Expression = (*MapLiteral)(nil)

func (m *MapLiteral) Kind() string                       { return "MapLiteral" }
func (m *MapLiteral) Grammar() Grammar                   { return entriesGrammar }
func (m *MapLiteral) Label() string                      { return "" }
func (m *MapLiteral) GetSourceLocation() *SourceLocation { return m.Loc }

func (m *MapLiteral) Get(field string) any {
	if field == "entries" {
		return nodeList(m.Entries)
	}
	panic(unknownField(m, field))
}

func (m *MapLiteral) With(field string, value any) Node {
	if field != "entries" {
		panic(unknownField(m, field))
	}
	c := *m
	c.Entries = listOf[*KeyValue](value)
	return &c
}

func (m *MapLiteral) ComputeType(ctx *Context) Type {
	keys := make([]Expression, len(m.Entries))
	values := make([]Expression, len(m.Entries))
	for i, kv := range m.Entries {
		keys[i], values[i] = kv.Key, kv.Value
	}
	return MapType{Key: itemsType(ctx, keys), Value: itemsType(ctx, values)}
}

func (m *MapLiteral) Compile(ctx *Context) []*Step {
	var body []*Step
	for _, kv := range m.Entries {
		body = append(body, ctx.Compile(kv.Key)...)
		body = append(body, ctx.Compile(kv.Value)...)
	}
	return sequence(steps(NewStart(m, nil)), body, steps(NewFinish(m)))
}

func (m *MapLiteral) Evaluate(ev *Evaluator) Value {
	flat := ev.PopValues(2 * len(m.Entries))
	if exc := firstException(flat...); exc != nil {
		return exc
	}
	keys := make([]Value, len(m.Entries))
	values := make([]Value, len(m.Entries))
	for i := range m.Entries {
		keys[i], values[i] = flat[2*i], flat[2*i+1]
	}
	return NewMap(keys, values)
}

func compileItems(ctx *Context, node Expression, items []Expression) []*Step {
	var body []*Step
	for _, item := range items {
		body = append(body, ctx.Compile(item)...)
	}
	return sequence(steps(NewStart(node, nil)), body, steps(NewFinish(node)))
}

// itemsType generalizes the item types of a collection literal so that
// [1 2] is a [#] rather than a [1|2].
func itemsType(ctx *Context, items []Expression) Type {
	if len(items) == 0 {
		return NeverType{Reason: "empty"}
	}
	types := make([]Type, len(items))
	for i, item := range items {
		types[i] = Generalize(Concrete(ctx.TypeOf(item)))
	}
	return Union(ctx, types...)
}
