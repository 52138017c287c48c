package ripple

import (
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/vito/ripple/pkg/units"
)

// Value is an immutable runtime value.
type Value interface {
	// Type returns the most specific type of the value.
	Type() Type
	String() string
	Equal(other Value) bool
}

// Number is a decimal magnitude with a unit.
type Number struct {
	Num  decimal.Decimal
	Unit units.Unit
}

func NewNumber(n int64, unit units.Unit) Number {
	return Number{Num: decimal.NewFromInt(n), Unit: unit}
}

func Unitless(n int64) Number {
	return NewNumber(n, units.Empty)
}

func (n Number) Type() Type {
	return NumberType{Unit: n.Unit, Literal: n.Num.String()}
}

func (n Number) String() string {
	return n.Num.String() + n.Unit.String()
}

func (n Number) Equal(other Value) bool {
	o, ok := other.(Number)
	return ok && n.Num.Equal(o.Num) && n.Unit.Equal(o.Unit)
}

// Int returns the number truncated to an int.
func (n Number) Int() int {
	return int(n.Num.IntPart())
}

type Text struct {
	Text string
}

func (t Text) Type() Type {
	return TextType{Literal: t.Text, HasLiteral: true}
}

func (t Text) String() string {
	return "'" + t.Text + "'"
}

func (t Text) Equal(other Value) bool {
	o, ok := other.(Text)
	return ok && o.Text == t.Text
}

type Bool struct {
	Bool bool
}

var (
	True  = Bool{Bool: true}
	False = Bool{Bool: false}
)

func (b Bool) Type() Type {
	return BooleanType{Literal: b.Bool, HasLiteral: true}
}

func (b Bool) String() string {
	if b.Bool {
		return "⊤"
	}
	return "⊥"
}

func (b Bool) Equal(other Value) bool {
	o, ok := other.(Bool)
	return ok && o.Bool == b.Bool
}

type None struct{}

func (None) Type() Type     { return NoneType{} }
func (None) String() string { return "ø" }
func (None) Equal(other Value) bool {
	_, ok := other.(None)
	return ok
}

// List is an ordered, 1-indexed sequence of values.
type List struct {
	items []Value
}

// NewList copies the items into a new list.
func NewList(items ...Value) *List {
	return &List{items: slices.Clone(items)}
}

func (l *List) Length() int {
	return len(l.items)
}

// Get returns the item at the 1-based index.
func (l *List) Get(index int) (Value, bool) {
	if index < 1 || index > len(l.items) {
		return nil, false
	}
	return l.items[index-1], true
}

// Items returns a copy of the list's items.
func (l *List) Items() []Value {
	return slices.Clone(l.items)
}

func (l *List) Append(v Value) *List {
	return &List{items: append(slices.Clone(l.items), v)}
}

func (l *List) Has(v Value) bool {
	return indexOf(l.items, v) >= 0
}

func (l *List) Type() Type {
	return ListType{Item: itemType(l.items)}
}

func (l *List) String() string {
	return "[" + joinValues(l.items) + "]"
}

func (l *List) Equal(other Value) bool {
	o, ok := other.(*List)
	return ok && valuesEqual(l.items, o.items)
}

// Set is an unordered collection of distinct values, kept in insertion
// order for display.
type Set struct {
	items []Value
}

func NewSet(items ...Value) *Set {
	s := &Set{}
	for _, item := range items {
		if indexOf(s.items, item) < 0 {
			s.items = append(s.items, item)
		}
	}
	return s
}

func (s *Set) Size() int         { return len(s.items) }
func (s *Set) Length() int       { return len(s.items) }
func (s *Set) Items() []Value    { return slices.Clone(s.items) }
func (s *Set) Has(v Value) bool  { return indexOf(s.items, v) >= 0 }
func (s *Set) Add(v Value) *Set  { return NewSet(append(s.Items(), v)...) }
func (s *Set) Remove(v Value) *Set {
	return &Set{items: slices.DeleteFunc(s.Items(), v.Equal)}
}

func (s *Set) Type() Type {
	return SetType{Key: itemType(s.items)}
}

func (s *Set) String() string {
	return "{" + joinValues(s.items) + "}"
}

func (s *Set) Equal(other Value) bool {
	o, ok := other.(*Set)
	if !ok || len(o.items) != len(s.items) {
		return false
	}
	for _, item := range s.items {
		if !o.Has(item) {
			return false
		}
	}
	return true
}

// Map associates distinct keys with values, in insertion order.
type Map struct {
	keys   []Value
	values []Value
}

func NewMap(keys, values []Value) *Map {
	m := &Map{}
	for i, k := range keys {
		m = m.Set(k, values[i])
	}
	return m
}

func (m *Map) Size() int   { return len(m.keys) }
func (m *Map) Length() int { return len(m.keys) }

func (m *Map) Get(key Value) (Value, bool) {
	if i := indexOf(m.keys, key); i >= 0 {
		return m.values[i], true
	}
	return nil, false
}

func (m *Map) Has(key Value) bool {
	return indexOf(m.keys, key) >= 0
}

// Set returns a map with key bound to value, replacing any existing entry.
func (m *Map) Set(key, value Value) *Map {
	keys, values := slices.Clone(m.keys), slices.Clone(m.values)
	if i := indexOf(keys, key); i >= 0 {
		values[i] = value
	} else {
		keys = append(keys, key)
		values = append(values, value)
	}
	return &Map{keys: keys, values: values}
}

func (m *Map) Unset(key Value) *Map {
	i := indexOf(m.keys, key)
	if i < 0 {
		return m
	}
	return &Map{
		keys:   slices.Delete(slices.Clone(m.keys), i, i+1),
		values: slices.Delete(slices.Clone(m.values), i, i+1),
	}
}

func (m *Map) Keys() []Value   { return slices.Clone(m.keys) }
func (m *Map) Values() []Value { return slices.Clone(m.values) }

func (m *Map) Type() Type {
	return MapType{Key: itemType(m.keys), Value: itemType(m.values)}
}

func (m *Map) String() string {
	if len(m.keys) == 0 {
		return "{:}"
	}
	var parts []string
	for i, k := range m.keys {
		parts = append(parts, k.String()+":"+m.values[i].String())
	}
	return "{" + strings.Join(parts, " ") + "}"
}

func (m *Map) Equal(other Value) bool {
	o, ok := other.(*Map)
	if !ok || o.Size() != m.Size() {
		return false
	}
	for i, k := range m.keys {
		v, found := o.Get(k)
		if !found || !v.Equal(m.values[i]) {
			return false
		}
	}
	return true
}

// Structure is an instance of a structure definition. Its fields live in
// the scope of the evaluation that constructed it.
type Structure struct {
	Definition *StructureDefinition
	Fields     *Scope
}

// Field returns the value bound to name by the structure's inputs or body.
func (s *Structure) Field(name string) (Value, bool) {
	v, ok := s.Fields.names[name]
	return v, ok
}

func (s *Structure) Type() Type {
	return StructureType{Definition: s.Definition}
}

func (s *Structure) String() string {
	var parts []string
	for _, in := range s.Definition.Inputs {
		if v, ok := s.Field(in.Name); ok {
			parts = append(parts, in.Name+":"+v.String())
		}
	}
	return s.Definition.Name + "(" + strings.Join(parts, " ") + ")"
}

func (s *Structure) Equal(other Value) bool {
	o, ok := other.(*Structure)
	if !ok || o.Definition != s.Definition {
		return false
	}
	for _, in := range s.Definition.Inputs {
		a, _ := s.Field(in.Name)
		b, _ := o.Field(in.Name)
		if (a == nil) != (b == nil) {
			return false
		}
		if a != nil && !a.Equal(b) {
			return false
		}
	}
	return true
}

// Function is a user-defined function closed over the scope it was defined
// in.
type Function struct {
	Definition *FunctionDefinition
	Closure    *Scope
}

func (f *Function) Type() Type {
	return FunctionType{Inputs: inputTypes(nil, f.Definition.Inputs), Definition: f.Definition}
}

func (f *Function) String() string {
	if f.Definition.Name != "" {
		return "ƒ " + f.Definition.Name
	}
	return "ƒ"
}

func (f *Function) Equal(other Value) bool {
	o, ok := other.(*Function)
	return ok && o.Definition == f.Definition && o.Closure == f.Closure
}

// StructureDefinitionValue is a structure definition in scope, callable to
// construct structures.
type StructureDefinitionValue struct {
	Definition *StructureDefinition
	Closure    *Scope
}

func (s *StructureDefinitionValue) Type() Type {
	return StructureDefinitionType{Definition: s.Definition}
}

func (s *StructureDefinitionValue) String() string { return "•" + s.Definition.Name }

func (s *StructureDefinitionValue) Equal(other Value) bool {
	o, ok := other.(*StructureDefinitionValue)
	return ok && o.Definition == s.Definition && o.Closure == s.Closure
}

// BasisFunctionValue is a basis function bound to its receiver, e.g. the
// value of list.translate.
type BasisFunctionValue struct {
	Function *BasisFunction
	Receiver Value
}

func (b *BasisFunctionValue) Type() Type {
	return FunctionType{Inputs: b.Function.InputTypes(), Basis: b.Function, Receiver: b.Receiver.Type()}
}

func (b *BasisFunctionValue) String() string { return "ƒ " + b.Function.Name }

func (b *BasisFunctionValue) Equal(other Value) bool {
	o, ok := other.(*BasisFunctionValue)
	return ok && o.Function == b.Function && o.Receiver.Equal(b.Receiver)
}

// StreamConstructor is a stream definition referenced by name, e.g. Time.
type StreamConstructor struct {
	Definition *StreamDefinition
}

func (s *StreamConstructor) Type() Type {
	return s.Definition.FunctionType()
}

func (s *StreamConstructor) String() string { return s.Definition.Name }

func (s *StreamConstructor) Equal(other Value) bool {
	o, ok := other.(*StreamConstructor)
	return ok && o.Definition == s.Definition
}

func itemType(items []Value) Type {
	if len(items) == 0 {
		return NeverType{Reason: "empty"}
	}
	var types []Type
	for _, item := range items {
		types = append(types, Generalize(item.Type()))
	}
	return Union(nil, types...)
}

func indexOf(items []Value, v Value) int {
	return slices.IndexFunc(items, v.Equal)
}

func valuesEqual(a, b []Value) bool {
	return slices.EqualFunc(a, b, func(x, y Value) bool { return x.Equal(y) })
}

func joinValues(items []Value) string {
	parts := make([]string, len(items))
	for i, item := range items {
		parts[i] = item.String()
	}
	return strings.Join(parts, " ")
}
