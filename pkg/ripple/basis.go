package ripple

import (
	"fmt"
	"sort"
)

// Receiver kinds that basis methods are registered against.
const (
	NumberKind  = "number"
	TextKind    = "text"
	BooleanKind = "boolean"
	ListKind    = "list"
	SetKind     = "set"
	MapKind     = "map"
)

// receiverName is the binding that holds a basis method's receiver. It
// cannot be written in a program, so it never collides with inputs.
const receiverName = "·receiver"

// BasisInput describes one input of a basis function or stream.
type BasisInput struct {
	Name string
	Type Type
	// Default is used when a stream is constructed without this input.
	Default Value
}

// OutputFunc computes the type a basis function returns for a receiver
// and the call's input expressions.
type OutputFunc func(ctx *Context, receiver Type, inputs []Expression) Type

// NativeFunc implements a basis function directly in Go.
type NativeFunc func(ev *Evaluator, node Node, receiver Value, args []Value) Value

// BasisFunction is a built-in method of a receiver kind. It is either
// native or hand-compiled into steps so that it can call back into
// program functions without recursing.
type BasisFunction struct {
	Name   string
	Doc    string
	Kind   string
	Inputs []BasisInput

	Output OutputFunc
	Native NativeFunc
	Steps  []*Step
}

// InputTypes returns the declared input types.
func (f *BasisFunction) InputTypes() []Type {
	types := make([]Type, len(f.Inputs))
	for i, in := range f.Inputs {
		types[i] = in.Type
	}
	return types
}

// OutputType returns the type of calling the function on receiver with
// inputs.
func (f *BasisFunction) OutputType(ctx *Context, receiver Type, inputs []Expression) Type {
	if f.Output == nil {
		return UnknownType{Reason: f.Name + " has no declared output"}
	}
	return f.Output(ctx, Concrete(receiver), inputs)
}

func (f *BasisFunction) String() string {
	return fmt.Sprintf("%s.%s", f.Kind, f.Name)
}

// Basis is the library of built-in methods and streams available to every
// program.
type Basis struct {
	methods map[string]map[string]*BasisFunction
	streams map[string]*StreamDefinition
}

// NewBasis returns the standard basis.
func NewBasis() *Basis {
	b := &Basis{
		methods: map[string]map[string]*BasisFunction{},
		streams: map[string]*StreamDefinition{},
	}
	registerListBasis(b)
	registerSetBasis(b)
	registerMapBasis(b)
	registerTextBasis(b)
	registerNumberBasis(b)
	registerStreams(b)
	return b
}

// Method finds a method of the given receiver kind.
func (b *Basis) Method(kind, name string) *BasisFunction {
	if b == nil {
		return nil
	}
	return b.methods[kind][name]
}

// Methods lists the methods of a receiver kind by name.
func (b *Basis) Methods(kind string) []*BasisFunction {
	var fns []*BasisFunction
	for _, fn := range b.methods[kind] {
		fns = append(fns, fn)
	}
	sort.Slice(fns, func(i, j int) bool { return fns[i].Name < fns[j].Name })
	return fns
}

// Stream finds a stream definition by name.
func (b *Basis) Stream(name string) *StreamDefinition {
	if b == nil {
		return nil
	}
	return b.streams[name]
}

// Streams lists the stream definitions by name.
func (b *Basis) Streams() []*StreamDefinition {
	var defs []*StreamDefinition
	for _, def := range b.streams {
		defs = append(defs, def)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

// DefineStream registers a stream definition.
func (b *Basis) DefineStream(def *StreamDefinition) {
	b.streams[def.Name] = def
}

// MethodBuilder provides a fluent API for defining basis methods.
type MethodBuilder struct {
	basis *Basis
	fn    *BasisFunction
}

// Define starts defining a method on a receiver kind.
func (b *Basis) Define(kind, name string) *MethodBuilder {
	return &MethodBuilder{basis: b, fn: &BasisFunction{Name: name, Kind: kind}}
}

// Doc sets the documentation string.
func (m *MethodBuilder) Doc(doc string) *MethodBuilder {
	m.fn.Doc = doc
	return m
}

// Params adds inputs as name, type pairs.
func (m *MethodBuilder) Params(pairs ...any) *MethodBuilder {
	if len(pairs)%2 != 0 {
		panic(fmt.Sprintf("Params: odd number of arguments for %s", m.fn))
	}
	for i := 0; i < len(pairs); i += 2 {
		name, ok := pairs[i].(string)
		if !ok {
			panic(fmt.Sprintf("Params: expected string at position %d, got %T", i, pairs[i]))
		}
		typ, ok := pairs[i+1].(Type)
		if !ok {
			panic(fmt.Sprintf("Params: expected Type at position %d, got %T", i+1, pairs[i+1]))
		}
		m.fn.Inputs = append(m.fn.Inputs, BasisInput{Name: name, Type: typ})
	}
	return m
}

// Returns sets how the output type is computed.
func (m *MethodBuilder) Returns(output OutputFunc) *MethodBuilder {
	m.fn.Output = output
	return m
}

// Impl registers a native implementation.
func (m *MethodBuilder) Impl(fn NativeFunc) {
	m.fn.Native = fn
	m.register()
}

// Compiled registers a hand-compiled implementation.
func (m *MethodBuilder) Compiled(steps []*Step) {
	m.fn.Steps = steps
	m.register()
}

func (m *MethodBuilder) register() {
	kind := m.fn.Kind
	if m.basis.methods[kind] == nil {
		m.basis.methods[kind] = map[string]*BasisFunction{}
	}
	m.basis.methods[kind][m.fn.Name] = m.fn
}

// returns is an OutputFunc for a fixed type.
func returns(t Type) OutputFunc {
	return func(*Context, Type, []Expression) Type { return t }
}

// sameAsReceiver is an OutputFunc returning the receiver's type.
func sameAsReceiver(_ *Context, receiver Type, _ []Expression) Type {
	return receiver
}

// receiverItem is the item type of a list receiver, or the key type of a set.
func receiverItem(receiver Type) Type {
	switch r := receiver.(type) {
	case ListType:
		return r.Item
	case SetType:
		return r.Key
	case MapType:
		return r.Key
	}
	return UnknownType{Reason: "not a collection"}
}

// callbackOutput is the output type of the function passed as inputs[i].
func callbackOutput(ctx *Context, inputs []Expression, i int) Type {
	if ctx == nil || i >= len(inputs) {
		return UnknownType{Reason: "missing function"}
	}
	fn, ok := Concrete(ctx.TypeOf(inputs[i])).(FunctionType)
	if !ok || fn.Output == nil {
		return UnknownType{Reason: "untyped function"}
	}
	return fn.Output
}

// inputType is the type of inputs[i].
func inputType(ctx *Context, inputs []Expression, i int) Type {
	if ctx == nil || i >= len(inputs) {
		return UnknownType{Reason: "missing input"}
	}
	return ctx.TypeOf(inputs[i])
}

// anything accepts any input; callbacks are checked when called.
var anything = UnknownType{Reason: "any"}

// arity is the number of inputs a callable value takes.
func arity(fn Value) (int, bool) {
	switch f := fn.(type) {
	case *Function:
		return len(f.Definition.Inputs), true
	case *BasisFunctionValue:
		return len(f.Function.Inputs), true
	case *StructureDefinitionValue:
		return len(f.Definition.Inputs), true
	}
	return 0, false
}
