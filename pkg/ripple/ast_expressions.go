package ripple

import (
	"fmt"
)

var (
	propertyGrammar    = Grammar{one("structure", "Expression")}
	evaluateGrammar    = Grammar{one("function", "Expression"), many("inputs", "Expression")}
	conditionalGrammar = Grammar{one("condition", "Expression"), one("yes", "Expression"), one("no", "Expression")}
	functionGrammar    = Grammar{many("inputs", "Bind"), optional("output", "Type"), one("body", "Expression")}
	structureGrammar   = Grammar{many("inputs", "Bind"), optional("body", "Block")}
	listAccessGrammar  = Grammar{one("list", "Expression"), one("index", "Expression")}
	isGrammar          = Grammar{one("expression", "Expression"), one("type", "Type")}
	changedGrammar     = Grammar{one("stream", "Expression")}
	reactionGrammar    = Grammar{one("initial", "Expression"), one("condition", "Expression"), one("next", "Expression")}
)

// Reference is a name.
type Reference struct {
	Name string
	Loc  *SourceLocation
}

var _ Expression = (*Reference)(nil)

func (r *Reference) Kind() string                       { return "Reference" }
func (r *Reference) Grammar() Grammar                   { return leafGrammar }
func (r *Reference) Label() string                      { return r.Name }
func (r *Reference) GetSourceLocation() *SourceLocation { return r.Loc }
func (r *Reference) Get(field string) any               { panic(unknownField(r, field)) }
func (r *Reference) With(field string, _ any) Node      { panic(unknownField(r, field)) }

func (r *Reference) ComputeType(ctx *Context) Type {
	def := ctx.Resolve(r, r.Name)
	if def == nil {
		return UnknownType{Reason: "unknown name " + r.Name}
	}
	t := ctx.DefinitionType(def)
	if bind, ok := def.(*Bind); ok {
		t = ctx.Narrow(r, bind, t)
	}
	return t
}

func (r *Reference) Compile(*Context) []*Step {
	return steps(NewFinish(r))
}

func (r *Reference) Evaluate(ev *Evaluator) Value {
	if v, ok := ev.Resolve(r.Name); ok {
		return v
	}
	if sd := ev.ctx.Basis.Stream(r.Name); sd != nil {
		return &StreamConstructor{Definition: sd}
	}
	return ev.Exception(UnboundName, r, "'%s' is not defined", r.Name)
}

func (r *Reference) Conflicts(ctx *Context) []Conflict {
	def := ctx.Resolve(r, r.Name)
	if def == nil {
		return []Conflict{{
			Kind:    UnknownName,
			Node:    r,
			Message: "'" + r.Name + "' is not defined",
		}}
	}
	if node, ok := def.(Node); ok && ctx.IsBefore(r, node) {
		return []Conflict{{
			Kind:    ReferenceBeforeBind,
			Node:    r,
			Message: "'" + r.Name + "' is used before it is defined",
			Related: []Node{node},
		}}
	}
	return nil
}

// PropertyReference is structure.name: a field of a structure, or a basis
// method bound to its receiver.
type PropertyReference struct {
	Structure Expression
	Name      string
	Loc       *SourceLocation
}

var _ Expression = (*PropertyReference)(nil)

func (p *PropertyReference) Kind() string                       { return "PropertyReference" }
func (p *PropertyReference) Grammar() Grammar                   { return propertyGrammar }
func (p *PropertyReference) Label() string                      { return p.Name }
func (p *PropertyReference) GetSourceLocation() *SourceLocation { return p.Loc }

func (p *PropertyReference) Get(field string) any {
	if field == "structure" {
		return p.Structure
	}
	panic(unknownField(p, field))
}

func (p *PropertyReference) With(field string, value any) Node {
	if field != "structure" {
		panic(unknownField(p, field))
	}
	c := *p
	c.Structure = nodeOf[Expression](value)
	return &c
}

func (p *PropertyReference) ComputeType(ctx *Context) Type {
	receiver := Concrete(ctx.TypeOf(p.Structure))
	if st, ok := receiver.(StructureType); ok {
		if def := st.Definition.Member(p.Name); def != nil {
			return ctx.DefinitionType(def)
		}
	}
	if fn := ctx.Basis.Method(KindOf(receiver), p.Name); fn != nil {
		return FunctionType{Inputs: fn.InputTypes(), Basis: fn, Receiver: receiver}
	}
	return UnknownType{Reason: "unknown property " + p.Name}
}

func (p *PropertyReference) Compile(ctx *Context) []*Step {
	return sequence(steps(NewStart(p, nil)), ctx.Compile(p.Structure), steps(NewFinish(p)))
}

func (p *PropertyReference) Evaluate(ev *Evaluator) Value {
	receiver := ev.PopValue()
	if exc, ok := receiver.(*Exception); ok {
		return exc
	}
	if s, ok := receiver.(*Structure); ok {
		if v, found := s.Field(p.Name); found {
			return v
		}
	}
	if fn := ev.ctx.Basis.Method(KindOf(receiver.Type()), p.Name); fn != nil {
		return &BasisFunctionValue{Function: fn, Receiver: receiver}
	}
	return ev.Exception(UnboundName, p, "%s has no property '%s'", receiver, p.Name)
}

func (p *PropertyReference) Conflicts(ctx *Context) []Conflict {
	receiver := Concrete(ctx.TypeOf(p.Structure))
	if isUnknown(receiver) {
		return nil
	}
	if _, unknown := ctx.TypeOf(p).(UnknownType); !unknown {
		return nil
	}
	return []Conflict{{
		Kind:    UnknownProperty,
		Node:    p,
		Message: fmt.Sprintf("%s has no property '%s'", receiver, p.Name),
	}}
}

// Evaluate calls a function, structure definition, basis method or stream
// constructor with inputs.
type Evaluate struct {
	Function Expression
	Inputs   []Expression
	Loc      *SourceLocation
}

var _ Expression = (*Evaluate)(nil)

func (e *Evaluate) Kind() string                       { return "Evaluate" }
func (e *Evaluate) Grammar() Grammar                   { return evaluateGrammar }
func (e *Evaluate) Label() string                      { return "" }
func (e *Evaluate) GetSourceLocation() *SourceLocation { return e.Loc }

func (e *Evaluate) Get(field string) any {
	switch field {
	case "function":
		return e.Function
	case "inputs":
		return nodeList(e.Inputs)
	}
	panic(unknownField(e, field))
}

func (e *Evaluate) With(field string, value any) Node {
	c := *e
	switch field {
	case "function":
		c.Function = nodeOf[Expression](value)
	case "inputs":
		c.Inputs = listOf[Expression](value)
	default:
		panic(unknownField(e, field))
	}
	return &c
}

func (e *Evaluate) ComputeType(ctx *Context) Type {
	switch fn := Concrete(ctx.TypeOf(e.Function)).(type) {
	case FunctionType:
		switch {
		case fn.Basis != nil:
			return fn.Basis.OutputType(ctx, fn.Receiver, e.Inputs)
		case fn.Stream != nil:
			return StreamType{Value: fn.Stream.ValueType}
		case fn.Output != nil:
			return fn.Output
		}
	case StructureDefinitionType:
		return StructureType{Definition: fn.Definition}
	}
	return UnknownType{Reason: "not a function"}
}

func (e *Evaluate) Compile(ctx *Context) []*Step {
	var inputs []*Step
	for _, in := range e.Inputs {
		inputs = append(inputs, ctx.Compile(in)...)
	}
	return sequence(
		steps(NewStart(e, nil)),
		ctx.Compile(e.Function),
		inputs,
		steps(NewStep(NextStep, e, e.call), NewFinish(e)),
	)
}

func (e *Evaluate) call(ev *Evaluator) Value {
	args := ev.PopValues(len(e.Inputs))
	fn := ev.PopValue()
	if exc := firstException(append([]Value{fn}, args...)...); exc != nil {
		return exc
	}
	return ev.Call(e, fn, args)
}

func (e *Evaluate) Evaluate(ev *Evaluator) Value {
	return ev.PopValue()
}

func (e *Evaluate) Conflicts(ctx *Context) []Conflict {
	var expected []Type
	var names []string
	switch fn := Concrete(ctx.TypeOf(e.Function)).(type) {
	case UnknownType:
		return nil
	case FunctionType:
		expected = fn.Inputs
		switch {
		case fn.Definition != nil:
			names = bindNames(fn.Definition.Inputs)
		case fn.Basis != nil:
			for _, in := range fn.Basis.Inputs {
				names = append(names, in.Name)
			}
		case fn.Stream != nil:
			for _, in := range fn.Stream.Inputs {
				names = append(names, in.Name)
			}
		}
	case StructureDefinitionType:
		expected = inputTypes(ctx, fn.Definition.Inputs)
		names = bindNames(fn.Definition.Inputs)
	default:
		return []Conflict{{
			Kind:    NotAFunctionConflict,
			Node:    e,
			Message: fmt.Sprintf("%s is not a function", fn),
			Related: []Node{e.Function},
		}}
	}

	var conflicts []Conflict
	optional := optionalInputs(ctx, e)
	switch {
	case len(e.Inputs) < len(expected)-optional:
		conflicts = append(conflicts, Conflict{
			Kind:    MissingInput,
			Node:    e,
			Message: fmt.Sprintf("missing input '%s'", names[len(e.Inputs)]),
		})
	case len(e.Inputs) > len(expected):
		conflicts = append(conflicts, Conflict{
			Kind:    UnexpectedInputs,
			Node:    e,
			Message: fmt.Sprintf("expected %d inputs, got %d", len(expected), len(e.Inputs)),
			Related: nodeList(e.Inputs[len(expected):]),
		})
	}
	for i, in := range e.Inputs {
		if i >= len(expected) {
			break
		}
		if actual := ctx.TypeOf(in); !Accepts(expected[i], actual, ctx) {
			conflicts = append(conflicts, Conflict{
				Kind:    IncompatibleInput,
				Node:    in,
				Message: fmt.Sprintf("'%s' expects %s, got %s", names[i], expected[i], actual),
				Related: []Node{e},
			})
		}
	}
	return conflicts
}

// optionalInputs counts trailing inputs the callee can do without.
func optionalInputs(ctx *Context, e *Evaluate) int {
	fn, ok := Concrete(ctx.TypeOf(e.Function)).(FunctionType)
	if !ok || fn.Stream == nil {
		return 0
	}
	n := 0
	for _, in := range fn.Stream.Inputs {
		if in.Default != nil {
			n++
		}
	}
	return n
}

func bindNames(binds []*Bind) []string {
	names := make([]string, len(binds))
	for i, b := range binds {
		names[i] = b.Name
	}
	return names
}

// Conditional is condition ? yes no.
type Conditional struct {
	Condition Expression
	Yes       Expression
	No        Expression
	Loc       *SourceLocation
}

var _ Expression = (*Conditional)(nil)

func (c *Conditional) Kind() string                       { return "Conditional" }
func (c *Conditional) Grammar() Grammar                   { return conditionalGrammar }
func (c *Conditional) Label() string                      { return "" }
func (c *Conditional) GetSourceLocation() *SourceLocation { return c.Loc }

func (c *Conditional) Get(field string) any {
	switch field {
	case "condition":
		return c.Condition
	case "yes":
		return c.Yes
	case "no":
		return c.No
	}
	panic(unknownField(c, field))
}

func (c *Conditional) With(field string, value any) Node {
	cp := *c
	switch field {
	case "condition":
		cp.Condition = nodeOf[Expression](value)
	case "yes":
		cp.Yes = nodeOf[Expression](value)
	case "no":
		cp.No = nodeOf[Expression](value)
	default:
		panic(unknownField(c, field))
	}
	return &cp
}

func (c *Conditional) ComputeType(ctx *Context) Type {
	return Union(ctx, ctx.TypeOf(c.Yes), ctx.TypeOf(c.No))
}

func (c *Conditional) Compile(ctx *Context) []*Step {
	yes := ctx.Compile(c.Yes)
	no := ctx.Compile(c.No)
	return sequence(
		steps(NewStart(c, nil)),
		ctx.Compile(c.Condition),
		steps(NewJumpIf(c, len(yes)+1, false, false, nil)),
		yes,
		steps(NewJump(c, len(no))),
		no,
		steps(NewFinish(c)),
	)
}

func (c *Conditional) Evaluate(ev *Evaluator) Value {
	return ev.PopValue()
}

func (c *Conditional) Conflicts(ctx *Context) []Conflict {
	t := ctx.TypeOf(c.Condition)
	if Accepts(BooleanType{}, t, ctx) {
		return nil
	}
	return []Conflict{{
		Kind:    ExpectedBooleanCondition,
		Node:    c.Condition,
		Message: "condition must be ⊤ or ⊥, not " + t.String(),
		Related: []Node{c},
	}}
}

// FunctionDefinition is ƒ name(inputs) body. Evaluating it creates a
// closure over the current scope and binds it to its name.
type FunctionDefinition struct {
	Name   string
	Inputs []*Bind
	Output TypeNode
	Body   Expression
	Loc    *SourceLocation
}

var _ Expression = (*FunctionDefinition)(nil)

func (f *FunctionDefinition) Kind() string                       { return "FunctionDefinition" }
func (f *FunctionDefinition) Grammar() Grammar                   { return functionGrammar }
func (f *FunctionDefinition) Label() string {
	if f.Name == "" {
		return "ƒ(" + inputNames(f.Inputs) + ")"
	}
	return f.Name
}
func (f *FunctionDefinition) GetSourceLocation() *SourceLocation { return f.Loc }
func (f *FunctionDefinition) DefinitionName() string             { return f.Name }

func (f *FunctionDefinition) Get(field string) any {
	switch field {
	case "inputs":
		return nodeList(f.Inputs)
	case "output":
		return f.Output
	case "body":
		return f.Body
	}
	panic(unknownField(f, field))
}

func (f *FunctionDefinition) With(field string, value any) Node {
	c := *f
	switch field {
	case "inputs":
		c.Inputs = listOf[*Bind](value)
	case "output":
		c.Output = nodeOf[TypeNode](value)
	case "body":
		c.Body = nodeOf[Expression](value)
	default:
		panic(unknownField(f, field))
	}
	return &c
}

func (f *FunctionDefinition) ComputeType(ctx *Context) Type {
	return FunctionType{
		Inputs:     inputTypes(ctx, f.Inputs),
		Output:     f.OutputType(ctx),
		Definition: f,
	}
}

// OutputType is the declared output type, or the body's type.
func (f *FunctionDefinition) OutputType(ctx *Context) Type {
	if f.Output != nil {
		return f.Output.Resolve(ctx)
	}
	return ctx.TypeOf(f.Body)
}

func (f *FunctionDefinition) Compile(*Context) []*Step {
	return steps(NewFinish(f))
}

func (f *FunctionDefinition) Evaluate(ev *Evaluator) Value {
	fn := &Function{Definition: f, Closure: ev.current().scope}
	if f.Name != "" {
		ev.Bind(f.Name, fn)
	}
	return fn
}

func (f *FunctionDefinition) Conflicts(ctx *Context) []Conflict {
	if f.Output == nil {
		return nil
	}
	declared := f.Output.Resolve(ctx)
	actual := ctx.TypeOf(f.Body)
	if Accepts(declared, actual, ctx) {
		return nil
	}
	return []Conflict{{
		Kind:    IncompatibleBind,
		Node:    f.Body,
		Message: fmt.Sprintf("function %s declares %s but returns %s", f.Name, declared, actual),
		Related: []Node{f},
	}}
}

// StructureDefinition is •Name(inputs) (body). Calling it evaluates the body
// in a scope holding the inputs, and that scope becomes the structure's
// fields.
type StructureDefinition struct {
	Name   string
	Inputs []*Bind
	Body   *Block
	Loc    *SourceLocation
}

var _ Expression = (*StructureDefinition)(nil)

func (s *StructureDefinition) Kind() string                       { return "StructureDefinition" }
func (s *StructureDefinition) Grammar() Grammar                   { return structureGrammar }
func (s *StructureDefinition) Label() string                      { return s.Name }
func (s *StructureDefinition) GetSourceLocation() *SourceLocation { return s.Loc }
func (s *StructureDefinition) DefinitionName() string             { return s.Name }

func (s *StructureDefinition) Get(field string) any {
	switch field {
	case "inputs":
		return nodeList(s.Inputs)
	case "body":
		return optionalNode(s.Body)
	}
	panic(unknownField(s, field))
}

func (s *StructureDefinition) With(field string, value any) Node {
	c := *s
	switch field {
	case "inputs":
		c.Inputs = listOf[*Bind](value)
	case "body":
		c.Body = nodeOf[*Block](value)
	default:
		panic(unknownField(s, field))
	}
	return &c
}

// Member finds the input or body definition called name.
func (s *StructureDefinition) Member(name string) Definition {
	for _, in := range s.Inputs {
		if in.Name == name {
			return in
		}
	}
	if s.Body != nil {
		for _, stmt := range s.Body.Statements {
			if declaredName(stmt) == name {
				return stmt.(Definition)
			}
		}
	}
	return nil
}

func (s *StructureDefinition) ComputeType(*Context) Type {
	return StructureDefinitionType{Definition: s}
}

func (s *StructureDefinition) Compile(*Context) []*Step {
	return steps(NewFinish(s))
}

func (s *StructureDefinition) Evaluate(ev *Evaluator) Value {
	v := &StructureDefinitionValue{Definition: s, Closure: ev.current().scope}
	ev.Bind(s.Name, v)
	return v
}

// compileConstructor compiles the body of a structure inline, so that body
// binds land in the constructing evaluation's own scope next to the inputs.
func (s *StructureDefinition) compileConstructor(ctx *Context) []*Step {
	var body []*Step
	n := 0
	if s.Body != nil {
		n = len(s.Body.Statements)
		for _, stmt := range s.Body.Statements {
			body = append(body, ctx.Compile(stmt)...)
		}
	}
	return sequence(
		steps(NewStart(s, nil)),
		body,
		steps(NewStep(FinishStep, s, func(ev *Evaluator) Value {
			ev.PopValues(n)
			return &Structure{Definition: s, Fields: ev.current().scope}
		})),
	)
}

// ListAccess is list[index], 1-based.
type ListAccess struct {
	List  Expression
	Index Expression
	Loc   *SourceLocation
}

var _ Expression = (*ListAccess)(nil)

func (l *ListAccess) Kind() string                       { return "ListAccess" }
func (l *ListAccess) Grammar() Grammar                   { return listAccessGrammar }
func (l *ListAccess) Label() string                      { return "" }
func (l *ListAccess) GetSourceLocation() *SourceLocation { return l.Loc }

func (l *ListAccess) Get(field string) any {
	switch field {
	case "list":
		return l.List
	case "index":
		return l.Index
	}
	panic(unknownField(l, field))
}

func (l *ListAccess) With(field string, value any) Node {
	c := *l
	switch field {
	case "list":
		c.List = nodeOf[Expression](value)
	case "index":
		c.Index = nodeOf[Expression](value)
	default:
		panic(unknownField(l, field))
	}
	return &c
}

func (l *ListAccess) ComputeType(ctx *Context) Type {
	if lt, ok := Concrete(ctx.TypeOf(l.List)).(ListType); ok {
		return lt.Item
	}
	return UnknownType{Reason: "not a list"}
}

func (l *ListAccess) Compile(ctx *Context) []*Step {
	return sequence(
		steps(NewStart(l, nil)),
		ctx.Compile(l.List),
		ctx.Compile(l.Index),
		steps(NewFinish(l)),
	)
}

func (l *ListAccess) Evaluate(ev *Evaluator) Value {
	index := ev.PopValue()
	list := ev.PopValue()
	if exc := firstException(list, index); exc != nil {
		return exc
	}
	lst, ok := list.(*List)
	if !ok {
		return ev.TypeMismatch(l.List, ListType{Item: UnknownType{}}, list)
	}
	n, ok := index.(Number)
	if !ok || !n.Num.IsInteger() {
		return ev.TypeMismatch(l.Index, NumberType{}, index)
	}
	item, found := lst.Get(n.Int())
	if !found {
		return ev.Exception(MissingValue, l, "no item at %s in a list of %d", n, lst.Length())
	}
	return item
}

func (l *ListAccess) Conflicts(ctx *Context) []Conflict {
	t := Concrete(ctx.TypeOf(l.List))
	switch t.(type) {
	case ListType, UnknownType:
		return nil
	}
	return []Conflict{{
		Kind:    NotAList,
		Node:    l.List,
		Message: t.String() + " is not a list",
		Related: []Node{l},
	}}
}

// Is checks a value's type at runtime: value•Type.
type Is struct {
	Expression Expression
	Type       TypeNode
	Loc        *SourceLocation
}

var _ Expression = (*Is)(nil)

func (i *Is) Kind() string                       { return "Is" }
func (i *Is) Grammar() Grammar                   { return isGrammar }
func (i *Is) Label() string                      { return "" }
func (i *Is) GetSourceLocation() *SourceLocation { return i.Loc }

func (i *Is) Get(field string) any {
	switch field {
	case "expression":
		return i.Expression
	case "type":
		return i.Type
	}
	panic(unknownField(i, field))
}

func (i *Is) With(field string, value any) Node {
	c := *i
	switch field {
	case "expression":
		c.Expression = nodeOf[Expression](value)
	case "type":
		c.Type = nodeOf[TypeNode](value)
	default:
		panic(unknownField(i, field))
	}
	return &c
}

func (i *Is) ComputeType(*Context) Type {
	return BooleanType{}
}

func (i *Is) Compile(ctx *Context) []*Step {
	return sequence(steps(NewStart(i, nil)), ctx.Compile(i.Expression), steps(NewFinish(i)))
}

func (i *Is) Evaluate(ev *Evaluator) Value {
	v := ev.PopValue()
	if exc, ok := v.(*Exception); ok {
		return exc
	}
	return Bool{Bool: Accepts(i.Type.Resolve(ev.ctx), v.Type(), ev.ctx)}
}

// Changed is ∆ stream: true when the current pass was caused by the stream.
type Changed struct {
	Stream Expression
	Loc    *SourceLocation
}

var _ Expression = (*Changed)(nil)

func (c *Changed) Kind() string                       { return "Changed" }
func (c *Changed) Grammar() Grammar                   { return changedGrammar }
func (c *Changed) Label() string                      { return "" }
func (c *Changed) GetSourceLocation() *SourceLocation { return c.Loc }

func (c *Changed) Get(field string) any {
	if field == "stream" {
		return c.Stream
	}
	panic(unknownField(c, field))
}

func (c *Changed) With(field string, value any) Node {
	if field != "stream" {
		panic(unknownField(c, field))
	}
	cp := *c
	cp.Stream = nodeOf[Expression](value)
	return &cp
}

func (c *Changed) ComputeType(*Context) Type {
	return BooleanType{}
}

func (c *Changed) Compile(ctx *Context) []*Step {
	return sequence(steps(NewStart(c, nil)), ctx.Compile(c.Stream), steps(NewFinish(c)))
}

func (c *Changed) Evaluate(ev *Evaluator) Value {
	if exc, ok := ev.PopValue().(*Exception); ok {
		return exc
	}
	trigger := ev.Trigger()
	if trigger == nil {
		return False
	}
	source := ev.ctx.StreamSource(c.Stream)
	if source == nil {
		return False
	}
	s := ev.program.StreamAt(source)
	return Bool{Bool: s != nil && s == trigger}
}

func (c *Changed) Conflicts(ctx *Context) []Conflict {
	if ctx.StreamSource(c.Stream) != nil {
		return nil
	}
	return []Conflict{{
		Kind:    NotAStream,
		Node:    c.Stream,
		Message: "∆ expects a stream, got " + ctx.TypeOf(c.Stream).String(),
		Related: []Node{c},
	}}
}

// Reaction is initial … condition … next. Its value starts as initial; on
// later passes it becomes next whenever condition holds, with the previous
// value available as '.'.
type Reaction struct {
	Initial   Expression
	Condition Expression
	Next      Expression
	Loc       *SourceLocation
}

var _ Expression = (*Reaction)(nil)

func (r *Reaction) Kind() string                       { return "Reaction" }
func (r *Reaction) Grammar() Grammar                   { return reactionGrammar }
func (r *Reaction) Label() string                      { return "" }
func (r *Reaction) GetSourceLocation() *SourceLocation { return r.Loc }

func (r *Reaction) Get(field string) any {
	switch field {
	case "initial":
		return r.Initial
	case "condition":
		return r.Condition
	case "next":
		return r.Next
	}
	panic(unknownField(r, field))
}

func (r *Reaction) With(field string, value any) Node {
	c := *r
	switch field {
	case "initial":
		c.Initial = nodeOf[Expression](value)
	case "condition":
		c.Condition = nodeOf[Expression](value)
	case "next":
		c.Next = nodeOf[Expression](value)
	default:
		panic(unknownField(r, field))
	}
	return &c
}

func (r *Reaction) ComputeType(ctx *Context) Type {
	return Union(ctx, Generalize(ctx.TypeOf(r.Initial)), ctx.TypeOf(r.Next))
}

func (r *Reaction) Compile(ctx *Context) []*Step {
	initial := ctx.Compile(r.Initial)
	condition := ctx.Compile(r.Condition)
	next := ctx.Compile(r.Next)
	return sequence(
		steps(NewStart(r, func(ev *Evaluator) Value {
			if prior, ok := ev.Prior(r); ok {
				ev.Bind(".", prior)
				ev.Jump(len(initial))
			}
			return nil
		})),
		initial,
		condition,
		steps(NewStep(NextStep, r, func(ev *Evaluator) Value {
			cond := ev.PopValue()
			if exc, ok := cond.(*Exception); ok {
				return exc
			}
			prior, ok := ev.Prior(r)
			if !ok {
				// first pass: the condition ran only to start its streams
				ev.Jump(len(next))
				return nil
			}
			b, ok := cond.(Bool)
			if !ok {
				return ev.TypeMismatch(r.Condition, BooleanType{}, cond)
			}
			if !b.Bool {
				ev.PushValue(prior)
				ev.Jump(len(next))
			}
			return nil
		})),
		next,
		steps(NewFinish(r)),
	)
}

func (r *Reaction) Evaluate(ev *Evaluator) Value {
	v := ev.PopValue()
	if exc, ok := v.(*Exception); ok {
		return exc
	}
	ev.SetPrior(r, v)
	return v
}

func (r *Reaction) Conflicts(ctx *Context) []Conflict {
	t := ctx.TypeOf(r.Condition)
	if Accepts(BooleanType{}, t, ctx) {
		return nil
	}
	return []Conflict{{
		Kind:    ExpectedBooleanCondition,
		Node:    r.Condition,
		Message: "reaction condition must be ⊤ or ⊥, not " + t.String(),
		Related: []Node{r},
	}}
}

// This is '.', the previous value of the enclosing reaction.
type This struct {
	Loc *SourceLocation
}

var _ Expression = (*This)(nil)

func (t *This) Kind() string                       { return "This" }
func (t *This) Grammar() Grammar                   { return leafGrammar }
func (t *This) Label() string                      { return "." }
func (t *This) GetSourceLocation() *SourceLocation { return t.Loc }
func (t *This) Get(field string) any               { panic(unknownField(t, field)) }
func (t *This) With(field string, _ any) Node      { panic(unknownField(t, field)) }

func (t *This) ComputeType(ctx *Context) Type {
	for _, a := range ctx.Root.Ancestors(t) {
		if r, ok := a.(*Reaction); ok && ctx.Root.IsInside(t, r, "next") {
			return Generalize(ctx.TypeOf(r.Initial))
		}
	}
	return UnknownType{Reason: "'.' outside a reaction"}
}

func (t *This) Compile(*Context) []*Step {
	return steps(NewFinish(t))
}

func (t *This) Evaluate(ev *Evaluator) Value {
	if v, ok := ev.Resolve("."); ok {
		return v
	}
	return ev.Exception(UnboundName, t, "'.' has no value outside a reaction")
}
