package ripple

import (
	"strings"
)

// Expression is a node that produces a value.
type Expression interface {
	Node

	// ComputeType determines the expression's static type. Call it through
	// Context.TypeOf, which memoizes and guards against cycles.
	ComputeType(ctx *Context) Type

	// Compile returns the expression's steps, including its children's.
	Compile(ctx *Context) []*Step

	// Evaluate is the action of the expression's Finish step.
	Evaluate(ev *Evaluator) Value
}

// TypeNode is a node written in type position, e.g. #m or [''].
type TypeNode interface {
	Node
	Resolve(ctx *Context) Type
}

// Definition is anything a name can refer to.
type Definition interface {
	DefinitionName() string
}

// conflicted is implemented by nodes that can have conflicts.
type conflicted interface {
	Conflicts(ctx *Context) []Conflict
}

var (
	sourceGrammar = Grammar{one("body", "Block")}
	blockGrammar  = Grammar{many("statements", "Expression")}
	bindGrammar   = Grammar{optional("type", "Type"), optional("value", "Expression")}
)

// Source is the root of a parsed program.
type Source struct {
	Name string
	Text string
	Body *Block
	Loc  *SourceLocation
}

var _ Expression = (*Source)(nil)

func (s *Source) Kind() string                       { return "Source" }
func (s *Source) Grammar() Grammar                   { return sourceGrammar }
func (s *Source) Label() string                      { return s.Name }
func (s *Source) GetSourceLocation() *SourceLocation { return s.Loc }

func (s *Source) Get(field string) any {
	switch field {
	case "body":
		return optionalNode(s.Body)
	}
	panic(unknownField(s, field))
}

func (s *Source) With(field string, value any) Node {
	c := *s
	switch field {
	case "body":
		c.Body = nodeOf[*Block](value)
	default:
		panic(unknownField(s, field))
	}
	return &c
}

func (s *Source) ComputeType(ctx *Context) Type {
	return ctx.TypeOf(s.Body)
}

func (s *Source) Compile(ctx *Context) []*Step {
	return ctx.Compile(s.Body)
}

func (s *Source) Evaluate(ev *Evaluator) Value {
	return ev.PopValue()
}

// Block is a parenthesized sequence of statements with its own scope. Its
// value is the value of the last statement.
type Block struct {
	Statements []Expression
	Loc        *SourceLocation
}

var _ Expression = (*Block)(nil)

func (b *Block) Kind() string                       { return "Block" }
func (b *Block) Grammar() Grammar                   { return blockGrammar }
func (b *Block) Label() string                      { return "" }
func (b *Block) GetSourceLocation() *SourceLocation { return b.Loc }

func (b *Block) Get(field string) any {
	switch field {
	case "statements":
		return nodeList(b.Statements)
	}
	panic(unknownField(b, field))
}

func (b *Block) With(field string, value any) Node {
	c := *b
	switch field {
	case "statements":
		c.Statements = listOf[Expression](value)
	default:
		panic(unknownField(b, field))
	}
	return &c
}

func (b *Block) ComputeType(ctx *Context) Type {
	if len(b.Statements) == 0 {
		return NoneType{}
	}
	return ctx.TypeOf(b.Statements[len(b.Statements)-1])
}

func (b *Block) Compile(ctx *Context) []*Step {
	var body []*Step
	for _, stmt := range b.Statements {
		body = append(body, ctx.Compile(stmt)...)
	}
	return sequence(
		steps(NewStart(b, func(ev *Evaluator) Value {
			ev.PushScope()
			return nil
		})),
		body,
		steps(NewFinish(b)),
	)
}

func (b *Block) Evaluate(ev *Evaluator) Value {
	values := ev.PopValues(len(b.Statements))
	ev.PopScope()
	if len(values) == 0 {
		return None{}
	}
	return values[len(values)-1]
}

func (b *Block) Conflicts(ctx *Context) []Conflict {
	var conflicts []Conflict
	seen := map[string]Node{}
	for _, stmt := range b.Statements {
		name := declaredName(stmt)
		if name == "" {
			continue
		}
		if prev, dup := seen[name]; dup {
			conflicts = append(conflicts, Conflict{
				Kind:    DuplicateName,
				Node:    stmt,
				Message: "'" + name + "' is already defined in this block",
				Related: []Node{prev},
			})
			continue
		}
		seen[name] = stmt
	}
	if len(b.Statements) > 0 {
		switch ctx.Root.Parent(b).(type) {
		case *Source, *StructureDefinition:
		default:
			last := b.Statements[len(b.Statements)-1]
			if _, isBind := last.(*Bind); isBind {
				conflicts = append(conflicts, Conflict{
					Kind:    ExpectedEndingExpression,
					Node:    last,
					Message: "a block must end with an expression, not a bind",
				})
			}
		}
	}
	return conflicts
}

func declaredName(stmt Node) string {
	switch s := stmt.(type) {
	case *Bind:
		return s.Name
	case *FunctionDefinition:
		return s.Name
	case *StructureDefinition:
		return s.Name
	}
	return ""
}

// Bind names a value, optionally with a declared type. Binds without a
// value are the inputs of functions and structures.
type Bind struct {
	Name  string
	Type  TypeNode
	Value Expression
	Loc   *SourceLocation
}

var _ Expression = (*Bind)(nil)

func (b *Bind) Kind() string                       { return "Bind" }
func (b *Bind) Grammar() Grammar                   { return bindGrammar }
func (b *Bind) Label() string                      { return b.Name }
func (b *Bind) GetSourceLocation() *SourceLocation { return b.Loc }
func (b *Bind) DefinitionName() string             { return b.Name }

func (b *Bind) Get(field string) any {
	switch field {
	case "type":
		return b.Type
	case "value":
		return b.Value
	}
	panic(unknownField(b, field))
}

func (b *Bind) With(field string, value any) Node {
	c := *b
	switch field {
	case "type":
		c.Type = nodeOf[TypeNode](value)
	case "value":
		c.Value = nodeOf[Expression](value)
	default:
		panic(unknownField(b, field))
	}
	return &c
}

func (b *Bind) ComputeType(ctx *Context) Type {
	if b.Type != nil {
		return b.Type.Resolve(ctx)
	}
	if b.Value != nil {
		return ctx.TypeOf(b.Value)
	}
	return UnknownType{Reason: "input " + b.Name + " has no type"}
}

func (b *Bind) Compile(ctx *Context) []*Step {
	if b.Value == nil {
		return steps(NewStep(FinishStep, b, func(ev *Evaluator) Value {
			return ev.Exception(MissingValue, b, "'%s' has no value", b.Name)
		}))
	}
	return sequence(
		steps(NewStart(b, nil)),
		ctx.Compile(b.Value),
		steps(NewFinish(b)),
	)
}

func (b *Bind) Evaluate(ev *Evaluator) Value {
	v := ev.PopValue()
	if exc, ok := v.(*Exception); ok {
		return exc
	}
	if b.Type != nil {
		if expected := b.Type.Resolve(ev.ctx); !Accepts(expected, v.Type(), ev.ctx) {
			return ev.TypeMismatch(b, expected, v)
		}
	}
	ev.Bind(b.Name, v)
	return v
}

func (b *Bind) Conflicts(ctx *Context) []Conflict {
	if b.Type == nil || b.Value == nil {
		return nil
	}
	declared := b.Type.Resolve(ctx)
	actual := ctx.TypeOf(b.Value)
	if Accepts(declared, actual, ctx) {
		return nil
	}
	return []Conflict{{
		Kind:    IncompatibleBind,
		Node:    b,
		Message: "'" + b.Name + "' expects " + declared.String() + " but the value is " + actual.String(),
		Related: []Node{b.Value},
	}}
}

// inputTypes resolves the declared types of function or structure inputs.
// Without a context every input is Unknown.
func inputTypes(ctx *Context, inputs []*Bind) []Type {
	types := make([]Type, len(inputs))
	for i, in := range inputs {
		if ctx == nil || in.Type == nil {
			types[i] = UnknownType{Reason: "untyped input"}
			continue
		}
		types[i] = in.Type.Resolve(ctx)
	}
	return types
}

func inputNames(inputs []*Bind) string {
	names := make([]string, len(inputs))
	for i, in := range inputs {
		names[i] = in.Name
	}
	return strings.Join(names, " ")
}
