package ripple

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// Context carries everything static analysis needs for one version of a
// program: the root index, the basis, and per-node caches. A new tree gets
// a new Context.
type Context struct {
	Source *Source
	Basis  *Basis
	Root   *Root

	types    map[Node]Type
	visiting map[Node]bool
	compiled *lru.Cache[any, []*Step]
}

// NewContext indexes the source for analysis. Compiled steps are cached in
// compiled when non-nil.
func NewContext(source *Source, basis *Basis, compiled *lru.Cache[any, []*Step]) *Context {
	return &Context{
		Source:   source,
		Basis:    basis,
		Root:     NewRoot(source),
		types:    map[Node]Type{},
		visiting: map[Node]bool{},
		compiled: compiled,
	}
}

// TypeOf returns the expression's type, computing it at most once. A type
// that depends on itself resolves to Unknown.
func (c *Context) TypeOf(e Expression) Type {
	if t, ok := c.types[e]; ok {
		return t
	}
	if c.visiting[e] {
		return UnknownType{Reason: "cycle"}
	}
	c.visiting[e] = true
	t := e.ComputeType(c)
	delete(c.visiting, e)
	c.types[e] = t
	return t
}

// Compile returns the expression's steps, from the cache when possible.
func (c *Context) Compile(e Expression) []*Step {
	if c.compiled == nil {
		return e.Compile(c)
	}
	if s, ok := c.compiled.Get(e); ok {
		return s
	}
	s := e.Compile(c)
	c.compiled.Add(e, s)
	return s
}

type constructorKey struct {
	definition *StructureDefinition
}

// CompileConstructor returns the steps that build a structure.
func (c *Context) CompileConstructor(def *StructureDefinition) []*Step {
	if c.compiled == nil {
		return def.compileConstructor(c)
	}
	key := constructorKey{def}
	if s, ok := c.compiled.Get(key); ok {
		return s
	}
	s := def.compileConstructor(c)
	c.compiled.Add(key, s)
	return s
}

// Resolve finds the definition a name refers to from the given node:
// binds and definitions in enclosing blocks, inputs of enclosing functions
// and structures, then basis streams.
func (c *Context) Resolve(from Node, name string) Definition {
	for _, a := range c.Root.Ancestors(from) {
		switch n := a.(type) {
		case *Block:
			for _, stmt := range n.Statements {
				if declaredName(stmt) == name {
					return stmt.(Definition)
				}
			}
		case *FunctionDefinition:
			for _, in := range n.Inputs {
				if in.Name == name {
					return in
				}
			}
		case *StructureDefinition:
			for _, in := range n.Inputs {
				if in.Name == name {
					return in
				}
			}
		}
	}
	if sd := c.Basis.Stream(name); sd != nil {
		return sd
	}
	return nil
}

// DefinitionType is the type of a reference to def.
func (c *Context) DefinitionType(def Definition) Type {
	switch d := def.(type) {
	case Expression:
		return c.TypeOf(d)
	case *StreamDefinition:
		return d.FunctionType()
	}
	return UnknownType{Reason: "unknown definition"}
}

// Narrow refines the type of a reference to bind using the conditionals it
// appears in. In a yes branch the condition's guards apply; in a no branch
// the types they matched are removed.
func (c *Context) Narrow(ref Node, bind *Bind, t Type) Type {
	ancestors := c.Root.Ancestors(ref)
	for i := len(ancestors) - 1; i >= 0; i-- {
		cond, ok := ancestors[i].(*Conditional)
		if !ok {
			continue
		}
		inYes := c.Root.IsInside(ref, cond, "yes")
		inNo := !inYes && c.Root.IsInside(ref, cond, "no")
		if !inYes && !inNo {
			continue
		}
		possible := NewTypeSet(c, t)
		yes := EvaluateTypeGuards(c, cond.Condition, possible, bind)
		if inYes {
			t = yes.Type()
			continue
		}
		// Subtracting a guard that did not narrow leaves nothing; the
		// reference keeps its type instead.
		if no := possible.Difference(yes); no.Len() > 0 {
			t = no.Type()
		}
	}
	return t
}

// IsBefore reports whether ref appears in an earlier statement of the block
// that defines def. References from inside function bodies are exempt,
// since functions run after the block has bound its names.
func (c *Context) IsBefore(ref Node, def Node) bool {
	block, ok := c.Root.Parent(def).(*Block)
	if !ok {
		return false
	}
	defIndex, refIndex := -1, -1
	for i, stmt := range block.Statements {
		if stmt == def {
			defIndex = i
		}
		if refIndex < 0 && Contains(stmt, ref) {
			refIndex = i
		}
	}
	if refIndex < 0 || defIndex < 0 || refIndex >= defIndex {
		return false
	}
	for _, a := range c.Root.Ancestors(ref) {
		if a == block {
			break
		}
		if _, isFn := a.(*FunctionDefinition); isFn {
			return false
		}
	}
	return true
}

// StreamSource finds the stream constructor call an expression evaluates
// to, following references to binds. It returns nil if the expression is
// not statically a stream.
func (c *Context) StreamSource(e Expression) *Evaluate {
	for range 64 {
		switch n := e.(type) {
		case *Evaluate:
			if fn, ok := Concrete(c.TypeOf(n.Function)).(FunctionType); ok && fn.Stream != nil {
				return n
			}
			return nil
		case *Reference:
			bind, ok := c.Resolve(n, n.Name).(*Bind)
			if !ok || bind.Value == nil {
				return nil
			}
			e = bind.Value
		case *Block:
			if len(n.Statements) != 1 {
				return nil
			}
			e = n.Statements[0]
		default:
			return nil
		}
	}
	return nil
}

// Display resolves derived units so a type can be shown to a person.
func (c *Context) Display(t Type) Type {
	switch d := t.(type) {
	case NumberType:
		if d.Deriver != nil {
			return NumberType{Unit: d.ConcreteUnit(c), Literal: d.Literal}
		}
	case UnionType:
		return UnionType{Left: c.Display(d.Left), Right: c.Display(d.Right)}
	case ListType:
		return ListType{Item: c.Display(d.Item)}
	case SetType:
		return SetType{Key: c.Display(d.Key)}
	case MapType:
		return MapType{Key: c.Display(d.Key), Value: c.Display(d.Value)}
	case StreamType:
		return StreamType{Value: c.Display(d.Value)}
	case FunctionType:
		if d.Output != nil {
			d.Output = c.Display(d.Output)
		}
		return d
	}
	return t
}
