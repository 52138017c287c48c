package ripple

var partsGrammar = Grammar{many("parts", "Expression", "Type")}

// Unparsable covers source the parser could not make sense of. It keeps
// whatever it did parse as children so that the tree stays navigable.
type Unparsable struct {
	Text   string
	Reason string
	Parts  []Node
	Loc    *SourceLocation
}

var (
	_ Expression = (*Unparsable)(nil)
	_ TypeNode   = (*Unparsable)(nil)
)

func (u *Unparsable) Kind() string                       { return "Unparsable" }
func (u *Unparsable) Grammar() Grammar                   { return partsGrammar }
func (u *Unparsable) Label() string                      { return u.Text }
func (u *Unparsable) GetSourceLocation() *SourceLocation { return u.Loc }

func (u *Unparsable) Get(field string) any {
	if field == "parts" {
		return u.Parts
	}
	panic(unknownField(u, field))
}

func (u *Unparsable) With(field string, value any) Node {
	if field != "parts" {
		panic(unknownField(u, field))
	}
	c := *u
	c.Parts = listOf[Node](value)
	return &c
}

func (u *Unparsable) ComputeType(*Context) Type {
	return UnknownType{Reason: "unparsable"}
}

func (u *Unparsable) Resolve(*Context) Type {
	return UnknownType{Reason: "unparsable"}
}

func (u *Unparsable) Compile(*Context) []*Step {
	return steps(NewFinish(u))
}

func (u *Unparsable) Evaluate(ev *Evaluator) Value {
	return ev.Exception(MissingValue, u, "cannot evaluate unparsable code: %s", u.Reason)
}

func (u *Unparsable) Conflicts(*Context) []Conflict {
	return []Conflict{{
		Kind:    UnparsableConflict,
		Node:    u,
		Message: u.Reason,
	}}
}
