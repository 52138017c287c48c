package ripple

import (
	"strings"
)

// TypeSet is a set of possible types, deduplicated by mutual acceptance.
// Narrowing operates on TypeSets and converts back to a union with Type.
type TypeSet struct {
	ctx     *Context
	members []Type
}

// NewTypeSet builds a set from the given types, flattening unions. Never
// members are dropped; an Unknown member makes the whole set Unknown.
func NewTypeSet(ctx *Context, types ...Type) *TypeSet {
	set := &TypeSet{ctx: ctx}
	for _, t := range types {
		for _, m := range Members(t) {
			set.add(m)
		}
	}
	for _, m := range set.members {
		if isUnknown(m) {
			set.members = []Type{m}
			break
		}
	}
	return set
}

func (s *TypeSet) add(t Type) {
	if _, never := t.(NeverType); never {
		return
	}
	for _, m := range s.members {
		if TypeEqual(m, t, s.ctx) && !isUnknown(m) && !isUnknown(t) {
			return
		}
	}
	s.members = append(s.members, t)
}

// Members returns the set's types in insertion order.
func (s *TypeSet) Members() []Type {
	return append([]Type(nil), s.members...)
}

func (s *TypeSet) Len() int {
	return len(s.members)
}

// Contains reports whether the set has a member equivalent to t.
func (s *TypeSet) Contains(t Type) bool {
	for _, m := range s.members {
		if TypeEqual(m, t, s.ctx) {
			return true
		}
	}
	return false
}

// Union returns the members of both sets.
func (s *TypeSet) Union(other *TypeSet) *TypeSet {
	return NewTypeSet(s.ctx, append(s.Members(), other.members...)...)
}

// Intersection keeps, for every pair of members where one accepts the
// other, the narrower of the two.
func (s *TypeSet) Intersection(other *TypeSet) *TypeSet {
	var kept []Type
	for _, a := range s.members {
		for _, b := range other.members {
			switch {
			case Accepts(a, b, s.ctx):
				kept = append(kept, b)
			case Accepts(b, a, s.ctx):
				kept = append(kept, a)
			}
		}
	}
	return NewTypeSet(s.ctx, kept...)
}

// Difference drops members that accept any member of other. Members that
// match nothing in other are kept, as are Unknown members.
func (s *TypeSet) Difference(other *TypeSet) *TypeSet {
	var kept []Type
	for _, a := range s.members {
		if isUnknown(a) {
			kept = append(kept, a)
			continue
		}
		matched := false
		for _, b := range other.members {
			if Accepts(a, b, s.ctx) {
				matched = true
				break
			}
		}
		if !matched {
			kept = append(kept, a)
		}
	}
	return NewTypeSet(s.ctx, kept...)
}

// Type converts the set back into a single type: Never when empty, the
// member itself for singletons, and a union otherwise.
func (s *TypeSet) Type() Type {
	switch len(s.members) {
	case 0:
		return NeverType{Reason: "no possible types"}
	case 1:
		return s.members[0]
	}
	t := s.members[0]
	for _, m := range s.members[1:] {
		t = UnionType{Left: t, Right: m}
	}
	return t
}

func (s *TypeSet) String() string {
	var parts []string
	for _, m := range s.members {
		parts = append(parts, m.String())
	}
	return "{" + strings.Join(parts, " ") + "}"
}

// EvaluateTypeGuards narrows the possible types of the bind guard under the
// assumption that expr evaluated to ⊤. Expressions that say nothing about
// guard leave the set unchanged.
func EvaluateTypeGuards(ctx *Context, expr Expression, possible *TypeSet, guard *Bind) *TypeSet {
	switch e := expr.(type) {
	case *Block:
		if len(e.Statements) == 1 {
			return EvaluateTypeGuards(ctx, e.Statements[0], possible, guard)
		}
	case *BinaryEvaluate:
		switch e.Operator {
		case "&":
			left := EvaluateTypeGuards(ctx, e.Left, possible, guard)
			right := EvaluateTypeGuards(ctx, e.Right, left, guard)
			return left.Intersection(right)
		case "|":
			left := EvaluateTypeGuards(ctx, e.Left, possible, guard)
			right := EvaluateTypeGuards(ctx, e.Right, possible, guard)
			return left.Union(right)
		case "=", "≠":
			literal, ok := guardedLiteral(ctx, e, guard)
			if !ok {
				return possible
			}
			single := NewTypeSet(ctx, ctx.TypeOf(literal))
			if e.Operator == "=" {
				return possible.Intersection(single)
			}
			return possible.Difference(single)
		}
	case *Is:
		if refersTo(ctx, e.Expression, guard) {
			return possible.Intersection(NewTypeSet(ctx, e.Type.Resolve(ctx)))
		}
	}
	return possible
}

// guardedLiteral finds the literal compared against a reference to guard,
// on either side of the comparison.
func guardedLiteral(ctx *Context, e *BinaryEvaluate, guard *Bind) (Expression, bool) {
	if refersTo(ctx, e.Left, guard) && isGuardLiteral(e.Right) {
		return e.Right, true
	}
	if refersTo(ctx, e.Right, guard) && isGuardLiteral(e.Left) {
		return e.Left, true
	}
	return nil, false
}

func isGuardLiteral(e Expression) bool {
	switch e.(type) {
	case *NumberLiteral, *TextLiteral, *NoneLiteral:
		return true
	}
	return false
}

func refersTo(ctx *Context, e Expression, guard *Bind) bool {
	ref, ok := e.(*Reference)
	if !ok {
		return false
	}
	return ctx.Resolve(ref, ref.Name) == Definition(guard)
}
