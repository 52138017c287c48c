package ripple

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vito/ripple/pkg/units"
)

var (
	anyNumber = NumberType{Unit: units.Wildcard}
	anyText   = TextType{}
)

func textLiteral(s string) TextType { return TextType{Literal: s, HasLiteral: true} }

func TestAccepts(t *testing.T) {
	meters := NumberType{Unit: units.Of("m")}
	seconds := NumberType{Unit: units.Of("s")}
	one := NumberType{Unit: units.Empty, Literal: "1"}

	assert.True(t, Accepts(anyNumber, meters, nil))
	assert.True(t, Accepts(anyNumber, one, nil))
	assert.False(t, Accepts(meters, seconds, nil))
	assert.False(t, Accepts(one, NumberType{Literal: "2"}, nil))
	assert.False(t, Accepts(anyNumber, anyText, nil))

	assert.True(t, Accepts(anyText, textLiteral("hi"), nil))
	assert.False(t, Accepts(textLiteral("hi"), anyText, nil))

	union := UnionType{Left: meters, Right: anyText}
	assert.True(t, Accepts(union, textLiteral("a"), nil))
	assert.True(t, Accepts(union, meters, nil))
	assert.False(t, Accepts(union, seconds, nil))
	assert.False(t, Accepts(meters, union, nil), "every member must be accepted")

	assert.True(t, Accepts(ListType{Item: anyNumber}, ListType{Item: meters}, nil))
	assert.True(t, Accepts(anyText, UnknownType{}, nil))
	assert.True(t, Accepts(UnknownType{}, anyText, nil))
}

func TestGeneralize(t *testing.T) {
	assert.Equal(t, "#m", Generalize(NumberType{Unit: units.Of("m"), Literal: "3"}).String())
	assert.Equal(t, "''", Generalize(textLiteral("x")).String())
	assert.Equal(t, "?", Generalize(BooleanType{Literal: true, HasLiteral: true}).String())
}

func TestTypeSet(t *testing.T) {
	set := NewTypeSet(nil, anyNumber, anyText, anyText, NeverType{})
	require.Equal(t, 2, set.Len())

	zero := NumberType{Unit: units.Empty, Literal: "0"}
	narrowed := set.Intersection(NewTypeSet(nil, zero))
	require.Equal(t, 1, narrowed.Len())
	assert.Equal(t, "0", narrowed.Type().String())

	rest := set.Difference(NewTypeSet(nil, zero))
	require.Equal(t, 1, rest.Len())
	assert.Equal(t, "''", rest.Type().String())

	assert.True(t, set.Union(NewTypeSet(nil, BooleanType{})).Contains(BooleanType{}))
	assert.IsType(t, NeverType{}, NewTypeSet(nil).Type())
	assert.IsType(t, UnionType{}, set.Type())

	unknown := NewTypeSet(nil, anyText, UnknownType{Reason: "test"})
	require.Equal(t, 1, unknown.Len())
	assert.IsType(t, UnknownType{}, unknown.Members()[0])
}

// TestTypeSetNarrowingIsSubset checks that narrowing never widens: every
// narrowed member is accepted by some member of the original set.
func TestTypeSetNarrowingIsSubset(t *testing.T) {
	original := NewTypeSet(nil, anyNumber, anyText, NoneType{})
	guards := []*TypeSet{
		NewTypeSet(nil, NumberType{Unit: units.Empty, Literal: "5"}),
		NewTypeSet(nil, textLiteral("a")),
		NewTypeSet(nil, NoneType{}),
		NewTypeSet(nil, BooleanType{}),
	}
	for _, guard := range guards {
		for _, narrowed := range []*TypeSet{original.Intersection(guard), original.Difference(guard)} {
			for _, m := range narrowed.Members() {
				assert.True(t, Accepts(original.Type(), m, nil), "%s narrowed by %s gave %s", original, guard, m)
			}
		}
	}
}

func TestNarrowing(t *testing.T) {
	for _, tt := range []struct {
		name     string
		source   string
		branch   func(*Conditional) Expression
		expected string
	}{
		{
			name:     "equality keeps the literal",
			source:   "x•#|'': 0\nx = 0 ? x 1",
			branch:   func(c *Conditional) Expression { return c.Yes },
			expected: "0",
		},
		{
			name:     "inequality removes the literal",
			source:   "x•#|'': 0\nx ≠ 0 ? x 1",
			branch:   func(c *Conditional) Expression { return c.Yes },
			expected: "''",
		},
		{
			name:     "no branch of equality",
			source:   "x•#|'': 0\nx = 0 ? 1 x",
			branch:   func(c *Conditional) Expression { return c.No },
			expected: "''",
		},
		{
			name:     "is guard",
			source:   "x•#|'': 0\nx•'' ? x 1",
			branch:   func(c *Conditional) Expression { return c.Yes },
			expected: "''",
		},
		{
			name:     "literal on the left",
			source:   "x•#|'': 0\n0 = x ? x 1",
			branch:   func(c *Conditional) Expression { return c.Yes },
			expected: "0",
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Load(tt.source, "test.rip")
			require.NoError(t, err)
			cond, ok := p.Source.Body.Statements[1].(*Conditional)
			require.True(t, ok)
			ref, ok := tt.branch(cond).(*Reference)
			require.True(t, ok)
			assert.Equal(t, tt.expected, p.Context.TypeOf(ref).String())
		})
	}
}

func TestDerivedUnits(t *testing.T) {
	for _, tt := range []struct {
		source string
		unit   string
	}{
		{"1m · 1s⁻¹", "m/s"},
		{"10m ÷ 2s", "m/s"},
		{"2m ^ 2", "m^2"},
		{"3kg + 1kg", "kg"},
		{"x: 2m\nx · x", "m^2"},
	} {
		t.Run(tt.source, func(t *testing.T) {
			p, err := Load(tt.source, "test.rip")
			require.NoError(t, err)
			stmts := p.Source.Body.Statements
			nt, ok := p.Context.TypeOf(stmts[len(stmts)-1]).(NumberType)
			require.True(t, ok)
			assert.Equal(t, tt.unit, nt.ConcreteUnit(p.Context).String())
		})
	}
}
