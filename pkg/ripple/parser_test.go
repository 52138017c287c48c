package ripple

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseOne(t *testing.T, text string) Expression {
	t.Helper()
	src := Parse(text, "test.rip")
	require.Len(t, src.Body.Statements, 1, "statements of %q", text)
	return src.Body.Statements[0]
}

func TestParseBind(t *testing.T) {
	bind, ok := parseOne(t, "x: 1 + 2").(*Bind)
	require.True(t, ok)
	assert.Equal(t, "x", bind.Name)
	assert.Nil(t, bind.Type)

	sum, ok := bind.Value.(*BinaryEvaluate)
	require.True(t, ok)
	assert.Equal(t, "+", sum.Operator)
}

func TestParseTypedBind(t *testing.T) {
	bind, ok := parseOne(t, "x•#m|'': 1m").(*Bind)
	require.True(t, ok)

	union, ok := bind.Type.(*UnionTypeNode)
	require.True(t, ok)
	assert.IsType(t, &NumberTypeNode{}, union.Left)
	assert.IsType(t, &TextTypeNode{}, union.Right)
}

func TestParsePostfix(t *testing.T) {
	access, ok := parseOne(t, "a.b[1]").(*ListAccess)
	require.True(t, ok)
	prop, ok := access.List.(*PropertyReference)
	require.True(t, ok)
	assert.Equal(t, "b", prop.Name)

	call, ok := parseOne(t, "f(1)(2 3)").(*Evaluate)
	require.True(t, ok)
	assert.Len(t, call.Inputs, 2)
	inner, ok := call.Function.(*Evaluate)
	require.True(t, ok)
	assert.Len(t, inner.Inputs, 1)

	is, ok := parseOne(t, "x•''").(*Is)
	require.True(t, ok)
	assert.IsType(t, &TextTypeNode{}, is.Type)
}

func TestParseDetachedParenthesesStartABlock(t *testing.T) {
	src := Parse("f (1)", "test.rip")
	require.Len(t, src.Body.Statements, 2)
	assert.IsType(t, &Reference{}, src.Body.Statements[0])
	assert.IsType(t, &Block{}, src.Body.Statements[1])
}

func TestParseFunction(t *testing.T) {
	fn, ok := parseOne(t, "ƒ scale(a•# b: 2)•# a · b").(*FunctionDefinition)
	require.True(t, ok)
	assert.Equal(t, "scale", fn.Name)
	require.Len(t, fn.Inputs, 2)
	assert.IsType(t, &NumberTypeNode{}, fn.Inputs[0].Type)
	assert.IsType(t, &NumberLiteral{}, fn.Inputs[1].Value)
	assert.IsType(t, &NumberTypeNode{}, fn.Output)
	assert.IsType(t, &BinaryEvaluate{}, fn.Body)
}

func TestParseStructure(t *testing.T) {
	def, ok := parseOne(t, "•Circle(r) (area: r · r · 3)").(*StructureDefinition)
	require.True(t, ok)
	assert.Equal(t, "Circle", def.Name)
	require.Len(t, def.Inputs, 1)
	require.Len(t, def.Body.Statements, 1)

	src := Parse("•Point(x y)\n(1)", "test.rip")
	require.Len(t, src.Body.Statements, 2, "a body on the next line is a separate block")
	def, ok = src.Body.Statements[0].(*StructureDefinition)
	require.True(t, ok)
	assert.Empty(t, def.Body.Statements)
}

func TestParseConditionalAndReaction(t *testing.T) {
	cond, ok := parseOne(t, "x > 1 ? 'big' 'small'").(*Conditional)
	require.True(t, ok)
	assert.IsType(t, &BinaryEvaluate{}, cond.Condition)
	assert.IsType(t, &TextLiteral{}, cond.Yes)
	assert.IsType(t, &TextLiteral{}, cond.No)

	reaction, ok := parseOne(t, "0 … ∆ Key() … . + 1").(*Reaction)
	require.True(t, ok)
	changed, ok := reaction.Condition.(*Changed)
	require.True(t, ok)
	assert.IsType(t, &Evaluate{}, changed.Stream)
	next, ok := reaction.Next.(*BinaryEvaluate)
	require.True(t, ok)
	assert.IsType(t, &This{}, next.Left)
}

func TestParseCollections(t *testing.T) {
	assert.IsType(t, &SetLiteral{}, parseOne(t, "{}"))
	assert.IsType(t, &MapLiteral{}, parseOne(t, "{:}"))

	set, ok := parseOne(t, "{1 2}").(*SetLiteral)
	require.True(t, ok)
	assert.Len(t, set.Items, 2)

	m, ok := parseOne(t, "{'a': 1, 'b': 2}").(*MapLiteral)
	require.True(t, ok)
	assert.Len(t, m.Entries, 2)

	list, ok := parseOne(t, "[1, 2, 3]").(*ListLiteral)
	require.True(t, ok)
	assert.Len(t, list.Items, 3)
}

func TestParseRecovers(t *testing.T) {
	for _, tt := range []struct {
		name   string
		input  string
		reason string
	}{
		{"dangling operator", "1 +", "expected a value after +"},
		{"unclosed block", "(1 2", "expected ) to end the block"},
		{"unclosed list", "[1 2", "expected ] to end the list"},
		{"reaction without next", "0 … ⊤", "expected … before the next value of a reaction"},
		{"illegal character", "@", "unexpected @"},
	} {
		t.Run(tt.name, func(t *testing.T) {
			u, ok := parseOne(t, tt.input).(*Unparsable)
			require.True(t, ok)
			assert.Equal(t, tt.reason, u.Reason)
		})
	}

	src := Parse("(1 +)\nx: 2", "test.rip")
	require.Len(t, src.Body.Statements, 2)
	block, ok := src.Body.Statements[0].(*Block)
	require.True(t, ok)
	assert.IsType(t, &Unparsable{}, block.Statements[0])
	assert.IsType(t, &Bind{}, src.Body.Statements[1], "parsing continues after the error")
}

func TestParseExpression(t *testing.T) {
	assert.IsType(t, &BinaryEvaluate{}, ParseExpression("1 + 2"))

	u, ok := ParseExpression("1 2").(*Unparsable)
	require.True(t, ok)
	assert.Equal(t, "unexpected trailing input", u.Reason)
}

func TestConflicts(t *testing.T) {
	for _, tt := range []struct {
		source string
		kind   ConflictKind
	}{
		{"y + 1", UnknownName},
		{"x: 1\nx: 2\nx", DuplicateName},
		{"1 + 2 · 3", OrderOfOperations},
		{"y\ny: 1", ReferenceBeforeBind},
		{"1m + 1s", IncompatibleUnits},
		{"1 ? 2 3", ExpectedBooleanCondition},
		{"(x: 1)", ExpectedEndingExpression},
		{"1 +", UnparsableConflict},
	} {
		t.Run(string(tt.kind), func(t *testing.T) {
			p, err := Load(tt.source, "test.rip")
			require.NoError(t, err)
			var kinds []ConflictKind
			for _, c := range p.Conflicts() {
				kinds = append(kinds, c.Kind)
			}
			assert.Contains(t, kinds, tt.kind)
		})
	}

	p, err := Load("x: 1\nx + 1", "test.rip")
	require.NoError(t, err)
	assert.Empty(t, p.Conflicts())
}

func TestConflictCodes(t *testing.T) {
	assert.Equal(t, "unknown-name", UnknownName.Code())
	assert.Equal(t, "reference-before-bind", ReferenceBeforeBind.Code())
}
