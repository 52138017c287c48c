package ripple

import (
	"context"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func findNode(root Node, match func(Node) bool) Node {
	var found Node
	Walk(root, func(n Node) bool {
		if found == nil && match(n) {
			found = n
		}
		return found == nil
	})
	return found
}

func numberLiteral(text string) func(Node) bool {
	return func(n Node) bool {
		lit, ok := n.(*NumberLiteral)
		return ok && lit.Text == text
	}
}

func TestReplaceSharesUntouchedSubtrees(t *testing.T) {
	src := Parse("x: 1 + 2\nx", "test.rip")
	two := findNode(src, numberLiteral("2"))
	require.NotNil(t, two)

	five := ParseExpression("5")
	edited := Replace(src, two, five).(*Source)

	require.NotSame(t, src, edited)
	assert.Same(t, src.Body.Statements[1], edited.Body.Statements[1], "the untouched statement is shared")
	assert.True(t, Contains(edited, five))
	assert.False(t, Contains(edited, two))
	assert.True(t, Contains(src, two), "the original tree is unchanged")

	assert.False(t, Equal(src, edited))
	assert.True(t, Equal(edited, Parse("x: 1 + 5\nx", "test.rip")))

	assert.Same(t, src, Replace(src, ParseExpression("9"), five), "replacing a missing node is a no-op")
}

func TestReplaceRecompiles(t *testing.T) {
	src := Parse("x: 1 + 2\nx", "test.rip")
	edited := Replace(src, findNode(src, numberLiteral("2")), ParseExpression("5")).(*Source)

	p, err := NewProgram(edited)
	require.NoError(t, err)
	t.Cleanup(p.Stop)
	result, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "6", result.Value.String())
}

func TestGetAndWith(t *testing.T) {
	sum := ParseExpression("1 + 2").(*BinaryEvaluate)
	var names []string
	for _, f := range sum.Grammar() {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"left", "right"}, names)
	assert.Same(t, sum.Left, sum.Get("left"))

	swapped := sum.With("left", sum.Right).(*BinaryEvaluate)
	assert.Same(t, sum.Right, swapped.Left)
	assert.NotSame(t, sum.Left, swapped.Left, "With copies")
	assert.Equal(t, "+", swapped.Operator)

	bind := Parse("x: 1", "test.rip").Body.Statements[0].(*Bind)
	assert.Nil(t, bind.Get("type"), "absent optional fields are nil")
	assert.Len(t, Children(bind), 1)
}

func TestRoot(t *testing.T) {
	src := Parse("x: 1 + 2\nx", "test.rip")
	root := NewRoot(src)
	two := findNode(src, numberLiteral("2"))
	bind := src.Body.Statements[0]

	sum, ok := root.Parent(two).(*BinaryEvaluate)
	require.True(t, ok)
	assert.Same(t, bind, root.Parent(sum))
	assert.Nil(t, root.Parent(src))

	ancestors := root.Ancestors(two)
	require.Len(t, ancestors, 4)
	assert.Same(t, src, ancestors[3])

	path := root.Path(two)
	assert.Same(t, src, path[0])
	assert.Same(t, two, path[len(path)-1])

	assert.True(t, root.Has(two))
	assert.False(t, root.Has(ParseExpression("2")))
	assert.True(t, root.IsInside(two, bind, "value"))
	assert.False(t, root.IsInside(two, bind, "type"))
}

func TestDescendantsStopEarly(t *testing.T) {
	src := Parse("[1 2 3 4]", "test.rip")
	var seen []string
	for n := range Descendants(src) {
		seen = append(seen, n.Kind())
		if len(seen) == 3 {
			break
		}
	}
	assert.Equal(t, []string{"Block", "ListLiteral", "NumberLiteral"}, seen)
	assert.False(t, slices.Contains(seen, "Source"), "the node itself is not a descendant")
}
