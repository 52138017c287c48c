package ripple

import (
	"context"
	"testing"

	"github.com/dagger/testctx"
	"github.com/dagger/testctx/oteltest"
	"github.com/stretchr/testify/require"
)

type BasisSuite struct{}

func TestBasis(tT *testing.T) {
	testctx.New(tT,
		oteltest.WithTracing[*testing.T](),
		oteltest.WithLogging[*testing.T](),
	).RunTests(BasisSuite{})
}

type basisCase struct {
	source   string
	expected string
}

func runCases(ctx context.Context, t *testctx.T, cases []basisCase) {
	for _, tt := range cases {
		t.Run(tt.source, func(ctx context.Context, t *testctx.T) {
			require.Equal(t, tt.expected, run(ctx, t, tt.source).String())
		})
	}
}

func (BasisSuite) TestListLoops(ctx context.Context, t *testctx.T) {
	runCases(ctx, t, []basisCase{
		{"[1 2 3].combine(0 ƒ(sum item) sum + item)", "6"},
		{"[1 2 3].combine(0 ƒ(sum item index) sum + index)", "6"},
		{"[].combine(5 ƒ(sum item) sum + item)", "5"},
		{"[1 2 3 4].until(ƒ(x) x > 2)", "[1 2]"},
		{"[1 2].until(ƒ(x) x > 5)", "[1 2]"},
		{"[1 2 3].translate(ƒ(x) x · 2)", "[2 4 6]"},
		{"[1 2 3].translate(ƒ(x i) x · i)", "[1 4 9]"},
		{"[[1 2] [3]].translate(ƒ(l) l.length())", "[2 1]"},
		{"[1 2 3 4].filter(ƒ(x) x % 2 = 0)", "[2 4]"},
		{"[1 2 3].find(ƒ(x) x > 1)", "2"},
		{"[1 2 3].find(ƒ(x) x > 5)", "ø"},
		{"[1 2].all(ƒ(x) x > 0)", "⊤"},
		{"[1 2].all(ƒ(x) x > 1)", "⊥"},
		{"[1 2].any(ƒ(x) x > 1)", "⊤"},
		{"[].any(ƒ(x) ⊤)", "⊥"},
		{"[].all(ƒ(x) ⊥)", "⊤"},
		{"['a' 'b' 'c'].translate(ƒ(x i) i)", "[1 2 3]"},
	})
}

func (BasisSuite) TestLoopIndexesFromOne(ctx context.Context, t *testctx.T) {
	l := NewList(Text{Text: "a"}, Text{Text: "b"})
	st := &loopState{receiver: l, index: 1, length: l.Length(), inputs: indexed(l)}
	require.Equal(t, "loop 1/2", st.String())
	require.Equal(t, "'a'", st.input(0).String())
	require.Equal(t, "1", st.input(1).String())

	st.index = st.length
	require.Equal(t, "'b'", st.input(0).String())
	require.Equal(t, "2", st.input(1).String())
	require.Panics(t, func() { indexed(l)(3) })

	set := NewSet(Text{Text: "x"})
	require.Equal(t, 1, set.Length())
	require.Equal(t, "'x'", single(set.Items())(1)[0].String())
}

func (BasisSuite) TestListNatives(ctx context.Context, t *testctx.T) {
	runCases(ctx, t, []basisCase{
		{"[1 2 3].length()", "3"},
		{"[1 2 3].first()", "1"},
		{"[1 2 3].last()", "3"},
		{"[].first()", "ø"},
		{"[1 2 3].reverse()", "[3 2 1]"},
		{"[1 2 3].append(4)", "[1 2 3 4]"},
		{"[1 2 3].has(2)", "⊤"},
		{"[1 2 1].sans(1)", "[2]"},
	})
}

func (BasisSuite) TestSets(ctx context.Context, t *testctx.T) {
	runCases(ctx, t, []basisCase{
		{"{1 2}.size()", "2"},
		{"{1 2}.has(3)", "⊥"},
		{"{1 2}.add(3)", "{1 2 3}"},
		{"{1 2}.add(2)", "{1 2}"},
		{"{1 2}.remove(1)", "{2}"},
		{"{1 2}.translate(ƒ(x) x · 0)", "{0}"},
		{"{1 2 3}.filter(ƒ(x) x > 1)", "{2 3}"},
	})
}

func (BasisSuite) TestMaps(ctx context.Context, t *testctx.T) {
	runCases(ctx, t, []basisCase{
		{"{'a': 1}.size()", "1"},
		{"{'a': 1}.has('a')", "⊤"},
		{"{'a': 1}.get('a')", "1"},
		{"{'a': 1}.get('b')", "ø"},
		{"{'a': 1}.set('b' 2)", "{'a':1 'b':2}"},
		{"{'a': 1}.set('a' 2)", "{'a':2}"},
		{"{'a': 1}.unset('a')", "{:}"},
		{"{'a': 1 'b': 2}.keys()", "['a' 'b']"},
		{"{'a': 1 'b': 2}.values()", "[1 2]"},
		{"{'a': 1}.translate(ƒ(k v) v + 1)", "{'a':2}"},
		{"{'a': 1 'b': 2}.filter(ƒ(k v) v > 1)", "{'b':2}"},
	})
}

func (BasisSuite) TestTextAndNumbers(ctx context.Context, t *testctx.T) {
	runCases(ctx, t, []basisCase{
		{"'hello'.length()", "5"},
		{"'a,b'.segment(',')", "['a' 'b']"},
		{"'hello'.has('ell')", "⊤"},
		{"2.5m.roundDown()", "2m"},
		{"2.5m.roundUp()", "3m"},
		{"(0 - 3).absolute()", "3"},
		{"5m.text()", "'5m'"},
	})
}

func (BasisSuite) TestCallbackExceptions(ctx context.Context, t *testctx.T) {
	for _, tt := range []struct {
		source string
		kind   ExceptionKind
	}{
		{"[1 2].filter(ƒ(x) 1)", TypeMismatch},
		{"[1 2].translate(2)", TypeMismatch},
		{"[1 2].translate(ƒ(a b c) a)", InputMismatch},
		{"[1].combine(0)", InputMismatch},
		{"[1 2].translate(ƒ(x) x ÷ 0)", DivisionByZero},
		{"'a'.segment(1)", TypeMismatch},
	} {
		t.Run(tt.source, func(ctx context.Context, t *testctx.T) {
			exc, ok := run(ctx, t, tt.source).(*Exception)
			require.True(t, ok)
			require.Equal(t, tt.kind, exc.Kind, exc.Message)
		})
	}
}

func (BasisSuite) TestMethodsAreListed(ctx context.Context, t *testctx.T) {
	b := NewBasis()
	var names []string
	for _, fn := range b.Methods(ListKind) {
		names = append(names, fn.Name)
	}
	require.Equal(t, []string{
		"all", "any", "append", "combine", "filter", "find", "first",
		"has", "last", "length", "reverse", "sans", "translate", "until",
	}, names)

	var streams []string
	for _, def := range b.Streams() {
		streams = append(streams, def.Name)
	}
	require.Equal(t, []string{"Chat", "Choice", "Key", "Pointer", "Scene", "Speech", "Time"}, streams)
}
