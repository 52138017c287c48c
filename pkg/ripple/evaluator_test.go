package ripple

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/dagger/testctx"
	"github.com/dagger/testctx/oteltest"
	"github.com/stretchr/testify/require"
	"gotest.tools/v3/golden"
)

func TestMain(m *testing.M) {
	os.Exit(oteltest.Main(m))
}

type EvaluatorSuite struct{}

func TestEvaluator(tT *testing.T) {
	testctx.New(tT,
		oteltest.WithTracing[*testing.T](),
		oteltest.WithLogging[*testing.T](),
	).RunTests(EvaluatorSuite{})
}

func load(t testing.TB, text string, opts ...Option) *Program {
	t.Helper()
	p, err := Load(text, "test.rip", opts...)
	require.NoError(t, err)
	t.Cleanup(p.Stop)
	return p
}

func run(ctx context.Context, t testing.TB, text string, opts ...Option) Value {
	t.Helper()
	result, err := load(t, text, opts...).Run(ctx)
	require.NoError(t, err)
	return result.Value
}

func (EvaluatorSuite) TestValues(ctx context.Context, t *testctx.T) {
	for _, tt := range []struct {
		name     string
		source   string
		expected string
	}{
		{"addition", "1 + 1", "2"},
		{"left to right", "1 + 2 · 3", "9"},
		{"parentheses", "1 + (2 · 3)", "7"},
		{"negation", "-(2 - 5)", "3"},
		{"units", "1m · 1s⁻¹", "1m/s"},
		{"unit division", "10m ÷ 2s", "5m/s"},
		{"power", "2m ^ 2", "4m^2"},
		{"large power", "2 ^ 64", "18446744073709551616"},
		{"modulo", "7 % 3", "1"},
		{"comparison", "3 > 2", "⊤"},
		{"equality", "'a' = 'a'", "⊤"},
		{"inequality", "1 ≠ 1", "⊥"},
		{"ascii aliases", "(2 * 3 / 2) != 3", "⊥"},
		{"and", "⊤ & ⊥", "⊥"},
		{"or", "⊥ | ⊤", "⊤"},
		{"not", "~⊥", "⊤"},
		{"text concatenation", "'rip' + 'ple'", "'ripple'"},
		{"conditional yes", "1 < 2 ? 'yes' 'no'", "'yes'"},
		{"conditional no", "1 > 2 ? 'yes' 'no'", "'no'"},
		{"binds", "x: 2\ny: x · 3\ny + 1", "7"},
		{"block scope", "x: 1\n(x: 2 x) + x", "3"},
		{"list access", "[10 20 30][2]", "20"},
		{"list literal", "[1, 2, 3]", "[1 2 3]"},
		{"set literal", "{1 2 2}", "{1 2}"},
		{"map literal", "{'a': 1 'b': 2}", "{'a':1 'b':2}"},
		{"empty map", "{:}", "{:}"},
		{"none", "ø", "ø"},
		{"function", "ƒ double(x) x · 2\ndouble(21)", "42"},
		{"anonymous function", "(ƒ(a b) a - b)(5 3)", "2"},
		{"closure", "n: 10\nƒ add(x) x + n\nadd(5)", "15"},
		{"recursion", "ƒ fact(n) n = 0 ? 1 n · fact(n - 1)\nfact(5)", "120"},
		{"structure", "•Point(x y)\np: Point(1 2)\np.y", "2"},
		{"structure body", "•Circle(r) (area: r · r · 3)\nCircle(2).area", "12"},
		{"is", "1m•#m", "⊤"},
		{"is not", "'one'•#", "⊥"},
		{"comments", "1 // one\n+ 2", "3"},
	} {
		t.Run(tt.name, func(ctx context.Context, t *testctx.T) {
			require.Equal(t, tt.expected, run(ctx, t, tt.source).String())
		})
	}
}

func (EvaluatorSuite) TestExceptions(ctx context.Context, t *testctx.T) {
	for _, tt := range []struct {
		name   string
		source string
		kind   ExceptionKind
	}{
		{"unbound name", "missing + 1", UnboundName},
		{"division by zero", "1 ÷ 0", DivisionByZero},
		{"modulo zero", "1 % 0", DivisionByZero},
		{"zero to a negative power", "0 ^ -1", DivisionByZero},
		{"exponent too large", "2 ^ 100000000", NumberLimit},
		{"unit exponent too large", "2m ^ 4294967297", NumberLimit},
		{"unit exponent grows too large", "1m ^ 100 ^ 100", NumberLimit},
		{"power with too many digits", "10 ^ 4096 ^ 4", NumberLimit},
		{"unit mismatch", "1m + 1s", UnitMismatch},
		{"type mismatch", "1 + 'one'", TypeMismatch},
		{"missing item", "[1 2][3]", MissingValue},
		{"not a function", "1(2)", NotAFunction},
		{"too many inputs", "ƒ f(x) x\nf(1 2)", InputMismatch},
		{"declared input type", "ƒ f(x•'') x\nf(1)", TypeMismatch},
		{"declared bind type", "x•'': 1\nx", TypeMismatch},
		{"condition not boolean", "1 ? 2 3", TypeMismatch},
		{"unknown property", "[1].nope", UnboundName},
	} {
		t.Run(tt.name, func(ctx context.Context, t *testctx.T) {
			v := run(ctx, t, tt.source)
			exc, ok := v.(*Exception)
			require.True(t, ok, "expected an exception, got %s", v)
			require.Equal(t, tt.kind, exc.Kind, exc.Message)
		})
	}
}

func (EvaluatorSuite) TestExceptionsCarryContext(ctx context.Context, t *testctx.T) {
	v := run(ctx, t, "1 + 'one'")
	exc, ok := v.(*Exception)
	require.True(t, ok)
	require.NotNil(t, exc.Expected)
	require.Equal(t, Text{Text: "one"}, exc.Received)
	require.NotNil(t, exc.Node)
}

func (EvaluatorSuite) TestStackLimit(ctx context.Context, t *testctx.T) {
	v := run(ctx, t, "ƒ forever() forever()\nforever()")
	exc, ok := v.(*Exception)
	require.True(t, ok)
	require.Equal(t, StackLimit, exc.Kind)
}

func (EvaluatorSuite) TestStepLimit(ctx context.Context, t *testctx.T) {
	cfg := DefaultConfig()
	cfg.Evaluation.StepLimit = 10
	v := run(ctx, t, "[1 2 3 4 5 6 7 8 9].translate(ƒ(x) x · 2)", WithConfig(cfg))
	exc, ok := v.(*Exception)
	require.True(t, ok)
	require.Equal(t, StepLimit, exc.Kind)
}

func (EvaluatorSuite) TestOperandStack(ctx context.Context, t *testctx.T) {
	p := load(t, "1 + 1")
	ev := p.NewEvaluator(nil)

	// Start Block, Start BinaryEvaluate, 1, 1, Finish BinaryEvaluate
	ev.StepTo(5)
	values := ev.Values()
	require.Len(t, values, 1)
	require.True(t, Unitless(2).Equal(values[0]))

	require.Equal(t, "2", ev.Finish().String())
	require.True(t, ev.Done())
}

func (EvaluatorSuite) TestDeterminism(ctx context.Context, t *testctx.T) {
	source := "ƒ fib(n) n < 2 ? n fib(n - 1) + fib(n - 2)\n[1 2 3 4 5 6].translate(fib)"
	p := load(t, source)

	first, err := p.Run(ctx)
	require.NoError(t, err)
	second, err := p.NewEvaluator(nil).Run(ctx)
	require.NoError(t, err)

	require.Equal(t, "[1 1 2 3 5 8]", first.Value.String())
	require.True(t, first.Value.Equal(second))
}

func (EvaluatorSuite) TestStepBackReplays(ctx context.Context, t *testctx.T) {
	p := load(t, "[1 2 3].combine(0 ƒ(sum item) sum + item)")

	ev := p.NewEvaluator(nil)
	ev.StepTo(12)
	at12 := describeFrames(ev.Stack())
	values12 := ev.Values()

	ev.StepTo(20)
	ev.StepBack()
	require.Equal(t, 19, ev.Count())
	ev.StepTo(12)

	require.Equal(t, 12, ev.Count())
	require.Equal(t, at12, describeFrames(ev.Stack()))
	require.Equal(t, len(values12), len(ev.Values()))
	require.Equal(t, "6", ev.Finish().String())
}

func describeFrames(frames []Frame) []string {
	var out []string
	for _, f := range frames {
		step := "done"
		if f.Step != nil {
			step = f.Step.String()
		}
		out = append(out, f.Name+" "+step)
	}
	return out
}

func (EvaluatorSuite) TestJumpIntegrity(ctx context.Context, t *testctx.T) {
	for _, source := range []string{
		"⊤ ? 1 2",
		"⊥ & ⊤",
		"⊤ | ⊥",
		"0 … ⊤ … . + 1",
		"x: 1\nx > 0 ? (x < 2 ? 'one' 'many') 'none'",
	} {
		t.Run(source, func(ctx context.Context, t *testctx.T) {
			p := load(t, source)
			compiled := p.Context.Compile(p.Source)
			requireJumpsInRange(t, compiled)
		})
	}

	b := NewBasis()
	for _, name := range []string{"combine", "until", "translate", "filter", "find", "all", "any"} {
		fn := b.Method(ListKind, name)
		require.NotNil(t, fn, name)
		var kinds []StepKind
		for _, s := range fn.Steps {
			kinds = append(kinds, s.Kind)
		}
		require.Equal(t, []StepKind{StartStep, InitializeStep, NextStep, CheckStep, FinishStep}, kinds, name)
	}
}

func requireJumpsInRange(t testing.TB, compiled []*Step) {
	t.Helper()
	for i, s := range compiled {
		switch s.Kind {
		case JumpStep, JumpIfStep:
			require.Positive(t, s.Offset, "step %d: %s", i, s)
			// the step after the skipped segment must exist
			require.Less(t, i+s.Offset+1, len(compiled), "step %d: %s", i, s)
		}
	}
}

func (EvaluatorSuite) TestTraceGolden(ctx context.Context, t *testctx.T) {
	for _, tt := range []struct {
		golden string
		source string
	}{
		{"add.golden", "1 + 1"},
		{"conditional.golden", "⊤ ? 1 2"},
	} {
		t.Run(tt.golden, func(ctx context.Context, t *testctx.T) {
			result, err := load(t, tt.source).Run(ctx)
			require.NoError(t, err)
			var out strings.Builder
			for _, entry := range result.Trace {
				out.WriteString(entry.String())
				out.WriteString("\n")
			}
			golden.Assert(t, out.String(), tt.golden)
		})
	}
}
