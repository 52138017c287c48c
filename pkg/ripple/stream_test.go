package ripple

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dagger/testctx"
	"github.com/dagger/testctx/oteltest"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

type StreamSuite struct{}

func TestStreams(tT *testing.T) {
	testctx.New(tT,
		oteltest.WithTracing[*testing.T](),
		oteltest.WithLogging[*testing.T](),
	).RunTests(StreamSuite{})
}

func pending(p *Program, n int) func() bool {
	return func() bool { return p.Scheduler().Pending() == n }
}

func flushOne(ctx context.Context, t testing.TB, p *Program) Result {
	t.Helper()
	results, err := p.Flush(ctx)
	require.NoError(t, err)
	require.Len(t, results, 1)
	return results[0]
}

func (StreamSuite) TestTimeTicks(ctx context.Context, t *testctx.T) {
	clock := clockwork.NewFakeClock()
	p := load(t, "Time(100ms)", WithClock(clock))

	first, err := p.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, "0ms", first.Value.String())
	require.Nil(t, first.Trigger)

	clock.BlockUntil(1)
	clock.Advance(100 * time.Millisecond)
	require.Eventually(t, pending(p, 1), time.Second, time.Millisecond)

	result := flushOne(ctx, t, p)
	require.Equal(t, "100ms", result.Value.String())
	require.NotNil(t, result.Trigger)
	require.Equal(t, "Time", result.Trigger.Definition().Name)

	latest, ok := p.Latest()
	require.True(t, ok)
	require.Equal(t, "100ms", latest.Value.String())
}

func (StreamSuite) TestTimeRestartKeepsOneTimer(ctx context.Context, t *testctx.T) {
	clock := clockwork.NewFakeClock()
	p := load(t, "Time(100ms)", WithClock(clock))
	_, err := p.Run(ctx)
	require.NoError(t, err)

	clock.BlockUntil(1)
	require.NoError(t, p.Streams()[0].Start())
	clock.Advance(100 * time.Millisecond)

	require.Eventually(t, pending(p, 1), time.Second, time.Millisecond)
	require.Never(t, pending(p, 2), 100*time.Millisecond, time.Millisecond)
	require.Equal(t, "100ms", flushOne(ctx, t, p).Value.String())
}

func (StreamSuite) TestStoppedStreamsIgnoreInput(ctx context.Context, t *testctx.T) {
	clock := clockwork.NewFakeClock()
	p := load(t, "Time(100ms)", WithClock(clock))
	_, err := p.Run(ctx)
	require.NoError(t, err)

	clock.BlockUntil(1)
	clock.Advance(100 * time.Millisecond)
	require.Eventually(t, pending(p, 1), time.Second, time.Millisecond)

	p.Stop()
	ticker := p.Streams()[0]
	require.False(t, ticker.Running())
	require.False(t, p.React(ticker, clock.Now()))

	results, err := p.Flush(ctx)
	require.NoError(t, err)
	require.Empty(t, results, "queued reactions of stopped streams are dropped")
	require.Empty(t, ticker.History())
}

func (StreamSuite) TestDeliver(ctx context.Context, t *testctx.T) {
	p := load(t, "Key()")
	first, err := p.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, "''", first.Value.String())

	require.Equal(t, 1, p.Deliver("Key", "a"))
	require.Equal(t, 0, p.Deliver("Chat", "a"))
	require.Equal(t, 0, p.Deliver("Key", 42), "input of the wrong kind is ignored")
	require.Equal(t, "'a'", flushOne(ctx, t, p).Value.String())
}

func (StreamSuite) TestChatAccumulates(ctx context.Context, t *testctx.T) {
	p := load(t, "Chat()")
	first, err := p.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, "[]", first.Value.String())

	p.Deliver("Chat", "hi")
	p.Deliver("Chat", "there")
	results, err := p.Flush(ctx)
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, "['hi']", results[0].Value.String())
	require.Equal(t, "['hi' 'there']", results[1].Value.String())
}

func (StreamSuite) TestHistoryLimit(ctx context.Context, t *testctx.T) {
	cfg := DefaultConfig()
	cfg.Streams.HistoryLimit = 2
	p := load(t, "Chat()", WithConfig(cfg))
	_, err := p.Run(ctx)
	require.NoError(t, err)

	for _, msg := range []string{"a", "b", "c"} {
		p.Deliver("Chat", msg)
	}
	results, err := p.Flush(ctx)
	require.NoError(t, err)
	require.Len(t, results, 3)
	require.Equal(t, "['b' 'c']", results[2].Value.String())
	require.Len(t, p.Streams()[0].History(), 2)
}

func (StreamSuite) TestPointer(ctx context.Context, t *testctx.T) {
	p := load(t, "Pointer()")
	first, err := p.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, "{'x':0px 'y':0px}", first.Value.String())

	p.Deliver("Pointer", Point{X: 3, Y: 4})
	require.Equal(t, "{'x':3px 'y':4px}", flushOne(ctx, t, p).Value.String())
}

func (StreamSuite) TestReactionCounts(ctx context.Context, t *testctx.T) {
	p := load(t, "count: 0 … ∆ Key() … . + 1\ncount")
	first, err := p.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, "0", first.Value.String())

	p.Deliver("Key", "a")
	p.Deliver("Key", "b")
	results, err := p.Flush(ctx)
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, "1", results[0].Value.String())
	require.Equal(t, "2", results[1].Value.String())
}

func (StreamSuite) TestReactionKeepsPriorWhenUnchanged(ctx context.Context, t *testctx.T) {
	p := load(t, "t: Time(100ms)\nn: 0 … ∆ Key() … . + 1\nn", WithClock(clockwork.NewFakeClock()))
	results, err := p.Replay(ctx, []RecordedEvent{
		{At: 100 * time.Millisecond, Stream: "Time"},
		{Stream: "Key", Raw: "a"},
		{At: 200 * time.Millisecond, Stream: "Time"},
	})
	require.NoError(t, err)

	var values []string
	for _, r := range results {
		values = append(values, r.Value.String())
	}
	require.Equal(t, []string{"0", "0", "1", "1"}, values)
}

func (StreamSuite) TestChangedWithoutTrigger(ctx context.Context, t *testctx.T) {
	require.Equal(t, "⊥", run(ctx, t, "∆ Key()").String())
}

func (StreamSuite) TestStreamInputs(ctx context.Context, t *testctx.T) {
	for _, tt := range []struct {
		source string
		kind   ExceptionKind
	}{
		{"Time('fast')", TypeMismatch},
		{"Key(1)", InputMismatch},
		{"Time(0ms)", StreamFault},
		{"Scene()", InputMismatch},
	} {
		t.Run(tt.source, func(ctx context.Context, t *testctx.T) {
			exc, ok := run(ctx, t, tt.source, WithClock(clockwork.NewFakeClock())).(*Exception)
			require.True(t, ok)
			require.Equal(t, tt.kind, exc.Kind, exc.Message)
		})
	}
}

func (StreamSuite) TestSceneSteps(ctx context.Context, t *testctx.T) {
	clock := clockwork.NewFakeClock()
	p := load(t, "Scene(['intro' 500ms 'done'])", WithClock(clock))
	first, err := p.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, "'intro'", first.Value.String())

	scene := p.Streams()[0].(*SceneStream)
	require.Equal(t, "intro", scene.Pending())
	require.Equal(t, 0, p.AnimationDone("outro"))
	require.Equal(t, 1, p.AnimationDone("intro"))
	require.Equal(t, "500ms", flushOne(ctx, t, p).Value.String())

	clock.BlockUntil(1)
	clock.Advance(500 * time.Millisecond)
	require.Eventually(t, pending(p, 1), time.Second, time.Millisecond)
	require.Equal(t, "'done'", flushOne(ctx, t, p).Value.String())
	require.Equal(t, 2, scene.Index())

	require.Equal(t, 1, p.AnimationDone("done"))
	results, err := p.Flush(ctx)
	require.NoError(t, err)
	require.Empty(t, results, "the last output holds")
}

func (StreamSuite) TestSceneReplay(ctx context.Context, t *testctx.T) {
	p := load(t, "Scene(['a' 'b'])", WithClock(clockwork.NewFakeClock()))
	results, err := p.Replay(ctx, []RecordedEvent{
		{Stream: "Animation", Raw: "a"},
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, "'b'", results[1].Value.String())
}

type recognition struct {
	text string
	err  error
}

// scriptedRecognizer replays recognitions, then blocks until cancelled.
type scriptedRecognizer struct {
	mu     sync.Mutex
	script []recognition
	calls  int
}

func (r *scriptedRecognizer) Recognize(ctx context.Context) (string, error) {
	r.mu.Lock()
	r.calls++
	if len(r.script) == 0 {
		r.mu.Unlock()
		<-ctx.Done()
		return "", ctx.Err()
	}
	next := r.script[0]
	r.script = r.script[1:]
	r.mu.Unlock()
	return next.text, next.err
}

func (r *scriptedRecognizer) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func speechConfig(retries int) *ProjectConfig {
	cfg := DefaultConfig()
	cfg.Streams.Speech = SpeechConfig{
		MaxRetries:     retries,
		InitialBackoff: Duration{time.Millisecond},
		MaxBackoff:     Duration{2 * time.Millisecond},
	}
	return cfg
}

func (StreamSuite) TestSpeech(ctx context.Context, t *testctx.T) {
	busy := errors.New("busy")
	for _, tt := range []struct {
		name     string
		script   []recognition
		retries  int
		expected string
		calls    int
		stops    bool
	}{
		{
			name:     "heard",
			script:   []recognition{{text: "hello"}},
			retries:  3,
			expected: "'hello'",
			calls:    2,
		},
		{
			name:     "transient failures are retried",
			script:   []recognition{{err: busy}, {err: busy}, {text: "ok"}},
			retries:  3,
			expected: "'ok'",
			calls:    4,
		},
		{
			name:     "retries run out",
			script:   []recognition{{err: busy}, {err: busy}, {err: busy}},
			retries:  2,
			expected: "'busy'",
			calls:    3,
			stops:    true,
		},
		{
			name:     "permission is not retried",
			script:   []recognition{{err: ErrPermission}},
			retries:  3,
			expected: "'speech recognition permission denied'",
			calls:    1,
			stops:    true,
		},
	} {
		t.Run(tt.name, func(ctx context.Context, t *testctx.T) {
			recognizer := &scriptedRecognizer{script: tt.script}
			p := load(t, "Speech()", WithConfig(speechConfig(tt.retries)), WithRecognizer(recognizer))
			first, err := p.Run(ctx)
			require.NoError(t, err)
			require.Equal(t, "''", first.Value.String())

			require.Eventually(t, pending(p, 1), 5*time.Second, time.Millisecond)
			require.Equal(t, tt.expected, flushOne(ctx, t, p).Value.String())
			require.Eventually(t, func() bool { return recognizer.Calls() == tt.calls }, 5*time.Second, time.Millisecond)

			speech := p.Streams()[0]
			if tt.stops {
				require.False(t, speech.Running(), "failures stop the stream")
				require.False(t, speech.React("late"))
				results, err := p.Flush(ctx)
				require.NoError(t, err)
				require.Empty(t, results)
				require.Equal(t, tt.expected, speech.Latest().String())
			} else {
				require.True(t, speech.Running())
			}

			p.Stop()
			p.Streams()[0].(*SpeechStream).Wait()
		})
	}
}

func (StreamSuite) TestSpeechWithoutRecognizer(ctx context.Context, t *testctx.T) {
	p := load(t, "Speech()")
	_, err := p.Run(ctx)
	require.NoError(t, err)
	p.Streams()[0].(*SpeechStream).Wait()
	require.Equal(t, "'speech recognition is not configured'", flushOne(ctx, t, p).Value.String())
	require.False(t, p.Streams()[0].Running())
}

func (StreamSuite) TestServe(ctx context.Context, t *testctx.T) {
	p := load(t, "Key()")
	_, err := p.Run(ctx)
	require.NoError(t, err)

	values := make(chan string, 4)
	p.OnResult(func(r Result) { values <- r.Value.String() })

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	served := make(chan error, 1)
	go func() {
		served <- p.Serve(ctx, func(ctx context.Context, p *Program) error {
			p.Deliver("Key", "x")
			<-ctx.Done()
			return nil
		})
	}()

	select {
	case v := <-values:
		require.Equal(t, "'x'", v)
	case <-time.After(5 * time.Second):
		t.Fatal("no result served")
	}
	cancel()
	require.NoError(t, <-served)
	require.False(t, p.Streams()[0].Running(), "serve stops streams on return")
}

func (StreamSuite) TestReplayRecording(ctx context.Context, t *testctx.T) {
	var events []RecordedEvent
	require.NoError(t, yaml.Unmarshal([]byte(`
- at: 250ms
  stream: Time
- stream: Pointer
  raw: {x: 3, y: 4}
- stream: Key
  raw: q
`), &events))
	require.Len(t, events, 3)
	require.Equal(t, 250*time.Millisecond, events[0].At)

	p := load(t, "[Time(1000ms) Pointer().get('x') Key()]", WithClock(clockwork.NewFakeClock()))
	results, err := p.Replay(ctx, events)
	require.NoError(t, err)

	var values []string
	for _, r := range results {
		values = append(values, r.Value.String())
	}
	require.Equal(t, []string{
		"[0ms 0px '']",
		"[250ms 0px '']",
		"[250ms 3px '']",
		"[250ms 3px 'q']",
	}, values)
}

func (StreamSuite) TestSchedulerIsFIFO(ctx context.Context, t *testctx.T) {
	p := load(t, "[Key() Choice()]")
	_, err := p.Run(ctx)
	require.NoError(t, err)

	p.Deliver("Choice", "left")
	p.Deliver("Key", "k")
	p.Deliver("Choice", "right")
	require.Equal(t, 3, p.Scheduler().Pending())

	results, err := p.Flush(ctx)
	require.NoError(t, err)
	var triggers []string
	for _, r := range results {
		triggers = append(triggers, r.Trigger.Definition().Name)
	}
	require.Equal(t, []string{"Choice", "Key", "Choice"}, triggers)
	require.Equal(t, "['k' 'right']", results[2].Value.String())
	require.Zero(t, p.Scheduler().Pending())
}
