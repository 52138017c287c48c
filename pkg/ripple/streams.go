package ripple

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"

	"github.com/vito/ripple/pkg/units"
)

var (
	milliseconds = units.Of("ms")
	pixels       = units.Of("px")
)

func registerStreams(b *Basis) {
	b.DefineStream(&StreamDefinition{
		Name:      "Time",
		Doc:       "milliseconds elapsed since the stream started, ticking at frequency",
		Inputs:    []BasisInput{{Name: "frequency", Type: NumberType{Unit: milliseconds}, Default: NewNumber(33, milliseconds)}},
		ValueType: NumberType{Unit: milliseconds},
		Create:    newTimeStream,
	})
	b.DefineStream(&StreamDefinition{
		Name:      "Key",
		Doc:       "the most recently pressed key",
		ValueType: TextType{},
		Create:    newTextStream,
	})
	b.DefineStream(&StreamDefinition{
		Name:      "Pointer",
		Doc:       "the pointer's position, as {'x':… 'y':…} in pixels",
		ValueType: MapType{Key: TextType{}, Value: NumberType{Unit: pixels}},
		Create:    newPointerStream,
	})
	b.DefineStream(&StreamDefinition{
		Name:      "Choice",
		Doc:       "the name of the most recently chosen option",
		ValueType: TextType{},
		Create:    newTextStream,
	})
	b.DefineStream(&StreamDefinition{
		Name:         "Chat",
		Doc:          "every message received so far",
		ValueType:    ListType{Item: TextType{}},
		Accumulating: true,
		Create:       newChatStream,
	})
	b.DefineStream(&StreamDefinition{
		Name:      "Speech",
		Doc:       "the most recent phrase heard by the speech recognizer",
		ValueType: TextType{},
		Create:    newSpeechStream,
	})
	b.DefineStream(&StreamDefinition{
		Name:      "Scene",
		Doc:       "steps through outputs, waiting on gates, animations and pauses",
		Inputs:    []BasisInput{{Name: "outputs", Type: ListType{Item: anything}}},
		ValueType: anything,
		Create:    newSceneStream,
	})
}

// newTextStream builds streams whose raw input is text.
func newTextStream(p *Program, def *StreamDefinition, _ []Value) (Stream, error) {
	s := &simpleStream{}
	s.init(s, p, def, Text{}, convertText)
	return s, nil
}

func convertText(raw any) (Value, error) {
	switch r := raw.(type) {
	case string:
		return Text{Text: r}, nil
	case Text:
		return r, nil
	}
	return nil, fmt.Errorf("expected text, got %T", raw)
}

type simpleStream struct {
	streamBase
}

// TimeStream ticks at a fixed frequency on the program's clock.
type TimeStream struct {
	streamBase
	frequency time.Duration

	started time.Time
	timer   clockwork.Timer
}

func newTimeStream(p *Program, def *StreamDefinition, args []Value) (Stream, error) {
	frequency := p.Config.Streams.TimeFrequency.Duration
	if len(args) > 0 {
		n := args[0].(Number)
		frequency = time.Duration(n.Num.Mul(decimal.NewFromInt(int64(time.Millisecond))).IntPart())
	}
	if frequency <= 0 {
		return nil, fmt.Errorf("time frequency must be positive, got %s", frequency)
	}
	t := &TimeStream{frequency: frequency}
	t.init(t, p, def, NewNumber(0, milliseconds), t.elapsed)
	return t, nil
}

func (t *TimeStream) elapsed(raw any) (Value, error) {
	now, ok := raw.(time.Time)
	if !ok {
		return nil, fmt.Errorf("expected a time, got %T", raw)
	}
	t.mu.Lock()
	started := t.started
	t.mu.Unlock()
	return NewNumber(now.Sub(started).Milliseconds(), milliseconds), nil
}

func (t *TimeStream) Start() error {
	if err := t.streamBase.Start(); err != nil {
		return err
	}
	t.mu.Lock()
	t.started = t.program.Clock.Now()
	t.mu.Unlock()
	t.schedule()
	return nil
}

func (t *TimeStream) schedule() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.running {
		return
	}
	if t.timer != nil {
		t.timer.Stop()
	}
	t.timer = t.program.Clock.AfterFunc(t.frequency, func() {
		if t.React(t.program.Clock.Now()) {
			t.schedule()
		}
	})
}

func (t *TimeStream) Stop() {
	t.streamBase.Stop()
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}

// Point is raw pointer input.
type Point struct {
	X, Y float64
}

func newPointerStream(p *Program, def *StreamDefinition, _ []Value) (Stream, error) {
	s := &simpleStream{}
	s.init(s, p, def, pointerValue(Point{}), func(raw any) (Value, error) {
		switch r := raw.(type) {
		case Point:
			return pointerValue(r), nil
		case [2]float64:
			return pointerValue(Point{X: r[0], Y: r[1]}), nil
		}
		return nil, fmt.Errorf("expected a point, got %T", raw)
	})
	return s, nil
}

func pointerValue(pt Point) Value {
	return NewMap(
		[]Value{Text{Text: "x"}, Text{Text: "y"}},
		[]Value{
			Number{Num: decimal.NewFromFloat(pt.X), Unit: pixels},
			Number{Num: decimal.NewFromFloat(pt.Y), Unit: pixels},
		},
	)
}

// ChatStream accumulates messages; its value is every message kept.
type ChatStream struct {
	streamBase
}

func newChatStream(p *Program, def *StreamDefinition, _ []Value) (Stream, error) {
	s := &ChatStream{}
	s.init(s, p, def, NewList(), convertText)
	return s, nil
}

func (c *ChatStream) Latest() Value {
	var messages []Value
	for _, event := range c.History() {
		messages = append(messages, event.Value)
	}
	return NewList(messages...)
}

// Recognizer turns speech into text. Recognize blocks until a phrase is
// heard.
type Recognizer interface {
	Recognize(ctx context.Context) (string, error)
}

var (
	// ErrPermission is returned by recognizers that were denied access to
	// the microphone. It is not retried.
	ErrPermission = errors.New("speech recognition permission denied")
	// ErrConfiguration is returned by recognizers that are not set up. It
	// is not retried.
	ErrConfiguration = errors.New("speech recognition is not configured")
)

// speechFailure is the raw input recorded when recognition gives up.
type speechFailure struct {
	err error
}

// SpeechStream listens on the program's recognizer while running.
type SpeechStream struct {
	streamBase
	cancel context.CancelFunc
	done   chan struct{}
}

func newSpeechStream(p *Program, def *StreamDefinition, _ []Value) (Stream, error) {
	s := &SpeechStream{}
	s.init(s, p, def, Text{}, func(raw any) (Value, error) {
		if f, ok := raw.(speechFailure); ok {
			return Text{Text: f.err.Error()}, nil
		}
		return convertText(raw)
	})
	return s, nil
}

func (s *SpeechStream) Start() error {
	if err := s.streamBase.Start(); err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.cancel = cancel
	s.done = make(chan struct{})
	done := s.done
	s.mu.Unlock()
	go func() {
		defer close(done)
		s.listen(ctx)
	}()
	return nil
}

func (s *SpeechStream) listen(ctx context.Context) {
	recognizer := s.program.Recognizer
	cfg := s.program.Config.Streams.Speech
	for ctx.Err() == nil {
		if recognizer == nil {
			s.reactFinal(speechFailure{ErrConfiguration})
			return
		}
		policy := backoff.NewExponentialBackOff()
		policy.InitialInterval = cfg.InitialBackoff.Duration
		policy.MaxInterval = cfg.MaxBackoff.Duration
		text, err := backoff.Retry(ctx, func() (string, error) {
			text, err := recognizer.Recognize(ctx)
			if errors.Is(err, ErrPermission) || errors.Is(err, ErrConfiguration) {
				return "", backoff.Permanent(err)
			}
			return text, err
		},
			backoff.WithBackOff(policy),
			backoff.WithMaxTries(uint(cfg.MaxRetries)+1),
			backoff.WithNotify(func(err error, delay time.Duration) {
				slog.Warn("speech recognition failed, retrying", "error", err, "delay", delay)
			}),
		)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Warn("speech recognition stopped", "error", err)
			s.reactFinal(speechFailure{err})
			return
		}
		s.React(text)
	}
}

func (s *SpeechStream) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	s.streamBase.Stop()
}

// Wait blocks until the recognizer loop exits.
func (s *SpeechStream) Wait() {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done != nil {
		<-done
	}
}

// SceneStream steps through a list of outputs. Its value is the current
// output. It moves on when the current output has been shown for the
// scene duration, with three exceptions: a ⊥ gate holds the scene until a
// later pass turns it ⊤, a text output is an animation that holds the
// scene until AnimationDone is called with its name, and a number of
// milliseconds or seconds pauses for that long instead.
type SceneStream struct {
	streamBase

	outputs []Value
	index   int
	// pending is the animation the scene is waiting on.
	pending string
	timer   clockwork.Timer
	// updating is set while outputs are replaced during a pass. Advances
	// requested meanwhile are deferred until the update completes.
	updating bool
	deferred bool
}

func newSceneStream(p *Program, def *StreamDefinition, args []Value) (Stream, error) {
	list, ok := args[0].(*List)
	if !ok {
		return nil, fmt.Errorf("scene outputs must be a list, got %s", args[0])
	}
	s := &SceneStream{outputs: list.Items()}
	var initial Value = None{}
	if len(s.outputs) > 0 {
		initial = s.outputs[0]
	}
	s.init(s, p, def, initial, s.convertIndex)
	return s, nil
}

func (s *SceneStream) convertIndex(raw any) (Value, error) {
	i, ok := raw.(int)
	if !ok {
		return nil, fmt.Errorf("expected an output index, got %T", raw)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < 0 || i >= len(s.outputs) {
		return nil, fmt.Errorf("output %d out of range", i)
	}
	return s.outputs[i], nil
}

// Index returns the position of the current output.
func (s *SceneStream) Index() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index
}

// Pending returns the animation the scene is waiting on, if any.
func (s *SceneStream) Pending() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

func (s *SceneStream) Start() error {
	if err := s.streamBase.Start(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enterLocked()
	return nil
}

func (s *SceneStream) Stop() {
	s.streamBase.Stop()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopTimerLocked()
}

// AnimationDone reports that an animation finished playing. The scene
// advances if it was waiting on it.
func (s *SceneStream) AnimationDone(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == "" || s.pending != name {
		return false
	}
	s.pending = ""
	s.advanceLocked()
	return true
}

// update replaces the outputs with those of a new pass.
func (s *SceneStream) update(args []Value) {
	list, ok := args[0].(*List)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updating = true
	s.outputs = list.Items()
	if s.index >= len(s.outputs) {
		s.index = max(len(s.outputs)-1, 0)
	}
	// a gate that opened lets the scene continue
	if s.index < len(s.outputs) {
		if gate, ok := s.outputs[s.index].(Bool); ok && gate.Bool && s.timer == nil && s.pending == "" {
			s.deferred = true
		}
	}
	s.updating = false
	if s.deferred {
		s.deferred = false
		s.advanceLocked()
	}
}

// enterLocked arms whatever the current output waits on.
func (s *SceneStream) enterLocked() {
	s.stopTimerLocked()
	if !s.running || s.index >= len(s.outputs) {
		return
	}
	switch out := s.outputs[s.index].(type) {
	case Bool:
		if !out.Bool {
			return
		}
		s.startTimerLocked(0)
	case Text:
		s.pending = out.Text
	case Number:
		s.startTimerLocked(pauseDuration(out, s.program.Config.Streams.SceneDuration.Duration))
	default:
		s.startTimerLocked(s.program.Config.Streams.SceneDuration.Duration)
	}
}

func pauseDuration(n Number, fallback time.Duration) time.Duration {
	switch {
	case n.Unit.Equal(milliseconds):
		return time.Duration(n.Num.Mul(decimal.NewFromInt(int64(time.Millisecond))).IntPart())
	case n.Unit.Equal(units.Of("s")):
		return time.Duration(n.Num.Mul(decimal.NewFromInt(int64(time.Second))).IntPart())
	}
	return fallback
}

func (s *SceneStream) startTimerLocked(d time.Duration) {
	var timer clockwork.Timer
	timer = s.program.Clock.AfterFunc(d, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.timer != timer {
			return
		}
		s.timer = nil
		s.advanceLocked()
	})
	s.timer = timer
}

func (s *SceneStream) stopTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// advanceLocked moves to the next output and queues a reaction for it.
func (s *SceneStream) advanceLocked() {
	if s.updating {
		s.deferred = true
		return
	}
	if !s.running || s.index+1 >= len(s.outputs) {
		return
	}
	s.index++
	next := s.outputs[s.index]
	s.enterLocked()
	s.program.scheduler.enqueue(reaction{
		stream: s,
		event:  StreamEvent{Raw: s.index, Value: next, At: s.program.Clock.Now()},
	})
}

// Latest is the output at the most recently committed position. Outputs
// replaced by a later pass show through without a new reaction.
func (s *SceneStream) Latest() Value {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := 0
	if n := len(s.history); n > 0 {
		i = s.history[n-1].Raw.(int)
	}
	if i >= len(s.outputs) {
		return None{}
	}
	return s.outputs[i]
}
