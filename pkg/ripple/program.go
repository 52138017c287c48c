package ripple

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/vito/ripple/pkg/ioctx"
)

const instrumentationName = "github.com/vito/ripple"

// Result is the outcome of one evaluation pass.
type Result struct {
	Value Value
	// Trace is every step executed, when tracing is enabled.
	Trace []TraceEntry
	Steps int
	// Trigger is the stream whose reaction caused the pass, or nil for the
	// first pass.
	Trigger Stream
	// Conflicts are the program's static problems. They never stop
	// evaluation.
	Conflicts []Conflict
}

// Program is a parsed source with everything needed to evaluate it
// repeatedly as its streams change.
type Program struct {
	Source     *Source
	Context    *Context
	Basis      *Basis
	Config     *ProjectConfig
	Clock      clockwork.Clock
	Recognizer Recognizer
	// Tracer records a span per pass. Defaults to the global provider's.
	Tracer trace.Tracer

	scheduler *Scheduler
	compiled  *lru.Cache[any, []*Step]
	conflicts []Conflict

	mu        sync.Mutex
	streams   map[*Evaluate]Stream
	order     []*Evaluate
	priors    map[Node]Value
	latest    *Result
	started   time.Time
	listeners []func(Result)
}

// Option configures a Program.
type Option func(*Program)

func WithConfig(cfg *ProjectConfig) Option {
	return func(p *Program) { p.Config = cfg }
}

func WithClock(clock clockwork.Clock) Option {
	return func(p *Program) { p.Clock = clock }
}

func WithBasis(basis *Basis) Option {
	return func(p *Program) { p.Basis = basis }
}

func WithRecognizer(r Recognizer) Option {
	return func(p *Program) { p.Recognizer = r }
}

func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(p *Program) { p.Tracer = tp.Tracer(instrumentationName) }
}

// NewProgram prepares source for evaluation.
func NewProgram(source *Source, opts ...Option) (*Program, error) {
	p := &Program{
		Source:    source,
		scheduler: newScheduler(),
		streams:   map[*Evaluate]Stream{},
		priors:    map[Node]Value{},
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.Config == nil {
		p.Config = DefaultConfig()
	}
	if p.Basis == nil {
		p.Basis = NewBasis()
	}
	if p.Tracer == nil {
		p.Tracer = otel.Tracer(instrumentationName)
	}
	size := p.Config.Evaluation.CompileCache
	if size <= 0 {
		size = DefaultConfig().Evaluation.CompileCache
	}
	compiled, err := lru.New[any, []*Step](size)
	if err != nil {
		return nil, fmt.Errorf("compile cache: %w", err)
	}
	p.compiled = compiled
	p.Context = NewContext(source, p.Basis, compiled)
	p.conflicts = AllConflicts(source, p.Context)
	return p, nil
}

// Load parses and prepares a program.
func Load(text, filename string, opts ...Option) (*Program, error) {
	return NewProgram(Parse(text, filename), opts...)
}

// Conflicts returns the program's static problems.
func (p *Program) Conflicts() []Conflict {
	return p.conflicts
}

// Limits returns the per-pass limits from the configuration.
func (p *Program) Limits() Limits {
	return Limits{
		Steps: p.Config.Evaluation.StepLimit,
		Depth: p.Config.Evaluation.StackLimit,
	}
}

// Scheduler returns the program's reaction queue.
func (p *Program) Scheduler() *Scheduler {
	return p.scheduler
}

func (p *Program) prior(node Node) (Value, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	v, ok := p.priors[node]
	return v, ok
}

// StreamAt returns the stream created by a constructor call, or nil if it
// has not been evaluated yet.
func (p *Program) StreamAt(node *Evaluate) Stream {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.streams[node]
}

// Streams returns every stream in creation order.
func (p *Program) Streams() []Stream {
	p.mu.Lock()
	defer p.mu.Unlock()
	streams := make([]Stream, len(p.order))
	for i, node := range p.order {
		streams[i] = p.streams[node]
	}
	return streams
}

// stream evaluates a stream constructor call to the stream's latest value.
// Each call site owns one stream for the life of the program, created and
// started the first time it is evaluated.
func (p *Program) stream(ev *Evaluator, node *Evaluate, def *StreamDefinition, args []Value) Value {
	if len(args) > len(def.Inputs) {
		return ev.Exception(InputMismatch, node, "%s takes %d inputs, got %d", def.Name, len(def.Inputs), len(args))
	}
	for i, in := range def.Inputs {
		if i >= len(args) {
			if in.Default == nil {
				return ev.Exception(InputMismatch, node, "%s is missing input '%s'", def.Name, in.Name)
			}
			continue
		}
		if !Accepts(in.Type, args[i].Type(), ev.ctx) {
			return ev.TypeMismatch(node, in.Type, args[i])
		}
	}

	p.mu.Lock()
	s, exists := p.streams[node]
	p.mu.Unlock()
	if exists {
		if u, ok := s.(interface{ update([]Value) }); ok {
			u.update(args)
		}
		return s.Latest()
	}

	s, err := def.Create(p, def, args)
	if err != nil {
		return ev.Exception(StreamFault, node, "%s: %s", def.Name, err)
	}
	p.mu.Lock()
	p.streams[node] = s
	p.order = append(p.order, node)
	p.mu.Unlock()
	if err := s.Start(); err != nil {
		return ev.Exception(StreamFault, node, "start %s: %s", def.Name, err)
	}
	return s.Latest()
}

// NewEvaluator prepares a pass over the whole program.
func (p *Program) NewEvaluator(trigger Stream) *Evaluator {
	return NewEvaluator(p, p.Source, trigger)
}

// Run evaluates the program for the first time.
func (p *Program) Run(ctx context.Context) (Result, error) {
	p.mu.Lock()
	if p.Clock == nil {
		p.Clock = ioctx.ClockFromContext(ctx)
	}
	p.started = p.Clock.Now()
	p.mu.Unlock()
	return p.pass(ctx, nil)
}

func (p *Program) pass(ctx context.Context, trigger Stream) (Result, error) {
	triggerName := "initial"
	if trigger != nil {
		triggerName = trigger.Definition().Name
	}
	ctx, span := p.Tracer.Start(ctx, "pass", trace.WithAttributes(
		attribute.String("ripple.program", p.Source.Name),
		attribute.String("ripple.trigger", triggerName),
	))
	defer span.End()

	ev := p.NewEvaluator(trigger)
	v, err := ev.Run(ctx)
	span.SetAttributes(attribute.Int("ripple.steps", ev.Count()))
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return Result{}, fmt.Errorf("evaluate %s: %w", p.Source.Name, err)
	}
	if exc, ok := v.(*Exception); ok {
		span.SetAttributes(attribute.String("ripple.exception", string(exc.Kind)))
	}

	result := Result{
		Value:     v,
		Trace:     ev.Trace(),
		Steps:     ev.Count(),
		Trigger:   trigger,
		Conflicts: p.conflicts,
	}

	p.mu.Lock()
	for node, prior := range ev.Priors() {
		p.priors[node] = prior
	}
	p.latest = &result
	listeners := append([]func(Result){}, p.listeners...)
	p.mu.Unlock()

	slog.Debug("evaluation completed", "program", p.Source.Name, "trigger", triggerName, "steps", ev.Count(), "value", v)
	for _, fn := range listeners {
		fn(result)
	}
	return result, nil
}

// Latest returns the result of the most recent pass.
func (p *Program) Latest() (Result, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.latest == nil {
		return Result{}, false
	}
	return *p.latest, true
}

// OnResult registers fn to be called after every pass.
func (p *Program) OnResult(fn func(Result)) {
	p.mu.Lock()
	p.listeners = append(p.listeners, fn)
	p.mu.Unlock()
}

// React feeds raw input to a stream, queueing a pass if the stream is
// running.
func (p *Program) React(s Stream, raw any) bool {
	return s.React(raw)
}

// Deliver feeds raw input to every running stream of the named kind, e.g.
// "Key", returning how many accepted it.
func (p *Program) Deliver(kind string, raw any) int {
	n := 0
	for _, s := range p.Streams() {
		if s.Definition().Name == kind && p.React(s, raw) {
			n++
		}
	}
	return n
}

// AnimationDone tells every scene that the named animation finished.
func (p *Program) AnimationDone(name string) int {
	n := 0
	for _, s := range p.Streams() {
		if scene, ok := s.(*SceneStream); ok && scene.AnimationDone(name) {
			n++
		}
	}
	return n
}

// Flush handles every queued reaction, one pass each, and returns their
// results. A Flush called while another is draining the queue returns
// immediately; the running drain picks up anything newly queued.
func (p *Program) Flush(ctx context.Context) ([]Result, error) {
	if !p.scheduler.begin() {
		return nil, nil
	}
	defer p.scheduler.end()

	var results []Result
	for {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		r, ok := p.scheduler.next()
		if !ok {
			return results, nil
		}
		if !r.stream.commit(r.event) {
			continue
		}
		result, err := p.pass(ctx, r.stream)
		if err != nil {
			return results, err
		}
		results = append(results, result)
	}
}

// Driver feeds a running program from the outside world, e.g. reading
// keys from a terminal. It returns when ctx is done.
type Driver func(ctx context.Context, p *Program) error

// Serve handles reactions as they arrive until ctx is done or a driver
// fails. Streams are stopped on return.
func (p *Program) Serve(ctx context.Context, drivers ...Driver) error {
	defer p.Stop()
	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		for {
			if _, err := p.Flush(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
			select {
			case <-ctx.Done():
				return nil
			case <-p.scheduler.Wake():
			}
		}
	})
	for _, drive := range drivers {
		eg.Go(func() error {
			return drive(ctx, p)
		})
	}
	return eg.Wait()
}

// Stop stops every stream, cancelling their timers.
func (p *Program) Stop() {
	for _, s := range p.Streams() {
		s.Stop()
	}
}

// RecordedEvent is stream input captured for replay. At is the offset
// from the start of the program.
type RecordedEvent struct {
	At     time.Duration `yaml:"at"`
	Stream string        `yaml:"stream"`
	Raw    any           `yaml:"raw"`
}

// Replay runs the program and feeds it recorded events in order, one
// flush each. Time streams receive the event's offset as their tick; they
// do not tick on their own unless the program's clock advances, so
// replaying on a fake clock is deterministic. The "Animation" pseudo-stream
// completes scene animations by name.
func (p *Program) Replay(ctx context.Context, events []RecordedEvent) ([]Result, error) {
	first, err := p.Run(ctx)
	if err != nil {
		return nil, err
	}
	results := []Result{first}
	for _, e := range events {
		switch e.Stream {
		case "Time":
			p.Deliver(e.Stream, p.started.Add(e.At))
		case "Animation":
			p.AnimationDone(fmt.Sprint(e.Raw))
		case "Pointer":
			p.Deliver(e.Stream, pointFrom(e.Raw))
		default:
			p.Deliver(e.Stream, fmt.Sprint(e.Raw))
		}
		flushed, err := p.Flush(ctx)
		if err != nil {
			return results, err
		}
		results = append(results, flushed...)
	}
	return results, nil
}

func pointFrom(raw any) Point {
	var pt Point
	switch r := raw.(type) {
	case map[string]any:
		pt.X = toFloat(r["x"])
		pt.Y = toFloat(r["y"])
	case []any:
		if len(r) == 2 {
			pt.X, pt.Y = toFloat(r[0]), toFloat(r[1])
		}
	}
	return pt
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case int:
		return float64(n)
	case float64:
		return n
	}
	return 0
}
