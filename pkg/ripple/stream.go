package ripple

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// StreamDefinition describes a kind of stream available to programs by
// name, e.g. Time or Key.
type StreamDefinition struct {
	Name   string
	Doc    string
	Inputs []BasisInput
	// ValueType is the type of the values the stream produces.
	ValueType Type
	// Accumulating streams keep history up to the configured limit; all
	// others keep only their latest value.
	Accumulating bool
	// Create builds a stopped stream from the constructor's inputs.
	Create func(p *Program, def *StreamDefinition, args []Value) (Stream, error)
}

func (d *StreamDefinition) DefinitionName() string { return d.Name }

// FunctionType is the type of the stream's constructor.
func (d *StreamDefinition) FunctionType() FunctionType {
	inputs := make([]Type, len(d.Inputs))
	for i, in := range d.Inputs {
		inputs[i] = in.Type
	}
	return FunctionType{
		Inputs: inputs,
		Output: StreamType{Value: d.ValueType},
		Stream: d,
	}
}

// StreamEvent is one value a stream produced, with the raw input it came
// from.
type StreamEvent struct {
	Raw   any
	Value Value
	At    time.Time

	// final events stop the stream once committed.
	final bool
}

// Stream is a time-varying value fed by the outside world. A stream
// records values only while running; each one causes a new evaluation pass.
type Stream interface {
	Definition() *StreamDefinition
	// Latest is the most recent value, or the stream's initial value.
	Latest() Value
	History() []StreamEvent
	Running() bool
	Start() error
	Stop()
	// React converts raw input into a value and queues it, reporting
	// whether the stream accepted it.
	React(raw any) bool

	commit(StreamEvent) bool
}

// streamBase implements the bookkeeping shared by every stream.
type streamBase struct {
	self    Stream
	def     *StreamDefinition
	program *Program
	limit   int
	initial Value
	convert func(raw any) (Value, error)

	mu      sync.Mutex
	running bool
	history []StreamEvent
}

func (s *streamBase) init(self Stream, p *Program, def *StreamDefinition, initial Value, convert func(any) (Value, error)) {
	s.self = self
	s.def = def
	s.program = p
	s.initial = initial
	s.convert = convert
	s.limit = 1
	if def.Accumulating {
		s.limit = p.Config.Streams.HistoryLimit
	}
}

func (s *streamBase) Definition() *StreamDefinition { return s.def }

func (s *streamBase) Latest() Value {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.history) == 0 {
		return s.initial
	}
	return s.history[len(s.history)-1].Value
}

func (s *streamBase) History() []StreamEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]StreamEvent(nil), s.history...)
}

func (s *streamBase) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *streamBase) Start() error {
	s.mu.Lock()
	s.running = true
	s.mu.Unlock()
	slog.Debug("stream started", "stream", s.def.Name)
	return nil
}

func (s *streamBase) Stop() {
	s.mu.Lock()
	wasRunning := s.running
	s.running = false
	s.mu.Unlock()
	if wasRunning {
		slog.Debug("stream stopped", "stream", s.def.Name)
	}
}

func (s *streamBase) React(raw any) bool {
	return s.react(raw, false)
}

// reactFinal queues raw as the stream's last value. The stream stops when
// the value is committed.
func (s *streamBase) reactFinal(raw any) bool {
	return s.react(raw, true)
}

func (s *streamBase) react(raw any, final bool) bool {
	if !s.Running() {
		return false
	}
	v, err := s.convert(raw)
	if err != nil {
		slog.Warn("stream ignored input", "stream", s.def.Name, "raw", raw, "error", err)
		return false
	}
	s.program.scheduler.enqueue(reaction{
		stream: s.self,
		event:  StreamEvent{Raw: raw, Value: v, At: s.program.Clock.Now(), final: final},
	})
	return true
}

// commit appends a queued event, unless the stream stopped in the
// meantime. Committing a final event stops the stream.
func (s *streamBase) commit(event StreamEvent) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return false
	}
	s.history = append(s.history, event)
	if s.limit > 0 && len(s.history) > s.limit {
		s.history = append([]StreamEvent(nil), s.history[len(s.history)-s.limit:]...)
	}
	if event.final {
		s.running = false
		slog.Debug("stream finished", "stream", s.def.Name)
	}
	return true
}

func (s *streamBase) String() string {
	return fmt.Sprintf("%s(%s)", s.def.Name, s.Latest())
}
