// Package debugger serves step-by-step control over a program's evaluation
// passes as JSON-RPC methods.
package debugger

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/handler"

	"github.com/vito/ripple/pkg/ripple"
)

// Session holds the pass being debugged.
type Session struct {
	program *ripple.Program

	mu sync.Mutex
	ev *ripple.Evaluator
}

// NewSession prepares a paused initial pass over p. The program must have
// been run once so its clock is set.
func NewSession(p *ripple.Program) *Session {
	return &Session{
		program: p,
		ev:      p.NewEvaluator(nil),
	}
}

// Methods returns the session's JSON-RPC methods.
func (s *Session) Methods() handler.Map {
	return handler.Map{
		"Debug.State":    handler.New(s.State),
		"Debug.Step":     handler.New(s.Step),
		"Debug.StepTo":   handler.New(s.StepTo),
		"Debug.StepBack": handler.New(s.StepBack),
		"Debug.Finish":   handler.New(s.Finish),
		"Debug.Stack":    handler.New(s.Stack),
		"Debug.React":    handler.New(s.React),
	}
}

// NewServer returns a server for the session's methods. Start it on a
// channel to begin serving.
func (s *Session) NewServer() *jrpc2.Server {
	return jrpc2.NewServer(s.Methods(), &jrpc2.ServerOptions{
		Logger: func(text string) { slog.Debug(text) },
	})
}

// State describes where the paused pass is.
type State struct {
	// Count is the number of steps executed.
	Count int    `json:"count"`
	Done  bool   `json:"done"`
	Next  string `json:"next,omitempty"`
	Depth int    `json:"depth"`
	// Values is the operand stack, bottom first.
	Values []string `json:"values"`
	Result string   `json:"result,omitempty"`
}

// Frame describes one evaluation on the stack.
type Frame struct {
	Name     string            `json:"name"`
	IP       int               `json:"ip"`
	Step     string            `json:"step,omitempty"`
	Bindings map[string]string `json:"bindings"`
}

type StepToParams struct {
	Count int `json:"count"`
}

type ReactParams struct {
	Stream string `json:"stream"`
	Raw    string `json:"raw"`
}

type ReactResult struct {
	Accepted int      `json:"accepted"`
	Results  []string `json:"results"`
}

func (s *Session) State(ctx context.Context) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked(), nil
}

func (s *Session) Step(ctx context.Context) (State, error) {
	return s.guarded(func() { s.ev.Step() })
}

func (s *Session) StepTo(ctx context.Context, params StepToParams) (State, error) {
	if params.Count < 0 {
		return State{}, jrpc2.Errorf(jrpc2.InvalidParams, "count must not be negative")
	}
	return s.guarded(func() { s.ev.StepTo(params.Count) })
}

func (s *Session) StepBack(ctx context.Context) (State, error) {
	return s.guarded(func() { s.ev.StepBack() })
}

func (s *Session) Finish(ctx context.Context) (State, error) {
	return s.guarded(func() { s.ev.Finish() })
}

func (s *Session) Stack(ctx context.Context) ([]Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var frames []Frame
	for _, f := range s.ev.Stack() {
		frame := Frame{
			Name:     f.Name,
			IP:       f.IP,
			Bindings: map[string]string{},
		}
		if f.Step != nil {
			frame.Step = f.Step.String()
		}
		for name, v := range f.Bindings {
			frame.Bindings[name] = fmt.Sprint(v)
		}
		frames = append(frames, frame)
	}
	return frames, nil
}

// React feeds input to the program's streams, handles the resulting
// reactions, and pauses at the start of a new pass triggered by the last
// of them.
func (s *Session) React(ctx context.Context, params ReactParams) (ReactResult, error) {
	if params.Stream == "" {
		return ReactResult{}, jrpc2.Errorf(jrpc2.InvalidParams, "missing stream")
	}
	accepted := s.program.Deliver(params.Stream, params.Raw)
	results, err := s.program.Flush(ctx)
	if err != nil {
		return ReactResult{}, err
	}
	res := ReactResult{Accepted: accepted, Results: []string{}}
	var trigger ripple.Stream
	for _, r := range results {
		res.Results = append(res.Results, fmt.Sprint(r.Value))
		trigger = r.Trigger
	}
	if trigger != nil {
		s.mu.Lock()
		s.ev = s.program.NewEvaluator(trigger)
		s.mu.Unlock()
	}
	return res, nil
}

func (s *Session) guarded(fn func()) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.ev.Guard(func() error {
		fn()
		return nil
	})
	if err != nil {
		return State{}, err
	}
	return s.stateLocked(), nil
}

func (s *Session) stateLocked() State {
	st := State{
		Count:  s.ev.Count(),
		Done:   s.ev.Done(),
		Depth:  len(s.ev.Stack()),
		Values: []string{},
	}
	if e := s.ev.CurrentEvaluation(); e != nil && !st.Done {
		if step := e.Current(); step != nil {
			st.Next = step.String()
		}
	}
	for _, v := range s.ev.Values() {
		st.Values = append(st.Values, fmt.Sprint(v))
	}
	if st.Done {
		st.Result = fmt.Sprint(s.ev.Result())
	}
	return st
}

// Names lists the bindings of a frame in a stable order.
func (f Frame) Names() []string {
	names := make([]string, 0, len(f.Bindings))
	for name := range f.Bindings {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
