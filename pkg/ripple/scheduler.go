package ripple

import (
	"sync"
)

// reaction is a stream value waiting to be committed and evaluated.
type reaction struct {
	stream Stream
	event  StreamEvent
}

// Scheduler queues stream reactions for a program. Reactions are handled
// first in, first out, one evaluation pass each. A reaction raised while a
// pass is running waits in the queue; it never runs inside that pass.
type Scheduler struct {
	mu       sync.Mutex
	queue    []reaction
	updating bool
	wake     chan struct{}
}

func newScheduler() *Scheduler {
	return &Scheduler{wake: make(chan struct{}, 1)}
}

func (s *Scheduler) enqueue(r reaction) {
	s.mu.Lock()
	s.queue = append(s.queue, r)
	s.mu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Pending returns the number of queued reactions.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Wake is signalled whenever a reaction is queued.
func (s *Scheduler) Wake() <-chan struct{} {
	return s.wake
}

// begin claims the scheduler for a drain, reporting false if one is
// already in progress.
func (s *Scheduler) begin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updating {
		return false
	}
	s.updating = true
	return true
}

func (s *Scheduler) end() {
	s.mu.Lock()
	s.updating = false
	s.mu.Unlock()
}

func (s *Scheduler) next() (reaction, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return reaction{}, false
	}
	r := s.queue[0]
	s.queue = s.queue[1:]
	return r, true
}
