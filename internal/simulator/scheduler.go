package simulator

import (
	"sync"
	"time"

	"k8s.io/utils/clock"
)

// Scheduler owns the delayed transitions of simulated jobs. Timers are keyed
// by job id and run on the injected clock, so tests can drive them with a
// fake clock. Callbacks must not call back into the clock.
type Scheduler struct {
	clock clock.WithDelayedExecution

	mu      sync.Mutex
	seq     uint64
	entries map[uint64]*scheduled
	closed  bool
}

type scheduled struct {
	jobID string
	timer clock.Timer
}

// NewScheduler creates a scheduler running on clk.
func NewScheduler(clk clock.WithDelayedExecution) *Scheduler {
	return &Scheduler{
		clock:   clk,
		entries: make(map[uint64]*scheduled),
	}
}

// Schedule runs fn once after delay. Several timers may be outstanding for
// the same job; none is replaced.
func (s *Scheduler) Schedule(jobID string, delay time.Duration, fn func()) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.seq++
	key := s.seq
	entry := &scheduled{jobID: jobID}
	s.entries[key] = entry
	s.mu.Unlock()

	// AfterFunc is called without s.mu held: a fake clock may run callbacks
	// while holding its own lock, and fire takes s.mu.
	t := s.clock.AfterFunc(delay, func() { s.fire(key, fn) })

	s.mu.Lock()
	if _, pending := s.entries[key]; pending {
		entry.timer = t
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	// Already fired, cancelled or closed.
	t.Stop()
}

func (s *Scheduler) fire(key uint64, fn func()) {
	s.mu.Lock()
	_, ok := s.entries[key]
	delete(s.entries, key)
	s.mu.Unlock()

	if ok {
		fn()
	}
}

// Cancel drops every outstanding timer for a job and returns how many were
// dropped. A callback already running is not interrupted.
func (s *Scheduler) Cancel(jobID string) int {
	s.mu.Lock()
	var timers []clock.Timer
	n := 0
	for key, e := range s.entries {
		if e.jobID != jobID {
			continue
		}
		if e.timer != nil {
			timers = append(timers, e.timer)
		}
		delete(s.entries, key)
		n++
	}
	s.mu.Unlock()

	for _, t := range timers {
		t.Stop()
	}
	return n
}

// Pending returns the number of outstanding timers for a job.
func (s *Scheduler) Pending(jobID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, e := range s.entries {
		if e.jobID == jobID {
			n++
		}
	}
	return n
}

// Len returns the number of outstanding timers across all jobs.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Close stops every outstanding timer. Later calls to Schedule are ignored.
func (s *Scheduler) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	timers := make([]clock.Timer, 0, len(s.entries))
	for key, e := range s.entries {
		if e.timer != nil {
			timers = append(timers, e.timer)
		}
		delete(s.entries, key)
	}
	s.mu.Unlock()

	for _, t := range timers {
		t.Stop()
	}
}
