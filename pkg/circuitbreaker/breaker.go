// Package circuitbreaker implements the circuit breaker pattern.
//
// A breaker counts consecutive failures against one host and, once a
// threshold is crossed, blocks calls until a cooldown has passed. After the
// cooldown a single trial call is let through; its outcome closes or reopens
// the circuit.
package circuitbreaker

import (
	"errors"
	"sync"
	"time"

	"k8s.io/utils/clock"
)

// ErrOpen is reported by callers that skip a call because the circuit is open.
var ErrOpen = errors.New("circuit breaker open")

// State represents the state of a circuit breaker.
type State int

const (
	Closed   State = iota // Normal operation, requests allowed
	Open                  // Failing, requests blocked
	HalfOpen              // Trial call in flight
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Config holds configuration for a circuit breaker.
type Config struct {
	Threshold int                // Failures before circuit opens (default: 5)
	Cooldown  time.Duration      // Time before a trial call is allowed (default: 30s)
	Clock     clock.PassiveClock // Time source (default: real clock)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Threshold: 5,
		Cooldown:  30 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.Threshold <= 0 {
		c.Threshold = def.Threshold
	}
	if c.Cooldown <= 0 {
		c.Cooldown = def.Cooldown
	}
	if c.Clock == nil {
		c.Clock = clock.RealClock{}
	}
	return c
}

// Breaker guards calls to a single resource.
type Breaker struct {
	mu          sync.Mutex
	cfg         Config
	state       State
	failures    int
	lastFailure time.Time
}

// New creates a new circuit breaker.
func New(cfg Config) *Breaker {
	return &Breaker{cfg: cfg.withDefaults(), state: Closed}
}

// Allow returns true if a call should be attempted. In the half-open state
// only the first caller gets through until the trial call is recorded.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Open:
		if b.cfg.Clock.Since(b.lastFailure) >= b.cfg.Cooldown {
			b.state = HalfOpen
			return true
		}
		return false
	case HalfOpen:
		return false
	default:
		return true
	}
}

// RecordSuccess records a successful call and closes the circuit.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures = 0
	b.state = Closed
}

// RecordFailure records a failed call.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	b.lastFailure = b.cfg.Clock.Now()

	if b.state == HalfOpen || b.failures >= b.cfg.Threshold {
		b.state = Open
	}
}

// Release gives back the half-open trial slot without recording an outcome.
// Use it when a call was allowed but ended before the resource answered,
// for example on caller cancellation. The next Allow lets a new call through.
func (b *Breaker) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == HalfOpen {
		b.state = Open
	}
}

// State returns the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Failures returns the current consecutive failure count.
func (b *Breaker) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}
