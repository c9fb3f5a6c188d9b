// Package health provides liveness and readiness check responses.
package health

import (
	"context"
	"sort"
	"sync"
	"time"

	"k8s.io/utils/clock"
)

// ReadinessChecker is implemented by dependencies that can report whether
// they are able to serve requests.
type ReadinessChecker interface {
	Ready(ctx context.Context) error
}

// ReadinessFunc adapts a function to ReadinessChecker.
type ReadinessFunc func(ctx context.Context) error

// Ready calls f.
func (f ReadinessFunc) Ready(ctx context.Context) error { return f(ctx) }

// Status represents the health status of a component.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
	StatusDegraded  Status = "degraded"
)

// CheckResult contains the result of a health check.
type CheckResult struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
}

// Response is the health check response.
type Response struct {
	Status Status                 `json:"status"`
	Checks map[string]CheckResult `json:"checks,omitempty"`
}

type check struct {
	name     string
	checker  ReadinessChecker
	critical bool
}

// Checker runs the registered readiness checks and caches the result briefly.
type Checker struct {
	checks   []check
	timeout  time.Duration
	cacheTTL time.Duration
	clock    clock.PassiveClock

	mu           sync.RWMutex
	lastCheck    time.Time
	cachedReady  *Response
	shuttingDown bool
}

// Option configures a Checker.
type Option func(*Checker)

// WithCheck registers a critical check. A failing critical check makes the
// service unhealthy.
func WithCheck(name string, c ReadinessChecker) Option {
	return func(k *Checker) { k.checks = append(k.checks, check{name: name, checker: c, critical: true}) }
}

// WithOptionalCheck registers a check whose failure only degrades the service.
func WithOptionalCheck(name string, c ReadinessChecker) Option {
	return func(k *Checker) { k.checks = append(k.checks, check{name: name, checker: c}) }
}

// WithClock sets the clock used for result caching.
func WithClock(c clock.PassiveClock) Option {
	return func(k *Checker) { k.clock = c }
}

// NewChecker creates a new health checker.
func NewChecker(opts ...Option) *Checker {
	c := &Checker{
		timeout:  5 * time.Second,
		cacheTTL: time.Second,
		clock:    clock.RealClock{},
	}
	for _, opt := range opts {
		opt(c)
	}
	sort.SliceStable(c.checks, func(i, j int) bool { return c.checks[i].name < c.checks[j].name })
	return c
}

// Liveness reports whether the process is alive. It never consults dependencies.
func (c *Checker) Liveness(context.Context) *Response {
	return &Response{Status: StatusHealthy}
}

// Readiness reports whether the service should receive traffic.
func (c *Checker) Readiness(ctx context.Context) *Response {
	c.mu.RLock()
	if c.shuttingDown {
		c.mu.RUnlock()
		return &Response{
			Status: StatusUnhealthy,
			Checks: map[string]CheckResult{
				"shutdown": {Status: StatusUnhealthy, Message: "service is shutting down"},
			},
		}
	}

	if c.cachedReady != nil && c.clock.Since(c.lastCheck) < c.cacheTTL {
		cached := c.cachedReady
		c.mu.RUnlock()
		return cached
	}
	c.mu.RUnlock()

	response := &Response{Status: StatusHealthy, Checks: make(map[string]CheckResult, len(c.checks))}
	if len(c.checks) == 0 {
		response.Status = StatusUnhealthy
		response.Checks["backend"] = CheckResult{Status: StatusUnhealthy, Message: "no checks configured"}
	}

	for _, chk := range c.checks {
		result := c.run(ctx, chk.checker)
		if result.Status != StatusHealthy {
			if !chk.critical {
				result.Status = StatusDegraded
				if response.Status == StatusHealthy {
					response.Status = StatusDegraded
				}
			} else {
				response.Status = StatusUnhealthy
			}
		}
		response.Checks[chk.name] = result
	}

	c.mu.Lock()
	c.cachedReady = response
	c.lastCheck = c.clock.Now()
	c.mu.Unlock()

	return response
}

func (c *Checker) run(ctx context.Context, checker ReadinessChecker) CheckResult {
	if checker == nil {
		return CheckResult{Status: StatusUnhealthy, Message: "not configured"}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := checker.Ready(ctx); err != nil {
		return CheckResult{Status: StatusUnhealthy, Message: err.Error()}
	}
	return CheckResult{Status: StatusHealthy}
}

// IsHealthy returns true if the service can take traffic. A degraded
// service is still served.
func (r *Response) IsHealthy() bool {
	return r.Status == StatusHealthy || r.Status == StatusDegraded
}

// SetShuttingDown marks the service as shutting down so readiness fails
// and load balancers stop sending new traffic.
func (c *Checker) SetShuttingDown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.shuttingDown = true
	c.cachedReady = nil
}
