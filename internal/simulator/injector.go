package simulator

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"time"

	"k8s.io/utils/clock"

	"jobconsole/internal/apperrors"
)

// ErrNetwork is the cause carried by injected transient failures.
var ErrNetwork = errors.New("network error")

// Injector delays simulated responses and occasionally replaces them with a
// transient failure.
type Injector struct {
	clock       clock.Clock
	minLatency  time.Duration
	maxLatency  time.Duration
	failureRate float64

	mu  sync.Mutex
	rng *rand.Rand
}

// NewInjector creates an injector. Latency is drawn uniformly from
// [minLatency, maxLatency).
func NewInjector(clk clock.Clock, rng *rand.Rand, minLatency, maxLatency time.Duration, failureRate float64) *Injector {
	return &Injector{
		clock:       clk,
		rng:         rng,
		minLatency:  minLatency,
		maxLatency:  maxLatency,
		failureRate: failureRate,
	}
}

// roll draws the latency and failure decision for one call.
func (in *Injector) roll() (time.Duration, bool) {
	in.mu.Lock()
	defer in.mu.Unlock()

	d := in.minLatency
	if span := in.maxLatency - in.minLatency; span > 0 {
		d += time.Duration(in.rng.Int64N(int64(span)))
	}
	fail := in.failureRate > 0 && in.rng.Float64() < in.failureRate
	return d, fail
}

// Deliver waits out the injected latency and reports whether the call should
// fail. It returns ctx.Err() if ctx ends first.
func (in *Injector) Deliver(ctx context.Context, op string) error {
	d, fail := in.roll()
	if d > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-in.clock.After(d):
		}
	}
	if fail {
		return apperrors.Transient(op, ErrNetwork)
	}
	return nil
}

// deliver passes v through the injector.
func deliver[T any](ctx context.Context, in *Injector, op string, v T) (T, error) {
	if err := in.Deliver(ctx, op); err != nil {
		var zero T
		return zero, err
	}
	return v, nil
}
