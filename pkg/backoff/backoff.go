// Package backoff provides exponential backoff and clock-driven waiting.
package backoff

import (
	"context"
	"math"
	"time"

	"k8s.io/utils/clock"
)

// Config for exponential backoff. Zero values use defaults.
type Config struct {
	Initial time.Duration // default: 100ms
	Max     time.Duration // default: 5s
}

// Exponential calculates exponential backoff for a given attempt.
// Attempt 1 returns initial, attempt 2 returns initial*2, etc.
func Exponential(attempt int, cfg *Config) time.Duration {
	initial := 100 * time.Millisecond
	maxBackoff := 5 * time.Second
	if cfg != nil {
		if cfg.Initial > 0 {
			initial = cfg.Initial
		}
		if cfg.Max > 0 {
			maxBackoff = cfg.Max
		}
	}

	if attempt < 1 {
		return initial
	}
	d := float64(initial) * math.Pow(2.0, float64(attempt-1))
	return time.Duration(min(d, float64(maxBackoff)))
}

// Sleep waits for d on clk. It returns ctx.Err() if ctx ends first.
func Sleep(ctx context.Context, clk clock.Clock, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := clk.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C():
		return nil
	}
}

// Poll calls fn until it reports done or returns an error, backing off
// exponentially between calls. The context bounds the whole poll.
func Poll(ctx context.Context, clk clock.Clock, cfg *Config, fn func(ctx context.Context) (bool, error)) error {
	for attempt := 1; ; attempt++ {
		done, err := fn(ctx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		if err := Sleep(ctx, clk, Exponential(attempt, cfg)); err != nil {
			return err
		}
	}
}
