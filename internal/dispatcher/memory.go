package dispatcher

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"k8s.io/utils/clock"

	"jobconsole/pkg/backoff"
	"jobconsole/pkg/circuitbreaker"
	"jobconsole/pkg/cloudevent"
)

// MemoryDispatcher is an in-memory async dispatcher.
// Deliveries are queued in a bounded channel and sent by a worker pool.
// If the buffer is full, deliveries are dropped (logged + metric incremented).
type MemoryDispatcher struct {
	queue    chan *Delivery
	sender   *cloudevent.Sender
	breakers *circuitbreaker.Registry
	clock    clock.WithTickerAndDelayedExecution
	config   MemoryConfig
	backoff  backoff.Config
	logger   *slog.Logger
	metrics  MetricsRecorder

	queued       atomic.Int64
	delivered    atomic.Int64
	failed       atomic.Int64
	dropped      atomic.Int64
	requeued     atomic.Int64
	retriesTotal atomic.Int64

	wg       sync.WaitGroup
	shutdown chan struct{}
	closed   atomic.Bool
}

// MetricsRecorder is an optional interface for recording dispatcher metrics.
type MetricsRecorder interface {
	RecordDispatcherDelivered(ctx context.Context, durationSeconds float64)
	RecordDispatcherFailed(ctx context.Context)
	RecordDispatcherDropped(ctx context.Context)
	RecordDispatcherRequeued(ctx context.Context)
	RecordDispatcherQueueSize(ctx context.Context, size int64)
}

// Option configures a MemoryDispatcher.
type Option func(*MemoryDispatcher)

// WithMetrics records delivery outcomes to m.
func WithMetrics(m MetricsRecorder) Option {
	return func(d *MemoryDispatcher) { d.metrics = m }
}

// WithClock sets the clock used for retries, requeues and breaker cooldowns.
func WithClock(c clock.WithTickerAndDelayedExecution) Option {
	return func(d *MemoryDispatcher) { d.clock = c }
}

// NewMemory creates a new in-memory dispatcher and starts its workers.
func NewMemory(cfg MemoryConfig, opts ...Option) *MemoryDispatcher {
	cfg = cfg.withDefaults()

	d := &MemoryDispatcher{
		queue:    make(chan *Delivery, cfg.BufferSize),
		sender:   cloudevent.NewSender(cfg.HTTPTimeout),
		clock:    clock.RealClock{},
		config:   cfg,
		backoff:  backoff.Config{Initial: cfg.InitialBackoff, Max: cfg.MaxBackoff},
		logger:   slog.With("component", "dispatcher"),
		shutdown: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.breakers = circuitbreaker.NewRegistry(circuitbreaker.Config{
		Threshold: cfg.BreakerThreshold,
		Cooldown:  cfg.BreakerCooldown,
		Clock:     d.clock,
	})

	d.wg.Add(cfg.Workers)
	for range cfg.Workers {
		go d.worker()
	}

	if d.metrics != nil {
		go d.reportQueueSize()
	}

	d.logger.Info("Dispatcher started", "workers", cfg.Workers, "buffer", cfg.BufferSize)
	return d
}

func (d *MemoryDispatcher) reportQueueSize() {
	ticker := d.clock.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-d.shutdown:
			return
		case <-ticker.C():
			d.metrics.RecordDispatcherQueueSize(context.Background(), int64(len(d.queue)))
		}
	}
}

// Dispatch queues a delivery.
func (d *MemoryDispatcher) Dispatch(dl *Delivery) error {
	if d.closed.Load() {
		return ErrClosed
	}

	select {
	case d.queue <- dl:
		d.queued.Add(1)
		return nil
	default:
		d.drop(dl, "Delivery dropped, buffer full")
		return ErrBufferFull
	}
}

// Stats returns current dispatcher statistics.
func (d *MemoryDispatcher) Stats() Stats {
	breakerStats := d.breakers.Stats()
	return Stats{
		QueueDepth:    len(d.queue),
		Queued:        d.queued.Load(),
		Delivered:     d.delivered.Load(),
		Failed:        d.failed.Load(),
		Dropped:       d.dropped.Load(),
		Requeued:      d.requeued.Load(),
		RetriesTotal:  d.retriesTotal.Load(),
		BreakersTotal: breakerStats.Total,
		BreakersOpen:  breakerStats.Open,
	}
}

// Close gracefully shuts down the dispatcher. Queued deliveries are
// attempted before workers exit; pending requeues are abandoned.
func (d *MemoryDispatcher) Close(ctx context.Context) error {
	if d.closed.Swap(true) {
		return nil
	}

	d.logger.Info("Dispatcher shutting down", "queued", len(d.queue))
	close(d.shutdown)

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.logger.Info("Dispatcher shutdown complete",
			"delivered", d.delivered.Load(),
			"failed", d.failed.Load(),
			"dropped", d.dropped.Load(),
		)
		return nil
	case <-ctx.Done():
		d.logger.Warn("Dispatcher shutdown timed out", "remaining", len(d.queue))
		return ctx.Err()
	}
}

func (d *MemoryDispatcher) worker() {
	defer d.wg.Done()

	for {
		select {
		case <-d.shutdown:
			d.drainQueue()
			return
		case dl := <-d.queue:
			d.deliver(dl)
		}
	}
}

func (d *MemoryDispatcher) drainQueue() {
	for {
		select {
		case dl := <-d.queue:
			d.deliver(dl)
		default:
			return
		}
	}
}

// deliver attempts a delivery with retry behind the destination's breaker.
func (d *MemoryDispatcher) deliver(dl *Delivery) {
	host := extractHost(dl.Destination)
	breaker := d.breakers.Get(host)

	if !breaker.Allow() {
		d.requeue(dl, host)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	start := d.clock.Now()
	if err := d.sendWithRetry(ctx, dl); err != nil {
		breaker.RecordFailure()
		d.failed.Add(1)
		if d.metrics != nil {
			d.metrics.RecordDispatcherFailed(ctx)
		}
		d.logger.Warn("Delivery failed", "destination", host, "type", dl.Payload.Type, "error", err)
		return
	}

	breaker.RecordSuccess()
	d.delivered.Add(1)
	if d.metrics != nil {
		d.metrics.RecordDispatcherDelivered(ctx, d.clock.Since(start).Seconds())
	}
}

// requeue puts a delivery back in the queue once the breaker cooldown has
// passed. The timer callback must not block.
func (d *MemoryDispatcher) requeue(dl *Delivery, host string) {
	if dl.Requeues >= d.config.MaxRequeues {
		d.drop(dl, "Delivery dropped, max requeues reached")
		return
	}

	dl.Requeues++
	d.requeued.Add(1)
	if d.metrics != nil {
		d.metrics.RecordDispatcherRequeued(context.Background())
	}

	d.clock.AfterFunc(d.config.BreakerCooldown, func() {
		if d.closed.Load() {
			return
		}
		select {
		case d.queue <- dl:
			d.logger.Debug("Delivery requeued", "destination", host, "type", dl.Payload.Type, "requeues", dl.Requeues)
		default:
			d.drop(dl, "Delivery dropped on requeue, buffer full")
		}
	})
}

func (d *MemoryDispatcher) drop(dl *Delivery, msg string) {
	d.dropped.Add(1)
	if d.metrics != nil {
		d.metrics.RecordDispatcherDropped(context.Background())
	}
	d.logger.Warn(msg, "destination", extractHost(dl.Destination), "type", dl.Payload.Type)
}

func (d *MemoryDispatcher) sendWithRetry(ctx context.Context, dl *Delivery) error {
	opts := cloudevent.SendOptions{SigningKey: dl.SigningKey}

	var lastErr error
	for attempt := range d.config.MaxRetries + 1 {
		if attempt > 0 {
			d.retriesTotal.Add(1)
			if err := backoff.Sleep(ctx, d.clock, backoff.Exponential(attempt, &d.backoff)); err != nil {
				return err
			}
		}

		lastErr = d.sender.Send(ctx, dl.Destination, dl.Payload, opts)
		if lastErr == nil {
			return nil
		}
		if cloudevent.IsClientError(lastErr) {
			return lastErr
		}
	}
	return lastErr
}

// extractHost extracts the host from a URL for circuit breaker keying.
func extractHost(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return rawURL
	}
	return parsed.Host
}

// Ready reports an error while any destination's circuit is open.
func (d *MemoryDispatcher) Ready(context.Context) error {
	if d.closed.Load() {
		return ErrClosed
	}
	if hosts := d.breakers.OpenKeys(); len(hosts) > 0 {
		return fmt.Errorf("webhook destination(s) unavailable: %s", strings.Join(hosts, ", "))
	}
	return nil
}

var _ Dispatcher = (*MemoryDispatcher)(nil)
