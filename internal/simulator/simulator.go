// Package simulator provides an in-process job backend that models the job
// lifecycle, asynchronous boot, and transient network failures without a
// container runtime.
package simulator

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"slices"
	"time"

	"k8s.io/utils/clock"

	"jobconsole/internal/apperrors"
	"jobconsole/internal/job"
)

// errNotPending aborts a scheduled promotion of a job that left PENDING.
var errNotPending = errors.New("job is no longer pending")

// MetricsRecorder is an optional interface for recording simulator metrics.
type MetricsRecorder interface {
	RecordJobCreated(ctx context.Context, image string)
	RecordTransition(ctx context.Context, from, to job.Status)
	RecordInjectedFailure(ctx context.Context, op string)
}

// Simulator is an in-memory implementation of job.Backend.
//
// Every operation checks and mutates the registry atomically before the
// injected latency, so an injected failure can be reported for an operation
// whose effect was already applied. The simulator never moves a job to
// COMPLETED or FAILED; those statuses only appear in sample data.
type Simulator struct {
	config    Config
	clock     clock.WithDelayedExecution
	registry  *Registry
	scheduler *Scheduler
	injector  *Injector
	images    []string
	metrics   MetricsRecorder
	notifier  job.Notifier
	logger    *slog.Logger
}

// Option configures a Simulator.
type Option func(*options)

type options struct {
	clock    clock.WithDelayedExecution
	rng      *rand.Rand
	metrics  MetricsRecorder
	notifier job.Notifier
}

// WithClock sets the clock driving latency and transition timers.
func WithClock(c clock.WithDelayedExecution) Option {
	return func(o *options) { o.clock = c }
}

// WithRand sets the random source for latency and failure injection.
func WithRand(r *rand.Rand) Option {
	return func(o *options) { o.rng = r }
}

// WithMetrics records transitions and injected failures.
func WithMetrics(m MetricsRecorder) Option {
	return func(o *options) { o.metrics = m }
}

// WithNotifier receives an event after every state change.
func WithNotifier(n job.Notifier) Option {
	return func(o *options) { o.notifier = n }
}

// New creates a simulator.
func New(cfg Config, opts ...Option) *Simulator {
	cfg = cfg.normalize()

	o := options{clock: clock.RealClock{}}
	for _, opt := range opts {
		opt(&o)
	}
	if o.rng == nil {
		seed := cfg.RandomSeed
		if seed == 0 {
			seed = rand.Uint64()
		}
		o.rng = rand.New(rand.NewPCG(seed, seed>>1|1))
	}

	s := &Simulator{
		config:    cfg,
		clock:     o.clock,
		registry:  NewRegistry(),
		scheduler: NewScheduler(o.clock),
		injector:  NewInjector(o.clock, o.rng, cfg.MinLatency, cfg.MaxLatency, cfg.FailureRate),
		images:    []string{},
		metrics:   o.metrics,
		notifier:  o.notifier,
		logger:    slog.With("component", "simulator"),
	}
	if cfg.SeedData {
		s.images = slices.Clone(sampleImages)
		seed(s.registry, o.clock.Now())
	}
	return s
}

// Registry exposes the underlying job store.
func (s *Simulator) Registry() *Registry {
	return s.registry
}

// Scheduler exposes the transition timers.
func (s *Simulator) Scheduler() *Scheduler {
	return s.scheduler
}

// ListImages returns the image catalog.
func (s *Simulator) ListImages(ctx context.Context) ([]string, error) {
	return deliverRecorded(ctx, s, "listImages", slices.Clone(s.images))
}

// ListJobs returns every job, oldest first.
func (s *Simulator) ListJobs(ctx context.Context) ([]job.Job, error) {
	jobs := s.registry.List()
	return deliverRecorded(ctx, s, "listJobs", jobs)
}

// GetJob returns a job by id.
func (s *Simulator) GetJob(ctx context.Context, id string) (*job.Job, error) {
	j, ok := s.registry.Get(id)
	if !ok {
		return nil, apperrors.NotFound("job", id)
	}
	return deliverRecorded(ctx, s, "getJob", j)
}

// GetLogs returns the logs of a job. Unknown ids get a placeholder line
// rather than a not found error.
func (s *Simulator) GetLogs(ctx context.Context, id string) (string, error) {
	text := s.registry.Logs(id, s.clock.Now())
	return deliverRecorded(ctx, s, "getLogs", text)
}

// StartJob creates a PENDING job that boots after the configured delay.
func (s *Simulator) StartJob(ctx context.Context, image string, cfg job.Config) (*job.Job, error) {
	now := s.clock.Now()
	j := s.registry.Create(image, cfg, now)

	s.logger.Info("Job created", "jobId", j.ID, "image", image)
	if s.metrics != nil {
		s.metrics.RecordJobCreated(ctx, image)
	}
	s.notify(ctx, job.NewEvent(job.EventTypeCreated, j, now))
	s.schedulePromotion(j.ID, now, s.config.BootDelay)

	return deliverRecorded(ctx, s, "startJob", j)
}

// StopJob stops a PENDING or RUNNING job.
func (s *Simulator) StopJob(ctx context.Context, id string) error {
	now := s.clock.Now()
	var from job.Status
	j, ok, err := s.registry.Update(id, func(j *job.Job) error {
		if !j.Status.CanStop() {
			return apperrors.InvalidTransition("job", id, "stop", string(j.Status))
		}
		from = j.Status
		j.Status = job.StatusStopped
		finished := now
		j.Finished = &finished
		return nil
	})
	if !ok {
		return apperrors.NotFound("job", id)
	}
	if err != nil {
		return err
	}

	s.logger.Info("Job stopped", "jobId", id)
	s.recordTransition(ctx, from, job.StatusStopped)
	s.notify(ctx, job.NewEvent(job.EventTypeStopped, j, now))

	_, err = deliverRecorded(ctx, s, "stopJob", struct{}{})
	return err
}

// RestartJob moves a STOPPED, FAILED or COMPLETED job back to PENDING. It
// boots after the restart delay; timers left from the previous run are dropped.
func (s *Simulator) RestartJob(ctx context.Context, id string) (*job.Job, error) {
	now := s.clock.Now()
	var from job.Status
	j, ok, err := s.registry.Update(id, func(j *job.Job) error {
		if !j.Status.CanRestart() {
			return apperrors.InvalidTransition("job", id, "restart", string(j.Status))
		}
		from = j.Status
		j.Status = job.StatusPending
		started := now
		j.Started = &started
		j.Finished = nil
		return nil
	})
	if !ok {
		return nil, apperrors.NotFound("job", id)
	}
	if err != nil {
		return nil, err
	}

	s.logger.Info("Job restarted", "jobId", id, "from", from)
	s.recordTransition(ctx, from, job.StatusPending)
	s.notify(ctx, job.NewEvent(job.EventTypeRestarted, j, now))
	// A boot timer left over from the previous run must not promote this one.
	if n := s.scheduler.Cancel(id); n > 0 {
		s.logger.Debug("Earlier timers cancelled", "jobId", id, "count", n)
	}
	s.schedulePromotion(id, now, s.config.RestartDelay)

	return deliverRecorded(ctx, s, "restartJob", j)
}

// Ready reports the simulator as always reachable.
func (s *Simulator) Ready(ctx context.Context) error {
	return nil
}

// Close stops outstanding transition timers.
func (s *Simulator) Close() error {
	s.scheduler.Close()
	return nil
}

// schedulePromotion moves the job to RUNNING after delay if it is still
// PENDING by then. The fire time is computed up front because timer
// callbacks must not read the clock.
func (s *Simulator) schedulePromotion(id string, now time.Time, delay time.Duration) {
	at := now.Add(delay)
	s.scheduler.Schedule(id, delay, func() {
		j, ok, err := s.registry.Update(id, func(j *job.Job) error {
			if j.Status != job.StatusPending {
				return errNotPending
			}
			j.Status = job.StatusRunning
			return nil
		})
		if !ok || err != nil {
			s.logger.Debug("Promotion skipped", "jobId", id, "error", err)
			return
		}

		ctx := context.Background()
		s.logger.Info("Job running", "jobId", id)
		s.recordTransition(ctx, job.StatusPending, job.StatusRunning)
		s.notify(ctx, job.NewEvent(job.EventTypeRunning, j, at))
	})
}

func (s *Simulator) recordTransition(ctx context.Context, from, to job.Status) {
	if s.metrics != nil {
		s.metrics.RecordTransition(ctx, from, to)
	}
}

func (s *Simulator) notify(ctx context.Context, ev job.Event) {
	if s.notifier != nil {
		s.notifier.Notify(ctx, ev)
	}
}

// deliverRecorded passes v through the injector and records injected failures.
func deliverRecorded[T any](ctx context.Context, s *Simulator, op string, v T) (T, error) {
	out, err := deliver(ctx, s.injector, op, v)
	if err != nil && errors.Is(err, apperrors.ErrTransient) {
		s.logger.Debug("Injected failure", "op", op)
		if s.metrics != nil {
			s.metrics.RecordInjectedFailure(ctx, op)
		}
	}
	return out, err
}

// Verify Simulator implements job.Backend
var _ job.Backend = (*Simulator)(nil)
