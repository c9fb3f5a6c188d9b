// Package client provides the dispatching job client: a job.Backend that
// forwards every call to the simulated or the remote backend, whichever the
// settings select at the time of the call.
package client

import (
	"context"
	"log/slog"
	"time"

	"jobconsole/internal/job"
)

// Backend names used in logs and metrics.
const (
	BackendSimulated = "simulated"
	BackendRemote    = "remote"
)

// MetricsRecorder is an optional interface for recording client metrics.
type MetricsRecorder interface {
	RecordClientOperation(ctx context.Context, op, backend string, err error, duration time.Duration)
}

// ReadyChecker is implemented by backends that can report reachability.
type ReadyChecker interface {
	Ready(ctx context.Context) error
}

// Client dispatches job operations to the selected backend.
type Client struct {
	settings  *Settings
	simulated job.Backend
	remote    job.Backend
	metrics   MetricsRecorder
	logger    *slog.Logger
}

// New creates a client. The remote backend should read its address from
// settings so that address changes take effect on the next call.
func New(settings *Settings, simulated, remote job.Backend, metrics MetricsRecorder) *Client {
	return &Client{
		settings:  settings,
		simulated: simulated,
		remote:    remote,
		metrics:   metrics,
		logger:    slog.With("component", "client"),
	}
}

// Settings returns the settings the client dispatches on.
func (c *Client) Settings() *Settings {
	return c.settings
}

// active picks the backend for one call.
func (c *Client) active() (job.Backend, string) {
	if c.settings.UseSimulatedBackend() {
		return c.simulated, BackendSimulated
	}
	return c.remote, BackendRemote
}

// ListImages forwards to the active backend.
func (c *Client) ListImages(ctx context.Context) ([]string, error) {
	b, name := c.active()
	start := time.Now()
	images, err := b.ListImages(ctx)
	c.record(ctx, "listImages", name, "", start, err)
	return images, err
}

// ListJobs forwards to the active backend.
func (c *Client) ListJobs(ctx context.Context) ([]job.Job, error) {
	b, name := c.active()
	start := time.Now()
	jobs, err := b.ListJobs(ctx)
	c.record(ctx, "listJobs", name, "", start, err)
	return jobs, err
}

// GetJob forwards to the active backend.
func (c *Client) GetJob(ctx context.Context, id string) (*job.Job, error) {
	b, name := c.active()
	start := time.Now()
	j, err := b.GetJob(ctx, id)
	c.record(ctx, "getJob", name, id, start, err)
	return j, err
}

// GetLogs forwards to the active backend.
func (c *Client) GetLogs(ctx context.Context, id string) (string, error) {
	b, name := c.active()
	start := time.Now()
	logs, err := b.GetLogs(ctx, id)
	c.record(ctx, "getLogs", name, id, start, err)
	return logs, err
}

// StartJob forwards to the active backend.
func (c *Client) StartJob(ctx context.Context, image string, cfg job.Config) (*job.Job, error) {
	b, name := c.active()
	start := time.Now()
	j, err := b.StartJob(ctx, image, cfg)
	id := ""
	if j != nil {
		id = j.ID
	}
	c.record(ctx, "startJob", name, id, start, err)
	return j, err
}

// StopJob forwards to the active backend.
func (c *Client) StopJob(ctx context.Context, id string) error {
	b, name := c.active()
	start := time.Now()
	err := b.StopJob(ctx, id)
	c.record(ctx, "stopJob", name, id, start, err)
	return err
}

// RestartJob forwards to the active backend.
func (c *Client) RestartJob(ctx context.Context, id string) (*job.Job, error) {
	b, name := c.active()
	start := time.Now()
	j, err := b.RestartJob(ctx, id)
	c.record(ctx, "restartJob", name, id, start, err)
	return j, err
}

// Ready checks the active backend if it can report reachability.
func (c *Client) Ready(ctx context.Context) error {
	b, _ := c.active()
	if rc, ok := b.(ReadyChecker); ok {
		return rc.Ready(ctx)
	}
	return nil
}

func (c *Client) record(ctx context.Context, op, backend, id string, start time.Time, err error) {
	elapsed := time.Since(start)
	if c.metrics != nil {
		c.metrics.RecordClientOperation(ctx, op, backend, err, elapsed)
	}
	if err != nil {
		c.logger.Debug("Operation failed", "op", op, "backend", backend, "jobId", id, "error", err)
	}
}

// Verify Client implements job.Backend
var _ job.Backend = (*Client)(nil)
