// Package remote implements job.Backend over the JSON HTTP API of a job
// orchestration service.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"jobconsole/internal/apperrors"
	"jobconsole/internal/job"
	"jobconsole/pkg/circuitbreaker"
)

const maxErrorBody = 512

// AddressSource supplies the base address of the API. It is consulted on
// every request so address changes apply to the next call.
type AddressSource interface {
	BackendAddress() string
}

// StaticAddress is an AddressSource that never changes.
type StaticAddress string

// BackendAddress returns the address.
func (a StaticAddress) BackendAddress() string { return string(a) }

// StatusError is returned (wrapped in a transient error) for non-2xx responses.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

// StatusCode extracts the HTTP status from a failed call, if there was one.
func StatusCode(err error) (int, bool) {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode, true
	}
	return 0, false
}

// Options tunes the HTTP client.
type Options struct {
	Timeout   time.Duration         // per-request timeout (default: 10s)
	Transport http.RoundTripper     // custom transport, nil = pooled default
	Breaker   circuitbreaker.Config // per-host breaker settings
}

// Backend talks to a remote job API. It never retries; every failure is
// reported to the caller as apperrors.ErrTransient.
type Backend struct {
	address  AddressSource
	client   *http.Client
	breakers *circuitbreaker.Registry
	logger   *slog.Logger
}

// New creates a remote backend.
func New(address AddressSource, opts Options) *Backend {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	transport := opts.Transport
	if transport == nil {
		transport = &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		}
	}
	return &Backend{
		address:  address,
		client:   &http.Client{Timeout: opts.Timeout, Transport: transport},
		breakers: circuitbreaker.NewRegistry(opts.Breaker),
		logger:   slog.With("component", "remote"),
	}
}

// ListImages fetches GET /images.
func (b *Backend) ListImages(ctx context.Context) ([]string, error) {
	var images []string
	if err := b.do(ctx, "listImages", http.MethodGet, "/images", nil, &images); err != nil {
		return nil, err
	}
	return images, nil
}

// ListJobs fetches GET /jobs.
func (b *Backend) ListJobs(ctx context.Context) ([]job.Job, error) {
	var jobs []job.Job
	if err := b.do(ctx, "listJobs", http.MethodGet, "/jobs", nil, &jobs); err != nil {
		return nil, err
	}
	return jobs, nil
}

// GetJob fetches GET /jobs/{id}.
func (b *Backend) GetJob(ctx context.Context, id string) (*job.Job, error) {
	var j job.Job
	if err := b.do(ctx, "getJob", http.MethodGet, jobPath(id, ""), nil, &j); err != nil {
		return nil, err
	}
	return &j, nil
}

// GetLogs fetches GET /jobs/{id}/logs. The body is a JSON string; servers
// that answer with plain text are accepted as well.
func (b *Backend) GetLogs(ctx context.Context, id string) (string, error) {
	var raw []byte
	if err := b.do(ctx, "getLogs", http.MethodGet, jobPath(id, "logs"), nil, &raw); err != nil {
		return "", err
	}
	var text string
	if err := json.Unmarshal(raw, &text); err != nil {
		return string(raw), nil
	}
	return text, nil
}

// startRequest is the body of POST /jobs: the image plus the flattened config.
type startRequest struct {
	Image string `json:"image"`
	job.Config
}

// StartJob posts POST /jobs.
func (b *Backend) StartJob(ctx context.Context, image string, cfg job.Config) (*job.Job, error) {
	var j job.Job
	body := startRequest{Image: image, Config: cfg}
	if err := b.do(ctx, "startJob", http.MethodPost, "/jobs", body, &j); err != nil {
		return nil, err
	}
	return &j, nil
}

// StopJob posts POST /jobs/{id}/stop. Any response body is ignored.
func (b *Backend) StopJob(ctx context.Context, id string) error {
	return b.do(ctx, "stopJob", http.MethodPost, jobPath(id, "stop"), nil, nil)
}

// RestartJob posts POST /jobs/{id}/restart.
func (b *Backend) RestartJob(ctx context.Context, id string) (*job.Job, error) {
	var j job.Job
	if err := b.do(ctx, "restartJob", http.MethodPost, jobPath(id, "restart"), nil, &j); err != nil {
		return nil, err
	}
	return &j, nil
}

// Ready checks that the API answers GET /images.
func (b *Backend) Ready(ctx context.Context) error {
	return b.do(ctx, "ready", http.MethodGet, "/images", nil, nil)
}

func jobPath(id, action string) string {
	p := "/jobs/" + url.PathEscape(id)
	if action != "" {
		p += "/" + action
	}
	return p
}

func (b *Backend) do(ctx context.Context, op, method, path string, body, out any) error {
	op = "remote." + op

	var payload []byte
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return apperrors.Internal(op, fmt.Errorf("failed to marshal request: %w", err))
		}
		payload = data
	}

	base := strings.TrimRight(b.address.BackendAddress(), "/")
	host := extractHost(base)
	breaker := b.breakers.Get(host)

	if !breaker.Allow() {
		return apperrors.Transient(op, circuitbreaker.ErrOpen)
	}
	// Every exit settles the breaker. Calls that never got an answer from the
	// host give the half-open slot back instead of counting as a failure.
	settled := false
	defer func() {
		if !settled {
			breaker.Release()
		}
	}()
	fail := func() {
		settled = true
		breaker.RecordFailure()
	}
	succeed := func() {
		settled = true
		breaker.RecordSuccess()
	}

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, base+path, reader)
	if err != nil {
		return apperrors.Transient(op, fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := b.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		fail()
		b.logger.Debug("Request failed", "op", op, "host", host, "error", err)
		return apperrors.Transient(op, fmt.Errorf("request failed: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		if resp.StatusCode >= 500 {
			fail()
		} else {
			succeed()
		}
		b.logger.Debug("Request rejected", "op", op, "host", host, "status", resp.StatusCode)
		return apperrors.Transient(op, &StatusError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(snippet)),
		})
	}
	succeed()

	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if raw, ok := out.(*[]byte); ok {
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return apperrors.Transient(op, fmt.Errorf("failed to read response: %w", err))
		}
		*raw = data
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperrors.Transient(op, fmt.Errorf("failed to decode response: %w", err))
	}
	return nil
}

// extractHost extracts the host from a URL for circuit breaker keying.
func extractHost(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return rawURL
	}
	return parsed.Host
}

// Verify Backend implements job.Backend
var _ job.Backend = (*Backend)(nil)
