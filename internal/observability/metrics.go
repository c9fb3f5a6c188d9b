package observability

import (
	"context"
	"net/http"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"jobconsole/internal/job"
)

// Metrics holds all application metrics:
//   - HTTP: request latency, traffic and errors of the jobsim server
//   - Client: per-operation latency and outcome by backend
//   - Simulator: job creations, transitions and injected failures
//   - Dispatcher: webhook delivery outcomes and queue depth
type Metrics struct {
	meter metric.Meter

	HTTPRequestDuration metric.Float64Histogram
	HTTPRequestsTotal   metric.Int64Counter
	HTTPErrorsTotal     metric.Int64Counter

	ClientOperationDuration metric.Float64Histogram
	ClientOperationsTotal   metric.Int64Counter

	JobsCreated      metric.Int64Counter
	JobTransitions   metric.Int64Counter
	InjectedFailures metric.Int64Counter

	DispatcherDuration  metric.Float64Histogram
	DispatcherDelivered metric.Int64Counter
	DispatcherFailed    metric.Int64Counter
	DispatcherDropped   metric.Int64Counter
	DispatcherRequeued  metric.Int64Counter
	DispatcherQueueSize metric.Int64Gauge
}

// NewMetrics creates all metrics on a dedicated Prometheus registry and
// returns the handler serving it.
func NewMetrics(ctx context.Context) (*Metrics, http.Handler, error) {
	registry := promclient.NewRegistry()
	exporter, err := prometheus.New(prometheus.WithRegisterer(registry))
	if err != nil {
		return nil, nil, err
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	meter := provider.Meter("jobconsole")
	m := &Metrics{meter: meter}

	b := builder{meter: meter}
	m.HTTPRequestDuration = b.histogram("http_request_duration_seconds", "HTTP request latency in seconds",
		0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10)
	m.HTTPRequestsTotal = b.counter("http_requests_total", "Total number of HTTP requests")
	m.HTTPErrorsTotal = b.counter("http_errors_total", "Total number of HTTP errors (4xx and 5xx)")

	m.ClientOperationDuration = b.histogram("client_operation_duration_seconds", "Job client operation latency in seconds",
		0.01, 0.05, 0.1, 0.2, 0.4, 0.8, 1.5, 3, 10)
	m.ClientOperationsTotal = b.counter("client_operations_total", "Total job client operations by backend and result")

	m.JobsCreated = b.counter("jobs_created_total", "Total number of jobs created by the simulator")
	m.JobTransitions = b.counter("job_transitions_total", "Total simulated job status transitions")
	m.InjectedFailures = b.counter("injected_failures_total", "Total transient failures injected by the simulator")

	m.DispatcherDuration = b.histogram("dispatcher_duration_seconds", "Webhook delivery latency in seconds",
		0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10)
	m.DispatcherDelivered = b.counter("dispatcher_delivered_total", "Total events successfully delivered")
	m.DispatcherFailed = b.counter("dispatcher_failed_total", "Total events failed after retries")
	m.DispatcherDropped = b.counter("dispatcher_dropped_total", "Total events dropped (buffer full or max requeues)")
	m.DispatcherRequeued = b.counter("dispatcher_requeued_total", "Total events requeued due to open circuit")
	if b.err == nil {
		m.DispatcherQueueSize, b.err = meter.Int64Gauge(
			"dispatcher_queue_size",
			metric.WithDescription("Current number of events in dispatcher queue (saturation)"),
		)
	}
	if b.err != nil {
		return nil, nil, b.err
	}

	return m, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}), nil
}

// builder creates instruments and keeps the first error.
type builder struct {
	meter metric.Meter
	err   error
}

func (b *builder) counter(name, desc string) metric.Int64Counter {
	if b.err != nil {
		return nil
	}
	var c metric.Int64Counter
	c, b.err = b.meter.Int64Counter(name, metric.WithDescription(desc))
	return c
}

func (b *builder) histogram(name, desc string, bounds ...float64) metric.Float64Histogram {
	if b.err != nil {
		return nil
	}
	var h metric.Float64Histogram
	h, b.err = b.meter.Float64Histogram(name,
		metric.WithDescription(desc),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(bounds...),
	)
	return h
}

// RecordHTTPRequest records HTTP request metrics.
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, path string, statusCode int, durationSeconds float64) {
	attrs := metric.WithAttributes(
		methodAttr(method),
		pathAttr(path),
		statusAttr(statusCode),
	)

	m.HTTPRequestDuration.Record(ctx, durationSeconds, attrs)
	m.HTTPRequestsTotal.Add(ctx, 1, attrs)

	if statusCode >= 400 {
		m.HTTPErrorsTotal.Add(ctx, 1, attrs)
	}
}

// RecordClientOperation records one dispatched client call.
func (m *Metrics) RecordClientOperation(ctx context.Context, op, backend string, err error, duration time.Duration) {
	m.ClientOperationsTotal.Add(ctx, 1, metric.WithAttributes(opAttr(op), backendAttr(backend), resultAttr(err)))
	m.ClientOperationDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(opAttr(op), backendAttr(backend)))
}

// RecordJobCreated records a new simulated job.
func (m *Metrics) RecordJobCreated(ctx context.Context, image string) {
	m.JobsCreated.Add(ctx, 1, metric.WithAttributes(imageAttr(image)))
}

// RecordTransition records a simulated status change.
func (m *Metrics) RecordTransition(ctx context.Context, from, to job.Status) {
	m.JobTransitions.Add(ctx, 1, metric.WithAttributes(transitionAttrs(string(from), string(to))...))
}

// RecordInjectedFailure records a transient failure injected by the simulator.
func (m *Metrics) RecordInjectedFailure(ctx context.Context, op string) {
	m.InjectedFailures.Add(ctx, 1, metric.WithAttributes(opAttr(op)))
}

// RecordDispatcherDelivered records a successful event delivery with its duration.
func (m *Metrics) RecordDispatcherDelivered(ctx context.Context, durationSeconds float64) {
	m.DispatcherDelivered.Add(ctx, 1)
	m.DispatcherDuration.Record(ctx, durationSeconds)
}

// RecordDispatcherFailed records a failed event delivery.
func (m *Metrics) RecordDispatcherFailed(ctx context.Context) {
	m.DispatcherFailed.Add(ctx, 1)
}

// RecordDispatcherDropped records a dropped event.
func (m *Metrics) RecordDispatcherDropped(ctx context.Context) {
	m.DispatcherDropped.Add(ctx, 1)
}

// RecordDispatcherRequeued records a requeued event.
func (m *Metrics) RecordDispatcherRequeued(ctx context.Context) {
	m.DispatcherRequeued.Add(ctx, 1)
}

// RecordDispatcherQueueSize records the current queue size.
func (m *Metrics) RecordDispatcherQueueSize(ctx context.Context, size int64) {
	m.DispatcherQueueSize.Record(ctx, size)
}
