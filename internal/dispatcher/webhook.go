package dispatcher

import (
	"context"
	"log/slog"

	"jobconsole/internal/job"
)

// WebhookConfig selects where lifecycle events are delivered.
type WebhookConfig struct {
	URL        string
	SigningKey string
	Events     []string // event types to deliver, empty = all
	Source     string   // CloudEvent source attribute
}

// Webhook turns job lifecycle events into CloudEvent deliveries.
type Webhook struct {
	dispatcher Dispatcher
	builder    *job.EventBuilder
	cfg        WebhookConfig
	logger     *slog.Logger
}

// NewWebhook returns a job.Notifier that queues events on d.
func NewWebhook(d Dispatcher, cfg WebhookConfig) *Webhook {
	if cfg.Source == "" {
		cfg.Source = "/jobsim"
	}
	return &Webhook{
		dispatcher: d,
		builder:    job.NewEventBuilder(cfg.Source),
		cfg:        cfg,
		logger:     slog.With("component", "webhook"),
	}
}

// Notify queues ev for delivery unless it is filtered out. It never blocks.
func (w *Webhook) Notify(_ context.Context, ev job.Event) {
	if !job.FilteredEvents(ev.Type, w.cfg.Events) {
		return
	}
	err := w.dispatcher.Dispatch(&Delivery{
		Payload:     w.builder.Build(ev),
		Destination: w.cfg.URL,
		SigningKey:  w.cfg.SigningKey,
	})
	if err != nil {
		w.logger.Warn("Lifecycle event not queued", "type", ev.Type, "jobId", ev.JobID, "error", err)
	}
}

var _ job.Notifier = (*Webhook)(nil)
