// Package dispatcher delivers job lifecycle events to webhook endpoints
// asynchronously, with buffering, retry and per-host circuit breaking.
package dispatcher

import (
	"context"
	"errors"

	"jobconsole/pkg/cloudevent"
)

// ErrBufferFull is returned when the dispatcher's buffer is full and the delivery is dropped.
var ErrBufferFull = errors.New("dispatcher buffer full, event dropped")

// ErrClosed is returned by Dispatch after Close.
var ErrClosed = errors.New("dispatcher is closed")

// Dispatcher handles async delivery of events.
type Dispatcher interface {
	// Dispatch queues a delivery. Non-blocking.
	// Returns ErrBufferFull if the delivery cannot be queued.
	Dispatch(d *Delivery) error

	// Stats returns current dispatcher statistics.
	Stats() Stats

	// Close gracefully shuts down, attempting to deliver queued events.
	// The context deadline controls how long to wait for drain.
	Close(ctx context.Context) error
}

// Delivery is one CloudEvent bound for one webhook URL.
type Delivery struct {
	Payload     *cloudevent.CloudEvent
	Destination string // webhook URL
	SigningKey  string // HMAC key, empty = unsigned
	Requeues    int    // times requeued due to an open circuit
}

// Stats holds dispatcher statistics.
type Stats struct {
	QueueDepth    int   // current queue size
	Queued        int64 // total deliveries queued
	Delivered     int64 // successful deliveries
	Failed        int64 // failed after retries
	Dropped       int64 // dropped due to full buffer or max requeues
	Requeued      int64 // requeued due to open circuit
	RetriesTotal  int64 // total retry attempts
	BreakersTotal int   // total circuit breakers
	BreakersOpen  int   // currently open breakers
}
