package job

import (
	"context"
	"slices"
	"time"

	"github.com/google/uuid"

	"jobconsole/pkg/cloudevent"
)

// Event types for job lifecycle notifications.
const (
	EventTypeCreated   = "jobconsole.job.created"
	EventTypeRunning   = "jobconsole.job.running"
	EventTypeStopped   = "jobconsole.job.stopped"
	EventTypeRestarted = "jobconsole.job.restarted"
)

// Event records a single state change of a job.
type Event struct {
	Type   string
	JobID  string
	Name   string
	Image  string
	Status Status
	Time   time.Time
}

// NewEvent builds an event describing j's current state.
func NewEvent(eventType string, j *Job, at time.Time) Event {
	return Event{
		Type:   eventType,
		JobID:  j.ID,
		Name:   j.Name,
		Image:  j.Image,
		Status: j.Status,
		Time:   at,
	}
}

// Notifier receives lifecycle events. Implementations must not block.
type Notifier interface {
	Notify(ctx context.Context, ev Event)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, ev Event)

// Notify calls f.
func (f NotifierFunc) Notify(ctx context.Context, ev Event) { f(ctx, ev) }

// FilteredEvents returns true if the event type should be sent based on the filter.
// If the filter is empty, all events are allowed.
func FilteredEvents(eventType string, filter []string) bool {
	if len(filter) == 0 {
		return true
	}
	return slices.Contains(filter, eventType)
}

// EventBuilder builds CloudEvents for job lifecycle events.
type EventBuilder struct {
	source string
}

// NewEventBuilder creates a new EventBuilder.
func NewEventBuilder(source string) *EventBuilder {
	return &EventBuilder{source: source}
}

// Build converts a lifecycle event into a CloudEvent.
func (b *EventBuilder) Build(ev Event) *cloudevent.CloudEvent {
	data := map[string]any{
		"jobId":  ev.JobID,
		"name":   ev.Name,
		"image":  ev.Image,
		"status": string(ev.Status),
	}
	return cloudevent.New(ev.Type, b.source, ev.JobID, uuid.NewString(), ev.Time, data)
}
