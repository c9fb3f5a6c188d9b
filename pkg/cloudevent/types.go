// Package cloudevent provides CloudEvents 1.0 types and an HTTP sender for
// the structured content mode.
package cloudevent

import (
	"errors"
	"time"
)

// SpecVersion is the CloudEvents version produced by this package.
const SpecVersion = "1.0"

// CloudEvent represents a CloudEvents 1.0 event.
type CloudEvent struct {
	SpecVersion     string         `json:"specversion"`
	Type            string         `json:"type"`
	Source          string         `json:"source"`
	Subject         string         `json:"subject,omitempty"`
	ID              string         `json:"id"`
	Time            time.Time      `json:"time"`
	DataContentType string         `json:"datacontenttype"`
	Data            map[string]any `json:"data"`
}

// New creates a CloudEvent stamped with at (UTC). A zero at uses the current time.
func New(eventType, source, subject, id string, at time.Time, data map[string]any) *CloudEvent {
	if at.IsZero() {
		at = time.Now()
	}
	return &CloudEvent{
		SpecVersion:     SpecVersion,
		Type:            eventType,
		Source:          source,
		Subject:         subject,
		ID:              id,
		Time:            at.UTC(),
		DataContentType: "application/json",
		Data:            data,
	}
}

// Validate checks the attributes required by the CloudEvents spec.
func (e *CloudEvent) Validate() error {
	var errs []error
	if e.SpecVersion != SpecVersion {
		errs = append(errs, errors.New("specversion must be "+SpecVersion))
	}
	if e.ID == "" {
		errs = append(errs, errors.New("id is required"))
	}
	if e.Source == "" {
		errs = append(errs, errors.New("source is required"))
	}
	if e.Type == "" {
		errs = append(errs, errors.New("type is required"))
	}
	return errors.Join(errs...)
}
