// Package apperrors provides structured application errors with HTTP status mapping.
package apperrors

import (
	"errors"
	"fmt"
)

// Sentinel errors for classification via errors.Is().
var (
	ErrValidation        = errors.New("validation error")
	ErrNotFound          = errors.New("not found")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrTransient         = errors.New("transient failure")
	ErrInternal          = errors.New("internal error")
)

// Error provides structured error with context.
type Error struct {
	Sentinel error  // Wrapped sentinel for errors.Is() classification
	Message  string // Human-readable message
	Field    string // For validation errors (e.g., "image", "ports")
	Resource string // For not found/transition errors (e.g., "job")
	ID       string // Identifier of the resource, if any
	State    string // Offending state for transition errors
	Op       string // Operation that failed (e.g., "remote.listJobs")
	Cause    error  // Underlying error
}

// Error returns the human-readable error message.
func (e *Error) Error() string {
	return e.Message
}

// Unwrap returns the sentinel and the underlying cause so that both
// errors.Is(err, ErrTransient) and errors.As(err, &httpErr) work.
func (e *Error) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Sentinel}
	}
	return []error{e.Sentinel, e.Cause}
}

// Validation creates a validation error for a specific field.
func Validation(field, message string) error {
	return &Error{
		Sentinel: ErrValidation,
		Message:  message,
		Field:    field,
	}
}

// NotFound creates a not found error for a resource.
func NotFound(resource, id string) error {
	return &Error{
		Sentinel: ErrNotFound,
		Message:  fmt.Sprintf("%s %s not found", resource, id),
		Resource: resource,
		ID:       id,
	}
}

// InvalidTransition reports that op is not permitted while the resource is in state.
func InvalidTransition(resource, id, op, state string) error {
	return &Error{
		Sentinel: ErrInvalidTransition,
		Message:  fmt.Sprintf("cannot %s %s %s with status %s", op, resource, id, state),
		Resource: resource,
		ID:       id,
		State:    state,
		Op:       op,
	}
}

// Transient creates a retryable failure, such as a dropped request or a
// non-success response from a remote backend.
func Transient(op string, cause error) error {
	return &Error{
		Sentinel: ErrTransient,
		Message:  fmt.Sprintf("%s: %v", op, cause),
		Op:       op,
		Cause:    cause,
	}
}

// Internal creates an internal error wrapping an underlying cause.
func Internal(op string, cause error) error {
	return &Error{
		Sentinel: ErrInternal,
		Message:  fmt.Sprintf("%s: %v", op, cause),
		Op:       op,
		Cause:    cause,
	}
}

// IsRetryable reports whether err is a transient failure worth retrying.
// Backends never retry on their own; callers decide.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransient)
}

// StateOf returns the offending state carried by an invalid transition error.
func StateOf(err error) (string, bool) {
	var appErr *Error
	if errors.As(err, &appErr) && errors.Is(appErr.Sentinel, ErrInvalidTransition) {
		return appErr.State, true
	}
	return "", false
}
