package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestValidation(t *testing.T) {
	t.Parallel()
	err := Validation("image", "image is required")

	if !errors.Is(err, ErrValidation) {
		t.Error("expected error to match ErrValidation")
	}
	if err.Error() != "image is required" {
		t.Errorf("expected message 'image is required', got %q", err.Error())
	}

	var appErr *Error
	if !errors.As(err, &appErr) {
		t.Fatal("expected error to be *Error")
	}
	if appErr.Field != "image" {
		t.Errorf("expected field 'image', got %q", appErr.Field)
	}
}

func TestNotFound(t *testing.T) {
	t.Parallel()
	err := NotFound("job", "42")

	if !errors.Is(err, ErrNotFound) {
		t.Error("expected error to match ErrNotFound")
	}
	if err.Error() != "job 42 not found" {
		t.Errorf("expected message 'job 42 not found', got %q", err.Error())
	}

	var appErr *Error
	if !errors.As(err, &appErr) {
		t.Fatal("expected error to be *Error")
	}
	if appErr.Resource != "job" || appErr.ID != "42" {
		t.Errorf("expected resource job/42, got %s/%s", appErr.Resource, appErr.ID)
	}
}

func TestInvalidTransition(t *testing.T) {
	t.Parallel()
	err := InvalidTransition("job", "3", "stop", "STOPPED")

	if !errors.Is(err, ErrInvalidTransition) {
		t.Error("expected error to match ErrInvalidTransition")
	}
	if err.Error() != "cannot stop job 3 with status STOPPED" {
		t.Errorf("unexpected message: %q", err.Error())
	}

	state, ok := StateOf(fmt.Errorf("wrap: %w", err))
	if !ok || state != "STOPPED" {
		t.Errorf("StateOf() = %q, %v; want STOPPED, true", state, ok)
	}
	if _, ok := StateOf(NotFound("job", "3")); ok {
		t.Error("expected StateOf to reject non-transition errors")
	}
}

type statusError struct{ code int }

func (e *statusError) Error() string { return fmt.Sprintf("status %d", e.code) }

func TestTransient(t *testing.T) {
	t.Parallel()
	cause := &statusError{code: 502}
	err := Transient("remote.listJobs", cause)

	if !errors.Is(err, ErrTransient) {
		t.Error("expected error to match ErrTransient")
	}
	if !IsRetryable(err) {
		t.Error("expected transient error to be retryable")
	}
	if err.Error() != "remote.listJobs: status 502" {
		t.Errorf("unexpected message: %q", err.Error())
	}

	var se *statusError
	if !errors.As(err, &se) || se.code != 502 {
		t.Error("expected cause to be reachable through errors.As")
	}
}

func TestInternal(t *testing.T) {
	t.Parallel()
	cause := fmt.Errorf("encoder closed")
	err := Internal("api.writeJSON", cause)

	if !errors.Is(err, ErrInternal) {
		t.Error("expected error to match ErrInternal")
	}
	if IsRetryable(err) {
		t.Error("internal errors are not retryable")
	}
	if err.Error() != "api.writeJSON: encoder closed" {
		t.Errorf("unexpected message: %q", err.Error())
	}

	var appErr *Error
	if !errors.As(err, &appErr) {
		t.Fatal("expected error to be *Error")
	}
	if appErr.Op != "api.writeJSON" {
		t.Errorf("expected op 'api.writeJSON', got %q", appErr.Op)
	}
	if appErr.Cause != cause {
		t.Error("expected cause to be preserved")
	}
}

func TestHTTPStatus(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"validation", Validation("image", "required"), http.StatusBadRequest},
		{"not found", NotFound("job", "123"), http.StatusNotFound},
		{"invalid transition", InvalidTransition("job", "1", "restart", "RUNNING"), http.StatusConflict},
		{"transient", Transient("op", fmt.Errorf("network error")), http.StatusServiceUnavailable},
		{"internal", Internal("op", fmt.Errorf("fail")), http.StatusInternalServerError},
		{"sentinel validation", ErrValidation, http.StatusBadRequest},
		{"sentinel not found", ErrNotFound, http.StatusNotFound},
		{"sentinel invalid transition", ErrInvalidTransition, http.StatusConflict},
		{"sentinel transient", ErrTransient, http.StatusServiceUnavailable},
		{"wrapped validation", fmt.Errorf("wrap: %w", Validation("f", "m")), http.StatusBadRequest},
		{"unknown error", fmt.Errorf("unknown"), http.StatusInternalServerError},
		{"nil error", nil, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := HTTPStatus(tt.err)
			if got != tt.expected {
				t.Errorf("HTTPStatus() = %d, want %d", got, tt.expected)
			}
		})
	}
}

func TestErrorsIsWithWrapping(t *testing.T) {
	t.Parallel()
	original := InvalidTransition("job", "1", "stop", "FAILED")
	doubleWrapped := fmt.Errorf("handler: %w", fmt.Errorf("client: %w", original))

	if !errors.Is(doubleWrapped, ErrInvalidTransition) {
		t.Error("expected errors.Is to find ErrInvalidTransition through multiple wraps")
	}
	if errors.Is(doubleWrapped, ErrNotFound) {
		t.Error("did not expect ErrNotFound to match")
	}
}
