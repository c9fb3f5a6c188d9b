// Package observability provides metrics for the server, the client and the
// simulator.
package observability

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"jobconsole/internal/apperrors"
)

// Attribute keys
const (
	attrMethod  = "method"
	attrPath    = "path"
	attrStatus  = "status"
	attrImage   = "image"
	attrOp      = "op"
	attrBackend = "backend"
	attrResult  = "result"
	attrFrom    = "from"
	attrTo      = "to"
)

func methodAttr(method string) attribute.KeyValue {
	return attribute.String(attrMethod, method)
}

func pathAttr(path string) attribute.KeyValue {
	return attribute.String(attrPath, normalizePath(path))
}

func statusAttr(code int) attribute.KeyValue {
	// 200-299 -> 2xx, 400-499 -> 4xx, 500-599 -> 5xx
	return attribute.String(attrStatus, fmt.Sprintf("%dxx", code/100))
}

func imageAttr(image string) attribute.KeyValue {
	return attribute.String(attrImage, image)
}

func opAttr(op string) attribute.KeyValue {
	return attribute.String(attrOp, op)
}

func backendAttr(backend string) attribute.KeyValue {
	return attribute.String(attrBackend, backend)
}

func resultAttr(err error) attribute.KeyValue {
	return attribute.String(attrResult, resultOf(err))
}

func transitionAttrs(from, to string) []attribute.KeyValue {
	return []attribute.KeyValue{attribute.String(attrFrom, from), attribute.String(attrTo, to)}
}

// resultOf classifies an operation outcome with a small fixed vocabulary.
func resultOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, apperrors.ErrNotFound):
		return "not_found"
	case errors.Is(err, apperrors.ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, apperrors.ErrValidation):
		return "validation"
	case errors.Is(err, apperrors.ErrTransient):
		return "transient"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "error"
	}
}

// normalizePath replaces job ids with a placeholder to bound cardinality:
// /api/jobs/42/logs -> /api/jobs/{id}/logs
func normalizePath(path string) string {
	segments := strings.Split(path, "/")
	for i := 0; i < len(segments)-1; i++ {
		if segments[i] == "jobs" && segments[i+1] != "" {
			segments[i+1] = "{id}"
		}
	}
	return strings.Join(segments, "/")
}
