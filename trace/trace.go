// Package trace carries the per-call request id through context so every attempt of a
// logical request, and every telemetry event about it, shares one correlation value.
package trace

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

const (
	requestIDKey contextKey = "request_id"
	// HeaderXRequestID is the header used to propagate the request id upstream.
	HeaderXRequestID = "X-Request-ID"
)

// WithRequestID stores id in ctx.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext returns the request id stored in ctx, if any.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if id, ok := ctx.Value(requestIDKey).(string); ok && id != "" {
		return id, true
	}
	return "", false
}

// EnsureRequestID returns a context that carries a request id, generating one when absent.
func EnsureRequestID(ctx context.Context) (context.Context, string) {
	if id, ok := RequestIDFromContext(ctx); ok {
		return ctx, id
	}
	id := uuid.New().String()
	return WithRequestID(ctx, id), id
}
