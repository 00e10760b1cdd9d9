// Package middleware composes the outgoing request pipeline. Each Middleware wraps an
// http.RoundTripper; Chain applies them so the first one listed sees the request first.
//
// Middleware never modifies the caller's *http.Request. Any change is made on a clone,
// as required by the http.RoundTripper contract.
package middleware

import (
	"context"
	"net/http"
	"sync/atomic"
)

// Middleware decorates a RoundTripper.
type Middleware func(next http.RoundTripper) http.RoundTripper

// RoundTripperFunc adapts a function to http.RoundTripper.
type RoundTripperFunc func(*http.Request) (*http.Response, error)

// RoundTrip calls f(req).
func (f RoundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

// Chain wraps base with mws. mws[0] is the outermost layer. Nil entries are skipped.
func Chain(base http.RoundTripper, mws ...Middleware) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	rt := base
	for i := len(mws) - 1; i >= 0; i-- {
		if mws[i] != nil {
			rt = mws[i](rt)
		}
	}
	return rt
}

// Passthrough returns next unchanged.
func Passthrough() Middleware {
	return func(next http.RoundTripper) http.RoundTripper { return next }
}

type attemptsKey struct{}

// EnsureAttemptCounter returns a context carrying an attempt counter, reusing one
// that is already present.
func EnsureAttemptCounter(ctx context.Context) context.Context {
	if _, ok := ctx.Value(attemptsKey{}).(*atomic.Int64); ok {
		return ctx
	}
	return context.WithValue(ctx, attemptsKey{}, new(atomic.Int64))
}

// Attempts returns the number of transport attempts counted in ctx so far.
func Attempts(ctx context.Context) int {
	if c, ok := ctx.Value(attemptsKey{}).(*atomic.Int64); ok {
		return int(c.Load())
	}
	return 0
}

// CountAttempts increments the attempt counter of each request's context. Place it
// directly above the base transport so only requests that reach the wire are counted.
func CountAttempts() Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
			if c, ok := req.Context().Value(attemptsKey{}).(*atomic.Int64); ok {
				c.Add(1)
			}
			return next.RoundTrip(req)
		})
	}
}

// withHeaders clones req and applies set to the clone's headers.
func withHeaders(req *http.Request, set func(h http.Header)) *http.Request {
	clone := req.Clone(req.Context())
	if clone.Header == nil {
		clone.Header = make(http.Header)
	}
	set(clone.Header)
	return clone
}
