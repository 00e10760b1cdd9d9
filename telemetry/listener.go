// Package telemetry defines the observation contract for API calls. A Listener is
// told when a logical request starts and when it ends; it never alters the request.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Event describes one finished logical request, including all of its retries.
type Event struct {
	ClientName string
	RequestID  string
	Request    *http.Request
	// Response is nil when the call failed before a response was received.
	Response *http.Response
	// Err is the transport, resilience or cancellation error, if any.
	Err      error
	Elapsed  time.Duration
	Attempts int
}

// StatusCode returns the response status, or 0 when there is no response.
func (e Event) StatusCode() int {
	if e.Response == nil {
		return 0
	}
	return e.Response.StatusCode
}

// Failed reports whether the call errored or ended with a 5xx status.
func (e Event) Failed() bool {
	return e.Err != nil || e.StatusCode() >= http.StatusInternalServerError
}

// Listener observes API calls. Implementations must be safe for concurrent use.
type Listener interface {
	OnRequestStart(ctx context.Context, req *http.Request) error
	OnRequestEnd(ctx context.Context, event Event) error
}

// FailurePolicy decides what happens when a listener fails.
type FailurePolicy int

const (
	// LogAndContinue logs listener failures and returns the real outcome.
	LogAndContinue FailurePolicy = iota
	// Propagate surfaces listener failures to the caller as *ListenerError.
	Propagate
)

// ParseFailurePolicy maps "propagate" to Propagate and anything else to LogAndContinue.
func ParseFailurePolicy(s string) FailurePolicy {
	if s == "propagate" {
		return Propagate
	}
	return LogAndContinue
}

func (p FailurePolicy) String() string {
	if p == Propagate {
		return "propagate"
	}
	return "logAndContinue"
}

// Listener phases reported in ListenerError.
const (
	PhaseStart = "start"
	PhaseEnd   = "end"
)

// ListenerError reports a listener failure. Cause holds the outcome of the request
// itself when the failure happened after it completed.
type ListenerError struct {
	Phase string
	Err   error
	Cause error
}

func (e *ListenerError) Error() string {
	msg := fmt.Sprintf("telemetry listener failed on request %s: %v", e.Phase, e.Err)
	if e.Cause != nil {
		msg += fmt.Sprintf(" (request error: %v)", e.Cause)
	}
	return msg
}

// Unwrap exposes both the listener failure and the request outcome to errors.Is/As.
func (e *ListenerError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.Cause}
}

// Noop ignores every event.
type Noop struct{}

func (Noop) OnRequestStart(context.Context, *http.Request) error { return nil }
func (Noop) OnRequestEnd(context.Context, Event) error            { return nil }

// Listeners fans each event out to every listener and joins their errors.
type Listeners []Listener

func (ls Listeners) OnRequestStart(ctx context.Context, req *http.Request) error {
	var errs []error
	for _, l := range ls {
		if err := l.OnRequestStart(ctx, req); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (ls Listeners) OnRequestEnd(ctx context.Context, event Event) error {
	var errs []error
	for _, l := range ls {
		if err := l.OnRequestEnd(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Funcs adapts plain functions to Listener. Nil fields are skipped.
type Funcs struct {
	Start func(ctx context.Context, req *http.Request) error
	End   func(ctx context.Context, event Event) error
}

func (f Funcs) OnRequestStart(ctx context.Context, req *http.Request) error {
	if f.Start == nil {
		return nil
	}
	return f.Start(ctx, req)
}

func (f Funcs) OnRequestEnd(ctx context.Context, event Event) error {
	if f.End == nil {
		return nil
	}
	return f.End(ctx, event)
}

type clientNameKey struct{}

// WithClientName records the name of the client issuing requests made with ctx.
func WithClientName(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, clientNameKey{}, name)
}

// ClientNameFromContext returns the client name recorded by WithClientName.
func ClientNameFromContext(ctx context.Context) string {
	name, _ := ctx.Value(clientNameKey{}).(string)
	return name
}
