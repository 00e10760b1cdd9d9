package middleware

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gaborage/sdkcore/logger"
	"github.com/gaborage/sdkcore/telemetry"
	"github.com/gaborage/sdkcore/trace"
)

// Telemetry notifies listener around the whole wrapped call, so Elapsed and Attempts
// cover every retry of one logical request. It must be the outermost middleware.
//
// Listener errors and panics never escape under telemetry.LogAndContinue. Under
// telemetry.Propagate they are returned as *telemetry.ListenerError. A start failure
// under Propagate skips the request but still delivers the end event.
func Telemetry(listener telemetry.Listener, policy telemetry.FailurePolicy, log logger.Logger, clientName string) Middleware {
	if listener == nil {
		listener = telemetry.Noop{}
	}
	if log == nil {
		log = logger.Nop()
	}

	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
			ctx := EnsureAttemptCounter(req.Context())
			ctx = telemetry.WithClientName(ctx, clientName)
			ctx, requestID := trace.EnsureRequestID(ctx)
			req = req.WithContext(ctx)

			if lerr := notifyStart(ctx, listener, req); lerr != nil {
				if policy == telemetry.Propagate {
					failure := &telemetry.ListenerError{Phase: telemetry.PhaseStart, Err: lerr}
					// Listeners that did start still get their end event.
					if eerr := notifyEnd(ctx, listener, telemetry.Event{
						ClientName: clientName,
						RequestID:  requestID,
						Request:    req,
						Err:        failure,
						Attempts:   Attempts(ctx),
					}); eerr != nil {
						logListenerFailure(log, clientName, telemetry.PhaseEnd, eerr)
					}
					return nil, failure
				}
				logListenerFailure(log, clientName, telemetry.PhaseStart, lerr)
			}

			start := time.Now()
			resp, err := next.RoundTrip(req)

			event := telemetry.Event{
				ClientName: clientName,
				RequestID:  requestID,
				Request:    req,
				Response:   resp,
				Err:        err,
				Elapsed:    time.Since(start),
				Attempts:   Attempts(ctx),
			}
			if lerr := notifyEnd(ctx, listener, event); lerr != nil {
				if policy == telemetry.Propagate {
					if resp != nil && resp.Body != nil {
						_ = resp.Body.Close()
					}
					return nil, &telemetry.ListenerError{Phase: telemetry.PhaseEnd, Err: lerr, Cause: err}
				}
				logListenerFailure(log, clientName, telemetry.PhaseEnd, lerr)
			}

			return resp, err
		})
	}
}

func notifyStart(ctx context.Context, l telemetry.Listener, req *http.Request) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("listener panic: %v", r)
		}
	}()
	return l.OnRequestStart(ctx, req)
}

func notifyEnd(ctx context.Context, l telemetry.Listener, e telemetry.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("listener panic: %v", r)
		}
	}()
	return l.OnRequestEnd(ctx, e)
}

func logListenerFailure(log logger.Logger, client, phase string, err error) {
	log.Warn().
		Err(err).
		Str("client", client).
		Str("phase", phase).
		Msg("Telemetry listener failed")
}
