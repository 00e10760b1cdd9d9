package telemetry

import (
	"context"
	"net/http"

	"github.com/gaborage/sdkcore/logger"
)

// LogListener writes one structured line per finished request.
type LogListener struct {
	log logger.Logger
}

// NewLogListener creates a listener that logs through log.
func NewLogListener(log logger.Logger) *LogListener {
	return &LogListener{log: log}
}

func (l *LogListener) OnRequestStart(_ context.Context, req *http.Request) error {
	l.log.Debug().
		Str("method", req.Method).
		Str("url", redactedURL(req)).
		Msg("API request started")
	return nil
}

func (l *LogListener) OnRequestEnd(_ context.Context, e Event) error {
	event := l.log.Info()
	if e.Failed() {
		event = l.log.Warn()
	}
	if e.Err != nil {
		event = event.Err(e.Err)
	}
	event.
		Str("client", e.ClientName).
		Str("request_id", e.RequestID).
		Str("method", e.Request.Method).
		Str("url", redactedURL(e.Request)).
		Int("status", e.StatusCode()).
		Int("attempts", e.Attempts).
		Dur("elapsed", e.Elapsed).
		Msg("API request completed")
	return nil
}

func redactedURL(req *http.Request) string {
	if req == nil || req.URL == nil {
		return ""
	}
	return req.URL.Redacted()
}
