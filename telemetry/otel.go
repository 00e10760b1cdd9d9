package telemetry

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentationName identifies spans and metrics produced by OTelListener.
const InstrumentationName = "github.com/gaborage/sdkcore/telemetry"

// Metric names recorded by OTelListener.
const (
	MetricRequests         = "sdk.client.requests"
	MetricRequestDuration  = "sdk.client.request.duration"
	MetricRequestsInFlight = "sdk.client.requests.inflight"
)

// OTelListener records one client span per logical request plus request count,
// duration and in-flight metrics.
type OTelListener struct {
	tracer   trace.Tracer
	requests metric.Int64Counter
	duration metric.Float64Histogram
	inflight metric.Int64UpDownCounter

	spans sync.Map // *http.Request -> trace.Span
}

// NewOTelListener creates the listener's instruments on the given providers.
func NewOTelListener(tp trace.TracerProvider, mp metric.MeterProvider) (*OTelListener, error) {
	meter := mp.Meter(InstrumentationName)

	requests, err := meter.Int64Counter(MetricRequests,
		metric.WithDescription("Completed API requests"))
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", MetricRequests, err)
	}
	duration, err := meter.Float64Histogram(MetricRequestDuration,
		metric.WithDescription("API request duration including retries"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", MetricRequestDuration, err)
	}
	inflight, err := meter.Int64UpDownCounter(MetricRequestsInFlight,
		metric.WithDescription("API requests currently in flight"))
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", MetricRequestsInFlight, err)
	}

	return &OTelListener{
		tracer:   tp.Tracer(InstrumentationName),
		requests: requests,
		duration: duration,
		inflight: inflight,
	}, nil
}

func (l *OTelListener) OnRequestStart(ctx context.Context, req *http.Request) error {
	attrs := requestAttributes(ClientNameFromContext(ctx), req)
	_, span := l.tracer.Start(ctx, "HTTP "+req.Method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)
	l.spans.Store(req, span)
	l.inflight.Add(ctx, 1, metric.WithAttributes(attrs...))
	return nil
}

func (l *OTelListener) OnRequestEnd(ctx context.Context, e Event) error {
	base := requestAttributes(e.ClientName, e.Request)
	l.inflight.Add(ctx, -1, metric.WithAttributes(base...))

	attrs := append(base,
		attribute.Int("http.response.status_code", e.StatusCode()),
		attribute.Int("sdk.request.attempts", e.Attempts),
	)
	if e.Err != nil {
		attrs = append(attrs, attribute.String("error.type", fmt.Sprintf("%T", e.Err)))
	} else if e.StatusCode() >= http.StatusInternalServerError {
		attrs = append(attrs, attribute.String("error.type", strconv.Itoa(e.StatusCode())))
	}

	l.requests.Add(ctx, 1, metric.WithAttributes(attrs...))
	l.duration.Record(ctx, e.Elapsed.Seconds(), metric.WithAttributes(attrs...))

	v, ok := l.spans.LoadAndDelete(e.Request)
	if !ok {
		return nil
	}
	span := v.(trace.Span)
	span.SetAttributes(attrs...)
	if e.RequestID != "" {
		span.SetAttributes(attribute.String("sdk.request.id", e.RequestID))
	}
	switch {
	case e.Err != nil:
		span.RecordError(e.Err)
		span.SetStatus(codes.Error, e.Err.Error())
	case e.StatusCode() >= http.StatusInternalServerError:
		span.SetStatus(codes.Error, http.StatusText(e.StatusCode()))
	}
	span.End()
	return nil
}

func requestAttributes(client string, req *http.Request) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String("sdk.client.name", client),
		attribute.String("http.request.method", req.Method),
	}
	if req.URL != nil {
		attrs = append(attrs, attribute.String("server.address", req.URL.Hostname()))
	}
	return attrs
}
