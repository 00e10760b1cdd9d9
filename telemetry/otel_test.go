package telemetry

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	obtest "github.com/gaborage/sdkcore/observability/testing"
)

func newTestOTel(t *testing.T) (*OTelListener, *tracetest.InMemoryExporter, *obtest.TestMeterProvider) {
	t.Helper()
	tp := obtest.NewTestTraceProvider(t)
	mp := obtest.NewTestMeterProvider(t)

	l, err := NewOTelListener(tp, mp)
	require.NoError(t, err)
	return l, tp.Exporter, mp
}

func TestOTelListenerSuccess(t *testing.T) {
	l, exporter, mp := newTestOTel(t)
	ctx := WithClientName(context.Background(), "delivery")
	req := httptest.NewRequest(http.MethodGet, "https://deliver.example.com/items", http.NoBody)

	require.NoError(t, l.OnRequestStart(ctx, req))
	require.NoError(t, l.OnRequestEnd(ctx, Event{
		ClientName: "delivery",
		RequestID:  "req-1",
		Request:    req,
		Response:   &http.Response{StatusCode: http.StatusOK},
		Elapsed:    50 * time.Millisecond,
		Attempts:   1,
	}))

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	span := spans[0]
	assert.Equal(t, "HTTP GET", span.Name)
	assert.Equal(t, trace.SpanKindClient, span.SpanKind)
	assert.Equal(t, codes.Unset, span.Status.Code)
	obtest.AssertSpanAttribute(t, span, attribute.String("sdk.client.name", "delivery"))
	obtest.AssertSpanAttribute(t, span, attribute.Int("http.response.status_code", 200))
	obtest.AssertSpanAttribute(t, span, attribute.String("sdk.request.id", "req-1"))

	rm := mp.Collect(t)
	obtest.AssertInt64Sum(t, obtest.FindMetric(t, rm, MetricRequests), 1)
	obtest.AssertInt64Sum(t, obtest.FindMetric(t, rm, MetricRequestsInFlight), 0)
	obtest.AssertHistogramCount(t, obtest.FindMetric(t, rm, MetricRequestDuration), 1)
}

func TestOTelListenerFailure(t *testing.T) {
	l, exporter, _ := newTestOTel(t)
	ctx := context.Background()

	errReq := httptest.NewRequest(http.MethodPost, "https://deliver.example.com/items", http.NoBody)
	require.NoError(t, l.OnRequestStart(ctx, errReq))
	require.NoError(t, l.OnRequestEnd(ctx, Event{Request: errReq, Err: errors.New("connection refused")}))

	statusReq := httptest.NewRequest(http.MethodGet, "https://deliver.example.com/items", http.NoBody)
	require.NoError(t, l.OnRequestStart(ctx, statusReq))
	require.NoError(t, l.OnRequestEnd(ctx, Event{Request: statusReq, Response: &http.Response{StatusCode: 502}}))

	spans := exporter.GetSpans()
	require.Len(t, spans, 2)
	assert.Equal(t, codes.Error, spans[0].Status.Code)
	assert.Equal(t, "connection refused", spans[0].Status.Description)
	require.Len(t, spans[0].Events, 1, "error recorded as span event")
	assert.Equal(t, codes.Error, spans[1].Status.Code)
}

func TestOTelListenerEndWithoutStart(t *testing.T) {
	l, exporter, _ := newTestOTel(t)
	req := httptest.NewRequest(http.MethodGet, "https://deliver.example.com/items", http.NoBody)

	require.NoError(t, l.OnRequestEnd(context.Background(), Event{Request: req}))
	assert.Empty(t, exporter.GetSpans())
}
