// Package testing provides in-memory OpenTelemetry providers and assertions for
// tests of instrumented code.
//
//	tp := obtest.NewTestTraceProvider(t)
//	mp := obtest.NewTestMeterProvider(t)
//	l, _ := telemetry.NewOTelListener(tp, mp)
//	...
//	spans := tp.Exporter.GetSpans()
//	obtest.AssertInt64Sum(t, obtest.FindMetric(t, mp.Collect(t), "sdk.client.requests"), 1)
package testing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// TestTraceProvider wraps the SDK TracerProvider and an in-memory exporter.
type TestTraceProvider struct {
	*sdktrace.TracerProvider
	Exporter *tracetest.InMemoryExporter
}

// NewTestTraceProvider exports spans synchronously into memory. The provider is shut
// down when the test ends.
func NewTestTraceProvider(t *testing.T) *TestTraceProvider {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	return &TestTraceProvider{TracerProvider: provider, Exporter: exporter}
}

// TestMeterProvider wraps the SDK MeterProvider and a manual reader.
type TestMeterProvider struct {
	*sdkmetric.MeterProvider
	Reader *sdkmetric.ManualReader
}

// NewTestMeterProvider collects metrics on demand. The provider is shut down when
// the test ends.
func NewTestMeterProvider(t *testing.T) *TestMeterProvider {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	return &TestMeterProvider{MeterProvider: provider, Reader: reader}
}

// Collect reads every metric recorded so far.
func (tmp *TestMeterProvider) Collect(t *testing.T) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, tmp.Reader.Collect(context.Background(), &rm), "failed to collect metrics")
	return rm
}

// FindMetric returns the named metric or fails the test.
func FindMetric(t *testing.T, rm metricdata.ResourceMetrics, name string) metricdata.Metrics {
	t.Helper()
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == name {
				return m
			}
		}
	}
	require.Failf(t, "metric not found", "metric %s not found", name)
	return metricdata.Metrics{}
}

// AssertInt64Sum checks a counter or up-down counter with a single data point.
func AssertInt64Sum(t *testing.T, m metricdata.Metrics, want int64) {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "metric %s is not an int64 sum", m.Name)
	require.Len(t, sum.DataPoints, 1, "no single data point for metric %s", m.Name)
	assert.Equal(t, want, sum.DataPoints[0].Value, "metric %s value mismatch", m.Name)
}

// AssertHistogramCount checks the observation count of a single-point float histogram.
func AssertHistogramCount(t *testing.T, m metricdata.Metrics, want uint64) {
	t.Helper()
	hist, ok := m.Data.(metricdata.Histogram[float64])
	require.True(t, ok, "metric %s is not a float64 histogram", m.Name)
	require.Len(t, hist.DataPoints, 1, "no single data point for metric %s", m.Name)
	assert.Equal(t, want, hist.DataPoints[0].Count, "metric %s count mismatch", m.Name)
}

// AssertSpanAttribute checks that span carries kv.
func AssertSpanAttribute(t *testing.T, span tracetest.SpanStub, kv attribute.KeyValue) {
	t.Helper()
	assert.Contains(t, span.Attributes, kv, "attribute %s value mismatch", kv.Key)
}
