// Package metrics exposes API call telemetry as Prometheus metrics.
package metrics

import (
	"context"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/gaborage/sdkcore/telemetry"
)

// Collector is a telemetry.Listener backed by Prometheus vectors. It is safe for
// concurrent use.
type Collector struct {
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	requestsInFlight *prometheus.GaugeVec
	attempts         *prometheus.HistogramVec
	errorsTotal      *prometheus.CounterVec
}

var _ telemetry.Listener = (*Collector)(nil)

// NewCollector registers the collector's metrics on reg under namespace.
func NewCollector(reg prometheus.Registerer, namespace string) *Collector {
	factory := promauto.With(reg)
	return &Collector{
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "requests_total",
				Help:      "Total number of completed API requests",
			},
			[]string{"client", "method", "status_code"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "request_duration_seconds",
				Help:      "Duration of API requests including retries",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"client", "method"},
		),
		requestsInFlight: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "requests_in_flight",
				Help:      "Number of API requests currently in flight",
			},
			[]string{"client", "method"},
		),
		attempts: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "request_attempts",
				Help:      "Number of transport attempts per API request",
				Buckets:   []float64{1, 2, 3, 4, 6, 10},
			},
			[]string{"client", "method"},
		),
		errorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_total",
				Help:      "Total number of API requests that ended with an error",
			},
			[]string{"client", "method"},
		),
	}
}

func (c *Collector) OnRequestStart(ctx context.Context, req *http.Request) error {
	c.requestsInFlight.WithLabelValues(telemetry.ClientNameFromContext(ctx), req.Method).Inc()
	return nil
}

func (c *Collector) OnRequestEnd(_ context.Context, e telemetry.Event) error {
	method := e.Request.Method
	c.requestsInFlight.WithLabelValues(e.ClientName, method).Dec()

	status := "none"
	if e.Response != nil {
		status = strconv.Itoa(e.Response.StatusCode)
	}
	c.requestsTotal.WithLabelValues(e.ClientName, method, status).Inc()
	c.requestDuration.WithLabelValues(e.ClientName, method).Observe(e.Elapsed.Seconds())
	if e.Attempts > 0 {
		c.attempts.WithLabelValues(e.ClientName, method).Observe(float64(e.Attempts))
	}
	if e.Err != nil {
		c.errorsTotal.WithLabelValues(e.ClientName, method).Inc()
	}
	return nil
}
