package observability

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/gaborage/sdkcore/config"
	"github.com/gaborage/sdkcore/logger"
	"github.com/gaborage/sdkcore/telemetry"
)

func TestApplyDefaults(t *testing.T) {
	headers := map[string]string{"api-key": "secret"}
	cfg := Config{Enabled: true, Service: ServiceConfig{Name: "storefront"}}
	cfg.Trace.Headers = headers
	cfg.ApplyDefaults()

	assert.Equal(t, "unknown", cfg.Service.Version)
	assert.Equal(t, EnvironmentDevelopment, cfg.Environment)
	assert.Equal(t, EndpointStdout, cfg.Trace.Endpoint)
	assert.Equal(t, ProtocolHTTP, cfg.Trace.Protocol)
	require.NotNil(t, cfg.Trace.SampleRate)
	assert.InDelta(t, 1.0, *cfg.Trace.SampleRate, 0)
	assert.Equal(t, 5*time.Second, cfg.Trace.BatchTimeout)
	assert.Equal(t, 10*time.Second, cfg.Trace.Timeout)
	assert.Equal(t, 60*time.Second, cfg.Metrics.Interval)
	assert.True(t, cfg.Trace.IsEnabled())
	assert.True(t, cfg.Metrics.IsEnabled())

	cfg.Trace.Headers["api-key"] = "changed"
	assert.Equal(t, "secret", headers["api-key"], "headers are copied")
}

func TestValidate(t *testing.T) {
	rate := func(v float64) *float64 { return &v }

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "disabled skips checks", mutate: func(c *Config) { c.Enabled = false; c.Service.Name = "" }},
		{name: "missing service name", mutate: func(c *Config) { c.Service.Name = " " }, wantErr: ErrMissingServiceName},
		{name: "sample rate too high", mutate: func(c *Config) { c.Trace.SampleRate = rate(1.5) }, wantErr: ErrInvalidSampleRate},
		{name: "sample rate ignored when traces off", mutate: func(c *Config) {
			c.Trace.SampleRate = rate(-1)
			c.Trace.Enabled = config.BoolPtr(false)
		}},
		{name: "unknown protocol", mutate: func(c *Config) {
			c.Trace.Endpoint = "collector:4317"
			c.Trace.Protocol = "udp"
		}, wantErr: ErrInvalidProtocol},
		{name: "grpc with scheme", mutate: func(c *Config) {
			c.Metrics.Endpoint = "http://collector:4317"
			c.Metrics.Protocol = ProtocolGRPC
		}, wantErr: ErrInvalidEndpointFormat},
		{name: "http without scheme", mutate: func(c *Config) {
			c.Trace.Endpoint = "collector:4318"
		}, wantErr: ErrInvalidEndpointFormat},
		{name: "grpc host port", mutate: func(c *Config) {
			c.Trace.Endpoint = "collector:4317"
			c.Trace.Protocol = ProtocolGRPC
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config{Enabled: true, Service: ServiceConfig{Name: "storefront"}}
			cfg.ApplyDefaults()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	var nilCfg *Config
	assert.ErrorIs(t, nilCfg.Validate(), ErrNilConfig)
}

func TestLoad(t *testing.T) {
	yaml := `
observability:
  enabled: true
  service:
    name: storefront
    version: 2.0.0
  trace:
    endpoint: https://otel.example.com/v1/traces
    samplerate: 0.25
    headers:
      api-key: secret
  metrics:
    enabled: false
`
	l, err := config.NewLoader(config.WithYAML([]byte(yaml)), config.WithEnvPrefix(""))
	require.NoError(t, err)

	cfg, err := Load(l)
	require.NoError(t, err)
	assert.True(t, cfg.Enabled)
	assert.Equal(t, "storefront", cfg.Service.Name)
	assert.Equal(t, "2.0.0", cfg.Service.Version)
	assert.Equal(t, "https://otel.example.com/v1/traces", cfg.Trace.Endpoint)
	require.NotNil(t, cfg.Trace.SampleRate)
	assert.InDelta(t, 0.25, *cfg.Trace.SampleRate, 1e-9)
	assert.Equal(t, "secret", cfg.Trace.Headers["api-key"])
	assert.False(t, cfg.Metrics.IsEnabled())

	empty, err := config.NewLoader(config.WithEnvPrefix(""))
	require.NoError(t, err)
	cfg, err = Load(empty)
	require.NoError(t, err)
	assert.False(t, cfg.Enabled)
}

func TestNewProviderDisabled(t *testing.T) {
	p, err := NewProvider(Config{}, nil)
	require.NoError(t, err)

	assert.IsType(t, noop.NewTracerProvider(), p.TracerProvider())
	assert.IsType(t, metricnoop.NewMeterProvider(), p.MeterProvider())
	assert.NoError(t, p.ForceFlush(context.Background()))
	assert.NoError(t, Shutdown(p, time.Second))
}

func TestNewProviderRejectsInvalidConfig(t *testing.T) {
	_, err := NewProvider(Config{Enabled: true}, logger.Nop())
	require.ErrorIs(t, err, ErrMissingServiceName)

	assert.Panics(t, func() { MustNewProvider(Config{Enabled: true}, logger.Nop()) })
}

func TestProviderExportsListenerTelemetry(t *testing.T) {
	var out bytes.Buffer
	cfg := Config{Enabled: true, Service: ServiceConfig{Name: "storefront", Version: "2.0.0"}}
	p, err := NewProvider(cfg, logger.Nop(), WithWriter(&out), WithoutGlobals())
	require.NoError(t, err)

	l, err := NewListener(p)
	require.NoError(t, err)

	ctx := telemetry.WithClientName(context.Background(), "delivery")
	req := httptest.NewRequest(http.MethodGet, "https://deliver.example.com/items", http.NoBody)
	require.NoError(t, l.OnRequestStart(ctx, req))
	require.NoError(t, l.OnRequestEnd(ctx, telemetry.Event{
		ClientName: "delivery",
		Request:    req,
		Response:   &http.Response{StatusCode: http.StatusOK},
		Elapsed:    20 * time.Millisecond,
		Attempts:   1,
	}))

	require.NoError(t, p.ForceFlush(context.Background()))
	assert.Contains(t, out.String(), "HTTP GET")
	assert.Contains(t, out.String(), telemetry.MetricRequests)
	assert.Contains(t, out.String(), "storefront")

	require.NoError(t, Shutdown(p, time.Second))
}

func TestProviderCreatesOTLPExporters(t *testing.T) {
	for _, tc := range []struct {
		protocol string
		endpoint string
	}{
		{ProtocolHTTP, "http://127.0.0.1:4318/v1/traces"},
		{ProtocolGRPC, "127.0.0.1:4317"},
	} {
		t.Run(tc.protocol, func(t *testing.T) {
			cfg := Config{Enabled: true, Service: ServiceConfig{Name: "storefront"}}
			cfg.Trace.Endpoint = tc.endpoint
			cfg.Trace.Protocol = tc.protocol
			cfg.Trace.Insecure = true
			cfg.Trace.Headers = map[string]string{"api-key": "secret"}
			cfg.Metrics.Enabled = config.BoolPtr(false)

			p, err := NewProvider(cfg, logger.Nop(), WithoutGlobals())
			require.NoError(t, err)
			assert.NotNil(t, p.TracerProvider())
			assert.IsType(t, metricnoop.NewMeterProvider(), p.MeterProvider())

			ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
			defer cancel()
			_ = p.Shutdown(ctx)
		})
	}
}

func TestNewListenerWithoutProvider(t *testing.T) {
	l, err := NewListener(nil)
	require.NoError(t, err)
	assert.NotNil(t, l)
}

func TestShutdownNilProvider(t *testing.T) {
	assert.NoError(t, Shutdown(nil, 0))
}
