package observability

import (
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/gaborage/sdkcore/config"
)

const (
	// EndpointStdout writes telemetry to standard output. Useful during development.
	EndpointStdout = "stdout"

	// ProtocolHTTP exports over OTLP/HTTP. Endpoints must carry an http:// or https:// scheme.
	ProtocolHTTP = "http"
	// ProtocolGRPC exports over OTLP/gRPC. Endpoints use the host:port form.
	ProtocolGRPC = "grpc"

	EnvironmentDevelopment = "development"

	// ConfigKey is the section read by Load.
	ConfigKey = "observability"
)

const (
	defaultServiceVersion  = "unknown"
	defaultExportTimeout   = 10 * time.Second
	defaultBatchTimeout    = 5 * time.Second
	defaultMetricsInterval = 60 * time.Second
	defaultSampleRate      = 1.0
)

// Config configures the OpenTelemetry providers feeding the SDK telemetry listener.
type Config struct {
	// Enabled turns on trace and metric export. A disabled config yields no-op providers.
	Enabled bool `koanf:"enabled" json:"enabled" yaml:"enabled"`

	Service ServiceConfig `koanf:"service" json:"service" yaml:"service"`

	// Environment is reported as deployment.environment.name.
	Environment string `koanf:"environment" json:"environment" yaml:"environment"`

	Trace   TraceConfig   `koanf:"trace" json:"trace" yaml:"trace"`
	Metrics MetricsConfig `koanf:"metrics" json:"metrics" yaml:"metrics"`
}

// ServiceConfig identifies the application emitting telemetry.
type ServiceConfig struct {
	Name    string `koanf:"name" json:"name" yaml:"name"`
	Version string `koanf:"version" json:"version" yaml:"version"`
}

// ExporterConfig is shared by the trace and metric exporters.
type ExporterConfig struct {
	// Enabled defaults to true when the parent config is enabled.
	Enabled *bool `koanf:"enabled" json:"enabled" yaml:"enabled"`

	// Endpoint is "stdout", a host:port for gRPC, or a URL for HTTP.
	Endpoint string `koanf:"endpoint" json:"endpoint" yaml:"endpoint"`

	// Protocol is "http" (default) or "grpc".
	Protocol string `koanf:"protocol" json:"protocol" yaml:"protocol"`

	// Insecure disables TLS for OTLP exporters.
	Insecure bool `koanf:"insecure" json:"insecure" yaml:"insecure"`

	// Headers are sent with every export request, typically for collector auth.
	Headers map[string]string `koanf:"headers" json:"headers" yaml:"headers"`

	Timeout time.Duration `koanf:"timeout" json:"timeout" yaml:"timeout"`
}

// IsEnabled reports whether the signal is exported.
func (e ExporterConfig) IsEnabled() bool {
	return e.Enabled == nil || *e.Enabled
}

// TraceConfig configures span export.
type TraceConfig struct {
	ExporterConfig `koanf:",squash" yaml:",inline"`

	// SampleRate is the ratio of traces recorded, between 0.0 and 1.0.
	SampleRate *float64 `koanf:"samplerate" json:"sampleRate" yaml:"samplerate"`

	BatchTimeout time.Duration `koanf:"batchtimeout" json:"batchTimeout" yaml:"batchtimeout"`
}

// MetricsConfig configures metric export.
type MetricsConfig struct {
	ExporterConfig `koanf:",squash" yaml:",inline"`

	// Interval between periodic exports.
	Interval time.Duration `koanf:"interval" json:"interval" yaml:"interval"`
}

// Load reads the observability section from l. A missing section yields a disabled config.
func Load(l *config.Loader) (Config, error) {
	var cfg Config
	if err := l.Section(ConfigKey, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ApplyDefaults fills unset fields. Headers maps are copied so the caller's config
// is never shared with exporters.
func (c *Config) ApplyDefaults() {
	if c.Service.Version == "" {
		c.Service.Version = defaultServiceVersion
	}
	if c.Environment == "" {
		c.Environment = EnvironmentDevelopment
	}

	c.Trace.ExporterConfig = c.Trace.withDefaults()
	if c.Trace.SampleRate == nil {
		rate := defaultSampleRate
		c.Trace.SampleRate = &rate
	}
	if c.Trace.BatchTimeout <= 0 {
		c.Trace.BatchTimeout = defaultBatchTimeout
	}

	c.Metrics.ExporterConfig = c.Metrics.withDefaults()
	if c.Metrics.Interval <= 0 {
		c.Metrics.Interval = defaultMetricsInterval
	}
}

func (e ExporterConfig) withDefaults() ExporterConfig {
	if e.Endpoint == "" {
		e.Endpoint = EndpointStdout
	}
	if e.Protocol == "" {
		e.Protocol = ProtocolHTTP
	}
	if e.Timeout <= 0 {
		e.Timeout = defaultExportTimeout
	}
	e.Headers = maps.Clone(e.Headers)
	return e
}

// Validate checks a config after defaults are applied. Disabled configs are always valid.
func (c *Config) Validate() error {
	if c == nil {
		return ErrNilConfig
	}
	if !c.Enabled {
		return nil
	}
	if strings.TrimSpace(c.Service.Name) == "" {
		return ErrMissingServiceName
	}

	if c.Trace.IsEnabled() {
		if c.Trace.SampleRate != nil && (*c.Trace.SampleRate < 0 || *c.Trace.SampleRate > 1) {
			return ErrInvalidSampleRate
		}
		if err := c.Trace.validate(); err != nil {
			return fmt.Errorf("trace: %w", err)
		}
	}
	if c.Metrics.IsEnabled() {
		if err := c.Metrics.validate(); err != nil {
			return fmt.Errorf("metrics: %w", err)
		}
	}
	return nil
}

func (e ExporterConfig) validate() error {
	if e.Endpoint == EndpointStdout || e.Endpoint == "" {
		return nil
	}

	protocol := e.Protocol
	if protocol == "" {
		protocol = ProtocolHTTP
	}
	if protocol != ProtocolHTTP && protocol != ProtocolGRPC {
		return fmt.Errorf("%q: %w", protocol, ErrInvalidProtocol)
	}

	hasScheme := strings.HasPrefix(e.Endpoint, "http://") || strings.HasPrefix(e.Endpoint, "https://")
	if protocol == ProtocolGRPC && hasScheme {
		return fmt.Errorf("%q must use host:port for grpc: %w", e.Endpoint, ErrInvalidEndpointFormat)
	}
	if protocol == ProtocolHTTP && !hasScheme {
		return fmt.Errorf("%q must include http:// or https:// for http: %w", e.Endpoint, ErrInvalidEndpointFormat)
	}
	return nil
}
