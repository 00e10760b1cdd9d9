package observability

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.32.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/gaborage/sdkcore/logger"
)

// Provider manages the lifecycle of the trace and meter providers.
type Provider interface {
	TracerProvider() trace.TracerProvider
	MeterProvider() metric.MeterProvider

	// Shutdown flushes pending telemetry and releases exporters.
	Shutdown(ctx context.Context) error

	// ForceFlush immediately exports pending telemetry.
	ForceFlush(ctx context.Context) error
}

// Option configures NewProvider.
type Option func(*provider)

// WithWriter redirects the stdout exporters to w.
func WithWriter(w io.Writer) Option {
	return func(p *provider) { p.writer = w }
}

// WithoutGlobals keeps the providers and propagator out of the otel globals.
func WithoutGlobals() Option {
	return func(p *provider) { p.global = false }
}

type provider struct {
	config Config
	log    logger.Logger
	writer io.Writer
	global bool

	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	mu             sync.Mutex
}

// NewProvider builds trace and meter providers from cfg. Defaults are applied to a
// copy of cfg before validation. A disabled config returns a no-op provider.
func NewProvider(cfg Config, log logger.Logger, opts ...Option) (Provider, error) {
	if log == nil {
		log = logger.Nop()
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid observability config: %w", err)
	}

	if !cfg.Enabled {
		log.Debug().Msg("Observability disabled, using no-op providers")
		return newNoopProvider(), nil
	}

	p := &provider{config: cfg, log: log, global: true}
	for _, opt := range opts {
		opt(p)
	}

	res, err := p.createResource()
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	if cfg.Trace.IsEnabled() {
		if *cfg.Trace.SampleRate == 0 {
			log.Warn().Msg("Trace sample rate is 0, no spans will be recorded")
		}
		if err := p.initTraceProvider(res); err != nil {
			return nil, fmt.Errorf("failed to initialize trace provider: %w", err)
		}
	}

	if cfg.Metrics.IsEnabled() {
		if err := p.initMeterProvider(res); err != nil {
			// Release the already-started trace exporter.
			_ = p.Shutdown(context.Background())
			return nil, fmt.Errorf("failed to initialize meter provider: %w", err)
		}
	}

	if p.global {
		if p.tracerProvider != nil {
			otel.SetTracerProvider(p.tracerProvider)
		}
		if p.meterProvider != nil {
			otel.SetMeterProvider(p.meterProvider)
		}
		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		))
	}

	log.Info().
		Str("service", cfg.Service.Name).
		Bool("traces", p.tracerProvider != nil).
		Bool("metrics", p.meterProvider != nil).
		Msg("Observability provider created")
	return p, nil
}

// MustNewProvider is like NewProvider but panics on error.
func MustNewProvider(cfg Config, log logger.Logger, opts ...Option) Provider {
	p, err := NewProvider(cfg, log, opts...)
	if err != nil {
		panic(fmt.Errorf("failed to create observability provider: %w", err))
	}
	return p
}

func (p *provider) createResource() (*resource.Resource, error) {
	// No schema URL on the custom resource, so merging with the default never conflicts.
	custom, err := resource.New(
		context.Background(),
		resource.WithAttributes(
			semconv.ServiceName(p.config.Service.Name),
			semconv.ServiceVersion(p.config.Service.Version),
			semconv.DeploymentEnvironmentName(p.config.Environment),
		),
	)
	if err != nil {
		return nil, err
	}
	return resource.Merge(resource.Default(), custom)
}

func (p *provider) initTraceProvider(res *resource.Resource) error {
	exporter, err := p.createTraceExporter()
	if err != nil {
		return fmt.Errorf("failed to create trace exporter: %w", err)
	}

	bsp := sdktrace.NewBatchSpanProcessor(
		exporter,
		sdktrace.WithBatchTimeout(p.config.Trace.BatchTimeout),
		sdktrace.WithExportTimeout(p.config.Trace.Timeout),
	)

	p.tracerProvider = sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(*p.config.Trace.SampleRate))),
	)
	return nil
}

func (p *provider) createTraceExporter() (sdktrace.SpanExporter, error) {
	tc := p.config.Trace
	p.log.Debug().
		Str("endpoint", tc.Endpoint).
		Str("protocol", tc.Protocol).
		Bool("insecure", tc.Insecure).
		Msg("Creating trace exporter")

	if tc.Endpoint == EndpointStdout {
		opts := []stdouttrace.Option{stdouttrace.WithPrettyPrint()}
		if p.writer != nil {
			opts = append(opts, stdouttrace.WithWriter(p.writer))
		}
		return stdouttrace.New(opts...)
	}

	switch tc.Protocol {
	case ProtocolHTTP:
		opts := []otlptracehttp.Option{
			otlptracehttp.WithEndpointURL(tc.Endpoint),
			otlptracehttp.WithTimeout(tc.Timeout),
		}
		if tc.Insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		if len(tc.Headers) > 0 {
			opts = append(opts, otlptracehttp.WithHeaders(tc.Headers))
		}
		return otlptracehttp.New(context.Background(), opts...)
	case ProtocolGRPC:
		opts := []otlptracegrpc.Option{
			otlptracegrpc.WithEndpoint(tc.Endpoint),
			otlptracegrpc.WithTimeout(tc.Timeout),
		}
		if tc.Insecure {
			opts = append(opts, otlptracegrpc.WithTLSCredentials(insecure.NewCredentials()))
		}
		if len(tc.Headers) > 0 {
			opts = append(opts, otlptracegrpc.WithHeaders(tc.Headers))
		}
		return otlptracegrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("trace protocol '%s': %w", tc.Protocol, ErrInvalidProtocol)
	}
}

func (p *provider) TracerProvider() trace.TracerProvider {
	if p.tracerProvider == nil {
		return noop.NewTracerProvider()
	}
	return p.tracerProvider
}

func (p *provider) MeterProvider() metric.MeterProvider {
	if p.meterProvider == nil {
		return metricnoop.NewMeterProvider()
	}
	return p.meterProvider
}

//nolint:dupl // Shutdown and ForceFlush have similar structure but different semantics
func (p *provider) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs []error
	if p.tracerProvider != nil {
		if err := p.tracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to shutdown trace provider: %w", err))
		}
	}
	if p.meterProvider != nil {
		if err := p.meterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to shutdown meter provider: %w", err))
		}
	}
	return errors.Join(errs...)
}

//nolint:dupl // Shutdown and ForceFlush have similar structure but different semantics
func (p *provider) ForceFlush(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs []error
	if p.tracerProvider != nil {
		if err := p.tracerProvider.ForceFlush(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to flush trace provider: %w", err))
		}
	}
	if p.meterProvider != nil {
		if err := p.meterProvider.ForceFlush(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to flush meter provider: %w", err))
		}
	}
	return errors.Join(errs...)
}
