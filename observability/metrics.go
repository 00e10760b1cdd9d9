package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"google.golang.org/grpc/credentials/insecure"
)

func (p *provider) initMeterProvider(res *resource.Resource) error {
	exporter, err := p.createMetricExporter()
	if err != nil {
		return fmt.Errorf("failed to create metric exporter: %w", err)
	}

	reader := sdkmetric.NewPeriodicReader(
		exporter,
		sdkmetric.WithInterval(p.config.Metrics.Interval),
		sdkmetric.WithTimeout(p.config.Metrics.Timeout),
	)

	p.meterProvider = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
	)
	return nil
}

func (p *provider) createMetricExporter() (sdkmetric.Exporter, error) {
	mc := p.config.Metrics
	p.log.Debug().
		Str("endpoint", mc.Endpoint).
		Str("protocol", mc.Protocol).
		Dur("interval", mc.Interval).
		Msg("Creating metric exporter")

	if mc.Endpoint == EndpointStdout {
		opts := []stdoutmetric.Option{stdoutmetric.WithPrettyPrint()}
		if p.writer != nil {
			opts = append(opts, stdoutmetric.WithWriter(p.writer))
		}
		return stdoutmetric.New(opts...)
	}

	switch mc.Protocol {
	case ProtocolHTTP:
		opts := []otlpmetrichttp.Option{
			otlpmetrichttp.WithEndpointURL(mc.Endpoint),
			otlpmetrichttp.WithTimeout(mc.Timeout),
		}
		if mc.Insecure {
			opts = append(opts, otlpmetrichttp.WithInsecure())
		}
		if len(mc.Headers) > 0 {
			opts = append(opts, otlpmetrichttp.WithHeaders(mc.Headers))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case ProtocolGRPC:
		opts := []otlpmetricgrpc.Option{
			otlpmetricgrpc.WithEndpoint(mc.Endpoint),
			otlpmetricgrpc.WithTimeout(mc.Timeout),
		}
		if mc.Insecure {
			opts = append(opts, otlpmetricgrpc.WithTLSCredentials(insecure.NewCredentials()))
		}
		if len(mc.Headers) > 0 {
			opts = append(opts, otlpmetricgrpc.WithHeaders(mc.Headers))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("metrics protocol '%s': %w", mc.Protocol, ErrInvalidProtocol)
	}
}
