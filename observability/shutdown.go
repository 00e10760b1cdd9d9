package observability

import (
	"context"
	"fmt"
	"time"

	"github.com/gaborage/sdkcore/telemetry"
)

// DefaultShutdownTimeout bounds Shutdown when no timeout is given.
const DefaultShutdownTimeout = 10 * time.Second

// NewListener creates the SDK telemetry listener on p's providers. Register it with
// registry.WithListener to export one span and one set of metrics per logical request.
func NewListener(p Provider) (*telemetry.OTelListener, error) {
	if p == nil {
		p = newNoopProvider()
	}
	return telemetry.NewOTelListener(p.TracerProvider(), p.MeterProvider())
}

// Shutdown flushes and stops provider within timeout.
func Shutdown(provider Provider, timeout time.Duration) error {
	if provider == nil {
		return nil
	}
	if timeout <= 0 {
		timeout = DefaultShutdownTimeout
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := provider.Shutdown(ctx); err != nil {
		return fmt.Errorf("observability shutdown failed: %w", err)
	}
	return nil
}
