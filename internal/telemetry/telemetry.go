// Package telemetry installs the OpenTelemetry meter provider used by the
// services.
//
// Metrics are off by default: Init installs a no-op provider unless stdout
// export is requested, in which case readings are written periodically and
// flushed on shutdown.
package telemetry

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// DefaultInterval is the export period when Options.Interval is zero.
const DefaultInterval = 30 * time.Second

// Options selects the metric exporter.
type Options struct {
	Stdout   bool
	Writer   io.Writer
	Interval time.Duration
}

// ShutdownFunc flushes and stops the installed provider.
type ShutdownFunc func(context.Context) error

// Init installs the global meter provider and returns its shutdown function.
func Init(ctx context.Context, opts Options) (ShutdownFunc, error) {
	if !opts.Stdout {
		otel.SetMeterProvider(noop.NewMeterProvider())
		return func(context.Context) error { return nil }, nil
	}

	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}

	exporter, err := stdoutmetric.New(stdoutmetric.WithWriter(w))
	if err != nil {
		return nil, fmt.Errorf("telemetry: stdout exporter: %w", err)
	}
	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval))),
	)
	otel.SetMeterProvider(provider)

	return func(ctx context.Context) error {
		if err := provider.Shutdown(ctx); err != nil {
			return fmt.Errorf("telemetry: shutdown: %w", err)
		}
		return nil
	}, nil
}
