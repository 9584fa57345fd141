package application

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const meterName = "github.com/example/studyspace/internal/application"

// serviceMetrics records admission and session outcomes on the global meter.
type serviceMetrics struct {
	admissions metric.Int64Counter
	sessions   metric.Int64Counter
	duration   metric.Float64Histogram
}

func newServiceMetrics() *serviceMetrics {
	meter := otel.Meter(meterName)
	fallback := noop.NewMeterProvider().Meter(meterName)

	admissions, err := meter.Int64Counter("studyspace.admissions",
		metric.WithDescription("Reservation admission decisions by operation and outcome"))
	if err != nil {
		admissions, _ = fallback.Int64Counter("studyspace.admissions")
	}
	sessions, err := meter.Int64Counter("studyspace.sessions",
		metric.WithDescription("Usage session transitions by operation and outcome"))
	if err != nil {
		sessions, _ = fallback.Int64Counter("studyspace.sessions")
	}
	duration, err := meter.Float64Histogram("studyspace.operation.duration",
		metric.WithDescription("Service operation latency"),
		metric.WithUnit("ms"))
	if err != nil {
		duration, _ = fallback.Float64Histogram("studyspace.operation.duration")
	}
	return &serviceMetrics{admissions: admissions, sessions: sessions, duration: duration}
}

func (m *serviceMetrics) admission(ctx context.Context, operation string, started time.Time, err error) {
	m.record(ctx, m.admissions, operation, started, err)
}

func (m *serviceMetrics) session(ctx context.Context, operation string, started time.Time, err error) {
	m.record(ctx, m.sessions, operation, started, err)
}

func (m *serviceMetrics) record(ctx context.Context, counter metric.Int64Counter, operation string, started time.Time, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = ErrorKind(err)
	}
	attrs := metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("outcome", outcome),
	)
	counter.Add(ctx, 1, attrs)
	m.duration.Record(ctx, float64(time.Since(started).Microseconds())/1000, attrs)
}
