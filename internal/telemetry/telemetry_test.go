package telemetry

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric/noop"
)

func TestInit_DisabledInstallsNoop(t *testing.T) {
	shutdown, err := Init(context.Background(), Options{})
	require.NoError(t, err)

	_, ok := otel.GetMeterProvider().(noop.MeterProvider)
	assert.True(t, ok, "expected noop provider, got %T", otel.GetMeterProvider())
	assert.NoError(t, shutdown(context.Background()))
}

func TestInit_StdoutFlushesOnShutdown(t *testing.T) {
	var buf bytes.Buffer
	shutdown, err := Init(context.Background(), Options{Stdout: true, Writer: &buf, Interval: time.Hour})
	require.NoError(t, err)
	t.Cleanup(func() { otel.SetMeterProvider(noop.NewMeterProvider()) })

	counter, err := otel.Meter("telemetry_test").Int64Counter("studyspace.test.counter")
	require.NoError(t, err)
	counter.Add(context.Background(), 3)

	require.NoError(t, shutdown(context.Background()))
	assert.Contains(t, buf.String(), "studyspace.test.counter")
}
