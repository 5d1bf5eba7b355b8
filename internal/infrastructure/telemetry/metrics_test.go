package telemetry_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap/zaptest"

	"github.com/schoolpay/backend/internal/infrastructure/config"
	"github.com/schoolpay/backend/internal/infrastructure/telemetry"
)

func TestNewMeterProvider_Disabled(t *testing.T) {
	ctx := context.Background()
	mp, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           false,
		CollectorEndpoint: "localhost:4317",
		ServiceName:       "schoolpay-test",
	}, zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.False(t, mp.IsEnabled())
	assert.NotNil(t, mp.Meter("billing"))
	assert.NoError(t, mp.Shutdown(ctx))
}

func TestMetricsConfigFrom(t *testing.T) {
	t.Run("metrics require telemetry to be enabled", func(t *testing.T) {
		cfg := telemetry.MetricsConfigFrom(config.TelemetryConfig{Enabled: false, MetricsEnabled: true})
		assert.False(t, cfg.Enabled)
	})

	t.Run("copies exporter settings", func(t *testing.T) {
		cfg := telemetry.MetricsConfigFrom(config.TelemetryConfig{
			Enabled:           true,
			MetricsEnabled:    true,
			MetricsInterval:   15 * time.Second,
			CollectorEndpoint: "otel:4317",
			ServiceName:       "schoolpay-backend",
			Insecure:          true,
		})
		assert.True(t, cfg.Enabled)
		assert.Equal(t, 15*time.Second, cfg.ExportInterval)
		assert.Equal(t, "otel:4317", cfg.CollectorEndpoint)
		assert.True(t, cfg.Insecure)
	})
}

func TestCounterAndHistogram(t *testing.T) {
	ctx := context.Background()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() { _ = provider.Shutdown(ctx) }()
	meter := provider.Meter("test")

	counter, err := telemetry.NewCounter(meter, "test_total", "Test counter", "1")
	require.NoError(t, err)
	counter.Add(ctx, 5, telemetry.AttrChargeStatus.String("charged"))
	counter.Inc(ctx, telemetry.AttrChargeStatus.String("charged"))

	hist, err := telemetry.NewHistogram(meter, telemetry.HistogramOpts{
		Name:       "test_duration_seconds",
		Unit:       "s",
		Boundaries: telemetry.RunDurationBuckets,
	})
	require.NoError(t, err)
	hist.RecordDuration(ctx, 1500*time.Millisecond)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))
	require.Len(t, rm.ScopeMetrics, 1)

	for _, m := range rm.ScopeMetrics[0].Metrics {
		switch data := m.Data.(type) {
		case metricdata.Sum[int64]:
			require.Len(t, data.DataPoints, 1)
			assert.Equal(t, int64(6), data.DataPoints[0].Value)
		case metricdata.Histogram[float64]:
			require.Len(t, data.DataPoints, 1)
			assert.Equal(t, uint64(1), data.DataPoints[0].Count)
			assert.Equal(t, telemetry.RunDurationBuckets, data.DataPoints[0].Bounds)
		default:
			t.Fatalf("unexpected metric %s", m.Name)
		}
	}
}
