package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/schoolpay/backend/internal/infrastructure/config"
)

func TestLogsConfigFrom(t *testing.T) {
	tests := []struct {
		name        string
		enabled     bool
		logsEnabled bool
		want        bool
	}{
		{"both on", true, true, true},
		{"telemetry off", false, true, false},
		{"logs off", true, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := LogsConfigFrom(config.TelemetryConfig{
				Enabled:           tt.enabled,
				LogsEnabled:       tt.logsEnabled,
				CollectorEndpoint: "collector:4317",
				ServiceName:       "schoolpay-backend",
			})
			assert.Equal(t, tt.want, cfg.Enabled)
			assert.Equal(t, "collector:4317", cfg.CollectorEndpoint)
			assert.Equal(t, "schoolpay-backend", cfg.ServiceName)
		})
	}
}

func TestLoggerProvider_Disabled(t *testing.T) {
	ctx := context.Background()
	lp, err := NewLoggerProvider(ctx, LogsConfig{Enabled: false}, zap.NewNop())
	require.NoError(t, err)

	assert.False(t, lp.IsEnabled())

	base := zap.NewNop()
	assert.Same(t, base, lp.Bridge(base, "info"))
	assert.NoError(t, lp.Shutdown(ctx))
}

func TestLoggerProvider_BridgeKeepsBaseOutput(t *testing.T) {
	ctx := context.Background()
	// the gRPC exporter dials lazily, so no collector is needed to build it
	lp, err := NewLoggerProvider(ctx, LogsConfig{
		Enabled:           true,
		CollectorEndpoint: "localhost:19999",
		ServiceName:       "schoolpay-test",
		Insecure:          true,
	}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = lp.Shutdown(context.Background()) })
	assert.True(t, lp.IsEnabled())

	core, logs := observer.New(zapcore.DebugLevel)
	base := zap.New(core)
	bridged := lp.Bridge(base, "warn")
	require.NotSame(t, base, bridged)

	bridged.Info("Tenant billed", zap.String("tenant_id", "t-1"))

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "Tenant billed", logs.All()[0].Message)
}

func TestLevelFilterCore(t *testing.T) {
	inner, logs := observer.New(zapcore.DebugLevel)
	core := levelFilterCore{Core: inner, minLevel: zapcore.WarnLevel}

	assert.False(t, core.Enabled(zapcore.DebugLevel))
	assert.False(t, core.Enabled(zapcore.InfoLevel))
	assert.True(t, core.Enabled(zapcore.WarnLevel))
	assert.True(t, core.Enabled(zapcore.ErrorLevel))

	logger := zap.New(core).With(zap.String("run_date", "2024-03-15"))
	logger.Info("dropped")
	logger.Error("Billing run failed")

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "Billing run failed", entry.Message)
	assert.Equal(t, "2024-03-15", entry.ContextMap()["run_date"])
}
