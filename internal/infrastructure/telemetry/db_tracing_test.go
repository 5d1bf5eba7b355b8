package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/schoolpay/backend/internal/infrastructure/config"
)

type ledgerRow struct {
	ID     uint   `gorm:"primaryKey"`
	Status string `gorm:"size:16"`
}

func setupTracingDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&ledgerRow{}))
	return db
}

func newRecordingProvider(t *testing.T) (*sdktrace.TracerProvider, *tracetest.SpanRecorder) {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return tp, recorder
}

func attrsOf(span sdktrace.ReadOnlySpan) map[string]any {
	out := make(map[string]any)
	for _, kv := range span.Attributes() {
		out[string(kv.Key)] = kv.Value.AsInterface()
	}
	return out
}

func TestDBTracingConfigFrom(t *testing.T) {
	t.Run("requires telemetry and db tracing", func(t *testing.T) {
		cfg := DBTracingConfigFrom(config.TelemetryConfig{Enabled: true, DBTraceEnabled: false})
		assert.False(t, cfg.Enabled)
	})

	t.Run("defaults slow query threshold", func(t *testing.T) {
		cfg := DBTracingConfigFrom(config.TelemetryConfig{Enabled: true, DBTraceEnabled: true})
		assert.True(t, cfg.Enabled)
		assert.Equal(t, 200*time.Millisecond, cfg.SlowQueryThresh)
		assert.Equal(t, "postgresql", cfg.DBSystem)
	})
}

func TestDBTracingPlugin_RegisterDisabled(t *testing.T) {
	db := setupTracingDB(t)
	plugin := NewDBTracingPlugin(DBTracingConfig{Enabled: false}, zap.NewNop())
	require.NoError(t, plugin.Register(db))

	assert.Nil(t, db.Callback().Query().Get("otel_timing:after_query"))
}

func TestDBTracingPlugin_RegisterTwiceFails(t *testing.T) {
	db := setupTracingDB(t)
	cfg := DBTracingConfig{Enabled: true, SlowQueryThresh: time.Second, DBSystem: "sqlite"}

	require.NoError(t, NewDBTracingPlugin(cfg, zap.NewNop()).Register(db))
	assert.Error(t, NewDBTracingPlugin(cfg, zap.NewNop()).Register(db))
}

func TestDBTracingPlugin_AfterQuery(t *testing.T) {
	db := setupTracingDB(t)
	tp, recorder := newRecordingProvider(t)
	plugin := NewDBTracingPlugin(DBTracingConfig{Enabled: true, SlowQueryThresh: 100 * time.Millisecond}, zap.NewNop())

	t.Run("slow query is flagged on the span", func(t *testing.T) {
		ctx, span := tp.Tracer("test").Start(context.Background(), "slow")
		ctx = context.WithValue(ctx, queryStartTimeKey, time.Now().Add(-time.Second))

		tx := db.WithContext(ctx)
		tx.Statement.Table = "monthly_charges"
		tx.Statement.RowsAffected = 1
		plugin.afterQuery(tx)
		span.End()

		ended := recorder.Ended()
		got := attrsOf(ended[len(ended)-1])
		assert.Equal(t, true, got["db.slow_query"])
		assert.Equal(t, "monthly_charges", got["db.sql.table"])
		assert.Equal(t, int64(1), got["db.rows_affected"])
		require.Len(t, ended[len(ended)-1].Events(), 1)
		assert.Equal(t, "slow_query_warning", ended[len(ended)-1].Events()[0].Name)
	})

	t.Run("fast query is not flagged", func(t *testing.T) {
		ctx, span := tp.Tracer("test").Start(context.Background(), "fast")
		ctx = context.WithValue(ctx, queryStartTimeKey, time.Now())

		plugin.afterQuery(db.WithContext(ctx))
		span.End()

		ended := recorder.Ended()
		_, flagged := attrsOf(ended[len(ended)-1])["db.slow_query"]
		assert.False(t, flagged)
	})

	t.Run("errors mark the span except not found", func(t *testing.T) {
		ctx, span := tp.Tracer("test").Start(context.Background(), "error")
		tx := db.WithContext(ctx)
		tx.Error = errors.New("connection reset")
		plugin.afterQuery(tx)
		span.End()

		ended := recorder.Ended()
		assert.Equal(t, codes.Error, ended[len(ended)-1].Status().Code)

		ctx, span = tp.Tracer("test").Start(context.Background(), "not-found")
		tx = db.WithContext(ctx)
		tx.Error = gorm.ErrRecordNotFound
		plugin.afterQuery(tx)
		span.End()

		ended = recorder.Ended()
		assert.NotEqual(t, codes.Error, ended[len(ended)-1].Status().Code)
	})

	t.Run("nil context is ignored", func(t *testing.T) {
		tx := db.Session(&gorm.Session{})
		tx.Statement.Context = nil
		assert.NotPanics(t, func() { plugin.afterQuery(tx) })
	})
}

func TestDBTracingPlugin_EmitsSpans(t *testing.T) {
	tp, recorder := newRecordingProvider(t)
	previous := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(previous) })

	db := setupTracingDB(t)
	plugin := NewDBTracingPlugin(DBTracingConfig{Enabled: true, SlowQueryThresh: time.Second, DBSystem: "sqlite"}, zap.NewNop())
	require.NoError(t, plugin.Register(db))

	ctx, span := tp.Tracer("test").Start(context.Background(), "billing-run")
	tx := db.WithContext(ctx)
	require.NoError(t, tx.Create(&ledgerRow{Status: "PENDING"}).Error)

	var row ledgerRow
	require.NoError(t, tx.First(&row, "status = ?", "PENDING").Error)
	span.End()

	// the parent plus one span per statement
	assert.GreaterOrEqual(t, len(recorder.Ended()), 3)
}
