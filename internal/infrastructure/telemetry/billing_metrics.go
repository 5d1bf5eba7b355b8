package telemetry

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// BillingMeterName is the instrumentation scope of the billing metrics.
const BillingMeterName = "schoolpay-backend/billing"

// BillingMetrics records per-attempt and per-run counters of the monthly billing run.
type BillingMetrics struct {
	attempts    *Counter
	runs        *Counter
	runTenants  *Counter
	runDuration *Histogram
}

// NewBillingMetrics registers the billing instruments on meter.
func NewBillingMetrics(meter metric.Meter) (*BillingMetrics, error) {
	attempts, err := NewCounter(meter, "billing_charge_attempts_total",
		"Monthly charge tuples visited by a billing run, by outcome", "{attempt}")
	if err != nil {
		return nil, err
	}
	runs, err := NewCounter(meter, "billing_runs_total",
		"Completed monthly billing runs", "{run}")
	if err != nil {
		return nil, err
	}
	runTenants, err := NewCounter(meter, "billing_run_tenants_total",
		"Tenants processed by billing runs", "{tenant}")
	if err != nil {
		return nil, err
	}
	runDuration, err := NewHistogram(meter, HistogramOpts{
		Name:        "billing_run_duration_seconds",
		Description: "Wall time of a monthly billing run",
		Unit:        "s",
		Boundaries:  RunDurationBuckets,
	})
	if err != nil {
		return nil, err
	}

	return &BillingMetrics{
		attempts:    attempts,
		runs:        runs,
		runTenants:  runTenants,
		runDuration: runDuration,
	}, nil
}

// RecordAttempt counts one visited tuple. status is charged, failed or skipped.
func (m *BillingMetrics) RecordAttempt(ctx context.Context, tenantID uuid.UUID, status string) {
	m.attempts.Inc(ctx,
		AttrTenantID.String(tenantID.String()),
		AttrChargeStatus.String(status))
}

// RecordRun counts a finished run and its duration.
func (m *BillingMetrics) RecordRun(ctx context.Context, processed, charged, failed, skipped int, duration time.Duration) {
	m.runs.Inc(ctx, AttrRunOutcome.String(runOutcome(charged, failed)))
	m.runTenants.Add(ctx, int64(processed))
	m.runDuration.RecordDuration(ctx, duration,
		attribute.Bool("had_failures", failed > 0),
		attribute.Bool("had_skips", skipped > 0))
}

func runOutcome(charged, failed int) string {
	switch {
	case failed == 0 && charged == 0:
		return "idle"
	case failed == 0:
		return "clean"
	case charged == 0:
		return "failed"
	default:
		return "partial"
	}
}
