package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	billingapp "github.com/schoolpay/backend/internal/application/billing"
)

// BillingRunner runs one billing pass
type BillingRunner interface {
	RunMonthlyBilling(ctx context.Context) (*billingapp.RunSummary, error)
}

// BillingCronTriggerConfig holds configuration for the billing cron trigger
type BillingCronTriggerConfig struct {
	// Schedule is a standard five-field cron expression or descriptor
	Schedule   string
	JobTimeout time.Duration
	Location   *time.Location
}

// BillingCronTrigger runs the billing service on a cron schedule inside the
// server process. A tick that fires while the previous run is still going
// is skipped.
type BillingCronTrigger struct {
	config BillingCronTriggerConfig
	runner BillingRunner
	logger *zap.Logger

	mu        sync.Mutex
	cron      *cron.Cron
	isRunning bool
}

// NewBillingCronTrigger validates the schedule and creates a trigger
func NewBillingCronTrigger(config BillingCronTriggerConfig, runner BillingRunner, logger *zap.Logger) (*BillingCronTrigger, error) {
	if _, err := cron.ParseStandard(config.Schedule); err != nil {
		return nil, fmt.Errorf("%w: cron schedule %q: %v", ErrInvalidConfig, config.Schedule, err)
	}
	if config.JobTimeout <= 0 {
		return nil, fmt.Errorf("%w: job timeout must be positive", ErrInvalidConfig)
	}
	if config.Location == nil {
		config.Location = time.UTC
	}
	return &BillingCronTrigger{
		config: config,
		runner: runner,
		logger: logger,
	}, nil
}

// Start schedules the billing job. Calling Start on a running trigger is a no-op.
func (t *BillingCronTrigger) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.isRunning {
		return nil
	}

	cronLogger := zapCronLogger{logger: t.logger}
	c := cron.New(
		cron.WithLocation(t.config.Location),
		cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
	)
	if _, err := c.AddFunc(t.config.Schedule, func() {
		_, _ = t.RunNow(ctx)
	}); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	c.Start()

	t.cron = c
	t.isRunning = true

	t.logger.Info("Billing cron trigger started",
		zap.String("schedule", t.config.Schedule),
		zap.String("location", t.config.Location.String()),
		zap.Duration("job_timeout", t.config.JobTimeout),
	)
	return nil
}

// Stop stops scheduling and waits for a run in progress, up to ctx
func (t *BillingCronTrigger) Stop(ctx context.Context) error {
	t.mu.Lock()
	if !t.isRunning {
		t.mu.Unlock()
		return ErrSchedulerNotRunning
	}
	t.isRunning = false
	c := t.cron
	t.cron = nil
	t.mu.Unlock()

	done := c.Stop()
	select {
	case <-done.Done():
		t.logger.Info("Billing cron trigger stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsRunning returns whether the trigger is scheduled
func (t *BillingCronTrigger) IsRunning() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.isRunning
}

// RunNow runs one billing pass bounded by the job timeout
func (t *BillingCronTrigger) RunNow(ctx context.Context) (*billingapp.RunSummary, error) {
	runCtx, cancel := context.WithTimeout(ctx, t.config.JobTimeout)
	defer cancel()

	start := time.Now()
	summary, err := t.runner.RunMonthlyBilling(runCtx)
	if err != nil {
		if errors.Is(err, billingapp.ErrRunInProgress) {
			t.logger.Info("Scheduled billing run skipped, another run is in progress")
		} else {
			t.logger.Error("Scheduled billing run failed", zap.Error(err))
		}
		return nil, err
	}

	t.logger.Info("Scheduled billing run completed",
		zap.String("month", summary.Month),
		zap.Int("processed", summary.Processed),
		zap.Int("charged", summary.Charged),
		zap.Int("failed", summary.Failed),
		zap.Int("skipped", summary.Skipped),
		zap.Duration("duration", time.Since(start)),
	)
	return summary, nil
}

// zapCronLogger adapts zap to cron.Logger
type zapCronLogger struct {
	logger *zap.Logger
}

func (l zapCronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, zap.Any("details", keysAndValues))
}

func (l zapCronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, zap.Error(err), zap.Any("details", keysAndValues))
}
