package billing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/schoolpay/backend/internal/domain/billing"
	"github.com/schoolpay/backend/internal/domain/school"
	"github.com/schoolpay/backend/internal/domain/shared"
	"github.com/schoolpay/backend/internal/infrastructure/logger"
	"github.com/schoolpay/backend/internal/infrastructure/telemetry"
)

// ErrRunInProgress is returned when another billing run holds the run guard
var ErrRunInProgress = shared.NewDomainError("BILLING_RUN_IN_PROGRESS", "A billing run for today is already in progress")

// RunSummary is the externally visible result of a billing run.
// Processed counts tenants whose billing day was today plus tenants whose
// unpaid charges of the month were retried.
type RunSummary struct {
	Processed int    `json:"processed"`
	Charged   int    `json:"charged"`
	Failed    int    `json:"failed"`
	Skipped   int    `json:"skipped"`
	Month     string `json:"month"`
}

func (s *RunSummary) add(status AttemptStatus) {
	switch status {
	case AttemptCharged:
		s.Charged++
	case AttemptFailed:
		s.Failed++
	case AttemptSkipped:
		s.Skipped++
	}
}

func (s *RunSummary) merge(other RunSummary) {
	s.Processed += other.Processed
	s.Charged += other.Charged
	s.Failed += other.Failed
	s.Skipped += other.Skipped
}

// RunGuard prevents two runs for the same billing date from overlapping.
// It only saves duplicate work; the ledger's unique key stays the source
// of truth.
type RunGuard interface {
	TryAcquire(ctx context.Context, runDate string) (bool, error)
	Release(ctx context.Context, runDate string) error
}

// RunRecorder receives billing metrics
type RunRecorder interface {
	RecordAttempt(ctx context.Context, tenantID uuid.UUID, status string)
	RecordRun(ctx context.Context, processed, charged, failed, skipped int, duration time.Duration)
}

type noopRecorder struct{}

func (noopRecorder) RecordAttempt(context.Context, uuid.UUID, string) {}

func (noopRecorder) RecordRun(context.Context, int, int, int, int, time.Duration) {}

// MonthlyBillingConfig contains configuration for MonthlyBillingService
type MonthlyBillingConfig struct {
	// Currency is the ISO currency code charged for class fees
	Currency string

	// MaxConcurrentTenants bounds how many tenants are billed in parallel.
	// Tuples within a tenant are always processed one at a time.
	MaxConcurrentTenants int

	// RetryFailedCharges retries the unpaid charges of the current month on
	// every daily run after the tenant's billing day: FAILED entries, and
	// PENDING entries left by an unconfirmed or unrecorded attempt. No new
	// charges are opened on those days.
	RetryFailedCharges bool
}

// DefaultMonthlyBillingConfig returns default configuration
func DefaultMonthlyBillingConfig() MonthlyBillingConfig {
	return MonthlyBillingConfig{
		Currency:             "gbp",
		MaxConcurrentTenants: 1,
		RetryFailedCharges:   true,
	}
}

// MonthlyBillingService runs the daily recurring billing job
type MonthlyBillingService struct {
	organizations school.OrganizationReader
	selector      *EligibilitySelector
	charges       billing.MonthlyChargeRepository
	executor      *PaymentAttemptExecutor
	clock         shared.Clock
	logger        *zap.Logger
	config        MonthlyBillingConfig

	guard    RunGuard
	recorder RunRecorder
}

// MonthlyBillingOption configures optional collaborators
type MonthlyBillingOption func(*MonthlyBillingService)

// WithRunGuard sets the guard used to reject overlapping runs
func WithRunGuard(guard RunGuard) MonthlyBillingOption {
	return func(s *MonthlyBillingService) {
		s.guard = guard
	}
}

// WithRunRecorder sets the metrics recorder
func WithRunRecorder(recorder RunRecorder) MonthlyBillingOption {
	return func(s *MonthlyBillingService) {
		if recorder != nil {
			s.recorder = recorder
		}
	}
}

// NewMonthlyBillingService creates a new MonthlyBillingService
func NewMonthlyBillingService(
	organizations school.OrganizationReader,
	selector *EligibilitySelector,
	charges billing.MonthlyChargeRepository,
	executor *PaymentAttemptExecutor,
	clock shared.Clock,
	logger *zap.Logger,
	config MonthlyBillingConfig,
	opts ...MonthlyBillingOption,
) *MonthlyBillingService {
	defaults := DefaultMonthlyBillingConfig()
	if config.Currency == "" {
		config.Currency = defaults.Currency
	}
	if config.MaxConcurrentTenants <= 0 {
		config.MaxConcurrentTenants = defaults.MaxConcurrentTenants
	}
	if clock == nil {
		clock = shared.NewSystemClock(nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &MonthlyBillingService{
		organizations: organizations,
		selector:      selector,
		charges:       charges,
		executor:      executor,
		clock:         clock,
		logger:        logger,
		config:        config,
		recorder:      noopRecorder{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RunMonthlyBilling bills every tenant whose billing day is today.
//
// The only error returned is a failure to start the run: the tenant list
// could not be read, or another run holds the run guard (ErrRunInProgress).
// Failures while billing a tenant or a single tuple are logged and counted
// in the summary.
func (s *MonthlyBillingService) RunMonthlyBilling(ctx context.Context) (*RunSummary, error) {
	now := s.clock.Now()
	month := billing.BillingMonthOf(now)
	runDate := now.Format("2006-01-02")

	ctx, span := telemetry.StartServiceSpan(ctx, "monthly_billing", "run",
		telemetry.WithAttribute(telemetry.SpanAttrMonth, month.String()),
		telemetry.WithAttribute(telemetry.SpanAttrRunDate, runDate))
	defer span.End()
	ctx = logger.WithRunDate(ctx, runDate)

	if s.guard != nil {
		acquired, err := s.guard.TryAcquire(ctx, runDate)
		switch {
		case err != nil:
			s.logger.Warn("Run guard unavailable, continuing without it",
				zap.String("run_date", runDate), zap.Error(err))
		case !acquired:
			s.logger.Info("Billing run already in progress", zap.String("run_date", runDate))
			return nil, ErrRunInProgress
		default:
			defer func() {
				if err := s.guard.Release(context.WithoutCancel(ctx), runDate); err != nil {
					s.logger.Warn("Failed to release run guard", zap.String("run_date", runDate), zap.Error(err))
				}
			}()
		}
	}

	organizations, err := s.organizations.FindBillingCandidates(ctx)
	if err != nil {
		s.logger.Error("Failed to list billing tenants", zap.Error(err))
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to list billing tenants: %w", err)
	}

	runs := make([]tenantRun, 0, len(organizations))
	retries := 0
	for _, org := range organizations {
		cal := org.BillingCalendar()
		switch {
		case billing.IsBillingDayToday(cal, now):
			runs = append(runs, tenantRun{org: org})
		case s.config.RetryFailedCharges && billing.HasBillingDayPassed(cal, now):
			runs = append(runs, tenantRun{org: org, retryOnly: true})
			retries++
		}
	}

	s.logger.Info("Starting monthly billing run",
		zap.String("billing_month", month.String()),
		zap.String("run_date", runDate),
		zap.Int("candidates", len(organizations)),
		zap.Int("due_today", len(runs)-retries),
		zap.Int("retry_sweep", retries))

	summary := &RunSummary{Month: month.String()}
	var mu sync.Mutex

	var g errgroup.Group
	g.SetLimit(s.config.MaxConcurrentTenants)
	for _, run := range runs {
		g.Go(func() error {
			telemetry.WithProfilingLabels(ctx, run.profilingLabels(), func(ctx context.Context) {
				result := s.processTenant(ctx, run, month, now)
				mu.Lock()
				summary.merge(result)
				mu.Unlock()
			})
			return nil
		})
	}
	_ = g.Wait()

	duration := s.clock.Now().Sub(now)
	s.recorder.RecordRun(ctx, summary.Processed, summary.Charged, summary.Failed, summary.Skipped, duration)
	telemetry.SetAttributes(span,
		telemetry.SpanAttrProcessed, summary.Processed,
		telemetry.SpanAttrCharged, summary.Charged,
		telemetry.SpanAttrFailed, summary.Failed,
		telemetry.SpanAttrSkipped, summary.Skipped)
	telemetry.SetOK(span)

	s.logger.Info("Monthly billing run completed",
		zap.String("billing_month", summary.Month),
		zap.Int("processed", summary.Processed),
		zap.Int("charged", summary.Charged),
		zap.Int("failed", summary.Failed),
		zap.Int("skipped", summary.Skipped))

	return summary, nil
}

type tenantRun struct {
	org school.Organization
	// retryOnly restricts the run to the tenant's unpaid charges of the month
	retryOnly bool
}

func (r tenantRun) profilingLabels() map[string]string {
	mode := "due"
	if r.retryOnly {
		mode = "retry"
	}
	return map[string]string{"operation": "bill_tenant", "mode": mode}
}

// processTenant bills one tenant. A panic or read failure counts as one failure.
func (s *MonthlyBillingService) processTenant(ctx context.Context, run tenantRun, month billing.BillingMonth, now time.Time) (result RunSummary) {
	tenant := run.org
	log := s.logger.With(zap.String("tenant_id", tenant.ID.String()), zap.Bool("retry_only", run.retryOnly))

	defer func() {
		if r := recover(); r != nil {
			log.Error("Recovered panic while billing tenant", zap.Any("panic", r), zap.Stack("stack"))
			result.Failed++
		}
	}()

	ctx, span := telemetry.StartServiceSpan(ctx, "monthly_billing", "tenant",
		telemetry.WithAttribute(telemetry.SpanAttrTenantID, tenant.ID.String()),
		telemetry.WithAttribute(telemetry.SpanAttrRetryOnly, run.retryOnly))
	defer span.End()
	ctx = logger.WithTenantID(ctx, tenant.ID.String())
	log = logger.Enrich(ctx, s.logger).With(zap.Bool("retry_only", run.retryOnly))

	var retryable map[billing.ChargeKey]struct{}
	if run.retryOnly {
		var err error
		retryable, err = s.unpaidCharges(ctx, tenant.ID, month)
		if err != nil {
			log.Error("Failed to list unpaid charges", zap.Error(err))
			telemetry.RecordError(span, err)
			result.Processed++
			result.Failed++
			return result
		}
		if len(retryable) == 0 {
			return result
		}
	}
	result.Processed++

	candidates, err := s.selector.SelectEligible(ctx, &tenant)
	if err != nil {
		log.Error("Failed to select charge candidates", zap.Error(err))
		telemetry.RecordError(span, err)
		result.Failed++
		return result
	}

	attempted := 0
	for _, candidate := range candidates {
		if retryable != nil {
			key := billing.ChargeKey{StudentID: candidate.Enrollment.StudentID, ClassID: candidate.Enrollment.ClassID, Month: month}
			if _, ok := retryable[key]; !ok {
				continue
			}
		}
		attempted++
		status := s.processCandidate(ctx, candidate, month, now)
		s.recorder.RecordAttempt(ctx, tenant.ID, string(status))
		result.add(status)
	}

	log.Info("Tenant billed",
		zap.Int("candidates", attempted),
		zap.Int("charged", result.Charged),
		zap.Int("failed", result.Failed),
		zap.Int("skipped", result.Skipped))
	return result
}

// unpaidCharges returns the keys of a tenant's FAILED and PENDING charges of
// month. A PENDING entry here was left by an attempt whose outcome is not
// recorded; its idempotency key is unchanged, so replaying it is safe.
func (s *MonthlyBillingService) unpaidCharges(ctx context.Context, tenantID uuid.UUID, month billing.BillingMonth) (map[billing.ChargeKey]struct{}, error) {
	charges, err := s.charges.Find(ctx, billing.ChargeFilter{TenantID: tenantID, Month: month})
	if err != nil {
		return nil, err
	}
	keys := make(map[billing.ChargeKey]struct{}, len(charges))
	for i := range charges {
		if charges[i].IsPaid() {
			continue
		}
		keys[charges[i].Key()] = struct{}{}
	}
	return keys, nil
}

// processCandidate finds or opens the ledger entry of one tuple and charges it.
func (s *MonthlyBillingService) processCandidate(ctx context.Context, candidate ChargeCandidate, month billing.BillingMonth, now time.Time) (status AttemptStatus) {
	enrollment := candidate.Enrollment
	log := s.logger.With(
		zap.String("tenant_id", candidate.TenantID.String()),
		zap.String("student_id", enrollment.StudentID.String()),
		zap.String("class_id", enrollment.ClassID.String()),
	)

	defer func() {
		if r := recover(); r != nil {
			log.Error("Recovered panic while billing enrollment", zap.Any("panic", r), zap.Stack("stack"))
			status = AttemptFailed
		}
	}()

	fresh, err := billing.NewMonthlyCharge(billing.NewMonthlyChargeInput{
		TenantID:   candidate.TenantID,
		StudentID:  enrollment.StudentID,
		ClassID:    enrollment.ClassID,
		GuardianID: candidate.GuardianID(),
		Month:      month,
		Amount:     enrollment.MonthlyFee,
		Currency:   s.config.Currency,
	}, now)
	if err != nil {
		log.Error("Invalid charge candidate", zap.Error(err))
		return AttemptFailed
	}

	charge, created, err := s.charges.GetOrCreate(ctx, fresh)
	if err != nil {
		log.Error("Failed to get or create monthly charge", zap.Error(err))
		return AttemptFailed
	}
	if !created && charge.Amount != enrollment.MonthlyFee {
		log.Debug("Keeping stored charge amount",
			zap.Int64("stored_amount", charge.Amount),
			zap.Int64("current_fee", enrollment.MonthlyFee))
	}

	if charge.IsPaid() {
		return AttemptSkipped
	}

	if charge.Status == billing.ChargeStatusFailed {
		if err := charge.ResetForRetry(now); err != nil {
			log.Error("Failed to reset charge for retry", zap.Error(err))
			return AttemptFailed
		}
		if err := s.charges.SaveTransition(ctx, charge, billing.ChargeStatusFailed); err != nil {
			if errors.Is(err, shared.ErrConcurrencyConflict) {
				log.Info("Charge retried by another run", zap.String("charge_id", charge.ID.String()))
				return AttemptSkipped
			}
			log.Error("Failed to reset charge for retry", zap.Error(err))
			return AttemptFailed
		}
		log.Info("Retrying failed monthly charge",
			zap.String("charge_id", charge.ID.String()),
			zap.Int("previous_attempts", charge.AttemptCount))
	}

	return s.executor.Attempt(ctx, charge, candidate).Status
}
