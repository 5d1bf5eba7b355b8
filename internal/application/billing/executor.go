package billing

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/schoolpay/backend/internal/domain/billing"
	"github.com/schoolpay/backend/internal/domain/shared"
	"github.com/schoolpay/backend/internal/infrastructure/telemetry"
)

// AttemptStatus is what one tuple contributed to a run
type AttemptStatus string

const (
	AttemptCharged AttemptStatus = "charged"
	AttemptFailed  AttemptStatus = "failed"
	AttemptSkipped AttemptStatus = "skipped"
)

// AttemptResult is the result of one payment attempt
type AttemptResult struct {
	Status         AttemptStatus
	TransactionRef string
	Reason         string
}

// PaymentAttemptExecutor charges one ledger entry and records the outcome on it.
type PaymentAttemptExecutor struct {
	charger billing.OffSessionCharger
	charges billing.MonthlyChargeRepository
	clock   shared.Clock
	logger  *zap.Logger
}

// NewPaymentAttemptExecutor creates a new PaymentAttemptExecutor
func NewPaymentAttemptExecutor(
	charger billing.OffSessionCharger,
	charges billing.MonthlyChargeRepository,
	clock shared.Clock,
	logger *zap.Logger,
) *PaymentAttemptExecutor {
	if clock == nil {
		clock = shared.NewSystemClock(nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PaymentAttemptExecutor{
		charger: charger,
		charges: charges,
		clock:   clock,
		logger:  logger,
	}
}

// Attempt charges a PENDING entry once and persists PAID or FAILED. An
// outcome the provider has not settled keeps the entry PENDING under the same
// idempotency key, so a later attempt cannot open a second payment.
// A PAID entry is skipped without a provider call. Attempt never returns
// an error: every failure is recorded on the entry and reported as
// AttemptFailed.
func (e *PaymentAttemptExecutor) Attempt(ctx context.Context, charge *billing.MonthlyCharge, candidate ChargeCandidate) AttemptResult {
	if charge.IsPaid() {
		return AttemptResult{Status: AttemptSkipped, TransactionRef: charge.ProviderTransactionRef}
	}
	if !charge.CanAttempt() {
		return AttemptResult{Status: AttemptSkipped, Reason: "charge is not pending"}
	}

	log := e.logger.With(
		zap.String("tenant_id", charge.TenantID.String()),
		zap.String("charge_id", charge.ID.String()),
		zap.String("student_id", charge.StudentID.String()),
		zap.String("class_id", charge.ClassID.String()),
		zap.String("billing_month", charge.Month.String()),
	)

	ctx, span := telemetry.StartServiceSpan(ctx, "payment_attempt", "charge",
		telemetry.WithAttribute(telemetry.SpanAttrTenantID, charge.TenantID.String()),
		telemetry.WithAttribute(telemetry.SpanAttrChargeID, charge.ID.String()))
	defer span.End()

	from := charge.Status
	outcome := e.callCharger(ctx, charge, candidate)
	telemetry.SetAttributes(span, telemetry.SpanAttrChargeKind, outcome.Kind.String())
	now := e.clock.Now()

	var transitionErr error
	switch {
	case outcome.IsSuccess():
		transitionErr = charge.MarkPaid(outcome.TransactionRef, now)
	case outcome.IsDefinitive():
		transitionErr = charge.MarkFailed(outcome.Reason, now)
	case outcome.Kind == billing.OutcomeUnconfirmed:
		transitionErr = charge.MarkUnconfirmed(outcome.TransactionRef, outcome.Reason, now)
	default:
		transitionErr = charge.MarkUnconfirmed("", fmt.Sprintf("unexpected charge outcome %s", outcome.Kind), now)
	}
	if transitionErr != nil {
		log.Error("Failed to apply charge outcome", zap.Error(transitionErr))
		return AttemptResult{Status: AttemptFailed, Reason: transitionErr.Error()}
	}

	if err := e.charges.SaveTransition(ctx, charge, from); err != nil {
		if errors.Is(err, shared.ErrConcurrencyConflict) {
			log.Warn("Charge was updated by another run, keeping stored state",
				zap.String("outcome", outcome.Kind.String()))
			return AttemptResult{Status: AttemptSkipped, Reason: err.Error()}
		}
		// The provider call went through but the ledger was not updated. The
		// row stays PENDING with the same idempotency key, and the next run,
		// including the retry sweep, replays the same provider request.
		log.Error("Failed to record charge outcome",
			zap.String("outcome", outcome.Kind.String()),
			zap.String("transaction_ref", outcome.TransactionRef),
			zap.Error(err))
		return AttemptResult{Status: AttemptFailed, Reason: err.Error()}
	}

	if outcome.IsSuccess() {
		log.Info("Monthly charge paid",
			zap.Int64("amount", charge.Amount),
			zap.String("transaction_ref", outcome.TransactionRef))
		return AttemptResult{Status: AttemptCharged, TransactionRef: outcome.TransactionRef}
	}

	if charge.Status == billing.ChargeStatusPending {
		log.Warn("Monthly charge not confirmed, keeping it open",
			zap.String("outcome", outcome.Kind.String()),
			zap.String("reason", charge.FailureNotes),
			zap.String("transaction_ref", charge.ProviderTransactionRef))
		return AttemptResult{Status: AttemptFailed, Reason: charge.FailureNotes}
	}

	log.Warn("Monthly charge failed",
		zap.String("outcome", outcome.Kind.String()),
		zap.String("reason", charge.FailureNotes),
		zap.Int("attempt", charge.AttemptCount))
	return AttemptResult{Status: AttemptFailed, Reason: charge.FailureNotes}
}

// callCharger turns collaborator errors and panics into an Unconfirmed
// outcome: the request may have reached the provider before it failed.
func (e *PaymentAttemptExecutor) callCharger(ctx context.Context, charge *billing.MonthlyCharge, candidate ChargeCandidate) (outcome billing.ChargeOutcome) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("Payment provider call panicked",
				zap.String("charge_id", charge.ID.String()),
				zap.Any("panic", r))
			outcome = billing.Unconfirmed("", billing.DefaultUnconfirmedNote)
		}
	}()

	outcome, err := e.charger.AttemptCharge(ctx, buildChargeRequest(charge, candidate))
	if err != nil {
		return billing.Unconfirmed("", err.Error())
	}
	return outcome
}

func buildChargeRequest(charge *billing.MonthlyCharge, candidate ChargeCandidate) billing.ChargeRequest {
	return billing.ChargeRequest{
		TenantID:           charge.TenantID,
		TenantAccountID:    candidate.TenantAccountID,
		GuardianID:         charge.GuardianID,
		GuardianCustomerID: candidate.Profile.StripeCustomerID,
		PaymentMethodID:    candidate.Profile.DefaultPaymentMethodID,
		IdempotencyKey:     charge.IdempotencyKey(),
		Amount:             charge.Amount,
		Currency:           charge.Currency,
		Description:        chargeDescription(candidate.Enrollment.ClassName, charge.Month),
		Metadata: map[string]string{
			"charge_id":     charge.ID.String(),
			"tenant_id":     charge.TenantID.String(),
			"student_id":    charge.StudentID.String(),
			"class_id":      charge.ClassID.String(),
			"billing_month": charge.Month.String(),
		},
		UnconfirmedTransactionRef: charge.UnconfirmedTransactionRef(),
	}
}

func chargeDescription(className string, month billing.BillingMonth) string {
	if className == "" {
		return fmt.Sprintf("Monthly fee %s", month)
	}
	return fmt.Sprintf("%s monthly fee %s", className, month)
}
