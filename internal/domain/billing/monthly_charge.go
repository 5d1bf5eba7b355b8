package billing

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/schoolpay/backend/internal/domain/shared"
)

// ChargeStatus is the lifecycle status of a monthly charge
type ChargeStatus string

const (
	ChargeStatusPending ChargeStatus = "PENDING"
	ChargeStatusPaid    ChargeStatus = "PAID"
	ChargeStatusFailed  ChargeStatus = "FAILED"
)

// IsValid returns true if the status is a known value
func (s ChargeStatus) IsValid() bool {
	switch s {
	case ChargeStatusPending, ChargeStatusPaid, ChargeStatusFailed:
		return true
	}
	return false
}

// IsTerminal returns true if no transition leaves this status
func (s ChargeStatus) IsTerminal() bool {
	return s == ChargeStatusPaid
}

// DefaultFailureNote is recorded when a failed attempt carries no message
const DefaultFailureNote = "Payment failed"

// DefaultUnconfirmedNote is recorded when an unconfirmed attempt carries no message
const DefaultUnconfirmedNote = "Payment outcome not confirmed"

const idempotencyKeyPrefix = "monthly-charge"

// Domain errors for monthly charges
var (
	ErrChargeAlreadyPaid       = shared.NewDomainError("CHARGE_ALREADY_PAID", "Monthly charge is already paid")
	ErrInvalidChargeAmount     = shared.NewDomainError("INVALID_CHARGE_AMOUNT", "Monthly charge amount must be positive")
	ErrInvalidChargeTransition = shared.NewDomainError("INVALID_CHARGE_TRANSITION", "Monthly charge is not pending")
	ErrInvalidChargeKey        = shared.NewDomainError("INVALID_CHARGE_KEY", "Monthly charge requires tenant, student, class and month")
)

// ChargeKey is the natural key of a monthly charge. At most one charge exists per key.
type ChargeKey struct {
	StudentID uuid.UUID
	ClassID   uuid.UUID
	Month     BillingMonth
}

// String returns the key as "student:class:YYYY-MM"
func (k ChargeKey) String() string {
	return fmt.Sprintf("%s:%s:%s", k.StudentID, k.ClassID, k.Month)
}

// MonthlyCharge is the ledger entry for one (student, class, month).
// Amount is fixed when the entry is first created.
type MonthlyCharge struct {
	shared.BaseEntity
	TenantID   uuid.UUID
	StudentID  uuid.UUID
	ClassID    uuid.UUID
	GuardianID uuid.UUID
	Month      BillingMonth
	Amount     int64 // minor currency units
	Currency   string
	Status     ChargeStatus

	PaidAt                 *time.Time
	ProviderTransactionRef string
	FailureNotes           string
	AttemptCount           int
	LastAttemptAt          *time.Time
}

// NewMonthlyChargeInput holds the data needed to open a ledger entry
type NewMonthlyChargeInput struct {
	TenantID   uuid.UUID
	StudentID  uuid.UUID
	ClassID    uuid.UUID
	GuardianID uuid.UUID
	Month      BillingMonth
	Amount     int64
	Currency   string
}

// NewMonthlyCharge creates a PENDING charge stamped at now
func NewMonthlyCharge(in NewMonthlyChargeInput, now time.Time) (*MonthlyCharge, error) {
	if in.TenantID == uuid.Nil || in.StudentID == uuid.Nil || in.ClassID == uuid.Nil || in.Month.IsZero() {
		return nil, ErrInvalidChargeKey
	}
	if in.Amount <= 0 {
		return nil, ErrInvalidChargeAmount
	}

	return &MonthlyCharge{
		BaseEntity: shared.NewBaseEntityAt(now),
		TenantID:   in.TenantID,
		StudentID:  in.StudentID,
		ClassID:    in.ClassID,
		GuardianID: in.GuardianID,
		Month:      in.Month,
		Amount:     in.Amount,
		Currency:   strings.ToLower(in.Currency),
		Status:     ChargeStatusPending,
	}, nil
}

// Key returns the natural key of the charge
func (c *MonthlyCharge) Key() ChargeKey {
	return ChargeKey{StudentID: c.StudentID, ClassID: c.ClassID, Month: c.Month}
}

// IsPaid returns true if the charge has been collected
func (c *MonthlyCharge) IsPaid() bool {
	return c.Status == ChargeStatusPaid
}

// CanAttempt returns true if a provider call may be made for this charge
func (c *MonthlyCharge) CanAttempt() bool {
	return c.Status == ChargeStatusPending
}

// ResetForRetry moves a FAILED charge back to PENDING. A PENDING charge is
// left as is. A PAID charge is never reopened.
func (c *MonthlyCharge) ResetForRetry(now time.Time) error {
	switch c.Status {
	case ChargeStatusPaid:
		return ErrChargeAlreadyPaid
	case ChargeStatusPending:
		return nil
	}
	c.Status = ChargeStatusPending
	c.Touch(now)
	return nil
}

// MarkPaid records a successful charge
func (c *MonthlyCharge) MarkPaid(transactionRef string, at time.Time) error {
	if c.IsPaid() {
		return ErrChargeAlreadyPaid
	}
	if !c.CanAttempt() {
		return ErrInvalidChargeTransition
	}
	c.Status = ChargeStatusPaid
	c.PaidAt = &at
	c.ProviderTransactionRef = transactionRef
	c.FailureNotes = ""
	c.recordAttempt(at)
	return nil
}

// MarkFailed records a declined or errored charge. An empty reason is
// replaced with DefaultFailureNote so the note is never blank. Any reference
// to an unconfirmed provider payment is dropped so the retry charges afresh.
func (c *MonthlyCharge) MarkFailed(reason string, at time.Time) error {
	if c.IsPaid() {
		return ErrChargeAlreadyPaid
	}
	if !c.CanAttempt() {
		return ErrInvalidChargeTransition
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = DefaultFailureNote
	}
	c.Status = ChargeStatusFailed
	c.FailureNotes = reason
	c.ProviderTransactionRef = ""
	c.recordAttempt(at)
	return nil
}

// MarkUnconfirmed records an attempt whose outcome the provider has not
// settled. The charge stays PENDING and AttemptCount is unchanged, so the
// next attempt reuses the same idempotency key. A non-empty transactionRef
// is kept so the next attempt can look the payment up.
func (c *MonthlyCharge) MarkUnconfirmed(transactionRef, reason string, at time.Time) error {
	if c.IsPaid() {
		return ErrChargeAlreadyPaid
	}
	if !c.CanAttempt() {
		return ErrInvalidChargeTransition
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = DefaultUnconfirmedNote
	}
	if transactionRef != "" {
		c.ProviderTransactionRef = transactionRef
	}
	c.FailureNotes = reason
	c.LastAttemptAt = &at
	c.Touch(at)
	return nil
}

// UnconfirmedTransactionRef returns the provider payment an earlier attempt
// left unconfirmed, or "" when there is none
func (c *MonthlyCharge) UnconfirmedTransactionRef() string {
	if c.Status != ChargeStatusPending {
		return ""
	}
	return c.ProviderTransactionRef
}

func (c *MonthlyCharge) recordAttempt(at time.Time) {
	c.AttemptCount++
	c.LastAttemptAt = &at
	c.Touch(at)
}

// IdempotencyKey returns the provider idempotency key for the next attempt.
//
// The first attempt uses monthly-charge:{student}:{class}:{YYYY-MM}. Only a
// recorded PAID or FAILED outcome bumps AttemptCount, so a retry after a
// definitive failure gets a new key. An unconfirmed attempt or a crash
// mid-attempt reuses the same key and the provider deduplicates the call.
func (c *MonthlyCharge) IdempotencyKey() string {
	base := fmt.Sprintf("%s:%s", idempotencyKeyPrefix, c.Key())
	if c.AttemptCount == 0 {
		return base
	}
	return fmt.Sprintf("%s:%d", base, c.AttemptCount+1)
}
