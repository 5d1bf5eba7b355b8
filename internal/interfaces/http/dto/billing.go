package dto

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/schoolpay/backend/internal/domain/billing"
)

// minorUnitExponent is the exponent of the currencies billed (pence, cents)
const minorUnitExponent = 2

// ChargeLedgerQuery is the query string of the ledger read endpoint
type ChargeLedgerQuery struct {
	TenantID string `form:"tenant_id" binding:"required,uuid"`
	Month    string `form:"month" binding:"required,billing_month"`
	Status   string `form:"status" binding:"omitempty,oneof=PENDING PAID FAILED"`
}

// ChargeResponse is one ledger entry as rendered by the API
type ChargeResponse struct {
	ID                     uuid.UUID       `json:"id"`
	TenantID               uuid.UUID       `json:"tenant_id"`
	StudentID              uuid.UUID       `json:"student_id"`
	ClassID                uuid.UUID       `json:"class_id"`
	GuardianID             uuid.UUID       `json:"guardian_id"`
	BillingMonth           string          `json:"billing_month"`
	Amount                 decimal.Decimal `json:"amount"`
	AmountMinor            int64           `json:"amount_minor"`
	Currency               string          `json:"currency"`
	Status                 string          `json:"status"`
	PaidAt                 *time.Time      `json:"paid_at,omitempty"`
	ProviderTransactionRef string          `json:"provider_transaction_ref,omitempty"`
	FailureNotes           string          `json:"failure_notes,omitempty"`
	AttemptCount           int             `json:"attempt_count"`
	LastAttemptAt          *time.Time      `json:"last_attempt_at,omitempty"`
	CreatedAt              time.Time       `json:"created_at"`
	UpdatedAt              time.Time       `json:"updated_at"`
}

// ChargeLedgerTotals sums a ledger page by status
type ChargeLedgerTotals struct {
	Paid    decimal.Decimal `json:"paid"`
	Pending decimal.Decimal `json:"pending"`
	Failed  decimal.Decimal `json:"failed"`
}

// ChargeLedgerResponse is the payload of the ledger read endpoint
type ChargeLedgerResponse struct {
	TenantID uuid.UUID          `json:"tenant_id"`
	Month    string             `json:"month"`
	Charges  []ChargeResponse   `json:"charges"`
	Totals   ChargeLedgerTotals `json:"totals"`
}

// MinorToDecimal renders an amount in minor units as a major-unit decimal
func MinorToDecimal(amount int64) decimal.Decimal {
	return decimal.New(amount, -minorUnitExponent)
}

// NewChargeResponse converts a ledger entry
func NewChargeResponse(c billing.MonthlyCharge) ChargeResponse {
	return ChargeResponse{
		ID:                     c.ID,
		TenantID:               c.TenantID,
		StudentID:              c.StudentID,
		ClassID:                c.ClassID,
		GuardianID:             c.GuardianID,
		BillingMonth:           c.Month.String(),
		Amount:                 MinorToDecimal(c.Amount),
		AmountMinor:            c.Amount,
		Currency:               c.Currency,
		Status:                 string(c.Status),
		PaidAt:                 c.PaidAt,
		ProviderTransactionRef: c.ProviderTransactionRef,
		FailureNotes:           c.FailureNotes,
		AttemptCount:           c.AttemptCount,
		LastAttemptAt:          c.LastAttemptAt,
		CreatedAt:              c.CreatedAt,
		UpdatedAt:              c.UpdatedAt,
	}
}

// NewChargeLedgerResponse converts a list of ledger entries and totals them by status
func NewChargeLedgerResponse(tenantID uuid.UUID, month billing.BillingMonth, charges []billing.MonthlyCharge) ChargeLedgerResponse {
	resp := ChargeLedgerResponse{
		TenantID: tenantID,
		Month:    month.String(),
		Charges:  make([]ChargeResponse, 0, len(charges)),
		Totals: ChargeLedgerTotals{
			Paid:    decimal.Zero,
			Pending: decimal.Zero,
			Failed:  decimal.Zero,
		},
	}
	for _, c := range charges {
		resp.Charges = append(resp.Charges, NewChargeResponse(c))
		amount := MinorToDecimal(c.Amount)
		switch c.Status {
		case billing.ChargeStatusPaid:
			resp.Totals.Paid = resp.Totals.Paid.Add(amount)
		case billing.ChargeStatusPending:
			resp.Totals.Pending = resp.Totals.Pending.Add(amount)
		case billing.ChargeStatusFailed:
			resp.Totals.Failed = resp.Totals.Failed.Add(amount)
		}
	}
	return resp
}
