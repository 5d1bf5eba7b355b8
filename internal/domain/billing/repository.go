package billing

import (
	"context"

	"github.com/google/uuid"
)

// ChargeFilter selects monthly charges for reporting
type ChargeFilter struct {
	TenantID uuid.UUID
	Month    BillingMonth
	Status   ChargeStatus // empty matches every status
}

// MonthlyChargeRepository persists the monthly charge ledger
type MonthlyChargeRepository interface {
	// GetOrCreate inserts candidate unless a charge with the same key exists,
	// and returns the stored charge. created is false when an existing charge
	// was returned, in which case its stored amount is kept.
	GetOrCreate(ctx context.Context, candidate *MonthlyCharge) (charge *MonthlyCharge, created bool, err error)

	// SaveTransition persists charge only if the stored row is still in status
	// from. Returns shared.ErrConcurrencyConflict otherwise.
	SaveTransition(ctx context.Context, charge *MonthlyCharge, from ChargeStatus) error

	// FindByKey returns shared.ErrNotFound when no charge exists for the key
	FindByKey(ctx context.Context, key ChargeKey) (*MonthlyCharge, error)

	// Find returns the charges matching filter ordered by creation time
	Find(ctx context.Context, filter ChargeFilter) ([]MonthlyCharge, error)
}
