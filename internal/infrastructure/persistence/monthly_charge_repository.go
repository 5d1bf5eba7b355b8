package persistence

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/schoolpay/backend/internal/domain/billing"
	"github.com/schoolpay/backend/internal/domain/shared"
	"github.com/schoolpay/backend/internal/infrastructure/persistence/models"
)

var monthlyChargeKeyColumns = []clause.Column{
	{Name: "student_id"},
	{Name: "class_id"},
	{Name: "billing_month"},
}

// GormMonthlyChargeRepository implements billing.MonthlyChargeRepository using GORM.
// The unique index on (student_id, class_id, billing_month) is the only
// coordination between overlapping billing runs.
type GormMonthlyChargeRepository struct {
	db *gorm.DB
}

// NewGormMonthlyChargeRepository creates a new GormMonthlyChargeRepository
func NewGormMonthlyChargeRepository(db *gorm.DB) *GormMonthlyChargeRepository {
	return &GormMonthlyChargeRepository{db: db}
}

// GetOrCreate inserts candidate with ON CONFLICT DO NOTHING and reads the
// stored row back when the insert did not happen.
func (r *GormMonthlyChargeRepository) GetOrCreate(ctx context.Context, candidate *billing.MonthlyCharge) (*billing.MonthlyCharge, bool, error) {
	model := models.MonthlyChargeModelFromDomain(candidate)

	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: monthlyChargeKeyColumns, DoNothing: true}).
		Create(model)
	if result.Error != nil && !isUniqueViolation(result.Error) {
		return nil, false, fmt.Errorf("failed to insert monthly charge %s: %w", candidate.Key(), result.Error)
	}
	if result.Error == nil && result.RowsAffected == 1 {
		created := *candidate
		return &created, true, nil
	}

	existing, err := r.FindByKey(ctx, candidate.Key())
	if err != nil {
		return nil, false, fmt.Errorf("failed to read back monthly charge %s: %w", candidate.Key(), err)
	}
	return existing, false, nil
}

// SaveTransition writes the mutable fields of charge guarded by the
// previous status. A PAID row never matches because from is never PAID.
func (r *GormMonthlyChargeRepository) SaveTransition(ctx context.Context, charge *billing.MonthlyCharge, from billing.ChargeStatus) error {
	if from == billing.ChargeStatusPaid {
		return billing.ErrChargeAlreadyPaid
	}

	model := models.MonthlyChargeModelFromDomain(charge)
	result := r.db.WithContext(ctx).
		Model(&models.MonthlyChargeModel{}).
		Where("id = ? AND status = ?", charge.ID, string(from)).
		Updates(map[string]any{
			"status":                   model.Status,
			"paid_at":                  model.PaidAt,
			"provider_transaction_ref": model.ProviderTransactionRef,
			"failure_notes":            model.FailureNotes,
			"attempt_count":            model.AttemptCount,
			"last_attempt_at":          model.LastAttemptAt,
			"updated_at":               model.UpdatedAt,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update monthly charge %s: %w", charge.ID, result.Error)
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}

// FindByKey finds the charge of a (student, class, month)
func (r *GormMonthlyChargeRepository) FindByKey(ctx context.Context, key billing.ChargeKey) (*billing.MonthlyCharge, error) {
	var model models.MonthlyChargeModel
	err := r.db.WithContext(ctx).
		Where("student_id = ? AND class_id = ? AND billing_month = ?", key.StudentID, key.ClassID, key.Month.String()).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain()
}

// Find returns the charges of a tenant and month, oldest first
func (r *GormMonthlyChargeRepository) Find(ctx context.Context, filter billing.ChargeFilter) ([]billing.MonthlyCharge, error) {
	query := r.db.WithContext(ctx).
		Where("tenant_id = ? AND billing_month = ?", filter.TenantID, filter.Month.String())
	if filter.Status != "" {
		query = query.Where("status = ?", string(filter.Status))
	}

	var rows []models.MonthlyChargeModel
	if err := query.Order("created_at ASC, id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}

	charges := make([]billing.MonthlyCharge, 0, len(rows))
	for i := range rows {
		charge, err := rows[i].ToDomain()
		if err != nil {
			return nil, fmt.Errorf("failed to map monthly charge %s: %w", rows[i].ID, err)
		}
		charges = append(charges, *charge)
	}
	return charges, nil
}

// Ensure GormMonthlyChargeRepository implements the interface
var _ billing.MonthlyChargeRepository = (*GormMonthlyChargeRepository)(nil)
