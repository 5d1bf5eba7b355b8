package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/schoolpay/backend/internal/domain/school"
	"github.com/schoolpay/backend/internal/domain/shared"
	"github.com/schoolpay/backend/internal/infrastructure/persistence/models"
)

// GormGuardianProfileRepository implements school.GuardianProfileReader using GORM
type GormGuardianProfileRepository struct {
	db *gorm.DB
}

// NewGormGuardianProfileRepository creates a new GormGuardianProfileRepository
func NewGormGuardianProfileRepository(db *gorm.DB) *GormGuardianProfileRepository {
	return &GormGuardianProfileRepository{db: db}
}

// FindByTenantAndGuardian finds the billing profile of a guardian within a tenant
func (r *GormGuardianProfileRepository) FindByTenantAndGuardian(ctx context.Context, tenantID, guardianID uuid.UUID) (*school.GuardianBillingProfile, error) {
	var model models.GuardianBillingProfileModel
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND guardian_id = ?", tenantID, guardianID).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Ensure GormGuardianProfileRepository implements the interface
var _ school.GuardianProfileReader = (*GormGuardianProfileRepository)(nil)
