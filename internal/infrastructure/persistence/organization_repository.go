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

// GormOrganizationRepository implements school.OrganizationReader using GORM
type GormOrganizationRepository struct {
	db *gorm.DB
}

// NewGormOrganizationRepository creates a new GormOrganizationRepository
func NewGormOrganizationRepository(db *gorm.DB) *GormOrganizationRepository {
	return &GormOrganizationRepository{db: db}
}

// FindBillingCandidates returns organizations with a billing day or legacy payment day set
func (r *GormOrganizationRepository) FindBillingCandidates(ctx context.Context) ([]school.Organization, error) {
	var rows []models.OrganizationModel
	if err := r.db.WithContext(ctx).
		Where("billing_day IS NOT NULL OR payment_day IS NOT NULL").
		Order("id").
		Find(&rows).Error; err != nil {
		return nil, err
	}

	orgs := make([]school.Organization, len(rows))
	for i := range rows {
		orgs[i] = *rows[i].ToDomain()
	}
	return orgs, nil
}

// FindByID finds an organization by ID
func (r *GormOrganizationRepository) FindByID(ctx context.Context, id uuid.UUID) (*school.Organization, error) {
	var model models.OrganizationModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Ensure GormOrganizationRepository implements the interface
var _ school.OrganizationReader = (*GormOrganizationRepository)(nil)
