package persistence

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/schoolpay/backend/internal/domain/school"
	"github.com/schoolpay/backend/internal/infrastructure/persistence/models"
)

// GormEnrollmentRepository implements school.EnrollmentReader using GORM
type GormEnrollmentRepository struct {
	db *gorm.DB
}

// NewGormEnrollmentRepository creates a new GormEnrollmentRepository
func NewGormEnrollmentRepository(db *gorm.DB) *GormEnrollmentRepository {
	return &GormEnrollmentRepository{db: db}
}

// FindByTenant returns one row per (student, class) enrollment of the tenant,
// joined with the student and the class fee. A NULL fee reads as zero.
func (r *GormEnrollmentRepository) FindByTenant(ctx context.Context, tenantID uuid.UUID) ([]school.StudentEnrollment, error) {
	var rows []models.EnrollmentRow
	err := r.db.WithContext(ctx).
		Table("class_enrollments AS e").
		Select(`s.tenant_id AS tenant_id,
			s.id AS student_id,
			s.name AS student_name,
			s.archived AS archived,
			s.payment_method_type AS payment_method_type,
			s.primary_guardian_id AS guardian_id,
			c.id AS class_id,
			c.name AS class_name,
			COALESCE(c.monthly_fee, 0) AS monthly_fee`).
		Joins("JOIN students AS s ON s.id = e.student_id").
		Joins("JOIN classes AS c ON c.id = e.class_id AND c.tenant_id = s.tenant_id").
		Where("s.tenant_id = ?", tenantID).
		Order("s.primary_guardian_id, s.id, c.id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	enrollments := make([]school.StudentEnrollment, len(rows))
	for i := range rows {
		enrollments[i] = rows[i].ToDomain()
	}
	return enrollments, nil
}

// Ensure GormEnrollmentRepository implements the interface
var _ school.EnrollmentReader = (*GormEnrollmentRepository)(nil)
