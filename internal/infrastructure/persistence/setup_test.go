package persistence

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/schoolpay/backend/internal/domain/school"
	"github.com/schoolpay/backend/internal/infrastructure/persistence/models"
)

func setupBillingTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	// every pooled connection to ":memory:" would get its own empty database
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(models.AllModels()...))
	return db
}

func seedOrganization(t *testing.T, db *gorm.DB, billingDay, paymentDay *int) models.OrganizationModel {
	t.Helper()
	account := "acct_" + uuid.NewString()[:8]
	org := models.OrganizationModel{
		BaseModel: models.BaseModel{
			ID:        uuid.New(),
			CreatedAt: time.Now(),
			UpdatedAt: time.Now(),
		},
		Name:                "Northfield Dance Academy",
		Status:              string(school.OrganizationStatusActive),
		BillingDay:          billingDay,
		PaymentDay:          paymentDay,
		AcceptsCardPayments: true,
		StripeAccountID:     &account,
	}
	require.NoError(t, db.Create(&org).Error)
	return org
}

func seedStudent(t *testing.T, db *gorm.DB, tenantID uuid.UUID, guardianID *uuid.UUID, method school.PaymentMethodType) models.StudentModel {
	t.Helper()
	student := models.StudentModel{
		TenantModel:       newTenantModel(tenantID),
		Name:              "Student " + uuid.NewString()[:4],
		PaymentMethodType: string(method),
		PrimaryGuardianID: guardianID,
	}
	require.NoError(t, db.Create(&student).Error)
	return student
}

func seedClass(t *testing.T, db *gorm.DB, tenantID uuid.UUID, fee *int64) models.ClassModel {
	t.Helper()
	class := models.ClassModel{
		TenantModel: newTenantModel(tenantID),
		Name:        "Class " + uuid.NewString()[:4],
		MonthlyFee:  fee,
	}
	require.NoError(t, db.Create(&class).Error)
	return class
}

func seedEnrollment(t *testing.T, db *gorm.DB, tenantID, studentID, classID uuid.UUID) {
	t.Helper()
	require.NoError(t, db.Create(&models.ClassEnrollmentModel{
		TenantModel: newTenantModel(tenantID),
		StudentID:   studentID,
		ClassID:     classID,
	}).Error)
}

func newTenantModel(tenantID uuid.UUID) models.TenantModel {
	now := time.Now()
	return models.TenantModel{
		BaseModel: models.BaseModel{ID: uuid.New(), CreatedAt: now, UpdatedAt: now},
		TenantID:  tenantID,
	}
}

func intPtr(v int) *int {
	return &v
}

func int64Ptr(v int64) *int64 {
	return &v
}
