package models

import (
	"github.com/google/uuid"

	"github.com/schoolpay/backend/internal/domain/school"
)

// OrganizationModel is the persistence model for a tenant organization
type OrganizationModel struct {
	BaseModel
	Name   string `gorm:"type:varchar(200);not null"`
	Status string `gorm:"type:varchar(20);not null;index"`

	BillingDay *int `gorm:"type:smallint"`
	// PaymentDay is the legacy billing day column
	PaymentDay *int `gorm:"type:smallint"`

	AcceptsCardPayments bool    `gorm:"not null;default:false"`
	StripeAccountID     *string `gorm:"type:varchar(255)"`
}

// TableName returns the table name for GORM
func (OrganizationModel) TableName() string {
	return "organizations"
}

// ToDomain converts the persistence model to a domain Organization
func (m *OrganizationModel) ToDomain() *school.Organization {
	org := &school.Organization{
		ID:                  m.ID,
		Name:                m.Name,
		Status:              school.OrganizationStatus(m.Status),
		BillingDay:          m.BillingDay,
		LegacyPaymentDay:    m.PaymentDay,
		AcceptsCardPayments: m.AcceptsCardPayments,
	}
	if m.StripeAccountID != nil {
		org.StripeAccountID = *m.StripeAccountID
	}
	return org
}

// StudentModel is the persistence model for a student
type StudentModel struct {
	TenantModel
	Name              string     `gorm:"type:varchar(200);not null"`
	PaymentMethodType string     `gorm:"type:varchar(30);not null;default:'CARD'"`
	PrimaryGuardianID *uuid.UUID `gorm:"type:uuid;index"`
	Archived          bool       `gorm:"not null;default:false"`
}

// TableName returns the table name for GORM
func (StudentModel) TableName() string {
	return "students"
}

// ClassModel is the persistence model for a class
type ClassModel struct {
	TenantModel
	Name string `gorm:"type:varchar(200);not null"`
	// MonthlyFee is in minor currency units. NULL means free.
	MonthlyFee *int64
}

// TableName returns the table name for GORM
func (ClassModel) TableName() string {
	return "classes"
}

// ClassEnrollmentModel links a student to a class
type ClassEnrollmentModel struct {
	TenantModel
	StudentID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_class_enrollments_student_class,priority:1"`
	ClassID   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_class_enrollments_student_class,priority:2"`
}

// TableName returns the table name for GORM
func (ClassEnrollmentModel) TableName() string {
	return "class_enrollments"
}

// GuardianBillingProfileModel is the persistence model for a guardian billing profile
type GuardianBillingProfileModel struct {
	BaseModel
	TenantID               uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_guardian_billing_profiles_tenant_guardian,priority:1"`
	GuardianID             uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_guardian_billing_profiles_tenant_guardian,priority:2"`
	AutopayEnabled         bool      `gorm:"not null;default:false"`
	StripeCustomerID       *string   `gorm:"type:varchar(255)"`
	DefaultPaymentMethodID *string   `gorm:"type:varchar(255)"`
}

// TableName returns the table name for GORM
func (GuardianBillingProfileModel) TableName() string {
	return "guardian_billing_profiles"
}

// ToDomain converts the persistence model to a domain GuardianBillingProfile
func (m *GuardianBillingProfileModel) ToDomain() *school.GuardianBillingProfile {
	p := &school.GuardianBillingProfile{
		TenantID:       m.TenantID,
		GuardianID:     m.GuardianID,
		AutopayEnabled: m.AutopayEnabled,
	}
	if m.StripeCustomerID != nil {
		p.StripeCustomerID = *m.StripeCustomerID
	}
	if m.DefaultPaymentMethodID != nil {
		p.DefaultPaymentMethodID = *m.DefaultPaymentMethodID
	}
	return p
}

// EnrollmentRow is the scan target of the enrollment projection query
type EnrollmentRow struct {
	TenantID          uuid.UUID
	StudentID         uuid.UUID
	StudentName       string
	Archived          bool
	PaymentMethodType string
	GuardianID        *uuid.UUID
	ClassID           uuid.UUID
	ClassName         string
	MonthlyFee        int64
}

// ToDomain converts the row to a domain StudentEnrollment
func (r *EnrollmentRow) ToDomain() school.StudentEnrollment {
	return school.StudentEnrollment{
		TenantID:          r.TenantID,
		StudentID:         r.StudentID,
		StudentName:       r.StudentName,
		Archived:          r.Archived,
		PaymentMethodType: school.PaymentMethodType(r.PaymentMethodType),
		GuardianID:        r.GuardianID,
		ClassID:           r.ClassID,
		ClassName:         r.ClassName,
		MonthlyFee:        r.MonthlyFee,
	}
}

// AllModels returns every model, in dependency order, for AutoMigrate
func AllModels() []any {
	return []any{
		&OrganizationModel{},
		&StudentModel{},
		&ClassModel{},
		&ClassEnrollmentModel{},
		&GuardianBillingProfileModel{},
		&MonthlyChargeModel{},
	}
}
