package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/schoolpay/backend/internal/domain/billing"
)

// MonthlyChargeModel is the persistence model for a monthly charge ledger entry.
// (student_id, class_id, billing_month) is unique.
type MonthlyChargeModel struct {
	BaseModel
	TenantID     uuid.UUID `gorm:"type:uuid;not null;index:idx_monthly_charges_tenant_month,priority:1"`
	StudentID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_monthly_charges_key,priority:1"`
	ClassID      uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_monthly_charges_key,priority:2"`
	BillingMonth string    `gorm:"type:varchar(7);not null;uniqueIndex:idx_monthly_charges_key,priority:3;index:idx_monthly_charges_tenant_month,priority:2"`
	GuardianID   uuid.UUID `gorm:"type:uuid;not null;index"`
	Amount       int64     `gorm:"not null"`
	Currency     string    `gorm:"type:varchar(3);not null"`
	Status       string    `gorm:"type:varchar(16);not null;index"`

	PaidAt                 *time.Time
	ProviderTransactionRef *string `gorm:"type:varchar(255)"`
	FailureNotes           *string `gorm:"type:text"`
	AttemptCount           int     `gorm:"not null"`
	LastAttemptAt          *time.Time
}

// TableName returns the table name for GORM
func (MonthlyChargeModel) TableName() string {
	return "monthly_charges"
}

// ToDomain converts the persistence model to a domain MonthlyCharge
func (m *MonthlyChargeModel) ToDomain() (*billing.MonthlyCharge, error) {
	month, err := billing.ParseBillingMonth(m.BillingMonth)
	if err != nil {
		return nil, err
	}
	return &billing.MonthlyCharge{
		BaseEntity:             m.BaseModel.ToDomain(),
		TenantID:               m.TenantID,
		StudentID:              m.StudentID,
		ClassID:                m.ClassID,
		GuardianID:             m.GuardianID,
		Month:                  month,
		Amount:                 m.Amount,
		Currency:               m.Currency,
		Status:                 billing.ChargeStatus(m.Status),
		PaidAt:                 m.PaidAt,
		ProviderTransactionRef: derefString(m.ProviderTransactionRef),
		FailureNotes:           derefString(m.FailureNotes),
		AttemptCount:           m.AttemptCount,
		LastAttemptAt:          m.LastAttemptAt,
	}, nil
}

// FromDomain populates the persistence model from a domain MonthlyCharge
func (m *MonthlyChargeModel) FromDomain(c *billing.MonthlyCharge) {
	m.FromDomainBaseEntity(c.BaseEntity)
	m.TenantID = c.TenantID
	m.StudentID = c.StudentID
	m.ClassID = c.ClassID
	m.GuardianID = c.GuardianID
	m.BillingMonth = c.Month.String()
	m.Amount = c.Amount
	m.Currency = c.Currency
	m.Status = string(c.Status)
	m.PaidAt = c.PaidAt
	m.ProviderTransactionRef = optionalString(c.ProviderTransactionRef)
	m.FailureNotes = optionalString(c.FailureNotes)
	m.AttemptCount = c.AttemptCount
	m.LastAttemptAt = c.LastAttemptAt
}

// MonthlyChargeModelFromDomain creates a new persistence model from a domain MonthlyCharge
func MonthlyChargeModelFromDomain(c *billing.MonthlyCharge) *MonthlyChargeModel {
	m := &MonthlyChargeModel{}
	m.FromDomain(c)
	return m
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
