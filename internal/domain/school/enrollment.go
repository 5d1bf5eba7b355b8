package school

import (
	"github.com/google/uuid"
)

// PaymentMethodType is how a student's fees are collected
type PaymentMethodType string

const (
	PaymentMethodCard         PaymentMethodType = "CARD"
	PaymentMethodBankTransfer PaymentMethodType = "BANK_TRANSFER"
	PaymentMethodDirectDebit  PaymentMethodType = "DIRECT_DEBIT"
	PaymentMethodCash         PaymentMethodType = "CASH"
)

// StudentEnrollment is one (student, class) enrollment row joined with the
// student attributes and the class fee. A student with no enrollments does
// not produce a row.
type StudentEnrollment struct {
	TenantID          uuid.UUID
	StudentID         uuid.UUID
	StudentName       string
	Archived          bool
	PaymentMethodType PaymentMethodType
	GuardianID        *uuid.UUID // primary parent, nil when none is linked

	ClassID   uuid.UUID
	ClassName string
	// MonthlyFee is in minor currency units. Zero means the class is free.
	MonthlyFee int64
}

// HasGuardian returns true if the student has a primary guardian to bill
func (e *StudentEnrollment) HasGuardian() bool {
	return e.GuardianID != nil && *e.GuardianID != uuid.Nil
}

// PaysByCard returns true if the student's fees are collected by card
func (e *StudentEnrollment) PaysByCard() bool {
	return e.PaymentMethodType == PaymentMethodCard
}

// IsBillable returns true if the class carries a fee
func (e *StudentEnrollment) IsBillable() bool {
	return e.MonthlyFee > 0
}
