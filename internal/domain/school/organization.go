package school

import (
	"github.com/google/uuid"

	"github.com/schoolpay/backend/internal/domain/billing"
)

// OrganizationStatus represents the lifecycle status of a tenant organization
type OrganizationStatus string

const (
	OrganizationStatusActive      OrganizationStatus = "active"
	OrganizationStatusPaused      OrganizationStatus = "paused"
	OrganizationStatusDeactivated OrganizationStatus = "deactivated"
)

// IsValid returns true if the status is a known value
func (s OrganizationStatus) IsValid() bool {
	switch s {
	case OrganizationStatusActive, OrganizationStatusPaused, OrganizationStatusDeactivated:
		return true
	}
	return false
}

// Organization is a tenant school using the platform.
type Organization struct {
	ID     uuid.UUID
	Name   string
	Status OrganizationStatus

	// BillingDay is the configured day of month (1-28) on which guardians are charged.
	BillingDay *int
	// LegacyPaymentDay is the older name of BillingDay, still honoured when BillingDay is unset.
	LegacyPaymentDay *int

	AcceptsCardPayments bool
	// StripeAccountID is the tenant's connected payment-provider account.
	StripeAccountID string
}

// IsActive returns true if the organization is active
func (o *Organization) IsActive() bool {
	return o.Status == OrganizationStatusActive
}

// HasConnectedAccount returns true if the organization has a payment-provider account
func (o *Organization) HasConnectedAccount() bool {
	return o.StripeAccountID != ""
}

// CanChargeCards returns true if card charges may be taken on behalf of this tenant.
func (o *Organization) CanChargeCards() bool {
	return o.IsActive() && o.AcceptsCardPayments && o.HasConnectedAccount()
}

// BillingCalendar returns the organization's billing-day configuration
func (o *Organization) BillingCalendar() billing.BillingCalendar {
	return billing.BillingCalendar{
		BillingDay:       o.BillingDay,
		LegacyPaymentDay: o.LegacyPaymentDay,
	}
}
