package school

import (
	"github.com/google/uuid"
)

// GuardianBillingProfile is the per (tenant, guardian) billing setup.
type GuardianBillingProfile struct {
	TenantID       uuid.UUID
	GuardianID     uuid.UUID
	AutopayEnabled bool

	// StripeCustomerID and DefaultPaymentMethodID together reference the stored,
	// chargeable payment instrument.
	StripeCustomerID       string
	DefaultPaymentMethodID string
}

// HasStoredInstrument returns true if a chargeable instrument is on file
func (p *GuardianBillingProfile) HasStoredInstrument() bool {
	return p.StripeCustomerID != "" && p.DefaultPaymentMethodID != ""
}

// CanAutoCharge returns true if the guardian may be charged off-session
func (p *GuardianBillingProfile) CanAutoCharge() bool {
	return p.AutopayEnabled && p.HasStoredInstrument()
}
