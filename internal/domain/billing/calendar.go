package billing

import "time"

const (
	// MinBillingDay is the first usable billing day of a month
	MinBillingDay = 1
	// MaxBillingDay is the last usable billing day. Every month has a 28th.
	MaxBillingDay = 28
)

// BillingCalendar is a tenant's billing-day configuration.
// BillingDay is authoritative; LegacyPaymentDay is honoured only when
// BillingDay is unset. Non-positive values count as unset.
type BillingCalendar struct {
	BillingDay       *int
	LegacyPaymentDay *int
}

// EffectiveBillingDay returns the day of month the tenant bills on, clamped
// to [MinBillingDay, MaxBillingDay]. ok is false when no day is configured.
func (c BillingCalendar) EffectiveBillingDay() (day int, ok bool) {
	switch {
	case isSet(c.BillingDay):
		day = *c.BillingDay
	case isSet(c.LegacyPaymentDay):
		day = *c.LegacyPaymentDay
	default:
		return 0, false
	}
	if day > MaxBillingDay {
		day = MaxBillingDay
	}
	return day, true
}

// IsConfigured returns true if either billing day field is set
func (c BillingCalendar) IsConfigured() bool {
	_, ok := c.EffectiveBillingDay()
	return ok
}

// IsBillingDayToday reports whether today is the tenant's billing day.
// A tenant with no billing day configured is never due.
func IsBillingDayToday(cal BillingCalendar, today time.Time) bool {
	day, ok := cal.EffectiveBillingDay()
	if !ok {
		return false
	}
	return today.Day() == day
}

func isSet(day *int) bool {
	return day != nil && *day >= MinBillingDay
}

// HasBillingDayPassed reports whether the tenant's billing day falls earlier
// in today's month. Such tenants are not due, but their unpaid charges for
// the month may still be retried.
func HasBillingDayPassed(cal BillingCalendar, today time.Time) bool {
	day, ok := cal.EffectiveBillingDay()
	if !ok {
		return false
	}
	return today.Day() > day
}
