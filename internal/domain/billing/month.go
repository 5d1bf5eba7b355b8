package billing

import (
	"fmt"
	"time"
)

const billingMonthLayout = "2006-01"

// BillingMonth identifies a calendar month, rendered as "YYYY-MM".
type BillingMonth struct {
	year  int
	month time.Month
}

// BillingMonthOf returns the billing month containing t, in t's location.
func BillingMonthOf(t time.Time) BillingMonth {
	return BillingMonth{year: t.Year(), month: t.Month()}
}

// ParseBillingMonth parses a "YYYY-MM" string.
func ParseBillingMonth(s string) (BillingMonth, error) {
	t, err := time.Parse(billingMonthLayout, s)
	if err != nil {
		return BillingMonth{}, fmt.Errorf("billing: invalid billing month %q, expected YYYY-MM", s)
	}
	return BillingMonthOf(t), nil
}

// Year returns the year
func (m BillingMonth) Year() int {
	return m.year
}

// Month returns the month
func (m BillingMonth) Month() time.Month {
	return m.month
}

// IsZero returns true for the zero value
func (m BillingMonth) IsZero() bool {
	return m.year == 0 && m.month == 0
}

// String returns the month as "YYYY-MM"
func (m BillingMonth) String() string {
	return fmt.Sprintf("%04d-%02d", m.year, int(m.month))
}

// MarshalText implements encoding.TextMarshaler
func (m BillingMonth) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (m *BillingMonth) UnmarshalText(text []byte) error {
	parsed, err := ParseBillingMonth(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
