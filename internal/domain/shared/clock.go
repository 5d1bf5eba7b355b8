package shared

import "time"

// Clock supplies the current time. Billing decisions (billing day, billing
// month) are made against an injected Clock so date boundaries can be pinned
// in tests.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in a fixed location.
type SystemClock struct {
	Location *time.Location
}

// NewSystemClock returns a clock reporting time in loc (UTC when nil).
func NewSystemClock(loc *time.Location) SystemClock {
	if loc == nil {
		loc = time.UTC
	}
	return SystemClock{Location: loc}
}

// Now implements Clock
func (c SystemClock) Now() time.Time {
	if c.Location == nil {
		return time.Now().UTC()
	}
	return time.Now().In(c.Location)
}

// FixedClock always reports the same instant.
type FixedClock struct {
	At time.Time
}

// Now implements Clock
func (c FixedClock) Now() time.Time {
	return c.At
}
