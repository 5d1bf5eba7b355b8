// Package billing provides the domain model of recurring tenant billing.
//
// Once per day every tenant whose billing day is today charges the guardians
// of its card-paying students, once per (student, class, calendar month).
// The outcome of each charge is kept in a MonthlyCharge ledger entry:
//
//	PENDING --success--> PAID    (terminal)
//	PENDING --failure--> FAILED
//	FAILED  --next run--> PENDING (same month, no retry cap)
//
// Key types:
//   - BillingCalendar: resolves whether today is a tenant's billing day
//   - BillingMonth: the "YYYY-MM" value identifying a billing period
//   - MonthlyCharge: the ledger entry and its state machine
//   - ChargeOutcome: tagged result of an off-session charge attempt
//
// Persistence and the payment provider sit behind MonthlyChargeRepository
// and OffSessionCharger.
package billing
