package billing

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// OutcomeKind tags a ChargeOutcome
type OutcomeKind int

const (
	OutcomeSucceeded OutcomeKind = iota + 1
	OutcomeDeclined
	OutcomeTransientError
	// OutcomeUnconfirmed means the provider may have taken the payment but
	// has not confirmed it. The charge stays open under the same key.
	OutcomeUnconfirmed
)

// String returns the outcome kind name
func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSucceeded:
		return "succeeded"
	case OutcomeDeclined:
		return "declined"
	case OutcomeTransientError:
		return "transient_error"
	case OutcomeUnconfirmed:
		return "unconfirmed"
	}
	return fmt.Sprintf("unknown(%d)", int(k))
}

// ChargeOutcome is the result of one off-session charge attempt.
// TransactionRef is set for OutcomeSucceeded and, when the provider returned
// one, for OutcomeUnconfirmed. Reason is set for every other kind.
type ChargeOutcome struct {
	Kind           OutcomeKind
	TransactionRef string
	Reason         string
}

// Succeeded builds a successful outcome
func Succeeded(transactionRef string) ChargeOutcome {
	return ChargeOutcome{Kind: OutcomeSucceeded, TransactionRef: transactionRef}
}

// Declined builds a definitive decline outcome
func Declined(reason string) ChargeOutcome {
	return ChargeOutcome{Kind: OutcomeDeclined, Reason: reason}
}

// TransientError builds an outcome for a provider error that rejected the
// request without charging
func TransientError(reason string) ChargeOutcome {
	return ChargeOutcome{Kind: OutcomeTransientError, Reason: reason}
}

// Unconfirmed builds an outcome for a payment whose result is not known yet.
// transactionRef may be empty when the provider could not be reached.
func Unconfirmed(transactionRef, reason string) ChargeOutcome {
	return ChargeOutcome{Kind: OutcomeUnconfirmed, TransactionRef: transactionRef, Reason: reason}
}

// IsDefinitive returns true when the provider settled the attempt either way
func (o ChargeOutcome) IsDefinitive() bool {
	switch o.Kind {
	case OutcomeSucceeded, OutcomeDeclined, OutcomeTransientError:
		return true
	}
	return false
}

// IsSuccess returns true for OutcomeSucceeded
func (o ChargeOutcome) IsSuccess() bool {
	return o.Kind == OutcomeSucceeded
}

// ChargeRequest is one off-session charge against a stored instrument
type ChargeRequest struct {
	TenantID uuid.UUID
	// TenantAccountID is the tenant's connected account at the provider
	TenantAccountID    string
	GuardianID         uuid.UUID
	GuardianCustomerID string
	PaymentMethodID    string
	IdempotencyKey     string
	Amount             int64 // minor currency units
	Currency           string
	Description        string
	Metadata           map[string]string

	// UnconfirmedTransactionRef names a provider payment left unconfirmed by
	// an earlier attempt. The charger looks it up instead of charging again.
	UnconfirmedTransactionRef string
}

// OffSessionCharger charges a guardian's stored payment instrument without
// the cardholder present. Implementations report provider declines through
// the outcome and reserve the error return for failures to reach the provider.
// Such an error leaves it unknown whether the payment was taken.
type OffSessionCharger interface {
	AttemptCharge(ctx context.Context, req ChargeRequest) (ChargeOutcome, error)
}
