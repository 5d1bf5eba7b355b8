package school

import (
	"context"

	"github.com/google/uuid"
)

// OrganizationReader reads tenant organizations
type OrganizationReader interface {
	// FindBillingCandidates returns every organization that has a billing day
	// (or the legacy payment day) configured, regardless of status.
	FindBillingCandidates(ctx context.Context) ([]Organization, error)

	// FindByID returns shared.ErrNotFound when the organization does not exist
	FindByID(ctx context.Context, id uuid.UUID) (*Organization, error)
}

// EnrollmentReader reads student enrollments
type EnrollmentReader interface {
	// FindByTenant returns every enrollment row for the tenant, ordered by
	// guardian, student and class so output is stable across runs.
	FindByTenant(ctx context.Context, tenantID uuid.UUID) ([]StudentEnrollment, error)
}

// GuardianProfileReader reads guardian billing profiles
type GuardianProfileReader interface {
	// FindByTenantAndGuardian returns shared.ErrNotFound when the guardian has no profile
	FindByTenantAndGuardian(ctx context.Context, tenantID, guardianID uuid.UUID) (*GuardianBillingProfile, error)
}
