package billing

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/schoolpay/backend/internal/domain/school"
	"github.com/schoolpay/backend/internal/domain/shared"
)

// ChargeCandidate is one (student, class, fee) tuple that should be charged
// this month, together with the tenant account and guardian instrument to use.
type ChargeCandidate struct {
	TenantID        uuid.UUID
	TenantAccountID string
	Enrollment      school.StudentEnrollment
	Profile         school.GuardianBillingProfile
}

// GuardianID returns the guardian billed for the candidate
func (c ChargeCandidate) GuardianID() uuid.UUID {
	return c.Profile.GuardianID
}

// EligibilitySelector projects a tenant's enrollments onto the tuples to charge.
// It never writes.
type EligibilitySelector struct {
	enrollments school.EnrollmentReader
	profiles    school.GuardianProfileReader
	logger      *zap.Logger
}

// NewEligibilitySelector creates a new EligibilitySelector
func NewEligibilitySelector(
	enrollments school.EnrollmentReader,
	profiles school.GuardianProfileReader,
	logger *zap.Logger,
) *EligibilitySelector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EligibilitySelector{
		enrollments: enrollments,
		profiles:    profiles,
		logger:      logger,
	}
}

// SelectEligible returns the charge candidates of a tenant due today.
//
// Exclusions are expected steady state and are not errors: a tenant that
// cannot take card payments yields nothing, as do archived or non-card
// students, students without a guardian, guardians without autopay or a
// stored instrument, and free classes. Errors are returned only when the
// underlying reads fail.
func (s *EligibilitySelector) SelectEligible(ctx context.Context, tenant *school.Organization) ([]ChargeCandidate, error) {
	if tenant == nil || !tenant.CanChargeCards() {
		return nil, nil
	}

	rows, err := s.enrollments.FindByTenant(ctx, tenant.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load enrollments for tenant %s: %w", tenant.ID, err)
	}

	// Each guardian's profile is read once per tenant pass.
	profiles := make(map[uuid.UUID]*school.GuardianBillingProfile)
	candidates := make([]ChargeCandidate, 0, len(rows))

	for _, row := range rows {
		if row.Archived || !row.PaysByCard() || !row.HasGuardian() {
			continue
		}

		guardianID := *row.GuardianID
		profile, seen := profiles[guardianID]
		if !seen {
			profile, err = s.loadProfile(ctx, tenant.ID, guardianID)
			if err != nil {
				return nil, err
			}
			profiles[guardianID] = profile
		}
		if profile == nil {
			continue
		}

		if !row.IsBillable() {
			continue
		}

		candidates = append(candidates, ChargeCandidate{
			TenantID:        tenant.ID,
			TenantAccountID: tenant.StripeAccountID,
			Enrollment:      row,
			Profile:         *profile,
		})
	}

	s.logger.Debug("Selected charge candidates",
		zap.String("tenant_id", tenant.ID.String()),
		zap.Int("enrollments", len(rows)),
		zap.Int("guardians", len(profiles)),
		zap.Int("candidates", len(candidates)))

	return candidates, nil
}

// loadProfile returns nil when the guardian cannot be auto-charged.
func (s *EligibilitySelector) loadProfile(ctx context.Context, tenantID, guardianID uuid.UUID) (*school.GuardianBillingProfile, error) {
	profile, err := s.profiles.FindByTenantAndGuardian(ctx, tenantID, guardianID)
	if errors.Is(err, shared.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load billing profile of guardian %s: %w", guardianID, err)
	}
	if profile == nil || !profile.CanAutoCharge() {
		return nil, nil
	}
	return profile, nil
}
