package billing

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/schoolpay/backend/internal/domain/billing"
	"github.com/schoolpay/backend/internal/domain/school"
	"github.com/schoolpay/backend/internal/domain/shared"
)

// mockOrganizationReader is a mock implementation of school.OrganizationReader
type mockOrganizationReader struct {
	mock.Mock
}

func (m *mockOrganizationReader) FindBillingCandidates(ctx context.Context) ([]school.Organization, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]school.Organization), args.Error(1)
}

func (m *mockOrganizationReader) FindByID(ctx context.Context, id uuid.UUID) (*school.Organization, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*school.Organization), args.Error(1)
}

// mockEnrollmentReader is a mock implementation of school.EnrollmentReader
type mockEnrollmentReader struct {
	mock.Mock
}

func (m *mockEnrollmentReader) FindByTenant(ctx context.Context, tenantID uuid.UUID) ([]school.StudentEnrollment, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]school.StudentEnrollment), args.Error(1)
}

// mockGuardianProfileReader is a mock implementation of school.GuardianProfileReader
type mockGuardianProfileReader struct {
	mock.Mock
}

func (m *mockGuardianProfileReader) FindByTenantAndGuardian(ctx context.Context, tenantID, guardianID uuid.UUID) (*school.GuardianBillingProfile, error) {
	args := m.Called(ctx, tenantID, guardianID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*school.GuardianBillingProfile), args.Error(1)
}

// mockCharger is a mock implementation of billing.OffSessionCharger
type mockCharger struct {
	mock.Mock
}

func (m *mockCharger) AttemptCharge(ctx context.Context, req billing.ChargeRequest) (billing.ChargeOutcome, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(billing.ChargeOutcome), args.Error(1)
}

// memoryChargeRepository keeps the ledger in a map keyed by the charge key,
// mirroring the unique index of the real table.
type memoryChargeRepository struct {
	mu      sync.Mutex
	charges map[billing.ChargeKey]*billing.MonthlyCharge

	saveErr   error
	getErr    error
	findErr   error
	panicOn   map[billing.ChargeKey]bool
	creations int
}

func newMemoryChargeRepository() *memoryChargeRepository {
	return &memoryChargeRepository{charges: make(map[billing.ChargeKey]*billing.MonthlyCharge)}
}

func (r *memoryChargeRepository) GetOrCreate(_ context.Context, candidate *billing.MonthlyCharge) (*billing.MonthlyCharge, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.getErr != nil {
		return nil, false, r.getErr
	}
	if r.panicOn[candidate.Key()] {
		panic("corrupt ledger row")
	}
	if existing, ok := r.charges[candidate.Key()]; ok {
		c := *existing
		return &c, false, nil
	}
	stored := *candidate
	r.charges[candidate.Key()] = &stored
	r.creations++
	c := stored
	return &c, true, nil
}

func (r *memoryChargeRepository) SaveTransition(_ context.Context, charge *billing.MonthlyCharge, from billing.ChargeStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	existing, ok := r.charges[charge.Key()]
	if !ok || existing.Status != from {
		return shared.ErrConcurrencyConflict
	}
	stored := *charge
	r.charges[charge.Key()] = &stored
	return nil
}

func (r *memoryChargeRepository) FindByKey(_ context.Context, key billing.ChargeKey) (*billing.MonthlyCharge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.charges[key]
	if !ok {
		return nil, shared.ErrNotFound
	}
	c := *existing
	return &c, nil
}

func (r *memoryChargeRepository) Find(_ context.Context, filter billing.ChargeFilter) ([]billing.MonthlyCharge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	out := make([]billing.MonthlyCharge, 0)
	for _, c := range r.charges {
		if c.TenantID != filter.TenantID || c.Month != filter.Month {
			continue
		}
		if filter.Status != "" && c.Status != filter.Status {
			continue
		}
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *memoryChargeRepository) all() []billing.MonthlyCharge {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]billing.MonthlyCharge, 0, len(r.charges))
	for _, c := range r.charges {
		out = append(out, *c)
	}
	return out
}

func (r *memoryChargeRepository) get(key billing.ChargeKey) *billing.MonthlyCharge {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.charges[key]; ok {
		copied := *c
		return &copied
	}
	return nil
}

// adjustableClock is a shared.Clock whose time can be moved between runs
type adjustableClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *adjustableClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *adjustableClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}
