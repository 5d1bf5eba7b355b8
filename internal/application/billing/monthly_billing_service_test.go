package billing

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/schoolpay/backend/internal/domain/billing"
	"github.com/schoolpay/backend/internal/domain/school"
)

func march(day int) time.Time {
	return time.Date(2024, time.March, day, 6, 0, 0, 0, time.UTC)
}

type serviceFixture struct {
	orgs        *mockOrganizationReader
	enrollments *mockEnrollmentReader
	profiles    *mockGuardianProfileReader
	charger     *mockCharger
	repo        *memoryChargeRepository
	clock       *adjustableClock
	service     *MonthlyBillingService
}

func newServiceFixture(t *testing.T, config MonthlyBillingConfig, opts ...MonthlyBillingOption) *serviceFixture {
	t.Helper()
	f := &serviceFixture{
		orgs:        new(mockOrganizationReader),
		enrollments: new(mockEnrollmentReader),
		profiles:    new(mockGuardianProfileReader),
		charger:     new(mockCharger),
		repo:        newMemoryChargeRepository(),
		clock:       &adjustableClock{now: march(15)},
	}
	logger := zap.NewNop()
	selector := NewEligibilitySelector(f.enrollments, f.profiles, logger)
	executor := NewPaymentAttemptExecutor(f.charger, f.repo, f.clock, logger)
	f.service = NewMonthlyBillingService(f.orgs, selector, f.repo, executor, f.clock, logger, config, opts...)
	return f
}

// withTenant registers a tenant billed on day 15 with one guardian and the given enrollments
func (f *serviceFixture) withTenant(autopay bool, fees ...int64) (school.Organization, []school.StudentEnrollment) {
	tenant := *newActiveTenant()
	guardian := uuid.New()
	rows := make([]school.StudentEnrollment, 0, len(fees))
	for _, fee := range fees {
		rows = append(rows, newEnrollment(tenant.ID, guardian, fee))
	}
	profile := newAutopayProfile(tenant.ID, guardian)
	profile.AutopayEnabled = autopay

	f.enrollments.On("FindByTenant", mock.Anything, tenant.ID).Return(rows, nil)
	f.profiles.On("FindByTenantAndGuardian", mock.Anything, tenant.ID, guardian).Return(profile, nil)
	return tenant, rows
}

func keyOf(row school.StudentEnrollment, at time.Time) billing.ChargeKey {
	return billing.ChargeKey{StudentID: row.StudentID, ClassID: row.ClassID, Month: billing.BillingMonthOf(at)}
}

func TestRunMonthlyBilling_ChargesTenantOnBillingDay(t *testing.T) {
	f := newServiceFixture(t, DefaultMonthlyBillingConfig())
	tenant, rows := f.withTenant(true, 5000)
	f.orgs.On("FindBillingCandidates", mock.Anything).Return([]school.Organization{tenant}, nil)
	f.charger.On("AttemptCharge", mock.Anything, mock.Anything).Return(billing.Succeeded("pi_1"), nil).Once()

	summary, err := f.service.RunMonthlyBilling(context.Background())

	require.NoError(t, err)
	assert.Equal(t, RunSummary{Processed: 1, Charged: 1, Failed: 0, Month: "2024-03"}, *summary)

	entries := f.repo.all()
	require.Len(t, entries, 1)
	entry := f.repo.get(keyOf(rows[0], march(15)))
	require.NotNil(t, entry)
	assert.Equal(t, billing.ChargeStatusPaid, entry.Status)
	assert.Equal(t, int64(5000), entry.Amount)
	assert.Equal(t, "pi_1", entry.ProviderTransactionRef)
	f.charger.AssertExpectations(t)
}

func TestRunMonthlyBilling_DeclineThenRetryNextDay(t *testing.T) {
	f := newServiceFixture(t, DefaultMonthlyBillingConfig())
	tenant, rows := f.withTenant(true, 5000)
	f.orgs.On("FindBillingCandidates", mock.Anything).Return([]school.Organization{tenant}, nil)
	key := keyOf(rows[0], march(15))

	var keys []string
	f.charger.On("AttemptCharge", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { keys = append(keys, args.Get(1).(billing.ChargeRequest).IdempotencyKey) }).
		Return(billing.Declined("Your card was declined."), nil).Once()

	summary, err := f.service.RunMonthlyBilling(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Charged)
	assert.Equal(t, 1, summary.Failed)

	entry := f.repo.get(key)
	require.NotNil(t, entry)
	assert.Equal(t, billing.ChargeStatusFailed, entry.Status)
	assert.Equal(t, "Your card was declined.", entry.FailureNotes)

	// next day, still in March: the failed entry is reset and retried
	f.clock.Set(march(16))
	f.charger.On("AttemptCharge", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { keys = append(keys, args.Get(1).(billing.ChargeRequest).IdempotencyKey) }).
		Return(billing.Succeeded("pi_retry"), nil).Once()

	summary, err = f.service.RunMonthlyBilling(context.Background())
	require.NoError(t, err)
	assert.Equal(t, RunSummary{Processed: 1, Charged: 1, Month: "2024-03"}, *summary)

	entry = f.repo.get(key)
	assert.Equal(t, billing.ChargeStatusPaid, entry.Status)
	assert.Equal(t, "pi_retry", entry.ProviderTransactionRef)
	assert.Equal(t, 2, entry.AttemptCount)
	assert.Len(t, f.repo.all(), 1)

	require.Len(t, keys, 2)
	assert.NotEqual(t, keys[0], keys[1], "a recorded failure gets a fresh provider key")
	assert.True(t, strings.HasPrefix(keys[1], keys[0]))
}

func TestRunMonthlyBilling_ProcessingPaymentIsResolvedNextDay(t *testing.T) {
	f := newServiceFixture(t, DefaultMonthlyBillingConfig())
	tenant, rows := f.withTenant(true, 5000)
	f.orgs.On("FindBillingCandidates", mock.Anything).Return([]school.Organization{tenant}, nil)
	key := keyOf(rows[0], march(15))

	var requests []billing.ChargeRequest
	record := func(args mock.Arguments) { requests = append(requests, args.Get(1).(billing.ChargeRequest)) }
	f.charger.On("AttemptCharge", mock.Anything, mock.Anything).Run(record).
		Return(billing.Unconfirmed("pi_1", "Payment pi_1 is still processing"), nil).Once()

	summary, err := f.service.RunMonthlyBilling(context.Background())
	require.NoError(t, err)
	assert.Equal(t, RunSummary{Processed: 1, Failed: 1, Month: "2024-03"}, *summary)

	entry := f.repo.get(key)
	require.NotNil(t, entry)
	assert.Equal(t, billing.ChargeStatusPending, entry.Status)
	assert.Equal(t, "pi_1", entry.UnconfirmedTransactionRef())

	f.clock.Set(march(16))
	f.charger.On("AttemptCharge", mock.Anything, mock.Anything).Run(record).
		Return(billing.Succeeded("pi_1"), nil).Once()

	summary, err = f.service.RunMonthlyBilling(context.Background())
	require.NoError(t, err)
	assert.Equal(t, RunSummary{Processed: 1, Charged: 1, Month: "2024-03"}, *summary)

	require.Len(t, requests, 2)
	assert.Equal(t, requests[0].IdempotencyKey, requests[1].IdempotencyKey, "an unconfirmed payment keeps its provider key")
	assert.Empty(t, requests[0].UnconfirmedTransactionRef)
	assert.Equal(t, "pi_1", requests[1].UnconfirmedTransactionRef)

	entry = f.repo.get(key)
	assert.Equal(t, billing.ChargeStatusPaid, entry.Status)
	assert.Equal(t, "pi_1", entry.ProviderTransactionRef)
	assert.Equal(t, 1, entry.AttemptCount)
	f.charger.AssertExpectations(t)
}

func TestRunMonthlyBilling_UnrecordedChargeIsReplayedNextDay(t *testing.T) {
	tests := []struct {
		name  string
		setup func(f *serviceFixture)
	}{
		{
			name: "ledger write failed after the charge",
			setup: func(f *serviceFixture) {
				f.repo.saveErr = errors.New("database is locked")
				f.charger.On("AttemptCharge", mock.Anything, mock.Anything).Return(billing.Succeeded("pi_1"), nil).Once()
			},
		},
		{
			name: "provider unreachable",
			setup: func(f *serviceFixture) {
				f.charger.On("AttemptCharge", mock.Anything, mock.Anything).
					Return(billing.ChargeOutcome{}, errors.New("read tcp: connection reset by peer")).Once()
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newServiceFixture(t, DefaultMonthlyBillingConfig())
			tenant, rows := f.withTenant(true, 5000)
			f.orgs.On("FindBillingCandidates", mock.Anything).Return([]school.Organization{tenant}, nil)
			key := keyOf(rows[0], march(15))
			tt.setup(f)

			summary, err := f.service.RunMonthlyBilling(context.Background())
			require.NoError(t, err)
			assert.Equal(t, 1, summary.Failed)

			entry := f.repo.get(key)
			require.NotNil(t, entry)
			assert.Equal(t, billing.ChargeStatusPending, entry.Status)
			firstKey := entry.IdempotencyKey()

			f.repo.saveErr = nil
			f.clock.Set(march(16))
			f.charger.On("AttemptCharge", mock.Anything, mock.MatchedBy(func(req billing.ChargeRequest) bool {
				return req.IdempotencyKey == firstKey
			})).Return(billing.Succeeded("pi_1"), nil).Once()

			summary, err = f.service.RunMonthlyBilling(context.Background())
			require.NoError(t, err)
			assert.Equal(t, RunSummary{Processed: 1, Charged: 1, Month: "2024-03"}, *summary)

			entry = f.repo.get(key)
			assert.Equal(t, billing.ChargeStatusPaid, entry.Status)
			assert.Equal(t, "pi_1", entry.ProviderTransactionRef)
			f.charger.AssertExpectations(t)
		})
	}
}

func TestRunMonthlyBilling_TenantNotDueIsExcluded(t *testing.T) {
	f := newServiceFixture(t, DefaultMonthlyBillingConfig())
	tenant, _ := f.withTenant(true, 5000)
	f.orgs.On("FindBillingCandidates", mock.Anything).Return([]school.Organization{tenant}, nil)
	f.clock.Set(march(16))

	summary, err := f.service.RunMonthlyBilling(context.Background())

	require.NoError(t, err)
	assert.Equal(t, RunSummary{Month: "2024-03"}, *summary)
	assert.Empty(t, f.repo.all())
	f.charger.AssertNotCalled(t, "AttemptCharge", mock.Anything, mock.Anything)
	f.enrollments.AssertNotCalled(t, "FindByTenant", mock.Anything, mock.Anything)
}

func TestRunMonthlyBilling_RetrySweepDisabled(t *testing.T) {
	config := DefaultMonthlyBillingConfig()
	config.RetryFailedCharges = false
	f := newServiceFixture(t, config)
	tenant, _ := f.withTenant(true, 5000)
	f.orgs.On("FindBillingCandidates", mock.Anything).Return([]school.Organization{tenant}, nil)
	f.charger.On("AttemptCharge", mock.Anything, mock.Anything).Return(billing.Declined("declined"), nil).Once()

	_, err := f.service.RunMonthlyBilling(context.Background())
	require.NoError(t, err)

	f.clock.Set(march(16))
	summary, err := f.service.RunMonthlyBilling(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Processed)
	f.charger.AssertNumberOfCalls(t, "AttemptCharge", 1)
}

func TestRunMonthlyBilling_SameDayRerunIsNoop(t *testing.T) {
	f := newServiceFixture(t, DefaultMonthlyBillingConfig())
	tenant, _ := f.withTenant(true, 5000, 2500)
	f.orgs.On("FindBillingCandidates", mock.Anything).Return([]school.Organization{tenant}, nil)
	f.charger.On("AttemptCharge", mock.Anything, mock.Anything).Return(billing.Succeeded("pi_1"), nil).Twice()

	first, err := f.service.RunMonthlyBilling(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, first.Charged)

	second, err := f.service.RunMonthlyBilling(context.Background())
	require.NoError(t, err)
	assert.Equal(t, RunSummary{Processed: 1, Skipped: 2, Month: "2024-03"}, *second)

	assert.Len(t, f.repo.all(), 2)
	assert.Equal(t, 2, f.repo.creations)
	f.charger.AssertNumberOfCalls(t, "AttemptCharge", 2)
}

func TestRunMonthlyBilling_ZeroFeeCreatesNoEntry(t *testing.T) {
	f := newServiceFixture(t, DefaultMonthlyBillingConfig())
	tenant, _ := f.withTenant(true, 0)
	f.orgs.On("FindBillingCandidates", mock.Anything).Return([]school.Organization{tenant}, nil)

	summary, err := f.service.RunMonthlyBilling(context.Background())

	require.NoError(t, err)
	assert.Equal(t, RunSummary{Processed: 1, Month: "2024-03"}, *summary)
	assert.Empty(t, f.repo.all())
	f.charger.AssertNotCalled(t, "AttemptCharge", mock.Anything, mock.Anything)
}

func TestRunMonthlyBilling_AutopayDisabledCreatesNoEntry(t *testing.T) {
	f := newServiceFixture(t, DefaultMonthlyBillingConfig())
	tenant, _ := f.withTenant(false, 5000, 3000, 1000)
	f.orgs.On("FindBillingCandidates", mock.Anything).Return([]school.Organization{tenant}, nil)

	summary, err := f.service.RunMonthlyBilling(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 0, summary.Charged+summary.Failed)
	assert.Empty(t, f.repo.all())
	f.charger.AssertNotCalled(t, "AttemptCharge", mock.Anything, mock.Anything)
}

func TestRunMonthlyBilling_PaidNeverRegresses(t *testing.T) {
	f := newServiceFixture(t, DefaultMonthlyBillingConfig())
	tenant, rows := f.withTenant(true, 5000)
	f.orgs.On("FindBillingCandidates", mock.Anything).Return([]school.Organization{tenant}, nil)
	f.charger.On("AttemptCharge", mock.Anything, mock.Anything).Return(billing.Succeeded("pi_1"), nil).Once()

	_, err := f.service.RunMonthlyBilling(context.Background())
	require.NoError(t, err)

	for day := 15; day <= 20; day++ {
		f.clock.Set(march(day))
		_, err := f.service.RunMonthlyBilling(context.Background())
		require.NoError(t, err)
	}

	entry := f.repo.get(keyOf(rows[0], march(15)))
	assert.Equal(t, billing.ChargeStatusPaid, entry.Status)
	assert.Equal(t, "pi_1", entry.ProviderTransactionRef)
	assert.Equal(t, 1, entry.AttemptCount)
	f.charger.AssertNumberOfCalls(t, "AttemptCharge", 1)
}

func TestRunMonthlyBilling_StoredAmountIsAuthoritative(t *testing.T) {
	f := newServiceFixture(t, DefaultMonthlyBillingConfig())
	tenant := *newActiveTenant()
	guardian := uuid.New()
	row := newEnrollment(tenant.ID, guardian, 5000)
	raised := row
	raised.MonthlyFee = 6000

	f.enrollments.On("FindByTenant", mock.Anything, tenant.ID).Return([]school.StudentEnrollment{row}, nil).Once()
	f.enrollments.On("FindByTenant", mock.Anything, tenant.ID).Return([]school.StudentEnrollment{raised}, nil)
	f.profiles.On("FindByTenantAndGuardian", mock.Anything, tenant.ID, guardian).Return(newAutopayProfile(tenant.ID, guardian), nil)
	f.orgs.On("FindBillingCandidates", mock.Anything).Return([]school.Organization{tenant}, nil)

	f.charger.On("AttemptCharge", mock.Anything, mock.Anything).Return(billing.Declined("declined"), nil).Once()
	f.charger.On("AttemptCharge", mock.Anything, mock.MatchedBy(func(req billing.ChargeRequest) bool {
		return req.Amount == 5000
	})).Return(billing.Succeeded("pi_2"), nil).Once()

	_, err := f.service.RunMonthlyBilling(context.Background())
	require.NoError(t, err)

	f.clock.Set(march(17))
	summary, err := f.service.RunMonthlyBilling(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Charged)
	assert.Equal(t, int64(5000), f.repo.get(keyOf(row, march(15))).Amount)
}

func TestRunMonthlyBilling_TenantFailureIsIsolated(t *testing.T) {
	f := newServiceFixture(t, DefaultMonthlyBillingConfig())
	healthy, _ := f.withTenant(true, 5000)

	broken := *newActiveTenant()
	f.enrollments.On("FindByTenant", mock.Anything, broken.ID).Return(nil, errors.New("relation does not exist"))

	panicking := *newActiveTenant()
	f.enrollments.On("FindByTenant", mock.Anything, panicking.ID).Run(func(mock.Arguments) { panic("boom") }).
		Return([]school.StudentEnrollment{}, nil)

	f.orgs.On("FindBillingCandidates", mock.Anything).
		Return([]school.Organization{broken, panicking, healthy}, nil)
	f.charger.On("AttemptCharge", mock.Anything, mock.Anything).Return(billing.Succeeded("pi_1"), nil).Once()

	summary, err := f.service.RunMonthlyBilling(context.Background())

	require.NoError(t, err)
	assert.Equal(t, RunSummary{Processed: 3, Charged: 1, Failed: 2, Month: "2024-03"}, *summary)
}

func TestRunMonthlyBilling_TupleFailureIsIsolated(t *testing.T) {
	f := newServiceFixture(t, DefaultMonthlyBillingConfig())
	tenant, rows := f.withTenant(true, 5000, 4000, 3000)
	f.orgs.On("FindBillingCandidates", mock.Anything).Return([]school.Organization{tenant}, nil)
	f.repo.panicOn = map[billing.ChargeKey]bool{keyOf(rows[1], march(15)): true}

	f.charger.On("AttemptCharge", mock.Anything, mock.MatchedBy(func(req billing.ChargeRequest) bool {
		return req.Amount == 3000
	})).Return(billing.Declined("Do not honor"), nil)
	f.charger.On("AttemptCharge", mock.Anything, mock.Anything).Return(billing.Succeeded("pi_1"), nil)

	summary, err := f.service.RunMonthlyBilling(context.Background())

	require.NoError(t, err)
	assert.Equal(t, RunSummary{Processed: 1, Charged: 1, Failed: 2, Month: "2024-03"}, *summary)
	assert.Len(t, f.repo.all(), 2)
}

func TestRunMonthlyBilling_CannotListTenants(t *testing.T) {
	f := newServiceFixture(t, DefaultMonthlyBillingConfig())
	f.orgs.On("FindBillingCandidates", mock.Anything).Return(nil, errors.New("connection refused"))

	summary, err := f.service.RunMonthlyBilling(context.Background())

	assert.Error(t, err)
	assert.Nil(t, summary)
}

func TestRunMonthlyBilling_ParallelTenants(t *testing.T) {
	config := DefaultMonthlyBillingConfig()
	config.MaxConcurrentTenants = 4
	f := newServiceFixture(t, config)

	tenants := make([]school.Organization, 0, 10)
	for i := 0; i < 10; i++ {
		tenant, _ := f.withTenant(true, 5000, 2000)
		tenants = append(tenants, tenant)
	}
	f.orgs.On("FindBillingCandidates", mock.Anything).Return(tenants, nil)
	f.charger.On("AttemptCharge", mock.Anything, mock.Anything).Return(billing.Succeeded("pi_1"), nil)

	summary, err := f.service.RunMonthlyBilling(context.Background())

	require.NoError(t, err)
	assert.Equal(t, RunSummary{Processed: 10, Charged: 20, Month: "2024-03"}, *summary)
	assert.Len(t, f.repo.all(), 20)
}

func TestRunMonthlyBilling_OverlappingRunsKeepOneEntryPerTuple(t *testing.T) {
	f := newServiceFixture(t, DefaultMonthlyBillingConfig())
	tenant, _ := f.withTenant(true, 5000, 2500, 1000)
	f.orgs.On("FindBillingCandidates", mock.Anything).Return([]school.Organization{tenant}, nil)
	f.charger.On("AttemptCharge", mock.Anything, mock.Anything).Return(billing.Succeeded("pi_1"), nil)

	var wg sync.WaitGroup
	summaries := make([]*RunSummary, 2)
	for i := range summaries {
		wg.Add(1)
		go func() {
			defer wg.Done()
			summaries[i], _ = f.service.RunMonthlyBilling(context.Background())
		}()
	}
	wg.Wait()

	entries := f.repo.all()
	assert.Len(t, entries, 3)
	for _, entry := range entries {
		assert.Equal(t, billing.ChargeStatusPaid, entry.Status)
	}
	charged := summaries[0].Charged + summaries[1].Charged
	assert.Equal(t, 3, charged)
}

type fakeRunGuard struct {
	mu       sync.Mutex
	held     map[string]bool
	err      error
	released []string
}

func (g *fakeRunGuard) TryAcquire(_ context.Context, runDate string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return false, g.err
	}
	if g.held[runDate] {
		return false, nil
	}
	g.held[runDate] = true
	return true, nil
}

func (g *fakeRunGuard) Release(_ context.Context, runDate string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.held, runDate)
	g.released = append(g.released, runDate)
	return nil
}

func TestRunMonthlyBilling_RunGuard(t *testing.T) {
	t.Run("rejects overlapping run", func(t *testing.T) {
		guard := &fakeRunGuard{held: map[string]bool{"2024-03-15": true}}
		f := newServiceFixture(t, DefaultMonthlyBillingConfig(), WithRunGuard(guard))

		summary, err := f.service.RunMonthlyBilling(context.Background())

		assert.ErrorIs(t, err, ErrRunInProgress)
		assert.Nil(t, summary)
		f.orgs.AssertNotCalled(t, "FindBillingCandidates", mock.Anything)
	})

	t.Run("releases after run", func(t *testing.T) {
		guard := &fakeRunGuard{held: map[string]bool{}}
		f := newServiceFixture(t, DefaultMonthlyBillingConfig(), WithRunGuard(guard))
		f.orgs.On("FindBillingCandidates", mock.Anything).Return([]school.Organization{}, nil)

		_, err := f.service.RunMonthlyBilling(context.Background())

		require.NoError(t, err)
		assert.Equal(t, []string{"2024-03-15"}, guard.released)
		assert.Empty(t, guard.held)
	})

	t.Run("unavailable guard does not block billing", func(t *testing.T) {
		guard := &fakeRunGuard{held: map[string]bool{}, err: errors.New("redis: connection refused")}
		f := newServiceFixture(t, DefaultMonthlyBillingConfig(), WithRunGuard(guard))
		f.orgs.On("FindBillingCandidates", mock.Anything).Return([]school.Organization{}, nil)

		summary, err := f.service.RunMonthlyBilling(context.Background())

		require.NoError(t, err)
		assert.Equal(t, "2024-03", summary.Month)
		assert.Empty(t, guard.released)
	})
}

type countingRecorder struct {
	mu       sync.Mutex
	attempts map[string]int
	runs     int
}

func (r *countingRecorder) RecordAttempt(_ context.Context, _ uuid.UUID, status string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts[status]++
}

func (r *countingRecorder) RecordRun(context.Context, int, int, int, int, time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs++
}

func TestRunMonthlyBilling_RecordsMetrics(t *testing.T) {
	recorder := &countingRecorder{attempts: map[string]int{}}
	f := newServiceFixture(t, DefaultMonthlyBillingConfig(), WithRunRecorder(recorder))
	tenant, _ := f.withTenant(true, 5000, 1000)
	f.orgs.On("FindBillingCandidates", mock.Anything).Return([]school.Organization{tenant}, nil)
	f.charger.On("AttemptCharge", mock.Anything, mock.MatchedBy(func(req billing.ChargeRequest) bool {
		return req.Amount == 1000
	})).Return(billing.Declined("declined"), nil)
	f.charger.On("AttemptCharge", mock.Anything, mock.Anything).Return(billing.Succeeded("pi_1"), nil)

	_, err := f.service.RunMonthlyBilling(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, recorder.runs)
	assert.Equal(t, 1, recorder.attempts[string(AttemptCharged)])
	assert.Equal(t, 1, recorder.attempts[string(AttemptFailed)])
}

func TestRunMonthlyBilling_MonthFollowsClockLocation(t *testing.T) {
	auckland, err := time.LoadLocation("Pacific/Auckland")
	require.NoError(t, err)

	f := newServiceFixture(t, DefaultMonthlyBillingConfig())
	// 1 April 06:00 in Auckland is still 31 March in UTC
	f.clock.Set(time.Date(2024, time.April, 1, 6, 0, 0, 0, auckland))
	f.orgs.On("FindBillingCandidates", mock.Anything).Return([]school.Organization{}, nil)

	summary, err := f.service.RunMonthlyBilling(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "2024-04", summary.Month)
}
