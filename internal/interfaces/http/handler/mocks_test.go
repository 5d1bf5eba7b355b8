package handler

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	billingapp "github.com/schoolpay/backend/internal/application/billing"
	"github.com/schoolpay/backend/internal/domain/billing"
	"github.com/schoolpay/backend/internal/interfaces/http/dto"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// MockBillingRunner implements BillingRunner for testing
type MockBillingRunner struct {
	mock.Mock
}

func (m *MockBillingRunner) RunMonthlyBilling(ctx context.Context) (*billingapp.RunSummary, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billingapp.RunSummary), args.Error(1)
}

// MockChargeLedgerReader implements ChargeLedgerReader for testing
type MockChargeLedgerReader struct {
	mock.Mock
}

func (m *MockChargeLedgerReader) Find(ctx context.Context, filter billing.ChargeFilter) ([]billing.MonthlyCharge, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]billing.MonthlyCharge), args.Error(1)
}

// MockDatabasePinger implements DatabasePinger for testing
type MockDatabasePinger struct {
	mock.Mock
}

func (m *MockDatabasePinger) Ping() error {
	return m.Called().Error(0)
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) dto.Response {
	t.Helper()
	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}
