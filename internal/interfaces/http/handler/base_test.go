package handler

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	billingapp "github.com/schoolpay/backend/internal/application/billing"
	"github.com/schoolpay/backend/internal/domain/billing"
	"github.com/schoolpay/backend/internal/domain/shared"
	"github.com/schoolpay/backend/internal/infrastructure/logger"
	"github.com/schoolpay/backend/internal/interfaces/http/dto"
)

func TestBaseHandler_HandleError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantStatus  int
		wantCode    string
		wantMessage string
	}{
		{
			name:        "not found",
			err:         shared.ErrNotFound,
			wantStatus:  http.StatusNotFound,
			wantCode:    dto.ErrCodeNotFound,
			wantMessage: shared.ErrNotFound.Message,
		},
		{
			name:        "wrapped run in progress",
			err:         fmt.Errorf("trigger: %w", billingapp.ErrRunInProgress),
			wantStatus:  http.StatusConflict,
			wantCode:    dto.ErrCodeBillingRunInProgress,
			wantMessage: billingapp.ErrRunInProgress.Message,
		},
		{
			name:        "charge already paid",
			err:         billing.ErrChargeAlreadyPaid,
			wantStatus:  http.StatusConflict,
			wantCode:    dto.ErrCodeChargeAlreadyPaid,
			wantMessage: billing.ErrChargeAlreadyPaid.Message,
		},
		{
			name:        "plain error hides details",
			err:         errors.New("pq: connection refused"),
			wantStatus:  http.StatusInternalServerError,
			wantCode:    dto.ErrCodeInternal,
			wantMessage: "An unexpected error occurred",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
			c.Set(logger.RequestIDContextKey, "req-42")

			h := &BaseHandler{}
			h.HandleError(c, tt.err)

			assert.Equal(t, tt.wantStatus, w.Code)
			resp := decodeEnvelope(t, w)
			assert.False(t, resp.Success)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.wantCode, resp.Error.Code)
			assert.Equal(t, tt.wantMessage, resp.Error.Message)
			assert.Equal(t, "req-42", resp.Error.RequestID)
		})
	}
}

func TestBaseHandler_HandleErrorNil(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	h := &BaseHandler{}
	h.HandleError(c, nil)

	assert.Empty(t, w.Body.String())
}
