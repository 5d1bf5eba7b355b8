package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/schoolpay/backend/internal/domain/billing"
	"github.com/schoolpay/backend/internal/infrastructure/logger"
	"github.com/schoolpay/backend/internal/interfaces/http/dto"
	"github.com/schoolpay/backend/internal/interfaces/http/middleware"
)

// ChargeLedgerReader lists ledger entries
type ChargeLedgerReader interface {
	Find(ctx context.Context, filter billing.ChargeFilter) ([]billing.MonthlyCharge, error)
}

// ChargeLedgerHandler serves read access to the monthly charge ledger
type ChargeLedgerHandler struct {
	BaseHandler
	charges ChargeLedgerReader
}

// NewChargeLedgerHandler creates a new ChargeLedgerHandler
func NewChargeLedgerHandler(charges ChargeLedgerReader) *ChargeLedgerHandler {
	return &ChargeLedgerHandler{charges: charges}
}

// List returns a tenant's charges for a month, optionally filtered by status
func (h *ChargeLedgerHandler) List(c *gin.Context) {
	var q dto.ChargeLedgerQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	// Both were validated by the binding tags
	tenantID, err := uuid.Parse(q.TenantID)
	if err != nil {
		h.BadRequest(c, "Invalid tenant_id")
		return
	}
	month, err := billing.ParseBillingMonth(q.Month)
	if err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	charges, err := h.charges.Find(c.Request.Context(), billing.ChargeFilter{
		TenantID: tenantID,
		Month:    month,
		Status:   billing.ChargeStatus(q.Status),
	})
	if err != nil {
		logger.GetGinLogger(c).Error("Failed to list monthly charges",
			zap.String("tenant_id", tenantID.String()),
			zap.String("month", month.String()),
			zap.Error(err))
		h.HandleError(c, err)
		return
	}

	h.Success(c, dto.NewChargeLedgerResponse(tenantID, month, charges))
}
