package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	billingapp "github.com/schoolpay/backend/internal/application/billing"
	"github.com/schoolpay/backend/internal/infrastructure/logger"
)

// BillingRunner runs one billing pass
type BillingRunner interface {
	RunMonthlyBilling(ctx context.Context) (*billingapp.RunSummary, error)
}

// BillingRunHandler exposes the billing run to an external scheduler
type BillingRunHandler struct {
	BaseHandler
	runner     BillingRunner
	runTimeout time.Duration
}

// BillingRunHandlerOption configures a BillingRunHandler
type BillingRunHandlerOption func(*BillingRunHandler)

// WithRunTimeout bounds a triggered run. Zero leaves the run unbounded.
func WithRunTimeout(d time.Duration) BillingRunHandlerOption {
	return func(h *BillingRunHandler) {
		h.runTimeout = d
	}
}

// NewBillingRunHandler creates a new BillingRunHandler
func NewBillingRunHandler(runner BillingRunner, opts ...BillingRunHandlerOption) *BillingRunHandler {
	h := &BillingRunHandler{runner: runner}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run bills every tenant whose billing day is today and retries unpaid
// charges of the month, then returns the run summary unwrapped.
// The run is detached from the request: a scheduler that disconnects or
// times out does not abort charges already in flight.
func (h *BillingRunHandler) Run(c *gin.Context) {
	log := logger.GetGinLogger(c)

	ctx := context.WithoutCancel(c.Request.Context())
	if h.runTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.runTimeout)
		defer cancel()
	}

	summary, err := h.runner.RunMonthlyBilling(ctx)
	if err != nil {
		if errors.Is(err, billingapp.ErrRunInProgress) {
			log.Info("Billing run rejected, another run is in progress")
			h.HandleError(c, err)
			return
		}
		log.Error("Billing run failed to start", zap.Error(err))
		h.InternalError(c, "Billing run failed")
		return
	}

	log.Info("Billing run finished",
		zap.String("month", summary.Month),
		zap.Int("processed", summary.Processed),
		zap.Int("charged", summary.Charged),
		zap.Int("failed", summary.Failed),
		zap.Int("skipped", summary.Skipped),
	)
	c.JSON(http.StatusOK, summary)
}
