package billing

import (
	"context"
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/paymentintent"
	"go.uber.org/zap"

	domain "github.com/schoolpay/backend/internal/domain/billing"
	"github.com/schoolpay/backend/internal/infrastructure/config"
)

// StripeCharger charges a guardian's saved card off-session with a
// PaymentIntent created and confirmed on the tenant's connected account.
type StripeCharger struct {
	intents *paymentintent.Client
	logger  *zap.Logger
}

// NewStripeCharger creates a new StripeCharger
func NewStripeCharger(cfg *config.StripeConfig, logger *zap.Logger) (*StripeCharger, error) {
	intents, err := newPaymentIntentClient(cfg)
	if err != nil {
		return nil, err
	}
	return &StripeCharger{
		intents: intents,
		logger:  logger,
	}, nil
}

// AttemptCharge creates and confirms one off-session PaymentIntent. When the
// request names an unconfirmed PaymentIntent from an earlier attempt, that
// intent is retrieved instead and nothing new is charged.
// Card errors and other API errors come back as outcomes; an error is only
// returned when Stripe could not be reached at all.
func (c *StripeCharger) AttemptCharge(ctx context.Context, req domain.ChargeRequest) (domain.ChargeOutcome, error) {
	if req.UnconfirmedTransactionRef != "" {
		return c.resolveUnconfirmed(ctx, req)
	}

	params := buildPaymentIntentParams(ctx, req)

	c.logger.Debug("Creating off-session PaymentIntent",
		zap.String("tenant_id", req.TenantID.String()),
		zap.String("connected_account", req.TenantAccountID),
		zap.String("customer_id", req.GuardianCustomerID),
		zap.Int64("amount", req.Amount),
		zap.String("idempotency_key", req.IdempotencyKey))

	pi, err := c.intents.New(params)
	if err != nil {
		return c.outcomeFromError(req, err)
	}

	outcome := outcomeFromPaymentIntent(pi)
	c.logger.Info("Off-session PaymentIntent confirmed",
		zap.String("tenant_id", req.TenantID.String()),
		zap.String("payment_intent_id", pi.ID),
		zap.String("status", string(pi.Status)),
		zap.String("outcome", outcome.Kind.String()))
	return outcome, nil
}

// resolveUnconfirmed reads the current state of a PaymentIntent that an
// earlier attempt left processing.
func (c *StripeCharger) resolveUnconfirmed(ctx context.Context, req domain.ChargeRequest) (domain.ChargeOutcome, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	params.SetStripeAccount(req.TenantAccountID)

	pi, err := c.intents.Get(req.UnconfirmedTransactionRef, params)
	if err != nil {
		return c.outcomeFromError(req, err)
	}

	outcome := outcomeFromPaymentIntent(pi)
	c.logger.Info("Unconfirmed PaymentIntent retrieved",
		zap.String("tenant_id", req.TenantID.String()),
		zap.String("payment_intent_id", pi.ID),
		zap.String("status", string(pi.Status)),
		zap.String("outcome", outcome.Kind.String()))
	return outcome, nil
}

func (c *StripeCharger) outcomeFromError(req domain.ChargeRequest, err error) (domain.ChargeOutcome, error) {
	var stripeErr *stripe.Error
	if !errors.As(err, &stripeErr) {
		return domain.ChargeOutcome{}, fmt.Errorf("stripe: payment intent request failed: %w", err)
	}
	outcome := outcomeFromStripeError(stripeErr)
	c.logger.Warn("Stripe rejected off-session charge",
		zap.String("tenant_id", req.TenantID.String()),
		zap.String("error_type", string(stripeErr.Type)),
		zap.String("code", string(stripeErr.Code)),
		zap.String("decline_code", string(stripeErr.DeclineCode)),
		zap.String("request_id", stripeErr.RequestID),
		zap.String("outcome", outcome.Kind.String()))
	return outcome, nil
}

func buildPaymentIntentParams(ctx context.Context, req domain.ChargeRequest) *stripe.PaymentIntentParams {
	params := &stripe.PaymentIntentParams{
		Amount:             stripe.Int64(req.Amount),
		Currency:           stripe.String(req.Currency),
		Customer:           stripe.String(req.GuardianCustomerID),
		PaymentMethod:      stripe.String(req.PaymentMethodID),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		Confirm:            stripe.Bool(true),
		OffSession:         stripe.Bool(true),
	}
	if req.Description != "" {
		params.Description = stripe.String(req.Description)
	}
	params.Context = ctx
	params.SetStripeAccount(req.TenantAccountID)
	params.SetIdempotencyKey(req.IdempotencyKey)
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}
	return params
}

// outcomeFromStripeError maps an API error. A card error is a decline. An
// api_error is a failure inside Stripe that may have happened after the
// payment was taken, so it is left unconfirmed. Any other type rejected the
// request before a charge was made.
func outcomeFromStripeError(err *stripe.Error) domain.ChargeOutcome {
	reason := err.Msg
	if reason == "" {
		reason = string(err.Code)
	}
	switch err.Type {
	case stripe.ErrorTypeCard:
		return domain.Declined(reason)
	case stripe.ErrorTypeAPI:
		return domain.Unconfirmed("", reason)
	}
	return domain.TransientError(reason)
}

func outcomeFromPaymentIntent(pi *stripe.PaymentIntent) domain.ChargeOutcome {
	switch pi.Status {
	case stripe.PaymentIntentStatusSucceeded:
		return domain.Succeeded(pi.ID)
	case stripe.PaymentIntentStatusProcessing:
		return domain.Unconfirmed(pi.ID, fmt.Sprintf("Payment %s is still processing", pi.ID))
	case stripe.PaymentIntentStatusRequiresAction:
		return domain.Declined(fmt.Sprintf("Payment %s requires cardholder authentication", pi.ID))
	}
	if pi.LastPaymentError != nil && pi.LastPaymentError.Msg != "" {
		return domain.Declined(pi.LastPaymentError.Msg)
	}
	return domain.Declined(fmt.Sprintf("Payment %s ended in status %s", pi.ID, pi.Status))
}

// Ensure StripeCharger implements the interface
var _ domain.OffSessionCharger = (*StripeCharger)(nil)
