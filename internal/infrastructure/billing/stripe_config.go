package billing

import (
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/paymentintent"

	"github.com/schoolpay/backend/internal/infrastructure/config"
)

// newPaymentIntentClient builds a PaymentIntent client on the process-wide
// API backend, so tests can swap the backend with stripe.SetBackend.
func newPaymentIntentClient(cfg *config.StripeConfig) (*paymentintent.Client, error) {
	if cfg == nil || cfg.SecretKey == "" {
		return nil, fmt.Errorf("stripe: secret key is required")
	}
	if cfg.IsTestMode && !strings.HasPrefix(cfg.SecretKey, "sk_test") {
		return nil, fmt.Errorf("stripe: test mode enabled but secret key is not a test key")
	}
	if !cfg.IsTestMode && !strings.HasPrefix(cfg.SecretKey, "sk_live") {
		return nil, fmt.Errorf("stripe: live mode enabled but secret key is not a live key")
	}

	return &paymentintent.Client{
		B:   stripe.GetBackend(stripe.APIBackend),
		Key: cfg.SecretKey,
	}, nil
}
