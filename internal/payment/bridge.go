// Package payment creates payment intents with an external provider.  The
// API never moves money itself: the client completes the payment with the
// returned secret and later reports it through POST /payments.
package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/iliyamo/doctors-appointment/internal/config"
)

// Provider names accepted by PAYMENT_PROVIDER.
const (
	ProviderDryRun = "dryrun"
	ProviderStripe = "stripe"
	ProviderOmise  = "omise"
)

// ErrInvalidAmount is returned for non-positive amounts.
var ErrInvalidAmount = errors.New("amount must be positive")

// Intent is a created payment intent.  ClientSecret is handed to the
// browser to complete the payment.
type Intent struct {
	ID           string
	ClientSecret string
	Amount       int64 // cents
	Currency     string
}

// Bridge creates payment intents.
type Bridge interface {
	CreateIntent(ctx context.Context, amountCents int64, currency string) (Intent, error)
}

// New builds the bridge selected by cfg.PaymentProvider.
func New(cfg config.Config, log zerolog.Logger) (Bridge, error) {
	switch strings.ToLower(cfg.PaymentProvider) {
	case "", ProviderDryRun:
		return NewDryRun(log), nil
	case ProviderStripe:
		if cfg.StripeSecretKey == "" {
			return nil, errors.New("payment: STRIPE_SECRET_KEY is required for the stripe provider")
		}
		return NewStripe(cfg.StripeSecretKey, log), nil
	case ProviderOmise:
		return NewOmise(cfg.OmisePublicKey, cfg.OmiseSecretKey)
	default:
		return nil, fmt.Errorf("payment: unknown provider %q", cfg.PaymentProvider)
	}
}
