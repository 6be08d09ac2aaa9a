package payment

import (
	"context"
	"fmt"
	"strings"

	"github.com/omise/omise-go"
	"github.com/omise/omise-go/operations"
)

// Omise creates PromptPay sources with the Omise SDK.  The source id plays
// the role of the client secret: the browser charges against it.
type Omise struct {
	publicKey string
	secretKey string
	baseURL   string
}

// NewOmise builds an Omise bridge from a key pair.  The keys are checked
// up front so a misconfigured provider fails at startup.
func NewOmise(publicKey, secretKey string) (*Omise, error) {
	if _, err := omise.NewClient(publicKey, secretKey); err != nil {
		return nil, fmt.Errorf("payment: omise client: %w", err)
	}
	return &Omise{publicKey: publicKey, secretKey: secretKey}, nil
}

// WithBaseURL points the bridge at another API host, e.g. a test server.
func (o *Omise) WithBaseURL(u string) *Omise {
	o.baseURL = strings.TrimSuffix(u, "/")
	return o
}

// client returns a fresh SDK client bound to ctx.  omise.Client keeps the
// context as a field, so a shared client cannot serve concurrent calls.
func (o *Omise) client(ctx context.Context) (*omise.Client, error) {
	c, err := omise.NewClient(o.publicKey, o.secretKey)
	if err != nil {
		return nil, err
	}
	if o.baseURL != "" {
		c.Endpoints["https://api.omise.co"] = o.baseURL
	}
	c.WithContext(ctx)
	return c, nil
}

func (o *Omise) CreateIntent(ctx context.Context, amountCents int64, currency string) (Intent, error) {
	if amountCents <= 0 {
		return Intent{}, ErrInvalidAmount
	}
	c, err := o.client(ctx)
	if err != nil {
		return Intent{}, fmt.Errorf("payment: omise client: %w", err)
	}
	src := &omise.Source{}
	req := &operations.CreateSource{
		Type:     "promptpay",
		Amount:   amountCents,
		Currency: strings.ToLower(currency),
	}
	if err := c.Do(src, req); err != nil {
		return Intent{}, fmt.Errorf("payment: omise create source: %w", err)
	}
	return Intent{
		ID:           src.ID,
		ClientSecret: src.ID,
		Amount:       src.Amount,
		Currency:     src.Currency,
	}, nil
}
