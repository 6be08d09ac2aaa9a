package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Stripe creates PaymentIntents through the Stripe REST API.
type Stripe struct {
	secretKey  string
	baseURL    string
	apiVersion string
	httpClient *http.Client
	log        zerolog.Logger
}

// NewStripe returns a Stripe bridge authenticated with secretKey.
func NewStripe(secretKey string, log zerolog.Logger) *Stripe {
	return &Stripe{
		secretKey:  secretKey,
		baseURL:    "https://api.stripe.com",
		apiVersion: "2024-12-18.acacia",
		httpClient: &http.Client{Timeout: 10 * time.Second},
		log:        log,
	}
}

// WithBaseURL overrides the Stripe API base URL (for testing).
func (s *Stripe) WithBaseURL(baseURL string) *Stripe {
	if baseURL != "" {
		s.baseURL = strings.TrimRight(baseURL, "/")
	}
	return s
}

// stripePaymentIntent is the subset of Stripe's PaymentIntent we need.
type stripePaymentIntent struct {
	ID           string `json:"id"`
	ClientSecret string `json:"client_secret"`
	Amount       int64  `json:"amount"`
	Currency     string `json:"currency"`
}

// stripeErrorResponse represents a Stripe API error.
type stripeErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

func (s *Stripe) CreateIntent(ctx context.Context, amountCents int64, currency string) (Intent, error) {
	if amountCents <= 0 {
		return Intent{}, ErrInvalidAmount
	}
	currency = strings.ToLower(currency)

	form := url.Values{}
	form.Set("amount", strconv.FormatInt(amountCents, 10))
	form.Set("currency", currency)
	form.Add("payment_method_types[]", "card")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/v1/payment_intents", strings.NewReader(form.Encode()))
	if err != nil {
		return Intent{}, fmt.Errorf("payment: stripe request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.secretKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Stripe-Version", s.apiVersion)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return Intent{}, fmt.Errorf("payment: stripe http: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(resp.Body)
		var se stripeErrorResponse
		if json.Unmarshal(body, &se) == nil && se.Error.Message != "" {
			return Intent{}, fmt.Errorf("payment: stripe api status %d: %s", resp.StatusCode, se.Error.Message)
		}
		return Intent{}, fmt.Errorf("payment: stripe api status %d: %s", resp.StatusCode, string(body))
	}

	var parsed stripePaymentIntent
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return Intent{}, fmt.Errorf("payment: stripe decode: %w", err)
	}
	if parsed.ClientSecret == "" {
		return Intent{}, fmt.Errorf("payment: stripe response missing client secret")
	}
	s.log.Debug().Str("intent_id", parsed.ID).Int64("amount_cents", amountCents).Msg("stripe intent created")

	return Intent{
		ID:           parsed.ID,
		ClientSecret: parsed.ClientSecret,
		Amount:       amountCents,
		Currency:     currency,
	}, nil
}
