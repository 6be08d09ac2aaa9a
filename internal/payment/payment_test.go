package payment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/doctors-appointment/internal/config"
)

func TestStripe_CreateIntent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/payment_intents", r.URL.Path)
		assert.Equal(t, "Bearer sk_test_123", r.Header.Get("Authorization"))
		assert.NotEmpty(t, r.Header.Get("Stripe-Version"))
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "4999", r.PostForm.Get("amount"))
		assert.Equal(t, "usd", r.PostForm.Get("currency"))
		assert.Equal(t, []string{"card"}, r.PostForm["payment_method_types[]"])

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":            "pi_123",
			"client_secret": "pi_123_secret_abc",
			"amount":        4999,
			"currency":      "usd",
		})
	}))
	defer srv.Close()

	s := NewStripe("sk_test_123", zerolog.Nop()).WithBaseURL(srv.URL + "/")
	in, err := s.CreateIntent(context.Background(), 4999, "USD")
	require.NoError(t, err)
	assert.Equal(t, Intent{ID: "pi_123", ClientSecret: "pi_123_secret_abc", Amount: 4999, Currency: "usd"}, in)
}

func TestStripe_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		_, _ = w.Write([]byte(`{"error":{"message":"Your card was declined.","type":"card_error"}}`))
	}))
	defer srv.Close()

	_, err := NewStripe("sk", zerolog.Nop()).WithBaseURL(srv.URL).CreateIntent(context.Background(), 100, "usd")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "402")
	assert.Contains(t, err.Error(), "declined")
}

func TestStripe_RejectsNonPositiveAmount(t *testing.T) {
	_, err := NewStripe("sk", zerolog.Nop()).CreateIntent(context.Background(), 0, "usd")
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestDryRun_CreateIntent(t *testing.T) {
	in, err := NewDryRun(zerolog.Nop()).CreateIntent(context.Background(), 250, "EUR")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(in.ID, "pi_dryrun_"))
	assert.True(t, strings.HasPrefix(in.ClientSecret, in.ID))
	assert.Equal(t, "eur", in.Currency)

	_, err = NewDryRun(zerolog.Nop()).CreateIntent(context.Background(), -5, "usd")
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestNew_SelectsProvider(t *testing.T) {
	b, err := New(config.Config{PaymentProvider: ""}, zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, &DryRun{}, b)

	b, err = New(config.Config{PaymentProvider: "stripe", StripeSecretKey: "sk"}, zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, &Stripe{}, b)

	_, err = New(config.Config{PaymentProvider: "stripe"}, zerolog.Nop())
	assert.Error(t, err)

	b, err = New(config.Config{
		PaymentProvider: "omise",
		OmisePublicKey:  "pkey_test_123",
		OmiseSecretKey:  "skey_test_123",
	}, zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, &Omise{}, b)

	_, err = New(config.Config{PaymentProvider: "omise", OmisePublicKey: "bogus"}, zerolog.Nop())
	assert.Error(t, err)

	_, err = New(config.Config{PaymentProvider: "paypal"}, zerolog.Nop())
	assert.Error(t, err)
}

func newTestOmise(t *testing.T, url string) *Omise {
	t.Helper()
	o, err := NewOmise("pkey_test_123", "skey_test_123")
	require.NoError(t, err)
	return o.WithBaseURL(url)
}

func TestOmise_CreateIntent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/sources", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "promptpay", body["type"])
		assert.EqualValues(t, 4999, body["amount"])
		assert.Equal(t, "thb", body["currency"])

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object":   "source",
			"id":       "src_test_123",
			"type":     "promptpay",
			"amount":   4999,
			"currency": "thb",
		})
	}))
	defer srv.Close()

	in, err := newTestOmise(t, srv.URL).CreateIntent(context.Background(), 4999, "THB")
	require.NoError(t, err)
	assert.Equal(t, "src_test_123", in.ID)
	assert.Equal(t, "src_test_123", in.ClientSecret)
	assert.Equal(t, int64(4999), in.Amount)
}

func TestOmise_HonorsContextDeadline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := newTestOmise(t, srv.URL).CreateIntent(ctx, 100, "thb")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestOmise_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"object":"error","code":"authentication_failure","message":"bad key"}`))
	}))
	defer srv.Close()

	_, err := newTestOmise(t, srv.URL).CreateIntent(context.Background(), 100, "thb")
	assert.Error(t, err)

	_, err = newTestOmise(t, srv.URL).CreateIntent(context.Background(), 0, "thb")
	assert.ErrorIs(t, err, ErrInvalidAmount)
}
