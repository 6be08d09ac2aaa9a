package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendGridSender_Send(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v3/mail/send", r.URL.Path)
		assert.Equal(t, "Bearer SG.key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	s := NewSendGridSender(SendGridConfig{APIKey: "SG.key", FromEmail: "noreply@x.com", Host: srv.URL}, zerolog.Nop())
	err := s.Send(context.Background(), EmailMessage{To: "a@x.com", Subject: "Booked", Body: "See you"})
	require.NoError(t, err)
	assert.Equal(t, "Booked", got["subject"])
}

func TestSendGridSender_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	s := NewSendGridSender(SendGridConfig{APIKey: "bad", Host: srv.URL}, zerolog.Nop())
	err := s.Send(context.Background(), EmailMessage{To: "a@x.com", Subject: "s", Body: "b"})
	assert.ErrorContains(t, err, "401")
}

func TestNew_FallsBackToLogSender(t *testing.T) {
	var buf bytes.Buffer
	s := New(SendGridConfig{}, zerolog.New(&buf))
	require.IsType(t, &LogSender{}, s)
	require.NoError(t, s.Send(context.Background(), EmailMessage{To: "a@x.com", Subject: "hi"}))
	assert.Contains(t, buf.String(), "a@x.com")

	assert.IsType(t, &SendGridSender{}, New(SendGridConfig{APIKey: "k"}, zerolog.Nop()))
}
