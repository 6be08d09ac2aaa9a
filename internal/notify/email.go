// Package notify sends booking confirmations to patients.
package notify

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// EmailSender defines the interface for sending emails.
type EmailSender interface {
	Send(ctx context.Context, msg EmailMessage) error
}

// EmailMessage represents an email to be sent.
type EmailMessage struct {
	To      string
	ToName  string
	Subject string
	Body    string // plain text body
}

// SendGridConfig holds configuration for SendGrid.
type SendGridConfig struct {
	APIKey    string
	FromEmail string
	FromName  string
	// Host overrides the API host; empty means api.sendgrid.com.
	Host string
}

// SendGridSender sends emails via the SendGrid v3 API.
type SendGridSender struct {
	client    *sendgrid.Client
	fromEmail string
	fromName  string
	log       zerolog.Logger
}

// NewSendGridSender creates a SendGrid sender.
func NewSendGridSender(cfg SendGridConfig, log zerolog.Logger) *SendGridSender {
	if cfg.FromName == "" {
		cfg.FromName = "Doctors Portal"
	}
	client := sendgrid.NewSendClient(cfg.APIKey)
	if cfg.Host != "" {
		req := sendgrid.GetRequest(cfg.APIKey, "/v3/mail/send", cfg.Host)
		req.Method = "POST"
		client = &sendgrid.Client{Request: req}
	}
	return &SendGridSender{client: client, fromEmail: cfg.FromEmail, fromName: cfg.FromName, log: log}
}

// Send sends an email via SendGrid.
func (s *SendGridSender) Send(ctx context.Context, msg EmailMessage) error {
	from := mail.NewEmail(s.fromName, s.fromEmail)
	to := mail.NewEmail(msg.ToName, msg.To)
	message := mail.NewSingleEmail(from, msg.Subject, to, msg.Body, msg.Body)

	response, err := s.client.SendWithContext(ctx, message)
	if err != nil {
		s.log.Error().Err(err).Str("to", msg.To).Msg("sendgrid send failed")
		return fmt.Errorf("notify: sendgrid send failed: %w", err)
	}
	if response.StatusCode >= 400 {
		s.log.Error().Int("status", response.StatusCode).Str("body", response.Body).Str("to", msg.To).
			Msg("sendgrid returned error status")
		return fmt.Errorf("notify: sendgrid returned status %d", response.StatusCode)
	}
	s.log.Info().Str("to", msg.To).Str("subject", msg.Subject).Int("status", response.StatusCode).
		Msg("email sent via sendgrid")
	return nil
}

// LogSender only logs the email.  It is used when no SendGrid key is set.
type LogSender struct {
	log zerolog.Logger
}

func NewLogSender(log zerolog.Logger) *LogSender { return &LogSender{log: log} }

func (s *LogSender) Send(_ context.Context, msg EmailMessage) error {
	s.log.Info().Str("to", msg.To).Str("subject", msg.Subject).Msg("email disabled: would send email")
	return nil
}

// New picks SendGrid when an API key is configured and LogSender otherwise.
func New(cfg SendGridConfig, log zerolog.Logger) EmailSender {
	if cfg.APIKey == "" {
		return NewLogSender(log)
	}
	return NewSendGridSender(cfg, log)
}
