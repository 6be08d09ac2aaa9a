// Package service holds the booking workflow, admin promotion and the
// event publisher they notify.
package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/iliyamo/doctors-appointment/internal/metrics"
	"github.com/iliyamo/doctors-appointment/internal/model"
	"github.com/iliyamo/doctors-appointment/internal/queue"
	"github.com/iliyamo/doctors-appointment/internal/repository"
)

// AvailabilityRoutes are the cached routes whose answers change when a
// booking is created.
var AvailabilityRoutes = []string{"/appointmentOptions", "/v2/appointmentOptions"}

var (
	// ErrInvalidBooking wraps validation failures of a booking request.
	ErrInvalidBooking = errors.New("invalid booking")
	// ErrInvalidPayment wraps validation failures of a payment confirmation.
	ErrInvalidPayment = errors.New("invalid payment")
)

// EventPublisher delivers booking events to the broker.
type EventPublisher interface {
	PublishBookingCreated(ctx context.Context, ev queue.BookingCreatedEvent) error
	PublishBookingPaid(ctx context.Context, ev queue.BookingPaidEvent) error
}

// CacheInvalidator drops cached responses of routes.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, routes ...string) error
}

// BookingOptions configures a BookingService.  Every collaborator is
// optional; a nil one is skipped.
type BookingOptions struct {
	Publisher    EventPublisher
	Cache        CacheInvalidator
	Metrics      *metrics.Metrics
	Logger       zerolog.Logger
	Currency     string
	UpsertOnMiss bool
}

// BookingService creates bookings and records their payments.
type BookingService struct {
	db       *sql.DB
	bookings *repository.BookingRepo
	payments *repository.PaymentRepo
	opts     BookingOptions

	// events tracks in-flight publishes so shutdown can drain them.
	events sync.WaitGroup
}

func NewBookingService(db *sql.DB, bookings *repository.BookingRepo, payments *repository.PaymentRepo, opts BookingOptions) *BookingService {
	if opts.Currency == "" {
		opts.Currency = "usd"
	}
	return &BookingService{db: db, bookings: bookings, payments: payments, opts: opts}
}

// CreateResult is the acknowledgement returned for a booking request.  A
// duplicate is a soft rejection: Acknowledged is false and Message names
// the conflicting date.
type CreateResult struct {
	Acknowledged bool   `json:"acknowledged"`
	Message      string `json:"message,omitempty"`
	InsertedID   string `json:"insertedId,omitempty"`
}

// Create validates and stores b.  Uniqueness of (treatment, date, email)
// is left to the store's unique key, so concurrent identical requests
// cannot both succeed.  Emails compare case-insensitively: b.Email is
// stored trimmed and lower-cased.
func (s *BookingService) Create(ctx context.Context, b *model.Booking) (CreateResult, error) {
	b.Treatment = strings.TrimSpace(b.Treatment)
	b.AppointmentDate = strings.TrimSpace(b.AppointmentDate)
	b.Slot = strings.TrimSpace(b.Slot)
	b.Email = strings.TrimSpace(b.Email)

	var missing []string
	for _, f := range []struct{ name, val string }{
		{"treatment", b.Treatment},
		{"appointmentDate", b.AppointmentDate},
		{"slot", b.Slot},
		{"email", b.Email},
	} {
		if f.val == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return CreateResult{}, fmt.Errorf("%w: %s required", ErrInvalidBooking, strings.Join(missing, ", "))
	}
	if b.Price < 0 {
		return CreateResult{}, fmt.Errorf("%w: price must not be negative", ErrInvalidBooking)
	}

	b.ID = ""
	err := s.bookings.Create(ctx, b)
	if errors.Is(err, repository.ErrDuplicateBooking) {
		s.opts.Metrics.ObserveBooking(metrics.BookingDuplicate)
		return CreateResult{
			Acknowledged: false,
			Message:      "Already booked an appointment on " + b.AppointmentDate,
		}, nil
	}
	if err != nil {
		return CreateResult{}, fmt.Errorf("create booking: %w", err)
	}
	s.opts.Metrics.ObserveBooking(metrics.BookingCreated)
	s.invalidateAvailability(ctx)

	ev := queue.BookingCreatedEvent{
		BookingID:       b.ID,
		Treatment:       b.Treatment,
		AppointmentDate: b.AppointmentDate,
		Slot:            b.Slot,
		Patient:         b.Patient,
		Email:           b.Email,
		PriceCents:      b.Price,
		CreatedAt:       time.Now().UTC().Format(time.RFC3339),
	}
	s.emit(func(ctx context.Context, pub EventPublisher) error { return pub.PublishBookingCreated(ctx, ev) })

	return CreateResult{Acknowledged: true, InsertedID: b.ID}, nil
}

// PaymentInput is a payment confirmation referencing a booking.
type PaymentInput struct {
	BookingID     string `json:"bookingId"`
	TransactionID string `json:"transactionId"`
	Amount        int64  `json:"price"`
	Currency      string `json:"currency"`
	Email         string `json:"email"`
}

// MarkPaidResult acknowledges a recorded payment.
type MarkPaidResult struct {
	Acknowledged bool   `json:"acknowledged"`
	InsertedID   string `json:"insertedId"`
	BookingID    string `json:"bookingId"`
	Upserted     bool   `json:"upserted"`
}

// MarkPaid records the payment and flips the booking's paid flag in one
// transaction.  When the booking does not exist the transaction is rolled
// back with repository.ErrBookingNotFound, unless upsert-on-miss is
// enabled, in which case a bare paid booking is created under that id.
func (s *BookingService) MarkPaid(ctx context.Context, in PaymentInput) (MarkPaidResult, error) {
	in.BookingID = strings.TrimSpace(in.BookingID)
	in.TransactionID = strings.TrimSpace(in.TransactionID)
	if in.BookingID == "" || in.TransactionID == "" {
		return MarkPaidResult{}, fmt.Errorf("%w: bookingId and transactionId required", ErrInvalidPayment)
	}
	if in.Amount < 0 {
		return MarkPaidResult{}, fmt.Errorf("%w: price must not be negative", ErrInvalidPayment)
	}
	if in.Currency == "" {
		in.Currency = s.opts.Currency
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return MarkPaidResult{}, fmt.Errorf("begin: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	p := model.Payment{
		BookingID:     in.BookingID,
		Amount:        in.Amount,
		Currency:      strings.ToLower(in.Currency),
		TransactionID: in.TransactionID,
		Email:         strings.ToLower(strings.TrimSpace(in.Email)),
	}
	if err := s.payments.CreateTx(ctx, tx, &p); err != nil {
		return MarkPaidResult{}, fmt.Errorf("insert payment: %w", err)
	}

	found, err := s.bookings.MarkPaidTx(ctx, tx, in.BookingID)
	if err != nil {
		return MarkPaidResult{}, fmt.Errorf("mark paid: %w", err)
	}
	upserted := false
	if !found {
		if !s.opts.UpsertOnMiss {
			return MarkPaidResult{}, repository.ErrBookingNotFound
		}
		if err := s.bookings.InsertPaidTx(ctx, tx, in.BookingID); err != nil {
			return MarkPaidResult{}, fmt.Errorf("upsert booking: %w", err)
		}
		upserted = true
	}

	if err := tx.Commit(); err != nil {
		return MarkPaidResult{}, fmt.Errorf("commit: %w", err)
	}
	committed = true
	s.opts.Metrics.ObservePayment()

	ev := queue.BookingPaidEvent{
		BookingID:     in.BookingID,
		PaymentID:     p.ID,
		TransactionID: p.TransactionID,
		AmountCents:   p.Amount,
		Currency:      p.Currency,
		Email:         p.Email,
		Upserted:      upserted,
		PaidAt:        time.Now().UTC().Format(time.RFC3339),
	}
	s.emit(func(ctx context.Context, pub EventPublisher) error { return pub.PublishBookingPaid(ctx, ev) })

	return MarkPaidResult{Acknowledged: true, InsertedID: p.ID, BookingID: in.BookingID, Upserted: upserted}, nil
}

// Wait blocks until every in-flight event publish has finished.
func (s *BookingService) Wait() { s.events.Wait() }

// emit publishes in the background so a slow or absent broker never delays
// the response.  Failures are logged by the publisher.
func (s *BookingService) emit(send func(context.Context, EventPublisher) error) {
	if s.opts.Publisher == nil {
		return
	}
	s.events.Add(1)
	go func() {
		defer s.events.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := send(ctx, s.opts.Publisher); err != nil {
			s.opts.Logger.Debug().Err(err).Msg("event not published")
		}
	}()
}

func (s *BookingService) invalidateAvailability(ctx context.Context) {
	if s.opts.Cache == nil {
		return
	}
	if err := s.opts.Cache.Invalidate(ctx, AvailabilityRoutes...); err != nil {
		s.opts.Logger.Warn().Err(err).Msg("availability cache invalidation failed")
	}
}
