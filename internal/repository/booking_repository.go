package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/iliyamo/doctors-appointment/internal/model"
)

// BookingRepo provides access to the bookings table.  Bookings are inserted
// once, flipped to paid at most once and never deleted.  The unique key on
// (treatment_name, appointment_date, email) is what enforces "one booking
// per treatment per day per patient"; Create maps a violation of it to
// ErrDuplicateBooking.
//
// All columns except id and paid are nullable because a payment recorded
// against an unknown booking id may create a bare row when upsert-on-miss
// is enabled.  Readers therefore scan through sql.Null* values.
type BookingRepo struct {
	db *sql.DB
}

// NewBookingRepo returns a BookingRepo bound to the given database.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

const bookingColumns = `id, treatment_name, appointment_date, slot, patient, email, phone, price_cents, paid`

// Create inserts b with paid=false.  A new id is generated when b.ID is
// empty.  ErrDuplicateBooking is returned when the patient already holds a
// booking for the same treatment on the same date; nothing is written then.
// The email is trimmed and lower-cased before it is stored, so "A@x.com"
// and "a@x.com" are the same patient.
func (r *BookingRepo) Create(ctx context.Context, b *model.Booking) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	b.Email = normalizeEmail(b.Email)
	b.Paid = false
	const q = `INSERT INTO bookings (id, treatment_name, appointment_date, slot, patient, email, phone, price_cents, paid)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0)`
	_, err := r.db.ExecContext(ctx, q,
		b.ID, b.Treatment, b.AppointmentDate, b.Slot, b.Patient, b.Email, b.Phone, b.Price)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateBooking
		}
		return err
	}
	return nil
}

// ListByDate returns the bookings whose appointment date equals date.  A nil
// date compares against NULL and therefore returns no bookings.
func (r *BookingRepo) ListByDate(ctx context.Context, date *string) ([]model.Booking, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+bookingColumns+" FROM bookings WHERE appointment_date = ? ORDER BY treatment_name, slot",
		nullable(date))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanBookings(rows)
}

// ListByEmail returns every booking made by email.
func (r *BookingRepo) ListByEmail(ctx context.Context, email string) ([]model.Booking, error) {
	email = normalizeEmail(email)
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+bookingColumns+" FROM bookings WHERE email = ? ORDER BY appointment_date, treatment_name",
		email)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanBookings(rows)
}

// GetByID fetches a single booking or returns ErrBookingNotFound.
func (r *BookingRepo) GetByID(ctx context.Context, id string) (model.Booking, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+bookingColumns+" FROM bookings WHERE id = ? LIMIT 1", id)
	b, err := scanBooking(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Booking{}, ErrBookingNotFound
	}
	return b, err
}

// MarkPaidTx sets paid=1 on the booking with the given id inside tx.  It
// reports whether a booking matched; marking an already paid booking still
// counts as a match.
func (r *BookingRepo) MarkPaidTx(ctx context.Context, tx *sql.Tx, id string) (bool, error) {
	res, err := tx.ExecContext(ctx, "UPDATE bookings SET paid = 1 WHERE id = ?", id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// InsertPaidTx creates a bare booking that carries only its id and paid=1.
// It backs the upsert-on-miss payment policy.
func (r *BookingRepo) InsertPaidTx(ctx context.Context, tx *sql.Tx, id string) error {
	_, err := tx.ExecContext(ctx, "INSERT INTO bookings (id, paid) VALUES (?, 1)", id)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBooking(s rowScanner) (model.Booking, error) {
	var (
		b                                          model.Booking
		treatment, date, slot, patient, email, tel sql.NullString
		price                                      sql.NullInt64
		paid                                       int64
	)
	if err := s.Scan(&b.ID, &treatment, &date, &slot, &patient, &email, &tel, &price, &paid); err != nil {
		return model.Booking{}, err
	}
	b.Treatment = treatment.String
	b.AppointmentDate = date.String
	b.Slot = slot.String
	b.Patient = patient.String
	b.Email = email.String
	b.Phone = tel.String
	b.Price = price.Int64
	b.Paid = paid != 0
	return b, nil
}

func scanBookings(rows *sql.Rows) ([]model.Booking, error) {
	out := []model.Booking{}
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
