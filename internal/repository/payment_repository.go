package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/iliyamo/doctors-appointment/internal/model"
)

// PaymentRepo stores payment records.  A payment is written once, in the
// transaction that marks its booking paid, and is never updated.
type PaymentRepo struct {
	db *sql.DB
}

// NewPaymentRepo returns a PaymentRepo bound to the given database.
func NewPaymentRepo(db *sql.DB) *PaymentRepo { return &PaymentRepo{db: db} }

// CreateTx inserts p within tx, generating p.ID when empty.  The caller
// must commit or roll back the transaction.
func (r *PaymentRepo) CreateTx(ctx context.Context, tx *sql.Tx, p *model.Payment) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	const q = `INSERT INTO payments (id, booking_id, amount_cents, currency, transaction_id, email)
		VALUES (?, ?, ?, ?, ?, ?)`
	_, err := tx.ExecContext(ctx, q, p.ID, p.BookingID, p.Amount, p.Currency, p.TransactionID, p.Email)
	return err
}

// ListByBooking returns the payments recorded against a booking.
func (r *PaymentRepo) ListByBooking(ctx context.Context, bookingID string) ([]model.Payment, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, booking_id, amount_cents, currency, transaction_id, email
		FROM payments WHERE booking_id = ? ORDER BY id`, bookingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Payment{}
	for rows.Next() {
		var p model.Payment
		if err := rows.Scan(&p.ID, &p.BookingID, &p.Amount, &p.Currency, &p.TransactionID, &p.Email); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
