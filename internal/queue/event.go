// Package queue defines message payloads exchanged over the message broker
// and the worker that consumes them.
package queue

// Queue names.  Both are durable queues on the default exchange; the
// routing key equals the queue name.
const (
	BookingCreatedQueue = "booking.created"
	BookingPaidQueue    = "booking.paid"
)

// BookingCreatedEvent is published when a booking is accepted.  It carries
// enough information for downstream consumers to log and notify the patient
// without querying the primary database.
type BookingCreatedEvent struct {
	BookingID       string `json:"booking_id"`
	Treatment       string `json:"treatment"`
	AppointmentDate string `json:"appointment_date"`
	Slot            string `json:"slot"`
	Patient         string `json:"patient"`
	Email           string `json:"email"`
	PriceCents      int64  `json:"price_cents"`
	CreatedAt       string `json:"created_at"`
}

// BookingPaidEvent is published after a payment is recorded and the
// booking is marked paid.  Upserted is true when the booking did not exist
// and a bare paid record was created for it.
type BookingPaidEvent struct {
	BookingID     string `json:"booking_id"`
	PaymentID     string `json:"payment_id"`
	TransactionID string `json:"transaction_id"`
	AmountCents   int64  `json:"amount_cents"`
	Currency      string `json:"currency"`
	Email         string `json:"email"`
	Upserted      bool   `json:"upserted"`
	PaidAt        string `json:"paid_at"`
}
