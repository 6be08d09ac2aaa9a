package model

// Payment records a completed payment for a booking.  It is written once, in
// the same transaction that marks the booking paid, and never changes.
type Payment struct {
	ID            string `json:"id"`
	BookingID     string `json:"bookingId"`
	Amount        int64  `json:"amount"` // cents
	Currency      string `json:"currency"`
	TransactionID string `json:"transactionId"`
	Email         string `json:"email,omitempty"`
}
