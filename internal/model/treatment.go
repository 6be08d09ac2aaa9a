package model

// Treatment is an appointment offering: a specialty with its full catalog
// of slot labels and a price in cents.  Slots keep catalog order; the
// availability endpoints return the same struct with booked slots removed.
//
// Fields:
//  ID    – treatments.id (UUID).
//  Name  – unique treatment name; bookings reference it by name.
//  Slots – ordered slot labels from treatment_slots.
//  Price – treatments.price_cents.
type Treatment struct {
	ID    string   `json:"id"`
	Name  string   `json:"name"`
	Slots []string `json:"slots"`
	Price int64    `json:"price"`
}

