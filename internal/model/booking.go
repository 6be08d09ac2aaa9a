package model

// Booking reserves one slot of one treatment on one date for one patient.
// AppointmentDate is an opaque label; it is compared verbatim and never
// parsed.  Paid starts false and is only ever flipped to true by a payment.
//
// Fields:
//  ID              – bookings.id (UUID).
//  Treatment       – bookings.treatment_name.
//  AppointmentDate – bookings.appointment_date.
//  Slot            – bookings.slot.
//  Patient         – display name of the patient.
//  Email           – requester email; (Treatment, AppointmentDate, Email) is unique.
//  Phone           – optional contact number.
//  Price           – price in cents captured at booking time.
//  Paid            – set once a payment referencing the booking is recorded.
type Booking struct {
	ID              string `json:"id"`
	Treatment       string `json:"treatment"`
	AppointmentDate string `json:"appointmentDate"`
	Slot            string `json:"slot"`
	Patient         string `json:"patient,omitempty"`
	Email           string `json:"email"`
	Phone           string `json:"phone,omitempty"`
	Price           int64  `json:"price"`
	Paid            bool   `json:"paid"`
}
