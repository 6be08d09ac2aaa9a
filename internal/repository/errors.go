// Package repository holds the store access objects and the sentinel errors
// they return.  Sentinels let higher layers such as services and handlers
// tell failure scenarios apart without inspecting driver errors.  For
// example, ErrDuplicateBooking signals that the unique key on bookings
// rejected an insert, which the booking workflow reports as a soft
// rejection rather than a failure.
package repository

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// ErrDuplicateBooking is returned when a booking with the same treatment,
// appointment date and email already exists.
var ErrDuplicateBooking = errors.New("booking already exists")

// ErrBookingNotFound is returned when no booking has the requested id.
// Handlers translate it into an HTTP 404 response.
var ErrBookingNotFound = errors.New("booking not found")

// ErrUserNotFound is returned when a user lookup by email or id misses.
var ErrUserNotFound = errors.New("user not found")

// ErrEmailExists is returned when registering an email that is already taken.
var ErrEmailExists = errors.New("email already exists")

// ErrDoctorNotFound is returned when deleting an unknown doctor.
var ErrDoctorNotFound = errors.New("doctor not found")

// isUniqueViolation reports whether err came from a unique key rejecting an
// insert.  MySQL reports error 1062; SQLite reports "UNIQUE constraint failed".
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == 1062
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "1062") || strings.Contains(msg, "unique constraint failed")
}
