package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/doctors-appointment/internal/handler"
	"github.com/iliyamo/doctors-appointment/internal/middleware"
)

// RegisterPatient registers the booking and payment endpoints used by
// patients.  Only the listing of a patient's own bookings needs a token:
// the caller must be the ?email= whose bookings are requested.
func RegisterPatient(e *echo.Echo, b *handler.BookingHandler, p *handler.PaymentHandler, g Gates) {
	e.GET("/bookings", b.List, middleware.Guard(g.Auth, middleware.RequireSelf("email")))
	e.GET("/bookings/:id", b.Get)
	e.POST("/bookings", b.Create)

	// Payments: intent first, then the record once the client confirmed it.
	e.POST("/create-payment-intent", p.CreateIntent)
	e.POST("/payments", p.Record)
}
