package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/doctors-appointment/internal/handler"
	"github.com/iliyamo/doctors-appointment/internal/middleware"
)

// RegisterAdmin registers admin-only endpoints.  Every route requires a
// valid token whose email belongs to an admin; the role is read from the
// store on each request.
func RegisterAdmin(e *echo.Echo, a *handler.AppointmentHandler, u *handler.UserHandler, d *handler.DoctorHandler, g Gates) {
	admin := middleware.Guard(g.Auth, g.Admin)

	// ---- Catalog ----
	e.GET("/speciality", a.Specialities, admin)

	// ---- Users ----
	e.GET("/users", u.List, admin)
	e.PATCH("/make-admin", u.MakeAdmin, admin)

	// ---- Doctors ----
	e.GET("/doctors", d.List, admin)
	e.POST("/doctors", d.Create, admin)
	e.DELETE("/doctors/:id", d.Delete, admin)
}
