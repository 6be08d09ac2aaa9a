// Package handler exposes the HTTP handlers of the booking API.  Handlers
// translate requests into repository and service calls and map their
// sentinel errors to status codes; they hold no state of their own.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/iliyamo/doctors-appointment/internal/availability"
	"github.com/iliyamo/doctors-appointment/internal/repository"
)

// AppointmentHandler serves the availability endpoints and the treatment
// name list.
type AppointmentHandler struct {
	Engine     *availability.Engine     // computes remaining slots
	Treatments *repository.TreatmentRepo // provides treatment names
}

// dateParam returns the "date" query parameter, or nil when it was not
// supplied at all.  An explicitly empty value is still a date.
func dateParam(c echo.Context) *string {
	vals, ok := c.QueryParams()["date"]
	if !ok || len(vals) == 0 {
		return nil
	}
	return &vals[0]
}

// Options returns every treatment with the slots still free on ?date=,
// joining catalog and bookings in process.
func (h *AppointmentHandler) Options(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	out, err := h.Engine.Join(ctx, dateParam(c))
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("availability join failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load appointment options"})
	}
	return c.JSON(http.StatusOK, out)
}

// OptionsV2 answers the same question as Options with a single store query.
func (h *AppointmentHandler) OptionsV2(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	out, err := h.Engine.Aggregate(ctx, dateParam(c))
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("availability aggregate failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load appointment options"})
	}
	return c.JSON(http.StatusOK, out)
}

type specialty struct {
	Name string `json:"name"`
}

// Specialities lists treatment names only.
func (h *AppointmentHandler) Specialities(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	names, err := h.Treatments.ListNames(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	out := make([]specialty, 0, len(names))
	for _, n := range names {
		out = append(out, specialty{Name: n})
	}
	return c.JSON(http.StatusOK, out)
}
