package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/iliyamo/doctors-appointment/internal/model"
	"github.com/iliyamo/doctors-appointment/internal/repository"
	"github.com/iliyamo/doctors-appointment/internal/service"
)

// BookingHandler bundles dependencies for booking endpoints.
type BookingHandler struct {
	Bookings *repository.BookingRepo
	Service  *service.BookingService
}

type createBookingReq struct {
	Treatment       string `json:"treatment"`
	AppointmentDate string `json:"appointmentDate"`
	Slot            string `json:"slot"`
	Patient         string `json:"patient"`
	Email           string `json:"email"`
	Phone           string `json:"phone"`
	Price           int64  `json:"price"` // cents
}

// List returns the bookings of ?email=.  The route's gates guarantee the
// caller is that email.
func (h *BookingHandler) List(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	out, err := h.Bookings.ListByEmail(ctx, c.QueryParam("email"))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, out)
}

// Get fetches one booking by id.
func (h *BookingHandler) Get(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	b, err := h.Bookings.GetByID(ctx, c.Param("id"))
	if errors.Is(err, repository.ErrBookingNotFound) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found"})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, b)
}

// Create books a slot.  A duplicate (same treatment, date and email) is
// answered with 200 and acknowledged=false.
func (h *BookingHandler) Create(c echo.Context) error {
	var req createBookingReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	res, err := h.Service.Create(ctx, &model.Booking{
		Treatment:       req.Treatment,
		AppointmentDate: req.AppointmentDate,
		Slot:            req.Slot,
		Patient:         req.Patient,
		Email:           req.Email,
		Phone:           req.Phone,
		Price:           req.Price,
	})
	switch {
	case errors.Is(err, service.ErrInvalidBooking):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	case err != nil:
		zerolog.Ctx(ctx).Error().Err(err).Msg("create booking failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create booking failed"})
	}
	return c.JSON(http.StatusOK, res)
}
