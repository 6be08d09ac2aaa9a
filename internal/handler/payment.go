package handler

import (
	"context"
	"errors"
	"math"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/iliyamo/doctors-appointment/internal/payment"
	"github.com/iliyamo/doctors-appointment/internal/repository"
	"github.com/iliyamo/doctors-appointment/internal/service"
)

// PaymentHandler serves intent creation and payment recording.
type PaymentHandler struct {
	Bridge   payment.Bridge
	Service  *service.BookingService
	Currency string
}

type intentReq struct {
	Price float64 `json:"price"` // major units, e.g. 49.99
}

// CreateIntent asks the payment provider for an intent and returns its
// client secret.
func (h *PaymentHandler) CreateIntent(c echo.Context) error {
	var req intentReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	cents := int64(math.Round(req.Price * 100))
	if cents <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "price must be positive"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 15*time.Second)
	defer cancel()

	intent, err := h.Bridge.CreateIntent(ctx, cents, h.Currency)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Int64("amount_cents", cents).Msg("create payment intent failed")
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "payment provider error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"clientSecret": intent.ClientSecret})
}

// Record stores a completed payment and marks its booking paid.
func (h *PaymentHandler) Record(c echo.Context) error {
	var in service.PaymentInput
	if err := c.Bind(&in); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	res, err := h.Service.MarkPaid(ctx, in)
	switch {
	case errors.Is(err, service.ErrInvalidPayment):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	case errors.Is(err, repository.ErrBookingNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found"})
	case err != nil:
		zerolog.Ctx(ctx).Error().Err(err).Msg("record payment failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "record payment failed"})
	}
	return c.JSON(http.StatusOK, res)
}
