package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/doctors-appointment/internal/model"
	"github.com/iliyamo/doctors-appointment/internal/repository"
)

// DoctorHandler manages the doctor roster.  Every route is admin only.
type DoctorHandler struct {
	Doctors *repository.DoctorRepo
}

type createDoctorReq struct {
	Name      string `json:"name"`
	Email     string `json:"email"`
	Specialty string `json:"specialty"`
	Image     string `json:"image"`
}

func (h *DoctorHandler) List(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	out, err := h.Doctors.List(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, out)
}

func (h *DoctorHandler) Create(c echo.Context) error {
	var req createDoctorReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	d := model.Doctor{
		Name:      strings.TrimSpace(req.Name),
		Email:     strings.TrimSpace(req.Email),
		Specialty: strings.TrimSpace(req.Specialty),
		Image:     strings.TrimSpace(req.Image),
	}
	if d.Name == "" || d.Email == "" || d.Specialty == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name/email/specialty required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Doctors.Create(ctx, &d); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"acknowledged": true, "insertedId": d.ID})
}

// Delete removes :id from the roster.
func (h *DoctorHandler) Delete(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	err := h.Doctors.Delete(ctx, c.Param("id"))
	if errors.Is(err, repository.ErrDoctorNotFound) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "doctor not found"})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"acknowledged": true, "deletedCount": 1})
}
