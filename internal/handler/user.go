package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/iliyamo/doctors-appointment/internal/middleware"
	"github.com/iliyamo/doctors-appointment/internal/repository"
	"github.com/iliyamo/doctors-appointment/internal/service"
	"github.com/iliyamo/doctors-appointment/internal/utils"
)

// UserHandler bundles dependencies for user, admin and token endpoints.
type UserHandler struct {
	Users  *repository.UserRepo
	Admin  *service.AdminService
	Tokens *utils.TokenService
}

// ----- DTOs -----

// registerReq deliberately has no role field: registration always creates
// a plain user.
type registerReq struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// List returns every user.  Admin only.
func (h *UserHandler) List(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	out, err := h.Users.List(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, out)
}

// Register records a user by email.  Registering an existing email is not
// an error; the existing id is returned instead.
func (h *UserHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	id, existing, err := h.Users.Register(ctx, strings.TrimSpace(req.Name), req.Email)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("register user failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	if existing {
		return c.JSON(http.StatusOK, echo.Map{"acknowledged": true, "existing": true, "id": id})
	}
	return c.JSON(http.StatusOK, echo.Map{"acknowledged": true, "insertedId": id})
}

// MakeAdmin promotes the user ?id= on behalf of the authenticated admin.
func (h *UserHandler) MakeAdmin(c echo.Context) error {
	target := strings.TrimSpace(c.QueryParam("id"))
	if target == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "id required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	res, err := h.Admin.PromoteToAdmin(ctx, middleware.Email(c), target)
	switch {
	case errors.Is(err, service.ErrNotAdmin):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized access"})
	case errors.Is(err, repository.ErrUserNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
	case err != nil:
		zerolog.Ctx(ctx).Error().Err(err).Msg("promote user failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, res)
}

// AdminCheck reports whether :email belongs to an admin.
func (h *UserHandler) AdminCheck(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	ok, err := h.Users.IsAdmin(ctx, c.Param("email"))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"isAdmin": ok})
}

// JWT issues an identity token for a registered email.  Unknown emails get
// 403 with a null token.
func (h *UserHandler) JWT(c echo.Context) error {
	email := c.QueryParam("email")

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrUserNotFound) {
		return c.JSON(http.StatusForbidden, echo.Map{"accessToken": nil})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}

	tok, err := h.Tokens.Issue(u.Email)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue token failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"accessToken": tok.Token})
}
