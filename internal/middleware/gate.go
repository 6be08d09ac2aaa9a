package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// Denial is the terminal result of a failed gate.  A nil *Denial means the
// gate passed.
type Denial struct {
	Status  int
	Message string
}

func deny(status int, msg string) *Denial { return &Denial{Status: status, Message: msg} }

// Gate is one pre-handler access check.  Gates may record facts on the
// context (Authenticate stores the email) for the gates that follow.
type Gate func(c echo.Context) *Denial

// Guard runs gates in order.  The first denial is written as
// {"error": message} with its status and ends the request: no later gate
// and no handler runs.  Guard is meant to be attached per route.
func Guard(gates ...Gate) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			for _, g := range gates {
				if d := g(c); d != nil {
					zerolog.Ctx(c.Request().Context()).Debug().
						Int("status", d.Status).
						Str("path", c.Path()).
						Msg("access denied: " + d.Message)
					return c.JSON(d.Status, echo.Map{"error": d.Message})
				}
			}
			return next(c)
		}
	}
}

// TokenVerifier checks an identity token and returns its email claim.
type TokenVerifier interface {
	Verify(raw string) (string, error)
}

// AdminChecker reports whether an email belongs to an admin user.
type AdminChecker interface {
	IsAdmin(ctx context.Context, email string) (bool, error)
}

// Authenticate requires "Authorization: Bearer <token>".  A missing or
// malformed header is 401; a token that fails verification is 403.  On
// success the email claim is stored under ContextEmail.
func Authenticate(tokens TokenVerifier) Gate {
	return func(c echo.Context) *Denial {
		auth := c.Request().Header.Get(echo.HeaderAuthorization)
		if !strings.HasPrefix(auth, "Bearer ") {
			return deny(http.StatusUnauthorized, "unauthorized access")
		}
		raw := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
		if raw == "" {
			return deny(http.StatusUnauthorized, "unauthorized access")
		}
		email, err := tokens.Verify(raw)
		if err != nil {
			return deny(http.StatusForbidden, "forbidden access")
		}
		c.Set(ContextEmail, email)
		return nil
	}
}

// AuthorizeAdmin requires Authenticate to have run first.  It looks up the
// caller's role on every request so promotions apply immediately.
// Non-admins and unknown users get 401; a failed lookup is 500.
func AuthorizeAdmin(users AdminChecker) Gate {
	return func(c echo.Context) *Denial {
		email := Email(c)
		if email == "" {
			return deny(http.StatusUnauthorized, "unauthorized access")
		}
		ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
		defer cancel()
		ok, err := users.IsAdmin(ctx, email)
		if err != nil {
			zerolog.Ctx(c.Request().Context()).Error().Err(err).Msg("admin lookup failed")
			return deny(http.StatusInternalServerError, "failed to check role")
		}
		if !ok {
			return deny(http.StatusUnauthorized, "unauthorized access")
		}
		return nil
	}
}

// RequireSelf requires the query parameter param to equal the
// authenticated email; anything else is 403.
func RequireSelf(param string) Gate {
	return func(c echo.Context) *Denial {
		email := Email(c)
		want := strings.ToLower(strings.TrimSpace(c.QueryParam(param)))
		if email == "" || want != email {
			return deny(http.StatusForbidden, "forbidden access")
		}
		return nil
	}
}
