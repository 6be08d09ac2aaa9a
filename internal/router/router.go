package router

import (
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/iliyamo/doctors-appointment/internal/handler"
	"github.com/iliyamo/doctors-appointment/internal/metrics"
	"github.com/iliyamo/doctors-appointment/internal/middleware"
	"github.com/iliyamo/doctors-appointment/internal/utils"
)

// Deps carries everything the router wires together.  Cache and RateLimit
// are optional: a nil cache passes through and a nil limiter is skipped.
type Deps struct {
	Logger    zerolog.Logger
	Registry  *prometheus.Registry
	Metrics   *metrics.Metrics
	RateLimit echo.MiddlewareFunc
	Cache     *middleware.ResponseCache

	Tokens *utils.TokenService
	Admins middleware.AdminChecker

	Appointments *handler.AppointmentHandler
	Bookings     *handler.BookingHandler
	Payments     *handler.PaymentHandler
	Users        *handler.UserHandler
	Doctors      *handler.DoctorHandler
}

// New builds the Echo instance with the global middleware chain and every
// route registered.  Global order: request id, request logger, panic
// recovery, metrics, then rate limiting.  Access gates are attached per
// route after routing, so the limiter keys anonymous callers as "anon".
func New(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(echomw.RequestIDWithConfig(echomw.RequestIDConfig{
		RequestIDHandler: func(c echo.Context, id string) { c.Set(middleware.ContextRequestID, id) },
	}))
	e.Use(middleware.Logger(d.Logger))
	e.Use(middleware.Recovery(d.Logger))
	e.Use(middleware.Metrics(d.Metrics))
	if d.RateLimit != nil {
		e.Use(d.RateLimit)
	}

	RegisterRoutes(e, d.Registry)

	gates := Gates{
		Auth:  middleware.Authenticate(d.Tokens),
		Admin: middleware.AuthorizeAdmin(d.Admins),
	}
	RegisterPublic(e, d.Appointments, d.Users, d.Cache)
	RegisterPatient(e, d.Bookings, d.Payments, gates)
	RegisterAdmin(e, d.Appointments, d.Users, d.Doctors, gates)
	return e
}

// Gates are the access checks shared by the guarded route groups.
type Gates struct {
	Auth  middleware.Gate
	Admin middleware.Gate
}

// RegisterRoutes registers the operational endpoints: the root liveness
// text, /healthz for load balancers and /metrics for Prometheus.  A nil
// registry leaves /metrics unregistered.
func RegisterRoutes(e *echo.Echo, reg *prometheus.Registry) {
	e.GET("/", handler.Root)
	e.GET("/healthz", handler.Health)
	if reg != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
	}
}

// RegisterPublic registers the endpoints that need no identity.  The two
// availability routes go through the response cache; bookings and
// payments drop its entries whenever availability changes.
func RegisterPublic(e *echo.Echo, a *handler.AppointmentHandler, u *handler.UserHandler, cache *middleware.ResponseCache) {
	cached := cache.Middleware()
	// Remaining slots per treatment, in-process join.
	e.GET("/appointmentOptions", a.Options, cached)
	// Same answer computed by a single store query.
	e.GET("/v2/appointmentOptions", a.OptionsV2, cached)

	// Registration never grants a role; the body cannot ask for one.
	e.POST("/users", u.Register)
	// Lets the frontend decide whether to show admin screens.
	e.GET("/users/admin/:email", u.AdminCheck)
	// Token issuance for registered emails.
	e.GET("/jwt", u.JWT)
}
