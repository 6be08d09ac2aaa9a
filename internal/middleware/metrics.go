package middleware

import (
	"time"

	"github.com/labstack/echo/v4"
)

// RequestObserver records one finished request.
type RequestObserver interface {
	ObserveRequest(method, route string, status int, elapsed time.Duration)
}

// Metrics observes every request under its registered route pattern, so
// /bookings/:id stays a single series.  Requests that matched no route are
// reported as "unmatched".
func Metrics(obs RequestObserver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok && !c.Response().Committed {
				status = he.Code
			}
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			obs.ObserveRequest(c.Request().Method, route, status, time.Since(start))
			return err
		}
	}
}
