package middleware

// identity.go holds the context keys shared by the gates and the rest of the
// middleware chain.  Authenticate stores the verified email claim under
// ContextEmail; handlers and the rate limiter read it back through Email.

import (
	"github.com/labstack/echo/v4"
)

// ContextEmail is the echo.Context key holding the authenticated email.
const ContextEmail = "email"

// ContextRequestID is the echo.Context key holding the request id.
const ContextRequestID = "request_id"

// Email returns the authenticated email or "" when the request carries no
// verified identity.
func Email(c echo.Context) string {
	if v, ok := c.Get(ContextEmail).(string); ok {
		return v
	}
	return ""
}

// requestKeyUser identifies the caller for rate limiting.  It returns
// "anon" when no identity has been verified yet.
func requestKeyUser(c echo.Context) string {
	if e := Email(c); e != "" {
		return e
	}
	return "anon"
}
