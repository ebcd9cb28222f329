package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/planbox/internal/session"
)

const anonymous = "anon"

// userID returns the id of the authenticated caller, or "anon" when the
// request has not passed RequireSession.
func userID(c echo.Context) string {
	if id, ok := session.FromContext(c.Request().Context()); ok {
		return id.ID
	}
	if s, ok := c.Get("user_id").(string); ok && s != "" {
		return s
	}
	return anonymous
}
