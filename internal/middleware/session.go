// Package middleware holds the echo middleware shared by the API routes.
package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/planbox/internal/apperr"
	"github.com/iliyamo/planbox/internal/session"
)

// CookieName is the cookie carrying the session token for browser clients.
const CookieName = "planbox_session"

// SessionRecoverer verifies a raw token. *session.Issuer satisfies it.
type SessionRecoverer interface {
	Recover(raw string) (session.Identity, bool)
}

// RequireSession rejects requests without a valid session with 401
// auth/unauthorized before the handler runs. On success the identity is
// stored in the request context and under "user_id" in the echo context.
func RequireSession(rec SessionRecoverer) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id, ok := rec.Recover(Credential(c))
			if !ok || id.ID == "" {
				res := apperr.Map(apperr.ErrUnauthorized)
				return c.JSON(res.Status, res.Payload)
			}
			r := c.Request()
			c.SetRequest(r.WithContext(session.NewContext(r.Context(), id)))
			c.Set("user_id", id.ID)
			return next(c)
		}
	}
}

// Credential returns the raw session token of the request: the bearer
// header wins over the cookie.
func Credential(c echo.Context) string {
	if h := c.Request().Header.Get(echo.HeaderAuthorization); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
	}
	if ck, err := c.Cookie(CookieName); err == nil {
		return ck.Value
	}
	return ""
}

// SessionCookie builds the cookie for token. An empty value with a negative
// MaxAge clears it.
func SessionCookie(value string, maxAge int, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}
