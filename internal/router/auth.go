package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/planbox/internal/handler"
)

// RegisterAuth mounts /v1/auth and /v1/user. Signup and login are rate
// limited per client; refresh and the profile routes need a session.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, u *handler.UserHandler, mw Middleware) {
	public := e.Group("/v1/auth")
	var limited []echo.MiddlewareFunc
	if mw.RateLimit != nil {
		limited = append(limited, mw.RateLimit)
	}
	public.POST("/signup", a.Signup, limited...)
	public.POST("/login", a.Login, limited...)
	public.POST("/logout", a.Logout)
	public.POST("/refresh", a.Refresh(), mw.Session)

	g := e.Group("/v1/user", mw.protected()...)
	g.GET("", u.Me())
	g.PUT("/profile", u.UpdateProfile())
	g.PUT("/password", u.ChangePassword())
}
