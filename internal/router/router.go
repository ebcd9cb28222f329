// Package router wires handlers and middleware onto echo routes.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/planbox/internal/handler"
)

// Handlers bundles every handler the API exposes.
type Handlers struct {
	Auth *handler.AuthHandler
	User *handler.UserHandler
	Box  *handler.BoxHandler
	Todo *handler.TodoHandler
	Note *handler.NoteHandler
	DB   handler.Pinger
}

// Middleware holds the per-group middleware built from config. Session is
// required; the others may be nil.
type Middleware struct {
	Session   echo.MiddlewareFunc
	RateLimit echo.MiddlewareFunc
	Cache     echo.MiddlewareFunc
}

// Register mounts the full API on e.
func Register(e *echo.Echo, h Handlers, mw Middleware) {
	RegisterRoutes(e, h.DB)
	RegisterAuth(e, h.Auth, h.User, mw)
	RegisterBoxes(e, h.Box, h.Todo, h.Note, mw)
}

// RegisterRoutes mounts the unauthenticated probes.
func RegisterRoutes(e *echo.Echo, db handler.Pinger) {
	e.GET("/healthz", handler.Health)
	if db != nil {
		e.GET("/readyz", handler.Ready(db))
	}
}

// protected returns the middleware chain for routes that need a session.
// The cache must come after the gate since it keys entries by user.
func (mw Middleware) protected() []echo.MiddlewareFunc {
	chain := []echo.MiddlewareFunc{mw.Session}
	if mw.Cache != nil {
		chain = append(chain, mw.Cache)
	}
	return chain
}
