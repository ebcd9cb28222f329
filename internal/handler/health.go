package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// Pinger is satisfied by *sqlx.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Health answers load balancers with a plain "ok".
func Health(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

// Ready reports 503 while the database is unreachable.
func Ready(db Pinger) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			return c.String(http.StatusServiceUnavailable, "db unavailable")
		}
		return c.String(http.StatusOK, "ready")
	}
}
