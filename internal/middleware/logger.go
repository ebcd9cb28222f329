package middleware

import (
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/planbox/internal/logging"
)

// RequestLogger logs one line per request once the response is written.
func RequestLogger(log logging.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				// let the error handler write the response so the status is final
				c.Error(err)
			}
			res := c.Response()
			args := []any{
				"method", c.Request().Method,
				"path", c.Request().URL.Path,
				"status", res.Status,
				"latency", time.Since(start).String(),
				"user_id", userID(c),
				"request_id", res.Header().Get(echo.HeaderXRequestID),
			}
			switch {
			case res.Status >= 500:
				log.Error(c.Request().Context(), "request", args...)
			case res.Status >= 400:
				log.Warn(c.Request().Context(), "request", args...)
			default:
				log.Info(c.Request().Context(), "request", args...)
			}
			return nil
		}
	}
}
