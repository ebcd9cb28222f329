package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/planbox/internal/apperr"
	"github.com/iliyamo/planbox/internal/logging"
	"github.com/iliyamo/planbox/internal/queue"
	"github.com/iliyamo/planbox/internal/session"
	"github.com/iliyamo/planbox/internal/validation"
)

// storeTimeout bounds every store call made while serving a request.
const storeTimeout = 5 * time.Second

// Base carries what every handler needs besides its stores.
type Base struct {
	Log    logging.Logger
	Events queue.Publisher
}

// emit publishes ev and only logs a failure.
func (b Base) emit(ctx context.Context, ev queue.Event) {
	if b.Events == nil {
		return
	}
	if err := b.Events.Publish(ctx, ev); err != nil {
		b.Log.Warn(ctx, "publish activity event", "type", ev.Type, "err", err)
	}
}

// request is what an owner-scoped operation receives.
type request[In any] struct {
	Ctx   context.Context
	Owner session.Identity
	In    *In
	Echo  echo.Context
}

// normalizer is implemented by inputs that trim or fold fields before
// validation.
type normalizer interface {
	normalize()
}

// scoped is the pipeline behind every protected route: it takes the caller
// from the session, binds and validates In, runs fn with a bounded context
// and maps any error onto the taxonomy. fn cannot run without an owner.
func scoped[In any](log logging.Logger, status int, fn func(r request[In]) (any, error)) echo.HandlerFunc {
	return func(c echo.Context) error {
		owner, ok := session.FromContext(c.Request().Context())
		if !ok {
			return respondError(c, log, apperr.ErrUnauthorized)
		}
		in := new(In)
		if err := bindValid(c, in); err != nil {
			return respondError(c, log, err)
		}

		ctx, cancel := context.WithTimeout(c.Request().Context(), storeTimeout)
		defer cancel()

		out, err := fn(request[In]{Ctx: ctx, Owner: owner, In: in, Echo: c})
		if err != nil {
			return respondError(c, log, err)
		}
		if out == nil {
			return c.NoContent(status)
		}
		return c.JSON(status, out)
	}
}

// bindValid binds the request into in, normalizes it and runs the
// validator.
func bindValid(c echo.Context, in any) error {
	if err := c.Bind(in); err != nil {
		ve := apperr.Invalid("body", "Invalid request body")
		_, ve.Credentials = in.(validation.Credentials)
		return ve
	}
	if n, ok := in.(normalizer); ok {
		n.normalize()
	}
	return c.Validate(in)
}

// respondError writes the mapped error. Errors that fell through to the
// catch-all are logged with the request id; the client only sees the
// generic message.
func respondError(c echo.Context, log logging.Logger, err error) error {
	res := apperr.Map(err)
	if res.Unknown {
		log.Error(c.Request().Context(), "unhandled error",
			"err", err,
			"method", c.Request().Method,
			"path", c.Request().URL.Path,
			"request_id", c.Response().Header().Get(echo.HeaderXRequestID),
		)
	}
	return c.JSON(res.Status, res.Payload)
}

type message struct {
	Message string `json:"message"`
}

// ErrorHandler replaces echo's default so framework errors (unknown route,
// wrong method, oversized or malformed body) use the same payload.
func ErrorHandler(log logging.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		var he *echo.HTTPError
		if errors.As(err, &he) {
			err = fromHTTPError(he)
		}
		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(apperr.Map(err).Status)
			return
		}
		_ = respondError(c, log, err)
	}
}

func fromHTTPError(he *echo.HTTPError) error {
	switch {
	case he.Code == http.StatusNotFound:
		return apperr.NotFound("Route")
	case he.Code == http.StatusUnauthorized:
		return apperr.ErrUnauthorized
	case he.Code == http.StatusTooManyRequests:
		return apperr.ErrRateLimited
	case he.Code >= 400 && he.Code < 500:
		return apperr.New(apperr.CodeInvalidInput, he.Code, http.StatusText(he.Code))
	}
	return he
}
