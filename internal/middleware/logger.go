package middleware

import (
	"log/slog"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/MateoPiedra22/GymSystem-sub000/internal/logging"
)

// RequestLogger attaches a request-scoped logger to the request context
// and logs one line per request.  It expects echo's RequestID middleware
// to run first.
func RequestLogger(base *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()
			logger := base.With("request_id", c.Response().Header().Get(echo.HeaderXRequestID))
			c.SetRequest(req.WithContext(logging.ContextWithLogger(req.Context(), logger)))

			err := next(c)
			if err != nil {
				c.Error(err)
			}
			attrs := []any{
				"method", req.Method,
				"route", c.Path(),
				"status", c.Response().Status,
				"duration", time.Since(start),
			}
			if id, ok := MemberID(c); ok {
				attrs = append(attrs, "member_id", id)
			}
			logger.Info("request", attrs...)
			return nil
		}
	}
}
