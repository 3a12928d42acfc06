package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// Health answers liveness probes.
func Health(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

// Pinger is a dependency the service cannot book without.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Ready answers readiness probes: 503 until every pinger answers within
// two seconds.
func Ready(pingers ...Pinger) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()
		for _, p := range pingers {
			if err := p.PingContext(ctx); err != nil {
				return c.JSON(http.StatusServiceUnavailable, errorBody{Error: "unavailable", Message: "storage unreachable"})
			}
		}
		return c.String(http.StatusOK, "ready")
	}
}
