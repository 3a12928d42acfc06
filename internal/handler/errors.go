package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/MateoPiedra22/GymSystem-sub000/internal/logging"
	"github.com/MateoPiedra22/GymSystem-sub000/internal/service"
)

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error   string            `json:"error"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// retryAfterSeconds is advertised on busy responses.
const retryAfterSeconds = "1"

// statusFor maps a service error kind to its HTTP status.
func statusFor(kind string) int {
	switch kind {
	case "not_found":
		return http.StatusNotFound
	case "conflict":
		return http.StatusConflict
	case "insufficient_credit":
		return http.StatusPaymentRequired
	case "busy":
		return http.StatusServiceUnavailable
	case "invalid_checkin_window":
		return http.StatusUnprocessableEntity
	case "validation":
		return http.StatusBadRequest
	case "canceled":
		return 499
	}
	return http.StatusInternalServerError
}

// respondError writes err using the service taxonomy.  Capacity faults
// and unexpected errors never leak their message.
func respondError(c echo.Context, err error) error {
	kind := service.Kind(err)
	status := statusFor(kind)
	body := errorBody{Error: kind, Message: err.Error()}

	var vErr *service.ValidationError
	switch {
	case errors.As(err, &vErr):
		body.Fields = vErr.FieldErrors
	case kind == "busy":
		c.Response().Header().Set("Retry-After", retryAfterSeconds)
	case status == http.StatusInternalServerError:
		logger := logging.FromContext(c.Request().Context())
		if logger == nil {
			logger = slog.Default()
		}
		logger.Error("request failed", "path", c.Path(), "error_kind", kind, "error", err)
		body.Message = "internal error"
	}
	return c.JSON(status, body)
}

// badRequest reports a malformed request that never reached the service.
func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, errorBody{Error: "validation", Message: msg})
}
