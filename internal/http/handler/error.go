package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"earapi/internal/apperr"
	"earapi/internal/http/middleware"
	"earapi/internal/logging"
	"earapi/internal/service"
)

// errorPayload defines the standardized error response body.
type errorPayload struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"request_id"`
}

// requestIDFromCtx extracts request_id previously stored by middleware.RequestID.
func requestIDFromCtx(c *fiber.Ctx) string {
	if v := c.Locals(middleware.RequestIDLocalKey); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// writeError writes a standardized JSON error response.
//
// Parameters:
// - status: HTTP status code to return
// - code: machine-readable short error code (e.g., "VALIDATION_ERROR", "NOT_FOUND")
// - message: human-readable safe message
func writeError(c *fiber.Ctx, status int, code, message string) error {
	return c.Status(status).JSON(errorPayload{
		Error:     message,
		Code:      code,
		RequestID: requestIDFromCtx(c),
	})
}

// statusFor maps an error kind to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, apperr.ErrValidation):
		return fiber.StatusBadRequest
	case errors.Is(err, apperr.ErrResourceNotFound), errors.Is(err, service.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, apperr.ErrUpstreamFetch),
		errors.Is(err, apperr.ErrUpstreamProtocol),
		errors.Is(err, apperr.ErrDecode):
		return fiber.StatusBadGateway
	case errors.Is(err, service.ErrQueryLogDisabled):
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

// writeServiceError logs err and translates it into the error payload.
// Internal errors are reported without their message.
func writeServiceError(c *fiber.Ctx, err error) error {
	status := statusFor(err)
	code := apperr.Code(err)
	msg := err.Error()

	switch {
	case errors.Is(err, service.ErrNotFound):
		code = "NOT_FOUND"
	case errors.Is(err, service.ErrQueryLogDisabled):
		code = "QUERY_LOG_DISABLED"
	case status == fiber.StatusInternalServerError:
		msg = "internal server error"
	}

	logger := logging.FromContext(c.UserContext())
	attrs := []any{"code", code, "status", status, "path", c.Path(), "error", err}
	if id := c.Query("package_id"); id != "" {
		attrs = append(attrs, "package_id", id)
	}
	if status >= fiber.StatusInternalServerError {
		logger.Error("request failed", attrs...)
	} else {
		logger.Warn("request rejected", attrs...)
	}

	return writeError(c, status, code, msg)
}

// ErrorHandler returns a Fiber global error handler that standardizes error responses.
func ErrorHandler() fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status := fiber.StatusInternalServerError
		if e, ok := err.(*fiber.Error); ok {
			status = e.Code
		}

		switch status {
		case fiber.StatusBadRequest:
			return writeError(c, status, "BAD_REQUEST", "bad request")
		case fiber.StatusNotFound:
			return writeError(c, status, "NOT_FOUND", "resource not found")
		case fiber.StatusMethodNotAllowed:
			return writeError(c, status, "METHOD_NOT_ALLOWED", "method not allowed")
		default:
			return writeError(c, status, "INTERNAL_ERROR", "internal server error")
		}
	}
}
