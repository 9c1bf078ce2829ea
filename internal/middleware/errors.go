package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/neogan74/savekit/internal/logger"
)

// ErrorResponse represents a structured error response
type ErrorResponse struct {
	Error     string    `json:"error"`
	Message   string    `json:"message,omitempty"`
	Kind      string    `json:"kind,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Path      string    `json:"path,omitempty"`
}

// BadRequest returns a 400 Bad Request error response
func BadRequest(c *fiber.Ctx, message string) error {
	return ErrorWithKind(c, fiber.StatusBadRequest, "", message)
}

// NotFound returns a 404 Not Found error response
func NotFound(c *fiber.Ctx, message string) error {
	return ErrorWithKind(c, fiber.StatusNotFound, "", message)
}

// InternalServerError returns a 500 Internal Server Error response
func InternalServerError(c *fiber.Ctx, message string) error {
	return ErrorWithKind(c, fiber.StatusInternalServerError, "", message)
}

// ServiceUnavailable returns a 503 response for features that are not configured.
func ServiceUnavailable(c *fiber.Ctx, message string) error {
	return ErrorWithKind(c, fiber.StatusServiceUnavailable, "", message)
}

// ErrorWithKind writes a structured error with the given status. kind
// names the failure class, e.g. "decode" or "validation".
func ErrorWithKind(c *fiber.Ctx, status int, kind, message string) error {
	response := ErrorResponse{
		Error:     fiber.ErrInternalServerError.Message,
		Message:   message,
		Kind:      kind,
		RequestID: GetRequestID(c),
		Timestamp: time.Now(),
		Path:      c.Path(),
	}
	if text := statusText(status); text != "" {
		response.Error = text
	}

	GetLogger(c).Warn("HTTP error response",
		logger.String("error", response.Error),
		logger.String("kind", kind),
		logger.String("message", message),
		logger.String("method", c.Method()),
		logger.String("path", c.Path()),
		logger.Int("status", status))

	return c.Status(status).JSON(response)
}

func statusText(status int) string {
	switch status {
	case fiber.StatusBadRequest:
		return "Bad Request"
	case fiber.StatusNotFound:
		return "Not Found"
	case fiber.StatusConflict:
		return "Conflict"
	case fiber.StatusUnprocessableEntity:
		return "Unprocessable Entity"
	case fiber.StatusInternalServerError:
		return "Internal Server Error"
	case fiber.StatusServiceUnavailable:
		return "Service Unavailable"
	}
	return ""
}
