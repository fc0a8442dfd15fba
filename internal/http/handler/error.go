package handler

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"

	"plagcheck/internal/extract"
	"plagcheck/internal/http/middleware"
	"plagcheck/internal/service"
)

// errorPayload defines the standardized error response body.
type errorPayload struct {
	RequestID string        `json:"request_id"`
	Error     errorEnvelope `json:"error"`
}

type errorEnvelope struct {
	Code    string `json:"code"`
	Message string `json:"message"`
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

// writeError writes a standardized JSON error response without leaking internal errors.
//
// Parameters:
// - status: HTTP status code to return
// - code: machine-readable short error code (e.g., "INVALID_INPUT_COUNT", "EXTRACTION_FAILED")
// - message: human-readable safe message (no internal details)
func writeError(c *fiber.Ctx, status int, code, message string) error {
	res := errorPayload{
		RequestID: requestIDFromCtx(c),
		Error: errorEnvelope{
			Code:    code,
			Message: message,
		},
	}
	return c.Status(status).JSON(res)
}

// writeComparisonError translates a ComparisonService error into its HTTP response.
func writeComparisonError(c *fiber.Ctx, err error) error {
	var ee *extract.ExtractionError
	switch {
	case errors.Is(err, service.ErrInvalidInputCount):
		return writeError(c, fiber.StatusBadRequest, "INVALID_INPUT_COUNT",
			fmt.Sprintf("exactly %d files are required in the %q field", service.RequiredDocuments, filesField))
	case errors.Is(err, service.ErrDocumentTooLarge):
		return writeError(c, fiber.StatusRequestEntityTooLarge, "DOCUMENT_TOO_LARGE", "document exceeds the size limit")
	case errors.Is(err, extract.ErrUnsupportedFormat):
		return writeError(c, fiber.StatusUnsupportedMediaType, "UNSUPPORTED_FORMAT",
			"supported formats: "+strings.Join(extract.SupportedExtensions(), ", "))
	case errors.As(err, &ee):
		return writeError(c, fiber.StatusUnprocessableEntity, "EXTRACTION_FAILED",
			fmt.Sprintf("could not extract text from %s", ee.Path))
	default:
		return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	}
}

// ErrorHandler returns a Fiber global error handler that standardizes error responses.
func ErrorHandler() fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status := fiber.StatusInternalServerError
		var fe *fiber.Error
		if errors.As(err, &fe) {
			status = fe.Code
		}

		switch status {
		case fiber.StatusBadRequest:
			return writeError(c, status, "BAD_REQUEST", "bad request")
		case fiber.StatusNotFound:
			return writeError(c, status, "NOT_FOUND", "resource not found")
		case fiber.StatusMethodNotAllowed:
			return writeError(c, status, "METHOD_NOT_ALLOWED", "method not allowed")
		case fiber.StatusRequestEntityTooLarge:
			return writeError(c, status, "DOCUMENT_TOO_LARGE", "request body exceeds the size limit")
		default:
			return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		}
	}
}
