package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"docservice/internal/http/middleware"
	"docservice/internal/model"
	"docservice/internal/repository"
	"docservice/internal/service"
	"docservice/internal/storage"
	"docservice/internal/thumbnail"
)

// errorPayload defines the standardized error response body.
type errorPayload struct {
	RequestID string        `json:"request_id"`
	Error     errorEnvelope `json:"error"`
}

type errorEnvelope struct {
	Code    string       `json:"code"`
	Message string       `json:"message"`
	Fields  []fieldError `json:"fields,omitempty"`
}

type fieldError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// wireFields maps domain field names to the names clients send and receive.
var wireFields = map[string]string{
	"display_name":     "file_name",
	"description":      "file_description",
	"classified_type":  "file_type",
	"content_key":      "file",
	"thumbnail_key":    "thumbnail",
	"created_at":       "create_date",
	"organization_ref": "organization_uuid",
	"user_ref":         "user_uuid",
	"contact_ref":      "contact_uuid",
	"workflow_scope_1": "workflowlevel1_uuids",
	"workflow_scope_2": "workflowlevel2_uuids",
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
// - code: machine-readable short error code (e.g., "INVALID_CURSOR", "NOT_FOUND", "INTERNAL_ERROR")
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

// writeValidation reports every failing field under its wire name.
func writeValidation(c *fiber.Ctx, ve *model.ValidationError) error {
	fields := make([]fieldError, 0, len(ve.Fields))
	for _, f := range ve.Fields {
		name := f.Field
		if wire, ok := wireFields[name]; ok {
			name = wire
		}
		fields = append(fields, fieldError{Field: name, Code: f.Code, Message: f.Message})
	}
	return c.Status(fiber.StatusBadRequest).JSON(errorPayload{
		RequestID: requestIDFromCtx(c),
		Error: errorEnvelope{
			Code:    "VALIDATION_ERROR",
			Message: "invalid input",
			Fields:  fields,
		},
	})
}

// writeServiceError translates errors returned by the service layer.
func writeServiceError(c *fiber.Ctx, err error) error {
	var ve *model.ValidationError
	var se *service.StorageError
	switch {
	case errors.As(err, &ve):
		return writeValidation(c, ve)
	case errors.Is(err, thumbnail.ErrDecode):
		return writeError(c, fiber.StatusBadRequest, "INVALID_IMAGE", "file content could not be decoded as an image")
	case errors.Is(err, repository.ErrInvalidCursor):
		return writeError(c, fiber.StatusBadRequest, "INVALID_CURSOR", "invalid cursor")
	case errors.Is(err, repository.ErrInvalidOrdering):
		return writeError(c, fiber.StatusBadRequest, "INVALID_ORDERING", "invalid ordering")
	case errors.Is(err, service.ErrNotFound), errors.Is(err, service.ErrIDRequired):
		return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "document not found")
	case errors.As(err, &se) && storage.MapHTTPStatus(se.Err) == fiber.StatusServiceUnavailable:
		return writeError(c, fiber.StatusServiceUnavailable, "STORAGE_UNAVAILABLE", "content store unavailable")
	default:
		return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	}
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
		case fiber.StatusUnauthorized:
			return writeError(c, status, "UNAUTHORIZED", "authentication credentials were not provided or are invalid")
		case fiber.StatusNotFound:
			return writeError(c, status, "NOT_FOUND", "resource not found")
		case fiber.StatusMethodNotAllowed:
			return writeError(c, status, "METHOD_NOT_ALLOWED", "method not allowed")
		case fiber.StatusRequestEntityTooLarge:
			return writeError(c, status, "REQUEST_TOO_LARGE", "request body too large")
		default:
			return writeError(c, status, "INTERNAL_ERROR", "internal server error")
		}
	}
}
