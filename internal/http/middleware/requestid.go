package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const (
	// RequestIDHeader carries the request id in both directions.
	RequestIDHeader = "X-Request-ID"
	// RequestIDLocalKey is the fiber locals key holding the request id.
	RequestIDLocalKey = "request_id"

	maxRequestIDLength = 128
)

// RequestID tags every request with an id. A client supplied X-Request-ID is
// kept when it is at most 128 printable ASCII characters; anything else is
// replaced by a fresh UUID. The id is stored in locals and echoed back.
func RequestID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := acceptRequestID(c.Get(RequestIDHeader))
		if !ok {
			id = uuid.NewString()
		}

		c.Locals(RequestIDLocalKey, id)
		c.Set(RequestIDHeader, id)

		return c.Next()
	}
}

// acceptRequestID returns a copy of raw when it is safe to log and echo.
// The copy detaches the value from fasthttp's reused request buffer.
func acceptRequestID(raw string) (string, bool) {
	if raw == "" || len(raw) > maxRequestIDLength {
		return "", false
	}
	for i := 0; i < len(raw); i++ {
		if b := raw[i]; b < 0x21 || b > 0x7e {
			return "", false
		}
	}
	return string([]byte(raw)), true
}
