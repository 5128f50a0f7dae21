package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"docservice/internal/auth"
)

// PrincipalLocalKey is the context locals key holding the *auth.Principal.
const PrincipalLocalKey = "principal"

// Auth rejects requests without a valid bearer token with 401. OPTIONS
// requests always pass so clients can discover allowed methods.
func Auth(v auth.Verifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Method() == fiber.MethodOptions {
			return c.Next()
		}

		token, ok := bearerToken(c.Get(fiber.HeaderAuthorization))
		if !ok {
			return fiber.NewError(fiber.StatusUnauthorized, "authentication credentials were not provided")
		}

		p, err := v.Verify(c.UserContext(), token)
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid token")
		}

		c.Locals(PrincipalLocalKey, p)
		return c.Next()
	}
}

// PrincipalFromCtx returns the caller set by Auth, or nil.
func PrincipalFromCtx(c *fiber.Ctx) *auth.Principal {
	p, _ := c.Locals(PrincipalLocalKey).(*auth.Principal)
	return p
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
