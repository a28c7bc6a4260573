package middleware

import (
	"github.com/gofiber/fiber/v2"

	icuser "github.com/ManuelReschke/TranslaFox/internal/pkg/usercontext"
)

// RequireAPIAuth ensures an authenticated caller and returns JSON 401 otherwise.
func RequireAPIAuth(c *fiber.Ctx) error {
	v := c.Locals(icuser.KeyFromProtected)
	loggedIn := false
	if b, ok := v.(bool); ok {
		loggedIn = b
	}
	if !loggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error":   "unauthorized",
			"message": "login required",
		})
	}
	return c.Next()
}

// RequireRole lets the request through when the caller has one of roles.
// Admins always pass.
func RequireRole(roles ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !icuser.IsLoggedIn(c) {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error":   "unauthorized",
				"message": "login required",
			})
		}
		if !icuser.HasRole(c, roles...) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error":   "forbidden",
				"message": "insufficient role",
			})
		}
		return c.Next()
	}
}

// RequireAdmin is RequireRole with no extra roles.
func RequireAdmin(c *fiber.Ctx) error {
	return RequireRole()(c)
}
