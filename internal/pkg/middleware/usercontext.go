package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/TranslaFox/internal/pkg/usercontext"
)

// UserContextMiddleware gives every request an anonymous user context so
// handlers and later middlewares never see missing locals. APIKeyAuthMiddleware
// replaces it for authenticated routes.
func UserContextMiddleware(c *fiber.Ctx) error {
	if _, ok := c.Locals(usercontext.ContextKey).(usercontext.UserContext); !ok {
		usercontext.Set(c, usercontext.UserContext{IsLoggedIn: false, IsAdmin: false})
	}
	return c.Next()
}
