package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/TranslaFox/app/controllers"
	"github.com/ManuelReschke/TranslaFox/internal/pkg/middleware"
)

// HttpRouter owns the global middleware and the unauthenticated provider callbacks.
type HttpRouter struct {
}

func (h HttpRouter) InstallRouter(app *fiber.App) {
	// Apply UserContext middleware globally as first middleware
	app.Use(middleware.UserContextMiddleware)

	webhooks := app.Group("/webhooks")
	webhooks.Post("/stripe", controllers.HandleStripeWebhook)
}

func NewHttpRouter() *HttpRouter {
	return &HttpRouter{}
}
