package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/TranslaFox/internal/pkg/middleware"
)

// Router installs one group of routes on the app.
type Router interface {
	InstallRouter(app *fiber.App)
}

// InstallRouter registers the global middleware and webhook routes first, then
// the authenticated API. limiterStorage may be nil for in-memory rate limits.
func InstallRouter(app *fiber.App, auth middleware.Authenticator, limiterStorage fiber.Storage) {
	setup(app, NewHttpRouter(), NewApiRouter(auth, limiterStorage))
}

func setup(app *fiber.App, router ...Router) {
	for _, r := range router {
		r.InstallRouter(app)
	}
}
