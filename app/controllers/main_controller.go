package controllers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/TranslaFox/internal/pkg/env"
)

// HandlePing answers the unauthenticated /api/ health check.
func HandlePing(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "ok",
		"service": "translafox",
		"env":     env.GetEnv("APP_ENV", "prod"),
	})
}
