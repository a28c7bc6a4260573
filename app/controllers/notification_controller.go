package controllers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/TranslaFox/internal/pkg/usercontext"
)

// HandleNotificationList returns the caller's notifications, newest first.
// Pass unread=true to hide read ones.
func HandleNotificationList(c *fiber.Ctx) error {
	s := svc()
	if s.Users == nil {
		return serviceUnavailable(c, "user service")
	}
	offset, limit := pageParams(c)
	items, err := s.Users.ListNotifications(c.UserContext(), usercontext.GetUserID(c), formBool(c.Query("unread")), offset, limit)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"data": items, "offset": offset, "limit": limit})
}

func HandleNotificationRead(c *fiber.Ctx) error {
	s := svc()
	if s.Users == nil {
		return serviceUnavailable(c, "user service")
	}
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid notification id")
	}
	if err := s.Users.MarkNotificationRead(c.UserContext(), id, usercontext.GetUserID(c)); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
