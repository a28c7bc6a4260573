package controllers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/TranslaFox/app/repository"
	"github.com/ManuelReschke/TranslaFox/internal/pkg/usercontext"
)

type changeRoleRequest struct {
	Role string `json:"role" validate:"required"`
}

func HandleAdminUsers(c *fiber.Ctx) error {
	s := svc()
	if s.Users == nil {
		return serviceUnavailable(c, "user service")
	}
	offset, limit := pageParams(c)
	list, total, err := s.Users.ListUsers(c.UserContext(), c.Query("role"), offset, limit)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(paged(list, total, offset, limit))
}

func HandleAdminChangeRole(c *fiber.Ctx) error {
	s := svc()
	if s.Users == nil {
		return serviceUnavailable(c, "user service")
	}
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid user id")
	}
	var req changeRoleRequest
	if err := parseBody(c, &req); err != nil {
		return badRequest(c, err.Error())
	}
	user, err := s.Users.ChangeRole(c.UserContext(), usercontext.GetUserID(c), id, req.Role)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(user)
}

// HandleAdminIssueAPIKey rotates a user's API key. The raw key is only returned here.
func HandleAdminIssueAPIKey(c *fiber.Ctx) error {
	s := svc()
	if s.Users == nil {
		return serviceUnavailable(c, "user service")
	}
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid user id")
	}
	raw, user, err := s.Users.IssueAPIKey(c.UserContext(), usercontext.GetUserID(c), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"api_key": raw, "user": user})
}

// HandleAdminActionLogs lists audit entries.
// Query: action_type, entity_type, entity_id, performed_by, offset, limit.
func HandleAdminActionLogs(c *fiber.Ctx) error {
	s := svc()
	if s.Users == nil {
		return serviceUnavailable(c, "user service")
	}
	offset, limit := pageParams(c)
	entries, total, err := s.Users.ListActionLogs(c.UserContext(), repository.ActionLogFilter{
		ActionType:  c.Query("action_type"),
		EntityType:  c.Query("entity_type"),
		EntityID:    queryUint(c, "entity_id"),
		PerformedBy: queryUint(c, "performed_by"),
		Offset:      offset,
		Limit:       limit,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(paged(entries, total, offset, limit))
}

func HandleAdminOutbox(c *fiber.Ctx) error {
	s := svc()
	if s.Users == nil {
		return serviceUnavailable(c, "user service")
	}
	offset, limit := pageParams(c)
	report, err := s.Users.OutboxStatus(c.UserContext(), c.Query("status"), offset, limit)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(report)
}

// HandleAdminDraftSweep runs one abandoned-draft sweep immediately.
func HandleAdminDraftSweep(c *fiber.Ctx) error {
	s := svc()
	if s.Drafts == nil {
		return serviceUnavailable(c, "draft sweeper")
	}
	if err := s.Drafts.RunDraftSweepOnce(); err != nil {
		return respondError(c, err)
	}
	log.Infof("[Admin] Draft sweep triggered by user %d", usercontext.GetUserID(c))
	return c.SendStatus(fiber.StatusAccepted)
}

// HandleAdminStatistics returns the cached dashboard figures.
func HandleAdminStatistics(c *fiber.Ctx) error {
	s := svc()
	if s.Statistics == nil {
		return serviceUnavailable(c, "statistics")
	}
	d, err := s.Statistics.Dashboard(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(d)
}
