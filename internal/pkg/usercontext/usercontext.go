package usercontext

import "github.com/gofiber/fiber/v2"

// UserContext represents the authenticated caller of a request
type UserContext struct {
	UserID     uint   `json:"user_id"`
	Username   string `json:"username"`
	Email      string `json:"email"`
	Role       string `json:"role"`
	IsLoggedIn bool   `json:"is_logged_in"`
	IsAdmin    bool   `json:"is_admin"`
}

// Set stores the user context and the legacy per-field locals.
func Set(c *fiber.Ctx, uc UserContext) {
	c.Locals(ContextKey, uc)
	c.Locals(KeyFromProtected, uc.IsLoggedIn)
	c.Locals(KeyUserID, uc.UserID)
	c.Locals(KeyUsername, uc.Username)
	c.Locals(KeyRole, uc.Role)
	c.Locals(KeyIsAdmin, uc.IsAdmin)
}

// GetUserContext retrieves the user context from fiber context
// Returns a default anonymous context if none is set
func GetUserContext(c *fiber.Ctx) UserContext {
	if ctx, ok := c.Locals(ContextKey).(UserContext); ok {
		return ctx
	}
	return UserContext{IsLoggedIn: false, IsAdmin: false}
}

// IsLoggedIn checks if the current user is logged in
func IsLoggedIn(c *fiber.Ctx) bool {
	return GetUserContext(c).IsLoggedIn
}

// IsAdmin checks if the current user is an admin
func IsAdmin(c *fiber.Ctx) bool {
	return GetUserContext(c).IsAdmin
}

// GetUserID returns the current user's ID, or 0 if not logged in
func GetUserID(c *fiber.Ctx) uint {
	return GetUserContext(c).UserID
}

// GetRole returns the current user's role, or empty string if not logged in
func GetRole(c *fiber.Ctx) string {
	return GetUserContext(c).Role
}

// HasRole reports whether the caller has one of roles. Admins pass every check.
func HasRole(c *fiber.Ctx, roles ...string) bool {
	uc := GetUserContext(c)
	if !uc.IsLoggedIn {
		return false
	}
	if uc.IsAdmin {
		return true
	}
	for _, r := range roles {
		if uc.Role == r {
			return true
		}
	}
	return false
}
