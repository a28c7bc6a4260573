package usercontext

// Shared Locals keys used across controllers and middlewares
const (
	ContextKey       = "USER_CONTEXT"
	KeyUserID        = "user_id"
	KeyUsername      = "username"
	KeyRole          = "role"
	KeyIsAdmin       = "isAdmin"
	KeyFromProtected = "from_protected"
)
