package middleware

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ManuelReschke/TranslaFox/app/models"
	"github.com/ManuelReschke/TranslaFox/internal/pkg/usercontext"
)

type stubAuthenticator map[string]*models.User

func (s stubAuthenticator) Authenticate(_ context.Context, raw string) (*models.User, error) {
	if raw == "broken" {
		return nil, errors.New("db down")
	}
	if u, ok := s[raw]; ok {
		return u, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func newTestApp() *fiber.App {
	auth := stubAuthenticator{
		"cust":     {ID: 1, Name: "Ana", Role: models.ROLE_CUSTOMER, Status: models.STATUS_ACTIVE},
		"fin":      {ID: 2, Name: "Fin", Role: models.ROLE_FINANCE, Status: models.STATUS_ACTIVE},
		"root":     {ID: 3, Name: "Root", Role: models.ROLE_ADMIN, Status: models.STATUS_ACTIVE},
		"disabled": {ID: 4, Name: "Old", Role: models.ROLE_FINANCE, Status: models.STATUS_DISABLED},
	}
	app := fiber.New()
	app.Use(UserContextMiddleware)
	app.Get("/public", func(c *fiber.Ctx) error {
		return c.SendString(usercontext.GetRole(c))
	})
	api := app.Group("/api", APIKeyAuthMiddleware(auth), RequireAPIAuth)
	api.Get("/me", func(c *fiber.Ctx) error {
		return c.JSON(usercontext.GetUserContext(c))
	})
	api.Get("/payments", RequireRole(models.ROLE_FINANCE), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	api.Get("/admin", RequireAdmin, func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	return app
}

func do(t *testing.T, app *fiber.App, path string, headers map[string]string) int {
	t.Helper()
	req := httptest.NewRequest(fiber.MethodGet, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp.StatusCode
}

func TestAPIKeyAuthMiddleware(t *testing.T) {
	app := newTestApp()

	tests := []struct {
		name    string
		headers map[string]string
		want    int
	}{
		{"missing key", nil, fiber.StatusUnauthorized},
		{"unknown key", map[string]string{"X-API-Key": "nope"}, fiber.StatusUnauthorized},
		{"lookup error", map[string]string{"X-API-Key": "broken"}, fiber.StatusInternalServerError},
		{"disabled user", map[string]string{"X-API-Key": "disabled"}, fiber.StatusForbidden},
		{"header key", map[string]string{"X-API-Key": "cust"}, fiber.StatusOK},
		{"bearer key", map[string]string{"Authorization": "Bearer cust"}, fiber.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, do(t, app, "/api/me", tt.headers))
		})
	}
}

func TestRequireRole(t *testing.T) {
	app := newTestApp()

	assert.Equal(t, fiber.StatusForbidden, do(t, app, "/api/payments", map[string]string{"X-API-Key": "cust"}))
	assert.Equal(t, fiber.StatusOK, do(t, app, "/api/payments", map[string]string{"X-API-Key": "fin"}))
	assert.Equal(t, fiber.StatusOK, do(t, app, "/api/payments", map[string]string{"X-API-Key": "root"}))

	assert.Equal(t, fiber.StatusForbidden, do(t, app, "/api/admin", map[string]string{"X-API-Key": "fin"}))
	assert.Equal(t, fiber.StatusOK, do(t, app, "/api/admin", map[string]string{"X-API-Key": "root"}))
}

func TestUserContextMiddlewareIsAnonymous(t *testing.T) {
	app := newTestApp()
	assert.Equal(t, fiber.StatusOK, do(t, app, "/public", nil))
}
