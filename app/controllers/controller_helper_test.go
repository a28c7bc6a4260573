package controllers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ManuelReschke/TranslaFox/internal/pkg/authentication"
	"github.com/ManuelReschke/TranslaFox/internal/pkg/documents"
	"github.com/ManuelReschke/TranslaFox/internal/pkg/pages"
	"github.com/ManuelReschke/TranslaFox/internal/pkg/reconcile"
	"github.com/ManuelReschke/TranslaFox/internal/pkg/upload"
	"github.com/ManuelReschke/TranslaFox/internal/pkg/users"
)

func TestRespondErrorStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", gorm.ErrRecordNotFound, fiber.StatusNotFound},
		{"wrapped not found", fmt.Errorf("folder 3: %w", gorm.ErrRecordNotFound), fiber.StatusNotFound},
		{"payment not pending", reconcile.ErrPaymentNotPending, fiber.StatusConflict},
		{"already finalized", authentication.ErrAlreadyFinalized, fiber.StatusConflict},
		{"not awaiting authentication", authentication.ErrNotAwaitingAuth, fiber.StatusConflict},
		{"has payment", documents.ErrHasPayment, fiber.StatusConflict},
		{"self demotion", users.ErrSelfDemotion, fiber.StatusForbidden},
		{"confirmation", reconcile.ErrConfirmationRequired, fiber.StatusBadRequest},
		{"unreadable pdf", fmt.Errorf("%w: bad xref", pages.ErrUnreadablePDF), fiber.StatusBadRequest},
		{"scriptable", upload.ErrScriptableContent, fiber.StatusUnsupportedMediaType},
		{"unknown", errors.New("disk on fire"), fiber.StatusInternalServerError},
	}

	app := fiber.New()
	for i, tt := range tests {
		err := tt.err
		app.Get(fmt.Sprintf("/%d", i), func(c *fiber.Ctx) error { return respondError(c, err) })
	}
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, fmt.Sprintf("/%d", i), nil))
			require.NoError(t, err)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

func TestPageParams(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		offset, limit := pageParams(c)
		return c.JSON(fiber.Map{"offset": offset, "limit": limit})
	})

	tests := []struct {
		query  string
		offset int
		limit  int
	}{
		{"", 0, defaultPageSize},
		{"?offset=40&limit=10", 40, 10},
		{"?offset=-5&limit=0", 0, defaultPageSize},
		{"?limit=5000", 0, maxPageSize},
		{"?limit=abc", 0, defaultPageSize},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			var got struct {
				Offset int `json:"offset"`
				Limit  int `json:"limit"`
			}
			resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/"+tt.query, nil))
			require.NoError(t, err)
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
			assert.Equal(t, tt.offset, got.Offset)
			assert.Equal(t, tt.limit, got.Limit)
		})
	}
}

func TestParseUint(t *testing.T) {
	assert.Equal(t, uint(12), parseUint(" 12 "))
	assert.Equal(t, uint(0), parseUint("-1"))
	assert.Equal(t, uint(0), parseUint(""))
}

func TestHandlersWithoutServices(t *testing.T) {
	SetServices(nil)
	app := fiber.New()
	app.Get("/documents", HandleDocumentList)
	app.Post("/webhooks/stripe", HandleStripeWebhook)

	for _, r := range []struct{ method, path string }{
		{fiber.MethodGet, "/documents"},
		{fiber.MethodPost, "/webhooks/stripe"},
	} {
		resp, err := app.Test(httptest.NewRequest(r.method, r.path, nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode, r.path)
	}
}
