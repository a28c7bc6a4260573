package controllers

import (
	"errors"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/ManuelReschke/TranslaFox/internal/pkg/authentication"
	"github.com/ManuelReschke/TranslaFox/internal/pkg/billing"
	"github.com/ManuelReschke/TranslaFox/internal/pkg/documents"
	"github.com/ManuelReschke/TranslaFox/internal/pkg/pages"
	"github.com/ManuelReschke/TranslaFox/internal/pkg/reconcile"
	"github.com/ManuelReschke/TranslaFox/internal/pkg/upload"
	"github.com/ManuelReschke/TranslaFox/internal/pkg/users"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

var validate = validator.New()

// errorStatus maps domain errors to an HTTP status and a short error code.
var errorStatus = []struct {
	target error
	status int
	code   string
}{
	{gorm.ErrRecordNotFound, fiber.StatusNotFound, "not_found"},

	{reconcile.ErrPaymentNotPending, fiber.StatusConflict, "conflict"},
	{reconcile.ErrDocumentNotPayable, fiber.StatusConflict, "conflict"},
	{authentication.ErrAlreadyFinalized, fiber.StatusConflict, "conflict"},
	{authentication.ErrNotAwaitingAuth, fiber.StatusConflict, "conflict"},
	{documents.ErrNotCheckoutable, fiber.StatusConflict, "conflict"},
	{documents.ErrNotDraft, fiber.StatusConflict, "conflict"},
	{documents.ErrHasPayment, fiber.StatusConflict, "conflict"},
	{documents.ErrFolderExists, fiber.StatusConflict, "conflict"},
	{users.ErrRoleUnchanged, fiber.StatusConflict, "conflict"},
	{users.ErrUserDisabled, fiber.StatusConflict, "conflict"},

	{users.ErrSelfDemotion, fiber.StatusForbidden, "forbidden"},

	{reconcile.ErrConfirmationRequired, fiber.StatusBadRequest, "invalid_request"},
	{reconcile.ErrReasonRequired, fiber.StatusBadRequest, "invalid_request"},
	{reconcile.ErrReceiptRequired, fiber.StatusBadRequest, "invalid_request"},
	{authentication.ErrReasonRequired, fiber.StatusBadRequest, "invalid_request"},
	{authentication.ErrCommentRequired, fiber.StatusBadRequest, "invalid_request"},
	{authentication.ErrTranslatedFileRequired, fiber.StatusBadRequest, "invalid_request"},
	{documents.ErrEmptyUpload, fiber.StatusBadRequest, "invalid_request"},
	{documents.ErrInvalidMethod, fiber.StatusBadRequest, "invalid_request"},
	{documents.ErrInvalidTranslType, fiber.StatusBadRequest, "invalid_request"},
	{users.ErrInvalidRole, fiber.StatusBadRequest, "invalid_request"},
	{pages.ErrUnsupportedType, fiber.StatusBadRequest, "invalid_request"},
	{pages.ErrEmptyDocument, fiber.StatusBadRequest, "invalid_request"},
	{pages.ErrUnreadablePDF, fiber.StatusBadRequest, "invalid_request"},
	{upload.ErrExtensionNotAllowed, fiber.StatusUnsupportedMediaType, "unsupported_media_type"},
	{upload.ErrScriptableContent, fiber.StatusUnsupportedMediaType, "unsupported_media_type"},
	{upload.ErrTypeMismatch, fiber.StatusUnsupportedMediaType, "unsupported_media_type"},

	{billing.ErrMissingSignature, fiber.StatusBadRequest, "invalid_signature"},
	{billing.ErrInvalidSignature, fiber.StatusBadRequest, "invalid_signature"},
	{billing.ErrSignatureExpired, fiber.StatusBadRequest, "invalid_signature"},
}

// respondError writes the JSON error body for err. Unknown errors are logged
// and reported as 500 without leaking details.
func respondError(c *fiber.Ctx, err error) error {
	for _, m := range errorStatus {
		if errors.Is(err, m.target) {
			return c.Status(m.status).JSON(fiber.Map{"error": m.code, "message": err.Error()})
		}
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request", "message": verrs.Error()})
	}
	log.Errorf("[API] %s %s failed: %v", c.Method(), c.Path(), err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Request failed"})
}

func badRequest(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request", "message": message})
}

func serviceUnavailable(c *fiber.Ctx, what string) error {
	return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "service_unavailable", "message": what + " is not configured"})
}

// parseBody decodes the request body into req and runs its validate tags.
func parseBody(c *fiber.Ctx, req interface{}) error {
	if err := c.BodyParser(req); err != nil {
		return errors.New("invalid request body")
	}
	return validate.Struct(req)
}

// paramID parses a positive numeric route parameter.
func paramID(c *fiber.Ctx, name string) (uint, bool) {
	v, err := strconv.ParseUint(strings.TrimSpace(c.Params(name)), 10, 64)
	if err != nil || v == 0 {
		return 0, false
	}
	return uint(v), true
}

// pageParams reads offset/limit query parameters with sane bounds.
func pageParams(c *fiber.Ctx) (offset, limit int) {
	offset = c.QueryInt("offset", 0)
	if offset < 0 {
		offset = 0
	}
	limit = c.QueryInt("limit", defaultPageSize)
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	return offset, limit
}

func queryUint(c *fiber.Ctx, key string) uint {
	return parseUint(c.Query(key))
}

// parseUint returns 0 for empty or malformed input.
func parseUint(raw string) uint {
	v, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0
	}
	return uint(v)
}

func uintPtr(v uint) *uint {
	return &v
}

func paged(items interface{}, total int64, offset, limit int) fiber.Map {
	return fiber.Map{"data": items, "total": total, "offset": offset, "limit": limit}
}
