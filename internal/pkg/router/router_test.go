package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ManuelReschke/TranslaFox/app/controllers"
	"github.com/ManuelReschke/TranslaFox/app/models"
	"github.com/ManuelReschke/TranslaFox/app/repository"
	"github.com/ManuelReschke/TranslaFox/internal/pkg/authentication"
	"github.com/ManuelReschke/TranslaFox/internal/pkg/billing"
	"github.com/ManuelReschke/TranslaFox/internal/pkg/database"
	"github.com/ManuelReschke/TranslaFox/internal/pkg/documents"
	"github.com/ManuelReschke/TranslaFox/internal/pkg/receipt"
	"github.com/ManuelReschke/TranslaFox/internal/pkg/reconcile"
	"github.com/ManuelReschke/TranslaFox/internal/pkg/statistics"
	"github.com/ManuelReschke/TranslaFox/internal/pkg/storage"
	"github.com/ManuelReschke/TranslaFox/internal/pkg/users"
)

const stripeSecret = "whsec_router_test"

// Handlers read the package-level services, so tests in this file must not run in parallel.
var servicesMu sync.Mutex

type stubValidator struct {
	result receipt.Result
}

func (v stubValidator) Validate(context.Context, receipt.Request) receipt.Result {
	return v.result
}

type sweepCounter struct {
	calls int
}

func (s *sweepCounter) RunDraftSweepOnce() error {
	s.calls++
	return nil
}

type apiFixture struct {
	t       *testing.T
	app     *fiber.App
	db      *gorm.DB
	repos   *repository.Repositories
	sweeper *sweepCounter
	keys    map[string]string
	ids     map[string]uint
}

func newAPIFixture(t *testing.T, validation receipt.Result) *apiFixture {
	t.Helper()
	servicesMu.Lock()
	t.Cleanup(func() {
		controllers.SetServices(nil)
		servicesMu.Unlock()
	})

	db, err := database.OpenSQLite(":memory:")
	require.NoError(t, err)
	langs := authentication.Languages{Source: "Portuguese", Target: "English"}
	userSvc := users.NewService(db)
	sweeper := &sweepCounter{}
	controllers.SetServices(&controllers.Services{
		Documents:      documents.NewService(db, storage.NewMemoryStore("https://cdn.example.com")),
		Reconcile:      reconcile.NewService(db, stubValidator{result: validation}, langs, true),
		Authentication: authentication.NewService(db, langs),
		Billing:        billing.NewService(db, stripeSecret, langs),
		Users:          userSvc,
		Drafts:         sweeper,
		Statistics:     statistics.NewService(db, nil),
	})

	f := &apiFixture{
		t:       t,
		db:      db,
		repos:   repository.NewRepositories(db),
		sweeper: sweeper,
		keys:    map[string]string{},
		ids:     map[string]uint{},
	}
	for _, role := range []string{models.ROLE_ADMIN, models.ROLE_CUSTOMER, models.ROLE_FINANCE, models.ROLE_AUTHENTICATOR} {
		u := &models.User{Name: "User " + role, Email: role + "@example.com", Role: role, Status: models.STATUS_ACTIVE}
		require.NoError(t, f.repos.User.Create(u))
		f.ids[role] = u.ID
	}
	for role, id := range f.ids {
		raw, _, err := userSvc.IssueAPIKey(context.Background(), f.ids[models.ROLE_ADMIN], id)
		require.NoError(t, err)
		f.keys[role] = raw
	}

	f.app = fiber.New()
	InstallRouter(f.app, userSvc, nil)
	return f
}

func (f *apiFixture) do(req *http.Request, role string) (int, map[string]interface{}) {
	f.t.Helper()
	if role != "" {
		req.Header.Set("X-API-Key", f.keys[role])
	}
	resp, err := f.app.Test(req, -1)
	require.NoError(f.t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(f.t, err)
	body := map[string]interface{}{}
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get("Content-Type"), fiber.MIMEApplicationJSON) {
		require.NoError(f.t, json.Unmarshal(raw, &body))
	}
	return resp.StatusCode, body
}

func (f *apiFixture) json(method, path, role string, payload interface{}) (int, map[string]interface{}) {
	f.t.Helper()
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		require.NoError(f.t, err)
		body = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, body)
	if payload != nil {
		req.Header.Set("Content-Type", fiber.MIMEApplicationJSON)
	}
	return f.do(req, role)
}

func (f *apiFixture) upload(filename string, content []byte, fields map[string]string) (int, map[string]interface{}) {
	f.t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filename)
	require.NoError(f.t, err)
	_, err = part.Write(content)
	require.NoError(f.t, err)
	for k, v := range fields {
		require.NoError(f.t, w.WriteField(k, v))
	}
	require.NoError(f.t, w.Close())

	req := httptest.NewRequest(fiber.MethodPost, "/api/v1/documents", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return f.do(req, models.ROLE_CUSTOMER)
}

func (f *apiFixture) document(status, method string) *models.Document {
	f.t.Helper()
	d := &models.Document{
		OwnerID:         f.ids[models.ROLE_CUSTOMER],
		Filename:        "certidao.pdf",
		PageCount:       2,
		CostCents:       3000,
		Status:          status,
		PaymentMethod:   method,
		TranslationType: models.TRANSLATION_CERTIFIED,
		SourceLanguage:  "Portuguese",
		TargetLanguage:  "English",
	}
	require.NoError(f.t, f.repos.Document.Create(d))
	return d
}

func idOf(t *testing.T, body map[string]interface{}, keys ...string) uint {
	t.Helper()
	var cur interface{} = body
	for _, k := range keys {
		m, ok := cur.(map[string]interface{})
		require.True(t, ok, "expected object at %q", k)
		cur = m[k]
	}
	n, ok := cur.(float64)
	require.True(t, ok, "expected number at %v", keys)
	return uint(n)
}

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01")

func TestPingIsPublic(t *testing.T) {
	f := newAPIFixture(t, receipt.Result{})
	code, body := f.json(fiber.MethodGet, "/api/", "", nil)
	assert.Equal(t, fiber.StatusOK, code)
	assert.Equal(t, "ok", body["status"])
}

func TestAPIRequiresKey(t *testing.T) {
	f := newAPIFixture(t, receipt.Result{})

	code, _ := f.json(fiber.MethodGet, "/api/v1/documents", "", nil)
	assert.Equal(t, fiber.StatusUnauthorized, code)

	req := httptest.NewRequest(fiber.MethodGet, "/api/v1/documents", nil)
	req.Header.Set("Authorization", "Bearer "+f.keys[models.ROLE_CUSTOMER])
	code, _ = f.do(req, "")
	assert.Equal(t, fiber.StatusOK, code)
}

func TestRoleGating(t *testing.T) {
	f := newAPIFixture(t, receipt.Result{})

	tests := []struct {
		path string
		role string
		want int
	}{
		{"/api/v1/payments", models.ROLE_CUSTOMER, fiber.StatusForbidden},
		{"/api/v1/payments", models.ROLE_AUTHENTICATOR, fiber.StatusForbidden},
		{"/api/v1/payments", models.ROLE_FINANCE, fiber.StatusOK},
		{"/api/v1/payments", models.ROLE_ADMIN, fiber.StatusOK},
		{"/api/v1/verifications", models.ROLE_FINANCE, fiber.StatusForbidden},
		{"/api/v1/verifications", models.ROLE_AUTHENTICATOR, fiber.StatusOK},
		{"/api/v1/admin/users", models.ROLE_FINANCE, fiber.StatusForbidden},
		{"/api/v1/admin/users", models.ROLE_ADMIN, fiber.StatusOK},
		{"/api/v1/admin/outbox", models.ROLE_ADMIN, fiber.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.role+" "+tt.path, func(t *testing.T) {
			code, _ := f.json(fiber.MethodGet, tt.path, tt.role, nil)
			assert.Equal(t, tt.want, code)
		})
	}
}

func TestUploadListAndDeleteDraft(t *testing.T) {
	f := newAPIFixture(t, receipt.Result{})

	code, body := f.upload("rg.png", pngHeader, map[string]string{"translation_type": models.TRANSLATION_NOTARIZED})
	require.Equal(t, fiber.StatusCreated, code, body)
	assert.Equal(t, float64(1), body["page_count"])
	assert.Equal(t, models.DOC_STATUS_DRAFT, body["status"])
	docID := idOf(t, body, "id")

	code, body = f.json(fiber.MethodGet, "/api/v1/documents", models.ROLE_CUSTOMER, nil)
	require.Equal(t, fiber.StatusOK, code)
	assert.Equal(t, float64(1), body["total"])

	// Another user cannot see or delete it.
	code, _ = f.json(fiber.MethodDelete, fmt.Sprintf("/api/v1/documents/%d", docID), models.ROLE_FINANCE, nil)
	assert.Equal(t, fiber.StatusNotFound, code)

	code, _ = f.json(fiber.MethodDelete, fmt.Sprintf("/api/v1/documents/%d", docID), models.ROLE_CUSTOMER, nil)
	assert.Equal(t, fiber.StatusNoContent, code)

	code, _ = f.json(fiber.MethodDelete, fmt.Sprintf("/api/v1/documents/%d", docID), models.ROLE_CUSTOMER, nil)
	assert.Equal(t, fiber.StatusNotFound, code)
}

func TestUploadRejectsBadInput(t *testing.T) {
	f := newAPIFixture(t, receipt.Result{})

	code, _ := f.upload("a.gif", []byte("GIF89a"), nil)
	assert.Equal(t, fiber.StatusUnsupportedMediaType, code)

	code, _ = f.upload("rg.png", pngHeader, map[string]string{"translation_type": "Sworn"})
	assert.Equal(t, fiber.StatusBadRequest, code)

	code, _ = f.upload("rg.png", pngHeader, map[string]string{"folder_id": "abc"})
	assert.Equal(t, fiber.StatusBadRequest, code)

	code, _ = f.json(fiber.MethodPost, "/api/v1/documents", models.ROLE_CUSTOMER, map[string]string{})
	assert.Equal(t, fiber.StatusBadRequest, code)
}

func TestCheckoutValidatesMethod(t *testing.T) {
	f := newAPIFixture(t, receipt.Result{})
	doc := f.document(models.DOC_STATUS_DRAFT, "")
	path := fmt.Sprintf("/api/v1/documents/%d/checkout", doc.ID)

	code, _ := f.json(fiber.MethodPost, path, models.ROLE_CUSTOMER, map[string]string{"method": "paypal"})
	assert.Equal(t, fiber.StatusBadRequest, code)

	code, body := f.json(fiber.MethodPost, path, models.ROLE_CUSTOMER, map[string]string{"method": models.PAYMENT_METHOD_ZELLE})
	require.Equal(t, fiber.StatusOK, code)
	assert.Equal(t, models.DOC_STATUS_ZELLE_PENDING, body["status"])
}

func TestZelleReceiptManualReviewThenFinanceApproval(t *testing.T) {
	f := newAPIFixture(t, receipt.Result{Valid: false, StatusCode: http.StatusUnprocessableEntity})
	doc := f.document(models.DOC_STATUS_ZELLE_PENDING, models.PAYMENT_METHOD_ZELLE)

	code, body := f.json(fiber.MethodPost, fmt.Sprintf("/api/v1/documents/%d/receipt", doc.ID), models.ROLE_CUSTOMER,
		map[string]string{"receipt_url": "https://cdn.example.com/r.png", "confirmation_code": "ZL-42"})
	require.Equal(t, fiber.StatusAccepted, code, body)
	assert.Equal(t, false, body["auto_approved"])
	paymentID := idOf(t, body, "payment", "id")

	code, body = f.json(fiber.MethodGet, "/api/v1/payments?status="+models.PAYMENT_STATUS_PENDING_MANUAL_REVIEW, models.ROLE_FINANCE, nil)
	require.Equal(t, fiber.StatusOK, code)
	assert.Equal(t, float64(1), body["total"])

	approvePath := fmt.Sprintf("/api/v1/payments/%d/approve", paymentID)
	code, body = f.json(fiber.MethodPost, approvePath, models.ROLE_FINANCE, nil)
	require.Equal(t, fiber.StatusOK, code, body)
	assert.Equal(t, true, body["document_updated"])

	code, _ = f.json(fiber.MethodPost, approvePath, models.ROLE_FINANCE, nil)
	assert.Equal(t, fiber.StatusConflict, code)

	var stored models.Document
	require.NoError(t, f.db.First(&stored, doc.ID).Error)
	assert.Equal(t, models.DOC_STATUS_PROCESSING, stored.Status)
}

func TestReceiptAutoApproved(t *testing.T) {
	f := newAPIFixture(t, receipt.Result{Valid: true, StatusCode: http.StatusOK})
	doc := f.document(models.DOC_STATUS_ZELLE_PENDING, models.PAYMENT_METHOD_ZELLE)

	code, body := f.json(fiber.MethodPost, fmt.Sprintf("/api/v1/documents/%d/receipt", doc.ID), models.ROLE_CUSTOMER,
		map[string]string{"receipt_url": "https://cdn.example.com/r.png"})
	require.Equal(t, fiber.StatusAccepted, code, body)
	assert.Equal(t, true, body["auto_approved"])

	code, _ = f.json(fiber.MethodPost, fmt.Sprintf("/api/v1/documents/%d/receipt", doc.ID), models.ROLE_CUSTOMER, map[string]string{})
	assert.Equal(t, fiber.StatusBadRequest, code)
}

func TestPaymentApprovalNeedsConfirmationCode(t *testing.T) {
	f := newAPIFixture(t, receipt.Result{})
	doc := f.document(models.DOC_STATUS_ZELLE_PENDING, models.PAYMENT_METHOD_ZELLE)
	p := &models.Payment{DocumentID: doc.ID, OwnerID: doc.OwnerID, AmountCents: 3000, Method: models.PAYMENT_METHOD_ZELLE, Status: models.PAYMENT_STATUS_PENDING_VERIFICATION}
	require.NoError(t, f.repos.Payment.Create(p))
	path := fmt.Sprintf("/api/v1/payments/%d/approve", p.ID)

	code, _ := f.json(fiber.MethodPost, path, models.ROLE_FINANCE, nil)
	assert.Equal(t, fiber.StatusBadRequest, code)

	code, _ = f.json(fiber.MethodPost, path, models.ROLE_FINANCE, map[string]string{"confirmation_code": "ZL-7"})
	assert.Equal(t, fiber.StatusOK, code)
}

func TestPaymentReject(t *testing.T) {
	f := newAPIFixture(t, receipt.Result{})
	doc := f.document(models.DOC_STATUS_ZELLE_PENDING, models.PAYMENT_METHOD_ZELLE)
	p := &models.Payment{DocumentID: doc.ID, OwnerID: doc.OwnerID, AmountCents: 3000, Method: models.PAYMENT_METHOD_ZELLE, Status: models.PAYMENT_STATUS_PENDING_VERIFICATION}
	require.NoError(t, f.repos.Payment.Create(p))
	path := fmt.Sprintf("/api/v1/payments/%d/reject", p.ID)

	code, _ := f.json(fiber.MethodPost, path, models.ROLE_FINANCE, map[string]string{"comment": "blurry"})
	assert.Equal(t, fiber.StatusBadRequest, code)

	code, body := f.json(fiber.MethodPost, path, models.ROLE_FINANCE, map[string]string{"reason": "amount mismatch"})
	require.Equal(t, fiber.StatusOK, code)
	assert.Equal(t, models.PAYMENT_STATUS_FAILED, body["status"])

	code, _ = f.json(fiber.MethodPost, "/api/v1/payments/999/reject", models.ROLE_FINANCE, map[string]string{"reason": "x"})
	assert.Equal(t, fiber.StatusNotFound, code)

	code, _ = f.json(fiber.MethodPost, "/api/v1/payments/abc/reject", models.ROLE_FINANCE, map[string]string{"reason": "x"})
	assert.Equal(t, fiber.StatusBadRequest, code)
}

func TestVerificationApproveAndReject(t *testing.T) {
	f := newAPIFixture(t, receipt.Result{})
	doc := f.document(models.DOC_STATUS_PROCESSING, models.PAYMENT_METHOD_STRIPE)
	other := f.document(models.DOC_STATUS_PROCESSING, models.PAYMENT_METHOD_STRIPE)
	auth := models.ROLE_AUTHENTICATOR

	code, _ := f.json(fiber.MethodPost, fmt.Sprintf("/api/v1/verifications/%d/approve", doc.ID), auth, map[string]string{})
	assert.Equal(t, fiber.StatusBadRequest, code)

	code, body := f.json(fiber.MethodPost, fmt.Sprintf("/api/v1/verifications/%d/approve", doc.ID), auth,
		map[string]string{"translated_file_url": "https://cdn.example.com/out.pdf"})
	require.Equal(t, fiber.StatusOK, code, body)
	assert.Equal(t, true, body["record_synthesized"])

	code, _ = f.json(fiber.MethodPost, fmt.Sprintf("/api/v1/verifications/%d/approve", doc.ID), auth,
		map[string]string{"translated_file_url": "https://cdn.example.com/out.pdf"})
	assert.Equal(t, fiber.StatusConflict, code)

	code, _ = f.json(fiber.MethodPost, fmt.Sprintf("/api/v1/verifications/%d/reject", other.ID), auth,
		map[string]string{"reason": "illegible"})
	assert.Equal(t, fiber.StatusBadRequest, code, "comment is required")

	code, _ = f.json(fiber.MethodPost, fmt.Sprintf("/api/v1/verifications/%d/reject", other.ID), auth,
		map[string]string{"reason": "illegible", "comment": "page 2 cut off"})
	assert.Equal(t, fiber.StatusOK, code)
}

func TestAdminUserManagement(t *testing.T) {
	f := newAPIFixture(t, receipt.Result{})
	admin := models.ROLE_ADMIN
	customer := f.ids[models.ROLE_CUSTOMER]

	code, _ := f.json(fiber.MethodPost, fmt.Sprintf("/api/v1/admin/users/%d/role", customer), admin, map[string]string{"role": "owner"})
	assert.Equal(t, fiber.StatusBadRequest, code)

	code, _ = f.json(fiber.MethodPost, fmt.Sprintf("/api/v1/admin/users/%d/role", f.ids[admin]), admin, map[string]string{"role": models.ROLE_CUSTOMER})
	assert.Equal(t, fiber.StatusForbidden, code)

	code, body := f.json(fiber.MethodPost, fmt.Sprintf("/api/v1/admin/users/%d/role", customer), admin, map[string]string{"role": models.ROLE_FINANCE})
	require.Equal(t, fiber.StatusOK, code)
	assert.Equal(t, models.ROLE_FINANCE, body["role"])

	code, body = f.json(fiber.MethodPost, fmt.Sprintf("/api/v1/admin/users/%d/api-key", customer), admin, nil)
	require.Equal(t, fiber.StatusCreated, code)
	newKey, _ := body["api_key"].(string)
	assert.NotEmpty(t, newKey)

	// The old key stops working once rotated.
	code, _ = f.json(fiber.MethodGet, "/api/v1/documents", models.ROLE_CUSTOMER, nil)
	assert.Equal(t, fiber.StatusUnauthorized, code)

	code, body = f.json(fiber.MethodGet, "/api/v1/admin/action-logs?entity_type=profile", admin, nil)
	require.Equal(t, fiber.StatusOK, code)
	assert.NotZero(t, body["total"])
}

func TestAdminDraftSweep(t *testing.T) {
	f := newAPIFixture(t, receipt.Result{})
	code, _ := f.json(fiber.MethodPost, "/api/v1/admin/drafts/sweep", models.ROLE_ADMIN, nil)
	assert.Equal(t, fiber.StatusAccepted, code)
	assert.Equal(t, 1, f.sweeper.calls)
}

func TestAdminStatistics(t *testing.T) {
	f := newAPIFixture(t, receipt.Result{})
	f.document(models.DOC_STATUS_DRAFT, "")

	code, _ := f.json(fiber.MethodGet, "/api/v1/admin/statistics", models.ROLE_FINANCE, nil)
	assert.Equal(t, fiber.StatusForbidden, code)

	code, body := f.json(fiber.MethodGet, "/api/v1/admin/statistics", models.ROLE_ADMIN, nil)
	require.Equal(t, fiber.StatusOK, code)
	assert.EqualValues(t, 4, body["total_users"])
	byStatus, ok := body["documents_by_status"].(map[string]interface{})
	require.True(t, ok)
	assert.EqualValues(t, 1, byStatus[models.DOC_STATUS_DRAFT])
}

func TestNotificationsAreScopedToCaller(t *testing.T) {
	f := newAPIFixture(t, receipt.Result{})
	n := &models.Notification{UserID: f.ids[models.ROLE_CUSTOMER], Type: models.NOTIFICATION_PAYMENT_APPROVED, Title: "Paid", Content: "ok"}
	require.NoError(t, f.repos.Notification.Create(n))

	code, body := f.json(fiber.MethodGet, "/api/v1/notifications?unread=true", models.ROLE_CUSTOMER, nil)
	require.Equal(t, fiber.StatusOK, code)
	assert.Len(t, body["data"], 1)

	code, _ = f.json(fiber.MethodPost, fmt.Sprintf("/api/v1/notifications/%d/read", n.ID), models.ROLE_FINANCE, nil)
	assert.Equal(t, fiber.StatusNotFound, code)

	code, _ = f.json(fiber.MethodPost, fmt.Sprintf("/api/v1/notifications/%d/read", n.ID), models.ROLE_CUSTOMER, nil)
	assert.Equal(t, fiber.StatusNoContent, code)
}

func TestStripeWebhook(t *testing.T) {
	f := newAPIFixture(t, receipt.Result{})
	doc := f.document(models.DOC_STATUS_STRIPE_PENDING, models.PAYMENT_METHOD_STRIPE)

	payload := []byte(fmt.Sprintf(`{"id":"evt_router_1","type":"checkout.session.completed","data":{"object":{"id":"cs_1","payment_intent":"pi_1","payment_status":"paid","amount_total":3000,"metadata":{"document_id":"%d"}}}}`, doc.ID))
	send := func(sig string) (int, map[string]interface{}) {
		req := httptest.NewRequest(fiber.MethodPost, "/webhooks/stripe", bytes.NewReader(payload))
		req.Header.Set("Content-Type", fiber.MIMEApplicationJSON)
		if sig != "" {
			req.Header.Set("Stripe-Signature", sig)
		}
		return f.do(req, "")
	}

	code, _ := send("")
	assert.Equal(t, fiber.StatusBadRequest, code)
	code, _ = send(billing.SignStripePayload(payload, "wrong", time.Now()))
	assert.Equal(t, fiber.StatusBadRequest, code)

	code, body := send(billing.SignStripePayload(payload, stripeSecret, time.Now()))
	require.Equal(t, fiber.StatusOK, code, body)
	assert.NotZero(t, body["payment_id"])

	code, body = send(billing.SignStripePayload(payload, stripeSecret, time.Now()))
	require.Equal(t, fiber.StatusOK, code)
	assert.Equal(t, true, body["duplicate"])

	var stored models.Document
	require.NoError(t, f.db.First(&stored, doc.ID).Error)
	assert.Equal(t, models.DOC_STATUS_PROCESSING, stored.Status)
}
