package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ManuelReschke/TranslaFox/app/models"
	"github.com/ManuelReschke/TranslaFox/app/repository"
	"github.com/ManuelReschke/TranslaFox/internal/pkg/authentication"
	"github.com/ManuelReschke/TranslaFox/internal/pkg/database"
	"github.com/ManuelReschke/TranslaFox/internal/pkg/intake"
	"github.com/ManuelReschke/TranslaFox/internal/pkg/receipt"
)

type stubValidator struct {
	mu       sync.Mutex
	result   receipt.Result
	requests []receipt.Request
}

func (v *stubValidator) Validate(ctx context.Context, req receipt.Request) receipt.Result {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.requests = append(v.requests, req)
	return v.result
}

type fixture struct {
	db        *gorm.DB
	repos     *repository.Repositories
	validator *stubValidator
	customer  *models.User
	finance   *models.User
	auths     []*models.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := database.OpenSQLite(":memory:")
	require.NoError(t, err)
	f := &fixture{db: db, repos: repository.NewRepositories(db), validator: &stubValidator{}}

	f.customer = f.user(t, "ana@example.com", models.ROLE_CUSTOMER)
	f.finance = f.user(t, "fin@example.com", models.ROLE_FINANCE)
	f.auths = []*models.User{
		f.user(t, "auth1@example.com", models.ROLE_AUTHENTICATOR),
		f.user(t, "auth2@example.com", models.ROLE_AUTHENTICATOR),
	}
	return f
}

func (f *fixture) service(atomic bool) *Service {
	return NewService(f.db, f.validator, authentication.Languages{Source: "Portuguese", Target: "English"}, atomic)
}

func (f *fixture) user(t *testing.T, email, role string) *models.User {
	t.Helper()
	u := &models.User{Name: "User " + role, Email: email, Role: role, Status: models.STATUS_ACTIVE}
	require.NoError(t, f.repos.User.Create(u))
	return u
}

func (f *fixture) document(t *testing.T, filename string, pages int, translationType string, bank bool) *models.Document {
	t.Helper()
	d := &models.Document{
		OwnerID:         f.customer.ID,
		Filename:        filename,
		PageCount:       pages,
		Status:          models.DOC_STATUS_ZELLE_PENDING,
		PaymentMethod:   models.PAYMENT_METHOD_ZELLE,
		TranslationType: translationType,
		IsBankStatement: bank,
		SourceLanguage:  "Portuguese",
		TargetLanguage:  "English",
	}
	require.NoError(t, f.repos.Document.Create(d))
	return d
}

func (f *fixture) payment(t *testing.T, doc *models.Document, code string) *models.Payment {
	t.Helper()
	p := &models.Payment{
		DocumentID:       doc.ID,
		OwnerID:          doc.OwnerID,
		AmountCents:      4500,
		Method:           models.PAYMENT_METHOD_ZELLE,
		Status:           models.PAYMENT_STATUS_PENDING_VERIFICATION,
		ConfirmationCode: code,
	}
	require.NoError(t, f.repos.Payment.Create(p))
	return p
}

func (f *fixture) outbox(t *testing.T, family string) []models.OutboxMessage {
	t.Helper()
	var msgs []models.OutboxMessage
	require.NoError(t, f.db.Where("family = ?", family).Order("id").Find(&msgs).Error)
	return msgs
}

func (f *fixture) documentStatus(t *testing.T, id uint) string {
	t.Helper()
	var d models.Document
	require.NoError(t, f.db.Unscoped().First(&d, id).Error)
	return d.Status
}

func TestApprovePaymentCompletesPaymentAndDocument(t *testing.T) {
	for _, atomic := range []bool{true, false} {
		f := newFixture(t)
		doc := f.document(t, "diploma.pdf", 3, models.TRANSLATION_NOTARIZED, true)
		p := f.payment(t, doc, "ZL-123")
		actor := f.finance.ID

		res, err := f.service(atomic).ApprovePayment(context.Background(), ApproveInput{PaymentID: p.ID, ActorID: &actor})
		require.NoError(t, err)
		assert.Equal(t, models.PAYMENT_STATUS_COMPLETED, res.Payment.Status)
		require.NotNil(t, res.Payment.VerifiedBy)
		assert.Equal(t, actor, *res.Payment.VerifiedBy)
		assert.NotNil(t, res.Payment.VerifiedAt)
		assert.True(t, res.DocumentUpdated)
		assert.Equal(t, models.DOC_STATUS_PROCESSING, f.documentStatus(t, doc.ID))
		assert.Equal(t, []uint{doc.ID}, res.SubmittedIDs)
		assert.Equal(t, 3, res.Notified, "customer plus two authenticators")

		intakes := f.outbox(t, models.OUTBOX_FAMILY_INTAKE)
		require.Len(t, intakes, 1)
		var payload intake.Payload
		require.NoError(t, json.Unmarshal(intakes[0].Payload, &payload))
		assert.Equal(t, 70, payload.TotalCost)
		assert.Equal(t, doc.VerificationCode, payload.VerificationCode)

		assert.Len(t, f.outbox(t, models.OUTBOX_FAMILY_PAYMENT), 1)
		assert.Len(t, f.outbox(t, models.OUTBOX_FAMILY_NOTIFICATION), 2)

		count, err := f.repos.Verification.CountByOriginalDocumentID(doc.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)

		logs, _, err := f.repos.ActionLog.List(repository.ActionLogFilter{ActionType: models.ACTION_PAYMENT_APPROVED})
		require.NoError(t, err)
		require.Len(t, logs, 1)
		assert.Equal(t, "ZL-123", logs[0].MetadataMap()["confirmation_code"])
	}
}

func TestApprovePaymentRequiresConfirmationCodeFromOperator(t *testing.T) {
	f := newFixture(t)
	doc := f.document(t, "a.pdf", 1, models.TRANSLATION_CERTIFIED, false)
	p := f.payment(t, doc, "")
	actor := f.finance.ID
	svc := f.service(true)

	_, err := svc.ApprovePayment(context.Background(), ApproveInput{PaymentID: p.ID, ActorID: &actor})
	assert.ErrorIs(t, err, ErrConfirmationRequired)

	res, err := svc.ApprovePayment(context.Background(), ApproveInput{PaymentID: p.ID, ActorID: &actor, ConfirmationCode: " ZL-9 "})
	require.NoError(t, err)
	assert.Equal(t, "ZL-9", res.Payment.ConfirmationCode)
}

func TestApprovePaymentRejectsFinalPayments(t *testing.T) {
	f := newFixture(t)
	doc := f.document(t, "a.pdf", 1, models.TRANSLATION_CERTIFIED, false)
	p := f.payment(t, doc, "ZL-1")
	actor := f.finance.ID
	svc := f.service(true)

	_, err := svc.ApprovePayment(context.Background(), ApproveInput{PaymentID: p.ID, ActorID: &actor})
	require.NoError(t, err)
	_, err = svc.ApprovePayment(context.Background(), ApproveInput{PaymentID: p.ID, ActorID: &actor})
	assert.ErrorIs(t, err, ErrPaymentNotPending)

	assert.Len(t, f.outbox(t, models.OUTBOX_FAMILY_INTAKE), 1, "no second intake submission")
}

func TestApprovePaymentDocumentFailure(t *testing.T) {
	t.Run("step-wise keeps the completed payment", func(t *testing.T) {
		f := newFixture(t)
		doc := f.document(t, "gone.pdf", 1, models.TRANSLATION_CERTIFIED, false)
		p := f.payment(t, doc, "ZL-1")
		require.NoError(t, f.repos.Document.Delete(doc.ID))
		actor := f.finance.ID

		res, err := f.service(false).ApprovePayment(context.Background(), ApproveInput{PaymentID: p.ID, ActorID: &actor})
		require.NoError(t, err)
		assert.False(t, res.DocumentUpdated)
		assert.Equal(t, models.PAYMENT_STATUS_COMPLETED, res.Payment.Status)
		assert.Equal(t, models.DOC_STATUS_ZELLE_PENDING, f.documentStatus(t, doc.ID))

		logs, _, err := f.repos.ActionLog.List(repository.ActionLogFilter{ActionType: models.ACTION_DOCUMENT_STATUS_FAILED})
		require.NoError(t, err)
		assert.Len(t, logs, 1)
	})

	t.Run("atomic rolls everything back", func(t *testing.T) {
		f := newFixture(t)
		doc := f.document(t, "gone.pdf", 1, models.TRANSLATION_CERTIFIED, false)
		p := f.payment(t, doc, "ZL-1")
		require.NoError(t, f.repos.Document.Delete(doc.ID))
		actor := f.finance.ID

		_, err := f.service(true).ApprovePayment(context.Background(), ApproveInput{PaymentID: p.ID, ActorID: &actor})
		assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

		stored, err := f.repos.Payment.GetByID(p.ID)
		require.NoError(t, err)
		assert.Equal(t, models.PAYMENT_STATUS_PENDING_VERIFICATION, stored.Status)

		var outbox int64
		require.NoError(t, f.db.Model(&models.OutboxMessage{}).Count(&outbox).Error)
		assert.Zero(t, outbox)
	})
}

func TestApprovePaymentSubmitsCorrelatedDocuments(t *testing.T) {
	f := newFixture(t)
	linked := f.document(t, "page1.pdf", 1, models.TRANSLATION_CERTIFIED, false)
	sibling := f.document(t, "page2.pdf", 2, models.TRANSLATION_CERTIFIED, false)

	old := f.document(t, "older.pdf", 1, models.TRANSLATION_CERTIFIED, false)
	require.NoError(t, f.db.Model(&models.Document{}).Where("id = ?", old.ID).Update("created_at", time.Now().UTC().Add(-time.Hour)).Error)

	p := f.payment(t, linked, "ZL-7")
	actor := f.finance.ID

	res, err := f.service(true).ApprovePayment(context.Background(), ApproveInput{PaymentID: p.ID, ActorID: &actor})
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint{linked.ID, sibling.ID}, res.SubmittedIDs)
	assert.Len(t, f.outbox(t, models.OUTBOX_FAMILY_INTAKE), 2)

	// Only the linked document changes status.
	assert.Equal(t, models.DOC_STATUS_PROCESSING, f.documentStatus(t, linked.ID))
	assert.Equal(t, models.DOC_STATUS_ZELLE_PENDING, f.documentStatus(t, sibling.ID))
}

func TestApprovePaymentFallsBackToLinkedDocument(t *testing.T) {
	f := newFixture(t)
	linked := f.document(t, "card.pdf", 1, models.TRANSLATION_CERTIFIED, false)
	require.NoError(t, f.db.Model(&models.Document{}).Where("id = ?", linked.ID).Update("payment_method", models.PAYMENT_METHOD_STRIPE).Error)
	p := f.payment(t, linked, "ZL-1")
	actor := f.finance.ID

	res, err := f.service(true).ApprovePayment(context.Background(), ApproveInput{PaymentID: p.ID, ActorID: &actor})
	require.NoError(t, err)
	assert.Equal(t, []uint{linked.ID}, res.SubmittedIDs)
}

func TestRejectPaymentNeverTouchesDocuments(t *testing.T) {
	f := newFixture(t)
	doc := f.document(t, "a.pdf", 1, models.TRANSLATION_CERTIFIED, false)
	_, _, err := f.repos.Verification.EnsureForDocument(&models.VerificationRecord{
		OriginalDocumentID: doc.ID, OwnerID: doc.OwnerID, Filename: doc.Filename, Status: models.VERIFICATION_STATUS_PENDING,
	})
	require.NoError(t, err)
	p := f.payment(t, doc, "ZL-1")
	actor := f.finance.ID
	svc := f.service(true)

	_, err = svc.RejectPayment(context.Background(), RejectInput{PaymentID: p.ID, Reason: "  ", ActorID: &actor})
	assert.ErrorIs(t, err, ErrReasonRequired)

	stored, err := svc.RejectPayment(context.Background(), RejectInput{PaymentID: p.ID, Reason: models.REJECT_REASON_AMOUNT_MISMATCH, Comment: "paid 40", ActorID: &actor})
	require.NoError(t, err)
	assert.Equal(t, models.PAYMENT_STATUS_FAILED, stored.Status)
	assert.Equal(t, models.REJECT_REASON_AMOUNT_MISMATCH, stored.RejectionReason)
	assert.Equal(t, "paid 40", stored.RejectionComment)

	assert.Equal(t, models.DOC_STATUS_ZELLE_PENDING, f.documentStatus(t, doc.ID))
	rec, err := f.repos.Verification.GetByOriginalDocumentID(doc.ID)
	require.NoError(t, err)
	assert.Equal(t, models.VERIFICATION_STATUS_PENDING, rec.Status)

	assert.Len(t, f.outbox(t, models.OUTBOX_FAMILY_PAYMENT), 1)
	assert.Empty(t, f.outbox(t, models.OUTBOX_FAMILY_INTAKE))

	_, err = svc.RejectPayment(context.Background(), RejectInput{PaymentID: p.ID, Reason: "other", ActorID: &actor})
	assert.ErrorIs(t, err, ErrPaymentNotPending)
}

func TestOutboxRowsReferenceTheirEntity(t *testing.T) {
	f := newFixture(t)
	f.document(t, "a.pdf", 1, models.TRANSLATION_CERTIFIED, false)
	f.document(t, "b.pdf", 1, models.TRANSLATION_CERTIFIED, false)
	approved := f.document(t, "c.pdf", 1, models.TRANSLATION_CERTIFIED, false)
	rejected := f.document(t, "d.pdf", 1, models.TRANSLATION_CERTIFIED, false)
	p := f.payment(t, approved, "ZL-1")
	q := f.payment(t, rejected, "ZL-2")
	require.NotEqual(t, approved.ID, p.ID, "ids must differ to tell the entities apart")
	actor := f.finance.ID
	svc := f.service(true)

	_, err := svc.ApprovePayment(context.Background(), ApproveInput{PaymentID: p.ID, ActorID: &actor})
	require.NoError(t, err)
	_, err = svc.RejectPayment(context.Background(), RejectInput{PaymentID: q.ID, Reason: models.REJECT_REASON_AMOUNT_MISMATCH, ActorID: &actor})
	require.NoError(t, err)

	payments := f.outbox(t, models.OUTBOX_FAMILY_PAYMENT)
	require.Len(t, payments, 2)
	assert.Equal(t, models.ENTITY_PAYMENT, payments[0].EntityType)
	assert.Equal(t, p.ID, payments[0].EntityID)
	assert.Equal(t, models.ENTITY_PAYMENT, payments[1].EntityType)
	assert.Equal(t, q.ID, payments[1].EntityID)

	for _, msg := range f.outbox(t, models.OUTBOX_FAMILY_NOTIFICATION) {
		assert.Equal(t, models.ENTITY_DOCUMENT, msg.EntityType)
		assert.Equal(t, approved.ID, msg.EntityID)
	}
	for _, msg := range f.outbox(t, models.OUTBOX_FAMILY_INTAKE) {
		assert.Equal(t, models.ENTITY_DOCUMENT, msg.EntityType)
	}
}

func TestSubmitReceiptValidAutoApproves(t *testing.T) {
	f := newFixture(t)
	f.validator.result = receipt.Result{Valid: true, StatusCode: 200}
	doc := f.document(t, "a.pdf", 2, models.TRANSLATION_CERTIFIED, false)

	res, err := f.service(true).SubmitReceipt(context.Background(), ReceiptInput{
		DocumentID: doc.ID, OwnerID: f.customer.ID, ReceiptURL: "https://files/receipt.png",
	})
	require.NoError(t, err)
	assert.True(t, res.AutoApproved)
	assert.Equal(t, models.PAYMENT_STATUS_COMPLETED, res.Payment.Status)
	assert.Nil(t, res.Payment.VerifiedBy)
	assert.Equal(t, int64(3000), res.Payment.AmountCents)
	assert.Equal(t, models.DOC_STATUS_PROCESSING, f.documentStatus(t, doc.ID))

	require.Len(t, f.validator.requests, 1)
	assert.Equal(t, 30.0, f.validator.requests[0].Amount)
	assert.Equal(t, res.Payment.ID, f.validator.requests[0].PaymentID)

	logs, _, err := f.repos.ActionLog.List(repository.ActionLogFilter{ActionType: models.ACTION_PAYMENT_APPROVED})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, models.PERFORMER_SYSTEM, logs[0].PerformedByType)
}

func TestSubmitReceiptInvalidGoesToManualReview(t *testing.T) {
	cases := []struct {
		name   string
		result receipt.Result
	}{
		{"missing phrase", receipt.Result{StatusCode: 200, Body: "could not read receipt"}},
		{"server error", receipt.Result{StatusCode: 502}},
		{"network failure", receipt.Result{Err: errors.New("dial tcp: connection refused")}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			f.validator.result = tc.result
			doc := f.document(t, "a.pdf", 1, models.TRANSLATION_CERTIFIED, false)

			res, err := f.service(true).SubmitReceipt(context.Background(), ReceiptInput{
				DocumentID: doc.ID, OwnerID: f.customer.ID, ReceiptURL: "https://files/receipt.png", ConfirmationCode: "ZL-5",
			})
			require.NoError(t, err)
			assert.False(t, res.AutoApproved)
			assert.Equal(t, models.PAYMENT_STATUS_PENDING_MANUAL_REVIEW, res.Payment.Status)
			assert.Equal(t, models.DOC_STATUS_PENDING_MANUAL_REVIEW, f.documentStatus(t, doc.ID))
			assert.Empty(t, f.outbox(t, models.OUTBOX_FAMILY_INTAKE))

			// the finance user is the only admin/finance account
			assert.Len(t, f.outbox(t, models.OUTBOX_FAMILY_PAYMENT), 1)
		})
	}
}

func TestSubmitReceiptValidation(t *testing.T) {
	f := newFixture(t)
	svc := f.service(true)
	doc := f.document(t, "a.pdf", 1, models.TRANSLATION_CERTIFIED, false)

	_, err := svc.SubmitReceipt(context.Background(), ReceiptInput{DocumentID: doc.ID, OwnerID: f.customer.ID})
	assert.ErrorIs(t, err, ErrReceiptRequired)

	_, err = svc.SubmitReceipt(context.Background(), ReceiptInput{DocumentID: doc.ID, OwnerID: f.finance.ID, ReceiptURL: "x"})
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	require.NoError(t, f.repos.Document.UpdateStatus(doc.ID, models.DOC_STATUS_COMPLETED))
	_, err = svc.SubmitReceipt(context.Background(), ReceiptInput{DocumentID: doc.ID, OwnerID: f.customer.ID, ReceiptURL: "x"})
	assert.ErrorIs(t, err, ErrDocumentNotPayable)
	assert.Empty(t, f.validator.requests)
}

func TestListPayments(t *testing.T) {
	f := newFixture(t)
	a := f.payment(t, f.document(t, "a.pdf", 1, models.TRANSLATION_CERTIFIED, false), "1")
	f.payment(t, f.document(t, "b.pdf", 1, models.TRANSLATION_CERTIFIED, false), "2")
	actor := f.finance.ID
	svc := f.service(true)
	_, err := svc.RejectPayment(context.Background(), RejectInput{PaymentID: a.ID, Reason: "other", ActorID: &actor})
	require.NoError(t, err)

	pending, total, err := svc.ListPayments(context.Background(), repository.PaymentFilter{Status: models.PAYMENT_STATUS_PENDING_VERIFICATION})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, pending, 1)
	require.NotNil(t, pending[0].Document)
	assert.Equal(t, "b.pdf", pending[0].Document.Filename)
}
