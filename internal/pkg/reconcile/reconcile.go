package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/ManuelReschke/TranslaFox/app/models"
	"github.com/ManuelReschke/TranslaFox/app/repository"
	"github.com/ManuelReschke/TranslaFox/internal/pkg/authentication"
	"github.com/ManuelReschke/TranslaFox/internal/pkg/env"
	"github.com/ManuelReschke/TranslaFox/internal/pkg/intake"
	"github.com/ManuelReschke/TranslaFox/internal/pkg/notify"
	"github.com/ManuelReschke/TranslaFox/internal/pkg/pricing"
	"github.com/ManuelReschke/TranslaFox/internal/pkg/receipt"
)

var (
	ErrPaymentNotPending    = errors.New("payment is not awaiting verification")
	ErrConfirmationRequired = errors.New("confirmation code is required")
	ErrReasonRequired       = errors.New("rejection reason is required")
	ErrReceiptRequired      = errors.New("receipt url is required")
	ErrDocumentNotPayable   = errors.New("document is not awaiting payment")
)

// CorrelationWindow is how far around the payment's creation time sibling
// documents of the same owner are picked up for intake.
const CorrelationWindow = 5 * time.Minute

// ReceiptValidator decides whether an uploaded receipt proves the payment.
type ReceiptValidator interface {
	Validate(ctx context.Context, req receipt.Request) receipt.Result
}

// Service reconciles manual payments with the document pipeline.
type Service struct {
	db        *gorm.DB
	validator ReceiptValidator
	languages authentication.Languages
	atomic    bool
	window    time.Duration
	now       func() time.Time
}

func NewService(db *gorm.DB, validator ReceiptValidator, languages authentication.Languages, atomic bool) *Service {
	return &Service{
		db:        db,
		validator: validator,
		languages: languages,
		atomic:    atomic,
		window:    CorrelationWindow,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// NewServiceFromEnv reads RECONCILE_ATOMIC (default true) and the language defaults.
func NewServiceFromEnv(db *gorm.DB, validator ReceiptValidator) *Service {
	return NewService(db, validator, authentication.DefaultLanguagesFromEnv(), env.GetEnvBool("RECONCILE_ATOMIC", true))
}

func (s *Service) Atomic() bool {
	return s.atomic
}

type ApproveInput struct {
	PaymentID        uint
	ConfirmationCode string
	// ActorID is nil when the receipt validator approves the payment.
	ActorID *uint
}

type ApproveResult struct {
	Payment         *models.Payment
	DocumentUpdated bool
	SubmittedIDs    []uint
	Notified        int
}

// ApprovePayment completes a pending payment and moves its document into
// processing. In atomic mode every write shares one transaction; otherwise
// only the payment update is fatal and later failures are logged and audited.
func (s *Service) ApprovePayment(ctx context.Context, in ApproveInput) (*ApproveResult, error) {
	in.ConfirmationCode = strings.TrimSpace(in.ConfirmationCode)

	payment, err := repository.NewRepositories(s.db.WithContext(ctx)).Payment.GetByID(in.PaymentID)
	if err != nil {
		return nil, err
	}
	if !payment.IsPending() {
		return nil, ErrPaymentNotPending
	}
	if in.ActorID != nil && payment.ConfirmationCode == "" && in.ConfirmationCode == "" {
		return nil, ErrConfirmationRequired
	}

	var result *ApproveResult
	if s.atomic {
		err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var err error
			result, err = s.approve(repository.NewRepositories(tx), payment, in, true)
			return err
		})
	} else {
		result, err = s.approve(repository.NewRepositories(s.db.WithContext(ctx)), payment, in, false)
	}
	if err != nil {
		return nil, err
	}

	log.Infof("[Reconcile] Payment %d approved (document updated: %t, submitted: %v)", payment.ID, result.DocumentUpdated, result.SubmittedIDs)
	return result, nil
}

func (s *Service) approve(repos *repository.Repositories, payment *models.Payment, in ApproveInput, strict bool) (*ApproveResult, error) {
	now := s.now()
	result := &ApproveResult{}

	ok, err := repos.Payment.MarkCompleted(payment.ID, in.ActorID, in.ConfirmationCode, now)
	if err != nil {
		return nil, fmt.Errorf("complete payment: %w", err)
	}
	if !ok {
		return nil, ErrPaymentNotPending
	}

	// soft turns a follow-up failure into a log line in step-wise mode.
	soft := func(step string, err error) error {
		if strict {
			return fmt.Errorf("%s: %w", step, err)
		}
		log.Errorf("[Reconcile] Payment %d: %s failed: %v", payment.ID, step, err)
		return nil
	}

	if err := repos.Document.UpdateStatus(payment.DocumentID, models.DOC_STATUS_PROCESSING); err != nil {
		if err := soft("document status update", err); err != nil {
			return nil, err
		}
		entry := models.NewActionLog(in.ActorID, models.ACTION_DOCUMENT_STATUS_FAILED,
			fmt.Sprintf("Payment %d completed but document %d could not be moved to processing", payment.ID, payment.DocumentID),
			models.ENTITY_DOCUMENT, payment.DocumentID, &payment.OwnerID,
			map[string]any{"payment_id": payment.ID, "error": err.Error()})
		if err := repos.ActionLog.Create(&entry); err != nil {
			log.Errorf("[Reconcile] Failed to audit document update failure for payment %d: %v", payment.ID, err)
		}
	} else {
		result.DocumentUpdated = true
	}

	doc, err := repos.Document.GetByID(payment.DocumentID)
	if err != nil {
		if err := soft("load document", err); err != nil {
			return nil, err
		}
		doc = nil
	}
	owner, err := repos.User.GetByID(payment.OwnerID)
	if err != nil {
		if err := soft("load owner", err); err != nil {
			return nil, err
		}
		owner = nil
	}

	if doc != nil {
		if _, _, _, err := authentication.EnsureRecord(repos, doc, s.languages); err != nil {
			if err := soft("verification record", err); err != nil {
				return nil, err
			}
		}
		for _, d := range s.correlated(repos, payment, doc) {
			if _, err := intake.Submit(repos.Outbox, &d, owner, payment.ID); err != nil {
				if err := soft(fmt.Sprintf("intake submission of document %d", d.ID), err); err != nil {
					return nil, err
				}
				continue
			}
			result.SubmittedIDs = append(result.SubmittedIDs, d.ID)
		}
	}

	filename := ""
	if doc != nil {
		filename = doc.Filename
	}
	if owner != nil {
		ev := notify.Event{
			NotificationType: models.NOTIFICATION_PAYMENT_APPROVED,
			Title:            "Payment approved",
			Message:          fmt.Sprintf("Your payment for %s was approved and the translation has started.", filename),
			DocumentID:       payment.DocumentID,
			DocumentFilename: filename,
			PaymentID:        payment.ID,
			Amount:           centsToDollars(payment.AmountCents),
			PaymentMethod:    payment.Method,
		}
		if err := notify.NotifyUser(repos, models.OUTBOX_FAMILY_PAYMENT, owner, ev, notify.PaymentRef(payment.ID)); err != nil {
			if err := soft("customer notification", err); err != nil {
				return nil, err
			}
		} else {
			result.Notified++
		}
	}

	awaiting := notify.Event{
		NotificationType: models.NOTIFICATION_DOCUMENT_AWAITING,
		Title:            "New document awaiting authentication",
		Message:          fmt.Sprintf("Document %s is ready for authentication.", filename),
		DocumentID:       payment.DocumentID,
		DocumentFilename: filename,
		PaymentID:        payment.ID,
	}
	n, err := notify.NotifyRole(repos, models.OUTBOX_FAMILY_NOTIFICATION, awaiting, notify.DocumentRef(payment.DocumentID), models.ROLE_AUTHENTICATOR)
	result.Notified += n
	if err != nil {
		if err := soft("authenticator notification", err); err != nil {
			return nil, err
		}
	}

	mode := "atomic"
	if !strict {
		mode = "step-wise"
	}
	entry := models.NewActionLog(in.ActorID, models.ACTION_PAYMENT_APPROVED,
		fmt.Sprintf("Payment %d approved", payment.ID), "payment", payment.ID, &payment.OwnerID,
		map[string]any{
			"document_id":         payment.DocumentID,
			"confirmation_code":   firstNonEmpty(in.ConfirmationCode, payment.ConfirmationCode),
			"submitted_documents": result.SubmittedIDs,
			"document_updated":    result.DocumentUpdated,
			"mode":                mode,
		})
	if err := repos.ActionLog.Create(&entry); err != nil {
		if err := soft("action log", err); err != nil {
			return nil, err
		}
	}

	stored, err := repos.Payment.GetByID(payment.ID)
	if err != nil {
		return nil, err
	}
	result.Payment = stored
	return result, nil
}

// correlated returns the documents submitted for intake with this payment:
// the owner's documents of the same method created around the payment, with
// the linked document always included.
func (s *Service) correlated(repos *repository.Repositories, payment *models.Payment, linked *models.Document) []models.Document {
	docs, err := repos.Document.FindCorrelated(payment.OwnerID, payment.Method, payment.CreatedAt, s.window)
	if err != nil {
		log.Warnf("[Reconcile] Correlated document lookup for payment %d failed, using linked document: %v", payment.ID, err)
		return []models.Document{*linked}
	}
	for _, d := range docs {
		if d.ID == linked.ID {
			return docs
		}
	}
	return append([]models.Document{*linked}, docs...)
}

type RejectInput struct {
	PaymentID uint
	Reason    string
	Comment   string
	ActorID   *uint
}

// RejectPayment fails a pending payment. Documents and verification records
// are never touched.
func (s *Service) RejectPayment(ctx context.Context, in RejectInput) (*models.Payment, error) {
	reason := strings.TrimSpace(in.Reason)
	comment := strings.TrimSpace(in.Comment)
	if reason == "" {
		return nil, ErrReasonRequired
	}

	var stored *models.Payment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repos := repository.NewRepositories(tx)

		payment, err := repos.Payment.GetByID(in.PaymentID)
		if err != nil {
			return err
		}
		ok, err := repos.Payment.MarkFailed(payment.ID, in.ActorID, reason, comment, s.now())
		if err != nil {
			return fmt.Errorf("reject payment: %w", err)
		}
		if !ok {
			return ErrPaymentNotPending
		}

		if owner, err := repos.User.GetByID(payment.OwnerID); err == nil {
			ev := notify.Event{
				NotificationType: models.NOTIFICATION_PAYMENT_REJECTED,
				Title:            "Payment rejected",
				Message:          fmt.Sprintf("Your payment could not be verified: %s", reason),
				DocumentID:       payment.DocumentID,
				PaymentID:        payment.ID,
				Amount:           centsToDollars(payment.AmountCents),
				PaymentMethod:    payment.Method,
				Reason:           reason,
				Comment:          comment,
			}
			if err := notify.NotifyUser(repos, models.OUTBOX_FAMILY_PAYMENT, owner, ev, notify.PaymentRef(payment.ID)); err != nil {
				return err
			}
		} else {
			log.Warnf("[Reconcile] Owner %d of payment %d not found, skipping notification", payment.OwnerID, payment.ID)
		}

		entry := models.NewActionLog(in.ActorID, models.ACTION_PAYMENT_REJECTED,
			fmt.Sprintf("Payment %d rejected: %s", payment.ID, reason), "payment", payment.ID, &payment.OwnerID,
			map[string]any{"document_id": payment.DocumentID, "reason": reason, "comment": comment})
		if err := repos.ActionLog.Create(&entry); err != nil {
			return fmt.Errorf("write action log: %w", err)
		}

		stored, err = repos.Payment.GetByID(payment.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	log.Infof("[Reconcile] Payment %d rejected (%s)", in.PaymentID, reason)
	return stored, nil
}

type ReceiptInput struct {
	DocumentID       uint
	OwnerID          uint
	ReceiptURL       string
	ConfirmationCode string
}

type ReceiptResult struct {
	Payment      *models.Payment
	AutoApproved bool
	Validation   receipt.Result
}

// SubmitReceipt records a Zelle payment for the document and asks the receipt
// validator about it. A valid receipt approves the payment as the system; any
// other answer parks payment and document in manual review.
func (s *Service) SubmitReceipt(ctx context.Context, in ReceiptInput) (*ReceiptResult, error) {
	receiptURL := strings.TrimSpace(in.ReceiptURL)
	if receiptURL == "" {
		return nil, ErrReceiptRequired
	}

	var payment *models.Payment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repos := repository.NewRepositories(tx)

		doc, err := repos.Document.GetByIDForOwner(in.DocumentID, in.OwnerID)
		if err != nil {
			return err
		}
		ok, err := repos.Document.UpdateCheckout(doc.ID, models.PAYMENT_METHOD_ZELLE, models.DOC_STATUS_ZELLE_PENDING)
		if err != nil {
			return fmt.Errorf("update document checkout: %w", err)
		}
		if !ok {
			return ErrDocumentNotPayable
		}

		payment = &models.Payment{
			DocumentID:       doc.ID,
			OwnerID:          doc.OwnerID,
			AmountCents:      pricing.CalculateCents(doc.PageCount, doc.TranslationType, doc.IsBankStatement),
			Method:           models.PAYMENT_METHOD_ZELLE,
			Status:           models.PAYMENT_STATUS_PENDING_VERIFICATION,
			ConfirmationCode: strings.TrimSpace(in.ConfirmationCode),
			ReceiptURL:       receiptURL,
		}
		return repos.Payment.Create(payment)
	})
	if err != nil {
		return nil, err
	}

	validation := s.validator.Validate(ctx, receipt.Request{
		ReceiptURL: receiptURL,
		Amount:     centsToDollars(payment.AmountCents),
		PaymentID:  payment.ID,
	})
	result := &ReceiptResult{Validation: validation}

	if validation.Valid {
		approved, err := s.ApprovePayment(ctx, ApproveInput{PaymentID: payment.ID})
		if err != nil {
			return nil, fmt.Errorf("auto-approve payment %d: %w", payment.ID, err)
		}
		result.Payment = approved.Payment
		result.AutoApproved = true
		return result, nil
	}

	stored, err := s.parkForManualReview(ctx, payment, validation)
	if err != nil {
		return nil, err
	}
	result.Payment = stored
	return result, nil
}

func (s *Service) parkForManualReview(ctx context.Context, payment *models.Payment, validation receipt.Result) (*models.Payment, error) {
	var stored *models.Payment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repos := repository.NewRepositories(tx)

		if _, err := repos.Payment.MarkManualReview(payment.ID); err != nil {
			return fmt.Errorf("mark manual review: %w", err)
		}
		if err := repos.Document.UpdateStatus(payment.DocumentID, models.DOC_STATUS_PENDING_MANUAL_REVIEW); err != nil {
			return fmt.Errorf("park document: %w", err)
		}

		ev := notify.Event{
			NotificationType: models.NOTIFICATION_PAYMENT_MANUAL_REVIEW,
			Title:            "Payment needs manual review",
			Message:          fmt.Sprintf("The receipt for payment %d could not be validated automatically.", payment.ID),
			DocumentID:       payment.DocumentID,
			PaymentID:        payment.ID,
			Amount:           centsToDollars(payment.AmountCents),
			PaymentMethod:    payment.Method,
			ReceiptURL:       payment.ReceiptURL,
		}
		if _, err := notify.NotifyRole(repos, models.OUTBOX_FAMILY_PAYMENT, ev, notify.PaymentRef(payment.ID), models.ROLE_ADMIN, models.ROLE_FINANCE); err != nil {
			return err
		}

		meta := map[string]any{
			"document_id": payment.DocumentID,
			"status_code": validation.StatusCode,
		}
		if validation.Err != nil {
			meta["error"] = validation.Err.Error()
		}
		entry := models.NewActionLog(nil, models.ACTION_PAYMENT_MANUAL_REVIEW,
			fmt.Sprintf("Payment %d routed to manual review", payment.ID), "payment", payment.ID, &payment.OwnerID, meta)
		if err := repos.ActionLog.Create(&entry); err != nil {
			return fmt.Errorf("write action log: %w", err)
		}

		var err error
		stored, err = repos.Payment.GetByID(payment.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	log.Warnf("[Reconcile] Payment %d routed to manual review (status %d)", payment.ID, validation.StatusCode)
	return stored, nil
}

// ListPayments reads straight from the store; there is no cached list.
func (s *Service) ListPayments(ctx context.Context, filter repository.PaymentFilter) ([]models.Payment, int64, error) {
	return repository.NewRepositories(s.db.WithContext(ctx)).Payment.List(filter)
}

func centsToDollars(cents int64) float64 {
	return float64(cents) / 100
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
