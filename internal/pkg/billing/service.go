package billing

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
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
)

// Service verifies Stripe webhooks and settles card payments.
type Service struct {
	db        *gorm.DB
	repo      Repository
	secret    string
	tolerance time.Duration
	languages authentication.Languages
	now       func() time.Time
}

// NewService creates a billing service from a GORM DB handle.
func NewService(db *gorm.DB, webhookSecret string, languages authentication.Languages) *Service {
	return &Service{
		db:        db,
		repo:      NewRepository(db),
		secret:    strings.TrimSpace(webhookSecret),
		tolerance: DefaultSignatureTolerance,
		languages: languages,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func NewServiceFromEnv(db *gorm.DB) *Service {
	return NewService(db, env.GetEnv("STRIPE_WEBHOOK_SECRET", ""), authentication.DefaultLanguagesFromEnv())
}

func (s *Service) IsConfigured() bool {
	return s.secret != ""
}

// RecordWebhookEvent persists webhook payloads idempotently.
func (s *Service) RecordWebhookEvent(ctx context.Context, in WebhookEventInput) (bool, *models.WebhookEvent, error) {
	_ = ctx
	provider := strings.ToLower(strings.TrimSpace(in.Provider))
	if provider == "" {
		return false, nil, errors.New("provider is required")
	}
	eventID := strings.TrimSpace(in.ProviderEventID)
	if eventID == "" {
		sum := sha256.Sum256([]byte(in.PayloadJSON))
		eventID = "hash:" + hex.EncodeToString(sum[:])
	}

	event := &models.WebhookEvent{
		Provider:        provider,
		ProviderEventID: eventID,
		EventType:       strings.TrimSpace(in.EventType),
		PayloadJSON:     in.PayloadJSON,
		SignatureValid:  in.SignatureValid,
	}
	return s.repo.CreateWebhookEventIfNotExists(event)
}

// MarkWebhookProcessed marks an event as processed and stores an optional error.
func (s *Service) MarkWebhookProcessed(ctx context.Context, webhookEventID uint, processingErr error) error {
	_ = ctx
	if webhookEventID == 0 {
		return errors.New("webhook_event_id is required")
	}
	errMsg := ""
	if processingErr != nil {
		errMsg = processingErr.Error()
	}
	return s.repo.MarkWebhookProcessed(webhookEventID, errMsg)
}

// WebhookOutcome describes what HandleStripeWebhook did with a delivery.
type WebhookOutcome struct {
	EventID   string
	EventType string
	Duplicate bool
	Ignored   bool
	Payment   *models.Payment
}

// HandleStripeWebhook verifies, records and processes one Stripe delivery.
// Redeliveries of an already processed event are acknowledged without effect.
func (s *Service) HandleStripeWebhook(ctx context.Context, payload []byte, signatureHeader string) (*WebhookOutcome, error) {
	if err := VerifyStripeWebhookSignature(payload, signatureHeader, s.secret, s.now(), s.tolerance); err != nil {
		return nil, err
	}
	ev, err := ParseStripeEvent(payload)
	if err != nil {
		return nil, err
	}
	outcome := &WebhookOutcome{EventID: ev.ID, EventType: ev.Type}

	created, stored, err := s.RecordWebhookEvent(ctx, WebhookEventInput{
		Provider:        ProviderStripe,
		ProviderEventID: ev.ID,
		EventType:       ev.Type,
		PayloadJSON:     string(payload),
		SignatureValid:  true,
	})
	if err != nil {
		return nil, fmt.Errorf("record webhook event: %w", err)
	}
	if !created && stored.ProcessedAt != nil && stored.ProcessingError == "" {
		outcome.Duplicate = true
		return outcome, nil
	}

	var procErr error
	switch ev.Type {
	case EventCheckoutSessionCompleted:
		var session *CheckoutSession
		session, procErr = ev.CheckoutSession()
		if procErr == nil {
			outcome.Payment, procErr = s.CompleteCheckout(ctx, session)
		}
	default:
		outcome.Ignored = true
	}

	if err := s.MarkWebhookProcessed(ctx, stored.ID, procErr); err != nil {
		log.Errorf("[Billing] Failed to mark webhook event %s processed: %v", ev.ID, err)
	}
	if procErr != nil {
		log.Errorf("[Billing] Stripe event %s (%s) failed: %v", ev.ID, ev.Type, procErr)
		return nil, procErr
	}
	return outcome, nil
}

// CompleteCheckout records the completed card payment for the session's
// document and starts the translation. A session already recorded returns the
// stored payment.
func (s *Service) CompleteCheckout(ctx context.Context, session *CheckoutSession) (*models.Payment, error) {
	if !session.Paid() {
		log.Infof("[Billing] Checkout session %s not paid yet (%s)", session.ID, session.PaymentStatus)
		return nil, nil
	}
	docID, err := session.DocumentID()
	if err != nil {
		return nil, err
	}

	var payment *models.Payment
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repos := repository.NewRepositories(tx)
		now := s.now()

		existing, err := repos.Payment.GetByProviderRef(models.PAYMENT_METHOD_STRIPE, session.Reference())
		if err == nil {
			payment = existing
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		doc, err := repos.Document.GetByID(docID)
		if err != nil {
			return fmt.Errorf("load document %d: %w", docID, err)
		}
		amount := session.AmountTotal
		if amount <= 0 {
			amount = pricing.CalculateCents(doc.PageCount, doc.TranslationType, doc.IsBankStatement)
		}

		payment = &models.Payment{
			DocumentID:  doc.ID,
			OwnerID:     doc.OwnerID,
			AmountCents: amount,
			Method:      models.PAYMENT_METHOD_STRIPE,
			Status:      models.PAYMENT_STATUS_COMPLETED,
			ProviderRef: session.Reference(),
			VerifiedAt:  &now,
		}
		if err := repos.Payment.Create(payment); err != nil {
			return fmt.Errorf("create payment: %w", err)
		}
		moved, err := repos.Document.MarkStripePaid(doc.ID)
		if err != nil {
			return fmt.Errorf("update document: %w", err)
		}
		if !moved {
			// Paid already or finished: keep the money on record, fulfil nothing twice.
			log.Warnf("[Billing] Stripe checkout %s paid document %d in status %s; payment %d left for refund review",
				session.ID, doc.ID, doc.Status, payment.ID)
			entry := models.NewActionLog(nil, models.ACTION_STRIPE_PAYMENT_UNMATCHED,
				fmt.Sprintf("Stripe payment for document %s arrived in status %s", doc.Filename, doc.Status), models.ENTITY_PAYMENT, payment.ID, &doc.OwnerID,
				map[string]any{"document_id": doc.ID, "document_status": doc.Status, "session_id": session.ID, "provider_ref": session.Reference(), "amount_cents": amount})
			return repos.ActionLog.Create(&entry)
		}
		doc.Status = models.DOC_STATUS_PROCESSING
		doc.PaymentMethod = models.PAYMENT_METHOD_STRIPE

		if _, _, _, err := authentication.EnsureRecord(repos, doc, s.languages); err != nil {
			return err
		}

		owner, err := repos.User.GetByID(doc.OwnerID)
		if err != nil {
			return fmt.Errorf("load owner: %w", err)
		}
		if _, err := intake.Submit(repos.Outbox, doc, owner, payment.ID); err != nil {
			return err
		}

		ev := notify.Event{
			NotificationType: models.NOTIFICATION_PAYMENT_APPROVED,
			Title:            "Payment received",
			Message:          fmt.Sprintf("Your card payment for %s was received and the translation has started.", doc.Filename),
			DocumentID:       doc.ID,
			DocumentFilename: doc.Filename,
			PaymentID:        payment.ID,
			Amount:           float64(amount) / 100,
			PaymentMethod:    models.PAYMENT_METHOD_STRIPE,
		}
		if err := notify.NotifyUser(repos, models.OUTBOX_FAMILY_PAYMENT, owner, ev, notify.PaymentRef(payment.ID)); err != nil {
			return err
		}
		awaiting := notify.Event{
			NotificationType: models.NOTIFICATION_DOCUMENT_AWAITING,
			Title:            "New document awaiting authentication",
			Message:          fmt.Sprintf("Document %s is ready for authentication.", doc.Filename),
			DocumentID:       doc.ID,
			DocumentFilename: doc.Filename,
			PaymentID:        payment.ID,
		}
		if _, err := notify.NotifyRole(repos, models.OUTBOX_FAMILY_NOTIFICATION, awaiting, notify.DocumentRef(doc.ID), models.ROLE_AUTHENTICATOR); err != nil {
			return err
		}

		entry := models.NewActionLog(nil, models.ACTION_STRIPE_PAYMENT_COMPLETED,
			fmt.Sprintf("Stripe payment for document %s completed", doc.Filename), models.ENTITY_PAYMENT, payment.ID, &doc.OwnerID,
			map[string]any{"document_id": doc.ID, "session_id": session.ID, "provider_ref": session.Reference(), "amount_cents": amount})
		return repos.ActionLog.Create(&entry)
	})
	if err != nil {
		return nil, err
	}
	log.Infof("[Billing] Stripe checkout %s settled payment %d for document %d", session.ID, payment.ID, docID)
	return payment, nil
}
