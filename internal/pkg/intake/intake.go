package intake

import (
	"github.com/ManuelReschke/TranslaFox/app/models"
	"github.com/ManuelReschke/TranslaFox/app/repository"
	"github.com/ManuelReschke/TranslaFox/internal/pkg/notify"
	"github.com/ManuelReschke/TranslaFox/internal/pkg/pricing"
)

const EventSubmitted = "translation_submitted"

// Payload is the body the translation-intake webhook receives.
type Payload struct {
	Filename         string `json:"filename"`
	URL              string `json:"url"`
	Pages            int    `json:"pages"`
	DocumentType     string `json:"document_type"`
	TotalCost        int    `json:"total_cost"`
	SourceLanguage   string `json:"source_language"`
	TargetLanguage   string `json:"target_language"`
	UserID           uint   `json:"user_id"`
	UserName         string `json:"user_name,omitempty"`
	UserEmail        string `json:"user_email,omitempty"`
	DocumentID       uint   `json:"document_id"`
	IsBankStatement  bool   `json:"is_bank_statement"`
	VerificationCode string `json:"verification_code"`
	PaymentMethod    string `json:"payment_method,omitempty"`
	PaymentID        uint   `json:"payment_id,omitempty"`
}

// Build derives the intake payload; the price is always recomputed from the
// document's pages and type, never copied from a stored amount.
func Build(doc *models.Document, owner *models.User, paymentID uint) Payload {
	p := Payload{
		Filename:         doc.Filename,
		URL:              doc.FileURL,
		Pages:            doc.PageCount,
		DocumentType:     doc.TranslationType,
		TotalCost:        pricing.Calculate(doc.PageCount, doc.TranslationType, doc.IsBankStatement),
		SourceLanguage:   doc.SourceLanguage,
		TargetLanguage:   doc.TargetLanguage,
		UserID:           doc.OwnerID,
		DocumentID:       doc.ID,
		IsBankStatement:  doc.IsBankStatement,
		VerificationCode: doc.VerificationCode,
		PaymentMethod:    doc.PaymentMethod,
		PaymentID:        paymentID,
	}
	if owner != nil {
		p.UserName = owner.Name
		p.UserEmail = owner.Email
	}
	return p
}

// Submit queues the document for the translation-intake webhook.
func Submit(outbox repository.OutboxRepository, doc *models.Document, owner *models.User, paymentID uint) (*models.OutboxMessage, error) {
	return notify.Enqueue(outbox, models.OUTBOX_FAMILY_INTAKE, EventSubmitted, Build(doc, owner, paymentID), models.ENTITY_DOCUMENT, doc.ID)
}
