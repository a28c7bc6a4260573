package billing

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	ProviderStripe = "stripe"

	EventCheckoutSessionCompleted = "checkout.session.completed"
)

var (
	ErrMissingDocumentID = errors.New("checkout session carries no metadata.document_id")
	ErrInvalidEvent      = errors.New("invalid stripe event")
)

// WebhookEventInput is the normalized input for webhook event persistence.
type WebhookEventInput struct {
	Provider        string
	ProviderEventID string
	EventType       string
	PayloadJSON     string
	SignatureValid  bool
}

// StripeEvent is the envelope of every Stripe webhook delivery.
type StripeEvent struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Livemode bool   `json:"livemode"`
	Data     struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

// CheckoutSession holds the checkout.session fields the portal reads.
type CheckoutSession struct {
	ID              string            `json:"id"`
	PaymentIntent   string            `json:"payment_intent"`
	PaymentStatus   string            `json:"payment_status"`
	AmountTotal     int64             `json:"amount_total"`
	Currency        string            `json:"currency"`
	CustomerEmail   string            `json:"customer_email"`
	ClientReference string            `json:"client_reference_id"`
	Metadata        map[string]string `json:"metadata"`
}

func ParseStripeEvent(raw []byte) (*StripeEvent, error) {
	var ev StripeEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	if strings.TrimSpace(ev.Type) == "" {
		return nil, fmt.Errorf("%w: no type", ErrInvalidEvent)
	}
	return &ev, nil
}

func (e *StripeEvent) CheckoutSession() (*CheckoutSession, error) {
	var s CheckoutSession
	if err := json.Unmarshal(e.Data.Object, &s); err != nil {
		return nil, fmt.Errorf("%w: checkout session: %v", ErrInvalidEvent, err)
	}
	return &s, nil
}

// DocumentID reads metadata.document_id, falling back to client_reference_id.
func (s *CheckoutSession) DocumentID() (uint, error) {
	raw := strings.TrimSpace(s.Metadata["document_id"])
	if raw == "" {
		raw = strings.TrimSpace(s.ClientReference)
	}
	if raw == "" {
		return 0, ErrMissingDocumentID
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid document_id %q", raw)
	}
	return uint(id), nil
}

// Paid reports whether the session settled; async methods complete later.
func (s *CheckoutSession) Paid() bool {
	return s.PaymentStatus == "" || s.PaymentStatus == "paid" || s.PaymentStatus == "no_payment_required"
}

// Reference is the id stored as the payment's provider_ref.
func (s *CheckoutSession) Reference() string {
	if s.PaymentIntent != "" {
		return s.PaymentIntent
	}
	return s.ID
}
