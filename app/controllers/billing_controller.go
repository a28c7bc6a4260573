package controllers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/TranslaFox/internal/pkg/billing"
)

// HandleStripeWebhook verifies and processes a Stripe delivery. Signature and
// payload problems answer 4xx so Stripe stops retrying; storage failures answer
// 500 so the event is redelivered.
func HandleStripeWebhook(c *fiber.Ctx) error {
	s := svc()
	if s.Billing == nil || !s.Billing.IsConfigured() {
		return serviceUnavailable(c, "stripe webhook")
	}

	rawBody := append([]byte(nil), c.BodyRaw()...)
	signature := strings.TrimSpace(c.Get("Stripe-Signature"))

	outcome, err := s.Billing.HandleStripeWebhook(c.UserContext(), rawBody, signature)
	if err != nil {
		switch {
		case errors.Is(err, billing.ErrMissingSignature),
			errors.Is(err, billing.ErrInvalidSignature),
			errors.Is(err, billing.ErrSignatureExpired):
			log.Warnf("[Billing] Rejected Stripe webhook: %v", err)
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_signature"})
		case errors.Is(err, billing.ErrInvalidEvent), errors.Is(err, billing.ErrMissingDocumentID):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_payload", "message": err.Error()})
		}
		return respondError(c, err)
	}

	resp := fiber.Map{"ok": true, "event_id": outcome.EventID}
	if outcome.Duplicate {
		resp["duplicate"] = true
	}
	if outcome.Ignored {
		resp["ignored"] = true
	}
	if outcome.Payment != nil {
		resp["payment_id"] = outcome.Payment.ID
	}
	return c.JSON(resp)
}
