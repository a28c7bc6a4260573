package controllers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/TranslaFox/app/repository"
	"github.com/ManuelReschke/TranslaFox/internal/pkg/reconcile"
	"github.com/ManuelReschke/TranslaFox/internal/pkg/usercontext"
)

type approvePaymentRequest struct {
	ConfirmationCode string `json:"confirmation_code" validate:"max=100"`
}

type rejectRequest struct {
	Reason  string `json:"reason" validate:"required,max=255"`
	Comment string `json:"comment" validate:"max=2000"`
}

// HandlePaymentList lists payments for the finance review queue.
// Query: status, method, owner_id, offset, limit.
func HandlePaymentList(c *fiber.Ctx) error {
	s := svc()
	if s.Reconcile == nil {
		return serviceUnavailable(c, "payment service")
	}
	offset, limit := pageParams(c)
	payments, total, err := s.Reconcile.ListPayments(c.UserContext(), repository.PaymentFilter{
		Status:  c.Query("status"),
		Method:  c.Query("method"),
		OwnerID: queryUint(c, "owner_id"),
		Offset:  offset,
		Limit:   limit,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(paged(payments, total, offset, limit))
}

func HandlePaymentApprove(c *fiber.Ctx) error {
	s := svc()
	if s.Reconcile == nil {
		return serviceUnavailable(c, "payment service")
	}
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid payment id")
	}
	var req approvePaymentRequest
	if len(c.Body()) > 0 {
		if err := parseBody(c, &req); err != nil {
			return badRequest(c, err.Error())
		}
	}

	res, err := s.Reconcile.ApprovePayment(c.UserContext(), reconcile.ApproveInput{
		PaymentID:        id,
		ConfirmationCode: req.ConfirmationCode,
		ActorID:          uintPtr(usercontext.GetUserID(c)),
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"payment":          res.Payment,
		"document_updated": res.DocumentUpdated,
		"submitted_ids":    res.SubmittedIDs,
		"notified":         res.Notified,
	})
}

func HandlePaymentReject(c *fiber.Ctx) error {
	s := svc()
	if s.Reconcile == nil {
		return serviceUnavailable(c, "payment service")
	}
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid payment id")
	}
	var req rejectRequest
	if err := parseBody(c, &req); err != nil {
		return badRequest(c, err.Error())
	}
	payment, err := s.Reconcile.RejectPayment(c.UserContext(), reconcile.RejectInput{
		PaymentID: id,
		Reason:    req.Reason,
		Comment:   req.Comment,
		ActorID:   uintPtr(usercontext.GetUserID(c)),
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(payment)
}
