package controllers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/TranslaFox/internal/pkg/authentication"
	"github.com/ManuelReschke/TranslaFox/internal/pkg/usercontext"
)

type approveVerificationRequest struct {
	TranslatedFileURL string `json:"translated_file_url" validate:"required,url"`
}

func HandleVerificationList(c *fiber.Ctx) error {
	s := svc()
	if s.Authentication == nil {
		return serviceUnavailable(c, "authentication service")
	}
	offset, limit := pageParams(c)
	records, err := s.Authentication.ListPending(c.UserContext(), offset, limit)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"data": records, "offset": offset, "limit": limit})
}

// HandleVerificationApprove publishes the authenticated translation for a document.
func HandleVerificationApprove(c *fiber.Ctx) error {
	s := svc()
	if s.Authentication == nil {
		return serviceUnavailable(c, "authentication service")
	}
	id, ok := paramID(c, "documentID")
	if !ok {
		return badRequest(c, "invalid document id")
	}
	var req approveVerificationRequest
	if err := parseBody(c, &req); err != nil {
		return badRequest(c, err.Error())
	}
	res, err := s.Authentication.ApproveDocument(c.UserContext(), authentication.ApproveInput{
		DocumentID:        id,
		AuthenticatorID:   usercontext.GetUserID(c),
		TranslatedFileURL: req.TranslatedFileURL,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"record":             res.Record,
		"output":             res.Output,
		"record_synthesized": res.RecordSynthesized,
		"language_defaulted": res.LanguageDefaulted,
	})
}

func HandleVerificationReject(c *fiber.Ctx) error {
	s := svc()
	if s.Authentication == nil {
		return serviceUnavailable(c, "authentication service")
	}
	id, ok := paramID(c, "documentID")
	if !ok {
		return badRequest(c, "invalid document id")
	}
	var req rejectRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	// Reason and comment are both required here; the service reports which one is missing.
	rec, err := s.Authentication.RejectDocument(c.UserContext(), authentication.RejectInput{
		DocumentID:      id,
		AuthenticatorID: usercontext.GetUserID(c),
		Reason:          req.Reason,
		Comment:         req.Comment,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(rec)
}
