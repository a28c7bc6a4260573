package controllers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/TranslaFox/internal/pkg/documents"
	"github.com/ManuelReschke/TranslaFox/internal/pkg/reconcile"
	"github.com/ManuelReschke/TranslaFox/internal/pkg/usercontext"
)

type checkoutRequest struct {
	Method string `json:"method" form:"method" validate:"required,oneof=zelle stripe"`
}

type receiptRequest struct {
	ReceiptURL       string `json:"receipt_url" form:"receipt_url"`
	ConfirmationCode string `json:"confirmation_code" form:"confirmation_code"`
}

type folderRequest struct {
	Name     string `json:"name" validate:"required,max=255"`
	ParentID *uint  `json:"parent_id"`
}

// HandleDocumentUpload stores a multipart "file" upload as a draft document.
func HandleDocumentUpload(c *fiber.Ctx) error {
	s := svc()
	if s.Documents == nil {
		return serviceUnavailable(c, "document service")
	}

	fh, err := c.FormFile("file")
	if err != nil {
		return badRequest(c, "file is required")
	}
	f, err := fh.Open()
	if err != nil {
		return respondError(c, err)
	}
	defer f.Close()

	in := documents.UploadInput{
		OwnerID:         usercontext.GetUserID(c),
		Filename:        fh.Filename,
		Body:            f,
		Size:            fh.Size,
		TranslationType: c.FormValue("translation_type"),
		IsBankStatement: formBool(c.FormValue("is_bank_statement")),
		SourceLanguage:  c.FormValue("source_language"),
		TargetLanguage:  c.FormValue("target_language"),
	}
	if raw := strings.TrimSpace(c.FormValue("folder_id")); raw != "" {
		id := parseUint(raw)
		if id == 0 {
			return badRequest(c, "invalid folder_id")
		}
		in.FolderID = uintPtr(id)
	}

	doc, err := s.Documents.Upload(c.UserContext(), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(doc)
}

func HandleDocumentList(c *fiber.Ctx) error {
	s := svc()
	if s.Documents == nil {
		return serviceUnavailable(c, "document service")
	}
	offset, limit := pageParams(c)
	docs, total, err := s.Documents.ListByOwner(c.UserContext(), usercontext.GetUserID(c), offset, limit)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(paged(docs, total, offset, limit))
}

// HandleDocumentDelete removes one of the caller's drafts.
func HandleDocumentDelete(c *fiber.Ctx) error {
	s := svc()
	if s.Documents == nil {
		return serviceUnavailable(c, "document service")
	}
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid document id")
	}
	if err := s.Documents.DeleteDraft(c.UserContext(), id, usercontext.GetUserID(c)); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func HandleDocumentCheckout(c *fiber.Ctx) error {
	s := svc()
	if s.Documents == nil {
		return serviceUnavailable(c, "document service")
	}
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid document id")
	}
	var req checkoutRequest
	if err := parseBody(c, &req); err != nil {
		return badRequest(c, err.Error())
	}
	doc, err := s.Documents.StartCheckout(c.UserContext(), id, usercontext.GetUserID(c), req.Method)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(doc)
}

// HandleDocumentReceipt accepts a Zelle receipt either as a multipart "file"
// upload or as a JSON receipt_url, records the payment and runs validation.
func HandleDocumentReceipt(c *fiber.Ctx) error {
	s := svc()
	if s.Documents == nil || s.Reconcile == nil {
		return serviceUnavailable(c, "payment service")
	}
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid document id")
	}
	ownerID := usercontext.GetUserID(c)

	var req receiptRequest
	if fh, err := c.FormFile("file"); err == nil {
		f, err := fh.Open()
		if err != nil {
			return respondError(c, err)
		}
		defer f.Close()
		url, err := s.Documents.StoreReceipt(c.UserContext(), ownerID, fh.Filename, f, fh.Size)
		if err != nil {
			return respondError(c, err)
		}
		req.ReceiptURL = url
		req.ConfirmationCode = c.FormValue("confirmation_code")
	} else if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	res, err := s.Reconcile.SubmitReceipt(c.UserContext(), reconcile.ReceiptInput{
		DocumentID:       id,
		OwnerID:          ownerID,
		ReceiptURL:       req.ReceiptURL,
		ConfirmationCode: req.ConfirmationCode,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"payment":       res.Payment,
		"auto_approved": res.AutoApproved,
		"validation": fiber.Map{
			"valid":       res.Validation.Valid,
			"status_code": res.Validation.StatusCode,
		},
	})
}

func HandleDocumentDownload(c *fiber.Ctx) error {
	s := svc()
	if s.Documents == nil {
		return serviceUnavailable(c, "document service")
	}
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid document id")
	}
	url, err := s.Documents.DownloadURL(c.UserContext(), id, usercontext.GetUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"url": url})
}

func HandleFolderList(c *fiber.Ctx) error {
	s := svc()
	if s.Documents == nil {
		return serviceUnavailable(c, "document service")
	}
	folders, err := s.Documents.ListFolders(c.UserContext(), usercontext.GetUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"data": folders})
}

func HandleFolderCreate(c *fiber.Ctx) error {
	s := svc()
	if s.Documents == nil {
		return serviceUnavailable(c, "document service")
	}
	var req folderRequest
	if err := parseBody(c, &req); err != nil {
		return badRequest(c, err.Error())
	}
	folder, err := s.Documents.CreateFolder(c.UserContext(), usercontext.GetUserID(c), strings.TrimSpace(req.Name), req.ParentID)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(folder)
}

func formBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
