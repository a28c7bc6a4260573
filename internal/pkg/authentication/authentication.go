package authentication

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
	"github.com/ManuelReschke/TranslaFox/internal/pkg/env"
	"github.com/ManuelReschke/TranslaFox/internal/pkg/notify"
)

var (
	ErrAlreadyFinalized       = errors.New("verification record is already completed or rejected")
	ErrReasonRequired         = errors.New("rejection reason is required")
	ErrCommentRequired        = errors.New("rejection comment is required")
	ErrTranslatedFileRequired = errors.New("translated file url is required")
	ErrNotAwaitingAuth        = errors.New("document is not awaiting authentication")
)

// awaitingAuth reports whether doc has been paid and handed to translation.
func awaitingAuth(doc *models.Document) bool {
	return doc.Status == models.DOC_STATUS_PROCESSING
}

// Languages are the fallbacks used when a document carries no language pair.
type Languages struct {
	Source string
	Target string
}

func DefaultLanguagesFromEnv() Languages {
	return Languages{
		Source: env.GetEnv("DEFAULT_SOURCE_LANGUAGE", "Portuguese"),
		Target: env.GetEnv("DEFAULT_TARGET_LANGUAGE", "English"),
	}
}

// Resolve returns the document's language pair, filling blanks from the
// defaults. defaulted reports whether any fallback was used.
func (l Languages) Resolve(doc *models.Document) (source, target string, defaulted bool) {
	source = strings.TrimSpace(doc.SourceLanguage)
	target = strings.TrimSpace(doc.TargetLanguage)
	if source == "" {
		source = l.Source
		defaulted = true
	}
	if target == "" {
		target = l.Target
		defaulted = true
	}
	return source, target, defaulted
}

// EnsureRecord returns the document's verification record, synthesizing it
// from the document when missing. At most one record exists per document.
func EnsureRecord(repos *repository.Repositories, doc *models.Document, langs Languages) (rec *models.VerificationRecord, created, defaulted bool, err error) {
	rec, err = repos.Verification.GetByOriginalDocumentID(doc.ID)
	if err == nil {
		return rec, false, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, false, err
	}

	source, target, defaulted := langs.Resolve(doc)
	if defaulted {
		log.Warnf("[Authentication] Document %d has no language pair, defaulting to %s -> %s", doc.ID, source, target)
	}
	rec, created, err = repos.Verification.EnsureForDocument(&models.VerificationRecord{
		OriginalDocumentID: doc.ID,
		OwnerID:            doc.OwnerID,
		Filename:           doc.Filename,
		SourceLanguage:     source,
		TargetLanguage:     target,
		Status:             models.VERIFICATION_STATUS_PENDING,
	})
	if err != nil {
		return nil, false, false, fmt.Errorf("create verification record: %w", err)
	}
	return rec, created, defaulted, nil
}

// Service runs the authenticator approve/reject flows.
type Service struct {
	db        *gorm.DB
	languages Languages
	now       func() time.Time
}

func NewService(db *gorm.DB, languages Languages) *Service {
	return &Service{db: db, languages: languages, now: func() time.Time { return time.Now().UTC() }}
}

type ApproveInput struct {
	DocumentID        uint
	AuthenticatorID   uint
	TranslatedFileURL string
}

type ApproveResult struct {
	Record            *models.VerificationRecord
	Output            *models.TranslatedOutput
	RecordSynthesized bool
	LanguageDefaulted bool
}

// ApproveDocument completes the document's verification record, publishes the
// authenticated translation and completes the document in one transaction.
func (s *Service) ApproveDocument(ctx context.Context, in ApproveInput) (*ApproveResult, error) {
	var result ApproveResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repos := repository.NewRepositories(tx)
		now := s.now()

		doc, err := repos.Document.GetByID(in.DocumentID)
		if err != nil {
			return err
		}
		rec, created, defaulted, err := EnsureRecord(repos, doc, s.languages)
		if err != nil {
			return err
		}
		if rec.IsTerminal() {
			return ErrAlreadyFinalized
		}
		if !awaitingAuth(doc) {
			return ErrNotAwaitingAuth
		}

		translatedURL := strings.TrimSpace(in.TranslatedFileURL)
		if translatedURL == "" {
			translatedURL = rec.TranslatedFileURL
		}
		if translatedURL == "" {
			return ErrTranslatedFileRequired
		}

		ok, err := repos.Verification.Complete(rec.ID, in.AuthenticatorID, translatedURL, now)
		if err != nil {
			return fmt.Errorf("complete verification record: %w", err)
		}
		if !ok {
			return ErrAlreadyFinalized
		}

		out := &models.TranslatedOutput{
			OriginalDocumentID: doc.ID,
			OwnerID:            doc.OwnerID,
			Filename:           doc.Filename,
			TranslatedFileURL:  translatedURL,
			Status:             models.TRANSLATED_STATUS_COMPLETED,
			IsAuthenticated:    true,
			VerificationCode:   doc.VerificationCode,
		}
		if _, err := repos.Translation.CreateIfNotExists(out); err != nil {
			return fmt.Errorf("create translated output: %w", err)
		}
		if err := repos.Document.UpdateStatus(doc.ID, models.DOC_STATUS_COMPLETED); err != nil {
			return fmt.Errorf("complete document: %w", err)
		}

		if owner, err := repos.User.GetByID(doc.OwnerID); err == nil {
			ev := notify.Event{
				NotificationType: models.NOTIFICATION_DOCUMENT_AUTHENTICATED,
				Title:            "Your translation is ready",
				Message:          fmt.Sprintf("The certified translation of %s is available.", doc.Filename),
				DocumentID:       doc.ID,
				DocumentFilename: doc.Filename,
				VerificationCode: doc.VerificationCode,
			}
			if err := notify.NotifyUser(repos, models.OUTBOX_FAMILY_NOTIFICATION, owner, ev, notify.DocumentRef(doc.ID)); err != nil {
				return err
			}
		} else {
			log.Warnf("[Authentication] Owner %d of document %d not found, skipping notification", doc.OwnerID, doc.ID)
		}

		actor := in.AuthenticatorID
		owner := doc.OwnerID
		entry := models.NewActionLog(&actor, models.ACTION_DOCUMENT_AUTHENTICATED,
			fmt.Sprintf("Document %s authenticated", doc.Filename), models.ENTITY_DOCUMENT, doc.ID, &owner,
			map[string]any{
				"verification_record_id": rec.ID,
				"record_synthesized":     created,
				"language_defaulted":     defaulted,
				"translated_file_url":    translatedURL,
			})
		if err := repos.ActionLog.Create(&entry); err != nil {
			return fmt.Errorf("write action log: %w", err)
		}

		stored, err := repos.Verification.GetByOriginalDocumentID(doc.ID)
		if err != nil {
			return err
		}
		result = ApproveResult{Record: stored, Output: out, RecordSynthesized: created, LanguageDefaulted: defaulted}
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Infof("[Authentication] Document %d authenticated by user %d", in.DocumentID, in.AuthenticatorID)
	return &result, nil
}

type RejectInput struct {
	DocumentID      uint
	AuthenticatorID uint
	Reason          string
	Comment         string
}

// RejectDocument stores the rejection on the verification record and stamps
// the document. The document status and translated outputs stay untouched.
func (s *Service) RejectDocument(ctx context.Context, in RejectInput) (*models.VerificationRecord, error) {
	reason := strings.TrimSpace(in.Reason)
	comment := strings.TrimSpace(in.Comment)
	if reason == "" {
		return nil, ErrReasonRequired
	}
	if comment == "" {
		return nil, ErrCommentRequired
	}

	var stored *models.VerificationRecord
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repos := repository.NewRepositories(tx)
		now := s.now()

		doc, err := repos.Document.GetByID(in.DocumentID)
		if err != nil {
			return err
		}
		rec, _, _, err := EnsureRecord(repos, doc, s.languages)
		if err != nil {
			return err
		}
		if rec.IsTerminal() {
			return ErrAlreadyFinalized
		}
		if !awaitingAuth(doc) {
			return ErrNotAwaitingAuth
		}
		ok, err := repos.Verification.Reject(rec.ID, in.AuthenticatorID, reason, comment, now)
		if err != nil {
			return fmt.Errorf("reject verification record: %w", err)
		}
		if !ok {
			return ErrAlreadyFinalized
		}
		if err := repos.Document.StampAuthenticationRejection(doc.ID, reason, now); err != nil {
			return fmt.Errorf("stamp document: %w", err)
		}

		if owner, err := repos.User.GetByID(doc.OwnerID); err == nil {
			ev := notify.Event{
				NotificationType: models.NOTIFICATION_DOCUMENT_REJECTED,
				Title:            "Translation needs attention",
				Message:          fmt.Sprintf("The translation of %s was rejected: %s", doc.Filename, reason),
				DocumentID:       doc.ID,
				DocumentFilename: doc.Filename,
				Reason:           reason,
				Comment:          comment,
			}
			if err := notify.NotifyUser(repos, models.OUTBOX_FAMILY_NOTIFICATION, owner, ev, notify.DocumentRef(doc.ID)); err != nil {
				return err
			}
		}

		actor := in.AuthenticatorID
		owner := doc.OwnerID
		entry := models.NewActionLog(&actor, models.ACTION_DOCUMENT_AUTH_REJECTED,
			fmt.Sprintf("Document %s rejected by authenticator", doc.Filename), models.ENTITY_DOCUMENT, doc.ID, &owner,
			map[string]any{"verification_record_id": rec.ID, "reason": reason, "comment": comment})
		if err := repos.ActionLog.Create(&entry); err != nil {
			return fmt.Errorf("write action log: %w", err)
		}

		stored, err = repos.Verification.GetByOriginalDocumentID(doc.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	log.Infof("[Authentication] Document %d rejected by user %d", in.DocumentID, in.AuthenticatorID)
	return stored, nil
}

// ListPending returns records awaiting an authenticator, oldest first.
func (s *Service) ListPending(ctx context.Context, offset, limit int) ([]models.VerificationRecord, error) {
	return repository.NewRepositories(s.db.WithContext(ctx)).Verification.ListByStatus(models.VERIFICATION_STATUS_PENDING, offset, limit)
}
