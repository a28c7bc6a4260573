package documents

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/ManuelReschke/TranslaFox/app/models"
	"github.com/ManuelReschke/TranslaFox/app/repository"
	"github.com/ManuelReschke/TranslaFox/internal/pkg/pages"
	"github.com/ManuelReschke/TranslaFox/internal/pkg/pricing"
	"github.com/ManuelReschke/TranslaFox/internal/pkg/storage"
	"github.com/ManuelReschke/TranslaFox/internal/pkg/upload"
)

var (
	ErrEmptyUpload       = errors.New("uploaded file is empty")
	ErrInvalidMethod     = errors.New("payment method must be stripe or zelle")
	ErrNotCheckoutable   = errors.New("document is no longer awaiting payment")
	ErrNotDraft          = errors.New("only draft documents can be deleted")
	ErrHasPayment        = errors.New("document already has a payment")
	ErrFolderExists      = errors.New("a folder with this name already exists")
	ErrInvalidTranslType = errors.New("translation type must be Notorizado or Certificado")
)

// DownloadTTL is the lifetime of presigned document links.
const DownloadTTL = 15 * time.Minute

// ReceiptTTL keeps receipt links valid long enough for the validator and a
// manual reviewer.
const ReceiptTTL = 72 * time.Hour

// Service handles the customer side of the document lifecycle.
type Service struct {
	db    *gorm.DB
	store storage.Store
}

func NewService(db *gorm.DB, store storage.Store) *Service {
	return &Service{db: db, store: store}
}

type UploadInput struct {
	OwnerID         uint
	FolderID        *uint
	Filename        string
	Body            io.ReadSeeker
	Size            int64
	TranslationType string
	IsBankStatement bool
	SourceLanguage  string
	TargetLanguage  string
}

// Upload validates and stores a file and creates its draft document with the
// computed page count and price.
func (s *Service) Upload(ctx context.Context, in UploadInput) (*models.Document, error) {
	filename := filepath.Base(strings.TrimSpace(in.Filename))
	ext := strings.ToLower(filepath.Ext(filename))

	translationType := strings.TrimSpace(in.TranslationType)
	if translationType == "" {
		translationType = models.TRANSLATION_CERTIFIED
	}
	if translationType != models.TRANSLATION_CERTIFIED && translationType != models.TRANSLATION_NOTARIZED {
		return nil, ErrInvalidTranslType
	}

	mime, err := sniff(filename, in.Body)
	if err != nil {
		return nil, err
	}
	pageCount, err := pages.Count(in.Body, ext)
	if err != nil {
		return nil, err
	}
	if _, err := in.Body.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}

	repos := repository.NewRepositories(s.db.WithContext(ctx))
	if in.FolderID != nil {
		if _, err := repos.Folder.GetByIDForOwner(*in.FolderID, in.OwnerID); err != nil {
			return nil, fmt.Errorf("folder %d: %w", *in.FolderID, err)
		}
	}

	key := storage.DocumentKey(in.OwnerID, ext)
	if err := s.store.Put(ctx, key, in.Body, in.Size, mime); err != nil {
		return nil, fmt.Errorf("store document: %w", err)
	}

	doc := &models.Document{
		OwnerID:         in.OwnerID,
		FolderID:        in.FolderID,
		Filename:        filename,
		PageCount:       pageCount,
		CostCents:       pricing.CalculateCents(pageCount, translationType, in.IsBankStatement),
		Status:          models.DOC_STATUS_DRAFT,
		TranslationType: translationType,
		IsBankStatement: in.IsBankStatement,
		SourceLanguage:  strings.TrimSpace(in.SourceLanguage),
		TargetLanguage:  strings.TrimSpace(in.TargetLanguage),
		FileURL:         s.store.PublicURL(key),
		ObjectKey:       key,
	}
	if err := doc.Validate(); err != nil {
		s.deleteObject(ctx, key)
		return nil, err
	}
	if err := repos.Document.Create(doc); err != nil {
		s.deleteObject(ctx, key)
		return nil, fmt.Errorf("create document: %w", err)
	}

	log.Infof("[Documents] User %d uploaded %s (%d pages, %d cents)", in.OwnerID, filename, pageCount, doc.CostCents)
	return doc, nil
}

// StoreReceipt uploads a payment receipt and returns a link the validator can fetch.
func (s *Service) StoreReceipt(ctx context.Context, ownerID uint, filename string, body io.ReadSeeker, size int64) (string, error) {
	filename = filepath.Base(strings.TrimSpace(filename))
	mime, err := sniff(filename, body)
	if err != nil {
		return "", err
	}
	key := storage.ReceiptKey(ownerID, filepath.Ext(filename))
	if err := s.store.Put(ctx, key, body, size, mime); err != nil {
		return "", fmt.Errorf("store receipt: %w", err)
	}
	url, err := s.store.PresignGet(ctx, key, ReceiptTTL)
	if err != nil {
		log.Warnf("[Documents] Presigning receipt %s failed, using public url: %v", key, err)
		return s.store.PublicURL(key), nil
	}
	return url, nil
}

// StartCheckout records the chosen payment method and moves the document to
// the matching pending state.
func (s *Service) StartCheckout(ctx context.Context, docID, ownerID uint, method string) (*models.Document, error) {
	var status string
	switch method {
	case models.PAYMENT_METHOD_STRIPE:
		status = models.DOC_STATUS_STRIPE_PENDING
	case models.PAYMENT_METHOD_ZELLE:
		status = models.DOC_STATUS_ZELLE_PENDING
	default:
		return nil, ErrInvalidMethod
	}

	repos := repository.NewRepositories(s.db.WithContext(ctx))
	doc, err := repos.Document.GetByIDForOwner(docID, ownerID)
	if err != nil {
		return nil, err
	}
	ok, err := repos.Document.UpdateCheckout(doc.ID, method, status)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotCheckoutable
	}
	return repos.Document.GetByID(doc.ID)
}

// DeleteDraft removes a customer's unpaid draft and its stored file.
func (s *Service) DeleteDraft(ctx context.Context, docID, ownerID uint) error {
	repos := repository.NewRepositories(s.db.WithContext(ctx))
	doc, err := repos.Document.GetByIDForOwner(docID, ownerID)
	if err != nil {
		return err
	}
	if !doc.IsDraft() {
		return ErrNotDraft
	}
	paid, err := repos.Payment.ExistsForDocument(doc.ID)
	if err != nil {
		return err
	}
	if paid {
		return ErrHasPayment
	}
	return s.PurgeDraft(ctx, doc)
}

// PurgeDraft deletes the row first so a failed object delete only leaves an
// orphaned object, never a document pointing at nothing.
func (s *Service) PurgeDraft(ctx context.Context, doc *models.Document) error {
	if err := repository.NewRepositories(s.db.WithContext(ctx)).Document.Delete(doc.ID); err != nil {
		return fmt.Errorf("delete document %d: %w", doc.ID, err)
	}
	if doc.ObjectKey != "" {
		s.deleteObject(ctx, doc.ObjectKey)
	}
	log.Infof("[Documents] Draft %d (%s) deleted", doc.ID, doc.Filename)
	return nil
}

func (s *Service) ListByOwner(ctx context.Context, ownerID uint, offset, limit int) ([]models.Document, int64, error) {
	repos := repository.NewRepositories(s.db.WithContext(ctx))
	docs, err := repos.Document.ListByOwner(ownerID, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	total, err := repos.Document.CountByOwner(ownerID)
	return docs, total, err
}

// DownloadURL returns a short-lived link to the owner's original file.
func (s *Service) DownloadURL(ctx context.Context, docID, ownerID uint) (string, error) {
	doc, err := repository.NewRepositories(s.db.WithContext(ctx)).Document.GetByIDForOwner(docID, ownerID)
	if err != nil {
		return "", err
	}
	if doc.ObjectKey == "" {
		return doc.FileURL, nil
	}
	return s.store.PresignGet(ctx, doc.ObjectKey, DownloadTTL)
}

func (s *Service) CreateFolder(ctx context.Context, ownerID uint, name string, parentID *uint) (*models.Folder, error) {
	repos := repository.NewRepositories(s.db.WithContext(ctx))
	if parentID != nil {
		if _, err := repos.Folder.GetByIDForOwner(*parentID, ownerID); err != nil {
			return nil, fmt.Errorf("parent folder %d: %w", *parentID, err)
		}
	}
	folder := &models.Folder{OwnerID: ownerID, Name: strings.TrimSpace(name), ParentID: parentID}
	if err := folder.Validate(); err != nil {
		return nil, err
	}
	if err := repos.Folder.Create(folder); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrFolderExists
		}
		return nil, err
	}
	return folder, nil
}

func (s *Service) ListFolders(ctx context.Context, ownerID uint) ([]models.Folder, error) {
	return repository.NewRepositories(s.db.WithContext(ctx)).Folder.ListByOwner(ownerID)
}

func (s *Service) deleteObject(ctx context.Context, key string) {
	if err := s.store.Delete(ctx, key); err != nil {
		log.Warnf("[Documents] Failed to delete object %s: %v", key, err)
	}
}

// sniff validates the upload header and rewinds body.
func sniff(filename string, body io.ReadSeeker) (string, error) {
	head := make([]byte, upload.SniffLen)
	n, err := io.ReadFull(body, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", err
	}
	if n == 0 {
		return "", ErrEmptyUpload
	}
	mime, err := upload.ValidateDocumentBySniff(filename, head[:n])
	if err != nil {
		return "", err
	}
	if _, err := body.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	return mime, nil
}
