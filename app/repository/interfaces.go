package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/ManuelReschke/TranslaFox/app/models"
)

// UserRepository defines the interface for profile-related database operations
type UserRepository interface {
	Create(user *models.User) error
	GetByID(id uint) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	GetByAPIKeyHash(hash string) (*models.User, error)
	TouchAPIKeyUsage(id uint, at time.Time) error
	Update(user *models.User) error
	UpdateRole(id uint, role string) error
	List(offset, limit int) ([]models.User, error)
	ListByRole(roles ...string) ([]models.User, error)
	Count() (int64, error)
}

// DocumentRepository defines the interface for document-related database operations
type DocumentRepository interface {
	Create(doc *models.Document) error
	GetByID(id uint) (*models.Document, error)
	GetByIDForOwner(id, ownerID uint) (*models.Document, error)
	GetByVerificationCode(code string) (*models.Document, error)
	ListByOwner(ownerID uint, offset, limit int) ([]models.Document, error)
	CountByOwner(ownerID uint) (int64, error)
	UpdateStatus(id uint, status string) error
	UpdateCheckout(id uint, method, status string) (bool, error)
	MarkStripePaid(id uint) (bool, error)
	FindCorrelated(ownerID uint, method string, anchor time.Time, window time.Duration) ([]models.Document, error)
	StampAuthenticationRejection(id uint, reason string, at time.Time) error
	ListStaleDrafts(before time.Time, limit int) ([]models.Document, error)
	Delete(id uint) error
}

// PaymentRepository defines the interface for payment-related database operations
type PaymentRepository interface {
	Create(payment *models.Payment) error
	GetByID(id uint) (*models.Payment, error)
	GetByProviderRef(method, ref string) (*models.Payment, error)
	ExistsForDocument(documentID uint) (bool, error)
	List(filter PaymentFilter) ([]models.Payment, int64, error)
	MarkCompleted(id uint, verifiedBy *uint, confirmationCode string, at time.Time) (bool, error)
	MarkFailed(id uint, verifiedBy *uint, reason, comment string, at time.Time) (bool, error)
	MarkManualReview(id uint) (bool, error)
}

// VerificationRepository defines the interface for the authenticator staging table
type VerificationRepository interface {
	GetByOriginalDocumentID(documentID uint) (*models.VerificationRecord, error)
	EnsureForDocument(record *models.VerificationRecord) (*models.VerificationRecord, bool, error)
	Complete(id, authenticatorID uint, translatedFileURL string, at time.Time) (bool, error)
	Reject(id, authenticatorID uint, reason, comment string, at time.Time) (bool, error)
	ListByStatus(status string, offset, limit int) ([]models.VerificationRecord, error)
	CountByOriginalDocumentID(documentID uint) (int64, error)
}

// TranslationRepository defines the interface for finished translated outputs
type TranslationRepository interface {
	CreateIfNotExists(out *models.TranslatedOutput) (bool, error)
	GetByOriginalDocumentID(documentID uint) (*models.TranslatedOutput, error)
	ListByOwner(ownerID uint) ([]models.TranslatedOutput, error)
	CountByOriginalDocumentID(documentID uint) (int64, error)
}

// ActionLogRepository is append-only: there is no update or delete.
type ActionLogRepository interface {
	Create(entry *models.ActionLog) error
	List(filter ActionLogFilter) ([]models.ActionLog, int64, error)
}

// NotificationRepository defines the interface for in-app notifications
type NotificationRepository interface {
	Create(n *models.Notification) error
	ListByUser(userID uint, unreadOnly bool, offset, limit int) ([]models.Notification, error)
	MarkRead(id, userID uint) (bool, error)
}

// FolderRepository defines the interface for per-owner folders
type FolderRepository interface {
	Create(folder *models.Folder) error
	GetByIDForOwner(id, ownerID uint) (*models.Folder, error)
	ListByOwner(ownerID uint) ([]models.Folder, error)
}

// OutboxRepository defines the interface for durable outbound messages
type OutboxRepository interface {
	Create(msg *models.OutboxMessage) error
	GetByID(id uint) (*models.OutboxMessage, error)
	ClaimDue(now time.Time, limit int) ([]models.OutboxMessage, error)
	MarkDelivered(id uint, at time.Time) error
	MarkAttemptFailed(id uint, attempts int, nextAttemptAt time.Time, lastError string, dead bool) error
	RequeueStale(queuedBefore time.Time) (int64, error)
	List(status string, offset, limit int) ([]models.OutboxMessage, int64, error)
	CountByStatus() (map[string]int64, error)
}

// QueueRepository defines the interface for cache/queue operations
type QueueRepository interface {
	GetListLength(key string) (int64, error)
	FindKeysByPatterns(patterns []string) ([]string, error)
}

// PaymentFilter narrows ListPayments; zero values mean "any".
type PaymentFilter struct {
	Status  string
	Method  string
	OwnerID uint
	Offset  int
	Limit   int
}

// ActionLogFilter narrows the audit listing; zero values mean "any".
type ActionLogFilter struct {
	ActionType  string
	EntityType  string
	EntityID    uint
	PerformedBy uint
	Offset      int
	Limit       int
}

// Repositories struct holds all repository instances
type Repositories struct {
	User         UserRepository
	Document     DocumentRepository
	Payment      PaymentRepository
	Verification VerificationRepository
	Translation  TranslationRepository
	ActionLog    ActionLogRepository
	Notification NotificationRepository
	Folder       FolderRepository
	Outbox       OutboxRepository
	Queue        QueueRepository
}

// NewRepositories creates a new instance of all repositories. Pass a
// transaction handle to bind every repository to that transaction.
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		User:         NewUserRepository(db),
		Document:     NewDocumentRepository(db),
		Payment:      NewPaymentRepository(db),
		Verification: NewVerificationRepository(db),
		Translation:  NewTranslationRepository(db),
		ActionLog:    NewActionLogRepository(db),
		Notification: NewNotificationRepository(db),
		Folder:       NewFolderRepository(db),
		Outbox:       NewOutboxRepository(db),
		Queue:        NewQueueRepository(),
	}
}

const defaultPageSize = 50
const maxPageSize = 200

func normalizePage(offset, limit int) (int, int) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	return offset, limit
}
