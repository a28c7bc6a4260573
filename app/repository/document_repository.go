package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/ManuelReschke/TranslaFox/app/models"
)

type documentRepository struct {
	db *gorm.DB
}

// NewDocumentRepository creates a new document repository instance
func NewDocumentRepository(db *gorm.DB) DocumentRepository {
	return &documentRepository{db: db}
}

func (r *documentRepository) Create(doc *models.Document) error {
	return r.db.Create(doc).Error
}

func (r *documentRepository) GetByID(id uint) (*models.Document, error) {
	var doc models.Document
	if err := r.db.First(&doc, id).Error; err != nil {
		return nil, err
	}
	return &doc, nil
}

// GetByIDForOwner hides documents of other owners behind ErrRecordNotFound.
func (r *documentRepository) GetByIDForOwner(id, ownerID uint) (*models.Document, error) {
	var doc models.Document
	if err := r.db.Where("id = ? AND owner_id = ?", id, ownerID).First(&doc).Error; err != nil {
		return nil, err
	}
	return &doc, nil
}

func (r *documentRepository) GetByVerificationCode(code string) (*models.Document, error) {
	var doc models.Document
	if err := r.db.Where("verification_code = ?", code).First(&doc).Error; err != nil {
		return nil, err
	}
	return &doc, nil
}

func (r *documentRepository) ListByOwner(ownerID uint, offset, limit int) ([]models.Document, error) {
	offset, limit = normalizePage(offset, limit)
	var docs []models.Document
	err := r.db.Where("owner_id = ?", ownerID).Order("created_at DESC").Offset(offset).Limit(limit).Find(&docs).Error
	return docs, err
}

func (r *documentRepository) CountByOwner(ownerID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.Document{}).Where("owner_id = ?", ownerID).Count(&count).Error
	return count, err
}

// UpdateStatus sets the status column; a missing row is reported as ErrRecordNotFound.
func (r *documentRepository) UpdateStatus(id uint, status string) error {
	res := r.db.Model(&models.Document{}).Where("id = ?", id).Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// UpdateCheckout moves a draft or a previously started checkout to the chosen method.
// Returns false when the document already left the checkout stage.
func (r *documentRepository) UpdateCheckout(id uint, method, status string) (bool, error) {
	res := r.db.Model(&models.Document{}).
		Where("id = ? AND status IN ?", id, []string{models.DOC_STATUS_DRAFT, models.DOC_STATUS_PENDING, models.DOC_STATUS_STRIPE_PENDING, models.DOC_STATUS_ZELLE_PENDING}).
		Updates(map[string]interface{}{"payment_method": method, "status": status})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// MarkStripePaid moves a document awaiting card payment to processing.
// Returns false when it was already paid or finished.
func (r *documentRepository) MarkStripePaid(id uint) (bool, error) {
	res := r.db.Model(&models.Document{}).
		Where("id = ? AND status IN ?", id, models.StripePayableStatuses).
		Updates(map[string]interface{}{"status": models.DOC_STATUS_PROCESSING, "payment_method": models.PAYMENT_METHOD_STRIPE})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// FindCorrelated returns the owner's documents paid with method whose creation
// time lies within window of anchor, oldest first.
func (r *documentRepository) FindCorrelated(ownerID uint, method string, anchor time.Time, window time.Duration) ([]models.Document, error) {
	var docs []models.Document
	err := r.db.
		Where("owner_id = ? AND payment_method = ? AND created_at BETWEEN ? AND ?", ownerID, method, anchor.Add(-window), anchor.Add(window)).
		Order("created_at ASC, id ASC").
		Find(&docs).Error
	return docs, err
}

// StampAuthenticationRejection records the rejection without touching status.
func (r *documentRepository) StampAuthenticationRejection(id uint, reason string, at time.Time) error {
	res := r.db.Model(&models.Document{}).Where("id = ?", id).Updates(map[string]interface{}{
		"authentication_rejected_at":      at,
		"authentication_rejection_reason": reason,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ListStaleDrafts returns drafts created before the cutoff that have no payment row.
func (r *documentRepository) ListStaleDrafts(before time.Time, limit int) ([]models.Document, error) {
	if limit <= 0 {
		limit = 100
	}
	var docs []models.Document
	err := r.db.
		Where("status = ? AND created_at < ?", models.DOC_STATUS_DRAFT, before).
		Where("NOT EXISTS (SELECT 1 FROM payments WHERE payments.document_id = documents.id)").
		Order("created_at ASC").
		Limit(limit).
		Find(&docs).Error
	return docs, err
}

// Delete soft deletes a document by its ID
func (r *documentRepository) Delete(id uint) error {
	return r.db.Delete(&models.Document{}, id).Error
}
