package repository

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ManuelReschke/TranslaFox/app/models"
)

type verificationRepository struct {
	db *gorm.DB
}

// NewVerificationRepository creates a new verification record repository
func NewVerificationRepository(db *gorm.DB) VerificationRepository {
	return &verificationRepository{db: db}
}

func (r *verificationRepository) GetByOriginalDocumentID(documentID uint) (*models.VerificationRecord, error) {
	var rec models.VerificationRecord
	if err := r.db.Where("original_document_id = ?", documentID).First(&rec).Error; err != nil {
		return nil, err
	}
	return &rec, nil
}

// EnsureForDocument inserts record unless one already exists for the same
// original document and returns the stored row. The unique index on
// original_document_id keeps a single record per document.
func (r *verificationRepository) EnsureForDocument(record *models.VerificationRecord) (*models.VerificationRecord, bool, error) {
	tx := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "original_document_id"}},
		DoNothing: true,
	}).Create(record)
	if tx.Error != nil {
		return nil, false, tx.Error
	}

	created := tx.RowsAffected > 0
	stored, err := r.GetByOriginalDocumentID(record.OriginalDocumentID)
	if err != nil {
		return nil, false, err
	}
	return stored, created, nil
}

// Complete moves a pending record to completed; false means it was already terminal.
func (r *verificationRepository) Complete(id, authenticatorID uint, translatedFileURL string, at time.Time) (bool, error) {
	updates := map[string]interface{}{
		"status":           models.VERIFICATION_STATUS_COMPLETED,
		"authenticated_by": authenticatorID,
		"authenticated_at": at,
	}
	if translatedFileURL != "" {
		updates["translated_file_url"] = translatedFileURL
	}
	res := r.db.Model(&models.VerificationRecord{}).
		Where("id = ? AND status = ?", id, models.VERIFICATION_STATUS_PENDING).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *verificationRepository) Reject(id, authenticatorID uint, reason, comment string, at time.Time) (bool, error) {
	res := r.db.Model(&models.VerificationRecord{}).
		Where("id = ? AND status = ?", id, models.VERIFICATION_STATUS_PENDING).
		Updates(map[string]interface{}{
			"status":            models.VERIFICATION_STATUS_REJECTED,
			"rejection_reason":  reason,
			"rejection_comment": comment,
			"rejected_by":       authenticatorID,
			"rejected_at":       at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *verificationRepository) ListByStatus(status string, offset, limit int) ([]models.VerificationRecord, error) {
	offset, limit = normalizePage(offset, limit)
	var recs []models.VerificationRecord
	err := r.db.Where("status = ?", status).Preload("OriginalDocument").
		Order("created_at ASC, id ASC").Offset(offset).Limit(limit).Find(&recs).Error
	return recs, err
}

func (r *verificationRepository) CountByOriginalDocumentID(documentID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.VerificationRecord{}).Where("original_document_id = ?", documentID).Count(&count).Error
	return count, err
}
