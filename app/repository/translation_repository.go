package repository

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ManuelReschke/TranslaFox/app/models"
)

type translationRepository struct {
	db *gorm.DB
}

// NewTranslationRepository creates a new translated output repository
func NewTranslationRepository(db *gorm.DB) TranslationRepository {
	return &translationRepository{db: db}
}

// CreateIfNotExists inserts the output once per original document.
func (r *translationRepository) CreateIfNotExists(out *models.TranslatedOutput) (bool, error) {
	tx := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "original_document_id"}},
		DoNothing: true,
	}).Create(out)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

func (r *translationRepository) GetByOriginalDocumentID(documentID uint) (*models.TranslatedOutput, error) {
	var out models.TranslatedOutput
	if err := r.db.Where("original_document_id = ?", documentID).First(&out).Error; err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *translationRepository) ListByOwner(ownerID uint) ([]models.TranslatedOutput, error) {
	var outs []models.TranslatedOutput
	err := r.db.Where("owner_id = ?", ownerID).Order("created_at DESC").Find(&outs).Error
	return outs, err
}

func (r *translationRepository) CountByOriginalDocumentID(documentID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.TranslatedOutput{}).Where("original_document_id = ?", documentID).Count(&count).Error
	return count, err
}
