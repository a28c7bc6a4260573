package repository

import (
	"gorm.io/gorm"

	"github.com/ManuelReschke/TranslaFox/app/models"
)

type folderRepository struct {
	db *gorm.DB
}

// NewFolderRepository creates a new folder repository
func NewFolderRepository(db *gorm.DB) FolderRepository {
	return &folderRepository{db: db}
}

func (r *folderRepository) Create(folder *models.Folder) error {
	return r.db.Create(folder).Error
}

func (r *folderRepository) GetByIDForOwner(id, ownerID uint) (*models.Folder, error) {
	var f models.Folder
	if err := r.db.Where("id = ? AND owner_id = ?", id, ownerID).First(&f).Error; err != nil {
		return nil, err
	}
	return &f, nil
}

func (r *folderRepository) ListByOwner(ownerID uint) ([]models.Folder, error) {
	var folders []models.Folder
	err := r.db.Where("owner_id = ?", ownerID).Order("name ASC").Find(&folders).Error
	return folders, err
}
