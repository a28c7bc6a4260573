package repository

import (
	"gorm.io/gorm"

	"github.com/ManuelReschke/TranslaFox/app/models"
)

type actionLogRepository struct {
	db *gorm.DB
}

// NewActionLogRepository creates a new audit log repository
func NewActionLogRepository(db *gorm.DB) ActionLogRepository {
	return &actionLogRepository{db: db}
}

func (r *actionLogRepository) Create(entry *models.ActionLog) error {
	return r.db.Create(entry).Error
}

func (r *actionLogRepository) List(filter ActionLogFilter) ([]models.ActionLog, int64, error) {
	offset, limit := normalizePage(filter.Offset, filter.Limit)
	q := r.db.Model(&models.ActionLog{})
	if filter.ActionType != "" {
		q = q.Where("action_type = ?", filter.ActionType)
	}
	if filter.EntityType != "" {
		q = q.Where("entity_type = ?", filter.EntityType)
	}
	if filter.EntityID != 0 {
		q = q.Where("entity_id = ?", filter.EntityID)
	}
	if filter.PerformedBy != 0 {
		q = q.Where("performed_by = ?", filter.PerformedBy)
	}
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var entries []models.ActionLog
	err := q.Order("created_at DESC, id DESC").Offset(offset).Limit(limit).Find(&entries).Error
	return entries, total, err
}
