package repository

import (
	"gorm.io/gorm"

	"github.com/ManuelReschke/TranslaFox/app/models"
)

type notificationRepository struct {
	db *gorm.DB
}

// NewNotificationRepository creates a new in-app notification repository
func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

func (r *notificationRepository) Create(n *models.Notification) error {
	return r.db.Create(n).Error
}

func (r *notificationRepository) ListByUser(userID uint, unreadOnly bool, offset, limit int) ([]models.Notification, error) {
	offset, limit = normalizePage(offset, limit)
	q := r.db.Where("user_id = ?", userID)
	if unreadOnly {
		q = q.Where("is_read = ?", false)
	}
	var list []models.Notification
	err := q.Order("created_at DESC, id DESC").Offset(offset).Limit(limit).Find(&list).Error
	return list, err
}

// MarkRead flags the notification as read if it belongs to userID.
func (r *notificationRepository) MarkRead(id, userID uint) (bool, error) {
	var count int64
	scope := r.db.Model(&models.Notification{}).Where("id = ? AND user_id = ?", id, userID).Session(&gorm.Session{})
	if err := scope.Count(&count).Error; err != nil {
		return false, err
	}
	if count == 0 {
		return false, nil
	}
	return true, scope.Update("is_read", true).Error
}
