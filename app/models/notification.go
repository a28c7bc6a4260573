package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	NOTIFICATION_PAYMENT_APPROVED       = "payment_approved"
	NOTIFICATION_PAYMENT_REJECTED       = "payment_rejected"
	NOTIFICATION_PAYMENT_MANUAL_REVIEW  = "payment_manual_review"
	NOTIFICATION_DOCUMENT_AWAITING      = "document_awaiting_authentication"
	NOTIFICATION_DOCUMENT_AUTHENTICATED = "document_authenticated"
	NOTIFICATION_DOCUMENT_REJECTED      = "document_rejected"
)

// Notification is an in-app message for one user.
type Notification struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	UserID      uint           `gorm:"index" json:"user_id"`
	Type        string         `gorm:"type:varchar(50)" json:"type"`
	Title       string         `gorm:"type:varchar(200)" json:"title"`
	Content     string         `gorm:"type:text" json:"content"`
	IsRead      bool           `gorm:"default:false" json:"is_read"`
	ReferenceID uint           `json:"reference_id"` // document or payment the message is about
	CreatedAt   time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

// MarkAsRead flags the notification as read
func (n *Notification) MarkAsRead(db *gorm.DB) error {
	n.IsRead = true
	return db.Model(n).Update("is_read", true).Error
}

// CreateNotification stores a new unread notification
func CreateNotification(db *gorm.DB, userID uint, notificationType, title, content string, referenceID uint) error {
	notification := Notification{
		UserID:      userID,
		Type:        notificationType,
		Title:       title,
		Content:     content,
		ReferenceID: referenceID,
		IsRead:      false,
	}

	return db.Create(&notification).Error
}
