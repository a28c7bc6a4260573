package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	OUTBOX_STATUS_PENDING   = "pending"
	OUTBOX_STATUS_QUEUED    = "queued"
	OUTBOX_STATUS_DELIVERED = "delivered"
	OUTBOX_STATUS_DEAD      = "dead"

	OUTBOX_FAMILY_NOTIFICATION = "notification"
	OUTBOX_FAMILY_PAYMENT      = "payment_notification"
	OUTBOX_FAMILY_INTAKE       = "translation_intake"
)

// OutboxMessage is a durable record of an outbound webhook call. Rows are
// written alongside the business change and delivered asynchronously.
type OutboxMessage struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	Family        string         `gorm:"type:varchar(40);not null;index" json:"family"`
	EventType     string         `gorm:"type:varchar(60);not null" json:"event_type"`
	Payload       datatypes.JSON `gorm:"not null" json:"payload"`
	Status        string         `gorm:"type:varchar(20);not null;default:'pending';index:idx_outbox_due,priority:1" json:"status"`
	Attempts      int            `gorm:"not null;default:0" json:"attempts"`
	NextAttemptAt time.Time      `gorm:"index:idx_outbox_due,priority:2" json:"next_attempt_at"`
	LastError     string         `gorm:"type:text" json:"last_error,omitempty"`
	DeliveredAt   *time.Time     `json:"delivered_at,omitempty"`
	EntityType    string         `gorm:"type:varchar(40);default:''" json:"entity_type,omitempty"`
	EntityID      uint           `gorm:"default:0" json:"entity_id,omitempty"`
	CreatedAt     time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

func (OutboxMessage) TableName() string {
	return "outbox_messages"
}
