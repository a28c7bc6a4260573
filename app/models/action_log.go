package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

const (
	ACTION_PAYMENT_APPROVED         = "payment_approved"
	ACTION_PAYMENT_REJECTED         = "payment_rejected"
	ACTION_PAYMENT_MANUAL_REVIEW    = "payment_manual_review"
	ACTION_DOCUMENT_STATUS_FAILED   = "document_status_update_failed"
	ACTION_DOCUMENT_AUTHENTICATED   = "document_authenticated"
	ACTION_DOCUMENT_AUTH_REJECTED   = "document_authentication_rejected"
	ACTION_ROLE_CHANGED             = "role_changed"
	ACTION_API_KEY_ISSUED           = "api_key_issued"
	ACTION_STRIPE_PAYMENT_COMPLETED = "stripe_payment_completed"
	ACTION_STRIPE_PAYMENT_UNMATCHED = "stripe_payment_unmatched"

	ENTITY_DOCUMENT = "document"
	ENTITY_PAYMENT  = "payment"
	ENTITY_PROFILE  = "profile"

	PERFORMER_USER   = "user"
	PERFORMER_SYSTEM = "system"
)

// ActionLog is an append-only audit entry. Rows are never updated or deleted.
type ActionLog struct {
	ID              uint           `gorm:"primaryKey" json:"id"`
	PerformedBy     *uint          `gorm:"index" json:"performed_by,omitempty"`
	PerformedByType string         `gorm:"type:varchar(20);not null;default:'user'" json:"performed_by_type"`
	ActionType      string         `gorm:"type:varchar(60);not null;index" json:"action_type"`
	Description     string         `gorm:"type:text" json:"description"`
	EntityType      string         `gorm:"type:varchar(40);default:'';index:idx_action_logs_entity,priority:1" json:"entity_type,omitempty"`
	EntityID        *uint          `gorm:"index:idx_action_logs_entity,priority:2" json:"entity_id,omitempty"`
	Metadata        datatypes.JSON `json:"metadata,omitempty"`
	AffectedUserID  *uint          `gorm:"index" json:"affected_user_id,omitempty"`
	CreatedAt       time.Time      `gorm:"autoCreateTime;index" json:"created_at"`
}

// MetadataMap decodes the metadata column. A broken column yields an empty map.
func (a *ActionLog) MetadataMap() map[string]any {
	out := map[string]any{}
	if len(a.Metadata) == 0 {
		return out
	}
	_ = json.Unmarshal(a.Metadata, &out)
	return out
}

// NewActionLog builds an entry; actorID nil means the system acted.
func NewActionLog(actorID *uint, actionType, description, entityType string, entityID uint, affectedUserID *uint, metadata map[string]any) ActionLog {
	entry := ActionLog{
		PerformedBy:     actorID,
		PerformedByType: PERFORMER_USER,
		ActionType:      actionType,
		Description:     description,
		EntityType:      entityType,
		AffectedUserID:  affectedUserID,
	}
	if actorID == nil {
		entry.PerformedByType = PERFORMER_SYSTEM
	}
	if entityID != 0 {
		id := entityID
		entry.EntityID = &id
	}
	if len(metadata) > 0 {
		if b, err := json.Marshal(metadata); err == nil {
			entry.Metadata = datatypes.JSON(b)
		}
	}
	return entry
}
