package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	TRANSLATED_STATUS_COMPLETED = "completed"
	TRANSLATED_STATUS_FINISHED  = "finished"
	TRANSLATED_STATUS_REJECTED  = "rejected"
)

// TranslatedOutput is the certified artifact visible to the customer.
// Immutable after creation except for the soft-delete column.
type TranslatedOutput struct {
	ID                 uint           `gorm:"primaryKey" json:"id"`
	OriginalDocumentID uint           `gorm:"uniqueIndex;not null" json:"original_document_id"`
	OwnerID            uint           `gorm:"index;not null" json:"owner_id"`
	Filename           string         `gorm:"type:varchar(255);not null" json:"filename"`
	TranslatedFileURL  string         `gorm:"type:varchar(1024)" json:"translated_file_url"`
	Status             string         `gorm:"type:varchar(20);not null;default:'completed'" json:"status" validate:"oneof=completed finished rejected"`
	IsAuthenticated    bool           `gorm:"default:false" json:"is_authenticated"`
	VerificationCode   string         `gorm:"type:varchar(20);index" json:"verification_code"`
	CreatedAt          time.Time      `gorm:"autoCreateTime" json:"created_at"`
	DeletedAt          gorm.DeletedAt `gorm:"index" json:"-"`
}

func (TranslatedOutput) TableName() string {
	return "translated_documents"
}
