package models

import (
	"time"
)

const (
	VERIFICATION_STATUS_PENDING   = "pending"
	VERIFICATION_STATUS_COMPLETED = "completed"
	VERIFICATION_STATUS_REJECTED  = "rejected"
)

// VerificationRecord routes a document to an authenticator. There is at most
// one record per original document.
type VerificationRecord struct {
	ID                 uint       `gorm:"primaryKey" json:"id"`
	OriginalDocumentID uint       `gorm:"uniqueIndex;not null" json:"original_document_id"`
	OriginalDocument   *Document  `gorm:"foreignKey:OriginalDocumentID" json:"original_document,omitempty"`
	OwnerID            uint       `gorm:"index;not null" json:"owner_id"`
	Filename           string     `gorm:"type:varchar(255);not null" json:"filename"`
	TranslatedFileURL  string     `gorm:"type:varchar(1024);default:''" json:"translated_file_url,omitempty"`
	SourceLanguage     string     `gorm:"type:varchar(60)" json:"source_language"`
	TargetLanguage     string     `gorm:"type:varchar(60)" json:"target_language"`
	Status             string     `gorm:"type:varchar(20);not null;default:'pending';index" json:"status" validate:"oneof=pending completed rejected"`
	AuthenticatedBy    *uint      `json:"authenticated_by,omitempty"`
	AuthenticatedAt    *time.Time `json:"authenticated_at,omitempty"`
	RejectionReason    string     `gorm:"type:varchar(255);default:''" json:"rejection_reason,omitempty"`
	RejectionComment   string     `gorm:"type:text" json:"rejection_comment,omitempty"`
	RejectedBy         *uint      `json:"rejected_by,omitempty"`
	RejectedAt         *time.Time `json:"rejected_at,omitempty"`
	CreatedAt          time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (VerificationRecord) TableName() string {
	return "documents_to_be_verified"
}

func (v *VerificationRecord) IsTerminal() bool {
	return v.Status == VERIFICATION_STATUS_COMPLETED || v.Status == VERIFICATION_STATUS_REJECTED
}
