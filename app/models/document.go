package models

import (
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"

	"github.com/ManuelReschke/TranslaFox/internal/pkg/shortcode"
)

const (
	DOC_STATUS_DRAFT                 = "draft"
	DOC_STATUS_PENDING               = "pending"
	DOC_STATUS_PROCESSING            = "processing"
	DOC_STATUS_PENDING_MANUAL_REVIEW = "pending_manual_review"
	DOC_STATUS_STRIPE_PENDING        = "stripe_pending"
	DOC_STATUS_ZELLE_PENDING         = "zelle_pending"
	DOC_STATUS_COMPLETED             = "completed"

	TRANSLATION_NOTARIZED = "Notorizado"
	TRANSLATION_CERTIFIED = "Certificado"
)

// StripePayableStatuses are the states a card checkout may settle.
var StripePayableStatuses = []string{DOC_STATUS_DRAFT, DOC_STATUS_PENDING, DOC_STATUS_STRIPE_PENDING}

// Document is an uploaded source file and its lifecycle status.
type Document struct {
	ID                            uint           `gorm:"primaryKey" json:"id"`
	OwnerID                       uint           `gorm:"index;not null" json:"owner_id"`
	FolderID                      *uint          `gorm:"index" json:"folder_id,omitempty"`
	Filename                      string         `gorm:"type:varchar(255);not null" json:"filename" validate:"required,max=255"`
	PageCount                     int            `gorm:"not null;default:1" json:"page_count" validate:"min=1"`
	CostCents                     int64          `gorm:"not null;default:0" json:"cost_cents"`
	Status                        string         `gorm:"type:varchar(40);not null;default:'draft';index" json:"status" validate:"oneof=draft pending processing pending_manual_review stripe_pending zelle_pending completed"`
	PaymentMethod                 string         `gorm:"type:varchar(20);default:'';index" json:"payment_method" validate:"omitempty,oneof=stripe zelle"`
	TranslationType               string         `gorm:"type:varchar(30);not null;default:'Certificado'" json:"translation_type" validate:"oneof=Notorizado Certificado"`
	IsBankStatement               bool           `gorm:"default:false" json:"is_bank_statement"`
	SourceLanguage                string         `gorm:"type:varchar(60)" json:"source_language"`
	TargetLanguage                string         `gorm:"type:varchar(60)" json:"target_language"`
	VerificationCode              string         `gorm:"type:varchar(20);uniqueIndex" json:"verification_code"`
	FileURL                       string         `gorm:"type:varchar(1024)" json:"file_url"`
	ObjectKey                     string         `gorm:"type:varchar(512)" json:"-"`
	AuthenticationRejectedAt      *time.Time     `json:"authentication_rejected_at,omitempty"`
	AuthenticationRejectionReason string         `gorm:"type:text" json:"authentication_rejection_reason,omitempty"`
	CreatedAt                     time.Time      `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt                     time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt                     gorm.DeletedAt `gorm:"index" json:"-"`
}

func (d *Document) Validate() error {
	v := validator.New()

	return v.Struct(d)
}

// BeforeCreate assigns a verification code when none was set.
func (d *Document) BeforeCreate(tx *gorm.DB) error {
	if d.VerificationCode == "" {
		code, err := NewVerificationCode()
		if err != nil {
			return err
		}
		d.VerificationCode = code
	}
	return nil
}

func (d *Document) IsNotarized() bool {
	return d.TranslationType == TRANSLATION_NOTARIZED
}

func (d *Document) IsDraft() bool {
	return d.Status == DOC_STATUS_DRAFT
}

// NewVerificationCode returns an upper-case 8 character code.
func NewVerificationCode() (string, error) {
	return shortcode.VerificationCode()
}
