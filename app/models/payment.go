package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	PAYMENT_METHOD_STRIPE = "stripe"
	PAYMENT_METHOD_ZELLE  = "zelle"

	PAYMENT_STATUS_PENDING_VERIFICATION  = "pending_verification"
	PAYMENT_STATUS_PENDING_MANUAL_REVIEW = "pending_manual_review"
	PAYMENT_STATUS_COMPLETED             = "completed"
	PAYMENT_STATUS_FAILED                = "failed"
)

// Payment is a monetary transaction tied to one document. Once completed or
// failed only the audit fields may change.
type Payment struct {
	ID               uint           `gorm:"primaryKey" json:"id"`
	DocumentID       uint           `gorm:"index;not null" json:"document_id"`
	Document         *Document      `gorm:"foreignKey:DocumentID" json:"document,omitempty"`
	OwnerID          uint           `gorm:"index;not null" json:"owner_id"`
	AmountCents      int64          `gorm:"not null" json:"amount_cents"`
	Method           string         `gorm:"type:varchar(20);not null;index" json:"method" validate:"oneof=stripe zelle"`
	Status           string         `gorm:"type:varchar(40);not null;index" json:"status" validate:"oneof=pending_verification pending_manual_review completed failed"`
	ConfirmationCode string         `gorm:"type:varchar(100);default:''" json:"confirmation_code,omitempty"`
	ReceiptURL       string         `gorm:"type:varchar(1024);default:''" json:"receipt_url,omitempty"`
	ProviderRef      string         `gorm:"type:varchar(191);default:'';index" json:"provider_ref,omitempty"`
	VerifiedAt       *time.Time     `json:"verified_at,omitempty"`
	VerifiedBy       *uint          `json:"verified_by,omitempty"`
	RejectionReason  string         `gorm:"type:varchar(255);default:''" json:"rejection_reason,omitempty"`
	RejectionComment string         `gorm:"type:text" json:"rejection_comment,omitempty"`
	CreatedAt        time.Time      `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt        time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"-"`
}

// PendingPaymentStatuses are the states an operator may still act on.
var PendingPaymentStatuses = []string{PAYMENT_STATUS_PENDING_VERIFICATION, PAYMENT_STATUS_PENDING_MANUAL_REVIEW}

func (p *Payment) IsPending() bool {
	return p.Status == PAYMENT_STATUS_PENDING_VERIFICATION || p.Status == PAYMENT_STATUS_PENDING_MANUAL_REVIEW
}

func (p *Payment) IsFinal() bool {
	return p.Status == PAYMENT_STATUS_COMPLETED || p.Status == PAYMENT_STATUS_FAILED
}

// Rejection reasons offered to operators. Free text is accepted as well.
const (
	REJECT_REASON_AMOUNT_MISMATCH = "amount_mismatch"
	REJECT_REASON_INVALID_RECEIPT = "invalid_receipt"
	REJECT_REASON_NOT_RECEIVED    = "payment_not_received"
	REJECT_REASON_DUPLICATE       = "duplicate_payment"
	REJECT_REASON_OTHER           = "other"
)
