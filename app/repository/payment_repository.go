package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/ManuelReschke/TranslaFox/app/models"
)

type paymentRepository struct {
	db *gorm.DB
}

// NewPaymentRepository creates a new payment repository instance
func NewPaymentRepository(db *gorm.DB) PaymentRepository {
	return &paymentRepository{db: db}
}

func (r *paymentRepository) Create(payment *models.Payment) error {
	return r.db.Create(payment).Error
}

func (r *paymentRepository) GetByID(id uint) (*models.Payment, error) {
	var p models.Payment
	if err := r.db.First(&p, id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *paymentRepository) GetByProviderRef(method, ref string) (*models.Payment, error) {
	var p models.Payment
	if err := r.db.Where("method = ? AND provider_ref = ? AND provider_ref <> ''", method, ref).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *paymentRepository) ExistsForDocument(documentID uint) (bool, error) {
	var count int64
	err := r.db.Model(&models.Payment{}).Where("document_id = ?", documentID).Count(&count).Error
	return count > 0, err
}

// List returns one page of payments, newest first, plus the unpaged total.
func (r *paymentRepository) List(filter PaymentFilter) ([]models.Payment, int64, error) {
	offset, limit := normalizePage(filter.Offset, filter.Limit)
	q := r.db.Model(&models.Payment{})
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.Method != "" {
		q = q.Where("method = ?", filter.Method)
	}
	if filter.OwnerID != 0 {
		q = q.Where("owner_id = ?", filter.OwnerID)
	}
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var payments []models.Payment
	err := q.Preload("Document").Order("created_at DESC, id DESC").Offset(offset).Limit(limit).Find(&payments).Error
	return payments, total, err
}

// MarkCompleted flips a pending payment to completed. The WHERE clause on the
// pending states makes concurrent approvals race-safe: only one caller sees true.
func (r *paymentRepository) MarkCompleted(id uint, verifiedBy *uint, confirmationCode string, at time.Time) (bool, error) {
	updates := map[string]interface{}{
		"status":      models.PAYMENT_STATUS_COMPLETED,
		"verified_at": at,
		"verified_by": verifiedBy,
	}
	if confirmationCode != "" {
		updates["confirmation_code"] = confirmationCode
	}
	res := r.db.Model(&models.Payment{}).
		Where("id = ? AND status IN ?", id, models.PendingPaymentStatuses).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *paymentRepository) MarkFailed(id uint, verifiedBy *uint, reason, comment string, at time.Time) (bool, error) {
	res := r.db.Model(&models.Payment{}).
		Where("id = ? AND status IN ?", id, models.PendingPaymentStatuses).
		Updates(map[string]interface{}{
			"status":            models.PAYMENT_STATUS_FAILED,
			"rejection_reason":  reason,
			"rejection_comment": comment,
			"verified_at":       at,
			"verified_by":       verifiedBy,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *paymentRepository) MarkManualReview(id uint) (bool, error) {
	res := r.db.Model(&models.Payment{}).
		Where("id = ? AND status = ?", id, models.PAYMENT_STATUS_PENDING_VERIFICATION).
		Update("status", models.PAYMENT_STATUS_PENDING_MANUAL_REVIEW)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
