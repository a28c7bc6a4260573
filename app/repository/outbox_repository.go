package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/ManuelReschke/TranslaFox/app/models"
)

type outboxRepository struct {
	db *gorm.DB
}

// NewOutboxRepository creates a new outbox repository
func NewOutboxRepository(db *gorm.DB) OutboxRepository {
	return &outboxRepository{db: db}
}

func (r *outboxRepository) Create(msg *models.OutboxMessage) error {
	if msg.Status == "" {
		msg.Status = models.OUTBOX_STATUS_PENDING
	}
	if msg.NextAttemptAt.IsZero() {
		msg.NextAttemptAt = time.Now().UTC()
	}
	return r.db.Create(msg).Error
}

func (r *outboxRepository) GetByID(id uint) (*models.OutboxMessage, error) {
	var msg models.OutboxMessage
	if err := r.db.First(&msg, id).Error; err != nil {
		return nil, err
	}
	return &msg, nil
}

// ClaimDue flips up to limit due pending rows to queued and returns the rows
// this caller won. A row claimed by a concurrent relay is skipped.
func (r *outboxRepository) ClaimDue(now time.Time, limit int) ([]models.OutboxMessage, error) {
	if limit <= 0 {
		limit = 100
	}
	var due []models.OutboxMessage
	err := r.db.Where("status = ? AND next_attempt_at <= ?", models.OUTBOX_STATUS_PENDING, now).
		Order("next_attempt_at ASC, id ASC").Limit(limit).Find(&due).Error
	if err != nil {
		return nil, err
	}

	claimed := make([]models.OutboxMessage, 0, len(due))
	for _, msg := range due {
		res := r.db.Model(&models.OutboxMessage{}).
			Where("id = ? AND status = ?", msg.ID, models.OUTBOX_STATUS_PENDING).
			Updates(map[string]interface{}{"status": models.OUTBOX_STATUS_QUEUED, "updated_at": now})
		if res.Error != nil {
			return claimed, res.Error
		}
		if res.RowsAffected > 0 {
			msg.Status = models.OUTBOX_STATUS_QUEUED
			claimed = append(claimed, msg)
		}
	}
	return claimed, nil
}

func (r *outboxRepository) MarkDelivered(id uint, at time.Time) error {
	return r.db.Model(&models.OutboxMessage{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":       models.OUTBOX_STATUS_DELIVERED,
		"delivered_at": at,
		"last_error":   "",
	}).Error
}

// MarkAttemptFailed records a failed delivery. dead parks the row for good,
// otherwise it returns to pending until nextAttemptAt.
func (r *outboxRepository) MarkAttemptFailed(id uint, attempts int, nextAttemptAt time.Time, lastError string, dead bool) error {
	status := models.OUTBOX_STATUS_PENDING
	if dead {
		status = models.OUTBOX_STATUS_DEAD
	}
	return r.db.Model(&models.OutboxMessage{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":          status,
		"attempts":        attempts,
		"next_attempt_at": nextAttemptAt,
		"last_error":      lastError,
	}).Error
}

// RequeueStale returns queued rows whose job never reported back to pending.
func (r *outboxRepository) RequeueStale(queuedBefore time.Time) (int64, error) {
	res := r.db.Model(&models.OutboxMessage{}).
		Where("status = ? AND updated_at < ?", models.OUTBOX_STATUS_QUEUED, queuedBefore).
		Update("status", models.OUTBOX_STATUS_PENDING)
	return res.RowsAffected, res.Error
}

func (r *outboxRepository) List(status string, offset, limit int) ([]models.OutboxMessage, int64, error) {
	offset, limit = normalizePage(offset, limit)
	q := r.db.Model(&models.OutboxMessage{})
	if status != "" {
		q = q.Where("status = ?", status)
	}
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var msgs []models.OutboxMessage
	err := q.Order("id DESC").Offset(offset).Limit(limit).Find(&msgs).Error
	return msgs, total, err
}

func (r *outboxRepository) CountByStatus() (map[string]int64, error) {
	type row struct {
		Status string
		Total  int64
	}
	var rows []row
	err := r.db.Model(&models.OutboxMessage{}).Select("status, COUNT(*) AS total").Group("status").Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, rw := range rows {
		out[rw.Status] = rw.Total
	}
	return out, nil
}
