package statistics

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/ManuelReschke/TranslaFox/app/models"
	"github.com/ManuelReschke/TranslaFox/internal/pkg/cache"
)

const (
	CacheKeyDashboard = "statistics:dashboard"
	CacheExpiration   = 5 * time.Minute
)

// Dashboard holds the figures shown on the admin overview.
type Dashboard struct {
	DocumentsByStatus map[string]int64 `json:"documents_by_status"`
	PaymentsByStatus  map[string]int64 `json:"payments_by_status"`
	PendingPayments   int64            `json:"pending_payments"`
	PendingAuth       int64            `json:"pending_authentications"`
	RevenueTodayCents int64            `json:"revenue_today_cents"`
	RevenueTotalCents int64            `json:"revenue_total_cents"`
	UploadsToday      int64            `json:"uploads_today"`
	TotalUsers        int64            `json:"total_users"`
	OutboxUndelivered int64            `json:"outbox_undelivered"`
	GeneratedAt       time.Time        `json:"generated_at"`
}

// Cache is the slice of the cache package the service needs.
type Cache interface {
	Get(key string) (string, error)
	Set(key string, value interface{}, expiration time.Duration) error
}

type redisCache struct{}

func (redisCache) Get(key string) (string, error) { return cache.Get(key) }
func (redisCache) Set(key string, value interface{}, expiration time.Duration) error {
	return cache.Set(key, value, expiration)
}

// RedisCache is the shared cache client.
var RedisCache Cache = redisCache{}

// Service computes dashboard figures and keeps the last result in the cache.
type Service struct {
	db    *gorm.DB
	cache Cache
	now   func() time.Time

	mu sync.Mutex
}

// NewService builds the service. A nil cache computes on every call.
func NewService(db *gorm.DB, c Cache) *Service {
	return &Service{db: db, cache: c, now: func() time.Time { return time.Now().UTC() }}
}

// Dashboard returns cached figures when fresh, otherwise recomputes them.
func (s *Service) Dashboard(ctx context.Context) (*Dashboard, error) {
	if d := s.cached(); d != nil {
		return d, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if d := s.cached(); d != nil {
		return d, nil
	}

	d, err := s.Compute(ctx)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		raw, err := json.Marshal(d)
		if err == nil {
			err = s.cache.Set(CacheKeyDashboard, raw, CacheExpiration)
		}
		if err != nil {
			log.Warnf("[Statistics] Failed to cache dashboard: %v", err)
		}
	}
	return d, nil
}

func (s *Service) cached() *Dashboard {
	if s.cache == nil {
		return nil
	}
	val, err := s.cache.Get(CacheKeyDashboard)
	if err != nil || val == "" {
		return nil
	}
	var d Dashboard
	if err := json.Unmarshal([]byte(val), &d); err != nil {
		return nil
	}
	return &d
}

// Compute reads every figure straight from the database.
func (s *Service) Compute(ctx context.Context) (*Dashboard, error) {
	db := s.db.WithContext(ctx)
	now := s.now()
	todayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	d := &Dashboard{GeneratedAt: now}
	var err error

	if d.DocumentsByStatus, err = countByStatus(db.Model(&models.Document{})); err != nil {
		return nil, fmt.Errorf("count documents: %w", err)
	}
	if d.PaymentsByStatus, err = countByStatus(db.Model(&models.Payment{})); err != nil {
		return nil, fmt.Errorf("count payments: %w", err)
	}
	for _, st := range models.PendingPaymentStatuses {
		d.PendingPayments += d.PaymentsByStatus[st]
	}

	if err := db.Model(&models.VerificationRecord{}).Where("status = ?", models.VERIFICATION_STATUS_PENDING).
		Count(&d.PendingAuth).Error; err != nil {
		return nil, fmt.Errorf("count verification records: %w", err)
	}

	if d.RevenueTotalCents, err = revenue(db, time.Time{}); err != nil {
		return nil, fmt.Errorf("sum revenue: %w", err)
	}
	if d.RevenueTodayCents, err = revenue(db, todayStart); err != nil {
		return nil, fmt.Errorf("sum revenue today: %w", err)
	}

	if err := db.Model(&models.Document{}).Where("created_at >= ?", todayStart).Count(&d.UploadsToday).Error; err != nil {
		return nil, fmt.Errorf("count uploads today: %w", err)
	}
	if err := db.Model(&models.User{}).Count(&d.TotalUsers).Error; err != nil {
		return nil, fmt.Errorf("count users: %w", err)
	}
	if err := db.Model(&models.OutboxMessage{}).Where("status <> ?", models.OUTBOX_STATUS_DELIVERED).
		Count(&d.OutboxUndelivered).Error; err != nil {
		return nil, fmt.Errorf("count outbox: %w", err)
	}

	log.Infof("[Statistics] Dashboard computed: %d pending payments, %d pending authentications", d.PendingPayments, d.PendingAuth)
	return d, nil
}

func countByStatus(q *gorm.DB) (map[string]int64, error) {
	var rows []struct {
		Status string
		Total  int64
	}
	if err := q.Select("status, COUNT(*) AS total").Group("status").Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.Status] = r.Total
	}
	return out, nil
}

// revenue sums completed payments, optionally only those verified since.
func revenue(db *gorm.DB, since time.Time) (int64, error) {
	q := db.Model(&models.Payment{}).Where("status = ?", models.PAYMENT_STATUS_COMPLETED)
	if !since.IsZero() {
		q = q.Where("verified_at >= ?", since)
	}
	var total int64
	err := q.Select("COALESCE(SUM(amount_cents), 0)").Scan(&total).Error
	return total, err
}
