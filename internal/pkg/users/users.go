package users

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/ManuelReschke/TranslaFox/app/models"
	"github.com/ManuelReschke/TranslaFox/app/repository"
)

var (
	ErrInvalidRole   = errors.New("unknown role")
	ErrSelfDemotion  = errors.New("admins cannot remove their own admin role")
	ErrUserDisabled  = errors.New("user is disabled")
	ErrRoleUnchanged = errors.New("user already has this role")
)

// Service holds the admin operations on profiles and the audit trail.
type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// ListUsers returns one page of users; role narrows the listing when set.
func (s *Service) ListUsers(ctx context.Context, role string, offset, limit int) ([]models.User, int64, error) {
	repos := repository.NewRepositories(s.db.WithContext(ctx))
	if role != "" {
		if !models.IsValidRole(role) {
			return nil, 0, ErrInvalidRole
		}
		list, err := repos.User.ListByRole(role)
		return list, int64(len(list)), err
	}
	list, err := repos.User.List(offset, limit)
	if err != nil {
		return nil, 0, err
	}
	total, err := repos.User.Count()
	return list, total, err
}

// ChangeRole assigns role to the user and audits the change.
func (s *Service) ChangeRole(ctx context.Context, actorID, userID uint, role string) (*models.User, error) {
	if !models.IsValidRole(role) {
		return nil, ErrInvalidRole
	}
	if actorID == userID && role != models.ROLE_ADMIN {
		return nil, ErrSelfDemotion
	}

	var updated *models.User
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repos := repository.NewRepositories(tx)
		user, err := repos.User.GetByID(userID)
		if err != nil {
			return err
		}
		if user.Role == role {
			return ErrRoleUnchanged
		}
		previous := user.Role
		if err := repos.User.UpdateRole(user.ID, role); err != nil {
			return err
		}

		actor := actorID
		entry := models.NewActionLog(&actor, models.ACTION_ROLE_CHANGED,
			fmt.Sprintf("Role of %s changed from %s to %s", user.Email, previous, role), models.ENTITY_PROFILE, user.ID, &user.ID,
			map[string]any{"previous_role": previous, "new_role": role})
		if err := repos.ActionLog.Create(&entry); err != nil {
			return fmt.Errorf("write action log: %w", err)
		}

		updated, err = repos.User.GetByID(user.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	log.Infof("[Users] User %d changed role of user %d to %s", actorID, userID, role)
	return updated, nil
}

// IssueAPIKey rotates the user's API key. The raw key is returned once and
// only its hash is stored.
func (s *Service) IssueAPIKey(ctx context.Context, actorID, userID uint) (string, *models.User, error) {
	var raw string
	var user *models.User
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repos := repository.NewRepositories(tx)
		var err error
		user, err = repos.User.GetByID(userID)
		if err != nil {
			return err
		}
		if !user.IsActive() {
			return ErrUserDisabled
		}
		rotated := user.HasActiveAPIKey()
		raw, err = user.IssueAPIKey()
		if err != nil {
			return err
		}
		if err := repos.User.Update(user); err != nil {
			return err
		}

		actor := actorID
		entry := models.NewActionLog(&actor, models.ACTION_API_KEY_ISSUED,
			fmt.Sprintf("API key issued for %s", user.Email), models.ENTITY_PROFILE, user.ID, &user.ID,
			map[string]any{"prefix": user.APIKeyPrefix, "rotated": rotated})
		return repos.ActionLog.Create(&entry)
	})
	if err != nil {
		return "", nil, err
	}
	log.Infof("[Users] API key %s issued for user %d", user.APIKeyPrefix, user.ID)
	return raw, user, nil
}

// Authenticate resolves a raw API key to its active user and records the use.
func (s *Service) Authenticate(ctx context.Context, rawKey string) (*models.User, error) {
	repos := repository.NewRepositories(s.db.WithContext(ctx))
	user, err := repos.User.GetByAPIKeyHash(models.HashAPIKey(rawKey))
	if err != nil {
		return nil, err
	}
	if err := repos.User.TouchAPIKeyUsage(user.ID, time.Now().UTC()); err != nil {
		log.Warnf("[Users] Failed to record API key usage for user %d: %v", user.ID, err)
	}
	return user, nil
}

func (s *Service) ListActionLogs(ctx context.Context, filter repository.ActionLogFilter) ([]models.ActionLog, int64, error) {
	return repository.NewRepositories(s.db.WithContext(ctx)).ActionLog.List(filter)
}

// OutboxReport is the delivery overview shown to admins.
type OutboxReport struct {
	Counts   map[string]int64       `json:"counts"`
	Messages []models.OutboxMessage `json:"messages"`
	Total    int64                  `json:"total"`
}

func (s *Service) OutboxStatus(ctx context.Context, status string, offset, limit int) (*OutboxReport, error) {
	repos := repository.NewRepositories(s.db.WithContext(ctx))
	counts, err := repos.Outbox.CountByStatus()
	if err != nil {
		return nil, err
	}
	msgs, total, err := repos.Outbox.List(status, offset, limit)
	if err != nil {
		return nil, err
	}
	return &OutboxReport{Counts: counts, Messages: msgs, Total: total}, nil
}

func (s *Service) ListNotifications(ctx context.Context, userID uint, unreadOnly bool, offset, limit int) ([]models.Notification, error) {
	return repository.NewRepositories(s.db.WithContext(ctx)).Notification.ListByUser(userID, unreadOnly, offset, limit)
}

// MarkNotificationRead returns gorm.ErrRecordNotFound for notifications of other users.
func (s *Service) MarkNotificationRead(ctx context.Context, id, userID uint) error {
	ok, err := repository.NewRepositories(s.db.WithContext(ctx)).Notification.MarkRead(id, userID)
	if err != nil {
		return err
	}
	if !ok {
		return gorm.ErrRecordNotFound
	}
	return nil
}
