package notify

import (
	"encoding/json"
	"fmt"

	"gorm.io/datatypes"

	"github.com/ManuelReschke/TranslaFox/app/models"
	"github.com/ManuelReschke/TranslaFox/app/repository"
)

// Enqueue stores an outbound message. Pass repositories bound to the business
// transaction so the message commits or rolls back together with it.
func Enqueue(outbox repository.OutboxRepository, family, eventType string, payload any, entityType string, entityID uint) (*models.OutboxMessage, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", eventType, err)
	}
	msg := &models.OutboxMessage{
		Family:     family,
		EventType:  eventType,
		Payload:    datatypes.JSON(raw),
		Status:     models.OUTBOX_STATUS_PENDING,
		EntityType: entityType,
		EntityID:   entityID,
	}
	if err := outbox.Create(msg); err != nil {
		return nil, fmt.Errorf("store outbox message: %w", err)
	}
	return msg, nil
}

// Ref names the entity a notification is about.
type Ref struct {
	Type string
	ID   uint
}

func DocumentRef(id uint) Ref { return Ref{Type: models.ENTITY_DOCUMENT, ID: id} }

func PaymentRef(id uint) Ref { return Ref{Type: models.ENTITY_PAYMENT, ID: id} }

// NotifyUser records an in-app notification for user and queues the matching
// external event. ev is completed with the user's contact fields.
func NotifyUser(repos *repository.Repositories, family string, user *models.User, ev Event, ref Ref) error {
	ev.UserID = user.ID
	ev.UserName = user.Name
	ev.UserEmail = user.Email
	ev.UserPhone = user.Phone
	ev.UserRole = user.Role

	if err := repos.Notification.Create(&models.Notification{
		UserID:      user.ID,
		Type:        ev.NotificationType,
		Title:       ev.Title,
		Content:     ev.Message,
		ReferenceID: ref.ID,
	}); err != nil {
		return fmt.Errorf("store notification: %w", err)
	}

	_, err := Enqueue(repos.Outbox, family, ev.NotificationType, ev, ref.Type, ref.ID)
	return err
}

// NotifyRole fans ev out to every active user holding one of roles.
func NotifyRole(repos *repository.Repositories, family string, ev Event, ref Ref, roles ...string) (int, error) {
	users, err := repos.User.ListByRole(roles...)
	if err != nil {
		return 0, fmt.Errorf("list %v users: %w", roles, err)
	}
	for i := range users {
		if err := NotifyUser(repos, family, &users[i], ev, ref); err != nil {
			return i, err
		}
	}
	return len(users), nil
}
