package users

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ManuelReschke/TranslaFox/app/models"
	"github.com/ManuelReschke/TranslaFox/app/repository"
	"github.com/ManuelReschke/TranslaFox/internal/pkg/database"
	"github.com/ManuelReschke/TranslaFox/internal/pkg/notify"
)

func setup(t *testing.T) (*Service, *repository.Repositories, *models.User, *models.User) {
	t.Helper()
	db, err := database.OpenSQLite(":memory:")
	require.NoError(t, err)
	repos := repository.NewRepositories(db)
	admin := &models.User{Name: "Admin", Email: "admin@example.com", Role: models.ROLE_ADMIN, Status: models.STATUS_ACTIVE}
	customer := &models.User{Name: "Ana", Email: "ana@example.com", Role: models.ROLE_CUSTOMER, Status: models.STATUS_ACTIVE}
	require.NoError(t, repos.User.Create(admin))
	require.NoError(t, repos.User.Create(customer))
	return NewService(db), repos, admin, customer
}

func TestChangeRole(t *testing.T) {
	svc, repos, admin, customer := setup(t)
	ctx := context.Background()

	_, err := svc.ChangeRole(ctx, admin.ID, customer.ID, "superuser")
	assert.ErrorIs(t, err, ErrInvalidRole)
	_, err = svc.ChangeRole(ctx, admin.ID, admin.ID, models.ROLE_CUSTOMER)
	assert.ErrorIs(t, err, ErrSelfDemotion)
	_, err = svc.ChangeRole(ctx, admin.ID, 999, models.ROLE_FINANCE)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	updated, err := svc.ChangeRole(ctx, admin.ID, customer.ID, models.ROLE_AUTHENTICATOR)
	require.NoError(t, err)
	assert.Equal(t, models.ROLE_AUTHENTICATOR, updated.Role)

	_, err = svc.ChangeRole(ctx, admin.ID, customer.ID, models.ROLE_AUTHENTICATOR)
	assert.ErrorIs(t, err, ErrRoleUnchanged)

	logs, total, err := svc.ListActionLogs(ctx, repository.ActionLogFilter{EntityType: "profile", EntityID: customer.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, models.ACTION_ROLE_CHANGED, logs[0].ActionType)
	assert.Equal(t, models.ROLE_CUSTOMER, logs[0].MetadataMap()["previous_role"])

	auths, err := repos.User.ListByRole(models.ROLE_AUTHENTICATOR)
	require.NoError(t, err)
	assert.Len(t, auths, 1)
}

func TestIssueAPIKeyAndAuthenticate(t *testing.T) {
	svc, _, admin, customer := setup(t)
	ctx := context.Background()

	first, _, err := svc.IssueAPIKey(ctx, admin.ID, customer.ID)
	require.NoError(t, err)
	assert.True(t, len(first) > 20)

	user, err := svc.Authenticate(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, customer.ID, user.ID)

	second, stored, err := svc.IssueAPIKey(ctx, admin.ID, customer.ID)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
	assert.Equal(t, second[:16], stored.APIKeyPrefix)

	_, err = svc.Authenticate(ctx, first)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound, "rotated key stops working")

	logs, _, err := svc.ListActionLogs(ctx, repository.ActionLogFilter{ActionType: models.ACTION_API_KEY_ISSUED})
	require.NoError(t, err)
	require.Len(t, logs, 2)
}

func TestListUsers(t *testing.T) {
	svc, _, _, _ := setup(t)
	ctx := context.Background()

	all, total, err := svc.ListUsers(ctx, "", 0, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, all, 2)

	admins, _, err := svc.ListUsers(ctx, models.ROLE_ADMIN, 0, 10)
	require.NoError(t, err)
	assert.Len(t, admins, 1)

	_, _, err = svc.ListUsers(ctx, "root", 0, 10)
	assert.ErrorIs(t, err, ErrInvalidRole)
}

func TestNotificationsAndOutboxReport(t *testing.T) {
	svc, repos, admin, customer := setup(t)
	ctx := context.Background()

	require.NoError(t, notify.NotifyUser(repos, models.OUTBOX_FAMILY_NOTIFICATION, customer, notify.Event{
		NotificationType: models.NOTIFICATION_DOCUMENT_AUTHENTICATED, Title: "Ready", Message: "done",
	}, notify.DocumentRef(1)))

	list, err := svc.ListNotifications(ctx, customer.ID, true, 0, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)

	assert.ErrorIs(t, svc.MarkNotificationRead(ctx, list[0].ID, admin.ID), gorm.ErrRecordNotFound)
	require.NoError(t, svc.MarkNotificationRead(ctx, list[0].ID, customer.ID))
	require.NoError(t, svc.MarkNotificationRead(ctx, list[0].ID, customer.ID), "marking twice is fine")

	unread, err := svc.ListNotifications(ctx, customer.ID, true, 0, 10)
	require.NoError(t, err)
	assert.Empty(t, unread)

	report, err := svc.OutboxStatus(ctx, "", 0, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), report.Total)
	assert.Equal(t, int64(1), report.Counts[models.OUTBOX_STATUS_PENDING])
}
