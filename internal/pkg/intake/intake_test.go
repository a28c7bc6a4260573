package intake

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/TranslaFox/app/models"
	"github.com/ManuelReschke/TranslaFox/app/repository"
	"github.com/ManuelReschke/TranslaFox/internal/pkg/database"
)

func TestBuildComputesPrice(t *testing.T) {
	doc := &models.Document{
		ID:               4,
		OwnerID:          2,
		Filename:         "extrato.pdf",
		FileURL:          "https://files.example.com/documents/2/x.pdf",
		PageCount:        3,
		TranslationType:  models.TRANSLATION_NOTARIZED,
		IsBankStatement:  true,
		CostCents:        1,
		SourceLanguage:   "Portuguese",
		TargetLanguage:   "English",
		VerificationCode: "ABCD1234",
	}
	p := Build(doc, &models.User{Name: "Ana", Email: "ana@example.com"}, 11)

	assert.Equal(t, 70, p.TotalCost)
	assert.Equal(t, "Notorizado", p.DocumentType)
	assert.Equal(t, uint(2), p.UserID)
	assert.Equal(t, uint(11), p.PaymentID)
	assert.Equal(t, "ana@example.com", p.UserEmail)
}

func TestSubmitQueuesIntakeMessage(t *testing.T) {
	db, err := database.OpenSQLite(":memory:")
	require.NoError(t, err)
	repos := repository.NewRepositories(db)

	doc := &models.Document{ID: 9, OwnerID: 1, Filename: "a.pdf", PageCount: 2, TranslationType: models.TRANSLATION_CERTIFIED}
	msg, err := Submit(repos.Outbox, doc, nil, 0)
	require.NoError(t, err)

	assert.Equal(t, models.OUTBOX_FAMILY_INTAKE, msg.Family)
	assert.Equal(t, uint(9), msg.EntityID)

	var p Payload
	require.NoError(t, json.Unmarshal(msg.Payload, &p))
	assert.Equal(t, 30, p.TotalCost)
	assert.Equal(t, "a.pdf", p.Filename)
}
