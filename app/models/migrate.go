package models

import "gorm.io/gorm"

// AllModels lists every persisted type in dependency order.
func AllModels() []any {
	return []any{
		&User{},
		&Folder{},
		&Document{},
		&Payment{},
		&VerificationRecord{},
		&TranslatedOutput{},
		&ActionLog{},
		&Notification{},
		&OutboxMessage{},
		&WebhookEvent{},
	}
}

func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(AllModels()...)
}
