// Package models holds the gorm models of the inbox.
package models

// All lists every inbox model, for AutoMigrate on embedded databases.
// PostgreSQL schemas come from migrations/inbox.
func All() []interface{} {
	return []interface{}{
		&Platform{},
		&Customer{},
		&Conversation{},
		&Message{},
		&PendingReceipt{},
	}
}
