package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ConversationStatus string

const (
	ConversationOpen    ConversationStatus = "open"
	ConversationPending ConversationStatus = "pending"
	ConversationClosed  ConversationStatus = "closed"
)

func ParseConversationStatus(s string) (ConversationStatus, error) {
	switch st := ConversationStatus(s); st {
	case ConversationOpen, ConversationPending, ConversationClosed:
		return st, nil
	}
	return "", fmt.Errorf("invalid conversation status %q", s)
}

// Conversation is the thread between one Customer and one Platform.
type Conversation struct {
	ID             uuid.UUID          `gorm:"type:uuid;primaryKey" json:"id"`
	TenantID       uuid.UUID          `gorm:"type:uuid;not null;index:idx_conversations_tenant_activity,priority:1" json:"tenant_id"`
	PlatformID     uuid.UUID          `gorm:"type:uuid;not null;uniqueIndex:idx_conversations_platform_customer,priority:1" json:"platform_id"`
	CustomerID     uuid.UUID          `gorm:"type:uuid;not null;uniqueIndex:idx_conversations_platform_customer,priority:2" json:"customer_id"`
	Status         ConversationStatus `gorm:"type:varchar(16);not null;default:'open'" json:"status"`
	LastActivityAt *time.Time         `gorm:"index:idx_conversations_tenant_activity,priority:2" json:"last_activity_at,omitempty"`
	CreatedAt      time.Time          `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time          `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Conversation) TableName() string {
	return "conversations"
}

func (c *Conversation) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
