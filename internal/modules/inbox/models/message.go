package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/MuhamadAgungGumelar/omnichannel-inbox-be/internal/core/channel"
)

type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// Message is one item of a conversation's history. PlatformMessageID is
// unique per platform and is the idempotency key for webhook redelivery;
// it is NULL until an outbound message is accepted.
type Message struct {
	ID                       uuid.UUID              `gorm:"type:uuid;primaryKey" json:"id"`
	TenantID                 uuid.UUID              `gorm:"type:uuid;not null;index" json:"tenant_id"`
	ConversationID           uuid.UUID              `gorm:"type:uuid;not null;index:idx_messages_conversation_order,priority:1" json:"conversation_id"`
	PlatformID               uuid.UUID              `gorm:"type:uuid;not null;uniqueIndex:idx_messages_platform_mid,priority:1" json:"platform_id"`
	Direction                Direction              `gorm:"type:varchar(10);not null" json:"direction"`
	PlatformMessageID        *string                `gorm:"type:varchar(191);uniqueIndex:idx_messages_platform_mid,priority:2" json:"platform_message_id,omitempty"`
	ContentType              channel.ContentType    `gorm:"type:varchar(16);not null" json:"content_type"`
	Text                     string                 `gorm:"type:text" json:"text,omitempty"`
	MediaURL                 string                 `gorm:"type:text" json:"media_url,omitempty"`
	MediaID                  string                 `gorm:"type:text" json:"media_id,omitempty"`
	MimeType                 string                 `gorm:"type:varchar(128)" json:"mime_type,omitempty"`
	ReplyToPlatformMessageID string                 `gorm:"type:varchar(191)" json:"reply_to_platform_message_id,omitempty"`
	Status                   channel.DeliveryStatus `gorm:"type:varchar(16);not null" json:"status"`
	FailureReason            string                 `gorm:"type:text" json:"failure_reason,omitempty"`
	NeedsReconciliation      bool                   `gorm:"not null;default:false" json:"needs_reconciliation"`
	OccurredAt               time.Time              `gorm:"not null;index:idx_messages_conversation_order,priority:2" json:"occurred_at"`
	CreatedAt                time.Time              `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt                time.Time              `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Message) TableName() string {
	return "messages"
}

func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

// Content rebuilds the channel payload of the message
func (m *Message) Content() channel.Content {
	return channel.Content{
		Type:     m.ContentType,
		Text:     m.Text,
		MediaID:  m.MediaID,
		MediaURL: m.MediaURL,
		MimeType: m.MimeType,
		ReplyTo:  m.ReplyToPlatformMessageID,
	}
}
