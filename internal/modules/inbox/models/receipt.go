package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/MuhamadAgungGumelar/omnichannel-inbox-be/internal/core/channel"
)

// PendingReceipt is a delivery receipt that arrived before the outbound
// message it refers to was stored with its platform message id. It is
// applied when the send is recorded and purged after a short hold.
type PendingReceipt struct {
	ID                uuid.UUID              `gorm:"type:uuid;primaryKey" json:"id"`
	PlatformID        uuid.UUID              `gorm:"type:uuid;not null;uniqueIndex:idx_pending_receipts_key,priority:1" json:"platform_id"`
	PlatformMessageID string                 `gorm:"type:varchar(191);not null;uniqueIndex:idx_pending_receipts_key,priority:2" json:"platform_message_id"`
	Status            channel.DeliveryStatus `gorm:"type:varchar(16);not null;uniqueIndex:idx_pending_receipts_key,priority:3" json:"status"`
	Reason            string                 `gorm:"type:text" json:"reason,omitempty"`
	ReceivedAt        time.Time              `gorm:"not null;index" json:"received_at"`
}

func (PendingReceipt) TableName() string {
	return "pending_receipts"
}

func (r *PendingReceipt) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
