package audit

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	ActionWebhookRejected     = "webhook_rejected"
	ActionPlatformConnected   = "platform_connected"
	ActionPlatformDeactivated = "platform_deactivated"
	ActionConversationStatus  = "conversation_status_changed"
)

// AuditLog represents a system audit log entry
type AuditLog struct {
	ID uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`

	// Context. TenantID is nil for events that could not be attributed
	// (e.g. a webhook with a bad signature).
	TenantID *uuid.UUID `json:"tenant_id,omitempty" gorm:"type:uuid;index"`
	Actor    string     `json:"actor" gorm:"type:text"` // system, webhook, user id

	// Action details
	Action   string `json:"action" gorm:"type:text;not null;index"`
	Entity   string `json:"entity" gorm:"type:text;not null;index"` // platform, conversation, webhook
	EntityID string `json:"entity_id" gorm:"type:text;index"`

	// Request metadata
	IPAddress string `json:"ip_address,omitempty" gorm:"type:text"`

	Description string         `json:"description,omitempty" gorm:"type:text"`
	Metadata    datatypes.JSON `json:"metadata,omitempty"`

	CreatedAt time.Time `json:"created_at" gorm:"index"`
}

// TableName specifies the table name
func (AuditLog) TableName() string {
	return "audit_logs"
}

func (a *AuditLog) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

// Entry is the input of Service.Record
type Entry struct {
	TenantID    *uuid.UUID
	Actor       string
	Action      string
	Entity      string
	EntityID    string
	IPAddress   string
	Description string
	Metadata    map[string]interface{}
}

// AuditFilter represents filters for querying audit logs
type AuditFilter struct {
	TenantID  uuid.UUID
	Action    string
	Entity    string
	EntityID  string
	StartDate *time.Time
	EndDate   *time.Time
	Page      int
	PageSize  int
}

// AuditLogResponse represents paginated audit log response
type AuditLogResponse struct {
	Logs       []AuditLog `json:"logs"`
	TotalCount int64      `json:"total_count"`
	Page       int        `json:"page"`
	PageSize   int        `json:"page_size"`
	TotalPages int        `json:"total_pages"`
}
