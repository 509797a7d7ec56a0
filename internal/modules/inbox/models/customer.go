package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Customer is an end user identified by a platform-scoped id (PSID, IGSID
// or WhatsApp number). Customers outlive their Platform's deactivation.
type Customer struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	TenantID    uuid.UUID      `gorm:"type:uuid;not null;index" json:"tenant_id"`
	PlatformID  uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:idx_customers_platform_external,priority:1" json:"platform_id"`
	ExternalID  string         `gorm:"type:varchar(128);not null;uniqueIndex:idx_customers_platform_external,priority:2" json:"external_id"`
	DisplayName string         `gorm:"type:text" json:"display_name"`
	Profile     datatypes.JSON `json:"profile,omitempty"`
	CreatedAt   time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Customer) TableName() string {
	return "customers"
}

func (c *Customer) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
