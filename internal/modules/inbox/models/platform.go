package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/MuhamadAgungGumelar/omnichannel-inbox-be/internal/core/channel"
)

type DeactivationReason string

const (
	ReasonTokenExpired DeactivationReason = "token_expired"
	ReasonTokenRevoked DeactivationReason = "token_revoked"
)

// Platform is a tenant's connection to one business account on one
// channel. At most one active Platform may exist per (type, external id)
// across all tenants.
type Platform struct {
	ID                 uuid.UUID          `gorm:"type:uuid;primaryKey" json:"id"`
	TenantID           uuid.UUID          `gorm:"type:uuid;not null;uniqueIndex:idx_platforms_tenant_type_external,priority:1" json:"tenant_id"`
	Type               channel.Type       `gorm:"type:varchar(20);not null;uniqueIndex:idx_platforms_tenant_type_external,priority:2;uniqueIndex:idx_platforms_active_external,priority:1,where:active = true" json:"type"`
	ExternalID         string             `gorm:"type:varchar(64);not null;uniqueIndex:idx_platforms_tenant_type_external,priority:3;uniqueIndex:idx_platforms_active_external,priority:2,where:active = true" json:"external_id"`
	Name               string             `gorm:"type:text" json:"name"`
	AccessToken        string             `gorm:"type:text;not null" json:"-"`
	TokenExpiresAt     *time.Time         `json:"token_expires_at,omitempty"`
	Credentials        datatypes.JSON     `json:"credentials,omitempty"`
	Active             bool               `gorm:"not null;default:false;index" json:"active"`
	DeactivatedAt      *time.Time         `json:"deactivated_at,omitempty"`
	DeactivationReason DeactivationReason `gorm:"type:varchar(32)" json:"deactivation_reason,omitempty"`
	CreatedAt          time.Time          `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time          `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Platform) TableName() string {
	return "platforms"
}

func (p *Platform) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// ChannelCredentials is what the Graph client needs to act for this platform
func (p *Platform) ChannelCredentials() channel.Credentials {
	return channel.Credentials{
		Channel:     p.Type,
		ExternalID:  p.ExternalID,
		AccessToken: p.AccessToken,
	}
}

// CredentialAttributes decodes the Credentials JSON into a flat map.
func (p *Platform) CredentialAttributes() map[string]string {
	out := map[string]string{}
	if len(p.Credentials) == 0 {
		return out
	}
	var raw map[string]interface{}
	if err := json.Unmarshal(p.Credentials, &raw); err != nil {
		return out
	}
	for k, v := range raw {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out
}

// MergeCredentials returns Credentials with attrs applied and whether
// anything changed. Empty values never overwrite stored ones.
func MergeCredentials(current datatypes.JSON, attrs map[string]string) (datatypes.JSON, bool, error) {
	merged := map[string]interface{}{}
	if len(current) > 0 {
		if err := json.Unmarshal(current, &merged); err != nil {
			return nil, false, err
		}
	}

	changed := false
	for k, v := range attrs {
		if v == "" {
			continue
		}
		if existing, ok := merged[k].(string); ok && existing == v {
			continue
		}
		merged[k] = v
		changed = true
	}
	if !changed {
		return current, false, nil
	}

	b, err := json.Marshal(merged)
	if err != nil {
		return nil, false, err
	}
	return datatypes.JSON(b), true, nil
}
