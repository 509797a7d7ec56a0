package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/MuhamadAgungGumelar/omnichannel-inbox-be/internal/core/channel"
	"github.com/MuhamadAgungGumelar/omnichannel-inbox-be/internal/modules/inbox/models"
)

// TokenUpdate replaces the stored token of a platform
type TokenUpdate struct {
	AccessToken string
	ExpiresAt   *time.Time
	Name        string
	Credentials datatypes.JSON
}

// PlatformRepo is the credential store. Active is only ever changed
// through the compare-and-set methods Activate and Deactivate.
type PlatformRepo interface {
	Create(ctx context.Context, p *models.Platform) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Platform, error)
	GetForTenant(ctx context.Context, tenantID, id uuid.UUID) (*models.Platform, error)
	FindActiveByExternal(ctx context.Context, typ channel.Type, externalID string) (*models.Platform, error)
	FindByTenantExternal(ctx context.Context, tenantID uuid.UUID, typ channel.Type, externalID string) (*models.Platform, error)
	ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]models.Platform, error)
	ListActive(ctx context.Context) ([]models.Platform, error)
	Activate(ctx context.Context, id uuid.UUID, update TokenUpdate) (bool, error)
	Deactivate(ctx context.Context, id uuid.UUID, reason models.DeactivationReason, at time.Time) (bool, error)
	UpdateToken(ctx context.Context, id uuid.UUID, update TokenUpdate) error
	UpdateCredentials(ctx context.Context, id uuid.UUID, creds datatypes.JSON) error
}

type platformRepo struct {
	db *gorm.DB
}

func NewPlatformRepo(db *gorm.DB) PlatformRepo {
	return &platformRepo{db: db}
}

func (r *platformRepo) Create(ctx context.Context, p *models.Platform) error {
	return translate(r.db.WithContext(ctx).Create(p).Error)
}

func (r *platformRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Platform, error) {
	var p models.Platform
	if err := r.db.WithContext(ctx).Where("id = ?", id).Take(&p).Error; err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (r *platformRepo) GetForTenant(ctx context.Context, tenantID, id uuid.UUID) (*models.Platform, error) {
	var p models.Platform
	if err := r.db.WithContext(ctx).Where("id = ? AND tenant_id = ?", id, tenantID).Take(&p).Error; err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (r *platformRepo) FindActiveByExternal(ctx context.Context, typ channel.Type, externalID string) (*models.Platform, error) {
	var p models.Platform
	err := r.db.WithContext(ctx).
		Where("type = ? AND external_id = ? AND active = ?", typ, externalID, true).
		Take(&p).Error
	if err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (r *platformRepo) FindByTenantExternal(ctx context.Context, tenantID uuid.UUID, typ channel.Type, externalID string) (*models.Platform, error) {
	var p models.Platform
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND type = ? AND external_id = ?", tenantID, typ, externalID).
		Take(&p).Error
	if err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (r *platformRepo) ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]models.Platform, error) {
	var platforms []models.Platform
	err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("created_at ASC").
		Find(&platforms).Error
	return platforms, err
}

func (r *platformRepo) ListActive(ctx context.Context) ([]models.Platform, error) {
	var platforms []models.Platform
	err := r.db.WithContext(ctx).Where("active = ?", true).Find(&platforms).Error
	return platforms, err
}

func (r *platformRepo) Activate(ctx context.Context, id uuid.UUID, update TokenUpdate) (bool, error) {
	fields := tokenFields(update)
	fields["active"] = true
	fields["deactivated_at"] = nil
	fields["deactivation_reason"] = ""

	res := r.db.WithContext(ctx).Model(&models.Platform{}).
		Where("id = ? AND active = ?", id, false).
		Updates(fields)
	if res.Error != nil {
		return false, translate(res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *platformRepo) Deactivate(ctx context.Context, id uuid.UUID, reason models.DeactivationReason, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Platform{}).
		Where("id = ? AND active = ?", id, true).
		Updates(map[string]interface{}{
			"active":              false,
			"deactivated_at":      at,
			"deactivation_reason": reason,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *platformRepo) UpdateToken(ctx context.Context, id uuid.UUID, update TokenUpdate) error {
	return translate(r.db.WithContext(ctx).Model(&models.Platform{}).
		Where("id = ?", id).
		Updates(tokenFields(update)).Error)
}

func (r *platformRepo) UpdateCredentials(ctx context.Context, id uuid.UUID, creds datatypes.JSON) error {
	return r.db.WithContext(ctx).Model(&models.Platform{}).
		Where("id = ?", id).
		Update("credentials", creds).Error
}

func tokenFields(update TokenUpdate) map[string]interface{} {
	fields := map[string]interface{}{
		"access_token":     update.AccessToken,
		"token_expires_at": update.ExpiresAt,
	}
	if update.Name != "" {
		fields["name"] = update.Name
	}
	if update.Credentials != nil {
		fields["credentials"] = update.Credentials
	}
	return fields
}
