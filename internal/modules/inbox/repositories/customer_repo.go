package repositories

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/MuhamadAgungGumelar/omnichannel-inbox-be/internal/modules/inbox/models"
)

type CustomerRepo interface {
	// Upsert inserts c unless (platform_id, external_id) exists and returns
	// the stored row. created is false when another writer got there first.
	Upsert(ctx context.Context, c *models.Customer) (stored *models.Customer, created bool, err error)
	GetByID(ctx context.Context, tenantID, id uuid.UUID) (*models.Customer, error)
	GetByExternal(ctx context.Context, platformID uuid.UUID, externalID string) (*models.Customer, error)
	UpdateDisplayName(ctx context.Context, id uuid.UUID, name string) error
}

type customerRepo struct {
	db *gorm.DB
}

func NewCustomerRepo(db *gorm.DB) CustomerRepo {
	return &customerRepo{db: db}
}

func (r *customerRepo) Upsert(ctx context.Context, c *models.Customer) (*models.Customer, bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "platform_id"}, {Name: "external_id"}},
			DoNothing: true,
		}).
		Create(c)
	if res.Error != nil {
		return nil, false, translate(res.Error)
	}

	stored, err := r.GetByExternal(ctx, c.PlatformID, c.ExternalID)
	if err != nil {
		return nil, false, err
	}
	return stored, res.RowsAffected > 0, nil
}

func (r *customerRepo) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*models.Customer, error) {
	var c models.Customer
	if err := r.db.WithContext(ctx).Where("id = ? AND tenant_id = ?", id, tenantID).Take(&c).Error; err != nil {
		return nil, translate(err)
	}
	return &c, nil
}

func (r *customerRepo) GetByExternal(ctx context.Context, platformID uuid.UUID, externalID string) (*models.Customer, error) {
	var c models.Customer
	err := r.db.WithContext(ctx).
		Where("platform_id = ? AND external_id = ?", platformID, externalID).
		Take(&c).Error
	if err != nil {
		return nil, translate(err)
	}
	return &c, nil
}

func (r *customerRepo) UpdateDisplayName(ctx context.Context, id uuid.UUID, name string) error {
	return r.db.WithContext(ctx).Model(&models.Customer{}).
		Where("id = ?", id).
		Update("display_name", name).Error
}
