package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/MuhamadAgungGumelar/omnichannel-inbox-be/internal/modules/inbox/models"
)

type ConversationFilter struct {
	TenantID   uuid.UUID
	PlatformID *uuid.UUID
	Status     models.ConversationStatus
	Limit      int
	Offset     int
}

type ConversationRepo interface {
	Upsert(ctx context.Context, c *models.Conversation) (stored *models.Conversation, created bool, err error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Conversation, error)
	GetForTenant(ctx context.Context, tenantID, id uuid.UUID) (*models.Conversation, error)
	GetByCustomer(ctx context.Context, platformID, customerID uuid.UUID) (*models.Conversation, error)
	List(ctx context.Context, filter ConversationFilter) ([]models.Conversation, error)
	UpdateStatus(ctx context.Context, tenantID, id uuid.UUID, status models.ConversationStatus) (*models.Conversation, error)
	// Reopen moves a closed conversation back to open
	Reopen(ctx context.Context, id uuid.UUID) (bool, error)
	// TouchActivity advances last_activity_at; it never moves backwards.
	TouchActivity(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
}

type conversationRepo struct {
	db *gorm.DB
}

func NewConversationRepo(db *gorm.DB) ConversationRepo {
	return &conversationRepo{db: db}
}

func (r *conversationRepo) Upsert(ctx context.Context, c *models.Conversation) (*models.Conversation, bool, error) {
	if c.Status == "" {
		c.Status = models.ConversationOpen
	}
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "platform_id"}, {Name: "customer_id"}},
			DoNothing: true,
		}).
		Create(c)
	if res.Error != nil {
		return nil, false, translate(res.Error)
	}

	stored, err := r.GetByCustomer(ctx, c.PlatformID, c.CustomerID)
	if err != nil {
		return nil, false, err
	}
	return stored, res.RowsAffected > 0, nil
}

func (r *conversationRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Conversation, error) {
	var c models.Conversation
	if err := r.db.WithContext(ctx).Where("id = ?", id).Take(&c).Error; err != nil {
		return nil, translate(err)
	}
	return &c, nil
}

func (r *conversationRepo) GetForTenant(ctx context.Context, tenantID, id uuid.UUID) (*models.Conversation, error) {
	var c models.Conversation
	if err := r.db.WithContext(ctx).Where("id = ? AND tenant_id = ?", id, tenantID).Take(&c).Error; err != nil {
		return nil, translate(err)
	}
	return &c, nil
}

func (r *conversationRepo) GetByCustomer(ctx context.Context, platformID, customerID uuid.UUID) (*models.Conversation, error) {
	var c models.Conversation
	err := r.db.WithContext(ctx).
		Where("platform_id = ? AND customer_id = ?", platformID, customerID).
		Take(&c).Error
	if err != nil {
		return nil, translate(err)
	}
	return &c, nil
}

func (r *conversationRepo) List(ctx context.Context, filter ConversationFilter) ([]models.Conversation, error) {
	q := r.db.WithContext(ctx).Where("tenant_id = ?", filter.TenantID)
	if filter.PlatformID != nil {
		q = q.Where("platform_id = ?", *filter.PlatformID)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	var conversations []models.Conversation
	err := q.Order("last_activity_at DESC").Order("created_at DESC").
		Limit(limit).Offset(filter.Offset).
		Find(&conversations).Error
	return conversations, err
}

func (r *conversationRepo) UpdateStatus(ctx context.Context, tenantID, id uuid.UUID, status models.ConversationStatus) (*models.Conversation, error) {
	res := r.db.WithContext(ctx).Model(&models.Conversation{}).
		Where("id = ? AND tenant_id = ?", id, tenantID).
		Update("status", status)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return r.GetForTenant(ctx, tenantID, id)
}

func (r *conversationRepo) Reopen(ctx context.Context, id uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Conversation{}).
		Where("id = ? AND status = ?", id, models.ConversationClosed).
		Update("status", models.ConversationOpen)
	return res.RowsAffected > 0, res.Error
}

func (r *conversationRepo) TouchActivity(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Conversation{}).
		Where("id = ? AND (last_activity_at IS NULL OR last_activity_at < ?)", id, at).
		Update("last_activity_at", at)
	return res.RowsAffected > 0, res.Error
}
