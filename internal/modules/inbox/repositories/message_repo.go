package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/MuhamadAgungGumelar/omnichannel-inbox-be/internal/core/channel"
	"github.com/MuhamadAgungGumelar/omnichannel-inbox-be/internal/modules/inbox/models"
)

type MessageRepo interface {
	// Insert stores m unless (platform_id, platform_message_id) already
	// exists. inserted is false for a duplicate; that is not an error.
	Insert(ctx context.Context, m *models.Message) (inserted bool, err error)
	Exists(ctx context.Context, platformID uuid.UUID, platformMessageID string) (bool, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Message, error)
	GetByPlatformMessageID(ctx context.Context, platformID uuid.UUID, platformMessageID string) (*models.Message, error)
	// ListByConversation returns the latest limit messages in history order.
	ListByConversation(ctx context.Context, conversationID uuid.UUID, limit int) ([]models.Message, error)
	LastInboundAt(ctx context.Context, conversationID uuid.UUID) (*time.Time, error)

	MarkSent(ctx context.Context, id uuid.UUID, platformMessageID string) error
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) error
	MarkUnresolved(ctx context.Context, id uuid.UUID, reason string) error
	// AdvanceStatus applies a delivery receipt if it moves the message
	// forward. A nil message means the id is unknown.
	AdvanceStatus(ctx context.Context, platformID uuid.UUID, platformMessageID string, status channel.DeliveryStatus, reason string) (*models.Message, bool, error)
	// MarkReadUpTo marks outbound messages up to watermark as read and
	// returns the ones that changed.
	MarkReadUpTo(ctx context.Context, conversationID uuid.UUID, watermark time.Time) ([]models.Message, error)
	CountNeedingReconciliation(ctx context.Context, platformID uuid.UUID) (int64, error)

	// HoldReceipt keeps a receipt whose message is not stored yet. Holding
	// the same status twice is a no-op.
	HoldReceipt(ctx context.Context, r *models.PendingReceipt) error
	// TakeReceipts removes and returns the held receipts of one message,
	// in receipt order.
	TakeReceipts(ctx context.Context, platformID uuid.UUID, platformMessageID string) ([]models.PendingReceipt, error)
	PurgeReceipts(ctx context.Context, before time.Time) (int64, error)

	// Timeline returns direction and time of the tenant's messages in
	// [start, end), oldest first.
	Timeline(ctx context.Context, tenantID uuid.UUID, start, end time.Time) ([]TimelinePoint, error)
}

type TimelinePoint struct {
	Direction  models.Direction
	OccurredAt time.Time
}

type messageRepo struct {
	db *gorm.DB
}

func NewMessageRepo(db *gorm.DB) MessageRepo {
	return &messageRepo{db: db}
}

func (r *messageRepo) Insert(ctx context.Context, m *models.Message) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "platform_id"}, {Name: "platform_message_id"}},
			DoNothing: true,
		}).
		Create(m)
	if res.Error != nil {
		return false, translate(res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *messageRepo) Exists(ctx context.Context, platformID uuid.UUID, platformMessageID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Message{}).
		Where("platform_id = ? AND platform_message_id = ?", platformID, platformMessageID).
		Count(&count).Error
	return count > 0, err
}

func (r *messageRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Message, error) {
	var m models.Message
	if err := r.db.WithContext(ctx).Where("id = ?", id).Take(&m).Error; err != nil {
		return nil, translate(err)
	}
	return &m, nil
}

func (r *messageRepo) GetByPlatformMessageID(ctx context.Context, platformID uuid.UUID, platformMessageID string) (*models.Message, error) {
	var m models.Message
	err := r.db.WithContext(ctx).
		Where("platform_id = ? AND platform_message_id = ?", platformID, platformMessageID).
		Take(&m).Error
	if err != nil {
		return nil, translate(err)
	}
	return &m, nil
}

func (r *messageRepo) ListByConversation(ctx context.Context, conversationID uuid.UUID, limit int) ([]models.Message, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	var messages []models.Message
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("occurred_at DESC").Order("platform_message_id DESC").Order("created_at DESC").
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, err
	}

	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

func (r *messageRepo) LastInboundAt(ctx context.Context, conversationID uuid.UUID) (*time.Time, error) {
	var m models.Message
	err := r.db.WithContext(ctx).
		Select("occurred_at").
		Where("conversation_id = ? AND direction = ?", conversationID, models.DirectionInbound).
		Order("occurred_at DESC").
		Limit(1).
		Find(&m).Error
	if err != nil {
		return nil, err
	}
	if m.OccurredAt.IsZero() {
		return nil, nil
	}
	at := m.OccurredAt.UTC()
	return &at, nil
}

func (r *messageRepo) MarkSent(ctx context.Context, id uuid.UUID, platformMessageID string) error {
	return translate(r.db.WithContext(ctx).Model(&models.Message{}).
		Where("id = ? AND status = ?", id, channel.StatusQueued).
		Updates(map[string]interface{}{
			"status":              channel.StatusSent,
			"platform_message_id": platformMessageID,
		}).Error)
}

func (r *messageRepo) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	return r.db.WithContext(ctx).Model(&models.Message{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":         channel.StatusFailed,
			"failure_reason": reason,
		}).Error
}

func (r *messageRepo) MarkUnresolved(ctx context.Context, id uuid.UUID, reason string) error {
	return r.db.WithContext(ctx).Model(&models.Message{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"needs_reconciliation": true,
			"failure_reason":       reason,
		}).Error
}

func (r *messageRepo) AdvanceStatus(ctx context.Context, platformID uuid.UUID, platformMessageID string, status channel.DeliveryStatus, reason string) (*models.Message, bool, error) {
	fields := map[string]interface{}{"status": status}
	if status == channel.StatusFailed && reason != "" {
		fields["failure_reason"] = reason
	}

	res := r.db.WithContext(ctx).Model(&models.Message{}).
		Where("platform_id = ? AND platform_message_id = ? AND status IN ?", platformID, platformMessageID, channel.Predecessors(status)).
		Updates(fields)
	if res.Error != nil {
		return nil, false, res.Error
	}

	m, err := r.GetByPlatformMessageID(ctx, platformID, platformMessageID)
	if errors.Is(err, ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return m, res.RowsAffected > 0, nil
}

func (r *messageRepo) MarkReadUpTo(ctx context.Context, conversationID uuid.UUID, watermark time.Time) ([]models.Message, error) {
	var changed []models.Message
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var candidates []models.Message
		err := tx.Where("conversation_id = ? AND direction = ? AND occurred_at <= ? AND status IN ?",
			conversationID, models.DirectionOutbound, watermark.UTC(), channel.Predecessors(channel.StatusRead)).
			Where("platform_message_id IS NOT NULL").
			Order("occurred_at ASC").
			Find(&candidates).Error
		if err != nil || len(candidates) == 0 {
			return err
		}

		ids := make([]uuid.UUID, 0, len(candidates))
		for _, m := range candidates {
			ids = append(ids, m.ID)
		}
		if err := tx.Model(&models.Message{}).
			Where("id IN ? AND status IN ?", ids, channel.Predecessors(channel.StatusRead)).
			Update("status", channel.StatusRead).Error; err != nil {
			return err
		}

		for i := range candidates {
			candidates[i].Status = channel.StatusRead
		}
		changed = candidates
		return nil
	})
	return changed, err
}

func (r *messageRepo) CountNeedingReconciliation(ctx context.Context, platformID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Message{}).
		Where("platform_id = ? AND needs_reconciliation = ?", platformID, true).
		Count(&count).Error
	return count, err
}

func (r *messageRepo) HoldReceipt(ctx context.Context, receipt *models.PendingReceipt) error {
	if receipt.ReceivedAt.IsZero() {
		receipt.ReceivedAt = time.Now().UTC()
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "platform_id"}, {Name: "platform_message_id"}, {Name: "status"}},
			DoNothing: true,
		}).
		Create(receipt).Error
}

func (r *messageRepo) TakeReceipts(ctx context.Context, platformID uuid.UUID, platformMessageID string) ([]models.PendingReceipt, error) {
	var held []models.PendingReceipt
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("platform_id = ? AND platform_message_id = ?", platformID, platformMessageID).
			Order("received_at ASC").
			Find(&held).Error; err != nil || len(held) == 0 {
			return err
		}
		ids := make([]uuid.UUID, 0, len(held))
		for _, h := range held {
			ids = append(ids, h.ID)
		}
		return tx.Where("id IN ?", ids).Delete(&models.PendingReceipt{}).Error
	})
	return held, err
}

func (r *messageRepo) PurgeReceipts(ctx context.Context, before time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("received_at < ?", before.UTC()).
		Delete(&models.PendingReceipt{})
	return res.RowsAffected, res.Error
}

func (r *messageRepo) Timeline(ctx context.Context, tenantID uuid.UUID, start, end time.Time) ([]TimelinePoint, error) {
	var points []TimelinePoint
	err := r.db.WithContext(ctx).Model(&models.Message{}).
		Select("direction, occurred_at").
		Where("tenant_id = ? AND occurred_at >= ? AND occurred_at < ?", tenantID, start, end).
		Order("occurred_at ASC").
		Scan(&points).Error
	return points, err
}
