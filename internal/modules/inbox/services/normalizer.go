package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/MuhamadAgungGumelar/omnichannel-inbox-be/internal/core/channel"
	"github.com/MuhamadAgungGumelar/omnichannel-inbox-be/internal/modules/inbox/models"
	"github.com/MuhamadAgungGumelar/omnichannel-inbox-be/internal/modules/inbox/repositories"
)

// NormalizedInbound is an inbound message bound to a platform but not yet
// to a stored customer or conversation.
type NormalizedInbound struct {
	PlatformID         uuid.UUID
	ExternalCustomerID string
	// ConversationKey identifies the thread: one per (platform, customer)
	ConversationKey   string
	PlatformMessageID string
	Content           channel.Content
	OccurredAt        time.Time
	Profile           *channel.Profile
}

// Normalizer turns parsed webhook events into inbound messages and stores
// them exactly once.
type Normalizer struct {
	messages repositories.MessageRepo
	now      func() time.Time
}

func NewNormalizer(messages repositories.MessageRepo) *Normalizer {
	return &Normalizer{messages: messages, now: time.Now}
}

// Normalize maps a message or reaction event onto the inbox model
func (n *Normalizer) Normalize(ev channel.RawEvent, platformID uuid.UUID) (NormalizedInbound, error) {
	if ev.Kind != channel.EventMessage && ev.Kind != channel.EventReaction {
		return NormalizedInbound{}, fmt.Errorf("%w: %s event is not a message", ErrInvalidInput, ev.Kind)
	}
	if ev.SenderID == "" {
		return NormalizedInbound{}, fmt.Errorf("%w: event without sender", ErrMalformedPayload)
	}

	occurredAt := ev.Timestamp.UTC()
	if ev.Timestamp.IsZero() {
		occurredAt = n.now().UTC()
	}

	content := ev.Content
	if content.Type == "" {
		content.Type = channel.ContentUnsupported
	}

	mid := ev.MessageID
	if mid == "" && ev.Kind == channel.EventReaction {
		// Messenger reactions carry no id of their own
		mid = fmt.Sprintf("reaction:%s:%s:%d", content.ReplyTo, ev.SenderID, occurredAt.UnixMilli())
	}
	if mid == "" {
		return NormalizedInbound{}, fmt.Errorf("%w: event without message id", ErrMalformedPayload)
	}

	return NormalizedInbound{
		PlatformID:         platformID,
		ExternalCustomerID: ev.SenderID,
		ConversationKey:    platformID.String() + ":" + ev.SenderID,
		PlatformMessageID:  mid,
		Content:            content,
		OccurredAt:         occurredAt,
		Profile:            ev.Profile,
	}, nil
}

// Seen reports whether the platform message id is already stored
func (n *Normalizer) Seen(ctx context.Context, in NormalizedInbound) (bool, error) {
	return n.messages.Exists(ctx, in.PlatformID, in.PlatformMessageID)
}

// Record stores the inbound message in conv. A redelivered message returns
// ErrDuplicateEvent and leaves the stored row untouched.
func (n *Normalizer) Record(ctx context.Context, conv *models.Conversation, in NormalizedInbound) (*models.Message, error) {
	mid := in.PlatformMessageID
	msg := &models.Message{
		TenantID:                 conv.TenantID,
		ConversationID:           conv.ID,
		PlatformID:               in.PlatformID,
		Direction:                models.DirectionInbound,
		PlatformMessageID:        &mid,
		ContentType:              in.Content.Type,
		Text:                     in.Content.Text,
		MediaURL:                 in.Content.MediaURL,
		MediaID:                  in.Content.MediaID,
		MimeType:                 in.Content.MimeType,
		ReplyToPlatformMessageID: in.Content.ReplyTo,
		Status:                   channel.StatusDelivered,
		OccurredAt:               in.OccurredAt,
	}

	inserted, err := n.messages.Insert(ctx, msg)
	if err != nil {
		return nil, fmt.Errorf("failed to store message: %w", err)
	}
	if !inserted {
		return nil, ErrDuplicateEvent
	}
	return msg, nil
}
