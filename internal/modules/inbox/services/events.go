package services

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/MuhamadAgungGumelar/omnichannel-inbox-be/internal/core/realtime"
	"github.com/MuhamadAgungGumelar/omnichannel-inbox-be/internal/modules/inbox/models"
)

type ConversationUpdate struct {
	Conversation *models.Conversation `json:"conversation"`
	Message      *models.Message      `json:"message,omitempty"`
}

type MessageStatusUpdate struct {
	Message *models.Message `json:"message"`
}

type PlatformDeactivation struct {
	PlatformID string                    `json:"platform_id"`
	Type       string                    `json:"type"`
	Reason     models.DeactivationReason `json:"reason"`
}

func publishEvent(ctx context.Context, pub Publisher, eventType realtime.EventType, tenantID, conversationID string, payload any) {
	ev, err := realtime.NewEvent(eventType, tenantID, conversationID, payload)
	if err != nil {
		log.Error().Err(err).Str("event", string(eventType)).Msg("failed to build realtime event")
		return
	}
	pub.Publish(ctx, tenantID, ev)
}

func publishConversationUpdated(ctx context.Context, pub Publisher, conv *models.Conversation, msg *models.Message) {
	publishEvent(ctx, pub, realtime.EventConversationUpdated, conv.TenantID.String(), conv.ID.String(),
		ConversationUpdate{Conversation: conv, Message: msg})
}

func publishMessageStatus(ctx context.Context, pub Publisher, msg *models.Message) {
	publishEvent(ctx, pub, realtime.EventMessageStatus, msg.TenantID.String(), msg.ConversationID.String(),
		MessageStatusUpdate{Message: msg})
}
