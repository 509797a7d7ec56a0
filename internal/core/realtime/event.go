package realtime

import (
	"encoding/json"
	"fmt"
	"time"
)

type EventType string

const (
	// EventConversationUpdated carries the conversation plus the message
	// that changed it (inbound or outbound).
	EventConversationUpdated EventType = "conversation.updated"
	// EventMessageStatus carries a message whose delivery status advanced.
	EventMessageStatus EventType = "message.status"
	// EventPlatformDeactivated tells agents a channel needs reconnecting.
	EventPlatformDeactivated EventType = "platform.deactivated"
)

// Event is what subscribers receive. Payload is pre-encoded JSON so the
// same bytes travel through Redis and AMQP unchanged.
type Event struct {
	Type           EventType       `json:"type"`
	TenantID       string          `json:"tenant_id"`
	ConversationID string          `json:"conversation_id,omitempty"`
	Payload        json.RawMessage `json:"payload,omitempty"`
	OccurredAt     time.Time       `json:"occurred_at"`
}

func NewEvent(eventType EventType, tenantID, conversationID string, payload any) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("encode %s payload: %w", eventType, err)
	}
	return Event{
		Type:           eventType,
		TenantID:       tenantID,
		ConversationID: conversationID,
		Payload:        raw,
		OccurredAt:     time.Now().UTC(),
	}, nil
}
