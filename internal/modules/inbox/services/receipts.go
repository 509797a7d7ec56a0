package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/MuhamadAgungGumelar/omnichannel-inbox-be/internal/core/channel"
	"github.com/MuhamadAgungGumelar/omnichannel-inbox-be/internal/modules/inbox/models"
	"github.com/MuhamadAgungGumelar/omnichannel-inbox-be/internal/modules/inbox/repositories"
)

type receipt struct {
	status channel.DeliveryStatus
	reason string
}

// applyReceipts moves the message through its held receipts followed by
// extra. msg is nil when no message carries platformMessageID.
func applyReceipts(ctx context.Context, messages repositories.MessageRepo, platformID uuid.UUID, platformMessageID string, extra ...receipt) (*models.Message, bool, error) {
	held, err := messages.TakeReceipts(ctx, platformID, platformMessageID)
	if err != nil {
		return nil, false, fmt.Errorf("failed to take held receipts: %w", err)
	}

	pending := make([]receipt, 0, len(held)+len(extra))
	for _, h := range held {
		pending = append(pending, receipt{status: h.Status, reason: h.Reason})
	}
	pending = append(pending, extra...)

	var msg *models.Message
	advanced := false
	for _, r := range pending {
		m, ok, err := messages.AdvanceStatus(ctx, platformID, platformMessageID, r.status, r.reason)
		if err != nil {
			return nil, false, fmt.Errorf("failed to apply %s receipt: %w", r.status, err)
		}
		if m != nil {
			msg = m
		}
		advanced = advanced || ok
	}
	return msg, advanced, nil
}
