package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/MuhamadAgungGumelar/omnichannel-inbox-be/internal/core/export"
	"github.com/MuhamadAgungGumelar/omnichannel-inbox-be/internal/modules/inbox/models"
	"github.com/MuhamadAgungGumelar/omnichannel-inbox-be/internal/modules/inbox/repositories"
)

const transcriptLimit = 5000

// TranscriptService exports a conversation history as a file
type TranscriptService struct {
	conversations *ConversationService
	platforms     repositories.PlatformRepo
	exporter      *export.Service
	now           func() time.Time
}

func NewTranscriptService(conversations *ConversationService, platforms repositories.PlatformRepo, exporter *export.Service) *TranscriptService {
	return &TranscriptService{
		conversations: conversations,
		platforms:     platforms,
		exporter:      exporter,
		now:           time.Now,
	}
}

func (s *TranscriptService) Export(ctx context.Context, tenantID, conversationID uuid.UUID, format export.Format) (*export.File, error) {
	conv, err := s.conversations.Get(ctx, tenantID, conversationID)
	if err != nil {
		return nil, err
	}
	history, err := s.conversations.History(ctx, tenantID, conv.ID, transcriptLimit)
	if err != nil {
		return nil, err
	}

	customerName := "Customer"
	if c, err := s.conversations.Customer(ctx, conv); err == nil {
		customerName = c.ExternalID
		if c.DisplayName != "" {
			customerName = c.DisplayName
		}
	}
	businessName, channelName := "Business", "unknown"
	if p, err := s.platforms.GetByID(ctx, conv.PlatformID); err == nil {
		channelName = string(p.Type)
		if p.Name != "" {
			businessName = p.Name
		}
	}

	t := &export.Transcript{
		Title:       fmt.Sprintf("%s via %s", customerName, channelName),
		Subtitle:    fmt.Sprintf("%s, conversation %s (%s)", businessName, conv.ID, conv.Status),
		GeneratedAt: s.now().UTC(),
		Entries:     make([]export.Entry, 0, len(history)),
		Style:       export.DefaultStyle(),
	}
	for _, m := range history {
		entry := export.Entry{
			At:       m.OccurredAt.UTC(),
			Sender:   customerName,
			Outbound: m.Direction == models.DirectionOutbound,
			Kind:     string(m.ContentType),
			Text:     m.Text,
			Status:   string(m.Status),
		}
		if entry.Outbound {
			entry.Sender = businessName
		}
		if entry.Text == "" && m.MediaURL != "" {
			entry.Text = m.MediaURL
		}
		if m.PlatformMessageID != nil {
			entry.Reference = *m.PlatformMessageID
		}
		t.Entries = append(t.Entries, entry)
	}

	return s.exporter.Render(t, format, "conversation-"+conv.ID.String())
}
