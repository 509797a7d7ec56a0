package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/MuhamadAgungGumelar/omnichannel-inbox-be/internal/core/channel"
	"github.com/MuhamadAgungGumelar/omnichannel-inbox-be/internal/core/llm"
	"github.com/MuhamadAgungGumelar/omnichannel-inbox-be/internal/modules/inbox/models"
	"github.com/MuhamadAgungGumelar/omnichannel-inbox-be/internal/modules/inbox/repositories"
)

var ErrSuggestionsDisabled = errors.New("reply suggestions are not configured")

const suggestHistoryLimit = 20

// ReplySuggester drafts a reply from the dialogue; *llm.Service implements it.
type ReplySuggester interface {
	SuggestReply(ctx context.Context, rc llm.ReplyContext, turns []llm.Turn) (string, error)
}

// SuggestService produces AI drafts for agents. Drafts are returned to the
// caller only and never sent.
type SuggestService struct {
	conversations *ConversationService
	platforms     repositories.PlatformRepo
	suggester     ReplySuggester
}

func NewSuggestService(conversations *ConversationService, platforms repositories.PlatformRepo, suggester ReplySuggester) *SuggestService {
	return &SuggestService{conversations: conversations, platforms: platforms, suggester: suggester}
}

func (s *SuggestService) Suggest(ctx context.Context, tenantID, conversationID uuid.UUID) (string, error) {
	if s.suggester == nil {
		return "", ErrSuggestionsDisabled
	}

	conv, err := s.conversations.Get(ctx, tenantID, conversationID)
	if err != nil {
		return "", err
	}
	history, err := s.conversations.History(ctx, tenantID, conv.ID, suggestHistoryLimit)
	if err != nil {
		return "", err
	}

	rc := llm.ReplyContext{}
	if p, err := s.platforms.GetByID(ctx, conv.PlatformID); err == nil {
		rc.BusinessName = p.Name
		rc.Channel = string(p.Type)
	}
	if c, err := s.conversations.Customer(ctx, conv); err == nil {
		rc.CustomerName = c.DisplayName
	}

	turns := dialogueTurns(history)
	if len(turns) == 0 {
		return "", fmt.Errorf("%w: conversation has no text messages", ErrInvalidInput)
	}
	return s.suggester.SuggestReply(ctx, rc, turns)
}

func dialogueTurns(history []models.Message) []llm.Turn {
	turns := make([]llm.Turn, 0, len(history))
	for _, m := range history {
		if m.Text == "" || m.ContentType == channel.ContentReaction || m.ContentType == channel.ContentTemplate || m.Status == channel.StatusFailed {
			continue
		}
		role := llm.RoleCustomer
		if m.Direction == models.DirectionOutbound {
			role = llm.RoleAgent
		}
		turns = append(turns, llm.Turn{Role: role, Text: m.Text})
	}
	return turns
}
