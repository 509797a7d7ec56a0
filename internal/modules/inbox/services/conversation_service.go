package services

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/MuhamadAgungGumelar/omnichannel-inbox-be/internal/core/audit"
	"github.com/MuhamadAgungGumelar/omnichannel-inbox-be/internal/modules/inbox/models"
	"github.com/MuhamadAgungGumelar/omnichannel-inbox-be/internal/modules/inbox/repositories"
)

// ConversationService is the agent-facing read and triage side of the inbox
type ConversationService struct {
	conversations repositories.ConversationRepo
	messages      repositories.MessageRepo
	customers     repositories.CustomerRepo
	auditor       Auditor
	publisher     Publisher
	locks         *ConversationLocks
}

func NewConversationService(
	conversations repositories.ConversationRepo,
	messages repositories.MessageRepo,
	customers repositories.CustomerRepo,
	auditor Auditor,
	publisher Publisher,
	locks *ConversationLocks,
) *ConversationService {
	if auditor == nil {
		auditor = noopAuditor{}
	}
	if publisher == nil {
		publisher = noopPublisher{}
	}
	if locks == nil {
		locks = NewConversationLocks()
	}
	return &ConversationService{
		conversations: conversations,
		messages:      messages,
		customers:     customers,
		auditor:       auditor,
		publisher:     publisher,
		locks:         locks,
	}
}

func (s *ConversationService) List(ctx context.Context, filter repositories.ConversationFilter) ([]models.Conversation, error) {
	return s.conversations.List(ctx, filter)
}

func (s *ConversationService) Get(ctx context.Context, tenantID, id uuid.UUID) (*models.Conversation, error) {
	conv, err := s.conversations.GetForTenant(ctx, tenantID, id)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, ErrConversationNotFound
	}
	return conv, err
}

// Customer returns the customer of a tenant's conversation
func (s *ConversationService) Customer(ctx context.Context, conv *models.Conversation) (*models.Customer, error) {
	return s.customers.GetByID(ctx, conv.TenantID, conv.CustomerID)
}

// History returns the latest messages of the conversation, oldest first
func (s *ConversationService) History(ctx context.Context, tenantID, id uuid.UUID, limit int) ([]models.Message, error) {
	conv, err := s.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	return s.messages.ListByConversation(ctx, conv.ID, limit)
}

// UpdateStatus moves the conversation between open, pending and closed
func (s *ConversationService) UpdateStatus(ctx context.Context, tenantID, id uuid.UUID, status models.ConversationStatus, actor string) (*models.Conversation, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	before, err := s.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if before.Status == status {
		return before, nil
	}

	conv, err := s.conversations.UpdateStatus(ctx, tenantID, id, status)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, ErrConversationNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := s.auditor.Record(ctx, audit.Entry{
		TenantID: &tenantID,
		Actor:    actor,
		Action:   audit.ActionConversationStatus,
		Entity:   "conversation",
		EntityID: id.String(),
		Metadata: map[string]interface{}{"from": string(before.Status), "to": string(status)},
	}); err != nil {
		log.Error().Err(err).Str("conversation_id", id.String()).Msg("failed to record audit entry")
	}

	publishConversationUpdated(ctx, s.publisher, conv, nil)
	return conv, nil
}
