package llm

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog/log"
)

var ErrNoTurns = errors.New("no conversation turns to reply to")

// Service wraps LLM provider untuk dependency injection
type Service struct {
	provider LLMProvider
}

// NewService creates the service from config
func NewService(cfg *ProviderConfig) (*Service, error) {
	provider, err := NewProvider(cfg)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("provider", provider.GetProviderName()).
		Msg("🤖 Reply suggestions enabled")

	return &Service{provider: provider}, nil
}

// NewServiceWithProvider creates service with custom provider (for testing)
func NewServiceWithProvider(provider LLMProvider) *Service {
	return &Service{provider: provider}
}

// SuggestReply drafts the next agent message for the dialogue
func (s *Service) SuggestReply(ctx context.Context, rc ReplyContext, turns []Turn) (string, error) {
	if len(turns) == 0 {
		return "", ErrNoTurns
	}
	reply, err := s.provider.Complete(ctx, BuildReplyPrompt(rc), turns)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(reply), nil
}

// GetProviderName returns current provider name
func (s *Service) GetProviderName() string {
	return s.provider.GetProviderName()
}
