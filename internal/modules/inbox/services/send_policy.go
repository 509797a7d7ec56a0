package services

import (
	"context"
	"fmt"
	"time"

	"github.com/MuhamadAgungGumelar/omnichannel-inbox-be/internal/core/channel"
	"github.com/MuhamadAgungGumelar/omnichannel-inbox-be/internal/modules/inbox/models"
	"github.com/MuhamadAgungGumelar/omnichannel-inbox-be/internal/modules/inbox/repositories"
)

const DefaultSessionWindow = 24 * time.Hour

// Window is the free-form messaging state of a conversation
type Window struct {
	Open bool
	// ClosesAt is nil when the channel has no window
	ClosesAt *time.Time
}

// EligibilityPolicy decides whether a free-form message may be sent
type EligibilityPolicy interface {
	Window(ctx context.Context, conv *models.Conversation, now time.Time) (Window, error)
}

// AlwaysEligible is the policy of channels without a messaging window
type AlwaysEligible struct{}

func (AlwaysEligible) Window(context.Context, *models.Conversation, time.Time) (Window, error) {
	return Window{Open: true}, nil
}

// SessionWindowPolicy opens the window for Length after each inbound
// message. It is open while now - lastInbound < Length.
type SessionWindowPolicy struct {
	Messages repositories.MessageRepo
	Length   time.Duration
}

func (p SessionWindowPolicy) Window(ctx context.Context, conv *models.Conversation, now time.Time) (Window, error) {
	last, err := p.Messages.LastInboundAt(ctx, conv.ID)
	if err != nil {
		return Window{}, fmt.Errorf("failed to load last inbound message: %w", err)
	}
	if last == nil {
		return Window{Open: false}, nil
	}
	closesAt := last.Add(p.Length)
	return Window{Open: now.Sub(*last) < p.Length, ClosesAt: &closesAt}, nil
}

// SendRequest is an agent's outbound message
type SendRequest struct {
	Content  channel.Content
	Template *channel.Template
}

// Decision is the outcome of SendPolicy.Evaluate
type Decision struct {
	UseTemplate bool
	Window      Window
}

// SendPolicy picks free-form or template delivery per channel
type SendPolicy struct {
	policies map[channel.Type]EligibilityPolicy
}

// NewSendPolicy wires the session window for WhatsApp; Messenger and
// Instagram are always eligible.
func NewSendPolicy(messages repositories.MessageRepo, whatsappWindow time.Duration) *SendPolicy {
	if whatsappWindow <= 0 {
		whatsappWindow = DefaultSessionWindow
	}
	return &SendPolicy{
		policies: map[channel.Type]EligibilityPolicy{
			channel.Facebook:  AlwaysEligible{},
			channel.Instagram: AlwaysEligible{},
			channel.WhatsApp:  SessionWindowPolicy{Messages: messages, Length: whatsappWindow},
		},
	}
}

// Evaluate never drops a message silently: it returns a decision to send
// or an error explaining why the message cannot go out.
func (p *SendPolicy) Evaluate(ctx context.Context, platform *models.Platform, conv *models.Conversation, req SendRequest, now time.Time) (Decision, error) {
	if req.Content.Empty() && req.Template == nil {
		return Decision{}, ErrEmptyMessage
	}
	if req.Template != nil && !platform.Type.SupportsTemplates() {
		return Decision{}, fmt.Errorf("%w: %s", ErrTemplateUnsupported, platform.Type)
	}
	if req.Template != nil && (req.Template.Name == "" || req.Template.Language == "") {
		return Decision{}, fmt.Errorf("%w: template name and language are required", ErrInvalidInput)
	}

	policy, ok := p.policies[platform.Type]
	if !ok {
		return Decision{}, channel.ErrUnknownChannel
	}
	window, err := policy.Window(ctx, conv, now)
	if err != nil {
		return Decision{}, err
	}

	switch {
	case window.Open && !req.Content.Empty():
		return Decision{Window: window}, nil
	case req.Template != nil:
		return Decision{UseTemplate: true, Window: window}, nil
	}
	return Decision{Window: window}, fmt.Errorf("%w: send an approved template to reopen the conversation", ErrOutsideMessagingWindow)
}
