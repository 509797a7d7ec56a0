package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/MuhamadAgungGumelar/omnichannel-inbox-be/internal/core/channel"
	"github.com/MuhamadAgungGumelar/omnichannel-inbox-be/internal/modules/inbox/models"
	"github.com/MuhamadAgungGumelar/omnichannel-inbox-be/internal/modules/inbox/repositories"
	"github.com/MuhamadAgungGumelar/omnichannel-inbox-be/internal/shared/metrics"
)

// RetryConfig bounds outbound delivery attempts
type RetryConfig struct {
	MaxAttempts    int
	BaseBackoff    time.Duration
	MaxBackoff     time.Duration
	AttemptTimeout time.Duration
}

const jitterPct = 0.20

func (c RetryConfig) withDefaults() RetryConfig {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.BaseBackoff <= 0 {
		c.BaseBackoff = time.Second
	}
	if c.MaxBackoff < c.BaseBackoff {
		c.MaxBackoff = 10 * c.BaseBackoff
	}
	if c.AttemptTimeout <= 0 {
		c.AttemptTimeout = 15 * time.Second
	}
	return c
}

// Dispatcher sends agent messages through the platform API and records
// their outcome.
type Dispatcher struct {
	messages      repositories.MessageRepo
	conversations repositories.ConversationRepo
	customers     repositories.CustomerRepo
	identity      *IdentityResolver
	tokens        *TokenManager
	policy        *SendPolicy
	graph         GraphAPI
	publisher     Publisher
	locks         *ConversationLocks
	retry         RetryConfig

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewDispatcher creates an outbound dispatcher. publisher may be nil.
func NewDispatcher(
	messages repositories.MessageRepo,
	conversations repositories.ConversationRepo,
	customers repositories.CustomerRepo,
	identity *IdentityResolver,
	tokens *TokenManager,
	policy *SendPolicy,
	graph GraphAPI,
	publisher Publisher,
	locks *ConversationLocks,
	retry RetryConfig,
) *Dispatcher {
	if publisher == nil {
		publisher = noopPublisher{}
	}
	if locks == nil {
		locks = NewConversationLocks()
	}
	return &Dispatcher{
		messages:      messages,
		conversations: conversations,
		customers:     customers,
		identity:      identity,
		tokens:        tokens,
		policy:        policy,
		graph:         graph,
		publisher:     publisher,
		locks:         locks,
		retry:         retry.withDefaults(),
		now:           time.Now,
		sleep:         sleepCtx,
	}
}

// SendInConversation sends into an existing conversation of the tenant
func (d *Dispatcher) SendInConversation(ctx context.Context, tenantID, conversationID uuid.UUID, req SendRequest) (*models.Message, error) {
	conv, err := d.conversations.GetForTenant(ctx, tenantID, conversationID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrConversationNotFound
		}
		return nil, err
	}
	return d.Send(ctx, conv, req)
}

// SendToCustomer starts or continues the conversation with externalID on
// the tenant's platform.
func (d *Dispatcher) SendToCustomer(ctx context.Context, tenantID, platformID uuid.UUID, externalID string, req SendRequest) (*models.Message, error) {
	p, err := d.tokens.EnsureValid(ctx, platformID)
	if err != nil {
		return nil, err
	}
	if p.TenantID != tenantID {
		return nil, ErrPlatformNotFound
	}

	customer, err := d.identity.Resolve(ctx, tenantID, p.ID, externalID, nil)
	if err != nil {
		return nil, err
	}
	conv, err := d.identity.ResolveConversation(ctx, customer)
	if err != nil {
		return nil, err
	}
	return d.Send(ctx, conv, req)
}

// Send delivers req into conv. The returned message reflects the final
// state; on failure it is returned together with the error whenever it
// was persisted.
func (d *Dispatcher) Send(ctx context.Context, conv *models.Conversation, req SendRequest) (*models.Message, error) {
	p, err := d.tokens.EnsureValid(ctx, conv.PlatformID)
	if err != nil {
		return nil, err
	}
	if p.TenantID != conv.TenantID {
		return nil, ErrTenantMismatch
	}

	customer, err := d.customers.GetByID(ctx, conv.TenantID, conv.CustomerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load customer: %w", err)
	}

	now := d.now().UTC()
	decision, err := d.policy.Evaluate(ctx, p, conv, req, now)
	if err != nil {
		return nil, err
	}

	msg, out := outboundFor(conv, p, customer.ExternalID, req, decision.UseTemplate, now)
	if err := d.enqueue(ctx, conv, msg); err != nil {
		return nil, err
	}
	result, outcome, sendErr := d.attempt(ctx, p, out)

	// the platform closed the window before our clock did
	if outcome == channel.OutcomeWindowExpired && !decision.UseTemplate && req.Template != nil {
		log.Info().
			Str("platform_id", p.ID.String()).
			Str("template", req.Template.Name).
			Msg("🔁 Session window closed on the platform, sending template instead")
		d.finish(ctx, p, conv, msg, result, outcome, sendErr)

		msg, out = outboundFor(conv, p, customer.ExternalID, req, true, d.now().UTC())
		if err := d.enqueue(ctx, conv, msg); err != nil {
			return nil, err
		}
		result, outcome, sendErr = d.attempt(ctx, p, out)
	}

	return msg, d.finish(ctx, p, conv, msg, result, outcome, sendErr)
}

// outboundFor builds the platform call and the queued row for req
func outboundFor(conv *models.Conversation, p *models.Platform, recipient string, req SendRequest, useTemplate bool, now time.Time) (*models.Message, channel.OutboundMessage) {
	out := channel.OutboundMessage{RecipientID: recipient}
	msg := &models.Message{
		TenantID:       conv.TenantID,
		ConversationID: conv.ID,
		PlatformID:     p.ID,
		Direction:      models.DirectionOutbound,
		Status:         channel.StatusQueued,
		OccurredAt:     now,
	}
	if useTemplate {
		out.Template = req.Template
		msg.ContentType = channel.ContentTemplate
		msg.Text = req.Template.Name
		return msg, out
	}

	out.Content = req.Content
	if out.Content.Type == "" {
		out.Content.Type = channel.ContentText
	}
	msg.ContentType = out.Content.Type
	msg.Text = out.Content.Text
	msg.MediaURL = out.Content.MediaURL
	msg.MediaID = out.Content.MediaID
	msg.MimeType = out.Content.MimeType
	msg.ReplyToPlatformMessageID = out.Content.ReplyTo
	return msg, out
}

// attempt delivers out and classifies the final response
func (d *Dispatcher) attempt(ctx context.Context, p *models.Platform, out channel.OutboundMessage) (channel.SendResult, channel.Outcome, error) {
	result, sendErr := d.deliver(ctx, p, out)
	outcome := channel.OutcomeOf(sendErr)
	if outcome == channel.OutcomeAccepted && result.MessageID == "" {
		outcome = channel.OutcomeUnresolved
		sendErr = errors.New("platform accepted the message without returning an id")
	}
	metrics.OutboundSends.WithLabelValues(string(p.Type), string(outcome)).Inc()
	return result, outcome, sendErr
}

// finish records the outcome and publishes the message under the
// conversation lock.
func (d *Dispatcher) finish(ctx context.Context, p *models.Platform, conv *models.Conversation, msg *models.Message, result channel.SendResult, outcome channel.Outcome, sendErr error) error {
	unlock := d.locks.Lock(conv.ID)
	defer unlock()

	err := d.settle(ctx, p, msg, result, outcome, sendErr)
	publishConversationUpdated(ctx, d.publisher, conv, msg)
	return err
}

func (d *Dispatcher) enqueue(ctx context.Context, conv *models.Conversation, msg *models.Message) error {
	unlock := d.locks.Lock(conv.ID)
	defer unlock()

	if _, err := d.messages.Insert(ctx, msg); err != nil {
		return fmt.Errorf("failed to queue message: %w", err)
	}
	touched, err := d.conversations.TouchActivity(ctx, conv.ID, msg.OccurredAt)
	if err != nil {
		log.Warn().Err(err).Str("conversation_id", conv.ID.String()).Msg("failed to update conversation activity")
	} else if touched {
		at := msg.OccurredAt
		conv.LastActivityAt = &at
	}
	return nil
}

// deliver calls the platform until the outcome is final or attempts run out
func (d *Dispatcher) deliver(ctx context.Context, p *models.Platform, out channel.OutboundMessage) (channel.SendResult, error) {
	creds := p.ChannelCredentials()
	backoff := d.retry.BaseBackoff

	for attempt := 1; ; attempt++ {
		metrics.OutboundAttempts.WithLabelValues(string(p.Type)).Inc()

		attemptCtx, cancel := context.WithTimeout(ctx, d.retry.AttemptTimeout)
		result, err := d.graph.Send(attemptCtx, creds, out)
		cancel()

		outcome := channel.OutcomeOf(err)
		if !outcome.Retryable() || attempt >= d.retry.MaxAttempts {
			return result, err
		}

		// exponential backoff with jitter
		wait := backoff + time.Duration(rand.Int63n(int64(float64(backoff)*jitterPct)+1))
		if wait > d.retry.MaxBackoff {
			wait = d.retry.MaxBackoff
		}
		log.Warn().
			Err(err).
			Str("platform_id", p.ID.String()).
			Int("attempt", attempt).
			Dur("wait", wait).
			Msg("⚠️ Send attempt failed, retrying")

		if sleepErr := d.sleep(ctx, wait); sleepErr != nil {
			// nothing was written on the last attempt; report it as is
			return result, err
		}
		backoff *= 2
		if backoff > d.retry.MaxBackoff {
			backoff = d.retry.MaxBackoff
		}
	}
}

// settle persists the outcome of a delivery and maps it onto the inbox
// error vocabulary.
func (d *Dispatcher) settle(ctx context.Context, p *models.Platform, msg *models.Message, result channel.SendResult, outcome channel.Outcome, sendErr error) error {
	if outcome == channel.OutcomeAccepted {
		if err := d.messages.MarkSent(ctx, msg.ID, result.MessageID); err != nil {
			return fmt.Errorf("message accepted as %s but not recorded: %w", result.MessageID, err)
		}
		mid := result.MessageID
		msg.PlatformMessageID = &mid
		msg.Status = channel.StatusSent

		// receipts that beat the API response were held by ingestion
		if updated, advanced, err := applyReceipts(ctx, d.messages, p.ID, mid); err != nil {
			log.Warn().Err(err).Str("message_id", msg.ID.String()).Msg("failed to apply held receipts")
		} else if advanced && updated != nil {
			msg.Status = updated.Status
			msg.FailureReason = updated.FailureReason
		}

		log.Info().
			Str("platform_id", p.ID.String()).
			Str("message_id", msg.ID.String()).
			Str("platform_message_id", mid).
			Msg("📤 Message sent")
		return nil
	}

	reason := sendErr.Error()
	if outcome == channel.OutcomeUnresolved {
		if err := d.messages.MarkUnresolved(ctx, msg.ID, reason); err != nil {
			log.Error().Err(err).Str("message_id", msg.ID.String()).Msg("failed to flag message for reconciliation")
		}
		msg.NeedsReconciliation = true
		msg.FailureReason = reason
		log.Warn().
			Err(sendErr).
			Str("message_id", msg.ID.String()).
			Msg("❓ Send outcome unknown, message needs reconciliation")
		return &SendError{Outcome: outcome, Reason: reason, Err: ErrTimeoutUnresolved}
	}

	if err := d.messages.MarkFailed(ctx, msg.ID, reason); err != nil {
		log.Error().Err(err).Str("message_id", msg.ID.String()).Msg("failed to mark message failed")
	}
	msg.Status = channel.StatusFailed
	msg.FailureReason = reason

	log.Error().
		Err(sendErr).
		Str("platform_id", p.ID.String()).
		Str("message_id", msg.ID.String()).
		Str("outcome", string(outcome)).
		Msg("❌ Message send failed")

	var sentinel error
	switch outcome {
	case channel.OutcomeRateLimited:
		sentinel = ErrRateLimited
	case channel.OutcomeTransient:
		sentinel = ErrPlatformUnavailable
	case channel.OutcomeWindowExpired:
		sentinel = ErrOutsideMessagingWindow
	case channel.OutcomeAuthFailed:
		sentinel = ErrTokenRevoked
		if err := d.tokens.HandleAuthFailure(ctx, p, sendErr); errors.Is(err, ErrTokenExpired) {
			sentinel = ErrTokenExpired
		} else if err != nil && !errors.Is(err, ErrTokenRevoked) {
			log.Error().Err(err).Str("platform_id", p.ID.String()).Msg("failed to invalidate platform")
		}
	default:
		sentinel = ErrPermanentReject
	}
	return &SendError{Outcome: outcome, Reason: reason, Err: sentinel}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
