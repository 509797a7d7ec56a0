package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/MuhamadAgungGumelar/omnichannel-inbox-be/internal/core/audit"
	"github.com/MuhamadAgungGumelar/omnichannel-inbox-be/internal/core/channel"
	"github.com/MuhamadAgungGumelar/omnichannel-inbox-be/internal/modules/inbox/models"
	"github.com/MuhamadAgungGumelar/omnichannel-inbox-be/internal/modules/inbox/repositories"
	"github.com/MuhamadAgungGumelar/omnichannel-inbox-be/internal/shared/metrics"
)

// WebhookConfig holds the per-channel app secrets and the subscription
// verify token.
type WebhookConfig struct {
	Secrets     map[channel.Type]string
	VerifyToken string
}

// WebhookDelivery is one POST from a platform
type WebhookDelivery struct {
	Channel    channel.Type
	Body       []byte
	Signature  string
	RemoteAddr string
}

// IngestReport summarizes what a delivery did
type IngestReport struct {
	Events        int `json:"events"`
	Stored        int `json:"stored"`
	Duplicates    int `json:"duplicates"`
	StatusUpdates int `json:"status_updates"`
	Ignored       int `json:"ignored"`
	Held          int `json:"held"`
	Failed        int `json:"failed"`
}

// IngestService turns webhook deliveries into stored messages and
// realtime events.
type IngestService struct {
	platforms     repositories.PlatformRepo
	conversations repositories.ConversationRepo
	messages      repositories.MessageRepo
	identity      *IdentityResolver
	normalizer    *Normalizer
	tokens        *TokenManager
	auditor       Auditor
	publisher     Publisher
	locks         *ConversationLocks
	cfg           WebhookConfig
}

// NewIngestService creates the webhook ingestion service. auditor and
// publisher may be nil.
func NewIngestService(
	platforms repositories.PlatformRepo,
	conversations repositories.ConversationRepo,
	messages repositories.MessageRepo,
	identity *IdentityResolver,
	normalizer *Normalizer,
	tokens *TokenManager,
	auditor Auditor,
	publisher Publisher,
	locks *ConversationLocks,
	cfg WebhookConfig,
) *IngestService {
	if auditor == nil {
		auditor = noopAuditor{}
	}
	if publisher == nil {
		publisher = noopPublisher{}
	}
	if locks == nil {
		locks = NewConversationLocks()
	}
	return &IngestService{
		platforms:     platforms,
		conversations: conversations,
		messages:      messages,
		identity:      identity,
		normalizer:    normalizer,
		tokens:        tokens,
		auditor:       auditor,
		publisher:     publisher,
		locks:         locks,
		cfg:           cfg,
	}
}

// VerifySubscription answers the platform's hub.challenge handshake
func (s *IngestService) VerifySubscription(mode, token, challenge string) (string, error) {
	if mode != "subscribe" || s.cfg.VerifyToken == "" ||
		subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.VerifyToken)) != 1 {
		return "", ErrVerificationFailed
	}
	return challenge, nil
}

// Handle verifies and processes one delivery. Only a bad signature or an
// unparseable body is returned as an error; per-event failures are logged
// and counted so the platform does not redeliver the whole batch.
func (s *IngestService) Handle(ctx context.Context, d WebhookDelivery) (*IngestReport, error) {
	adapter, err := channel.AdapterFor(d.Channel)
	if err != nil {
		return nil, err
	}

	secret := s.cfg.Secrets[d.Channel]
	if secret == "" {
		log.Error().Str("channel", string(d.Channel)).Msg("❌ No app secret configured, rejecting webhook")
	}
	if secret == "" || !adapter.Verify(d.Body, d.Signature, secret) {
		metrics.WebhookRejected.WithLabelValues(string(d.Channel), "signature").Inc()
		s.auditRejection(ctx, d)
		return nil, ErrVerificationFailed
	}

	events, err := adapter.Parse(d.Body)
	if err != nil {
		metrics.WebhookRejected.WithLabelValues(string(d.Channel), "malformed").Inc()
		log.Warn().Err(err).Str("channel", string(d.Channel)).Msg("⚠️ Malformed webhook payload")
		return nil, err
	}

	report := &IngestReport{Events: len(events)}
	platforms := map[string]*models.Platform{}
	synced := map[uuid.UUID]bool{}

	for _, ev := range events {
		p, err := s.platformFor(ctx, ev, platforms)
		if err != nil {
			report.Failed++
			log.Error().Err(err).Str("recipient_id", ev.RecipientID).Msg("failed to resolve platform")
			continue
		}
		if p == nil {
			report.Ignored++
			log.Debug().
				Str("channel", string(ev.Channel)).
				Str("recipient_id", ev.RecipientID).
				Msg("no active platform for webhook event")
			continue
		}

		if len(ev.Metadata) > 0 && !synced[p.ID] {
			synced[p.ID] = true
			if err := s.tokens.SyncProfile(ctx, p.ID, ev.Metadata); err != nil {
				log.Warn().Err(err).Str("platform_id", p.ID.String()).Msg("failed to sync platform profile")
			}
		}

		if err := s.handleEvent(ctx, p, ev, report); err != nil {
			report.Failed++
			log.Error().
				Err(err).
				Str("platform_id", p.ID.String()).
				Str("kind", string(ev.Kind)).
				Str("message_id", ev.MessageID).
				Msg("❌ Failed to process webhook event")
		}
	}

	metrics.WebhookEvents.WithLabelValues(string(d.Channel), "stored").Add(float64(report.Stored))
	metrics.WebhookEvents.WithLabelValues(string(d.Channel), "duplicate").Add(float64(report.Duplicates))
	metrics.WebhookEvents.WithLabelValues(string(d.Channel), "status").Add(float64(report.StatusUpdates))
	metrics.WebhookEvents.WithLabelValues(string(d.Channel), "ignored").Add(float64(report.Ignored))
	metrics.WebhookEvents.WithLabelValues(string(d.Channel), "held").Add(float64(report.Held))
	metrics.WebhookEvents.WithLabelValues(string(d.Channel), "failed").Add(float64(report.Failed))

	log.Info().
		Str("channel", string(d.Channel)).
		Int("events", report.Events).
		Int("stored", report.Stored).
		Int("duplicates", report.Duplicates).
		Int("status_updates", report.StatusUpdates).
		Msg("📥 Webhook processed")
	return report, nil
}

func (s *IngestService) platformFor(ctx context.Context, ev channel.RawEvent, cache map[string]*models.Platform) (*models.Platform, error) {
	key := string(ev.Channel) + ":" + ev.RecipientID
	if p, ok := cache[key]; ok {
		return p, nil
	}
	p, err := s.platforms.FindActiveByExternal(ctx, ev.Channel, ev.RecipientID)
	if errors.Is(err, repositories.ErrNotFound) {
		p, err = nil, nil
	}
	if err != nil {
		return nil, err
	}
	cache[key] = p
	return p, nil
}

func (s *IngestService) handleEvent(ctx context.Context, p *models.Platform, ev channel.RawEvent, report *IngestReport) error {
	switch ev.Kind {
	case channel.EventMessage, channel.EventReaction:
		return s.ingestMessage(ctx, p, ev, report)
	case channel.EventStatus:
		return s.applyStatus(ctx, p, ev, report)
	case channel.EventRead:
		return s.applyWatermark(ctx, p, ev, report)
	}
	// echoes of our own sends are already stored by the dispatcher
	report.Ignored++
	return nil
}

func (s *IngestService) ingestMessage(ctx context.Context, p *models.Platform, ev channel.RawEvent, report *IngestReport) error {
	in, err := s.normalizer.Normalize(ev, p.ID)
	if err != nil {
		return err
	}

	seen, err := s.normalizer.Seen(ctx, in)
	if err != nil {
		return err
	}
	if seen {
		report.Duplicates++
		return nil
	}

	customer, err := s.identity.Resolve(ctx, p.TenantID, p.ID, in.ExternalCustomerID, in.Profile)
	if err != nil {
		return err
	}
	conv, err := s.identity.ResolveConversation(ctx, customer)
	if err != nil {
		return err
	}

	unlock := s.locks.Lock(conv.ID)
	defer unlock()

	msg, err := s.normalizer.Record(ctx, conv, in)
	if errors.Is(err, ErrDuplicateEvent) {
		report.Duplicates++
		return nil
	}
	if err != nil {
		return err
	}

	if _, err := s.conversations.Reopen(ctx, conv.ID); err != nil {
		log.Warn().Err(err).Str("conversation_id", conv.ID.String()).Msg("failed to reopen conversation")
	}
	if _, err := s.conversations.TouchActivity(ctx, conv.ID, msg.OccurredAt); err != nil {
		log.Warn().Err(err).Str("conversation_id", conv.ID.String()).Msg("failed to update conversation activity")
	}
	if fresh, err := s.conversations.GetByID(ctx, conv.ID); err == nil {
		conv = fresh
	}

	report.Stored++
	publishConversationUpdated(ctx, s.publisher, conv, msg)
	return nil
}

func (s *IngestService) applyStatus(ctx context.Context, p *models.Platform, ev channel.RawEvent, report *IngestReport) error {
	existing, err := s.messages.GetByPlatformMessageID(ctx, p.ID, ev.MessageID)
	if errors.Is(err, repositories.ErrNotFound) {
		// the send may still be waiting for the platform's answer: hold the
		// receipt, then look again in case the send was recorded meanwhile
		if err := s.messages.HoldReceipt(ctx, &models.PendingReceipt{
			PlatformID:        p.ID,
			PlatformMessageID: ev.MessageID,
			Status:            ev.Status,
			Reason:            ev.StatusError,
		}); err != nil {
			return fmt.Errorf("failed to hold %s receipt: %w", ev.Status, err)
		}
		existing, err = s.messages.GetByPlatformMessageID(ctx, p.ID, ev.MessageID)
		if errors.Is(err, repositories.ErrNotFound) {
			report.Held++
			return nil
		}
	}
	if err != nil {
		return err
	}

	unlock := s.locks.Lock(existing.ConversationID)
	defer unlock()

	msg, advanced, err := applyReceipts(ctx, s.messages, p.ID, ev.MessageID, receipt{status: ev.Status, reason: ev.StatusError})
	if err != nil {
		return err
	}
	if msg == nil || !advanced {
		report.Ignored++
		return nil
	}

	report.StatusUpdates++
	publishMessageStatus(ctx, s.publisher, msg)
	return nil
}

func (s *IngestService) applyWatermark(ctx context.Context, p *models.Platform, ev channel.RawEvent, report *IngestReport) error {
	customer, err := s.identity.Lookup(ctx, p.ID, ev.SenderID)
	if err != nil {
		return err
	}
	if customer == nil {
		report.Ignored++
		return nil
	}
	conv, err := s.conversations.GetByCustomer(ctx, p.ID, customer.ID)
	if errors.Is(err, repositories.ErrNotFound) {
		report.Ignored++
		return nil
	}
	if err != nil {
		return err
	}

	unlock := s.locks.Lock(conv.ID)
	defer unlock()

	changed, err := s.messages.MarkReadUpTo(ctx, conv.ID, ev.Watermark)
	if err != nil {
		return fmt.Errorf("failed to apply read watermark: %w", err)
	}
	if len(changed) == 0 {
		report.Ignored++
		return nil
	}
	for i := range changed {
		publishMessageStatus(ctx, s.publisher, &changed[i])
	}
	report.StatusUpdates += len(changed)
	return nil
}

func (s *IngestService) auditRejection(ctx context.Context, d WebhookDelivery) {
	log.Warn().
		Str("channel", string(d.Channel)).
		Str("remote_addr", d.RemoteAddr).
		Msg("🚫 Webhook signature verification failed")

	if err := s.auditor.Record(ctx, audit.Entry{
		Actor:       "webhook",
		Action:      audit.ActionWebhookRejected,
		Entity:      "webhook",
		EntityID:    string(d.Channel),
		IPAddress:   d.RemoteAddr,
		Description: "invalid X-Hub-Signature-256",
		Metadata:    map[string]interface{}{"body_bytes": len(d.Body)},
	}); err != nil {
		log.Error().Err(err).Msg("failed to record audit entry")
	}
}
