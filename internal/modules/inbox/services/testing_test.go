package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/MuhamadAgungGumelar/omnichannel-inbox-be/internal/core/audit"
	"github.com/MuhamadAgungGumelar/omnichannel-inbox-be/internal/core/channel"
	"github.com/MuhamadAgungGumelar/omnichannel-inbox-be/internal/core/realtime"
	"github.com/MuhamadAgungGumelar/omnichannel-inbox-be/internal/modules/inbox/models"
	"github.com/MuhamadAgungGumelar/omnichannel-inbox-be/internal/modules/inbox/repositories"
	"github.com/MuhamadAgungGumelar/omnichannel-inbox-be/internal/shared/database"
)

const testSecret = "app-secret"

// fakeGraph scripts platform responses per call
type fakeGraph struct {
	mu         sync.Mutex
	sends      []channel.OutboundMessage
	sendFn     func(call int, msg channel.OutboundMessage) (channel.SendResult, error)
	profile    *channel.PlatformProfile
	profileErr error
	profiles   int
}

func (g *fakeGraph) Send(ctx context.Context, creds channel.Credentials, msg channel.OutboundMessage) (channel.SendResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sends = append(g.sends, msg)
	if g.sendFn == nil {
		return channel.SendResult{MessageID: fmt.Sprintf("out.%d", len(g.sends)), RecipientID: msg.RecipientID}, nil
	}
	return g.sendFn(len(g.sends), msg)
}

func (g *fakeGraph) Profile(ctx context.Context, creds channel.Credentials) (*channel.PlatformProfile, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.profiles++
	if g.profileErr != nil {
		return nil, g.profileErr
	}
	if g.profile != nil {
		return g.profile, nil
	}
	return &channel.PlatformProfile{ID: creds.ExternalID, Name: "Test Business"}, nil
}

func (g *fakeGraph) sendCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.sends)
}

// recordingPublisher keeps every published event in order and passes it
// on to forward when set.
type recordingPublisher struct {
	mu      sync.Mutex
	events  []realtime.Event
	forward Publisher
}

func (p *recordingPublisher) Publish(ctx context.Context, tenantID string, ev realtime.Event) {
	p.mu.Lock()
	ev.TenantID = tenantID
	p.events = append(p.events, ev)
	p.mu.Unlock()

	if p.forward != nil {
		p.forward.Publish(ctx, tenantID, ev)
	}
}

func (p *recordingPublisher) ofType(t realtime.EventType) []realtime.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []realtime.Event
	for _, ev := range p.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

type harness struct {
	db            *gorm.DB
	platforms     repositories.PlatformRepo
	customers     repositories.CustomerRepo
	conversations repositories.ConversationRepo
	messages      repositories.MessageRepo
	audit         *audit.Service
	publisher     *recordingPublisher
	graph         *fakeGraph

	tokens     *TokenManager
	identity   *IdentityResolver
	normalizer *Normalizer
	policy     *SendPolicy
	dispatcher *Dispatcher
	ingest     *IngestService
	convs      *ConversationService

	now   time.Time
	slept []time.Duration
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessWithGraph(t, &fakeGraph{}, nil)
}

// newHarnessWithGraph wires every service; api replaces the fake when set
func newHarnessWithGraph(t *testing.T, fake *fakeGraph, api GraphAPI) *harness {
	t.Helper()

	db, err := database.OpenSQLite(":memory:", logger.Silent)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(append(models.All(), &audit.AuditLog{})...); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	h := &harness{
		db:            db,
		platforms:     repositories.NewPlatformRepo(db),
		customers:     repositories.NewCustomerRepo(db),
		conversations: repositories.NewConversationRepo(db),
		messages:      repositories.NewMessageRepo(db),
		audit:         audit.NewService(db),
		publisher:     &recordingPublisher{},
		graph:         fake,
		now:           time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	if api == nil {
		api = fake
	}
	clock := func() time.Time { return h.now }
	locks := NewConversationLocks()

	h.tokens = NewTokenManager(h.platforms, api, h.audit, h.publisher)
	h.tokens.now = clock
	h.identity = NewIdentityResolver(h.customers, h.conversations)
	h.normalizer = NewNormalizer(h.messages)
	h.normalizer.now = clock
	h.policy = NewSendPolicy(h.messages, 24*time.Hour)
	h.dispatcher = NewDispatcher(h.messages, h.conversations, h.customers, h.identity, h.tokens, h.policy, api, h.publisher, locks,
		RetryConfig{MaxAttempts: 3, BaseBackoff: time.Second, MaxBackoff: 4 * time.Second, AttemptTimeout: 2 * time.Second})
	h.dispatcher.now = clock
	h.dispatcher.sleep = func(ctx context.Context, d time.Duration) error {
		h.slept = append(h.slept, d)
		return nil
	}
	h.ingest = NewIngestService(h.platforms, h.conversations, h.messages, h.identity, h.normalizer, h.tokens, h.audit, h.publisher, locks,
		WebhookConfig{
			Secrets:     map[channel.Type]string{channel.Facebook: testSecret, channel.Instagram: testSecret, channel.WhatsApp: testSecret},
			VerifyToken: "verify-me",
		})
	h.convs = NewConversationService(h.conversations, h.messages, h.customers, h.audit, h.publisher, locks)
	return h
}

func (h *harness) seedPlatform(t *testing.T, tenantID uuid.UUID, typ channel.Type, externalID string) *models.Platform {
	t.Helper()
	p := &models.Platform{
		TenantID:    tenantID,
		Type:        typ,
		ExternalID:  externalID,
		Name:        "Shop",
		AccessToken: "tok-" + externalID,
		Active:      true,
	}
	if err := h.platforms.Create(context.Background(), p); err != nil {
		t.Fatalf("create platform: %v", err)
	}
	return p
}

// seedConversation creates a customer and conversation, optionally with
// an inbound message at lastInbound.
func (h *harness) seedConversation(t *testing.T, p *models.Platform, externalID string, lastInbound *time.Time) *models.Conversation {
	t.Helper()
	ctx := context.Background()
	customer, err := h.identity.Resolve(ctx, p.TenantID, p.ID, externalID, nil)
	if err != nil {
		t.Fatalf("resolve customer: %v", err)
	}
	conv, err := h.identity.ResolveConversation(ctx, customer)
	if err != nil {
		t.Fatalf("resolve conversation: %v", err)
	}
	if lastInbound != nil {
		mid := "in-" + uuid.NewString()
		if _, err := h.messages.Insert(ctx, &models.Message{
			TenantID:          p.TenantID,
			ConversationID:    conv.ID,
			PlatformID:        p.ID,
			Direction:         models.DirectionInbound,
			PlatformMessageID: &mid,
			ContentType:       channel.ContentText,
			Text:              "hi",
			Status:            channel.StatusDelivered,
			OccurredAt:        *lastInbound,
		}); err != nil {
			t.Fatalf("insert inbound: %v", err)
		}
	}
	return conv
}

func (h *harness) deliver(t *testing.T, typ channel.Type, body string) (*IngestReport, error) {
	t.Helper()
	return h.ingest.Handle(context.Background(), WebhookDelivery{
		Channel:   typ,
		Body:      []byte(body),
		Signature: channel.Sign([]byte(body), testSecret),
	})
}

func whatsappMessage(phoneID, from, mid string, ts int64, text string) string {
	return fmt.Sprintf(`{
		"object": "whatsapp_business_account",
		"entry": [{"id": "WABA1", "changes": [{"field": "messages", "value": {
			"messaging_product": "whatsapp",
			"metadata": {"display_phone_number": "15550001111", "phone_number_id": %q},
			"contacts": [{"profile": {"name": "Dewi"}, "wa_id": %q}],
			"messages": [{"from": %q, "id": %q, "timestamp": "%d", "type": "text", "text": {"body": %q}}]
		}}]}]
	}`, phoneID, from, from, mid, ts, text)
}

func whatsappStatus(phoneID, recipient, mid, status string, ts int64) string {
	return fmt.Sprintf(`{
		"object": "whatsapp_business_account",
		"entry": [{"id": "WABA1", "changes": [{"field": "messages", "value": {
			"messaging_product": "whatsapp",
			"metadata": {"display_phone_number": "15550001111", "phone_number_id": %q},
			"statuses": [{"id": %q, "status": %q, "timestamp": "%d", "recipient_id": %q}]
		}}]}]
	}`, phoneID, mid, status, ts, recipient)
}

func messengerMessage(pageID, sender, mid string, tsMillis int64, text string) string {
	return fmt.Sprintf(`{
		"object": "page",
		"entry": [{"id": %q, "time": %d, "messaging": [{
			"sender": {"id": %q}, "recipient": {"id": %q}, "timestamp": %d,
			"message": {"mid": %q, "text": %q}
		}]}]
	}`, pageID, tsMillis, sender, pageID, tsMillis, mid, text)
}
