package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/MuhamadAgungGumelar/omnichannel-inbox-be/internal/core/audit"
	"github.com/MuhamadAgungGumelar/omnichannel-inbox-be/internal/core/channel"
	"github.com/MuhamadAgungGumelar/omnichannel-inbox-be/internal/core/realtime"
	"github.com/MuhamadAgungGumelar/omnichannel-inbox-be/internal/modules/inbox/models"
	"github.com/MuhamadAgungGumelar/omnichannel-inbox-be/internal/modules/inbox/repositories"
)

func countRows(t *testing.T, h *harness, model interface{}) int64 {
	t.Helper()
	var n int64
	if err := h.db.Model(model).Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

func TestHandleRejectsBadSignature(t *testing.T) {
	h := newHarness(t)
	h.seedPlatform(t, uuid.New(), channel.WhatsApp, "PN1")
	body := whatsappMessage("PN1", "628111", "wamid.1", 1700000000, "halo")

	_, err := h.ingest.Handle(context.Background(), WebhookDelivery{
		Channel:    channel.WhatsApp,
		Body:       []byte(body),
		Signature:  channel.Sign([]byte(body), "wrong-secret"),
		RemoteAddr: "203.0.113.9",
	})
	if !errors.Is(err, ErrVerificationFailed) {
		t.Fatalf("err = %v, want ErrVerificationFailed", err)
	}
	if n := countRows(t, h, &models.Message{}); n != 0 {
		t.Fatalf("stored %d messages from an unverified delivery", n)
	}

	var entry audit.AuditLog
	if err := h.db.Where("action = ?", audit.ActionWebhookRejected).Take(&entry).Error; err != nil {
		t.Fatalf("rejection not audited: %v", err)
	}
	if entry.IPAddress != "203.0.113.9" || entry.EntityID != "whatsapp" {
		t.Fatalf("unexpected audit entry %+v", entry)
	}
}

func TestHandleRejectsMalformedPayload(t *testing.T) {
	h := newHarness(t)
	body := `{"object":"page","entry":[{"id":"PAGE1","messaging":[{"sender":{"id":"u1"},"recipient":{"id":"PAGE1"},"message":{"text":"no mid"}}]}]}`

	if _, err := h.deliver(t, channel.Facebook, body); !errors.Is(err, ErrMalformedPayload) {
		t.Fatalf("err = %v, want ErrMalformedPayload", err)
	}
	if _, err := h.deliver(t, channel.Facebook, `{not json`); !errors.Is(err, ErrMalformedPayload) {
		t.Fatalf("err = %v, want ErrMalformedPayload", err)
	}
}

func TestHandleIsIdempotent(t *testing.T) {
	h := newHarness(t)
	p := h.seedPlatform(t, uuid.New(), channel.WhatsApp, "PN1")
	body := whatsappMessage("PN1", "628111", "wamid.1", 1700000000, "halo")

	first, err := h.deliver(t, channel.WhatsApp, body)
	if err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	second, err := h.deliver(t, channel.WhatsApp, body)
	if err != nil {
		t.Fatalf("redelivery: %v", err)
	}

	if first.Stored != 1 || second.Stored != 0 || second.Duplicates != 1 {
		t.Fatalf("reports = %+v / %+v", first, second)
	}
	if n := countRows(t, h, &models.Message{}); n != 1 {
		t.Fatalf("messages = %d, want 1", n)
	}
	if n := len(h.publisher.ofType(realtime.EventConversationUpdated)); n != 1 {
		t.Fatalf("conversation.updated events = %d, want 1", n)
	}

	customer, err := h.customers.GetByExternal(context.Background(), p.ID, "628111")
	if err != nil {
		t.Fatalf("customer: %v", err)
	}
	if customer.DisplayName != "Dewi" {
		t.Fatalf("display name = %q, want profile name", customer.DisplayName)
	}

	stored, _ := h.platforms.GetByID(context.Background(), p.ID)
	if stored.CredentialAttributes()["display_phone_number"] != "15550001111" {
		t.Fatalf("webhook metadata not synced: %s", stored.Credentials)
	}
}

func TestHandleConcurrentFirstContact(t *testing.T) {
	h := newHarness(t)
	h.seedPlatform(t, uuid.New(), channel.WhatsApp, "PN1")

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 8; i++ {
		for _, mid := range []string{fmt.Sprintf("wamid.%d", i), "wamid.same"} {
			wg.Add(1)
			go func(mid string, ts int64) {
				defer wg.Done()
				body := whatsappMessage("PN1", "628111", mid, ts, "halo")
				if _, err := h.ingest.Handle(context.Background(), WebhookDelivery{
					Channel:   channel.WhatsApp,
					Body:      []byte(body),
					Signature: channel.Sign([]byte(body), testSecret),
				}); err != nil {
					errs <- err
				}
			}(mid, 1700000000+int64(i))
		}
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("delivery failed: %v", err)
	}

	if n := countRows(t, h, &models.Customer{}); n != 1 {
		t.Fatalf("customers = %d, want 1", n)
	}
	if n := countRows(t, h, &models.Conversation{}); n != 1 {
		t.Fatalf("conversations = %d, want 1", n)
	}
	// eight distinct ids plus one copy of the shared id
	if n := countRows(t, h, &models.Message{}); n != 9 {
		t.Fatalf("messages = %d, want 9", n)
	}
}

func TestHandleOutOfOrderDeliveries(t *testing.T) {
	h := newHarness(t)
	p := h.seedPlatform(t, uuid.New(), channel.WhatsApp, "PN1")
	day := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	at := func(hh, mm int) int64 { return day.Add(time.Duration(hh)*time.Hour + time.Duration(mm)*time.Minute).Unix() }

	for _, d := range []struct {
		mid string
		ts  int64
	}{
		{"wamid.c", at(10, 5)},
		{"wamid.a", at(10, 0)},
		{"wamid.b", at(10, 3)},
	} {
		if _, err := h.deliver(t, channel.WhatsApp, whatsappMessage("PN1", "628111", d.mid, d.ts, d.mid)); err != nil {
			t.Fatalf("deliver %s: %v", d.mid, err)
		}
	}

	customer, _ := h.customers.GetByExternal(context.Background(), p.ID, "628111")
	conv, err := h.conversations.GetByCustomer(context.Background(), p.ID, customer.ID)
	if err != nil {
		t.Fatalf("conversation: %v", err)
	}

	history, err := h.messages.ListByConversation(context.Background(), conv.ID, 10)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	var got []string
	for _, m := range history {
		got = append(got, *m.PlatformMessageID)
	}
	if fmt.Sprint(got) != "[wamid.a wamid.b wamid.c]" {
		t.Fatalf("history order = %v", got)
	}

	want := time.Unix(at(10, 5), 0).UTC()
	if conv.LastActivityAt == nil || !conv.LastActivityAt.Equal(want) {
		t.Fatalf("last activity = %v, want %v", conv.LastActivityAt, want)
	}
}

func TestHandleIgnoresUnknownPlatform(t *testing.T) {
	h := newHarness(t)
	report, err := h.deliver(t, channel.WhatsApp, whatsappMessage("PN404", "628111", "wamid.1", 1700000000, "halo"))
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if report.Ignored != 1 || report.Stored != 0 {
		t.Fatalf("report = %+v", report)
	}
	if n := countRows(t, h, &models.Customer{}); n != 0 {
		t.Fatalf("customers = %d, want 0", n)
	}
}

func TestHandleReopensClosedConversation(t *testing.T) {
	h := newHarness(t)
	p := h.seedPlatform(t, uuid.New(), channel.WhatsApp, "PN1")
	conv := h.seedConversation(t, p, "628111", nil)

	if _, err := h.convs.UpdateStatus(context.Background(), p.TenantID, conv.ID, models.ConversationClosed, "agent-1"); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := h.deliver(t, channel.WhatsApp, whatsappMessage("PN1", "628111", "wamid.9", 1700000000, "are you there?")); err != nil {
		t.Fatalf("deliver: %v", err)
	}

	reopened, _ := h.conversations.GetByID(context.Background(), conv.ID)
	if reopened.Status != models.ConversationOpen {
		t.Fatalf("status = %s, want open", reopened.Status)
	}
}

func TestHandleStatusReceiptsNeverDowngrade(t *testing.T) {
	h := newHarness(t)
	p := h.seedPlatform(t, uuid.New(), channel.WhatsApp, "PN1")
	last := h.now.Add(-time.Hour)
	conv := h.seedConversation(t, p, "628111", &last)

	msg, err := h.dispatcher.Send(context.Background(), conv, SendRequest{Content: channel.Content{Text: "your order shipped"}})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	mid := *msg.PlatformMessageID

	for _, status := range []string{"read", "delivered", "sent", "failed"} {
		if _, err := h.deliver(t, channel.WhatsApp, whatsappStatus("PN1", "628111", mid, status, 1700000100)); err != nil {
			t.Fatalf("deliver %s: %v", status, err)
		}
	}

	stored, _ := h.messages.GetByID(context.Background(), msg.ID)
	if stored.Status != channel.StatusRead {
		t.Fatalf("status = %s, want read", stored.Status)
	}
	if n := len(h.publisher.ofType(realtime.EventMessageStatus)); n != 1 {
		t.Fatalf("message.status events = %d, want 1", n)
	}
}

func TestHandleFailedStatusCarriesReason(t *testing.T) {
	h := newHarness(t)
	p := h.seedPlatform(t, uuid.New(), channel.WhatsApp, "PN1")
	last := h.now.Add(-time.Hour)
	conv := h.seedConversation(t, p, "628111", &last)

	msg, err := h.dispatcher.Send(context.Background(), conv, SendRequest{Content: channel.Content{Text: "hello"}})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	body := fmt.Sprintf(`{"object":"whatsapp_business_account","entry":[{"id":"WABA1","changes":[{"field":"messages","value":{
		"metadata":{"phone_number_id":"PN1"},
		"statuses":[{"id":%q,"status":"failed","timestamp":"1700000100","recipient_id":"628111",
			"errors":[{"code":131026,"title":"Message undeliverable"}]}]}}]}]}`, *msg.PlatformMessageID)
	if _, err := h.deliver(t, channel.WhatsApp, body); err != nil {
		t.Fatalf("deliver: %v", err)
	}

	stored, _ := h.messages.GetByID(context.Background(), msg.ID)
	if stored.Status != channel.StatusFailed || stored.FailureReason != "131026: Message undeliverable" {
		t.Fatalf("message = %s %q", stored.Status, stored.FailureReason)
	}
}

func TestHandleMessengerReadWatermark(t *testing.T) {
	h := newHarness(t)
	p := h.seedPlatform(t, uuid.New(), channel.Facebook, "PAGE1")

	inboundAt := h.now.Add(-time.Hour).UnixMilli()
	if _, err := h.deliver(t, channel.Facebook, messengerMessage("PAGE1", "u123", "m_1", inboundAt, "hello")); err != nil {
		t.Fatalf("inbound: %v", err)
	}
	convs, _ := h.convs.List(context.Background(), repositories.ConversationFilter{TenantID: p.TenantID})
	if len(convs) != 1 {
		t.Fatalf("conversations = %d", len(convs))
	}

	msg, err := h.dispatcher.Send(context.Background(), &convs[0], SendRequest{Content: channel.Content{Text: "hi, how can we help?"}})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	watermark := h.now.Add(time.Minute).UnixMilli()
	read := fmt.Sprintf(`{"object":"page","entry":[{"id":"PAGE1","time":%d,"messaging":[{
		"sender":{"id":"u123"},"recipient":{"id":"PAGE1"},"timestamp":%d,"read":{"watermark":%d}}]}]}`,
		watermark, watermark, watermark)
	report, err := h.deliver(t, channel.Facebook, read)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if report.StatusUpdates != 1 {
		t.Fatalf("report = %+v", report)
	}

	stored, _ := h.messages.GetByID(context.Background(), msg.ID)
	if stored.Status != channel.StatusRead {
		t.Fatalf("status = %s, want read", stored.Status)
	}
}

func TestVerifySubscription(t *testing.T) {
	h := newHarness(t)

	challenge, err := h.ingest.VerifySubscription("subscribe", "verify-me", "1158201444")
	if err != nil || challenge != "1158201444" {
		t.Fatalf("challenge = %q, err = %v", challenge, err)
	}
	if _, err := h.ingest.VerifySubscription("subscribe", "nope", "1"); !errors.Is(err, ErrVerificationFailed) {
		t.Fatalf("err = %v, want ErrVerificationFailed", err)
	}
	if _, err := h.ingest.VerifySubscription("unsubscribe", "verify-me", "1"); !errors.Is(err, ErrVerificationFailed) {
		t.Fatalf("err = %v, want ErrVerificationFailed", err)
	}
}
