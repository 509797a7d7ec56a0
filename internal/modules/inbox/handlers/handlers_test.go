package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm/logger"

	"github.com/MuhamadAgungGumelar/omnichannel-inbox-be/internal/core/analytics"
	"github.com/MuhamadAgungGumelar/omnichannel-inbox-be/internal/core/audit"
	"github.com/MuhamadAgungGumelar/omnichannel-inbox-be/internal/core/auth"
	"github.com/MuhamadAgungGumelar/omnichannel-inbox-be/internal/core/channel"
	"github.com/MuhamadAgungGumelar/omnichannel-inbox-be/internal/core/export"
	"github.com/MuhamadAgungGumelar/omnichannel-inbox-be/internal/modules/inbox/models"
	"github.com/MuhamadAgungGumelar/omnichannel-inbox-be/internal/modules/inbox/repositories"
	"github.com/MuhamadAgungGumelar/omnichannel-inbox-be/internal/modules/inbox/services"
	"github.com/MuhamadAgungGumelar/omnichannel-inbox-be/internal/shared/database"
)

const (
	appSecret   = "app-secret"
	verifyToken = "verify-me"
	jwtSecret   = "jwt-secret"
)

type stubGraph struct {
	mu      sync.Mutex
	sendErr error
	sent    []channel.OutboundMessage
}

func (g *stubGraph) Send(ctx context.Context, creds channel.Credentials, msg channel.OutboundMessage) (channel.SendResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sent = append(g.sent, msg)
	if g.sendErr != nil {
		return channel.SendResult{}, g.sendErr
	}
	return channel.SendResult{MessageID: fmt.Sprintf("wamid.%d", len(g.sent))}, nil
}

func (g *stubGraph) Profile(ctx context.Context, creds channel.Credentials) (*channel.PlatformProfile, error) {
	if creds.Channel == channel.WhatsApp {
		return &channel.PlatformProfile{ID: creds.ExternalID, DisplayPhoneNumber: "+62 811-234", VerifiedName: "Toko Dewi"}, nil
	}
	return &channel.PlatformProfile{ID: creds.ExternalID, Name: "Toko Dewi", Username: "tokodewi"}, nil
}

type testServer struct {
	app      *fiber.App
	graph    *stubGraph
	jwt      *auth.JWTService
	tenantID uuid.UUID
	token    string
}

func newTestServer(t *testing.T) *testServer {
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

	platformRepo := repositories.NewPlatformRepo(db)
	customerRepo := repositories.NewCustomerRepo(db)
	conversationRepo := repositories.NewConversationRepo(db)
	messageRepo := repositories.NewMessageRepo(db)
	auditService := audit.NewService(db)
	graph := &stubGraph{}
	locks := services.NewConversationLocks()

	tokens := services.NewTokenManager(platformRepo, graph, auditService, nil)
	identity := services.NewIdentityResolver(customerRepo, conversationRepo)
	policy := services.NewSendPolicy(messageRepo, 24*time.Hour)
	dispatcher := services.NewDispatcher(messageRepo, conversationRepo, customerRepo, identity, tokens, policy, graph, nil, locks,
		services.RetryConfig{MaxAttempts: 1, AttemptTimeout: time.Second})
	ingest := services.NewIngestService(platformRepo, conversationRepo, messageRepo, identity, services.NewNormalizer(messageRepo), tokens, auditService, nil, locks,
		services.WebhookConfig{
			Secrets:     map[channel.Type]string{channel.Facebook: appSecret, channel.Instagram: appSecret, channel.WhatsApp: appSecret},
			VerifyToken: verifyToken,
		})
	conversations := services.NewConversationService(conversationRepo, messageRepo, customerRepo, auditService, nil, locks)

	app := fiber.New()
	jwtService := auth.NewJWTService(jwtSecret)
	RegisterRoutes(app, Handlers{
		Health:       NewHealthHandler(db),
		Webhook:      NewWebhookHandler(ingest),
		Platform:     NewPlatformHandler(platformRepo, tokens, services.NewDiagnostics(platformRepo, messageRepo, tokens, dispatcher), dispatcher),
		Conversation: NewConversationHandler(conversations, dispatcher, services.NewSuggestService(conversations, platformRepo, nil)),
		Audit:        NewAuditHandler(auditService),
		Report: NewReportHandler(
			services.NewStatsService(analytics.NewAggregator(db), messageRepo),
			services.NewTranscriptService(conversations, platformRepo, export.NewService()),
		),
	}, auth.AuthMiddleware(jwtService))

	s := &testServer{app: app, graph: graph, jwt: jwtService}
	s.actAs(t, uuid.New())
	return s
}

// actAs switches the bearer token to an agent of tenantID
func (s *testServer) actAs(t *testing.T, tenantID uuid.UUID) {
	t.Helper()
	token, err := s.jwt.GenerateAccessToken(&auth.TokenClaims{UserID: "agent-1", Role: "agent", TenantID: tenantID.String()})
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	s.tenantID = tenantID
	s.token = token
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Authorization", "Bearer "+s.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return s.send(t, req)
}

func (s *testServer) send(t *testing.T, req *http.Request) (*http.Response, []byte) {
	t.Helper()
	resp, err := s.app.Test(req, 5000)
	if err != nil {
		t.Fatalf("%s %s: %v", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	return resp, data
}

func (s *testServer) webhook(t *testing.T, platform, body, signature string) (*http.Response, []byte) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/"+platform, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(signatureHeader, signature)
	return s.send(t, req)
}

func (s *testServer) connect(t *testing.T, typ, externalID string) models.Platform {
	t.Helper()
	resp, body := s.do(t, http.MethodPost, "/platforms/connect", ConnectPlatformRequest{
		Type:        typ,
		ExternalID:  externalID,
		AccessToken: "EAAG-" + externalID,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("connect status = %d body = %s", resp.StatusCode, body)
	}
	var p models.Platform
	if err := json.Unmarshal(body, &p); err != nil {
		t.Fatalf("decode platform: %v", err)
	}
	return p
}

func inboundWhatsApp(phoneID, from, mid, text string, at time.Time) string {
	return fmt.Sprintf(`{"object":"whatsapp_business_account","entry":[{"id":"WABA1","changes":[{"field":"messages","value":{
		"messaging_product":"whatsapp",
		"metadata":{"display_phone_number":"628112340000","phone_number_id":%q},
		"contacts":[{"profile":{"name":"Budi"},"wa_id":%q}],
		"messages":[{"from":%q,"id":%q,"timestamp":"%d","type":"text","text":{"body":%q}}]}}]}]}`,
		phoneID, from, from, mid, at.Unix(), text)
}

func TestWebhookSubscriptionChallenge(t *testing.T) {
	s := newTestServer(t)

	resp, body := s.send(t, httptest.NewRequest(http.MethodGet, "/webhooks/whatsapp?hub.mode=subscribe&hub.verify_token="+verifyToken+"&hub.challenge=1158201444", nil))
	if resp.StatusCode != http.StatusOK || string(body) != "1158201444" {
		t.Fatalf("status = %d body = %s", resp.StatusCode, body)
	}

	resp, _ = s.send(t, httptest.NewRequest(http.MethodGet, "/webhooks/whatsapp?hub.mode=subscribe&hub.verify_token=wrong&hub.challenge=1", nil))
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("wrong token status = %d", resp.StatusCode)
	}

	resp, _ = s.send(t, httptest.NewRequest(http.MethodGet, "/webhooks/telegram?hub.mode=subscribe", nil))
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown platform status = %d", resp.StatusCode)
	}
}

func TestWebhookRejectsUnsignedAndMalformed(t *testing.T) {
	s := newTestServer(t)
	payload := inboundWhatsApp("PN1", "628111", "wamid.1", "hi", time.Now())

	resp, body := s.webhook(t, "whatsapp", payload, "sha256=deadbeef")
	if resp.StatusCode != http.StatusUnauthorized || !strings.Contains(string(body), "verification_failed") {
		t.Fatalf("bad signature: status = %d body = %s", resp.StatusCode, body)
	}

	garbage := `{"object":`
	resp, _ = s.webhook(t, "whatsapp", garbage, channel.Sign([]byte(garbage), appSecret))
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("malformed: status = %d", resp.StatusCode)
	}
}

func TestDashboardRequiresToken(t *testing.T) {
	s := newTestServer(t)
	resp, _ := s.send(t, httptest.NewRequest(http.MethodGet, "/conversations", nil))
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
}

func TestInboxFlow(t *testing.T) {
	s := newTestServer(t)
	p := s.connect(t, "whatsapp", "PN1")
	if !p.Active || p.Name != "Toko Dewi" {
		t.Fatalf("platform = %+v", p)
	}

	resp, body := s.do(t, http.MethodGet, "/platforms", nil)
	if resp.StatusCode != http.StatusOK || strings.Contains(string(body), "EAAG-PN1") {
		t.Fatalf("list platforms: status = %d body = %s", resp.StatusCode, body)
	}

	payload := inboundWhatsApp("PN1", "628111", "wamid.IN1", "is the blue one in stock?", time.Now().Add(-time.Minute))
	resp, body = s.webhook(t, "whatsapp", payload, channel.Sign([]byte(payload), appSecret))
	var report services.IngestReport
	json.Unmarshal(body, &report)
	if resp.StatusCode != http.StatusOK || report.Stored != 1 {
		t.Fatalf("webhook: status = %d body = %s", resp.StatusCode, body)
	}

	// redelivery is acknowledged but stores nothing
	resp, body = s.webhook(t, "whatsapp", payload, channel.Sign([]byte(payload), appSecret))
	json.Unmarshal(body, &report)
	if resp.StatusCode != http.StatusOK || report.Stored != 0 || report.Duplicates != 1 {
		t.Fatalf("redelivery: status = %d body = %s", resp.StatusCode, body)
	}

	resp, body = s.do(t, http.MethodGet, "/conversations?status=open", nil)
	var conversations []models.Conversation
	json.Unmarshal(body, &conversations)
	if resp.StatusCode != http.StatusOK || len(conversations) != 1 {
		t.Fatalf("conversations: status = %d body = %s", resp.StatusCode, body)
	}
	convPath := "/conversations/" + conversations[0].ID.String()

	resp, body = s.do(t, http.MethodPost, convPath+"/messages", SendMessageRequest{Text: "Yes, ready to ship"})
	var sent SendResponse
	json.Unmarshal(body, &sent)
	if resp.StatusCode != http.StatusCreated || sent.Message == nil || sent.Message.Status != channel.StatusSent {
		t.Fatalf("send: status = %d body = %s", resp.StatusCode, body)
	}

	resp, body = s.do(t, http.MethodGet, convPath+"/messages", nil)
	var history []models.Message
	json.Unmarshal(body, &history)
	if resp.StatusCode != http.StatusOK || len(history) != 2 || history[0].Direction != models.DirectionInbound {
		t.Fatalf("history: status = %d body = %s", resp.StatusCode, body)
	}

	resp, body = s.do(t, http.MethodPatch, convPath+"/status", UpdateStatusRequest{Status: "closed"})
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), `"status":"closed"`) {
		t.Fatalf("close: status = %d body = %s", resp.StatusCode, body)
	}
	resp, _ = s.do(t, http.MethodPatch, convPath+"/status", UpdateStatusRequest{Status: "archived"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("invalid status: %d", resp.StatusCode)
	}

	resp, body = s.do(t, http.MethodPost, convPath+"/suggest-reply", nil)
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("suggest without provider: status = %d body = %s", resp.StatusCode, body)
	}

	resp, body = s.do(t, http.MethodGet, "/audit-logs?action="+audit.ActionConversationStatus, nil)
	var logs audit.AuditLogResponse
	json.Unmarshal(body, &logs)
	if resp.StatusCode != http.StatusOK || logs.TotalCount != 1 {
		t.Fatalf("audit logs: status = %d body = %s", resp.StatusCode, body)
	}
}

func TestSendErrorsMapToStatus(t *testing.T) {
	s := newTestServer(t)
	p := s.connect(t, "whatsapp", "PN1")
	path := "/platforms/" + p.ID.String() + "/messages"

	// no inbound message yet: free-form text is outside the session window
	resp, body := s.do(t, http.MethodPost, path, SendToCustomerRequest{ExternalID: "628999", SendMessageRequest: SendMessageRequest{Text: "promo"}})
	if resp.StatusCode != http.StatusUnprocessableEntity || !strings.Contains(string(body), "template_required") {
		t.Fatalf("outside window: status = %d body = %s", resp.StatusCode, body)
	}

	resp, body = s.do(t, http.MethodPost, path, SendToCustomerRequest{
		ExternalID:         "628999",
		SendMessageRequest: SendMessageRequest{Template: &TemplateRequest{Name: "promo_march", Language: "id"}},
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("template send: status = %d body = %s", resp.StatusCode, body)
	}

	s.graph.sendErr = &channel.APIError{StatusCode: 401, Code: 190, Subcode: 460, Message: "Error validating access token"}
	resp, body = s.do(t, http.MethodPost, path, SendToCustomerRequest{
		ExternalID:         "628999",
		SendMessageRequest: SendMessageRequest{Template: &TemplateRequest{Name: "promo_march", Language: "id"}},
	})
	var failed SendResponse
	json.Unmarshal(body, &failed)
	if resp.StatusCode != http.StatusConflict || failed.Code != "reconnect_required" || failed.Message == nil || failed.Message.Status != channel.StatusFailed {
		t.Fatalf("revoked token: status = %d body = %s", resp.StatusCode, body)
	}

	resp, body = s.do(t, http.MethodPost, path, SendToCustomerRequest{ExternalID: "628999", SendMessageRequest: SendMessageRequest{MediaURL: "https://cdn/x.png", MediaType: "hologram"}})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad media type: status = %d body = %s", resp.StatusCode, body)
	}

	resp, _ = s.do(t, http.MethodPost, "/conversations/"+uuid.NewString()+"/messages", SendMessageRequest{Text: "hi"})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown conversation: status = %d", resp.StatusCode)
	}
}

func TestPlatformQRCode(t *testing.T) {
	s := newTestServer(t)
	p := s.connect(t, "whatsapp", "PN1")

	resp, body := s.do(t, http.MethodGet, "/platforms/"+p.ID.String()+"/qr?size=128", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d body = %s", resp.StatusCode, body)
	}
	if resp.Header.Get("Content-Type") != "image/png" || !bytes.HasPrefix(body, []byte("\x89PNG")) {
		t.Fatalf("content type = %s", resp.Header.Get("Content-Type"))
	}
	if link := resp.Header.Get("X-Chat-Link"); link != "https://wa.me/62811234" {
		t.Fatalf("chat link = %s", link)
	}

	resp, _ = s.do(t, http.MethodGet, "/platforms/"+uuid.NewString()+"/qr", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown platform: status = %d", resp.StatusCode)
	}
}

func TestPlatformDiagnostics(t *testing.T) {
	s := newTestServer(t)
	p := s.connect(t, "instagram", "IG1")

	resp, body := s.do(t, http.MethodPost, "/platforms/"+p.ID.String()+"/diagnostics", services.ProbeRequest{To: "igsid-5", Text: "ping"})
	var report services.DiagnosticReport
	json.Unmarshal(body, &report)
	if resp.StatusCode != http.StatusOK || !report.TokenValid || report.Probe == nil || !report.Probe.Sent {
		t.Fatalf("status = %d body = %s", resp.StatusCode, body)
	}
}

func TestConnectConflicts(t *testing.T) {
	s := newTestServer(t)
	p := s.connect(t, "facebook", "PAGE1")

	s.actAs(t, uuid.New())
	resp, body := s.do(t, http.MethodPost, "/platforms/connect", ConnectPlatformRequest{Type: "facebook", ExternalID: "PAGE1", AccessToken: "EAAG-x"})
	if resp.StatusCode != http.StatusConflict || !strings.Contains(string(body), "platform_bound") {
		t.Fatalf("bound elsewhere: status = %d body = %s", resp.StatusCode, body)
	}

	// the other tenant cannot see or probe the page either
	resp, _ = s.do(t, http.MethodPost, "/platforms/"+p.ID.String()+"/diagnostics", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("foreign diagnostics: status = %d", resp.StatusCode)
	}

	resp, _ = s.do(t, http.MethodPost, "/platforms/connect", ConnectPlatformRequest{Type: "telegram", ExternalID: "x", AccessToken: "y"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("unknown type: status = %d", resp.StatusCode)
	}
}

func TestReportsAndTranscriptExport(t *testing.T) {
	s := newTestServer(t)
	s.connect(t, "whatsapp", "PN1")
	payload := inboundWhatsApp("PN1", "628111", "wamid.IN1", "halo", time.Now().Add(-time.Minute))
	if resp, body := s.webhook(t, "whatsapp", payload, channel.Sign([]byte(payload), appSecret)); resp.StatusCode != http.StatusOK {
		t.Fatalf("webhook: status = %d body = %s", resp.StatusCode, body)
	}

	resp, body := s.do(t, http.MethodGet, "/analytics/messages?period=last_7_days", nil)
	var report services.VolumeReport
	json.Unmarshal(body, &report)
	if resp.StatusCode != http.StatusOK || report.Inbound != 1 || len(report.Daily.Labels) != 7 {
		t.Fatalf("volume: status = %d body = %s", resp.StatusCode, body)
	}
	for _, q := range []string{"period=fortnight", "start_date=2025-01-01T00:00:00Z"} {
		if resp, _ := s.do(t, http.MethodGet, "/analytics/messages?"+q, nil); resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("%s: status = %d, want 400", q, resp.StatusCode)
		}
	}

	_, body = s.do(t, http.MethodGet, "/conversations", nil)
	var conversations []models.Conversation
	json.Unmarshal(body, &conversations)
	if len(conversations) != 1 {
		t.Fatalf("conversations = %s", body)
	}
	exportPath := "/conversations/" + conversations[0].ID.String() + "/export"

	resp, body = s.do(t, http.MethodGet, exportPath+"?format=pdf", nil)
	if resp.StatusCode != http.StatusOK || resp.Header.Get("Content-Type") != "application/pdf" || !bytes.HasPrefix(body, []byte("%PDF-")) {
		t.Fatalf("pdf export: status = %d type = %s", resp.StatusCode, resp.Header.Get("Content-Type"))
	}
	if !strings.Contains(resp.Header.Get("Content-Disposition"), conversations[0].ID.String()+".pdf") {
		t.Fatalf("disposition = %s", resp.Header.Get("Content-Disposition"))
	}

	if resp, _ := s.do(t, http.MethodGet, exportPath+"?format=csv", nil); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("csv export status = %d, want 400", resp.StatusCode)
	}

	s.actAs(t, uuid.New())
	if resp, _ := s.do(t, http.MethodGet, exportPath, nil); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("foreign export status = %d, want 404", resp.StatusCode)
	}
}
