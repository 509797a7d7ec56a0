package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/MuhamadAgungGumelar/omnichannel-inbox-be/internal/core/audit"
	"github.com/MuhamadAgungGumelar/omnichannel-inbox-be/internal/core/channel"
	"github.com/MuhamadAgungGumelar/omnichannel-inbox-be/internal/core/realtime"
	"github.com/MuhamadAgungGumelar/omnichannel-inbox-be/internal/modules/inbox/models"
)

func TestConnectCreatesActivePlatform(t *testing.T) {
	h := newHarness(t)
	h.graph.profile = &channel.PlatformProfile{ID: "PN1", DisplayPhoneNumber: "+62 811", VerifiedName: "Toko Dewi", QualityRating: "GREEN"}
	tenantID := uuid.New()

	p, err := h.tokens.Connect(context.Background(), ConnectRequest{
		TenantID:    tenantID,
		Type:        channel.WhatsApp,
		ExternalID:  "PN1",
		AccessToken: "EAAG-new",
		Actor:       "user-1",
	})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if !p.Active || p.Name != "Toko Dewi" || p.AccessToken != "EAAG-new" {
		t.Fatalf("platform = %+v", p)
	}
	if p.CredentialAttributes()["quality_rating"] != "GREEN" {
		t.Fatalf("credentials = %s", p.Credentials)
	}

	var n int64
	h.db.Model(&audit.AuditLog{}).Where("action = ?", audit.ActionPlatformConnected).Count(&n)
	if n != 1 {
		t.Fatalf("connect audit entries = %d, want 1", n)
	}
}

func TestConnectRefusesAccountBoundElsewhere(t *testing.T) {
	h := newHarness(t)
	h.seedPlatform(t, uuid.New(), channel.Facebook, "PAGE1")

	_, err := h.tokens.Connect(context.Background(), ConnectRequest{
		TenantID:    uuid.New(),
		Type:        channel.Facebook,
		ExternalID:  "PAGE1",
		AccessToken: "EAAG-other",
	})
	if !errors.Is(err, ErrPlatformBound) {
		t.Fatalf("err = %v, want ErrPlatformBound", err)
	}
}

func TestConnectReactivatesAfterInvalidation(t *testing.T) {
	h := newHarness(t)
	p := h.seedPlatform(t, uuid.New(), channel.Facebook, "PAGE1")
	if err := h.tokens.Invalidate(context.Background(), p.ID, models.ReasonTokenRevoked); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}

	again, err := h.tokens.Connect(context.Background(), ConnectRequest{
		TenantID:    p.TenantID,
		Type:        channel.Facebook,
		ExternalID:  "PAGE1",
		AccessToken: "EAAG-fresh",
	})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if again.ID != p.ID || !again.Active || again.AccessToken != "EAAG-fresh" || again.DeactivationReason != "" {
		t.Fatalf("platform = %+v", again)
	}
	if _, err := h.tokens.EnsureValid(context.Background(), p.ID); err != nil {
		t.Fatalf("EnsureValid after reconnect: %v", err)
	}
}

func TestConnectRejectsBadTokens(t *testing.T) {
	h := newHarness(t)
	req := ConnectRequest{TenantID: uuid.New(), Type: channel.Facebook, ExternalID: "PAGE1", AccessToken: "EAAG"}

	h.graph.profile = &channel.PlatformProfile{ID: "PAGE2"}
	if _, err := h.tokens.Connect(context.Background(), req); !errors.Is(err, ErrCredentialMismatch) {
		t.Fatalf("err = %v, want ErrCredentialMismatch", err)
	}

	h.graph.profileErr = &channel.APIError{StatusCode: 400, Code: 190, Message: "Invalid OAuth access token"}
	if _, err := h.tokens.Connect(context.Background(), req); !errors.Is(err, ErrTokenRejected) {
		t.Fatalf("err = %v, want ErrTokenRejected", err)
	}

	bad := req
	bad.Type = "telegram"
	if _, err := h.tokens.Connect(context.Background(), bad); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
}

func TestEnsureValidExpiresStoredToken(t *testing.T) {
	h := newHarness(t)
	p := h.seedPlatform(t, uuid.New(), channel.Instagram, "IG1")
	expired := h.now.Add(-time.Minute)
	if err := h.db.Model(&models.Platform{}).Where("id = ?", p.ID).Update("token_expires_at", expired).Error; err != nil {
		t.Fatal(err)
	}

	if _, err := h.tokens.EnsureValid(context.Background(), p.ID); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("err = %v, want ErrTokenExpired", err)
	}
	stored, _ := h.platforms.GetByID(context.Background(), p.ID)
	if stored.Active || stored.DeactivationReason != models.ReasonTokenExpired {
		t.Fatalf("platform active=%v reason=%s", stored.Active, stored.DeactivationReason)
	}
	if h.graph.profiles != 0 {
		t.Fatal("EnsureValid must not call the platform")
	}
}

func TestInvalidateIsIdempotent(t *testing.T) {
	h := newHarness(t)
	p := h.seedPlatform(t, uuid.New(), channel.WhatsApp, "PN1")

	for i := 0; i < 3; i++ {
		if err := h.tokens.Invalidate(context.Background(), p.ID, models.ReasonTokenRevoked); err != nil {
			t.Fatalf("Invalidate #%d: %v", i, err)
		}
	}
	if n := len(h.publisher.ofType(realtime.EventPlatformDeactivated)); n != 1 {
		t.Fatalf("platform.deactivated events = %d, want 1", n)
	}
	var n int64
	h.db.Model(&audit.AuditLog{}).Where("action = ?", audit.ActionPlatformDeactivated).Count(&n)
	if n != 1 {
		t.Fatalf("deactivation audit entries = %d, want 1", n)
	}

	if _, err := h.tokens.EnsureValid(context.Background(), p.ID); !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("err = %v, want ErrTokenRevoked", err)
	}
	if err := h.tokens.Invalidate(context.Background(), uuid.New(), models.ReasonTokenRevoked); !errors.Is(err, ErrPlatformNotFound) {
		t.Fatalf("err = %v, want ErrPlatformNotFound", err)
	}
}

func TestVerifyInvalidatesOnAuthError(t *testing.T) {
	h := newHarness(t)
	p := h.seedPlatform(t, uuid.New(), channel.Facebook, "PAGE1")
	h.graph.profileErr = &channel.APIError{StatusCode: 401, Code: 190, Subcode: 463, Message: "Session has expired"}

	if _, err := h.tokens.Verify(context.Background(), p.ID); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("err = %v, want ErrTokenExpired", err)
	}
	stored, _ := h.platforms.GetByID(context.Background(), p.ID)
	if stored.Active {
		t.Fatal("platform still active after auth failure")
	}
}

func TestVerifyKeepsPlatformOnOutage(t *testing.T) {
	h := newHarness(t)
	p := h.seedPlatform(t, uuid.New(), channel.Facebook, "PAGE1")
	h.graph.profileErr = &channel.APIError{StatusCode: 500, Code: 2, Message: "Service temporarily unavailable"}

	if _, err := h.tokens.Verify(context.Background(), p.ID); !errors.Is(err, ErrPlatformUnavailable) {
		t.Fatalf("err = %v, want ErrPlatformUnavailable", err)
	}
	stored, _ := h.platforms.GetByID(context.Background(), p.ID)
	if !stored.Active {
		t.Fatal("an outage must not deactivate the platform")
	}
}

func TestSweepChecksActivePlatforms(t *testing.T) {
	h := newHarness(t)
	h.seedPlatform(t, uuid.New(), channel.Facebook, "PAGE1")
	revoked := h.seedPlatform(t, uuid.New(), channel.Instagram, "IG1")
	// IG1 answers with a revoked token
	api := &scriptedProfiles{fakeGraph: h.graph, fail: map[string]error{
		"IG1": &channel.APIError{StatusCode: 400, Code: 190, Message: "revoked"},
	}}
	h.tokens.graph = api

	report, err := h.tokens.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if report.Checked != 2 || report.Invalidated != 1 || report.Errors != 0 {
		t.Fatalf("report = %+v", report)
	}
	stored, _ := h.platforms.GetByID(context.Background(), revoked.ID)
	if stored.Active {
		t.Fatal("revoked platform still active")
	}
}

type scriptedProfiles struct {
	*fakeGraph
	fail map[string]error
}

func (s *scriptedProfiles) Profile(ctx context.Context, creds channel.Credentials) (*channel.PlatformProfile, error) {
	if err := s.fail[creds.ExternalID]; err != nil {
		return nil, err
	}
	return s.fakeGraph.Profile(ctx, creds)
}
