package auth

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/MuhamadAgungGumelar/omnichannel-inbox-be/internal/core/tenant"
)

func TestValidateAccessToken(t *testing.T) {
	svc := NewJWTService("secret")
	tenantID := uuid.NewString()

	token, err := svc.GenerateAccessToken(&TokenClaims{UserID: "u1", Role: "agent", TenantID: tenantID})
	if err != nil {
		t.Fatal(err)
	}

	claims, err := svc.ValidateAccessToken(token)
	if err != nil {
		t.Fatalf("ValidateAccessToken: %v", err)
	}
	if claims.TenantID != tenantID || claims.Role != "agent" {
		t.Fatalf("claims = %+v", claims)
	}

	if got, err := svc.TenantFromToken(token); err != nil || got != tenantID {
		t.Fatalf("TenantFromToken = %q, %v", got, err)
	}

	if _, err := NewJWTService("other").ValidateAccessToken(token); err == nil {
		t.Fatal("token signed with another secret must fail")
	}

	noTenant, _ := svc.GenerateAccessToken(&TokenClaims{UserID: "u1"})
	if _, err := svc.ValidateAccessToken(noTenant); err == nil {
		t.Fatal("token without tenant_id must fail")
	}
}

func TestAuthMiddleware(t *testing.T) {
	svc := NewJWTService("secret")
	tenantID := uuid.New()
	token, _ := svc.GenerateAccessToken(&TokenClaims{UserID: "u1", Role: "admin", TenantID: tenantID.String()})

	app := fiber.New()
	app.Get("/me", AuthMiddleware(svc), RequireRole("admin"), func(c *fiber.Ctx) error {
		tc, err := tenant.FromFiber(c)
		if err != nil {
			return err
		}
		return c.SendString(tc.TenantID.String())
	})

	cases := []struct {
		name   string
		header string
		status int
	}{
		{"missing", "", fiber.StatusUnauthorized},
		{"malformed", "Token abc", fiber.StatusUnauthorized},
		{"invalid", "Bearer abc", fiber.StatusUnauthorized},
		{"valid", "Bearer " + token, fiber.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/me", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			resp, err := app.Test(req)
			if err != nil {
				t.Fatal(err)
			}
			if resp.StatusCode != tc.status {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tc.status)
			}
		})
	}

	agentToken, _ := svc.GenerateAccessToken(&TokenClaims{UserID: "u2", Role: "agent", TenantID: tenantID.String()})
	req := httptest.NewRequest("GET", "/me", nil)
	req.Header.Set("Authorization", "Bearer "+agentToken)
	resp, _ := app.Test(req)
	if resp.StatusCode != fiber.StatusForbidden {
		t.Fatalf("agent status = %d, want 403", resp.StatusCode)
	}
}
