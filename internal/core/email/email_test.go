package email

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type captured struct {
	header http.Header
	body   map[string]interface{}
}

func captureServer(t *testing.T, status int, got *captured) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.header = r.Header.Clone()
		raw, _ := io.ReadAll(r.Body)
		json.Unmarshal(raw, &got.body)
		w.WriteHeader(status)
		w.Write([]byte(`{"id":"msg_1"}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestResendSend(t *testing.T) {
	var got captured
	srv := captureServer(t, http.StatusOK, &got)

	p, err := NewProvider("resend", "re_key", Sender{Email: "alerts@example.com", Name: "Inbox"})
	if err != nil {
		t.Fatal(err)
	}
	p.(*ResendProvider).baseURL = srv.URL

	err = p.Send(context.Background(), Message{To: []string{"ops@example.com"}, Subject: "Reconnect", HTML: "<p>hi</p>"})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got.header.Get("Authorization") != "Bearer re_key" {
		t.Fatalf("auth header = %q", got.header.Get("Authorization"))
	}
	if got.body["from"] != "Inbox <alerts@example.com>" || got.body["subject"] != "Reconnect" {
		t.Fatalf("body = %v", got.body)
	}
}

func TestBrevoSendError(t *testing.T) {
	var got captured
	srv := captureServer(t, http.StatusBadRequest, &got)

	p, _ := NewProvider("brevo", "xkeysib", Sender{Email: "alerts@example.com"})
	p.(*BrevoProvider).baseURL = srv.URL

	err := p.Send(context.Background(), Message{To: []string{"a@example.com", "b@example.com"}, Subject: "x", Text: "y"})
	if err == nil || !strings.Contains(err.Error(), "status 400") {
		t.Fatalf("err = %v, want status 400", err)
	}
	if got.header.Get("api-key") != "xkeysib" {
		t.Fatalf("api-key header = %q", got.header.Get("api-key"))
	}
	if to, _ := got.body["to"].([]interface{}); len(to) != 2 {
		t.Fatalf("to = %v", got.body["to"])
	}
}

func TestNewProviderValidates(t *testing.T) {
	if _, err := NewProvider("resend", "", Sender{Email: "a@example.com"}); err == nil {
		t.Fatal("missing key accepted")
	}
	if _, err := NewProvider("mailgun", "k", Sender{Email: "a@example.com"}); err == nil {
		t.Fatal("unknown provider accepted")
	}
}
