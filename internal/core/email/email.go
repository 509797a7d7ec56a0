package email

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// Message is one outgoing email
type Message struct {
	To      []string
	Subject string
	HTML    string
	Text    string
}

// Provider sends email through a transactional email API
type Provider interface {
	Send(ctx context.Context, msg Message) error
	Name() string
}

// Sender identifies the From address
type Sender struct {
	Email string
	Name  string
}

// NewProvider builds the provider named by name ("resend" or "brevo")
func NewProvider(name, apiKey string, from Sender) (Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("email API key is required")
	}
	if from.Email == "" {
		return nil, fmt.Errorf("sender address is required")
	}
	client := &http.Client{Timeout: 15 * time.Second}

	switch name {
	case "resend":
		return &ResendProvider{apiKey: apiKey, from: from, baseURL: resendURL, httpClient: client}, nil
	case "brevo":
		return &BrevoProvider{apiKey: apiKey, from: from, baseURL: brevoURL, httpClient: client}, nil
	default:
		return nil, fmt.Errorf("unsupported email provider: %s", name)
	}
}
