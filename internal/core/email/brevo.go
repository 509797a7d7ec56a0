package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

const brevoURL = "https://api.brevo.com/v3/smtp/email"

// BrevoProvider sends email via Brevo (formerly Sendinblue)
type BrevoProvider struct {
	apiKey     string
	from       Sender
	baseURL    string
	httpClient *http.Client
}

type brevoEmailRequest struct {
	Sender      brevoContact   `json:"sender"`
	To          []brevoContact `json:"to"`
	Subject     string         `json:"subject"`
	HTMLContent string         `json:"htmlContent,omitempty"`
	TextContent string         `json:"textContent,omitempty"`
}

type brevoContact struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

func (p *BrevoProvider) Send(ctx context.Context, msg Message) error {
	to := make([]brevoContact, 0, len(msg.To))
	for _, addr := range msg.To {
		to = append(to, brevoContact{Email: addr})
	}

	payload, err := json.Marshal(brevoEmailRequest{
		Sender:      brevoContact{Email: p.from.Email, Name: p.from.Name},
		To:          to,
		Subject:     msg.Subject,
		HTMLContent: msg.HTML,
		TextContent: msg.Text,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api-key", p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("brevo API error (status %d): %s", resp.StatusCode, body)
	}
	return nil
}

func (p *BrevoProvider) Name() string {
	return "brevo"
}
