package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/MuhamadAgungGumelar/omnichannel-inbox-be/internal/core/email"
	"github.com/MuhamadAgungGumelar/omnichannel-inbox-be/internal/core/realtime"
)

var ErrQueueFull = errors.New("alert queue full")

// Alert is a channel that stopped working and needs an operator
type Alert struct {
	TenantID   string
	PlatformID string
	Channel    string
	Reason     string
	At         time.Time
}

type deactivationPayload struct {
	PlatformID string `json:"platform_id"`
	Type       string `json:"type"`
	Reason     string `json:"reason"`
}

// AlertSink emails operators when a platform is deactivated. It is a
// realtime sink, so only the instance that published the event sends.
type AlertSink struct {
	provider   email.Provider
	recipients []string
	timeout    time.Duration

	mu     sync.Mutex
	closed bool
	queue  chan Alert
	done   chan struct{}
}

func NewAlertSink(provider email.Provider, recipients []string, queueSize int) *AlertSink {
	if queueSize <= 0 {
		queueSize = 32
	}
	return &AlertSink{
		provider:   provider,
		recipients: recipients,
		timeout:    30 * time.Second,
		queue:      make(chan Alert, queueSize),
		done:       make(chan struct{}),
	}
}

// Start runs the delivery worker until Close
func (s *AlertSink) Start() {
	go func() {
		defer close(s.done)
		for alert := range s.queue {
			s.deliver(alert)
		}
	}()
}

// Close stops accepting alerts and waits for queued ones to go out
func (s *AlertSink) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.queue)
	s.mu.Unlock()
	<-s.done
}

// Publish queues an alert for platform.deactivated and ignores the rest.
// It never blocks the publisher.
func (s *AlertSink) Publish(ctx context.Context, ev realtime.Event) error {
	if ev.Type != realtime.EventPlatformDeactivated {
		return nil
	}
	var p deactivationPayload
	if err := json.Unmarshal(ev.Payload, &p); err != nil {
		return fmt.Errorf("decode deactivation: %w", err)
	}
	alert := Alert{
		TenantID:   ev.TenantID,
		PlatformID: p.PlatformID,
		Channel:    p.Type,
		Reason:     p.Reason,
		At:         ev.OccurredAt,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	select {
	case s.queue <- alert:
		return nil
	default:
		return ErrQueueFull
	}
}

func (s *AlertSink) deliver(alert Alert) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	msg := email.Message{
		To:      s.recipients,
		Subject: fmt.Sprintf("Reconnect required: %s channel disconnected", alert.Channel),
		HTML:    formatAlertBody(alert),
		Text: fmt.Sprintf("Platform %s (%s) of tenant %s was deactivated: %s. Reconnect it from the dashboard.",
			alert.PlatformID, alert.Channel, alert.TenantID, alert.Reason),
	}
	if err := s.provider.Send(ctx, msg); err != nil {
		log.Error().Err(err).Str("platform_id", alert.PlatformID).Str("provider", s.provider.Name()).Msg("❌ Failed to send reconnect alert")
		return
	}
	log.Info().Str("platform_id", alert.PlatformID).Int("recipients", len(s.recipients)).Msg("📨 Reconnect alert sent")
}

func formatAlertBody(alert Alert) string {
	at := alert.At
	if at.IsZero() {
		at = time.Now()
	}
	rows := []struct{ label, value string }{
		{"Channel", alert.Channel},
		{"Platform", alert.PlatformID},
		{"Tenant", alert.TenantID},
		{"Reason", alert.Reason},
		{"Time", at.UTC().Format(time.RFC1123)},
	}

	body := `<!DOCTYPE html>
<html>
<head>
    <meta charset="utf-8">
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
        .container { max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { background: #E53935; color: white; padding: 20px; text-align: center; border-radius: 5px 5px 0 0; }
        .content { padding: 20px; background: #f9f9f9; border: 1px solid #ddd; border-top: none; }
        .data-item { padding: 8px; background: white; margin: 5px 0; border-radius: 3px; }
        .label { font-weight: bold; color: #555; }
    </style>
</head>
<body>
    <div class="container">
        <div class="header"><h2>Channel disconnected</h2></div>
        <div class="content">
            <p>The platform token is no longer valid. Messages on this channel cannot be sent until it is reconnected.</p>`
	for _, r := range rows {
		body += fmt.Sprintf(`
            <div class="data-item"><span class="label">%s:</span> %s</div>`, r.label, html.EscapeString(r.value))
	}
	body += `
        </div>
    </div>
</body>
</html>`
	return body
}
