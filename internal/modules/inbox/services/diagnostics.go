package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/MuhamadAgungGumelar/omnichannel-inbox-be/internal/core/channel"
	"github.com/MuhamadAgungGumelar/omnichannel-inbox-be/internal/modules/inbox/models"
	"github.com/MuhamadAgungGumelar/omnichannel-inbox-be/internal/modules/inbox/repositories"
)

// ProbeRequest asks diagnostics to send a real message
type ProbeRequest struct {
	To   string `json:"probe_to"`
	Text string `json:"text"`
}

// ProbeResult is the classified outcome of the probe send. Outcome is
// empty when the send was refused before reaching the platform for a
// reason the platform never saw.
type ProbeResult struct {
	To                string          `json:"to"`
	Sent              bool            `json:"sent"`
	Outcome           channel.Outcome `json:"outcome,omitempty"`
	PlatformMessageID string          `json:"platform_message_id,omitempty"`
	Error             string          `json:"error,omitempty"`
}

// DiagnosticReport is the state of one platform connection
type DiagnosticReport struct {
	PlatformID            uuid.UUID                 `json:"platform_id"`
	Type                  channel.Type              `json:"type"`
	ExternalID            string                    `json:"external_id"`
	Name                  string                    `json:"name"`
	Active                bool                      `json:"active"`
	DeactivationReason    models.DeactivationReason `json:"deactivation_reason,omitempty"`
	TokenExpiresAt        *time.Time                `json:"token_expires_at,omitempty"`
	TokenValid            bool                      `json:"token_valid"`
	TokenError            string                    `json:"token_error,omitempty"`
	Profile               *channel.PlatformProfile  `json:"profile,omitempty"`
	PendingReconciliation int64                     `json:"pending_reconciliation"`
	Probe                 *ProbeResult              `json:"probe,omitempty"`
	CheckedAt             time.Time                 `json:"checked_at"`
}

// Diagnostics checks a connection end to end: token, profile and an
// optional probe send.
type Diagnostics struct {
	platforms  repositories.PlatformRepo
	messages   repositories.MessageRepo
	tokens     *TokenManager
	dispatcher *Dispatcher
}

func NewDiagnostics(platforms repositories.PlatformRepo, messages repositories.MessageRepo, tokens *TokenManager, dispatcher *Dispatcher) *Diagnostics {
	return &Diagnostics{platforms: platforms, messages: messages, tokens: tokens, dispatcher: dispatcher}
}

// Check runs the diagnostics. tenantID scopes the lookup; uuid.Nil skips
// the tenant check (operator CLI).
func (d *Diagnostics) Check(ctx context.Context, tenantID, platformID uuid.UUID, probe *ProbeRequest) (*DiagnosticReport, error) {
	var (
		p   *models.Platform
		err error
	)
	if tenantID == uuid.Nil {
		p, err = d.platforms.GetByID(ctx, platformID)
	} else {
		p, err = d.platforms.GetForTenant(ctx, tenantID, platformID)
	}
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, ErrPlatformNotFound
	}
	if err != nil {
		return nil, err
	}

	report := &DiagnosticReport{
		PlatformID: p.ID,
		Type:       p.Type,
		ExternalID: p.ExternalID,
		Name:       p.Name,
		CheckedAt:  time.Now().UTC(),
	}

	profile, verr := d.tokens.Verify(ctx, p.ID)
	if verr != nil {
		report.TokenError = verr.Error()
	} else {
		report.TokenValid = true
		report.Profile = profile
	}

	// reload: Verify may have deactivated the platform
	if fresh, err := d.platforms.GetByID(ctx, p.ID); err == nil {
		p = fresh
	}
	report.Active = p.Active
	report.DeactivationReason = p.DeactivationReason
	report.TokenExpiresAt = p.TokenExpiresAt

	if n, err := d.messages.CountNeedingReconciliation(ctx, p.ID); err == nil {
		report.PendingReconciliation = n
	}

	if probe != nil && probe.To != "" && report.TokenValid {
		text := probe.Text
		if text == "" {
			text = "Connection test"
		}
		result := &ProbeResult{To: probe.To}
		msg, err := d.dispatcher.SendToCustomer(ctx, p.TenantID, p.ID, probe.To, SendRequest{
			Content: channel.Content{Type: channel.ContentText, Text: text},
		})
		if err != nil {
			result.Error = err.Error()
			result.Outcome = classifySendOutcome(err)
		} else {
			result.Sent = true
			result.Outcome = channel.OutcomeAccepted
			if msg.PlatformMessageID != nil {
				result.PlatformMessageID = *msg.PlatformMessageID
			}
		}
		report.Probe = result
	}
	return report, nil
}

func classifySendOutcome(err error) channel.Outcome {
	var sendErr *SendError
	switch {
	case errors.As(err, &sendErr):
		return sendErr.Outcome
	case errors.Is(err, ErrOutsideMessagingWindow):
		return channel.OutcomeWindowExpired
	case errors.Is(err, ErrTokenExpired), errors.Is(err, ErrTokenRevoked):
		return channel.OutcomeAuthFailed
	}
	return ""
}
