package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/MuhamadAgungGumelar/omnichannel-inbox-be/internal/core/audit"
	"github.com/MuhamadAgungGumelar/omnichannel-inbox-be/internal/core/channel"
	"github.com/MuhamadAgungGumelar/omnichannel-inbox-be/internal/core/realtime"
	"github.com/MuhamadAgungGumelar/omnichannel-inbox-be/internal/modules/inbox/models"
	"github.com/MuhamadAgungGumelar/omnichannel-inbox-be/internal/modules/inbox/repositories"
	"github.com/MuhamadAgungGumelar/omnichannel-inbox-be/internal/shared/metrics"
)

// ConnectRequest is the result of a completed OAuth / embedded signup flow
type ConnectRequest struct {
	TenantID    uuid.UUID
	Type        channel.Type
	ExternalID  string
	AccessToken string
	ExpiresAt   *time.Time
	Actor       string
}

// SweepReport summarizes one pass over all active platforms
type SweepReport struct {
	Checked     int
	Invalidated int
	Errors      int
}

// TokenManager owns the validity of platform access tokens. It is the only
// component that changes Platform.Active.
type TokenManager struct {
	platforms repositories.PlatformRepo
	graph     GraphAPI
	auditor   Auditor
	publisher Publisher
	now       func() time.Time
}

// NewTokenManager creates a token manager. auditor and publisher may be nil.
func NewTokenManager(platforms repositories.PlatformRepo, graph GraphAPI, auditor Auditor, publisher Publisher) *TokenManager {
	if auditor == nil {
		auditor = noopAuditor{}
	}
	if publisher == nil {
		publisher = noopPublisher{}
	}
	return &TokenManager{
		platforms: platforms,
		graph:     graph,
		auditor:   auditor,
		publisher: publisher,
		now:       time.Now,
	}
}

// EnsureValid returns the platform if its token may be used right now.
// It never calls the platform; expiry is judged from stored state only.
func (m *TokenManager) EnsureValid(ctx context.Context, platformID uuid.UUID) (*models.Platform, error) {
	p, err := m.platforms.GetByID(ctx, platformID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrPlatformNotFound
		}
		return nil, fmt.Errorf("failed to load platform: %w", err)
	}

	if !p.Active {
		return nil, inactiveError(p)
	}

	if p.TokenExpiresAt != nil && !p.TokenExpiresAt.After(m.now()) {
		if err := m.invalidate(ctx, p, models.ReasonTokenExpired, "token expiry reached"); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: platform %s", ErrTokenExpired, p.ID)
	}
	return p, nil
}

// Invalidate deactivates the platform. Calling it on an inactive platform
// is a no-op.
func (m *TokenManager) Invalidate(ctx context.Context, platformID uuid.UUID, reason models.DeactivationReason) error {
	p, err := m.platforms.GetByID(ctx, platformID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return ErrPlatformNotFound
		}
		return err
	}
	return m.invalidate(ctx, p, reason, "")
}

// HandleAuthFailure invalidates p after the platform rejected its token and
// returns the error callers should surface.
func (m *TokenManager) HandleAuthFailure(ctx context.Context, p *models.Platform, cause error) error {
	reason := models.ReasonTokenRevoked
	var apiErr *channel.APIError
	if errors.As(cause, &apiErr) && apiErr.Expired() {
		reason = models.ReasonTokenExpired
	}

	if err := m.invalidate(ctx, p, reason, cause.Error()); err != nil {
		return err
	}
	if reason == models.ReasonTokenExpired {
		return fmt.Errorf("%w: %v", ErrTokenExpired, cause)
	}
	return fmt.Errorf("%w: %v", ErrTokenRevoked, cause)
}

func (m *TokenManager) invalidate(ctx context.Context, p *models.Platform, reason models.DeactivationReason, detail string) error {
	changed, err := m.platforms.Deactivate(ctx, p.ID, reason, m.now().UTC())
	if err != nil {
		return fmt.Errorf("failed to deactivate platform: %w", err)
	}
	if !changed {
		return nil
	}

	p.Active = false
	p.DeactivationReason = reason

	log.Warn().
		Str("platform_id", p.ID.String()).
		Str("type", string(p.Type)).
		Str("reason", string(reason)).
		Msg("🔒 Platform deactivated, reconnect required")
	metrics.TokenInvalidations.WithLabelValues(string(p.Type), string(reason)).Inc()

	tenantID := p.TenantID
	if err := m.auditor.Record(ctx, audit.Entry{
		TenantID:    &tenantID,
		Actor:       "system",
		Action:      audit.ActionPlatformDeactivated,
		Entity:      "platform",
		EntityID:    p.ID.String(),
		Description: detail,
		Metadata:    map[string]interface{}{"reason": string(reason), "type": string(p.Type)},
	}); err != nil {
		log.Error().Err(err).Str("platform_id", p.ID.String()).Msg("failed to record audit entry")
	}

	publishEvent(ctx, m.publisher, realtime.EventPlatformDeactivated, p.TenantID.String(), "",
		PlatformDeactivation{PlatformID: p.ID.String(), Type: string(p.Type), Reason: reason})
	return nil
}

// Verify checks the stored token against the platform's profile endpoint.
// An auth failure deactivates the platform.
func (m *TokenManager) Verify(ctx context.Context, platformID uuid.UUID) (*channel.PlatformProfile, error) {
	p, err := m.EnsureValid(ctx, platformID)
	if err != nil {
		return nil, err
	}

	profile, err := m.graph.Profile(ctx, p.ChannelCredentials())
	if err != nil {
		if channel.OutcomeOf(err) == channel.OutcomeAuthFailed {
			return nil, m.HandleAuthFailure(ctx, p, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrPlatformUnavailable, err)
	}

	if err := m.syncAttributes(ctx, p, profile.Attributes()); err != nil {
		log.Warn().Err(err).Str("platform_id", p.ID.String()).Msg("failed to store profile attributes")
	}
	return profile, nil
}

// Connect stores the token of a completed OAuth flow and activates the
// platform. The token is checked against the platform first.
func (m *TokenManager) Connect(ctx context.Context, req ConnectRequest) (*models.Platform, error) {
	req.ExternalID = strings.TrimSpace(req.ExternalID)
	if !req.Type.Valid() {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, channel.ErrUnknownChannel)
	}
	if req.TenantID == uuid.Nil || req.ExternalID == "" || req.AccessToken == "" {
		return nil, fmt.Errorf("%w: tenant, external id and access token are required", ErrInvalidInput)
	}
	if req.ExpiresAt != nil && !req.ExpiresAt.After(m.now()) {
		return nil, fmt.Errorf("%w: token already expired", ErrInvalidInput)
	}

	profile, err := m.graph.Profile(ctx, channel.Credentials{
		Channel:     req.Type,
		ExternalID:  req.ExternalID,
		AccessToken: req.AccessToken,
	})
	if err != nil {
		if channel.OutcomeOf(err) == channel.OutcomeAuthFailed {
			return nil, fmt.Errorf("%w: %v", ErrTokenRejected, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrPlatformUnavailable, err)
	}
	if profile.ID != "" && profile.ID != req.ExternalID {
		return nil, fmt.Errorf("%w: token is for %s", ErrCredentialMismatch, profile.ID)
	}

	bound, err := m.platforms.FindActiveByExternal(ctx, req.Type, req.ExternalID)
	switch {
	case err == nil && bound.TenantID != req.TenantID:
		return nil, ErrPlatformBound
	case err != nil && !errors.Is(err, repositories.ErrNotFound):
		return nil, err
	}

	update := repositories.TokenUpdate{
		AccessToken: req.AccessToken,
		ExpiresAt:   req.ExpiresAt,
		Name:        profile.DisplayName(),
	}

	existing, err := m.platforms.FindByTenantExternal(ctx, req.TenantID, req.Type, req.ExternalID)
	switch {
	case errors.Is(err, repositories.ErrNotFound):
		creds, _, mergeErr := models.MergeCredentials(nil, profile.Attributes())
		if mergeErr != nil {
			return nil, mergeErr
		}
		existing = &models.Platform{
			TenantID:       req.TenantID,
			Type:           req.Type,
			ExternalID:     req.ExternalID,
			Name:           update.Name,
			AccessToken:    req.AccessToken,
			TokenExpiresAt: req.ExpiresAt,
			Credentials:    creds,
			Active:         true,
		}
		if err := m.platforms.Create(ctx, existing); err != nil {
			if errors.Is(err, repositories.ErrDuplicate) {
				return nil, ErrPlatformBound
			}
			return nil, fmt.Errorf("failed to create platform: %w", err)
		}

	case err != nil:
		return nil, err

	default:
		creds, _, mergeErr := models.MergeCredentials(existing.Credentials, profile.Attributes())
		if mergeErr != nil {
			return nil, mergeErr
		}
		update.Credentials = creds

		activated := false
		if !existing.Active {
			activated, err = m.platforms.Activate(ctx, existing.ID, update)
			if err != nil {
				if errors.Is(err, repositories.ErrDuplicate) {
					return nil, ErrPlatformBound
				}
				return nil, fmt.Errorf("failed to activate platform: %w", err)
			}
		}
		if !activated {
			if err := m.platforms.UpdateToken(ctx, existing.ID, update); err != nil {
				return nil, fmt.Errorf("failed to update token: %w", err)
			}
		}
	}

	tenantID := req.TenantID
	if err := m.auditor.Record(ctx, audit.Entry{
		TenantID: &tenantID,
		Actor:    req.Actor,
		Action:   audit.ActionPlatformConnected,
		Entity:   "platform",
		EntityID: existing.ID.String(),
		Metadata: map[string]interface{}{"type": string(req.Type), "external_id": req.ExternalID},
	}); err != nil {
		log.Error().Err(err).Str("platform_id", existing.ID.String()).Msg("failed to record audit entry")
	}

	log.Info().
		Str("tenant_id", req.TenantID.String()).
		Str("platform_id", existing.ID.String()).
		Str("type", string(req.Type)).
		Msg("✅ Platform connected")

	return m.platforms.GetByID(ctx, existing.ID)
}

// SyncProfile merges profile data seen in webhooks into the platform's
// stored credentials.
func (m *TokenManager) SyncProfile(ctx context.Context, platformID uuid.UUID, attrs map[string]string) error {
	if len(attrs) == 0 {
		return nil
	}
	p, err := m.platforms.GetByID(ctx, platformID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return ErrPlatformNotFound
		}
		return err
	}
	return m.syncAttributes(ctx, p, attrs)
}

func (m *TokenManager) syncAttributes(ctx context.Context, p *models.Platform, attrs map[string]string) error {
	merged, changed, err := models.MergeCredentials(p.Credentials, attrs)
	if err != nil || !changed {
		return err
	}
	if err := m.platforms.UpdateCredentials(ctx, p.ID, merged); err != nil {
		return err
	}
	p.Credentials = merged
	return nil
}

// Sweep verifies every active platform. Used by the scheduled token check.
func (m *TokenManager) Sweep(ctx context.Context) (SweepReport, error) {
	var report SweepReport

	platforms, err := m.platforms.ListActive(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to list active platforms: %w", err)
	}

	for _, p := range platforms {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		report.Checked++

		_, err := m.Verify(ctx, p.ID)
		switch {
		case err == nil:
		case errors.Is(err, ErrTokenExpired), errors.Is(err, ErrTokenRevoked):
			report.Invalidated++
		default:
			report.Errors++
			log.Warn().Err(err).Str("platform_id", p.ID.String()).Msg("⚠️ Token check failed")
		}
	}
	return report, nil
}

func inactiveError(p *models.Platform) error {
	if p.DeactivationReason == models.ReasonTokenRevoked {
		return fmt.Errorf("%w: platform %s", ErrTokenRevoked, p.ID)
	}
	return fmt.Errorf("%w: platform %s", ErrTokenExpired, p.ID)
}
