package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/MuhamadAgungGumelar/omnichannel-inbox-be/internal/core/channel"
	"github.com/MuhamadAgungGumelar/omnichannel-inbox-be/internal/modules/inbox/models"
	"github.com/MuhamadAgungGumelar/omnichannel-inbox-be/internal/modules/inbox/repositories"
)

// IdentityResolver maps platform-scoped sender ids onto Customers and
// their Conversation. Concurrent first contacts converge on one row via
// the unique keys.
type IdentityResolver struct {
	customers     repositories.CustomerRepo
	conversations repositories.ConversationRepo
}

func NewIdentityResolver(customers repositories.CustomerRepo, conversations repositories.ConversationRepo) *IdentityResolver {
	return &IdentityResolver{customers: customers, conversations: conversations}
}

// Resolve returns the customer for externalID on platformID, creating it
// on first contact. A name in profile fills an empty display name.
func (r *IdentityResolver) Resolve(ctx context.Context, tenantID, platformID uuid.UUID, externalID string, profile *channel.Profile) (*models.Customer, error) {
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return nil, fmt.Errorf("%w: empty external id", ErrInvalidInput)
	}

	candidate := &models.Customer{
		TenantID:   tenantID,
		PlatformID: platformID,
		ExternalID: externalID,
	}
	if profile != nil {
		candidate.DisplayName = profile.Name
	}

	customer, created, err := r.customers.Upsert(ctx, candidate)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve customer: %w", err)
	}
	if customer.TenantID != tenantID {
		return nil, ErrTenantMismatch
	}

	if created {
		log.Debug().
			Str("platform_id", platformID.String()).
			Str("customer_id", customer.ID.String()).
			Msg("new customer")
	} else if profile != nil && profile.Name != "" && customer.DisplayName == "" {
		if err := r.customers.UpdateDisplayName(ctx, customer.ID, profile.Name); err != nil {
			log.Warn().Err(err).Str("customer_id", customer.ID.String()).Msg("failed to update display name")
		} else {
			customer.DisplayName = profile.Name
		}
	}
	return customer, nil
}

// ResolveConversation returns the single conversation of the customer
func (r *IdentityResolver) ResolveConversation(ctx context.Context, customer *models.Customer) (*models.Conversation, error) {
	conv, _, err := r.conversations.Upsert(ctx, &models.Conversation{
		TenantID:   customer.TenantID,
		PlatformID: customer.PlatformID,
		CustomerID: customer.ID,
		Status:     models.ConversationOpen,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to resolve conversation: %w", err)
	}
	if conv.TenantID != customer.TenantID {
		return nil, ErrTenantMismatch
	}
	return conv, nil
}

// Lookup finds an existing customer without creating one
func (r *IdentityResolver) Lookup(ctx context.Context, platformID uuid.UUID, externalID string) (*models.Customer, error) {
	c, err := r.customers.GetByExternal(ctx, platformID, externalID)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, nil
	}
	return c, err
}
