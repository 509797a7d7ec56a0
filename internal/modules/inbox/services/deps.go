package services

import (
	"context"

	"github.com/MuhamadAgungGumelar/omnichannel-inbox-be/internal/core/audit"
	"github.com/MuhamadAgungGumelar/omnichannel-inbox-be/internal/core/channel"
	"github.com/MuhamadAgungGumelar/omnichannel-inbox-be/internal/core/realtime"
)

// GraphAPI is the platform client; *channel.GraphClient implements it.
type GraphAPI interface {
	Send(ctx context.Context, creds channel.Credentials, msg channel.OutboundMessage) (channel.SendResult, error)
	Profile(ctx context.Context, creds channel.Credentials) (*channel.PlatformProfile, error)
}

// Publisher is the realtime broadcaster; *realtime.Hub implements it.
type Publisher interface {
	Publish(ctx context.Context, tenantID string, ev realtime.Event)
}

// Auditor records security-relevant events; *audit.Service implements it.
type Auditor interface {
	Record(ctx context.Context, e audit.Entry) error
}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, string, realtime.Event) {}

type noopAuditor struct{}

func (noopAuditor) Record(context.Context, audit.Entry) error { return nil }
