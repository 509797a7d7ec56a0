package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/MuhamadAgungGumelar/omnichannel-inbox-be/internal/shared/metrics"
)

const (
	DefaultChannel    = "inbox:realtime"
	DefaultBufferSize = 64
)

// Sink receives every event published on this instance, after fan-out.
type Sink interface {
	Publish(ctx context.Context, ev Event) error
}

// Subscription is one tenant-scoped event stream. Events arrive in publish
// order. The channel is closed on Unsubscribe or when the subscriber falls
// a full buffer behind; in the latter case Dropped reports true and the
// client has to re-fetch state.
type Subscription struct {
	ID       string
	TenantID string

	events  chan Event
	closed  bool
	dropped atomic.Bool
}

func (s *Subscription) Events() <-chan Event { return s.events }

func (s *Subscription) Dropped() bool { return s.dropped.Load() }

// Hub fans events out to the subscriptions of a tenant. While a Redis
// subscription is confirmed, publishes go through a pub/sub channel so every
// instance delivers to its own subscribers; otherwise (no Redis, subscriber
// down, publish failing) delivery is local only.
type Hub struct {
	mu         sync.RWMutex
	subs       map[string]map[string]*Subscription
	bufferSize int

	redis     *redis.Client
	redisChan string
	redisSub   *redis.PubSub
	subCancel  context.CancelFunc
	subscribed bool

	sinks []Sink
}

func NewHub(bufferSize int) *Hub {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &Hub{
		subs:       map[string]map[string]*Subscription{},
		bufferSize: bufferSize,
		redisChan:  DefaultChannel,
	}
}

func (h *Hub) UseRedis(client *redis.Client, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.redis = client
	if channel != "" {
		h.redisChan = channel
	}
}

func (h *Hub) AddSink(s Sink) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sinks = append(h.sinks, s)
}

func (h *Hub) StartRedisSubscriber(ctx context.Context) error {
	h.mu.Lock()
	if h.redis == nil {
		h.mu.Unlock()
		return errors.New("redis client is nil")
	}
	if h.redisSub != nil {
		h.mu.Unlock()
		return nil
	}
	subCtx, cancel := context.WithCancel(ctx)
	sub := h.redis.Subscribe(subCtx, h.redisChan)
	h.redisSub = sub
	h.subCancel = cancel
	h.mu.Unlock()

	// wait for the subscription to be confirmed so no publish is missed
	if _, err := sub.Receive(subCtx); err != nil {
		h.StopRedisSubscriber()
		return err
	}

	h.mu.Lock()
	if h.redisSub != sub {
		// stopped while waiting for the confirmation
		h.mu.Unlock()
		return errors.New("redis subscriber stopped")
	}
	h.subscribed = true
	h.mu.Unlock()

	go h.consumeEvents(subCtx, sub)
	return nil
}

// RunRedisSubscriber starts the Redis subscriber in the background and
// retries every interval until it is confirmed or ctx ends.
func (h *Hub) RunRedisSubscriber(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			err := h.StartRedisSubscriber(ctx)
			if err == nil {
				log.Info().Str("channel", h.redisChan).Msg("📡 Realtime fan-out through Redis")
				return
			}
			log.Warn().Err(err).Dur("retry_in", interval).Msg("⚠️ Redis subscriber unavailable, realtime stays local")

			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
}

// Distributed reports whether publishes currently go through Redis
func (h *Hub) Distributed() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.redis != nil && h.subscribed
}

func (h *Hub) StopRedisSubscriber() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subscribed = false
	if h.subCancel != nil {
		h.subCancel()
		h.subCancel = nil
	}
	if h.redisSub != nil {
		_ = h.redisSub.Close()
		h.redisSub = nil
	}
}

// Subscribe registers a new subscription for tenantID.
func (h *Hub) Subscribe(tenantID string) *Subscription {
	sub := &Subscription{
		ID:       uuid.NewString(),
		TenantID: tenantID,
		events:   make(chan Event, h.bufferSize),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[tenantID]; !ok {
		h.subs[tenantID] = map[string]*Subscription{}
	}
	h.subs[tenantID][sub.ID] = sub
	metrics.RealtimeSubscribers.Inc()
	return sub
}

// Unsubscribe removes sub and closes its channel. Safe to call twice.
func (h *Hub) Unsubscribe(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(sub)
}

func (h *Hub) removeLocked(sub *Subscription) {
	if sub.closed {
		return
	}
	if subs, ok := h.subs[sub.TenantID]; ok {
		delete(subs, sub.ID)
		if len(subs) == 0 {
			delete(h.subs, sub.TenantID)
		}
	}
	sub.closed = true
	close(sub.events)
	metrics.RealtimeSubscribers.Dec()
}

// Publish delivers ev to every subscription of tenantID. Best effort: there
// is no replay for subscribers that connect later.
func (h *Hub) Publish(ctx context.Context, tenantID string, ev Event) {
	ev.TenantID = tenantID

	if !h.publishRedis(ctx, ev) {
		fanoutCount := h.publishLocal(ev)
		log.Debug().Str("event", string(ev.Type)).Str("tenant_id", tenantID).Int("fanout_count", fanoutCount).
			Msg("realtime local dispatch")
	}

	h.mu.RLock()
	sinks := h.sinks
	h.mu.RUnlock()
	for _, s := range sinks {
		if err := s.Publish(ctx, ev); err != nil {
			log.Warn().Err(err).Str("event", string(ev.Type)).Str("tenant_id", tenantID).Msg("realtime sink publish failed")
		}
	}
}

func (h *Hub) publishRedis(ctx context.Context, ev Event) bool {
	h.mu.RLock()
	redisClient := h.redis
	channel := h.redisChan
	subscribed := h.subscribed
	h.mu.RUnlock()
	// without our own subscriber the event would never reach local sessions
	if redisClient == nil || !subscribed {
		return false
	}

	b, err := json.Marshal(ev)
	if err != nil {
		log.Error().Err(err).Str("event", string(ev.Type)).Msg("realtime encode failed")
		return false
	}
	if err := redisClient.Publish(ctx, channel, b).Err(); err != nil {
		log.Warn().Err(err).Str("event", string(ev.Type)).Str("tenant_id", ev.TenantID).
			Msg("realtime redis publish failed, falling back to local dispatch")
		return false
	}
	return true
}

// publishLocal never blocks: a subscription whose buffer is full is closed
// instead of delaying everyone else.
func (h *Hub) publishLocal(ev Event) int {
	var overflowed []*Subscription

	h.mu.RLock()
	count := 0
	for _, sub := range h.subs[ev.TenantID] {
		select {
		case sub.events <- ev:
			count++
		default:
			overflowed = append(overflowed, sub)
		}
	}
	h.mu.RUnlock()

	if len(overflowed) > 0 {
		h.mu.Lock()
		for _, sub := range overflowed {
			if sub.closed {
				continue
			}
			sub.dropped.Store(true)
			h.removeLocked(sub)
			metrics.RealtimeDropped.Inc()
			log.Warn().Str("tenant_id", sub.TenantID).Str("subscription_id", sub.ID).
				Msg("realtime subscriber overflowed, closing")
		}
		h.mu.Unlock()
	}
	return count
}

func (h *Hub) consumeEvents(ctx context.Context, sub *redis.PubSub) {
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				log.Warn().Err(err).Msg("realtime: undecodable redis message")
				continue
			}
			h.publishLocal(ev)
		}
	}
}

// SessionCount returns the number of local subscriptions of a tenant
func (h *Hub) SessionCount(tenantID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[tenantID])
}
