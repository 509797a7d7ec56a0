package realtime

import (
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	writeWait    = 5 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = (pongWait * 9) / 10
)

// TokenVerifier resolves a dashboard bearer token to its tenant.
type TokenVerifier interface {
	TenantFromToken(token string) (string, error)
}

// Handler upgrades /ws requests and streams the tenant's events to the
// client. The stream is server to client only; inbound frames are read and
// discarded to keep control frames flowing.
type Handler struct {
	hub      *Hub
	verifier TokenVerifier
	upgrader websocket.Upgrader
}

func NewHandler(hub *Hub, verifier TokenVerifier) *Handler {
	return &Handler{
		hub:      hub,
		verifier: verifier,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// browser dashboards live on another origin; the token authorizes
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	}
	if strings.TrimSpace(token) == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}

	tenantID, err := h.verifier.TenantFromToken(token)
	if err != nil || tenantID == "" {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	sub := h.hub.Subscribe(tenantID)
	log.Info().Str("tenant_id", tenantID).Str("subscription_id", sub.ID).Msg("🔌 realtime client connected")

	readDone := make(chan struct{})
	go discardReads(conn, readDone)

	h.writeLoop(conn, sub, readDone)

	h.hub.Unsubscribe(sub)
	_ = conn.Close()
	log.Info().Str("tenant_id", tenantID).Str("subscription_id", sub.ID).Msg("realtime client disconnected")
}

func discardReads(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Handler) writeLoop(conn *websocket.Conn, sub *Subscription, readDone <-chan struct{}) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-sub.Events():
			if !ok {
				reason := "subscription closed"
				if sub.Dropped() {
					reason = "subscriber too slow, re-fetch state"
				}
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseTryAgainLater, reason),
					time.Now().Add(writeWait))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-readDone:
			return
		}
	}
}
