package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"nhooyr.io/websocket"

	"github.com/VenkatGGG/tiercoord/pkg/httpx"
)

const (
	EventTierDestroyed = "tier_destroyed"
	EventLeaseRevoked  = "lease_revoked"
)

// Event is one coordinator-to-client push message.
type Event struct {
	Type     string `json:"type"`
	TierName string `json:"tier_name"`
	ClientID string `json:"client_id,omitempty"`
}

// Hub tracks the websocket connection of every currently-connected client
// and implements coordinator.Notifier over them. Delivery is best-effort: a
// send that fails is logged and the client discovers the change on its next
// request instead.
type Hub struct {
	writeTimeout time.Duration
	logger       *log.Logger

	mu    sync.Mutex
	conns map[string]*websocket.Conn
}

func NewHub(writeTimeout time.Duration, logger *log.Logger) *Hub {
	if writeTimeout <= 0 {
		writeTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Hub{
		writeTimeout: writeTimeout,
		logger:       logger,
		conns:        make(map[string]*websocket.Conn),
	}
}

func (h *Hub) TierDestroyed(tierName string) {
	h.broadcast(Event{Type: EventTierDestroyed, TierName: tierName})
}

func (h *Hub) LeaseRevoked(tierName, clientID string) {
	h.send(clientID, Event{Type: EventLeaseRevoked, TierName: tierName, ClientID: clientID})
}

func (h *Hub) ConnectedClients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

func (h *Hub) register(clientID string, conn *websocket.Conn) {
	h.mu.Lock()
	previous := h.conns[clientID]
	h.conns[clientID] = conn
	h.mu.Unlock()

	if previous != nil {
		_ = previous.Close(websocket.StatusPolicyViolation, "client id reconnected")
	}
}

func (h *Hub) unregister(clientID string, conn *websocket.Conn) {
	h.mu.Lock()
	if h.conns[clientID] == conn {
		delete(h.conns, clientID)
	}
	h.mu.Unlock()
}

func (h *Hub) broadcast(event Event) {
	raw, err := json.Marshal(event)
	if err != nil {
		h.logger.Printf("stream marshal failed: %v", err)
		return
	}

	h.mu.Lock()
	targets := make(map[string]*websocket.Conn, len(h.conns))
	for clientID, conn := range h.conns {
		targets[clientID] = conn
	}
	h.mu.Unlock()

	for clientID, conn := range targets {
		h.write(clientID, conn, raw)
	}
}

func (h *Hub) send(clientID string, event Event) {
	h.mu.Lock()
	conn, ok := h.conns[clientID]
	h.mu.Unlock()
	if !ok {
		return
	}

	raw, err := json.Marshal(event)
	if err != nil {
		h.logger.Printf("stream marshal failed: %v", err)
		return
	}
	h.write(clientID, conn, raw)
}

func (h *Hub) write(clientID string, conn *websocket.Conn, raw []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), h.writeTimeout)
	defer cancel()
	if err := conn.Write(ctx, websocket.MessageText, raw); err != nil {
		h.logger.Printf("stream write failed: client=%s err=%v", clientID, err)
	}
}

// handleStream upgrades the connection and parks it in the hub. When the
// socket drops, the client's leases are released exactly as an explicit
// Disconnect would.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if s.hub == nil {
		httpx.WriteError(w, http.StatusNotImplemented, "stream_disabled", "push stream is not enabled")
		return
	}
	clientID := strings.TrimSpace(r.URL.Query().Get("client_id"))
	if clientID == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_client_id", "client_id query parameter is required")
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.logger.Printf("stream accept failed: client=%s err=%v", clientID, err)
		return
	}

	s.hub.register(clientID, conn)
	s.logger.Printf("stream connected: client=%s", clientID)

	// clients never send payloads; the read loop just watches for close
	for {
		if _, _, err := conn.Read(r.Context()); err != nil {
			break
		}
	}

	s.hub.unregister(clientID, conn)
	s.coord.Disconnect(context.Background(), clientID)
	_ = conn.Close(websocket.StatusNormalClosure, "")
	s.logger.Printf("stream closed: client=%s", clientID)
}
