package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"
)

// Conn is the transport a client record holds. *websocket.Conn satisfies it;
// tests inject fakes so membership logic can be exercised without sockets.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

const textMessage = 1 // mirrors websocket.TextMessage, keeps fakes dependency-free

type client struct {
	conn         Conn
	userID       string
	sessionID    string
	lastActivity time.Time
	writeMu      sync.Mutex
}

func (c *client) send(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(textMessage, data)
}

// Hub is the per-process connection registry and session fan-out. It carries
// no durable state: everything it relays is an effect the sync reconciler has
// already applied, plus presence.
type Hub struct {
	sweepInterval     time.Duration
	inactivityTimeout time.Duration

	mu       sync.RWMutex
	clients  map[string]*client
	sessions map[string]map[string]struct{}
}

func NewHub(sweepInterval, inactivityTimeout time.Duration) *Hub {
	return &Hub{
		sweepInterval:     sweepInterval,
		inactivityTimeout: inactivityTimeout,
		clients:           make(map[string]*client),
		sessions:          make(map[string]map[string]struct{}),
	}
}

// Register adds a connection to the registry and greets it. The client id is
// opaque and server-assigned.
func (h *Hub) Register(clientID string, conn Conn) {
	c := &client{conn: conn, lastActivity: time.Now()}

	h.mu.Lock()
	h.clients[clientID] = c
	h.mu.Unlock()

	h.sendTo(c, map[string]any{
		"type":      "connected",
		"clientId":  clientID,
		"timestamp": time.Now(),
	})
}

// Disconnect removes the connection, leaves its session and tells the
// remaining members. Safe to call twice.
func (h *Hub) Disconnect(clientID string) {
	h.mu.Lock()
	c, ok := h.clients[clientID]
	if !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, clientID)
	sessionID, userID := c.sessionID, c.userID
	h.leaveSessionLocked(clientID, sessionID)
	h.mu.Unlock()

	_ = c.conn.Close()

	if sessionID != "" {
		h.BroadcastToSession(sessionID, clientID, mustJSON(map[string]any{
			"type":      "user_left",
			"userId":    userID,
			"clientId":  clientID,
			"timestamp": time.Now(),
		}))
	}
}

// leaveSessionLocked requires h.mu held. Empty sessions are pruned.
func (h *Hub) leaveSessionLocked(clientID, sessionID string) {
	if sessionID == "" {
		return
	}
	if members, ok := h.sessions[sessionID]; ok {
		delete(members, clientID)
		if len(members) == 0 {
			delete(h.sessions, sessionID)
		}
	}
}

// Handle dispatches one inbound frame. The raw bytes are kept so that
// relayed messages reach the other session members verbatim.
func (h *Hub) Handle(clientID string, raw []byte) {
	var msg struct {
		Type      string `json:"type"`
		UserID    string `json:"userId"`
		SessionID string `json:"sessionId"`
	}
	if err := json.Unmarshal(raw, &msg); err != nil {
		h.sendError(clientID, "malformed message")
		return
	}

	h.touch(clientID)

	switch msg.Type {
	case "auth":
		h.handleAuth(clientID, msg.UserID)
	case "join_session":
		h.handleJoin(clientID, msg.SessionID)
	case "assignment_change", "conflict_resolved":
		h.relay(clientID, raw)
	case "ping":
		h.sendToID(clientID, map[string]any{"type": "pong", "timestamp": time.Now()})
	default:
		h.sendError(clientID, "unknown message type "+msg.Type)
	}
}

func (h *Hub) handleAuth(clientID, userID string) {
	h.mu.Lock()
	if c, ok := h.clients[clientID]; ok {
		c.userID = userID
	}
	h.mu.Unlock()

	h.sendToID(clientID, map[string]any{
		"type":      "auth_success",
		"userId":    userID,
		"timestamp": time.Now(),
	})
}

func (h *Hub) handleJoin(clientID, sessionID string) {
	h.mu.Lock()
	c, ok := h.clients[clientID]
	if !ok {
		h.mu.Unlock()
		return
	}
	h.leaveSessionLocked(clientID, c.sessionID)
	c.sessionID = sessionID
	if h.sessions[sessionID] == nil {
		h.sessions[sessionID] = make(map[string]struct{})
	}
	h.sessions[sessionID][clientID] = struct{}{}
	userID := c.userID
	h.mu.Unlock()

	h.BroadcastToSession(sessionID, clientID, mustJSON(map[string]any{
		"type":      "user_joined",
		"userId":    userID,
		"clientId":  clientID,
		"timestamp": time.Now(),
	}))
	h.sendToID(clientID, map[string]any{
		"type":      "session_joined",
		"sessionId": sessionID,
		"timestamp": time.Now(),
	})
}

// relay re-broadcasts the sender's frame to every other member of its
// session; the sender never receives its own message back.
func (h *Hub) relay(clientID string, raw []byte) {
	h.mu.RLock()
	c, ok := h.clients[clientID]
	var sessionID string
	if ok {
		sessionID = c.sessionID
	}
	h.mu.RUnlock()

	if sessionID == "" {
		h.sendError(clientID, "join a session before broadcasting")
		return
	}
	h.BroadcastToSession(sessionID, clientID, raw)
}

// BroadcastToSession sends raw bytes to every session member except
// excludeClientID. Dead connections are dropped on the spot.
func (h *Hub) BroadcastToSession(sessionID, excludeClientID string, raw []byte) {
	h.mu.RLock()
	var targets []*client
	var targetIDs []string
	for id := range h.sessions[sessionID] {
		if id == excludeClientID {
			continue
		}
		if c, ok := h.clients[id]; ok {
			targets = append(targets, c)
			targetIDs = append(targetIDs, id)
		}
	}
	h.mu.RUnlock()

	for i, c := range targets {
		if err := c.send(raw); err != nil {
			slog.Warn("dropping unwritable websocket client", "clientId", targetIDs[i], "error", err)
			h.Disconnect(targetIDs[i])
		}
	}
}

// NotifySession pushes a server-originated event (conflict_detected,
// conflict_resolved) to all members of a session.
func (h *Hub) NotifySession(sessionID string, payload map[string]any) {
	if _, ok := payload["timestamp"]; !ok {
		payload["timestamp"] = time.Now()
	}
	h.BroadcastToSession(sessionID, "", mustJSON(payload))
}

// RunSweeper disconnects clients whose lastActivity exceeds the inactivity
// threshold. Blocks until ctx is done.
func (h *Hub) RunSweeper(ctx context.Context) {
	ticker := time.NewTicker(h.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.sweep()
		}
	}
}

func (h *Hub) sweep() {
	cutoff := time.Now().Add(-h.inactivityTimeout)

	h.mu.RLock()
	var stale []string
	for id, c := range h.clients {
		if c.lastActivity.Before(cutoff) {
			stale = append(stale, id)
		}
	}
	h.mu.RUnlock()

	for _, id := range stale {
		slog.Info("sweeping inactive websocket client", "clientId", id)
		h.Disconnect(id)
	}
}

// Counts reports live session and connection totals for the status endpoint.
func (h *Hub) Counts() (sessions, connections int) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions), len(h.clients)
}

func (h *Hub) touch(clientID string) {
	h.mu.Lock()
	if c, ok := h.clients[clientID]; ok {
		c.lastActivity = time.Now()
	}
	h.mu.Unlock()
}

func (h *Hub) sendToID(clientID string, payload map[string]any) {
	h.mu.RLock()
	c, ok := h.clients[clientID]
	h.mu.RUnlock()
	if ok {
		h.sendTo(c, payload)
	}
}

func (h *Hub) sendTo(c *client, payload map[string]any) {
	if err := c.send(mustJSON(payload)); err != nil {
		slog.Warn("websocket write failed", "error", err)
	}
}

func (h *Hub) sendError(clientID, message string) {
	h.sendToID(clientID, map[string]any{
		"type":      "error",
		"message":   message,
		"timestamp": time.Now(),
	})
}

func mustJSON(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		// Payloads are maps of plain values; marshalling cannot fail.
		panic(err)
	}
	return data
}
