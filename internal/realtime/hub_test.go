package realtime

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	messages [][]byte
	failWith error
	closed   bool
}

func (c *fakeConn) WriteMessage(_ int, data []byte) error {
	if c.failWith != nil {
		return c.failWith
	}
	c.messages = append(c.messages, data)
	return nil
}

func (c *fakeConn) Close() error {
	c.closed = true
	return nil
}

func (c *fakeConn) types(t *testing.T) []string {
	t.Helper()
	var out []string
	for _, raw := range c.messages {
		var msg struct {
			Type string `json:"type"`
		}
		require.NoError(t, json.Unmarshal(raw, &msg))
		out = append(out, msg.Type)
	}
	return out
}

func newTestHub() *Hub {
	return NewHub(30*time.Second, 5*time.Minute)
}

func join(h *Hub, clientID, userID, sessionID string) {
	h.Handle(clientID, mustJSON(map[string]any{"type": "auth", "userId": userID}))
	h.Handle(clientID, mustJSON(map[string]any{"type": "join_session", "sessionId": sessionID}))
}

func TestRegisterGreetsClient(t *testing.T) {
	h := newTestHub()
	conn := &fakeConn{}

	h.Register("c1", conn)

	require.Len(t, conn.messages, 1)
	assert.Equal(t, []string{"connected"}, conn.types(t))

	sessions, connections := h.Counts()
	assert.Zero(t, sessions)
	assert.Equal(t, 1, connections)
}

func TestJoinSessionNotifiesOthers(t *testing.T) {
	h := newTestHub()
	first, second := &fakeConn{}, &fakeConn{}
	h.Register("c1", first)
	h.Register("c2", second)

	join(h, "c1", "alice", "board-1")
	join(h, "c2", "bob", "board-1")

	// First client: connected, auth_success, session_joined, then bob's user_joined.
	assert.Equal(t, []string{"connected", "auth_success", "session_joined", "user_joined"}, first.types(t))
	// The joiner never sees its own user_joined.
	assert.Equal(t, []string{"connected", "auth_success", "session_joined"}, second.types(t))

	sessions, connections := h.Counts()
	assert.Equal(t, 1, sessions)
	assert.Equal(t, 2, connections)
}

func TestRelayExcludesSender(t *testing.T) {
	h := newTestHub()
	sender, receiver := &fakeConn{}, &fakeConn{}
	h.Register("c1", sender)
	h.Register("c2", receiver)
	join(h, "c1", "alice", "board-1")
	join(h, "c2", "bob", "board-1")

	frame := mustJSON(map[string]any{"type": "assignment_change", "assignmentId": "a1"})
	h.Handle("c1", frame)

	assert.Contains(t, receiver.types(t), "assignment_change")
	assert.NotContains(t, sender.types(t), "assignment_change")
	// Relayed frames arrive verbatim.
	assert.Equal(t, frame, receiver.messages[len(receiver.messages)-1])
}

func TestRelayOutsideSessionIsAnError(t *testing.T) {
	h := newTestHub()
	conn := &fakeConn{}
	h.Register("c1", conn)

	h.Handle("c1", mustJSON(map[string]any{"type": "assignment_change"}))

	assert.Contains(t, conn.types(t), "error")
}

func TestDisconnectBroadcastsUserLeftAndPrunesSession(t *testing.T) {
	h := newTestHub()
	leaver, stayer := &fakeConn{}, &fakeConn{}
	h.Register("c1", leaver)
	h.Register("c2", stayer)
	join(h, "c1", "alice", "board-1")
	join(h, "c2", "bob", "board-1")

	h.Disconnect("c1")
	assert.True(t, leaver.closed)
	assert.Contains(t, stayer.types(t), "user_left")

	h.Disconnect("c2")
	sessions, connections := h.Counts()
	assert.Zero(t, sessions)
	assert.Zero(t, connections)

	// Disconnecting twice is harmless.
	h.Disconnect("c1")
}

func TestPing(t *testing.T) {
	h := newTestHub()
	conn := &fakeConn{}
	h.Register("c1", conn)

	h.Handle("c1", mustJSON(map[string]any{"type": "ping"}))

	assert.Equal(t, []string{"connected", "pong"}, conn.types(t))
}

func TestMalformedAndUnknownMessages(t *testing.T) {
	h := newTestHub()
	conn := &fakeConn{}
	h.Register("c1", conn)

	h.Handle("c1", []byte("{not json"))
	h.Handle("c1", mustJSON(map[string]any{"type": "teleport"}))

	assert.Equal(t, []string{"connected", "error", "error"}, conn.types(t))
}

func TestNotifySessionReachesAllMembers(t *testing.T) {
	h := newTestHub()
	first, second := &fakeConn{}, &fakeConn{}
	h.Register("c1", first)
	h.Register("c2", second)
	join(h, "c1", "alice", "board-1")
	join(h, "c2", "bob", "board-1")

	h.NotifySession("board-1", map[string]any{"type": "conflict_detected", "conflictId": "k1"})

	assert.Contains(t, first.types(t), "conflict_detected")
	assert.Contains(t, second.types(t), "conflict_detected")
}

func TestBroadcastDropsUnwritableClients(t *testing.T) {
	h := newTestHub()
	healthy, broken := &fakeConn{}, &fakeConn{}
	h.Register("c1", healthy)
	h.Register("c2", broken)
	join(h, "c1", "alice", "board-1")
	join(h, "c2", "bob", "board-1")

	broken.failWith = errors.New("write: broken pipe")
	h.NotifySession("board-1", map[string]any{"type": "conflict_detected"})

	assert.True(t, broken.closed)
	_, connections := h.Counts()
	assert.Equal(t, 1, connections)
}

func TestSweepDisconnectsInactiveClients(t *testing.T) {
	h := newTestHub()
	idle, active := &fakeConn{}, &fakeConn{}
	h.Register("c1", idle)
	h.Register("c2", active)
	join(h, "c1", "alice", "board-1")
	join(h, "c2", "bob", "board-1")

	h.mu.Lock()
	h.clients["c1"].lastActivity = time.Now().Add(-10 * time.Minute)
	h.mu.Unlock()

	h.sweep()

	assert.True(t, idle.closed)
	assert.False(t, active.closed)
	_, connections := h.Counts()
	assert.Equal(t, 1, connections)
	assert.Contains(t, active.types(t), "user_left")
}

func TestHandleRefreshesActivity(t *testing.T) {
	h := newTestHub()
	conn := &fakeConn{}
	h.Register("c1", conn)

	h.mu.Lock()
	h.clients["c1"].lastActivity = time.Now().Add(-10 * time.Minute)
	h.mu.Unlock()

	h.Handle("c1", mustJSON(map[string]any{"type": "ping"}))
	h.sweep()

	assert.False(t, conn.closed)
}

func TestJoinMovesClientBetweenSessions(t *testing.T) {
	h := newTestHub()
	mover, resident := &fakeConn{}, &fakeConn{}
	h.Register("c1", mover)
	h.Register("c2", resident)
	join(h, "c1", "alice", "board-1")
	join(h, "c2", "bob", "board-2")

	h.Handle("c1", mustJSON(map[string]any{"type": "join_session", "sessionId": "board-2"}))

	sessions, _ := h.Counts()
	assert.Equal(t, 1, sessions) // board-1 was pruned when its last member left
	assert.Contains(t, resident.types(t), "user_joined")

	frame := mustJSON(map[string]any{"type": "assignment_change", "assignmentId": "a1"})
	h.Handle("c1", frame)
	assert.Contains(t, resident.types(t), "assignment_change")
}
