package client

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fabline-dev/shift-planner/backend/internal/domain"
	"github.com/google/uuid"
)

// Gateway is the server of record as seen from the client. The HTTP
// implementation lives in gateway.go; tests use a fake.
type Gateway interface {
	Sync(ctx context.Context, changes []domain.PlanningChange) (*SyncResponse, error)
	LoadPlanningData(ctx context.Context, date time.Time) (*domain.PlanningData, error)
}

type SyncResponse struct {
	Success       bool              `json:"success"`
	Processed     int               `json:"processed"`
	ConflictCount int               `json:"conflictCount"`
	Results       []SyncItemResult  `json:"results"`
	Conflicts     []domain.Conflict `json:"conflicts"`
}

type SyncItemResult struct {
	ChangeID string `json:"changeId"`
	Success  bool   `json:"success"`
	Error    string `json:"error,omitempty"`
}

// ChangeEvent is what local subscribers see, synchronously, on every
// optimistic mutation.
type ChangeEvent struct {
	Type       domain.ChangeType
	Assignment domain.Assignment
}

// OverlayEntry tags a not-yet-confirmed local edit with how it originated,
// so rollback and sync know whether the server ever saw the record.
type OverlayEntry struct {
	Assignment domain.Assignment
	Origin     domain.ChangeType
}

type syncState int

const (
	stateIdle syncState = iota
	statePending
	stateInFlight
)

// Client applies edits instantly to a local overlay and reconciles them with
// the server via debounced batch sync. One instance serves one planner; the
// mutex interleaves local writes, the debounce timer and online/offline
// callbacks, never two overlapping sync calls for the same batch.
type Client struct {
	gateway  Gateway
	userID   string
	debounce time.Duration

	mu           sync.Mutex
	overlay      map[string]OverlayEntry
	serverData   map[string]domain.Assignment
	pending      map[string]domain.PlanningChange // coalesced, one entry per assignment id
	pendingOrder []string                         // FIFO across assignment ids
	state        syncState
	dirty        bool // an edit arrived while a sync was in flight
	timer        *time.Timer
	online       bool

	changeSubs   []func(ChangeEvent)
	conflictSubs []func(domain.Conflict)
	errorSubs    []func(*domain.NetworkError)

	// Resolver overrides the default conflict policy when set.
	Resolver func(domain.Conflict) domain.Resolution

	now func() time.Time
}

func New(gateway Gateway, userID string, debounce time.Duration) *Client {
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}
	return &Client{
		gateway:    gateway,
		userID:     userID,
		debounce:   debounce,
		overlay:    make(map[string]OverlayEntry),
		serverData: make(map[string]domain.Assignment),
		pending:    make(map[string]domain.PlanningChange),
		online:     true,
		now:        time.Now,
	}
}

func (c *Client) OnChange(fn func(ChangeEvent))            { c.mu.Lock(); c.changeSubs = append(c.changeSubs, fn); c.mu.Unlock() }
func (c *Client) OnConflict(fn func(domain.Conflict))      { c.mu.Lock(); c.conflictSubs = append(c.conflictSubs, fn); c.mu.Unlock() }
func (c *Client) OnError(fn func(*domain.NetworkError))    { c.mu.Lock(); c.errorSubs = append(c.errorSubs, fn); c.mu.Unlock() }

// SaveAssignment applies the edit to the overlay immediately and notifies
// change subscribers before returning; the network write is debounced.
func (c *Client) SaveAssignment(a domain.Assignment) {
	c.mu.Lock()

	_, inOverlay := c.overlay[a.ID]
	_, onServer := c.serverData[a.ID]

	eventType := domain.ChangeUpdate
	if !inOverlay && !onServer {
		eventType = domain.ChangeAdd
	}

	origin := eventType
	if prev, ok := c.overlay[a.ID]; ok && prev.Origin != domain.ChangeDelete {
		origin = prev.Origin // an unsynced add stays an add however often it is edited
	}
	c.overlay[a.ID] = OverlayEntry{Assignment: a, Origin: origin}

	c.enqueueLocked(domain.PlanningChange{
		ID:         uuid.NewString(),
		Type:       origin,
		Assignment: a,
		Timestamp:  c.now(),
	})

	subs := append([]func(ChangeEvent){}, c.changeSubs...)
	c.scheduleSyncLocked()
	c.mu.Unlock()

	for _, fn := range subs {
		fn(ChangeEvent{Type: eventType, Assignment: a})
	}
}

// RemoveAssignment deletes locally and fails fast when the id is unknown; no
// network round-trip is needed to detect that.
func (c *Client) RemoveAssignment(id string) error {
	c.mu.Lock()

	entry, inOverlay := c.overlay[id]
	stored, onServer := c.serverData[id]
	if !inOverlay && !onServer {
		c.mu.Unlock()
		return fmt.Errorf("assignment %s: %w", id, domain.ErrNotFound)
	}

	removed := stored
	if inOverlay {
		removed = entry.Assignment
	}

	if inOverlay && entry.Origin == domain.ChangeAdd && !onServer {
		// The server never saw this record; cancel the queued add instead of
		// syncing a delete.
		delete(c.overlay, id)
		c.dequeueLocked(id)
	} else {
		// A tombstone hides the record from Assignments() right away; the
		// server copy only goes once the delete is confirmed.
		c.overlay[id] = OverlayEntry{Assignment: removed, Origin: domain.ChangeDelete}
		c.enqueueLocked(domain.PlanningChange{
			ID:         uuid.NewString(),
			Type:       domain.ChangeDelete,
			Assignment: removed,
			Timestamp:  c.now(),
		})
		c.scheduleSyncLocked()
	}

	subs := append([]func(ChangeEvent){}, c.changeSubs...)
	c.mu.Unlock()

	for _, fn := range subs {
		fn(ChangeEvent{Type: domain.ChangeDelete, Assignment: removed})
	}
	return nil
}

// RollbackOptimisticUpdates discards the whole overlay and the pending queue.
// Discarded edits notify as deletes; a discarded tombstone restores the server
// record and notifies as an update.
func (c *Client) RollbackOptimisticUpdates() {
	c.mu.Lock()
	events := make([]ChangeEvent, 0, len(c.overlay))
	for id, entry := range c.overlay {
		if entry.Origin == domain.ChangeDelete {
			if stored, ok := c.serverData[id]; ok {
				events = append(events, ChangeEvent{Type: domain.ChangeUpdate, Assignment: stored})
			}
			continue
		}
		events = append(events, ChangeEvent{Type: domain.ChangeDelete, Assignment: entry.Assignment})
	}
	c.overlay = make(map[string]OverlayEntry)
	c.pending = make(map[string]domain.PlanningChange)
	c.pendingOrder = nil
	subs := append([]func(ChangeEvent){}, c.changeSubs...)
	c.mu.Unlock()

	for _, e := range events {
		for _, fn := range subs {
			fn(e)
		}
	}
}

// LoadPlanningData fetches authoritative state for the date. The optimistic
// overlay is cleared wholesale first: after an explicit reload, fresh server
// data always wins over unsynced local edits.
func (c *Client) LoadPlanningData(ctx context.Context, date time.Time) (*domain.PlanningData, error) {
	c.mu.Lock()
	c.overlay = make(map[string]OverlayEntry)
	c.pending = make(map[string]domain.PlanningChange)
	c.pendingOrder = nil
	c.mu.Unlock()

	data, err := c.gateway.LoadPlanningData(ctx, date)
	if err != nil {
		netErr := asNetworkError("load", err)
		c.notifyError(netErr)
		return nil, netErr
	}

	c.mu.Lock()
	c.serverData = make(map[string]domain.Assignment, len(data.Assignments))
	for _, a := range data.Assignments {
		c.serverData[a.ID] = a
	}
	c.mu.Unlock()

	return data, nil
}

// Assignments returns the merged local view: server data overlaid with
// pending optimistic edits.
func (c *Client) Assignments() []domain.Assignment {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]domain.Assignment, 0, len(c.serverData)+len(c.overlay))
	for id, a := range c.serverData {
		if entry, ok := c.overlay[id]; ok {
			if entry.Origin != domain.ChangeDelete {
				out = append(out, entry.Assignment)
			}
			continue
		}
		out = append(out, a)
	}
	for id, entry := range c.overlay {
		if _, ok := c.serverData[id]; !ok && entry.Origin != domain.ChangeDelete {
			out = append(out, entry.Assignment)
		}
	}
	return out
}

// PendingCount reports how many coalesced changes await sync.
func (c *Client) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// SetOnline gates whether pending data may be sent. Transitioning back
// online flushes the retry queue immediately, in FIFO order.
func (c *Client) SetOnline(online bool) {
	c.mu.Lock()
	wasOnline := c.online
	c.online = online
	c.mu.Unlock()

	if online && !wasOnline {
		c.ForceSyncPendingChanges()
	}
}

// ForceSyncPendingChanges pushes the queue out now, bypassing the debounce
// window. No-op while another sync is in flight or while offline.
func (c *Client) ForceSyncPendingChanges() {
	c.mu.Lock()
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	if c.state == stateInFlight {
		c.dirty = true
		c.mu.Unlock()
		return
	}
	c.state = statePending
	c.mu.Unlock()

	c.flush()
}

// HandleConflict returns the resolution policy for a conflict. The default
// favors the local edit except for double bookings, which demand a human
// decision; callers override via Resolver.
func (c *Client) HandleConflict(conflict domain.Conflict) domain.Resolution {
	if c.Resolver != nil {
		return c.Resolver(conflict)
	}
	if conflict.Type == domain.ConflictDoubleBooking {
		return domain.Resolution{Action: domain.ResolveManual}
	}
	return domain.Resolution{Action: domain.ResolveAcceptLocal}
}

func (c *Client) enqueueLocked(change domain.PlanningChange) {
	id := change.Assignment.ID
	if existing, ok := c.pending[id]; ok {
		// Coalesce: keep the queue position and change id, carry the latest
		// state. A delete after an update supersedes it.
		change.ID = existing.ID
		c.pending[id] = change
		return
	}
	c.pending[id] = change
	c.pendingOrder = append(c.pendingOrder, id)
}

func (c *Client) dequeueLocked(id string) {
	delete(c.pending, id)
	for i, pid := range c.pendingOrder {
		if pid == id {
			c.pendingOrder = append(c.pendingOrder[:i], c.pendingOrder[i+1:]...)
			break
		}
	}
}

// scheduleSyncLocked arms the debounce timer. Offline changes stay queued;
// saves landing while a sync is in flight are captured by the next window.
func (c *Client) scheduleSyncLocked() {
	if !c.online {
		return
	}
	switch c.state {
	case stateIdle:
		c.state = statePending
		c.timer = time.AfterFunc(c.debounce, c.flush)
	case statePending:
		// Timer already armed; this save joins the batch.
	case stateInFlight:
		c.dirty = true
	}
}

func (c *Client) flush() {
	c.mu.Lock()
	c.timer = nil
	if c.state == stateInFlight {
		// A timer callback that lost the Stop race against a forced sync
		// lands here; its batch is already on the wire, fold any newer edits
		// into the next window instead of sending the batch twice.
		c.dirty = true
		c.mu.Unlock()
		return
	}
	if !c.online || len(c.pending) == 0 {
		c.state = stateIdle
		c.mu.Unlock()
		return
	}
	c.state = stateInFlight
	batch := make([]domain.PlanningChange, 0, len(c.pendingOrder))
	for _, id := range c.pendingOrder {
		if change, ok := c.pending[id]; ok {
			batch = append(batch, change)
		}
	}
	sent := make(map[string]time.Time, len(batch))
	for _, change := range batch {
		sent[change.Assignment.ID] = change.Timestamp
	}
	c.mu.Unlock()

	resp, err := c.gateway.Sync(context.Background(), batch)

	c.mu.Lock()
	if err != nil {
		// The failed batch stays queued; it is retried on the next debounce
		// or reconnect until rolled back or confirmed.
		c.state = stateIdle
		c.dirty = false
		netErr := asNetworkError("sync", err)
		c.mu.Unlock()
		c.notifyError(netErr)
		return
	}

	conflicted := map[string]bool{}
	for _, conflict := range resp.Conflicts {
		for _, id := range conflict.AffectedAssignments {
			conflicted[id] = true
		}
	}

	for id, sentAt := range sent {
		current, ok := c.pending[id]
		if !ok {
			continue
		}
		if current.Timestamp.After(sentAt) {
			// Re-edited mid-flight; keep the newer change queued.
			continue
		}
		c.dequeueLocked(id)
		if !conflicted[id] {
			// Confirmed: the edit is durable, the overlay entry has served
			// its purpose.
			if entry, held := c.overlay[id]; held {
				if entry.Origin == domain.ChangeDelete {
					delete(c.serverData, id)
				} else {
					c.serverData[id] = entry.Assignment
				}
				delete(c.overlay, id)
			} else if current.Type == domain.ChangeDelete {
				delete(c.serverData, id)
			}
		}
	}

	rearm := c.dirty && len(c.pending) > 0
	c.dirty = false
	if rearm {
		c.state = statePending
		c.timer = time.AfterFunc(c.debounce, c.flush)
	} else {
		c.state = stateIdle
	}
	conflictSubs := append([]func(domain.Conflict){}, c.conflictSubs...)
	c.mu.Unlock()

	for _, conflict := range resp.Conflicts {
		for _, fn := range conflictSubs {
			fn(conflict)
		}
	}
}

func (c *Client) notifyError(err *domain.NetworkError) {
	c.mu.Lock()
	subs := append([]func(*domain.NetworkError){}, c.errorSubs...)
	c.mu.Unlock()
	for _, fn := range subs {
		fn(err)
	}
}

func asNetworkError(op string, err error) *domain.NetworkError {
	if netErr, ok := err.(*domain.NetworkError); ok {
		return netErr
	}
	return &domain.NetworkError{Op: op, Err: err, Retryable: true}
}
