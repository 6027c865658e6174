package reconcile

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fabline-dev/shift-planner/backend/internal/domain"
)

// fakeStore keeps assignments in memory and resolves overlap via a fixed
// window table keyed by demand id.
type fakeStore struct {
	assignments map[string]domain.Assignment
	windows     map[string][2]time.Time // demandID -> [start, end)
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		assignments: map[string]domain.Assignment{},
		windows:     map[string][2]time.Time{},
	}
}

func (s *fakeStore) setWindow(demandID string, start, end time.Time) {
	s.windows[demandID] = [2]time.Time{start, end}
}

func (s *fakeStore) GetAssignment(_ context.Context, id string) (*domain.Assignment, error) {
	a, ok := s.assignments[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &a, nil
}

func (s *fakeStore) CreateAssignment(_ context.Context, a *domain.Assignment) error {
	s.assignments[a.ID] = *a
	return nil
}

func (s *fakeStore) UpdateAssignment(_ context.Context, a *domain.Assignment) error {
	if _, ok := s.assignments[a.ID]; !ok {
		return domain.ErrNotFound
	}
	s.assignments[a.ID] = *a
	return nil
}

func (s *fakeStore) DeleteAssignment(_ context.Context, id string) error {
	if _, ok := s.assignments[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.assignments, id)
	return nil
}

func (s *fakeStore) FindConflictingWith(_ context.Context, a *domain.Assignment) ([]domain.Assignment, error) {
	w, ok := s.windows[a.DemandID]
	if !ok {
		return nil, nil
	}
	var out []domain.Assignment
	for _, stored := range s.assignments {
		if stored.ID == a.ID || stored.EmployeeID != a.EmployeeID || !stored.Active() {
			continue
		}
		sw, ok := s.windows[stored.DemandID]
		if !ok {
			continue
		}
		if w[0].Before(sw[1]) && w[1].After(sw[0]) {
			out = append(out, stored)
		}
	}
	return out, nil
}

func day(hour int) time.Time {
	return time.Date(2026, 9, 14, hour, 0, 0, 0, time.UTC)
}

func TestSyncAddAndOverlapConflict(t *testing.T) {
	store := newFakeStore()
	store.setWindow("demand-early", day(6), day(14))
	store.setWindow("demand-day", day(10), day(18))

	r := New(store)

	changes := []domain.PlanningChange{
		{
			ID:   "change-1",
			Type: domain.ChangeAdd,
			Assignment: domain.Assignment{
				ID: "a1", DemandID: "demand-early", EmployeeID: "emp-1",
				Status: domain.AssignmentProposed,
			},
			Timestamp: time.Now(),
		},
		{
			ID:   "change-2",
			Type: domain.ChangeAdd,
			Assignment: domain.Assignment{
				ID: "a2", DemandID: "demand-day", EmployeeID: "emp-1",
				Status: domain.AssignmentProposed,
			},
			Timestamp: time.Now(),
		},
	}

	result, err := r.Sync(context.Background(), changes, "planner-1")
	require.NoError(t, err)

	assert.Equal(t, 1, result.Processed)
	assert.Equal(t, 1, result.ConflictCount)
	require.Len(t, result.Conflicts, 1)
	assert.Equal(t, domain.ConflictDoubleBooking, result.Conflicts[0].Type)
	assert.ElementsMatch(t, []string{"a1", "a2"}, result.Conflicts[0].AffectedAssignments)

	// Only the first add landed in the store.
	_, err = store.GetAssignment(context.Background(), "a1")
	assert.NoError(t, err)
	_, err = store.GetAssignment(context.Background(), "a2")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSyncAddAdjacentShiftsDoNotConflict(t *testing.T) {
	store := newFakeStore()
	store.setWindow("demand-early", day(6), day(14))
	store.setWindow("demand-late", day(14), day(22))

	r := New(store)

	changes := []domain.PlanningChange{
		{ID: "c1", Type: domain.ChangeAdd, Assignment: domain.Assignment{
			ID: "a1", DemandID: "demand-early", EmployeeID: "emp-1", Status: domain.AssignmentProposed,
		}},
		{ID: "c2", Type: domain.ChangeAdd, Assignment: domain.Assignment{
			ID: "a2", DemandID: "demand-late", EmployeeID: "emp-1", Status: domain.AssignmentProposed,
		}},
	}

	result, err := r.Sync(context.Background(), changes, "planner-1")
	require.NoError(t, err)
	assert.Equal(t, 2, result.Processed)
	assert.Zero(t, result.ConflictCount)
}

func TestSyncAddExistingIsConcurrentModification(t *testing.T) {
	store := newFakeStore()
	store.assignments["a1"] = domain.Assignment{ID: "a1", EmployeeID: "emp-1", Status: domain.AssignmentProposed}

	r := New(store)

	result, err := r.Sync(context.Background(), []domain.PlanningChange{
		{ID: "c1", Type: domain.ChangeAdd, Assignment: domain.Assignment{ID: "a1", EmployeeID: "emp-2"}},
	}, "planner-1")
	require.NoError(t, err)

	assert.Zero(t, result.Processed)
	require.Len(t, result.Conflicts, 1)
	assert.Equal(t, domain.ConflictConcurrentModification, result.Conflicts[0].Type)
	// The stored assignment is untouched.
	assert.Equal(t, "emp-1", store.assignments["a1"].EmployeeID)
}

func TestSyncStaleUpdateConflicts(t *testing.T) {
	serverTime := day(12)
	store := newFakeStore()
	store.assignments["a1"] = domain.Assignment{
		ID: "a1", EmployeeID: "emp-1", Status: domain.AssignmentProposed,
		UpdatedAt: &serverTime,
	}

	r := New(store)

	result, err := r.Sync(context.Background(), []domain.PlanningChange{
		{
			ID:   "c1",
			Type: domain.ChangeUpdate,
			Assignment: domain.Assignment{
				ID: "a1", EmployeeID: "emp-2", Status: domain.AssignmentProposed,
			},
			Timestamp: day(11), // older than the stored update
		},
	}, "planner-1")
	require.NoError(t, err)

	assert.Zero(t, result.Processed)
	require.Len(t, result.Conflicts, 1)
	assert.Equal(t, domain.ConflictConcurrentModification, result.Conflicts[0].Type)
	assert.Equal(t, "emp-1", store.assignments["a1"].EmployeeID)
}

func TestSyncFreshUpdateWinsAndKeepsProvenance(t *testing.T) {
	serverTime := day(10)
	store := newFakeStore()
	store.assignments["a1"] = domain.Assignment{
		ID: "a1", EmployeeID: "emp-1", Status: domain.AssignmentProposed,
		CreatedAt: day(8), CreatedBy: "planner-0", UpdatedAt: &serverTime,
	}

	r := New(store)
	// Pin the clock past the fixture dates so the test is deterministic
	// regardless of when it runs.
	r.now = func() time.Time { return day(13) }

	result, err := r.Sync(context.Background(), []domain.PlanningChange{
		{
			ID:   "c1",
			Type: domain.ChangeUpdate,
			Assignment: domain.Assignment{
				ID: "a1", EmployeeID: "emp-2", Status: domain.AssignmentProposed,
			},
			Timestamp: day(12),
		},
	}, "planner-1")
	require.NoError(t, err)

	assert.Equal(t, 1, result.Processed)
	stored := store.assignments["a1"]
	assert.Equal(t, "emp-2", stored.EmployeeID)
	assert.Equal(t, "planner-0", stored.CreatedBy)
	assert.Equal(t, day(8), stored.CreatedAt)
	require.NotNil(t, stored.UpdatedAt)
	assert.True(t, stored.UpdatedAt.After(serverTime))
}

func TestSyncDeleteIsIdempotent(t *testing.T) {
	store := newFakeStore()
	r := New(store)

	result, err := r.Sync(context.Background(), []domain.PlanningChange{
		{ID: "c1", Type: domain.ChangeDelete, Assignment: domain.Assignment{ID: "gone"}},
	}, "planner-1")
	require.NoError(t, err)

	assert.Equal(t, 1, result.Processed)
	assert.Zero(t, result.ConflictCount)
	require.Len(t, result.Results, 1)
	assert.True(t, result.Results[0].Success)
}

func TestSyncMixedBatchAppliesInOrder(t *testing.T) {
	store := newFakeStore()
	store.setWindow("demand-early", day(6), day(14))
	store.assignments["a0"] = domain.Assignment{ID: "a0", EmployeeID: "emp-9", Status: domain.AssignmentProposed}

	r := New(store)

	result, err := r.Sync(context.Background(), []domain.PlanningChange{
		{ID: "c1", Type: domain.ChangeAdd, Assignment: domain.Assignment{
			ID: "a1", DemandID: "demand-early", EmployeeID: "emp-1", Status: domain.AssignmentProposed,
		}},
		{ID: "c2", Type: domain.ChangeDelete, Assignment: domain.Assignment{ID: "a0"}},
		{ID: "c3", Type: "bogus"},
	}, "planner-1")
	require.NoError(t, err)

	assert.Equal(t, 2, result.Processed)
	require.Len(t, result.Results, 3)
	assert.Equal(t, "c1", result.Results[0].ChangeID)
	assert.Equal(t, "c2", result.Results[1].ChangeID)
	assert.False(t, result.Results[2].Success)
	assert.NotEmpty(t, result.Results[2].Error)
}

func TestSyncAddStampsCreator(t *testing.T) {
	store := newFakeStore()
	store.setWindow("demand-early", day(6), day(14))

	r := New(store)

	_, err := r.Sync(context.Background(), []domain.PlanningChange{
		{ID: "c1", Type: domain.ChangeAdd, Assignment: domain.Assignment{
			ID: "a1", DemandID: "demand-early", EmployeeID: "emp-1", Status: domain.AssignmentProposed,
		}},
	}, "planner-7")
	require.NoError(t, err)

	stored := store.assignments["a1"]
	assert.Equal(t, "planner-7", stored.CreatedBy)
	require.NotNil(t, stored.UpdatedAt)
	assert.False(t, stored.CreatedAt.IsZero())
}
