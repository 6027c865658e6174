package planner

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fabline-dev/shift-planner/backend/internal/domain"
)

type fakeCommitStore struct {
	plan        *domain.PlanProposal
	assignments map[string]*domain.Assignment
	// overlapping maps an assignment id to the confirmed assignments it
	// collides with.
	overlapping   map[string][]domain.Assignment
	planCommitted bool
}

func newFakeCommitStore(plan *domain.PlanProposal) *fakeCommitStore {
	s := &fakeCommitStore{
		plan:        plan,
		assignments: map[string]*domain.Assignment{},
		overlapping: map[string][]domain.Assignment{},
	}
	for i := range plan.Assignments {
		a := plan.Assignments[i]
		s.assignments[a.ID] = &a
	}
	return s
}

func (s *fakeCommitStore) GetPlan(_ context.Context, id string) (*domain.PlanProposal, error) {
	if s.plan == nil || s.plan.ID != id {
		return nil, domain.ErrNotFound
	}
	return s.plan, nil
}

func (s *fakeCommitStore) InTx(_ context.Context, fn func(tx CommitTx) error) error {
	return fn(s)
}

func (s *fakeCommitStore) GetAssignment(id string) (*domain.Assignment, error) {
	a, ok := s.assignments[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return a, nil
}

func (s *fakeCommitStore) FindConfirmedOverlapping(a *domain.Assignment) ([]domain.Assignment, error) {
	return s.overlapping[a.ID], nil
}

func (s *fakeCommitStore) UpdateAssignmentStatus(id string, status domain.AssignmentStatus) error {
	a, ok := s.assignments[id]
	if !ok {
		return domain.ErrNotFound
	}
	a.Status = status
	return nil
}

func (s *fakeCommitStore) MarkPlanCommitted(string) error {
	s.planCommitted = true
	return nil
}

func proposedPlan(ids ...string) *domain.PlanProposal {
	plan := &domain.PlanProposal{ID: "plan-1", CreatedAt: time.Now()}
	for _, id := range ids {
		plan.Assignments = append(plan.Assignments, domain.Assignment{
			ID: id, EmployeeID: "emp-" + id, Status: domain.AssignmentProposed,
		})
	}
	return plan
}

func TestCommitAllProposedWhenNoTargetsGiven(t *testing.T) {
	store := newFakeCommitStore(proposedPlan("a1", "a2", "a3"))
	c := NewCoordinator(store)

	result, err := c.Commit(context.Background(), "plan-1", nil, "planner-1")
	require.NoError(t, err)

	assert.Equal(t, 3, result.Committed)
	assert.Zero(t, result.Failed)
	for _, a := range store.assignments {
		assert.Equal(t, domain.AssignmentConfirmed, a.Status)
	}
	assert.True(t, store.planCommitted)
}

func TestCommitAlreadyCommittedPlan(t *testing.T) {
	plan := proposedPlan("a1")
	plan.Committed = true
	c := NewCoordinator(newFakeCommitStore(plan))

	_, err := c.Commit(context.Background(), "plan-1", nil, "planner-1")
	assert.ErrorIs(t, err, domain.ErrAlreadyCommitted)
}

func TestCommitUnknownPlan(t *testing.T) {
	c := NewCoordinator(newFakeCommitStore(proposedPlan("a1")))

	_, err := c.Commit(context.Background(), "no-such-plan", nil, "planner-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCommitIsolatesPerAssignmentFailures(t *testing.T) {
	store := newFakeCommitStore(proposedPlan("a1", "a2"))
	c := NewCoordinator(store)

	result, err := c.Commit(context.Background(), "plan-1", []string{"a1", "missing", "a2"}, "planner-1")
	require.NoError(t, err)

	assert.Equal(t, 2, result.Committed)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Outcomes, 3)
	assert.True(t, result.Outcomes[0].Committed)
	assert.False(t, result.Outcomes[1].Committed)
	assert.Equal(t, "assignment not found", result.Outcomes[1].Error)
	assert.True(t, result.Outcomes[2].Committed)
}

func TestCommitDoubleBookingAgainstConfirmed(t *testing.T) {
	store := newFakeCommitStore(proposedPlan("a1"))
	store.overlapping["a1"] = []domain.Assignment{
		{ID: "confirmed-1", EmployeeID: "emp-a1", Status: domain.AssignmentConfirmed},
	}
	c := NewCoordinator(store)

	result, err := c.Commit(context.Background(), "plan-1", nil, "planner-1")
	require.NoError(t, err)

	assert.Zero(t, result.Committed)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Conflicts, 1)
	assert.Equal(t, domain.ConflictDoubleBooking, result.Conflicts[0].Type)
	assert.ElementsMatch(t, []string{"a1", "confirmed-1"}, result.Conflicts[0].AffectedAssignments)
	// The losing assignment stays proposed.
	assert.Equal(t, domain.AssignmentProposed, store.assignments["a1"].Status)
}

func TestCommitSkipsNonProposedAssignments(t *testing.T) {
	plan := proposedPlan("a1")
	plan.Assignments[0].Status = domain.AssignmentConfirmed
	store := newFakeCommitStore(plan)
	c := NewCoordinator(store)

	result, err := c.Commit(context.Background(), "plan-1", []string{"a1"}, "planner-1")
	require.NoError(t, err)

	assert.Zero(t, result.Committed)
	require.Len(t, result.Outcomes, 1)
	assert.Equal(t, "assignment already committed", result.Outcomes[0].Error)
}
