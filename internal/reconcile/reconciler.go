package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fabline-dev/shift-planner/backend/internal/domain"
	"github.com/google/uuid"
)

// AssignmentStore is the slice of the durable store the reconciler applies
// changes against. The repository implements it; tests use an in-memory fake.
type AssignmentStore interface {
	GetAssignment(ctx context.Context, id string) (*domain.Assignment, error)
	CreateAssignment(ctx context.Context, a *domain.Assignment) error
	UpdateAssignment(ctx context.Context, a *domain.Assignment) error
	DeleteAssignment(ctx context.Context, id string) error
	// FindConflictingWith returns proposed or confirmed assignments of the
	// same employee whose shift window overlaps the given assignment's,
	// excluding the assignment itself.
	FindConflictingWith(ctx context.Context, a *domain.Assignment) ([]domain.Assignment, error)
}

type ChangeResult struct {
	ChangeID string `json:"changeId"`
	Success  bool   `json:"success"`
	Error    string `json:"error,omitempty"`
}

type Result struct {
	Processed     int               `json:"processed"`
	ConflictCount int               `json:"conflictCount"`
	Results       []ChangeResult    `json:"results"`
	Conflicts     []domain.Conflict `json:"conflicts"`
}

// Reconciler applies client-originated change batches change-by-change; one
// change's failure never blocks independent changes in the same batch.
type Reconciler struct {
	store AssignmentStore
	now   func() time.Time
}

func New(store AssignmentStore) *Reconciler {
	return &Reconciler{store: store, now: time.Now}
}

// Sync applies the batch in array order. Conflicts are returned as data,
// never as errors, because a batch may mix successes and conflicts.
func (r *Reconciler) Sync(ctx context.Context, changes []domain.PlanningChange, userID string) (*Result, error) {
	result := &Result{Results: make([]ChangeResult, 0, len(changes))}

	for _, change := range changes {
		var conflict *domain.Conflict
		var err error

		switch change.Type {
		case domain.ChangeAdd:
			conflict, err = r.applyAdd(ctx, &change, userID)
		case domain.ChangeUpdate:
			conflict, err = r.applyUpdate(ctx, &change)
		case domain.ChangeDelete:
			err = r.applyDelete(ctx, &change)
		default:
			err = fmt.Errorf("unknown change type %q", change.Type)
		}

		switch {
		case conflict != nil:
			result.Conflicts = append(result.Conflicts, *conflict)
			result.ConflictCount++
			result.Results = append(result.Results, ChangeResult{ChangeID: change.ID, Error: conflict.Message})
		case err != nil:
			result.Results = append(result.Results, ChangeResult{ChangeID: change.ID, Error: err.Error()})
		default:
			result.Results = append(result.Results, ChangeResult{ChangeID: change.ID, Success: true})
			result.Processed++
		}
	}

	return result, nil
}

func (r *Reconciler) applyAdd(ctx context.Context, change *domain.PlanningChange, userID string) (*domain.Conflict, error) {
	a := change.Assignment

	if _, err := r.store.GetAssignment(ctx, a.ID); err == nil {
		return r.conflict(domain.ConflictConcurrentModification,
			fmt.Sprintf("assignment %s already exists", a.ID), a.ID), nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	overlapping, err := r.store.FindConflictingWith(ctx, &a)
	if err != nil {
		return nil, err
	}
	if len(overlapping) > 0 {
		affected := []string{a.ID}
		for _, o := range overlapping {
			affected = append(affected, o.ID)
		}
		return r.conflict(domain.ConflictDoubleBooking,
			fmt.Sprintf("employee %s already booked: overlaps %s", a.EmployeeID, strings.Join(affected[1:], ", ")),
			affected...), nil
	}

	now := r.now()
	a.CreatedBy = userID
	a.UpdatedAt = &now
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	if err := r.store.CreateAssignment(ctx, &a); err != nil {
		return nil, err
	}
	return nil, nil
}

func (r *Reconciler) applyUpdate(ctx context.Context, change *domain.PlanningChange) (*domain.Conflict, error) {
	a := change.Assignment

	stored, err := r.store.GetAssignment(ctx, a.ID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return r.conflict(domain.ConflictConcurrentModification,
				fmt.Sprintf("assignment %s not found for update", a.ID), a.ID), nil
		}
		return nil, err
	}

	// Last-timestamp-wins detection, not last-write-wins: a stored state newer
	// than the client's edit is never silently overwritten.
	if stored.UpdatedAt != nil && stored.UpdatedAt.After(change.Timestamp) {
		return r.conflict(domain.ConflictConcurrentModification,
			fmt.Sprintf("assignment %s was modified by another user", a.ID), a.ID), nil
	}

	now := r.now()
	a.CreatedAt = stored.CreatedAt
	a.CreatedBy = stored.CreatedBy
	a.UpdatedAt = &now
	if err := r.store.UpdateAssignment(ctx, &a); err != nil {
		return nil, err
	}
	return nil, nil
}

// applyDelete is idempotent: deleting an assignment that is already gone is a
// successful no-op, not a conflict.
func (r *Reconciler) applyDelete(ctx context.Context, change *domain.PlanningChange) error {
	err := r.store.DeleteAssignment(ctx, change.Assignment.ID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	return err
}

func (r *Reconciler) conflict(t domain.ConflictType, msg string, affected ...string) *domain.Conflict {
	return &domain.Conflict{
		ID:                  uuid.NewString(),
		Type:                t,
		AffectedAssignments: affected,
		Message:             msg,
		DetectedAt:          r.now(),
	}
}
