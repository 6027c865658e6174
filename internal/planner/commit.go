package planner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fabline-dev/shift-planner/backend/internal/domain"
	"github.com/google/uuid"
)

// CommitTx is the slice of transactional store operations the coordinator
// needs. The repository implements it over a SQL transaction; tests use an
// in-memory fake.
type CommitTx interface {
	GetAssignment(id string) (*domain.Assignment, error)
	// FindConfirmedOverlapping returns confirmed assignments of the same
	// employee whose shift window overlaps the given assignment's window,
	// excluding the assignment itself.
	FindConfirmedOverlapping(a *domain.Assignment) ([]domain.Assignment, error)
	UpdateAssignmentStatus(id string, status domain.AssignmentStatus) error
	MarkPlanCommitted(planID string) error
}

type CommitStore interface {
	GetPlan(ctx context.Context, id string) (*domain.PlanProposal, error)
	InTx(ctx context.Context, fn func(tx CommitTx) error) error
}

// Coordinator promotes proposed assignments to confirmed. Per-assignment
// failures are isolated; a structural error aborts the transaction with
// nothing persisted.
type Coordinator struct {
	store CommitStore
	now   func() time.Time
}

func NewCoordinator(store CommitStore) *Coordinator {
	return &Coordinator{store: store, now: time.Now}
}

// Commit verifies and promotes the selected assignments (all proposed
// assignments of the plan when assignmentIDs is empty) inside one atomic
// transaction.
func (c *Coordinator) Commit(ctx context.Context, planID string, assignmentIDs []string, userID string) (*domain.CommitResult, error) {
	plan, err := c.store.GetPlan(ctx, planID)
	if err != nil {
		return nil, err
	}
	if plan.Committed {
		return nil, fmt.Errorf("plan %s: %w", planID, domain.ErrAlreadyCommitted)
	}

	targets := assignmentIDs
	if len(targets) == 0 {
		for _, a := range plan.Assignments {
			if a.Status == domain.AssignmentProposed {
				targets = append(targets, a.ID)
			}
		}
	}

	result := &domain.CommitResult{PlanID: planID}
	err = c.store.InTx(ctx, func(tx CommitTx) error {
		for _, id := range targets {
			outcome := c.commitOne(tx, id, result)
			result.Outcomes = append(result.Outcomes, outcome)
			if outcome.Committed {
				result.Committed++
			} else {
				result.Failed++
			}
		}
		return tx.MarkPlanCommitted(planID)
	})
	if err != nil {
		return nil, err
	}

	_ = userID // recorded by the caller in the audit trail, not here
	return result, nil
}

func (c *Coordinator) commitOne(tx CommitTx, id string, result *domain.CommitResult) domain.CommitOutcome {
	a, err := tx.GetAssignment(id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.CommitOutcome{AssignmentID: id, Error: "assignment not found"}
		}
		return domain.CommitOutcome{AssignmentID: id, Error: err.Error()}
	}
	if a.Status != domain.AssignmentProposed {
		return domain.CommitOutcome{AssignmentID: id, Error: "assignment already committed"}
	}

	overlapping, err := tx.FindConfirmedOverlapping(a)
	if err != nil {
		return domain.CommitOutcome{AssignmentID: id, Error: err.Error()}
	}
	if len(overlapping) > 0 {
		affected := []string{id}
		for _, o := range overlapping {
			affected = append(affected, o.ID)
		}
		result.Conflicts = append(result.Conflicts, domain.Conflict{
			ID:                  uuid.NewString(),
			Type:                domain.ConflictDoubleBooking,
			AffectedAssignments: affected,
			Message:             fmt.Sprintf("employee %s already holds a confirmed overlapping shift", a.EmployeeID),
			DetectedAt:          c.now(),
		})
		return domain.CommitOutcome{AssignmentID: id, Error: "double booking with confirmed assignment"}
	}

	if err := tx.UpdateAssignmentStatus(id, domain.AssignmentConfirmed); err != nil {
		return domain.CommitOutcome{AssignmentID: id, Error: err.Error()}
	}
	return domain.CommitOutcome{AssignmentID: id, Committed: true}
}
