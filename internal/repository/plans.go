package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fabline-dev/shift-planner/backend/internal/domain"
	"github.com/fabline-dev/shift-planner/backend/internal/planner"
)

// CreatePlan stores the proposal head plus its proposed assignments in one
// transaction. Coverage and violations are derived reports; they ride along
// as JSON documents rather than normalized rows.
func (r *Repository) CreatePlan(ctx context.Context, plan *domain.PlanProposal) error {
	coverage, err := json.Marshal(plan.Coverage)
	if err != nil {
		return err
	}
	violations, err := json.Marshal(plan.Violations)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, time.Duration(r.cfg.Database.TransactionTimeout)*time.Second)
	defer cancel()

	tx, err := r.dbpool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	query := `
		INSERT INTO plans (id, strategy, range_start, range_end, coverage, violations, committed, created_at, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, false, $7, $8)
		RETURNING version
	`
	params := []any{plan.ID, plan.Strategy, plan.RangeStart, plan.RangeEnd, coverage, violations, plan.CreatedAt, plan.CreatedBy}
	if err := tx.QueryRowContext(ctx, query, params...).Scan(&plan.Version); err != nil {
		return err
	}

	for i := range plan.Assignments {
		a := &plan.Assignments[i]
		query := `
			INSERT INTO assignments (id, plan_id, demand_id, employee_id, status, score, explanation, created_at, created_by)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			RETURNING version
		`
		params := []any{a.ID, plan.ID, a.DemandID, a.EmployeeID, a.Status, a.Score, a.Explanation, a.CreatedAt, a.CreatedBy}
		if err := tx.QueryRowContext(ctx, query, params...).Scan(&a.Version); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (r *Repository) GetPlan(ctx context.Context, id string) (*domain.PlanProposal, error) {
	query := `
		SELECT strategy, range_start, range_end, coverage, violations, committed, created_at, created_by, version
		FROM plans
		WHERE id = $1
	`

	qctx, cancel := r.queryContext(ctx)
	defer cancel()

	plan := &domain.PlanProposal{ID: id}
	var coverage, violations []byte
	dst := []any{&plan.Strategy, &plan.RangeStart, &plan.RangeEnd, &coverage, &violations, &plan.Committed, &plan.CreatedAt, &plan.CreatedBy, &plan.Version}
	if err := r.dbpool.QueryRowContext(qctx, query, id).Scan(dst...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}

	if err := json.Unmarshal(coverage, &plan.Coverage); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(violations, &plan.Violations); err != nil {
		return nil, err
	}

	assignments, err := r.getPlanAssignments(ctx, id)
	if err != nil {
		return nil, err
	}
	plan.Assignments = assignments

	return plan, nil
}

func (r *Repository) getPlanAssignments(ctx context.Context, planID string) ([]domain.Assignment, error) {
	query := `
		SELECT id, demand_id, employee_id, status, score, explanation, created_at, created_by, updated_at, version
		FROM assignments
		WHERE plan_id = $1
		ORDER BY id
	`

	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, query, planID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	assignments := []domain.Assignment{}
	for rows.Next() {
		var a domain.Assignment
		dst := []any{&a.ID, &a.DemandID, &a.EmployeeID, &a.Status, &a.Score, &a.Explanation, &a.CreatedAt, &a.CreatedBy, &a.UpdatedAt, &a.Version}
		if err := rows.Scan(dst...); err != nil {
			return nil, err
		}
		assignments = append(assignments, a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return assignments, nil
}

// DeletePlan removes an uncommitted plan and its proposed assignments.
// Committed plans are immutable history and may not be deleted.
func (r *Repository) DeletePlan(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, time.Duration(r.cfg.Database.TransactionTimeout)*time.Second)
	defer cancel()

	tx, err := r.dbpool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var committed bool
	if err := tx.QueryRowContext(ctx, `SELECT committed FROM plans WHERE id = $1`, id).Scan(&committed); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrNotFound
		}
		return err
	}
	if committed {
		return fmt.Errorf("plan %s is committed: %w", id, domain.ErrConflict)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM assignments WHERE plan_id = $1 AND status = 'proposed'`, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM plans WHERE id = $1`, id); err != nil {
		return err
	}

	return tx.Commit()
}

// commitTx adapts a live SQL transaction to the commit coordinator's
// interface. All reads and status transitions of one commit call share this
// transaction.
type commitTx struct {
	ctx context.Context
	tx  *sql.Tx
	r   *Repository
}

func (r *Repository) InTx(ctx context.Context, fn func(tx planner.CommitTx) error) error {
	ctx, cancel := context.WithTimeout(ctx, time.Duration(r.cfg.Database.TransactionTimeout)*time.Second)
	defer cancel()

	tx, err := r.dbpool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(&commitTx{ctx: ctx, tx: tx, r: r}); err != nil {
		return err
	}

	return tx.Commit()
}

func (t *commitTx) GetAssignment(id string) (*domain.Assignment, error) {
	query := `
		SELECT demand_id, employee_id, status, score, explanation, created_at, created_by, updated_at, version
		FROM assignments
		WHERE id = $1
		FOR UPDATE
	`

	a := &domain.Assignment{ID: id}
	dst := []any{&a.DemandID, &a.EmployeeID, &a.Status, &a.Score, &a.Explanation, &a.CreatedAt, &a.CreatedBy, &a.UpdatedAt, &a.Version}
	if err := t.tx.QueryRowContext(t.ctx, query, id).Scan(dst...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}

	return a, nil
}

func (t *commitTx) FindConfirmedOverlapping(a *domain.Assignment) ([]domain.Assignment, error) {
	query := `
		SELECT a.id, a.demand_id, a.employee_id, a.status, a.score, a.explanation, a.created_at, a.created_by, a.updated_at, a.version,
			d.date, s.start_time, s.end_time
		FROM assignments a
		JOIN demand_slots d ON a.demand_id = d.id
		JOIN shift_templates s ON d.shift_template_id = s.id
		WHERE a.employee_id = $1
			AND a.status = 'confirmed'
			AND a.id <> $2
			AND d.date BETWEEN $3 AND $4
	`

	shiftStart, shiftEnd, err := t.windowOf(a.DemandID)
	if err != nil {
		return nil, err
	}

	rows, err := t.tx.QueryContext(t.ctx, query, a.EmployeeID, a.ID,
		shiftStart.AddDate(0, 0, -1), shiftEnd.AddDate(0, 0, 1))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	overlapping := []domain.Assignment{}
	for rows.Next() {
		var row assignmentRow
		dst := []any{
			&row.assignment.ID,
			&row.assignment.DemandID,
			&row.assignment.EmployeeID,
			&row.assignment.Status,
			&row.assignment.Score,
			&row.assignment.Explanation,
			&row.assignment.CreatedAt,
			&row.assignment.CreatedBy,
			&row.assignment.UpdatedAt,
			&row.assignment.Version,
			&row.date,
			&row.startTime,
			&row.endTime,
		}
		if err := rows.Scan(dst...); err != nil {
			return nil, err
		}
		start, end := row.window()
		if start.Before(shiftEnd) && end.After(shiftStart) {
			overlapping = append(overlapping, row.assignment)
		}
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return overlapping, nil
}

func (t *commitTx) windowOf(demandID string) (time.Time, time.Time, error) {
	query := `
		SELECT d.date, s.start_time, s.end_time
		FROM demand_slots d
		JOIN shift_templates s ON d.shift_template_id = s.id
		WHERE d.id = $1
	`

	var row assignmentRow
	if err := t.tx.QueryRowContext(t.ctx, query, demandID).Scan(&row.date, &row.startTime, &row.endTime); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return time.Time{}, time.Time{}, domain.ErrNotFound
		}
		return time.Time{}, time.Time{}, err
	}

	start, end := row.window()
	return start, end, nil
}

func (t *commitTx) UpdateAssignmentStatus(id string, status domain.AssignmentStatus) error {
	query := `
		UPDATE assignments
		SET status = $1, updated_at = NOW(), version = version + 1
		WHERE id = $2
	`

	res, err := t.tx.ExecContext(t.ctx, query, status, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrNotFound
	}

	return nil
}

func (t *commitTx) MarkPlanCommitted(planID string) error {
	query := `
		UPDATE plans
		SET committed = true, version = version + 1
		WHERE id = $1
	`

	if _, err := t.tx.ExecContext(t.ctx, query, planID); err != nil {
		return err
	}

	return nil
}
