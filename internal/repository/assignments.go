package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/fabline-dev/shift-planner/backend/internal/domain"
)

func (r *Repository) CreateAssignment(ctx context.Context, a *domain.Assignment) error {
	query := `
		INSERT INTO assignments (id, demand_id, employee_id, status, score, explanation, created_at, created_by, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING version
	`

	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	params := []any{a.ID, a.DemandID, a.EmployeeID, a.Status, a.Score, a.Explanation, a.CreatedAt, a.CreatedBy, a.UpdatedAt}
	if err := r.dbpool.QueryRowContext(ctx, query, params...).Scan(&a.Version); err != nil {
		return err
	}

	return nil
}

func (r *Repository) GetAssignment(ctx context.Context, id string) (*domain.Assignment, error) {
	query := `
		SELECT demand_id, employee_id, status, score, explanation, created_at, created_by, updated_at, version
		FROM assignments
		WHERE id = $1
	`

	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	a := &domain.Assignment{ID: id}
	dst := []any{&a.DemandID, &a.EmployeeID, &a.Status, &a.Score, &a.Explanation, &a.CreatedAt, &a.CreatedBy, &a.UpdatedAt, &a.Version}
	if err := r.dbpool.QueryRowContext(ctx, query, id).Scan(dst...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}

	return a, nil
}

func (r *Repository) UpdateAssignment(ctx context.Context, a *domain.Assignment) error {
	query := `
		UPDATE assignments
		SET
			demand_id = $1,
			employee_id = $2,
			status = $3,
			score = $4,
			explanation = $5,
			updated_at = $6,
			version = version + 1
		WHERE id = $7
		RETURNING version
	`

	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	params := []any{a.DemandID, a.EmployeeID, a.Status, a.Score, a.Explanation, a.UpdatedAt, a.ID}
	if err := r.dbpool.QueryRowContext(ctx, query, params...).Scan(&a.Version); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrNotFound
		}
		return err
	}

	return nil
}

func (r *Repository) DeleteAssignment(ctx context.Context, id string) error {
	query := `
		DELETE FROM assignments WHERE id = $1
	`

	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	res, err := r.dbpool.ExecContext(ctx, query, id)
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

// assignmentRow carries an assignment joined with its slot's date and shift
// clock times, enough to resolve the concrete time window in Go.
type assignmentRow struct {
	assignment domain.Assignment
	date       time.Time
	startTime  string
	endTime    string
}

func (row *assignmentRow) window() (time.Time, time.Time) {
	st := domain.ShiftTemplate{StartTime: row.startTime, EndTime: row.endTime}
	return st.Window(row.date)
}

// FindConflicting returns all proposed or confirmed assignments of the
// employee whose shift window overlaps [shiftStart, shiftEnd). The candidate
// rows are fetched for the surrounding days and the half-open overlap
// comparison happens in Go, where the overnight rule lives.
func (r *Repository) FindConflicting(ctx context.Context, employeeID string, shiftStart, shiftEnd time.Time) ([]domain.Assignment, error) {
	query := `
		SELECT a.id, a.demand_id, a.employee_id, a.status, a.score, a.explanation, a.created_at, a.created_by, a.updated_at, a.version,
			d.date, s.start_time, s.end_time
		FROM assignments a
		JOIN demand_slots d ON a.demand_id = d.id
		JOIN shift_templates s ON d.shift_template_id = s.id
		WHERE a.employee_id = $1
			AND a.status IN ('proposed', 'confirmed')
			AND d.date BETWEEN $2 AND $3
	`

	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	// Overnight shifts on the previous day can reach into this window.
	dayStart := shiftStart.AddDate(0, 0, -1)
	dayEnd := shiftEnd.AddDate(0, 0, 1)

	rows, err := r.dbpool.QueryContext(ctx, query, employeeID, dayStart, dayEnd)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	conflicting := []domain.Assignment{}
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
			conflicting = append(conflicting, row.assignment)
		}
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return conflicting, nil
}

// FindConflictingWith resolves the assignment's own window through its demand
// slot and returns overlapping active assignments, excluding the assignment
// itself.
func (r *Repository) FindConflictingWith(ctx context.Context, a *domain.Assignment) ([]domain.Assignment, error) {
	start, end, err := r.assignmentWindow(ctx, a.DemandID)
	if err != nil {
		return nil, err
	}

	all, err := r.FindConflicting(ctx, a.EmployeeID, start, end)
	if err != nil {
		return nil, err
	}

	conflicting := all[:0]
	for _, other := range all {
		if other.ID != a.ID {
			conflicting = append(conflicting, other)
		}
	}
	return conflicting, nil
}

func (r *Repository) assignmentWindow(ctx context.Context, demandID string) (time.Time, time.Time, error) {
	query := `
		SELECT d.date, s.start_time, s.end_time
		FROM demand_slots d
		JOIN shift_templates s ON d.shift_template_id = s.id
		WHERE d.id = $1
	`

	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	var row assignmentRow
	if err := r.dbpool.QueryRowContext(ctx, query, demandID).Scan(&row.date, &row.startTime, &row.endTime); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return time.Time{}, time.Time{}, domain.ErrNotFound
		}
		return time.Time{}, time.Time{}, err
	}

	start, end := row.window()
	return start, end, nil
}

func (r *Repository) FindAssignmentsByDateRange(ctx context.Context, start, end time.Time) ([]domain.Assignment, error) {
	query := `
		SELECT a.id, a.demand_id, a.employee_id, a.status, a.score, a.explanation, a.created_at, a.created_by, a.updated_at, a.version
		FROM assignments a
		JOIN demand_slots d ON a.demand_id = d.id
		WHERE d.date BETWEEN $1 AND $2
		ORDER BY d.date, a.id
	`

	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, query, start, end)
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

// GetAssignmentStats aggregates counts, hour totals and average score over a
// date range. Hours come from shift clock times; the overnight rule is the
// same Window arithmetic used everywhere else.
func (r *Repository) GetAssignmentStats(ctx context.Context, start, end time.Time) (*domain.AssignmentStats, error) {
	query := `
		SELECT a.id, a.employee_id, a.status, a.score, d.date, s.start_time, s.end_time
		FROM assignments a
		JOIN demand_slots d ON a.demand_id = d.id
		JOIN shift_templates s ON d.shift_template_id = s.id
		WHERE d.date BETWEEN $1 AND $2
	`

	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, query, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := &domain.AssignmentStats{
		ByStatus:   map[domain.AssignmentStatus]int{},
		ByEmployee: map[string]int{},
	}
	scoreSum := 0.0

	for rows.Next() {
		var (
			id, employeeID string
			status         domain.AssignmentStatus
			score          float64
			row            assignmentRow
		)
		if err := rows.Scan(&id, &employeeID, &status, &score, &row.date, &row.startTime, &row.endTime); err != nil {
			return nil, err
		}
		stats.Total++
		stats.ByStatus[status]++
		stats.ByEmployee[employeeID]++
		scoreSum += score
		if status == domain.AssignmentConfirmed {
			shift := domain.ShiftTemplate{StartTime: row.startTime, EndTime: row.endTime}
			stats.TotalHours += shift.DurationHours()
		}
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	if stats.Total > 0 {
		stats.AverageScore = scoreSum / float64(stats.Total)
	}

	return stats, nil
}
