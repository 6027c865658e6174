package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/fabline-dev/shift-planner/backend/internal/domain"
)

// CreateSnapshot persists an immutable checkpoint. The version comes from a
// database sequence, so it is monotonic across all snapshots.
func (r *Repository) CreateSnapshot(ctx context.Context, snapshot *domain.Snapshot) error {
	assignments, err := json.Marshal(snapshot.Assignments)
	if err != nil {
		return err
	}
	conflicts, err := json.Marshal(snapshot.Conflicts)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO snapshots (id, date, assignments, conflicts, created_at, created_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING version
	`

	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	params := []any{snapshot.ID, snapshot.Date, assignments, conflicts, snapshot.CreatedAt, snapshot.CreatedBy}
	if err := r.dbpool.QueryRowContext(ctx, query, params...).Scan(&snapshot.Version); err != nil {
		return err
	}

	return nil
}

func (r *Repository) GetSnapshot(ctx context.Context, id string) (*domain.Snapshot, error) {
	query := `
		SELECT date, assignments, conflicts, version, created_at, created_by
		FROM snapshots
		WHERE id = $1
	`

	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	snapshot := &domain.Snapshot{ID: id}
	var assignments, conflicts []byte
	dst := []any{&snapshot.Date, &assignments, &conflicts, &snapshot.Version, &snapshot.CreatedAt, &snapshot.CreatedBy}
	if err := r.dbpool.QueryRowContext(ctx, query, id).Scan(dst...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}

	if err := json.Unmarshal(assignments, &snapshot.Assignments); err != nil {
		return nil, err
	}
	if len(conflicts) > 0 {
		if err := json.Unmarshal(conflicts, &snapshot.Conflicts); err != nil {
			return nil, err
		}
	}

	return snapshot, nil
}
