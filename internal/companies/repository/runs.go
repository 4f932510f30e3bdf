package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type RunRecord struct {
	ID         uuid.UUID
	Scope      string
	StartedAt  time.Time
	FinishedAt *time.Time
	Seen       int
	Created    int
	Updated    int
	Moved      int
	Unchanged  int
	Errors     int
	Notes      string
}

// StartRun records the beginning of a collection run.
func (r *Repository) StartRun(ctx context.Context, scope string, startedAt time.Time) (uuid.UUID, error) {
	var id uuid.UUID
	err := r.pool.QueryRow(ctx, `
		INSERT INTO collection_runs (scope, started_at)
		VALUES ($1, $2)
		RETURNING id
	`, scope, startedAt).Scan(&id)
	return id, err
}

// FinishRun records the aggregate outcome of a run. Partial success is a
// normal outcome: errors > 0 does not invalidate the run.
func (r *Repository) FinishRun(ctx context.Context, id uuid.UUID, rec RunRecord) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE collection_runs
		SET finished_at = $2, seen = $3, created = $4, updated = $5,
			moved = $6, unchanged = $7, errors = $8, notes = $9
		WHERE id = $1
	`, id, rec.FinishedAt, rec.Seen, rec.Created, rec.Updated, rec.Moved, rec.Unchanged, rec.Errors, rec.Notes)
	return err
}

// ListRuns returns the most recent collection runs, newest first.
func (r *Repository) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit < 1 {
		limit = 20
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, scope, started_at, finished_at, seen, created, updated, moved, unchanged, errors, notes
		FROM collection_runs
		ORDER BY started_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		var rec RunRecord
		if err := rows.Scan(
			&rec.ID, &rec.Scope, &rec.StartedAt, &rec.FinishedAt,
			&rec.Seen, &rec.Created, &rec.Updated, &rec.Moved, &rec.Unchanged, &rec.Errors, &rec.Notes,
		); err != nil {
			return nil, err
		}
		runs = append(runs, rec)
	}

	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return runs, nil
}
