package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
)

type Watermark struct {
	KommuneNumber string
	LastSyncedAt  time.Time
	LastPage      int
	UpdatedAt     time.Time
}

// GetWatermark returns the sync watermark for a municipality, or ErrNotFound
// when the municipality has never completed a collection.
func (r *Repository) GetWatermark(ctx context.Context, kommuneNumber string) (Watermark, error) {
	var w Watermark
	err := r.pool.QueryRow(ctx, `
		SELECT kommune_number, last_synced_at, last_page, updated_at
		FROM sync_watermarks
		WHERE kommune_number = $1
	`, kommuneNumber).Scan(&w.KommuneNumber, &w.LastSyncedAt, &w.LastPage, &w.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Watermark{}, ErrNotFound
	}
	return w, err
}

// AdvanceWatermark records a completed collection batch: the watermark row
// and the covered calendar days move together in one transaction, strictly
// after the batch's entities were committed. The watermark therefore never
// claims coverage for data that failed to persist.
func (r *Repository) AdvanceWatermark(ctx context.Context, kommuneNumber string, syncedAt time.Time, lastPage int, coveredDays []time.Time) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if _, err = tx.Exec(ctx, `
		INSERT INTO sync_watermarks (kommune_number, last_synced_at, last_page, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (kommune_number) DO UPDATE
		SET last_synced_at = GREATEST(sync_watermarks.last_synced_at, EXCLUDED.last_synced_at),
			last_page = EXCLUDED.last_page,
			updated_at = now()
	`, kommuneNumber, syncedAt, lastPage); err != nil {
		return err
	}

	for _, day := range coveredDays {
		if _, err = tx.Exec(ctx, `
			INSERT INTO watermark_days (kommune_number, covered_on)
			VALUES ($1, $2)
			ON CONFLICT (kommune_number, covered_on) DO NOTHING
		`, kommuneNumber, day); err != nil {
			return err
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return err
	}

	return nil
}

// CoveredDays returns the distinct calendar days with watermark coverage for
// a municipality, ascending.
func (r *Repository) CoveredDays(ctx context.Context, kommuneNumber string) ([]time.Time, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT covered_on
		FROM watermark_days
		WHERE kommune_number = $1
		ORDER BY covered_on ASC
	`, kommuneNumber)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var days []time.Time
	for rows.Next() {
		var day time.Time
		if err := rows.Scan(&day); err != nil {
			return nil, err
		}
		days = append(days, day)
	}

	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return days, nil
}
