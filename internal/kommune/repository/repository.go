// Package repository provides read access to the municipality reference data.
// Municipalities are seeded by migration and extended by the admin path; this
// core only reads them.
package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("kommune not found")

// Priority tiers: 1 collects first, larger numbers later.
const (
	TierMajorCity = 1
	TierRegional  = 2
	TierDefault   = 3
)

type Kommune struct {
	Number       string
	Name         string
	County       string
	PriorityTier int
	PostalCodes  []string
}

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Get returns one municipality by number.
func (r *Repository) Get(ctx context.Context, number string) (Kommune, error) {
	var k Kommune
	err := r.pool.QueryRow(ctx, `
		SELECT number, name, county, priority_tier, postal_codes
		FROM kommuner
		WHERE number = $1
	`, number).Scan(&k.Number, &k.Name, &k.County, &k.PriorityTier, &k.PostalCodes)
	if errors.Is(err, pgx.ErrNoRows) {
		return Kommune{}, ErrNotFound
	}
	return k, err
}

// List returns all municipalities ordered by priority tier, then number.
func (r *Repository) List(ctx context.Context) ([]Kommune, error) {
	return r.list(ctx, `
		SELECT number, name, county, priority_tier, postal_codes
		FROM kommuner
		ORDER BY priority_tier ASC, number ASC
	`)
}

// ListByTier returns municipalities at or above a priority tier (tier 1 first).
func (r *Repository) ListByTier(ctx context.Context, maxTier int) ([]Kommune, error) {
	return r.list(ctx, `
		SELECT number, name, county, priority_tier, postal_codes
		FROM kommuner
		WHERE priority_tier <= $1
		ORDER BY priority_tier ASC, number ASC
	`, maxTier)
}

func (r *Repository) list(ctx context.Context, query string, args ...any) ([]Kommune, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	kommuner := make([]Kommune, 0)
	for rows.Next() {
		var k Kommune
		if err := rows.Scan(&k.Number, &k.Name, &k.County, &k.PriorityTier, &k.PostalCodes); err != nil {
			return nil, err
		}
		kommuner = append(kommuner, k)
	}

	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return kommuner, nil
}
