// Package repository provides transactional persistence for companies and
// their address histories.
package repository

import (
	"context"
	"errors"
	"time"

	"konkursradar_backend/internal/address"
	"konkursradar_backend/internal/companies/reconcile"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("company not found")

// ErrInvariantViolation signals that applying a plan would break the
// at-most-one-current-row invariant. It is never repaired automatically.
var ErrInvariantViolation = errors.New("address history invariant violation")

// ErrConflict signals a constraint violation during reconciliation. The
// entity-scoped transaction is rolled back and the entity retried next run.
var ErrConflict = errors.New("persistence conflict")

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type Company struct {
	ID           uuid.UUID
	OrgNumber    string
	Name         string
	OrgForm      string
	Status       string
	RegisteredAt *time.Time
	Address      address.Normalized
	LastSyncedAt *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// GetByOrgNumber returns one company by its organization number.
func (r *Repository) GetByOrgNumber(ctx context.Context, orgNumber string) (Company, error) {
	var c Company
	err := r.pool.QueryRow(ctx, `
		SELECT id, org_number, name, org_form, status, registered_at,
			address_line, postal_code, kommune_number, kommune_name,
			last_synced_at, created_at, updated_at
		FROM companies
		WHERE org_number = $1
	`, orgNumber).Scan(
		&c.ID, &c.OrgNumber, &c.Name, &c.OrgForm, &c.Status, &c.RegisteredAt,
		&c.Address.Line, &c.Address.PostalCode, &c.Address.KommuneNumber, &c.Address.KommuneName,
		&c.LastSyncedAt, &c.CreatedAt, &c.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Company{}, ErrNotFound
	}
	return c, err
}

// ListByKommune returns companies currently registered in a municipality.
func (r *Repository) ListByKommune(ctx context.Context, kommuneNumber string, limit int) ([]Company, error) {
	if limit < 1 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, org_number, name, org_form, status, registered_at,
			address_line, postal_code, kommune_number, kommune_name,
			last_synced_at, created_at, updated_at
		FROM companies
		WHERE kommune_number = $1
		ORDER BY name ASC
		LIMIT $2
	`, kommuneNumber, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	companies := make([]Company, 0)
	for rows.Next() {
		var c Company
		if err := rows.Scan(
			&c.ID, &c.OrgNumber, &c.Name, &c.OrgForm, &c.Status, &c.RegisteredAt,
			&c.Address.Line, &c.Address.PostalCode, &c.Address.KommuneNumber, &c.Address.KommuneName,
			&c.LastSyncedAt, &c.CreatedAt, &c.UpdatedAt,
		); err != nil {
			return nil, err
		}
		companies = append(companies, c)
	}

	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return companies, nil
}

// LoadStored fetches the reconciliation view of an entity: its scalar state
// plus the current address rows for both kinds. A missing entity yields
// Stored{Exists: false}, not an error.
func (r *Repository) LoadStored(ctx context.Context, orgNumber string) (reconcile.Stored, error) {
	var (
		stored    reconcile.Stored
		companyID uuid.UUID
	)

	err := r.pool.QueryRow(ctx, `
		SELECT id, name, org_form, status
		FROM companies
		WHERE org_number = $1
	`, orgNumber).Scan(&companyID, &stored.Name, &stored.OrgForm, &stored.Status)
	if errors.Is(err, pgx.ErrNoRows) {
		return reconcile.Stored{}, nil
	}
	if err != nil {
		return reconcile.Stored{}, err
	}
	stored.Exists = true

	rows, err := r.pool.Query(ctx, `
		SELECT kind, address_line, postal_code, kommune_number, kommune_name
		FROM address_history
		WHERE company_id = $1 AND is_current
	`, companyID)
	if err != nil {
		return reconcile.Stored{}, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			kind string
			addr address.Normalized
		)
		if err := rows.Scan(&kind, &addr.Line, &addr.PostalCode, &addr.KommuneNumber, &addr.KommuneName); err != nil {
			return reconcile.Stored{}, err
		}
		switch address.Kind(kind) {
		case address.KindBusiness:
			current := addr
			stored.Business = &current
		case address.KindMailing:
			current := addr
			stored.Mailing = &current
		}
	}

	if rows.Err() != nil {
		return reconcile.Stored{}, rows.Err()
	}

	return stored, nil
}

// Ping checks database connectivity for health checks.
func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}
