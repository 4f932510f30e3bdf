package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"konkursradar_backend/internal/companies/reconcile"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Apply executes one reconciliation plan inside a single entity-scoped
// transaction: scalar upsert, then close-then-open history pairs. The
// company row is locked first so concurrent streams touching the same
// organization number serialize deterministically, keeping the
// one-current-row invariant safe under races.
//
// Any failure rolls back the entire plan; the entity keeps its prior state
// and is retried on the next run.
func (r *Repository) Apply(ctx context.Context, plan reconcile.Plan) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	companyID, err := upsertCompany(ctx, tx, plan.Company)
	if err != nil {
		return mapConflict(err)
	}

	for _, change := range plan.Changes {
		if err = applyChange(ctx, tx, companyID, change); err != nil {
			return err
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return err
	}

	return nil
}

// upsertCompany writes the scalar fields, locking the row when it exists.
func upsertCompany(ctx context.Context, tx pgx.Tx, fields reconcile.CompanyFields) (uuid.UUID, error) {
	var id uuid.UUID

	// Lock the existing row first so the rest of the plan sees a stable state.
	err := tx.QueryRow(ctx, `
		SELECT id FROM companies WHERE org_number = $1 FOR UPDATE
	`, fields.OrgNumber).Scan(&id)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, err
	}

	var registeredAt *time.Time
	if !fields.RegisteredAt.IsZero() {
		t := fields.RegisteredAt
		registeredAt = &t
	}

	if errors.Is(err, pgx.ErrNoRows) {
		insert := tx.QueryRow(ctx, `
			INSERT INTO companies (org_number, name, org_form, status, registered_at, last_synced_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id
		`, fields.OrgNumber, fields.Name, fields.OrgForm, fields.Status, registeredAt, fields.ObservedAt)
		if err := insert.Scan(&id); err != nil {
			return uuid.Nil, err
		}
	} else {
		if _, err := tx.Exec(ctx, `
			UPDATE companies
			SET name = $2, org_form = $3, status = $4, registered_at = COALESCE($5, registered_at),
				last_synced_at = $6, updated_at = now()
			WHERE id = $1
		`, id, fields.Name, fields.OrgForm, fields.Status, registeredAt, fields.ObservedAt); err != nil {
			return uuid.Nil, err
		}
	}

	// Mirror the current business address onto the company row.
	if fields.Business != nil {
		if _, err := tx.Exec(ctx, `
			UPDATE companies
			SET address_line = $2, postal_code = $3, kommune_number = $4, kommune_name = $5
			WHERE id = $1
		`, id, fields.Business.Line, fields.Business.PostalCode, fields.Business.KommuneNumber, fields.Business.KommuneName); err != nil {
			return uuid.Nil, err
		}
	}

	return id, nil
}

func applyChange(ctx context.Context, tx pgx.Tx, companyID uuid.UUID, change reconcile.HistoryChange) error {
	now := change.OpenFrom

	if change.CloseCurrent {
		tag, err := tx.Exec(ctx, `
			UPDATE address_history
			SET valid_to = $3, is_current = false
			WHERE company_id = $1 AND kind = $2 AND is_current
		`, companyID, string(change.Kind), now)
		if err != nil {
			return mapConflict(err)
		}
		if tag.RowsAffected() != 1 {
			return fmt.Errorf("%w: expected one current %s row to close, closed %d",
				ErrInvariantViolation, change.Kind, tag.RowsAffected())
		}
	}

	if change.Open == nil {
		return nil
	}

	// Defensive check: after any close there must be no open row left for
	// the kind. A leftover row means double-current and is never repaired here.
	var openRows int
	if err := tx.QueryRow(ctx, `
		SELECT count(*) FROM address_history
		WHERE company_id = $1 AND kind = $2 AND is_current
	`, companyID, string(change.Kind)).Scan(&openRows); err != nil {
		return err
	}
	if openRows != 0 {
		return fmt.Errorf("%w: %d current %s rows before open", ErrInvariantViolation, openRows, change.Kind)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO address_history (company_id, kind, address_line, postal_code, kommune_number, kommune_name, valid_from, is_current)
		VALUES ($1, $2, $3, $4, $5, $6, $7, true)
	`, companyID, string(change.Kind), change.Open.Line, change.Open.PostalCode,
		change.Open.KommuneNumber, change.Open.KommuneName, change.OpenFrom); err != nil {
		return mapConflict(err)
	}

	return nil
}

// mapConflict converts constraint violations to ErrConflict so callers can
// count them without inspecting driver internals.
func mapConflict(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w: %s", ErrConflict, pgErr.ConstraintName)
	}
	return err
}
