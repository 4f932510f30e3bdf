package repository

import (
	"context"
	"time"

	"konkursradar_backend/internal/address"

	"github.com/google/uuid"
)

type AddressHistoryRow struct {
	ID        uuid.UUID
	CompanyID uuid.UUID
	Kind      address.Kind
	Address   address.Normalized
	ValidFrom time.Time
	ValidTo   *time.Time
	IsCurrent bool
	CreatedAt time.Time
}

// ListHistory returns the full address history for a company, newest first.
// Consumers must tolerate duplicate-looking rows: a reappearing old address
// is recorded as a fresh residency, not merged with its historical row.
func (r *Repository) ListHistory(ctx context.Context, companyID uuid.UUID) ([]AddressHistoryRow, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, company_id, kind, address_line, postal_code, kommune_number, kommune_name,
			valid_from, valid_to, is_current, created_at
		FROM address_history
		WHERE company_id = $1
		ORDER BY valid_from DESC, created_at DESC
	`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var history []AddressHistoryRow
	for rows.Next() {
		var row AddressHistoryRow
		if err := rows.Scan(
			&row.ID, &row.CompanyID, &row.Kind,
			&row.Address.Line, &row.Address.PostalCode, &row.Address.KommuneNumber, &row.Address.KommuneName,
			&row.ValidFrom, &row.ValidTo, &row.IsCurrent, &row.CreatedAt,
		); err != nil {
			return nil, err
		}
		history = append(history, row)
	}

	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return history, nil
}

// ListHistoryBetween returns rows whose validity interval overlaps [from, to).
func (r *Repository) ListHistoryBetween(ctx context.Context, companyID uuid.UUID, from, to time.Time) ([]AddressHistoryRow, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, company_id, kind, address_line, postal_code, kommune_number, kommune_name,
			valid_from, valid_to, is_current, created_at
		FROM address_history
		WHERE company_id = $1
		  AND valid_from < $3
		  AND (valid_to IS NULL OR valid_to > $2)
		ORDER BY valid_from ASC
	`, companyID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var history []AddressHistoryRow
	for rows.Next() {
		var row AddressHistoryRow
		if err := rows.Scan(
			&row.ID, &row.CompanyID, &row.Kind,
			&row.Address.Line, &row.Address.PostalCode, &row.Address.KommuneNumber, &row.Address.KommuneName,
			&row.ValidFrom, &row.ValidTo, &row.IsCurrent, &row.CreatedAt,
		); err != nil {
			return nil, err
		}
		history = append(history, row)
	}

	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return history, nil
}
