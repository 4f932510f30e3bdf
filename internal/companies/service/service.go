// Package service provides business logic for the companies read API and
// single-entity reconciliation.
package service

import (
	"context"
	"errors"
	"time"

	"konkursradar_backend/internal/companies/reconcile"
	"konkursradar_backend/internal/companies/repository"
	"konkursradar_backend/internal/companies/transport"
	"konkursradar_backend/platform/apperr"
	"konkursradar_backend/platform/logger"
)

// Service provides read access to companies and their address histories.
type Service struct {
	repo *repository.Repository
	log  *logger.Logger
}

// New creates a new companies service.
func New(repo *repository.Repository, log *logger.Logger) *Service {
	return &Service{repo: repo, log: log}
}

// GetByOrgNumber retrieves one company by organization number.
func (s *Service) GetByOrgNumber(ctx context.Context, orgNumber string) (transport.CompanyResponse, error) {
	c, err := s.repo.GetByOrgNumber(ctx, orgNumber)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return transport.CompanyResponse{}, apperr.NotFound("company not found")
		}
		return transport.CompanyResponse{}, err
	}
	return toResponse(c), nil
}

// ListByKommune retrieves companies currently registered in a municipality.
func (s *Service) ListByKommune(ctx context.Context, req transport.ListCompaniesRequest) (transport.CompanyListResponse, error) {
	limit := req.Limit
	if limit < 1 {
		limit = 100
	}

	companies, err := s.repo.ListByKommune(ctx, req.Kommune, limit)
	if err != nil {
		return transport.CompanyListResponse{}, err
	}

	out := make([]transport.CompanyResponse, 0, len(companies))
	for _, c := range companies {
		if req.Status != "" && c.Status != req.Status {
			continue
		}
		out = append(out, toResponse(c))
	}

	return transport.CompanyListResponse{Companies: out, Total: len(out)}, nil
}

// AddressHistory retrieves the address interval series for one company,
// newest first. The optional window restricts results to intervals that
// overlap [from, to).
func (s *Service) AddressHistory(ctx context.Context, orgNumber string, window transport.HistoryWindowRequest) (transport.AddressHistoryResponse, error) {
	c, err := s.repo.GetByOrgNumber(ctx, orgNumber)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return transport.AddressHistoryResponse{}, apperr.NotFound("company not found")
		}
		return transport.AddressHistoryResponse{}, err
	}

	var rows []repository.AddressHistoryRow
	if window.From != nil || window.To != nil {
		from := time.Time{}
		if window.From != nil {
			from = *window.From
		}
		to := time.Now().UTC()
		if window.To != nil {
			to = *window.To
		}
		if !to.After(from) {
			return transport.AddressHistoryResponse{}, apperr.Validation("history window is empty")
		}
		rows, err = s.repo.ListHistoryBetween(ctx, c.ID, from, to)
	} else {
		rows, err = s.repo.ListHistory(ctx, c.ID)
	}
	if err != nil {
		return transport.AddressHistoryResponse{}, err
	}

	entries := make([]transport.AddressHistoryEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, transport.AddressHistoryEntry{
			Kind:          string(row.Kind),
			AddressLine:   row.Address.Line,
			PostalCode:    row.Address.PostalCode,
			KommuneNumber: row.Address.KommuneNumber,
			KommuneName:   row.Address.KommuneName,
			ValidFrom:     row.ValidFrom,
			ValidTo:       row.ValidTo,
			IsCurrent:     row.IsCurrent,
		})
	}

	return transport.AddressHistoryResponse{OrgNumber: orgNumber, Entries: entries}, nil
}

// Reconcile folds one observation into the store: diff against stored state,
// then apply the resulting plan in a single entity-scoped transaction.
func (s *Service) Reconcile(ctx context.Context, obs reconcile.Observation) (reconcile.Classification, error) {
	stored, err := s.repo.LoadStored(ctx, obs.OrgNumber)
	if err != nil {
		return "", err
	}

	plan := reconcile.Diff(obs, stored)
	if err := s.repo.Apply(ctx, plan); err != nil {
		if errors.Is(err, repository.ErrInvariantViolation) {
			s.log.InvariantViolation(obs.OrgNumber, "", err.Error())
		}
		return "", err
	}

	return plan.Classification, nil
}

func toResponse(c repository.Company) transport.CompanyResponse {
	resp := transport.CompanyResponse{
		OrgNumber:     c.OrgNumber,
		Name:          c.Name,
		OrgForm:       c.OrgForm,
		Status:        c.Status,
		AddressLine:   c.Address.Line,
		PostalCode:    c.Address.PostalCode,
		KommuneNumber: c.Address.KommuneNumber,
		KommuneName:   c.Address.KommuneName,
		LastSyncedAt:  c.LastSyncedAt,
	}
	if c.RegisteredAt != nil {
		reg := c.RegisteredAt.Format("2006-01-02")
		resp.RegisteredAt = &reg
	}
	return resp
}
