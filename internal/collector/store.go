package collector

import (
	"context"
	"errors"
	"time"

	"konkursradar_backend/internal/companies/reconcile"
	"konkursradar_backend/internal/companies/repository"
	companysvc "konkursradar_backend/internal/companies/service"
	kommunerepo "konkursradar_backend/internal/kommune/repository"
)

// ErrNoWatermark signals that a municipality has never completed a sync.
var ErrNoWatermark = errors.New("no watermark")

// RepositoryStore adapts the companies module to the collector's Store:
// reconciliation goes through the companies service so its invariant
// logging applies to collected entities, watermarks go to the repository.
type RepositoryStore struct {
	repo      *repository.Repository
	companies *companysvc.Service
}

// NewRepositoryStore wraps the companies repository and service for use by
// a collector.
func NewRepositoryStore(repo *repository.Repository, companies *companysvc.Service) *RepositoryStore {
	return &RepositoryStore{repo: repo, companies: companies}
}

func (s *RepositoryStore) Reconcile(ctx context.Context, obs reconcile.Observation) (reconcile.Classification, error) {
	return s.companies.Reconcile(ctx, obs)
}

func (s *RepositoryStore) GetWatermark(ctx context.Context, kommuneNumber string) (Watermark, error) {
	wm, err := s.repo.GetWatermark(ctx, kommuneNumber)
	if errors.Is(err, repository.ErrNotFound) {
		return Watermark{}, ErrNoWatermark
	}
	if err != nil {
		return Watermark{}, err
	}
	return Watermark{
		KommuneNumber: wm.KommuneNumber,
		LastSyncedAt:  wm.LastSyncedAt,
		LastPage:      wm.LastPage,
	}, nil
}

func (s *RepositoryStore) AdvanceWatermark(ctx context.Context, kommuneNumber string, syncedAt time.Time, lastPage int, coveredDays []time.Time) error {
	return s.repo.AdvanceWatermark(ctx, kommuneNumber, syncedAt, lastPage, coveredDays)
}

// KommuneList adapts the kommune repository to the collector's KommuneSource.
type KommuneList struct {
	repo *kommunerepo.Repository
}

// NewKommuneList wraps the kommune repository for use by a collector.
func NewKommuneList(repo *kommunerepo.Repository) *KommuneList {
	return &KommuneList{repo: repo}
}

func (k *KommuneList) List(ctx context.Context) ([]Target, error) {
	kommuner, err := k.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	return toTargets(kommuner), nil
}

// Get resolves one municipality to a collection target.
func (k *KommuneList) Get(ctx context.Context, number string) (Target, error) {
	kommune, err := k.repo.Get(ctx, number)
	if err != nil {
		return Target{}, err
	}
	return toTarget(kommune), nil
}

func toTargets(kommuner []kommunerepo.Kommune) []Target {
	targets := make([]Target, 0, len(kommuner))
	for _, k := range kommuner {
		targets = append(targets, toTarget(k))
	}
	return targets
}

func toTarget(k kommunerepo.Kommune) Target {
	return Target{
		Number:      k.Number,
		Name:        k.Name,
		Priority:    k.PriorityTier,
		PostalCodes: k.PostalCodes,
	}
}
