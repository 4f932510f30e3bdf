// Package service runs collections on request and records their outcomes.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"konkursradar_backend/internal/collector"
	"konkursradar_backend/internal/collections/transport"
	"konkursradar_backend/internal/companies/repository"
	kommunerepo "konkursradar_backend/internal/kommune/repository"
	"konkursradar_backend/platform/apperr"
	"konkursradar_backend/platform/logger"

	"github.com/google/uuid"
)

// priorityTierCutoff bounds which tiers a scope=priority run collects.
const priorityTierCutoff = kommunerepo.TierMajorCity

// RunRecorder persists collection run outcomes. Satisfied by the companies
// repository.
type RunRecorder interface {
	StartRun(ctx context.Context, scope string, startedAt time.Time) (uuid.UUID, error)
	FinishRun(ctx context.Context, id uuid.UUID, rec repository.RunRecord) error
	ListRuns(ctx context.Context, limit int) ([]repository.RunRecord, error)
}

// KommuneSource resolves run scopes to collection targets.
type KommuneSource interface {
	List(ctx context.Context) ([]kommunerepo.Kommune, error)
	ListByTier(ctx context.Context, maxTier int) ([]kommunerepo.Kommune, error)
	Get(ctx context.Context, number string) (kommunerepo.Kommune, error)
}

// RunScheduler enqueues collection runs for the worker process. Satisfied
// by the scheduler client. Nil when no queue is configured.
type RunScheduler interface {
	ScheduleRun(ctx context.Context, scope, kommune string, runAt time.Time) error
}

// Service triggers collection runs and exposes their history.
type Service struct {
	collect  *collector.Collector
	kommuner KommuneSource
	runs     RunRecorder
	sched    RunScheduler
	log      *logger.Logger
	now      func() time.Time
}

// New creates a collection run service.
func New(collect *collector.Collector, kommuner KommuneSource, runs RunRecorder, sched RunScheduler, log *logger.Logger) *Service {
	return &Service{
		collect:  collect,
		kommuner: kommuner,
		runs:     runs,
		sched:    sched,
		log:      log,
		now:      time.Now,
	}
}

// Run executes a collection run synchronously for the requested scope and
// records its outcome. Partial success is a normal result.
func (s *Service) Run(ctx context.Context, req transport.RunRequest) (transport.RunResponse, error) {
	targets, err := s.resolveScope(ctx, req)
	if err != nil {
		return transport.RunResponse{}, err
	}

	startedAt := s.now().UTC()
	runID, err := s.runs.StartRun(ctx, req.Scope, startedAt)
	if err != nil {
		return transport.RunResponse{}, fmt.Errorf("record run start: %w", err)
	}

	stats, runErr := s.collect.RunTargets(ctx, targets, nil)

	finishedAt := s.now().UTC()
	rec := repository.RunRecord{
		FinishedAt: &finishedAt,
		Seen:       stats.Seen,
		Created:    stats.Created,
		Updated:    stats.Updated,
		Moved:      stats.Moved,
		Unchanged:  stats.Unchanged,
		Errors:     stats.Errors,
		Notes:      runNotes(stats),
	}
	if err := s.runs.FinishRun(ctx, runID, rec); err != nil {
		s.log.DatabaseError("finish collection run", err)
	}

	if runErr != nil {
		return transport.RunResponse{}, runErr
	}

	return toRunResponse(runID, req.Scope, stats), nil
}

// ScheduleRun validates the request and enqueues the run on the worker
// queue. Large scopes belong here rather than in the synchronous path.
func (s *Service) ScheduleRun(ctx context.Context, req transport.ScheduleRunRequest) (transport.ScheduleRunResponse, error) {
	if s.sched == nil {
		return transport.ScheduleRunResponse{}, apperr.Unavailable("scheduler queue is not configured")
	}
	if _, err := s.resolveScope(ctx, transport.RunRequest{Scope: req.Scope, Kommune: req.Kommune}); err != nil {
		return transport.ScheduleRunResponse{}, err
	}

	runAt := s.now().UTC().Add(time.Duration(req.DelayMinutes) * time.Minute)
	if err := s.sched.ScheduleRun(ctx, req.Scope, req.Kommune, runAt); err != nil {
		return transport.ScheduleRunResponse{}, apperr.Wrap(apperr.KindUnavailable, "enqueue collection run", err)
	}

	return transport.ScheduleRunResponse{Scope: req.Scope, Kommune: req.Kommune, RunAt: runAt}, nil
}

// ListRuns returns the most recent collection runs, newest first.
func (s *Service) ListRuns(ctx context.Context, limit int) (transport.RunListResponse, error) {
	runs, err := s.runs.ListRuns(ctx, limit)
	if err != nil {
		return transport.RunListResponse{}, err
	}

	resp := transport.RunListResponse{Runs: make([]transport.RunRecordResponse, 0, len(runs))}
	for _, rec := range runs {
		resp.Runs = append(resp.Runs, transport.RunRecordResponse{
			ID:         rec.ID.String(),
			Scope:      rec.Scope,
			StartedAt:  rec.StartedAt,
			FinishedAt: rec.FinishedAt,
			Seen:       rec.Seen,
			Created:    rec.Created,
			Updated:    rec.Updated,
			Moved:      rec.Moved,
			Unchanged:  rec.Unchanged,
			Errors:     rec.Errors,
			Notes:      rec.Notes,
		})
	}
	return resp, nil
}

func (s *Service) resolveScope(ctx context.Context, req transport.RunRequest) ([]collector.Target, error) {
	switch req.Scope {
	case transport.ScopeAll:
		kommuner, err := s.kommuner.List(ctx)
		if err != nil {
			return nil, err
		}
		return toTargets(kommuner), nil
	case transport.ScopePriority:
		kommuner, err := s.kommuner.ListByTier(ctx, priorityTierCutoff)
		if err != nil {
			return nil, err
		}
		return toTargets(kommuner), nil
	case transport.ScopeKommune:
		if req.Kommune == "" {
			return nil, apperr.Validation("kommune is required for scope=kommune")
		}
		kommune, err := s.kommuner.Get(ctx, req.Kommune)
		if errors.Is(err, kommunerepo.ErrNotFound) {
			return nil, apperr.NotFound("kommune not found")
		}
		if err != nil {
			return nil, err
		}
		return toTargets([]kommunerepo.Kommune{kommune}), nil
	default:
		return nil, apperr.Validation("unknown scope")
	}
}

func toTargets(kommuner []kommunerepo.Kommune) []collector.Target {
	targets := make([]collector.Target, 0, len(kommuner))
	for _, k := range kommuner {
		targets = append(targets, collector.Target{
			Number:      k.Number,
			Name:        k.Name,
			Priority:    k.PriorityTier,
			PostalCodes: k.PostalCodes,
		})
	}
	return targets
}

func toRunResponse(runID uuid.UUID, scope string, stats collector.RunStats) transport.RunResponse {
	resp := transport.RunResponse{
		RunID:     runID.String(),
		Scope:     scope,
		Seen:      stats.Seen,
		Created:   stats.Created,
		Updated:   stats.Updated,
		Moved:     stats.Moved,
		Unchanged: stats.Unchanged,
		Errors:    stats.Errors,
		Failures:  stats.Failures,
		Kommuner:  make([]transport.KommuneStatsResponse, 0, len(stats.Kommuner)),
	}
	for _, ks := range stats.Kommuner {
		entry := transport.KommuneStatsResponse{
			KommuneNumber: ks.KommuneNumber,
			Seen:          ks.Seen,
			Created:       ks.Created,
			Updated:       ks.Updated,
			Moved:         ks.Moved,
			Unchanged:     ks.Unchanged,
			Errors:        ks.Errors,
			Failed:        ks.Failed,
			ElapsedMs:     ks.Elapsed.Milliseconds(),
		}
		if ks.Err != nil {
			entry.Error = ks.Err.Error()
		}
		resp.Kommuner = append(resp.Kommuner, entry)
	}
	return resp
}

func runNotes(stats collector.RunStats) string {
	if stats.Failures == 0 {
		return ""
	}
	var failed []string
	for _, ks := range stats.Kommuner {
		if ks.Failed {
			failed = append(failed, ks.KommuneNumber)
		}
	}
	return "failed kommuner: " + strings.Join(failed, ", ")
}
