// Package service exposes coverage analysis, planning and backfill
// execution behind a validated API surface.
package service

import (
	"context"
	"errors"
	"time"

	"konkursradar_backend/internal/coverage/analysis"
	kommunerepo "konkursradar_backend/internal/kommune/repository"
	"konkursradar_backend/platform/apperr"
	"konkursradar_backend/platform/logger"
)

// KommuneChecker verifies a municipality exists before analysis.
type KommuneChecker interface {
	Get(ctx context.Context, number string) (kommunerepo.Kommune, error)
}

// BackfillScheduler enqueues backfills for the worker process. Satisfied by
// the scheduler client. Nil when no queue is configured.
type BackfillScheduler interface {
	ScheduleBackfill(ctx context.Context, kommuneNumber string, runAt time.Time) error
}

// Service provides coverage operations for one municipality at a time.
type Service struct {
	analyzer *analysis.Analyzer
	planner  *analysis.Planner
	executor *analysis.Executor
	kommuner KommuneChecker
	sched    BackfillScheduler
	log      *logger.Logger
}

// New creates a coverage service.
func New(analyzer *analysis.Analyzer, planner *analysis.Planner, executor *analysis.Executor, kommuner KommuneChecker, sched BackfillScheduler, log *logger.Logger) *Service {
	return &Service{
		analyzer: analyzer,
		planner:  planner,
		executor: executor,
		kommuner: kommuner,
		sched:    sched,
		log:      log,
	}
}

// GetCoverage analyzes watermark coverage for one municipality.
func (s *Service) GetCoverage(ctx context.Context, kommuneNumber string) (analysis.Report, error) {
	if err := s.checkKommune(ctx, kommuneNumber); err != nil {
		return analysis.Report{}, err
	}
	return s.analyzer.AnalyzeGaps(ctx, kommuneNumber)
}

// CreatePlan builds an advisory backfill plan for one municipality.
func (s *Service) CreatePlan(ctx context.Context, kommuneNumber string) (analysis.Plan, error) {
	if err := s.checkKommune(ctx, kommuneNumber); err != nil {
		return analysis.Plan{}, err
	}
	return s.planner.CreatePlan(ctx, kommuneNumber)
}

// Backfill plans and immediately executes a backfill for one municipality.
func (s *Service) Backfill(ctx context.Context, kommuneNumber string) (analysis.ExecutionResult, error) {
	plan, err := s.CreatePlan(ctx, kommuneNumber)
	if err != nil {
		return analysis.ExecutionResult{}, err
	}

	result, err := s.executor.ExecutePlan(ctx, plan, func(pr analysis.PhaseResult) {
		s.log.Info("backfill phase covered",
			"kommune", kommuneNumber,
			"from", pr.Phase.Start.Format("2006-01-02"),
			"to", pr.Phase.End.Format("2006-01-02"),
			"priority", pr.Phase.Priority,
		)
	})
	if err != nil {
		return result, apperr.Wrap(apperr.KindUnavailable, "backfill failed", err)
	}
	return result, nil
}

// ScheduleBackfill enqueues a backfill on the worker queue after the given
// delay instead of executing it in the request path.
func (s *Service) ScheduleBackfill(ctx context.Context, kommuneNumber string, delay time.Duration) (time.Time, error) {
	if s.sched == nil {
		return time.Time{}, apperr.Unavailable("scheduler queue is not configured")
	}
	if err := s.checkKommune(ctx, kommuneNumber); err != nil {
		return time.Time{}, err
	}

	runAt := time.Now().UTC().Add(delay)
	if err := s.sched.ScheduleBackfill(ctx, kommuneNumber, runAt); err != nil {
		return time.Time{}, apperr.Wrap(apperr.KindUnavailable, "enqueue backfill", err)
	}
	return runAt, nil
}

func (s *Service) checkKommune(ctx context.Context, kommuneNumber string) error {
	_, err := s.kommuner.Get(ctx, kommuneNumber)
	if errors.Is(err, kommunerepo.ErrNotFound) {
		return apperr.NotFound("kommune not found")
	}
	return err
}
