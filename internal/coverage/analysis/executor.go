package analysis

import (
	"context"
	"fmt"
	"time"

	"konkursradar_backend/internal/collector"
)

// Backfiller runs a municipality collection from an explicit start date.
type Backfiller interface {
	Backfill(ctx context.Context, target collector.Target, from time.Time) collector.KommuneStats
}

// TargetResolver resolves a municipality number to a collection target.
type TargetResolver interface {
	Get(ctx context.Context, number string) (collector.Target, error)
}

// PhaseResult reports one executed phase to the progress callback.
type PhaseResult struct {
	Phase   Phase
	Covered bool
}

// Progress receives phase completion events during plan execution. A nil
// Progress is valid and reports nothing.
type Progress func(PhaseResult)

// ExecutionResult summarizes the execution of one plan.
type ExecutionResult struct {
	KommuneNumber  string                 `json:"kommuneNumber"`
	Strategy       string                 `json:"strategy"`
	PhasesExecuted int                    `json:"phasesExecuted"`
	Stats          collector.KommuneStats `json:"stats"`
}

// Executor drives a backfill plan through the collector.
type Executor struct {
	backfiller Backfiller
	targets    TargetResolver
}

// NewExecutor creates an executor.
func NewExecutor(backfiller Backfiller, targets TargetResolver) *Executor {
	return &Executor{backfiller: backfiller, targets: targets}
}

// ExecutePlan runs the plan's phases. The registry only filters by
// "registered since", so one fetch from the earliest scheduled phase start
// covers every later phase as well; the executor issues that single fetch
// and reports each scheduled phase as covered by it. A plan with no phases
// is a no-op success.
func (e *Executor) ExecutePlan(ctx context.Context, plan Plan, progress Progress) (ExecutionResult, error) {
	result := ExecutionResult{KommuneNumber: plan.KommuneNumber, Strategy: plan.Strategy}
	if len(plan.Phases) == 0 {
		return result, nil
	}

	target, err := e.targets.Get(ctx, plan.KommuneNumber)
	if err != nil {
		return result, fmt.Errorf("resolve kommune %s: %w", plan.KommuneNumber, err)
	}

	earliest := plan.Phases[0].Start
	for _, phase := range plan.Phases[1:] {
		if phase.Start.Before(earliest) {
			earliest = phase.Start
		}
	}

	stats := e.backfiller.Backfill(ctx, target, earliest)
	result.Stats = stats
	if stats.Failed {
		return result, fmt.Errorf("backfill kommune %s: %w", plan.KommuneNumber, stats.Err)
	}

	for _, phase := range plan.Phases {
		result.PhasesExecuted++
		if progress != nil {
			progress(PhaseResult{Phase: phase, Covered: true})
		}
	}

	return result, nil
}
