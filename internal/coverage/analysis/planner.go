package analysis

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// Plan strategies. A quick-fill closes a small recent hole in one pass,
// a complete-fill walks every gap, a strategic-fill schedules only the most
// urgent windows and defers the rest to off-peak hours.
const (
	StrategyQuickFill     = "quick-fill"
	StrategyCompleteFill  = "complete-fill"
	StrategyStrategicFill = "strategic-fill"
)

const (
	quickFillMaxDays    = 7
	completeFillMaxDays = 90

	// strategicMaxPhases caps how many windows a strategic-fill schedules
	// immediately; the remainder is deferred.
	strategicMaxPhases = 4
)

// Phase is one collection window within a plan.
type Phase struct {
	Start             time.Time `json:"start"`
	End               time.Time `json:"end"`
	Priority          string    `json:"priority"`
	EstimatedAPICalls int       `json:"estimatedApiCalls"`
}

// Plan is the advisory backfill schedule for one municipality. It performs
// no mutation; the executor or an operator consumes it.
type Plan struct {
	KommuneNumber    string  `json:"kommuneNumber"`
	Strategy         string  `json:"strategy"`
	TotalMissingDays int     `json:"totalMissingDays"`
	Phases           []Phase `json:"phases"`
	Note             string  `json:"note,omitempty"`
}

// Planner turns coverage reports into phased backfill plans.
type Planner struct {
	analyzer *Analyzer
	pageSize int
}

// NewPlanner creates a planner. pageSize sizes the API call estimates.
func NewPlanner(analyzer *Analyzer, pageSize int) *Planner {
	if pageSize < 1 {
		pageSize = 500
	}
	return &Planner{analyzer: analyzer, pageSize: pageSize}
}

// CreatePlan analyzes the municipality and schedules its gaps as phases,
// most urgent first.
func (p *Planner) CreatePlan(ctx context.Context, kommuneNumber string) (Plan, error) {
	report, err := p.analyzer.AnalyzeGaps(ctx, kommuneNumber)
	if err != nil {
		return Plan{}, err
	}
	return p.fromReport(report), nil
}

func (p *Planner) fromReport(report Report) Plan {
	plan := Plan{
		KommuneNumber:    report.KommuneNumber,
		TotalMissingDays: report.MissingDays,
		Phases:           []Phase{},
	}

	switch {
	case report.MissingDays == 0:
		plan.Strategy = StrategyQuickFill
		return plan
	case report.MissingDays <= quickFillMaxDays:
		plan.Strategy = StrategyQuickFill
	case report.MissingDays <= completeFillMaxDays:
		plan.Strategy = StrategyCompleteFill
	default:
		plan.Strategy = StrategyStrategicFill
	}

	gaps := make([]Gap, len(report.Gaps))
	copy(gaps, report.Gaps)
	sort.SliceStable(gaps, func(i, j int) bool {
		ri, rj := priorityRank(gaps[i].Priority), priorityRank(gaps[j].Priority)
		if ri != rj {
			return ri < rj
		}
		// Same urgency: more recent windows first.
		return gaps[i].End.After(gaps[j].End)
	})

	if plan.Strategy == StrategyStrategicFill {
		plan.Note = "large backlog, run scheduled phases now and the remainder off-peak"
		if len(gaps) > strategicMaxPhases {
			deferred := 0
			for _, gap := range gaps[strategicMaxPhases:] {
				deferred += gap.SizeDays
			}
			gaps = gaps[:strategicMaxPhases]
			plan.Note = fmt.Sprintf("%d missing days deferred, schedule off-peak", deferred)
		}
	}

	for _, gap := range gaps {
		calls := (gap.EstimatedRecords + p.pageSize - 1) / p.pageSize
		if calls < 1 {
			calls = 1
		}
		plan.Phases = append(plan.Phases, Phase{
			Start:             gap.Start,
			End:               gap.End,
			Priority:          gap.Priority,
			EstimatedAPICalls: calls,
		})
	}

	return plan
}

func priorityRank(priority string) int {
	switch priority {
	case PriorityCritical:
		return 0
	case PriorityHigh:
		return 1
	case PriorityMedium:
		return 2
	default:
		return 3
	}
}
