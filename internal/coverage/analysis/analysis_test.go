package analysis

import (
	"context"
	"errors"
	"testing"
	"time"

	"konkursradar_backend/internal/collector"
)

type fakeDays map[string][]time.Time

func (f fakeDays) CoveredDays(ctx context.Context, kommuneNumber string) ([]time.Time, error) {
	return f[kommuneNumber], nil
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func fixedNow() time.Time {
	return time.Date(2026, 8, 29, 11, 30, 0, 0, time.UTC)
}

func dailyRange(from, to time.Time) []time.Time {
	var days []time.Time
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

func TestFullCoverageReportsNoGaps(t *testing.T) {
	days := fakeDays{"0301": dailyRange(day(2026, 8, 1), day(2026, 8, 29))}
	analyzer := NewAnalyzer(days, fixedNow)

	report, err := analyzer.AnalyzeGaps(context.Background(), "0301")
	if err != nil {
		t.Fatalf("AnalyzeGaps: %v", err)
	}

	if report.CoveragePercent != 100 {
		t.Fatalf("expected 100%% coverage, got %v", report.CoveragePercent)
	}
	if len(report.Gaps) != 0 {
		t.Fatalf("expected no gaps, got %v", report.Gaps)
	}
	if report.AnalyzedDays != 29 {
		t.Fatalf("expected 29 analyzed days, got %d", report.AnalyzedDays)
	}
}

func TestMissingRecentDaysIsOneCriticalGap(t *testing.T) {
	// Covered daily from Aug 1 through Aug 26; Aug 27-29 missing.
	days := fakeDays{"0301": dailyRange(day(2026, 8, 1), day(2026, 8, 26))}
	analyzer := NewAnalyzer(days, fixedNow)

	report, err := analyzer.AnalyzeGaps(context.Background(), "0301")
	if err != nil {
		t.Fatalf("AnalyzeGaps: %v", err)
	}

	if len(report.Gaps) != 1 {
		t.Fatalf("expected exactly one gap, got %v", report.Gaps)
	}
	gap := report.Gaps[0]
	if gap.SizeDays != 3 {
		t.Fatalf("expected sizeDays 3, got %d", gap.SizeDays)
	}
	if gap.Priority != PriorityCritical {
		t.Fatalf("expected critical priority, got %s", gap.Priority)
	}
	if !gap.Start.Equal(day(2026, 8, 27)) || !gap.End.Equal(day(2026, 8, 29)) {
		t.Fatalf("wrong gap bounds: %v - %v", gap.Start, gap.End)
	}
}

func TestInteriorGapPriorityBySize(t *testing.T) {
	// A 10-day hole in June, well clear of the recent-7-day window.
	covered := append(dailyRange(day(2026, 6, 1), day(2026, 6, 10)),
		dailyRange(day(2026, 6, 21), day(2026, 8, 29))...)
	analyzer := NewAnalyzer(fakeDays{"4601": covered}, fixedNow)

	report, err := analyzer.AnalyzeGaps(context.Background(), "4601")
	if err != nil {
		t.Fatalf("AnalyzeGaps: %v", err)
	}

	if len(report.Gaps) != 1 {
		t.Fatalf("expected one gap, got %v", report.Gaps)
	}
	gap := report.Gaps[0]
	if gap.SizeDays != 10 {
		t.Fatalf("expected sizeDays 10, got %d", gap.SizeDays)
	}
	if gap.Priority != PriorityHigh {
		t.Fatalf("expected high priority, got %s", gap.Priority)
	}
}

func TestNeverSyncedUsesDefaultWindow(t *testing.T) {
	analyzer := NewAnalyzer(fakeDays{}, fixedNow)

	report, err := analyzer.AnalyzeGaps(context.Background(), "5001")
	if err != nil {
		t.Fatalf("AnalyzeGaps: %v", err)
	}

	if report.CoveragePercent != 0 {
		t.Fatalf("expected 0%% coverage, got %v", report.CoveragePercent)
	}
	if report.AnalyzedDays != defaultAnalysisWindowDays {
		t.Fatalf("expected %d analyzed days, got %d", defaultAnalysisWindowDays, report.AnalyzedDays)
	}
	if len(report.Gaps) != 1 || report.Gaps[0].SizeDays != defaultAnalysisWindowDays {
		t.Fatalf("expected one full-window gap, got %v", report.Gaps)
	}
}

func TestPlanStrategies(t *testing.T) {
	cases := []struct {
		name        string
		missingFrom time.Time
		strategy    string
	}{
		{"small recent hole", day(2026, 8, 27), StrategyQuickFill},
		{"month-sized hole", day(2026, 8, 1), StrategyCompleteFill},
		{"quarter-sized hole", day(2026, 5, 1), StrategyStrategicFill},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			covered := dailyRange(day(2026, 1, 1), tc.missingFrom.AddDate(0, 0, -1))
			analyzer := NewAnalyzer(fakeDays{"0301": covered}, fixedNow)
			planner := NewPlanner(analyzer, 500)

			plan, err := planner.CreatePlan(context.Background(), "0301")
			if err != nil {
				t.Fatalf("CreatePlan: %v", err)
			}
			if plan.Strategy != tc.strategy {
				t.Fatalf("expected strategy %s, got %s (%d missing days)", tc.strategy, plan.Strategy, plan.TotalMissingDays)
			}
			if len(plan.Phases) == 0 {
				t.Fatal("expected at least one phase")
			}
		})
	}
}

func TestFullyCoveredPlanHasNoPhases(t *testing.T) {
	covered := dailyRange(day(2026, 8, 1), day(2026, 8, 29))
	planner := NewPlanner(NewAnalyzer(fakeDays{"0301": covered}, fixedNow), 500)

	plan, err := planner.CreatePlan(context.Background(), "0301")
	if err != nil {
		t.Fatalf("CreatePlan: %v", err)
	}
	if len(plan.Phases) != 0 {
		t.Fatalf("expected no phases, got %v", plan.Phases)
	}
	if plan.TotalMissingDays != 0 {
		t.Fatalf("expected no missing days, got %d", plan.TotalMissingDays)
	}
}

func TestStrategicFillCapsPhasesAndNotes(t *testing.T) {
	// Two covered weeks alternating with two missing weeks, from February
	// onward. That leaves well over 90 missing days across many gaps.
	var covered []time.Time
	cursor := day(2026, 2, 1)
	for cursor.Before(day(2026, 8, 29)) {
		covered = append(covered, dailyRange(cursor, cursor.AddDate(0, 0, 13))...)
		cursor = cursor.AddDate(0, 0, 28)
	}
	analyzer := NewAnalyzer(fakeDays{"0301": covered}, fixedNow)
	planner := NewPlanner(analyzer, 500)

	plan, err := planner.CreatePlan(context.Background(), "0301")
	if err != nil {
		t.Fatalf("CreatePlan: %v", err)
	}
	if plan.Strategy != StrategyStrategicFill {
		t.Fatalf("expected strategic fill with %d missing days, got %s", plan.TotalMissingDays, plan.Strategy)
	}
	if len(plan.Phases) > strategicMaxPhases {
		t.Fatalf("expected at most %d phases, got %d", strategicMaxPhases, len(plan.Phases))
	}
	if plan.Note == "" {
		t.Fatal("expected an off-peak note on a strategic fill")
	}
}

type fakeBackfiller struct {
	calls []time.Time
	stats collector.KommuneStats
}

func (f *fakeBackfiller) Backfill(ctx context.Context, target collector.Target, from time.Time) collector.KommuneStats {
	f.calls = append(f.calls, from)
	stats := f.stats
	stats.KommuneNumber = target.Number
	return stats
}

type fakeTargets map[string]collector.Target

func (f fakeTargets) Get(ctx context.Context, number string) (collector.Target, error) {
	target, ok := f[number]
	if !ok {
		return collector.Target{}, errors.New("unknown kommune")
	}
	return target, nil
}

func TestExecutePlanBackfillsFromEarliestPhase(t *testing.T) {
	backfiller := &fakeBackfiller{stats: collector.KommuneStats{Seen: 12, Created: 3}}
	targets := fakeTargets{"0301": {Number: "0301", Name: "Oslo"}}
	executor := NewExecutor(backfiller, targets)

	plan := Plan{
		KommuneNumber: "0301",
		Strategy:      StrategyCompleteFill,
		Phases: []Phase{
			{Start: day(2026, 8, 20), End: day(2026, 8, 29), Priority: PriorityCritical},
			{Start: day(2026, 7, 1), End: day(2026, 7, 10), Priority: PriorityMedium},
		},
	}

	var reported []PhaseResult
	result, err := executor.ExecutePlan(context.Background(), plan, func(pr PhaseResult) {
		reported = append(reported, pr)
	})
	if err != nil {
		t.Fatalf("ExecutePlan: %v", err)
	}

	if len(backfiller.calls) != 1 {
		t.Fatalf("expected a single backfill fetch, got %d", len(backfiller.calls))
	}
	if !backfiller.calls[0].Equal(day(2026, 7, 1)) {
		t.Fatalf("expected backfill from earliest phase start, got %v", backfiller.calls[0])
	}
	if result.PhasesExecuted != 2 || len(reported) != 2 {
		t.Fatalf("expected both phases reported, got %d executed, %d reported", result.PhasesExecuted, len(reported))
	}
	if result.Stats.Seen != 12 {
		t.Fatalf("expected stats passed through, got %+v", result.Stats)
	}
}

func TestExecuteEmptyPlanIsNoOp(t *testing.T) {
	backfiller := &fakeBackfiller{}
	executor := NewExecutor(backfiller, fakeTargets{})

	result, err := executor.ExecutePlan(context.Background(), Plan{KommuneNumber: "0301"}, nil)
	if err != nil {
		t.Fatalf("ExecutePlan: %v", err)
	}
	if len(backfiller.calls) != 0 {
		t.Fatal("empty plan must not fetch")
	}
	if result.PhasesExecuted != 0 {
		t.Fatalf("expected zero phases executed, got %d", result.PhasesExecuted)
	}
}
