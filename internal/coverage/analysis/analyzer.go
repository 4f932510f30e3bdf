// Package analysis computes temporal collection coverage per municipality
// and turns missing date ranges into phased, rate-limit-aware backfill plans.
package analysis

import (
	"context"
	"math"
	"time"
)

// Gap priorities, ordered from most to least urgent.
const (
	PriorityCritical = "critical"
	PriorityHigh     = "high"
	PriorityMedium   = "medium"
	PriorityLow      = "low"
)

// defaultAnalysisWindowDays bounds the analysis for municipalities that have
// never completed a sync, so a brand-new municipality reports a 90-day gap
// instead of an unbounded one.
const defaultAnalysisWindowDays = 90

// estimatedRecordsPerDay is the planning estimate of registry records per
// municipality per day. Advisory only, used to size API call budgets.
const estimatedRecordsPerDay = 25

// Gap is a contiguous date range with no watermark coverage. Start and End
// are inclusive UTC days.
type Gap struct {
	Start            time.Time `json:"start"`
	End              time.Time `json:"end"`
	SizeDays         int       `json:"sizeDays"`
	Priority         string    `json:"priority"`
	EstimatedRecords int       `json:"estimatedRecords"`
}

// Report is the coverage analysis for one municipality.
type Report struct {
	KommuneNumber   string     `json:"kommuneNumber"`
	CoveragePercent float64    `json:"coveragePercent"`
	AnalyzedDays    int        `json:"analyzedDays"`
	MissingDays     int        `json:"missingDays"`
	EarliestCovered *time.Time `json:"earliestCovered,omitempty"`
	Gaps            []Gap      `json:"gaps"`
}

// DaysSource provides the covered-day ledger for a municipality.
type DaysSource interface {
	CoveredDays(ctx context.Context, kommuneNumber string) ([]time.Time, error)
}

// Analyzer computes coverage reports from the watermark day ledger.
type Analyzer struct {
	days DaysSource
	now  func() time.Time
}

// NewAnalyzer creates an analyzer. A nil clock defaults to time.Now.
func NewAnalyzer(days DaysSource, now func() time.Time) *Analyzer {
	if now == nil {
		now = time.Now
	}
	return &Analyzer{days: days, now: now}
}

// AnalyzeGaps walks the day ledger between the municipality's earliest
// covered day and today. Every day without a successful sync is missing;
// runs of missing days are merged into gaps. A municipality with no ledger
// at all is analyzed over a fixed default window.
func (a *Analyzer) AnalyzeGaps(ctx context.Context, kommuneNumber string) (Report, error) {
	covered, err := a.days.CoveredDays(ctx, kommuneNumber)
	if err != nil {
		return Report{}, err
	}

	today := a.now().UTC().Truncate(24 * time.Hour)

	report := Report{KommuneNumber: kommuneNumber, Gaps: []Gap{}}

	var start time.Time
	if len(covered) == 0 {
		start = today.AddDate(0, 0, -(defaultAnalysisWindowDays - 1))
	} else {
		earliest := covered[0].UTC().Truncate(24 * time.Hour)
		start = earliest
		report.EarliestCovered = &earliest
	}

	coveredSet := make(map[time.Time]bool, len(covered))
	for _, day := range covered {
		coveredSet[day.UTC().Truncate(24*time.Hour)] = true
	}

	var gapStart *time.Time
	for day := start; !day.After(today); day = day.AddDate(0, 0, 1) {
		report.AnalyzedDays++
		if coveredSet[day] {
			if gapStart != nil {
				report.Gaps = append(report.Gaps, a.newGap(*gapStart, day.AddDate(0, 0, -1), today))
				gapStart = nil
			}
			continue
		}
		report.MissingDays++
		if gapStart == nil {
			d := day
			gapStart = &d
		}
	}
	if gapStart != nil {
		report.Gaps = append(report.Gaps, a.newGap(*gapStart, today, today))
	}

	if report.AnalyzedDays > 0 {
		coveredDays := report.AnalyzedDays - report.MissingDays
		report.CoveragePercent = math.Round(float64(coveredDays)/float64(report.AnalyzedDays)*10000) / 100
	}

	return report, nil
}

func (a *Analyzer) newGap(start, end, today time.Time) Gap {
	sizeDays := int(end.Sub(start).Hours()/24) + 1
	return Gap{
		Start:            start,
		End:              end,
		SizeDays:         sizeDays,
		Priority:         classify(end, sizeDays, today),
		EstimatedRecords: sizeDays * estimatedRecordsPerDay,
	}
}

// classify assigns a priority tier: a gap touching the most recent 7 days is
// critical regardless of size, then size decides.
func classify(end time.Time, sizeDays int, today time.Time) string {
	if !end.Before(today.AddDate(0, 0, -6)) {
		return PriorityCritical
	}
	switch {
	case sizeDays < 30:
		return PriorityHigh
	case sizeDays < 90:
		return PriorityMedium
	default:
		return PriorityLow
	}
}
