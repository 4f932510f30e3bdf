// Package collector drives collection runs against the business registry:
// it walks municipalities in priority order, pages through the full
// municipality for each, reconciles every observed entity and advances the
// per-municipality watermark once the batch is persisted.
package collector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"konkursradar_backend/internal/address"
	"konkursradar_backend/internal/companies/reconcile"
	"konkursradar_backend/internal/registry/client"
	"konkursradar_backend/internal/registry/transport"
	"konkursradar_backend/platform/logger"

	"golang.org/x/sync/errgroup"
)

// RegistryClient fetches entity pages from the registry.
type RegistryClient interface {
	FetchPage(ctx context.Context, filter client.PageFilter) (client.Page, error)
}

// Store is the persistence surface the collector needs: observation
// reconciliation and watermark bookkeeping.
type Store interface {
	Reconcile(ctx context.Context, obs reconcile.Observation) (reconcile.Classification, error)
	GetWatermark(ctx context.Context, kommuneNumber string) (Watermark, error)
	AdvanceWatermark(ctx context.Context, kommuneNumber string, syncedAt time.Time, lastPage int, coveredDays []time.Time) error
}

// Watermark mirrors the repository watermark so the Store interface does not
// pull the repository package into collector consumers.
type Watermark struct {
	KommuneNumber string
	LastSyncedAt  time.Time
	LastPage      int
}

// KommuneSource lists the municipalities a run should walk.
type KommuneSource interface {
	List(ctx context.Context) ([]Target, error)
}

// Target is one municipality to collect, with the postal codes used to
// narrow queries when a result window overflows.
type Target struct {
	Number      string
	Name        string
	Priority    int
	PostalCodes []string
}

// KommuneStats summarizes one municipality within a run.
type KommuneStats struct {
	KommuneNumber string
	Seen          int
	Created       int
	Updated       int
	Moved         int
	Unchanged     int
	Errors        int
	Failed        bool
	Err           error
	Elapsed       time.Duration
}

// RunStats aggregates a full collection run.
type RunStats struct {
	Kommuner  []KommuneStats
	Seen      int
	Created   int
	Updated   int
	Moved     int
	Unchanged int
	Errors    int
	Failures  int
}

func (rs *RunStats) add(ks KommuneStats) {
	rs.Kommuner = append(rs.Kommuner, ks)
	rs.Seen += ks.Seen
	rs.Created += ks.Created
	rs.Updated += ks.Updated
	rs.Moved += ks.Moved
	rs.Unchanged += ks.Unchanged
	rs.Errors += ks.Errors
	if ks.Failed {
		rs.Failures++
	}
}

// Progress receives per-municipality completion events during a run. A nil
// Progress is valid and reports nothing.
type Progress func(KommuneStats)

// Collector orchestrates collection runs.
type Collector struct {
	registry    RegistryClient
	store       Store
	kommuner    KommuneSource
	log         *logger.Logger
	pageSize    int
	concurrency int
	now         func() time.Time
}

// Option configures a Collector.
type Option func(*Collector)

// WithPageSize overrides the registry page size.
func WithPageSize(size int) Option {
	return func(c *Collector) { c.pageSize = size }
}

// WithConcurrency bounds how many municipalities are collected in parallel.
func WithConcurrency(n int) Option {
	return func(c *Collector) { c.concurrency = n }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Collector) { c.now = now }
}

// New creates a collector.
func New(registry RegistryClient, store Store, kommuner KommuneSource, log *logger.Logger, opts ...Option) *Collector {
	c := &Collector{
		registry:    registry,
		store:       store,
		kommuner:    kommuner,
		log:         log,
		pageSize:    500,
		concurrency: 1,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run walks every municipality from the source in priority order. A failing
// municipality is recorded and skipped; the others keep going. Run returns
// an error only when the municipality list itself cannot be loaded or the
// context is cancelled between municipalities.
func (c *Collector) Run(ctx context.Context, progress Progress) (RunStats, error) {
	targets, err := c.kommuner.List(ctx)
	if err != nil {
		return RunStats{}, fmt.Errorf("load kommune list: %w", err)
	}
	return c.collect(ctx, targets, progress)
}

// RunTargets collects an explicit set of municipalities, in order.
func (c *Collector) RunTargets(ctx context.Context, targets []Target, progress Progress) (RunStats, error) {
	return c.collect(ctx, targets, progress)
}

// RunKommune collects a single municipality.
func (c *Collector) RunKommune(ctx context.Context, target Target, progress Progress) (RunStats, error) {
	return c.collect(ctx, []Target{target}, progress)
}

func (c *Collector) collect(ctx context.Context, targets []Target, progress Progress) (RunStats, error) {
	var stats RunStats

	if c.concurrency <= 1 {
		for _, target := range targets {
			if ctx.Err() != nil {
				return stats, ctx.Err()
			}
			ks := c.collectKommune(ctx, target)
			stats.add(ks)
			if progress != nil {
				progress(ks)
			}
		}
		return stats, nil
	}

	results := make([]KommuneStats, len(targets))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for i, target := range targets {
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			results[i] = c.collectKommune(gctx, target)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return stats, err
	}

	for _, ks := range results {
		stats.add(ks)
		if progress != nil {
			progress(ks)
		}
	}
	return stats, nil
}

// collectKommune runs the per-municipality state machine: resolve the
// watermark, page through the full municipality, reconcile each entity,
// then advance the watermark. The fetch is always unfiltered: the registry
// can only filter by registration date, and a registered-since filter would
// hide address changes on entities registered before the watermark, so
// moves would never be observed again. The watermark is used purely as the
// coverage floor for the day ledger. Any failure before the watermark
// advance leaves the watermark untouched so the next run re-covers the
// same window.
func (c *Collector) collectKommune(ctx context.Context, target Target) KommuneStats {
	var coverSince *time.Time
	wm, err := c.store.GetWatermark(ctx, target.Number)
	switch {
	case err == nil && !wm.LastSyncedAt.IsZero():
		s := wm.LastSyncedAt
		coverSince = &s
	case err != nil && !errors.Is(err, ErrNoWatermark):
		stats := KommuneStats{KommuneNumber: target.Number, Failed: true, Err: fmt.Errorf("load watermark: %w", err)}
		c.log.WithKommune(target.Number).Error("collection failed", "error", stats.Err)
		return stats
	}

	return c.syncKommune(ctx, target, nil, coverSince)
}

// Backfill collects one municipality from an explicit start date,
// irrespective of its watermark. Used by the coverage executor to close
// gaps. This is the one incremental mode: the registered-since filter keeps
// the fetch proportional to the gap, and the gap window is what the run
// claims to cover.
func (c *Collector) Backfill(ctx context.Context, target Target, from time.Time) KommuneStats {
	return c.syncKommune(ctx, target, &from, &from)
}

// syncKommune fetches with fetchSince (nil for a full municipality fetch)
// and, on success, marks the days from coverSince through now as covered.
func (c *Collector) syncKommune(ctx context.Context, target Target, fetchSince, coverSince *time.Time) KommuneStats {
	start := c.now()
	log := c.log.WithKommune(target.Number)
	stats := KommuneStats{KommuneNumber: target.Number}

	syncedAt := c.now().UTC()

	observations, lastPage, fetchErr := c.fetchAll(ctx, log, target, fetchSince)
	stats.Seen = len(observations)

	for _, obs := range observations {
		classification, err := c.store.Reconcile(ctx, obs)
		if err != nil {
			stats.Errors++
			log.Error("entity reconciliation failed", "orgNumber", obs.OrgNumber, "error", err)
			continue
		}
		switch classification {
		case reconcile.ClassificationNew:
			stats.Created++
		case reconcile.ClassificationUpdated:
			stats.Updated++
		case reconcile.ClassificationMoved:
			stats.Moved++
		case reconcile.ClassificationUnchanged:
			stats.Unchanged++
		}
	}

	if fetchErr != nil {
		// Entities from completed pages are already persisted, but the
		// window was not fully covered, so the watermark must not move.
		stats.Failed = true
		stats.Err = fetchErr
		stats.Elapsed = c.now().Sub(start)
		log.Error("collection failed", "error", fetchErr, "seen", stats.Seen)
		return stats
	}

	if stats.Errors > 0 {
		// The watermark claims coverage for every entity in the window.
		// Holding it keeps failed entities inside the next run's fetch;
		// already-persisted entities reconcile as unchanged on the retry.
		stats.Elapsed = c.now().Sub(start)
		log.Warn("watermark held, batch had entity errors", "errors", stats.Errors, "seen", stats.Seen)
		return stats
	}

	covered := coveredDays(coverSince, syncedAt)
	if err := c.store.AdvanceWatermark(ctx, target.Number, syncedAt, lastPage, covered); err != nil {
		stats.Failed = true
		stats.Err = fmt.Errorf("advance watermark: %w", err)
		stats.Elapsed = c.now().Sub(start)
		log.Error("collection failed", "error", stats.Err)
		return stats
	}

	stats.Elapsed = c.now().Sub(start)
	log.KommuneCollected(target.Number, stats.Seen, stats.Created, stats.Updated, stats.Moved, stats.Errors, stats.Elapsed)
	return stats
}

// fetchAll pages through the registry for one municipality and reports the
// last completed page of the final query series, the watermark's resume
// cursor. When the result window overflows the registry's pagination
// ceiling, it falls back to one query series per postal code, which
// partitions the municipality into windows small enough to page through.
func (c *Collector) fetchAll(ctx context.Context, log *logger.Logger, target Target, since *time.Time) ([]reconcile.Observation, int, error) {
	observations, lastPage, err := c.fetchSeries(ctx, log, client.PageFilter{
		KommuneNumber: target.Number,
		Since:         since,
		PageSize:      c.pageSize,
	})
	if err == nil {
		return observations, lastPage, nil
	}
	if !errors.Is(err, client.ErrWindowCeiling) || len(target.PostalCodes) == 0 {
		return observations, lastPage, err
	}

	log.Warn("result window exceeds pagination ceiling, narrowing by postal code",
		"postalCodes", len(target.PostalCodes))

	var all []reconcile.Observation
	for _, postalCode := range target.PostalCodes {
		obs, page, err := c.fetchSeries(ctx, log, client.PageFilter{
			PostalCode: postalCode,
			Since:      since,
			PageSize:   c.pageSize,
		})
		if err != nil {
			return all, page, fmt.Errorf("postal code %s: %w", postalCode, err)
		}
		all = append(all, obs...)
		lastPage = page
	}
	return all, lastPage, nil
}

func (c *Collector) fetchSeries(ctx context.Context, log *logger.Logger, filter client.PageFilter) ([]reconcile.Observation, int, error) {
	var observations []reconcile.Observation

	for page := 0; ; page++ {
		if ctx.Err() != nil {
			return observations, page - 1, ctx.Err()
		}

		filter.Page = page
		fetched, err := c.registry.FetchPage(ctx, filter)
		if err != nil {
			return observations, page - 1, err
		}

		observedAt := c.now().UTC()
		for _, raw := range fetched.Entities {
			obs, err := toObservation(raw, observedAt)
			if err != nil {
				log.Warn("skipping malformed registry entity", "error", err)
				continue
			}
			observations = append(observations, obs)
		}

		if !fetched.HasMore {
			return observations, page, nil
		}
	}
}

// toObservation maps a raw registry entity to a reconciliation observation.
// An entity without an organization number is malformed and rejected.
func toObservation(raw transport.RawEntity, observedAt time.Time) (reconcile.Observation, error) {
	if raw.OrgNumber == "" {
		return reconcile.Observation{}, errors.New("entity without organization number")
	}

	obs := reconcile.Observation{
		OrgNumber:    raw.OrgNumber,
		Name:         raw.Name,
		OrgForm:      raw.OrgFormCode(),
		Status:       raw.Status(),
		RegisteredAt: raw.RegistrationDate(),
		ObservedAt:   observedAt,
	}

	// An address object with no fields carries no information; treating it
	// as absent keeps it from disturbing that series.
	if business := raw.RawBusiness(); business != nil {
		if norm := address.Normalize(*business); !norm.IsZero() {
			obs.Business = &norm
		}
	}
	if mailing := raw.RawMailing(); mailing != nil {
		if norm := address.Normalize(*mailing); !norm.IsZero() {
			obs.Mailing = &norm
		}
	}

	return obs, nil
}

// coveredDays lists the UTC days covered by a sync finishing at syncedAt,
// with `since` as the coverage floor: the prior watermark for a run, the gap
// start for a backfill. A first-ever sync has no floor; it observes current
// state only and cannot recover history, so it covers the sync day alone.
func coveredDays(since *time.Time, syncedAt time.Time) []time.Time {
	end := syncedAt.UTC().Truncate(24 * time.Hour)
	if since == nil {
		return []time.Time{end}
	}

	day := since.UTC().Truncate(24 * time.Hour)
	var days []time.Time
	for !day.After(end) {
		days = append(days, day)
		day = day.AddDate(0, 0, 1)
	}
	return days
}
