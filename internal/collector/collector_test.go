package collector

import (
	"context"
	"errors"
	"testing"
	"time"

	"konkursradar_backend/internal/address"
	"konkursradar_backend/internal/companies/reconcile"
	"konkursradar_backend/internal/registry/client"
	"konkursradar_backend/internal/registry/transport"
	"konkursradar_backend/platform/logger"
)

type fakeRegistry struct {
	// pages maps kommune number (or postal code) to its page series.
	pages map[string][][]transport.RawEntity
	// failKey aborts any fetch for this kommune or postal code.
	failKey string
	failErr error
	// ceilingKeys returns ErrWindowCeiling for these kommune filters.
	ceilingKeys map[string]bool
	calls       int
}

func (f *fakeRegistry) FetchPage(ctx context.Context, filter client.PageFilter) (client.Page, error) {
	f.calls++
	key := filter.KommuneNumber
	if key == "" {
		key = filter.PostalCode
	}
	if key == f.failKey {
		return client.Page{}, f.failErr
	}
	if filter.KommuneNumber != "" && f.ceilingKeys[filter.KommuneNumber] {
		return client.Page{}, client.ErrWindowCeiling
	}
	series := f.pages[key]
	if filter.Page >= len(series) {
		return client.Page{}, nil
	}
	return client.Page{
		Entities: series[filter.Page],
		HasMore:  filter.Page < len(series)-1,
	}, nil
}

type fakeStore struct {
	stored         map[string]reconcile.Stored
	applied        []reconcile.Plan
	watermarks     map[string]Watermark
	covered        map[string][]time.Time
	reconcileErrOn string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		stored:     make(map[string]reconcile.Stored),
		watermarks: make(map[string]Watermark),
		covered:    make(map[string][]time.Time),
	}
}

func (f *fakeStore) Reconcile(ctx context.Context, obs reconcile.Observation) (reconcile.Classification, error) {
	if f.reconcileErrOn != "" && obs.OrgNumber == f.reconcileErrOn {
		return "", errors.New("simulated reconcile failure")
	}
	plan := reconcile.Diff(obs, f.stored[obs.OrgNumber])
	f.applied = append(f.applied, plan)

	stored := f.stored[obs.OrgNumber]
	stored.Exists = true
	stored.Name = obs.Name
	stored.OrgForm = obs.OrgForm
	stored.Status = obs.Status
	if obs.Business != nil {
		stored.Business = obs.Business
	}
	if obs.Mailing != nil {
		stored.Mailing = obs.Mailing
	}
	f.stored[obs.OrgNumber] = stored
	return plan.Classification, nil
}

func (f *fakeStore) GetWatermark(ctx context.Context, kommuneNumber string) (Watermark, error) {
	wm, ok := f.watermarks[kommuneNumber]
	if !ok {
		return Watermark{}, ErrNoWatermark
	}
	return wm, nil
}

func (f *fakeStore) AdvanceWatermark(ctx context.Context, kommuneNumber string, syncedAt time.Time, lastPage int, coveredDays []time.Time) error {
	f.watermarks[kommuneNumber] = Watermark{KommuneNumber: kommuneNumber, LastSyncedAt: syncedAt, LastPage: lastPage}
	f.covered[kommuneNumber] = coveredDays
	return nil
}

type staticKommuner []Target

func (s staticKommuner) List(ctx context.Context) ([]Target, error) {
	return s, nil
}

func entity(orgNumber, name, kommune string) transport.RawEntity {
	line := []string{name + " gate 1"}
	postal := "0150"
	kommuneName := "Testby"
	return transport.RawEntity{
		OrgNumber: orgNumber,
		Name:      name,
		BusinessAddress: &transport.RawAddress{
			Lines:         line,
			PostalCode:    &postal,
			KommuneNumber: &kommune,
			KommuneName:   &kommuneName,
		},
	}
}

func testLogger() *logger.Logger {
	return logger.New("test")
}

func TestRunCollectsAllKommuner(t *testing.T) {
	registry := &fakeRegistry{pages: map[string][][]transport.RawEntity{
		"0301": {
			{entity("915442552", "Fjellheimen AS", "0301"), entity("923609016", "Nordlys AS", "0301")},
			{entity("914778271", "Bryggekanten AS", "0301")},
		},
		"4601": {
			{entity("918471841", "Vestavind AS", "4601")},
		},
	}}
	store := newFakeStore()
	kommuner := staticKommuner{
		{Number: "0301", Name: "Oslo"},
		{Number: "4601", Name: "Bergen"},
	}

	c := New(registry, store, kommuner, testLogger())
	stats, err := c.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if stats.Seen != 4 {
		t.Fatalf("expected 4 entities seen, got %d", stats.Seen)
	}
	if stats.Created != 4 {
		t.Fatalf("expected 4 created, got %d", stats.Created)
	}
	if stats.Failures != 0 {
		t.Fatalf("expected no failures, got %d", stats.Failures)
	}
	if len(store.applied) != 4 {
		t.Fatalf("expected 4 applied plans, got %d", len(store.applied))
	}
	for _, number := range []string{"0301", "4601"} {
		if _, ok := store.watermarks[number]; !ok {
			t.Fatalf("watermark for %s not advanced", number)
		}
	}
	if store.watermarks["0301"].LastPage != 1 {
		t.Fatalf("expected watermark to record last page 1, got %d", store.watermarks["0301"].LastPage)
	}
	if store.watermarks["4601"].LastPage != 0 {
		t.Fatalf("expected watermark to record last page 0, got %d", store.watermarks["4601"].LastPage)
	}
}

func TestFailingKommuneDoesNotStopOthers(t *testing.T) {
	registry := &fakeRegistry{
		pages: map[string][][]transport.RawEntity{
			"0301": {{entity("915442552", "Fjellheimen AS", "0301")}},
			"5001": {{entity("918471841", "Vestavind AS", "5001")}},
		},
		failKey: "4601",
		failErr: &client.UnavailableError{Status: 503},
	}
	store := newFakeStore()
	kommuner := staticKommuner{
		{Number: "0301"},
		{Number: "4601"},
		{Number: "5001"},
	}

	var events []KommuneStats
	c := New(registry, store, kommuner, testLogger())
	stats, err := c.Run(context.Background(), func(ks KommuneStats) {
		events = append(events, ks)
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if stats.Failures != 1 {
		t.Fatalf("expected 1 failed kommune, got %d", stats.Failures)
	}
	if stats.Created != 2 {
		t.Fatalf("expected 2 created from healthy kommuner, got %d", stats.Created)
	}
	if _, ok := store.watermarks["4601"]; ok {
		t.Fatal("watermark for failed kommune must not advance")
	}
	if _, ok := store.watermarks["0301"]; !ok {
		t.Fatal("watermark for healthy kommune should advance")
	}
	if _, ok := store.watermarks["5001"]; !ok {
		t.Fatal("kommune after the failing one should still be collected")
	}
	if len(events) != 3 {
		t.Fatalf("expected 3 progress events, got %d", len(events))
	}
}

func TestWatermarkHeldOnEntityErrors(t *testing.T) {
	registry := &fakeRegistry{
		pages: map[string][][]transport.RawEntity{
			"0301": {
				{entity("915442552", "Fjellheimen AS", "0301")},
				{entity("923609016", "Nordlys AS", "0301")},
			},
		},
	}
	// Fail reconciliation of the second entity: the first is persisted, the
	// batch counts one error and the watermark is held.
	store := newFakeStore()
	store.reconcileErrOn = "923609016"

	c := New(registry, store, staticKommuner{{Number: "0301"}}, testLogger())
	stats, err := c.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	ks := stats.Kommuner[0]
	if ks.Failed {
		t.Fatal("entity-level errors alone should not fail the kommune")
	}
	if ks.Errors != 1 {
		t.Fatalf("expected 1 entity error, got %d", ks.Errors)
	}
	if len(store.applied) != 1 {
		t.Fatalf("expected 1 applied plan, got %d", len(store.applied))
	}
	if _, ok := store.watermarks["0301"]; ok {
		t.Fatal("watermark must not advance past a batch with entity errors")
	}
}

func TestFetchFailureHoldsWatermark(t *testing.T) {
	registry := &fakeRegistry{
		failKey: "0301",
		failErr: &client.UnavailableError{Status: 502},
	}
	store := newFakeStore()
	store.watermarks["0301"] = Watermark{
		KommuneNumber: "0301",
		LastSyncedAt:  time.Date(2026, 8, 1, 3, 0, 0, 0, time.UTC),
	}

	c := New(registry, store, staticKommuner{{Number: "0301"}}, testLogger())
	stats, err := c.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if !stats.Kommuner[0].Failed {
		t.Fatal("expected kommune to be marked failed")
	}
	wm := store.watermarks["0301"]
	if !wm.LastSyncedAt.Equal(time.Date(2026, 8, 1, 3, 0, 0, 0, time.UTC)) {
		t.Fatalf("watermark moved despite fetch failure: %v", wm.LastSyncedAt)
	}
}

func TestWindowCeilingNarrowsByPostalCode(t *testing.T) {
	registry := &fakeRegistry{
		pages: map[string][][]transport.RawEntity{
			"0150": {{entity("915442552", "Fjellheimen AS", "0301")}},
			"0151": {{entity("923609016", "Nordlys AS", "0301")}},
		},
		ceilingKeys: map[string]bool{"0301": true},
	}
	store := newFakeStore()
	kommuner := staticKommuner{{Number: "0301", PostalCodes: []string{"0150", "0151"}}}

	c := New(registry, store, kommuner, testLogger())
	stats, err := c.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if stats.Kommuner[0].Failed {
		t.Fatalf("expected narrowed run to succeed: %v", stats.Kommuner[0].Err)
	}
	if stats.Seen != 2 {
		t.Fatalf("expected 2 entities via postal codes, got %d", stats.Seen)
	}
}

func TestWindowCeilingWithoutPostalCodesFails(t *testing.T) {
	registry := &fakeRegistry{ceilingKeys: map[string]bool{"0301": true}}
	store := newFakeStore()

	c := New(registry, store, staticKommuner{{Number: "0301"}}, testLogger())
	stats, err := c.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	ks := stats.Kommuner[0]
	if !ks.Failed {
		t.Fatal("expected kommune to fail without postal codes to narrow by")
	}
	if !errors.Is(ks.Err, client.ErrWindowCeiling) {
		t.Fatalf("expected window ceiling error, got %v", ks.Err)
	}
}

type registryFunc func(ctx context.Context, filter client.PageFilter) (client.Page, error)

func (f registryFunc) FetchPage(ctx context.Context, filter client.PageFilter) (client.Page, error) {
	return f(ctx, filter)
}

func TestRunFetchesUnfilteredAndCoversFromWatermark(t *testing.T) {
	registry := &fakeRegistry{pages: map[string][][]transport.RawEntity{
		"0301": {{entity("915442552", "Fjellheimen AS", "0301")}},
	}}
	store := newFakeStore()
	store.watermarks["0301"] = Watermark{
		KommuneNumber: "0301",
		LastSyncedAt:  time.Date(2026, 8, 20, 3, 0, 0, 0, time.UTC),
	}

	var captured []*time.Time
	wrapped := registryFunc(func(ctx context.Context, filter client.PageFilter) (client.Page, error) {
		captured = append(captured, filter.Since)
		return registry.FetchPage(ctx, filter)
	})

	clock := time.Date(2026, 8, 25, 3, 0, 0, 0, time.UTC)
	c := New(wrapped, store, staticKommuner{{Number: "0301"}}, testLogger(),
		WithClock(func() time.Time { return clock }))
	if _, err := c.Run(context.Background(), nil); err != nil {
		t.Fatalf("Run: %v", err)
	}

	for _, since := range captured {
		if since != nil {
			t.Fatalf("run must fetch without a date filter, got since %v", since)
		}
	}
	// The fetch is unfiltered but the coverage floor is still the watermark.
	days := store.covered["0301"]
	if len(days) != 6 {
		t.Fatalf("expected 6 covered days, got %d: %v", len(days), days)
	}
	if !days[0].Equal(time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("wrong coverage floor: %v", days[0])
	}
}

func TestRunObservesMoveOfLongRegisteredEntity(t *testing.T) {
	// The entity was registered years before the watermark and has since
	// moved into this municipality. A registered-since filter would never
	// return it again; the full fetch must observe and classify the move.
	registry := &fakeRegistry{pages: map[string][][]transport.RawEntity{
		"5001": {{entity("915442552", "Fjellheimen AS", "5001")}},
	}}
	hidden := registryFunc(func(ctx context.Context, filter client.PageFilter) (client.Page, error) {
		if filter.Since != nil {
			return client.Page{}, nil
		}
		return registry.FetchPage(ctx, filter)
	})

	store := newFakeStore()
	oslo := address.Normalized{
		Line:          "Fjellheimen AS gate 1",
		PostalCode:    "0150",
		KommuneNumber: "0301",
		KommuneName:   "Oslo",
	}
	store.stored["915442552"] = reconcile.Stored{
		Exists:   true,
		Name:     "Fjellheimen AS",
		Business: &oslo,
	}
	store.watermarks["5001"] = Watermark{
		KommuneNumber: "5001",
		LastSyncedAt:  time.Date(2026, 8, 20, 3, 0, 0, 0, time.UTC),
	}

	c := New(hidden, store, staticKommuner{{Number: "5001"}}, testLogger())
	stats, err := c.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if stats.Seen != 1 {
		t.Fatalf("expected the relocated entity to be observed, got %d seen", stats.Seen)
	}
	if stats.Moved != 1 {
		t.Fatalf("expected 1 move, got %d (created %d, updated %d, unchanged %d)",
			stats.Moved, stats.Created, stats.Updated, stats.Unchanged)
	}
}

func TestBackfillFetchesFromGapStart(t *testing.T) {
	registry := &fakeRegistry{pages: map[string][][]transport.RawEntity{
		"0301": {{entity("915442552", "Fjellheimen AS", "0301")}},
	}}
	var captured *time.Time
	wrapped := registryFunc(func(ctx context.Context, filter client.PageFilter) (client.Page, error) {
		captured = filter.Since
		return registry.FetchPage(ctx, filter)
	})

	store := newFakeStore()
	from := time.Date(2026, 8, 22, 0, 0, 0, 0, time.UTC)
	clock := time.Date(2026, 8, 25, 3, 0, 0, 0, time.UTC)
	c := New(wrapped, store, staticKommuner{{Number: "0301"}}, testLogger(),
		WithClock(func() time.Time { return clock }))

	ks := c.Backfill(context.Background(), Target{Number: "0301"}, from)
	if ks.Failed {
		t.Fatalf("Backfill: %v", ks.Err)
	}

	if captured == nil || !captured.Equal(from) {
		t.Fatalf("backfill should fetch from the gap start, got %v", captured)
	}
	days := store.covered["0301"]
	if len(days) != 4 {
		t.Fatalf("expected 4 covered days, got %d: %v", len(days), days)
	}
}

func TestEmptyAddressObjectTreatedAsAbsent(t *testing.T) {
	postal := "0150"
	raw := transport.RawEntity{
		OrgNumber:       "915442552",
		Name:            "Fjellheimen AS",
		BusinessAddress: &transport.RawAddress{},
		MailingAddress:  &transport.RawAddress{PostalCode: &postal},
	}

	obs, err := toObservation(raw, time.Date(2026, 8, 25, 3, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("toObservation: %v", err)
	}
	if obs.Business != nil {
		t.Fatalf("all-empty business address should be dropped, got %+v", obs.Business)
	}
	if obs.Mailing == nil || obs.Mailing.PostalCode != "0150" {
		t.Fatalf("mailing address lost: %+v", obs.Mailing)
	}
}

func TestCoveredDays(t *testing.T) {
	syncedAt := time.Date(2026, 8, 25, 3, 0, 0, 0, time.UTC)

	days := coveredDays(nil, syncedAt)
	if len(days) != 1 || !days[0].Equal(time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("first sync should cover the sync day only, got %v", days)
	}

	since := time.Date(2026, 8, 22, 14, 0, 0, 0, time.UTC)
	days = coveredDays(&since, syncedAt)
	if len(days) != 4 {
		t.Fatalf("expected 4 covered days, got %d: %v", len(days), days)
	}
	if !days[0].Equal(time.Date(2026, 8, 22, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("wrong first day: %v", days[0])
	}
	if !days[3].Equal(time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("wrong last day: %v", days[3])
	}
}
