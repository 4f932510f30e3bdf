// Package reconcile implements the diff engine that compares an incoming
// registry observation against stored state and emits the minimal set of
// mutations that keeps the address-history invariants intact.
//
// The engine is pure: it never touches storage. The repository applies the
// resulting plan inside a single per-entity transaction.
package reconcile

import (
	"time"

	"konkursradar_backend/internal/address"
)

// Classification is the outcome of diffing one observation.
type Classification string

const (
	// ClassificationNew means the entity was not stored before.
	ClassificationNew Classification = "new"
	// ClassificationUpdated means an address changed within the same municipality,
	// or non-address data changed alongside a first-seen address kind.
	ClassificationUpdated Classification = "updated"
	// ClassificationMoved means an address changed to a different municipality.
	ClassificationMoved Classification = "moved"
	// ClassificationUnchanged means the stored state already matches.
	ClassificationUnchanged Classification = "unchanged"
)

// Observation is one normalized incoming entity.
type Observation struct {
	OrgNumber    string
	Name         string
	OrgForm      string
	Status       string
	RegisteredAt time.Time // zero when unknown upstream
	Business     *address.Normalized
	Mailing      *address.Normalized
	ObservedAt   time.Time
}

// Stored is the entity's persisted state as of the start of reconciliation.
type Stored struct {
	Exists   bool
	Name     string
	OrgForm  string
	Status   string
	Business *address.Normalized // current business row, nil when none open
	Mailing  *address.Normalized // current mailing row, nil when none open
}

// HistoryChange is one mutation of an address-history series. CloseCurrent
// and Open are emitted as a pair on a move so the close-then-open happens in
// the same transaction; on first sight only Open is set.
type HistoryChange struct {
	Kind         address.Kind
	CloseCurrent bool
	Open         *address.Normalized
	OpenFrom     time.Time
}

// CompanyFields are the scalar values written unconditionally on every
// observed record, independent of the address classification.
type CompanyFields struct {
	OrgNumber    string
	Name         string
	OrgForm      string
	Status       string
	RegisteredAt time.Time
	// Business mirrors the current business address onto the company row
	// for cheap "current address" reads. Nil leaves the mirror untouched.
	Business   *address.Normalized
	ObservedAt time.Time
}

// Plan is the ordered mutation set for one entity. The repository applies
// it atomically or not at all.
type Plan struct {
	Classification Classification
	Company        CompanyFields
	Changes        []HistoryChange
}

// Diff classifies the observation against stored state.
//
// Rules:
//   - no stored entity: NEW, one open row per present address kind, validity
//     starting at the registration date (falling back to the observation time);
//   - address identical (exact match): UNCHANGED, no history mutation;
//   - address differs: close the current row and open a new one at the
//     observation time; MOVED when the municipality code differs, UPDATED
//     otherwise. Business and mailing kinds are diffed independently;
//   - an incoming record missing an address kind leaves that series alone;
//   - an address matching a historical (closed) row still opens a fresh row;
//     reappearance is a new residency, not a resumption of the old one.
func Diff(obs Observation, stored Stored) Plan {
	plan := Plan{
		Company: CompanyFields{
			OrgNumber:    obs.OrgNumber,
			Name:         obs.Name,
			OrgForm:      obs.OrgForm,
			Status:       obs.Status,
			RegisteredAt: obs.RegisteredAt,
			Business:     obs.Business,
			ObservedAt:   obs.ObservedAt,
		},
	}

	if !stored.Exists {
		plan.Classification = ClassificationNew
		openFrom := obs.RegisteredAt
		if openFrom.IsZero() {
			openFrom = obs.ObservedAt
		}
		if obs.Business != nil {
			plan.Changes = append(plan.Changes, HistoryChange{
				Kind:     address.KindBusiness,
				Open:     obs.Business,
				OpenFrom: openFrom,
			})
		}
		if obs.Mailing != nil {
			plan.Changes = append(plan.Changes, HistoryChange{
				Kind:     address.KindMailing,
				Open:     obs.Mailing,
				OpenFrom: openFrom,
			})
		}
		return plan
	}

	moved := false
	changed := false

	if change, kindMoved, ok := diffKind(address.KindBusiness, obs.Business, stored.Business, obs.ObservedAt); ok {
		plan.Changes = append(plan.Changes, change)
		changed = true
		moved = moved || kindMoved
	}
	if change, kindMoved, ok := diffKind(address.KindMailing, obs.Mailing, stored.Mailing, obs.ObservedAt); ok {
		plan.Changes = append(plan.Changes, change)
		changed = true
		moved = moved || kindMoved
	}

	switch {
	case moved:
		plan.Classification = ClassificationMoved
	case changed:
		plan.Classification = ClassificationUpdated
	default:
		plan.Classification = ClassificationUnchanged
	}

	return plan
}

// diffKind diffs one address series. Returns ok=false when no mutation is
// needed for the kind.
func diffKind(kind address.Kind, incoming, current *address.Normalized, observedAt time.Time) (HistoryChange, bool, bool) {
	if incoming == nil {
		// The registry stopped reporting this kind; the open row stays open.
		return HistoryChange{}, false, false
	}

	if current == nil {
		// First time this kind is seen for an existing entity.
		return HistoryChange{
			Kind:     kind,
			Open:     incoming,
			OpenFrom: observedAt,
		}, false, true
	}

	if address.Equal(*incoming, *current) {
		return HistoryChange{}, false, false
	}

	moved := incoming.KommuneNumber != current.KommuneNumber

	return HistoryChange{
		Kind:         kind,
		CloseCurrent: true,
		Open:         incoming,
		OpenFrom:     observedAt,
	}, moved, true
}
