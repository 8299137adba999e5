/*
overrides.go - Pending/committed override book for one property

PURPOSE:
  Holds two mappings per date:
  - pending:   locally edited base rates, not yet acknowledged by the PMS
  - committed: the last value the PMS acknowledged (including manual rates
               discovered when the calendar loads)

LIFECYCLE (per date):
  unset -> pending (edit) -> committed (submit success) -> pending (new edit)
                                                        -> unset   (clear, if never committed)
  A failed submission puts the date back to pending.

OPTIMISTIC SUBMISSION:
  The submission pipeline promotes pending entries BEFORE the gateway
  answers. Snapshot() taken beforehand captures both maps, so Restore() can
  put the batch back into pending and undo the committed entries that
  promotion wrote. Edits made while the batch was in flight are newer than
  the snapshot and survive the restore. After a restore, committed again
  means "last acknowledged truth".

CONCURRENCY:
  Every operation is a map mutation under a mutex. Operations are
  synchronous and never block on I/O.

SEE ALSO:
  - submission.go: Snapshot -> Promote -> push -> Restore on failure
  - calendar.go: Seeds committed from Manual-source preview days
*/
package rates

import (
	"sort"
	"sync"

	"github.com/shopspring/decimal"
)

// OverrideState is the tagged state of a single date.
type OverrideState string

const (
	StateUnset     OverrideState = "unset"
	StatePending   OverrideState = "pending"
	StateCommitted OverrideState = "committed"
	StateInFlight  OverrideState = "in_flight"
)

// OverrideBook is the override store for one property.
type OverrideBook struct {
	mu        sync.RWMutex
	pending   map[Date]decimal.Decimal
	committed map[Date]decimal.Decimal
	inFlight  map[Date]bool
}

func NewOverrideBook() *OverrideBook {
	return &OverrideBook{
		pending:   make(map[Date]decimal.Decimal),
		committed: make(map[Date]decimal.Decimal),
		inFlight:  make(map[Date]bool),
	}
}

// SetPending inserts or overwrites the pending entry. Committed is untouched.
func (b *OverrideBook) SetPending(date Date, baseRate decimal.Decimal) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pending[date] = baseRate
}

// ClearPending removes the pending entry only.
func (b *OverrideBook) ClearPending(date Date) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.pending, date)
}

// Effective returns pending, else committed, else (zero, false).
func (b *OverrideBook) Effective(date Date) (decimal.Decimal, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if v, ok := b.pending[date]; ok {
		return v, true
	}
	if v, ok := b.committed[date]; ok {
		return v, true
	}
	return decimal.Zero, false
}

// State reports where the date is in its lifecycle.
func (b *OverrideBook) State(date Date) OverrideState {
	b.mu.RLock()
	defer b.mu.RUnlock()
	switch {
	case b.inFlight[date]:
		return StateInFlight
	case hasKey(b.pending, date):
		return StatePending
	case hasKey(b.committed, date):
		return StateCommitted
	default:
		return StateUnset
	}
}

// Promote merges the named pending entries into committed and removes them
// from pending. Dates with no pending entry are ignored.
func (b *OverrideBook) Promote(dates []Date) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, d := range dates {
		v, ok := b.pending[d]
		if !ok {
			continue
		}
		b.committed[d] = v
		delete(b.pending, d)
	}
}

// SeedCommitted records values already known to the PMS (e.g. manual rates
// found on load) without touching pending.
func (b *OverrideBook) SeedCommitted(overrides []Override) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, o := range overrides {
		b.committed[o.Date] = o.Rate
	}
}

// PendingOverrides returns pending entries sorted by date.
func (b *OverrideBook) PendingOverrides() []Override {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return sortedOverrides(b.pending)
}

// CommittedOverrides returns committed entries sorted by date.
func (b *OverrideBook) CommittedOverrides() []Override {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return sortedOverrides(b.committed)
}

// =============================================================================
// SNAPSHOT / RESTORE - Undo for optimistic promotion
// =============================================================================

// Snapshot is a point-in-time copy of the book.
type Snapshot struct {
	Pending   map[Date]decimal.Decimal
	Committed map[Date]decimal.Decimal
}

// Dates returns the snapshot's pending dates in ascending order.
func (s Snapshot) Dates() []Date {
	dates := make([]Date, 0, len(s.Pending))
	for d := range s.Pending {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates
}

// Overrides returns the snapshot's pending entries sorted by date.
func (s Snapshot) Overrides() []Override {
	return sortedOverrides(s.Pending)
}

func (s Snapshot) IsEmpty() bool { return len(s.Pending) == 0 }

// holdBack drops the pending dates for which hold returns true from the
// snapshot and returns them sorted. The book itself is not touched.
func (s Snapshot) holdBack(hold func(Date) bool) []Date {
	if hold == nil {
		return nil
	}
	var held []Date
	for _, d := range s.Dates() {
		if hold(d) {
			delete(s.Pending, d)
			held = append(held, d)
		}
	}
	return held
}

func (b *OverrideBook) Snapshot() Snapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return Snapshot{Pending: copyRates(b.pending), Committed: copyRates(b.committed)}
}

// Restore undoes an optimistic promotion. Every snapshot date gets its pending
// value back unless it was edited again after the snapshot, and its committed
// value returns to what the snapshot held (or is removed). Pending entries for
// other dates are left alone.
func (b *OverrideBook) Restore(s Snapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for d, v := range s.Pending {
		if !hasKey(b.pending, d) {
			b.pending[d] = v
		}
		if c, ok := s.Committed[d]; ok {
			b.committed[d] = c
		} else {
			delete(b.committed, d)
		}
	}
}

func (b *OverrideBook) markInFlight(dates []Date, on bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, d := range dates {
		if on {
			b.inFlight[d] = true
		} else {
			delete(b.inFlight, d)
		}
	}
}

// =============================================================================
// HELPERS
// =============================================================================

func hasKey(m map[Date]decimal.Decimal, d Date) bool {
	_, ok := m[d]
	return ok
}

func copyRates(m map[Date]decimal.Decimal) map[Date]decimal.Decimal {
	out := make(map[Date]decimal.Decimal, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func sortedOverrides(m map[Date]decimal.Decimal) []Override {
	out := make([]Override, 0, len(m))
	for d, r := range m {
		out = append(out, Override{Date: d, Rate: r})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}
