// Package spike watches intraday YES bids for sudden jumps and answers them
// with a burst of alert emails carrying fresh edge analysis. It is a two
// phase loop: MONITORING polls event prices on an interval; a detected spike
// switches to BURST, which re-analyzes the city several times a minute apart
// before returning to MONITORING.
package spike

import (
	"time"
)

// Snapshot is one observed price. Timestamps come from time.Now, whose
// monotonic reading makes the window arithmetic immune to clock steps.
type Snapshot struct {
	PriceCents int
	At         time.Time
}

// History keeps a rolling per-ticker price series, capped by age.
type History struct {
	maxAge time.Duration
	data   map[string][]Snapshot
}

// NewHistory builds a history that retains snapshots up to maxAge old.
func NewHistory(maxAge time.Duration) *History {
	return &History{maxAge: maxAge, data: map[string][]Snapshot{}}
}

// Record appends one observation.
func (h *History) Record(ticker string, priceCents int, at time.Time) {
	h.data[ticker] = append(h.data[ticker], Snapshot{PriceCents: priceCents, At: at})
}

// Prune drops snapshots older than maxAge everywhere.
func (h *History) Prune(now time.Time) {
	cutoff := now.Add(-h.maxAge)
	for ticker, snaps := range h.data {
		i := 0
		for i < len(snaps) && snaps[i].At.Before(cutoff) {
			i++
		}
		if i == 0 {
			continue
		}
		if i == len(snaps) {
			delete(h.data, ticker)
			continue
		}
		h.data[ticker] = append([]Snapshot(nil), snaps[i:]...)
	}
}

// Get returns the retained snapshots for one ticker, oldest first.
func (h *History) Get(ticker string) []Snapshot {
	out := make([]Snapshot, len(h.data[ticker]))
	copy(out, h.data[ticker])
	return out
}
