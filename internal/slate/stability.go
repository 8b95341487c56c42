package slate

import (
	"fmt"

	"kalshi-weather/internal/config"
	"kalshi-weather/pkg/types"
)

// priorIndex maps market tickers to their entries in a prior slate.
func priorIndex(prior *types.DailySlate) map[string]types.UnifiedCandidate {
	idx := map[string]types.UnifiedCandidate{}
	if prior == nil {
		return idx
	}
	for _, c := range prior.AllCandidates() {
		idx[c.MarketTicker] = c
	}
	return idx
}

func askOf(c *types.UnifiedCandidate) (int, bool) {
	if c.Book == nil || c.Book.ImpliedNoAsk == nil {
		return 0, false
	}
	return *c.Book.ImpliedNoAsk, true
}

func evSign(c *types.UnifiedCandidate) int {
	if c.Accounting == nil {
		return 0
	}
	if c.Accounting.EVNetCents < 0 {
		return -1
	}
	return 1
}

func confOf(c *types.UnifiedCandidate) string {
	if c.MappingConfidence == nil {
		return ""
	}
	return string(*c.MappingConfidence)
}

// changeAllowed reports whether a bucket move is backed by a real change:
// the ask moved at least the threshold, the EV flipped sign, or the station
// mapping confidence changed.
func changeAllowed(prior, cur *types.UnifiedCandidate, cfg config.StabilityConfig) bool {
	priorAsk, okP := askOf(prior)
	curAsk, okC := askOf(cur)
	if okP != okC {
		return true
	}
	if okP && abs(curAsk-priorAsk) >= cfg.PriceMoveCents {
		return true
	}
	if evSign(prior) != evSign(cur) {
		return true
	}
	return confOf(prior) != confOf(cur)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// Stabilize classifies each candidate and damps churn: a bucket different
// from the prior run's is kept only when backed by a material change. Hard
// rejects always stand; stability never resurrects a gated-out candidate or
// pins one into REJECTED.
func Stabilize(cands []types.UnifiedCandidate, prior *types.DailySlate, scanCfg config.ScanConfig, stabCfg config.StabilityConfig) []types.UnifiedCandidate {
	idx := priorIndex(prior)
	out := make([]types.UnifiedCandidate, len(cands))
	for i := range cands {
		c := cands[i]
		c.Bucket, c.BucketReason = ClassifyBucket(&c, scanCfg)
		if c.Bucket == types.BucketRejected {
			c.RejectReasons = HardRejectReasons(&c)
		}

		if p, ok := idx[c.MarketTicker]; ok &&
			p.Bucket != c.Bucket &&
			p.Bucket != types.BucketRejected &&
			c.Bucket != types.BucketRejected &&
			!changeAllowed(&p, &c, stabCfg) {
			c.Bucket = p.Bucket
			c.BucketReason = fmt.Sprintf(
				"Stability: kept %s (change suppressed — thresholds not met)", p.Bucket)
		}
		out[i] = c
	}
	return out
}

// ComputeDelta describes what changed between two consecutive slates, in
// human-readable notes for the report. An empty delta collapses to a single
// no-change note.
func ComputeDelta(prior, cur *types.DailySlate, cfg config.StabilityConfig) []string {
	if prior == nil {
		return []string{"First run for this date."}
	}

	var notes []string
	priorByTicker := priorIndex(prior)
	curByTicker := priorIndex(cur)

	for _, c := range cur.AllCandidates() {
		p, existed := priorByTicker[c.MarketTicker]
		if !existed {
			notes = append(notes, fmt.Sprintf("NEW: %s entered %s", c.MarketTicker, c.Bucket))
			continue
		}
		if p.Bucket != c.Bucket {
			notes = append(notes, fmt.Sprintf("%s: %s -> %s", c.MarketTicker, p.Bucket, c.Bucket))
		}
		if pa, ok := askOf(&p); ok {
			if ca, ok2 := askOf(&c); ok2 && abs(ca-pa) >= cfg.PriceMoveCents {
				notes = append(notes, fmt.Sprintf("%s: ask moved %d -> %d", c.MarketTicker, pa, ca))
			}
		}
		if evSign(&p) != evSign(&c) {
			notes = append(notes, fmt.Sprintf("%s: EV sign flipped", c.MarketTicker))
		}
		if p.Bucket == c.Bucket && p.Rank != c.Rank {
			notes = append(notes, fmt.Sprintf("%s: rank %d -> %d in %s", c.MarketTicker, p.Rank, c.Rank, c.Bucket))
		}
	}

	for _, p := range prior.AllCandidates() {
		if _, still := curByTicker[p.MarketTicker]; !still {
			notes = append(notes, fmt.Sprintf("REMOVED: %s (was %s)", p.MarketTicker, p.Bucket))
		}
	}

	if len(cur.Primary) != len(prior.Primary) {
		notes = append(notes, fmt.Sprintf("PRIMARY count %d -> %d", len(prior.Primary), len(cur.Primary)))
	}
	if len(cur.Tight) != len(prior.Tight) {
		notes = append(notes, fmt.Sprintf("TIGHT count %d -> %d", len(prior.Tight), len(cur.Tight)))
	}

	if len(notes) == 0 {
		return []string{"No material changes from prior run."}
	}
	return notes
}
