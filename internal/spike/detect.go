package spike

import (
	"time"

	"kalshi-weather/internal/config"
)

// Event is a detected price spike.
type Event struct {
	Ticker   string
	OldPrice int
	NewPrice int
	Delta    int
	Elapsed  time.Duration
}

// Detect scans every tracked ticker for a rise of at least the threshold
// between the oldest in-window snapshot and the latest one, skipping tickers
// still cooling down from a prior burst. The largest qualifying delta wins.
func Detect(h *History, cfg config.SpikeConfig, now time.Time, cooldowns map[string]time.Time) *Event {
	windowStart := now.Add(-cfg.Window)
	var best *Event

	for ticker, snaps := range h.data {
		if last, ok := cooldowns[ticker]; ok && now.Sub(last) < cfg.Cooldown {
			continue
		}
		if len(snaps) < 2 {
			continue
		}

		var oldest *Snapshot
		for i := range snaps {
			if !snaps[i].At.Before(windowStart) {
				oldest = &snaps[i]
				break
			}
		}
		if oldest == nil {
			continue
		}

		latest := snaps[len(snaps)-1]
		delta := latest.PriceCents - oldest.PriceCents
		if delta < cfg.ThresholdCents {
			continue
		}
		if best == nil || delta > best.Delta {
			best = &Event{
				Ticker:   ticker,
				OldPrice: oldest.PriceCents,
				NewPrice: latest.PriceCents,
				Delta:    delta,
				Elapsed:  latest.At.Sub(oldest.At),
			}
		}
	}
	return best
}
