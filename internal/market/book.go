package market

import (
	"time"

	"kalshi-weather/internal/kalshi"
	"kalshi-weather/pkg/types"
)

// ParseOrderbook reduces a venue orderbook to the snapshot the pipeline
// reasons about. The venue reports resting bids ascending by price, so the
// best bid is the LAST element of each array; asks are implied from the
// opposite side, since buying NO at X fills against a YES bid at 100-X.
func ParseOrderbook(ob *kalshi.Orderbook, fetchedAt time.Time) *types.OrderbookSnapshot {
	snap := &types.OrderbookSnapshot{FetchedAt: fetchedAt}
	if ob == nil {
		return snap
	}

	if price, qty, ok := bestBid(ob.Yes); ok {
		snap.BestYesBid = &price
		snap.BestYesBidQty = &qty
		ask := 100 - price
		snap.ImpliedNoAsk = &ask
	}
	if price, qty, ok := bestBid(ob.No); ok {
		snap.BestNoBid = &price
		snap.BestNoBidQty = &qty
		ask := 100 - price
		snap.ImpliedYesAsk = &ask
	}
	if snap.ImpliedNoAsk != nil && snap.BestNoBid != nil {
		room := *snap.ImpliedNoAsk - *snap.BestNoBid
		snap.BidRoom = &room
	}

	snap.TopYes = topLevels(ob.Yes, 3)
	snap.TopNo = topLevels(ob.No, 3)
	return snap
}

func bestBid(levels [][]int) (price, qty int, ok bool) {
	for i := len(levels) - 1; i >= 0; i-- {
		if len(levels[i]) >= 2 {
			return levels[i][0], levels[i][1], true
		}
	}
	return 0, 0, false
}

// topLevels returns up to n levels, highest price first.
func topLevels(levels [][]int, n int) []types.BookLevel {
	var out []types.BookLevel
	for i := len(levels) - 1; i >= 0 && len(out) < n; i-- {
		if len(levels[i]) >= 2 {
			out = append(out, types.BookLevel{PriceCents: levels[i][0], Qty: levels[i][1]})
		}
	}
	return out
}
