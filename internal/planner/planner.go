// Package planner turns an order book snapshot into read-only execution
// guidance: liquidity and spread verdicts, a recommended limit price, and the
// manual steps a human would follow. Nothing here talks to the venue.
package planner

import (
	"fmt"

	"kalshi-weather/internal/accounting"
	"kalshi-weather/internal/config"
	"kalshi-weather/pkg/types"
)

const (
	minTop3Qty  = 5  // below this the book cannot absorb even a tiny order
	thinTop3Qty = 20 // below this sizing gets cut by the risk layer
)

// AssessLiquidity grades the NO-side depth: top-of-book quantity and the
// summed top three levels.
func AssessLiquidity(book *types.OrderbookSnapshot) (types.LiquidityVerdict, string) {
	if book == nil || book.BestNoBidQty == nil || *book.BestNoBidQty == 0 {
		return types.LiquidityReject, "no resting NO bids"
	}
	if book.BestYesBidQty == nil || *book.BestYesBidQty == 0 {
		return types.LiquidityReject, "no resting YES bids to fill against"
	}
	top3 := book.Top3NoQty()
	switch {
	case top3 < minTop3Qty:
		return types.LiquidityReject, fmt.Sprintf("top-3 depth %d below minimum %d", top3, minTop3Qty)
	case top3 < thinTop3Qty:
		return types.LiquidityThin, fmt.Sprintf("top-3 depth %d is thin", top3)
	default:
		return types.LiquidityOK, fmt.Sprintf("top-3 depth %d", top3)
	}
}

// AssessSpread grades the bid room. A wide book is tolerated only when the
// liquidity is there and the model edge pays for crossing it.
func AssessSpread(book *types.OrderbookSnapshot, liquidity types.LiquidityVerdict, edgePct float64, cfg config.RiskConfig) (types.SpreadVerdict, string) {
	if book == nil || book.BidRoom == nil {
		return types.SpreadReject, "spread unknown (one-sided book)"
	}
	room := *book.BidRoom
	if room <= cfg.SpreadMaxCents {
		return types.SpreadOK, fmt.Sprintf("room %d cents", room)
	}
	if liquidity == types.LiquidityOK && edgePct > cfg.WideExceptionEdgePct {
		return types.SpreadWideException,
			fmt.Sprintf("room %d cents, tolerated for %.1f%% edge", room, edgePct)
	}
	return types.SpreadReject, fmt.Sprintf("room %d cents exceeds %d", room, cfg.SpreadMaxCents)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// RecommendLimit picks a limit price for buying NO: undercut the implied ask
// by a slice of the room when there is room to work, otherwise sit just under
// the ask and accept worse fill odds.
func RecommendLimit(book *types.OrderbookSnapshot) (price int, fillOdds, note string) {
	if book == nil || book.ImpliedNoAsk == nil {
		// no ask to anchor on: fall back to the best bid, or the window floor
		base := 90
		if book != nil && book.BestNoBid != nil {
			base = *book.BestNoBid
		}
		return clamp(base, 1, 99), "UNKNOWN", "implied ask unknown, falling back to best NO bid"
	}

	ask := *book.ImpliedNoAsk
	room := 0
	if book.BidRoom != nil {
		room = *book.BidRoom
	}

	var improve int
	if room >= 2 {
		improve = clamp(room/2, 2, 6)
		fillOdds = "NORMAL"
	} else {
		improve = clamp(max(1, room), 1, 3)
		fillOdds = "TIGHT"
		if room == 1 {
			fillOdds = "MODERATE"
		}
	}
	if improve > 6 {
		fillOdds = "LOW"
	}
	return clamp(ask-improve, 1, 99), fillOdds, ""
}

// Build assembles the full plan for one candidate. The plan comes before the
// accounting pass, so the model edge over the implied is computed here.
func Build(book *types.OrderbookSnapshot, model *types.ModelOutput, cfg config.RiskConfig) *types.ExecutionPlan {
	edge := 0.0
	if model != nil && book != nil && book.ImpliedNoAsk != nil {
		edge = accounting.EdgePct(1-model.PBracket, float64(*book.ImpliedNoAsk)/100)
	}
	liquidity, liqNote := AssessLiquidity(book)
	spread, spreadNote := AssessSpread(book, liquidity, edge, cfg)
	price, fillOdds, priceNote := RecommendLimit(book)

	plan := &types.ExecutionPlan{
		Liquidity:       liquidity,
		LiquidityNote:   liqNote,
		Spread:          spread,
		SpreadNote:      spreadNote,
		LimitPriceCents: price,
		FillOdds:        fillOdds,
		PriceNote:       priceNote,
	}
	plan.ManualSteps = manualSteps(price)
	plan.CancelRules = cancelRules()
	return plan
}

func manualSteps(price int) []string {
	return []string{
		"Open the market page and confirm the bracket text matches the slate entry.",
		fmt.Sprintf("Place a limit order to buy NO at %d cents.", price),
		"Do not chase: if the book has moved more than 2 cents, re-run the scan first.",
		"Record the fill (or non-fill) against the slate entry.",
	}
}

func cancelRules() []string {
	return []string{
		"Cancel if unfilled 30 minutes before the volatility window closes.",
		"Cancel immediately on a spike alert for this market's city.",
		"Cancel and re-evaluate if the NWS issues a new hourly forecast that moves the peak by 2 degrees or more.",
	}
}
