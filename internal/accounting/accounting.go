// Package accounting implements the venue's fee formula and the expected
// value arithmetic for buying the NO side of a bracket.
package accounting

import (
	"fmt"
	"math"

	"kalshi-weather/internal/config"
	"kalshi-weather/pkg/types"
)

// FeeCents is the venue's per-contract fee at a given price:
// ceil(rate * P * (1-P) * 100) cents, where P is the price as a probability.
// The quadratic means fees peak at 50c and nearly vanish at the extremes.
func FeeCents(priceCents int, rate float64) int {
	p := float64(priceCents) / 100
	return int(math.Ceil(rate * p * (1 - p) * 100))
}

// EVNetCents is the expected value per contract of buying NO at a price,
// after the fee at the given rate, given the model's probability that NO
// settles yes.
func EVNetCents(noPriceCents int, pNo float64, feeRate float64) float64 {
	return 100*pNo - float64(noPriceCents) - float64(FeeCents(noPriceCents, feeRate))
}

// MaxBuyNoCents is the highest NO price that still has non-negative expected
// value, scanning down from 99. Zero means no price works.
func MaxBuyNoCents(pNo float64, takerRate float64) int {
	for price := 99; price >= 1; price-- {
		if EVNetCents(price, pNo, takerRate) >= 0 {
			return price
		}
	}
	return 0
}

// EdgePct is the model's edge over the market-implied probability, as a
// percentage of the implied. Zero when the implied is degenerate.
func EdgePct(pModel, pImplied float64) float64 {
	if pImplied <= 0 {
		return 0
	}
	return (pModel - pImplied) / pImplied * 100
}

// Build runs the full accounting pass for one candidate. The model gives the
// probability the bracket settles YES; we are pricing the NO side. EV is
// taken at the planner's recommended limit with the maker fee, since the
// strategy is resting limit orders, never crossing the spread.
func Build(book *types.OrderbookSnapshot, model *types.ModelOutput, limitCents int, fees config.FeeConfig) *types.Accounting {
	if book == nil || book.ImpliedNoAsk == nil {
		return &types.Accounting{NoTradeReason: "no implied NO ask"}
	}
	ask := *book.ImpliedNoAsk
	pNo := 1 - model.PBracket
	if limitCents <= 0 {
		limitCents = ask
	}

	acct := &types.Accounting{
		TakerFeeCents: FeeCents(limitCents, fees.TakerRate),
		MakerFeeCents: FeeCents(limitCents, fees.MakerRate),
		EVNetCents:    EVNetCents(limitCents, pNo, fees.MakerRate),
		MaxBuyNoCents: MaxBuyNoCents(pNo, fees.TakerRate),
		ImpliedProb:   float64(ask) / 100,
		EdgePct:       EdgePct(pNo, float64(ask)/100),
	}
	if acct.EVNetCents <= 0 {
		acct.NoTradeReason = fmt.Sprintf("EV %.1f cents at recommended limit %d", acct.EVNetCents, limitCents)
		acct.Notes = append(acct.Notes, acct.NoTradeReason)
	}
	if limitCents > ask {
		acct.Notes = append(acct.Notes, fmt.Sprintf("WARNING: limit %dc above implied ask %dc", limitCents, ask))
	}
	acct.Notes = append(acct.Notes,
		fmt.Sprintf("taker fee %dc, maker fee %dc at limit %d", acct.TakerFeeCents, acct.MakerFeeCents, limitCents),
		fmt.Sprintf("model p(NO) %.4f vs implied %.4f", pNo, acct.ImpliedProb))
	return acct
}
