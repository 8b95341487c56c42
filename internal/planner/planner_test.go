package planner

import (
	"testing"

	"github.com/stretchr/testify/require"

	"kalshi-weather/internal/config"
	"kalshi-weather/pkg/types"
)

func intPtr(v int) *int { return &v }

// book returns a two-sided snapshot with the given best NO bid, implied NO
// ask, and top-3 NO depth split across levels.
func book(noBid, noAsk, topQty int) *types.OrderbookSnapshot {
	room := noAsk - noBid
	yesBid := 100 - noAsk
	first := topQty / 2
	rest := topQty - first
	return &types.OrderbookSnapshot{
		BestYesBid:    &yesBid,
		BestYesBidQty: intPtr(50),
		BestNoBid:     &noBid,
		BestNoBidQty:  &first,
		ImpliedNoAsk:  &noAsk,
		BidRoom:       &room,
		TopNo: []types.BookLevel{
			{PriceCents: noBid, Qty: first},
			{PriceCents: noBid - 2, Qty: rest},
		},
	}
}

func riskCfg() config.RiskConfig { return config.Default().Risk }

func TestAssessLiquidity(t *testing.T) {
	t.Parallel()

	v, _ := AssessLiquidity(nil)
	require.Equal(t, types.LiquidityReject, v)

	v, note := AssessLiquidity(book(89, 92, 4))
	require.Equal(t, types.LiquidityReject, v)
	require.Contains(t, note, "below minimum")

	v, _ = AssessLiquidity(book(89, 92, 5))
	require.Equal(t, types.LiquidityThin, v)

	v, _ = AssessLiquidity(book(89, 92, 19))
	require.Equal(t, types.LiquidityThin, v)

	v, _ = AssessLiquidity(book(89, 92, 20))
	require.Equal(t, types.LiquidityOK, v)

	// empty YES side means nothing to fill against
	b := book(89, 92, 40)
	b.BestYesBidQty = nil
	v, _ = AssessLiquidity(b)
	require.Equal(t, types.LiquidityReject, v)
}

func TestAssessSpread(t *testing.T) {
	t.Parallel()

	cfg := riskCfg()

	v, _ := AssessSpread(nil, types.LiquidityOK, 10, cfg)
	require.Equal(t, types.SpreadReject, v)

	v, _ = AssessSpread(book(86, 92, 40), types.LiquidityOK, 0, cfg) // room 6
	require.Equal(t, types.SpreadOK, v)

	// room 7: rejected unless deep book and real edge
	v, _ = AssessSpread(book(85, 92, 40), types.LiquidityOK, 2.9, cfg)
	require.Equal(t, types.SpreadReject, v)

	v, note := AssessSpread(book(85, 92, 40), types.LiquidityOK, 3.1, cfg)
	require.Equal(t, types.SpreadWideException, v)
	require.Contains(t, note, "tolerated")

	v, _ = AssessSpread(book(85, 92, 40), types.LiquidityThin, 10, cfg)
	require.Equal(t, types.SpreadReject, v)
}

func TestRecommendLimit(t *testing.T) {
	t.Parallel()

	// room 3: undercut the ask by max(2, 3/2) = 2 -> 90
	price, odds, _ := RecommendLimit(book(89, 92, 40))
	require.Equal(t, 90, price)
	require.Equal(t, "NORMAL", odds)

	// room 10: undercut by min(5, 6) = 5 -> 87
	price, odds, _ = RecommendLimit(book(82, 92, 40))
	require.Equal(t, 87, price)
	require.Equal(t, "NORMAL", odds)

	// room 1: undercut 1, moderate odds
	price, odds, _ = RecommendLimit(book(91, 92, 40))
	require.Equal(t, 91, price)
	require.Equal(t, "MODERATE", odds)

	// room 0: still undercut 1, tight odds
	price, odds, _ = RecommendLimit(book(92, 92, 40))
	require.Equal(t, 91, price)
	require.Equal(t, "TIGHT", odds)

	// unknown ask falls back to the best NO bid
	b := &types.OrderbookSnapshot{BestNoBid: intPtr(90)}
	price, odds, note := RecommendLimit(b)
	require.Equal(t, 90, price)
	require.Equal(t, "UNKNOWN", odds)
	require.NotEmpty(t, note)

	// nothing at all: window floor
	price, _, _ = RecommendLimit(nil)
	require.Equal(t, 90, price)

	// never outside [1,99]
	price, _, _ = RecommendLimit(book(97, 99, 40))
	require.LessOrEqual(t, price, 99)
}

func TestRecommendLimitNeverCrossesAsk(t *testing.T) {
	t.Parallel()

	for _, room := range []int{0, 1, 2, 3, 7, 12} {
		price, _, _ := RecommendLimit(book(92-room, 92, 40))
		require.LessOrEqual(t, price, 92, "room %d", room)
	}
}

func TestBuild(t *testing.T) {
	t.Parallel()

	model := &types.ModelOutput{PBracket: 0.04} // p(NO) 0.96 vs implied 0.92
	plan := Build(book(89, 92, 40), model, riskCfg())

	require.Equal(t, types.LiquidityOK, plan.Liquidity)
	require.Equal(t, types.SpreadOK, plan.Spread)
	require.Equal(t, 90, plan.LimitPriceCents)
	require.Equal(t, "NORMAL", plan.FillOdds)
	require.NotEmpty(t, plan.ManualSteps)
	require.NotEmpty(t, plan.CancelRules)
	require.Contains(t, plan.ManualSteps[1], "90")
}
