package risk

import (
	"testing"

	"github.com/stretchr/testify/require"

	"kalshi-weather/internal/config"
	"kalshi-weather/pkg/types"
)

func riskCfg() config.RiskConfig { return config.Default().Risk }

func cand(city string) types.UnifiedCandidate {
	c := types.UnifiedCandidate{
		RawCandidate: types.RawCandidate{City: city, MarketType: types.HighTemp},
		Model: &types.ModelOutput{
			Uncertainty: types.UncertaintyLow,
			KnifeEdge:   types.KnifeLow,
			LockIn:      types.NotLocked,
		},
		Plan:       &types.ExecutionPlan{Liquidity: types.LiquidityOK, Spread: types.SpreadOK},
		Accounting: &types.Accounting{EVNetCents: 2.0, EdgePct: 4.0},
	}
	c.Risk = BuildRecommendation(&c)
	return c
}

func TestGroupFor(t *testing.T) {
	t.Parallel()

	require.Equal(t, "Northeast", GroupFor("New York"))
	require.Equal(t, "Northeast", GroupFor("LaGuardia"))
	require.Equal(t, "South Central", GroupFor("Oklahoma City"))
	require.Equal(t, "Pacific", GroupFor("San Francisco"))
	require.Equal(t, "Other", GroupFor("Anchorage"))
	// substring matching needs 4+ chars on both sides
	require.Equal(t, "Other", GroupFor("NY"))
}

func TestMetroFor(t *testing.T) {
	t.Parallel()

	require.Equal(t, "NYC Metro", MetroFor("New York"))
	require.Equal(t, "NYC Metro", MetroFor("LaGuardia"))
	require.Equal(t, "Standalone", MetroFor("Denver"))
	require.Equal(t, "Standalone", MetroFor("Boston"))
}

func TestFlags(t *testing.T) {
	t.Parallel()

	c := cand("New York")
	require.Empty(t, Flags(&c))

	c.Model.Uncertainty = types.UncertaintyHigh
	c.Model.KnifeEdge = types.KnifeMed
	c.Model.LockIn = types.Locking
	c.Model.HoursToWindowEnd = 9
	c.Plan.Liquidity = types.LiquidityThin
	c.Plan.Spread = types.SpreadWideException
	c.Accounting.EVNetCents = -1
	c.Accounting.EdgePct = 0.5

	flags := Flags(&c)
	for _, want := range []string{
		"HIGH_UNCERTAINTY", "KNIFE_EDGE_MED", "HIGH_TEMP_LOCKING",
		"LONG_VOL_WINDOW", "THIN_LIQUIDITY", "WIDE_SPREAD",
		"NEGATIVE_EV", "MINIMAL_EDGE",
	} {
		require.Contains(t, flags, want)
	}

	c.RawCandidate.MarketType = types.LowTemp
	require.Contains(t, Flags(&c), "LOW_TEMP_LOCKING")

	c.Model.HoursToWindowEnd = 0.5
	require.Contains(t, Flags(&c), "VOL_WINDOW_CLOSING")
}

func TestMultiplier(t *testing.T) {
	t.Parallel()

	c := cand("New York")
	require.Equal(t, 1.0, Multiplier(&c))

	c.Model.Uncertainty = types.UncertaintyMed
	require.InDelta(t, 0.8, Multiplier(&c), 0.001)

	c.Model.KnifeEdge = types.KnifeHigh
	require.InDelta(t, 0.32, Multiplier(&c), 0.001)

	// everything bad at once hits the floor
	c.Model.Uncertainty = types.UncertaintyHigh
	c.Model.HoursToWindowEnd = 9
	c.Plan.Liquidity = types.LiquidityThin
	require.Equal(t, 0.1, Multiplier(&c))
}

func TestEnforceCaps(t *testing.T) {
	t.Parallel()

	cfg := riskCfg()
	// four Southeast cities: the fourth must be excluded by the group cap
	cands := []types.UnifiedCandidate{
		cand("Atlanta"), cand("Charlotte"), cand("Miami"), cand("Tampa"),
	}
	EnforceCaps(cands, cfg)
	require.False(t, cands[0].Risk.CapExcluded)
	require.False(t, cands[1].Risk.CapExcluded)
	require.False(t, cands[2].Risk.CapExcluded)
	require.True(t, cands[3].Risk.CapExcluded)
	require.Contains(t, cands[3].Risk.CapReason, "Southeast")
}

func TestEnforceMetroCap(t *testing.T) {
	t.Parallel()

	cfg := riskCfg()
	// Texas Triangle allows two; Houston is the third
	cands := []types.UnifiedCandidate{
		cand("Austin"), cand("San Antonio"), cand("Houston"),
	}
	EnforceCaps(cands, cfg)
	require.False(t, cands[0].Risk.CapExcluded)
	require.False(t, cands[1].Risk.CapExcluded)
	require.True(t, cands[2].Risk.CapExcluded)
	require.Contains(t, cands[2].Risk.CapReason, "Texas Triangle")
}

func TestAllocateStakes(t *testing.T) {
	t.Parallel()

	cfg := riskCfg() // bankroll 42.00
	cands := []types.UnifiedCandidate{cand("New York"), cand("Denver"), cand("Seattle")}
	cands[1].Model.Uncertainty = types.UncertaintyMed
	cands[1].Risk = BuildRecommendation(&cands[1])

	EnforceCaps(cands, cfg)
	AllocateStakes(cands, cfg)

	require.InDelta(t, 14.00, cands[0].Risk.StakeUSD, 0.001)
	require.InDelta(t, 11.20, cands[1].Risk.StakeUSD, 0.001) // 14 * 0.8
	require.InDelta(t, 14.00, cands[2].Risk.StakeUSD, 0.001)

	// a held NO position can lose at most the stake
	for i := range cands {
		require.InDelta(t, cands[i].Risk.StakeUSD, cands[i].Risk.MaxLossUSD, 0.001, "cand %d", i)
	}
}

func TestBuildRecommendationNotesHeavyReduction(t *testing.T) {
	t.Parallel()

	c := cand("New York")
	require.Empty(t, c.Risk.Notes)

	// 0.8 * 0.4 = 0.32, below the half-size line
	c.Model.Uncertainty = types.UncertaintyMed
	c.Model.KnifeEdge = types.KnifeHigh
	rec := BuildRecommendation(&c)
	require.NotEmpty(t, rec.Notes)
	require.Contains(t, rec.Notes[0], "heavily reduced stake")
}

func TestAllocateStakesSkipsExcluded(t *testing.T) {
	t.Parallel()

	cfg := riskCfg()
	cands := []types.UnifiedCandidate{
		cand("Austin"), cand("San Antonio"), cand("Houston"), cand("Denver"),
	}
	EnforceCaps(cands, cfg)
	AllocateStakes(cands, cfg)

	// Houston is capped out: no stake, and the split is across three
	require.True(t, cands[2].Risk.CapExcluded)
	require.Equal(t, 0.0, cands[2].Risk.StakeUSD)
	require.InDelta(t, 14.00, cands[0].Risk.StakeUSD, 0.001)
	require.InDelta(t, 14.00, cands[3].Risk.StakeUSD, 0.001)
}
