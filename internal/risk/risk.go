// Package risk sizes positions and enforces concentration limits. Weather is
// regional: one stalled front can settle half the slate the same way, so
// picks are capped per correlation group and per metro cluster before any
// bankroll is allocated.
package risk

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"kalshi-weather/internal/config"
	"kalshi-weather/pkg/types"
)

const multiplierFloor = 0.1

type membership struct {
	name    string
	members []string
}

// correlationGroups are the weather regions whose daily extremes move
// together. Order matters: the first match wins.
var correlationGroups = []membership{
	{"Northeast", []string{"New York", "LaGuardia", "Boston"}},
	{"Mid-Atlantic", []string{"Philadelphia", "Washington"}},
	{"Southeast", []string{"Atlanta", "Charlotte", "Nashville", "Jacksonville", "Tampa", "Miami"}},
	{"Great Lakes", []string{"Chicago", "Detroit", "Minneapolis"}},
	{"South Central", []string{"Dallas", "Houston", "Austin", "San Antonio", "Oklahoma City", "New Orleans"}},
	{"Mountain", []string{"Denver", "Phoenix", "Las Vegas"}},
	{"Pacific", []string{"Seattle", "San Francisco", "Los Angeles"}},
}

// metroClusters are station sets close enough to share settlement weather
// almost exactly. Tighter clusters come first so Dallas lands in DFW Metro,
// not the broader Texas Triangle.
var metroClusters = []membership{
	{"NYC Metro", []string{"New York", "LaGuardia"}},
	{"Chicago Metro", []string{"Chicago"}},
	{"DFW Metro", []string{"Dallas"}},
	{"South Florida", []string{"Miami"}},
	{"Texas Triangle", []string{"Austin", "San Antonio", "Houston"}},
	{"SoCal", []string{"Los Angeles"}},
	{"NorCal", []string{"San Francisco"}},
}

// matches reports whether a city belongs to a membership entry: exact after
// normalization, or substring with at least 4 characters on both sides.
func matches(city, member string) bool {
	c := strings.ToLower(strings.TrimSpace(city))
	m := strings.ToLower(member)
	if c == m {
		return true
	}
	if len(c) >= 4 && len(m) >= 4 {
		return strings.Contains(c, m) || strings.Contains(m, c)
	}
	return false
}

// GroupFor returns the correlation group for a city, or "Other".
func GroupFor(city string) string {
	for _, g := range correlationGroups {
		for _, m := range g.members {
			if matches(city, m) {
				return g.name
			}
		}
	}
	return "Other"
}

// MetroFor returns the metro cluster for a city, or "Standalone".
func MetroFor(city string) string {
	for _, cl := range metroClusters {
		for _, m := range cl.members {
			if matches(city, m) {
				return cl.name
			}
		}
	}
	return "Standalone"
}

// Flags collects the risk flags for one enriched candidate.
func Flags(c *types.UnifiedCandidate) []string {
	var flags []string
	if c.Model != nil {
		if c.Model.Uncertainty == types.UncertaintyHigh {
			flags = append(flags, "HIGH_UNCERTAINTY")
		}
		switch c.Model.KnifeEdge {
		case types.KnifeHigh:
			flags = append(flags, "KNIFE_EDGE_HIGH")
		case types.KnifeMed:
			flags = append(flags, "KNIFE_EDGE_MED")
		}
		if c.Model.LockIn == types.Locking {
			if c.MarketType == types.LowTemp {
				flags = append(flags, "LOW_TEMP_LOCKING")
			} else {
				flags = append(flags, "HIGH_TEMP_LOCKING")
			}
		}
		if c.Model.HoursToWindowEnd > 8 {
			flags = append(flags, "LONG_VOL_WINDOW")
		} else if c.Model.HoursToWindowEnd > 0 && c.Model.HoursToWindowEnd <= 1 {
			flags = append(flags, "VOL_WINDOW_CLOSING")
		}
	}
	if c.Plan != nil {
		if c.Plan.Liquidity == types.LiquidityThin {
			flags = append(flags, "THIN_LIQUIDITY")
		}
		if c.Plan.Spread == types.SpreadWideException {
			flags = append(flags, "WIDE_SPREAD")
		}
	}
	if c.Accounting != nil {
		if c.Accounting.EVNetCents < 0 {
			flags = append(flags, "NEGATIVE_EV")
		}
		if c.Accounting.EdgePct < 1.0 {
			flags = append(flags, "MINIMAL_EDGE")
		}
	}
	return flags
}

// Multiplier compounds the sizing discounts a candidate's risks earn,
// floored at 0.1 so a pick that survived bucketing never rounds to nothing.
func Multiplier(c *types.UnifiedCandidate) float64 {
	mult := 1.0
	if c.Model != nil {
		switch c.Model.Uncertainty {
		case types.UncertaintyHigh:
			mult *= 0.5
		case types.UncertaintyMed:
			mult *= 0.8
		}
		switch c.Model.KnifeEdge {
		case types.KnifeHigh:
			mult *= 0.4
		case types.KnifeMed:
			mult *= 0.7
		}
		if c.Model.HoursToWindowEnd > 8 {
			mult *= 0.8
		}
	}
	if c.Plan != nil && c.Plan.Liquidity == types.LiquidityThin {
		mult *= 0.6
	}
	if mult < multiplierFloor {
		mult = multiplierFloor
	}
	return mult
}

// BuildRecommendation fills the per-candidate risk record. Stakes are
// allocated later, once the slate knows how many picks share the bankroll.
func BuildRecommendation(c *types.UnifiedCandidate) *types.RiskRecommendation {
	rec := &types.RiskRecommendation{
		CorrelationGroup: GroupFor(c.City),
		MetroCluster:     MetroFor(c.City),
		Multiplier:       Multiplier(c),
		Flags:            Flags(c),
	}
	if rec.Multiplier <= 0.5 {
		rec.Notes = append(rec.Notes, fmt.Sprintf("heavily reduced stake (multiplier %.2f)", rec.Multiplier))
	}
	return rec
}

// EnforceCaps walks candidates in rank order and marks the overflow of each
// correlation group and metro cluster as excluded. Excluded picks stay on
// the slate for visibility but receive no stake.
func EnforceCaps(cands []types.UnifiedCandidate, cfg config.RiskConfig) {
	groupCount := map[string]int{}
	metroCount := map[string]int{}
	for i := range cands {
		rec := cands[i].Risk
		if rec == nil {
			continue
		}
		if groupCount[rec.CorrelationGroup] >= cfg.MaxPerCorrelationGroup {
			rec.CapExcluded = true
			rec.CapReason = fmt.Sprintf("correlation group %s at cap %d",
				rec.CorrelationGroup, cfg.MaxPerCorrelationGroup)
			continue
		}
		if rec.MetroCluster != "Standalone" && metroCount[rec.MetroCluster] >= cfg.MaxPerMetroCluster {
			rec.CapExcluded = true
			rec.CapReason = fmt.Sprintf("metro cluster %s at cap %d",
				rec.MetroCluster, cfg.MaxPerMetroCluster)
			continue
		}
		groupCount[rec.CorrelationGroup]++
		metroCount[rec.MetroCluster]++
	}
}

// AllocateStakes splits the bankroll equally across the capped-in picks,
// scales each share by its risk multiplier, and clamps to [0.01, bankroll].
// Decimal arithmetic keeps the cent rounding exact.
func AllocateStakes(cands []types.UnifiedCandidate, cfg config.RiskConfig) {
	var included []*types.RiskRecommendation
	for i := range cands {
		if rec := cands[i].Risk; rec != nil && !rec.CapExcluded {
			included = append(included, rec)
		}
	}
	if len(included) == 0 {
		return
	}

	bankroll := decimal.NewFromFloat(cfg.BankrollUSD)
	share := bankroll.Div(decimal.NewFromInt(int64(len(included))))
	minStake := decimal.NewFromFloat(0.01)

	for _, rec := range included {
		stake := share.Mul(decimal.NewFromFloat(rec.Multiplier)).Round(2)
		if stake.LessThan(minStake) {
			stake = minStake
		}
		if stake.GreaterThan(bankroll) {
			stake = bankroll
		}
		rec.StakeUSD, _ = stake.Float64()
		// buying NO at a limit can lose at most the stake
		rec.MaxLossUSD = rec.StakeUSD
	}
}
