package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"kalshi-weather/internal/config"
	"kalshi-weather/internal/stations"
	"kalshi-weather/internal/weather"
	"kalshi-weather/pkg/types"
)

func testModeler(now time.Time) *Modeler {
	m := New(config.Default().Model, nil)
	m.now = func() time.Time { return now }
	return m
}

func celsius(v float64) *float64 { return &v }

func nyCandidate(bracket string) types.RawCandidate {
	return types.RawCandidate{
		MarketTicker: "KXHIGHNY-25AUG26-B88.5",
		MarketType:   types.HighTemp,
		City:         "New York",
		Station:      "KNYC",
		TargetDate:   "2026-08-25",
		BracketText:  bracket,
	}
}

func TestParseBracket(t *testing.T) {
	t.Parallel()

	require.Equal(t, Bracket{Kind: BracketAtOrAbove, Low: 88}, ParseBracket("88° or above"))
	require.Equal(t, Bracket{Kind: BracketAtOrAbove, Low: 88}, ParseBracket("88F or above"))
	require.Equal(t, Bracket{Kind: BracketAtOrBelow, High: 70}, ParseBracket("70° or below"))
	require.Equal(t, Bracket{Kind: BracketBetween, Low: 84, High: 85}, ParseBracket("84° to 85°"))
	require.Equal(t, Bracket{Kind: BracketBetween, Low: 84, High: 85}, ParseBracket("84-85"))
	require.Equal(t, Bracket{Kind: BracketBetween, Low: -5, High: -3}, ParseBracket("-5 to -3"))
	require.Equal(t, Bracket{Kind: BracketBetween, Low: 90, High: 90}, ParseBracket("90"))
	require.Equal(t, Bracket{Kind: BracketUnknown}, ParseBracket("scorcher"))
}

func TestBracketProb(t *testing.T) {
	t.Parallel()

	// mu sitting exactly on an "or above" threshold: the half-degree
	// correction makes YES slightly favored.
	p := BracketProb(Bracket{Kind: BracketAtOrAbove, Low: 88}, 88, 3)
	require.InDelta(t, 0.566, p, 0.005)

	// far below the threshold: floored at 0.001
	p = BracketProb(Bracket{Kind: BracketAtOrAbove, Low: 88}, 60, 3)
	require.Equal(t, 0.001, p)

	// complementary brackets partition probability mass
	above := BracketProb(Bracket{Kind: BracketAtOrAbove, Low: 86}, 84, 3)
	below := BracketProb(Bracket{Kind: BracketAtOrBelow, High: 85}, 84, 3)
	require.InDelta(t, 1.0, above+below, 0.001)

	// a between-bracket wide enough to swallow the whole distribution still
	// caps at 0.999
	p = BracketProb(Bracket{Kind: BracketBetween, Low: 0, High: 200}, 75, 3)
	require.Equal(t, 0.999, p)

	// unparseable bracket prices as a coin flip
	require.Equal(t, 0.5, BracketProb(Bracket{Kind: BracketUnknown}, 84, 3))
}

func TestBoundaryDistance(t *testing.T) {
	t.Parallel()

	require.Equal(t, 4.0, BoundaryDistance(Bracket{Kind: BracketAtOrAbove, Low: 88}, 84))
	require.Equal(t, 1.0, BoundaryDistance(Bracket{Kind: BracketBetween, Low: 84, High: 85}, 86))
	require.Equal(t, 0.0, BoundaryDistance(Bracket{Kind: BracketBetween, Low: 84, High: 85}, 85))
}

func TestPNewExtreme(t *testing.T) {
	t.Parallel()

	require.Equal(t, 0.0, PNewExtreme(3, 0))
	require.Equal(t, 0.0, PNewExtreme(3, -1))
	require.InDelta(t, 0.15, PNewExtreme(0, 6), 0.001)
	require.InDelta(t, 0.15, PNewExtreme(-2, 8), 0.001)
	require.InDelta(t, 0.85, PNewExtreme(5, 6), 0.001)
	require.InDelta(t, 0.85, PNewExtreme(9, 12), 0.001)
	// linear middle, halved by the time factor
	require.InDelta(t, 0.25, PNewExtreme(2.5, 3), 0.001)
}

func TestVolWindowEndHigh(t *testing.T) {
	t.Parallel()

	st, ok := stations.ByICAO("KDEN")
	require.True(t, ok)

	end, err := VolWindowEnd(types.HighTemp, st, "2026-08-25")
	require.NoError(t, err)
	// 15:00 MDT peak + 2h pad = 17:00 local = 23:00 UTC in August
	require.Equal(t, time.Date(2026, 8, 25, 23, 0, 0, 0, time.UTC), end.UTC())
}

func TestVolWindowEndLowTracksSunrise(t *testing.T) {
	t.Parallel()

	st, ok := stations.ByICAO("KNYC")
	require.True(t, ok)

	end, err := VolWindowEnd(types.LowTemp, st, "2026-08-25")
	require.NoError(t, err)

	loc, _ := time.LoadLocation(st.TZ)
	local := end.In(loc)
	// late-August sunrise in New York is near 06:15, so the window closes
	// mid-morning
	require.Equal(t, 25, local.Day())
	require.GreaterOrEqual(t, local.Hour(), 7)
	require.LessOrEqual(t, local.Hour(), 10)
}

func TestBuildHighTempCandidate(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 25, 13, 30, 0, 0, time.UTC)
	m := testModeler(now)

	forecast := []weather.ForecastHour{
		{Time: now, TempF: 78},
		{Time: now.Add(2 * time.Hour), TempF: 84},
		{Time: now.Add(4 * time.Hour), TempF: 82},
	}
	obs := &weather.Observation{TempC: celsius(25.6), Timestamp: now} // 78.1F

	out := m.Build(nyCandidate("88° or above"), forecast, obs)

	require.NotNil(t, out.Mu)
	require.Equal(t, 84.0, *out.Mu)
	require.Equal(t, 84.0, *out.ForecastPeakF)
	// window ends 17:00 ET = 21:00 UTC, 7.5h out
	require.InDelta(t, 7.5, out.HoursToWindowEnd, 0.01)
	require.Equal(t, 3.0, out.Sigma)
	// threshold 4 degrees above mu: unlikely but not floored
	require.Greater(t, out.PBracket, 0.001)
	require.Less(t, out.PBracket, 0.2)
	require.Equal(t, types.KnifeLow, out.KnifeEdge)
	require.Equal(t, types.NotLocked, out.LockIn)
	// plenty of volatility window left
	require.Equal(t, types.UncertaintyMed, out.Uncertainty)
	require.Greater(t, out.PNewExtreme, 0.0)
}

func TestBuildKnifeEdge(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 25, 13, 30, 0, 0, time.UTC)
	m := testModeler(now)
	forecast := []weather.ForecastHour{{Time: now, TempF: 88}}

	out := m.Build(nyCandidate("88° or above"), forecast, nil)
	require.Equal(t, types.KnifeHigh, out.KnifeEdge)
	require.Equal(t, types.UncertaintyHigh, out.Uncertainty)
}

func TestBuildLockIn(t *testing.T) {
	t.Parallel()

	// 23:30 UTC = 19:30 ET, well past the 17:00 window end plus buffer
	now := time.Date(2026, 8, 26, 0, 30, 0, 0, time.UTC)
	m := testModeler(now)

	forecast := []weather.ForecastHour{{Time: now.Add(-8 * time.Hour), TempF: 84}}
	obs := &weather.Observation{TempC: celsius(28.9), Timestamp: now} // 84F

	out := m.Build(nyCandidate("88° or above"), forecast, obs)
	require.Equal(t, 0.0, out.HoursToWindowEnd)
	require.Equal(t, 0.0, out.PNewExtreme)
	require.Equal(t, types.Locking, out.LockIn)
}

func TestBuildUnparseableBracket(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 25, 13, 30, 0, 0, time.UTC)
	m := testModeler(now)
	forecast := []weather.ForecastHour{{Time: now, TempF: 84}}

	out := m.Build(nyCandidate("scorcher"), forecast, nil)
	require.Equal(t, 0.5, out.PBracket)
	require.Equal(t, types.KnifeHigh, out.KnifeEdge)
	require.NotEmpty(t, out.Notes)
}

func TestBuildNoForecastNoObs(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 25, 13, 30, 0, 0, time.UTC)
	m := testModeler(now)

	out := m.Build(nyCandidate("88° or above"), nil, nil)
	require.Nil(t, out.Mu)
	require.Equal(t, 0.5, out.PBracket)
	require.Equal(t, types.UncertaintyHigh, out.Uncertainty)
}

func TestBuildLowTempUsesTrough(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 15, 8, 0, 0, 0, time.UTC)
	m := testModeler(now)

	cand := types.RawCandidate{
		MarketTicker: "KXLOWMIN-15JAN26-B5.5",
		MarketType:   types.LowTemp,
		Station:      "KMSP",
		TargetDate:   "2026-01-15",
		BracketText:  "5° or below",
	}
	forecast := []weather.ForecastHour{
		{Time: now, TempF: 12},
		{Time: now.Add(2 * time.Hour), TempF: 4},
		{Time: now.Add(6 * time.Hour), TempF: 18},
	}
	out := m.Build(cand, forecast, nil)
	require.Equal(t, 4.0, *out.Mu)
	// mu one degree inside the bracket
	require.Greater(t, out.PBracket, 0.5)
}
