package backtest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kalshi-weather/internal/slate"
	"kalshi-weather/pkg/types"
)

func writeSlate(t *testing.T, dir, date string, hour int, primary []types.UnifiedCandidate) {
	t.Helper()
	now := time.Date(2026, 8, 25, hour, 0, 0, 0, time.UTC)
	s := slate.Build(slate.Buckets{Primary: primary}, date, now, types.ScanStats{}, 42)
	_, _, err := slate.Write(s, dir)
	require.NoError(t, err)
}

func pick(ticker, city string, ev, stake float64) types.UnifiedCandidate {
	return types.UnifiedCandidate{
		RawCandidate: types.RawCandidate{MarketTicker: ticker, City: city},
		Accounting:   &types.Accounting{EVNetCents: ev},
		Risk:         &types.RiskRecommendation{StakeUSD: stake},
	}
}

func TestLatestSlatePerDay(t *testing.T) {
	dir := t.TempDir()
	writeSlate(t, dir, "2026-08-24", 7, nil)
	writeSlate(t, dir, "2026-08-24", 12, nil)
	writeSlate(t, dir, "2026-08-25", 7, nil)

	paths, err := LatestSlatePerDay(dir)
	require.NoError(t, err)
	require.Len(t, paths, 2)
	assert.Contains(t, paths[0], "2026-08-24")
	assert.Contains(t, paths[0], "120000")
	assert.Contains(t, paths[1], "2026-08-25")
}

func TestRunAggregates(t *testing.T) {
	dir := t.TempDir()
	writeSlate(t, dir, "2026-08-24", 7, []types.UnifiedCandidate{
		pick("A", "Chicago", 6, 10),
		pick("B", "Denver", 4, 8),
	})
	writeSlate(t, dir, "2026-08-25", 7, []types.UnifiedCandidate{
		pick("C", "Chicago", 2, 12),
	})

	sum, err := Run(dir, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.DaysTested)
	assert.Equal(t, 3, sum.TotalPrimary)
	assert.InDelta(t, 1.5, sum.AvgPrimary, 1e-9)
	assert.InDelta(t, 4.0, sum.AvgPrimaryEV, 1e-9) // (6+4+2)/3
	assert.Equal(t, 2, sum.CityCounts["Chicago"])
	assert.Equal(t, 1, sum.CityCounts["Denver"])

	require.Len(t, sum.Days, 2)
	assert.InDelta(t, 18.0, sum.Days[0].StakeUSD, 1e-9)

	out := Format(sum)
	assert.Contains(t, out, "2026-08-24")
	assert.Contains(t, out, "Mean primary EV: 4.0c")
	assert.Contains(t, out, "Chicago=2")
}

func TestRunEmptyDir(t *testing.T) {
	sum, err := Run(t.TempDir(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, sum.DaysTested)
	assert.Zero(t, sum.AvgPrimary)
}
