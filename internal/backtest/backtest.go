// Package backtest replays persisted daily slates and aggregates simple
// performance statistics: picks per bucket, stake totals, city frequency,
// and the mean net EV of primary picks.
package backtest

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	"kalshi-weather/internal/slate"
	"kalshi-weather/pkg/types"
)

// DayResult summarizes one backtested day.
type DayResult struct {
	Date       string
	RunTag     string
	Primary    int
	Tight      int
	NearMiss   int
	Rejected   int
	TotalPicks int
	StakeUSD   float64
}

// Summary aggregates results across days.
type Summary struct {
	DaysTested    int
	TotalPrimary  int
	TotalTight    int
	TotalNearMiss int
	TotalRejected int
	AvgPrimary    float64 // primary picks per day
	AvgPrimaryEV  float64 // mean net EV cents across all primary picks
	CityCounts    map[string]int
	Days          []DayResult
}

// LatestSlatePerDay walks <dir>/<date>/DAILY_SLATE_*.json and returns one
// path per date, the run with the lexically greatest tag, in date order.
func LatestSlatePerDay(dir string) ([]string, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*", "DAILY_SLATE_*.json"))
	if err != nil {
		return nil, err
	}

	latest := map[string]string{}
	for _, p := range paths {
		date := filepath.Base(filepath.Dir(p))
		if cur, ok := latest[date]; !ok || filepath.Base(p) > filepath.Base(cur) {
			latest[date] = p
		}
	}

	dates := make([]string, 0, len(latest))
	for d := range latest {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	out := make([]string, 0, len(dates))
	for _, d := range dates {
		out = append(out, latest[d])
	}
	return out, nil
}

// Run loads the latest slate for every date under dir and aggregates. A
// slate that fails to load is logged and skipped.
func Run(dir string, logger *slog.Logger) (*Summary, error) {
	if logger == nil {
		logger = slog.Default()
	}

	paths, err := LatestSlatePerDay(dir)
	if err != nil {
		return nil, fmt.Errorf("list slates: %w", err)
	}

	sum := &Summary{CityCounts: map[string]int{}}
	var evTotal float64
	var evCount int

	for _, p := range paths {
		s, err := slate.Load(p)
		if err != nil {
			logger.Warn("skipping unreadable slate", "path", p, "error", err)
			continue
		}

		day := analyzeSlate(s)
		sum.Days = append(sum.Days, day)
		sum.DaysTested++
		sum.TotalPrimary += day.Primary
		sum.TotalTight += day.Tight
		sum.TotalNearMiss += day.NearMiss
		sum.TotalRejected += day.Rejected

		for _, c := range s.Primary {
			sum.CityCounts[c.City]++
			if c.Accounting != nil {
				evTotal += c.Accounting.EVNetCents
				evCount++
			}
		}
	}

	if sum.DaysTested > 0 {
		sum.AvgPrimary = float64(sum.TotalPrimary) / float64(sum.DaysTested)
	}
	if evCount > 0 {
		sum.AvgPrimaryEV = evTotal / float64(evCount)
	}
	return sum, nil
}

func analyzeSlate(s *types.DailySlate) DayResult {
	day := DayResult{
		Date:     s.TargetDate,
		RunTag:   s.RunTag,
		Primary:  len(s.Primary),
		Tight:    len(s.Tight),
		NearMiss: len(s.NearMiss),
		Rejected: len(s.Rejected),
	}
	day.TotalPicks = day.Primary + day.Tight + day.NearMiss + day.Rejected

	for _, c := range append(append([]types.UnifiedCandidate{}, s.Primary...), s.Tight...) {
		if c.Risk != nil && !c.Risk.CapExcluded {
			day.StakeUSD += c.Risk.StakeUSD
		}
	}
	return day
}

// Format renders the summary as a plain text table.
func Format(sum *Summary) string {
	var sb strings.Builder
	sb.WriteString("=== SLATE BACKTEST ===\n\n")
	fmt.Fprintf(&sb, "%-12s | %-17s | %7s | %5s | %9s | %8s | %9s\n",
		"Date", "Run", "Primary", "Tight", "Near miss", "Rejected", "Stake USD")
	sep := strings.Repeat("-", 84)
	sb.WriteString(sep + "\n")

	for _, d := range sum.Days {
		fmt.Fprintf(&sb, "%-12s | %-17s | %7d | %5d | %9d | %8d | %9.2f\n",
			d.Date, d.RunTag, d.Primary, d.Tight, d.NearMiss, d.Rejected, d.StakeUSD)
	}
	sb.WriteString(sep + "\n")

	fmt.Fprintf(&sb, "Days: %d | Primary: %d (%.1f/day) | Mean primary EV: %.1fc\n",
		sum.DaysTested, sum.TotalPrimary, sum.AvgPrimary, sum.AvgPrimaryEV)

	if len(sum.CityCounts) > 0 {
		cities := make([]string, 0, len(sum.CityCounts))
		for c := range sum.CityCounts {
			cities = append(cities, c)
		}
		sort.Slice(cities, func(i, j int) bool {
			if sum.CityCounts[cities[i]] != sum.CityCounts[cities[j]] {
				return sum.CityCounts[cities[i]] > sum.CityCounts[cities[j]]
			}
			return cities[i] < cities[j]
		})
		sb.WriteString("Primary picks by city:")
		for _, c := range cities {
			fmt.Fprintf(&sb, " %s=%d", c, sum.CityCounts[c])
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
