package slate

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"kalshi-weather/pkg/types"
)

const (
	slatePrefix  = "DAILY_SLATE_"
	reportPrefix = "REPORT_"
	runTimeFmt   = "2006-01-02 15:04:05"
)

// RunTag turns a run time into the filename tag: colons dropped, the space
// becomes an underscore. Tags sort lexicographically in run order, which is
// what prior-run discovery relies on.
func RunTag(runTime string) string {
	return strings.ReplaceAll(strings.ReplaceAll(runTime, ":", ""), " ", "_")
}

// Build assembles the final slate record from bucketed candidates.
func Build(b Buckets, targetDate string, now time.Time, stats types.ScanStats, bankroll float64) *types.DailySlate {
	runTime := now.Format(runTimeFmt)
	return &types.DailySlate{
		TargetDate:  targetDate,
		RunTime:     runTime,
		RunTag:      RunTag(runTime),
		BankrollUSD: bankroll,
		Primary:     b.Primary,
		Tight:       b.Tight,
		NearMiss:    b.NearMiss,
		Rejected:    b.Rejected,
		Stats:       stats,
	}
}

// Write persists the slate JSON and its Markdown report under
// <dir>/<target_date>/, returning both paths.
func Write(s *types.DailySlate, dir string) (jsonPath, mdPath string, err error) {
	dayDir := filepath.Join(dir, s.TargetDate)
	if err := os.MkdirAll(dayDir, 0o755); err != nil {
		return "", "", fmt.Errorf("create slate dir: %w", err)
	}

	jsonPath = filepath.Join(dayDir, slatePrefix+s.RunTag+".json")
	raw, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return "", "", fmt.Errorf("encode slate: %w", err)
	}
	if err := os.WriteFile(jsonPath, raw, 0o644); err != nil {
		return "", "", fmt.Errorf("write slate: %w", err)
	}

	mdPath = filepath.Join(dayDir, reportPrefix+s.RunTag+".md")
	report, err := RenderReport(s)
	if err != nil {
		return "", "", fmt.Errorf("render report: %w", err)
	}
	if err := os.WriteFile(mdPath, []byte(report), 0o644); err != nil {
		return "", "", fmt.Errorf("write report: %w", err)
	}
	return jsonPath, mdPath, nil
}

// Load reads a slate JSON file back.
func Load(path string) (*types.DailySlate, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var s types.DailySlate
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("decode slate %s: %w", path, err)
	}
	return &s, nil
}

// FindPrior returns the latest persisted slate for the date whose tag sorts
// strictly before the given one, or nil when this is the day's first run.
func FindPrior(dir, targetDate, runTag string) (*types.DailySlate, error) {
	pattern := filepath.Join(dir, targetDate, slatePrefix+"*.json")
	paths, err := filepath.Glob(pattern)
	if err != nil {
		return nil, err
	}

	best := ""
	bestTag := ""
	for _, p := range paths {
		name := filepath.Base(p)
		tag := strings.TrimSuffix(strings.TrimPrefix(name, slatePrefix), ".json")
		if tag < runTag && tag > bestTag {
			best, bestTag = p, tag
		}
	}
	if best == "" {
		return nil, nil
	}
	prior, err := Load(best)
	if err != nil {
		return nil, fmt.Errorf("load prior slate: %w", err)
	}
	return prior, nil
}
