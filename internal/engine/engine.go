// Package engine drives the full morning-scan pipeline: discover candidates
// on the venue, enrich each one with weather, model, accounting, execution
// and risk records in parallel, then bucket, stabilize against the prior
// run, and persist the daily slate artifacts.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"kalshi-weather/internal/accounting"
	"kalshi-weather/internal/alert"
	"kalshi-weather/internal/config"
	"kalshi-weather/internal/model"
	"kalshi-weather/internal/planner"
	"kalshi-weather/internal/risk"
	"kalshi-weather/internal/slate"
	"kalshi-weather/internal/stations"
	"kalshi-weather/internal/weather"
	"kalshi-weather/pkg/types"
)

const enrichParallelism = 4

// CandidateSource discovers raw candidates. Implemented by market.Scanner.
type CandidateSource interface {
	Scan(ctx context.Context) ([]types.RawCandidate, types.ScanStats, error)
	TargetDate() string
}

// WeatherSource provides forecasts and observations. Implemented by
// weather.API.
type WeatherSource interface {
	LatestObservation(ctx context.Context, icao string) (*weather.Observation, error)
	HourlyForecast(ctx context.Context, lat, lon float64, start, end time.Time) ([]weather.ForecastHour, error)
}

// Engine owns one run of the scan pipeline.
type Engine struct {
	cfg     *config.Config
	scanner CandidateSource
	wx      WeatherSource
	modeler *model.Modeler
	mailer  alert.Mailer
	logger  *slog.Logger
	now     func() time.Time
}

// New wires the engine.
func New(cfg *config.Config, scanner CandidateSource, wx WeatherSource, modeler *model.Modeler, mailer alert.Mailer, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		cfg:     cfg,
		scanner: scanner,
		wx:      wx,
		modeler: modeler,
		mailer:  mailer,
		logger:  logger.With("component", "engine"),
		now:     time.Now,
	}
}

// Result reports where one run landed.
type Result struct {
	Slate      *types.DailySlate
	SlatePath  string
	ReportPath string
}

// Run executes the full scan pipeline once.
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	targetDate := e.scanner.TargetDate()
	e.logger.Info("scan starting", "target_date", targetDate)

	raws, stats, err := e.scanner.Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}
	e.logger.Info("scan complete",
		"candidates", len(raws),
		"markets_seen", stats.MarketsSeen,
		"in_window", stats.InWindow)

	unified := e.enrichAll(ctx, raws)

	now := e.now()
	runTag := slate.RunTag(now.Format("2006-01-02 15:04:05"))
	prior, err := slate.FindPrior(e.cfg.Output.Dir, targetDate, runTag)
	if err != nil {
		e.logger.Warn("prior slate unreadable, proceeding without", "error", err)
		prior = nil
	}

	stabilized := slate.Stabilize(unified, prior, e.cfg.Scan, e.cfg.Stability)
	buckets := slate.Assemble(stabilized, e.cfg.Scan, e.cfg.Risk)
	s := slate.Build(buckets, targetDate, now, stats, e.cfg.Risk.BankrollUSD)
	s.DeltaNotes = slate.ComputeDelta(prior, s, e.cfg.Stability)

	jsonPath, mdPath, err := slate.Write(s, e.cfg.Output.Dir)
	if err != nil {
		return nil, fmt.Errorf("write slate: %w", err)
	}
	e.logger.Info("slate written",
		"primary", len(s.Primary),
		"tight", len(s.Tight),
		"near_miss", len(s.NearMiss),
		"rejected", len(s.Rejected),
		"slate", jsonPath,
		"report", mdPath)

	e.emailReport(ctx, s, jsonPath, mdPath)

	return &Result{Slate: s, SlatePath: jsonPath, ReportPath: mdPath}, nil
}

// enrichAll runs the per-candidate enrichment chain concurrently, preserving
// input order. A candidate whose weather data cannot be fetched still gets a
// model built from whatever survived.
func (e *Engine) enrichAll(ctx context.Context, raws []types.RawCandidate) []types.UnifiedCandidate {
	out := make([]types.UnifiedCandidate, len(raws))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(enrichParallelism)
	for i, raw := range raws {
		i, raw := i, raw
		g.Go(func() error {
			out[i] = e.enrich(gctx, raw)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// enrich runs the chain for one candidate: weather, model, accounting,
// execution plan, risk.
func (e *Engine) enrich(ctx context.Context, raw types.RawCandidate) types.UnifiedCandidate {
	c := types.UnifiedCandidate{RawCandidate: raw}

	var (
		forecast []weather.ForecastHour
		obs      *weather.Observation
	)
	if st, ok := stations.ByICAO(raw.Station); ok {
		start, end, err := stations.CLIDayWindow(raw.TargetDate, st.TZ)
		if err == nil {
			forecast, err = e.wx.HourlyForecast(ctx, st.Lat, st.Lon, start, end)
			if err != nil {
				e.logger.Warn("hourly forecast failed", "market", raw.MarketTicker, "error", err)
			}
		}
		obs, err = e.wx.LatestObservation(ctx, st.ICAO)
		if err != nil {
			e.logger.Warn("latest observation failed", "market", raw.MarketTicker, "error", err)
		}
	}

	// The plan comes first: accounting prices EV at its recommended limit.
	c.Model = e.modeler.Build(raw, forecast, obs)
	c.Plan = planner.Build(raw.Book, c.Model, e.cfg.Risk)
	c.Accounting = accounting.Build(raw.Book, c.Model, c.Plan.LimitPriceCents, e.cfg.Fees)
	c.Risk = risk.BuildRecommendation(&c)
	return c
}

// emailReport sends the Markdown report with the JSON slate attached.
// Delivery failures are logged, never returned.
func (e *Engine) emailReport(ctx context.Context, s *types.DailySlate, jsonPath, mdPath string) {
	report, err := os.ReadFile(mdPath)
	if err != nil {
		e.logger.Warn("report unreadable for email", "error", err)
		return
	}
	slateJSON, err := os.ReadFile(jsonPath)
	if err != nil {
		e.logger.Warn("slate unreadable for email", "error", err)
		return
	}

	msg := alert.Message{
		Subject:  fmt.Sprintf("Daily slate %s: %d primary picks", s.TargetDate, len(s.Primary)),
		TextBody: string(report),
		Attachments: []alert.Attachment{
			{Filename: filepath.Base(jsonPath), Content: slateJSON},
		},
	}
	if err := e.mailer.Send(ctx, msg); err != nil {
		e.logger.Warn("report email failed", "error", err)
	}
}
