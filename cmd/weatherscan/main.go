// Kalshi Weather Scanner — a read-only analysis pipeline for Kalshi daily
// temperature markets.
//
// Architecture:
//
//	main.go                — CLI entry point: cobra subcommands, config, logging, signals
//	engine/engine.go       — orchestrator: scan → parallel enrichment → stabilize → slate artifacts
//	market/scanner.go      — walks temperature series, keeps markets in the NO-ask scan window
//	kalshi/client.go       — signed read-only REST client (RSA-PSS, GET allowlist, pagination)
//	weather/api.go         — api.weather.gov observations and hourly forecasts
//	weather/scraper.go     — tgftp METAR, current-conditions, obs-history, preliminary CLI
//	metar/metar.go         — METAR remark parsing and the settlement rounding arithmetic
//	model/model.go         — bracket probability, volatility window, lock-in, knife edge
//	accounting/            — fees, net EV, max-buy, edge vs implied
//	planner/               — liquidity/spread verdicts and manual execution plans
//	risk/                  — correlation caps, metro caps, multipliers, stake allocation
//	slate/                 — bucketing, ranking, stability damping, JSON + Markdown artifacts
//	edge/                  — multi-source NWS temperature edge analyzer
//	spike/                 — intraday price spike monitor with burst email alerts
//	backtest/              — aggregates persisted slates into summary statistics
//
// The scanner never places orders: the venue client signs GET requests only
// and refuses any path outside its read allowlist.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"kalshi-weather/internal/alert"
	"kalshi-weather/internal/backtest"
	"kalshi-weather/internal/config"
	"kalshi-weather/internal/edge"
	"kalshi-weather/internal/engine"
	"kalshi-weather/internal/kalshi"
	"kalshi-weather/internal/market"
	"kalshi-weather/internal/model"
	"kalshi-weather/internal/spike"
	"kalshi-weather/internal/weather"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type app struct {
	cfgPath   string
	logLevel  string
	logFormat string

	cfg    *config.Config
	logger *slog.Logger
}

// setup loads config and builds the logger. Called by every subcommand.
func (a *app) setup(requireCreds bool) error {
	cfg, err := config.Load(a.cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}
	if a.logFormat != "" {
		cfg.Logging.Format = a.logFormat
	}
	if requireCreds {
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}
	}

	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Logging.Level)}
	var handler slog.Handler
	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	a.cfg = cfg
	a.logger = slog.New(handler)
	slog.SetDefault(a.logger)
	return nil
}

// signalContext cancels on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:          "weatherscan",
		Short:        "Read-only analysis for Kalshi daily temperature markets",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&a.cfgPath, "config", "configs/config.yaml", "path to config file")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "override log level (debug|info|warn|error)")
	root.PersistentFlags().StringVar(&a.logFormat, "log-format", "", "override log format (text|json)")

	root.AddCommand(newScanCmd(a), newEdgeCmd(a), newSpikeCmd(a), newBacktestCmd(a))
	return root
}

func newScanCmd(a *app) *cobra.Command {
	var targetDate string

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Run the morning scan and write the daily slate",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.setup(true); err != nil {
				return err
			}
			if targetDate != "" {
				a.cfg.Scan.TargetDate = targetDate
			}

			ctx, stop := signalContext()
			defer stop()

			client, err := kalshi.New(a.cfg.Kalshi, a.logger)
			if err != nil {
				return fmt.Errorf("kalshi client: %w", err)
			}
			scanner := market.NewScanner(client, a.cfg.Scan, a.logger)
			wx := weather.NewAPI(a.cfg.Weather, a.logger)
			modeler := model.New(a.cfg.Model, a.logger)
			mailer := alert.New(a.cfg.Email, a.logger)

			res, err := engine.New(a.cfg, scanner, wx, modeler, mailer, a.logger).Run(ctx)
			if err != nil {
				return err
			}
			fmt.Println(res.ReportPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&targetDate, "date", "", "target date YYYY-MM-DD (default: today ET)")
	return cmd
}

func newEdgeCmd(a *app) *cobra.Command {
	var (
		all      bool
		watch    bool
		interval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "edge [city]",
		Short: "Analyze NWS temperature sources for a rounding edge",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.setup(false); err != nil {
				return err
			}
			if len(args) == 0 && !all && !watch {
				return fmt.Errorf("name a city, or pass --all")
			}

			ctx, stop := signalContext()
			defer stop()

			scraper := weather.NewScraper(a.cfg.Weather, a.logger)
			analyzer := edge.New(scraper, a.logger)

			if watch {
				err := analyzer.Watch(ctx, interval, func(s string) { fmt.Println(s) })
				if errors.Is(err, context.Canceled) {
					return nil
				}
				return err
			}
			if all {
				fmt.Println(edge.FormatSummary(analyzer.AnalyzeAll(ctx)))
				return nil
			}

			rep, err := analyzer.AnalyzeCity(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Println(edge.FormatReport(rep))
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "analyze every registry city")
	cmd.Flags().BoolVar(&watch, "watch", false, "repeat the full-registry summary on an interval")
	cmd.Flags().DurationVar(&interval, "interval", 10*time.Minute, "watch interval")
	return cmd
}

func newSpikeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "spike",
		Short: "Monitor intraday prices for spikes and email burst alerts",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.setup(true); err != nil {
				return err
			}

			ctx, stop := signalContext()
			defer stop()

			client, err := kalshi.New(a.cfg.Kalshi, a.logger)
			if err != nil {
				return fmt.Errorf("kalshi client: %w", err)
			}
			scraper := weather.NewScraper(a.cfg.Weather, a.logger)
			analyzer := edge.New(scraper, a.logger)
			mailer := alert.New(a.cfg.Email, a.logger)

			monitor := spike.NewMonitor(client, analyzer, mailer, a.cfg.Spike, a.logger)
			err = monitor.Run(ctx)
			if errors.Is(err, context.Canceled) {
				a.logger.Info("spike monitor stopped")
				return nil
			}
			return err
		},
	}
}

func newBacktestCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "backtest",
		Short: "Aggregate persisted slates into summary statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.setup(false); err != nil {
				return err
			}
			sum, err := backtest.Run(a.cfg.Output.Dir, a.logger)
			if err != nil {
				return err
			}
			fmt.Print(backtest.Format(sum))
			return nil
		},
	}
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
