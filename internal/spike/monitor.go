package spike

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"kalshi-weather/internal/alert"
	"kalshi-weather/internal/config"
	"kalshi-weather/internal/edge"
	"kalshi-weather/internal/kalshi"
	"kalshi-weather/internal/market"
	"kalshi-weather/pkg/types"
)

const offHoursSleep = 60 * time.Second

// Venue is the slice of the Kalshi client the monitor needs.
type Venue interface {
	ListAllEvents(ctx context.Context, seriesTicker, status string, withNestedMarkets bool) ([]kalshi.Event, error)
	GetOrderbook(ctx context.Context, marketTicker string, depth int) (*kalshi.Orderbook, error)
}

// tickerMeta remembers where a tracked ticker came from.
type tickerMeta struct {
	city        string
	bracket     string
	eventTicker string
}

// Monitor runs the spike detection state machine.
type Monitor struct {
	venue    Venue
	analyzer *edge.Analyzer
	mailer   alert.Mailer
	cfg      config.SpikeConfig
	logger   *slog.Logger

	history   *History
	cooldowns map[string]time.Time
	meta      map[string]tickerMeta

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewMonitor wires the monitor. The history retains two extra poll cycles
// past the detection window so the oldest-in-window snapshot always exists.
func NewMonitor(venue Venue, analyzer *edge.Analyzer, mailer alert.Mailer, cfg config.SpikeConfig, logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{
		venue:     venue,
		analyzer:  analyzer,
		mailer:    mailer,
		cfg:       cfg,
		logger:    logger.With("component", "spike"),
		history:   NewHistory(cfg.Window + 120*time.Second),
		cooldowns: map[string]time.Time{},
		meta:      map[string]tickerMeta{},
		now:       time.Now,
		sleep:     sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// InOperatingWindow reports whether the Eastern-time hour is inside the
// configured [start, end) range.
func InOperatingWindow(nowET time.Time, cfg config.SpikeConfig) bool {
	return nowET.Hour() >= cfg.StartHour && nowET.Hour() < cfg.EndHour
}

// trackedCity matches an event's city against the configured allowlist.
func (m *Monitor) trackedCity(city string) bool {
	if len(m.cfg.Cities) == 0 {
		return true
	}
	for _, want := range m.cfg.Cities {
		if strings.EqualFold(strings.TrimSpace(city), strings.TrimSpace(want)) {
			return true
		}
	}
	return false
}

// Run loops until the context is canceled. Errors inside one iteration are
// logged and the loop continues after a poll interval, so a transient venue
// or NWS outage never kills the process.
func (m *Monitor) Run(ctx context.Context) error {
	m.logger.Info("spike monitor starting",
		"threshold_cents", m.cfg.ThresholdCents,
		"window", m.cfg.Window,
		"poll_interval", m.cfg.PollInterval)

	et, err := time.LoadLocation("America/New_York")
	if err != nil {
		return fmt.Errorf("load eastern zone: %w", err)
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		nowET := m.now().In(et)
		if !InOperatingWindow(nowET, m.cfg) {
			m.logger.Info("outside operating window, sleeping",
				"start_hour", m.cfg.StartHour, "end_hour", m.cfg.EndHour)
			if err := m.sleep(ctx, offHoursSleep); err != nil {
				return err
			}
			continue
		}

		spike, err := m.pollOnce(ctx, nowET)
		if err != nil {
			m.logger.Warn("poll failed", "error", err)
			if err := m.sleep(ctx, m.cfg.PollInterval); err != nil {
				return err
			}
			continue
		}

		if spike == nil {
			if err := m.sleep(ctx, m.cfg.PollInterval); err != nil {
				return err
			}
			continue
		}

		if err := m.runBurst(ctx, spike, et); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			m.logger.Warn("burst aborted", "ticker", spike.Ticker, "error", err)
		}
		m.logger.Info("burst complete, returning to monitoring", "ticker", spike.Ticker)
	}
}

// pollOnce records one round of prices and returns the largest spike, if any.
func (m *Monitor) pollOnce(ctx context.Context, nowET time.Time) (*Event, error) {
	now := m.now()
	today := nowET.Format("2006-01-02")

	events, err := m.venue.ListAllEvents(ctx, "", "open", true)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}

	for _, ev := range events {
		if market.ClassifySeries(ev.SeriesTicker) != types.HighTemp {
			continue
		}
		if date, ok := market.EventDate(ev.EventTicker); !ok || date != today {
			continue
		}
		city := market.ExtractCity(ev.Title)
		if !m.trackedCity(city) {
			continue
		}

		for _, mkt := range ev.Markets {
			if mkt.Ticker == "" {
				continue
			}
			m.history.Record(mkt.Ticker, mkt.YesBid, now)
			bracket := mkt.YesSubTitle
			if bracket == "" {
				bracket = mkt.Title
			}
			m.meta[mkt.Ticker] = tickerMeta{city: city, bracket: bracket, eventTicker: ev.EventTicker}
		}
	}

	m.history.Prune(now)
	return Detect(m.history, m.cfg, now, m.cooldowns), nil
}

// runBurst sends the configured number of alert emails, each with a fresh
// edge analysis and orderbook read, a minute apart.
func (m *Monitor) runBurst(ctx context.Context, spike *Event, et *time.Location) error {
	meta, ok := m.meta[spike.Ticker]
	if !ok {
		meta = tickerMeta{city: "Unknown", bracket: "Unknown"}
	}

	m.logger.Info("spike detected",
		"city", meta.city,
		"bracket", meta.bracket,
		"ticker", spike.Ticker,
		"old_price", spike.OldPrice,
		"new_price", spike.NewPrice,
		"delta", spike.Delta,
		"elapsed", spike.Elapsed)

	m.cooldowns[spike.Ticker] = m.now()

	var history []alert.ConvictionRow
	for i := 1; i <= m.cfg.BurstCount; i++ {
		timeLabel := m.now().In(et).Format("3:04 PM EST")

		a := m.collectBurstData(ctx, meta.city, spike)
		a.City = meta.city
		a.Bracket = meta.bracket
		a.EmailNumber = i
		a.EmailTotal = m.cfg.BurstCount
		a.TimeLabel = timeLabel

		row := alert.ConvictionRow{
			Index:     i,
			Total:     m.cfg.BurstCount,
			TimeLabel: timeLabel,
			Signal:    a.Signal,
			TempF:     a.PreciseF,
			Current:   true,
		}
		price := a.CurrentPrice
		row.PriceCents = &price
		for j := range history {
			history[j].Current = false
		}
		history = append(history, row)

		rows := append([]alert.ConvictionRow(nil), history...)
		for j := i + 1; j <= m.cfg.BurstCount; j++ {
			rows = append(rows, alert.ConvictionRow{Index: j, Total: m.cfg.BurstCount})
		}
		a.Rows = rows

		html, err := alert.RenderSpikeAlert(a)
		if err != nil {
			m.logger.Warn("render spike alert failed", "error", err)
		} else if err := m.mailer.Send(ctx, alert.Message{
			Subject:  alert.SpikeSubject(a),
			HTMLBody: html,
		}); err != nil {
			m.logger.Warn("spike alert send failed",
				"burst", fmt.Sprintf("%d/%d", i, m.cfg.BurstCount), "error", err)
		}

		m.logger.Info("burst alert sent",
			"burst", fmt.Sprintf("%d/%d", i, m.cfg.BurstCount),
			"city", meta.city,
			"signal", a.Signal)

		if i < m.cfg.BurstCount {
			if err := m.sleep(ctx, m.cfg.BurstInterval); err != nil {
				return err
			}
		}
	}
	return nil
}

// collectBurstData assembles one burst iteration's alert payload. Analysis
// or orderbook failures degrade to an alert with whatever data survived.
func (m *Monitor) collectBurstData(ctx context.Context, city string, spike *Event) *alert.SpikeAlert {
	a := &alert.SpikeAlert{
		OldPrice:     spike.OldPrice,
		NewPrice:     spike.NewPrice,
		CurrentPrice: spike.NewPrice,
		Delta:        spike.Delta,
		Signal:       string(edge.NoEdge),
		SignalReason: "Analysis unavailable.",
		TimeRisk:     "UNKNOWN",
		MarginStatus: "UNKNOWN",
	}

	if rep, err := m.analyzer.AnalyzeCity(ctx, city); err != nil {
		m.logger.Warn("burst edge analysis failed", "city", city, "error", err)
	} else {
		a.Signal = string(rep.Signal)
		a.SignalReason = rep.SignalReason
		a.TimeRisk = string(rep.TimeRisk)
		a.METARF = rep.METARTempF
		a.PreciseF = rep.RunningMaxF
		a.PreciseC = rep.RunningMaxC
		a.RunningMaxF = rep.RunningMaxCLIF
		a.Source = rep.RunningMaxSource
		if a.Source == "" {
			a.Source = "unknown"
		}
		if rep.Bracket != nil {
			marginC := rep.Bracket.MarginBelowC
			a.MarginC = &marginC
			a.MarginStatus = string(rep.Bracket.Status)
		}
	}

	if ob, err := m.venue.GetOrderbook(ctx, spike.Ticker, 10); err != nil {
		m.logger.Warn("burst orderbook fetch failed", "ticker", spike.Ticker, "error", err)
	} else if len(ob.Yes) > 0 {
		best := ob.Yes[len(ob.Yes)-1]
		if len(best) >= 1 {
			a.CurrentPrice = best[0]
		}
	}
	return a
}
