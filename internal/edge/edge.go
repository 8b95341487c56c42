// Package edge aggregates precise temperature readings from several NWS
// sources, tracks the day's running max, measures how far it sits from the
// next whole-degree rounding boundary, and turns that into a trading signal.
//
// The edge exists because hourly METARs publish whole degrees Celsius while
// the settlement product rounds a far more precise measurement. A station
// sitting at 30.6 C reads "31" in the hourly feed but can still settle a
// degree Fahrenheit away from what the rounded feed implies.
package edge

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"kalshi-weather/internal/metar"
	"kalshi-weather/internal/stations"
	"kalshi-weather/internal/weather"
)

// ————————————————————————————————————————————————————————————————————————
// Enums

// Confidence grades a temperature reading by its source.
type Confidence string

const (
	ConfHighest    Confidence = "HIGHEST"     // preliminary CLI max
	ConfHigh       Confidence = "HIGH"        // METAR T-group, tenths C
	ConfMediumHigh Confidence = "MEDIUM_HIGH" // current-conditions decimal F
	ConfMedium     Confidence = "MEDIUM"      // 6-hr / 24-hr extrema
	ConfLow        Confidence = "LOW"         // observation history, rounded
)

// MarginStatus classifies how far the running max sits from a rounding
// boundary. One degree F spans 5/9 C, so the largest possible distance to
// the nearest boundary is about 0.278 C; thresholds are scaled to that.
type MarginStatus string

const (
	MarginComfortable MarginStatus = "COMFORTABLE"
	MarginModerate    MarginStatus = "MODERATE"
	MarginClose       MarginStatus = "CLOSE"
	MarginRazorThin   MarginStatus = "RAZOR_THIN"
)

// TimeRisk says how likely the daily max is to still move.
type TimeRisk string

const (
	StillRising TimeRisk = "STILL_RISING" // before 3 PM local
	NearPeak    TimeRisk = "NEAR_PEAK"    // 3-5 PM local
	PastPeak    TimeRisk = "PAST_PEAK"    // 5-10 PM local
	Settled     TimeRisk = "SETTLED"      // near the climate-day close
)

// Signal is the analyzer's verdict for one city.
type Signal string

const (
	StrongBuy Signal = "STRONG_BUY"
	Buy       Signal = "BUY"
	Hold      Signal = "HOLD"
	Caution   Signal = "CAUTION"
	NoEdge    Signal = "NO_EDGE"
)

// ————————————————————————————————————————————————————————————————————————
// Records

// Reading is one temperature observation from any source.
type Reading struct {
	Source     string
	TimeUTC    *time.Time
	TempC      float64
	TempF      float64
	CLIRounded int
	Confidence Confidence
	Note       string
}

// BracketAnalysis relates a precise temperature to the whole-degree
// boundaries on either side of its rounded value.
type BracketAnalysis struct {
	CLIRoundedF    int
	BoundaryBelowC float64 // rounds up to CLIRoundedF from here
	BoundaryAboveC float64 // rounds up to CLIRoundedF+1 from here
	MarginBelowC   float64 // positive = safely above the lower boundary
	MarginAboveC   float64 // positive = still below the upper boundary
	Status         MarginStatus
}

// Report is the complete analysis for one city.
type Report struct {
	City     string
	ICAO     string
	CLICode  string
	TZ       string
	TimeUTC  time.Time
	Readings []Reading

	RunningMaxC      *float64
	RunningMaxF      *float64
	RunningMaxCLIF   *int
	RunningMaxSource string
	METARTempF       *int // whole-degree hourly value, for the disagreement check

	Bracket         *BracketAnalysis
	TimeRisk        TimeRisk
	HoursToCLIClose float64

	Signal         Signal
	SignalReason   string
	CLIMaxF        *int
	CLIPreliminary bool
}

// ————————————————————————————————————————————————————————————————————————
// Classification

// ClassifyMargin buckets a distance to the lower boundary, in degrees C.
func ClassifyMargin(marginC float64) MarginStatus {
	m := marginC
	if m < 0 {
		m = -m
	}
	switch {
	case m >= 0.20:
		return MarginComfortable
	case m >= 0.12:
		return MarginModerate
	case m >= 0.06:
		return MarginClose
	default:
		return MarginRazorThin
	}
}

// ClassifyTimeRisk buckets the local hour.
func ClassifyTimeRisk(localHour int) TimeRisk {
	switch {
	case localHour < 15:
		return StillRising
	case localHour < 17:
		return NearPeak
	case localHour < 22:
		return PastPeak
	default:
		return Settled
	}
}

// AnalyzeBracket computes the boundary geometry around a precise reading.
func AnalyzeBracket(tempC float64) BracketAnalysis {
	cliF := metar.RoundedF(tempC)
	below := metar.BoundaryC(cliF - 1)
	above := metar.BoundaryC(cliF)
	marginBelow := tempC - below
	marginAbove := above - tempC
	return BracketAnalysis{
		CLIRoundedF:    cliF,
		BoundaryBelowC: below,
		BoundaryAboveC: above,
		MarginBelowC:   marginBelow,
		MarginAboveC:   marginAbove,
		Status:         ClassifyMargin(marginBelow),
	}
}

// ————————————————————————————————————————————————————————————————————————
// Signal generation

func generateSignal(r *Report) (Signal, string) {
	if r.RunningMaxC == nil || r.Bracket == nil {
		return NoEdge, "Insufficient data to analyze."
	}

	b := r.Bracket
	cliF := b.CLIRoundedF

	// A published preliminary CLI is the settlement source itself.
	if r.CLIMaxF != nil {
		if *r.CLIMaxF == cliF {
			return StrongBuy, fmt.Sprintf(
				"Preliminary CLI confirms %dF. Market should converge to this bracket.", cliF)
		}
		if *r.CLIMaxF > cliF {
			return Caution, fmt.Sprintf(
				"Preliminary CLI shows %dF, higher than current running max predicts (%dF). CLI may be stale.",
				*r.CLIMaxF, cliF)
		}
	}

	metarDisagrees := r.METARTempF != nil && *r.METARTempF != cliF

	if metarDisagrees {
		// The core edge: the hourly feed shows one value, precise data another.
		if b.Status == MarginComfortable || b.Status == MarginModerate {
			if r.TimeRisk == PastPeak || r.TimeRisk == Settled {
				return StrongBuy, fmt.Sprintf(
					"Precise data shows %dF with %s margin. Hourly METARs show %dF, market likely underpricing. Time risk: %s.",
					cliF, b.Status, *r.METARTempF, r.TimeRisk)
			}
			return Buy, fmt.Sprintf(
				"Precise data shows %dF (METAR shows %dF). Margin: %s. Still %s, could move further.",
				cliF, *r.METARTempF, b.Status, r.TimeRisk)
		}
		if b.Status == MarginClose {
			return Caution, fmt.Sprintf(
				"Precise data shows %dF but margin is CLOSE (%+.3fC). Temperature could drift back across the boundary.",
				cliF, b.MarginBelowC)
		}
		return Caution, fmt.Sprintf(
			"Precise data shows %dF but margin is RAZOR_THIN (%+.3fC). Very risky.",
			cliF, b.MarginBelowC)
	}

	switch b.Status {
	case MarginComfortable:
		return NoEdge, fmt.Sprintf(
			"All sources agree on %dF with comfortable margin. Market likely already priced correctly.", cliF)
	case MarginClose, MarginRazorThin:
		return Caution, fmt.Sprintf(
			"Sources agree on %dF but margin is %s. Small temperature change could flip the bracket.",
			cliF, b.Status)
	default:
		return Hold, fmt.Sprintf(
			"Sources agree on %dF. Moderate margin. No significant edge detected.", cliF)
	}
}

// ————————————————————————————————————————————————————————————————————————
// Analyzer

// Sources is the slice of the scraper the analyzer needs.
type Sources interface {
	RawMETAR(ctx context.Context, icao string) (*metar.Report, error)
	CurrentConditions(ctx context.Context, icao string) (*float64, error)
	ObsHistory(ctx context.Context, icao string) (*int, error)
	PreliminaryCLI(ctx context.Context, cliCode string) (*weather.CLIReport, error)
}

// Analyzer runs the multi-source temperature analysis.
type Analyzer struct {
	sources Sources
	logger  *slog.Logger
	now     func() time.Time
}

func New(sources Sources, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{sources: sources, logger: logger, now: time.Now}
}

// AnalyzeCity fetches every source for one city and builds its report. Each
// source is independently optional; a fetch failure only costs its reading.
func (a *Analyzer) AnalyzeCity(ctx context.Context, city string) (*Report, error) {
	st, ok := stations.Lookup(city)
	if !ok {
		return nil, fmt.Errorf("city %q not in station registry", city)
	}

	loc, err := time.LoadLocation(st.TZ)
	if err != nil {
		return nil, fmt.Errorf("load zone %s: %w", st.TZ, err)
	}
	nowUTC := a.now().UTC()
	nowLocal := nowUTC.In(loc)

	r := &Report{
		City:    st.City,
		ICAO:    st.ICAO,
		CLICode: st.CLICode,
		TZ:      st.TZ,
		TimeUTC: nowUTC,
	}

	// Fan the four fetches out; failures degrade to missing readings.
	var (
		metarRep *metar.Report
		condF    *float64
		histMaxF *int
		cliRep   *weather.CLIReport
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rep, err := a.sources.RawMETAR(gctx, st.ICAO)
		if err != nil {
			a.logger.Warn("raw metar fetch failed", "icao", st.ICAO, "error", err)
			return nil
		}
		metarRep = rep
		return nil
	})
	g.Go(func() error {
		f, err := a.sources.CurrentConditions(gctx, st.ICAO)
		if err != nil {
			a.logger.Warn("current conditions fetch failed", "icao", st.ICAO, "error", err)
			return nil
		}
		condF = f
		return nil
	})
	g.Go(func() error {
		f, err := a.sources.ObsHistory(gctx, st.ICAO)
		if err != nil {
			a.logger.Warn("obs history fetch failed", "icao", st.ICAO, "error", err)
			return nil
		}
		histMaxF = f
		return nil
	})
	g.Go(func() error {
		rep, err := a.sources.PreliminaryCLI(gctx, st.CLICode)
		if err != nil {
			a.logger.Warn("preliminary CLI fetch failed", "cli", st.CLICode, "error", err)
			return nil
		}
		cliRep = rep
		return nil
	})
	_ = g.Wait()

	r.Readings = buildReadings(r, st, metarRep, condF, histMaxF, cliRep, nowUTC)

	// Running max: the highest precise reading, rounded feeds excluded.
	var best *Reading
	for i := range r.Readings {
		rd := &r.Readings[i]
		if rd.Confidence == ConfLow {
			continue
		}
		if best == nil || rd.TempC > best.TempC {
			best = rd
		}
	}
	if best != nil {
		c, f, cli := best.TempC, best.TempF, best.CLIRounded
		r.RunningMaxC, r.RunningMaxF, r.RunningMaxCLIF = &c, &f, &cli
		r.RunningMaxSource = best.Source
		b := AnalyzeBracket(c)
		r.Bracket = &b
	}

	r.TimeRisk = ClassifyTimeRisk(nowLocal.Hour())

	_, cliEnd, err := stations.CLIDayWindow(nowLocal.Format("2006-01-02"), st.TZ)
	if err == nil {
		if rem := cliEnd.Sub(nowUTC).Hours(); rem > 0 {
			r.HoursToCLIClose = rem
		}
	}

	r.Signal, r.SignalReason = generateSignal(r)
	return r, nil
}

func buildReadings(r *Report, st stations.Station, metarRep *metar.Report, condF *float64, histMaxF *int, cliRep *weather.CLIReport, nowUTC time.Time) []Reading {
	var readings []Reading

	if metarRep != nil {
		if metarRep.PreciseTempC != nil {
			c := *metarRep.PreciseTempC
			readings = append(readings, Reading{
				Source:     "METAR T-group",
				TimeUTC:    metarRep.ObsTime,
				TempC:      c,
				TempF:      metar.CToF(c),
				CLIRounded: metar.RoundedF(c),
				Confidence: ConfHigh,
				Note:       "raw METAR from " + st.ICAO,
			})
		}
		if metarRep.TempC != nil {
			f := metar.NWSRound(metar.CToF(*metarRep.TempC))
			r.METARTempF = &f
		}
		if metarRep.SixHrMaxC != nil {
			c := *metarRep.SixHrMaxC
			readings = append(readings, Reading{
				Source:     "METAR 6-hr max",
				TimeUTC:    metarRep.ObsTime,
				TempC:      c,
				TempF:      metar.CToF(c),
				CLIRounded: metar.RoundedF(c),
				Confidence: ConfMedium,
				Note:       "6-hour maximum from METAR remarks",
			})
		}
		if metarRep.Max24C != nil {
			c := *metarRep.Max24C
			readings = append(readings, Reading{
				Source:     "METAR 24-hr max",
				TimeUTC:    metarRep.ObsTime,
				TempC:      c,
				TempF:      metar.CToF(c),
				CLIRounded: metar.RoundedF(c),
				Confidence: ConfMedium,
				Note:       "24-hour maximum from METAR remarks",
			})
		}
	}

	if condF != nil {
		f := *condF
		t := nowUTC // page timestamps are unreliable
		readings = append(readings, Reading{
			Source:     "Current Conditions",
			TimeUTC:    &t,
			TempC:      metar.FToC(f),
			TempF:      f,
			CLIRounded: metar.NWSRound(f),
			Confidence: ConfMediumHigh,
			Note:       "NWS current conditions page for " + st.ICAO,
		})
	}

	if histMaxF != nil {
		f := float64(*histMaxF)
		readings = append(readings, Reading{
			Source:     "Observation History Max",
			TempC:      metar.FToC(f),
			TempF:      f,
			CLIRounded: *histMaxF,
			Confidence: ConfLow,
			Note:       "max over today's observation history rows",
		})
	}

	if cliRep != nil {
		r.CLIMaxF = &cliRep.MaxF
		r.CLIPreliminary = cliRep.Preliminary
		note := fmt.Sprintf("CLI %s: max %dF", st.CLICode, cliRep.MaxF)
		if cliRep.MaxTime != "" {
			note += " at " + cliRep.MaxTime
		}
		if cliRep.Preliminary {
			note += " (preliminary)"
		}
		readings = append(readings, Reading{
			Source:     "Preliminary CLI",
			TempC:      metar.FToC(float64(cliRep.MaxF)),
			TempF:      float64(cliRep.MaxF),
			CLIRounded: cliRep.MaxF,
			Confidence: ConfHighest,
			Note:       note,
		})
	}

	return readings
}

// AnalyzeAll runs every registry city concurrently and returns the reports
// in city order. Per-city failures are logged and skipped.
func (a *Analyzer) AnalyzeAll(ctx context.Context) []*Report {
	all := stations.All()
	reports := make([]*Report, len(all))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, st := range all {
		i, st := i, st
		g.Go(func() error {
			rep, err := a.AnalyzeCity(gctx, st.City)
			if err != nil {
				a.logger.Warn("edge analysis failed", "city", st.City, "error", err)
				return nil
			}
			reports[i] = rep
			return nil
		})
	}
	_ = g.Wait()

	out := reports[:0]
	for _, rep := range reports {
		if rep != nil {
			out = append(out, rep)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].City < out[j].City })
	return out
}

// ————————————————————————————————————————————————————————————————————————
// Formatting

// FormatReport renders a detailed single-city text report.
func FormatReport(r *Report) string {
	loc, err := time.LoadLocation(r.TZ)
	if err != nil {
		loc = time.UTC
	}
	local := r.TimeUTC.In(loc)

	var sb strings.Builder
	fmt.Fprintf(&sb, "=== TEMPERATURE EDGE: %s (%s) ===\n", r.City, r.ICAO)
	fmt.Fprintf(&sb, "Time: %s | CLI closes in %.1f hours\n\n", local.Format("2006-01-02 15:04 MST"), r.HoursToCLIClose)
	sb.WriteString("--- PRECISE READINGS ---\n")

	for _, rd := range r.Readings {
		timePart := ""
		if rd.TimeUTC != nil {
			timePart = fmt.Sprintf(" (%sZ)", rd.TimeUTC.Format("15:04"))
		}
		marker := ""
		if rd.Source == r.RunningMaxSource && len(r.Readings) > 1 {
			marker = "  << HIGHEST"
		}
		fmt.Fprintf(&sb, "  %s%s: %.1fC = %.2fF -> CLI: %dF%s\n",
			rd.Source, timePart, rd.TempC, rd.TempF, rd.CLIRounded, marker)
		if rd.Note != "" {
			fmt.Fprintf(&sb, "    (%s)\n", rd.Note)
		}
	}
	sb.WriteString("\n")

	if r.RunningMaxC != nil && r.Bracket != nil {
		b := r.Bracket
		fmt.Fprintf(&sb, "--- RUNNING MAX: %.1fC (%.2fF) -> CLI: %dF ---\n",
			*r.RunningMaxC, *r.RunningMaxF, b.CLIRoundedF)
		fmt.Fprintf(&sb, "  Boundary %d/%dF: %.3fC | Margin: %+.3fC above (%s)\n",
			b.CLIRoundedF-1, b.CLIRoundedF, b.BoundaryBelowC, b.MarginBelowC, b.Status)
		fmt.Fprintf(&sb, "  Boundary %d/%dF: %.3fC | Gap: %+.3fC below (needs %+.1fC more)\n",
			b.CLIRoundedF, b.CLIRoundedF+1, b.BoundaryAboveC, -b.MarginAboveC, b.MarginAboveC)
	} else {
		sb.WriteString("--- NO PRECISE DATA AVAILABLE ---\n")
	}

	sb.WriteString("\n")
	fmt.Fprintf(&sb, "--- SIGNAL: %s ---\n", r.Signal)
	fmt.Fprintf(&sb, "  Time risk: %s\n", r.TimeRisk)
	fmt.Fprintf(&sb, "  %s\n", r.SignalReason)
	return sb.String()
}

// FormatSummary renders a multi-city table.
func FormatSummary(reports []*Report) string {
	header := fmt.Sprintf("%-15s | %5s | %7s | %5s | %8s | %-11s | %s",
		"City", "METAR", "Precise", "CLI F", "Margin C", "Signal", "Time")
	sep := strings.Repeat("-", len(header))

	var sb strings.Builder
	sb.WriteString("=== TEMPERATURE EDGE SUMMARY ===\n\n")
	sb.WriteString(header + "\n" + sep + "\n")

	var strong, buy, caution int
	for _, r := range reports {
		metarStr, preciseStr, cliStr, marginStr := "-", "-", "-", "-"
		if r.METARTempF != nil {
			metarStr = fmt.Sprintf("%d", *r.METARTempF)
		}
		if r.RunningMaxF != nil {
			preciseStr = fmt.Sprintf("%.1f", *r.RunningMaxF)
		}
		if r.RunningMaxCLIF != nil {
			cliStr = fmt.Sprintf("%d", *r.RunningMaxCLIF)
		}
		if r.Bracket != nil {
			marginStr = fmt.Sprintf("%+.2f", r.Bracket.MarginBelowC)
		}
		fmt.Fprintf(&sb, "%-15s | %5s | %7s | %5s | %8s | %-11s | %s\n",
			r.City, metarStr, preciseStr, cliStr, marginStr, r.Signal, r.TimeRisk)

		switch r.Signal {
		case StrongBuy:
			strong++
		case Buy:
			buy++
		case Caution:
			caution++
		}
	}

	sb.WriteString(sep + "\n")
	fmt.Fprintf(&sb, "Signals: %d STRONG_BUY, %d BUY, %d CAUTION, %d other\n",
		strong, buy, caution, len(reports)-strong-buy-caution)
	return sb.String()
}

// Watch repeats a full-registry analysis on an interval, printing the
// summary through emit, until the context is canceled.
func (a *Analyzer) Watch(ctx context.Context, interval time.Duration, emit func(string)) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		emit(FormatSummary(a.AnalyzeAll(ctx)))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
