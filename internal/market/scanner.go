// Package market discovers today's temperature markets on the venue and
// reduces their order books to scan candidates.
package market

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"kalshi-weather/internal/config"
	"kalshi-weather/internal/kalshi"
	"kalshi-weather/internal/stations"
	"kalshi-weather/pkg/types"
)

const (
	seriesCategory = "Climate and Weather"
	bookDepth      = 10
)

// tradableStatuses are the venue statuses a market can be bought in.
var tradableStatuses = map[string]bool{"active": true, "open": true}

var (
	highSeriesRe = regexp.MustCompile(`(?i)^KXHIGH`)
	lowSeriesRe  = regexp.MustCompile(`(?i)^KXLOW`)
	cityTitleRe  = regexp.MustCompile(`(?i)(?:highest|lowest)\s+temperature\s+in\s+(.+?)\s+(?:on|today)`)
	eventDateRe  = regexp.MustCompile(`-(\d{2})([A-Z]{3})(\d{2})$`)
)

// Venue is the slice of the Kalshi client the scanner needs.
type Venue interface {
	ListSeries(ctx context.Context, category string, tags []string) ([]kalshi.Series, error)
	ListAllEvents(ctx context.Context, seriesTicker, status string, withNestedMarkets bool) ([]kalshi.Event, error)
	GetOrderbook(ctx context.Context, marketTicker string, depth int) (*kalshi.Orderbook, error)
}

// Scanner finds NO-side candidates inside the configured price window.
type Scanner struct {
	venue  Venue
	cfg    config.ScanConfig
	logger *slog.Logger
	now    func() time.Time
}

// NewScanner builds a scanner.
func NewScanner(venue Venue, cfg config.ScanConfig, logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scanner{venue: venue, cfg: cfg, logger: logger.With("component", "scanner"), now: time.Now}
}

// ClassifySeries maps a series ticker to a market type by prefix.
func ClassifySeries(ticker string) types.MarketType {
	switch {
	case highSeriesRe.MatchString(ticker):
		return types.HighTemp
	case lowSeriesRe.MatchString(ticker):
		return types.LowTemp
	default:
		return types.Other
	}
}

// ExtractCity pulls the city name out of an event title like
// "Highest temperature in New York on Aug 25, 2026?".
func ExtractCity(title string) string {
	m := cityTitleRe.FindStringSubmatch(title)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

// EventDate parses the settlement date off an event ticker suffix like
// KXHIGHNY-25AUG26 (day, month, two-digit year).
func EventDate(eventTicker string) (string, bool) {
	m := eventDateRe.FindStringSubmatch(strings.ToUpper(eventTicker))
	if m == nil {
		return "", false
	}
	month := m[2][:1] + strings.ToLower(m[2][1:])
	t, err := time.Parse("02Jan06", m[1]+month+m[3])
	if err != nil {
		return "", false
	}
	return t.Format("2006-01-02"), true
}

// TargetDate returns the configured date override or today in Eastern time,
// which is the venue's trading day.
func (s *Scanner) TargetDate() string {
	if s.cfg.TargetDate != "" {
		return s.cfg.TargetDate
	}
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		return s.now().UTC().Format("2006-01-02")
	}
	return s.now().In(loc).Format("2006-01-02")
}

// Scan walks every temperature series and returns the candidates whose
// implied NO ask sits inside the scan window, plus counts for the slate
// header. A failed orderbook fetch skips the market, not the scan.
func (s *Scanner) Scan(ctx context.Context) ([]types.RawCandidate, types.ScanStats, error) {
	stats := types.ScanStats{}
	targetDate := s.TargetDate()

	series, err := s.venue.ListSeries(ctx, seriesCategory, nil)
	if err != nil {
		return nil, stats, fmt.Errorf("list series: %w", err)
	}

	var candidates []types.RawCandidate
	for _, sr := range series {
		mtype := ClassifySeries(sr.Ticker)
		if mtype == types.Other {
			continue
		}
		stats.SeriesSeen = append(stats.SeriesSeen, sr.Ticker)

		events, err := s.venue.ListAllEvents(ctx, sr.Ticker, "open", true)
		if err != nil {
			s.logger.Warn("listing events failed, skipping series", "series", sr.Ticker, "err", err)
			continue
		}

		for _, ev := range events {
			if date, ok := EventDate(ev.EventTicker); !ok || date != targetDate {
				continue
			}
			stats.EventsSeen++

			city := ExtractCity(ev.Title)
			var station stations.Station
			var conf *types.MappingConfidence
			if city != "" {
				if st, ok := stations.Lookup(city); ok {
					station = st
					c := st.Confidence
					conf = &c
				}
			}

			for _, mkt := range ev.Markets {
				stats.MarketsSeen++
				if !tradableStatuses[strings.ToLower(mkt.Status)] {
					stats.SkippedStatus++
					continue
				}

				book, err := s.venue.GetOrderbook(ctx, mkt.Ticker, bookDepth)
				if err != nil {
					s.logger.Warn("orderbook fetch failed", "market", mkt.Ticker, "err", err)
					stats.SkippedNoBook++
					continue
				}
				snap := ParseOrderbook(book, s.now().UTC())
				if snap.ImpliedNoAsk == nil {
					stats.SkippedNoBook++
					continue
				}
				ask := *snap.ImpliedNoAsk
				if ask < s.cfg.WindowMinCents || ask > s.cfg.WindowMaxCents {
					continue
				}
				stats.InWindow++

				bracket := mkt.YesSubTitle
				if bracket == "" {
					bracket = mkt.Title
				}
				candidates = append(candidates, types.RawCandidate{
					SeriesTicker:      sr.Ticker,
					EventTicker:       ev.EventTicker,
					MarketTicker:      mkt.Ticker,
					MarketType:        mtype,
					City:              city,
					Station:           station.ICAO,
					CLICode:           station.CLICode,
					TargetDate:        targetDate,
					MappingConfidence: conf,
					BracketText:       bracket,
					Status:            strings.ToLower(mkt.Status),
					URL:               "https://kalshi.com/markets/" + mkt.Ticker,
					Book:              snap,
				})
			}
		}
	}

	s.logger.Info("scan complete",
		"series", len(stats.SeriesSeen),
		"events", stats.EventsSeen,
		"markets", stats.MarketsSeen,
		"in_window", stats.InWindow)
	return candidates, stats, nil
}
