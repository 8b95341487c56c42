package weather

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-resty/resty/v2"

	"kalshi-weather/internal/config"
	"kalshi-weather/internal/metar"
	"kalshi-weather/internal/transport"
)

const (
	defaultTgftpBase    = "https://tgftp.nws.noaa.gov"
	defaultForecastBase = "https://forecast.weather.gov"
)

// Scraper pulls the NWS text and HTML products that lead the JSON API by
// several minutes: raw METAR files, the current-conditions page, station
// observation history, and the CLI climate report.
type Scraper struct {
	http         *resty.Client
	tgftpBase    string
	forecastBase string
	logger       *slog.Logger
}

// NewScraper builds a scraper with the production NWS hosts.
func NewScraper(cfg config.WeatherConfig, logger *slog.Logger) *Scraper {
	client := transport.New(transport.Options{
		Timeout:        cfg.Timeout,
		RequestsPerSec: cfg.RequestsPerSec,
		UserAgent:      cfg.UserAgent,
		Logger:         logger,
	})
	return NewScraperWithClient(client, defaultTgftpBase, defaultForecastBase, logger)
}

// NewScraperWithClient wires explicit hosts (tests).
func NewScraperWithClient(client *resty.Client, tgftpBase, forecastBase string, logger *slog.Logger) *Scraper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scraper{
		http:         client,
		tgftpBase:    tgftpBase,
		forecastBase: forecastBase,
		logger:       logger.With("component", "weather-scraper"),
	}
}

// RawMETAR fetches the station's latest METAR file and parses it. The tgftp
// mirror updates within a minute or two of the observation.
func (s *Scraper) RawMETAR(ctx context.Context, icao string) (*metar.Report, error) {
	url := s.tgftpBase + "/data/observations/metar/stations/" + strings.ToUpper(icao) + ".TXT"
	resp, err := s.http.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, fmt.Errorf("raw metar %s: %w", icao, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("raw metar %s: status %d", icao, resp.StatusCode())
	}
	rep := metar.Parse(string(resp.Body()))
	return &rep, nil
}

// CurrentConditions fetches the station's current-conditions page and returns
// the decimal Fahrenheit reading, which carries a tenth of precision the
// rounded displays drop.
func (s *Scraper) CurrentConditions(ctx context.Context, icao string) (*float64, error) {
	url := s.tgftpBase + "/weather/current/" + strings.ToUpper(icao) + ".html"
	resp, err := s.http.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, fmt.Errorf("current conditions %s: %w", icao, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("current conditions %s: status %d", icao, resp.StatusCode())
	}
	return ParseCurrentConditions(string(resp.Body())), nil
}

// ObsHistory fetches the 3-day observation history page and returns the
// day's maximum whole-degree air temperature, if any rows parse.
func (s *Scraper) ObsHistory(ctx context.Context, icao string) (*int, error) {
	url := s.forecastBase + "/data/obhistory/" + strings.ToUpper(icao) + ".html"
	resp, err := s.http.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, fmt.Errorf("obs history %s: %w", icao, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("obs history %s: status %d", icao, resp.StatusCode())
	}
	return ParseObsHistory(string(resp.Body())), nil
}

// CLIReport is a parsed NWS climate (CLI) product.
type CLIReport struct {
	MaxF        int
	MaxTime     string // as printed, e.g. "309 PM"
	Preliminary bool
}

// PreliminaryCLI fetches the latest CLI product for an issuing office and
// extracts the reported maximum. The afternoon issuance is preliminary but is
// the settlement source's own number, which makes it the highest-confidence
// reading we have.
func (s *Scraper) PreliminaryCLI(ctx context.Context, cliCode string) (*CLIReport, error) {
	resp, err := s.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"site":     "NWS",
			"issuedby": strings.ToUpper(cliCode),
			"product":  "CLI",
			"format":   "txt",
			"version":  "1",
			"glossary": "0",
		}).
		Get(s.forecastBase + "/product.php")
	if err != nil {
		return nil, fmt.Errorf("cli product %s: %w", cliCode, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("cli product %s: status %d", cliCode, resp.StatusCode())
	}
	rep := ParseCLI(string(resp.Body()))
	if rep == nil {
		return nil, fmt.Errorf("cli product %s: no maximum temperature line", cliCode)
	}
	return rep, nil
}

var (
	currentTempRe = regexp.MustCompile(`(-?\d+(?:\.\d+)?)\s*(?:&deg;|°)\s*F`)
	cliMaxRe      = regexp.MustCompile(`(?m)^\s*MAXIMUM\s+(-?\d+)R?\s*(\d{3,4}\s*[AP]M)?`)
	cellRe        = regexp.MustCompile(`<td[^>]*>([^<]*)</td>`)
	rowRe         = regexp.MustCompile(`(?s)<tr[^>]*>(.*?)</tr>`)
)

// ParseCurrentConditions pulls the first Fahrenheit reading off the
// current-conditions page. Nil when the page carries none.
func ParseCurrentConditions(html string) *float64 {
	m := currentTempRe.FindStringSubmatch(html)
	if m == nil {
		return nil
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return nil
	}
	return &v
}

// ParseObsHistory walks the observation table and returns the maximum value
// of the air temperature column (cell index 6 on the obhistory layout).
func ParseObsHistory(html string) *int {
	var maxTemp *int
	for _, row := range rowRe.FindAllStringSubmatch(html, -1) {
		cells := cellRe.FindAllStringSubmatch(row[1], -1)
		if len(cells) < 8 {
			continue
		}
		v, err := strconv.Atoi(strings.TrimSpace(cells[6][1]))
		if err != nil || v < -60 || v > 135 {
			continue
		}
		if maxTemp == nil || v > *maxTemp {
			temp := v
			maxTemp = &temp
		}
	}
	return maxTemp
}

// ParseCLI extracts the MAXIMUM line from a CLI climate product. Returns nil
// when the product has no maximum (for example a midnight issuance that only
// covers precipitation).
func ParseCLI(text string) *CLIReport {
	m := cliMaxRe.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	maxF, err := strconv.Atoi(m[1])
	if err != nil {
		return nil
	}
	return &CLIReport{
		MaxF:        maxF,
		MaxTime:     strings.TrimSpace(m[2]),
		Preliminary: strings.Contains(strings.ToUpper(text), "PRELIMINARY"),
	}
}
