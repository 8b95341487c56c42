// Package weather pulls temperature data from the National Weather Service:
// the api.weather.gov JSON API for observations and hourly forecasts, and the
// plain-text/HTML products (raw METAR, current conditions, observation
// history, climate reports) that update faster than the API does.
package weather

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"

	"kalshi-weather/internal/config"
	"kalshi-weather/internal/transport"
)

const defaultAPIBase = "https://api.weather.gov"

// Observation is the latest station observation from the JSON API.
type Observation struct {
	TempC     *float64
	Timestamp time.Time
}

// ForecastHour is one hourly forecast period.
type ForecastHour struct {
	Time  time.Time
	TempF float64
}

// API is a client for api.weather.gov. Safe for concurrent use.
type API struct {
	http   *resty.Client
	base   string
	logger *slog.Logger
}

// NewAPI builds the JSON API client. api.weather.gov requires an identifying
// User-Agent and returns GeoJSON.
func NewAPI(cfg config.WeatherConfig, logger *slog.Logger) *API {
	client := transport.New(transport.Options{
		Timeout:        cfg.Timeout,
		RequestsPerSec: cfg.RequestsPerSec,
		UserAgent:      cfg.UserAgent,
		Logger:         logger,
	})
	client.SetHeader("Accept", "application/geo+json")
	return NewAPIWithClient(client, defaultAPIBase, logger)
}

// NewAPIWithClient wires an explicit HTTP client and base URL (tests).
func NewAPIWithClient(client *resty.Client, base string, logger *slog.Logger) *API {
	if logger == nil {
		logger = slog.Default()
	}
	return &API{http: client, base: base, logger: logger.With("component", "weather-api")}
}

type observationResponse struct {
	Properties struct {
		Timestamp   time.Time `json:"timestamp"`
		Temperature struct {
			Value *float64 `json:"value"`
		} `json:"temperature"`
	} `json:"properties"`
}

type pointsResponse struct {
	Properties struct {
		ForecastHourly string `json:"forecastHourly"`
	} `json:"properties"`
}

type hourlyResponse struct {
	Properties struct {
		Periods []struct {
			StartTime       time.Time `json:"startTime"`
			Temperature     float64   `json:"temperature"`
			TemperatureUnit string    `json:"temperatureUnit"`
		} `json:"periods"`
	} `json:"properties"`
}

// LatestObservation returns the station's most recent observation. TempC is
// nil when the station reported no temperature.
func (a *API) LatestObservation(ctx context.Context, icao string) (*Observation, error) {
	var out observationResponse
	resp, err := a.http.R().
		SetContext(ctx).
		SetResult(&out).
		Get(a.base + "/stations/" + icao + "/observations/latest")
	if err != nil {
		return nil, fmt.Errorf("latest observation %s: %w", icao, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("latest observation %s: status %d", icao, resp.StatusCode())
	}
	return &Observation{
		TempC:     out.Properties.Temperature.Value,
		Timestamp: out.Properties.Timestamp,
	}, nil
}

// HourlyForecast resolves the gridpoint for the station's coordinates and
// returns the hourly periods inside [start, end). Two requests: the points
// endpoint only tells us where the hourly forecast lives.
func (a *API) HourlyForecast(ctx context.Context, lat, lon float64, start, end time.Time) ([]ForecastHour, error) {
	var points pointsResponse
	resp, err := a.http.R().
		SetContext(ctx).
		SetResult(&points).
		Get(fmt.Sprintf("%s/points/%.4f,%.4f", a.base, lat, lon))
	if err != nil {
		return nil, fmt.Errorf("resolve gridpoint: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("resolve gridpoint: status %d", resp.StatusCode())
	}
	hourlyURL := points.Properties.ForecastHourly
	if hourlyURL == "" {
		return nil, fmt.Errorf("gridpoint for %.4f,%.4f has no hourly forecast", lat, lon)
	}

	var hourly hourlyResponse
	resp, err = a.http.R().SetContext(ctx).SetResult(&hourly).Get(hourlyURL)
	if err != nil {
		return nil, fmt.Errorf("hourly forecast: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("hourly forecast: status %d", resp.StatusCode())
	}

	var out []ForecastHour
	for _, p := range hourly.Properties.Periods {
		if p.StartTime.Before(start) || !p.StartTime.Before(end) {
			continue
		}
		tempF := p.Temperature
		if p.TemperatureUnit == "C" {
			tempF = tempF*9/5 + 32
		}
		out = append(out, ForecastHour{Time: p.StartTime, TempF: tempF})
	}
	return out, nil
}
