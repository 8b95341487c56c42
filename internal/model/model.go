// Package model turns a forecast and the current observation into a
// probability that a temperature bracket settles YES, plus the risk grades
// the rest of the pipeline keys on.
//
// The model is deliberately plain: a normal around the forecast extreme with
// a half-degree continuity correction, sigma shrinking as the volatile part
// of the day runs out. It does not try to beat the NWS forecast, only to
// price how often the forecast misses by enough to flip a bracket.
package model

import (
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/nathan-osman/go-sunrise"

	"kalshi-weather/internal/config"
	"kalshi-weather/internal/metar"
	"kalshi-weather/internal/stations"
	"kalshi-weather/internal/weather"
	"kalshi-weather/pkg/types"
)

const (
	sigmaBaseline = 3.0
	sigmaShortEnd = 2.0 // under 3 hours of volatility window left
	sigmaFinal    = 1.0 // under 1 hour left

	peakHourLocal = 15 // climatological peak for daily highs
	windowPad     = 2 * time.Hour

	pFloor = 0.001
)

// BracketKind says which shape of bracket the market text described.
type BracketKind int

const (
	BracketUnknown BracketKind = iota
	BracketAtOrAbove
	BracketAtOrBelow
	BracketBetween
)

// Bracket is a parsed settlement condition in whole degrees F.
type Bracket struct {
	Kind BracketKind
	Low  int // AtOrAbove: threshold; Between: lower bound
	High int // AtOrBelow: threshold; Between: upper bound
}

var (
	thresholdRe = regexp.MustCompile(`(?i)(-?\d+)\s*°?\s*F?\s+or\s+(above|below)`)
	betweenRe   = regexp.MustCompile(`(?i)(-?\d+)\s*°?\s*F?\s*(?:to|-)\s*(-?\d+)`)
	firstIntRe  = regexp.MustCompile(`-?\d+`)
)

// ParseBracket reads market bracket text like "88° or above", "84° to 85°",
// or "Between 84 and 85". A bare number is treated as a single-degree
// bracket. Unparseable text returns BracketUnknown.
func ParseBracket(text string) Bracket {
	if m := thresholdRe.FindStringSubmatch(text); m != nil {
		n, _ := strconv.Atoi(m[1])
		if strings.EqualFold(m[2], "above") {
			return Bracket{Kind: BracketAtOrAbove, Low: n}
		}
		return Bracket{Kind: BracketAtOrBelow, High: n}
	}
	if m := betweenRe.FindStringSubmatch(text); m != nil {
		lo, _ := strconv.Atoi(m[1])
		hi, _ := strconv.Atoi(m[2])
		if lo > hi {
			lo, hi = hi, lo
		}
		return Bracket{Kind: BracketBetween, Low: lo, High: hi}
	}
	if m := firstIntRe.FindString(text); m != "" {
		n, _ := strconv.Atoi(m)
		return Bracket{Kind: BracketBetween, Low: n, High: n}
	}
	return Bracket{Kind: BracketUnknown}
}

func normalCDF(x float64) float64 {
	return 0.5 * math.Erfc(-x/math.Sqrt2)
}

// BracketProb is the probability a whole-degree settlement lands inside the
// bracket, under a normal around mu with the half-degree continuity
// correction: settling at exactly N covers the real interval [N-0.5, N+0.5).
func BracketProb(b Bracket, mu, sigma float64) float64 {
	var p float64
	switch b.Kind {
	case BracketAtOrAbove:
		p = 1 - normalCDF((float64(b.Low)-0.5-mu)/sigma)
	case BracketAtOrBelow:
		p = normalCDF((float64(b.High)+0.5-mu)/sigma)
	case BracketBetween:
		p = normalCDF((float64(b.High)+0.5-mu)/sigma) - normalCDF((float64(b.Low)-0.5-mu)/sigma)
	default:
		return 0.5
	}
	if p < pFloor {
		p = pFloor
	}
	// a between-bracket can also saturate when mu sits inside a wide band
	if b.Kind == BracketBetween && p > 1-pFloor {
		p = 1 - pFloor
	}
	return p
}

// BoundaryDistance is the distance in degrees F from mu to the nearest
// bracket edge, the number that decides knife-edge risk.
func BoundaryDistance(b Bracket, mu float64) float64 {
	switch b.Kind {
	case BracketAtOrAbove:
		return math.Abs(mu - float64(b.Low))
	case BracketAtOrBelow:
		return math.Abs(mu - float64(b.High))
	case BracketBetween:
		return math.Min(math.Abs(mu-float64(b.Low)), math.Abs(mu-float64(b.High)))
	default:
		return 0
	}
}

// PNewExtreme estimates the chance of a new daily extreme given the room (in
// degrees F) between the current extreme and the forecast, and the hours of
// volatility window remaining. Flat 0.15 with no room, 0.85 with five or
// more degrees, linear between, discounted when little time is left.
func PNewExtreme(roomF, hoursLeft float64) float64 {
	if hoursLeft <= 0 {
		return 0
	}
	var p float64
	switch {
	case roomF <= 0:
		p = 0.15
	case roomF >= 5:
		p = 0.85
	default:
		p = 0.15 + roomF/5*0.70
	}
	p *= math.Min(1, hoursLeft/6)
	if p > 0.99 {
		p = 0.99
	}
	return p
}

// Modeler builds ModelOutput records.
type Modeler struct {
	cfg    config.ModelConfig
	logger *slog.Logger
	now    func() time.Time
}

// New builds a modeler.
func New(cfg config.ModelConfig, logger *slog.Logger) *Modeler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Modeler{cfg: cfg, logger: logger.With("component", "model"), now: time.Now}
}

// VolWindowEnd is when the volatile part of the station's day ends: two
// hours past the climatological peak (15:00 local) for highs, two hours past
// sunrise for lows. Sunrise comes from the station coordinates; if the
// computation degenerates (polar edge cases) it falls back to 09:00 local.
func VolWindowEnd(mtype types.MarketType, st stations.Station, date string) (time.Time, error) {
	loc, err := time.LoadLocation(st.TZ)
	if err != nil {
		return time.Time{}, fmt.Errorf("load zone %s: %w", st.TZ, err)
	}
	day, err := time.Parse("2006-01-02", date)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", date, err)
	}

	if mtype == types.LowTemp {
		rise, _ := sunrise.SunriseSunset(st.Lat, st.Lon, day.Year(), day.Month(), day.Day())
		if rise.IsZero() {
			return time.Date(day.Year(), day.Month(), day.Day(), 9, 0, 0, 0, loc), nil
		}
		return rise.Add(windowPad), nil
	}
	peak := time.Date(day.Year(), day.Month(), day.Day(), peakHourLocal, 0, 0, 0, loc)
	return peak.Add(windowPad), nil
}

func sigmaFor(hoursLeft float64) float64 {
	switch {
	case hoursLeft < 1:
		return sigmaFinal
	case hoursLeft < 3:
		return sigmaShortEnd
	default:
		return sigmaBaseline
	}
}

// Build runs the model for one candidate. forecast holds the hourly series
// for the station's climate day; obs is the latest observation, either may
// be missing.
func (m *Modeler) Build(raw types.RawCandidate, forecast []weather.ForecastHour, obs *weather.Observation) *types.ModelOutput {
	out := &types.ModelOutput{
		Sigma:       sigmaBaseline,
		LockIn:      types.NotLocked,
		KnifeEdge:   types.KnifeLow,
		Uncertainty: types.UncertaintyLow,
	}

	var currentF *float64
	if obs != nil && obs.TempC != nil {
		f := metar.CToF(*obs.TempC)
		currentF = &f
		out.CurrentTempF = currentF
	}

	// Volatility window needs a mapped station; without one the model can
	// only shrug.
	st, haveStation := stations.ByICAO(raw.Station)
	if haveStation {
		if end, err := VolWindowEnd(raw.MarketType, st, raw.TargetDate); err == nil {
			endUTC := end.UTC()
			out.VolWindowEnd = &endUTC
			out.HoursToWindowEnd = math.Max(0, end.Sub(m.now()).Hours())
		} else {
			m.logger.Warn("volatility window failed", "market", raw.MarketTicker, "err", err)
		}
	}
	out.Sigma = sigmaFor(out.HoursToWindowEnd)

	// mu: forecast extreme for the climate day, falling back to the current
	// observation.
	var mu *float64
	if len(forecast) > 0 {
		ext := forecast[0].TempF
		for _, h := range forecast[1:] {
			if raw.MarketType == types.LowTemp {
				if h.TempF < ext {
					ext = h.TempF
				}
			} else if h.TempF > ext {
				ext = h.TempF
			}
		}
		mu = &ext
		out.ForecastPeakF = &ext
	} else if currentF != nil {
		mu = currentF
		out.Notes = append(out.Notes, "no hourly forecast, using current observation as mu")
	}
	out.Mu = mu

	bracket := ParseBracket(raw.BracketText)
	switch {
	case bracket.Kind == BracketUnknown || mu == nil:
		out.PBracket = 0.5
		out.KnifeEdge = types.KnifeHigh
		if bracket.Kind == BracketUnknown {
			out.Notes = append(out.Notes, fmt.Sprintf("unparseable bracket %q", raw.BracketText))
		}
	default:
		out.PBracket = BracketProb(bracket, *mu, out.Sigma)
		dist := BoundaryDistance(bracket, *mu)
		switch {
		case dist <= 1:
			out.KnifeEdge = types.KnifeHigh
		case dist <= out.Sigma:
			out.KnifeEdge = types.KnifeMed
		default:
			out.KnifeEdge = types.KnifeLow
		}
	}

	// Room to a new extreme: how far the forecast says we still travel from
	// the current reading.
	switch {
	case mu != nil && currentF != nil:
		room := *mu - *currentF
		if raw.MarketType == types.LowTemp {
			room = -room
		}
		out.PNewExtreme = PNewExtreme(room, out.HoursToWindowEnd)
	case out.HoursToWindowEnd <= 0:
		out.PNewExtreme = 0
	default:
		out.PNewExtreme = PNewExtreme(2.5, out.HoursToWindowEnd)
		out.Notes = append(out.Notes, "room to extreme unknown, using midpoint")
	}

	if out.VolWindowEnd != nil &&
		m.now().After(out.VolWindowEnd.Add(m.cfg.LockInBuffer)) &&
		out.PNewExtreme < m.cfg.LockInThreshold {
		out.LockIn = types.Locking
	}

	switch {
	case mu == nil || len(forecast) == 0:
		out.Uncertainty = types.UncertaintyHigh
	case out.KnifeEdge == types.KnifeHigh:
		out.Uncertainty = types.UncertaintyHigh
	case out.HoursToWindowEnd > 4:
		out.Uncertainty = types.UncertaintyMed
	default:
		out.Uncertainty = types.UncertaintyLow
	}

	return out
}
