// Package stations maps market cities to the NWS observing stations their
// markets settle against, and knows each station's climatological day.
package stations

import (
	"fmt"
	"strings"
	"time"

	"kalshi-weather/pkg/types"
)

// Station is one settlement station we track.
type Station struct {
	City       string
	ICAO       string // METAR station id
	CLICode    string // CLI product issuing office
	TZ         string // IANA zone of the station
	Lat, Lon   float64
	Confidence types.MappingConfidence
}

// registry holds every station in display order. KLGA carries MED confidence:
// "New York" markets settle on Central Park (KNYC), not LaGuardia, and a
// LaGuardia match usually means the title was ambiguous.
var registry = []Station{
	{"New York", "KNYC", "NYC", "America/New_York", 40.783, -73.967, types.MappingHigh},
	{"Chicago", "KMDW", "MDW", "America/Chicago", 41.786, -87.752, types.MappingHigh},
	{"Miami", "KMIA", "MIA", "America/New_York", 25.788, -80.317, types.MappingHigh},
	{"Austin", "KAUS", "AUS", "America/Chicago", 30.183, -97.680, types.MappingHigh},
	{"Los Angeles", "KLAX", "LAX", "America/Los_Angeles", 33.938, -118.389, types.MappingHigh},
	{"Denver", "KDEN", "DEN", "America/Denver", 39.847, -104.656, types.MappingHigh},
	{"Las Vegas", "KLAS", "LAS", "America/Los_Angeles", 36.072, -115.163, types.MappingHigh},
	{"Seattle", "KSEA", "SEA", "America/Los_Angeles", 47.444, -122.314, types.MappingHigh},
	{"Atlanta", "KATL", "ATL", "America/New_York", 33.630, -84.442, types.MappingHigh},
	{"Boston", "KBOS", "BOS", "America/New_York", 42.361, -71.010, types.MappingHigh},
	{"Charlotte", "KCLT", "CLT", "America/New_York", 35.214, -80.943, types.MappingHigh},
	{"Dallas", "KDFW", "DFW", "America/Chicago", 32.897, -97.022, types.MappingHigh},
	{"Detroit", "KDTW", "DTW", "America/Detroit", 42.231, -83.331, types.MappingHigh},
	{"Houston", "KHOU", "HOU", "America/Chicago", 29.638, -95.282, types.MappingHigh},
	{"Jacksonville", "KJAX", "JAX", "America/New_York", 30.495, -81.694, types.MappingHigh},
	{"Minneapolis", "KMSP", "MSP", "America/Chicago", 44.883, -93.229, types.MappingHigh},
	{"Nashville", "KBNA", "BNA", "America/Chicago", 36.119, -86.689, types.MappingHigh},
	{"New Orleans", "KMSY", "MSY", "America/Chicago", 29.993, -90.251, types.MappingHigh},
	{"Oklahoma City", "KOKC", "OKC", "America/Chicago", 35.389, -97.600, types.MappingHigh},
	{"Philadelphia", "KPHL", "PHL", "America/New_York", 39.868, -75.243, types.MappingHigh},
	{"Phoenix", "KPHX", "PHX", "America/Phoenix", 33.428, -112.004, types.MappingHigh},
	{"San Antonio", "KSAT", "SAT", "America/Chicago", 29.533, -98.464, types.MappingHigh},
	{"San Francisco", "KSFO", "SFO", "America/Los_Angeles", 37.620, -122.365, types.MappingHigh},
	{"Tampa", "KTPA", "TPA", "America/New_York", 27.962, -82.540, types.MappingHigh},
	{"Washington", "KDCA", "DCA", "America/New_York", 38.848, -77.034, types.MappingHigh},
	{"LaGuardia", "KLGA", "LGA", "America/New_York", 40.777, -73.873, types.MappingMed},
}

// aliases are the short names market titles actually use.
var aliases = map[string]string{
	"nyc":    "New York",
	"la":     "Los Angeles",
	"sf":     "San Francisco",
	"dfw":    "Dallas",
	"okc":    "Oklahoma City",
	"philly": "Philadelphia",
	"dc":     "Washington",
	"vegas":  "Las Vegas",
	"lga":    "LaGuardia",
}

// All returns the registry in display order.
func All() []Station {
	out := make([]Station, len(registry))
	copy(out, registry)
	return out
}

// ByICAO finds a station by its METAR id.
func ByICAO(icao string) (Station, bool) {
	icao = strings.ToUpper(strings.TrimSpace(icao))
	for _, s := range registry {
		if s.ICAO == icao {
			return s, true
		}
	}
	return Station{}, false
}

func normalize(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

// Lookup resolves a city name from a market title to a station. Matching is
// exact first, then alias, then substring. Substring matching requires at
// least 4 characters on both sides so "LA" can never fall through and match
// inside "Atlanta" or "Dallas".
func Lookup(city string) (Station, bool) {
	q := normalize(city)
	if q == "" {
		return Station{}, false
	}

	for _, s := range registry {
		if normalize(s.City) == q {
			return s, true
		}
	}

	if full, ok := aliases[q]; ok {
		return Lookup(full)
	}

	if len(q) >= 4 {
		for _, s := range registry {
			name := normalize(s.City)
			if len(name) < 4 {
				continue
			}
			if strings.Contains(name, q) || strings.Contains(q, name) {
				return s, true
			}
		}
	}
	return Station{}, false
}

// CLIDayWindow returns the UTC bounds of the station's climatological day for
// a YYYY-MM-DD date. NWS climate reports run midnight to midnight local
// STANDARD time year-round, so the offset is sampled on Jan 1 rather than on
// the target date. During DST the window is shifted one hour against the
// local clock, which is correct.
func CLIDayWindow(date, tz string) (time.Time, time.Time, error) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("load zone %s: %w", tz, err)
	}
	day, err := time.Parse("2006-01-02", date)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("parse date %q: %w", date, err)
	}

	jan1 := time.Date(day.Year(), 1, 1, 0, 0, 0, 0, loc)
	_, stdOffset := jan1.Zone()

	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC).
		Add(-time.Duration(stdOffset) * time.Second)
	return start, start.Add(24 * time.Hour), nil
}
