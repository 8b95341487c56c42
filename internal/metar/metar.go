// Package metar parses raw METAR observation text and implements the NWS
// rounding rules that decide how a temperature settles against a bracket.
//
// A METAR like
//
//	KNYC 251951Z AUTO 19008KT 10SM CLR 33/17 A2992 RMK AO2 SLP132
//	T03280167 10333 20256 56012
//
// carries the temperature at three precisions: the whole-degree body group
// (33/17), the tenths-of-degree T-group (T03280167 = 32.8C), and six-hour
// extremes in the remarks (10333 = 6-hr max 33.3C). Settlement rounds the
// Fahrenheit conversion half-up, so the tenths matter.
package metar

import (
	"math"
	"regexp"
	"strconv"
	"time"
)

var (
	tGroupRe  = regexp.MustCompile(`\bT([01])(\d{3})([01])(\d{3})\b`)
	sixMaxRe  = regexp.MustCompile(`\b1([01])(\d{3})\b`)
	sixMinRe  = regexp.MustCompile(`\b2([01])(\d{3})\b`)
	dayRangeRe = regexp.MustCompile(`\b4([01])(\d{3})([01])(\d{3})\b`)
	// Whole-degree body group. Anchoring on whitespace keeps date fragments
	// like 2026/08/25 from matching.
	stdTempRe = regexp.MustCompile(`(?:^|\s)(M?\d{2})/(M?\d{2})(?:\s|$)`)
	obsTimeRe = regexp.MustCompile(`(\d{4})/(\d{2})/(\d{2})\s+(\d{2}):(\d{2})`)
)

// NWSRound rounds half-up, matching NWS settlement practice. This differs
// from Go's math.Round only in how negative halves resolve: NWSRound(-2.5)
// is -2, not -3.
func NWSRound(x float64) int {
	return int(math.Floor(x + 0.5))
}

// CToF converts Celsius to Fahrenheit.
func CToF(c float64) float64 {
	return c*9/5 + 32
}

// FToC converts Fahrenheit to Celsius.
func FToC(f float64) float64 {
	return (f - 32) * 5 / 9
}

// BoundaryC returns the Celsius temperature at which the rounded Fahrenheit
// value first exceeds whole degrees n. At exactly this value NWSRound lands
// on n+1.
func BoundaryC(n int) float64 {
	return (float64(n) + 0.5 - 32) * 5 / 9
}

// RoundedF converts a Celsius reading to the whole Fahrenheit degrees it
// settles as.
func RoundedF(c float64) int {
	return NWSRound(CToF(c))
}

// Report is everything temperature-related pulled out of one METAR.
// Nil fields were absent from the text. All temperatures are Celsius.
type Report struct {
	TempC        *float64 // whole-degree body group
	PreciseTempC *float64 // tenths from the T-group
	SixHrMaxC    *float64
	SixHrMinC    *float64
	Max24C       *float64
	Min24C       *float64
	ObsTime      *time.Time // UTC, from the tgftp file header line
}

// BestTempC returns the most precise current temperature available.
func (r *Report) BestTempC() *float64 {
	if r.PreciseTempC != nil {
		return r.PreciseTempC
	}
	return r.TempC
}

// Parse extracts every temperature group present in raw METAR text. It never
// fails: missing groups simply stay nil.
func Parse(raw string) Report {
	var rep Report

	if m := tGroupRe.FindStringSubmatch(raw); m != nil {
		rep.PreciseTempC = ptr(tenths(m[1], m[2]))
	}
	if m := stdTempRe.FindStringSubmatch(raw); m != nil {
		rep.TempC = ptr(whole(m[1]))
	}
	if m := sixMaxRe.FindStringSubmatch(raw); m != nil {
		rep.SixHrMaxC = ptr(tenths(m[1], m[2]))
	}
	if m := sixMinRe.FindStringSubmatch(raw); m != nil {
		rep.SixHrMinC = ptr(tenths(m[1], m[2]))
	}
	if m := dayRangeRe.FindStringSubmatch(raw); m != nil {
		rep.Max24C = ptr(tenths(m[1], m[2]))
		rep.Min24C = ptr(tenths(m[3], m[4]))
	}
	if ts, ok := ParseObsTime(raw); ok {
		rep.ObsTime = &ts
	}
	return rep
}

// ParseObsTime reads the YYYY/MM/DD HH:MM UTC header line the tgftp METAR
// files carry above the observation itself.
func ParseObsTime(raw string) (time.Time, bool) {
	m := obsTimeRe.FindStringSubmatch(raw)
	if m == nil {
		return time.Time{}, false
	}
	year, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	day, _ := strconv.Atoi(m[3])
	hour, _ := strconv.Atoi(m[4])
	min, _ := strconv.Atoi(m[5])
	if month < 1 || month > 12 || day < 1 || day > 31 || hour > 23 || min > 59 {
		return time.Time{}, false
	}
	return time.Date(year, time.Month(month), day, hour, min, 0, 0, time.UTC), true
}

// tenths decodes a sign digit (1 = negative) plus three digits of tenths C.
func tenths(sign, digits string) float64 {
	v, _ := strconv.Atoi(digits)
	c := float64(v) / 10
	if sign == "1" {
		c = -c
	}
	return c
}

// whole decodes a body-group temperature, M prefix for minus.
func whole(s string) float64 {
	neg := false
	if s[0] == 'M' {
		neg = true
		s = s[1:]
	}
	v, _ := strconv.Atoi(s)
	if neg {
		return -float64(v)
	}
	return float64(v)
}

func ptr(v float64) *float64 { return &v }
