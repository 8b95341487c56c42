package alert

import (
	"fmt"
	"html/template"
	"strings"

	"kalshi-weather/internal/edge"
)

// SignalColor maps a signal to the hex color its panel is rendered in.
func SignalColor(signal string) string {
	switch edge.Signal(signal) {
	case edge.StrongBuy, edge.Buy:
		return "#22c55e"
	case edge.Hold:
		return "#eab308"
	case edge.Caution, edge.NoEdge:
		return "#ef4444"
	default:
		return "#6b7280"
	}
}

// ConvictionRow is one burst iteration in the trend table. Rows for bursts
// not yet taken render as pending placeholders.
type ConvictionRow struct {
	Index      int
	Total      int
	TimeLabel  string
	Signal     string // empty = pending
	TempF      *float64
	PriceCents *int
	Current    bool
}

// SpikeAlert is everything one burst email shows.
type SpikeAlert struct {
	City        string
	Bracket     string
	EmailNumber int
	EmailTotal  int
	TimeLabel   string

	OldPrice     int
	NewPrice     int
	CurrentPrice int
	Delta        int

	METARF       *int
	PreciseF     *float64
	PreciseC     *float64
	Source       string
	RunningMaxF  *int
	MarginC      *float64
	MarginStatus string

	Signal       string
	SignalReason string
	TimeRisk     string

	Rows []ConvictionRow
}

var spikeTmpl = template.Must(template.New("spike").Funcs(template.FuncMap{
	"color": SignalColor,
	"optInt": func(v *int) string {
		if v == nil {
			return "-"
		}
		return fmt.Sprintf("%d°F", *v)
	},
	"optF": func(v *float64) string {
		if v == nil {
			return "-"
		}
		return fmt.Sprintf("%.1f°F", *v)
	},
	"optC": func(v *float64) string {
		if v == nil {
			return ""
		}
		return fmt.Sprintf("(%.1f°C)", *v)
	},
	"margin": func(m *float64, status string) string {
		if m == nil {
			return "-"
		}
		return fmt.Sprintf("%+.2f°C (%s)", *m, status)
	},
	"optPrice": func(v *int) string {
		if v == nil {
			return ""
		}
		return fmt.Sprintf("%d¢", *v)
	},
}).Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"></head>
<body style="font-family:Consolas,monospace;background:#1a1a2e;color:#e0e0e0;padding:20px;">
<div style="max-width:600px;margin:0 auto;">

<h2 style="color:#fff;margin-bottom:4px;">SPIKE ALERT: {{.City}} {{.Bracket}}</h2>
<p style="color:#9ca3af;margin-top:0;">Email {{.EmailNumber}} of {{.EmailTotal}} &mdash; {{.TimeLabel}}</p>

<div style="background:#16213e;border-radius:8px;padding:16px;margin:12px 0;">
<h3 style="color:#9ca3af;margin:0 0 8px 0;font-size:13px;">MARKET</h3>
<p style="font-size:18px;margin:0;">
{{.OldPrice}}&cent; &rarr; {{.NewPrice}}&cent; (+{{.Delta}}&cent;) &mdash; now at {{.CurrentPrice}}&cent;
</p>
</div>

<div style="background:#16213e;border-radius:8px;padding:16px;margin:12px 0;">
<h3 style="color:#9ca3af;margin:0 0 8px 0;font-size:13px;">EDGE ANALYSIS</h3>
<table style="width:100%;color:#e0e0e0;font-size:14px;">
<tr><td style="color:#9ca3af;">METAR (rounded):</td><td>{{optInt .METARF}}</td></tr>
<tr><td style="color:#9ca3af;">Precise ({{.Source}}):</td><td>{{optF .PreciseF}} {{optC .PreciseC}}</td></tr>
<tr><td style="color:#9ca3af;">Running max:</td><td>{{optInt .RunningMaxF}}</td></tr>
<tr><td style="color:#9ca3af;">Margin:</td><td>{{margin .MarginC .MarginStatus}}</td></tr>
</table>
</div>

<div style="background:{{color .Signal}};border-radius:8px;padding:20px;margin:12px 0;text-align:center;">
<span style="font-size:24px;font-weight:bold;color:#fff;">{{.Signal}}</span>
<br>
<span style="font-size:13px;color:rgba(255,255,255,0.8);">Time risk: {{.TimeRisk}}</span>
</div>

<p style="color:#d1d5db;font-size:13px;margin:8px 0;">{{.SignalReason}}</p>

<div style="background:#16213e;border-radius:8px;padding:16px;margin:12px 0;">
<h3 style="color:#9ca3af;margin:0 0 8px 0;font-size:13px;">CONVICTION TREND</h3>
<table style="width:100%;color:#e0e0e0;font-size:13px;">
{{range .Rows}}{{if .Signal}}<tr>
<td>[{{.Index}}/{{.Total}}]</td>
<td>{{.TimeLabel}}</td>
<td style="color:{{color .Signal}};font-weight:bold;">{{.Signal}}</td>
<td>{{optF .TempF}}</td>
<td>{{optPrice .PriceCents}}{{if .Current}} &larr; you are here{{end}}</td>
</tr>
{{else}}<tr style="color:#9ca3af;">
<td>[{{.Index}}/{{.Total}}]</td>
<td>(pending)</td>
<td>(pending)</td>
<td></td>
<td></td>
</tr>
{{end}}{{end}}</table>
</div>

</div>
</body>
</html>`))

// RenderSpikeAlert renders the burst email body.
func RenderSpikeAlert(a *SpikeAlert) (string, error) {
	var sb strings.Builder
	if err := spikeTmpl.Execute(&sb, a); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// SpikeSubject builds the burst email subject line.
func SpikeSubject(a *SpikeAlert) string {
	return fmt.Sprintf("SPIKE: %s %s [%d/%d]", a.City, a.Bracket, a.EmailNumber, a.EmailTotal)
}
