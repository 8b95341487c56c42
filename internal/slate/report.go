package slate

import (
	"fmt"
	"strings"
	"text/template"

	"kalshi-weather/pkg/types"
)

const reportTemplate = `# Daily Slate: {{.TargetDate}}

Run: {{.RunTime}} (tag {{.RunTag}})
Bankroll: ${{printf "%.2f" .BankrollUSD}}

## Scan

- Series: {{join .Stats.SeriesSeen ", "}}
- Events: {{.Stats.EventsSeen}}, markets: {{.Stats.MarketsSeen}}, in window: {{.Stats.InWindow}}
- Skipped: {{.Stats.SkippedStatus}} by status, {{.Stats.SkippedNoBook}} without a book

## PRIMARY ({{len .Primary}})

{{candidateTable .Primary true}}
## TIGHT ({{len .Tight}})

{{candidateTable .Tight false}}
## NEAR MISS ({{len .NearMiss}})

{{candidateTable .NearMiss false}}
## REJECTED ({{len .Rejected}})

{{rejectList .Rejected}}
## Changes since prior run

{{range .DeltaNotes}}- {{.}}
{{end}}`

var reportTmpl = template.Must(template.New("report").Funcs(template.FuncMap{
	"join":           strings.Join,
	"candidateTable": candidateTable,
	"rejectList":     rejectList,
}).Parse(reportTemplate))

// RenderReport renders the slate as Markdown.
func RenderReport(s *types.DailySlate) (string, error) {
	var sb strings.Builder
	if err := reportTmpl.Execute(&sb, s); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func candidateTable(cands []types.UnifiedCandidate, withStake bool) string {
	if len(cands) == 0 {
		return "(none)\n"
	}
	var sb strings.Builder
	if withStake {
		sb.WriteString("| # | Market | City | Bracket | Ask | Room | EV (c) | Edge % | Stake | Flags |\n")
		sb.WriteString("|---|--------|------|---------|-----|------|--------|--------|-------|-------|\n")
	} else {
		sb.WriteString("| # | Market | City | Bracket | Ask | Room | EV (c) | Edge % | Reason |\n")
		sb.WriteString("|---|--------|------|---------|-----|------|--------|--------|--------|\n")
	}

	for _, c := range cands {
		ask, room := "-", "-"
		if c.Book != nil {
			if c.Book.ImpliedNoAsk != nil {
				ask = fmt.Sprintf("%d", *c.Book.ImpliedNoAsk)
			}
			if c.Book.BidRoom != nil {
				room = fmt.Sprintf("%d", *c.Book.BidRoom)
			}
		}
		ev, edge := "-", "-"
		if c.Accounting != nil {
			ev = fmt.Sprintf("%.1f", c.Accounting.EVNetCents)
			edge = fmt.Sprintf("%.1f", c.Accounting.EdgePct)
		}

		if withStake {
			stake, flags := "-", ""
			if c.Risk != nil {
				if c.Risk.CapExcluded {
					stake = "capped"
				} else {
					stake = fmt.Sprintf("$%.2f", c.Risk.StakeUSD)
				}
				flags = strings.Join(c.Risk.Flags, " ")
			}
			fmt.Fprintf(&sb, "| %d | [%s](%s) | %s | %s | %s | %s | %s | %s | %s | %s |\n",
				c.Rank, c.MarketTicker, c.URL, c.City, c.BracketText, ask, room, ev, edge, stake, flags)
		} else {
			fmt.Fprintf(&sb, "| %d | [%s](%s) | %s | %s | %s | %s | %s | %s | %s |\n",
				c.Rank, c.MarketTicker, c.URL, c.City, c.BracketText, ask, room, ev, edge, c.BucketReason)
		}
	}
	return sb.String()
}

func rejectList(cands []types.UnifiedCandidate) string {
	if len(cands) == 0 {
		return "(none)\n"
	}
	var sb strings.Builder
	for _, c := range cands {
		reason := c.BucketReason
		if len(c.RejectReasons) > 0 {
			reason = strings.Join(c.RejectReasons, "; ")
		}
		fmt.Fprintf(&sb, "- %s (%s): %s\n", c.MarketTicker, c.City, reason)
	}
	return sb.String()
}
