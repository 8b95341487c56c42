// Package slate assembles the daily output: it buckets and ranks enriched
// candidates, damps churn against the prior run, applies the risk caps and
// stakes, and persists the result as JSON plus a Markdown report.
package slate

import (
	"fmt"
	"sort"

	"kalshi-weather/internal/config"
	"kalshi-weather/internal/risk"
	"kalshi-weather/pkg/types"
)

var uncertaintyOrder = map[types.Uncertainty]int{
	types.UncertaintyLow:  0,
	types.UncertaintyMed:  1,
	types.UncertaintyHigh: 2,
}

var knifeOrder = map[types.KnifeEdge]int{
	types.KnifeLow:  0,
	types.KnifeMed:  1,
	types.KnifeHigh: 2,
}

// HardRejectReasons returns the gate failures for a candidate, in the order
// they are checked. Any failure forces the REJECTED bucket regardless of
// price.
func HardRejectReasons(c *types.UnifiedCandidate) []string {
	var reasons []string

	switch {
	case c.MappingConfidence == nil:
		reasons = append(reasons, "city not mapped to a settlement station")
	case *c.MappingConfidence != types.MappingHigh:
		reasons = append(reasons, fmt.Sprintf("station mapping confidence %s", *c.MappingConfidence))
	}

	if c.Book == nil || c.Book.ImpliedNoAsk == nil {
		reasons = append(reasons, "no implied NO ask")
	}

	if c.Plan != nil && c.Plan.Spread == types.SpreadReject {
		reasons = append(reasons, "spread: "+c.Plan.SpreadNote)
	}

	if c.Accounting != nil && c.Accounting.NoTradeReason != "" {
		reasons = append(reasons, c.Accounting.NoTradeReason)
	}

	if c.Model != nil && c.Model.LockIn == types.Locking {
		if c.MarketType == types.LowTemp {
			reasons = append(reasons, "daily low is locking in")
		} else {
			reasons = append(reasons, "daily high is locking in")
		}
	}

	return reasons
}

// ClassifyBucket places one candidate. PRIMARY needs the ask inside the
// primary band with room to work an order; the same band without room is
// TIGHT; the flanks of the scan window are NEAR_MISS.
func ClassifyBucket(c *types.UnifiedCandidate, cfg config.ScanConfig) (types.Bucket, string) {
	if reasons := HardRejectReasons(c); len(reasons) > 0 {
		return types.BucketRejected, reasons[0]
	}

	ask := *c.Book.ImpliedNoAsk
	room := 0
	if c.Book.BidRoom != nil {
		room = *c.Book.BidRoom
	}

	inBand := ask >= cfg.PrimaryMinCents && ask <= cfg.PrimaryMaxCents
	switch {
	case inBand && room >= cfg.MinRoomCents:
		return types.BucketPrimary, fmt.Sprintf("ask %d in [%d,%d] with room %d",
			ask, cfg.PrimaryMinCents, cfg.PrimaryMaxCents, room)
	case inBand:
		return types.BucketTight, fmt.Sprintf("ask %d in [%d,%d] but room %d",
			ask, cfg.PrimaryMinCents, cfg.PrimaryMaxCents, room)
	case ask >= cfg.WindowMinCents && ask <= cfg.WindowMaxCents:
		return types.BucketNearMiss, fmt.Sprintf("ask %d just outside [%d,%d]",
			ask, cfg.PrimaryMinCents, cfg.PrimaryMaxCents)
	default:
		return types.BucketRejected, fmt.Sprintf("ask %d outside scan window", ask)
	}
}

// rankLess orders candidates within a bucket: EV first, then model
// confidence, then book depth, then how soon the volatility window closes.
func rankLess(a, b *types.UnifiedCandidate) bool {
	evA, evB := 0.0, 0.0
	if a.Accounting != nil {
		evA = a.Accounting.EVNetCents
	}
	if b.Accounting != nil {
		evB = b.Accounting.EVNetCents
	}
	if evA != evB {
		return evA > evB
	}

	uncA, uncB := 2, 2
	knfA, knfB := 2, 2
	hrsA, hrsB := 0.0, 0.0
	if a.Model != nil {
		uncA = uncertaintyOrder[a.Model.Uncertainty]
		knfA = knifeOrder[a.Model.KnifeEdge]
		hrsA = a.Model.HoursToWindowEnd
	}
	if b.Model != nil {
		uncB = uncertaintyOrder[b.Model.Uncertainty]
		knfB = knifeOrder[b.Model.KnifeEdge]
		hrsB = b.Model.HoursToWindowEnd
	}
	if uncA != uncB {
		return uncA < uncB
	}
	if knfA != knfB {
		return knfA < knfB
	}

	depthA, depthB := 0, 0
	if a.Book != nil {
		depthA = a.Book.Top3NoQty()
	}
	if b.Book != nil {
		depthB = b.Book.Top3NoQty()
	}
	if depthA != depthB {
		return depthA > depthB
	}
	return hrsA > hrsB
}

// Buckets holds the classified, ranked candidates.
type Buckets struct {
	Primary  []types.UnifiedCandidate
	Tight    []types.UnifiedCandidate
	NearMiss []types.UnifiedCandidate
	Rejected []types.UnifiedCandidate
}

// Assemble buckets, ranks, and caps the enriched candidates. Overflow past
// the primary pick limit is demoted to the front of TIGHT with its rank kept
// for traceability. Risk caps and stakes apply to the surviving primaries.
func Assemble(cands []types.UnifiedCandidate, scanCfg config.ScanConfig, riskCfg config.RiskConfig) Buckets {
	var b Buckets
	for i := range cands {
		c := cands[i]
		if c.Bucket == "" {
			c.Bucket, c.BucketReason = ClassifyBucket(&c, scanCfg)
		}
		if c.Bucket == types.BucketRejected && len(c.RejectReasons) == 0 {
			c.RejectReasons = HardRejectReasons(&c)
		}
		switch c.Bucket {
		case types.BucketPrimary:
			b.Primary = append(b.Primary, c)
		case types.BucketTight:
			b.Tight = append(b.Tight, c)
		case types.BucketNearMiss:
			b.NearMiss = append(b.NearMiss, c)
		default:
			b.Rejected = append(b.Rejected, c)
		}
	}

	for _, bucket := range []*[]types.UnifiedCandidate{&b.Primary, &b.Tight, &b.NearMiss, &b.Rejected} {
		list := *bucket
		sort.SliceStable(list, func(i, j int) bool { return rankLess(&list[i], &list[j]) })
		for i := range list {
			list[i].Rank = i + 1
		}
	}

	if len(b.Primary) > scanCfg.MaxPrimary {
		overflow := b.Primary[scanCfg.MaxPrimary:]
		b.Primary = b.Primary[:scanCfg.MaxPrimary]
		for i := range overflow {
			overflow[i].Bucket = types.BucketTight
			overflow[i].BucketReason += " (demoted: exceeded pick limit)"
		}
		b.Tight = append(append([]types.UnifiedCandidate{}, overflow...), b.Tight...)
	}

	risk.EnforceCaps(b.Primary, riskCfg)
	risk.AllocateStakes(b.Primary, riskCfg)
	return b
}
