// Package types defines shared data structures used across all packages.
//
// This package is the common vocabulary for the scanner: market candidates,
// order book snapshots, model and accounting outputs, and the daily slate.
// It has no dependencies on internal packages, so it can be imported by any
// layer. All records carry snake_case JSON tags so a persisted slate can be
// re-read byte-for-byte by a later run.
package types

import "time"

// ————————————————————————————————————————————————————————————————————————
// Core enums
// ————————————————————————————————————————————————————————————————————————

// MarketType classifies a temperature series: daily high, daily low, or
// something we do not trade.
type MarketType string

const (
	HighTemp MarketType = "HIGH_TEMP"
	LowTemp  MarketType = "LOW_TEMP"
	Other    MarketType = "OTHER"
)

// MappingConfidence grades how sure we are that a market's city maps to the
// settlement station we think it does. Anything below HIGH is a hard reject.
type MappingConfidence string

const (
	MappingHigh MappingConfidence = "HIGH"
	MappingMed  MappingConfidence = "MED"
	MappingLow  MappingConfidence = "LOW"
)

// Uncertainty is the model's overall confidence grade for a candidate.
type Uncertainty string

const (
	UncertaintyLow  Uncertainty = "LOW"
	UncertaintyMed  Uncertainty = "MED"
	UncertaintyHigh Uncertainty = "HIGH"
)

// LockIn says whether the day's extreme is effectively decided: the
// volatility window has passed and a new extreme is very unlikely.
type LockIn string

const (
	Locking   LockIn = "LOCKING"
	NotLocked LockIn = "NOT_LOCKED"
)

// KnifeEdge grades how close the expected temperature sits to a bracket
// boundary. HIGH means settlement can flip on a single degree.
type KnifeEdge string

const (
	KnifeLow  KnifeEdge = "LOW"
	KnifeMed  KnifeEdge = "MED"
	KnifeHigh KnifeEdge = "HIGH"
)

// Bucket is the slate classification for a candidate.
type Bucket string

const (
	BucketPrimary  Bucket = "PRIMARY"   // in the buy window with room to work an order
	BucketTight    Bucket = "TIGHT"     // in the buy window but little or no room
	BucketNearMiss Bucket = "NEAR_MISS" // just outside the window, worth watching
	BucketRejected Bucket = "REJECTED"
)

// LiquidityVerdict is the execution planner's depth assessment.
type LiquidityVerdict string

const (
	LiquidityOK     LiquidityVerdict = "OK"
	LiquidityThin   LiquidityVerdict = "THIN"
	LiquidityReject LiquidityVerdict = "REJECT"
)

// SpreadVerdict is the execution planner's spread assessment.
type SpreadVerdict string

const (
	SpreadOK            SpreadVerdict = "OK"
	SpreadWideException SpreadVerdict = "WIDE_EXCEPTION"
	SpreadReject        SpreadVerdict = "REJECT"
)

// ————————————————————————————————————————————————————————————————————————
// Order book
// ————————————————————————————————————————————————————————————————————————

// BookLevel is a single resting bid level: price in cents, quantity in
// contracts.
type BookLevel struct {
	PriceCents int `json:"price_cents"`
	Qty        int `json:"qty"`
}

// OrderbookSnapshot is a point-in-time view of one market's book, reduced to
// the fields the pipeline reasons about. The venue only exposes bids; asks
// are implied from the opposite side (buying NO at X fills against a YES bid
// at 100-X). Nil pointers mean the side was empty.
type OrderbookSnapshot struct {
	BestYesBid    *int `json:"best_yes_bid"`
	BestYesBidQty *int `json:"best_yes_bid_qty"`
	BestNoBid     *int `json:"best_no_bid"`
	BestNoBidQty  *int `json:"best_no_bid_qty"`

	ImpliedYesAsk *int `json:"implied_yes_ask"` // 100 - best NO bid
	ImpliedNoAsk  *int `json:"implied_no_ask"`  // 100 - best YES bid
	BidRoom       *int `json:"bid_room"`        // implied NO ask - best NO bid

	// Top three levels each side, highest price first.
	TopYes []BookLevel `json:"top_yes"`
	TopNo  []BookLevel `json:"top_no"`

	FetchedAt time.Time `json:"fetched_at"`
}

// Top3NoQty sums the contract depth across the reported NO levels.
func (ob *OrderbookSnapshot) Top3NoQty() int {
	total := 0
	for _, lvl := range ob.TopNo {
		total += lvl.Qty
	}
	return total
}

// ————————————————————————————————————————————————————————————————————————
// Pipeline records
// ————————————————————————————————————————————————————————————————————————

// RawCandidate is a market that passed the scan filter, before enrichment.
type RawCandidate struct {
	SeriesTicker string     `json:"series_ticker"`
	EventTicker  string     `json:"event_ticker"`
	MarketTicker string     `json:"market_ticker"`
	MarketType   MarketType `json:"market_type"`

	City       string `json:"city"`
	Station    string `json:"station"`  // ICAO id, empty when the city is unmapped
	CLICode    string `json:"cli_code"` // NWS CLI issuing office code
	TargetDate string `json:"target_date"`

	// Nil when the city could not be matched to a tracked station at all.
	MappingConfidence *MappingConfidence `json:"mapping_confidence"`

	BracketText string `json:"bracket_text"`
	Status      string `json:"status"`
	URL         string `json:"url"`

	Book *OrderbookSnapshot `json:"book"`
}

// ModelOutput is the probability modeler's verdict for one candidate.
type ModelOutput struct {
	PBracket    float64 `json:"p_bracket"`     // probability the bracket settles YES
	PNewExtreme float64 `json:"p_new_extreme"` // probability of a new daily extreme from here

	Mu    *float64 `json:"mu"` // expected settlement temperature, nil when unknown
	Sigma float64  `json:"sigma"`

	ForecastPeakF *float64 `json:"forecast_peak_f"`
	CurrentTempF  *float64 `json:"current_temp_f"`

	VolWindowEnd     *time.Time `json:"vol_window_end"`
	HoursToWindowEnd float64    `json:"hours_to_window_end"`

	LockIn      LockIn      `json:"lock_in"`
	KnifeEdge   KnifeEdge   `json:"knife_edge"`
	Uncertainty Uncertainty `json:"uncertainty"`

	Notes []string `json:"notes,omitempty"`
}

// Accounting is the fee and expected-value arithmetic for buying NO. Fees
// and EV are taken at the planner's recommended limit.
type Accounting struct {
	TakerFeeCents int     `json:"taker_fee_cents"`
	MakerFeeCents int     `json:"maker_fee_cents"`
	EVNetCents    float64 `json:"ev_net_cents"` // per contract at the limit, maker fee included
	MaxBuyNoCents int     `json:"max_buy_no_cents"`
	ImpliedProb   float64 `json:"implied_prob"`
	EdgePct       float64 `json:"edge_pct"`

	Notes []string `json:"notes,omitempty"`

	// Empty when the trade clears the accounting gate.
	NoTradeReason string `json:"no_trade_reason,omitempty"`
}

// ExecutionPlan is the planner's read-only order guidance.
type ExecutionPlan struct {
	Liquidity     LiquidityVerdict `json:"liquidity"`
	LiquidityNote string           `json:"liquidity_note"`
	Spread        SpreadVerdict    `json:"spread"`
	SpreadNote    string           `json:"spread_note"`

	LimitPriceCents int    `json:"limit_price_cents"`
	FillOdds        string `json:"fill_odds"` // NORMAL, MODERATE, TIGHT, LOW
	PriceNote       string `json:"price_note,omitempty"`

	ManualSteps []string `json:"manual_steps"`
	CancelRules []string `json:"cancel_rules"`
}

// RiskRecommendation is the sizing layer's output for one candidate.
type RiskRecommendation struct {
	CorrelationGroup string   `json:"correlation_group"`
	MetroCluster     string   `json:"metro_cluster"`
	Multiplier       float64  `json:"multiplier"`
	StakeUSD         float64  `json:"stake_usd"`
	MaxLossUSD       float64  `json:"max_loss_usd"` // worst case on a buy-and-hold NO position
	Flags            []string `json:"flags"`
	Notes            []string `json:"notes,omitempty"`

	CapExcluded bool   `json:"cap_excluded"`
	CapReason   string `json:"cap_reason,omitempty"`
}

// UnifiedCandidate is a fully enriched candidate ready for bucketing.
type UnifiedCandidate struct {
	RawCandidate

	Model      *ModelOutput        `json:"model"`
	Accounting *Accounting         `json:"accounting"`
	Plan       *ExecutionPlan      `json:"plan"`
	Risk       *RiskRecommendation `json:"risk"`

	Bucket        Bucket   `json:"bucket"`
	BucketReason  string   `json:"bucket_reason"`
	Rank          int      `json:"rank"` // 1-based within its bucket, 0 = unranked
	RejectReasons []string `json:"reject_reasons,omitempty"`
}

// ScanStats summarizes one scan pass for the slate header.
type ScanStats struct {
	SeriesSeen    []string `json:"series_seen"`
	EventsSeen    int      `json:"events_seen"`
	MarketsSeen   int      `json:"markets_seen"`
	InWindow      int      `json:"in_window"`
	SkippedStatus int      `json:"skipped_status"`
	SkippedNoBook int      `json:"skipped_no_book"`
}

// DailySlate is the persisted output of one full scan run.
type DailySlate struct {
	TargetDate  string  `json:"target_date"`
	RunTime     string  `json:"run_time"` // "2006-01-02 15:04:05" local
	RunTag      string  `json:"run_tag"`
	BankrollUSD float64 `json:"bankroll_usd"`

	Primary  []UnifiedCandidate `json:"primary"`
	Tight    []UnifiedCandidate `json:"tight"`
	NearMiss []UnifiedCandidate `json:"near_miss"`
	Rejected []UnifiedCandidate `json:"rejected"`

	Stats      ScanStats `json:"stats"`
	DeltaNotes []string  `json:"delta_notes"`
}

// AllCandidates returns every candidate across buckets, primary first.
func (s *DailySlate) AllCandidates() []UnifiedCandidate {
	out := make([]UnifiedCandidate, 0,
		len(s.Primary)+len(s.Tight)+len(s.NearMiss)+len(s.Rejected))
	out = append(out, s.Primary...)
	out = append(out, s.Tight...)
	out = append(out, s.NearMiss...)
	out = append(out, s.Rejected...)
	return out
}
