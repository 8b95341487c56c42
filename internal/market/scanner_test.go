package market

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"kalshi-weather/internal/config"
	"kalshi-weather/internal/kalshi"
	"kalshi-weather/pkg/types"
)

type fakeVenue struct {
	series []kalshi.Series
	events map[string][]kalshi.Event
	books  map[string]*kalshi.Orderbook
}

func (f *fakeVenue) ListSeries(_ context.Context, _ string, _ []string) ([]kalshi.Series, error) {
	return f.series, nil
}

func (f *fakeVenue) ListAllEvents(_ context.Context, seriesTicker, _ string, _ bool) ([]kalshi.Event, error) {
	return f.events[seriesTicker], nil
}

func (f *fakeVenue) GetOrderbook(_ context.Context, ticker string, _ int) (*kalshi.Orderbook, error) {
	return f.books[ticker], nil
}

func testScanConfig() config.ScanConfig {
	cfg := config.Default().Scan
	cfg.TargetDate = "2026-08-25"
	return cfg
}

func testScanner(venue Venue) *Scanner {
	s := NewScanner(venue, testScanConfig(), nil)
	s.now = func() time.Time { return time.Date(2026, 8, 25, 13, 30, 0, 0, time.UTC) }
	return s
}

func TestClassifySeries(t *testing.T) {
	t.Parallel()

	require.Equal(t, types.HighTemp, ClassifySeries("KXHIGHNY"))
	require.Equal(t, types.HighTemp, ClassifySeries("kxhighchi"))
	require.Equal(t, types.LowTemp, ClassifySeries("KXLOWDEN"))
	require.Equal(t, types.Other, ClassifySeries("KXBTC"))
	require.Equal(t, types.Other, ClassifySeries("HIGHKX"))
}

func TestExtractCity(t *testing.T) {
	t.Parallel()

	require.Equal(t, "New York",
		ExtractCity("Highest temperature in New York on Aug 25, 2026?"))
	require.Equal(t, "Oklahoma City",
		ExtractCity("Lowest temperature in Oklahoma City today?"))
	require.Equal(t, "", ExtractCity("Will it rain in Seattle?"))
}

func TestEventDate(t *testing.T) {
	t.Parallel()

	date, ok := EventDate("KXHIGHNY-25AUG26")
	require.True(t, ok)
	require.Equal(t, "2026-08-25", date)

	_, ok = EventDate("KXHIGHNY")
	require.False(t, ok)
}

func TestParseOrderbook(t *testing.T) {
	t.Parallel()

	// ascending bids, best bid last: YES best 8, NO best 89
	book := &kalshi.Orderbook{
		Yes: [][]int{{3, 50}, {5, 100}, {8, 120}},
		No:  [][]int{{80, 5}, {85, 10}, {87, 15}, {89, 40}},
	}
	snap := ParseOrderbook(book, time.Now())

	require.Equal(t, 8, *snap.BestYesBid)
	require.Equal(t, 120, *snap.BestYesBidQty)
	require.Equal(t, 89, *snap.BestNoBid)
	require.Equal(t, 92, *snap.ImpliedNoAsk) // 100 - best YES bid
	require.Equal(t, 11, *snap.ImpliedYesAsk)
	require.Equal(t, 3, *snap.BidRoom) // 92 - 89

	// top three levels, highest first
	require.Equal(t, []types.BookLevel{
		{PriceCents: 89, Qty: 40}, {PriceCents: 87, Qty: 15}, {PriceCents: 85, Qty: 10},
	}, snap.TopNo)
}

func TestParseOrderbookEmptySides(t *testing.T) {
	t.Parallel()

	snap := ParseOrderbook(&kalshi.Orderbook{No: [][]int{{85, 10}}}, time.Now())
	require.Nil(t, snap.BestYesBid)
	require.Nil(t, snap.ImpliedNoAsk)
	require.Nil(t, snap.BidRoom)
	require.Equal(t, 85, *snap.BestNoBid)

	empty := ParseOrderbook(nil, time.Now())
	require.Nil(t, empty.BestNoBid)
}

func TestScanFiltersWindowStatusAndDate(t *testing.T) {
	t.Parallel()

	venue := &fakeVenue{
		series: []kalshi.Series{
			{Ticker: "KXHIGHNY"},
			{Ticker: "KXBTC"}, // not a temperature series
		},
		events: map[string][]kalshi.Event{
			"KXHIGHNY": {
				{
					EventTicker: "KXHIGHNY-25AUG26",
					Title:       "Highest temperature in New York on Aug 25, 2026?",
					Markets: []kalshi.Market{
						{Ticker: "M-IN", Status: "active", YesSubTitle: "88° or above"},
						{Ticker: "M-OUT", Status: "active", YesSubTitle: "84° to 85°"},
						{Ticker: "M-CLOSED", Status: "settled", YesSubTitle: "86° to 87°"},
					},
				},
				{
					EventTicker: "KXHIGHNY-26AUG26", // tomorrow, skipped
					Title:       "Highest temperature in New York on Aug 26, 2026?",
					Markets:     []kalshi.Market{{Ticker: "M-TOMORROW", Status: "active"}},
				},
			},
		},
		books: map[string]*kalshi.Orderbook{
			"M-IN":  {Yes: [][]int{{8, 120}}, No: [][]int{{89, 40}}},  // implied NO ask 92
			"M-OUT": {Yes: [][]int{{60, 50}}, No: [][]int{{30, 10}}},  // implied NO ask 40
		},
	}

	s := testScanner(venue)
	cands, stats, err := s.Scan(context.Background())
	require.NoError(t, err)

	require.Len(t, cands, 1)
	c := cands[0]
	require.Equal(t, "M-IN", c.MarketTicker)
	require.Equal(t, "New York", c.City)
	require.Equal(t, "KNYC", c.Station)
	require.Equal(t, "NYC", c.CLICode)
	require.NotNil(t, c.MappingConfidence)
	require.Equal(t, types.MappingHigh, *c.MappingConfidence)
	require.Equal(t, "2026-08-25", c.TargetDate)
	require.Equal(t, "88° or above", c.BracketText)
	require.Equal(t, "https://kalshi.com/markets/M-IN", c.URL)
	require.Equal(t, 92, *c.Book.ImpliedNoAsk)

	require.Equal(t, []string{"KXHIGHNY"}, stats.SeriesSeen)
	require.Equal(t, 1, stats.EventsSeen)
	require.Equal(t, 3, stats.MarketsSeen)
	require.Equal(t, 1, stats.InWindow)
	require.Equal(t, 1, stats.SkippedStatus)
}

func TestScanUnmappedCityKeepsCandidate(t *testing.T) {
	t.Parallel()

	venue := &fakeVenue{
		series: []kalshi.Series{{Ticker: "KXHIGHZZZ"}},
		events: map[string][]kalshi.Event{
			"KXHIGHZZZ": {{
				EventTicker: "KXHIGHZZZ-25AUG26",
				Title:       "Highest temperature in Springfield on Aug 25, 2026?",
				Markets:     []kalshi.Market{{Ticker: "M-1", Status: "open", Title: "90° or above"}},
			}},
		},
		books: map[string]*kalshi.Orderbook{
			"M-1": {Yes: [][]int{{10, 10}}, No: [][]int{{88, 5}}},
		},
	}

	cands, _, err := testScanner(venue).Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, cands, 1)
	require.Equal(t, "Springfield", cands[0].City)
	require.Empty(t, cands[0].Station)
	require.Nil(t, cands[0].MappingConfidence)
	// bracket text falls back to the market title
	require.Equal(t, "90° or above", cands[0].BracketText)
}
