package kalshi

import "fmt"

// APIError is a non-2xx venue response, carrying the HTTP status and the
// venue's own error code and message when the body could be parsed.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("kalshi: %d %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("kalshi: unexpected status %d", e.StatusCode)
}

// Series is one entry from GET /series.
type Series struct {
	Ticker    string   `json:"ticker"`
	Title     string   `json:"title"`
	Category  string   `json:"category"`
	Tags      []string `json:"tags"`
	Frequency string   `json:"frequency"`
}

// Event groups the markets settling on one outcome date.
type Event struct {
	EventTicker  string   `json:"event_ticker"`
	SeriesTicker string   `json:"series_ticker"`
	Title        string   `json:"title"`
	SubTitle     string   `json:"sub_title"`
	Category     string   `json:"category"`
	StrikeDate   string   `json:"strike_date"`
	Markets      []Market `json:"markets"`
}

// Market is one tradeable bracket within an event.
type Market struct {
	Ticker       string `json:"ticker"`
	EventTicker  string `json:"event_ticker"`
	Title        string `json:"title"`
	Subtitle     string `json:"subtitle"`
	YesSubTitle  string `json:"yes_sub_title"`
	NoSubTitle   string `json:"no_sub_title"`
	Status       string `json:"status"`
	YesBid       int    `json:"yes_bid"`
	YesAsk       int    `json:"yes_ask"`
	NoBid        int    `json:"no_bid"`
	NoAsk        int    `json:"no_ask"`
	LastPrice    int    `json:"last_price"`
	Volume       int    `json:"volume"`
	Volume24H    int    `json:"volume_24h"`
	OpenInterest int    `json:"open_interest"`
	CloseTime    string `json:"close_time"`
}

// Orderbook holds resting bids for both sides as [price, qty] pairs,
// ascending by price. The best bid is the last element.
type Orderbook struct {
	Yes [][]int `json:"yes"`
	No  [][]int `json:"no"`
}

type seriesResponse struct {
	Series []Series `json:"series"`
}

type eventsResponse struct {
	Events []Event `json:"events"`
	Cursor string  `json:"cursor"`
}

type eventResponse struct {
	Event   Event    `json:"event"`
	Markets []Market `json:"markets"`
}

type marketsResponse struct {
	Markets []Market `json:"markets"`
	Cursor  string   `json:"cursor"`
}

type orderbookResponse struct {
	Orderbook Orderbook `json:"orderbook"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}
