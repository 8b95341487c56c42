// Package kalshi is a read-only client for the Kalshi trade API.
//
// Every request is signed with the account's RSA key (PSS over
// timestamp+method+path) and checked against a path allowlist before any
// network I/O: only market-data GETs are ever sent. Order endpoints are
// structurally unreachable from this package.
package kalshi

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"kalshi-weather/internal/config"
	"kalshi-weather/internal/transport"
)

const (
	apiPrefix = "/trade-api/v2"

	// Cursor pagination is bounded so a venue bug can never spin us forever.
	maxPages = 100
)

// ErrPathNotAllowed is returned when a request targets anything outside the
// read-only market-data surface.
var ErrPathNotAllowed = errors.New("kalshi: path not in read-only allowlist")

// readOnlyPrefixes is the full set of venue paths this client may touch.
var readOnlyPrefixes = []string{
	apiPrefix + "/series",
	apiPrefix + "/events",
	apiPrefix + "/markets",
}

// Client talks to the Kalshi trade API. Safe for concurrent use.
type Client struct {
	http   *resty.Client
	keyID  string
	key    *rsa.PrivateKey
	logger *slog.Logger
	now    func() time.Time
}

// New builds a client from config, loading the RSA private key from disk.
func New(cfg config.KalshiConfig, logger *slog.Logger) (*Client, error) {
	key, err := LoadPrivateKey(cfg.PrivateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("load private key: %w", err)
	}
	httpClient := transport.New(transport.Options{
		BaseURL:        cfg.BaseURL,
		Timeout:        cfg.Timeout,
		RequestsPerSec: cfg.RequestsPerSec,
		Logger:         logger,
	})
	return NewWithKey(httpClient, cfg.APIKeyID, key, logger), nil
}

// NewWithKey builds a client around an existing HTTP client and key.
func NewWithKey(httpClient *resty.Client, keyID string, key *rsa.PrivateKey, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		http:   httpClient,
		keyID:  keyID,
		key:    key,
		logger: logger.With("component", "kalshi"),
		now:    time.Now,
	}
}

// LoadPrivateKey reads an RSA private key in PKCS#1 or PKCS#8 PEM form.
func LoadPrivateKey(path string) (*rsa.PrivateKey, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, fmt.Errorf("no PEM block in %s", path)
	}
	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("private key in %s is %T, want RSA", path, parsed)
	}
	return key, nil
}

// sign produces the request signature: RSA-PSS SHA-256 (salt length equal to
// the digest) over timestampMs + METHOD + path, where path includes the
// /trade-api/v2 prefix and excludes any query string.
func (c *Client) sign(timestampMs, method, path string) (string, error) {
	msg := timestampMs + method + path
	digest := sha256.Sum256([]byte(msg))
	sig, err := rsa.SignPSS(rand.Reader, c.key, crypto.SHA256, digest[:], &rsa.PSSOptions{
		SaltLength: rsa.PSSSaltLengthEqualsHash,
		Hash:       crypto.SHA256,
	})
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(sig), nil
}

func pathAllowed(method, path string) bool {
	if method != "GET" {
		return false
	}
	for _, prefix := range readOnlyPrefixes {
		if path == prefix || strings.HasPrefix(path, prefix+"/") || strings.HasPrefix(path, prefix+"?") {
			return true
		}
	}
	return false
}

// get performs a signed GET against the venue. path must carry the
// /trade-api/v2 prefix without query parameters; query goes in params.
func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	if !pathAllowed("GET", path) {
		return fmt.Errorf("%w: GET %s", ErrPathNotAllowed, path)
	}

	ts := strconv.FormatInt(c.now().UnixMilli(), 10)
	sig, err := c.sign(ts, "GET", path)
	if err != nil {
		return fmt.Errorf("sign request: %w", err)
	}

	req := c.http.R().
		SetContext(ctx).
		SetHeader("KALSHI-ACCESS-KEY", c.keyID).
		SetHeader("KALSHI-ACCESS-TIMESTAMP", ts).
		SetHeader("KALSHI-ACCESS-SIGNATURE", sig).
		SetHeader("Accept", "application/json")
	for k, vs := range params {
		for _, v := range vs {
			req.SetQueryParam(k, v)
		}
	}

	resp, err := req.Get(path)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	if resp.IsError() {
		apiErr := &APIError{StatusCode: resp.StatusCode()}
		var body errorResponse
		if json.Unmarshal(resp.Body(), &body) == nil {
			apiErr.Code = body.Error.Code
			apiErr.Message = body.Error.Message
		}
		return apiErr
	}
	if out != nil {
		if err := json.Unmarshal(resp.Body(), out); err != nil {
			return fmt.Errorf("decode %s: %w", path, err)
		}
	}
	return nil
}

// ListSeries returns series in a category, optionally filtered by tags.
func (c *Client) ListSeries(ctx context.Context, category string, tags []string) ([]Series, error) {
	params := url.Values{}
	if category != "" {
		params.Set("category", category)
	}
	if len(tags) > 0 {
		params.Set("tags", strings.Join(tags, ","))
	}
	var out seriesResponse
	if err := c.get(ctx, apiPrefix+"/series", params, &out); err != nil {
		return nil, err
	}
	return out.Series, nil
}

// ListEvents returns one page of events for a series.
func (c *Client) ListEvents(ctx context.Context, seriesTicker, status, cursor string, withNestedMarkets bool) ([]Event, string, error) {
	params := url.Values{}
	params.Set("limit", "200")
	if seriesTicker != "" {
		params.Set("series_ticker", seriesTicker)
	}
	if status != "" {
		params.Set("status", status)
	}
	if cursor != "" {
		params.Set("cursor", cursor)
	}
	if withNestedMarkets {
		params.Set("with_nested_markets", "true")
	}
	var out eventsResponse
	if err := c.get(ctx, apiPrefix+"/events", params, &out); err != nil {
		return nil, "", err
	}
	return out.Events, out.Cursor, nil
}

// ListAllEvents walks the cursor until the venue reports no more pages.
func (c *Client) ListAllEvents(ctx context.Context, seriesTicker, status string, withNestedMarkets bool) ([]Event, error) {
	var all []Event
	cursor := ""
	for page := 0; page < maxPages; page++ {
		events, next, err := c.ListEvents(ctx, seriesTicker, status, cursor, withNestedMarkets)
		if err != nil {
			return nil, err
		}
		all = append(all, events...)
		if next == "" {
			return all, nil
		}
		cursor = next
	}
	c.logger.Warn("event pagination hit page cap", "series", seriesTicker, "pages", maxPages)
	return all, nil
}

// GetEvent fetches a single event with its nested markets.
func (c *Client) GetEvent(ctx context.Context, eventTicker string) (*Event, error) {
	params := url.Values{}
	params.Set("with_nested_markets", "true")
	var out eventResponse
	if err := c.get(ctx, apiPrefix+"/events/"+eventTicker, params, &out); err != nil {
		return nil, err
	}
	ev := out.Event
	if len(ev.Markets) == 0 {
		ev.Markets = out.Markets
	}
	return &ev, nil
}

// ListMarkets returns all markets under one event.
func (c *Client) ListMarkets(ctx context.Context, eventTicker string) ([]Market, error) {
	var all []Market
	cursor := ""
	for page := 0; page < maxPages; page++ {
		params := url.Values{}
		params.Set("event_ticker", eventTicker)
		params.Set("limit", "200")
		if cursor != "" {
			params.Set("cursor", cursor)
		}
		var out marketsResponse
		if err := c.get(ctx, apiPrefix+"/markets", params, &out); err != nil {
			return nil, err
		}
		all = append(all, out.Markets...)
		if out.Cursor == "" {
			return all, nil
		}
		cursor = out.Cursor
	}
	return all, nil
}

// GetOrderbook fetches the resting bids for one market.
func (c *Client) GetOrderbook(ctx context.Context, marketTicker string, depth int) (*Orderbook, error) {
	params := url.Values{}
	if depth > 0 {
		params.Set("depth", strconv.Itoa(depth))
	}
	var out orderbookResponse
	if err := c.get(ctx, apiPrefix+"/markets/"+marketTicker+"/orderbook", params, &out); err != nil {
		return nil, err
	}
	return &out.Orderbook, nil
}
