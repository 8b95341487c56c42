// Package transport builds the outbound HTTP clients shared by the venue and
// weather layers: resty clients with a per-source rate budget and retry with
// jittered exponential backoff.
package transport

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

const (
	maxAttempts = 3
	baseBackoff = 500 * time.Millisecond
	maxBackoff  = 8 * time.Second
)

// Options configures a client for one upstream source.
type Options struct {
	BaseURL        string
	Timeout        time.Duration
	RequestsPerSec float64
	UserAgent      string
	Logger         *slog.Logger
}

// Retryable reports whether a response/error pair is worth retrying:
// transport failures, rate limiting, and server errors. Client errors other
// than 429 are final.
func Retryable(resp *resty.Response, err error) bool {
	if err != nil {
		// a canceled caller unwinds, it does not retry
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return false
		}
		return true
	}
	if resp == nil {
		return false
	}
	code := resp.StatusCode()
	return code == http.StatusTooManyRequests || code >= 500
}

// Backoff returns the wait before the given retry attempt (0-based):
// base doubled per attempt plus up to 25% jitter, capped.
func Backoff(attempt int) time.Duration {
	d := baseBackoff << uint(attempt)
	if d > maxBackoff {
		d = maxBackoff
	}
	jitter := time.Duration(rand.Int63n(int64(d) / 4))
	return d + jitter
}

// New returns a resty client wired with the source's rate budget and the
// shared retry policy. Every request waits on the limiter first, honoring
// context cancellation.
func New(opts Options) *resty.Client {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	// rps 0 means unthrottled, not frozen
	limit := rate.Inf
	if opts.RequestsPerSec > 0 {
		limit = rate.Limit(opts.RequestsPerSec)
	}
	limiter := rate.NewLimiter(limit, 1)

	client := resty.New().
		SetBaseURL(opts.BaseURL).
		SetTimeout(opts.Timeout).
		SetRetryCount(maxAttempts - 1).
		SetRetryWaitTime(baseBackoff).
		SetRetryMaxWaitTime(maxBackoff).
		SetRetryAfter(func(_ *resty.Client, resp *resty.Response) (time.Duration, error) {
			attempt := 0
			if resp != nil && resp.Request != nil {
				attempt = resp.Request.Attempt - 1
			}
			return Backoff(attempt), nil
		}).
		AddRetryCondition(func(resp *resty.Response, err error) bool {
			retry := Retryable(resp, err)
			// resp is nil when a request hook fails before any attempt
			if retry && resp != nil && resp.Request != nil {
				logger.Warn("retrying request",
					"url", resp.Request.URL,
					"attempt", resp.Request.Attempt,
					"status", resp.StatusCode())
			}
			return retry
		}).
		OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
			return limiter.Wait(req.Context())
		})

	if opts.UserAgent != "" {
		client.SetHeader("User-Agent", opts.UserAgent)
	}
	return client
}
