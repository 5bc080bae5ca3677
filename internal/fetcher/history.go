package fetcher

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/rs/zerolog"

	"skinport-sniper/internal/market"
	"skinport-sniper/internal/ratelimit"
)

const (
	salesHistoryPath       = "/v1/sales/history"
	defaultRetryAfter      = 60 * time.Second
	defaultHistoryTimeout  = 15 * time.Second
	maxHistoryPayloadBytes = 4 << 20
)

// HistoryOptions parameterise the sales-history fetcher.
type HistoryOptions struct {
	BaseURL    string
	AppID      int
	Currency   string
	Timeout    time.Duration
	UserAgent  string
	RetryAfter time.Duration
	// Sleep overrides how rate-limit pauses are waited out.
	Sleep func(ctx context.Context, d time.Duration) error
}

// History looks up item statistics on the Skinport sales-history endpoint.
type History struct {
	opts    HistoryOptions
	limiter Admitter
	logger  zerolog.Logger
	client  *http.Client
	baseURL string

	sleep func(ctx context.Context, d time.Duration) error
}

// NewHistory constructs a history fetcher gated by limiter.
func NewHistory(opts HistoryOptions, limiter Admitter, logger zerolog.Logger) *History {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultHistoryTimeout
	}
	if opts.RetryAfter <= 0 {
		opts.RetryAfter = defaultRetryAfter
	}
	if opts.AppID == 0 {
		opts.AppID = 730
	}
	if opts.Currency == "" {
		opts.Currency = "CAD"
	}

	sleep := opts.Sleep
	if sleep == nil {
		sleep = ratelimit.Sleep
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.skinport.com"
	}

	return &History{
		opts:    opts,
		limiter: limiter,
		logger:  logger.With().Str("component", "history_fetcher").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
		sleep:   sleep,
	}
}

// FetchHistory performs one rate-limited lookup. A 429 sleeps for the advertised
// Retry-After before returning an ErrRetryable error; the lookup is not retried.
func (h *History) FetchHistory(ctx context.Context, marketHashName string) (market.HistoricalStats, error) {
	if h.limiter != nil {
		if wait := h.limiter.Admit(); wait > 0 {
			h.logger.Info().Dur("wait", wait).Str("item", marketHashName).Msg("request window full, pausing")
			if err := h.sleep(ctx, wait); err != nil {
				return market.HistoricalStats{}, failed(marketHashName, 0, err)
			}
		}
	}

	req, err := h.newRequest(ctx, marketHashName)
	if err != nil {
		return market.HistoricalStats{}, failed(marketHashName, 0, err)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return market.HistoricalStats{}, failed(marketHashName, 0, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return market.HistoricalStats{}, h.throttled(ctx, marketHashName, resp)
	case resp.StatusCode != http.StatusOK:
		payload, _ := readBody(resp)
		return market.HistoricalStats{}, failed(marketHashName, resp.StatusCode, parseHTTPError(resp.StatusCode, payload))
	}

	payload, err := readBody(resp)
	if err != nil {
		return market.HistoricalStats{}, failed(marketHashName, resp.StatusCode, fmt.Errorf("read history body: %w", err))
	}

	stats, err := market.ParseHistory(payload, marketHashName)
	if err != nil {
		return market.HistoricalStats{}, failed(marketHashName, resp.StatusCode, err)
	}

	h.logger.Debug().Str("item", marketHashName).Bool("has_avg_7d", stats.Last7d.Avg.Valid).Msg("history fetched")
	return stats, nil
}

func (h *History) newRequest(ctx context.Context, marketHashName string) (*http.Request, error) {
	query := url.Values{}
	query.Set("app_id", strconv.Itoa(h.opts.AppID))
	query.Set("currency", h.opts.Currency)
	query.Set("market_hash_name", marketHashName)

	endpoint := h.baseURL + salesHistoryPath + "?" + query.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Encoding", "br")
	if ua := strings.TrimSpace(h.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	} else {
		req.Header.Set("User-Agent", "dealsniper/1.0")
	}
	return req, nil
}

// throttled handles a 429: the speculative admission is handed back, since the
// server's own backoff already covers it, and the caller sleeps Retry-After.
func (h *History) throttled(ctx context.Context, marketHashName string, resp *http.Response) error {
	if h.limiter != nil {
		h.limiter.Refund()
	}

	retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"), h.opts.RetryAfter)
	h.logger.Warn().Str("item", marketHashName).Dur("retry_after", retryAfter).Msg("history endpoint throttled request")

	ferr := &FetchError{Kind: KindRetryable, Item: marketHashName, Status: resp.StatusCode, RetryAfter: retryAfter}
	if err := h.sleep(ctx, retryAfter); err != nil {
		ferr.Err = err
	}
	return ferr
}

func parseRetryAfter(value string, fallback time.Duration) time.Duration {
	seconds, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || seconds < 0 {
		return fallback
	}
	return time.Duration(seconds) * time.Second
}

func readBody(resp *http.Response) ([]byte, error) {
	var reader io.Reader = resp.Body
	switch strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))) {
	case "br":
		reader = brotli.NewReader(resp.Body)
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, err
		}
		defer gz.Close()
		reader = gz
	}
	return io.ReadAll(io.LimitReader(reader, maxHistoryPayloadBytes))
}

type errorResponse struct {
	Message string `json:"message"`
	Errors  []struct {
		ID      string `json:"id"`
		Message string `json:"message"`
	} `json:"errors"`
}

func parseHTTPError(status int, payload []byte) error {
	var apiErr errorResponse
	if err := json.Unmarshal(payload, &apiErr); err == nil {
		if len(apiErr.Errors) > 0 && apiErr.Errors[0].Message != "" {
			return fmt.Errorf("skinport api error (%d): %s", status, apiErr.Errors[0].Message)
		}
		if apiErr.Message != "" {
			return fmt.Errorf("skinport api error (%d): %s", status, apiErr.Message)
		}
	}
	if len(payload) > 0 {
		return fmt.Errorf("skinport api error (%d): %s", status, strings.TrimSpace(string(payload)))
	}
	return fmt.Errorf("skinport api error (%d)", status)
}

var _ HistoryFetcher = (*History)(nil)
