package twelvedata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"stockAlertsBot/internal/domain"
	"stockAlertsBot/internal/ports"

	"github.com/jpillora/backoff"
)

const defaultBaseURL = "https://api.twelvedata.com"

// exchangeTZ is the zone bar datetimes are quoted in by the provider.
const exchangeTZ = "America/New_York"

// Config holds configuration for the Twelve Data client.
type Config struct {
	APIKey        string
	BaseURL       string       // Defaults to the public API endpoint
	HTTPClient    *http.Client // Defaults to a client with a 30s timeout
	Logger        ports.Logger
	MaxRetries    int           // Attempts per request, default 3
	RateLimitWait time.Duration // Pause after a rate-limit response, default 60s
}

// Client fetches time series bars from the Twelve Data REST API. It owns
// retries, backoff and rate-limit handling; callers only see an ascending
// bar window or a wrapped sentinel error.
type Client struct {
	cfg      Config
	http     *http.Client
	logger   ports.Logger
	location *time.Location
}

// New creates a Twelve Data client.
func New(cfg Config) (*Client, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for Twelve Data client")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required: %w", ports.ErrConfigurationError)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RateLimitWait <= 0 {
		cfg.RateLimitWait = time.Minute
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	loc, err := time.LoadLocation(exchangeTZ)
	if err != nil {
		return nil, fmt.Errorf("failed to load exchange timezone: %w", err)
	}

	return &Client{cfg: cfg, http: httpClient, logger: cfg.Logger, location: loc}, nil
}

// Location returns the exchange-local zone bar timestamps are parsed in.
func (c *Client) Location() *time.Location {
	return c.location
}

// timeSeriesResponse is the provider's envelope. All OHLCV fields arrive as
// strings.
type timeSeriesResponse struct {
	Status  string       `json:"status"`
	Code    int          `json:"code"`
	Message string       `json:"message"`
	Values  []barPayload `json:"values"`
}

type barPayload struct {
	Datetime string `json:"datetime"`
	Open     string `json:"open"`
	High     string `json:"high"`
	Low      string `json:"low"`
	Close    string `json:"close"`
	Volume   string `json:"volume"`
}

// FetchTimeSeries fetches up to outputsize bars for symbol at the given
// interval, ordered oldest to newest.
func (c *Client) FetchTimeSeries(ctx context.Context, symbol, interval string, outputsize int) ([]*domain.Bar, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("interval", interval)
	params.Set("outputsize", strconv.Itoa(outputsize))
	params.Set("timezone", exchangeTZ)
	params.Set("order", "ASC")
	params.Set("apikey", c.cfg.APIKey)

	reqURL := c.cfg.BaseURL + "/time_series?" + params.Encode()

	b := &backoff.Backoff{Min: time.Second, Max: 30 * time.Second, Factor: 2, Jitter: true}

	var lastErr error
	for attempt := 1; attempt <= c.cfg.MaxRetries; attempt++ {
		payload, err := c.get(ctx, reqURL)
		if err == nil {
			return c.toBars(symbol, interval, payload), nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, fmt.Errorf("fetch canceled for %s: %w", symbol, ports.ErrContextCanceled)
		}
		if attempt == c.cfg.MaxRetries {
			break
		}

		wait := b.Duration()
		if isRateLimited(err) {
			wait = c.cfg.RateLimitWait
			c.logger.Warn(ctx, "Rate limit hit, waiting before retry", map[string]interface{}{
				"symbol": symbol, "attempt": attempt, "wait": wait.String(),
			})
		} else {
			c.logger.Debug(ctx, "Time series fetch retry", map[string]interface{}{
				"symbol": symbol, "attempt": attempt, "wait": wait.String(), "error": err.Error(),
			})
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("fetch canceled for %s: %w", symbol, ports.ErrContextCanceled)
		case <-time.After(wait):
		}
	}
	return nil, fmt.Errorf("fetch time series for %s after %d attempts: %w", symbol, c.cfg.MaxRetries, lastErr)
}

func (c *Client) get(ctx context.Context, reqURL string) (*timeSeriesResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ports.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, ports.ErrRateLimited
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: HTTP %d", ports.ErrProviderUnavailable, resp.StatusCode)
	}

	var payload timeSeriesResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ports.ErrBadPayload, err)
	}

	// Error responses arrive with HTTP 200 and a status field.
	if payload.Status == "error" {
		msg := strings.ToLower(payload.Message)
		if payload.Code == http.StatusTooManyRequests ||
			strings.Contains(msg, "credits") || strings.Contains(msg, "limit") {
			return nil, fmt.Errorf("%w: %s", ports.ErrRateLimited, payload.Message)
		}
		return nil, fmt.Errorf("%w: %s (%d)", ports.ErrProviderUnavailable, payload.Message, payload.Code)
	}
	return &payload, nil
}

// toBars converts the payload into an ascending, unique-by-timestamp window.
// Unparseable price fields degrade to NaN, volume to 0; a bar without a
// parseable datetime is dropped entirely.
func (c *Client) toBars(symbol, interval string, payload *timeSeriesResponse) []*domain.Bar {
	layout := "2006-01-02 15:04:05"
	if interval == "1day" || interval == "1week" || interval == "1month" {
		layout = "2006-01-02"
	}

	bars := make([]*domain.Bar, 0, len(payload.Values))
	for _, v := range payload.Values {
		ts, err := time.ParseInLocation(layout, v.Datetime, c.location)
		if err != nil {
			c.logger.Debug(context.Background(), "Dropping bar with bad datetime", map[string]interface{}{
				"symbol": symbol, "datetime": v.Datetime,
			})
			continue
		}
		bars = append(bars, &domain.Bar{
			Timestamp: ts,
			Symbol:    symbol,
			Interval:  interval,
			Open:      parsePrice(v.Open),
			High:      parsePrice(v.High),
			Low:       parsePrice(v.Low),
			Close:     parsePrice(v.Close),
			Volume:    parseVolume(v.Volume),
		})
	}

	sort.SliceStable(bars, func(i, j int) bool { return bars[i].Timestamp.Before(bars[j].Timestamp) })

	// Unique by timestamp, keeping the first occurrence.
	out := bars[:0]
	for i, b := range bars {
		if i > 0 && b.Timestamp.Equal(bars[i-1].Timestamp) {
			continue
		}
		out = append(out, b)
	}
	return out
}

func isRateLimited(err error) bool {
	return errors.Is(err, ports.ErrRateLimited)
}

func parsePrice(s string) float64 {
	if s == "" {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

func parseVolume(s string) float64 {
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}
