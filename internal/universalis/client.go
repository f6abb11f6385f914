// Package universalis implements the REST and streaming clients for the
// Universalis market-board API.
package universalis

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ffxivarb/gilarb/internal/domain"
	"github.com/ffxivarb/gilarb/internal/ratelimit"
)

const (
	// MaxBatchSize is the largest number of item ids accepted by the
	// aggregated market data endpoint in one request.
	MaxBatchSize = 100

	defaultMaxAttempts    = 7
	defaultInitialBackoff = 2 * time.Second
)

// ClientConfig holds construction parameters for the REST client.
type ClientConfig struct {
	// RestHost is the API base, e.g. "https://universalis.app/api/v2".
	RestHost string
	// Region scopes aggregated market data queries, e.g. "europe".
	Region string
	// Limiter gates every outbound request. Required.
	Limiter *ratelimit.Limiter
	// FetchRateCost is the total limiter tokens consumed by one
	// successful Fetch: one per attempt plus the remainder after
	// parsing. Values below 1 are treated as 1.
	FetchRateCost int
	HTTPClient    *http.Client
	Logger        *slog.Logger
}

// Client fetches market snapshots from the Universalis REST API with
// bounded retries and exponential backoff.
type Client struct {
	restHost      string
	region        string
	httpClient    *http.Client
	limiter       *ratelimit.Limiter
	fetchRateCost int

	maxAttempts    int
	initialBackoff time.Duration

	now   func() time.Time
	sleep func(context.Context, time.Duration) error

	logger *slog.Logger
}

// NewClient creates a Client from the given configuration.
func NewClient(cfg ClientConfig) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	cost := cfg.FetchRateCost
	if cost < 1 {
		cost = 1
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		restHost:       strings.TrimRight(cfg.RestHost, "/"),
		region:         cfg.Region,
		httpClient:     httpClient,
		limiter:        cfg.Limiter,
		fetchRateCost:  cost,
		maxAttempts:    defaultMaxAttempts,
		initialBackoff: defaultInitialBackoff,
		now:            time.Now,
		sleep:          sleepCtx,
		logger:         logger.With(slog.String("component", "universalis")),
	}
}

// Fetch issues one bulk request for up to MaxBatchSize item ids and
// returns the normalized snapshots. Non-success responses and transport
// errors are retried up to 7 attempts with exponential backoff starting
// at 2 seconds; after exhausting retries it fails with
// domain.ErrUpstreamUnavailable. The rate limiter is charged once per
// attempt and topped up to FetchRateCost after a successful parse.
func (c *Client) Fetch(ctx context.Context, ids []domain.ItemID) ([]domain.MarketSnapshot, error) {
	if len(ids) == 0 || len(ids) > MaxBatchSize {
		return nil, fmt.Errorf("universalis: fetch %d ids (want 1-%d): %w", len(ids), MaxBatchSize, domain.ErrInvalidArgument)
	}

	url := fmt.Sprintf("%s/%s/%s", c.restHost, c.region, joinIDs(ids))

	backoff := c.initialBackoff
	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if attempt > 1 {
			if err := c.sleep(ctx, backoff); err != nil {
				return nil, err
			}
			backoff *= 2
		}

		if err := c.limiter.Acquire(ctx); err != nil {
			return nil, err
		}

		body, status, err := c.get(ctx, url)
		if err != nil {
			lastErr = err
			c.logger.Warn("bulk fetch attempt failed",
				slog.Int("attempt", attempt),
				slog.String("error", err.Error()),
			)
			continue
		}
		if status != http.StatusOK {
			lastErr = fmt.Errorf("status %d", status)
			c.logger.Warn("bulk fetch attempt failed",
				slog.Int("attempt", attempt),
				slog.Int("status", status),
			)
			continue
		}

		snaps, err := parseCurrentData(body, c.now())
		if err != nil {
			// A malformed body will not improve on retry.
			return nil, fmt.Errorf("universalis: parse bulk response: %w", err)
		}

		if c.fetchRateCost > 1 {
			if err := c.limiter.AcquireN(ctx, c.fetchRateCost-1); err != nil {
				return nil, err
			}
		}
		return snaps, nil
	}

	return nil, fmt.Errorf("universalis: fetch %d items after %d attempts (last: %v): %w",
		len(ids), c.maxAttempts, lastErr, domain.ErrUpstreamUnavailable)
}

// Marketable returns the full universe of currently tradeable item ids.
// It is called once per full cache rebuild and charged one limiter token.
func (c *Client) Marketable(ctx context.Context) ([]domain.ItemID, error) {
	if err := c.limiter.Acquire(ctx); err != nil {
		return nil, err
	}

	body, status, err := c.get(ctx, c.restHost+"/marketable")
	if err != nil {
		return nil, fmt.Errorf("universalis: marketable: %w", err)
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("universalis: marketable: status %d: %w", status, domain.ErrUpstreamUnavailable)
	}

	var raw []int
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("universalis: marketable: %w: %v", domain.ErrMalformedMessage, err)
	}
	ids := make([]domain.ItemID, len(raw))
	for i, n := range raw {
		ids[i] = domain.ItemID(n)
	}
	return ids, nil
}

func (c *Client) get(ctx context.Context, url string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return body, resp.StatusCode, nil
}

func joinIDs(ids []domain.ItemID) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(int(id))
	}
	return strings.Join(parts, ",")
}

// sleepCtx sleeps for d, returning early with the context error if ctx
// is cancelled first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
