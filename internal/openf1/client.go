package openf1

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/apexf1/pitwall/internal/config"
	"github.com/apexf1/pitwall/pkg/logger"
)

// Params holds query parameters for one API call. Range filters use the
// API's suffix operators as parameter names (e.g. "date>", "date<").
type Params map[string]string

// Client is responsible for fetching records from the OpenF1 API. The API
// rate-limits aggressively with HTTP 429, so every call goes through a
// bounded retry loop with exponential backoff and jitter.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	maxRetries  int
	backoffBase time.Duration
	serverRetry time.Duration
	logger      *logger.Logger
}

// NewClient creates a new OpenF1 API client
func NewClient(cfg config.OpenF1Config, log *logger.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.RequestTimeout(),
		},
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		maxRetries:  cfg.MaxRetries,
		backoffBase: cfg.BackoffBase(),
		serverRetry: cfg.ServerErrorRetry(),
		logger:      log.Named("openf1-client"),
	}
}

// Get fetches one endpoint and returns the raw records. Transient
// failures (429, 5xx, network errors) are retried up to the configured
// attempt budget; exhaustion yields an empty result, not an error. Any
// other non-2xx status is propagated to the caller.
func (c *Client) Get(ctx context.Context, endpoint string, params Params) ([]json.RawMessage, error) {
	reqURL := c.baseURL + "/" + endpoint
	if len(params) > 0 {
		q := url.Values{}
		for k, v := range params {
			q.Set(k, v)
		}
		reqURL += "?" + q.Encode()
	}
	return c.fetchWithRetry(ctx, reqURL)
}

// fetchWithRetry issues a single GET with the retry policy described on Get
func (c *Client) fetchWithRetry(ctx context.Context, reqURL string) ([]json.RawMessage, error) {
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			wait := c.backoff(attempt)
			c.logger.Warn("Request failed",
				logger.Error(err),
				logger.String("url", reqURL),
				logger.Duration("retry_in", wait))
			if err := c.wait(ctx, wait); err != nil {
				return nil, err
			}
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			wait := c.backoff(attempt)
			c.logger.Warn("Rate limited by remote API",
				logger.String("url", reqURL),
				logger.Int("attempt", attempt+1),
				logger.Duration("retry_in", wait))
			if err := c.wait(ctx, wait); err != nil {
				return nil, err
			}
			continue
		case resp.StatusCode >= 500:
			c.logger.Warn("Server error from remote API",
				logger.Int("status_code", resp.StatusCode),
				logger.String("url", reqURL),
				logger.Duration("retry_in", c.serverRetry))
			if err := c.wait(ctx, c.serverRetry); err != nil {
				return nil, err
			}
			continue
		case resp.StatusCode < 200 || resp.StatusCode >= 300:
			// Client errors other than 429 are not retryable; the caller decides
			return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
		}

		if readErr != nil {
			wait := c.backoff(attempt)
			c.logger.Warn("Failed to read response body",
				logger.Error(readErr),
				logger.Duration("retry_in", wait))
			if err := c.wait(ctx, wait); err != nil {
				return nil, err
			}
			continue
		}

		records, err := decodeRecords(body)
		if err != nil {
			return nil, fmt.Errorf("failed to parse response: %w", err)
		}
		return records, nil
	}

	c.logger.Warn("Exhausted retries, returning empty result",
		logger.String("url", reqURL),
		logger.Int("max_retries", c.maxRetries))
	return []json.RawMessage{}, nil
}

// backoff returns the delay before the next attempt: 2^attempt base units
// plus uniform jitter of one to two base units
func (c *Client) backoff(attempt int) time.Duration {
	jitter := c.backoffBase + time.Duration(rand.Int64N(int64(c.backoffBase)+1))
	return c.backoffBase*(1<<attempt) + jitter
}

// wait sleeps for d unless the context is cancelled first
func (c *Client) wait(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
