// Package fetch implements the retrying JSON fetcher used against the
// source catalog and content APIs.
package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/pokedexfr/ingest/internal/metrics"
)

const maxErrorBodyBytes = 512

// StatusError is the definitive failure returned once an HTTP status can
// no longer be retried. It carries the URL and the last observed status.
type StatusError struct {
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d on %s %s", e.StatusCode, e.URL, e.Body)
}

// Config controls retry behavior of the Client.
type Config struct {
	// MaxRetries is the number of additional attempts after the first one.
	MaxRetries int
	// BaseDelay is multiplied by the attempt number for linear backoff.
	BaseDelay time.Duration
	Timeout   time.Duration
	UserAgent string
	// RPS caps requests per second per upstream host. Zero disables the cap.
	RPS   float64
	Burst int
}

// Client issues HTTP GETs with bounded retries. Only HTTP 429, 5xx and
// network-level errors are retried; any other non-2xx status fails
// immediately.
type Client struct {
	http    *http.Client
	cfg     Config
	logger  *zap.Logger
	limiter *limiter

	// sleep is swapped out in tests to observe backoff without waiting.
	sleep func(ctx context.Context, d time.Duration) error
}

// New builds a Client. A zero BaseDelay falls back to 350ms.
func New(cfg Config, logger *zap.Logger) *Client {
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 350 * time.Millisecond
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		http:    &http.Client{Timeout: cfg.Timeout},
		cfg:     cfg,
		logger:  logger,
		limiter: newLimiter(cfg.RPS, cfg.Burst),
		sleep:   sleepContext,
	}
}

// retryKey carries a per-call override of the configured retry budget.
type retryKey struct{}

// ContextWithRetries returns a context whose requests use the given
// retry budget instead of the client's configured MaxRetries. Negative
// values are clamped to zero.
func ContextWithRetries(ctx context.Context, retries int) context.Context {
	if retries < 0 {
		retries = 0
	}
	return context.WithValue(ctx, retryKey{}, retries)
}

func (c *Client) maxRetries(ctx context.Context) int {
	if override, ok := ctx.Value(retryKey{}).(int); ok {
		return override
	}
	return c.cfg.MaxRetries
}

// Get fetches the URL and returns the raw response body.
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	var lastErr error
	maxRetries := c.maxRetries(ctx)
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			delay := c.cfg.BaseDelay * time.Duration(attempt)
			metrics.ObserveFetchRetry()
			c.logger.Debug("retrying fetch",
				zap.String("url", url),
				zap.Int("attempt", attempt),
				zap.Duration("backoff", delay),
			)
			if err := c.sleep(ctx, delay); err != nil {
				return nil, err
			}
		}

		if err := c.limiter.wait(ctx, url); err != nil {
			return nil, err
		}
		body, retryable, err := c.doRequest(ctx, url)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if !retryable {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	return nil, fmt.Errorf("unable to fetch %s: %w", url, lastErr)
}

// GetJSON fetches the URL and decodes the JSON response into out.
func (c *Client) GetJSON(ctx context.Context, url string, out any) error {
	body, err := c.Get(ctx, url)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s: %w", url, err)
	}
	return nil
}

// doRequest performs a single attempt. The second return value reports
// whether the failure is transient.
func (c *Client) doRequest(ctx context.Context, url string) ([]byte, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, false, fmt.Errorf("build request for %s: %w", url, err)
	}
	req.Header.Set("Accept", "application/json")
	if c.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", c.cfg.UserAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		// DNS failures, timeouts and the like all share the same bounded
		// backoff as HTTP-level transient failures.
		metrics.ObserveFetch(0)
		return nil, true, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	metrics.ObserveFetch(resp.StatusCode)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		body, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return nil, true, fmt.Errorf("read body of %s: %w", url, readErr)
		}
		return body, false, nil
	}

	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	statusErr := &StatusError{URL: url, StatusCode: resp.StatusCode, Body: string(snippet)}
	retryable := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
	return nil, retryable, statusErr
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
