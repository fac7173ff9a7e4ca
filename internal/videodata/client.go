// Package videodata wraps the paid video-data provider behind a client that
// honors the provider's rolling request ceiling. Callers see a plain
// request/response API; queueing, spacing, and throttle retries happen here.
package videodata

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"clipper/internal/config"
	"clipper/internal/logging"
	"clipper/internal/services"
)

// windowSafetyMargin pads the wait for the oldest logged request to leave the
// rolling window, so clock skew at the provider cannot count us over the limit.
const windowSafetyMargin = 250 * time.Millisecond

// Client serializes requests against the provider's rolling window limit.
// All callers share one instance; concurrent calls queue on the internal
// mutex in arrival order instead of racing for window slots.
type Client struct {
	host        string
	apiKey      string
	windowLimit int
	window      time.Duration
	httpClient  *http.Client
	logger      *slog.Logger
	retry       services.RetryPolicy

	mu      sync.Mutex
	issued  []time.Time
	spacing *rate.Limiter

	now   func() time.Time
	sleep func(context.Context, time.Duration) error
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// WithClock overrides time observation and sleeping (used in tests).
func WithClock(now func() time.Time, sleep func(context.Context, time.Duration) error) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
		if sleep != nil {
			c.sleep = sleep
		}
	}
}

// NewClient builds a provider client from configuration.
func NewClient(cfg config.VideoData, logger *slog.Logger, opts ...Option) *Client {
	minInterval := time.Duration(cfg.MinIntervalMS) * time.Millisecond
	client := &Client{
		host:        strings.TrimRight(cfg.Host, "/"),
		apiKey:      cfg.APIKey,
		windowLimit: cfg.WindowLimit,
		window:      time.Duration(cfg.WindowSeconds) * time.Second,
		httpClient:  &http.Client{Timeout: time.Duration(cfg.RequestTimeoutSecs) * time.Second},
		logger:      logging.WithComponent(logger, "videodata"),
		spacing:     rate.NewLimiter(rate.Every(minInterval), 1),
		now:         time.Now,
	}
	client.retry = services.RetryPolicy{
		MaxAttempts: cfg.ThrottleRetries,
		BaseDelay:   2 * time.Second,
		MaxDelay:    30 * time.Second,
		Retryable:   isThrottle,
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.sleep == nil {
		client.sleep = defaultSleep
	}
	client.retry.Sleep = client.sleep
	return client
}

type throttleError struct {
	status int
	body   string
}

func (e *throttleError) Error() string {
	return fmt.Sprintf("provider throttled request: http %d: %s", e.status, strings.TrimSpace(e.body))
}

func isThrottle(err error) bool {
	var throttled *throttleError
	return errors.As(err, &throttled)
}

// Call issues a GET against the provider endpoint, respecting the rolling
// window limit and minimum inter-request spacing. Throttling responses are
// retried with exponential backoff before a RateLimitExceeded failure is
// surfaced.
func (c *Client) Call(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	var body []byte
	err := c.retry.Do(ctx, func(ctx context.Context) error {
		if err := c.reserve(ctx); err != nil {
			return err
		}
		var err error
		body, err = c.issue(ctx, endpoint, params)
		return err
	})
	if err != nil {
		if isThrottle(err) {
			return nil, services.Wrap(services.ErrRateLimited, "videodata", endpoint, "throttle retries exhausted", err)
		}
		return nil, err
	}
	return body, nil
}

// reserve blocks until a window slot and the spacing interval are available,
// then logs the reservation. The mutex is held across the wait so queued
// callers proceed in arrival order.
func (c *Client) reserve(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.prune(now)

	if len(c.issued) >= c.windowLimit {
		oldest := c.issued[0]
		wait := oldest.Add(c.window).Add(windowSafetyMargin).Sub(now)
		if wait > 0 {
			c.logger.Debug("window full, waiting",
				logging.Int("in_window", len(c.issued)),
				logging.Duration("wait", wait))
			if err := c.sleep(ctx, wait); err != nil {
				return err
			}
		}
		c.prune(c.now())
	}

	if err := c.waitSpacing(ctx); err != nil {
		return err
	}

	c.issued = append(c.issued, c.now())
	return nil
}

func (c *Client) waitSpacing(ctx context.Context) error {
	reservation := c.spacing.ReserveN(c.now(), 1)
	if !reservation.OK() {
		return services.Wrap(services.ErrRateLimited, "videodata", "spacing", "reservation rejected", nil)
	}
	if delay := reservation.DelayFrom(c.now()); delay > 0 {
		if err := c.sleep(ctx, delay); err != nil {
			reservation.Cancel()
			return err
		}
	}
	return nil
}

func (c *Client) prune(now time.Time) {
	cutoff := now.Add(-c.window)
	kept := c.issued[:0]
	for _, t := range c.issued {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	c.issued = kept
}

func (c *Client) issue(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	target := c.host + "/" + strings.TrimLeft(endpoint, "/")
	if len(params) > 0 {
		target += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("videodata request: %w", err)
	}
	req.Header.Set("X-API-Key", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("videodata request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("videodata response: %w", err)
	}
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &throttleError{status: resp.StatusCode, body: string(body)}
	case resp.StatusCode >= http.StatusMultipleChoices:
		return nil, fmt.Errorf("videodata response: http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}

// InWindow reports how many requests are currently logged inside the rolling
// window. Exposed for health reporting.
func (c *Client) InWindow() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prune(c.now())
	return len(c.issued)
}

func defaultSleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
