// Package httpclient provides a rate-limited HTTP client shared by the
// HTTP-facing modules. It deliberately performs no retries of its own:
// failed requests surface as errors so the scheduler can classify and
// reschedule the whole work unit.
package httpclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"mira/internal/platform/errors"
	"mira/internal/platform/logx"
	"mira/internal/platform/rate"
)

// Client wraps http.Client with rate limiting and consistent headers.
type Client struct {
	httpClient  *http.Client
	rateLimiter *rate.Limiter
	logger      logx.Logger
	config      Config
}

// Config holds the configuration for the HTTP client.
type Config struct {
	// Timeout is the per-request timeout. Default: 30 seconds.
	Timeout time.Duration

	// UserAgent is the User-Agent header value. Default: "mira/1.0".
	UserAgent string

	// RateLimit is the maximum requests per second. 0 means no limit.
	RateLimit float64

	// RateLimitBurst is the burst size for rate limiting. Default: 1.
	RateLimitBurst int
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Timeout:        30 * time.Second,
		UserAgent:      "mira/1.0",
		RateLimit:      0,
		RateLimitBurst: 1,
	}
}

// New creates a new HTTP client with the given configuration.
func New(config Config, logger logx.Logger) *Client {
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.UserAgent == "" {
		config.UserAgent = "mira/1.0"
	}
	if config.RateLimitBurst == 0 {
		config.RateLimitBurst = 1
	}

	var rateLimiter *rate.Limiter
	if config.RateLimit > 0 {
		rateLimiter = rate.New(config.RateLimit, config.RateLimitBurst)
	}

	return &Client{
		httpClient:  &http.Client{Timeout: config.Timeout},
		rateLimiter: rateLimiter,
		logger:      logger.With("component", "httpclient"),
		config:      config,
	}
}

// Request performs a single HTTP request, honoring the rate limit.
func (c *Client) Request(ctx context.Context, method, url string, body io.Reader, headers map[string]string) (*http.Response, error) {
	if c.rateLimiter != nil {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, errors.Wrap(err, "rate limit wait failed")
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create request for %s %s", method, url)
	}

	req.Header.Set("User-Agent", c.config.UserAgent)
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	c.logger.Debug("HTTP request", "method", method, "url", url)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)

	if err != nil {
		c.logger.Debug("HTTP request failed",
			"method", method,
			"url", url,
			"error", err.Error(),
			"duration_ms", duration.Milliseconds(),
		)
		return nil, errors.Wrapf(errors.ErrConnectionFailed, "%s %s: %v", method, url, err)
	}

	c.logger.Debug("HTTP response received",
		"method", method,
		"url", url,
		"status", resp.StatusCode,
		"duration_ms", duration.Milliseconds(),
	)

	return resp, nil
}

// Get performs a GET request.
func (c *Client) Get(ctx context.Context, url string, headers map[string]string) (*http.Response, error) {
	return c.Request(ctx, http.MethodGet, url, nil, headers)
}

// GetJSON is a convenience method for GET requests that expect JSON responses.
func (c *Client) GetJSON(ctx context.Context, url string) (*http.Response, error) {
	return c.Get(ctx, url, map[string]string{"Accept": "application/json"})
}

// FetchJSON performs a GET request and returns the validated response body.
func (c *Client) FetchJSON(ctx context.Context, url string) ([]byte, error) {
	resp, err := c.GetJSON(ctx, url)
	if err != nil {
		return nil, err
	}

	if err := CheckStatus(resp); err != nil {
		resp.Body.Close()
		return nil, errors.Wrapf(err, "request to %s failed", url)
	}

	return ReadBody(resp)
}

// ReadBody reads the response body and closes it.
func ReadBody(resp *http.Response) ([]byte, error) {
	if resp == nil {
		return nil, errors.New("response is nil")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read response body")
	}

	return body, nil
}

// CheckStatus validates the HTTP status code and maps failures to
// sentinel errors the failure classifier understands.
func CheckStatus(resp *http.Response) error {
	if resp == nil {
		return errors.New("response is nil")
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	switch resp.StatusCode {
	case http.StatusTooManyRequests:
		return errors.ErrRateLimit
	case http.StatusServiceUnavailable, http.StatusGatewayTimeout, http.StatusBadGateway:
		return errors.ErrServiceUnavailable
	case http.StatusBadRequest:
		return errors.Wrapf(errors.ErrInvalidInput, "HTTP %d", resp.StatusCode)
	default:
		return errors.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}
}

// String returns a human-readable representation of the client configuration.
func (c *Client) String() string {
	return fmt.Sprintf("HTTPClient{timeout=%s, rate_limit=%.1f/s}",
		c.config.Timeout,
		c.config.RateLimit,
	)
}
