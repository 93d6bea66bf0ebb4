// Package httpfetch downloads source documents with retries and an optional
// byte cache in front of the network.
package httpfetch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/samirrijal/housingetl/internal/core/ports"
	"github.com/samirrijal/housingetl/internal/pkg/metrics"
)

// ErrUnexpectedStatus indicates a response that is neither 200 nor retryable.
var ErrUnexpectedStatus = errors.New("unexpected status code")

// Policy bounds the retry loop.
type Policy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// Delay returns the wait before attempt+1, doubling from InitialBackoff and
// capped at MaxBackoff.
func (p Policy) Delay(attempt int) time.Duration {
	d := p.InitialBackoff
	for i := 1; i < attempt && d < p.MaxBackoff; i++ {
		d *= 2
	}
	if p.MaxBackoff > 0 && d > p.MaxBackoff {
		d = p.MaxBackoff
	}
	return d
}

// Client performs GET requests under a retry policy.
type Client struct {
	http      *http.Client
	policy    Policy
	userAgent string
	cache     ports.CacheService
	cacheTTL  int
	prefix    string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// WithCache stores successful bodies under "<prefix>:<sha256(url)>" for
// ttlSeconds. A nil cache disables caching.
func WithCache(cache ports.CacheService, prefix string, ttlSeconds int) Option {
	return func(c *Client) {
		c.cache = cache
		c.prefix = prefix
		c.cacheTTL = ttlSeconds
	}
}

// New creates a Client with the given per-request timeout.
func New(timeout time.Duration, policy Policy, opts ...Option) *Client {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 1
	}
	c := &Client{
		http:   &http.Client{Timeout: timeout},
		policy: policy,
		prefix: "fetch",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CacheKey returns the cache key used for url.
func (c *Client) CacheKey(url string) string {
	sum := sha256.Sum256([]byte(url))
	return c.prefix + ":" + hex.EncodeToString(sum[:])
}

// Get returns the body of url. Transport errors and retryable statuses are
// retried with exponential backoff; other statuses fail at once.
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	if c.cache != nil {
		if body, err := c.cache.Get(ctx, c.CacheKey(url)); err == nil {
			metrics.CacheHits.WithLabelValues("fetch").Inc()
			return body, nil
		}
		metrics.CacheMisses.WithLabelValues("fetch").Inc()
	}

	var lastErr error
	for attempt := 1; attempt <= c.policy.MaxAttempts; attempt++ {
		body, retry, err := c.do(ctx, url)
		if err == nil {
			metrics.FetchAttempts.WithLabelValues("ok").Inc()
			c.store(ctx, url, body)
			return body, nil
		}
		lastErr = fmt.Errorf("get %s (attempt %d/%d): %w", url, attempt, c.policy.MaxAttempts, err)
		if !retry {
			metrics.FetchAttempts.WithLabelValues("fatal").Inc()
			return nil, lastErr
		}
		metrics.FetchAttempts.WithLabelValues("retry").Inc()

		if attempt == c.policy.MaxAttempts {
			break
		}
		delay := c.policy.Delay(attempt)
		slog.Debug("retrying fetch", "url", url, "attempt", attempt, "delay", delay, "error", err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
	return nil, lastErr
}

func (c *Client) do(ctx context.Context, url string) ([]byte, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, false, fmt.Errorf("create request: %w", err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		// A cancelled context is final; anything else at transport level is retried.
		return nil, ctx.Err() == nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, Retryable(resp.StatusCode), fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, fmt.Errorf("read body: %w", err)
	}
	return body, false, nil
}

func (c *Client) store(ctx context.Context, url string, body []byte) {
	if c.cache == nil {
		return
	}
	if err := c.cache.Set(ctx, c.CacheKey(url), body, c.cacheTTL); err != nil {
		slog.Warn("fetch cache write failed", "url", url, "error", err)
	}
}

// Retryable reports whether a response status is worth another attempt.
func Retryable(status int) bool {
	switch status {
	case http.StatusRequestTimeout, http.StatusTooEarly, http.StatusTooManyRequests:
		return true
	}
	return status >= 500
}
