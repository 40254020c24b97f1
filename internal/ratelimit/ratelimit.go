// Package ratelimit provides the HTTP client used by the rest backend. It
// retries requests the server asked to slow down on, with exponential backoff.
package ratelimit

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strconv"
	"sync"
	"time"

	"taskmaster/internal/utils"
)

// Defaults applied by NewClient to zero Config fields.
const (
	DefaultMaxRetries = 5
	DefaultBaseDelay  = time.Second
	DefaultMaxDelay   = 32 * time.Second
)

// Config holds configuration for the retrying HTTP client.
type Config struct {
	MaxRetries   int           // Retries after a throttled response
	BaseDelay    time.Duration // First backoff delay, doubled per retry
	MaxDelay     time.Duration // Cap on a single backoff delay
	EnableJitter bool          // Scale each delay by a random factor in [0.8, 1.2]
	Stats        *Stats        // Optional throttling counters

	// Backend names the server in errors and logs.
	Backend string

	// Header is sent with every request, e.g. Authorization.
	Header http.Header

	// Timeout bounds each attempt. Zero means no per-attempt timeout.
	Timeout time.Duration

	// Transport overrides the default round tripper.
	Transport http.RoundTripper
}

// Client is an HTTP client that retries throttled requests.
type Client struct {
	httpClient *http.Client
	cfg        Config
	jitter     func() float64
}

// NewClient creates a client, applying defaults for unset fields.
func NewClient(cfg Config) *Client {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = DefaultBaseDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = DefaultMaxDelay
	}
	if cfg.Backend == "" {
		cfg.Backend = "API"
	}
	cfg.Header = cfg.Header.Clone()

	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout, Transport: cfg.Transport},
		cfg:        cfg,
		jitter:     func() float64 { return 0.8 + rand.Float64()*0.4 },
	}
}

// CloseIdleConnections releases pooled connections.
func (c *Client) CloseIdleConnections() {
	c.httpClient.CloseIdleConnections()
}

// Throttled reports whether a response asks the client to come back later:
// 429 always, 503 only when the server says when to retry.
func Throttled(resp *http.Response) bool {
	switch resp.StatusCode {
	case http.StatusTooManyRequests:
		return true
	case http.StatusServiceUnavailable:
		return resp.Header.Get("Retry-After") != ""
	}
	return false
}

// Do sends the request, retrying while the server throttles it. The body is
// buffered so every attempt sends it again.
func (c *Client) Do(ctx context.Context, method, url string, body io.Reader) (*http.Response, error) {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = io.ReadAll(body); err != nil {
			return nil, fmt.Errorf("failed to read request body: %w", err)
		}
	}

	for retry := 0; ; retry++ {
		resp, err := c.send(ctx, method, url, payload)
		if err != nil {
			return nil, err
		}
		if !Throttled(resp) {
			return resp, nil
		}

		status := resp.StatusCode
		wait := ParseRetryAfter(resp.Header.Get("Retry-After"))
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
		c.cfg.Stats.record(status)

		if retry >= c.cfg.MaxRetries {
			return nil, &RateLimitError{Backend: c.cfg.Backend, Status: status, Retries: retry}
		}

		delay := c.backoff(retry, wait)
		utils.Debugf("%s throttled (%d), retrying in %s (%d/%d)", c.cfg.Backend, status, delay, retry+1, c.cfg.MaxRetries)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

func (c *Client) send(ctx context.Context, method, url string, payload []byte) (*http.Response, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range c.cfg.Header {
		req.Header[k] = v
	}
	if payload != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.httpClient.Do(req)
}

// backoff returns the delay before retry number retry (zero based). A
// Retry-After from the server wins over the computed delay.
func (c *Client) backoff(retry int, retryAfter *time.Duration) time.Duration {
	if retryAfter != nil {
		return *retryAfter
	}

	delay := c.cfg.BaseDelay
	for i := 0; i < retry && delay < c.cfg.MaxDelay; i++ {
		delay *= 2
	}
	if delay > c.cfg.MaxDelay {
		delay = c.cfg.MaxDelay
	}
	if c.cfg.EnableJitter {
		delay = time.Duration(float64(delay) * c.jitter())
	}
	return delay
}

// RateLimitError is returned when the server still throttles after every retry.
type RateLimitError struct {
	Backend string
	Status  int
	Retries int
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s rate limit exceeded: status %d after %d retries", e.Backend, e.Status, e.Retries)
}

// ParseRetryAfter parses a Retry-After header given in seconds or as an
// HTTP date. Returns nil if the value is empty or invalid.
func ParseRetryAfter(value string) *time.Duration {
	if value == "" {
		return nil
	}
	if seconds, err := strconv.ParseInt(value, 10, 64); err == nil {
		if seconds < 0 {
			return nil
		}
		d := time.Duration(seconds) * time.Second
		return &d
	}
	if t, err := http.ParseTime(value); err == nil {
		d := max(time.Until(t), 0)
		return &d
	}
	return nil
}

// Stats counts throttled responses. A nil *Stats ignores records.
type Stats struct {
	mu       sync.Mutex
	byStatus map[int]int64
	last     time.Time
}

// NewStats creates an empty Stats.
func NewStats() *Stats {
	return &Stats{byStatus: make(map[int]int64)}
}

func (s *Stats) record(status int) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.byStatus == nil {
		s.byStatus = make(map[int]int64)
	}
	s.byStatus[status]++
	s.last = time.Now()
}

// Count returns the number of throttled responses with the given status,
// or of all throttled responses when status is 0.
func (s *Stats) Count(status int) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if status != 0 {
		return s.byStatus[status]
	}
	var total int64
	for _, n := range s.byStatus {
		total += n
	}
	return total
}

// Last returns when the most recent throttled response arrived.
func (s *Stats) Last() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}
