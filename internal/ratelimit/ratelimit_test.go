package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// flakyServer answers 429 for the first n requests, then 200
func flakyServer(t *testing.T, n int32, retryAfter string) (*httptest.Server, *int32) {
	t.Helper()
	var count int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&count, 1) <= n {
			if retryAfter != "" {
				w.Header().Set("Retry-After", retryAfter)
			}
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	return srv, &count
}

func fastClient(retries int) *Client {
	return NewClient(Config{MaxRetries: retries, BaseDelay: 5 * time.Millisecond, Backend: "rest"})
}

func TestDoRetriesAfter429(t *testing.T) {
	srv, count := flakyServer(t, 2, "")
	stats := NewStats()
	client := NewClient(Config{MaxRetries: 5, BaseDelay: 5 * time.Millisecond, Stats: stats})

	resp, err := client.Do(context.Background(), http.MethodGet, srv.URL, nil)
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	if got := atomic.LoadInt32(count); got != 3 {
		t.Errorf("requests = %d, want 3", got)
	}
	if stats.Count(http.StatusTooManyRequests) != 2 || stats.Count(0) != 2 {
		t.Errorf("Count() = %d, want 2", stats.Count(0))
	}
	if stats.Last().IsZero() {
		t.Error("Last() should be set")
	}
}

func TestDoExhaustsRetries(t *testing.T) {
	srv, count := flakyServer(t, 100, "")

	_, err := fastClient(2).Do(context.Background(), http.MethodGet, srv.URL, nil)
	var rle *RateLimitError
	if !errors.As(err, &rle) {
		t.Fatalf("Do() error = %v, want *RateLimitError", err)
	}
	if rle.Backend != "rest" || rle.Retries != 2 || rle.Status != http.StatusTooManyRequests {
		t.Errorf("RateLimitError = %+v", rle)
	}
	if got := atomic.LoadInt32(count); got != 3 {
		t.Errorf("requests = %d, want 3", got)
	}
}

func TestDoHonoursRetryAfter(t *testing.T) {
	srv, _ := flakyServer(t, 1, "0")
	client := NewClient(Config{MaxRetries: 1, BaseDelay: 10 * time.Second})

	start := time.Now()
	resp, err := client.Do(context.Background(), http.MethodGet, srv.URL, nil)
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	_ = resp.Body.Close()
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("Retry-After: 0 should skip the base delay, took %v", elapsed)
	}
}

func TestDoCancelledDuringBackoff(t *testing.T) {
	srv, _ := flakyServer(t, 100, "")
	client := NewClient(Config{MaxRetries: 10, BaseDelay: time.Second})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := client.Do(ctx, http.MethodGet, srv.URL, nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Do() error = %v, want deadline exceeded", err)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("cancellation took %v", elapsed)
	}
}

func TestDoResendsBodyAndHeaders(t *testing.T) {
	var (
		mu      sync.Mutex
		bodies  []string
		auths   []string
		types   []string
		counter int32
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		mu.Lock()
		bodies = append(bodies, string(b))
		auths = append(auths, r.Header.Get("Authorization"))
		types = append(types, r.Header.Get("Content-Type"))
		mu.Unlock()
		if atomic.AddInt32(&counter, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	header := http.Header{}
	header.Set("Authorization", "Bearer secret")
	client := NewClient(Config{MaxRetries: 3, BaseDelay: 5 * time.Millisecond, Header: header})

	resp, err := client.Do(context.Background(), http.MethodPost, srv.URL, strings.NewReader(`{"title":"x"}`))
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	_ = resp.Body.Close()

	mu.Lock()
	defer mu.Unlock()
	if len(bodies) != 2 {
		t.Fatalf("requests = %d, want 2", len(bodies))
	}
	for i := range bodies {
		if bodies[i] != `{"title":"x"}` {
			t.Errorf("body %d = %q", i, bodies[i])
		}
		if auths[i] != "Bearer secret" {
			t.Errorf("Authorization %d = %q", i, auths[i])
		}
		if types[i] != "application/json" {
			t.Errorf("Content-Type %d = %q", i, types[i])
		}
	}
}

func TestDoPassesThroughOtherStatuses(t *testing.T) {
	for _, code := range []int{400, 401, 404, 500, 503} {
		t.Run(fmt.Sprintf("status_%d", code), func(t *testing.T) {
			var count int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&count, 1)
				w.WriteHeader(code)
			}))
			defer srv.Close()

			resp, err := fastClient(5).Do(context.Background(), http.MethodGet, srv.URL, nil)
			if err != nil {
				t.Fatalf("Do() error = %v", err)
			}
			_ = resp.Body.Close()
			if resp.StatusCode != code || atomic.LoadInt32(&count) != 1 {
				t.Errorf("status = %d after %d requests", resp.StatusCode, count)
			}
		})
	}
}

func TestDoRetries503WithRetryAfter(t *testing.T) {
	var count int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&count, 1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	stats := NewStats()
	client := NewClient(Config{MaxRetries: 2, BaseDelay: 5 * time.Millisecond, Stats: stats})
	resp, err := client.Do(context.Background(), http.MethodGet, srv.URL, nil)
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK || atomic.LoadInt32(&count) != 2 {
		t.Errorf("status = %d after %d requests", resp.StatusCode, count)
	}
	if stats.Count(http.StatusServiceUnavailable) != 1 {
		t.Errorf("Count(503) = %d, want 1", stats.Count(http.StatusServiceUnavailable))
	}
}

func TestNilStatsIgnoresRecords(t *testing.T) {
	var s *Stats
	s.record(http.StatusTooManyRequests)
}

func TestBackoff(t *testing.T) {
	c := NewClient(Config{BaseDelay: time.Second, MaxDelay: 8 * time.Second})
	retry := 3 * time.Second

	tests := []struct {
		attempt    int
		retryAfter *time.Duration
		want       time.Duration
	}{
		{0, nil, time.Second},
		{1, nil, 2 * time.Second},
		{2, nil, 4 * time.Second},
		{3, nil, 8 * time.Second},
		{6, nil, 8 * time.Second},
		{4, &retry, 3 * time.Second},
	}
	for _, tt := range tests {
		if got := c.backoff(tt.attempt, tt.retryAfter); got != tt.want {
			t.Errorf("backoff(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestBackoffJitterBounds(t *testing.T) {
	c := NewClient(Config{BaseDelay: time.Second, EnableJitter: true})
	for i := 0; i < 50; i++ {
		got := c.backoff(1, nil)
		if got < 1600*time.Millisecond || got > 2400*time.Millisecond {
			t.Fatalf("jittered delay %v outside ±20%% of 2s", got)
		}
	}
}

func TestParseRetryAfter(t *testing.T) {
	tests := []struct {
		value string
		want  *time.Duration
	}{
		{"60", durationPtr(60 * time.Second)},
		{"0", durationPtr(0)},
		{"", nil},
		{"soon", nil},
		{"-1", nil},
	}
	for _, tt := range tests {
		got := ParseRetryAfter(tt.value)
		switch {
		case tt.want == nil && got != nil:
			t.Errorf("ParseRetryAfter(%q) = %v, want nil", tt.value, *got)
		case tt.want != nil && (got == nil || *got != *tt.want):
			t.Errorf("ParseRetryAfter(%q) = %v, want %v", tt.value, got, *tt.want)
		}
	}

	past := time.Now().Add(-time.Hour).UTC().Format(http.TimeFormat)
	if got := ParseRetryAfter(past); got == nil || *got != 0 {
		t.Errorf("ParseRetryAfter(past date) = %v, want 0", got)
	}
}

func TestRateLimitErrorMessage(t *testing.T) {
	err := &RateLimitError{Backend: "rest", Status: 429, Retries: 3}
	msg := err.Error()
	for _, want := range []string{"rest", "rate limit", "429", "3 retries"} {
		if !strings.Contains(msg, want) {
			t.Errorf("Error() = %q, missing %q", msg, want)
		}
	}
	if c := NewClient(Config{}); c.cfg.Backend != "API" {
		t.Errorf("empty backend should fall back to API, got %q", c.cfg.Backend)
	}
}

func durationPtr(d time.Duration) *time.Duration {
	return &d
}
