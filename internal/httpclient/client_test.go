package httpclient

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/rtuszik/discogsdash/internal/apierr"
	"github.com/rtuszik/discogsdash/internal/retry"
)

func newRequest(t *testing.T, url string) *http.Request {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("NewRequest failed: %v", err)
	}
	return req
}

func TestClient_PassesThroughResponses(t *testing.T) {
	codes := []int{http.StatusOK, http.StatusNotFound, http.StatusTooManyRequests, http.StatusServiceUnavailable}
	for _, code := range codes {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(code)
		}))

		c := NewClient(srv.Client(), Config{})
		resp, err := c.Do(context.Background(), newRequest(t, srv.URL+"/x"))
		if err != nil {
			t.Fatalf("status %d: unexpected error %v", code, err)
		}
		if resp.StatusCode != code {
			t.Errorf("status = %d, want %d", resp.StatusCode, code)
		}
		resp.Body.Close()
		srv.Close()
	}
}

func TestClient_BreakerOpensOnServerErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), Config{Name: "test-open", FailureThreshold: 3, OpenTimeout: time.Hour})
	for i := 0; i < 3; i++ {
		resp, err := c.Do(context.Background(), newRequest(t, srv.URL))
		if err != nil {
			t.Fatalf("attempt %d: %v", i, err)
		}
		resp.Body.Close()
	}

	if c.State() != gobreaker.StateOpen {
		t.Fatalf("breaker state = %v, want open", c.State())
	}

	_, err := c.Do(context.Background(), newRequest(t, srv.URL))
	if apierr.KindOf(err) != apierr.KindUnavailable {
		t.Errorf("expected unavailable error, got %v", err)
	}
	var apiErr *apierr.Error
	if !errors.As(err, &apiErr) || apiErr.RetryAfter < 59*time.Minute || apiErr.RetryAfter > time.Hour {
		t.Errorf("expected the remaining open timeout as retry hint, got %v", err)
	}
	if !apierr.IsRetryable(err) {
		t.Error("open breaker rejection should be retried after the hint")
	}
	if hits.Load() != 3 {
		t.Errorf("server hits = %d, want 3", hits.Load())
	}
}

func TestClient_RateLimitDoesNotTripBreaker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), Config{Name: "test-429", FailureThreshold: 2})
	for i := 0; i < 5; i++ {
		resp, err := c.Do(context.Background(), newRequest(t, srv.URL))
		if err != nil {
			t.Fatalf("attempt %d: %v", i, err)
		}
		resp.Body.Close()
	}
	if c.State() != gobreaker.StateClosed {
		t.Errorf("breaker state = %v, want closed", c.State())
	}
}

func TestClient_NetworkErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := NewClient(nil, Config{})
	_, err := c.Do(context.Background(), newRequest(t, url))
	if apierr.KindOf(err) != apierr.KindTransient {
		t.Errorf("expected transient error, got %v", err)
	}
}

func TestClient_Pacing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	// 600 per minute is one request every 100ms.
	c := NewClient(srv.Client(), Config{RequestsPerMinute: 600})
	start := time.Now()
	for i := 0; i < 3; i++ {
		resp, err := c.Do(context.Background(), newRequest(t, srv.URL))
		if err != nil {
			t.Fatalf("Do failed: %v", err)
		}
		resp.Body.Close()
	}
	if elapsed := time.Since(start); elapsed < 180*time.Millisecond {
		t.Errorf("3 paced requests took %v, want at least ~200ms", elapsed)
	}
}

func TestClient_CanceledWhileWaiting(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	c := NewClient(srv.Client(), Config{RequestsPerMinute: 1})
	resp, err := c.Do(context.Background(), newRequest(t, srv.URL))
	if err != nil {
		t.Fatalf("first request failed: %v", err)
	}
	resp.Body.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.Do(ctx, newRequest(t, srv.URL)); err != context.Canceled {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestClient_RetryWaitsOutOpenBreaker(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), Config{Name: "test-reopen", FailureThreshold: 2, OpenTimeout: 150 * time.Millisecond})

	var delays []time.Duration
	policy := retry.Policy{
		MaxRetries:      3,
		BaseDelay:       time.Millisecond,
		MaxDelay:        time.Millisecond,
		Multiplier:      1,
		RateLimitBuffer: 10 * time.Millisecond,
		Sleep: func(ctx context.Context, d time.Duration) error {
			delays = append(delays, d)
			time.Sleep(d)
			return nil
		},
	}

	body, err := retry.Do(context.Background(), policy, "reopen", func(ctx context.Context) (string, error) {
		resp, err := c.Do(ctx, newRequest(t, srv.URL))
		if err != nil {
			return "", err
		}
		defer resp.Body.Close()
		data, _ := io.ReadAll(resp.Body)
		if err := apierr.Classify("/", resp, data); err != nil {
			return "", err
		}
		return string(data), nil
	})
	if err != nil {
		t.Fatalf("expected the run to recover after the open timeout, got %v", err)
	}
	if body != "ok" {
		t.Errorf("body = %q", body)
	}
	if hits.Load() != 3 {
		t.Errorf("server hits = %d, want 3", hits.Load())
	}
	if len(delays) != 3 || delays[2] < 100*time.Millisecond {
		t.Errorf("expected the third wait to cover the open timeout, got %v", delays)
	}
}
