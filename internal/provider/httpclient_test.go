// internal/provider/httpclient_test.go
package provider

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func fastRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		MaxDelay:    5 * time.Millisecond,
	}
}

func TestRetryOnRateLimit(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		io.WriteString(w, "ok")
	}))
	defer srv.Close()

	c := NewRetryableClient(fastRetryConfig())
	req, err := NewJSONRequest(context.Background(), srv.URL, []byte(`{"a":1}`))
	if err != nil {
		t.Fatalf("NewJSONRequest() failed: %v", err)
	}

	resp, err := c.Do(context.Background(), req)
	if err != nil {
		t.Fatalf("Do() failed: %v", err)
	}
	defer resp.Body.Close()

	if calls.Load() != 3 {
		t.Errorf("Expected 3 attempts, got %d", calls.Load())
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "ok" {
		t.Errorf("Expected final body 'ok', got %q", body)
	}
}

func TestRetryExhaustion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewRetryableClient(fastRetryConfig())
	req, _ := NewJSONRequest(context.Background(), srv.URL, nil)

	_, err := c.Do(context.Background(), req)
	if !errors.Is(err, ErrServerBusy) {
		t.Errorf("Expected ErrServerBusy after exhaustion, got %v", err)
	}
}

func TestNoRetryOnClientError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewRetryableClient(fastRetryConfig())
	req, _ := NewJSONRequest(context.Background(), srv.URL, nil)

	resp, err := c.Do(context.Background(), req)
	if err != nil {
		t.Fatalf("Do() failed: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 passed through, got %d", resp.StatusCode)
	}
	if calls.Load() != 1 {
		t.Errorf("Expected exactly 1 attempt for 400, got %d", calls.Load())
	}
}

func TestRetryReplaysBody(t *testing.T) {
	var bodies []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		bodies = append(bodies, string(b))
		if len(bodies) < 2 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
	}))
	defer srv.Close()

	c := NewRetryableClient(fastRetryConfig())
	req, _ := NewJSONRequest(context.Background(), srv.URL, []byte(`{"payload":true}`))

	resp, err := c.Do(context.Background(), req)
	if err != nil {
		t.Fatalf("Do() failed: %v", err)
	}
	resp.Body.Close()

	if len(bodies) != 2 {
		t.Fatalf("Expected 2 attempts, got %d", len(bodies))
	}
	for i, b := range bodies {
		if b != `{"payload":true}` {
			t.Errorf("Attempt %d: body not replayed, got %q", i, b)
		}
	}
}

func TestDoRespectsContextBetweenAttempts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	cfg := fastRetryConfig()
	cfg.BaseDelay = time.Minute // long enough that cancellation wins
	c := NewRetryableClient(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	req, _ := NewJSONRequest(ctx, srv.URL, nil)

	done := make(chan error, 1)
	go func() {
		_, err := c.Do(ctx, req)
		done <- err
	}()

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Expected context.Canceled, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Do() did not return after cancellation")
	}
}
