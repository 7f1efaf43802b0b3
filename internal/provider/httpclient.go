// internal/provider/httpclient.go
package provider

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

// HTTP statuses worth another attempt
var (
	ErrRateLimit      = errors.New("rate limit exceeded (429)")
	ErrBadGateway     = errors.New("bad gateway (502)")
	ErrServerBusy     = errors.New("server busy (503)")
	ErrGatewayTimeout = errors.New("gateway timeout (504)")
)

// RetryConfig controls backoff between attempts
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		MaxDelay:    10 * time.Second,
	}
}

// RetryableClient wraps http.Client with exponential backoff for
// transient transport errors and retryable status codes.
type RetryableClient struct {
	client *http.Client
	config RetryConfig
}

func NewRetryableClient(config RetryConfig) *RetryableClient {
	return &RetryableClient{
		client: &http.Client{
			// Long overall timeout: a streaming completion can run minutes
			Timeout: 300 * time.Second,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout:   10 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout:   10 * time.Second,
				ResponseHeaderTimeout: 30 * time.Second,
				IdleConnTimeout:       90 * time.Second,
				MaxIdleConnsPerHost:   5,
			},
		},
		config: config,
	}
}

// Do executes the request, retrying transient failures with doubling
// delay. The request must have GetBody set so retries can re-read it;
// NewJSONRequest takes care of that.
func (c *RetryableClient) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	var lastErr error
	delay := c.config.BaseDelay

	for attempt := 0; attempt < c.config.MaxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
				delay = min(delay*2, c.config.MaxDelay)
			}
		}

		resp, err := c.client.Do(req.Clone(ctx))
		if err != nil {
			if !isRetryable(err) {
				return nil, err
			}
			lastErr = err
			continue
		}

		if retryErr := statusError(resp.StatusCode); retryErr != nil {
			resp.Body.Close()
			lastErr = retryErr
			continue
		}

		return resp, nil
	}

	return nil, fmt.Errorf("after %d attempts: %w", c.config.MaxAttempts, lastErr)
}

func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return dnsErr.Temporary()
	}

	return false
}

// statusError returns a sentinel for retryable statuses, nil otherwise
func statusError(code int) error {
	switch code {
	case http.StatusTooManyRequests:
		return ErrRateLimit
	case http.StatusBadGateway:
		return ErrBadGateway
	case http.StatusServiceUnavailable:
		return ErrServerBusy
	case http.StatusGatewayTimeout:
		return ErrGatewayTimeout
	default:
		return nil
	}
}

// NewJSONRequest builds a POST with a replayable JSON body
func NewJSONRequest(ctx context.Context, url string, body []byte) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return nil, err
	}
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(body)), nil
	}
	req.Body, _ = req.GetBody()
	req.ContentLength = int64(len(body))
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}
