// internal/client/client.go
// HTTP consumer of the colloquy API: control endpoints plus the
// streaming per-turn event sequence.
package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"colloquy/internal/dialogue"
	"colloquy/internal/event"
	"colloquy/internal/scheduler"
)

type Client struct {
	baseURL string
	http    *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		// No overall timeout: turn streams stay open for minutes
		http: &http.Client{},
	}
}

type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (c *Client) CreateDialogue(ctx context.Context, cfg dialogue.Config) (string, error) {
	var created struct {
		ID string `json:"id"`
	}
	if err := c.call(ctx, http.MethodPost, "/v1/dialogues", cfg, &created); err != nil {
		return "", err
	}
	return created.ID, nil
}

func (c *Client) Get(ctx context.Context, id string) (dialogue.Snapshot, error) {
	var snap dialogue.Snapshot
	err := c.call(ctx, http.MethodGet, "/v1/dialogues/"+id, nil, &snap)
	return snap, err
}

func (c *Client) List(ctx context.Context) ([]dialogue.Snapshot, error) {
	var snaps []dialogue.Snapshot
	err := c.call(ctx, http.MethodGet, "/v1/dialogues", nil, &snaps)
	return snaps, err
}

func (c *Client) Pause(ctx context.Context, id string) error {
	return c.call(ctx, http.MethodPost, "/v1/dialogues/"+id+"/pause", nil, nil)
}

func (c *Client) Resume(ctx context.Context, id string) error {
	return c.call(ctx, http.MethodPost, "/v1/dialogues/"+id+"/resume", nil, nil)
}

func (c *Client) Stop(ctx context.Context, id string) error {
	return c.call(ctx, http.MethodPost, "/v1/dialogues/"+id+"/stop", nil, nil)
}

func (c *Client) Summary(ctx context.Context, id string) (scheduler.Summary, error) {
	var summary scheduler.Summary
	err := c.call(ctx, http.MethodGet, "/v1/dialogues/"+id+"/summary", nil, &summary)
	return summary, err
}

// NextTurn requests one turn and returns the decoded event stream.
// The events channel closes after the terminal event; a read or decode
// failure arrives on errs. By the time events closes the server has
// already persisted state, so callers may refetch the snapshot safely.
func (c *Client) NextTurn(ctx context.Context, id string, withChunks bool) (<-chan event.Event, <-chan error, error) {
	uri := c.baseURL + "/v1/dialogues/" + id + "/turn"
	if !withChunks {
		uri += "?chunks=false"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, uri, nil)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, nil, err
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, nil, decodeError(resp)
	}

	events := make(chan event.Event, 64)
	errs := make(chan error, 1)
	go func() {
		defer resp.Body.Close()
		defer close(events)
		defer close(errs)
		if err := readSSE(ctx, resp.Body, events); err != nil {
			errs <- err
		}
	}()
	return events, errs, nil
}

// readSSE decodes "data:" frames until the stream ends
func readSSE(ctx context.Context, body io.Reader, events chan<- event.Event) error {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data: ") {
			continue
		}

		ev, err := event.Decode([]byte(strings.TrimPrefix(line, "data: ")))
		if err != nil {
			return err
		}

		select {
		case events <- ev:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("read event stream: %w", err)
	}
	return nil
}

// call performs one JSON request/response against a control endpoint
func (c *Client) call(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if len(env.Data) == 0 {
		return nil
	}
	return json.Unmarshal(env.Data, out)
}

func decodeError(resp *http.Response) error {
	var env envelope
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&env); err == nil && env.Message != "" {
		return fmt.Errorf("%s: %s", resp.Status, env.Message)
	}
	return fmt.Errorf("request failed: %s", resp.Status)
}

// WaitHealthy polls the list endpoint until the server answers
func (c *Client) WaitHealthy(ctx context.Context, interval time.Duration) error {
	for {
		if _, err := c.List(ctx); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}
