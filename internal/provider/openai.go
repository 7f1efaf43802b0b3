// internal/provider/openai.go
package provider

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

const openAIDefaultEndpoint = "https://api.openai.com/v1/chat/completions"

// OpenAIProvider streams completions from an OpenAI-compatible chat
// completions endpoint.
type OpenAIProvider struct {
	apiKey   string
	endpoint string
	client   *RetryableClient
}

func NewOpenAI(apiKey string) *OpenAIProvider {
	return NewOpenAIWithEndpoint(apiKey, openAIDefaultEndpoint)
}

// NewOpenAIWithEndpoint targets a compatible endpoint (proxy, local server)
func NewOpenAIWithEndpoint(apiKey, endpoint string) *OpenAIProvider {
	return &OpenAIProvider{
		apiKey:   apiKey,
		endpoint: endpoint,
		client:   NewRetryableClient(DefaultRetryConfig()),
	}
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIRequest struct {
	Model         string          `json:"model"`
	Messages      []openAIMessage `json:"messages"`
	Temperature   float64         `json:"temperature,omitempty"`
	Stream        bool            `json:"stream"`
	StreamOptions *struct {
		IncludeUsage bool `json:"include_usage"`
	} `json:"stream_options,omitempty"`
}

func (p *OpenAIProvider) Complete(ctx context.Context, req Request) <-chan Chunk {
	ch := make(chan Chunk, 100)

	go func() {
		defer close(ch)

		started := time.Now()

		messages := []openAIMessage{{Role: "system", Content: req.SystemPrompt}}
		for _, msg := range req.Messages {
			messages = append(messages, openAIMessage{
				Role:    msg.Role,
				Content: fmt.Sprintf("[%s]: %s", msg.Name, msg.Content),
			})
		}

		body := openAIRequest{
			Model:       req.Model,
			Messages:    messages,
			Temperature: req.Temperature,
			Stream:      true,
		}
		body.StreamOptions = &struct {
			IncludeUsage bool `json:"include_usage"`
		}{IncludeUsage: true}

		payload, err := json.Marshal(body)
		if err != nil {
			ch <- Chunk{Err: fmt.Errorf("marshal: %w", err), Done: true}
			return
		}

		httpReq, err := NewJSONRequest(ctx, p.endpoint, payload)
		if err != nil {
			ch <- Chunk{Err: fmt.Errorf("request: %w", err), Done: true}
			return
		}
		httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

		resp, err := p.client.Do(ctx, httpReq)
		if err != nil {
			ch <- Chunk{Err: err, Done: true, IsTimeout: isDeadline(err)}
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode != 200 {
			detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
			ch <- Chunk{Err: fmt.Errorf("API error %d: %s", resp.StatusCode, strings.TrimSpace(string(detail))), Done: true}
			return
		}

		var total strings.Builder
		var totalTokens int

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)

		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if !strings.HasPrefix(line, "data: ") {
				continue
			}
			data := strings.TrimPrefix(line, "data: ")
			if data == "[DONE]" {
				break
			}

			var event struct {
				Choices []struct {
					Delta struct {
						Content string `json:"content"`
					} `json:"delta"`
					FinishReason string `json:"finish_reason"`
				} `json:"choices"`
				Usage *struct {
					TotalTokens int `json:"total_tokens"`
				} `json:"usage"`
			}
			if err := json.Unmarshal([]byte(data), &event); err != nil {
				continue
			}

			if event.Usage != nil {
				totalTokens = event.Usage.TotalTokens
			}
			for _, choice := range event.Choices {
				if choice.Delta.Content != "" {
					total.WriteString(choice.Delta.Content)
					ch <- Chunk{Text: choice.Delta.Content}
				}
			}
		}

		if err := scanner.Err(); err != nil {
			timedOut := isDeadline(err) || ctx.Err() != nil
			ch <- Chunk{Err: err, Done: true, IsTimeout: timedOut}
			return
		}

		if totalTokens == 0 {
			totalTokens = estimateTokens(total.String())
		}
		ch <- Chunk{
			Done: true,
			Usage: &Usage{
				TotalTokens: totalTokens,
				LatencyMs:   time.Since(started).Milliseconds(),
			},
		}
	}()

	return ch
}

func isDeadline(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}

// estimateTokens is a coarse fallback for endpoints that omit usage
// from their stream: roughly four characters per token.
func estimateTokens(text string) int {
	n := len(text) / 4
	if n == 0 && text != "" {
		n = 1
	}
	return n
}
