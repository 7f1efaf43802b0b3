// internal/provider/anthropic.go
package provider

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"
)

const (
	anthropicDefaultEndpoint = "https://api.anthropic.com/v1/messages"
	anthropicVersion         = "2023-06-01"
	anthropicMaxTokens       = 4096
)

// AnthropicProvider streams completions from the Anthropic messages API
type AnthropicProvider struct {
	apiKey   string
	endpoint string
	client   *RetryableClient
}

func NewAnthropic(apiKey string) *AnthropicProvider {
	return NewAnthropicWithEndpoint(apiKey, anthropicDefaultEndpoint)
}

func NewAnthropicWithEndpoint(apiKey, endpoint string) *AnthropicProvider {
	return &AnthropicProvider{
		apiKey:   apiKey,
		endpoint: endpoint,
		client:   NewRetryableClient(DefaultRetryConfig()),
	}
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature,omitempty"`
	Stream      bool               `json:"stream"`
}

func (p *AnthropicProvider) Complete(ctx context.Context, req Request) <-chan Chunk {
	ch := make(chan Chunk, 100)

	go func() {
		defer close(ch)

		started := time.Now()

		// The messages API rejects consecutive same-role entries, so
		// prior turns are folded into alternating user/assistant roles
		// with the speaker named inline.
		var messages []anthropicMessage
		for _, msg := range req.Messages {
			content := fmt.Sprintf("[%s]: %s", msg.Name, msg.Content)
			if n := len(messages); n > 0 && messages[n-1].Role == msg.Role {
				messages[n-1].Content += "\n\n" + content
				continue
			}
			messages = append(messages, anthropicMessage{Role: msg.Role, Content: content})
		}
		if len(messages) == 0 || messages[0].Role != "user" {
			messages = append([]anthropicMessage{{Role: "user", Content: "Begin."}}, messages...)
		}

		payload, err := json.Marshal(anthropicRequest{
			Model:       req.Model,
			System:      req.SystemPrompt,
			Messages:    messages,
			MaxTokens:   anthropicMaxTokens,
			Temperature: req.Temperature,
			Stream:      true,
		})
		if err != nil {
			ch <- Chunk{Err: fmt.Errorf("marshal: %w", err), Done: true}
			return
		}

		httpReq, err := NewJSONRequest(ctx, p.endpoint, payload)
		if err != nil {
			ch <- Chunk{Err: fmt.Errorf("request: %w", err), Done: true}
			return
		}
		httpReq.Header.Set("x-api-key", p.apiKey)
		httpReq.Header.Set("anthropic-version", anthropicVersion)

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
		var inputTokens, outputTokens int

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)

		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if !strings.HasPrefix(line, "data: ") {
				continue
			}

			var event struct {
				Type  string `json:"type"`
				Delta struct {
					Type string `json:"type"`
					Text string `json:"text"`
				} `json:"delta"`
				Message struct {
					Usage struct {
						InputTokens int `json:"input_tokens"`
					} `json:"usage"`
				} `json:"message"`
				Usage struct {
					OutputTokens int `json:"output_tokens"`
				} `json:"usage"`
				Error struct {
					Type    string `json:"type"`
					Message string `json:"message"`
				} `json:"error"`
			}
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &event); err != nil {
				continue
			}

			switch event.Type {
			case "message_start":
				inputTokens = event.Message.Usage.InputTokens
			case "content_block_delta":
				if event.Delta.Text != "" {
					total.WriteString(event.Delta.Text)
					ch <- Chunk{Text: event.Delta.Text}
				}
			case "message_delta":
				outputTokens = event.Usage.OutputTokens
			case "error":
				ch <- Chunk{Err: fmt.Errorf("API error: %s: %s", event.Error.Type, event.Error.Message), Done: true}
				return
			case "message_stop":
				// stream complete; usage already captured
			}
		}

		if err := scanner.Err(); err != nil {
			ch <- Chunk{Err: err, Done: true, IsTimeout: isDeadline(err) || ctx.Err() != nil}
			return
		}

		tokens := inputTokens + outputTokens
		if tokens == 0 {
			tokens = estimateTokens(total.String())
		}
		ch <- Chunk{
			Done: true,
			Usage: &Usage{
				TotalTokens: tokens,
				LatencyMs:   time.Since(started).Milliseconds(),
			},
		}
	}()

	return ch
}
