// internal/provider/provider.go
package provider

import (
	"context"
	"errors"
)

var (
	// ErrUnknownModel distinguishes an unresolvable model identifier
	// from a transient provider failure; callers reject the request
	// instead of marking the dialogue errored-but-retryable.
	ErrUnknownModel = errors.New("unknown model identifier")

	ErrTimeout = errors.New("completion timed out")
)

// Message is one prior turn rendered for the model
type Message struct {
	Role    string // "assistant" for the speaking participant, "user" otherwise
	Name    string // participant display name
	Content string
}

// Request carries everything one completion call needs
type Request struct {
	Model        string
	SystemPrompt string
	Messages     []Message
	Temperature  float64
}

// Usage is the metadata reported once a completion finishes
type Usage struct {
	TotalTokens int
	LatencyMs   int64
}

// Chunk is one piece of a streaming completion. The final chunk has
// Done set and carries Usage; an error chunk terminates the stream.
type Chunk struct {
	Text      string
	Done      bool
	Err       error
	IsTimeout bool
	Usage     *Usage
}

// Provider generates one completion as a stream of chunks. The channel
// is closed after the Done (or error) chunk; cancelling ctx is the only
// way to abort mid-stream.
type Provider interface {
	Complete(ctx context.Context, req Request) <-chan Chunk
}
