// internal/provider/registry.go
package provider

import (
	"context"
	"fmt"
	"strings"
)

// Registry routes model identifiers to providers by longest matching
// prefix, e.g. "gpt-" and "o1" to an OpenAI-compatible endpoint and
// "claude-" to Anthropic. Registration order is preserved for display.
type Registry struct {
	entries []registryEntry
}

type registryEntry struct {
	prefix   string
	provider Provider
}

func NewRegistry() *Registry {
	return &Registry{}
}

// Register binds a model-id prefix to a provider
func (r *Registry) Register(prefix string, p Provider) {
	r.entries = append(r.entries, registryEntry{prefix: prefix, provider: p})
}

// Resolve finds the provider for a model identifier.
// Unknown identifiers fail with ErrUnknownModel before any call is made.
func (r *Registry) Resolve(model string) (Provider, error) {
	var best *registryEntry
	for i := range r.entries {
		e := &r.entries[i]
		if strings.HasPrefix(model, e.prefix) {
			if best == nil || len(e.prefix) > len(best.prefix) {
				best = e
			}
		}
	}
	if best == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownModel, model)
	}
	return best.provider, nil
}

// Complete resolves and delegates in one step; resolution failures are
// delivered as a terminal error chunk so callers see one stream shape.
func (r *Registry) Complete(ctx context.Context, req Request) <-chan Chunk {
	p, err := r.Resolve(req.Model)
	if err != nil {
		ch := make(chan Chunk, 1)
		ch <- Chunk{Err: err, Done: true}
		close(ch)
		return ch
	}
	return p.Complete(ctx, req)
}

// Prefixes lists registered prefixes in registration order
func (r *Registry) Prefixes() []string {
	out := make([]string, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.prefix
	}
	return out
}
