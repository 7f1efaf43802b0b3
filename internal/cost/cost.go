// internal/cost/cost.go
// Token/cost accounting for dialogues. Totals are recomputed from the
// full turn history on every update rather than tracked incrementally,
// so they can never drift; dialogues cap out at a few dozen turns.
package cost

import (
	"colloquy/internal/dialogue"
)

// Rates maps a model identifier to its cost per 1,000 tokens.
// The table is supplied externally via configuration.
type Rates map[string]float64

// Rate returns the per-1k-token rate for a model, zero when unknown
func (r Rates) Rate(model string) float64 {
	return r[model]
}

// Cost prices a token count against the model's rate
func (r Rates) Cost(model string, tokens int) float64 {
	return r.Rate(model) * float64(tokens) / 1000.0
}

// Aggregate recomputes per-round cost, cumulative cost and the
// tokens-by-model map from scratch and returns the updated snapshot.
func Aggregate(snap dialogue.Snapshot, rates Rates) dialogue.Snapshot {
	out := snap.Clone()

	total := 0.0
	tokens := make(map[string]int)

	for i := range out.Rounds {
		roundCost := 0.0
		for _, turn := range out.Rounds[i].Turns {
			roundCost += rates.Cost(turn.Model, turn.Tokens)
			tokens[turn.Model] += turn.Tokens
		}
		out.Rounds[i].Cost = roundCost
		total += roundCost
	}

	out.TotalCost = total
	if len(tokens) > 0 {
		out.TokensByModel = tokens
	} else {
		out.TokensByModel = nil
	}

	return out
}
