// internal/quality/quality.go
// Optional side-channel that scores dialogue health after each turn.
// Implementations feed quality_update events into the per-turn stream;
// consumers that do not understand them skip them.
package quality

import (
	"colloquy/internal/dialogue"
)

// Update is one analyzer observation for a completed turn
type Update struct {
	HealthScore float64
	Flags       []string
}

// Analyzer inspects the advanced snapshot and the turn that produced
// it. Implementations must be pure with respect to the snapshot.
type Analyzer interface {
	Analyze(snap dialogue.Snapshot, turn dialogue.Turn) []Update
}
