// internal/scheduler/summary.go
package scheduler

import (
	"colloquy/internal/dialogue"
	"colloquy/internal/export"
)

// ParticipantStats aggregates one participant's contribution
type ParticipantStats struct {
	Participant   int     `json:"participant"`
	Name          string  `json:"name"`
	Model         string  `json:"model"`
	TurnCount     int     `json:"turn_count"`
	TotalTokens   int     `json:"total_tokens"`
	TotalCost     float64 `json:"total_cost"`
	MeanLatencyMs int64   `json:"mean_latency_ms"`
}

// Summary is the read model returned by GetSummary
type Summary struct {
	DialogueID   string             `json:"dialogue_id"`
	Topic        string             `json:"topic"`
	Status       dialogue.Status    `json:"status"`
	Rounds       int                `json:"rounds"`
	TotalCost    float64            `json:"total_cost"`
	Participants []ParticipantStats `json:"participants"`
	Transcript   string             `json:"transcript"`
}

// GetSummary is a pure read over whatever history exists; it works in
// any status so an errored dialogue's transcript stays reachable.
func (s *Scheduler) GetSummary(id string) (Summary, error) {
	snap, err := s.store.Get(id)
	if err != nil {
		return Summary{}, err
	}

	stats := make([]ParticipantStats, len(snap.Participants))
	for i, p := range snap.Participants {
		stats[i] = ParticipantStats{Participant: i, Name: p.Name, Model: p.Model}
	}

	latencySums := make([]int64, len(snap.Participants))
	for _, turn := range snap.Turns() {
		if turn.Participant < 0 || turn.Participant >= len(stats) {
			continue
		}
		st := &stats[turn.Participant]
		st.TurnCount++
		st.TotalTokens += turn.Tokens
		st.TotalCost += s.rates.Cost(turn.Model, turn.Tokens)
		latencySums[turn.Participant] += turn.LatencyMs
	}
	for i := range stats {
		if stats[i].TurnCount > 0 {
			stats[i].MeanLatencyMs = latencySums[i] / int64(stats[i].TurnCount)
		}
	}

	completedRounds := 0
	for _, r := range snap.Rounds {
		if len(r.Turns) == len(snap.Participants) {
			completedRounds++
		}
	}

	return Summary{
		DialogueID:   snap.ID,
		Topic:        snap.Topic,
		Status:       snap.Status,
		Rounds:       completedRounds,
		TotalCost:    snap.TotalCost,
		Participants: stats,
		Transcript:   export.Transcript(snap),
	}, nil
}
