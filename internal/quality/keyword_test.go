// internal/quality/keyword_test.go
package quality

import (
	"testing"
	"time"

	"colloquy/internal/dialogue"
)

func snapWithTurns(turns ...dialogue.Turn) dialogue.Snapshot {
	cfg := dialogue.Config{
		Topic: "heuristics",
		Participants: []dialogue.Participant{
			{Name: "A", Model: "m"},
			{Name: "B", Model: "m"},
		},
		MaxRounds: 5,
	}
	snap := dialogue.New("d-1", cfg, time.Now())
	for _, turn := range turns {
		snap = dialogue.Advance(snap, turn, turn.CompletedAt)
	}
	return snap
}

func TestAnalyzeCleanTurn(t *testing.T) {
	a := NewKeywordAnalyzer()
	turn := dialogue.Turn{Participant: 0, Content: "A measured take on the topic.", CompletedAt: time.Now()}
	snap := snapWithTurns(turn)

	updates := a.Analyze(snap, turn)
	if len(updates) != 1 {
		t.Fatalf("Expected 1 update, got %d", len(updates))
	}
	if updates[0].HealthScore != 1.0 {
		t.Errorf("Expected score 1.0, got %f", updates[0].HealthScore)
	}
	if len(updates[0].Flags) != 0 {
		t.Errorf("Expected no flags, got %v", updates[0].Flags)
	}
}

func TestAnalyzeContradiction(t *testing.T) {
	a := NewKeywordAnalyzer()

	tests := []struct {
		name    string
		content string
		want    bool
	}{
		{"marker", "OBJECT: the premise assumes its conclusion", true},
		{"marker lowercase", "object: still counts", true},
		{"keyword", "Well, I disagree with that framing.", true},
		{"keyword that's wrong", "No, that's wrong on the facts.", true},
		{"plain agreement", "That matches my read of the evidence.", false},
		{"agree marker beats keyword", "AGREE: [B] - some claim that's wrong, but the core holds.", false},
		{"object marker beats agree marker", "OBJECT: no. AGREE: was premature.", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			turn := dialogue.Turn{Participant: 0, Content: tt.content, CompletedAt: time.Now()}
			updates := a.Analyze(snapWithTurns(turn), turn)

			flagged := false
			for _, f := range updates[0].Flags {
				if f == FlagContradiction {
					flagged = true
				}
			}
			if flagged != tt.want {
				t.Errorf("Expected contradiction=%v for %q", tt.want, tt.content)
			}
		})
	}
}

func TestAnalyzeLoop(t *testing.T) {
	a := NewKeywordAnalyzer()
	text := "The fundamental point remains that correctness must come before performance in every engineering decision we make."

	base := time.Now()
	first := dialogue.Turn{Participant: 0, Content: text, CompletedAt: base}
	middle := dialogue.Turn{Participant: 1, Content: "A different perspective entirely.", CompletedAt: base.Add(time.Second)}
	repeat := dialogue.Turn{Participant: 0, Content: text, CompletedAt: base.Add(2 * time.Second)}

	snap := snapWithTurns(first, middle, repeat)
	updates := a.Analyze(snap, repeat)

	found := false
	for _, f := range updates[0].Flags {
		if f == FlagLoop {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected loop flag for a verbatim repeat, got %v", updates[0].Flags)
	}
	if updates[0].HealthScore != 0.75 {
		t.Errorf("Expected score 0.75 with one flag, got %f", updates[0].HealthScore)
	}
}

func TestAnalyzeLoopIgnoresOtherParticipants(t *testing.T) {
	a := NewKeywordAnalyzer()
	text := "The fundamental point remains that correctness must come before performance in every engineering decision we make."

	base := time.Now()
	first := dialogue.Turn{Participant: 0, Content: text, CompletedAt: base}
	echo := dialogue.Turn{Participant: 1, Content: text, CompletedAt: base.Add(time.Second)}

	snap := snapWithTurns(first, echo)
	updates := a.Analyze(snap, echo)

	for _, f := range updates[0].Flags {
		if f == FlagLoop {
			t.Error("Expected no loop flag when a different participant repeats the text")
		}
	}
}

func TestAnalyzeShortTurnsNeverLoop(t *testing.T) {
	a := NewKeywordAnalyzer()
	base := time.Now()
	first := dialogue.Turn{Participant: 0, Content: "Yes.", CompletedAt: base}
	repeat := dialogue.Turn{Participant: 0, Content: "Yes.", CompletedAt: base.Add(time.Second)}

	snap := snapWithTurns(first, repeat)
	updates := a.Analyze(snap, repeat)

	for _, f := range updates[0].Flags {
		if f == FlagLoop {
			t.Error("Expected short turns exempt from loop detection")
		}
	}
}

func TestAnalyzeBothFlags(t *testing.T) {
	a := NewKeywordAnalyzer()
	text := "I disagree because the fundamental point remains that correctness must come before performance in every decision."

	base := time.Now()
	first := dialogue.Turn{Participant: 0, Content: text, CompletedAt: base}
	repeat := dialogue.Turn{Participant: 0, Content: text, CompletedAt: base.Add(time.Second)}

	snap := snapWithTurns(first, repeat)
	updates := a.Analyze(snap, repeat)

	if len(updates[0].Flags) != 2 {
		t.Fatalf("Expected both flags, got %v", updates[0].Flags)
	}
	if updates[0].HealthScore != 0.5 {
		t.Errorf("Expected score 0.5 with two flags, got %f", updates[0].HealthScore)
	}
}
