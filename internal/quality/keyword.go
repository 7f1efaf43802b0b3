// internal/quality/keyword.go
package quality

import (
	"regexp"
	"strings"

	"colloquy/internal/dialogue"
)

// Flags reported by the keyword analyzer
const (
	FlagContradiction = "contradiction"
	FlagLoop          = "loop"
)

// Explicit position markers participants are prompted to use
var (
	objectPattern = regexp.MustCompile(`(?i)\bOBJECT:\s*(.+?)(?:\n|$)`)
	agreePattern  = regexp.MustCompile(`(?i)\bAGREE:\s*\[?([^\]\n]+)\]?`)

	objectKeywords = []string{"i disagree", "i object", "that's wrong", "that is incorrect"}
)

// KeywordAnalyzer is a lexical heuristic: it flags explicit objections
// as contradictions and near-verbatim repeats of a participant's own
// earlier turns as loops. It makes no semantic judgement.
type KeywordAnalyzer struct {
	// LoopThreshold is the word-overlap ratio above which a turn is
	// considered a repeat of an earlier one by the same participant
	LoopThreshold float64
}

func NewKeywordAnalyzer() *KeywordAnalyzer {
	return &KeywordAnalyzer{LoopThreshold: 0.8}
}

func (a *KeywordAnalyzer) Analyze(snap dialogue.Snapshot, turn dialogue.Turn) []Update {
	var flags []string

	if hasObjection(turn.Content) {
		flags = append(flags, FlagContradiction)
	}
	if a.isRepeat(snap, turn) {
		flags = append(flags, FlagLoop)
	}

	score := 1.0
	for range flags {
		score -= 0.25
	}
	if score < 0 {
		score = 0
	}

	return []Update{{HealthScore: score, Flags: flags}}
}

func hasObjection(content string) bool {
	if objectPattern.MatchString(content) {
		return true
	}
	// An explicit agreement marker overrides the fuzzy keyword scan,
	// which would otherwise trip on quoted or hedged phrasing.
	if agreePattern.MatchString(content) {
		return false
	}
	lower := strings.ToLower(content)
	for _, kw := range objectKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// isRepeat compares the turn against the same participant's earlier
// turns by word-set overlap. The final turn in the snapshot is the one
// under analysis and is skipped.
func (a *KeywordAnalyzer) isRepeat(snap dialogue.Snapshot, turn dialogue.Turn) bool {
	words := wordSet(turn.Content)
	if len(words) < 8 {
		return false
	}

	turns := snap.Turns()
	if n := len(turns); n > 0 && turns[n-1].CompletedAt.Equal(turn.CompletedAt) {
		turns = turns[:n-1]
	}

	for _, prior := range turns {
		if prior.Participant != turn.Participant {
			continue
		}
		if overlap(words, wordSet(prior.Content)) >= a.LoopThreshold {
			return true
		}
	}
	return false
}

func wordSet(content string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(content)) {
		w = strings.Trim(w, ".,!?;:\"'()[]")
		if len(w) > 2 {
			set[w] = true
		}
	}
	return set
}

// overlap is the share of a's words also present in b
func overlap(a, b map[string]bool) float64 {
	if len(a) == 0 {
		return 0
	}
	shared := 0
	for w := range a {
		if b[w] {
			shared++
		}
	}
	return float64(shared) / float64(len(a))
}
