// internal/export/markdown.go
package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"colloquy/internal/dialogue"
)

// Transcript renders a dialogue's full history as markdown. It works
// for any status, so an errored or paused dialogue still produces the
// turns accumulated so far.
func Transcript(snap dialogue.Snapshot) string {
	var sb strings.Builder

	sb.WriteString("# ")
	sb.WriteString(snap.Topic)
	sb.WriteString("\n\n---\n\n")

	sb.WriteString(fmt.Sprintf("**Dialogue ID:** `%s`\n\n", snap.ID))
	sb.WriteString(fmt.Sprintf("**Created:** %s\n\n", snap.CreatedAt.Format("2006-01-02 15:04:05")))
	sb.WriteString(fmt.Sprintf("**Status:** %s\n\n", snap.Status))

	names := make([]string, len(snap.Participants))
	for i, p := range snap.Participants {
		names[i] = fmt.Sprintf("%s (`%s`)", p.Name, p.Model)
	}
	sb.WriteString("**Participants:** ")
	sb.WriteString(strings.Join(names, ", "))
	sb.WriteString("\n\n---\n\n")

	for _, round := range snap.Rounds {
		if len(round.Turns) == 0 {
			continue
		}
		sb.WriteString(fmt.Sprintf("## Round %d\n\n", round.Number))

		for _, turn := range round.Turns {
			name := participantName(snap, turn.Participant)
			ts := turn.CompletedAt.Format("15:04:05")
			sb.WriteString(fmt.Sprintf("### [%s] %s\n\n", ts, name))

			content := strings.TrimSpace(turn.Content)
			if content == "" {
				content = "*(empty response)*"
			}
			if strings.Contains(content, "```") {
				sb.WriteString(content)
				sb.WriteString("\n")
			} else {
				for _, line := range strings.Split(content, "\n") {
					sb.WriteString("> ")
					sb.WriteString(line)
					sb.WriteString("\n")
				}
			}
			sb.WriteString(fmt.Sprintf("\n*%d tokens, %dms*\n\n", turn.Tokens, turn.LatencyMs))
		}

		sb.WriteString(fmt.Sprintf("_Round cost: $%.4f_\n\n---\n\n", round.Cost))
	}

	sb.WriteString(fmt.Sprintf("**Total cost:** $%.4f\n", snap.TotalCost))
	if len(snap.TokensByModel) > 0 {
		sb.WriteString("\n**Tokens by model:**\n\n")
		// Participant order keeps the listing stable; participants may
		// share a model, so each model prints once.
		seen := make(map[string]bool)
		for _, p := range snap.Participants {
			if seen[p.Model] {
				continue
			}
			seen[p.Model] = true
			if tokens, ok := snap.TokensByModel[p.Model]; ok {
				sb.WriteString(fmt.Sprintf("- `%s`: %d\n", p.Model, tokens))
			}
		}
	}

	return sb.String()
}

// WriteTranscript writes the transcript under baseDir/transcripts as
// YYYY-MM-DD-<topic>.md and returns the path.
func WriteTranscript(snap dialogue.Snapshot, baseDir string) (string, error) {
	dir := filepath.Join(baseDir, "transcripts")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create transcripts directory: %w", err)
	}

	filename := fmt.Sprintf("%s-%s.md", snap.CreatedAt.Format("2006-01-02"), sanitizeFilename(snap.Topic))
	path := filepath.Join(dir, filename)

	if err := os.WriteFile(path, []byte(Transcript(snap)), 0644); err != nil {
		return "", fmt.Errorf("write transcript: %w", err)
	}
	return path, nil
}

func participantName(snap dialogue.Snapshot, index int) string {
	if index >= 0 && index < len(snap.Participants) {
		return snap.Participants[index].Name
	}
	return fmt.Sprintf("participant %d", index)
}

// sanitizeFilename lowercases and strips everything but [a-z0-9-_]
func sanitizeFilename(name string) string {
	name = strings.ToLower(strings.ReplaceAll(name, " ", "-"))

	var sb strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			sb.WriteRune(r)
		}
	}

	result := sb.String()
	for strings.Contains(result, "--") {
		result = strings.ReplaceAll(result, "--", "-")
	}
	result = strings.Trim(result, "-")

	if result == "" {
		result = "dialogue"
	}
	if len(result) > 50 {
		result = result[:50]
	}
	return result
}
