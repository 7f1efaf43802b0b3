// internal/ui/transcript.go
package ui

import (
	"fmt"
	"strings"
	"time"

	"colloquy/internal/mirror"
)

// streamingFrames is the animation shown after a speaker that is mid-turn.
var streamingFrames = []string{"", ".", "..", "..."}

// RenderTranscript renders mirrored transcript entries for the viewport.
// frame selects the streaming indicator animation frame.
func RenderTranscript(entries []mirror.Entry, frame int) string {
	var sb strings.Builder

	for _, e := range entries {
		ts := e.Timestamp.Format("15:04")
		style := ParticipantStyle(e.Participant)

		name := e.Name
		if name == "" {
			name = fmt.Sprintf("Participant %d", e.Participant+1)
		}

		var header string
		switch {
		case e.Err != "":
			header = ErrorStyle.Render(fmt.Sprintf("[%s] %s error:", ts, name))
		case e.Streaming:
			indicator := streamingFrames[((frame%len(streamingFrames))+len(streamingFrames))%len(streamingFrames)]
			header = style.Render(fmt.Sprintf("[%s] %s%s:", ts, name, indicator))
		default:
			header = style.Render(fmt.Sprintf("[%s] %s:", ts, name)) +
				" " + DimStyle.Render(fmt.Sprintf("(round %d, %s)", e.Round, e.Model))
		}

		sb.WriteString(header)
		sb.WriteString("\n")

		content := e.Content
		if e.Err != "" {
			content = e.Err
		}
		for _, line := range strings.Split(content, "\n") {
			sb.WriteString("  ")
			if e.Err != "" {
				sb.WriteString(ErrorStyle.Render(line))
			} else {
				sb.WriteString(line)
			}
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

// RenderSpeakers renders the participant sidebar with per-seat activity.
func RenderSpeakers(m *mirror.Mirror, frame int, started time.Time) string {
	var sb strings.Builder

	sb.WriteString(TitleStyle.Render("SPEAKERS"))
	sb.WriteString("\n\n")

	snap := m.Snapshot()
	streaming := -1
	for _, e := range m.Transcript() {
		if e.Streaming {
			streaming = e.Participant
		}
	}

	for i, p := range snap.Participants {
		style := ParticipantStyle(i)
		name := p.Name

		var line string
		switch {
		case i == streaming:
			name += streamingFrames[((frame%len(streamingFrames))+len(streamingFrames))%len(streamingFrames)]
			elapsed := formatElapsed(time.Since(started))
			line = fmt.Sprintf("%s %s %s",
				StatusWarn.Render("●"),
				style.Render(name),
				DimStyle.Render(fmt.Sprintf("(%s)", elapsed)))
		case i == snap.CurrentTurn && snap.Status == "running":
			line = fmt.Sprintf("%s %s %s",
				StatusOK.Render("○"),
				style.Render(name),
				DimStyle.Render("(next)"))
		default:
			line = fmt.Sprintf("%s %s", DimStyle.Render("○"), style.Render(name))
		}

		sb.WriteString(line)
		sb.WriteString("\n")
		sb.WriteString(DimStyle.Render("  " + p.Model))
		sb.WriteString("\n")
	}

	return sb.String()
}

func formatElapsed(elapsed time.Duration) string {
	if elapsed < time.Second {
		return "<1s"
	}
	if elapsed < time.Minute {
		return fmt.Sprintf("%ds", int(elapsed.Seconds()))
	}
	return fmt.Sprintf("%dm%ds", int(elapsed.Minutes()), int(elapsed.Seconds())%60)
}
