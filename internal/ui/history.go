// internal/ui/history.go
package ui

import (
	"fmt"
	"strings"

	"colloquy/internal/dialogue"
)

// ViewMode represents the current view state
type ViewMode int

const (
	ViewNormal ViewMode = iota
	ViewHistory
	ViewHelp
	ViewSummary
)

// HistoryState holds the state for the dialogue browser
type HistoryState struct {
	dialogues []dialogue.Snapshot
	cursor    int
	scrollTop int
	maxHeight int
}

func NewHistoryState() *HistoryState {
	return &HistoryState{maxHeight: 20}
}

// SetDialogues replaces the listing and clamps the cursor
func (h *HistoryState) SetDialogues(list []dialogue.Snapshot) {
	h.dialogues = list
	if h.cursor >= len(list) {
		h.cursor = len(list) - 1
	}
	if h.cursor < 0 {
		h.cursor = 0
	}
	if h.scrollTop > h.cursor {
		h.scrollTop = h.cursor
	}
}

func (h *HistoryState) SetMaxHeight(height int) {
	if height > 0 {
		h.maxHeight = height
	}
}

// Up moves the cursor up
func (h *HistoryState) Up() {
	if h.cursor > 0 {
		h.cursor--
		if h.cursor < h.scrollTop {
			h.scrollTop = h.cursor
		}
	}
}

// Down moves the cursor down
func (h *HistoryState) Down() {
	if h.cursor < len(h.dialogues)-1 {
		h.cursor++
		if h.cursor >= h.scrollTop+h.maxHeight {
			h.scrollTop = h.cursor - h.maxHeight + 1
		}
	}
}

// Selected returns the snapshot under the cursor, if any
func (h *HistoryState) Selected() (dialogue.Snapshot, bool) {
	if h.cursor < 0 || h.cursor >= len(h.dialogues) {
		return dialogue.Snapshot{}, false
	}
	return h.dialogues[h.cursor], true
}

// Render draws the dialogue listing
func (h *HistoryState) Render(width int) string {
	var sb strings.Builder

	sb.WriteString(TitleStyle.Render("DIALOGUES"))
	sb.WriteString("\n\n")

	if len(h.dialogues) == 0 {
		sb.WriteString(DimStyle.Render("No dialogues yet. /new <topic> to start one."))
		sb.WriteString("\n")
		return sb.String()
	}

	end := h.scrollTop + h.maxHeight
	if end > len(h.dialogues) {
		end = len(h.dialogues)
	}

	for i := h.scrollTop; i < end; i++ {
		d := h.dialogues[i]

		topic := d.Topic
		if width > 20 && len(topic) > width-40 {
			topic = topic[:width-43] + "..."
		}

		line := fmt.Sprintf("%s  %s  %s  %s",
			d.UpdatedAt.Format("2006-01-02 15:04"),
			statusBadge(string(d.Status)),
			topic,
			CostStyle.Render(fmt.Sprintf("$%.4f", d.TotalCost)))

		if i == h.cursor {
			sb.WriteString(TitleStyle.Render("> "))
			sb.WriteString(line)
		} else {
			sb.WriteString("  ")
			sb.WriteString(line)
		}
		sb.WriteString("\n")
	}

	sb.WriteString("\n")
	sb.WriteString(DimStyle.Render("up/down to move, enter to open, esc to close"))
	sb.WriteString("\n")
	return sb.String()
}

func statusBadge(status string) string {
	switch status {
	case "running":
		return StatusOK.Render("running  ")
	case "paused":
		return StatusWarn.Render("paused   ")
	case "errored":
		return StatusCrit.Render("errored  ")
	case "completed":
		return DimStyle.Render("completed")
	default:
		return DimStyle.Render(status)
	}
}
