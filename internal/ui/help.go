// internal/ui/help.go
package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Help overlay content and rendering

var (
	helpTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(Cyan).
			MarginBottom(1)

	helpSectionStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(Yellow).
				MarginTop(1)

	helpCmdStyle = lipgloss.NewStyle().
			Foreground(Magenta)

	helpDescStyle = lipgloss.NewStyle().
			Foreground(White)
)

type helpEntry struct {
	cmd  string
	desc string
}

var helpCommands = []helpEntry{
	{"/new <topic>", "create a dialogue on a topic"},
	{"/next", "run the next participant's turn"},
	{"/auto", "run turns until the dialogue finishes"},
	{"/pause", "pause between turns"},
	{"/resume", "resume a paused dialogue"},
	{"/stop", "stop the dialogue for good"},
	{"/summary", "show the dialogue summary"},
	{"/export", "write the transcript to a markdown file"},
	{"/list", "browse past dialogues"},
	{"/open <id>", "attach to an existing dialogue"},
	{"/help", "show this help"},
	{"/quit", "exit"},
}

var helpKeys = []helpEntry{
	{"enter", "submit command"},
	{"esc", "close overlay / cancel auto"},
	{"ctrl+c", "quit"},
}

// HelpContent returns the formatted help overlay content
func HelpContent() string {
	var sb strings.Builder

	sb.WriteString(helpTitleStyle.Render("COLLOQUY HELP"))
	sb.WriteString("\n\n")

	sb.WriteString(helpSectionStyle.Render("COMMANDS"))
	sb.WriteString("\n\n")
	for _, e := range helpCommands {
		sb.WriteString(fmt.Sprintf("  %s  %s\n",
			helpCmdStyle.Render(fmt.Sprintf("%-14s", e.cmd)),
			helpDescStyle.Render(e.desc)))
	}

	sb.WriteString("\n")
	sb.WriteString(helpSectionStyle.Render("KEYS"))
	sb.WriteString("\n\n")
	for _, e := range helpKeys {
		sb.WriteString(fmt.Sprintf("  %s  %s\n",
			helpCmdStyle.Render(fmt.Sprintf("%-14s", e.cmd)),
			helpDescStyle.Render(e.desc)))
	}

	sb.WriteString("\n")
	sb.WriteString(DimStyle.Render("esc to close"))
	sb.WriteString("\n")

	return sb.String()
}
