// Package commands handles slash command parsing for the colloquy
// terminal client.
package commands

import (
	"strings"
)

// Command interface for all command types
type Command interface {
	Type() string
}

// Help shows help text
type Help struct{}

func (Help) Type() string { return "help" }

// NewDialogue creates a dialogue on the configured topic
type NewDialogue struct {
	Topic string
}

func (NewDialogue) Type() string { return "new" }

// NextTurn requests a single turn
type NextTurn struct{}

func (NextTurn) Type() string { return "next" }

// Auto keeps requesting turns until the dialogue completes
type Auto struct{}

func (Auto) Type() string { return "auto" }

// Pause pauses the current dialogue between turns
type Pause struct{}

func (Pause) Type() string { return "pause" }

// Resume resumes a paused dialogue
type Resume struct{}

func (Resume) Type() string { return "resume" }

// Stop forces the dialogue to complete
type Stop struct{}

func (Stop) Type() string { return "stop" }

// Summary shows per-participant stats and the transcript
type Summary struct{}

func (Summary) Type() string { return "summary" }

// Export writes the transcript to a markdown file
type Export struct{}

func (Export) Type() string { return "export" }

// List shows stored dialogues
type List struct{}

func (List) Type() string { return "list" }

// Open attaches to an existing dialogue
type Open struct {
	ID string
}

func (Open) Type() string { return "open" }

// Quit exits the client
type Quit struct{}

func (Quit) Type() string { return "quit" }

// Unknown is returned for unrecognized commands
type Unknown struct {
	Input string
}

func (Unknown) Type() string { return "unknown" }

// Parse interprets a slash command line. Non-command input returns
// nil so the caller can treat it as a new-dialogue topic.
func Parse(input string) Command {
	input = strings.TrimSpace(input)
	if !strings.HasPrefix(input, "/") {
		return nil
	}

	parts := strings.SplitN(input[1:], " ", 2)
	verb := strings.ToLower(parts[0])
	arg := ""
	if len(parts) > 1 {
		arg = strings.TrimSpace(parts[1])
	}

	switch verb {
	case "help", "h", "?":
		return Help{}
	case "new", "n":
		return NewDialogue{Topic: arg}
	case "next", "turn":
		return NextTurn{}
	case "auto", "run":
		return Auto{}
	case "pause":
		return Pause{}
	case "resume":
		return Resume{}
	case "stop":
		return Stop{}
	case "summary", "sum":
		return Summary{}
	case "export":
		return Export{}
	case "list", "ls":
		return List{}
	case "open":
		return Open{ID: arg}
	case "quit", "q", "exit":
		return Quit{}
	default:
		return Unknown{Input: input}
	}
}
