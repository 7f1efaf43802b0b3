// cmd/colloquy/main.go
package main

import (
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"colloquy/internal/client"
	"colloquy/internal/ui"
)

func main() {
	server := flag.String("server", "http://127.0.0.1:8692", "colloquyd base URL")
	rounds := flag.Int("rounds", 0, "max rounds for new dialogues (1-5)")
	exportDir := flag.String("export-dir", ".", "directory for /export transcripts")
	flag.Parse()

	opts := ui.DefaultOptions()
	if *rounds > 0 {
		opts.MaxRounds = *rounds
	}
	opts.ExportDir = *exportDir

	cli := client.New(*server)
	p := tea.NewProgram(ui.New(cli, opts), tea.WithAltScreen(), tea.WithMouseCellMotion())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
