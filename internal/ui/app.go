// internal/ui/app.go
package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"colloquy/internal/client"
	"colloquy/internal/commands"
	"colloquy/internal/dialogue"
	"colloquy/internal/event"
	"colloquy/internal/export"
	"colloquy/internal/mirror"
)

// Options configures the client shell. Participants and MaxRounds seed
// the config sent with /new; ExportDir is where /export writes transcripts.
type Options struct {
	Participants []dialogue.Participant
	MaxRounds    int
	CostWarning  float64
	ExportDir    string
}

func DefaultOptions() Options {
	return Options{
		Participants: []dialogue.Participant{
			{Name: "Proposer", Model: "gpt-4o-mini", SystemPrompt: "Argue for the strongest version of the position under discussion.", Temperature: 0.7},
			{Name: "Skeptic", Model: "claude-3-5-haiku-latest", SystemPrompt: "Probe the previous speaker's claims for weaknesses.", Temperature: 0.7},
		},
		MaxRounds:   3,
		CostWarning: 1.0,
		ExportDir:   ".",
	}
}

type (
	eventMsg      struct{ ev event.Event }
	streamDoneMsg struct{ err error }
	createdMsg    struct {
		id   string
		snap dialogue.Snapshot
	}
	openedMsg  struct{ snap dialogue.Snapshot }
	listMsg    struct{ list []dialogue.Snapshot }
	summaryMsg struct{ rendered string }
	exportMsg  struct{ path string }
	ackMsg     struct{ verb string }
	errMsg     struct{ err error }
	tickMsg    time.Time
)

type Model struct {
	cli  *client.Client
	opts Options

	mirror     *mirror.Mirror
	dialogueID string

	viewport viewport.Model
	input    textinput.Model
	history  *HistoryState
	mode     ViewMode

	overlay     string
	status      string
	auto        bool
	streaming   bool
	frame       int
	turnStarted time.Time

	events <-chan event.Event
	errs   <-chan error

	width, height int
	ready         bool
}

func New(cli *client.Client, opts Options) Model {
	in := textinput.New()
	in.Placeholder = "/new <topic>, /next, /help"
	in.Prompt = "> "
	in.Focus()

	return Model{
		cli:     cli,
		opts:    opts,
		mirror:  mirror.New(),
		input:   in,
		history: NewHistoryState(),
		mode:    ViewNormal,
		status:  "No dialogue attached. /new <topic> to begin.",
	}
}

func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		vpHeight := msg.Height - 7
		if vpHeight < 3 {
			vpHeight = 3
		}
		if !m.ready {
			m.viewport = viewport.New(msg.Width-2, vpHeight)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width - 2
			m.viewport.Height = vpHeight
		}
		m.history.SetMaxHeight(vpHeight - 4)
		m.refreshTranscript()
		return m, nil

	case eventMsg:
		m.mirror.Apply(msg.ev)
		if msg.ev.Type == event.TypeParticipantStart {
			m.turnStarted = msg.ev.Timestamp
		}
		m.refreshTranscript()
		m.viewport.GotoBottom()
		return m, waitEvent(m.events, m.errs)

	case streamDoneMsg:
		m.streaming = false
		m.events, m.errs = nil, nil
		if msg.err != nil {
			m.auto = false
			m.status = ErrorStyle.Render(fmt.Sprintf("turn failed: %v", msg.err))
			m.refreshTranscript()
			return m, nil
		}
		if m.auto && m.mirror.State() == mirror.StateReady {
			return m.startTurn()
		}
		m.auto = false
		m.status = statusLine(m.mirror)
		m.refreshTranscript()
		return m, nil

	case createdMsg:
		m.dialogueID = msg.id
		m.mirror = mirror.New()
		m.mirror.Seed(msg.snap)
		m.auto = false
		m.status = fmt.Sprintf("Dialogue %s created. /next to run the first turn.", shortID(msg.id))
		m.refreshTranscript()
		return m, nil

	case openedMsg:
		m.dialogueID = msg.snap.ID
		m.mirror = mirror.New()
		m.mirror.Seed(msg.snap)
		m.auto = false
		m.mode = ViewNormal
		m.status = statusLine(m.mirror)
		m.refreshTranscript()
		return m, nil

	case listMsg:
		m.history.SetDialogues(msg.list)
		m.mode = ViewHistory
		return m, nil

	case summaryMsg:
		m.overlay = msg.rendered
		m.mode = ViewSummary
		return m, nil

	case exportMsg:
		m.status = fmt.Sprintf("Transcript written to %s", msg.path)
		return m, nil

	case ackMsg:
		switch msg.verb {
		case "pause":
			m.mirror.Paused()
			m.auto = false
		case "resume":
			m.mirror.Resumed()
		case "stop":
			m.mirror.Stopped()
			m.auto = false
		}
		m.status = statusLine(m.mirror)
		m.refreshTranscript()
		return m, nil

	case errMsg:
		m.auto = false
		m.status = ErrorStyle.Render(msg.err.Error())
		return m, nil

	case tickMsg:
		if !m.streaming {
			return m, nil
		}
		m.frame = (m.frame + 1) % len(streamingFrames)
		m.refreshTranscript()
		return m, tick()
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}

	switch m.mode {
	case ViewHistory:
		switch msg.String() {
		case "up", "k":
			m.history.Up()
		case "down", "j":
			m.history.Down()
		case "enter":
			if snap, ok := m.history.Selected(); ok {
				m.mode = ViewNormal
				return m, m.openCmd(snap.ID)
			}
		case "esc", "q":
			m.mode = ViewNormal
		}
		return m, nil

	case ViewHelp, ViewSummary:
		switch msg.String() {
		case "esc", "q":
			m.mode = ViewNormal
			m.overlay = ""
			m.refreshTranscript()
		default:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
		return m, nil
	}

	switch msg.String() {
	case "esc":
		if m.auto {
			m.auto = false
			m.status = "Auto mode off. Current turn will finish."
		}
		return m, nil
	case "enter":
		line := strings.TrimSpace(m.input.Value())
		m.input.Reset()
		if line == "" {
			return m, nil
		}
		return m.dispatch(line)
	case "pgup", "pgdown":
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) dispatch(line string) (tea.Model, tea.Cmd) {
	cmd := commands.Parse(line)
	if cmd == nil {
		m.status = DimStyle.Render("Commands start with /. Try /help.")
		return m, nil
	}

	switch c := cmd.(type) {
	case commands.Help:
		m.overlay = HelpContent()
		m.mode = ViewHelp
		return m, nil

	case commands.NewDialogue:
		if c.Topic == "" {
			m.status = ErrorStyle.Render("usage: /new <topic>")
			return m, nil
		}
		m.status = "Creating dialogue..."
		return m, m.createCmd(c.Topic)

	case commands.NextTurn:
		return m.startTurn()

	case commands.Auto:
		m.auto = true
		if m.streaming {
			m.status = "Auto mode on."
			return m, nil
		}
		return m.startTurn()

	case commands.Pause:
		return m, m.controlCmd("pause")

	case commands.Resume:
		return m, m.controlCmd("resume")

	case commands.Stop:
		return m, m.controlCmd("stop")

	case commands.Summary:
		if m.dialogueID == "" {
			m.status = ErrorStyle.Render("no dialogue attached")
			return m, nil
		}
		return m, m.summaryCmd()

	case commands.Export:
		if m.dialogueID == "" {
			m.status = ErrorStyle.Render("no dialogue attached")
			return m, nil
		}
		return m, m.exportCmd()

	case commands.List:
		return m, m.listCmd()

	case commands.Open:
		if c.ID == "" {
			m.status = ErrorStyle.Render("usage: /open <id>")
			return m, nil
		}
		return m, m.openCmd(c.ID)

	case commands.Quit:
		return m, tea.Quit

	default:
		m.status = ErrorStyle.Render(fmt.Sprintf("unknown command: %s", line))
		return m, nil
	}
}

func (m Model) startTurn() (tea.Model, tea.Cmd) {
	if m.dialogueID == "" {
		m.status = ErrorStyle.Render("no dialogue attached")
		return m, nil
	}
	if m.streaming {
		m.status = "A turn is already in flight."
		return m, nil
	}

	events, errs, err := m.cli.NextTurn(context.Background(), m.dialogueID, true)
	if err != nil {
		m.auto = false
		m.status = ErrorStyle.Render(err.Error())
		return m, nil
	}
	m.events, m.errs = events, errs
	m.streaming = true
	m.turnStarted = time.Now()
	m.status = "Running turn..."
	return m, tea.Batch(waitEvent(events, errs), tick())
}

func (m *Model) refreshTranscript() {
	if !m.ready {
		return
	}
	if !m.mirror.TranscriptVisible() {
		m.viewport.SetContent(DimStyle.Render("No dialogue yet."))
		return
	}
	m.viewport.SetContent(RenderTranscript(m.mirror.Transcript(), m.frame))
}

func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	switch m.mode {
	case ViewHistory:
		return m.history.Render(m.width)
	case ViewHelp, ViewSummary:
		m.viewport.SetContent(m.overlay)
		return m.viewport.View() + "\n" + DimStyle.Render("esc to close")
	}

	header := m.renderHeader()
	body := m.viewport.View()
	if m.width >= 100 && m.mirror.TranscriptVisible() {
		sidebar := lipgloss.NewStyle().Width(28).Render(RenderSpeakers(m.mirror, m.frame, m.turnStarted))
		main := lipgloss.NewStyle().Width(m.width - 30).Render(body)
		body = lipgloss.JoinHorizontal(lipgloss.Top, main, sidebar)
	}

	return strings.Join([]string{
		header,
		body,
		m.status,
		m.input.View(),
	}, "\n")
}

func (m Model) renderHeader() string {
	snap := m.mirror.Snapshot()
	if m.dialogueID == "" {
		return TitleStyle.Render("COLLOQUY")
	}

	cost := CostStyle.Render(fmt.Sprintf("$%.4f", snap.TotalCost))
	if snap.CostWarning > 0 && snap.TotalCost >= snap.CostWarning {
		cost = StatusCrit.Render(fmt.Sprintf("$%.4f (over budget)", snap.TotalCost))
	}

	return fmt.Sprintf("%s %s %s round %d/%d %s",
		TitleStyle.Render("COLLOQUY"),
		DimStyle.Render(shortID(m.dialogueID)),
		statusBadge(string(snap.Status)),
		snap.CurrentRound, snap.MaxRounds,
		cost)
}

func statusLine(m *mirror.Mirror) string {
	switch m.State() {
	case mirror.StateReady:
		return "Ready. /next for the next turn, /auto to run to completion."
	case mirror.StateRunning:
		return "Running."
	case mirror.StatePaused:
		return SystemStyle.Render("Paused. /resume to continue.")
	case mirror.StateCompleted:
		return StatusOK.Render("Dialogue complete. /summary or /export.")
	case mirror.StateError:
		return ErrorStyle.Render("Turn errored. /next retries the same speaker.")
	default:
		return ""
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func tick() tea.Cmd {
	return tea.Tick(300*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// waitEvent pulls the next stream event. Issued again after every eventMsg
// so the channel drains one message per Update.
func waitEvent(events <-chan event.Event, errs <-chan error) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		if ok {
			return eventMsg{ev: ev}
		}
		if errs != nil {
			if err, ok := <-errs; ok && err != nil {
				return streamDoneMsg{err: err}
			}
		}
		return streamDoneMsg{}
	}
}

func (m Model) createCmd(topic string) tea.Cmd {
	cfg := dialogue.Config{
		Topic:        topic,
		Participants: m.opts.Participants,
		MaxRounds:    m.opts.MaxRounds,
		CostWarning:  m.opts.CostWarning,
	}
	return func() tea.Msg {
		id, err := m.cli.CreateDialogue(context.Background(), cfg)
		if err != nil {
			return errMsg{err: err}
		}
		snap, err := m.cli.Get(context.Background(), id)
		if err != nil {
			return errMsg{err: err}
		}
		return createdMsg{id: id, snap: snap}
	}
}

func (m Model) openCmd(id string) tea.Cmd {
	return func() tea.Msg {
		snap, err := m.cli.Get(context.Background(), id)
		if err != nil {
			return errMsg{err: err}
		}
		return openedMsg{snap: snap}
	}
}

func (m Model) listCmd() tea.Cmd {
	return func() tea.Msg {
		list, err := m.cli.List(context.Background())
		if err != nil {
			return errMsg{err: err}
		}
		return listMsg{list: list}
	}
}

func (m Model) controlCmd(verb string) tea.Cmd {
	id := m.dialogueID
	if id == "" {
		return func() tea.Msg { return errMsg{err: fmt.Errorf("no dialogue attached")} }
	}
	return func() tea.Msg {
		var err error
		switch verb {
		case "pause":
			err = m.cli.Pause(context.Background(), id)
		case "resume":
			err = m.cli.Resume(context.Background(), id)
		case "stop":
			err = m.cli.Stop(context.Background(), id)
		}
		if err != nil {
			return errMsg{err: err}
		}
		return ackMsg{verb: verb}
	}
}

func (m Model) summaryCmd() tea.Cmd {
	id := m.dialogueID
	width := m.width - 4
	if width < 40 {
		width = 40
	}
	return func() tea.Msg {
		sum, err := m.cli.Summary(context.Background(), id)
		if err != nil {
			return errMsg{err: err}
		}
		r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(width))
		if err != nil {
			return errMsg{err: err}
		}
		out, err := r.Render(sum.Transcript)
		if err != nil {
			return errMsg{err: err}
		}
		return summaryMsg{rendered: out}
	}
}

func (m Model) exportCmd() tea.Cmd {
	id := m.dialogueID
	dir := m.opts.ExportDir
	return func() tea.Msg {
		snap, err := m.cli.Get(context.Background(), id)
		if err != nil {
			return errMsg{err: err}
		}
		path, err := export.WriteTranscript(snap, dir)
		if err != nil {
			return errMsg{err: err}
		}
		return exportMsg{path: path}
	}
}
