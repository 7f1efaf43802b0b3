// internal/mirror/mirror.go
// Consumer-side reconstruction of dialogue state from the emitted
// event stream. The mirror replays the same advancement arithmetic the
// server persisted with (dialogue.Advance), so the two sides can never
// disagree about when a round closes or the dialogue ends.
package mirror

import (
	"time"

	"colloquy/internal/dialogue"
	"colloquy/internal/event"
)

// State is the mirror's view state
type State string

const (
	StateConfiguring State = "configuring"
	StateReady       State = "ready"
	StateRunning     State = "running"
	StatePaused      State = "paused"
	StateCompleted   State = "completed"
	StateError       State = "error"
)

// Entry is one transcript line: a finished turn, a streaming
// placeholder being filled chunk by chunk, or an error notice.
type Entry struct {
	Participant int
	Name        string
	Model       string
	Content     string
	Round       int
	Streaming   bool
	Err         string
	Timestamp   time.Time
}

// Mirror replays emitted events into a local snapshot replica plus a
// display transcript.
type Mirror struct {
	state      State
	snap       dialogue.Snapshot
	seeded     bool
	transcript []Entry
}

func New() *Mirror {
	return &Mirror{state: StateConfiguring}
}

// Seed initializes the mirror from a fetched snapshot, for consumers
// that attach to an existing dialogue rather than creating one.
func (m *Mirror) Seed(snap dialogue.Snapshot) {
	m.snap = snap.Clone()
	m.seeded = true
	m.transcript = m.transcript[:0]
	for _, round := range snap.Rounds {
		for _, turn := range round.Turns {
			m.transcript = append(m.transcript, m.entryFor(turn, round.Number))
		}
	}

	switch snap.Status {
	case dialogue.StatusCompleted:
		m.state = StateCompleted
	case dialogue.StatusPaused:
		m.state = StatePaused
	case dialogue.StatusErrored:
		m.state = StateError
	default:
		m.state = StateReady
	}
}

// State returns the current view state
func (m *Mirror) State() State { return m.state }

// Snapshot returns a copy of the local replica
func (m *Mirror) Snapshot() dialogue.Snapshot { return m.snap.Clone() }

// Transcript returns the display transcript in order
func (m *Mirror) Transcript() []Entry {
	out := make([]Entry, len(m.transcript))
	copy(out, m.transcript)
	return out
}

// TranscriptVisible reports whether accumulated turns should be shown.
// Every state except configuring keeps history on screen; notably the
// error state stays visible so a failed turn never blanks the view.
func (m *Mirror) TranscriptVisible() bool {
	return m.state != StateConfiguring
}

// Paused records a pause acknowledgment from the control channel
func (m *Mirror) Paused() {
	if m.state == StateReady || m.state == StateRunning {
		m.state = StatePaused
	}
}

// Resumed records a resume acknowledgment
func (m *Mirror) Resumed() {
	if m.state == StatePaused {
		m.state = StateReady
	}
}

// Stopped records a stop acknowledgment
func (m *Mirror) Stopped() {
	m.state = StateCompleted
	m.snap.Status = dialogue.StatusCompleted
}

// Apply advances the state machine for one emitted event. Unknown
// event types are ignored without disturbing the current state.
func (m *Mirror) Apply(ev event.Event) {
	switch ev.Type {
	case event.TypeDialogueStart:
		if data, ok := ev.Data.(*event.DialogueStart); ok && !m.seeded {
			m.snap = dialogue.New(ev.DialogueID, dialogue.Config{
				Topic:        data.Topic,
				Participants: data.Participants,
				MaxRounds:    data.MaxRounds,
			}, ev.Timestamp)
			m.seeded = true
		}
		m.state = StateRunning

	case event.TypeRoundStart:
		m.state = StateRunning

	case event.TypeParticipantStart:
		// Re-enterable from error: a retried turn resumes the dialogue
		m.state = StateRunning
		data, ok := ev.Data.(*event.ParticipantStart)
		if !ok {
			return
		}
		m.transcript = append(m.transcript, Entry{
			Participant: data.Participant,
			Name:        data.Name,
			Model:       data.Model,
			Round:       ev.Round,
			Streaming:   true,
			Timestamp:   ev.Timestamp,
		})

	case event.TypeChunk:
		if data, ok := ev.Data.(*event.ChunkData); ok {
			if i := m.streamingIndex(); i >= 0 {
				m.transcript[i].Content += data.Text
			}
		}

	case event.TypeParticipantComplete:
		data, ok := ev.Data.(*event.ParticipantComplete)
		if !ok {
			return
		}
		m.finalize(data.Turn, ev.Round)

		// Run the shared advancement arithmetic and resolve to ready or
		// completed; the payload's cost totals are authoritative since
		// the mirror has no rate table.
		if m.seeded && len(m.snap.Participants) > 0 {
			m.snap = dialogue.Advance(m.snap, data.Turn, data.Turn.CompletedAt)
		} else {
			m.snap.Status = data.Status
			m.snap.CurrentRound = data.CurrentRound
			m.snap.CurrentTurn = data.CurrentTurn
		}
		m.snap.TotalCost = data.TotalCost
		m.snap.TokensByModel = data.TokensByModel

		if m.snap.Status == dialogue.StatusCompleted {
			m.state = StateCompleted
		} else {
			m.state = StateReady
		}

	case event.TypeRoundComplete:
		// informational; the replica already tracked the wrap

	case event.TypeDialogueComplete:
		m.state = StateCompleted
		m.snap.Status = dialogue.StatusCompleted

	case event.TypeError:
		m.state = StateError
		m.snap.Status = dialogue.StatusErrored
		message := "turn failed"
		if data, ok := ev.Data.(*event.ErrorData); ok {
			message = data.Message
		}
		if i := m.streamingIndex(); i >= 0 {
			m.transcript[i].Streaming = false
			m.transcript[i].Err = message
		} else {
			m.transcript = append(m.transcript, Entry{
				Participant: ev.TurnIndex,
				Round:       ev.Round,
				Err:         message,
				Timestamp:   ev.Timestamp,
			})
		}

	default:
		// quality_update and anything newer: tolerated, not modelled
	}
}

// finalize replaces the streaming placeholder with the completed turn,
// or appends directly when chunk passthrough was suppressed.
func (m *Mirror) finalize(turn dialogue.Turn, round int) {
	if i := m.streamingIndex(); i >= 0 {
		m.transcript[i] = m.entryFor(turn, round)
		return
	}
	m.transcript = append(m.transcript, m.entryFor(turn, round))
}

func (m *Mirror) entryFor(turn dialogue.Turn, round int) Entry {
	name := ""
	model := turn.Model
	if turn.Participant >= 0 && turn.Participant < len(m.snap.Participants) {
		name = m.snap.Participants[turn.Participant].Name
	}
	return Entry{
		Participant: turn.Participant,
		Name:        name,
		Model:       model,
		Content:     turn.Content,
		Round:       round,
		Timestamp:   turn.CompletedAt,
	}
}

func (m *Mirror) streamingIndex() int {
	for i := len(m.transcript) - 1; i >= 0; i-- {
		if m.transcript[i].Streaming {
			return i
		}
	}
	return -1
}
