// internal/event/event.go
// Typed events emitted by the scheduler, one ordered sequence per turn
// request. Each request ends with exactly one of participant_complete,
// error or dialogue_complete; state is persisted before that event is
// emitted. When a turn closes a round, round_complete (and on the final
// round, dialogue_complete) follow the participant_complete immediately
// so a consumer that stops at the first terminal event still holds the
// full turn.
package event

import (
	"encoding/json"
	"fmt"
	"time"

	"colloquy/internal/dialogue"
)

type Type string

const (
	TypeDialogueStart       Type = "dialogue_start"
	TypeRoundStart          Type = "round_start"
	TypeParticipantStart    Type = "participant_start"
	TypeChunk               Type = "chunk"
	TypeParticipantComplete Type = "participant_complete"
	TypeRoundComplete       Type = "round_complete"
	TypeDialogueComplete    Type = "dialogue_complete"
	TypeError               Type = "error"
	TypeQualityUpdate       Type = "quality_update"
)

// Event is the wire envelope
type Event struct {
	Type       Type      `json:"event_type"`
	DialogueID string    `json:"dialogue_id"`
	Round      int       `json:"round_number"`
	TurnIndex  int       `json:"turn_index"`
	Data       any       `json:"data,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Terminal reports whether this event ends a turn-request stream
func (e Event) Terminal() bool {
	switch e.Type {
	case TypeParticipantComplete, TypeError, TypeDialogueComplete:
		return true
	}
	return false
}

// Payloads, one struct per event type

type DialogueStart struct {
	Topic        string                 `json:"topic"`
	Participants []dialogue.Participant `json:"participants"`
	MaxRounds    int                    `json:"max_rounds"`
}

type RoundStart struct {
	Round int `json:"round"`
}

type ParticipantStart struct {
	Participant int    `json:"participant"`
	Name        string `json:"name"`
	Model       string `json:"model"`
}

type ChunkData struct {
	Text string `json:"text"`
}

// ParticipantComplete carries the full turn plus the advanced state the
// server persisted just before emitting it; the mirror uses these
// fields to stay in lockstep.
type ParticipantComplete struct {
	Turn          dialogue.Turn   `json:"turn"`
	Status        dialogue.Status `json:"status"`
	CurrentRound  int             `json:"current_round"`
	CurrentTurn   int             `json:"current_turn"`
	TotalCost     float64         `json:"total_cost"`
	TokensByModel map[string]int  `json:"tokens_by_model,omitempty"`
}

type RoundComplete struct {
	Round int     `json:"round"`
	Cost  float64 `json:"cost"`
}

type DialogueComplete struct {
	Status    dialogue.Status `json:"status"`
	TotalCost float64         `json:"total_cost"`
}

type ErrorData struct {
	Message string `json:"message"`
}

type QualityUpdate struct {
	HealthScore float64  `json:"health_score"`
	Flags       []string `json:"flags,omitempty"`
}

// New builds an event stamped with the current time
func New(t Type, dialogueID string, round, turnIndex int, data any) Event {
	return Event{
		Type:       t,
		DialogueID: dialogueID,
		Round:      round,
		TurnIndex:  turnIndex,
		Data:       data,
		Timestamp:  time.Now(),
	}
}

// Decode parses a wire frame and materializes the typed payload for
// known event types. Unknown types decode successfully with Data left
// as raw JSON so consumers can skip them without breaking.
func Decode(raw []byte) (Event, error) {
	var frame struct {
		Type       Type            `json:"event_type"`
		DialogueID string          `json:"dialogue_id"`
		Round      int             `json:"round_number"`
		TurnIndex  int             `json:"turn_index"`
		Data       json.RawMessage `json:"data"`
		Timestamp  time.Time       `json:"timestamp"`
	}
	if err := json.Unmarshal(raw, &frame); err != nil {
		return Event{}, fmt.Errorf("decode event: %w", err)
	}

	ev := Event{
		Type:       frame.Type,
		DialogueID: frame.DialogueID,
		Round:      frame.Round,
		TurnIndex:  frame.TurnIndex,
		Timestamp:  frame.Timestamp,
	}

	if len(frame.Data) == 0 {
		return ev, nil
	}

	var data any
	switch frame.Type {
	case TypeDialogueStart:
		data = &DialogueStart{}
	case TypeRoundStart:
		data = &RoundStart{}
	case TypeParticipantStart:
		data = &ParticipantStart{}
	case TypeChunk:
		data = &ChunkData{}
	case TypeParticipantComplete:
		data = &ParticipantComplete{}
	case TypeRoundComplete:
		data = &RoundComplete{}
	case TypeDialogueComplete:
		data = &DialogueComplete{}
	case TypeError:
		data = &ErrorData{}
	case TypeQualityUpdate:
		data = &QualityUpdate{}
	default:
		ev.Data = frame.Data
		return ev, nil
	}

	if err := json.Unmarshal(frame.Data, data); err != nil {
		return Event{}, fmt.Errorf("decode %s payload: %w", frame.Type, err)
	}
	ev.Data = data
	return ev, nil
}
