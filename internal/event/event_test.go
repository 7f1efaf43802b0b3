// internal/event/event_test.go
package event

import (
	"encoding/json"
	"testing"
	"time"

	"colloquy/internal/dialogue"
)

func TestTerminal(t *testing.T) {
	tests := []struct {
		typ      Type
		terminal bool
	}{
		{TypeDialogueStart, false},
		{TypeRoundStart, false},
		{TypeParticipantStart, false},
		{TypeChunk, false},
		{TypeQualityUpdate, false},
		{TypeRoundComplete, false},
		{TypeParticipantComplete, true},
		{TypeDialogueComplete, true},
		{TypeError, true},
	}
	for _, tt := range tests {
		ev := Event{Type: tt.typ}
		if ev.Terminal() != tt.terminal {
			t.Errorf("%s: expected Terminal()=%v", tt.typ, tt.terminal)
		}
	}
}

func TestDecodeRoundTrip(t *testing.T) {
	src := New(TypeParticipantComplete, "d-1", 2, 1, ParticipantComplete{
		Turn: dialogue.Turn{
			Participant: 1,
			Model:       "model-b",
			Content:     "a reply",
			Tokens:      42,
			CompletedAt: time.Now().UTC(),
		},
		Status:        dialogue.StatusRunning,
		CurrentRound:  2,
		CurrentTurn:   0,
		TotalCost:     0.12,
		TokensByModel: map[string]int{"model-b": 42},
	})

	raw, err := json.Marshal(src)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	got, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode() failed: %v", err)
	}
	if got.Type != TypeParticipantComplete || got.DialogueID != "d-1" {
		t.Errorf("Envelope mismatch: %+v", got)
	}
	if got.Round != 2 || got.TurnIndex != 1 {
		t.Errorf("Expected round 2 turn 1, got round %d turn %d", got.Round, got.TurnIndex)
	}

	payload, ok := got.Data.(*ParticipantComplete)
	if !ok {
		t.Fatalf("Expected *ParticipantComplete payload, got %T", got.Data)
	}
	if payload.Turn.Content != "a reply" || payload.Turn.Tokens != 42 {
		t.Errorf("Turn payload mismatch: %+v", payload.Turn)
	}
	if payload.CurrentRound != 2 || payload.CurrentTurn != 0 {
		t.Errorf("Advanced-state payload mismatch: %+v", payload)
	}
}

func TestDecodeWireFieldNames(t *testing.T) {
	raw := []byte(`{"event_type":"chunk","dialogue_id":"d-9","round_number":3,"turn_index":2,"data":{"text":"hel"},"timestamp":"2026-08-01T10:00:00Z"}`)

	ev, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode() failed: %v", err)
	}
	if ev.Type != TypeChunk || ev.DialogueID != "d-9" || ev.Round != 3 || ev.TurnIndex != 2 {
		t.Errorf("Envelope mismatch: %+v", ev)
	}
	chunk, ok := ev.Data.(*ChunkData)
	if !ok {
		t.Fatalf("Expected *ChunkData, got %T", ev.Data)
	}
	if chunk.Text != "hel" {
		t.Errorf("Expected chunk text 'hel', got %q", chunk.Text)
	}
}

func TestDecodeUnknownTypeKeepsRawData(t *testing.T) {
	raw := []byte(`{"event_type":"moderator_note","dialogue_id":"d-1","data":{"note":"new in a later version"}}`)

	ev, err := Decode(raw)
	if err != nil {
		t.Fatalf("Expected unknown event type to decode, got error: %v", err)
	}
	if ev.Type != Type("moderator_note") {
		t.Errorf("Expected type preserved, got %s", ev.Type)
	}
	if _, ok := ev.Data.(json.RawMessage); !ok {
		t.Errorf("Expected raw JSON payload for unknown type, got %T", ev.Data)
	}
}

func TestDecodeEmptyData(t *testing.T) {
	raw := []byte(`{"event_type":"round_start","dialogue_id":"d-1"}`)
	ev, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode() failed: %v", err)
	}
	if ev.Data != nil {
		t.Errorf("Expected nil data, got %v", ev.Data)
	}
}

func TestDecodeMalformed(t *testing.T) {
	if _, err := Decode([]byte(`{not json`)); err == nil {
		t.Error("Expected error for malformed frame")
	}
	if _, err := Decode([]byte(`{"event_type":"chunk","data":"not an object"}`)); err == nil {
		t.Error("Expected error for mistyped payload")
	}
}

func TestChannelEmitter(t *testing.T) {
	em := NewChannelEmitter(4)
	em.Emit(New(TypeRoundStart, "d-1", 1, 0, RoundStart{Round: 1}))
	em.Emit(New(TypeParticipantStart, "d-1", 1, 0, nil))
	em.Close()

	var got []Type
	for ev := range em.Events() {
		got = append(got, ev.Type)
	}
	if len(got) != 2 || got[0] != TypeRoundStart || got[1] != TypeParticipantStart {
		t.Errorf("Expected [round_start participant_start], got %v", got)
	}
}

func TestFilterChunks(t *testing.T) {
	em := NewChannelEmitter(4)
	filtered := FilterChunks{Next: em}

	filtered.Emit(New(TypeChunk, "d-1", 1, 0, ChunkData{Text: "x"}))
	filtered.Emit(New(TypeParticipantComplete, "d-1", 1, 0, nil))
	em.Close()

	var got []Type
	for ev := range em.Events() {
		got = append(got, ev.Type)
	}
	if len(got) != 1 || got[0] != TypeParticipantComplete {
		t.Errorf("Expected chunks filtered out, got %v", got)
	}
}
