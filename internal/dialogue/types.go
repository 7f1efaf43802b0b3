// internal/dialogue/types.go
package dialogue

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Configuration limits for a dialogue
const (
	MinParticipants = 2
	MaxParticipants = 4
	MinRounds       = 1
	MaxRounds       = 5
)

var (
	ErrTopicRequired   = errors.New("topic must not be empty")
	ErrParticipantSize = fmt.Errorf("participant count must be between %d and %d", MinParticipants, MaxParticipants)
	ErrRoundRange      = fmt.Errorf("max rounds must be between %d and %d", MinRounds, MaxRounds)
)

// Status is a dialogue's lifecycle state
type Status string

const (
	StatusCreated   Status = "created"
	StatusRunning   Status = "running"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
	StatusErrored   Status = "errored"
)

func (s Status) String() string { return string(s) }

// Terminal reports whether no further turns can run from this status
func (s Status) Terminal() bool { return s == StatusCompleted }

// Participant is the immutable configuration of one speaker.
// Set once at dialogue creation, never mutated afterwards.
type Participant struct {
	Name         string  `json:"name"`
	Model        string  `json:"model"`
	SystemPrompt string  `json:"system_prompt,omitempty"`
	Temperature  float64 `json:"temperature,omitempty"`
}

// Turn is one participant's completed response.
// Appended once, never edited.
type Turn struct {
	Participant int       `json:"participant"`
	Model       string    `json:"model"`
	Content     string    `json:"content"`
	Tokens      int       `json:"tokens"`
	LatencyMs   int64     `json:"latency_ms"`
	CompletedAt time.Time `json:"completed_at"`
}

// Round is one full cycle through all participants, in index order
type Round struct {
	Number    int       `json:"number"`
	Turns     []Turn    `json:"turns"`
	Cost      float64   `json:"cost"`
	StartedAt time.Time `json:"started_at"`
}

// Config is the validated input to dialogue creation
type Config struct {
	Topic        string        `json:"topic"`
	Participants []Participant `json:"participants"`
	MaxRounds    int           `json:"max_rounds"`
	CostWarning  float64       `json:"cost_warning,omitempty"`
}

// Validate checks the configuration before any provider is contacted
func (c Config) Validate() error {
	if strings.TrimSpace(c.Topic) == "" {
		return ErrTopicRequired
	}
	if len(c.Participants) < MinParticipants || len(c.Participants) > MaxParticipants {
		return ErrParticipantSize
	}
	if c.MaxRounds < MinRounds || c.MaxRounds > MaxRounds {
		return ErrRoundRange
	}
	for i, p := range c.Participants {
		if strings.TrimSpace(p.Name) == "" {
			return fmt.Errorf("participant %d: name must not be empty", i)
		}
		if strings.TrimSpace(p.Model) == "" {
			return fmt.Errorf("participant %d (%s): model must not be empty", i, p.Name)
		}
	}
	return nil
}

// Snapshot is a complete, self-contained copy of a dialogue at one
// instant. The store holds exactly one per dialogue and swaps it
// wholesale; callers never mutate a stored snapshot in place.
type Snapshot struct {
	ID            string         `json:"id"`
	Topic         string         `json:"topic"`
	Participants  []Participant  `json:"participants"`
	MaxRounds     int            `json:"max_rounds"`
	CostWarning   float64        `json:"cost_warning,omitempty"`
	Status        Status         `json:"status"`
	CurrentRound  int            `json:"current_round"`
	CurrentTurn   int            `json:"current_turn"`
	Rounds        []Round        `json:"rounds"`
	TotalCost     float64        `json:"total_cost"`
	TokensByModel map[string]int `json:"tokens_by_model,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// New builds the initial snapshot: running, round 1 already present,
// turn index 0. The config must have been validated.
func New(id string, cfg Config, now time.Time) Snapshot {
	participants := make([]Participant, len(cfg.Participants))
	copy(participants, cfg.Participants)

	return Snapshot{
		ID:           id,
		Topic:        cfg.Topic,
		Participants: participants,
		MaxRounds:    cfg.MaxRounds,
		CostWarning:  cfg.CostWarning,
		Status:       StatusRunning,
		CurrentRound: 1,
		CurrentTurn:  0,
		Rounds:       []Round{{Number: 1, StartedAt: now}},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Clone returns a deep copy sharing no mutable state with the receiver
func (s Snapshot) Clone() Snapshot {
	out := s

	out.Participants = make([]Participant, len(s.Participants))
	copy(out.Participants, s.Participants)

	out.Rounds = make([]Round, len(s.Rounds))
	for i, r := range s.Rounds {
		round := r
		round.Turns = make([]Turn, len(r.Turns))
		copy(round.Turns, r.Turns)
		out.Rounds[i] = round
	}

	if s.TokensByModel != nil {
		out.TokensByModel = make(map[string]int, len(s.TokensByModel))
		for k, v := range s.TokensByModel {
			out.TokensByModel[k] = v
		}
	}

	return out
}

// CurrentParticipant resolves the participant whose turn it is
func (s Snapshot) CurrentParticipant() (Participant, error) {
	if s.CurrentTurn < 0 || s.CurrentTurn >= len(s.Participants) {
		return Participant{}, fmt.Errorf("turn index %d out of range for %d participants", s.CurrentTurn, len(s.Participants))
	}
	return s.Participants[s.CurrentTurn], nil
}

// Turns flattens all completed turns in round, then participant, order
func (s Snapshot) Turns() []Turn {
	var turns []Turn
	for _, r := range s.Rounds {
		turns = append(turns, r.Turns...)
	}
	return turns
}

// TurnCount returns the number of completed turns
func (s Snapshot) TurnCount() int {
	n := 0
	for _, r := range s.Rounds {
		n += len(r.Turns)
	}
	return n
}
