// internal/scheduler/scheduler.go
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"colloquy/internal/cost"
	"colloquy/internal/dialogue"
	"colloquy/internal/event"
	"colloquy/internal/provider"
	"colloquy/internal/quality"
	"colloquy/internal/store"
)

var (
	ErrInvalidConfiguration = errors.New("invalid dialogue configuration")
	ErrInvalidTransition    = errors.New("invalid status transition")
	ErrProviderFailure      = errors.New("completion provider failure")
)

// Scheduler drives one provider call per turn and owns every dialogue
// state transition. RunNextTurn calls for the same dialogue are
// serialized behind a per-dialogue mutex; different dialogues run in
// parallel. The one rule everything else hangs off: the advanced
// snapshot is persisted before the terminal event is emitted, because
// the transport closes the connection right after that event and
// nothing after emission is guaranteed to execute.
type Scheduler struct {
	store    store.Store
	registry *provider.Registry
	rates    cost.Rates
	timeout  time.Duration
	analyzer quality.Analyzer

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// Option customises scheduler behaviour
type Option func(*Scheduler)

// WithTimeout bounds each provider call; zero means no bound
func WithTimeout(d time.Duration) Option {
	return func(s *Scheduler) { s.timeout = d }
}

// WithAnalyzer attaches a quality analyzer whose updates are injected
// into each turn's event stream before the terminal event
func WithAnalyzer(a quality.Analyzer) Option {
	return func(s *Scheduler) { s.analyzer = a }
}

func New(st store.Store, registry *provider.Registry, rates cost.Rates, opts ...Option) *Scheduler {
	s := &Scheduler{
		store:    st,
		registry: registry,
		rates:    rates,
		locks:    make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StartDialogue validates the configuration and creates the initial
// snapshot: running, round 1 present, turn index 0. Validation happens
// before anything else; no provider is contacted here.
func (s *Scheduler) StartDialogue(cfg dialogue.Config) (string, error) {
	if err := cfg.Validate(); err != nil {
		return "", fmt.Errorf("%w: %s", ErrInvalidConfiguration, err)
	}
	for _, p := range cfg.Participants {
		if _, err := s.registry.Resolve(p.Model); err != nil {
			return "", fmt.Errorf("%w: %s", ErrInvalidConfiguration, err)
		}
	}

	snap := dialogue.New(uuid.NewString(), cfg, time.Now())
	if err := s.store.Create(snap); err != nil {
		return "", err
	}
	return snap.ID, nil
}

// RunNextTurn runs exactly one turn for the participant currently up:
// resolve the participant, stream one completion, build the Turn,
// advance the whole state in one step, persist, and only then emit the
// terminal event. On provider failure only the status changes; the
// turn index stays where it was so the same participant is retried.
func (s *Scheduler) RunNextTurn(ctx context.Context, id string, emitter event.Emitter) error {
	if emitter == nil {
		emitter = event.Discard{}
	}

	lock := s.dialogueLock(id)
	lock.Lock()
	defer lock.Unlock()

	snap, err := s.store.Get(id)
	if err != nil {
		return err
	}

	retrying := false
	switch snap.Status {
	case dialogue.StatusRunning:
	case dialogue.StatusErrored:
		// A failed turn may be retried; the participant whose turn it
		// still is gets another attempt.
		snap.Status = dialogue.StatusRunning
		retrying = true
	default:
		return fmt.Errorf("%w: cannot run a turn while %s", ErrInvalidTransition, snap.Status)
	}

	participant, err := snap.CurrentParticipant()
	if err != nil {
		return err
	}

	// Start markers are emitted once per dialogue and per round. The
	// failed attempt already emitted them, so a retry skips straight to
	// participant_start.
	if snap.TurnCount() == 0 && !retrying {
		emitter.Emit(event.New(event.TypeDialogueStart, snap.ID, snap.CurrentRound, snap.CurrentTurn, &event.DialogueStart{
			Topic:        snap.Topic,
			Participants: snap.Participants,
			MaxRounds:    snap.MaxRounds,
		}))
	}
	if snap.CurrentTurn == 0 && !retrying {
		emitter.Emit(event.New(event.TypeRoundStart, snap.ID, snap.CurrentRound, 0, &event.RoundStart{Round: snap.CurrentRound}))
	}
	emitter.Emit(event.New(event.TypeParticipantStart, snap.ID, snap.CurrentRound, snap.CurrentTurn, &event.ParticipantStart{
		Participant: snap.CurrentTurn,
		Name:        participant.Name,
		Model:       participant.Model,
	}))

	content, usage, err := s.complete(ctx, snap, participant, emitter)
	if err != nil {
		return s.failTurn(snap, emitter, err)
	}

	now := time.Now()
	turn := dialogue.Turn{
		Participant: snap.CurrentTurn,
		Model:       participant.Model,
		Content:     content,
		Tokens:      usage.TotalTokens,
		LatencyMs:   usage.LatencyMs,
		CompletedAt: now,
	}

	closedRound := snap.CurrentRound
	next := cost.Aggregate(dialogue.Advance(snap, turn, now), s.rates)
	wrapped := next.CurrentTurn == 0

	var qualityUpdates []quality.Update
	if s.analyzer != nil {
		qualityUpdates = s.analyzer.Analyze(next, turn)
	}

	// Persist first. The client is free to drop the connection the
	// moment it sees the terminal event below.
	if err := s.store.Replace(next); err != nil {
		return s.failTurn(snap, emitter, err)
	}

	for _, update := range qualityUpdates {
		emitter.Emit(event.New(event.TypeQualityUpdate, next.ID, closedRound, turn.Participant, &event.QualityUpdate{
			HealthScore: update.HealthScore,
			Flags:       update.Flags,
		}))
	}

	emitter.Emit(event.New(event.TypeParticipantComplete, next.ID, closedRound, turn.Participant, &event.ParticipantComplete{
		Turn:          turn,
		Status:        next.Status,
		CurrentRound:  next.CurrentRound,
		CurrentTurn:   next.CurrentTurn,
		TotalCost:     next.TotalCost,
		TokensByModel: next.TokensByModel,
	}))

	if wrapped {
		emitter.Emit(event.New(event.TypeRoundComplete, next.ID, closedRound, turn.Participant, &event.RoundComplete{
			Round: closedRound,
			Cost:  roundCost(next, closedRound),
		}))
	}
	if next.Status == dialogue.StatusCompleted {
		emitter.Emit(event.New(event.TypeDialogueComplete, next.ID, closedRound, turn.Participant, &event.DialogueComplete{
			Status:    next.Status,
			TotalCost: next.TotalCost,
		}))
	}

	return nil
}

// complete opens the streaming provider call and accumulates its text,
// forwarding chunks to the emitter as they arrive.
func (s *Scheduler) complete(ctx context.Context, snap dialogue.Snapshot, participant dialogue.Participant, emitter event.Emitter) (string, provider.Usage, error) {
	p, err := s.registry.Resolve(participant.Model)
	if err != nil {
		return "", provider.Usage{}, err
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	var content []byte
	started := time.Now()

	for chunk := range p.Complete(ctx, provider.Request{
		Model:        participant.Model,
		SystemPrompt: participant.SystemPrompt,
		Messages:     renderHistory(snap),
		Temperature:  participant.Temperature,
	}) {
		if chunk.Err != nil {
			if chunk.IsTimeout {
				return "", provider.Usage{}, fmt.Errorf("%w: %s", provider.ErrTimeout, chunk.Err)
			}
			return "", provider.Usage{}, chunk.Err
		}
		if chunk.Text != "" {
			content = append(content, chunk.Text...)
			emitter.Emit(event.New(event.TypeChunk, snap.ID, snap.CurrentRound, snap.CurrentTurn, &event.ChunkData{Text: chunk.Text}))
		}
		if chunk.Done {
			usage := provider.Usage{LatencyMs: time.Since(started).Milliseconds()}
			if chunk.Usage != nil {
				usage = *chunk.Usage
			}
			// A zero-token completion is still a valid (empty) turn
			return string(content), usage, nil
		}
	}

	// Channel closed without a Done chunk: treat as a truncated stream
	return "", provider.Usage{}, fmt.Errorf("provider stream ended without completion")
}

// failTurn persists the errored status (turn and round untouched, the
// history so far stays visible) and then emits the terminal error.
func (s *Scheduler) failTurn(snap dialogue.Snapshot, emitter event.Emitter, cause error) error {
	failed := snap.Clone()
	failed.Status = dialogue.StatusErrored
	failed.UpdatedAt = time.Now()

	if err := s.store.Replace(failed); err != nil {
		cause = fmt.Errorf("%s (persist failed: %s)", cause, err)
	}

	emitter.Emit(event.New(event.TypeError, snap.ID, snap.CurrentRound, snap.CurrentTurn, &event.ErrorData{
		Message: cause.Error(),
	}))

	return fmt.Errorf("%w: %s", ErrProviderFailure, cause)
}

// Pause stops turn scheduling between turns; in-flight calls for this
// dialogue have already completed by the time the lock is acquired.
func (s *Scheduler) Pause(id string) error {
	return s.transition(id, dialogue.StatusPaused, dialogue.StatusRunning)
}

// Resume re-enters at the stored round/turn; nothing is replayed
func (s *Scheduler) Resume(id string) error {
	return s.transition(id, dialogue.StatusRunning, dialogue.StatusPaused)
}

// Stop forces completion regardless of round progress
func (s *Scheduler) Stop(id string) error {
	return s.transition(id, dialogue.StatusCompleted,
		dialogue.StatusRunning, dialogue.StatusPaused, dialogue.StatusErrored)
}

func (s *Scheduler) transition(id string, to dialogue.Status, from ...dialogue.Status) error {
	lock := s.dialogueLock(id)
	lock.Lock()
	defer lock.Unlock()

	snap, err := s.store.Get(id)
	if err != nil {
		return err
	}

	allowed := false
	for _, status := range from {
		if snap.Status == status {
			allowed = true
			break
		}
	}
	if !allowed {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, snap.Status, to)
	}

	next := snap.Clone()
	next.Status = to
	next.UpdatedAt = time.Now()
	return s.store.Replace(next)
}

// Get returns the current snapshot
func (s *Scheduler) Get(id string) (dialogue.Snapshot, error) {
	return s.store.Get(id)
}

// List returns every stored snapshot
func (s *Scheduler) List() ([]dialogue.Snapshot, error) {
	return s.store.List()
}

func (s *Scheduler) dialogueLock(id string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, ok := s.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[id] = lock
	}
	return lock
}

// renderHistory turns completed turns into alternating messages: the
// speaking participant's own prior turns become assistant messages,
// everyone else's become user messages, with the topic seeding the
// conversation.
func renderHistory(snap dialogue.Snapshot) []provider.Message {
	messages := []provider.Message{{
		Role:    "user",
		Name:    "moderator",
		Content: fmt.Sprintf("Topic under discussion: %s", snap.Topic),
	}}

	for _, turn := range snap.Turns() {
		role := "user"
		if turn.Participant == snap.CurrentTurn {
			role = "assistant"
		}
		messages = append(messages, provider.Message{
			Role:    role,
			Name:    participantName(snap, turn.Participant),
			Content: turn.Content,
		})
	}
	return messages
}

func participantName(snap dialogue.Snapshot, index int) string {
	if index >= 0 && index < len(snap.Participants) {
		return snap.Participants[index].Name
	}
	return fmt.Sprintf("participant-%d", index)
}

func roundCost(snap dialogue.Snapshot, number int) float64 {
	for _, r := range snap.Rounds {
		if r.Number == number {
			return r.Cost
		}
	}
	return 0
}
