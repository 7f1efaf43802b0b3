// internal/api/server.go
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"

	"colloquy/internal/dialogue"
	"colloquy/internal/event"
	"colloquy/internal/scheduler"
	"colloquy/internal/store"
)

// Server exposes the scheduler over HTTP:
//
//	POST /v1/dialogues                -> create a dialogue
//	GET  /v1/dialogues                -> list dialogues
//	GET  /v1/dialogues/{id}           -> current snapshot
//	POST /v1/dialogues/{id}/turn      -> run one turn, streamed as SSE
//	POST /v1/dialogues/{id}/pause     -> pause between turns
//	POST /v1/dialogues/{id}/resume    -> resume
//	POST /v1/dialogues/{id}/stop      -> force completion
//	GET  /v1/dialogues/{id}/summary   -> stats + transcript
//
// The turn response is one ordered event sequence; trailing
// round_complete/dialogue_complete markers may follow the closing
// participant_complete, then the connection closes.
type Server struct {
	sched *scheduler.Scheduler
}

// NewServer returns an http.Handler with routes bound
func NewServer(sched *scheduler.Scheduler) http.Handler {
	s := &Server{sched: sched}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/dialogues", s.handleCreate)
	mux.HandleFunc("GET /v1/dialogues", s.handleList)
	mux.HandleFunc("GET /v1/dialogues/{id}", func(w http.ResponseWriter, r *http.Request) {
		s.handleGet(w, r, r.PathValue("id"))
	})
	mux.HandleFunc("POST /v1/dialogues/{id}/turn", func(w http.ResponseWriter, r *http.Request) {
		s.handleTurn(w, r, r.PathValue("id"))
	})
	mux.HandleFunc("POST /v1/dialogues/{id}/pause", func(w http.ResponseWriter, r *http.Request) {
		s.handleControl(w, s.sched.Pause, r.PathValue("id"))
	})
	mux.HandleFunc("POST /v1/dialogues/{id}/resume", func(w http.ResponseWriter, r *http.Request) {
		s.handleControl(w, s.sched.Resume, r.PathValue("id"))
	})
	mux.HandleFunc("POST /v1/dialogues/{id}/stop", func(w http.ResponseWriter, r *http.Request) {
		s.handleControl(w, s.sched.Stop, r.PathValue("id"))
	})
	mux.HandleFunc("GET /v1/dialogues/{id}/summary", func(w http.ResponseWriter, r *http.Request) {
		s.handleSummary(w, r, r.PathValue("id"))
	})

	return mux
}

// apiResponse is the envelope for every non-streaming endpoint
type apiResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

type createdDialogue struct {
	ID string `json:"id"`
}

func encode(w http.ResponseWriter, statusCode int, data any, err error) {
	w.Header().Set("Content-Type", "application/json")
	if err != nil {
		if statusCode == 0 {
			statusCode = http.StatusInternalServerError
		}
		w.WriteHeader(statusCode)
		_ = json.NewEncoder(w).Encode(apiResponse{Status: "ERROR", Message: err.Error()})
		return
	}
	if statusCode == 0 {
		statusCode = http.StatusOK
	}
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(apiResponse{Status: "OK", Data: data})
}

// statusFor maps scheduler errors onto HTTP statuses
func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, scheduler.ErrInvalidConfiguration):
		return http.StatusBadRequest
	case errors.Is(err, scheduler.ErrInvalidTransition):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var cfg dialogue.Config
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		encode(w, http.StatusBadRequest, nil, fmt.Errorf("decode configuration: %w", err))
		return
	}

	id, err := s.sched.StartDialogue(cfg)
	if err != nil {
		encode(w, statusFor(err), nil, err)
		return
	}
	encode(w, http.StatusCreated, createdDialogue{ID: id}, nil)
}

func (s *Server) handleList(w http.ResponseWriter, _ *http.Request) {
	snaps, err := s.sched.List()
	if err != nil {
		encode(w, 0, nil, err)
		return
	}
	encode(w, http.StatusOK, snaps, nil)
}

func (s *Server) handleGet(w http.ResponseWriter, _ *http.Request, id string) {
	snap, err := s.sched.Get(id)
	if err != nil {
		encode(w, statusFor(err), nil, err)
		return
	}
	encode(w, http.StatusOK, snap, nil)
}

func (s *Server) handleControl(w http.ResponseWriter, op func(string) error, id string) {
	if err := op(id); err != nil {
		encode(w, statusFor(err), nil, err)
		return
	}
	encode(w, http.StatusOK, nil, nil)
}

func (s *Server) handleSummary(w http.ResponseWriter, _ *http.Request, id string) {
	summary, err := s.sched.GetSummary(id)
	if err != nil {
		encode(w, statusFor(err), nil, err)
		return
	}
	encode(w, http.StatusOK, summary, nil)
}

// handleTurn streams one turn's event sequence as server-sent events.
// ?chunks=false suppresses per-chunk passthrough so the consumer gets
// only completed turns.
func (s *Server) handleTurn(w http.ResponseWriter, r *http.Request, id string) {
	// Reject bad requests with a JSON error while that is still
	// possible; once the stream starts, failures become error events.
	snap, err := s.sched.Get(id)
	if err != nil {
		encode(w, statusFor(err), nil, err)
		return
	}
	if snap.Status != dialogue.StatusRunning && snap.Status != dialogue.StatusErrored {
		encode(w, http.StatusConflict, nil,
			fmt.Errorf("%w: cannot run a turn while %s", scheduler.ErrInvalidTransition, snap.Status))
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		encode(w, 0, nil, fmt.Errorf("streaming unsupported by connection"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := event.NewChannelEmitter(64)
	var emitter event.Emitter = ch
	if r.URL.Query().Get("chunks") == "false" {
		emitter = event.FilterChunks{Next: ch}
	}

	done := make(chan error, 1)
	go func() {
		done <- s.sched.RunNextTurn(r.Context(), id, emitter)
		ch.Close()
	}()

	terminalSent := false
	dropped := false
	for ev := range ch.Events() {
		if dropped {
			continue
		}
		if writeFrame(w, flusher, ev) != nil {
			// Consumer went away. Keep draining so the scheduler never
			// blocks on a full emitter; the turn runs to completion and
			// the dialogue stays usable for the next connection.
			dropped = true
			continue
		}
		if ev.Terminal() {
			terminalSent = true
		}
	}

	if err := <-done; err != nil && !terminalSent && !dropped {
		// Raced past the upfront check (e.g. a concurrent stop); the
		// stream still ends with a terminal error event.
		_ = writeFrame(w, flusher, event.New(event.TypeError, id, snap.CurrentRound, snap.CurrentTurn,
			&event.ErrorData{Message: err.Error()}))
	}
}

func writeFrame(w http.ResponseWriter, flusher http.Flusher, ev event.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		log.Printf("[api] drop unencodable %s event: %v", ev.Type, err)
		return nil
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}
