// internal/api/server_test.go
package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"colloquy/internal/cost"
	"colloquy/internal/dialogue"
	"colloquy/internal/event"
	"colloquy/internal/provider"
	"colloquy/internal/scheduler"
	"colloquy/internal/store"
)

type cannedProvider struct{}

func (cannedProvider) Complete(ctx context.Context, req provider.Request) <-chan provider.Chunk {
	ch := make(chan provider.Chunk, 4)
	ch <- provider.Chunk{Text: "canned "}
	ch <- provider.Chunk{Text: "response"}
	ch <- provider.Chunk{Done: true, Usage: &provider.Usage{TotalTokens: 50, LatencyMs: 3}}
	close(ch)
	return ch
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	registry := provider.NewRegistry()
	registry.Register("mock-", cannedProvider{})
	sched := scheduler.New(store.NewMemoryStore(), registry, cost.Rates{"mock-a": 0.01, "mock-b": 0.01})
	srv := httptest.NewServer(NewServer(sched))
	t.Cleanup(srv.Close)
	return srv
}

func validConfig() dialogue.Config {
	return dialogue.Config{
		Topic:     "api surface",
		MaxRounds: 1,
		Participants: []dialogue.Participant{
			{Name: "Alpha", Model: "mock-a"},
			{Name: "Beta", Model: "mock-b"},
		},
	}
}

func createDialogue(t *testing.T, srv *httptest.Server) string {
	t.Helper()
	body, _ := json.Marshal(validConfig())
	resp, err := http.Post(srv.URL+"/v1/dialogues", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST /v1/dialogues failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Expected 201, got %d", resp.StatusCode)
	}

	var env struct {
		Status string `json:"status"`
		Data   struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("Decode response failed: %v", err)
	}
	if env.Status != "OK" || env.Data.ID == "" {
		t.Fatalf("Expected OK envelope with id, got %+v", env)
	}
	return env.Data.ID
}

func runTurn(t *testing.T, srv *httptest.Server, id, query string) []event.Event {
	t.Helper()
	resp, err := http.Post(srv.URL+"/v1/dialogues/"+id+"/turn"+query, "application/json", nil)
	if err != nil {
		t.Fatalf("POST turn failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200 SSE response, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Expected event-stream content type, got %q", ct)
	}

	var events []event.Event
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		ev, err := event.Decode([]byte(strings.TrimPrefix(line, "data: ")))
		if err != nil {
			t.Fatalf("Decode frame failed: %v", err)
		}
		events = append(events, ev)
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("Stream read failed: %v", err)
	}
	return events
}

func TestCreateValidation(t *testing.T) {
	srv := newTestServer(t)

	cfg := validConfig()
	cfg.Topic = ""
	body, _ := json.Marshal(cfg)
	resp, err := http.Post(srv.URL+"/v1/dialogues", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for invalid config, got %d", resp.StatusCode)
	}
	var env struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	}
	json.NewDecoder(resp.Body).Decode(&env)
	if env.Status != "ERROR" || env.Message == "" {
		t.Errorf("Expected ERROR envelope with message, got %+v", env)
	}
}

func TestGetAndList(t *testing.T) {
	srv := newTestServer(t)
	id := createDialogue(t, srv)

	resp, err := http.Get(srv.URL + "/v1/dialogues/" + id)
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200, got %d", resp.StatusCode)
	}
	var env struct {
		Data dialogue.Snapshot `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if env.Data.Topic != "api surface" || env.Data.Status != dialogue.StatusRunning {
		t.Errorf("Unexpected snapshot: %+v", env.Data)
	}

	resp, err = http.Get(srv.URL + "/v1/dialogues/missing")
	if err != nil {
		t.Fatalf("GET missing failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404 for missing dialogue, got %d", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/v1/dialogues")
	if err != nil {
		t.Fatalf("GET list failed: %v", err)
	}
	defer resp.Body.Close()
	var listEnv struct {
		Data []dialogue.Snapshot `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&listEnv); err != nil {
		t.Fatalf("Decode list failed: %v", err)
	}
	if len(listEnv.Data) != 1 || listEnv.Data[0].ID != id {
		t.Errorf("Expected one dialogue in list, got %+v", listEnv.Data)
	}
}

func TestTurnStream(t *testing.T) {
	srv := newTestServer(t)
	id := createDialogue(t, srv)

	events := runTurn(t, srv, id, "")

	var types []event.Type
	for _, ev := range events {
		types = append(types, ev.Type)
	}
	want := []event.Type{
		event.TypeDialogueStart,
		event.TypeRoundStart,
		event.TypeParticipantStart,
		event.TypeChunk,
		event.TypeChunk,
		event.TypeParticipantComplete,
	}
	if fmt.Sprint(types) != fmt.Sprint(want) {
		t.Errorf("Expected %v, got %v", want, types)
	}

	last := events[len(events)-1]
	payload, ok := last.Data.(*event.ParticipantComplete)
	if !ok {
		t.Fatalf("Expected participant_complete payload, got %T", last.Data)
	}
	if payload.Turn.Content != "canned response" {
		t.Errorf("Expected accumulated content, got %q", payload.Turn.Content)
	}
	if payload.CurrentTurn != 1 {
		t.Errorf("Expected advanced turn index 1, got %d", payload.CurrentTurn)
	}
}

func TestTurnStreamFinalTurnClosesDialogue(t *testing.T) {
	srv := newTestServer(t)
	id := createDialogue(t, srv)

	runTurn(t, srv, id, "")
	events := runTurn(t, srv, id, "")

	types := make([]event.Type, len(events))
	for i, ev := range events {
		types[i] = ev.Type
	}
	want := []event.Type{
		event.TypeParticipantStart,
		event.TypeChunk,
		event.TypeChunk,
		event.TypeParticipantComplete,
		event.TypeRoundComplete,
		event.TypeDialogueComplete,
	}
	if fmt.Sprint(types) != fmt.Sprint(want) {
		t.Errorf("Expected %v, got %v", want, types)
	}

	// A third turn is a conflict, rejected before any stream starts
	resp, err := http.Post(srv.URL+"/v1/dialogues/"+id+"/turn", "application/json", nil)
	if err != nil {
		t.Fatalf("POST turn failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("Expected 409 on completed dialogue, got %d", resp.StatusCode)
	}
}

func TestTurnStreamChunkFilter(t *testing.T) {
	srv := newTestServer(t)
	id := createDialogue(t, srv)

	events := runTurn(t, srv, id, "?chunks=false")
	for _, ev := range events {
		if ev.Type == event.TypeChunk {
			t.Fatal("Expected no chunk events with chunks=false")
		}
	}

	last := events[len(events)-1]
	payload, ok := last.Data.(*event.ParticipantComplete)
	if !ok || payload.Turn.Content != "canned response" {
		t.Errorf("Expected full turn content without chunks, got %+v", last.Data)
	}
}

// brokenPipeWriter accepts the first frame and fails every write after,
// like a client that tore down the connection mid-stream.
type brokenPipeWriter struct {
	header http.Header
	writes int
}

func (b *brokenPipeWriter) Header() http.Header {
	if b.header == nil {
		b.header = make(http.Header)
	}
	return b.header
}

func (b *brokenPipeWriter) Write(p []byte) (int, error) {
	b.writes++
	if b.writes > 1 {
		return 0, fmt.Errorf("write tcp: broken pipe")
	}
	return len(p), nil
}

func (b *brokenPipeWriter) WriteHeader(int) {}
func (b *brokenPipeWriter) Flush()          {}

// chattyProvider streams far more chunks than the turn emitter buffers.
type chattyProvider struct{}

func (chattyProvider) Complete(ctx context.Context, req provider.Request) <-chan provider.Chunk {
	ch := make(chan provider.Chunk)
	go func() {
		defer close(ch)
		for i := 0; i < 300; i++ {
			select {
			case ch <- provider.Chunk{Text: "word "}:
			case <-ctx.Done():
				return
			}
		}
		ch <- provider.Chunk{Done: true, Usage: &provider.Usage{TotalTokens: 300, LatencyMs: 1}}
	}()
	return ch
}

func TestTurnStreamClientDisconnect(t *testing.T) {
	registry := provider.NewRegistry()
	registry.Register("mock-", chattyProvider{})
	sched := scheduler.New(store.NewMemoryStore(), registry, cost.Rates{"mock-a": 0.01, "mock-b": 0.01})
	handler := NewServer(sched)

	id, err := sched.StartDialogue(validConfig())
	if err != nil {
		t.Fatalf("StartDialogue failed: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/dialogues/"+id+"/turn", nil)
	finished := make(chan struct{})
	go func() {
		handler.ServeHTTP(&brokenPipeWriter{}, req)
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(5 * time.Second):
		t.Fatal("Expected handler to return after client disconnect")
	}

	// The turn ran to completion and the dialogue is not wedged.
	snap, err := sched.Get(id)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if snap.TurnCount() != 1 {
		t.Errorf("Expected 1 persisted turn, got %d", snap.TurnCount())
	}
	if err := sched.Pause(id); err != nil {
		t.Errorf("Expected Pause to succeed after disconnect, got %v", err)
	}
}

func TestControlEndpoints(t *testing.T) {
	srv := newTestServer(t)
	id := createDialogue(t, srv)

	post := func(verb string) int {
		resp, err := http.Post(srv.URL+"/v1/dialogues/"+id+"/"+verb, "application/json", nil)
		if err != nil {
			t.Fatalf("POST %s failed: %v", verb, err)
		}
		resp.Body.Close()
		return resp.StatusCode
	}

	if code := post("pause"); code != http.StatusOK {
		t.Errorf("Expected 200 pausing running dialogue, got %d", code)
	}
	if code := post("pause"); code != http.StatusConflict {
		t.Errorf("Expected 409 pausing paused dialogue, got %d", code)
	}
	if code := post("resume"); code != http.StatusOK {
		t.Errorf("Expected 200 resuming, got %d", code)
	}
	if code := post("stop"); code != http.StatusOK {
		t.Errorf("Expected 200 stopping, got %d", code)
	}
	if code := post("resume"); code != http.StatusConflict {
		t.Errorf("Expected 409 resuming completed dialogue, got %d", code)
	}
}

func TestSummaryEndpoint(t *testing.T) {
	srv := newTestServer(t)
	id := createDialogue(t, srv)
	runTurn(t, srv, id, "")

	resp, err := http.Get(srv.URL + "/v1/dialogues/" + id + "/summary")
	if err != nil {
		t.Fatalf("GET summary failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}

	var env struct {
		Data scheduler.Summary `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if env.Data.Topic != "api surface" {
		t.Errorf("Expected topic in summary, got %q", env.Data.Topic)
	}
	if !strings.Contains(env.Data.Transcript, "canned response") {
		t.Error("Expected transcript to include turn content")
	}
	if env.Data.Participants[0].TurnCount != 1 {
		t.Errorf("Expected one turn for Alpha, got %+v", env.Data.Participants[0])
	}
}
