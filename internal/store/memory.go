// internal/store/memory.go
package store

import (
	"sort"
	"sync"

	"colloquy/internal/dialogue"
)

// MemoryStore keeps snapshots in a process-local map. Both directions
// go through Clone so no caller ever holds a reference into the map.
type MemoryStore struct {
	mu        sync.RWMutex
	snapshots map[string]dialogue.Snapshot
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{snapshots: make(map[string]dialogue.Snapshot)}
}

func (s *MemoryStore) Create(snap dialogue.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.snapshots[snap.ID]; ok {
		return ErrExists
	}
	s.snapshots[snap.ID] = snap.Clone()
	return nil
}

func (s *MemoryStore) Get(id string) (dialogue.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.snapshots[id]
	if !ok {
		return dialogue.Snapshot{}, ErrNotFound
	}
	return snap.Clone(), nil
}

func (s *MemoryStore) Replace(snap dialogue.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.snapshots[snap.ID]; !ok {
		return ErrNotFound
	}
	s.snapshots[snap.ID] = snap.Clone()
	return nil
}

func (s *MemoryStore) List() ([]dialogue.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]dialogue.Snapshot, 0, len(s.snapshots))
	for _, snap := range s.snapshots {
		out = append(out, snap.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

func (s *MemoryStore) Close() error { return nil }
