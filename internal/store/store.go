// internal/store/store.go
package store

import (
	"errors"

	"colloquy/internal/dialogue"
)

var (
	ErrNotFound = errors.New("dialogue not found")
	ErrExists   = errors.New("dialogue already exists")
)

// Store maps dialogue identifier -> current snapshot with atomic
// replace semantics: callers read a snapshot, compute a new value and
// swap it wholesale. Field-level mutation of a stored value is never
// exposed, which is what makes single-writer-per-dialogue sufficient.
//
// Implementations must allow concurrent reads of other dialogues while
// a replace is in flight.
type Store interface {
	// Create inserts the initial snapshot; ErrExists when the id is taken
	Create(snap dialogue.Snapshot) error

	// Get returns a copy of the current snapshot; ErrNotFound when absent
	Get(id string) (dialogue.Snapshot, error)

	// Replace swaps the stored snapshot wholesale; ErrNotFound when absent
	Replace(snap dialogue.Snapshot) error

	// List returns copies of every stored snapshot, newest update first
	List() ([]dialogue.Snapshot, error)

	Close() error
}
