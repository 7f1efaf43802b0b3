// internal/store/sqlite.go
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"colloquy/internal/dialogue"
)

// SQLiteStore persists one row per dialogue with the full snapshot as
// a JSON document. Replace is a single UPDATE of that document, which
// keeps the wholesale-swap discipline intact across restarts.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (and migrates) the database under the XDG data dir
func OpenSQLite() (*SQLiteStore, error) {
	dir, err := dataDir()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	return OpenSQLitePath(filepath.Join(dir, "dialogues.db"))
}

// OpenSQLitePath opens the database at an explicit path
func OpenSQLitePath(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL")
	if err != nil {
		return nil, err
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func dataDir() (string, error) {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dataHome = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataHome, "colloquy"), nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS dialogues (
		id TEXT PRIMARY KEY,
		topic TEXT NOT NULL,
		status TEXT NOT NULL,
		snapshot TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_dialogues_updated ON dialogues(updated_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Create(snap dialogue.Snapshot) error {
	doc, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	_, err = s.db.Exec(
		`INSERT INTO dialogues (id, topic, status, snapshot, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		snap.ID, snap.Topic, string(snap.Status), string(doc), snap.CreatedAt, snap.UpdatedAt,
	)
	if err != nil && isUniqueViolation(err) {
		return ErrExists
	}
	return err
}

func (s *SQLiteStore) Get(id string) (dialogue.Snapshot, error) {
	row := s.db.QueryRow(`SELECT snapshot FROM dialogues WHERE id = ?`, id)

	var doc string
	if err := row.Scan(&doc); err != nil {
		if err == sql.ErrNoRows {
			return dialogue.Snapshot{}, ErrNotFound
		}
		return dialogue.Snapshot{}, err
	}

	var snap dialogue.Snapshot
	if err := json.Unmarshal([]byte(doc), &snap); err != nil {
		return dialogue.Snapshot{}, fmt.Errorf("unmarshal snapshot %s: %w", id, err)
	}
	return snap, nil
}

func (s *SQLiteStore) Replace(snap dialogue.Snapshot) error {
	doc, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	result, err := s.db.Exec(
		`UPDATE dialogues SET topic = ?, status = ?, snapshot = ?, updated_at = ? WHERE id = ?`,
		snap.Topic, string(snap.Status), string(doc), snap.UpdatedAt, snap.ID,
	)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) List() ([]dialogue.Snapshot, error) {
	rows, err := s.db.Query(`SELECT snapshot FROM dialogues ORDER BY updated_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []dialogue.Snapshot
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		var snap dialogue.Snapshot
		if err := json.Unmarshal([]byte(doc), &snap); err != nil {
			return nil, fmt.Errorf("unmarshal snapshot: %w", err)
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
