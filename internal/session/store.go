// Package session persists conversation transcripts in SQLite so a
// chat can be resumed, listed, or deleted across program runs.
package session

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/locodev/loco/internal/llm"
)

// Record is one saved session.
type Record struct {
	ID           string        `json:"id"`
	Name         string        `json:"name,omitempty"`
	Model        string        `json:"model"`
	Messages     []llm.Message `json:"messages,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
	MessageCount int           `json:"message_count"`
}

// Store persists session records.
type Store struct {
	db *sql.DB
}

// Open creates a session store backed by a SQLite database at the
// given path, creating parent directories and the schema as needed.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create session dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open session db: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("session store migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS sessions (
			id            TEXT PRIMARY KEY,
			name          TEXT,
			model         TEXT NOT NULL,
			messages      TEXT NOT NULL,
			message_count INTEGER NOT NULL,
			created_at    TEXT NOT NULL,
			updated_at    TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_sessions_updated
			ON sessions(updated_at DESC);
	`)
	return err
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// NewSessionID generates a session identifier. V7 UUIDs sort by
// creation time.
func NewSessionID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Save inserts or updates a session. An empty rec.ID gets a generated
// one; the final ID is returned.
func (s *Store) Save(rec *Record) (string, error) {
	if rec.ID == "" {
		rec.ID = NewSessionID()
	}
	now := time.Now()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
	rec.MessageCount = len(rec.Messages)

	msgsJSON, err := json.Marshal(rec.Messages)
	if err != nil {
		return "", fmt.Errorf("marshal messages: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO sessions (id, name, model, messages, message_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			model = excluded.model,
			messages = excluded.messages,
			message_count = excluded.message_count,
			updated_at = excluded.updated_at`,
		rec.ID, rec.Name, rec.Model, string(msgsJSON), rec.MessageCount,
		rec.CreatedAt.Format(time.RFC3339Nano),
		rec.UpdatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return "", fmt.Errorf("save session %s: %w", rec.ID, err)
	}
	return rec.ID, nil
}

// Load retrieves a full session by ID. Returns nil, nil when the
// session does not exist.
func (s *Store) Load(id string) (*Record, error) {
	row := s.db.QueryRow(`
		SELECT id, name, model, messages, message_count, created_at, updated_at
		FROM sessions WHERE id = ?`, id)

	rec, err := scanSession(row, true)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return rec, err
}

// List returns session metadata newest-first, transcripts omitted.
// A limit of 0 returns everything.
func (s *Store) List(limit int) ([]*Record, error) {
	query := `
		SELECT id, name, model, messages, message_count, created_at, updated_at
		FROM sessions ORDER BY updated_at DESC`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		rec, err := scanSession(rows, false)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Delete removes a session. Reports whether a row was deleted.
func (s *Store) Delete(id string) (bool, error) {
	res, err := s.db.Exec(`DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// scanner abstracts *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanSession(s scanner, withMessages bool) (*Record, error) {
	var rec Record
	var name, msgsJSON sql.NullString
	var createdAt, updatedAt string

	err := s.Scan(&rec.ID, &name, &rec.Model, &msgsJSON, &rec.MessageCount, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	rec.Name = name.String
	rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	rec.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)

	if withMessages && msgsJSON.Valid && msgsJSON.String != "" {
		if err := json.Unmarshal([]byte(msgsJSON.String), &rec.Messages); err != nil {
			return nil, fmt.Errorf("unmarshal session %s messages: %w", rec.ID, err)
		}
	}
	return &rec, nil
}
