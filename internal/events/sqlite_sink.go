package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

// SQLiteSink persists events to a SQLite database for indexing.
type SQLiteSink struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteSink opens (or creates) the database and runs migrations.
// Use ":memory:" for an ephemeral store.
func NewSQLiteSink(path string) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// a single connection keeps ":memory:" databases alive and serialises writers
	db.SetMaxOpenConns(1)

	if path != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("set WAL mode: %w", err)
		}
	}

	s := &SQLiteSink{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Infof("sqlite event sink opened: %s", path)
	return s, nil
}

func (s *SQLiteSink) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS events (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp     INTEGER NOT NULL,
			name          TEXT NOT NULL,
			commitment_id TEXT,
			actor         TEXT,
			code          INTEGER,
			message       TEXT,
			data          TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_commitment ON events(commitment_id, id)`,
		`CREATE INDEX IF NOT EXISTS idx_events_name ON events(name)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:30], err)
		}
	}
	return nil
}

func (s *SQLiteSink) Record(ctx context.Context, ev Event) error {
	data, err := json.Marshal(ev.Data)
	if err != nil {
		return fmt.Errorf("failed to encode event data: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.ExecContext(ctx, `INSERT INTO events
		(timestamp, name, commitment_id, actor, code, message, data)
		VALUES (?,?,?,?,?,?,?)`,
		ev.Timestamp, ev.Name, ev.CommitmentID, ev.Actor, ev.Code, ev.Message, string(data),
	)
	return err
}

// ListByCommitment returns up to limit events for a commitment, oldest first.
func (s *SQLiteSink) ListByCommitment(ctx context.Context, commitmentID string, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 100
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT timestamp, name, commitment_id, actor, code, message, data
		FROM events
		WHERE commitment_id = ?
		ORDER BY id ASC
		LIMIT ?`, commitmentID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var ev Event
		var data string
		if err := rows.Scan(&ev.Timestamp, &ev.Name, &ev.CommitmentID, &ev.Actor, &ev.Code, &ev.Message, &data); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		if data != "" && data != "null" {
			if err := json.Unmarshal([]byte(data), &ev.Data); err != nil {
				return nil, fmt.Errorf("failed to decode event data: %w", err)
			}
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (s *SQLiteSink) Close() error {
	log.Info("closing sqlite event sink")
	return s.db.Close()
}
