// Package journal persists the session's emitted events to a local SQLite
// database so a crashed or kicked bot can be examined after the fact. The
// journal is strictly append-only and strictly ordered by emission.
package journal

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"meetingbot/internal/telemetry"
)

//go:embed schema.sql
var schemaSQL string

const schemaVersion = 1

// Entry is one journaled event row.
type Entry struct {
	Seq     int64
	BotID   int64
	Code    telemetry.EventCode
	Time    time.Time
	Payload *telemetry.EventData
}

// Store wraps the journal database. A nil *Store is a valid no-op journal,
// used when journaling is disabled.
type Store struct {
	db   *sql.DB
	path string
}

// Open creates or opens the journal at path. An empty path disables
// journaling and returns a nil store.
func Open(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		return nil, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure journal dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open journal %s: %w", path, err)
	}
	store := &Store{db: db, path: path}
	if err := store.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create journal schema: %w", err)
	}

	var version sql.NullInt64
	if err := tx.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("read journal schema version: %w", err)
	}
	switch {
	case !version.Valid:
		if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
			return fmt.Errorf("record journal schema version: %w", err)
		}
	case version.Int64 != schemaVersion:
		return fmt.Errorf("journal schema version mismatch: have %d, want %d (delete %s)", version.Int64, schemaVersion, s.path)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit journal schema: %w", err)
	}
	return nil
}

// Append records one event. Nil stores accept and drop the write.
func (s *Store) Append(ctx context.Context, botID int64, event telemetry.Event) error {
	if s == nil {
		return nil
	}
	var payload any
	if event.Data != nil {
		encoded, err := json.Marshal(event.Data)
		if err != nil {
			return fmt.Errorf("encode journal payload: %w", err)
		}
		payload = string(encoded)
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO events (bot_id, event_type, event_time, payload) VALUES (?, ?, ?, ?)",
		botID, string(event.Code), event.Time.UTC().Format(time.RFC3339Nano), payload,
	)
	if err != nil {
		return fmt.Errorf("append journal event: %w", err)
	}
	return nil
}

// List returns journaled events in emission order. A zero botID lists
// events for every bot.
func (s *Store) List(ctx context.Context, botID int64) ([]Entry, error) {
	if s == nil {
		return nil, nil
	}
	query := "SELECT seq, bot_id, event_type, event_time, payload FROM events ORDER BY seq"
	args := []any{}
	if botID != 0 {
		query = "SELECT seq, bot_id, event_type, event_time, payload FROM events WHERE bot_id = ? ORDER BY seq"
		args = append(args, botID)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list journal events: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			entry     Entry
			code      string
			timestamp string
			payload   sql.NullString
		)
		if err := rows.Scan(&entry.Seq, &entry.BotID, &code, &timestamp, &payload); err != nil {
			return nil, fmt.Errorf("scan journal row: %w", err)
		}
		entry.Code = telemetry.EventCode(code)
		if parsed, err := time.Parse(time.RFC3339Nano, timestamp); err == nil {
			entry.Time = parsed
		}
		if payload.Valid {
			var data telemetry.EventData
			if err := json.Unmarshal([]byte(payload.String), &data); err == nil {
				entry.Payload = &data
			}
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// Close releases the database handle. Safe on nil stores.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	return s.db.Close()
}
