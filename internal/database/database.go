package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/tagwatch/tagwatch/pkg/event"
	_ "modernc.org/sqlite" // CGO-free SQLite
)

// Database persists captured events across observation sessions.
type Database struct {
	db *sql.DB
}

// New opens or creates the events database at the given path.
func New(databasePath string) (*Database, error) {
	// WAL + busy timeout to avoid "database is locked". The driver
	// only honors pragmas passed through _pragma query parameters.
	db, err := sql.Open("sqlite", databasePath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Database{db: db}, nil
}

func createTables(db *sql.DB) error {
	_, err := db.Exec(`
	CREATE TABLE IF NOT EXISTS events(
	  id           INTEGER PRIMARY KEY,
	  session_id   TEXT    NOT NULL,
	  source       TEXT    NOT NULL CHECK (source IN ('console_log','performance_log','console_api','injected_push','final_snapshot')),
	  level        TEXT,
	  payload_json TEXT    NOT NULL CHECK (json_valid(payload_json)),
	  observed_utc INTEGER NOT NULL,
	  origin_utc   INTEGER
	);
	CREATE INDEX IF NOT EXISTS idx_events_session ON events(session_id);
	CREATE INDEX IF NOT EXISTS idx_events_source  ON events(source);
	CREATE INDEX IF NOT EXISTS idx_events_observed ON events(observed_utc);
	`)
	if err != nil {
		return fmt.Errorf("failed to create database tables: %w", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (d *Database) Close() error {
	return d.db.Close()
}

// ValidateEvent checks that an event can be stored.
func (d *Database) ValidateEvent(e event.CapturedEvent) error {
	if !e.Source.Valid() {
		return fmt.Errorf("invalid event source: %s", e.Source)
	}
	if e.ObservedAt.IsZero() {
		return fmt.Errorf("observed time cannot be zero")
	}
	return nil
}

// InsertEvents stores all events of one session in a single
// transaction. Either the whole session lands or none of it does.
func (d *Database) InsertEvents(sessionID string, events []event.CapturedEvent) error {
	if sessionID == "" {
		return fmt.Errorf("session ID cannot be empty")
	}

	transaction, err := d.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	statement, err := transaction.Prepare(`INSERT INTO events(session_id, source, level, payload_json, observed_utc, origin_utc) VALUES(?,?,?,json(?),?,?)`)
	if err != nil {
		_ = transaction.Rollback()
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer statement.Close()

	for _, e := range events {
		if err := d.ValidateEvent(e); err != nil {
			_ = transaction.Rollback()
			return fmt.Errorf("invalid event: %w", err)
		}

		payload, err := json.Marshal(e.Payload)
		if err != nil {
			_ = transaction.Rollback()
			return fmt.Errorf("failed to marshal event payload: %w", err)
		}

		var origin any
		if e.OriginTimestamp != nil {
			origin = e.OriginTimestamp.UnixMilli()
		}
		if _, err := statement.Exec(sessionID, string(e.Source), e.Level, string(payload), e.ObservedAt.UnixMilli(), origin); err != nil {
			_ = transaction.Rollback()
			return fmt.Errorf("failed to execute statement: %w", err)
		}
	}
	if err := transaction.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// SessionEventCount returns how many events are stored for a session.
func (d *Database) SessionEventCount(sessionID string) (int, error) {
	var n int
	err := d.db.QueryRow(`SELECT COUNT(*) FROM events WHERE session_id = ?`, sessionID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count session events: %w", err)
	}
	return n, nil
}

// SessionEvents reads back one session's events in insertion order.
func (d *Database) SessionEvents(sessionID string) ([]event.CapturedEvent, error) {
	rows, err := d.db.Query(`SELECT source, level, payload_json, observed_utc, origin_utc FROM events WHERE session_id = ? ORDER BY id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query session events: %w", err)
	}
	defer rows.Close()

	var out []event.CapturedEvent
	for rows.Next() {
		var (
			source   string
			level    sql.NullString
			payload  string
			observed int64
			origin   sql.NullInt64
		)
		if err := rows.Scan(&source, &level, &payload, &observed, &origin); err != nil {
			return nil, fmt.Errorf("failed to scan event row: %w", err)
		}

		value, err := event.ParseString(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to parse stored payload: %w", err)
		}

		e := event.CapturedEvent{
			Source:     event.Source(source),
			Level:      level.String,
			Payload:    value,
			ObservedAt: time.UnixMilli(observed).UTC(),
		}
		if origin.Valid {
			t := time.UnixMilli(origin.Int64).UTC()
			e.OriginTimestamp = &t
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read event rows: %w", err)
	}
	return out, nil
}
