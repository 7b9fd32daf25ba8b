package database

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/tagwatch/tagwatch/pkg/event"
)

func setupTestDB(t *testing.T) *Database {
	t.Helper()

	db, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func observedEvent(source event.Source, payload event.Value) event.CapturedEvent {
	return event.CapturedEvent{
		Source:     source,
		Payload:    payload,
		ObservedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestNew(t *testing.T) {
	db := setupTestDB(t)

	if db == nil {
		t.Fatal("Expected non-nil database")
	}
	if db.db == nil {
		t.Fatal("Expected non-nil sql.DB")
	}
}

func TestNew_AppliesConnectionPragmas(t *testing.T) {
	db := setupTestDB(t)

	var mode string
	if err := db.db.QueryRow(`PRAGMA journal_mode`).Scan(&mode); err != nil {
		t.Fatalf("PRAGMA journal_mode: %v", err)
	}
	if mode != "wal" {
		t.Errorf("journal_mode = %q, want wal", mode)
	}

	var timeout int
	if err := db.db.QueryRow(`PRAGMA busy_timeout`).Scan(&timeout); err != nil {
		t.Fatalf("PRAGMA busy_timeout: %v", err)
	}
	if timeout != 5000 {
		t.Errorf("busy_timeout = %d, want 5000", timeout)
	}
}

func TestValidateEvent(t *testing.T) {
	db := setupTestDB(t)

	tests := []struct {
		name      string
		event     event.CapturedEvent
		wantError bool
	}{
		{
			name:      "valid push event",
			event:     observedEvent(event.SourceInjectedPush, event.String("x")),
			wantError: false,
		},
		{
			name:      "invalid source",
			event:     observedEvent(event.Source("telepathy"), event.String("x")),
			wantError: true,
		},
		{
			name:      "empty source",
			event:     observedEvent(event.Source(""), event.String("x")),
			wantError: true,
		},
		{
			name: "zero observed time",
			event: event.CapturedEvent{
				Source:  event.SourceConsoleLog,
				Payload: event.String("x"),
			},
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := db.ValidateEvent(tt.event)
			if (err != nil) != tt.wantError {
				t.Errorf("ValidateEvent() error = %v, wantError %v", err, tt.wantError)
			}
		})
	}
}

func TestInsertEvents(t *testing.T) {
	db := setupTestDB(t)

	payload := event.Map()
	payload.Set("event", event.String("pageview"))

	origin := time.Date(2025, 6, 1, 11, 59, 59, 0, time.UTC)
	events := []event.CapturedEvent{
		{
			Source:          event.SourceInjectedPush,
			Payload:         payload,
			ObservedAt:      time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
			OriginTimestamp: &origin,
		},
		{
			Source:     event.SourceConsoleLog,
			Payload:    event.String("gtag loaded"),
			Level:      "INFO",
			ObservedAt: time.Date(2025, 6, 1, 12, 0, 1, 0, time.UTC),
		},
	}

	if err := db.InsertEvents("session-1", events); err != nil {
		t.Fatalf("Failed to insert events: %v", err)
	}

	count, err := db.SessionEventCount("session-1")
	if err != nil {
		t.Fatalf("Failed to count events: %v", err)
	}
	if count != len(events) {
		t.Errorf("Expected %d events, got %d", len(events), count)
	}
}

func TestInsertEvents_RollbackOnInvalid(t *testing.T) {
	db := setupTestDB(t)

	events := []event.CapturedEvent{
		observedEvent(event.SourceConsoleLog, event.String("valid")),
		observedEvent(event.Source("bogus"), event.String("invalid")),
	}

	if err := db.InsertEvents("session-1", events); err == nil {
		t.Fatal("Expected error for invalid event, got nil")
	}

	count, err := db.SessionEventCount("session-1")
	if err != nil {
		t.Fatalf("Failed to count events: %v", err)
	}
	if count != 0 {
		t.Errorf("Expected 0 events after rollback, got %d", count)
	}
}

func TestInsertEvents_EmptySessionID(t *testing.T) {
	db := setupTestDB(t)

	err := db.InsertEvents("", []event.CapturedEvent{
		observedEvent(event.SourceConsoleLog, event.String("x")),
	})
	if err == nil {
		t.Fatal("Expected error for empty session ID, got nil")
	}
}

func TestAllEventSources(t *testing.T) {
	db := setupTestDB(t)

	sources := []event.Source{
		event.SourceConsoleLog,
		event.SourcePerformanceLog,
		event.SourceConsoleAPI,
		event.SourceInjectedPush,
		event.SourceFinalSnapshot,
	}

	for _, source := range sources {
		t.Run(string(source), func(t *testing.T) {
			err := db.InsertEvents("session-1", []event.CapturedEvent{
				observedEvent(source, event.String("x")),
			})
			if err != nil {
				t.Errorf("Failed to insert %s event: %v", source, err)
			}
		})
	}

	count, err := db.SessionEventCount("session-1")
	if err != nil {
		t.Fatalf("Failed to count events: %v", err)
	}
	if count != len(sources) {
		t.Errorf("Expected %d events, got %d", len(sources), count)
	}
}

func TestSessionEvents_RoundTrip(t *testing.T) {
	db := setupTestDB(t)

	payload := event.Map()
	payload.Set("event", event.String("click"))
	payload.Set("label", event.String("cta"))

	origin := time.Date(2025, 6, 1, 11, 59, 59, 0, time.UTC)
	inserted := []event.CapturedEvent{
		{
			Source:          event.SourceInjectedPush,
			Payload:         payload,
			ObservedAt:      time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
			OriginTimestamp: &origin,
		},
		{
			Source:     event.SourceFinalSnapshot,
			Payload:    event.List(),
			ObservedAt: time.Date(2025, 6, 1, 12, 0, 10, 0, time.UTC),
		},
	}
	if err := db.InsertEvents("session-1", inserted); err != nil {
		t.Fatalf("Failed to insert events: %v", err)
	}
	// Another session's events must not leak into the read.
	if err := db.InsertEvents("session-2", []event.CapturedEvent{
		observedEvent(event.SourceConsoleLog, event.String("other")),
	}); err != nil {
		t.Fatalf("Failed to insert second session: %v", err)
	}

	got, err := db.SessionEvents("session-1")
	if err != nil {
		t.Fatalf("Failed to read events: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Expected 2 events, got %d", len(got))
	}

	if got[0].Source != event.SourceInjectedPush {
		t.Errorf("first source = %q", got[0].Source)
	}
	if !got[0].Payload.Equal(inserted[0].Payload) {
		t.Error("first payload did not survive the round trip")
	}
	if got[0].OriginTimestamp == nil || !got[0].OriginTimestamp.Equal(origin) {
		t.Errorf("origin timestamp = %v, want %v", got[0].OriginTimestamp, origin)
	}
	if got[1].OriginTimestamp != nil {
		t.Error("second event has an origin timestamp it was stored without")
	}
	if !got[0].ObservedAt.Equal(inserted[0].ObservedAt) {
		t.Errorf("observed time = %v, want %v", got[0].ObservedAt, inserted[0].ObservedAt)
	}
}

func TestDatabaseClose(t *testing.T) {
	db := setupTestDB(t)

	if err := db.Close(); err != nil {
		t.Errorf("Failed to close database: %v", err)
	}
}
