package logging

import (
	"bytes"
	"database/sql"
	"log/slog"
	"strings"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

// #region helpers
func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(1)
	_, err = db.Exec(`CREATE TABLE tick_log (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id   TEXT NOT NULL,
		tick_id      TEXT NOT NULL,
		record_json  TEXT,
		viability    REAL,
		new_failures TEXT,
		reason       TEXT,
		created_at   TEXT NOT NULL
	)`)
	if err != nil {
		t.Fatalf("create table: %v", err)
	}
	return db
}

// #endregion helpers

// #region log-tick-tests
func TestLogTick_Success(t *testing.T) {
	db := setupDB(t)
	defer db.Close()

	entry := TickEntry{
		SessionID:   "s1",
		TickID:      "tick-1",
		RecordJSON:  `{"tick_id":"tick-1","body_length":0.02}`,
		Viability:   42.5,
		NewFailures: "respiratory_hypoxia",
		Reason:      "1 new failure",
		CreatedAt:   time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	if err := LogTick(db, entry); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var count int
	db.QueryRow("SELECT COUNT(*) FROM tick_log").Scan(&count)
	if count != 1 {
		t.Errorf("expected 1 row, got %d", count)
	}

	var tickID string
	var viability float64
	db.QueryRow("SELECT tick_id, viability FROM tick_log").Scan(&tickID, &viability)
	if tickID != "tick-1" {
		t.Errorf("expected tick_id 'tick-1', got %q", tickID)
	}
	if viability != 42.5 {
		t.Errorf("expected viability 42.5, got %v", viability)
	}
}

func TestLogTick_ZeroCreatedAt(t *testing.T) {
	db := setupDB(t)
	defer db.Close()

	before := time.Now().UTC()
	if err := LogTick(db, TickEntry{SessionID: "s1", TickID: "tick-1"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var createdAtStr string
	db.QueryRow("SELECT created_at FROM tick_log").Scan(&createdAtStr)
	createdAt, err := time.Parse(time.RFC3339Nano, createdAtStr)
	if err != nil {
		t.Fatalf("parse created_at: %v", err)
	}
	if createdAt.Before(before) {
		t.Error("expected auto-filled created_at to be >= test start time")
	}
}

func TestLogTick_EmptyOptionalFields(t *testing.T) {
	db := setupDB(t)
	defer db.Close()

	if err := LogTick(db, TickEntry{SessionID: "s1", TickID: "tick-1"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var record, failures, reason sql.NullString
	db.QueryRow("SELECT record_json, new_failures, reason FROM tick_log").Scan(&record, &failures, &reason)
	if record.Valid || failures.Valid || reason.Valid {
		t.Error("expected NULL for empty optional fields")
	}
}

func TestLogTick_Error(t *testing.T) {
	db := setupDB(t)
	db.Close() // close to force error

	if err := LogTick(db, TickEntry{SessionID: "s1", TickID: "tick-1"}); err == nil {
		t.Fatal("expected error on closed db")
	}
}

// #endregion log-tick-tests

// #region list-ticks-tests
func TestListTicks_OldestFirstWithLimit(t *testing.T) {
	db := setupDB(t)
	defer db.Close()

	for _, id := range []string{"tick-1", "tick-2", "tick-3"} {
		if err := LogTick(db, TickEntry{SessionID: "s1", TickID: id}); err != nil {
			t.Fatalf("LogTick: %v", err)
		}
	}
	LogTick(db, TickEntry{SessionID: "other", TickID: "tick-x"})

	entries, err := ListTicks(db, "s1", 2)
	if err != nil {
		t.Fatalf("ListTicks: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].TickID != "tick-2" || entries[1].TickID != "tick-3" {
		t.Fatalf("expected tick-2, tick-3; got %s, %s", entries[0].TickID, entries[1].TickID)
	}
}

func TestParseRecord(t *testing.T) {
	rec, err := ParseRecord(TickEntry{TickID: "t", RecordJSON: `{"tick_id":"t","new_failures":["a","b"],"viability":12}`})
	if err != nil {
		t.Fatalf("ParseRecord: %v", err)
	}
	if rec.TickID != "t" || len(rec.NewFailures) != 2 || rec.Viability != 12 {
		t.Fatalf("unexpected record: %+v", rec)
	}

	rec, err = ParseRecord(TickEntry{})
	if err != nil || rec != nil {
		t.Fatalf("expected nil record, got %+v %v", rec, err)
	}

	if _, err := ParseRecord(TickEntry{RecordJSON: "{"}); err == nil {
		t.Fatal("expected parse error")
	}
}

// #endregion list-ticks-tests

// #region null-if-empty-tests
func TestNullIfEmpty_Empty(t *testing.T) {
	result := nullIfEmpty("")
	if result != nil {
		t.Errorf("expected nil for empty string, got %v", result)
	}
}

func TestNullIfEmpty_NonEmpty(t *testing.T) {
	result := nullIfEmpty("hello")
	if result != "hello" {
		t.Errorf("expected 'hello', got %v", result)
	}
}

// #endregion null-if-empty-tests

// #region logger-tests
func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"INFO":  slog.LevelInfo,
		"":      slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		if err != nil || got != want {
			t.Errorf("ParseLevel(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseLevel("verbose"); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestNewLoggerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, slog.LevelWarn)

	logger.Info("hidden")
	logger.Warn("failure triggered", "failure_id", "exoskeleton_buckling")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("info line should be filtered at warn level")
	}
	if !strings.Contains(out, "failure triggered") || !strings.Contains(out, "exoskeleton_buckling") {
		t.Errorf("expected warn line with attribute, got %q", out)
	}
}

// #endregion logger-tests
