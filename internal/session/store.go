package session

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/danielpatrickdp/spider-scale/internal/failure"
	_ "modernc.org/sqlite"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	session_id      TEXT PRIMARY KEY,
	species         TEXT NOT NULL,
	baseline_length REAL NOT NULL,
	created_at      TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS failure_events (
	event_id           TEXT PRIMARY KEY,
	session_id         TEXT NOT NULL,
	seq                INTEGER NOT NULL,
	failure_id         TEXT NOT NULL,
	triggered_at_size  REAL NOT NULL,
	triggered_at_scale REAL NOT NULL,
	created_at         TEXT NOT NULL,
	is_active          INTEGER NOT NULL,
	is_resolved        INTEGER NOT NULL,
	is_irreversible    INTEGER NOT NULL,
	FOREIGN KEY (session_id) REFERENCES sessions(session_id),
	UNIQUE (session_id, seq)
);

CREATE TABLE IF NOT EXISTS tick_log (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id   TEXT NOT NULL,
	tick_id      TEXT NOT NULL,
	record_json  TEXT,
	viability    REAL,
	new_failures TEXT,
	reason       TEXT,
	created_at   TEXT NOT NULL,
	FOREIGN KEY (session_id) REFERENCES sessions(session_id)
);
`

// #endregion schema

// #region store-struct
// Store persists sessions and their failure histories in SQLite.
type Store struct {
	db *sql.DB
}

// #endregion store-struct

// #region constructor
// NewStore opens a SQLite database and runs migrations. ":memory:" keeps the
// store in process memory for the lifetime of the Store.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if dbPath == ":memory:" {
		// Every pooled connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// #endregion constructor

// #region close
// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// #endregion close

// #region db-accessor
// DB returns the underlying *sql.DB for use by other packages (e.g. logging).
func (s *Store) DB() *sql.DB {
	return s.db
}

// #endregion db-accessor

// #region sessions
// CreateSession inserts a session row.
func (s *Store) CreateSession(rec SessionRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(
		`INSERT INTO sessions (session_id, species, baseline_length, created_at) VALUES (?, ?, ?, ?)`,
		rec.SessionID, rec.Species, rec.BaselineLength, rec.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// GetSession reads one session row.
func (s *Store) GetSession(id string) (SessionRecord, error) {
	var rec SessionRecord
	var createdStr string
	err := s.db.QueryRow(
		`SELECT session_id, species, baseline_length, created_at FROM sessions WHERE session_id = ?`, id,
	).Scan(&rec.SessionID, &rec.Species, &rec.BaselineLength, &createdStr)
	if errors.Is(err, sql.ErrNoRows) {
		return SessionRecord{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return SessionRecord{}, fmt.Errorf("get session %s: %w", id, err)
	}
	rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
	return rec, nil
}

// ListSessions returns the most recently created sessions with their event
// counts.
func (s *Store) ListSessions(limit int) ([]SessionRecord, error) {
	rows, err := s.db.Query(
		`SELECT s.session_id, s.species, s.baseline_length, s.created_at, COUNT(e.event_id)
		 FROM sessions s LEFT JOIN failure_events e ON e.session_id = s.session_id
		 GROUP BY s.session_id
		 ORDER BY s.rowid DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var records []SessionRecord
	for rows.Next() {
		var rec SessionRecord
		var createdStr string
		if err := rows.Scan(&rec.SessionID, &rec.Species, &rec.BaselineLength, &createdStr, &rec.EventCount); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// #endregion sessions

// #region save-history
// SaveHistory writes h for sessionID. New events are inserted at their
// position; existing events only have their status columns updated, so the
// snapshot fields written at creation are never rewritten.
func (s *Store) SaveHistory(sessionID string, h failure.FailureHistory) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`INSERT INTO failure_events (event_id, session_id, seq, failure_id, triggered_at_size,
		   triggered_at_scale, created_at, is_active, is_resolved, is_irreversible)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(event_id) DO UPDATE SET
		   is_active = excluded.is_active,
		   is_resolved = excluded.is_resolved`,
	)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for i, ev := range h {
		_, err := stmt.Exec(
			ev.EventID, sessionID, i, ev.FailureID, ev.TriggeredAtSize, ev.TriggeredAtScale,
			ev.Timestamp.Format(time.RFC3339Nano), boolInt(ev.IsActive), boolInt(ev.IsResolved),
			boolInt(ev.IsIrreversible),
		)
		if err != nil {
			return fmt.Errorf("upsert event %s: %w", ev.EventID, err)
		}
	}

	return tx.Commit()
}

// #endregion save-history

// #region load-history
// LoadHistory reads the failure history of sessionID in creation order.
func (s *Store) LoadHistory(sessionID string) (failure.FailureHistory, error) {
	rows, err := s.db.Query(
		`SELECT event_id, failure_id, triggered_at_size, triggered_at_scale, created_at,
		        is_active, is_resolved, is_irreversible
		 FROM failure_events WHERE session_id = ? ORDER BY seq ASC`, sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	defer rows.Close()

	var h failure.FailureHistory
	for rows.Next() {
		var ev failure.FailureEvent
		var createdStr string
		var active, resolved, irreversible int
		if err := rows.Scan(&ev.EventID, &ev.FailureID, &ev.TriggeredAtSize, &ev.TriggeredAtScale,
			&createdStr, &active, &resolved, &irreversible); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev.Timestamp, _ = time.Parse(time.RFC3339Nano, createdStr)
		ev.IsActive = active != 0
		ev.IsResolved = resolved != 0
		ev.IsIrreversible = irreversible != 0
		h = append(h, ev)
	}
	return h, rows.Err()
}

// #endregion load-history

// #region count-ticks
// CountTicks returns how many ticks sessionID has logged.
func (s *Store) CountTicks(sessionID string) (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM tick_log WHERE session_id = ?`, sessionID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count ticks %s: %w", sessionID, err)
	}
	return n, nil
}

// #endregion count-ticks

// #region helpers
func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// #endregion helpers
