package logging

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// #region log-tick
// LogTick writes a tick entry to the tick_log table.
func LogTick(db *sql.DB, entry TickEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := db.Exec(
		`INSERT INTO tick_log (session_id, tick_id, record_json, viability, new_failures, reason, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.SessionID,
		entry.TickID,
		nullIfEmpty(entry.RecordJSON),
		entry.Viability,
		nullIfEmpty(entry.NewFailures),
		nullIfEmpty(entry.Reason),
		entry.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("log tick: %w", err)
	}
	return nil
}

// #endregion log-tick

// #region list-ticks
// ListTicks returns the most recent ticks of a session, oldest first.
func ListTicks(db *sql.DB, sessionID string, limit int) ([]TickEntry, error) {
	rows, err := db.Query(
		`SELECT session_id, tick_id, record_json, viability, new_failures, reason, created_at
		 FROM (SELECT * FROM tick_log WHERE session_id = ? ORDER BY id DESC LIMIT ?)
		 ORDER BY id ASC`, sessionID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list ticks: %w", err)
	}
	defer rows.Close()

	var entries []TickEntry
	for rows.Next() {
		var e TickEntry
		var record, failures, reason sql.NullString
		var viability sql.NullFloat64
		var createdStr string
		if err := rows.Scan(&e.SessionID, &e.TickID, &record, &viability, &failures, &reason, &createdStr); err != nil {
			return nil, fmt.Errorf("scan tick: %w", err)
		}
		e.Viability = viability.Float64
		e.RecordJSON = record.String
		e.NewFailures = failures.String
		e.Reason = reason.String
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ParseRecord decodes the TickRecord stored in an entry. It returns nil when
// the entry carries no record.
func ParseRecord(e TickEntry) (*TickRecord, error) {
	if e.RecordJSON == "" {
		return nil, nil
	}
	var r TickRecord
	if err := json.Unmarshal([]byte(e.RecordJSON), &r); err != nil {
		return nil, fmt.Errorf("parse tick record %s: %w", e.TickID, err)
	}
	return &r, nil
}

// #endregion list-ticks

// #region helpers
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// #endregion helpers
