package session

import (
	"errors"
	"time"

	"github.com/danielpatrickdp/spider-scale/internal/failure"
	"github.com/danielpatrickdp/spider-scale/internal/scaling"
)

// #region session-record
// SessionRecord is one row of the sessions table.
type SessionRecord struct {
	SessionID      string    `json:"session_id"`
	Species        string    `json:"species"`
	BaselineLength float64   `json:"baseline_length"`
	CreatedAt      time.Time `json:"created_at"`
	EventCount     int       `json:"event_count,omitempty"` // filled by ListSessions
}

// #endregion session-record

// #region tick-result
// TickResult is what one Session.Tick returns to the display.
type TickResult struct {
	TickID   string
	Input    scaling.ModelInput
	Output   scaling.ModelOutput
	Detected []string // ids below threshold this tick, catalog order
	State    failure.FailureState

	// Highlight is the first newly triggered failure not dismissed by the
	// user, or nil.
	Highlight *failure.FailureEvent
}

// #endregion tick-result

// #region errors
// ErrNotFound is returned when a session id has no row in the store.
var ErrNotFound = errors.New("session: not found")

// #endregion errors
