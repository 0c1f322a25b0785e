package logging

import "time"

// #region tick-entry
// TickEntry is a single row in the tick_log table.
type TickEntry struct {
	SessionID   string
	TickID      string
	RecordJSON  string // serialized TickRecord
	Viability   float64
	NewFailures string // comma-separated failure ids, catalog order
	Reason      string
	CreatedAt   time.Time
}

// #endregion tick-entry

// #region tick-record
// TickRecord captures the complete inputs and outputs of one session tick.
// Serialized as JSON into tick_log.record_json so a session can be replayed.
type TickRecord struct {
	TickID string `json:"tick_id"`

	// Inputs as evaluated
	BodyLength        float64 `json:"body_length"`
	BaselineLength    float64 `json:"baseline_length"`
	O2Fraction        float64 `json:"o2_fraction"`
	GravityMultiplier float64 `json:"gravity_multiplier"`
	Mode              string  `json:"mode"`

	// Model output
	ScaleFactor float64            `json:"scale_factor"`
	Proxies     map[string]float64 `json:"proxies"`
	Viability   float64            `json:"viability"`

	// Failure state after the tick
	Detected    []string `json:"detected"`
	NewFailures []string `json:"new_failures"`
	Resolved    []string `json:"resolved,omitempty"`
	Active      []string `json:"active"`
	Highlight   string   `json:"highlight,omitempty"`
}

// #endregion tick-record
