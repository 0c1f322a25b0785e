package failure

import "time"

// #region failure-event
// FailureEvent records one trigger of a failure mode. TriggeredAtSize,
// TriggeredAtScale, Timestamp and IsIrreversible are fixed at creation; only
// IsActive and IsResolved change afterwards.
type FailureEvent struct {
	EventID          string    `json:"event_id"`
	FailureID        string    `json:"failure_id"`
	TriggeredAtSize  float64   `json:"triggered_at_size"`
	TriggeredAtScale float64   `json:"triggered_at_scale"`
	Timestamp        time.Time `json:"timestamp"`
	IsActive         bool      `json:"is_active"`
	IsResolved       bool      `json:"is_resolved"`
	IsIrreversible   bool      `json:"is_irreversible"`
}

// #endregion failure-event

// #region failure-history
// FailureHistory is the append-only, chronologically ordered event log of one
// session.
type FailureHistory []FailureEvent

// Clone returns an independent copy.
func (h FailureHistory) Clone() FailureHistory {
	if h == nil {
		return nil
	}
	out := make(FailureHistory, len(h))
	copy(out, h)
	return out
}

// Latest returns the index of the most recent event for failureID, or -1.
func (h FailureHistory) Latest(failureID string) int {
	for i := len(h) - 1; i >= 0; i-- {
		if h[i].FailureID == failureID {
			return i
		}
	}
	return -1
}

// MostRecentFirst returns a reversed copy for display. The receiver is not
// modified.
func (h FailureHistory) MostRecentFirst() FailureHistory {
	out := make(FailureHistory, len(h))
	for i, ev := range h {
		out[len(h)-1-i] = ev
	}
	return out
}

// #endregion failure-history

// #region failure-state
// FailureState is the output of one ComputeFailureState call.
type FailureState struct {
	ActiveFailures         []FailureEvent `json:"active_failures"`
	NewlyTriggeredFailures []FailureEvent `json:"newly_triggered_failures"` // catalog order
	ResolvedFailures       []FailureEvent `json:"resolved_failures"`        // soft events resolved this step
	FailureHistory         FailureHistory `json:"failure_history"`
}

// Primary returns the first newly triggered failure, the one a display
// highlights.
func (s FailureState) Primary() (FailureEvent, bool) {
	if len(s.NewlyTriggeredFailures) == 0 {
		return FailureEvent{}, false
	}
	return s.NewlyTriggeredFailures[0], true
}

// #endregion failure-state
