package failure

import (
	"time"

	"github.com/danielpatrickdp/spider-scale/internal/catalog"
	"github.com/danielpatrickdp/spider-scale/internal/scaling"
	"github.com/google/uuid"
)

// #region machine
// Machine turns the set of currently failing modes plus the prior history into
// the next history. It keeps no state between calls.
type Machine struct {
	catalog *catalog.Catalog
	now     func() time.Time
	newID   func() string
}

// Option configures a Machine.
type Option func(*Machine)

// WithClock overrides the clock used for event timestamps.
func WithClock(now func() time.Time) Option {
	return func(m *Machine) { m.now = now }
}

// WithIDGenerator overrides how event ids are minted.
func WithIDGenerator(newID func() string) Option {
	return func(m *Machine) { m.newID = newID }
}

// NewMachine creates a machine over cat. A nil cat uses the default catalog.
func NewMachine(cat *catalog.Catalog, opts ...Option) *Machine {
	if cat == nil {
		cat = catalog.Default()
	}
	m := &Machine{
		catalog: cat,
		now:     func() time.Time { return time.Now().UTC() },
		newID:   func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Catalog returns the machine's catalog.
func (m *Machine) Catalog() *catalog.Catalog {
	return m.catalog
}

// #endregion machine

// #region detect
// DetectFailures returns the ids whose governing proxy is below threshold, in
// catalog order. A NaN proxy never counts as below threshold.
func (m *Machine) DetectFailures(p scaling.Proxies) []string {
	var ids []string
	for _, def := range m.catalog.Definitions() {
		if p.Get(def.Subsystem) < def.ProxyThreshold {
			ids = append(ids, def.ID)
		}
	}
	return ids
}

// #endregion detect

// #region compute-state
// ComputeFailureState applies one evaluation step per failure id, walking the
// catalog in subsystem order:
//
//   - below threshold with no event, or only a resolved one: append a new event
//   - at or above threshold while active: resolve only if severity is soft
//
// prior is never modified; the returned history is a fresh slice. Ids in
// currentIDs that the catalog does not know are ignored.
func (m *Machine) ComputeFailureState(currentIDs []string, prior FailureHistory, currentSize, currentScale float64) FailureState {
	below := make(map[string]bool, len(currentIDs))
	for _, id := range currentIDs {
		below[id] = true
	}

	next := make(FailureHistory, len(prior), len(prior)+len(below))
	copy(next, prior)

	var triggered, resolved []FailureEvent
	for _, def := range m.catalog.Definitions() {
		idx := next.Latest(def.ID)

		if below[def.ID] {
			if idx >= 0 && next[idx].IsActive {
				continue
			}
			ev := FailureEvent{
				EventID:          m.newID(),
				FailureID:        def.ID,
				TriggeredAtSize:  currentSize,
				TriggeredAtScale: currentScale,
				Timestamp:        m.now(),
				IsActive:         true,
				IsResolved:       false,
				IsIrreversible:   def.Severity == catalog.SeverityCatastrophic,
			}
			next = append(next, ev)
			triggered = append(triggered, ev)
			continue
		}

		if idx >= 0 && next[idx].IsActive && def.Severity.Resolvable() {
			next[idx].IsActive = false
			next[idx].IsResolved = true
			resolved = append(resolved, next[idx])
		}
	}

	var active []FailureEvent
	for _, ev := range next {
		if ev.IsActive || ev.IsIrreversible {
			active = append(active, ev)
		}
	}

	return FailureState{
		ActiveFailures:         active,
		NewlyTriggeredFailures: triggered,
		ResolvedFailures:       resolved,
		FailureHistory:         next,
	}
}

// #endregion compute-state

// #region defaults
var defaultMachine = NewMachine(catalog.Default())

// DetectFailures runs detection against the default catalog.
func DetectFailures(p scaling.Proxies) []string {
	return defaultMachine.DetectFailures(p)
}

// ComputeFailureState runs one step against the default catalog and wall clock.
func ComputeFailureState(currentIDs []string, prior FailureHistory, currentSize, currentScale float64) FailureState {
	return defaultMachine.ComputeFailureState(currentIDs, prior, currentSize, currentScale)
}

// #endregion defaults
