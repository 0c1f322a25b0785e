package session

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/danielpatrickdp/spider-scale/internal/failure"
	"github.com/danielpatrickdp/spider-scale/internal/logging"
	"github.com/danielpatrickdp/spider-scale/internal/scaling"
	"github.com/danielpatrickdp/spider-scale/internal/simulation"
	"github.com/google/uuid"
)

// #region session
// Session owns the state the model itself never keeps: the current input,
// the failure history threaded through ticks and the set of dismissed
// failure ids.
type Session struct {
	ID string

	facade     *simulation.Facade
	store      *Store
	logger     *slog.Logger
	species    string
	input      scaling.ModelInput
	history    failure.FailureHistory
	suppressed map[string]bool
	ticks      int
}

// Option configures a Session.
type Option func(*Session)

// WithStore persists the session, its failure history and a tick log.
func WithStore(st *Store) Option {
	return func(s *Session) { s.store = st }
}

// WithLogger sets the logger used for tick and failure lines.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// WithSpecies labels the session with a species key.
func WithSpecies(key string) Option {
	return func(s *Session) { s.species = key }
}

// WithHistory starts a new session from an existing failure history instead
// of an empty one. Event ids must not collide with events already stored.
func WithHistory(h failure.FailureHistory) Option {
	return func(s *Session) { s.history = h.Clone() }
}

// #endregion session

// #region constructors
// New starts a fresh session evaluating input.
func New(facade *simulation.Facade, input scaling.ModelInput, opts ...Option) (*Session, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}
	s := &Session{
		facade:     facade,
		input:      input,
		suppressed: make(map[string]bool),
		logger:     slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	if err := s.begin(); err != nil {
		return nil, err
	}
	return s, nil
}

// Resume reopens a stored session and continues its failure history.
func Resume(facade *simulation.Facade, st *Store, sessionID string, input scaling.ModelInput, opts ...Option) (*Session, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}
	rec, err := st.GetSession(sessionID)
	if err != nil {
		return nil, err
	}
	history, err := st.LoadHistory(sessionID)
	if err != nil {
		return nil, err
	}
	ticks, err := st.CountTicks(sessionID)
	if err != nil {
		return nil, err
	}
	s := &Session{
		ID:         rec.SessionID,
		facade:     facade,
		store:      st,
		species:    rec.Species,
		input:      input,
		history:    history,
		suppressed: make(map[string]bool),
		logger:     slog.Default(),
		ticks:      ticks,
	}
	for _, o := range opts {
		o(s)
	}
	s.store = st
	s.history = history
	s.logger.Info("session resumed", "session", s.ID, "events", len(history), "ticks", ticks)
	return s, nil
}

// begin mints and persists a new session id. The session is left untouched
// when the store rejects it.
func (s *Session) begin() error {
	id := uuid.New().String()
	if s.store != nil {
		rec := SessionRecord{SessionID: id, Species: s.species, BaselineLength: s.input.BaselineLength}
		if err := s.store.CreateSession(rec); err != nil {
			return err
		}
	}
	s.ID = id
	s.ticks = 0
	s.logger.Info("session started", "session", s.ID, "species", s.species)
	return nil
}

// #endregion constructors

// #region accessors
// Input returns the input evaluated by the next Tick.
func (s *Session) Input() scaling.ModelInput { return s.input }

// Species returns the species label.
func (s *Session) Species() string { return s.species }

// History returns a copy of the failure history in creation order.
func (s *Session) History() failure.FailureHistory { return s.history.Clone() }

// DisplayHistory returns the failure history most recent first.
func (s *Session) DisplayHistory() failure.FailureHistory { return s.history.MostRecentFirst() }

// Suppressed reports whether failureID has been dismissed.
func (s *Session) Suppressed(failureID string) bool { return s.suppressed[failureID] }

// #endregion accessors

// #region setters
// SetBodyLength sets the body length in meters.
func (s *Session) SetBodyLength(v float64) error {
	next := s.input
	next.BodyLength = v
	return s.apply(next)
}

// SetSpecies switches the baseline species. Body length is left unchanged.
func (s *Session) SetSpecies(key string, baselineLength float64) error {
	next := s.input
	next.BaselineLength = baselineLength
	if err := s.apply(next); err != nil {
		return err
	}
	s.species = key
	return nil
}

// SetO2 sets the ambient oxygen fraction.
func (s *Session) SetO2(v float64) error {
	next := s.input
	next.O2Fraction = v
	return s.apply(next)
}

// SetGravity sets the gravity multiplier.
func (s *Session) SetGravity(v float64) error {
	next := s.input
	next.GravityMultiplier = v
	return s.apply(next)
}

// SetMode switches between the simple and extended models.
func (s *Session) SetMode(m scaling.Mode) error {
	next := s.input
	next.Mode = m
	return s.apply(next)
}

func (s *Session) apply(next scaling.ModelInput) error {
	if err := next.Validate(); err != nil {
		return err
	}
	s.input = next
	return nil
}

// #endregion setters

// #region tick
// Tick evaluates the current input, advances the failure history and
// returns the result for display.
func (s *Session) Tick() (TickResult, error) {
	return s.TickAs("")
}

// TickAs is Tick with a caller-chosen tick id. An empty id falls back to the
// session's tick counter.
func (s *Session) TickAs(tickID string) (TickResult, error) {
	s.ticks++
	if tickID == "" {
		tickID = fmt.Sprintf("tick-%d", s.ticks)
	}

	machine := s.facade.Machine()
	out := s.facade.ComputeAt(s.input)
	detected := machine.DetectFailures(out.Proxies)
	state := machine.ComputeFailureState(detected, s.history, s.input.BodyLength, out.ScaleFactor)
	s.history = state.FailureHistory

	res := TickResult{TickID: tickID, Input: s.input, Output: out, Detected: detected, State: state}
	for i := range state.NewlyTriggeredFailures {
		ev := state.NewlyTriggeredFailures[i]
		if !s.suppressed[ev.FailureID] {
			res.Highlight = &ev
			break
		}
	}

	for _, ev := range state.NewlyTriggeredFailures {
		s.logger.Warn("failure triggered",
			"session", s.ID, "tick", tickID, "failure", ev.FailureID,
			"size", ev.TriggeredAtSize, "scale", ev.TriggeredAtScale,
			"irreversible", ev.IsIrreversible)
	}
	for _, ev := range state.ResolvedFailures {
		s.logger.Info("failure resolved", "session", s.ID, "tick", tickID, "failure", ev.FailureID)
	}
	s.logger.Debug("tick",
		"session", s.ID, "tick", tickID, "scale", out.ScaleFactor,
		"viability", out.ViabilityIndex, "active", len(state.ActiveFailures))

	if s.store != nil {
		if err := s.persist(res); err != nil {
			return res, err
		}
	}
	return res, nil
}

func (s *Session) persist(res TickResult) error {
	if err := s.store.SaveHistory(s.ID, s.history); err != nil {
		return fmt.Errorf("save history: %w", err)
	}

	rec := Record(res)
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal tick record: %w", err)
	}
	reason := ""
	if n := len(rec.NewFailures); n > 0 {
		reason = fmt.Sprintf("%d new failure(s)", n)
	}
	return logging.LogTick(s.store.DB(), logging.TickEntry{
		SessionID:   s.ID,
		TickID:      res.TickID,
		RecordJSON:  string(raw),
		Viability:   res.Output.ViabilityIndex,
		NewFailures: strings.Join(rec.NewFailures, ","),
		Reason:      reason,
	})
}

// Record flattens a tick result into its tick_log form.
func Record(res TickResult) logging.TickRecord {
	p := res.Output.Proxies
	rec := logging.TickRecord{
		TickID:            res.TickID,
		BodyLength:        res.Input.BodyLength,
		BaselineLength:    res.Input.BaselineLength,
		O2Fraction:        res.Input.O2Fraction,
		GravityMultiplier: res.Input.GravityMultiplier,
		Mode:              string(res.Input.Mode),
		ScaleFactor:       res.Output.ScaleFactor,
		Proxies: map[string]float64{
			"respiration": p.Respiration,
			"hydraulics":  p.Hydraulics,
			"exoskeleton": p.Exoskeleton,
			"locomotion":  p.Locomotion,
		},
		Viability:   res.Output.ViabilityIndex,
		Detected:    append([]string{}, res.Detected...),
		NewFailures: eventIDs(res.State.NewlyTriggeredFailures),
		Resolved:    eventIDs(res.State.ResolvedFailures),
		Active:      eventIDs(res.State.ActiveFailures),
	}
	if res.Highlight != nil {
		rec.Highlight = res.Highlight.FailureID
	}
	return rec
}

func eventIDs(evs []failure.FailureEvent) []string {
	ids := make([]string, 0, len(evs))
	for _, ev := range evs {
		ids = append(ids, ev.FailureID)
	}
	return ids
}

// #endregion tick

// #region dismiss-reset
// Dismiss hides failureID from future highlights. The failure itself stays
// in the history and the active list.
func (s *Session) Dismiss(failureID string) {
	s.suppressed[failureID] = true
}

// Reset discards the failure history and dismissals and starts a new
// session id. The current input is kept. On error the old session stays in
// place.
func (s *Session) Reset() error {
	if err := s.begin(); err != nil {
		return err
	}
	s.history = nil
	s.suppressed = make(map[string]bool)
	return nil
}

// #endregion dismiss-reset
