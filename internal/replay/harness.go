package replay

import (
	"fmt"
	"math"
	"slices"

	"github.com/danielpatrickdp/spider-scale/internal/logging"
	"github.com/danielpatrickdp/spider-scale/internal/scaling"
	"github.com/danielpatrickdp/spider-scale/internal/session"
	"github.com/danielpatrickdp/spider-scale/internal/simulation"
	"github.com/google/uuid"
)

// #region types
// Step is a single user action: set the body length and optionally change the
// environment, then tick. Environment changes persist into later steps.
type Step struct {
	TickID            string
	BodyLength        float64
	BaselineLength    *float64
	O2Fraction        *float64
	GravityMultiplier *float64
	Mode              scaling.Mode // empty keeps the current mode
}

// ReplaySummary provides aggregate stats from a replay run.
type ReplaySummary struct {
	TotalTicks   int
	Triggered    int
	Resolved     int
	PeakActive   int
	MinViability float64
	FirstFailure string   // first failure id ever triggered
	FinalActive  []string // active failure ids after the last tick
	SessionID    string   // session the replay ran under
}

// Mismatch is one disagreement between a replay and a fixture's expectations.
type Mismatch struct {
	TickID string
	Field  string
	Want   []string
	Got    []string
}

func (m Mismatch) String() string {
	return fmt.Sprintf("%s %s: want %v, got %v", m.TickID, m.Field, m.Want, m.Got)
}

// #endregion types

// #region replay
// Replay drives a fresh in-memory session through steps and returns the tick
// record of each one. Options are passed to the session, so a store can be
// attached to persist the run.
func Replay(facade *simulation.Facade, start scaling.ModelInput, steps []Step, opts ...session.Option) ([]logging.TickRecord, string, error) {
	s, err := session.New(facade, start, opts...)
	if err != nil {
		return nil, "", err
	}

	records := make([]logging.TickRecord, 0, len(steps))
	for _, step := range steps {
		if err := applyStep(s, step); err != nil {
			return records, s.ID, fmt.Errorf("step %s: %w", step.TickID, err)
		}
		res, err := s.TickAs(step.TickID)
		if err != nil {
			return records, s.ID, fmt.Errorf("step %s: %w", step.TickID, err)
		}
		records = append(records, session.Record(res))
	}
	return records, s.ID, nil
}

func applyStep(s *session.Session, step Step) error {
	if step.BaselineLength != nil {
		if err := s.SetSpecies(s.Species(), *step.BaselineLength); err != nil {
			return err
		}
	}
	if step.O2Fraction != nil {
		if err := s.SetO2(*step.O2Fraction); err != nil {
			return err
		}
	}
	if step.GravityMultiplier != nil {
		if err := s.SetGravity(*step.GravityMultiplier); err != nil {
			return err
		}
	}
	if step.Mode != "" {
		if err := s.SetMode(step.Mode); err != nil {
			return err
		}
	}
	return s.SetBodyLength(step.BodyLength)
}

// RunFixture replays f starting at baselineLength. A fixture with a prior
// history starts its session from that history under fresh event ids.
func RunFixture(facade *simulation.Facade, f *Fixture, baselineLength float64, opts ...session.Option) ([]logging.TickRecord, string, error) {
	start, err := f.Config.StartInput(baselineLength)
	if err != nil {
		return nil, "", err
	}
	steps, err := f.Steps()
	if err != nil {
		return nil, "", err
	}
	if len(f.PriorHistory) > 0 {
		prior := f.PriorHistory.Clone()
		for i := range prior {
			prior[i].EventID = uuid.New().String()
		}
		opts = append(opts, session.WithHistory(prior))
	}
	return Replay(facade, start, steps, opts...)
}

// #endregion replay

// #region compare
// Compare checks each record against the expectation with the same position.
// A length mismatch is reported under the "ticks" field.
func Compare(records []logging.TickRecord, expected []FixtureExpected) []Mismatch {
	var out []Mismatch
	if len(records) != len(expected) {
		out = append(out, Mismatch{
			Field: "ticks",
			Want:  []string{fmt.Sprint(len(expected))},
			Got:   []string{fmt.Sprint(len(records))},
		})
	}
	n := min(len(records), len(expected))
	for i := 0; i < n; i++ {
		r, e := records[i], expected[i]
		if r.TickID != e.TickID {
			out = append(out, Mismatch{TickID: e.TickID, Field: "tick_id", Want: []string{e.TickID}, Got: []string{r.TickID}})
		}
		if !sameIDs(r.NewFailures, e.NewFailures) {
			out = append(out, Mismatch{TickID: e.TickID, Field: "new_failures", Want: e.NewFailures, Got: r.NewFailures})
		}
		if !sameIDs(r.Active, e.Active) {
			out = append(out, Mismatch{TickID: e.TickID, Field: "active", Want: e.Active, Got: r.Active})
		}
	}
	return out
}

// sameIDs compares in order, treating nil and empty as equal.
func sameIDs(a, b []string) bool {
	if len(a) == 0 && len(b) == 0 {
		return true
	}
	return slices.Equal(a, b)
}

// #endregion compare

// #region summarize
// Summarize computes aggregate stats from replay records.
func Summarize(records []logging.TickRecord, sessionID string) ReplaySummary {
	s := ReplaySummary{
		TotalTicks:   len(records),
		MinViability: math.Inf(1),
		SessionID:    sessionID,
	}
	for _, r := range records {
		s.Triggered += len(r.NewFailures)
		s.Resolved += len(r.Resolved)
		if len(r.Active) > s.PeakActive {
			s.PeakActive = len(r.Active)
		}
		if r.Viability < s.MinViability {
			s.MinViability = r.Viability
		}
		if s.FirstFailure == "" && len(r.NewFailures) > 0 {
			s.FirstFailure = r.NewFailures[0]
		}
	}
	if len(records) > 0 {
		s.FinalActive = append([]string{}, records[len(records)-1].Active...)
	} else {
		s.MinViability = 0
	}
	return s
}

// #endregion summarize
