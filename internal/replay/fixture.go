package replay

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/danielpatrickdp/spider-scale/internal/catalog"
	"github.com/danielpatrickdp/spider-scale/internal/failure"
	"github.com/danielpatrickdp/spider-scale/internal/logging"
	"github.com/danielpatrickdp/spider-scale/internal/scaling"
)

// #region fixture-types

// Fixture is the top-level JSON structure for a replay fixture.
type Fixture struct {
	Description    string            `json:"description"`
	Species        string            `json:"species"`
	BaselineLength float64           `json:"baseline_length,omitempty"` // overrides the species preset
	Config         FixtureConfig     `json:"config"`
	Ticks          []FixtureTick     `json:"ticks"`
	Expected       []FixtureExpected `json:"expected"`

	// PriorHistory is the failure history the session had before the first
	// tick. Exports of a session's tail carry it so failures latched earlier
	// stay active.
	PriorHistory failure.FailureHistory `json:"prior_history,omitempty"`
}

// FixtureConfig is the environment the scenario starts in.
type FixtureConfig struct {
	Mode              string  `json:"mode"`
	O2Fraction        float64 `json:"o2_fraction"`
	GravityMultiplier float64 `json:"gravity_multiplier"`
}

// FixtureTick is one recorded user step. Omitted environment fields keep the
// value from the previous tick.
type FixtureTick struct {
	TickID         string   `json:"tick_id"`
	BodyLength     float64  `json:"body_length"`
	BaselineLength *float64 `json:"baseline_length,omitempty"`
	O2Fraction     *float64 `json:"o2_fraction,omitempty"`
	Gravity        *float64 `json:"gravity,omitempty"`
	Mode           string   `json:"mode,omitempty"`
}

// FixtureExpected captures the failure ids expected after a tick.
type FixtureExpected struct {
	TickID      string   `json:"tick_id"`
	NewFailures []string `json:"new_failures"`
	Active      []string `json:"active"`
}

// #endregion fixture-types

// #region fixture-loader

// LoadFixture reads and parses a JSON fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	return &f, nil
}

// Baseline returns the fixture's own baseline length when set, otherwise
// preset.
func (f *Fixture) Baseline(preset float64) float64 {
	if f.BaselineLength > 0 {
		return f.BaselineLength
	}
	return preset
}

// StartInput builds the initial ModelInput at baselineLength. The body starts
// at the baseline.
func (fc *FixtureConfig) StartInput(baselineLength float64) (scaling.ModelInput, error) {
	mode := scaling.ModeSimple
	if fc.Mode != "" {
		m, err := scaling.ParseMode(fc.Mode)
		if err != nil {
			return scaling.ModelInput{}, err
		}
		mode = m
	}
	return scaling.ModelInput{
		BodyLength:        baselineLength,
		BaselineLength:    baselineLength,
		O2Fraction:        fc.O2Fraction,
		GravityMultiplier: fc.GravityMultiplier,
		Mode:              mode,
	}, nil
}

// ToStep converts a FixtureTick to a domain Step.
func (ft *FixtureTick) ToStep() (Step, error) {
	st := Step{
		TickID:            ft.TickID,
		BodyLength:        ft.BodyLength,
		BaselineLength:    ft.BaselineLength,
		O2Fraction:        ft.O2Fraction,
		GravityMultiplier: ft.Gravity,
	}
	if ft.Mode != "" {
		m, err := scaling.ParseMode(ft.Mode)
		if err != nil {
			return Step{}, fmt.Errorf("tick %s: %w", ft.TickID, err)
		}
		st.Mode = m
	}
	return st, nil
}

// Steps converts every fixture tick.
func (f *Fixture) Steps() ([]Step, error) {
	steps := make([]Step, 0, len(f.Ticks))
	for i := range f.Ticks {
		st, err := f.Ticks[i].ToStep()
		if err != nil {
			return nil, err
		}
		steps = append(steps, st)
	}
	return steps, nil
}

// #endregion fixture-loader

// #region fixture-export

// FixtureFromRecords rebuilds a fixture from a session's stored tick records,
// oldest first. Only the last n records become ticks (n <= 0 keeps all); the
// failures recorded before them are folded into PriorHistory using cat for
// severities (nil means the default catalog). Every tick carries its full
// environment so the fixture does not depend on carry-over, and the recorded
// failures become the expectations.
func FixtureFromRecords(description, species string, records []logging.TickRecord, n int, cat *catalog.Catalog) Fixture {
	cut := 0
	if n > 0 && n < len(records) {
		cut = len(records) - n
	}
	prior, tail := records[:cut], records[cut:]

	f := Fixture{
		Description:  description,
		Species:      species,
		Ticks:        make([]FixtureTick, 0, len(tail)),
		Expected:     make([]FixtureExpected, 0, len(tail)),
		PriorHistory: HistoryFromRecords(prior, cat),
	}
	if len(tail) == 0 {
		return f
	}

	first := tail[0]
	f.BaselineLength = first.BaselineLength
	f.Config = FixtureConfig{
		Mode:              first.Mode,
		O2Fraction:        first.O2Fraction,
		GravityMultiplier: first.GravityMultiplier,
	}
	for _, r := range tail {
		base, o2, g := r.BaselineLength, r.O2Fraction, r.GravityMultiplier
		f.Ticks = append(f.Ticks, FixtureTick{
			TickID:         r.TickID,
			BodyLength:     r.BodyLength,
			BaselineLength: &base,
			O2Fraction:     &o2,
			Gravity:        &g,
			Mode:           r.Mode,
		})
		f.Expected = append(f.Expected, FixtureExpected{
			TickID:      r.TickID,
			NewFailures: nonNil(r.NewFailures),
			Active:      nonNil(r.Active),
		})
	}
	return f
}

// HistoryFromRecords rebuilds the failure history that records produced.
// Each newly triggered id appends an event at that tick's size and scale;
// each resolved id closes the latest event for it. Event ids are placeholders
// and must be replaced before the history is persisted.
func HistoryFromRecords(records []logging.TickRecord, cat *catalog.Catalog) failure.FailureHistory {
	if cat == nil {
		cat = catalog.Default()
	}
	var h failure.FailureHistory
	for _, r := range records {
		for _, id := range r.NewFailures {
			def, _ := cat.Lookup(id)
			h = append(h, failure.FailureEvent{
				EventID:          fmt.Sprintf("prior-%d", len(h)+1),
				FailureID:        id,
				TriggeredAtSize:  r.BodyLength,
				TriggeredAtScale: r.ScaleFactor,
				IsActive:         true,
				IsIrreversible:   def.Severity == catalog.SeverityCatastrophic,
			})
		}
		for _, id := range r.Resolved {
			for i := len(h) - 1; i >= 0; i-- {
				if h[i].FailureID == id {
					h[i].IsActive = false
					h[i].IsResolved = true
					break
				}
			}
		}
	}
	return h
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}

// #endregion fixture-export
