package session

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/danielpatrickdp/spider-scale/internal/catalog"
	"github.com/danielpatrickdp/spider-scale/internal/failure"
	"github.com/danielpatrickdp/spider-scale/internal/logging"
	"github.com/danielpatrickdp/spider-scale/internal/scaling"
	"github.com/danielpatrickdp/spider-scale/internal/simulation"
)

const houseSpider = 0.008

// #region helpers
func testFacade() *simulation.Facade {
	n := 0
	machine := failure.NewMachine(catalog.Default(),
		failure.WithClock(func() time.Time { return time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC) }),
		failure.WithIDGenerator(func() string {
			n++
			return fmt.Sprintf("ev-%d", n)
		}),
	)
	return simulation.New(scaling.Default(), machine, simulation.DefaultSweepConfig())
}

func baseInput() scaling.ModelInput {
	return scaling.ModelInput{
		BodyLength:        houseSpider,
		BaselineLength:    houseSpider,
		O2Fraction:        0.21,
		GravityMultiplier: 1,
		Mode:              scaling.ModeSimple,
	}
}

func quietLogger() *slog.Logger {
	return logging.NewLogger(io.Discard, slog.LevelDebug)
}

func newSession(t *testing.T, opts ...Option) *Session {
	t.Helper()
	opts = append([]Option{WithLogger(quietLogger()), WithSpecies("house_spider")}, opts...)
	s, err := New(testFacade(), baseInput(), opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func failureIDs(evs []failure.FailureEvent) []string {
	out := make([]string, len(evs))
	for i, ev := range evs {
		out[i] = ev.FailureID
	}
	return out
}

// #endregion helpers

// #region tick-tests
func TestTick_BaselineHasNoFailures(t *testing.T) {
	s := newSession(t)
	res, err := s.Tick()
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if res.Output.ScaleFactor != 1 {
		t.Errorf("expected scale 1, got %v", res.Output.ScaleFactor)
	}
	if len(res.State.NewlyTriggeredFailures) != 0 || res.Highlight != nil {
		t.Fatalf("expected no failures at baseline, got %v", failureIDs(res.State.NewlyTriggeredFailures))
	}
	if res.TickID != "tick-1" {
		t.Errorf("expected tick-1, got %s", res.TickID)
	}
}

func TestTick_TriggerThenShrink(t *testing.T) {
	s := newSession(t)

	// s = 2.5: respiration 0.4 and hydraulics ~0.17 are below threshold.
	if err := s.SetBodyLength(0.02); err != nil {
		t.Fatalf("SetBodyLength: %v", err)
	}
	res, _ := s.Tick()
	got := failureIDs(res.State.NewlyTriggeredFailures)
	want := []string{catalog.RespiratoryHypoxia, catalog.HemolymphPressureLoss}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	if res.Highlight == nil || res.Highlight.FailureID != catalog.RespiratoryHypoxia {
		t.Fatalf("expected respiratory highlight, got %+v", res.Highlight)
	}
	if res.State.NewlyTriggeredFailures[0].TriggeredAtSize != 0.02 {
		t.Errorf("expected trigger size 0.02, got %v", res.State.NewlyTriggeredFailures[0].TriggeredAtSize)
	}

	// Same size again: nothing new.
	res, _ = s.Tick()
	if len(res.State.NewlyTriggeredFailures) != 0 {
		t.Fatalf("expected no duplicate triggers, got %v", failureIDs(res.State.NewlyTriggeredFailures))
	}

	// Back to baseline: soft respiration resolves, hard hydraulics stays.
	s.SetBodyLength(houseSpider)
	res, _ = s.Tick()
	if r := failureIDs(res.State.ResolvedFailures); len(r) != 1 || r[0] != catalog.RespiratoryHypoxia {
		t.Fatalf("expected respiratory resolved, got %v", r)
	}
	if a := failureIDs(res.State.ActiveFailures); len(a) != 1 || a[0] != catalog.HemolymphPressureLoss {
		t.Fatalf("expected hemolymph still active, got %v", a)
	}
	if len(s.History()) != 2 {
		t.Fatalf("expected 2 history events, got %d", len(s.History()))
	}
}

func TestTick_DismissSkipsHighlight(t *testing.T) {
	s := newSession(t)
	s.Dismiss(catalog.RespiratoryHypoxia)
	if !s.Suppressed(catalog.RespiratoryHypoxia) {
		t.Fatal("expected respiratory suppressed")
	}

	s.SetBodyLength(0.02)
	res, _ := s.Tick()
	if res.Highlight == nil || res.Highlight.FailureID != catalog.HemolymphPressureLoss {
		t.Fatalf("expected hemolymph highlight, got %+v", res.Highlight)
	}
	// Dismissed failures are still recorded.
	if len(res.State.NewlyTriggeredFailures) != 2 {
		t.Fatalf("expected 2 triggers, got %d", len(res.State.NewlyTriggeredFailures))
	}
}

func TestTick_AllDismissedNoHighlight(t *testing.T) {
	s := newSession(t)
	s.Dismiss(catalog.RespiratoryHypoxia)
	s.Dismiss(catalog.HemolymphPressureLoss)
	s.SetBodyLength(0.02)
	res, _ := s.Tick()
	if res.Highlight != nil {
		t.Fatalf("expected no highlight, got %+v", res.Highlight)
	}
}

func TestDisplayHistory_DoesNotMutate(t *testing.T) {
	s := newSession(t)
	s.SetBodyLength(0.02)
	s.Tick()

	disp := s.DisplayHistory()
	if disp[0].FailureID != catalog.HemolymphPressureLoss {
		t.Fatalf("expected most recent first, got %s", disp[0].FailureID)
	}
	if s.History()[0].FailureID != catalog.RespiratoryHypoxia {
		t.Fatal("history order changed by DisplayHistory")
	}
}

// #endregion tick-tests

// #region setter-tests
func TestSetters_RejectInvalid(t *testing.T) {
	s := newSession(t)
	checks := []struct {
		name string
		err  error
	}{
		{"body", s.SetBodyLength(0)},
		{"o2", s.SetO2(-0.1)},
		{"gravity", s.SetGravity(0)},
		{"mode", s.SetMode("turbo")},
		{"species", s.SetSpecies("ghost", 0)},
	}
	for _, c := range checks {
		if !errors.Is(c.err, scaling.ErrInvalidInput) {
			t.Errorf("%s: expected ErrInvalidInput, got %v", c.name, c.err)
		}
	}
	if s.Input() != baseInput() {
		t.Fatalf("rejected setters changed input: %+v", s.Input())
	}
	if s.Species() != "house_spider" {
		t.Errorf("species changed on rejected set: %s", s.Species())
	}
}

func TestSetters_Apply(t *testing.T) {
	s := newSession(t)
	s.SetO2(0.3)
	s.SetGravity(2)
	s.SetMode(scaling.ModeExtended)
	if err := s.SetSpecies("goliath_birdeater", 0.12); err != nil {
		t.Fatalf("SetSpecies: %v", err)
	}
	in := s.Input()
	if in.O2Fraction != 0.3 || in.GravityMultiplier != 2 || in.Mode != scaling.ModeExtended || in.BaselineLength != 0.12 {
		t.Fatalf("unexpected input: %+v", in)
	}
	if in.BodyLength != houseSpider {
		t.Errorf("body length should be unchanged, got %v", in.BodyLength)
	}
	if s.Species() != "goliath_birdeater" {
		t.Errorf("expected species updated, got %s", s.Species())
	}
}

func TestNew_RejectsInvalidInput(t *testing.T) {
	in := baseInput()
	in.BaselineLength = 0
	if _, err := New(testFacade(), in, WithLogger(quietLogger())); !errors.Is(err, scaling.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

// #endregion setter-tests

// #region reset-tests
func TestReset(t *testing.T) {
	s := newSession(t)
	firstID := s.ID
	s.Dismiss(catalog.RespiratoryHypoxia)
	s.SetBodyLength(0.02)
	s.Tick()

	if err := s.Reset(); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if s.ID == firstID {
		t.Error("expected new session id after reset")
	}
	if len(s.History()) != 0 || s.Suppressed(catalog.RespiratoryHypoxia) {
		t.Fatal("expected history and dismissals cleared")
	}

	// Same oversized input triggers again from a clean slate.
	res, _ := s.Tick()
	if len(res.State.NewlyTriggeredFailures) != 2 {
		t.Fatalf("expected 2 triggers after reset, got %d", len(res.State.NewlyTriggeredFailures))
	}
	if res.TickID != "tick-1" {
		t.Errorf("expected tick counter reset, got %s", res.TickID)
	}
}

func TestReset_StoreFailureKeepsSession(t *testing.T) {
	st := tempStore(t)
	s := newSession(t, WithStore(st))
	firstID := s.ID
	s.Dismiss(catalog.RespiratoryHypoxia)
	s.SetBodyLength(0.02)
	if _, err := s.Tick(); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	st.Close()

	if err := s.Reset(); err == nil {
		t.Fatal("expected Reset to fail on a closed store")
	}
	if s.ID != firstID {
		t.Errorf("expected session id %s kept, got %s", firstID, s.ID)
	}
	if len(s.History()) != 2 {
		t.Errorf("expected history kept, got %v", failureIDs(s.History()))
	}
	if !s.Suppressed(catalog.RespiratoryHypoxia) {
		t.Error("expected dismissal kept")
	}
}

// #endregion reset-tests

// #region persistence-tests
func TestTick_PersistsHistoryAndTicks(t *testing.T) {
	st := tempStore(t)
	s := newSession(t, WithStore(st))

	s.SetBodyLength(0.02)
	if _, err := s.Tick(); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	s.SetBodyLength(houseSpider)
	if _, err := s.Tick(); err != nil {
		t.Fatalf("Tick: %v", err)
	}

	h, err := st.LoadHistory(s.ID)
	if err != nil {
		t.Fatalf("LoadHistory: %v", err)
	}
	if len(h) != 2 || !h[0].IsResolved {
		t.Fatalf("unexpected stored history: %+v", h)
	}

	ticks, err := logging.ListTicks(st.DB(), s.ID, 10)
	if err != nil {
		t.Fatalf("ListTicks: %v", err)
	}
	if len(ticks) != 2 {
		t.Fatalf("expected 2 tick rows, got %d", len(ticks))
	}
	if ticks[0].NewFailures != "respiratory_hypoxia,hemolymph_pressure_loss" {
		t.Errorf("unexpected new_failures: %q", ticks[0].NewFailures)
	}
	rec, err := logging.ParseRecord(ticks[1])
	if err != nil {
		t.Fatalf("ParseRecord: %v", err)
	}
	if len(rec.Resolved) != 1 || rec.Resolved[0] != catalog.RespiratoryHypoxia {
		t.Errorf("expected resolved respiratory in record, got %v", rec.Resolved)
	}
	if rec.Proxies["respiration"] != 1 {
		t.Errorf("expected respiration proxy 1 at baseline, got %v", rec.Proxies["respiration"])
	}
}

func TestResume_ContinuesHistory(t *testing.T) {
	st := tempStore(t)
	s := newSession(t, WithStore(st))
	s.SetBodyLength(0.02)
	s.Tick()

	in := baseInput()
	in.BodyLength = 0.02
	resumed, err := Resume(testFacade(), st, s.ID, in, WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if resumed.Species() != "house_spider" {
		t.Errorf("expected stored species, got %s", resumed.Species())
	}
	res, _ := resumed.Tick()
	if len(res.State.NewlyTriggeredFailures) != 0 {
		t.Fatalf("resumed session re-triggered %v", failureIDs(res.State.NewlyTriggeredFailures))
	}
	if len(res.State.ActiveFailures) != 2 {
		t.Fatalf("expected 2 active failures, got %d", len(res.State.ActiveFailures))
	}
}

func TestResume_ContinuesTickCounter(t *testing.T) {
	st := tempStore(t)
	s := newSession(t, WithStore(st))
	s.Tick()
	s.Tick()

	resumed, err := Resume(testFacade(), st, s.ID, baseInput(), WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}
	res, err := resumed.Tick()
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if res.TickID != "tick-3" {
		t.Fatalf("expected tick-3 after two stored ticks, got %s", res.TickID)
	}

	ticks, err := logging.ListTicks(st.DB(), s.ID, 10)
	if err != nil {
		t.Fatalf("ListTicks: %v", err)
	}
	seen := make(map[string]bool)
	for _, e := range ticks {
		if seen[e.TickID] {
			t.Fatalf("duplicate tick id %s in tick log", e.TickID)
		}
		seen[e.TickID] = true
	}
	if len(seen) != 3 {
		t.Fatalf("expected 3 distinct tick ids, got %d", len(seen))
	}
}

func TestNew_WithHistory(t *testing.T) {
	prior := failure.FailureHistory{
		{EventID: "old-1", FailureID: catalog.HemolymphPressureLoss, TriggeredAtSize: 0.02, TriggeredAtScale: 2.5, IsActive: true},
	}
	s := newSession(t, WithHistory(prior))
	prior[0].IsActive = false

	res, err := s.Tick()
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if len(res.State.NewlyTriggeredFailures) != 0 {
		t.Fatalf("unexpected triggers at baseline: %v", failureIDs(res.State.NewlyTriggeredFailures))
	}
	got := failureIDs(res.State.ActiveFailures)
	if len(got) != 1 || got[0] != catalog.HemolymphPressureLoss {
		t.Fatalf("expected hard failure from prior history to stay active, got %v", got)
	}
}

func TestResume_UnknownSession(t *testing.T) {
	st := tempStore(t)
	_, err := Resume(testFacade(), st, "nope", baseInput(), WithLogger(quietLogger()))
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

// #endregion persistence-tests
