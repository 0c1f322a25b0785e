package replay

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/danielpatrickdp/spider-scale/internal/config"
	"github.com/danielpatrickdp/spider-scale/internal/logging"
	"github.com/danielpatrickdp/spider-scale/internal/session"
)

// #region fixture-tests

// TestFixture_HouseSpiderGrowth loads the house spider fixture, runs it and
// compares each tick's new and active failures. If thresholds or exponents
// drift, this catches it.
func TestFixture_HouseSpiderGrowth(t *testing.T) {
	f, err := LoadFixture(filepath.Join("testdata", "house_spider_growth.json"))
	if err != nil {
		t.Fatalf("LoadFixture: %v", err)
	}

	cfg := config.Default()
	sp, ok := cfg.LookupSpecies(f.Species)
	if !ok {
		t.Fatalf("unknown species %q", f.Species)
	}
	facade, err := cfg.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	logger := logging.NewLogger(io.Discard, slog.LevelInfo)
	records, sessionID, err := RunFixture(facade, f, sp.BaselineLength, session.WithLogger(logger))
	if err != nil {
		t.Fatalf("RunFixture: %v", err)
	}
	for _, m := range Compare(records, f.Expected) {
		t.Errorf("mismatch: %s", m)
	}

	sum := Summarize(records, sessionID)
	if sum.FirstFailure != "hemolymph_pressure_loss" {
		t.Errorf("expected hydraulics to fail first, got %s", sum.FirstFailure)
	}
	if sum.PeakActive != 4 {
		t.Errorf("expected peak of 4 active failures, got %d", sum.PeakActive)
	}
}

func TestFixture_PersistsWithStore(t *testing.T) {
	f, err := LoadFixture(filepath.Join("testdata", "house_spider_growth.json"))
	if err != nil {
		t.Fatalf("LoadFixture: %v", err)
	}
	st, err := session.NewStore(filepath.Join(t.TempDir(), "replay.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	defer st.Close()

	cfg := config.Default()
	facade, _ := cfg.Build()
	logger := logging.NewLogger(io.Discard, slog.LevelInfo)
	records, sessionID, err := RunFixture(facade, f, 0.008, session.WithLogger(logger), session.WithStore(st))
	if err != nil {
		t.Fatalf("RunFixture: %v", err)
	}

	ticks, err := logging.ListTicks(st.DB(), sessionID, 100)
	if err != nil {
		t.Fatalf("ListTicks: %v", err)
	}
	if len(ticks) != len(records) {
		t.Fatalf("expected %d stored ticks, got %d", len(records), len(ticks))
	}
	if ticks[0].TickID != "t1" || ticks[len(ticks)-1].TickID != "t7" {
		t.Errorf("expected fixture tick ids to be stored, got %s..%s", ticks[0].TickID, ticks[len(ticks)-1].TickID)
	}
	h, _ := st.LoadHistory(sessionID)
	if len(h) != 6 {
		t.Errorf("expected 6 stored events, got %d", len(h))
	}
}

// TestLoadFixture_NotFound verifies error on missing file.
func TestLoadFixture_NotFound(t *testing.T) {
	_, err := LoadFixture("testdata/nonexistent.json")
	if err == nil {
		t.Fatal("expected error for missing file, got nil")
	}
}

// TestLoadFixture_Malformed verifies error on invalid JSON.
func TestLoadFixture_Malformed(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(path, []byte("{not valid json}"), 0644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}

	_, err := LoadFixture(path)
	if err == nil {
		t.Fatal("expected error for malformed JSON, got nil")
	}
}

func TestFixtureTick_BadMode(t *testing.T) {
	ft := FixtureTick{TickID: "x", BodyLength: 1, Mode: "turbo"}
	if _, err := ft.ToStep(); err == nil {
		t.Fatal("expected error for unknown mode")
	}
	fc := FixtureConfig{Mode: "turbo", O2Fraction: 0.21, GravityMultiplier: 1}
	if _, err := fc.StartInput(0.008); err == nil {
		t.Fatal("expected error for unknown start mode")
	}
}

// #endregion fixture-tests

// #region fixture-export-tests

// TestFixtureFromRecords_RoundTrip replays a fixture, rebuilds a fixture from
// the records and checks that replaying the rebuilt one agrees with itself.
func TestFixtureFromRecords_RoundTrip(t *testing.T) {
	f, err := LoadFixture(filepath.Join("testdata", "house_spider_growth.json"))
	if err != nil {
		t.Fatalf("LoadFixture: %v", err)
	}
	facade, _ := config.Default().Build()
	logger := logging.NewLogger(io.Discard, slog.LevelInfo)

	records, _, err := RunFixture(facade, f, 0.008, session.WithLogger(logger))
	if err != nil {
		t.Fatalf("RunFixture: %v", err)
	}

	exported := FixtureFromRecords("exported", f.Species, records, 0, nil)
	if exported.BaselineLength != 0.008 || exported.Config.Mode != "simple" {
		t.Fatalf("unexpected exported header: %+v", exported.Config)
	}
	if len(exported.Ticks) != len(f.Ticks) {
		t.Fatalf("expected %d ticks, got %d", len(f.Ticks), len(exported.Ticks))
	}
	if *exported.Ticks[3].O2Fraction != 0.35 {
		t.Errorf("expected o2 0.35 on t4, got %v", *exported.Ticks[3].O2Fraction)
	}

	again, _, err := RunFixture(facade, &exported, exported.BaselineLength, session.WithLogger(logger))
	if err != nil {
		t.Fatalf("RunFixture exported: %v", err)
	}
	for _, m := range Compare(again, exported.Expected) {
		t.Errorf("mismatch: %s", m)
	}
	for _, m := range Compare(again, f.Expected) {
		t.Errorf("mismatch against original: %s", m)
	}
}

func TestFixtureFromRecords_Empty(t *testing.T) {
	f := FixtureFromRecords("none", "house_spider", nil, 5, nil)
	if len(f.Ticks) != 0 || f.BaselineLength != 0 || len(f.PriorHistory) != 0 {
		t.Fatalf("unexpected fixture: %+v", f)
	}
}

// TestFixtureFromRecords_Tail exports the last ticks of a stored session that
// latched failures before the cut and replays them without mismatches.
func TestFixtureFromRecords_Tail(t *testing.T) {
	st, err := session.NewStore(filepath.Join(t.TempDir(), "tail.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	defer st.Close()

	facade, _ := config.Default().Build()
	logger := logging.NewLogger(io.Discard, slog.LevelInfo)
	_, sessionID, err := Replay(facade, startInput(), []Step{
		{TickID: "t1", BodyLength: 0.05},
		{TickID: "t2", BodyLength: 0.008},
		{TickID: "t3", BodyLength: 0.008},
	}, session.WithStore(st), session.WithLogger(logger))
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}

	entries, err := logging.ListTicks(st.DB(), sessionID, 100)
	if err != nil {
		t.Fatalf("ListTicks: %v", err)
	}
	var records []logging.TickRecord
	for _, e := range entries {
		r, err := logging.ParseRecord(e)
		if err != nil {
			t.Fatalf("ParseRecord: %v", err)
		}
		records = append(records, *r)
	}

	exported := FixtureFromRecords("tail", "house_spider", records, 2, facade.Machine().Catalog())
	if len(exported.Ticks) != 2 || exported.Ticks[0].TickID != "t2" {
		t.Fatalf("expected ticks t2 and t3, got %+v", exported.Ticks)
	}
	if len(exported.PriorHistory) != 4 {
		t.Fatalf("expected 4 prior events from t1, got %d", len(exported.PriorHistory))
	}
	want := []string{"hemolymph_pressure_loss", "exoskeleton_buckling"}
	for _, e := range exported.Expected {
		if !sameIDs(e.Active, want) {
			t.Fatalf("%s: expected active %v in export, got %v", e.TickID, want, e.Active)
		}
	}

	// Through JSON, the way fixture-export hands it to replay.
	data, err := json.Marshal(exported)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	path := filepath.Join(t.TempDir(), "tail.json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	loaded, err := LoadFixture(path)
	if err != nil {
		t.Fatalf("LoadFixture: %v", err)
	}

	// Replaying into the same store must not collide with the stored events.
	again, _, err := RunFixture(facade, loaded, loaded.BaselineLength, session.WithStore(st), session.WithLogger(logger))
	if err != nil {
		t.Fatalf("RunFixture: %v", err)
	}
	for _, m := range Compare(again, loaded.Expected) {
		t.Errorf("mismatch: %s", m)
	}
}

func TestHistoryFromRecords(t *testing.T) {
	records := []logging.TickRecord{
		{TickID: "t1", BodyLength: 0.02, ScaleFactor: 2.5, NewFailures: []string{"respiratory_hypoxia", "hemolymph_pressure_loss"}},
		{TickID: "t2", BodyLength: 0.008, ScaleFactor: 1, Resolved: []string{"respiratory_hypoxia"}},
		{TickID: "t3", BodyLength: 0.02, ScaleFactor: 2.5, NewFailures: []string{"respiratory_hypoxia"}},
		{TickID: "t4", BodyLength: 0.05, ScaleFactor: 6.25, NewFailures: []string{"exoskeleton_buckling"}},
	}
	h := HistoryFromRecords(records, nil)
	if len(h) != 4 {
		t.Fatalf("expected 4 events, got %d", len(h))
	}
	if h[0].IsActive || !h[0].IsResolved {
		t.Errorf("expected first respiratory event resolved, got %+v", h[0])
	}
	if !h[2].IsActive || h[2].FailureID != "respiratory_hypoxia" {
		t.Errorf("expected re-triggered respiratory event active, got %+v", h[2])
	}
	if !h[3].IsIrreversible || h[3].TriggeredAtScale != 6.25 {
		t.Errorf("expected irreversible exoskeleton event at scale 6.25, got %+v", h[3])
	}
	if h[1].IsIrreversible || !h[1].IsActive {
		t.Errorf("expected hard hydraulics event active and reversible, got %+v", h[1])
	}
}

// #endregion fixture-export-tests
