package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/danielpatrickdp/spider-scale/internal/config"
	"github.com/danielpatrickdp/spider-scale/internal/logging"
	"github.com/danielpatrickdp/spider-scale/internal/replay"
	"github.com/danielpatrickdp/spider-scale/internal/session"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to a simulator database (DB mode)")
	sessionID := flag.String("session", "", "session to replay (DB mode)")
	fixturePath := flag.String("fixture", "", "path to fixture JSON (fixture mode)")
	cfgPath := flag.String("config", "", "YAML config overriding the built-in defaults")
	verbose := flag.Bool("v", false, "log session events to stderr")
	flag.Parse()

	dbMode := *dbPath != "" && *sessionID != ""
	if dbMode == (*fixturePath != "") {
		fmt.Fprintln(os.Stderr, "usage: replay --db path/to/spiderscale.db --session id")
		fmt.Fprintln(os.Stderr, "       replay --fixture path/to/fixture.json")
		os.Exit(2)
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(2)
	}

	var out io.Writer = io.Discard
	if *verbose {
		out = os.Stderr
	}
	logOpt := session.WithLogger(logging.NewLogger(out, slog.LevelDebug))

	var exitCode int
	if *fixturePath != "" {
		exitCode = runFixtureMode(cfg, *fixturePath, logOpt)
	} else {
		exitCode = runDBMode(cfg, *dbPath, *sessionID, logOpt)
	}
	os.Exit(exitCode)
}

// #endregion main

// #region modes

func runFixtureMode(cfg config.Config, path string, opts ...session.Option) int {
	f, err := replay.LoadFixture(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load fixture: %v\n", err)
		return 2
	}
	return run(cfg, f, opts...)
}

// runDBMode rebuilds a fixture from a stored session's tick log and replays
// it against the current model.
func runDBMode(cfg config.Config, dbPath, sessionID string, opts ...session.Option) int {
	store, err := session.NewStore(dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		return 2
	}
	defer store.Close()

	rec, err := store.GetSession(sessionID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "get session: %v\n", err)
		return 2
	}
	entries, err := logging.ListTicks(store.DB(), sessionID, 1<<20)
	if err != nil {
		fmt.Fprintf(os.Stderr, "list ticks: %v\n", err)
		return 2
	}
	records := make([]logging.TickRecord, 0, len(entries))
	for _, e := range entries {
		r, err := logging.ParseRecord(e)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			return 2
		}
		if r != nil {
			records = append(records, *r)
		}
	}
	if len(records) == 0 {
		fmt.Fprintf(os.Stderr, "no tick records for session %s\n", sessionID)
		return 2
	}

	f := replay.FixtureFromRecords("session "+sessionID, rec.Species, records, 0, nil)
	return run(cfg, &f, opts...)
}

func run(cfg config.Config, f *replay.Fixture, opts ...session.Option) int {
	facade, err := cfg.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "build model: %v\n", err)
		return 2
	}
	preset := 0.0
	if sp, ok := cfg.LookupSpecies(f.Species); ok {
		preset = sp.BaselineLength
	}
	baseline := f.Baseline(preset)
	if baseline <= 0 {
		fmt.Fprintf(os.Stderr, "no baseline length for species %q\n", f.Species)
		return 2
	}

	records, sessionID, err := replay.RunFixture(facade, f, baseline, opts...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "replay: %v\n", err)
		return 2
	}
	code := printComparison(records, f.Expected)
	printSummary(replay.Summarize(records, sessionID))
	return code
}

// #endregion modes

// #region output

// printComparison outputs a comparison table and returns the exit code.
func printComparison(records []logging.TickRecord, expected []replay.FixtureExpected) int {
	fmt.Printf("%-10s| %-34s| %-34s| %s\n", "Tick", "Expected new", "Replayed new", "Match")
	fmt.Printf("%-10s+%-35s+%-35s+%s\n",
		"----------", "-----------------------------------", "-----------------------------------", "------")

	total := min(len(records), len(expected))
	for i := 0; i < total; i++ {
		ms := replay.Compare(records[i:i+1], expected[i:i+1])
		match := "OK"
		if len(ms) > 0 {
			match = "DIFF"
		}
		fmt.Printf("%-10s| %-34s| %-34s| %s\n",
			expected[i].TickID, idList(expected[i].NewFailures), idList(records[i].NewFailures), match)
	}

	mismatches := replay.Compare(records, expected)
	for _, m := range mismatches {
		fmt.Printf("  %s\n", m)
	}
	fmt.Printf("\nSummary: %d ticks, %d mismatches\n", total, len(mismatches))
	if len(mismatches) > 0 {
		return 1
	}
	return 0
}

func printSummary(s replay.ReplaySummary) {
	fmt.Printf("Triggered: %d | Resolved: %d | Peak active: %d | Min viability: %.1f\n",
		s.Triggered, s.Resolved, s.PeakActive, s.MinViability)
	if s.FirstFailure != "" {
		fmt.Printf("First failure: %s\n", s.FirstFailure)
	}
	fmt.Printf("Final active: %s\n", idList(s.FinalActive))
}

func idList(ids []string) string {
	if len(ids) == 0 {
		return "-"
	}
	return strings.Join(ids, ",")
}

// #endregion output
