package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/danielpatrickdp/spider-scale/internal/catalog"
	"github.com/danielpatrickdp/spider-scale/internal/config"
	"github.com/danielpatrickdp/spider-scale/internal/logging"
	"github.com/danielpatrickdp/spider-scale/internal/replay"
	"github.com/danielpatrickdp/spider-scale/internal/session"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to a simulator database")
	sessionID := flag.String("session", "", "session to export")
	last := flag.Int("last", 50, "number of most recent ticks to export")
	outPath := flag.String("out", "", "output fixture JSON path")
	cfgPath := flag.String("config", "", "YAML config the session ran under")
	flag.Parse()

	if *dbPath == "" || *sessionID == "" || *outPath == "" {
		fmt.Fprintln(os.Stderr, "usage: fixture-export --db path/to/db --session id --out path/to/fixture.json [--last N]")
		os.Exit(2)
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(2)
	}
	facade, err := cfg.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "build model: %v\n", err)
		os.Exit(2)
	}

	if err := run(*dbPath, *sessionID, *last, *outPath, facade.Machine().Catalog()); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region extract

// run exports the last ticks of a session. The whole tick log is read so the
// failures triggered before the exported window land in the prior history.
func run(dbPath, sessionID string, last int, outPath string, cat *catalog.Catalog) error {
	store, err := session.NewStore(dbPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer store.Close()

	rec, err := store.GetSession(sessionID)
	if err != nil {
		return err
	}
	entries, err := logging.ListTicks(store.DB(), sessionID, 1<<20)
	if err != nil {
		return err
	}

	var records []logging.TickRecord
	for _, e := range entries {
		r, err := logging.ParseRecord(e)
		if err != nil {
			return err
		}
		if r == nil {
			continue
		}
		records = append(records, *r)
	}
	if len(records) == 0 {
		return fmt.Errorf("no tick records for session %s", sessionID)
	}

	f := replay.FixtureFromRecords("", rec.Species, records, last, cat)
	f.Description = fmt.Sprintf("exported from session %s (%s), last %d ticks", sessionID, rec.Species, len(f.Ticks))
	return writeFixture(f, outPath)
}

// #endregion extract

// #region output

func writeFixture(fixture replay.Fixture, outPath string) error {
	data, err := json.MarshalIndent(fixture, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal fixture: %w", err)
	}

	if err := os.WriteFile(outPath, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", outPath, err)
	}

	fmt.Printf("Wrote fixture to %s (%d bytes, %d ticks)\n", outPath, len(data), len(fixture.Ticks))
	return nil
}

// #endregion output
