package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/danielpatrickdp/spider-scale/internal/failure"
	"github.com/danielpatrickdp/spider-scale/internal/logging"
	"github.com/danielpatrickdp/spider-scale/internal/session"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to a simulator database")
	last := flag.Int("last", 20, "show N most recent sessions (or ticks with --session)")
	sessionID := flag.String("session", "", "show single session detail")
	jsonOut := flag.Bool("json", false, "output as JSON instead of table")
	flag.Parse()

	if *dbPath == "" {
		fmt.Fprintln(os.Stderr, "usage: inspect --db path/to/spiderscale.db [--last N] [--session id] [--json]")
		os.Exit(2)
	}

	store, err := session.NewStore(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	if *sessionID != "" {
		err = runDetailMode(store, *sessionID, *last, *jsonOut)
	} else {
		err = runListMode(store, *last, *jsonOut)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region list-mode

type listRow struct {
	SessionID      string  `json:"session_id"`
	Species        string  `json:"species"`
	BaselineLength float64 `json:"baseline_length"`
	Events         int     `json:"events"`
	CreatedAt      string  `json:"created_at"`
}

func runListMode(store *session.Store, last int, jsonOut bool) error {
	recs, err := store.ListSessions(last)
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		fmt.Fprintln(os.Stderr, "no sessions found")
		return nil
	}

	rows := make([]listRow, len(recs))
	for i, r := range recs {
		rows[i] = listRow{
			SessionID:      r.SessionID,
			Species:        r.Species,
			BaselineLength: r.BaselineLength,
			Events:         r.EventCount,
			CreatedAt:      r.CreatedAt.Format("2006-01-02T15:04:05Z"),
		}
	}

	if jsonOut {
		return printJSON(rows)
	}
	fmt.Printf("%-10s  %-18s  %10s  %6s  %s\n", "Session", "Species", "Base (mm)", "Events", "Time")
	fmt.Printf("%-10s+-%-18s+-%10s+-%6s+-%s\n",
		"----------", "------------------", "----------", "------", "--------------------")
	for _, r := range rows {
		fmt.Printf("%-10s  %-18s  %10.1f  %6d  %s\n",
			shortID(r.SessionID), r.Species, r.BaselineLength*1000, r.Events, r.CreatedAt)
	}
	return nil
}

// #endregion list-mode

// #region detail-mode

type detailOutput struct {
	Session session.SessionRecord  `json:"session"`
	History failure.FailureHistory `json:"history"`
	Ticks   []logging.TickRecord   `json:"ticks"`
}

func runDetailMode(store *session.Store, sessionID string, last int, jsonOut bool) error {
	rec, err := store.GetSession(sessionID)
	if err != nil {
		return err
	}
	history, err := store.LoadHistory(sessionID)
	if err != nil {
		return err
	}
	entries, err := logging.ListTicks(store.DB(), sessionID, last)
	if err != nil {
		return err
	}
	out := detailOutput{Session: rec, History: history}
	for _, e := range entries {
		r, err := logging.ParseRecord(e)
		if err != nil {
			return err
		}
		if r != nil {
			out.Ticks = append(out.Ticks, *r)
		}
	}

	if jsonOut {
		return printJSON(out)
	}

	fmt.Printf("Session:  %s\n", rec.SessionID)
	fmt.Printf("Species:  %s (%.1f mm)\n", rec.Species, rec.BaselineLength*1000)
	fmt.Printf("Created:  %s\n", rec.CreatedAt.Format("2006-01-02T15:04:05Z"))

	fmt.Printf("\nFailure history (most recent first):\n")
	if len(history) == 0 {
		fmt.Println("  none")
	}
	for _, ev := range history.MostRecentFirst() {
		fmt.Printf("  %-26s %8.1f mm  %6.2fx  %s\n",
			ev.FailureID, ev.TriggeredAtSize*1000, ev.TriggeredAtScale, status(ev))
	}

	fmt.Printf("\nTicks:\n")
	for _, r := range out.Ticks {
		fmt.Printf("  %-10s %8.1f mm  %6.2fx  viability=%5.1f  new=%v active=%d\n",
			r.TickID, r.BodyLength*1000, r.ScaleFactor, r.Viability, r.NewFailures, len(r.Active))
	}
	return nil
}

func status(ev failure.FailureEvent) string {
	switch {
	case ev.IsIrreversible:
		return "latched"
	case ev.IsActive:
		return "active"
	case ev.IsResolved:
		return "resolved"
	}
	return "-"
}

// #endregion detail-mode

// #region output

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// #endregion output
