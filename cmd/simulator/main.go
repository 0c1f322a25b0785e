package main

import (
	"bufio"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/danielpatrickdp/spider-scale/internal/catalog"
	"github.com/danielpatrickdp/spider-scale/internal/config"
	"github.com/danielpatrickdp/spider-scale/internal/logging"
	"github.com/danielpatrickdp/spider-scale/internal/scaling"
	"github.com/danielpatrickdp/spider-scale/internal/session"
	"github.com/danielpatrickdp/spider-scale/internal/simulation"
)

// #region main
func main() {
	envCfg, err := config.LoadEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}

	dbPath := flag.String("db", envCfg.DBPath, "SQLite path for session history (:memory: for none on disk)")
	cfgPath := flag.String("config", envCfg.ConfigPath, "YAML config overriding the built-in defaults")
	speciesKey := flag.String("species", envCfg.Species, "starting species preset")
	resumeID := flag.String("resume", "", "continue a stored session by id")
	logLevel := flag.String("log-level", envCfg.LogLevel, "debug|info|warn|error")
	flag.Parse()

	level, err := logging.ParseLevel(*logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}
	logger := logging.NewLogger(os.Stderr, level)
	slog.SetDefault(logger)

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		logger.Error("load config", "err", err)
		os.Exit(1)
	}
	facade, err := cfg.Build()
	if err != nil {
		logger.Error("build model", "err", err)
		os.Exit(1)
	}
	sp, ok := cfg.LookupSpecies(*speciesKey)
	if !ok {
		logger.Error("unknown species", "species", *speciesKey)
		os.Exit(2)
	}

	store, err := session.NewStore(*dbPath)
	if err != nil {
		logger.Error("open store", "db", *dbPath, "err", err)
		os.Exit(1)
	}
	defer store.Close()

	opts := []session.Option{session.WithStore(store), session.WithLogger(logger), session.WithSpecies(sp.Key)}
	var sess *session.Session
	if *resumeID != "" {
		rec, err := store.GetSession(*resumeID)
		if err != nil {
			logger.Error("resume session", "session", *resumeID, "err", err)
			os.Exit(1)
		}
		if stored, ok := cfg.LookupSpecies(rec.Species); ok {
			sp = stored
		}
		sess, err = session.Resume(facade, store, *resumeID, cfg.DefaultInput(sp), opts...)
		if err != nil {
			logger.Error("resume session", "session", *resumeID, "err", err)
			os.Exit(1)
		}
	} else {
		sess, err = session.New(facade, cfg.DefaultInput(sp), opts...)
		if err != nil {
			logger.Error("start session", "err", err)
			os.Exit(1)
		}
	}

	r := &repl{cfg: cfg, facade: facade, sess: sess}

	fmt.Println("Spider scaling simulator ready.")
	fmt.Printf("  DB: %s | Species: %s (%.1f mm) | Session: %s\n", *dbPath, sp.Name, sp.BaselineLength*1000, sess.ID)
	fmt.Println("Type 'help' for commands (or 'quit' to exit):")

	r.tick()

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "quit" || line == "exit" {
			break
		}
		if err := r.handle(line); err != nil {
			fmt.Printf("error: %v\n", err)
		}
	}
}

// #endregion main

// #region repl
type repl struct {
	cfg    config.Config
	facade *simulation.Facade
	sess   *session.Session
}

func (r *repl) handle(line string) error {
	fields := strings.Fields(line)
	cmd, args := fields[0], fields[1:]

	// A bare number is a body length in millimeters.
	if v, err := strconv.ParseFloat(cmd, 64); err == nil {
		return r.setSize(v / 1000)
	}

	switch cmd {
	case "help":
		printHelp()
		return nil
	case "size":
		v, err := oneFloat(args)
		if err != nil {
			return err
		}
		return r.setSize(v / 1000)
	case "o2":
		v, err := oneFloat(args)
		if err != nil {
			return err
		}
		if !r.cfg.Environment.O2Fraction.Contains(v) {
			return fmt.Errorf("o2 %.3f outside [%.2f, %.2f]", v, r.cfg.Environment.O2Fraction.Min, r.cfg.Environment.O2Fraction.Max)
		}
		if err := r.sess.SetO2(v); err != nil {
			return err
		}
	case "gravity":
		v, err := oneFloat(args)
		if err != nil {
			return err
		}
		if !r.cfg.Environment.GravityMultiplier.Contains(v) {
			return fmt.Errorf("gravity %.2f outside [%.1f, %.1f]", v, r.cfg.Environment.GravityMultiplier.Min, r.cfg.Environment.GravityMultiplier.Max)
		}
		if err := r.sess.SetGravity(v); err != nil {
			return err
		}
	case "mode":
		if len(args) != 1 {
			return fmt.Errorf("usage: mode simple|extended")
		}
		m, err := scaling.ParseMode(args[0])
		if err != nil {
			return err
		}
		if err := r.sess.SetMode(m); err != nil {
			return err
		}
	case "species":
		if len(args) != 1 {
			return fmt.Errorf("usage: species <key>")
		}
		sp, ok := r.cfg.LookupSpecies(args[0])
		if !ok {
			return fmt.Errorf("unknown species %q", args[0])
		}
		if err := r.sess.SetSpecies(sp.Key, sp.BaselineLength); err != nil {
			return err
		}
	case "dismiss":
		if len(args) != 1 {
			return fmt.Errorf("usage: dismiss <failure_id>")
		}
		if _, ok := r.facade.Machine().Catalog().Lookup(args[0]); !ok {
			return fmt.Errorf("unknown failure %q", args[0])
		}
		r.sess.Dismiss(args[0])
		fmt.Printf("dismissed %s\n", args[0])
		return nil
	case "history":
		r.printHistory()
		return nil
	case "points":
		r.printFailurePoints()
		return nil
	case "reset":
		if err := r.sess.Reset(); err != nil {
			return err
		}
		fmt.Printf("new session %s\n", r.sess.ID)
	case "status":
	default:
		return fmt.Errorf("unknown command %q (try 'help')", cmd)
	}
	r.tick()
	return nil
}

func (r *repl) setSize(meters float64) error {
	sw := r.facade.SweepConfig()
	if meters < sw.MinSize || meters > sw.MaxSize {
		return fmt.Errorf("size %.1f mm outside [%.1f, %.0f] mm", meters*1000, sw.MinSize*1000, sw.MaxSize*1000)
	}
	if err := r.sess.SetBodyLength(meters); err != nil {
		return err
	}
	r.tick()
	return nil
}

func (r *repl) tick() {
	res, err := r.sess.Tick()
	if err != nil {
		fmt.Printf("error: %v\n", err)
	}
	printTick(res, r.facade.Machine().Catalog())
}

// #endregion repl

// #region output
func printTick(res session.TickResult, cat *catalog.Catalog) {
	in, out := res.Input, res.Output
	fmt.Printf("[%s] size=%.1fmm scale=%.2fx g=%.2f o2=%.2f mode=%s viability=%.1f\n",
		res.TickID, in.BodyLength*1000, out.ScaleFactor, in.GravityMultiplier, in.O2Fraction, in.Mode, out.ViabilityIndex)
	fmt.Printf("  %-12s %8s %8s\n", "Subsystem", "Proxy", "Health")
	for _, sub := range catalog.Subsystems {
		mark := ""
		if out.Proxies.Get(sub) < cat.Threshold(sub) {
			mark = "  !"
		}
		fmt.Printf("  %-12s %8.3f %8.1f%s\n", sub, out.Proxies.Get(sub), out.Health.Get(sub), mark)
	}

	if h := res.Highlight; h != nil {
		if def, ok := cat.Lookup(h.FailureID); ok {
			fmt.Printf("\n  FAILURE: %s [%s]\n", def.Title, def.Severity)
			fmt.Printf("  %s\n", def.Description)
			if def.Severity.Resolvable() {
				fmt.Printf("  Recovery: %s\n", def.RecoveryHint)
			}
			fmt.Printf("  (dismiss %s to hide)\n\n", def.ID)
		}
	}
	for _, ev := range res.State.ResolvedFailures {
		fmt.Printf("  resolved: %s\n", ev.FailureID)
	}
	if len(res.State.ActiveFailures) > 0 {
		ids := make([]string, len(res.State.ActiveFailures))
		for i, ev := range res.State.ActiveFailures {
			ids[i] = ev.FailureID
		}
		fmt.Printf("  active: %s\n", strings.Join(ids, ", "))
	}
}

func (r *repl) printHistory() {
	h := r.sess.DisplayHistory()
	if len(h) == 0 {
		fmt.Println("no failures yet")
		return
	}
	fmt.Printf("%-26s  %9s  %7s  %-8s  %s\n", "Failure", "Size (mm)", "Scale", "Status", "Time")
	for _, ev := range h {
		status := "resolved"
		switch {
		case ev.IsIrreversible:
			status = "latched"
		case ev.IsActive:
			status = "active"
		}
		fmt.Printf("%-26s  %9.1f  %7.2f  %-8s  %s\n",
			ev.FailureID, ev.TriggeredAtSize*1000, ev.TriggeredAtScale, status, ev.Timestamp.Format("15:04:05"))
	}
}

func (r *repl) printFailurePoints() {
	in := r.sess.Input()
	pts := r.facade.GetAllFailurePoints(in.BaselineLength, in.O2Fraction, in.GravityMultiplier, in.Mode)
	if len(pts) == 0 {
		fmt.Println("no failure inside the sweep range")
		return
	}
	for _, p := range pts {
		fmt.Printf("  %-26s at %8.1f mm (%.2fx)  proxy=%.3f < %.2f\n",
			p.FailureID, p.Size*1000, p.ScaleFactor, p.ProxyValue, p.Threshold)
	}
}

func printHelp() {
	fmt.Println(`commands:
  <mm> | size <mm>       set body length in millimeters
  species <key>          switch baseline species
  o2 <fraction>          ambient oxygen fraction
  gravity <multiplier>   gravity relative to Earth
  mode simple|extended   scaling model
  dismiss <failure_id>   stop highlighting a failure
  history                failure history, most recent first
  points                 first failing size per failure mode
  reset                  clear history and start a new session
  status                 re-evaluate the current input
  quit`)
}

// #endregion output

// #region helpers
func oneFloat(args []string) (float64, error) {
	if len(args) != 1 {
		return 0, fmt.Errorf("expected one number")
	}
	v, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return 0, fmt.Errorf("parse %q: %w", args[0], err)
	}
	return v, nil
}

// #endregion helpers
