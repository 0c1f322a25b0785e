package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/danielpatrickdp/spider-scale/internal/catalog"
	"github.com/danielpatrickdp/spider-scale/internal/config"
	"github.com/danielpatrickdp/spider-scale/internal/scaling"
	"github.com/danielpatrickdp/spider-scale/internal/simulation"
)

// #region main

func main() {
	envCfg, err := config.LoadEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}

	cfgPath := flag.String("config", envCfg.ConfigPath, "YAML config overriding the built-in defaults")
	speciesKey := flag.String("species", envCfg.Species, "species preset")
	o2 := flag.Float64("o2", 0, "oxygen fraction (default from config)")
	gravity := flag.Float64("gravity", 0, "gravity multiplier (default from config)")
	modeStr := flag.String("mode", "simple", "simple|extended")
	points := flag.Int("points", 0, "number of sizes (default from config)")
	every := flag.Int("every", 10, "print every Nth size in the table")
	jsonOut := flag.Bool("json", false, "output the full sweep as JSON")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if *points > 0 {
		cfg.Sweep.Points = *points
	}
	facade, err := cfg.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "build model: %v\n", err)
		os.Exit(1)
	}

	sp, ok := cfg.LookupSpecies(*speciesKey)
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown species %q\n", *speciesKey)
		os.Exit(2)
	}
	mode, err := scaling.ParseMode(*modeStr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(2)
	}

	in := cfg.DefaultInput(sp)
	in.Mode = mode
	if *o2 > 0 {
		in.O2Fraction = *o2
	}
	if *gravity > 0 {
		in.GravityMultiplier = *gravity
	}
	if err := in.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(2)
	}

	sw := facade.ComputeSweep(in.BaselineLength, in.O2Fraction, in.GravityMultiplier, in.Mode)
	if *jsonOut {
		if err := printJSON(sw); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	fmt.Printf("%s, baseline %.1f mm, o2=%.2f, g=%.2f, %s mode\n\n",
		sp.Name, sp.BaselineLength*1000, in.O2Fraction, in.GravityMultiplier, in.Mode)
	printTable(sw, *every)
	fmt.Println()
	printFailurePoints(sw.FailurePoints)
}

// #endregion main

// #region output

func printTable(sw simulation.Sweep, every int) {
	if every < 1 {
		every = 1
	}
	fmt.Printf("%10s  %8s", "Size (mm)", "Scale")
	for _, sub := range catalog.Subsystems {
		fmt.Printf("  %11s", sub)
	}
	fmt.Printf("  %9s\n", "Viability")

	for i, out := range sw.Outputs {
		if i%every != 0 && i != len(sw.Outputs)-1 {
			continue
		}
		fmt.Printf("%10.1f  %8.2f", sw.Sizes[i]*1000, out.ScaleFactor)
		for _, sub := range catalog.Subsystems {
			fmt.Printf("  %11.3f", out.Proxies.Get(sub))
		}
		fmt.Printf("  %9.1f\n", out.ViabilityIndex)
	}
}

func printFailurePoints(pts []simulation.FailurePoint) {
	if len(pts) == 0 {
		fmt.Println("No failure inside the sweep range.")
		return
	}
	fmt.Println("Failure points:")
	for _, p := range pts {
		fmt.Printf("  %-26s %-13s %-12s at %8.1f mm (%6.2fx)  proxy=%.3f < %.2f\n",
			p.FailureID, p.Subsystem, p.Severity, p.Size*1000, p.ScaleFactor, p.ProxyValue, p.Threshold)
	}
}

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

// #endregion output
