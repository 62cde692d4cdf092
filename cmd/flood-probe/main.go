package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"runtime"
	"sort"
	"strconv"
	"strings"

	"floodsim/internal/app"
	"floodsim/internal/sims/flood"
)

func main() {
	steps := flag.Int("steps", 400, "number of ticks to simulate per candidate")
	workers := flag.Int("workers", runtime.NumCPU(), "parallel candidate evaluations")
	gridSize := flag.Int("grid", 96, "grid size for spread runs")
	sweep := flag.String("sweep", "", "option to sweep in key=v1,v2,... form")
	var overrides app.KVList
	flag.Var(&overrides, "set", "option override in key=value form (repeatable)")
	flag.Parse()

	opts := flood.DefaultOptions()
	opts.GridSize = *gridSize
	opts.RainAmount = 0
	opts = opts.With(overrides.Map())
	if err := opts.Validate(); err != nil {
		log.Fatal(err)
	}

	baseline, err := flood.FloodSpread(opts, *steps)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("Stability number %.3f\n", opts.StabilityNumber())
	fmt.Printf("Baseline: %s\n", describe(baseline))
	printRings(baseline)

	if *sweep == "" {
		return
	}
	key, values, err := parseSweep(*sweep)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	records := flood.FloodSweep(opts, *steps, key, values, *workers)
	fmt.Printf("\nSweep %s:\n", key)
	for _, rec := range records {
		if rec.Err != nil {
			fmt.Printf("  %s=%s -> error: %v\n", rec.Parameter, rec.Value, rec.Err)
			continue
		}
		fmt.Printf("  %s=%s -> %s\n", rec.Parameter, rec.Value, describe(rec.Result))
	}

	ok := records[:0:0]
	for _, rec := range records {
		if rec.Err == nil {
			ok = append(ok, rec)
		}
	}
	if len(ok) == 0 {
		return
	}
	sort.SliceStable(ok, func(i, j int) bool { return flood.BetterSpread(ok[i].Result, ok[j].Result) })
	fmt.Printf("\nBest: %s=%s\n", ok[0].Parameter, ok[0].Value)
}

func describe(r flood.FloodSpreadResult) string {
	stability := "stable"
	if !r.Stable {
		stability = "UNSTABLE"
	}
	return fmt.Sprintf("max distance %.1f cells at step %d/%d, peak wet %d, peak depth %.3f m, stored %.1f of %.1f m3, %s",
		r.MaxDistance, r.MaxDistanceStep, r.StepsSimulated, r.PeakWetCells, r.PeakDepth, r.Stored, r.Injected, stability)
}

func printRings(r flood.FloodSpreadResult) {
	rings := make([]int, 0, len(r.FirstWetStep))
	for d := range r.FirstWetStep {
		rings = append(rings, d)
	}
	sort.Ints(rings)
	for _, d := range rings {
		fmt.Printf("  ring %3d wet at step %d\n", d, r.FirstWetStep[d])
	}
}

func parseSweep(arg string) (string, []float64, error) {
	key, list, found := strings.Cut(arg, "=")
	if !found || key == "" || list == "" {
		return "", nil, fmt.Errorf("sweep must look like key=v1,v2: %q", arg)
	}
	var values []float64
	for _, raw := range strings.Split(list, ",") {
		v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return "", nil, fmt.Errorf("sweep value %q: %w", raw, err)
		}
		values = append(values, v)
	}
	return key, values, nil
}
