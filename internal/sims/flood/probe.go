package flood

import (
	"fmt"
	"math"
	"sync"

	"github.com/paulmach/orb"

	"floodsim/internal/grid"
)

// FloodSpreadResult captures telemetry from a deterministic single-source
// run on flat ground.
type FloodSpreadResult struct {
	// MaxDistance is the farthest distance, in cells, from the source at
	// which water deeper than the wet threshold was seen.
	MaxDistance float64
	// MaxDistanceStep is the tick at which MaxDistance was first reached.
	MaxDistanceStep int
	// FirstWetStep maps ring distance (in whole cells) to the tick it first
	// became wet.
	FirstWetStep map[int]int
	PeakWetCells int
	PeakDepth    float64
	// Injected is the volume added by the source; Stored the volume left.
	Injected       float64
	Stored         float64
	StepsSimulated int
	// Stable is false when any cell hit the height or flux clamp.
	Stable bool
}

// WetThreshold is the depth above which a cell counts as flooded in spread runs.
const WetThreshold = 1e-4

// FloodSpread runs a single source in the centre of a flat grid for the
// given number of steps and reports how the flood front advanced.
func FloodSpread(opts Options, steps int) (FloodSpreadResult, error) {
	result := FloodSpreadResult{Stable: true, FirstWetStep: map[int]int{}}
	if steps <= 0 {
		return result, nil
	}
	extent, err := grid.CalcExtent(orb.Point{opts.CenterLon, opts.CenterLat}, opts.GridSize, opts.CellSize)
	if err != nil {
		return result, err
	}
	m, err := grid.NewMapper(extent, opts.GridSize, opts.CellSize)
	if err != nil {
		return result, err
	}
	sim, err := NewSimulator(m, opts, nil, nil)
	if err != nil {
		return result, err
	}
	c := opts.GridSize / 2
	centre, _ := m.FindIndex(c, c)
	entries := []Entry{{Kind: KindSource, Cell: centre, Radius: opts.WaterSourceArea, Amount: opts.WaterSourceAmount}}
	cells := 0
	m.CellsWithin(centre, opts.WaterSourceArea, func(int) { cells++ })
	perStep := opts.WaterSourceAmount * opts.TimeStep * float64(cells)

	for step := 1; step <= steps; step++ {
		sim.Step(entries, 1)
		result.StepsSimulated = step
		result.Injected += perStep
		wet := 0
		for idx, w := range sim.Water() {
			if w >= opts.MaxHeight {
				result.Stable = false
			}
			if w > result.PeakDepth {
				result.PeakDepth = w
			}
			if w <= WetThreshold {
				continue
			}
			wet++
			x, y := m.Coords(idx)
			dist := math.Hypot(float64(x-c), float64(y-c))
			if dist > result.MaxDistance {
				result.MaxDistance = dist
				result.MaxDistanceStep = step
			}
			ring := int(math.Round(dist))
			if _, seen := result.FirstWetStep[ring]; !seen {
				result.FirstWetStep[ring] = step
			}
		}
		if wet > result.PeakWetCells {
			result.PeakWetCells = wet
		}
		for d := 0; d < numDirs && result.Stable; d++ {
			for _, f := range sim.Flux(d) {
				if math.Abs(f) >= opts.MaxFlux {
					result.Stable = false
					break
				}
			}
		}
	}
	result.Stored = sim.TotalWater()
	return result, nil
}

// SweepRecord documents one evaluated candidate of a sweep.
type SweepRecord struct {
	Parameter string
	Value     string
	Result    FloodSpreadResult
	Err       error
}

// FloodSweep evaluates FloodSpread for each value of one option key,
// running up to workers candidates concurrently. Records come back in the
// order of values.
func FloodSweep(base Options, steps int, key string, values []float64, workers int) []SweepRecord {
	if workers <= 0 {
		workers = 1
	}
	records := make([]SweepRecord, len(values))
	var wg sync.WaitGroup
	sem := make(chan struct{}, workers)
	for idx, value := range values {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, v float64) {
			defer wg.Done()
			defer func() { <-sem }()
			text := fmt.Sprintf("%g", v)
			opts := base.With(map[string]string{key: text})
			rec := SweepRecord{Parameter: key, Value: text}
			if err := opts.Validate(); err != nil {
				rec.Err = err
			} else {
				rec.Result, rec.Err = FloodSpread(opts, steps)
			}
			records[i] = rec
		}(idx, value)
	}
	wg.Wait()
	return records
}

// BetterSpread orders results: stable runs first, then farther spread, then
// the shallower peak.
func BetterSpread(a, b FloodSpreadResult) bool {
	if a.Stable != b.Stable {
		return a.Stable
	}
	if a.MaxDistance != b.MaxDistance {
		return a.MaxDistance > b.MaxDistance
	}
	return a.PeakDepth < b.PeakDepth
}
