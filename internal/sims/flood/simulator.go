package flood

import (
	"fmt"
	"math"

	"floodsim/internal/grid"
)

// Flux channels, in encoding order. North points towards increasing
// latitude.
const (
	North = iota
	East
	South
	West
	numDirs
)

var dirOffsets = [numDirs][2]int{
	North: {0, 1},
	East:  {1, 0},
	South: {0, -1},
	West:  {-1, 0},
}

// Simulator advances the water and flux fields of a grid. Neighbour reads
// within a step only see the fields published by the previous step; results
// land in back buffers that are swapped in together once the step completes.
//
// Simulator is not safe for concurrent use.
type Simulator struct {
	opts   Options
	mapper *grid.Mapper
	size   int
	area   float64
	dist   float64

	terrain  []float64
	building []float64
	surface  []float64

	water     []float64
	waterNext []float64
	flux      [numDirs][]float64
	fluxNext  [numDirs][]float64

	// forcing is the per-step source, sink and rain height change, cached
	// until the entry set changes.
	forcing   []float64
	wall      []float64
	rain      []float64
	rasterVer uint64
	rasterOK  bool

	scale []float64
	tick  uint64
}

// NewSimulator builds a simulator over the grid. terrain and building may be
// nil for flat ground; otherwise they must hold one value per cell.
func NewSimulator(m *grid.Mapper, opts Options, terrain, building []float64) (*Simulator, error) {
	if m == nil {
		return nil, fmt.Errorf("%w: nil grid", ErrInvalidOptions)
	}
	n := m.Len()
	if terrain == nil {
		terrain = make([]float64, n)
	}
	if building == nil {
		building = make([]float64, n)
	}
	if len(terrain) != n || len(building) != n {
		return nil, fmt.Errorf("%w: terrain %d / building %d values for %d cells", ErrInvalidOptions, len(terrain), len(building), n)
	}
	s := &Simulator{
		opts:     opts,
		mapper:   m,
		size:     m.Size(),
		area:     m.CellArea(),
		dist:     m.CellSize(),
		terrain:  terrain,
		building: building,
		surface:  make([]float64, n),
		scale:    make([]float64, n),
		wall:     make([]float64, n),
	}
	for i := range s.surface {
		s.surface[i] = sanitize(terrain[i]) + sanitize(building[i])
		s.wall[i] = -1
	}
	s.water = make([]float64, n)
	s.waterNext = make([]float64, n)
	for d := 0; d < numDirs; d++ {
		s.flux[d] = make([]float64, n)
		s.fluxNext[d] = make([]float64, n)
	}
	s.forcing = make([]float64, n)
	s.rain = s.rainField()
	return s, nil
}

// rainField precomputes per-cell precipitation for one step. The weight
// falls off logarithmically with distance from the grid centre.
func (s *Simulator) rainField() []float64 {
	o := s.opts
	perStep := o.RainAmount * o.RainMaxPrecipitation * o.TimeStep
	if !(perStep > 0) {
		return nil
	}
	rain := make([]float64, s.size*s.size)
	c := float64(s.size-1) / 2
	dmax := math.Hypot(c, c)
	for i := range rain {
		x, y := s.mapper.Coords(i)
		weight := 1.0
		if dmax > 0 && o.RainFalloff > 0 {
			d := math.Hypot(float64(x)-c, float64(y)-c)
			weight = 1 - o.RainFalloff*math.Log1p(d)/math.Log1p(dmax)
		}
		rain[i] = perStep * weight
	}
	return rain
}

// Options returns the options the simulator runs with.
func (s *Simulator) Options() Options { return s.opts }

// Mapper returns the grid the simulator runs on.
func (s *Simulator) Mapper() *grid.Mapper { return s.mapper }

// Tick reports the number of completed steps.
func (s *Simulator) Tick() uint64 { return s.tick }

// Water exposes the published water heights.
func (s *Simulator) Water() []float64 { return s.water }

// Flux exposes the published signed flux towards neighbour dir.
func (s *Simulator) Flux(dir int) []float64 { return s.flux[dir] }

// Terrain exposes the static ground heights.
func (s *Simulator) Terrain() []float64 { return s.terrain }

// Building exposes the static building heights.
func (s *Simulator) Building() []float64 { return s.building }

// TotalWater returns the stored water volume in cubic meters.
func (s *Simulator) TotalWater() float64 {
	var total float64
	for _, v := range s.water {
		total += v
	}
	return total * s.area
}

// SetWater overrides the published height of one cell.
func (s *Simulator) SetWater(cell int, h float64) {
	if cell < 0 || cell >= len(s.water) {
		return
	}
	s.water[cell] = s.clampHeight(h)
}

// Reset empties the water and flux fields and forgets the cached forcing.
func (s *Simulator) Reset() {
	clear(s.water)
	clear(s.waterNext)
	for d := 0; d < numDirs; d++ {
		clear(s.flux[d])
		clear(s.fluxNext[d])
	}
	clear(s.forcing)
	s.rasterOK = false
	s.tick = 0
}

// Step advances the model by one time step using the registry entries.
// version identifies the entry set; an unchanged version reuses the last
// rasterisation.
func (s *Simulator) Step(entries []Entry, version uint64) {
	s.rasterize(entries, version)
	o := s.opts

	// Sources, sinks and rain.
	for i, w := range s.water {
		s.waterNext[i] = s.clampHeight(w + s.forcing[i])
	}

	s.computeFlux()
	if s.area > 0 {
		s.applyFlux(o.TimeStep)
	}

	if keep := 1 - o.EvaporationRate; keep != 1 {
		for i, w := range s.waterNext {
			s.waterNext[i] = s.clampHeight(w * keep)
		}
	}

	s.water, s.waterNext = s.waterNext, s.water
	for d := 0; d < numDirs; d++ {
		s.flux[d], s.fluxNext[d] = s.fluxNext[d], s.flux[d]
	}
	s.tick++
}

// computeFlux accelerates the published flux by the published head
// differences, then damps it by the cushion factor. Wall-blocked boundaries
// carry no flux; edge cells of an open grid only flow outwards.
func (s *Simulator) computeFlux() {
	o := s.opts
	for d := 0; d < numDirs; d++ {
		clear(s.fluxNext[d])
	}
	if !(s.area > 0) || !(s.dist > 0) {
		return
	}
	k := o.TimeStep * s.area * o.Gravity / s.dist
	for i, w := range s.water {
		head := w + s.surface[i]
		for d := 0; d < numDirs; d++ {
			prev := s.flux[d][i]
			j, ok := s.neighbor(i, d)
			if !ok {
				if !o.SimulationConfine {
					s.fluxNext[d][i] = math.Max(0, s.clampFlux(prev+k*w)*o.CushionFactor)
				}
				continue
			}
			delta := head - (s.water[j] + s.surface[j])
			if h := math.Max(s.wall[i], s.wall[j]); h >= 0 && math.Abs(delta) <= h {
				continue
			}
			s.fluxNext[d][i] = s.clampFlux(prev+k*delta) * o.CushionFactor
		}
	}
}

// applyFlux moves water along the new flux. Outgoing flux is scaled so no
// cell exports more than it holds, and the scaled flux is what gets
// published, keeping every pair antisymmetric.
func (s *Simulator) applyFlux(dt float64) {
	for i := range s.scale {
		out := 0.0
		for d := 0; d < numDirs; d++ {
			if f := s.fluxNext[d][i]; f > 0 {
				out += f
			}
		}
		s.scale[i] = 1
		if out > 0 && out*dt/s.area > s.waterNext[i] {
			s.scale[i] = s.waterNext[i] * s.area / (out * dt)
		}
	}
	for i := range s.waterNext {
		net := 0.0
		for d := 0; d < numDirs; d++ {
			f := s.fluxNext[d][i]
			switch {
			case f > 0:
				f *= s.scale[i]
			case f < 0:
				if j, ok := s.neighbor(i, d); ok {
					f *= s.scale[j]
				}
			}
			s.fluxNext[d][i] = f
			net -= f
		}
		s.waterNext[i] = s.clampHeight(s.waterNext[i] + net*dt/s.area)
	}
}

// rasterize refreshes the forcing and wall fields when the entry set
// changes.
func (s *Simulator) rasterize(entries []Entry, version uint64) {
	if s.rasterOK && version == s.rasterVer {
		return
	}
	mask := s.forcing
	if s.rain != nil {
		copy(mask, s.rain)
	} else {
		clear(mask)
	}
	for i := range s.wall {
		s.wall[i] = -1
	}
	o := s.opts
	for _, e := range entries {
		switch e.Kind {
		case KindSource, KindSink:
			if !(s.area > 0) {
				continue
			}
			delta := e.Amount * o.TimeStep / s.area
			if e.Kind == KindSink {
				delta = -delta
			}
			s.mapper.CellsWithin(e.Cell, e.Radius, func(c int) { mask[c] += delta })
		case KindSeaWall:
			h := e.Height
			s.mapper.CellsWithin(e.Cell, e.Radius, func(c int) {
				if h > s.wall[c] {
					s.wall[c] = h
				}
			})
		}
	}
	s.rasterVer = version
	s.rasterOK = true
}

func (s *Simulator) neighbor(i, dir int) (int, bool) {
	off := dirOffsets[dir]
	return s.mapper.Neighbor(i, off[0], off[1])
}

func (s *Simulator) clampHeight(v float64) float64 {
	if !(v > 0) {
		return 0
	}
	if v > s.opts.MaxHeight {
		return s.opts.MaxHeight
	}
	return v
}

func (s *Simulator) clampFlux(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	if v > s.opts.MaxFlux {
		return s.opts.MaxFlux
	}
	if v < -s.opts.MaxFlux {
		return -s.opts.MaxFlux
	}
	return v
}

func sanitize(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
