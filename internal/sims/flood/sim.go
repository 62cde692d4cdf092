package flood

import (
	"context"
	"log"
	"strconv"

	"floodsim/internal/core"
)

// Sim adapts an initialised Engine to core.Sim for the grid viewer. Display
// rows run north to south so that row 0 is the top of the screen.
type Sim struct {
	engine  *Engine
	size    int
	cells   []uint8
	walls   []bool
	wallVer uint64
	drawn   *Frame
}

// NewSim wraps an engine that has completed InitBase.
func NewSim(e *Engine) *Sim {
	n := e.Options().GridSize
	return &Sim{
		engine: e,
		size:   n,
		cells:  make([]uint8, n*n),
		walls:  make([]bool, n*n),
	}
}

// Engine exposes the wrapped engine.
func (s *Sim) Engine() *Engine { return s.engine }

// Name implements core.Sim.
func (s *Sim) Name() string { return "flood" }

// Size implements core.Sim.
func (s *Sim) Size() core.Size { return core.Size{W: s.size, H: s.size} }

// Reset drains the water; registered entries stay in place.
func (s *Sim) Reset(int64) {
	if err := s.engine.Reset(); err != nil {
		s.engine.logger.Printf("flood: reset: %v", err)
	}
}

// Step advances one tick unless the engine loop is already driving it.
func (s *Sim) Step() {
	if s.engine.Info().Status == StatusRunning {
		return
	}
	if err := s.engine.Step(); err != nil {
		s.engine.logger.Printf("flood: step: %v", err)
	}
}

// Cells implements core.Sim.
func (s *Sim) Cells() []uint8 {
	f := s.engine.Frame()
	if f == nil || f == s.drawn {
		return s.cells
	}
	s.refreshWalls()
	n := s.size
	for sy := 0; sy < n; sy++ {
		gy := n - 1 - sy
		for x := 0; x < n; x++ {
			gi := gy*n + x
			s.cells[sy*n+x] = displayIndex(f.Water[gi], f.Terrain[gi], s.walls[gi])
		}
	}
	s.drawn = f
	return s.cells
}

func (s *Sim) refreshWalls() {
	r, err := s.engine.activeRegistry()
	if err != nil {
		return
	}
	entries, version := r.Snapshot()
	if version == s.wallVer && version != 0 {
		return
	}
	s.wallVer = version
	clear(s.walls)
	m := s.engine.Mapper()
	for _, e := range entries {
		if e.Kind != KindSeaWall {
			continue
		}
		m.CellsWithin(e.Cell, e.Radius, func(c int) { s.walls[c] = true })
	}
}

// GridIndex converts display coordinates into a grid cell index.
func (s *Sim) GridIndex(x, y int) (int, bool) {
	m := s.engine.Mapper()
	if m == nil {
		return 0, false
	}
	return m.FindIndex(x, s.size-1-y)
}

// Coverage reports, per display cell, which registry kind covers it:
// 0 none, 1 source, 2 sink, 3 sea wall. Later entries win.
func (s *Sim) Coverage() []uint8 {
	out := make([]uint8, s.size*s.size)
	r, err := s.engine.activeRegistry()
	if err != nil {
		return out
	}
	entries, _ := r.Snapshot()
	m := s.engine.Mapper()
	n := s.size
	for _, e := range entries {
		v := uint8(e.Kind) + 1
		m.CellsWithin(e.Cell, e.Radius, func(c int) {
			x, y := m.Coords(c)
			out[(n-1-y)*n+x] = v
		})
	}
	return out
}

// FluxOutflow returns the summed encoded outflow per display cell.
func (s *Sim) FluxOutflow() []float64 {
	out := make([]float64, s.size*s.size)
	f := s.engine.Frame()
	if f == nil {
		return out
	}
	n := s.size
	for gi := 0; gi < n*n; gi++ {
		x, y := gi%n, gi/n
		var sum float64
		for d := 0; d < numDirs; d++ {
			sum += Dequantize(f.Flux[gi*numDirs+d], f.FluxMax)
		}
		out[(n-1-y)*n+x] = sum
	}
	return out
}

// TerrainShade returns the encoded terrain per display cell.
func (s *Sim) TerrainShade() []uint8 {
	out := make([]uint8, s.size*s.size)
	f := s.engine.Frame()
	if f == nil {
		return out
	}
	n := s.size
	for gy := 0; gy < n; gy++ {
		copy(out[(n-1-gy)*n:(n-gy)*n], f.Terrain[gy*n:(gy+1)*n])
	}
	return out
}

// Factory keys read by the registered "flood" sim in addition to the option
// overrides accepted by Options.With.
const (
	KeyScenario = "scenario"
	KeyRun      = "run"
)

func newRegisteredSim(cfg map[string]string) (core.Sim, error) {
	sc := DefaultScenario()
	if path := cfg[KeyScenario]; path != "" {
		loaded, err := LoadScenario(path)
		if err != nil {
			return nil, err
		}
		sc = loaded
	}
	sc.Options = sc.Options.With(cfg)
	if run, err := strconv.ParseBool(cfg[KeyRun]); err == nil && run {
		sc.AutoStart = true
	}
	e, err := sc.Build(context.Background(), log.Default())
	if err != nil {
		return nil, err
	}
	return NewSim(e), nil
}

func init() {
	core.Register("flood", newRegisteredSim)
}
