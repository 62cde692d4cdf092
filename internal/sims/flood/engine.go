// Package flood implements a grid-based hydraulic flood model: water height
// and flux evolve over terrain under rain, point sources and sinks, and sea
// walls, and every step is quantised into byte frames for rendering.
package flood

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/paulmach/orb"

	"floodsim/internal/grid"
	"floodsim/internal/terrain"
)

var (
	// ErrInvalidState reports a call that is not allowed in the engine's
	// current lifecycle state.
	ErrInvalidState = errors.New("flood: invalid state")
	// ErrOutsideExtent reports a registry position outside the grid.
	ErrOutsideExtent = errors.New("flood: position outside simulation extent")
)

// Status is the engine lifecycle state.
type Status string

const (
	StatusIdle        Status = "idle"
	StatusInitialized Status = "initialized"
	StatusRunning     Status = "running"
	StatusStopped     Status = "stopped"
)

// Info summarises the engine after the last completed step.
type Info struct {
	Status     Status  `json:"status"`
	TotalWater float64 `json:"totalWater"`
	Tick       uint64  `json:"tick"`
}

// Config wires an engine together.
type Config struct {
	Options Options
	Logger  *log.Logger
}

// Engine owns the grid, registry, simulator and loop, and publishes one
// frame per completed step.
type Engine struct {
	opts   Options
	logger *log.Logger

	mu       sync.Mutex
	status   Status
	mapper   *grid.Mapper
	heights  *terrain.Heights
	registry *Registry
	sim      *Simulator
	enc      *Encoder
	loop     *Loop

	// stepMu serialises steps between the loop and manual stepping.
	stepMu sync.Mutex
	frame  atomic.Pointer[Frame]

	subMu  sync.Mutex
	subs   map[uint64]chan *Frame
	nextID uint64
}

// NewEngine validates the options and returns an idle engine.
func NewEngine(cfg Config) (*Engine, error) {
	if err := cfg.Options.Validate(); err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Engine{
		opts:   cfg.Options,
		logger: logger,
		status: StatusIdle,
		subs:   make(map[uint64]chan *Frame),
	}, nil
}

// Options returns the engine options.
func (e *Engine) Options() Options { return e.opts }

// InitBase builds the grid around the configured centre, samples terrain and
// prepares the simulator. A nil sampler yields flat ground.
func (e *Engine) InitBase(ctx context.Context, sampler *terrain.Sampler) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.status != StatusIdle {
		return fmt.Errorf("init base while %s: %w", e.status, ErrInvalidState)
	}
	o := e.opts
	extent, err := grid.CalcExtent(orb.Point{o.CenterLon, o.CenterLat}, o.GridSize, o.CellSize)
	if err != nil {
		return fmt.Errorf("init base: %w", err)
	}
	mapper, err := grid.NewMapper(extent, o.GridSize, o.CellSize)
	if err != nil {
		return fmt.Errorf("init base: %w", err)
	}
	if sampler == nil {
		sampler = &terrain.Sampler{Source: terrain.FlatSource{}, Logger: e.logger}
	}
	heights, err := sampler.Sample(ctx, mapper)
	if err != nil {
		return fmt.Errorf("init base: %w", err)
	}
	sim, err := NewSimulator(mapper, o, heights.Terrain, heights.Building)
	if err != nil {
		return fmt.Errorf("init base: %w", err)
	}
	if mu := o.StabilityNumber(); mu >= 1 {
		e.logger.Printf("flood: stability number %.3f >= 1, expect oscillation; lower timeStep or raise cellSize", mu)
	}

	e.mapper = mapper
	e.heights = heights
	e.registry = NewRegistry(mapper, o, e.logger)
	e.sim = sim
	e.enc = NewEncoder(sim)
	e.loop = NewLoop(o.Interval, e.tick)
	e.status = StatusInitialized
	e.publish(e.enc.Encode(sim))
	e.logger.Printf("flood: initialised %dx%d grid, cell %.2fm, extent %v", o.GridSize, o.GridSize, o.CellSize, extent)
	return nil
}

// Start begins periodic stepping.
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch e.status {
	case StatusInitialized, StatusStopped:
	default:
		return fmt.Errorf("start while %s: %w", e.status, ErrInvalidState)
	}
	e.loop.Start()
	e.status = StatusRunning
	return nil
}

// Stop halts periodic stepping and waits for a running step to complete.
// It is a no-op unless the engine is running.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.status != StatusRunning {
		return
	}
	e.loop.Stop()
	e.status = StatusStopped
}

// Clear stops the engine and discards the grid, terrain and registry.
func (e *Engine) Clear() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.status == StatusIdle {
		return fmt.Errorf("clear while idle: %w", ErrInvalidState)
	}
	e.loop.Stop()
	e.mapper, e.heights, e.registry, e.sim, e.enc, e.loop = nil, nil, nil, nil, nil, nil
	e.frame.Store(nil)
	e.status = StatusIdle
	return nil
}

// Reset empties the water while keeping terrain and registered entries.
func (e *Engine) Reset() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.status == StatusIdle {
		return fmt.Errorf("reset while idle: %w", ErrInvalidState)
	}
	e.stepMu.Lock()
	defer e.stepMu.Unlock()
	e.sim.Reset()
	e.publish(e.enc.Encode(e.sim))
	return nil
}

// Step advances one tick by hand. The engine must be initialised and not
// running.
func (e *Engine) Step() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch e.status {
	case StatusInitialized, StatusStopped:
	default:
		return fmt.Errorf("step while %s: %w", e.status, ErrInvalidState)
	}
	e.tick()
	return nil
}

// tick performs one step and publishes its frame. Callers guarantee the
// simulator exists for the duration of the call. Publishing under stepMu
// keeps frames in step order with Reset.
func (e *Engine) tick() {
	e.stepMu.Lock()
	defer e.stepMu.Unlock()
	entries, version := e.registry.Snapshot()
	e.sim.Step(entries, version)
	e.publish(e.enc.Encode(e.sim))
}

func (e *Engine) publish(f *Frame) {
	e.frame.Store(f)
	e.subMu.Lock()
	defer e.subMu.Unlock()
	for _, ch := range e.subs {
		select {
		case ch <- f:
		default:
			// Slow subscriber: drop its oldest pending frame.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- f:
			default:
			}
		}
	}
}

// Frame returns the latest published frame, or nil while idle.
func (e *Engine) Frame() *Frame { return e.frame.Load() }

// Subscribe delivers every published frame to the returned channel. Frames
// are dropped for subscribers that fall behind. The cancel function must be
// called to release the subscription.
func (e *Engine) Subscribe(buffer int) (<-chan *Frame, func()) {
	if buffer <= 0 {
		buffer = 1
	}
	ch := make(chan *Frame, buffer)
	e.subMu.Lock()
	id := e.nextID
	e.nextID++
	e.subs[id] = ch
	e.subMu.Unlock()
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			e.subMu.Lock()
			delete(e.subs, id)
			e.subMu.Unlock()
		})
	}
}

// Info reports the lifecycle state with totals from the latest frame.
func (e *Engine) Info() Info {
	e.mu.Lock()
	status := e.status
	e.mu.Unlock()
	info := Info{Status: status}
	if f := e.frame.Load(); f != nil {
		info.TotalWater = f.TotalWater
		info.Tick = f.Tick
	}
	return info
}

// Mapper returns the grid mapper, or nil while idle.
func (e *Engine) Mapper() *grid.Mapper {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mapper
}

// Heights returns the sampled static surfaces, or nil while idle.
func (e *Engine) Heights() *terrain.Heights {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.heights
}

func (e *Engine) activeRegistry() (*Registry, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.status == StatusIdle {
		return nil, fmt.Errorf("registry while idle: %w", ErrInvalidState)
	}
	return e.registry, nil
}

func (e *Engine) addEntry(add func(*Registry) (Entry, bool)) (Entry, error) {
	r, err := e.activeRegistry()
	if err != nil {
		return Entry{}, err
	}
	entry, ok := add(r)
	if !ok {
		return Entry{}, ErrOutsideExtent
	}
	return entry, nil
}

// AddWaterSourcePosition registers a water source.
func (e *Engine) AddWaterSourcePosition(lon, lat float64) (Entry, error) {
	return e.addEntry(func(r *Registry) (Entry, bool) { return r.AddWaterSourcePosition(lon, lat) })
}

// AddWaterMinusSourcePosition registers a water sink.
func (e *Engine) AddWaterMinusSourcePosition(lon, lat float64) (Entry, error) {
	return e.addEntry(func(r *Registry) (Entry, bool) { return r.AddWaterMinusSourcePosition(lon, lat) })
}

// AddSeaWallPosition registers a sea wall.
func (e *Engine) AddSeaWallPosition(lon, lat float64) (Entry, error) {
	return e.addEntry(func(r *Registry) (Entry, bool) { return r.AddSeaWallPosition(lon, lat) })
}

// AddRandomSourcePosition registers a source in a random cell.
func (e *Engine) AddRandomSourcePosition() (Entry, error) {
	return e.addEntry(func(r *Registry) (Entry, bool) { return r.AddRandomSourcePosition() })
}

// ClearWaterSourcePositions removes every source.
func (e *Engine) ClearWaterSourcePositions() (int, error) {
	r, err := e.activeRegistry()
	if err != nil {
		return 0, err
	}
	return r.ClearWaterSourcePositions(), nil
}

// ClearWaterMinusSourcePositions removes every sink.
func (e *Engine) ClearWaterMinusSourcePositions() (int, error) {
	r, err := e.activeRegistry()
	if err != nil {
		return 0, err
	}
	return r.ClearWaterMinusSourcePositions(), nil
}

// ClearSeaWallPositions removes every sea wall.
func (e *Engine) ClearSeaWallPositions() (int, error) {
	r, err := e.activeRegistry()
	if err != nil {
		return 0, err
	}
	return r.ClearSeaWallPositions(), nil
}

// RemoveEntry deletes one registry entry by ID.
func (e *Engine) RemoveEntry(id uuid.UUID) (bool, error) {
	r, err := e.activeRegistry()
	if err != nil {
		return false, err
	}
	return r.Remove(id), nil
}

// Entries lists registered entries of one kind.
func (e *Engine) Entries(kind Kind) ([]Entry, error) {
	r, err := e.activeRegistry()
	if err != nil {
		return nil, err
	}
	return r.Entries(kind), nil
}
