package flood

import (
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"

	"floodsim/internal/grid"
	pcore "floodsim/pkg/core"
)

// Kind distinguishes registry entries.
type Kind int

const (
	KindSource Kind = iota
	KindSink
	KindSeaWall
)

func (k Kind) String() string {
	switch k {
	case KindSource:
		return "source"
	case KindSink:
		return "sink"
	case KindSeaWall:
		return "seawall"
	default:
		return "unknown"
	}
}

// MarshalText renders the kind by name.
func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *Kind) UnmarshalText(b []byte) error {
	switch string(b) {
	case "source":
		*k = KindSource
	case "sink":
		*k = KindSink
	case "seawall":
		*k = KindSeaWall
	default:
		return fmt.Errorf("unknown entry kind %q", b)
	}
	return nil
}

// Entry is a registered source, sink or sea wall. Radius is measured in
// cells; Amount applies to sources and sinks, Height to sea walls.
type Entry struct {
	ID     uuid.UUID `json:"id"`
	Kind   Kind      `json:"kind"`
	Lon    float64   `json:"lon"`
	Lat    float64   `json:"lat"`
	Cell   int       `json:"cell"`
	Radius float64   `json:"radius"`
	Amount float64   `json:"amount,omitempty"`
	Height float64   `json:"height,omitempty"`
}

// Registry tracks sources, sinks and sea walls. It is safe for concurrent
// use; the simulator reads it through Snapshot once per tick.
type Registry struct {
	mu      sync.RWMutex
	mapper  *grid.Mapper
	opts    Options
	entries []Entry
	version uint64
	rng     *pcore.RNG
	logger  *log.Logger
}

// NewRegistry creates an empty registry bound to the grid.
func NewRegistry(m *grid.Mapper, opts Options, logger *log.Logger) *Registry {
	if logger == nil {
		logger = log.Default()
	}
	return &Registry{
		mapper: m,
		opts:   opts,
		rng:    pcore.NewRNG(opts.Seed),
		logger: logger,
	}
}

// AddWaterSourcePosition registers a source at the position.
func (r *Registry) AddWaterSourcePosition(lon, lat float64) (Entry, bool) {
	return r.add(KindSource, lon, lat)
}

// AddWaterMinusSourcePosition registers a sink at the position.
func (r *Registry) AddWaterMinusSourcePosition(lon, lat float64) (Entry, bool) {
	return r.add(KindSink, lon, lat)
}

// AddSeaWallPosition registers a sea wall at the position.
func (r *Registry) AddSeaWallPosition(lon, lat float64) (Entry, bool) {
	return r.add(KindSeaWall, lon, lat)
}

// AddRandomSourcePosition registers a source at the centre of a uniformly
// chosen cell.
func (r *Registry) AddRandomSourcePosition() (Entry, bool) {
	r.mu.Lock()
	cell := r.rng.IntN(r.mapper.Len())
	r.mu.Unlock()
	p, ok := r.mapper.CalcCellCenterPosition(cell)
	if !ok {
		return Entry{}, false
	}
	return r.add(KindSource, p.Lon(), p.Lat())
}

func (r *Registry) add(kind Kind, lon, lat float64) (Entry, bool) {
	cell, ok := r.mapper.FindCellFromDegree(lon, lat)
	if !ok {
		r.logger.Printf("flood: %s at (%.6f, %.6f) is outside the simulation extent, ignored", kind, lon, lat)
		return Entry{}, false
	}
	e := Entry{ID: uuid.New(), Kind: kind, Lon: lon, Lat: lat, Cell: cell}
	switch kind {
	case KindSource:
		e.Radius, e.Amount = r.opts.WaterSourceArea, r.opts.WaterSourceAmount
	case KindSink:
		e.Radius, e.Amount = r.opts.WaterMinusSourceArea, r.opts.WaterMinusSourceAmount
	case KindSeaWall:
		e.Radius, e.Height = r.opts.WaterSeawallArea, r.opts.WaterSeawallHeight
	}
	r.mu.Lock()
	r.entries = append(r.entries, e)
	r.version++
	r.mu.Unlock()
	return e, true
}

// ClearWaterSourcePositions removes every source and returns how many were
// dropped.
func (r *Registry) ClearWaterSourcePositions() int { return r.clear(KindSource) }

// ClearWaterMinusSourcePositions removes every sink.
func (r *Registry) ClearWaterMinusSourcePositions() int { return r.clear(KindSink) }

// ClearSeaWallPositions removes every sea wall.
func (r *Registry) ClearSeaWallPositions() int { return r.clear(KindSeaWall) }

func (r *Registry) clear(kind Kind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.entries[:0]
	removed := 0
	for _, e := range r.entries {
		if e.Kind == kind {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	r.entries = kept
	if removed > 0 {
		r.version++
	}
	return removed
}

// Remove deletes the entry with the given ID.
func (r *Registry) Remove(id uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, e := range r.entries {
		if e.ID == id {
			r.entries = append(r.entries[:i], r.entries[i+1:]...)
			r.version++
			return true
		}
	}
	return false
}

// Snapshot returns a copy of the entries together with a version that
// changes whenever the set of entries does.
func (r *Registry) Snapshot() ([]Entry, uint64) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out, r.version
}

// Entries returns the entries of one kind.
func (r *Registry) Entries(kind Kind) []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Entry
	for _, e := range r.entries {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// Len reports the total number of entries.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
