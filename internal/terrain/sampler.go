package terrain

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"runtime"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"floodsim/internal/grid"
)

// Heights holds the static per-cell surfaces consumed by the simulator.
type Heights struct {
	Terrain  []float64
	Building []float64
	// Failed counts cells whose elevation lookup failed and fell back to zero.
	Failed int
}

// MaxTerrain returns the highest terrain sample.
func (h *Heights) MaxTerrain() float64 {
	max := 0.0
	for _, v := range h.Terrain {
		if v > max {
			max = v
		}
	}
	return max
}

// Sampler populates Heights for every cell of a grid.
type Sampler struct {
	Source      ElevationSource
	Buildings   *BuildingOverlay
	Concurrency int
	Logger      *log.Logger
}

// Sample resolves every cell centre. Individual lookup failures leave the
// cell at zero and are only counted; cancellation aborts the whole pass.
func (s *Sampler) Sample(ctx context.Context, m *grid.Mapper) (*Heights, error) {
	if m == nil {
		return nil, errors.New("terrain: nil grid mapper")
	}
	src := s.Source
	if src == nil {
		src = FlatSource{}
	}
	logger := s.Logger
	if logger == nil {
		logger = log.Default()
	}
	limit := s.Concurrency
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0) * 4
	}

	n := m.Len()
	h := &Heights{Terrain: make([]float64, n), Building: make([]float64, n)}
	var failed atomic.Int64
	var (
		errMu    sync.Mutex
		firstErr error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	size := m.Size()
	for row := 0; row < size; row++ {
		g.Go(func() error {
			for x := 0; x < size; x++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				idx := row*size + x
				p, _ := m.CalcCellCenterPosition(idx)
				h.Building[idx] = s.Buildings.HeightAt(p)
				elev, err := src.Elevation(gctx, p.Lon(), p.Lat())
				if err != nil {
					if ctxErr := gctx.Err(); ctxErr != nil {
						return ctxErr
					}
					failed.Add(1)
					errMu.Lock()
					if firstErr == nil {
						firstErr = err
					}
					errMu.Unlock()
					continue
				}
				if math.IsNaN(elev) || math.IsInf(elev, 0) {
					failed.Add(1)
					continue
				}
				h.Terrain[idx] = elev
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("sample terrain: %w", err)
	}
	h.Failed = int(failed.Load())
	if h.Failed > 0 {
		logger.Printf("terrain: %d of %d cell lookups failed, defaulted to 0 (first error: %v)", h.Failed, n, firstErr)
	}
	if fp := s.Buildings.Len(); fp > 0 {
		logger.Printf("terrain: applied %d building footprints", fp)
	}
	return h, nil
}
