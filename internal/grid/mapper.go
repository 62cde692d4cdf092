// Package grid maps geographic coordinates onto a square simulation grid.
package grid

import (
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

var (
	// ErrInvalidGrid reports non-positive grid dimensions or cell size.
	ErrInvalidGrid = errors.New("grid: dimensions must be positive")
	// ErrEmptyExtent reports an extent without area.
	ErrEmptyExtent = errors.New("grid: extent has zero area")
)

// CalcExtent derives a square extent centred on center whose sides measure
// gridSize*cellSize meters.
func CalcExtent(center orb.Point, gridSize int, cellSize float64) (orb.Bound, error) {
	if gridSize <= 0 || !(cellSize > 0) || math.IsInf(cellSize, 0) {
		return orb.Bound{}, fmt.Errorf("calc extent (size %d, cell %g): %w", gridSize, cellSize, ErrInvalidGrid)
	}
	half := float64(gridSize) * cellSize / 2
	b := geo.NewBoundAroundPoint(center, half)
	if !hasArea(b) {
		return orb.Bound{}, fmt.Errorf("calc extent around %v: %w", center, ErrEmptyExtent)
	}
	return b, nil
}

func hasArea(b orb.Bound) bool {
	w := b.Max.Lon() - b.Min.Lon()
	h := b.Max.Lat() - b.Min.Lat()
	return w > 0 && h > 0 && !math.IsInf(w, 0) && !math.IsInf(h, 0)
}

// Mapper converts between geographic positions and flattened row-major cell
// indices. Row 0 lies along the southern edge of the extent.
type Mapper struct {
	extent   orb.Bound
	size     int
	cellSize float64
	lonStep  float64
	latStep  float64
}

// NewMapper validates the grid geometry and returns a mapper for it.
func NewMapper(extent orb.Bound, gridSize int, cellSize float64) (*Mapper, error) {
	if gridSize <= 0 || !(cellSize > 0) || math.IsInf(cellSize, 0) {
		return nil, fmt.Errorf("new mapper (size %d, cell %g): %w", gridSize, cellSize, ErrInvalidGrid)
	}
	if !hasArea(extent) {
		return nil, fmt.Errorf("new mapper %v: %w", extent, ErrEmptyExtent)
	}
	return &Mapper{
		extent:   extent,
		size:     gridSize,
		cellSize: cellSize,
		lonStep:  (extent.Max.Lon() - extent.Min.Lon()) / float64(gridSize),
		latStep:  (extent.Max.Lat() - extent.Min.Lat()) / float64(gridSize),
	}, nil
}

// Extent returns the geographic bound covered by the grid.
func (m *Mapper) Extent() orb.Bound { return m.extent }

// Size returns the number of cells per side.
func (m *Mapper) Size() int { return m.size }

// Len returns the total number of cells.
func (m *Mapper) Len() int { return m.size * m.size }

// CellSize returns the side length of a cell in meters.
func (m *Mapper) CellSize() float64 { return m.cellSize }

// CellArea returns the area of a cell in square meters.
func (m *Mapper) CellArea() float64 { return m.cellSize * m.cellSize }

// Contains reports whether the position lies inside the extent.
func (m *Mapper) Contains(lon, lat float64) bool {
	if math.IsNaN(lon) || math.IsNaN(lat) {
		return false
	}
	return m.extent.Contains(orb.Point{lon, lat})
}

// FindCoordsFromDegree returns the grid coordinates of the cell containing
// the position.
func (m *Mapper) FindCoordsFromDegree(lon, lat float64) (x, y int, ok bool) {
	if !m.Contains(lon, lat) {
		return 0, 0, false
	}
	x = int(math.Floor((lon - m.extent.Min.Lon()) / m.lonStep))
	y = int(math.Floor((lat - m.extent.Min.Lat()) / m.latStep))
	// Positions on the max edge belong to the last row/column.
	if x >= m.size {
		x = m.size - 1
	}
	if y >= m.size {
		y = m.size - 1
	}
	return x, y, true
}

// FindCellFromDegree returns the index of the cell containing the position,
// or ok=false when it falls outside the extent.
func (m *Mapper) FindCellFromDegree(lon, lat float64) (int, bool) {
	x, y, ok := m.FindCoordsFromDegree(lon, lat)
	if !ok {
		return 0, false
	}
	return y*m.size + x, true
}

// CalcCellCenterPosition returns the geographic centre of the cell.
func (m *Mapper) CalcCellCenterPosition(index int) (orb.Point, bool) {
	if index < 0 || index >= m.Len() {
		return orb.Point{}, false
	}
	x, y := m.Coords(index)
	return orb.Point{
		m.extent.Min.Lon() + (float64(x)+0.5)*m.lonStep,
		m.extent.Min.Lat() + (float64(y)+0.5)*m.latStep,
	}, true
}

// FindIndex flattens grid coordinates; both must lie in [0, size).
func (m *Mapper) FindIndex(x, y int) (int, bool) {
	if x < 0 || x >= m.size || y < 0 || y >= m.size {
		return 0, false
	}
	return y*m.size + x, true
}

// Coords expands a flattened index into grid coordinates.
func (m *Mapper) Coords(index int) (x, y int) {
	return index % m.size, index / m.size
}

// Neighbor returns the index of the adjacent cell offset by (dx, dy).
func (m *Mapper) Neighbor(index, dx, dy int) (int, bool) {
	x, y := m.Coords(index)
	return m.FindIndex(x+dx, y+dy)
}

// CellsWithin calls fn for every cell whose grid distance from index is
// strictly less than radius. Radii below one cover only the cell itself.
func (m *Mapper) CellsWithin(index int, radius float64, fn func(cell int)) {
	if index < 0 || index >= m.Len() {
		return
	}
	if !(radius >= 1) {
		radius = 1
	}
	cx, cy := m.Coords(index)
	r := int(math.Ceil(radius))
	r2 := radius * radius
	for dy := -r; dy <= r; dy++ {
		y := cy + dy
		if y < 0 || y >= m.size {
			continue
		}
		for dx := -r; dx <= r; dx++ {
			x := cx + dx
			if x < 0 || x >= m.size {
				continue
			}
			if float64(dx*dx+dy*dy) >= r2 {
				continue
			}
			fn(y*m.size + x)
		}
	}
}
