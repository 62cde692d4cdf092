package terrain

import (
	"fmt"
	"os"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
)

// DefaultHeightProperty is the feature property read for building heights.
const DefaultHeightProperty = "height"

type footprint struct {
	geom   orb.Geometry
	bound  orb.Bound
	height float64
}

// BuildingOverlay holds building footprints with their heights above ground.
type BuildingOverlay struct {
	footprints []footprint
}

// ParseBuildings reads polygon features from a GeoJSON feature collection.
// Features without a positive height or polygonal geometry are skipped.
func ParseBuildings(data []byte, heightKey string) (*BuildingOverlay, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("parse buildings: %w", err)
	}
	if heightKey == "" {
		heightKey = DefaultHeightProperty
	}
	o := &BuildingOverlay{}
	for _, f := range fc.Features {
		if f == nil || f.Geometry == nil {
			continue
		}
		h := f.Properties.MustFloat64(heightKey, 0)
		o.Add(f.Geometry, h)
	}
	return o, nil
}

// LoadBuildings reads a GeoJSON file from disk.
func LoadBuildings(path, heightKey string) (*BuildingOverlay, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load buildings: %w", err)
	}
	return ParseBuildings(data, heightKey)
}

// Add registers a footprint. Only polygons and multipolygons are kept.
func (o *BuildingOverlay) Add(g orb.Geometry, height float64) {
	if !(height > 0) {
		return
	}
	switch g.(type) {
	case orb.Polygon, orb.MultiPolygon:
	default:
		return
	}
	o.footprints = append(o.footprints, footprint{geom: g, bound: g.Bound(), height: height})
}

// Len reports the number of footprints.
func (o *BuildingOverlay) Len() int {
	if o == nil {
		return 0
	}
	return len(o.footprints)
}

// HeightAt returns the tallest footprint covering p, or zero.
func (o *BuildingOverlay) HeightAt(p orb.Point) float64 {
	if o == nil {
		return 0
	}
	best := 0.0
	for _, fp := range o.footprints {
		if fp.height <= best || !fp.bound.Contains(p) {
			continue
		}
		inside := false
		switch g := fp.geom.(type) {
		case orb.Polygon:
			inside = planar.PolygonContains(g, p)
		case orb.MultiPolygon:
			inside = planar.MultiPolygonContains(g, p)
		}
		if inside {
			best = fp.height
		}
	}
	return best
}
