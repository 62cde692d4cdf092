package flood

import "math"

// Field names an encoded frame layer.
type Field string

const (
	FieldWater   Field = "water"
	FieldFlux    Field = "flux"
	FieldTerrain Field = "terrain"
)

// ParseField validates a field name.
func ParseField(s string) (Field, bool) {
	switch f := Field(s); f {
	case FieldWater, FieldFlux, FieldTerrain:
		return f, true
	}
	return "", false
}

// Channels reports how many bytes per cell the field uses.
func (f Field) Channels() int {
	if f == FieldFlux {
		return numDirs
	}
	return 1
}

// Frame is an immutable, fully stepped snapshot quantised for upload.
// Flux is interleaved per cell as N, E, S, W outflow.
type Frame struct {
	Tick       uint64
	GridSize   int
	Water      []uint8
	Flux       []uint8
	Terrain    []uint8
	TotalWater float64

	WaterMax    float64
	FluxMax     float64
	TerrainBase float64
	TerrainSpan float64
}

// Bytes returns the encoded layer and its channel count.
func (f *Frame) Bytes(field Field) ([]uint8, int) {
	switch field {
	case FieldWater:
		return f.Water, 1
	case FieldFlux:
		return f.Flux, numDirs
	case FieldTerrain:
		return f.Terrain, 1
	}
	return nil, 0
}

// ConvertMapToArray quantises values in [0, maxValue] onto [0, 255].
// Values outside the range are clamped and NaN encodes as zero.
func ConvertMapToArray(values []float64, maxValue float64) []uint8 {
	out := make([]uint8, len(values))
	for i, v := range values {
		out[i] = quantize(v, maxValue)
	}
	return out
}

// Dequantize maps an encoded byte back onto [0, maxValue].
func Dequantize(b uint8, maxValue float64) float64 {
	return float64(b) / 255 * maxValue
}

func quantize(v, maxValue float64) uint8 {
	if !(maxValue > 0) || math.IsNaN(v) || v <= 0 {
		return 0
	}
	if v >= maxValue {
		return 255
	}
	return uint8(math.Round(v / maxValue * 255))
}

// Encoder turns simulator state into frames. The terrain layer never
// changes and is encoded once.
type Encoder struct {
	waterMax    float64
	fluxMax     float64
	terrain     []uint8
	terrainBase float64
	terrainSpan float64
}

// NewEncoder prepares an encoder for the simulator's static surfaces.
// Terrain is encoded relative to its lowest cell so that ground below sea
// level keeps its relief.
func NewEncoder(s *Simulator) *Encoder {
	o := s.Options()
	surface := make([]float64, len(s.terrain))
	lo, hi := math.Inf(1), math.Inf(-1)
	for i := range surface {
		v := sanitize(s.terrain[i]) + sanitize(s.building[i])
		surface[i] = v
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if len(surface) == 0 {
		lo, hi = 0, 0
	}
	for i := range surface {
		surface[i] -= lo
	}
	return &Encoder{
		waterMax:    o.WaterEncodeMax,
		fluxMax:     o.FluxEncodeMax,
		terrain:     ConvertMapToArray(surface, hi-lo),
		terrainBase: lo,
		terrainSpan: hi - lo,
	}
}

// Encode quantises the simulator's published state.
func (e *Encoder) Encode(s *Simulator) *Frame {
	water := s.Water()
	n := len(water)
	flux := make([]uint8, n*numDirs)
	for d := 0; d < numDirs; d++ {
		f := s.Flux(d)
		for i := 0; i < n; i++ {
			flux[i*numDirs+d] = quantize(f[i], e.fluxMax)
		}
	}
	return &Frame{
		Tick:        s.Tick(),
		GridSize:    s.Mapper().Size(),
		Water:       ConvertMapToArray(water, e.waterMax),
		Flux:        flux,
		Terrain:     e.terrain,
		TotalWater:  s.TotalWater(),
		WaterMax:    e.waterMax,
		FluxMax:     e.fluxMax,
		TerrainBase: e.terrainBase,
		TerrainSpan: e.terrainSpan,
	}
}
