package flood

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"
)

// ErrInvalidOptions reports option values the simulator cannot run with.
var ErrInvalidOptions = errors.New("flood: invalid options")

// Options configures the grid, the numerical scheme and the forcing terms.
// Options are fixed once the engine is initialised.
type Options struct {
	CellSize  float64       `yaml:"cellSize" json:"cellSize"`
	GridSize  int           `yaml:"gridSize" json:"gridSize"`
	MaxHeight float64       `yaml:"maxHeight" json:"maxHeight"`
	MaxFlux   float64       `yaml:"maxFlux" json:"maxFlux"`
	Interval  time.Duration `yaml:"interval" json:"interval"`

	Gravity         float64 `yaml:"gravity" json:"gravity"`
	TimeStep        float64 `yaml:"timeStep" json:"timeStep"`
	WaterDensity    float64 `yaml:"waterDensity" json:"waterDensity"`
	CushionFactor   float64 `yaml:"cushionFactor" json:"cushionFactor"`
	EvaporationRate float64 `yaml:"evaporationRate" json:"evaporationRate"`

	RainAmount           float64 `yaml:"rainAmount" json:"rainAmount"`
	RainMaxPrecipitation float64 `yaml:"rainMaxPrecipitation" json:"rainMaxPrecipitation"`
	RainFalloff          float64 `yaml:"rainFalloff" json:"rainFalloff"`

	WaterSourceAmount      float64 `yaml:"waterSourceAmount" json:"waterSourceAmount"`
	WaterSourceArea        float64 `yaml:"waterSourceArea" json:"waterSourceArea"`
	WaterMinusSourceAmount float64 `yaml:"waterMinusSourceAmount" json:"waterMinusSourceAmount"`
	WaterMinusSourceArea   float64 `yaml:"waterMinusSourceArea" json:"waterMinusSourceArea"`
	WaterSeawallHeight     float64 `yaml:"waterSeawallHeight" json:"waterSeawallHeight"`
	WaterSeawallArea       float64 `yaml:"waterSeawallArea" json:"waterSeawallArea"`

	SimulationConfine bool `yaml:"simulationConfine" json:"simulationConfine"`

	CenterLon float64 `yaml:"centerLon" json:"centerLon"`
	CenterLat float64 `yaml:"centerLat" json:"centerLat"`

	// WaterEncodeMax and FluxEncodeMax map onto byte 255 in encoded frames.
	WaterEncodeMax float64 `yaml:"waterEncodeMax" json:"waterEncodeMax"`
	FluxEncodeMax  float64 `yaml:"fluxEncodeMax" json:"fluxEncodeMax"`

	Seed int64 `yaml:"seed" json:"seed"`
}

// DefaultOptions returns the standard configuration.
func DefaultOptions() Options {
	return Options{
		CellSize:  1,
		GridSize:  512,
		MaxHeight: 10000,
		MaxFlux:   10000,
		Interval:  time.Second / 60,

		Gravity:         9.80665,
		TimeStep:        0.1,
		WaterDensity:    998,
		CushionFactor:   0.998,
		EvaporationRate: 0.0001,

		RainAmount:           1,
		RainMaxPrecipitation: 0,
		RainFalloff:          0.25,

		WaterSourceAmount:      5,
		WaterSourceArea:        1,
		WaterMinusSourceAmount: 5,
		WaterMinusSourceArea:   2,
		WaterSeawallHeight:     50,
		WaterSeawallArea:       4,

		WaterEncodeMax: 10,
		FluxEncodeMax:  10,

		Seed: 1337,
	}
}

// With returns a copy of o with the key/value overrides applied. Unknown keys
// and unparsable values are ignored.
func (o Options) With(cfg map[string]string) Options {
	if cfg == nil {
		return o
	}
	positive := func(v float64) bool { return v > 0 }
	nonNegative := func(v float64) bool { return v >= 0 }
	fraction := func(v float64) bool { return v >= 0 && v <= 1 }

	setFloat(cfg, "cell_size", &o.CellSize, positive)
	setInt(cfg, "grid_size", &o.GridSize)
	setFloat(cfg, "max_height", &o.MaxHeight, positive)
	setFloat(cfg, "max_flux", &o.MaxFlux, positive)
	if v, ok := cfg["interval_ms"]; ok {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil && parsed > 0 {
			o.Interval = time.Duration(parsed * float64(time.Millisecond))
		}
	}
	if v, ok := cfg["interval"]; ok {
		if parsed, err := time.ParseDuration(v); err == nil && parsed > 0 {
			o.Interval = parsed
		}
	}

	setFloat(cfg, "gravity", &o.Gravity, positive)
	setFloat(cfg, "time_step", &o.TimeStep, positive)
	setFloat(cfg, "water_density", &o.WaterDensity, positive)
	setFloat(cfg, "cushion_factor", &o.CushionFactor, nonNegative)
	setFloat(cfg, "evaporation_rate", &o.EvaporationRate, fraction)

	setFloat(cfg, "rain_amount", &o.RainAmount, nonNegative)
	setFloat(cfg, "rain_max_precipitation", &o.RainMaxPrecipitation, nonNegative)
	setFloat(cfg, "rain_falloff", &o.RainFalloff, fraction)

	setFloat(cfg, "source_amount", &o.WaterSourceAmount, nonNegative)
	setFloat(cfg, "source_area", &o.WaterSourceArea, nonNegative)
	setFloat(cfg, "sink_amount", &o.WaterMinusSourceAmount, nonNegative)
	setFloat(cfg, "sink_area", &o.WaterMinusSourceArea, nonNegative)
	setFloat(cfg, "seawall_height", &o.WaterSeawallHeight, nonNegative)
	setFloat(cfg, "seawall_area", &o.WaterSeawallArea, nonNegative)

	if v, ok := cfg["confine"]; ok {
		if parsed, err := strconv.ParseBool(v); err == nil {
			o.SimulationConfine = parsed
		}
	}

	setFloat(cfg, "center_lon", &o.CenterLon, func(v float64) bool { return v >= -180 && v <= 180 })
	setFloat(cfg, "center_lat", &o.CenterLat, func(v float64) bool { return v >= -85 && v <= 85 })
	setFloat(cfg, "water_encode_max", &o.WaterEncodeMax, positive)
	setFloat(cfg, "flux_encode_max", &o.FluxEncodeMax, positive)

	if v, ok := cfg["seed"]; ok {
		if parsed, err := strconv.ParseInt(v, 10, 64); err == nil {
			o.Seed = parsed
		}
	}
	return o
}

func setFloat(cfg map[string]string, key string, dst *float64, valid func(float64) bool) {
	v, ok := cfg[key]
	if !ok {
		return
	}
	parsed, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(parsed) || math.IsInf(parsed, 0) {
		return
	}
	if valid != nil && !valid(parsed) {
		return
	}
	*dst = parsed
}

func setInt(cfg map[string]string, key string, dst *int) {
	if v, ok := cfg[key]; ok {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			*dst = parsed
		}
	}
}

// Validate reports the first option that would break the simulator.
func (o Options) Validate() error {
	finite := func(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
	switch {
	case o.GridSize <= 0:
		return fmt.Errorf("%w: gridSize %d must be positive", ErrInvalidOptions, o.GridSize)
	case !(o.CellSize > 0) || !finite(o.CellSize):
		return fmt.Errorf("%w: cellSize %g must be positive", ErrInvalidOptions, o.CellSize)
	case !(o.TimeStep > 0) || !finite(o.TimeStep):
		return fmt.Errorf("%w: timeStep %g must be positive", ErrInvalidOptions, o.TimeStep)
	case !(o.MaxHeight > 0):
		return fmt.Errorf("%w: maxHeight %g must be positive", ErrInvalidOptions, o.MaxHeight)
	case !(o.MaxFlux > 0):
		return fmt.Errorf("%w: maxFlux %g must be positive", ErrInvalidOptions, o.MaxFlux)
	case !(o.Gravity >= 0) || !finite(o.Gravity):
		return fmt.Errorf("%w: gravity %g", ErrInvalidOptions, o.Gravity)
	case !(o.CushionFactor >= 0) || !finite(o.CushionFactor):
		return fmt.Errorf("%w: cushionFactor %g", ErrInvalidOptions, o.CushionFactor)
	case !(o.EvaporationRate >= 0 && o.EvaporationRate <= 1):
		return fmt.Errorf("%w: evaporationRate %g outside [0,1]", ErrInvalidOptions, o.EvaporationRate)
	case !(o.RainFalloff >= 0 && o.RainFalloff <= 1):
		return fmt.Errorf("%w: rainFalloff %g outside [0,1]", ErrInvalidOptions, o.RainFalloff)
	case !(o.WaterEncodeMax > 0) || !(o.FluxEncodeMax > 0):
		return fmt.Errorf("%w: encode maxima must be positive", ErrInvalidOptions)
	}
	return nil
}

// CellArea returns the plan area of one cell in square meters.
func (o Options) CellArea() float64 { return o.CellSize * o.CellSize }

// StabilityNumber is 2·g·dt²/L, the squared frequency of the fastest
// checkerboard mode in units of the explicit update's limit. At or above
// one that mode grows each tick until the outflow limiter and clamps hold it.
func (o Options) StabilityNumber() float64 {
	if !(o.CellSize > 0) {
		return math.Inf(1)
	}
	return 2 * o.Gravity * o.TimeStep * o.TimeStep / o.CellSize
}
