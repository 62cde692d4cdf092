package flood

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"

	"gopkg.in/yaml.v3"

	"floodsim/internal/terrain"
)

// Position is a geographic registry position in a scenario file.
type Position struct {
	Lon float64 `yaml:"lon"`
	Lat float64 `yaml:"lat"`
}

// TerrainSpec selects the elevation source for a scenario.
type TerrainSpec struct {
	// Source is one of flat, tiles or mbtiles.
	Source      string  `yaml:"source"`
	Height      float64 `yaml:"height"`
	URL         string  `yaml:"url"`
	Path        string  `yaml:"path"`
	Zoom        int     `yaml:"zoom"`
	Encoding    string  `yaml:"encoding"`
	Concurrency int     `yaml:"concurrency"`

	Buildings      string `yaml:"buildings"`
	HeightProperty string `yaml:"heightProperty"`
}

// Scenario bundles options, terrain and initial registry entries.
type Scenario struct {
	Options       Options     `yaml:"options"`
	Terrain       TerrainSpec `yaml:"terrain"`
	Sources       []Position  `yaml:"sources"`
	Sinks         []Position  `yaml:"sinks"`
	SeaWalls      []Position  `yaml:"seawalls"`
	RandomSources int         `yaml:"randomSources"`
	AutoStart     bool        `yaml:"autoStart"`
}

// DefaultScenario returns a flat-terrain scenario with default options.
func DefaultScenario() Scenario {
	return Scenario{Options: DefaultOptions(), Terrain: TerrainSpec{Source: "flat"}}
}

// ParseScenario decodes YAML on top of DefaultScenario.
func ParseScenario(r io.Reader) (Scenario, error) {
	sc := DefaultScenario()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&sc); err != nil && !errors.Is(err, io.EOF) {
		return Scenario{}, fmt.Errorf("parse scenario: %w", err)
	}
	if err := sc.Options.Validate(); err != nil {
		return Scenario{}, fmt.Errorf("parse scenario: %w", err)
	}
	return sc, nil
}

// LoadScenario reads a scenario file.
func LoadScenario(path string) (Scenario, error) {
	f, err := os.Open(path)
	if err != nil {
		return Scenario{}, fmt.Errorf("load scenario: %w", err)
	}
	defer f.Close()
	return ParseScenario(f)
}

// Sampler builds the terrain sampler described by the scenario. The returned
// close function releases any database handle and is never nil.
func (sc Scenario) Sampler(logger *log.Logger) (*terrain.Sampler, func() error, error) {
	noop := func() error { return nil }
	t := sc.Terrain
	s := &terrain.Sampler{Concurrency: t.Concurrency, Logger: logger}
	closer := noop
	switch t.Source {
	case "", "flat":
		s.Source = terrain.FlatSource{Height: t.Height}
	case "tiles":
		enc, err := terrain.ParseEncoding(t.Encoding)
		if err != nil {
			return nil, noop, err
		}
		src, err := terrain.NewTileSource(t.URL, t.Zoom, enc)
		if err != nil {
			return nil, noop, err
		}
		s.Source = src
	case "mbtiles":
		enc, err := terrain.ParseEncoding(t.Encoding)
		if err != nil {
			return nil, noop, err
		}
		src, err := terrain.OpenMBTiles(t.Path, t.Zoom, enc)
		if err != nil {
			return nil, noop, err
		}
		s.Source = src
		closer = src.Close
	default:
		return nil, noop, fmt.Errorf("scenario: unknown terrain source %q", t.Source)
	}
	if t.Buildings != "" {
		overlay, err := terrain.LoadBuildings(t.Buildings, t.HeightProperty)
		if err != nil {
			_ = closer()
			return nil, noop, err
		}
		s.Buildings = overlay
	}
	return s, closer, nil
}

// Apply registers the scenario's entries. Positions outside the extent are
// logged by the registry and skipped.
func (sc Scenario) Apply(e *Engine) error {
	for _, p := range sc.Sources {
		if _, err := e.AddWaterSourcePosition(p.Lon, p.Lat); err != nil && !errors.Is(err, ErrOutsideExtent) {
			return err
		}
	}
	for _, p := range sc.Sinks {
		if _, err := e.AddWaterMinusSourcePosition(p.Lon, p.Lat); err != nil && !errors.Is(err, ErrOutsideExtent) {
			return err
		}
	}
	for _, p := range sc.SeaWalls {
		if _, err := e.AddSeaWallPosition(p.Lon, p.Lat); err != nil && !errors.Is(err, ErrOutsideExtent) {
			return err
		}
	}
	for i := 0; i < sc.RandomSources; i++ {
		if _, err := e.AddRandomSourcePosition(); err != nil {
			return err
		}
	}
	return nil
}

// Build creates an engine for the scenario, samples its terrain and
// registers its entries. The engine is left initialised, or running when
// AutoStart is set.
func (sc Scenario) Build(ctx context.Context, logger *log.Logger) (*Engine, error) {
	e, err := NewEngine(Config{Options: sc.Options, Logger: logger})
	if err != nil {
		return nil, err
	}
	sampler, closeFn, err := sc.Sampler(logger)
	if err != nil {
		return nil, err
	}
	err = e.InitBase(ctx, sampler)
	if cerr := closeFn(); err == nil && cerr != nil {
		err = cerr
	}
	if err != nil {
		return nil, err
	}
	if err := sc.Apply(e); err != nil {
		return nil, err
	}
	if sc.AutoStart {
		if err := e.Start(); err != nil {
			return nil, err
		}
	}
	return e, nil
}
