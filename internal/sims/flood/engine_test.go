package flood

import (
	"bytes"
	"context"
	"errors"
	"log"
	"os"
	"path/filepath"
	"testing"
	"time"

	"floodsim/internal/core"
	"floodsim/internal/terrain"
)

func newTestEngine(t *testing.T, o Options) (*Engine, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	e, err := NewEngine(Config{Options: o, Logger: log.New(&buf, "", 0)})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return e, &buf
}

func TestEngineLifecycle(t *testing.T) {
	o := testOptions(8)
	e, _ := newTestEngine(t, o)
	if got := e.Info().Status; got != StatusIdle {
		t.Fatalf("new engine status %s", got)
	}
	if err := e.Start(); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("start while idle: %v", err)
	}
	if _, err := e.AddWaterSourcePosition(0, 0); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("registry while idle: %v", err)
	}
	if err := e.Clear(); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("clear while idle: %v", err)
	}
	e.Stop()

	if err := e.InitBase(context.Background(), nil); err != nil {
		t.Fatalf("init base: %v", err)
	}
	if err := e.InitBase(context.Background(), nil); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("second init: %v", err)
	}
	if info := e.Info(); info.Status != StatusInitialized || info.Tick != 0 {
		t.Fatalf("after init: %+v", info)
	}
	if e.Frame() == nil {
		t.Fatal("init should publish an initial frame")
	}
	if err := e.Step(); err != nil {
		t.Fatalf("manual step: %v", err)
	}
	if e.Info().Tick != 1 {
		t.Fatalf("manual step should advance the tick, got %d", e.Info().Tick)
	}

	if err := e.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := e.Start(); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("double start: %v", err)
	}
	if err := e.Step(); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("manual step while running: %v", err)
	}
	e.Stop()
	e.Stop()
	if got := e.Info().Status; got != StatusStopped {
		t.Fatalf("after stop: %s", got)
	}
	if _, err := e.AddSeaWallPosition(0, 0); err != nil {
		t.Fatalf("registry while stopped: %v", err)
	}
	if err := e.Start(); err != nil {
		t.Fatalf("restart from stopped: %v", err)
	}
	if err := e.Clear(); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if got := e.Info().Status; got != StatusIdle {
		t.Fatalf("after clear: %s", got)
	}
	if e.Frame() != nil || e.Mapper() != nil {
		t.Fatal("clear should discard grid state")
	}
	if err := e.InitBase(context.Background(), nil); err != nil {
		t.Fatalf("re-init after clear: %v", err)
	}
}

func TestEngineRunsAndPublishesFrames(t *testing.T) {
	o := testOptions(8)
	o.Interval = time.Millisecond
	e, _ := newTestEngine(t, o)
	if err := e.InitBase(context.Background(), nil); err != nil {
		t.Fatalf("init base: %v", err)
	}
	centre, _ := e.Mapper().CalcCellCenterPosition(4*8 + 4)
	if _, err := e.AddWaterSourcePosition(centre.Lon(), centre.Lat()); err != nil {
		t.Fatalf("add source: %v", err)
	}
	frames, cancel := e.Subscribe(4)
	defer cancel()

	if err := e.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	deadline := time.After(3 * time.Second)
	for got := 0; got < 5; {
		select {
		case f := <-frames:
			if f == nil || len(f.Water) != 64 {
				t.Fatalf("unexpected frame %+v", f)
			}
			got++
		case <-deadline:
			t.Fatalf("only received %d frames", got)
		}
	}
	e.Stop()
	info := e.Info()
	if info.Status != StatusStopped || info.Tick < 5 {
		t.Fatalf("after run: %+v", info)
	}
	if !(info.TotalWater > 0) {
		t.Fatalf("source should have added water, total %v", info.TotalWater)
	}
	time.Sleep(10 * time.Millisecond)
	if e.Info().Tick != info.Tick {
		t.Fatal("engine stepped after stop")
	}
}

func TestEngineResetFrameIsNotOverwritten(t *testing.T) {
	o := testOptions(8)
	o.Interval = time.Millisecond
	e, _ := newTestEngine(t, o)
	if err := e.InitBase(context.Background(), nil); err != nil {
		t.Fatalf("init base: %v", err)
	}
	if err := e.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer e.Stop()

	for round := 0; round < 10; round++ {
		deadline := time.Now().Add(3 * time.Second)
		for e.Info().Tick < 50 {
			if time.Now().After(deadline) {
				t.Fatalf("round %d: loop stalled at tick %d", round, e.Info().Tick)
			}
			time.Sleep(time.Millisecond)
		}
		if err := e.Reset(); err != nil {
			t.Fatalf("reset: %v", err)
		}
		if tick := e.Frame().Tick; tick >= 50 {
			t.Fatalf("round %d: frame from before the reset published after it (tick %d)", round, tick)
		}
	}
}

func TestEngineRejectsOutOfExtentPositions(t *testing.T) {
	e, logs := newTestEngine(t, testOptions(8))
	if err := e.InitBase(context.Background(), nil); err != nil {
		t.Fatalf("init base: %v", err)
	}
	if _, err := e.AddWaterMinusSourcePosition(90, 45); !errors.Is(err, ErrOutsideExtent) {
		t.Fatalf("expected ErrOutsideExtent, got %v", err)
	}
	if !bytes.Contains(logs.Bytes(), []byte("outside the simulation extent")) {
		t.Fatalf("rejection should be logged, got %q", logs.String())
	}
	if entries, _ := e.Entries(KindSink); len(entries) != 0 {
		t.Fatalf("rejected entry was stored: %+v", entries)
	}
}

func TestEngineSamplesTerrain(t *testing.T) {
	o := testOptions(4)
	e, _ := newTestEngine(t, o)
	sampler := &terrain.Sampler{Source: terrain.FlatSource{Height: 12}}
	if err := e.InitBase(context.Background(), sampler); err != nil {
		t.Fatalf("init base: %v", err)
	}
	h := e.Heights()
	if h == nil || h.MaxTerrain() != 12 {
		t.Fatalf("expected sampled terrain of 12m, got %+v", h)
	}
}

func TestEngineWarnsWhenUnstable(t *testing.T) {
	o := testOptions(4)
	o.TimeStep = 1
	e, logs := newTestEngine(t, o)
	if err := e.InitBase(context.Background(), nil); err != nil {
		t.Fatalf("init base: %v", err)
	}
	if !bytes.Contains(logs.Bytes(), []byte("stability number")) {
		t.Fatalf("expected a stability warning, got %q", logs.String())
	}
}

func TestFloodSimRegistered(t *testing.T) {
	factory, ok := core.Sims()["flood"]
	if !ok {
		t.Fatal("flood sim not registered")
	}
	sim, err := factory(map[string]string{"grid_size": "16"})
	if err != nil {
		t.Fatalf("factory: %v", err)
	}
	if sz := sim.Size(); sz.W != 16 || sz.H != 16 {
		t.Fatalf("unexpected size %+v", sz)
	}
	fs := sim.(*Sim)
	centre, _ := fs.Engine().Mapper().CalcCellCenterPosition(8*16 + 8)
	if _, err := fs.Engine().AddWaterSourcePosition(centre.Lon(), centre.Lat()); err != nil {
		t.Fatalf("add source: %v", err)
	}
	if _, err := fs.Engine().AddSeaWallPosition(centre.Lon(), centre.Lat()); err != nil {
		t.Fatalf("add wall: %v", err)
	}
	for i := 0; i < 5; i++ {
		sim.Step()
	}
	cells := sim.Cells()
	palette := fs.Palette()
	wet := 0
	for _, c := range cells {
		if int(c) >= len(palette) {
			t.Fatalf("cell value %d outside palette", c)
		}
		if c >= displayWaterBase && c < displayWall {
			wet++
		}
	}
	if wet == 0 {
		t.Fatal("expected wet cells after stepping a source")
	}
	if p, ok := fs.Parameters().Lookup("grid_size"); !ok || p.Value != "16" {
		t.Fatalf("grid_size parameter %+v", p)
	}
	cov := fs.Coverage()
	idx, _ := fs.GridIndex(8, 16-1-8)
	x, y := fs.Engine().Mapper().Coords(idx)
	if x != 8 || y != 8 || cov[(16-1-8)*16+8] != uint8(KindSeaWall)+1 {
		t.Fatalf("coverage at the wall cell = %d", cov[(16-1-8)*16+8])
	}
	sim.Reset(0)
	if fs.Engine().Info().TotalWater != 0 {
		t.Fatal("reset should drain the water")
	}
}

func TestFloodSimFactoryLoadsScenario(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	doc := "options:\n  gridSize: 32\n  interval: 5ms\nterrain:\n  source: flat\nrandomSources: 2\n"
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("write scenario: %v", err)
	}
	sim, err := core.Open("flood", map[string]string{
		KeyScenario: path,
		KeyRun:      "true",
		"grid_size": "12",
	})
	if err != nil {
		t.Fatalf("factory: %v", err)
	}
	e := sim.(*Sim).Engine()
	defer e.Stop()
	if sz := sim.Size(); sz.W != 12 {
		t.Fatalf("overrides should win over the scenario, got size %+v", sz)
	}
	if e.Options().Interval != 5*time.Millisecond {
		t.Fatalf("scenario interval not applied: %v", e.Options().Interval)
	}
	if e.Info().Status != StatusRunning {
		t.Fatalf("run=true should start the engine, got %s", e.Info().Status)
	}
	if srcs, _ := e.Entries(KindSource); len(srcs) != 2 {
		t.Fatalf("expected the scenario's 2 random sources, got %d", len(srcs))
	}

	if _, err := core.Open("flood", map[string]string{KeyScenario: filepath.Join(t.TempDir(), "missing.yaml")}); err == nil {
		t.Fatal("a missing scenario file should fail")
	}
}
