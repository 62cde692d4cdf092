//go:build ebiten

package main

import (
	"errors"
	"flag"
	"log"
	"strconv"

	"floodsim/internal/app"
	"floodsim/internal/core"
	"floodsim/internal/sims/flood"

	"github.com/hajimehoshi/ebiten/v2"
)

func main() {
	cfg := app.NewConfig()
	cfg.Bind(flag.CommandLine)
	flag.Parse()

	opts := cfg.Set.Map()
	opts[flood.KeyScenario] = cfg.Scenario
	opts[flood.KeyRun] = strconv.FormatBool(cfg.Run)
	registered, err := core.Open("flood", opts)
	if err != nil {
		log.Fatalf("init: %v", err)
	}
	sim := registered.(*flood.Sim)
	defer sim.Engine().Stop()

	game := app.New(sim, cfg.Scale, cfg.Panel)
	size := sim.Size()

	ebiten.SetWindowTitle("floodsim - " + sim.Name())
	ebiten.SetTPS(cfg.TPS)
	ebiten.SetWindowSize(size.W*cfg.Scale+cfg.Panel, size.H*cfg.Scale)

	if err := ebiten.RunGame(game); err != nil && !errors.Is(err, ebiten.Termination) {
		log.Fatal(err)
	}
}
