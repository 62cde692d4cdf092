//go:build ebiten

package app

import (
	"fmt"

	"floodsim/internal/render"
	"floodsim/internal/sims/flood"
	"floodsim/internal/ui"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
)

// Game adapts a flood simulation to the ebiten.Game interface.
type Game struct {
	sim     *flood.Sim
	painter *render.GridPainter
	overlay *ui.Overlay
	hud     *ui.HUD

	scale int
	panel int
}

// New constructs a Game for the provided simulation.
func New(sim *flood.Sim, scale, panel int) *Game {
	size := sim.Size()
	return &Game{
		sim:     sim,
		painter: render.NewGridPainter(size.W, size.H),
		overlay: ui.NewOverlay(sim, scale),
		hud:     ui.NewHUD(sim, panel),
		scale:   scale,
		panel:   panel,
	}
}

// Update handles input. The engine loop advances the simulation on its own
// goroutine while running.
func (g *Game) Update() error {
	e := g.sim.Engine()
	if inpututil.IsKeyJustPressed(ebiten.KeyQ) || inpututil.IsKeyJustPressed(ebiten.KeyEscape) {
		e.Stop()
		return ebiten.Termination
	}
	if inpututil.IsKeyJustPressed(ebiten.KeySpace) {
		if e.Info().Status == flood.StatusRunning {
			e.Stop()
		} else if err := e.Start(); err != nil {
			g.hud.SetStatus(err.Error())
		}
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyN) {
		g.sim.Step()
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyR) {
		g.sim.Reset(0)
	}
	g.handleClick()

	g.overlay.Update()
	g.hud.Update()
	return nil
}

func (g *Game) handleClick() {
	left := inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonLeft)
	right := inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonRight)
	if !left && !right {
		return
	}
	mx, my := ebiten.CursorPosition()
	idx, ok := g.sim.GridIndex(mx/g.scale, my/g.scale)
	if !ok {
		return
	}
	e := g.sim.Engine()
	center, ok := e.Mapper().CalcCellCenterPosition(idx)
	if !ok {
		return
	}
	add := e.AddWaterSourcePosition
	switch {
	case right:
		add = e.AddWaterMinusSourcePosition
	case ebiten.IsKeyPressed(ebiten.KeyShift):
		add = e.AddSeaWallPosition
	}
	entry, err := add(center.Lon(), center.Lat())
	if err != nil {
		g.hud.SetStatus(err.Error())
		return
	}
	g.hud.SetStatus(fmt.Sprintf("%s at cell %d", entry.Kind, entry.Cell))
}

// Draw renders the current simulation state.
func (g *Game) Draw(screen *ebiten.Image) {
	g.painter.BlitPalette(screen, g.sim.Cells(), g.sim.Palette(), g.scale)
	g.overlay.Draw(screen)
	g.hud.Draw(screen, g.sim.Size().W*g.scale, g.scale)
}

// Layout returns the logical screen size.
func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	s := g.sim.Size()
	return s.W*g.scale + g.panel, s.H * g.scale
}
