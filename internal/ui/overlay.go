//go:build ebiten

package ui

import (
	"image/color"

	"floodsim/internal/core"
	"floodsim/internal/render"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
)

type coverageProvider interface {
	Coverage() []uint8
}

type fluxProvider interface {
	FluxOutflow() []float64
}

type terrainProvider interface {
	TerrainShade() []uint8
}

// coveragePalette is indexed by Coverage values: none, source, sink, wall.
var coveragePalette = []color.RGBA{
	{},
	{R: 40, G: 120, B: 255, A: 150},
	{R: 230, G: 60, B: 50, A: 150},
	{R: 200, G: 200, B: 200, A: 170},
}

var terrainPalette = buildTerrainPalette()

func buildTerrainPalette() []color.RGBA {
	p := make([]color.RGBA, 256)
	for i := range p {
		p[i] = elevationColor(float64(i) / 255)
	}
	return p
}

// Overlay draws optional debugging layers on top of the base simulation.
type Overlay struct {
	sim          core.Sim
	scale        int
	showCoverage bool
	showFlux     bool
	showTerrain  bool
	painter      *render.GridPainter
}

// NewOverlay constructs a new overlay instance.
func NewOverlay(sim core.Sim, scale int) *Overlay {
	size := sim.Size()
	return &Overlay{
		sim:     sim,
		scale:   scale,
		painter: render.NewGridPainter(size.W, size.H),
	}
}

// Update toggles layers from the number keys.
func (o *Overlay) Update() {
	if inpututil.IsKeyJustPressed(ebiten.KeyDigit1) {
		o.showCoverage = !o.showCoverage
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyDigit2) {
		o.showFlux = !o.showFlux
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyDigit3) {
		o.showTerrain = !o.showTerrain
	}
}

// Draw renders the enabled layers onto the provided screen.
func (o *Overlay) Draw(screen *ebiten.Image) {
	if o.showTerrain {
		if p, ok := o.sim.(terrainProvider); ok {
			o.painter.BlitPalette(screen, p.TerrainShade(), terrainPalette, o.scale)
		}
	}
	if o.showFlux {
		if p, ok := o.sim.(fluxProvider); ok {
			values := p.FluxOutflow()
			o.painter.BlitIntensity(screen, values, maxOf(values), color.RGBA{R: 255, G: 220, B: 60}, 180, o.scale)
		}
	}
	if o.showCoverage {
		if p, ok := o.sim.(coverageProvider); ok {
			o.painter.BlitPalette(screen, p.Coverage(), coveragePalette, o.scale)
		}
	}
}

func maxOf(values []float64) float64 {
	m := 0.0
	for _, v := range values {
		if v > m {
			m = v
		}
	}
	return m
}

func elevationColor(t float64) color.RGBA {
	t = clamp01(t)
	stops := []struct {
		t   float64
		col color.RGBA
	}{
		{0.0, color.RGBA{R: 40, G: 60, B: 120, A: 150}},
		{0.25, color.RGBA{R: 70, G: 105, B: 160, A: 165}},
		{0.5, color.RGBA{R: 90, G: 150, B: 100, A: 185}},
		{0.75, color.RGBA{R: 190, G: 160, B: 80, A: 205}},
		{1.0, color.RGBA{R: 240, G: 235, B: 215, A: 215}},
	}
	for i := 1; i < len(stops); i++ {
		curr := stops[i]
		if t <= curr.t {
			prev := stops[i-1]
			local := (t - prev.t) / (curr.t - prev.t)
			return lerpRGBA(prev.col, curr.col, clamp01(local))
		}
	}
	return stops[len(stops)-1].col
}

func lerpRGBA(a, b color.RGBA, t float64) color.RGBA {
	return color.RGBA{
		R: lerpComponent(a.R, b.R, t),
		G: lerpComponent(a.G, b.G, t),
		B: lerpComponent(a.B, b.B, t),
		A: lerpComponent(a.A, b.A, t),
	}
}

func lerpComponent(a, b uint8, t float64) uint8 {
	return uint8(float64(a) + (float64(b)-float64(a))*t + 0.5)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
