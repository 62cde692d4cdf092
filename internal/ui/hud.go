//go:build ebiten

package ui

import (
	"fmt"
	"image/color"
	"strings"

	"floodsim/internal/core"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/text"
	"golang.org/x/image/font/basicfont"
)

// HUD renders the parameter panel to the right of the simulation view.
type HUD struct {
	sim        core.Sim
	provider   core.ParameterProvider
	width      int
	panel      *ebiten.Image
	lastHeight int
	snapshot   core.ParameterSnapshot
	title      string
	status     string
}

// NewHUD constructs a HUD for the provided simulation and panel width.
func NewHUD(sim core.Sim, width int) *HUD {
	if width < 0 {
		width = 0
	}
	h := &HUD{sim: sim, width: width, title: buildTitle(sim)}
	if provider, ok := sim.(core.ParameterProvider); ok {
		h.provider = provider
	}
	return h
}

// SetStatus sets a one-line message shown under the parameters.
func (h *HUD) SetStatus(msg string) {
	if h != nil {
		h.status = msg
	}
}

// Update refreshes the cached parameter snapshot from the simulation.
func (h *HUD) Update() {
	if h == nil || h.provider == nil {
		return
	}
	h.snapshot = h.provider.Parameters()
}

// Draw paints the HUD panel anchored at offsetX.
func (h *HUD) Draw(screen *ebiten.Image, offsetX int, scale int) {
	if h == nil || h.width <= 0 {
		return
	}
	if scale <= 0 {
		scale = 1
	}
	height := h.sim.Size().H * scale
	if height <= 0 {
		return
	}
	if h.panel == nil || h.panel.Bounds().Dx() != h.width || h.lastHeight != height {
		h.panel = ebiten.NewImage(h.width, height)
		h.lastHeight = height
	}
	h.panel.Fill(color.RGBA{R: 16, G: 16, B: 20, A: 255})
	h.drawParameters()
	op := &ebiten.DrawImageOptions{}
	op.GeoM.Translate(float64(offsetX), 0)
	screen.DrawImage(h.panel, op)
}

func buildTitle(sim core.Sim) string {
	if sim == nil || sim.Name() == "" {
		return "Parameters"
	}
	return fmt.Sprintf("%s Parameters", strings.ToUpper(sim.Name()[:1])+sim.Name()[1:])
}

var (
	titleColor = color.RGBA{R: 200, G: 200, B: 210, A: 255}
	groupColor = color.RGBA{R: 140, G: 180, B: 230, A: 255}
	labelColor = color.RGBA{R: 220, G: 220, B: 230, A: 255}
	dimColor   = color.RGBA{R: 160, G: 160, B: 170, A: 255}
)

func (h *HUD) drawParameters() {
	face := basicfont.Face7x13
	y := panelPadding + headerBaseline
	text.Draw(h.panel, h.title, face, panelPadding, y, titleColor)
	if len(h.snapshot.Groups) == 0 {
		text.Draw(h.panel, "No parameters", face, panelPadding, y+lineHeight, dimColor)
		return
	}
	for _, group := range h.snapshot.Groups {
		y += groupSpacing
		text.Draw(h.panel, group.Name, face, panelPadding, y, groupColor)
		for _, param := range group.Params {
			y += lineHeight
			text.Draw(h.panel, param.Label, face, panelPadding, y, labelColor)
			value := param.Value
			w := text.BoundString(face, value).Dx()
			text.Draw(h.panel, value, face, h.width-panelPadding-w, y, labelColor)
		}
	}
	y += groupSpacing
	for _, line := range strings.Split(helpText, "\n") {
		text.Draw(h.panel, line, face, panelPadding, y, dimColor)
		y += lineHeight
	}
	if h.status != "" {
		text.Draw(h.panel, h.status, face, panelPadding, y+lineHeight, labelColor)
	}
}

const helpText = "space run/pause  n step  r reset\nclick source  right sink  shift wall\n1 coverage  2 flux  3 terrain"

const (
	panelPadding   = 12
	lineHeight     = 16
	groupSpacing   = 26
	headerBaseline = 18
)
