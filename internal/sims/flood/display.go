package flood

import "image/color"

const (
	displayTerrainLevels = 32
	displayWaterBase     = displayTerrainLevels
	displayWaterLevels   = 32
	displayWall          = displayWaterBase + displayWaterLevels
)

var floodPalette = buildFloodPalette()

// Palette exposes the colours used to render flood cells.
func (s *Sim) Palette() []color.RGBA {
	return floodPalette
}

func buildFloodPalette() []color.RGBA {
	palette := make([]color.RGBA, displayWall+1)
	low := color.NRGBA{R: 46, G: 62, B: 34, A: 255}
	high := color.NRGBA{R: 196, G: 186, B: 160, A: 255}
	for i := 0; i < displayTerrainLevels; i++ {
		palette[i] = toRGBA(blendColors(low, high, float64(i)/float64(displayTerrainLevels-1)))
	}
	shallow := color.NRGBA{R: 120, G: 190, B: 235, A: 255}
	deep := color.NRGBA{R: 10, G: 40, B: 120, A: 255}
	for i := 0; i < displayWaterLevels; i++ {
		palette[displayWaterBase+i] = toRGBA(blendColors(shallow, deep, float64(i)/float64(displayWaterLevels-1)))
	}
	palette[displayWall] = color.RGBA{R: 150, G: 150, B: 158, A: 255}
	return palette
}

// displayIndex picks a palette entry from encoded water and terrain bytes.
func displayIndex(water, ground uint8, wall bool) uint8 {
	if water > 0 {
		level := int(water) * displayWaterLevels / 256
		return uint8(displayWaterBase + level)
	}
	if wall {
		return displayWall
	}
	return uint8(int(ground) * displayTerrainLevels / 256)
}

func toRGBA(c color.NRGBA) color.RGBA {
	return color.RGBA{R: c.R, G: c.G, B: c.B, A: c.A}
}

func blendColors(base, overlay color.NRGBA, overlayWeight float64) color.NRGBA {
	if overlayWeight <= 0 {
		return base
	}
	if overlayWeight >= 1 {
		return overlay
	}
	inv := 1 - overlayWeight
	return color.NRGBA{
		R: uint8(float64(base.R)*inv + float64(overlay.R)*overlayWeight),
		G: uint8(float64(base.G)*inv + float64(overlay.G)*overlayWeight),
		B: uint8(float64(base.B)*inv + float64(overlay.B)*overlayWeight),
		A: 255,
	}
}
