// Package terrain samples ground elevation and building heights onto the
// simulation grid.
package terrain

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/png"
	"strings"

	"github.com/chai2010/webp"
)

// ErrTileNotFound reports a missing raster tile for a lookup.
var ErrTileNotFound = errors.New("terrain: tile not found")

// ElevationSource resolves the ground elevation in meters at a position.
type ElevationSource interface {
	Elevation(ctx context.Context, lon, lat float64) (float64, error)
}

// SourceFunc adapts a function to the ElevationSource interface.
type SourceFunc func(ctx context.Context, lon, lat float64) (float64, error)

// Elevation calls f.
func (f SourceFunc) Elevation(ctx context.Context, lon, lat float64) (float64, error) {
	return f(ctx, lon, lat)
}

// FlatSource reports the same elevation everywhere.
type FlatSource struct {
	Height float64
}

// Elevation implements ElevationSource.
func (f FlatSource) Elevation(context.Context, float64, float64) (float64, error) {
	return f.Height, nil
}

// Encoding selects how a terrain-RGB pixel maps to meters.
type Encoding int

const (
	// EncodingMapbox is height = (R*65536 + G*256 + B) * 0.1 - 10000.
	EncodingMapbox Encoding = iota
	// EncodingTerrarium is height = R*256 + G + B/256 - 32768.
	EncodingTerrarium
)

// ParseEncoding maps a configuration string onto an Encoding.
func ParseEncoding(s string) (Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "mapbox", "terrain-rgb":
		return EncodingMapbox, nil
	case "terrarium":
		return EncodingTerrarium, nil
	default:
		return 0, fmt.Errorf("terrain: unknown encoding %q", s)
	}
}

func (e Encoding) String() string {
	if e == EncodingTerrarium {
		return "terrarium"
	}
	return "mapbox"
}

// Height decodes an RGB triple.
func (e Encoding) Height(r, g, b uint8) float64 {
	if e == EncodingTerrarium {
		return float64(r)*256 + float64(g) + float64(b)/256 - 32768
	}
	return (float64(r)*65536+float64(g)*256+float64(b))*0.1 - 10000
}

// decodeImage tries WebP first and falls back to the registered stdlib
// decoders.
func decodeImage(data []byte) (image.Image, string, error) {
	if img, err := webp.Decode(bytes.NewReader(data)); err == nil {
		return img, "webp", nil
	}
	if img, format, err := image.Decode(bytes.NewReader(data)); err == nil {
		return img, format, nil
	}
	return nil, "unknown", errors.New("terrain: unrecognised tile image format")
}

func rgbAt(c color.Color) (r, g, b uint8) {
	switch px := c.(type) {
	case color.NRGBA:
		return px.R, px.G, px.B
	case color.RGBA:
		return px.R, px.G, px.B
	default:
		r32, g32, b32, _ := c.RGBA()
		return uint8(r32 >> 8), uint8(g32 >> 8), uint8(b32 >> 8)
	}
}

// samplePixel reads the elevation under the fractional tile position
// (fx, fy) where the integer parts address the tile itself.
func samplePixel(img image.Image, enc Encoding, fx, fy float64) float64 {
	b := img.Bounds()
	px := b.Min.X + int(fx*float64(b.Dx()))
	py := b.Min.Y + int(fy*float64(b.Dy()))
	if px < b.Min.X {
		px = b.Min.X
	}
	if py < b.Min.Y {
		py = b.Min.Y
	}
	if px >= b.Max.X {
		px = b.Max.X - 1
	}
	if py >= b.Max.Y {
		py = b.Max.Y - 1
	}
	r, g, bl := rgbAt(img.At(px, py))
	return enc.Height(r, g, bl)
}
