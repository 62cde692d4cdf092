package render

import (
	"image/color"
	"testing"
)

func TestFillPaletteClampsIndex(t *testing.T) {
	palette := []color.RGBA{{R: 1, A: 255}, {G: 2, A: 255}}
	buf := make([]byte, 4*3)
	FillPalette(buf, []uint8{0, 1, 9}, palette)
	want := []byte{1, 0, 0, 255, 0, 2, 0, 255, 0, 2, 0, 255}
	for i := range want {
		if buf[i] != want[i] {
			t.Fatalf("byte %d = %d, want %d (buf %v)", i, buf[i], want[i], buf)
		}
	}
}

func TestFillPaletteEmptyClears(t *testing.T) {
	buf := []byte{9, 9, 9, 9, 9, 9, 9, 9}
	FillPalette(buf, []uint8{3, 4}, nil)
	for i, b := range buf {
		if b != 0 {
			t.Fatalf("byte %d not cleared: %v", i, buf)
		}
	}
}

func TestFillIntensity(t *testing.T) {
	tint := color.RGBA{R: 200, G: 100, B: 50}
	buf := make([]byte, 4*4)
	FillIntensity(buf, []float64{0, 0.5, 1, 4}, 1, tint, 140)

	if buf[3] != 0 {
		t.Fatalf("zero value should be transparent, alpha %d", buf[3])
	}
	if buf[7] == 0 || buf[7] >= buf[11] {
		t.Fatalf("alpha should grow with intensity: %d then %d", buf[7], buf[11])
	}
	if buf[11] != 140 || buf[8] != 200 {
		t.Fatalf("full intensity pixel %v", buf[8:12])
	}
	for i := 12; i < 16; i++ {
		if buf[i] != buf[i-4] {
			t.Fatalf("values above max should clamp: %v", buf)
		}
	}
}

func TestFillIntensityZeroMax(t *testing.T) {
	buf := []byte{1, 1, 1, 1}
	FillIntensity(buf, []float64{5}, 0, color.RGBA{R: 255}, 255)
	if buf[3] != 0 {
		t.Fatalf("zero max should leave pixels transparent, got %v", buf)
	}
}
