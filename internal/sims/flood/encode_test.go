package flood

import (
	"math"
	"math/rand/v2"
	"testing"
)

func TestConvertMapToArrayWithinOneStep(t *testing.T) {
	const max = 10.0
	rng := rand.New(rand.NewPCG(5, 8))
	values := make([]float64, 2048)
	for i := range values {
		values[i] = rng.Float64() * max
	}
	encoded := ConvertMapToArray(values, max)
	step := max / 255
	for i, v := range values {
		if got := Dequantize(encoded[i], max); math.Abs(got-v) > step/2+1e-12 {
			t.Fatalf("value %v decoded as %v, beyond half a quantisation step", v, got)
		}
	}
}

func TestConvertMapToArrayClampsOutOfRange(t *testing.T) {
	in := []float64{-3, 0, 5, 10, 25, math.NaN(), math.Inf(1), math.Inf(-1)}
	want := []uint8{0, 0, 128, 255, 255, 0, 255, 0}
	got := ConvertMapToArray(in, 10)
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("input %v encoded as %d, want %d", in[i], got[i], want[i])
		}
	}
	for _, b := range ConvertMapToArray([]float64{1, 2}, 0) {
		if b != 0 {
			t.Fatal("a zero maximum should encode everything as 0")
		}
	}
}

func TestEncoderLayout(t *testing.T) {
	o := testOptions(4)
	terrain := make([]float64, 16)
	for i := range terrain {
		terrain[i] = -5 + float64(i)
	}
	s := newTestSimulator(t, o, terrain)
	centre := cell(t, s, 2, 2)
	s.SetWater(centre, 4)
	s.Step(nil, 0)
	enc := NewEncoder(s)
	f := enc.Encode(s)

	if len(f.Water) != 16 || len(f.Terrain) != 16 || len(f.Flux) != 16*numDirs {
		t.Fatalf("unexpected frame sizes water=%d terrain=%d flux=%d", len(f.Water), len(f.Terrain), len(f.Flux))
	}
	if f.Tick != 1 || f.GridSize != 4 {
		t.Fatalf("frame metadata tick=%d size=%d", f.Tick, f.GridSize)
	}
	if f.TerrainBase != -5 || f.TerrainSpan != 15 {
		t.Fatalf("terrain range base=%v span=%v", f.TerrainBase, f.TerrainSpan)
	}
	if f.Terrain[0] != 0 || f.Terrain[15] != 255 {
		t.Fatalf("terrain should span the byte range, got %d..%d", f.Terrain[0], f.Terrain[15])
	}
	for d := 0; d < numDirs; d++ {
		v := s.Flux(d)[centre]
		want := quantize(v, o.FluxEncodeMax)
		if got := f.Flux[centre*numDirs+d]; got != want {
			t.Fatalf("flux channel %d encoded %d, want %d", d, got, want)
		}
	}
	if data, ch := f.Bytes(FieldFlux); ch != 4 || len(data) != len(f.Flux) {
		t.Fatalf("flux layer reported %d channels", ch)
	}
	if _, ok := ParseField("pressure"); ok {
		t.Fatal("unknown field should not parse")
	}
	if math.Abs(f.TotalWater-s.TotalWater()) > 1e-12 {
		t.Fatalf("frame total %v, simulator %v", f.TotalWater, s.TotalWater())
	}
}
