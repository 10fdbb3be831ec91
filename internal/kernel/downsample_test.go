package kernel

import (
	"math"
	"math/rand"
	"testing"
)

func TestBlockMeanConstantInput(t *testing.T) {
	w, h, factor := 64, 64, 4
	src := make([]float64, w*h)
	for i := range src {
		src[i] = 3.5
	}
	outW, outH := w/factor, h/factor
	out := downsampleScalar(src, w, h, factor, 0, 0, outW, outH)
	for _, v := range out {
		if v != 3.5 {
			t.Fatalf("got %v, want 3.5", v)
		}
	}
}

func TestBlockMeanAllNaNBlock(t *testing.T) {
	w, h, factor := 4, 4, 4
	src := make([]float64, w*h)
	for i := range src {
		src[i] = math.NaN()
	}
	out := downsampleScalar(src, w, h, factor, 0, 0, 1, 1)
	if !math.IsNaN(out[0]) {
		t.Fatalf("got %v, want NaN", out[0])
	}
}

func TestBlockMeanMixedBlockIgnoresNaN(t *testing.T) {
	w, h, factor := 2, 2, 2
	src := []float64{1, math.NaN(), 3, math.NaN()}
	out := downsampleScalar(src, w, h, factor, 0, 0, 1, 1)
	if out[0] != 2 {
		t.Fatalf("got %v, want 2 (mean of 1 and 3)", out[0])
	}
}

func TestSIMDConsistency(t *testing.T) {
	w, h := 1024, 1024
	rng := rand.New(rand.NewSource(42))
	src := make([]float64, w*h)
	for i := range src {
		if rng.Float64() < 0.01 {
			src[i] = math.NaN()
		} else {
			src[i] = rng.Float64() * 1000
		}
	}

	for _, factor := range []int{4, 8} {
		outW, outH := w/factor, h/factor
		scalar := downsampleScalar(src, w, h, factor, 0, 0, outW, outH)
		wide := downsampleWide(src, w, h, factor, 0, 0, outW, outH, factor)

		var totalDiff float64
		for i := range scalar {
			a, b := scalar[i], wide[i]
			if math.IsNaN(a) != math.IsNaN(b) {
				t.Fatalf("factor=%d: NaN mismatch at %d: scalar=%v wide=%v", factor, i, a, b)
			}
			if math.IsNaN(a) {
				continue
			}
			diff := math.Abs(a - b)
			if diff > 1e-3 {
				t.Fatalf("factor=%d: per-pixel diff %v exceeds 1e-3 at %d", factor, diff, i)
			}
			totalDiff += diff
		}
		if totalDiff > 1e-1 {
			t.Fatalf("factor=%d: total diff %v exceeds 1e-1", factor, totalDiff)
		}
	}
}

func TestSelectPath(t *testing.T) {
	if p := SelectPath(3); p != PathScalar {
		t.Errorf("factor 3: got %v, want PathScalar", p)
	}
}
