package kernel

import (
	"math"
	"math/rand"
	"testing"
)

func TestZFPRoundTripErrorBound(t *testing.T) {
	w, h := 32, 32
	rng := rand.New(rand.NewSource(7))
	plane := make([]float64, w*h)
	for i := range plane {
		plane[i] = rng.Float64()*100 - 50
	}

	precision := 16
	encoded := CompressZFP(plane, w, h, precision)
	decoded, gotW, gotH, err := DecompressZFP(encoded)
	if err != nil {
		t.Fatalf("DecompressZFP: %v", err)
	}
	if gotW != w || gotH != h {
		t.Fatalf("dims = (%d,%d), want (%d,%d)", gotW, gotH, w, h)
	}

	// Error within each 4x4 block is bounded by the block's dynamic range
	// divided by 2^precision steps; check a generous multiple of that.
	maxErr := 100.0 / float64(uint64(1)<<uint(precision)) * 4
	for i := range plane {
		diff := math.Abs(plane[i] - decoded[i])
		if diff > maxErr {
			t.Fatalf("index %d: |%v - %v| = %v exceeds bound %v", i, plane[i], decoded[i], diff, maxErr)
		}
	}
}

func TestZFPMaximumSizeNeverExceeded(t *testing.T) {
	cases := []struct{ w, h, precision int }{
		{17, 23, 8},
		{256, 256, 32},
		{1, 1, 1},
		{4, 4, 64},
	}
	for _, c := range cases {
		plane := make([]float64, c.w*c.h)
		for i := range plane {
			plane[i] = float64(i)
		}
		encoded := CompressZFP(plane, c.w, c.h, c.precision)
		// encoded payload includes the 12-byte tile header on top of the
		// bit-packed block data that MaximumSize bounds.
		limit := MaximumSize(c.w, c.h, c.precision)
		if len(encoded) > limit {
			t.Fatalf("case %+v: encoded size %d exceeds MaximumSize %d", c, len(encoded), limit)
		}
	}
}

func TestZFPConstantPlaneRoundTripsExactly(t *testing.T) {
	w, h := 8, 8
	plane := make([]float64, w*h)
	for i := range plane {
		plane[i] = 42.0
	}
	encoded := CompressZFP(plane, w, h, 16)
	decoded, _, _, err := DecompressZFP(encoded)
	if err != nil {
		t.Fatalf("DecompressZFP: %v", err)
	}
	for i, v := range decoded {
		if math.Abs(v-42.0) > 1e-9 {
			t.Fatalf("index %d: got %v, want 42.0", i, v)
		}
	}
}

func TestZFPShortBufferError(t *testing.T) {
	_, _, _, err := DecompressZFP([]byte{1, 2, 3})
	if err == nil {
		t.Fatal("expected error for short buffer")
	}
}
