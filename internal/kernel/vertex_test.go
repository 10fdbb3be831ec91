package kernel

import (
	"math"
	"testing"

	"github.com/klauspost/compress/zstd"
)

func TestQuantizeVerticesRoundsToNearest(t *testing.T) {
	vertices := []float32{1.234, 1.236, -1.234, -1.236}
	out := QuantizeVertices(vertices, 100)
	want := []int32{123, 124, -123, -124}
	for i, v := range out {
		if v != want[i] {
			t.Fatalf("index %d: got %d, want %d", i, v, want[i])
		}
	}
}

func TestDeltaEncodeDecodeStridedRoundTrip(t *testing.T) {
	values := []int32{10, 20, 13, 27, 16, 34, 19, 41}
	deltas := DeltaEncodeStrided(values, 2)
	back := DeltaDecodeStrided(deltas, 2)
	for i, v := range back {
		if v != values[i] {
			t.Fatalf("index %d: got %d, want %d", i, v, values[i])
		}
	}
}

func TestShuffleUnshuffleBytesRoundTrip(t *testing.T) {
	values := []int32{1, -2, 300000, math.MinInt32, math.MaxInt32, 0}
	shuffled := ShuffleBytes(values)
	if len(shuffled) != 4*len(values) {
		t.Fatalf("shuffled length = %d, want %d", len(shuffled), 4*len(values))
	}
	back := UnshuffleBytes(shuffled, len(values))
	for i, v := range back {
		if v != values[i] {
			t.Fatalf("index %d: got %d, want %d", i, v, values[i])
		}
	}
}

func TestCompressDecompressVertexPayloadRoundTrip(t *testing.T) {
	vertices := []float32{
		0.0, 0.0,
		1.5, 2.25,
		3.0, 4.75,
		-1.25, -2.5,
	}
	roundingFactor := float32(1000.0)
	payload, count, err := CompressVertexPayload(vertices, roundingFactor, 2, zstd.SpeedDefault)
	if err != nil {
		t.Fatalf("CompressVertexPayload: %v", err)
	}
	if count != len(vertices) {
		t.Fatalf("count = %d, want %d", count, len(vertices))
	}

	decoded, err := DecompressVertexPayload(payload, count, roundingFactor, 2)
	if err != nil {
		t.Fatalf("DecompressVertexPayload: %v", err)
	}
	if len(decoded) != len(vertices) {
		t.Fatalf("decoded length = %d, want %d", len(decoded), len(vertices))
	}
	for i, v := range decoded {
		diff := math.Abs(float64(v - vertices[i]))
		if diff > 1.0/float64(roundingFactor) {
			t.Fatalf("index %d: got %v, want ~%v (diff %v)", i, v, vertices[i], diff)
		}
	}
}
