package kernel

import (
	"encoding/binary"

	"github.com/klauspost/compress/zstd"
)

// QuantizeVertices rounds float vertices to round(v * roundingFactor) as
// int32, the first step before delta+shuffle encoding contour polylines
// and vector-field glyphs for the wire.
func QuantizeVertices(vertices []float32, roundingFactor float32) []int32 {
	out := make([]int32, len(vertices))
	for i, v := range vertices {
		out[i] = int32(roundf(v * roundingFactor))
	}
	return out
}

func roundf(v float32) float32 {
	if v >= 0 {
		return float32(int64(v + 0.5))
	}
	return float32(int64(v - 0.5))
}

// DeltaEncodeStrided delta-encodes a quantized stream in place, per
// stride lane (stride=2 for interleaved x/y vertex pairs, stride=1 for a
// single index stream): element i is replaced by element[i] - element[i-stride],
// with the first stride elements left as absolute values (the vertex
// encoding's starting point).
func DeltaEncodeStrided(values []int32, stride int) []int32 {
	out := make([]int32, len(values))
	copy(out, values)
	for i := len(out) - 1; i >= stride; i-- {
		out[i] -= values[i-stride]
	}
	return out
}

// DeltaDecodeStrided reverses DeltaEncodeStrided.
func DeltaDecodeStrided(deltas []int32, stride int) []int32 {
	out := make([]int32, len(deltas))
	copy(out, deltas)
	for i := stride; i < len(out); i++ {
		out[i] += out[i-stride]
	}
	return out
}

// ShuffleBytes transposes a stream of little-endian int32 values into
// four planes (all byte-0s, then all byte-1s, ...), placing bytes of the
// same significance adjacent to each other. This boosts the entropy
// compression ratio of the downstream zstd stage on delta-encoded data,
// which tends to have most of its magnitude in the low bytes.
func ShuffleBytes(values []int32) []byte {
	n := len(values)
	out := make([]byte, 4*n)
	for i, v := range values {
		b := make([]byte, 4)
		binary.LittleEndian.PutUint32(b, uint32(v))
		for plane := 0; plane < 4; plane++ {
			out[plane*n+i] = b[plane]
		}
	}
	return out
}

// UnshuffleBytes reverses ShuffleBytes for a stream of n int32 values.
func UnshuffleBytes(shuffled []byte, n int) []int32 {
	out := make([]int32, n)
	for i := 0; i < n; i++ {
		var b [4]byte
		for plane := 0; plane < 4; plane++ {
			b[plane] = shuffled[plane*n+i]
		}
		out[i] = int32(binary.LittleEndian.Uint32(b[:]))
	}
	return out
}

// CompressVertexPayload applies the full contour/vector-field vertex
// pipeline — quantize, delta-encode, byte-shuffle, then zstd — returning
// the wire-ready payload plus the vertex count needed to invert it.
func CompressVertexPayload(vertices []float32, roundingFactor float32, stride int, level zstd.EncoderLevel) ([]byte, int, error) {
	quantized := QuantizeVertices(vertices, roundingFactor)
	deltas := DeltaEncodeStrided(quantized, stride)
	shuffled := ShuffleBytes(deltas)

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(level))
	if err != nil {
		return nil, 0, err
	}
	defer enc.Close()
	compressed := enc.EncodeAll(shuffled, nil)
	return compressed, len(vertices), nil
}

// DecompressVertexPayload reverses CompressVertexPayload.
func DecompressVertexPayload(payload []byte, count int, roundingFactor float32, stride int) ([]float32, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	shuffled, err := dec.DecodeAll(payload, nil)
	if err != nil {
		return nil, err
	}
	deltas := UnshuffleBytes(shuffled, count)
	quantized := DeltaDecodeStrided(deltas, stride)
	out := make([]float32, count)
	for i, q := range quantized {
		out[i] = float32(q) / roundingFactor
	}
	return out, nil
}
