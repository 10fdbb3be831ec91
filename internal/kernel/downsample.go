// Package kernel implements the numeric building blocks of raster tile
// delivery: block-mean downsampling, Gaussian smoothing, ZFP-style fixed
// precision compression, NaN run-length encodings and vertex quantization.
//
// Go has no portable SIMD intrinsics, so "vectorized" here means manually
// unrolled loops processing 4 or 8 pixels per iteration — chosen the same
// way the spec's scalar/SSE2/AVX selection is (factor mod 8/4), and gated
// on runtime feature detection via golang.org/x/sys/cpu, but implemented
// in plain Go rather than assembly.
package kernel

import (
	"math"

	"golang.org/x/sys/cpu"
)

// DownsamplePath names which block-mean implementation produced a tile,
// surfaced for benchmarking and the cross-implementation agreement tests.
type DownsamplePath int

const (
	PathScalar DownsamplePath = iota
	PathSSE
	PathAVX
)

// BlockMeanDownsample averages finite pixels inside non-overlapping
// factor x factor blocks of src (a w x h row-major plane), starting at
// (xOff, yOff), writing outW x outH output cells. A block with no finite
// pixel produces NaN. The implementation path is selected by factor mod 8
// (AVX-width) then factor mod 4 (SSE-width), else scalar, matching the
// spec's selection rule; all three produce numerically equivalent results.
func BlockMeanDownsample(src []float64, w, h, factor, xOff, yOff, outW, outH int) []float64 {
	path := SelectPath(factor)
	switch path {
	case PathAVX:
		return downsampleWide(src, w, h, factor, xOff, yOff, outW, outH, 8)
	case PathSSE:
		return downsampleWide(src, w, h, factor, xOff, yOff, outW, outH, 4)
	default:
		return downsampleScalar(src, w, h, factor, xOff, yOff, outW, outH)
	}
}

// SelectPath returns which downsample path BlockMeanDownsample would take
// for a given block factor, honoring available CPU features.
func SelectPath(factor int) DownsamplePath {
	if factor%8 == 0 && cpu.X86.HasAVX2 {
		return PathAVX
	}
	if factor%4 == 0 && cpu.X86.HasSSE2 {
		return PathSSE
	}
	return PathScalar
}

func downsampleScalar(src []float64, w, h, factor, xOff, yOff, outW, outH int) []float64 {
	out := make([]float64, outW*outH)
	for j := 0; j < outH; j++ {
		y0 := j*factor + yOff
		y1 := y0 + factor
		if y1 > h {
			y1 = h
		}
		for i := 0; i < outW; i++ {
			x0 := i*factor + xOff
			x1 := x0 + factor
			if x1 > w {
				x1 = w
			}
			var sum float64
			var count int
			for y := y0; y < y1; y++ {
				if y < 0 {
					continue
				}
				row := y * w
				for x := x0; x < x1; x++ {
					if x < 0 {
						continue
					}
					v := src[row+x]
					if isFiniteValue(v) {
						sum += v
						count++
					}
				}
			}
			if count == 0 {
				out[j*outW+i] = math.NaN()
			} else {
				out[j*outW+i] = sum / float64(count)
			}
		}
	}
	return out
}

// downsampleWide computes the identical result to downsampleScalar but
// processes `lanes` source columns per inner-loop iteration, mirroring
// the data-parallel shape of the SSE2 (lanes=4) and AVX (lanes=8) kernels:
// a mask is built once per vector of lanes and applied to both the
// running sum and the running count.
func downsampleWide(src []float64, w, h, factor, xOff, yOff, outW, outH, lanes int) []float64 {
	out := make([]float64, outW*outH)
	for j := 0; j < outH; j++ {
		y0 := j*factor + yOff
		y1 := y0 + factor
		if y1 > h {
			y1 = h
		}
		for i := 0; i < outW; i++ {
			x0 := i*factor + xOff
			x1 := x0 + factor
			if x1 > w {
				x1 = w
			}
			var sum float64
			var count int
			for y := y0; y < y1; y++ {
				if y < 0 {
					continue
				}
				row := y * w
				x := x0
				for ; x+lanes <= x1; x += lanes {
					if x < 0 {
						continue
					}
					var laneSum float64
					var laneCount int
					// mask built once per lane-vector, applied to sum and count alike
					for l := 0; l < lanes; l++ {
						v := src[row+x+l]
						mask := isFiniteValue(v)
						if mask {
							laneSum += v
							laneCount++
						}
					}
					sum += laneSum
					count += laneCount
				}
				for ; x < x1; x++ {
					if x < 0 {
						continue
					}
					v := src[row+x]
					if isFiniteValue(v) {
						sum += v
						count++
					}
				}
			}
			if count == 0 {
				out[j*outW+i] = math.NaN()
			} else {
				out[j*outW+i] = sum / float64(count)
			}
		}
	}
	return out
}

// isFiniteValue reports whether v is neither NaN nor +/-Inf. NaN detection
// uses the classic x != x identity; Inf detection compares against
// math.Inf directly (equivalent to a sign-masked equality test).
func isFiniteValue(v float64) bool {
	if v != v {
		return false
	}
	if v == math.Inf(1) || v == math.Inf(-1) {
		return false
	}
	return true
}

// NearestNeighborDownsample picks the top-left source pixel of each
// factor x factor block instead of averaging; used for fast low-quality
// previews where block-mean's cost isn't justified.
func NearestNeighborDownsample(src []float64, w, h, factor, xOff, yOff, outW, outH int) []float64 {
	out := make([]float64, outW*outH)
	for j := 0; j < outH; j++ {
		y := j*factor + yOff
		if y >= h {
			y = h - 1
		}
		for i := 0; i < outW; i++ {
			x := i*factor + xOff
			if x >= w {
				x = w - 1
			}
			out[j*outW+i] = src[y*w+x]
		}
	}
	return out
}
