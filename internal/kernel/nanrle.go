package kernel

import (
	"encoding/binary"
	"math"
)

// EncodeNaNRunLength produces the "simple" NaN side-channel: alternating
// (non-NaN run length, NaN run length) pairs as uint32s. NaN positions in
// the companion value stream are expected to be backfilled by the last
// valid value before ZFP compression (ZFP has no native NaN support), so
// the decoder restores them to NaN using these run lengths.
func EncodeNaNRunLength(plane []float64) []byte {
	var runs []uint32
	n := len(plane)
	i := 0
	// A value-run always starts with a non-NaN run (possibly zero length).
	for i < n {
		start := i
		for i < n && !math.IsNaN(plane[i]) {
			i++
		}
		runs = append(runs, uint32(i-start))
		start = i
		for i < n && math.IsNaN(plane[i]) {
			i++
		}
		runs = append(runs, uint32(i-start))
	}
	out := make([]byte, 4*len(runs))
	for idx, r := range runs {
		binary.LittleEndian.PutUint32(out[idx*4:], r)
	}
	return out
}

// DecodeNaNRunLength reconstructs, for a plane of length n, a boolean
// mask where true marks a NaN position, from the run-length encoding
// produced by EncodeNaNRunLength.
func DecodeNaNRunLength(encoded []byte, n int) []bool {
	mask := make([]bool, n)
	pos := 0
	isNaNRun := false
	for off := 0; off+4 <= len(encoded) && pos < n; off += 4 {
		run := int(binary.LittleEndian.Uint32(encoded[off:]))
		if isNaNRun {
			for k := 0; k < run && pos < n; k++ {
				mask[pos] = true
				pos++
			}
		} else {
			pos += run
		}
		isNaNRun = !isNaNRun
	}
	return mask
}

// BackfillNaN replaces each NaN in plane with the last valid (non-NaN)
// value seen before it (0 if none yet), suitable for feeding a NaN-blind
// compressor like ZFP. It does not mutate the input.
func BackfillNaN(plane []float64) []float64 {
	out := make([]float64, len(plane))
	var last float64
	for i, v := range plane {
		if math.IsNaN(v) {
			out[i] = last
		} else {
			out[i] = v
			last = v
		}
	}
	return out
}

// RestoreNaN reapplies a NaN mask (as produced by DecodeNaNRunLength) onto
// a backfilled plane.
func RestoreNaN(plane []float64, mask []bool) {
	for i, isNaN := range mask {
		if isNaN {
			plane[i] = math.NaN()
		}
	}
}

// EncodeBlockAwareNaN matches ZFP's 4x4 block structure: within any block
// containing both finite and NaN values, NaN cells are replaced by the
// block's finite mean (instead of a scalar backfill), which keeps the
// block's dynamic range tight for quantization. Pure-NaN blocks are left
// untouched (still all NaN) and flagged in the returned block mask so the
// decoder can restore them verbatim.
func EncodeBlockAwareNaN(plane []float64, w, h int) (filled []float64, pureNaNBlocks []bool) {
	filled = append([]float64(nil), plane...)
	blocksX := (w + 3) / 4
	blocksY := (h + 3) / 4
	pureNaNBlocks = make([]bool, blocksX*blocksY)

	for by := 0; by < blocksY; by++ {
		for bx := 0; bx < blocksX; bx++ {
			var sum float64
			var count, total int
			for dy := 0; dy < 4; dy++ {
				for dx := 0; dx < 4; dx++ {
					x, y := bx*4+dx, by*4+dy
					if x >= w || y >= h {
						continue
					}
					total++
					v := plane[y*w+x]
					if !math.IsNaN(v) {
						sum += v
						count++
					}
				}
			}
			blockIdx := by*blocksX + bx
			if count == 0 {
				pureNaNBlocks[blockIdx] = true
				continue
			}
			if count == total {
				continue // no NaNs to fill in this block
			}
			mean := sum / float64(count)
			for dy := 0; dy < 4; dy++ {
				for dx := 0; dx < 4; dx++ {
					x, y := bx*4+dx, by*4+dy
					if x >= w || y >= h {
						continue
					}
					if math.IsNaN(plane[y*w+x]) {
						filled[y*w+x] = mean
					}
				}
			}
		}
	}
	return filled, pureNaNBlocks
}

// RestoreBlockAwareNaN reapplies the pure-NaN-block flags produced by
// EncodeBlockAwareNaN onto a decoded plane.
func RestoreBlockAwareNaN(plane []float64, w, h int, pureNaNBlocks []bool) {
	blocksX := (w + 3) / 4
	for blockIdx, isNaN := range pureNaNBlocks {
		if !isNaN {
			continue
		}
		bx := blockIdx % blocksX
		by := blockIdx / blocksX
		for dy := 0; dy < 4; dy++ {
			for dx := 0; dx < 4; dx++ {
				x, y := bx*4+dx, by*4+dy
				if x >= w || y >= h {
					continue
				}
				plane[y*w+x] = math.NaN()
			}
		}
	}
}
