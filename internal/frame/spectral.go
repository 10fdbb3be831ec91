package frame

import (
	"context"
	"time"

	"github.com/CARTAvis/carta-backend-sub003/internal/wire"
)

// targetDeltaTime is the per-block duration fillSpectralProfileData
// retargets subsequent blocks to, keeping cancellation checks responsive
// (Frame.cc's TARGET_DELTA_TIME).
const targetDeltaTime = 50 * time.Millisecond

// targetPartialCursorTime throttles partial-result emission so a slow
// spectral read doesn't flood the outbound queue (Frame.cc's
// TARGET_PARTIAL_CURSOR_TIME).
const targetPartialCursorTime = 500 * time.Millisecond

// SpectralChunk is one partial or final fillSpectralProfileData emission.
type SpectralChunk struct {
	Values   []float64
	Progress float64
}

// FillSpectralProfileData streams a cursor spectral profile by slicing
// the image along Z in delta_z blocks. The first block self-times and
// resizes subsequent blocks to target targetDeltaTime per block; partial
// results are emitted at most every targetPartialCursorTime.
func (f *Frame) FillSpectralProfileData(ctx context.Context, x, y, stokes int, callback func(SpectralChunk)) error {
	depth := f.shape.Depth
	if depth == 0 {
		return wire.NewError(wire.ErrValidation, "file has no spectral axis")
	}

	deltaZ := 1
	if depth > 1 {
		deltaZ = maxInt(1, depth/20)
	}

	values := make([]float64, 0, depth)
	lastEmit := time.Now()

	for zStart := 0; zStart < depth; zStart += deltaZ {
		if f.cancelled() {
			return wire.NewError(wire.ErrTransient, "task cancelled")
		}
		n := minInt(deltaZ, depth-zStart)

		start := time.Now()
		block, err := f.loader.GetCursorSpectralData(ctx, x, y, stokes, zStart, n)
		if err != nil {
			return wire.NewError(wire.ErrInternal, err.Error())
		}
		elapsed := time.Since(start)
		values = append(values, block...)

		if zStart == 0 && elapsed > 0 {
			perChannel := elapsed / time.Duration(n)
			if perChannel > 0 {
				retargeted := int(targetDeltaTime / perChannel)
				if retargeted > 0 {
					deltaZ = retargeted
				}
			}
		}

		progress := float64(len(values)) / float64(depth)
		if progress < 1 && time.Since(lastEmit) < targetPartialCursorTime {
			continue
		}
		lastEmit = time.Now()
		callback(SpectralChunk{Values: append([]float64(nil), values...), Progress: progress})
	}

	return nil
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
