package frame

import (
	"context"

	"github.com/CARTAvis/carta-backend-sub003/internal/loader"
	"github.com/CARTAvis/carta-backend-sub003/internal/wire"
)

// CalculateMoments delegates moment-map generation to an external
// MomentGenerator under the frame's image mutex (one slicing operation
// at a time per file), streaming progress and producing one MomentResult
// per requested moment order.
func (f *Frame) CalculateMoments(ctx context.Context, gen loader.MomentGenerator, req loader.MomentRequest, progress loader.MomentProgress) ([]loader.MomentResult, error) {
	f.planeMu.Lock()
	defer f.planeMu.Unlock()

	gen.SetMoments(req.Moments)
	gen.SetMomentAxis(req.Axis)
	gen.SetInExcludeRange(req.IncludeLo, req.IncludeHi, req.ExcludeRange)

	results, err := gen.CreateMoments(ctx, progress)
	if err != nil {
		return nil, wire.NewError(wire.ErrInternal, err.Error())
	}
	return results, nil
}

// SaveFile delegates to an external writer under the image mutex. The
// caller is responsible for read-only-mode and path-safety checks
// (internal/security) before invoking this.
func (f *Frame) SaveFile(ctx context.Context, write func(ctx context.Context, plane []float64, width, height int) error) error {
	f.planeMu.RLock()
	plane := append([]float64(nil), f.plane...)
	width, height := f.shape.Width, f.shape.Height
	f.planeMu.RUnlock()

	if err := write(ctx, plane, width, height); err != nil {
		return wire.NewError(wire.ErrInternal, err.Error())
	}
	return nil
}
