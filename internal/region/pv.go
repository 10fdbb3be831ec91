package region

import (
	"context"
	"math"

	"github.com/CARTAvis/carta-backend-sub003/internal/frame"
	"github.com/CARTAvis/carta-backend-sub003/internal/loader"
	"github.com/CARTAvis/carta-backend-sub003/internal/wire"
)

// PVResult is a position-velocity slice: one row per spectral channel,
// one column per sample point along the region's line.
type PVResult struct {
	Width, Height int // Width = samples along the line, Height = spectral channels
	Data          []float64
}

// CalculatePvImage integrates intensity along a line region across the
// spectral axis. In preview mode the result is cached and only
// recomputed when the region has moved since the last call
// (updatePvPreviewRegion's throttling).
func (h *Handler) CalculatePvImage(ctx context.Context, l loader.FileLoader, f *frame.Frame, regionID int32, preview bool) (PVResult, error) {
	s, ok := h.Get(regionID)
	if !ok {
		return PVResult{}, wire.NewError(wire.ErrValidation, "unknown region id")
	}
	if s.Type != TypeLine && s.Type != TypePolyline {
		return PVResult{}, wire.NewError(wire.ErrValidation, "PV image requires a line region")
	}
	if len(s.ControlPoints) < 2 {
		return PVResult{}, wire.NewError(wire.ErrValidation, "line region needs at least two control points")
	}

	if preview {
		h.mu.Lock()
		p, ok := h.previews[regionID]
		if ok && !p.dirty {
			data := append([]float64(nil), p.data...)
			width := p.width
			h.mu.Unlock()
			return PVResult{Width: width, Height: len(data) / maxOne(width), Data: data}, nil
		}
		h.mu.Unlock()
	}

	shape := f.Shape()
	samples := lineSamples(s.ControlPoints[0], s.ControlPoints[len(s.ControlPoints)-1], shape.Width, shape.Height)
	depth := shape.Depth
	if depth < 1 {
		depth = 1
	}

	data := make([]float64, len(samples)*depth)
	_, _, stokes := f.CurrentPlane()
	for z := 0; z < depth; z++ {
		if ctx.Err() != nil {
			return PVResult{}, wire.NewError(wire.ErrTransient, "task cancelled")
		}
		plane, err := l.GetImage(ctx, z, stokes)
		if err != nil {
			return PVResult{}, wire.NewError(wire.ErrInternal, err.Error())
		}
		for i, pt := range samples {
			x, y := int(pt.X), int(pt.Y)
			if x < 0 || x >= shape.Width || y < 0 || y >= shape.Height {
				data[z*len(samples)+i] = math.NaN()
				continue
			}
			data[z*len(samples)+i] = plane[y*shape.Width+x]
		}
	}

	result := PVResult{Width: len(samples), Height: depth, Data: data}

	if preview {
		h.mu.Lock()
		h.previews[regionID] = &pvPreview{data: data, width: len(samples), dirty: false}
		h.mu.Unlock()
	}
	return result, nil
}

// UpdatePvPreviewRegion marks a region's cached PV preview dirty without
// recomputing it; the next CalculatePvImage(preview=true) call does the
// recompute, debouncing rapid region moves the same way the cursor
// debouncer collapses rapid SetCursor calls.
func (h *Handler) UpdatePvPreviewRegion(regionID int32) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if p, ok := h.previews[regionID]; ok {
		p.dirty = true
	}
}

func maxOne(v int) int {
	if v < 1 {
		return 1
	}
	return v
}

// lineSamples walks from a to b in unit steps along the longer axis,
// producing one sample point per output column.
func lineSamples(a, b ControlPoint, width, height int) []ControlPoint {
	dx, dy := b.X-a.X, b.Y-a.Y
	n := int(math.Round(math.Max(math.Abs(dx), math.Abs(dy))))
	if n < 1 {
		n = 1
	}
	out := make([]ControlPoint, n+1)
	for i := 0; i <= n; i++ {
		t := float64(i) / float64(n)
		out[i] = ControlPoint{X: a.X + dx*t, Y: a.Y + dy*t}
	}
	return out
}
