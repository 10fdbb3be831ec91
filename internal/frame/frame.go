// Package frame implements the per-open-image state machine: the current
// plane cache, raster tile extraction, contour orchestration and the
// histogram/spectral/spatial/stats fill operations a session drives for
// one file.
package frame

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"github.com/CARTAvis/carta-backend-sub003/internal/contour"
	"github.com/CARTAvis/carta-backend-sub003/internal/kernel"
	"github.com/CARTAvis/carta-backend-sub003/internal/loader"
	"github.com/CARTAvis/carta-backend-sub003/internal/monitoring"
	"github.com/CARTAvis/carta-backend-sub003/internal/requirements"
	"github.com/CARTAvis/carta-backend-sub003/internal/wire"
)

// State is the per-plane lifecycle Frame cycles through on open and on
// every SetImageChannels call.
type State int

const (
	StateLoaded State = iota
	StateLoading
	StateGone
)

// Shape is the file's discovered dimensionality.
type Shape struct {
	Width, Height int
	Depth         int // number of spectral channels, 1 if absent
	NumStokes     int // number of stokes planes, 1 if absent
	ZAxis         int // -1 if the file has no spectral axis
	StokesAxis    int // -1 if the file has no stokes axis
}

// SmoothingMode selects the contour preprocessing step.
type SmoothingMode int

const (
	SmoothingNone SmoothingMode = iota
	SmoothingGaussian
	SmoothingBlockAverage
)

// Frame owns one open file's loader handle, shape, plane cache and
// requirements cache, matching spec.md §3's Frame ownership list.
type Frame struct {
	FileID int32

	loader loader.FileLoader
	shape  Shape
	hdu    string

	// planeMu guards plane/curChannel/curStokes/state: concurrent readers
	// (tile fill, spatial profile, histogram) may hold RLock together;
	// setImageChannels takes the exclusive Lock to rebuild the plane.
	planeMu    sync.RWMutex
	plane      []float64
	curChannel int
	curStokes  int
	state      State

	Requirements *requirements.Cache

	cancelMu sync.Mutex
	cancel   bool
}

// Open populates shape/axes from the loader and fills the initial plane
// cache at (channel=0, stokes=0).
func Open(ctx context.Context, fileID int32, l loader.FileLoader, hdu string) (*Frame, error) {
	if err := l.OpenFile(hdu); err != nil {
		return nil, fmt.Errorf("frame: open file: %w", wire.NewError(wire.ErrUnavailable, err.Error()))
	}
	rawShape, zAxis, stokesAxis, err := l.FindCoordinateAxes()
	if err != nil {
		return nil, fmt.Errorf("frame: find coordinate axes: %w", wire.NewError(wire.ErrUnavailable, err.Error()))
	}
	if len(rawShape) < 2 || len(rawShape) > 4 {
		return nil, fmt.Errorf("frame: unsupported dimensionality %d: %w", len(rawShape), wire.NewError(wire.ErrValidation, "unsupported dimensionality"))
	}

	shape := Shape{Width: rawShape[0], Height: rawShape[1], Depth: 1, NumStokes: 1, ZAxis: -1, StokesAxis: -1}
	if zAxis >= 0 && zAxis < len(rawShape) {
		shape.Depth = rawShape[zAxis]
		shape.ZAxis = zAxis
	}
	if stokesAxis >= 0 && stokesAxis < len(rawShape) {
		shape.NumStokes = rawShape[stokesAxis]
		shape.StokesAxis = stokesAxis
	}

	f := &Frame{
		FileID:       fileID,
		loader:       l,
		shape:        shape,
		hdu:          hdu,
		Requirements: requirements.NewCache(),
		state:        StateLoading,
	}

	plane, err := l.GetImage(ctx, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("frame: initial plane load: %w", wire.NewError(wire.ErrInternal, err.Error()))
	}
	f.plane = plane
	f.state = StateLoaded
	monitoring.Logf("frame: opened file %d hdu=%q shape=%dx%dx%dx%d", fileID, hdu, shape.Width, shape.Height, shape.Depth, shape.NumStokes)
	return f, nil
}

func (f *Frame) Shape() Shape { return f.shape }

// Loader returns the frame's underlying loader, for callers (PV image
// generation) that need direct per-channel access beyond the cached
// current plane.
func (f *Frame) Loader() loader.FileLoader { return f.loader }

// SetImageChannels validates bounds and, under an exclusive lock,
// rebuilds the plane cache for (channel, stokes). It reports whether the
// requested plane differs from the current one.
func (f *Frame) SetImageChannels(ctx context.Context, channel, stokes int) (changed bool, err error) {
	if channel < 0 || channel >= f.shape.Depth || stokes < 0 || stokes >= f.shape.NumStokes {
		return false, wire.NewError(wire.ErrValidation, "channel/stokes out of bounds")
	}

	f.planeMu.RLock()
	same := f.curChannel == channel && f.curStokes == stokes && f.state == StateLoaded
	f.planeMu.RUnlock()
	if same {
		return false, nil
	}

	f.planeMu.Lock()
	defer f.planeMu.Unlock()
	f.state = StateLoading
	plane, err := f.loader.GetImage(ctx, channel, stokes)
	if err != nil {
		f.state = StateLoaded
		monitoring.Logf("ERROR: frame %d: set image channels (%d,%d): %v", f.FileID, channel, stokes, err)
		return false, fmt.Errorf("frame: set image channels: %w", wire.NewError(wire.ErrInternal, err.Error()))
	}
	f.plane = plane
	f.curChannel = channel
	f.curStokes = stokes
	f.state = StateLoaded
	// requirements for CacheID-keyed products are stale now; config lists survive.
	f.Requirements.InvalidateChannel(f.FileID, -1, int32(stokes), int32(channel))
	return true, nil
}

// CurrentPlane returns a copy of the live plane and its (channel, stokes).
func (f *Frame) CurrentPlane() (plane []float64, channel, stokes int) {
	f.planeMu.RLock()
	defer f.planeMu.RUnlock()
	return append([]float64(nil), f.plane...), f.curChannel, f.curStokes
}

// SetCancel toggles the frame-level cancellation flag long-running fills
// check at well-defined points.
func (f *Frame) SetCancel(v bool) {
	f.cancelMu.Lock()
	f.cancel = v
	f.cancelMu.Unlock()
}

func (f *Frame) cancelled() bool {
	f.cancelMu.Lock()
	defer f.cancelMu.Unlock()
	return f.cancel
}

// Close marks the frame gone and releases the loader.
func (f *Frame) Close() error {
	f.planeMu.Lock()
	f.state = StateGone
	f.planeMu.Unlock()
	monitoring.Logf("frame: closing file %d", f.FileID)
	return f.loader.Close()
}

// RasterTile is fillRasterTile's result.
type RasterTile struct {
	Width, Height int
	TileBytes     []byte
	NaNRLEBytes   []byte
}

// FillRasterTile downsamples the bounded region of the current plane by
// mip using block-mean, NaN-encodes it, and ZFP-compresses if
// compressionQuality > 0. If (channel, stokes) no longer match the live
// plane the tile is stale and the caller must drop it.
func (f *Frame) FillRasterTile(xStart, yStart, mip, channel, stokes, compressionQuality int) (RasterTile, bool, error) {
	f.planeMu.RLock()
	defer f.planeMu.RUnlock()

	if f.curChannel != channel || f.curStokes != stokes || f.state != StateLoaded {
		return RasterTile{}, false, nil // stale
	}

	outW := (f.shape.Width - xStart + mip - 1) / mip
	if outW > 256 {
		outW = 256
	}
	outH := (f.shape.Height - yStart + mip - 1) / mip
	if outH > 256 {
		outH = 256
	}
	if outW <= 0 || outH <= 0 {
		return RasterTile{}, false, wire.NewError(wire.ErrValidation, "tile bounds outside image")
	}

	down := kernel.BlockMeanDownsample(f.plane, f.shape.Width, f.shape.Height, mip, xStart, yStart, outW, outH)
	nanBytes := kernel.EncodeNaNRunLength(down)

	var tileBytes []byte
	if compressionQuality > 0 {
		tileBytes = kernel.CompressZFP(down, outW, outH, compressionQuality)
		if ratio := kernel.CompressionRatio(outW, outH, len(tileBytes)); ratio > 20 && compressionQuality < 32 {
			highPrecision := kernel.CompressZFP(down, outW, outH, 32)
			if kernel.CompressionRatio(outW, outH, len(highPrecision)) > 10 {
				tileBytes = highPrecision
			}
		}
	} else {
		tileBytes = float64SliceToBytes(down)
	}

	return RasterTile{Width: outW, Height: outH, TileBytes: tileBytes, NaNRLEBytes: nanBytes}, true, nil
}

func float64SliceToBytes(v []float64) []byte {
	out := make([]byte, len(v)*8)
	for i, x := range v {
		binary.LittleEndian.PutUint64(out[i*8:], math.Float64bits(x))
	}
	return out
}

// ContourChunk mirrors contourImage's incremental callback payload.
type ContourChunk struct {
	Level    float64
	Progress float64
	Vertices []float32
	Indices  []int32
}

// ContourImage traces every level of the current plane, applying the
// requested smoothing preprocess, and invokes callback once per flushed
// chunk per level (final call per level carries progress=1).
func (f *Frame) ContourImage(levels []float64, mode SmoothingMode, factor int, chunkSize int, callback func(ContourChunk)) error {
	f.planeMu.RLock()
	plane := append([]float64(nil), f.plane...)
	width, height := f.shape.Width, f.shape.Height
	f.planeMu.RUnlock()

	scale := 1.0
	offset := 0.0
	switch mode {
	case SmoothingGaussian:
		plane = kernel.GaussianSmooth2D(plane, width, height, factor)
		offset = float64(factor - 1)
	case SmoothingBlockAverage:
		outW := (width + factor - 1) / factor
		outH := (height + factor - 1) / factor
		plane = kernel.BlockMeanDownsample(plane, width, height, factor, 0, 0, outW, outH)
		width, height = outW, outH
		scale = float64(factor)
		offset = 0
	}

	for _, level := range levels {
		if f.cancelled() {
			return wire.NewError(wire.ErrTransient, "task cancelled")
		}
		contour.TraceLevel(plane, int64(width), int64(height), scale, offset, level, chunkSize, func(lv, progress float64, vertices []float32, indices []int32) {
			callback(ContourChunk{Level: lv, Progress: progress, Vertices: vertices, Indices: indices})
		})
	}
	return nil
}
