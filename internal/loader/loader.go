// Package loader defines the narrow capability contracts the core calls
// into for pixel data, coordinate systems and moment generation, plus an
// in-memory reference implementation used by tests and by
// cmd/carta-backend's file opener. It intentionally knows nothing about FITS,
// HDF5, CASA or MIRIAD — wiring a real backend against these interfaces
// is a deployment-time concern (spec's §6 "out of scope ... only their
// interfaces specified").
package loader

import "context"

// Slicer selects a sub-region of an image plane: [XStart,XEnd) x
// [YStart,YEnd), with optional step for decimated reads.
type Slicer struct {
	XStart, XEnd int
	YStart, YEnd int
	XStep, YStep int
}

// ImageStats is the loader-provided shortcut for a plane's statistics,
// consulted before the requirements cache or a fresh compute (see
// internal/frame's histogram fill precedence).
type ImageStats struct {
	NumBins  int
	Min, Max float64
	BinWidth float64
	Counts   []int64
	Valid    bool
}

// FileLoader is the capability set Frame (C4) needs from an opened
// image file, matching §6's FileLoader contract.
type FileLoader interface {
	// OpenFile opens the given HDU (FITS-style 0-based string id; "0"
	// for the primary HDU) and returns an error on an unsupported shape
	// or an unreadable file.
	OpenFile(hdu string) error

	// FindCoordinateAxes reports the image's shape and which axes, if
	// any, carry spectral channel and stokes.
	FindCoordinateAxes() (shape []int, zAxis, stokesAxis int, err error)

	// GetImage returns the full current (channel, stokes) plane as a
	// row-major width*height float64 slice.
	GetImage(ctx context.Context, channel, stokes int) ([]float64, error)

	// GetSlice reads a Slicer-bounded sub-region of the given plane into
	// a width*height slice, width/height taken from the slicer bounds.
	GetSlice(ctx context.Context, channel, stokes int, s Slicer) ([]float64, error)

	// GetSubImage reads an arbitrary (possibly non-rectangular, via a
	// boolean mask) region of the given plane; out must be pre-sized to
	// len(mask).
	GetSubImage(ctx context.Context, channel, stokes int, mask []bool, width int, out []float64) error

	// GetCursorSpectralData reads the spectral profile at a single pixel
	// across deltaZ channels starting at zStart.
	GetCursorSpectralData(ctx context.Context, x, y, stokes, zStart, deltaZ int) ([]float64, error)

	// GetRegionSpectralData reads the given statistic's spectral profile
	// over a region mask across deltaZ channels starting at zStart.
	GetRegionSpectralData(ctx context.Context, mask []bool, width int, stokes, zStart, deltaZ int, stat string) ([]float64, error)

	// HasMip reports whether the file carries a precomputed mipmap
	// dataset at the given downsample factor (HDF5-specific; always
	// false for formats without mipmaps).
	HasMip(n int) bool

	// GetImageStats returns the loader's own cached statistics for a
	// plane, if the format carries them (e.g. FITS header stats keywords),
	// consulted before any software-side cache.
	GetImageStats(stokes, channel int) ImageStats

	// Close releases any resources associated with the opened file.
	Close() error
}

// CoordinateSystem is the capability set region/profile/fit code needs
// to translate between pixel and world coordinates, matching §6's
// CoordinateSystem contract.
type CoordinateSystem interface {
	AxisType(axis int) string
	Projection() string
	ReferencePixel(axis int) float64
	ReferenceValue(axis int) float64
	Increment(axis int) float64
	Equinox() string
	RadeSys() string
}

// MomentRequest parameterizes a moment-map generation run.
type MomentRequest struct {
	Moments      []int // moment order(s) requested, e.g. 0 (integrated), 1 (mean velocity), 2 (dispersion)
	Axis         int   // spectral axis index to collapse along
	IncludeLo    float64
	IncludeHi    float64
	ExcludeRange bool
}

// MomentProgress reports fractional completion of CreateMoments.
type MomentProgress func(progress float64)

// MomentResult is one generated moment image.
type MomentResult struct {
	Moment int
	Width  int
	Height int
	Data   []float64
	Name   string
}

// MomentGenerator is the capability set for moment-map generation,
// matching §6's Moment generator contract.
type MomentGenerator interface {
	SetMoments(moments []int)
	SetMomentAxis(axis int)
	SetInExcludeRange(lo, hi float64, exclude bool)
	CreateMoments(ctx context.Context, progress MomentProgress) ([]MomentResult, error)
	StopCalculation()
}
