package loader

import (
	"context"
	"fmt"
	"math"
	"sync"
)

// MemoryLoader is an in-memory FileLoader backed by plain float64 planes,
// used by tests and cmd/carta-backend in place of a real FITS/HDF5
// backend. Planes are addressed by (channel, stokes); a plane that was
// never installed reads as all zeros.
type MemoryLoader struct {
	mu sync.RWMutex

	Width, Height int
	NumChannels   int
	NumStokes     int
	Planes        map[[2]int][]float64 // key: {channel, stokes}

	hdu       string
	cancelled bool
}

// NewMemoryLoader builds a loader over a width x height x numChannels x
// numStokes cube with all planes initially zero.
func NewMemoryLoader(width, height, numChannels, numStokes int) *MemoryLoader {
	return &MemoryLoader{
		Width: width, Height: height, NumChannels: numChannels, NumStokes: numStokes,
		Planes: make(map[[2]int][]float64),
	}
}

// SetPlane installs a precomputed plane for (channel, stokes).
func (l *MemoryLoader) SetPlane(channel, stokes int, data []float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Planes[[2]int{channel, stokes}] = data
}

func (l *MemoryLoader) plane(channel, stokes int) []float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if p, ok := l.Planes[[2]int{channel, stokes}]; ok {
		return p
	}
	return make([]float64, l.Width*l.Height)
}

func (l *MemoryLoader) OpenFile(hdu string) error {
	l.hdu = hdu
	if l.Width <= 0 || l.Height <= 0 {
		return fmt.Errorf("loader: invalid shape %dx%d", l.Width, l.Height)
	}
	return nil
}

func (l *MemoryLoader) FindCoordinateAxes() (shape []int, zAxis, stokesAxis int, err error) {
	shape = []int{l.Width, l.Height}
	zAxis, stokesAxis = -1, -1
	if l.NumChannels > 1 {
		zAxis = len(shape)
		shape = append(shape, l.NumChannels)
	}
	if l.NumStokes > 1 {
		stokesAxis = len(shape)
		shape = append(shape, l.NumStokes)
	}
	return shape, zAxis, stokesAxis, nil
}

func (l *MemoryLoader) GetImage(ctx context.Context, channel, stokes int) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return append([]float64(nil), l.plane(channel, stokes)...), nil
}

func (l *MemoryLoader) GetSlice(ctx context.Context, channel, stokes int, s Slicer) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	plane := l.plane(channel, stokes)
	xStep, yStep := s.XStep, s.YStep
	if xStep <= 0 {
		xStep = 1
	}
	if yStep <= 0 {
		yStep = 1
	}
	var out []float64
	for y := s.YStart; y < s.YEnd && y < l.Height; y += yStep {
		for x := s.XStart; x < s.XEnd && x < l.Width; x += xStep {
			if x < 0 || y < 0 {
				continue
			}
			out = append(out, plane[y*l.Width+x])
		}
	}
	return out, nil
}

func (l *MemoryLoader) GetSubImage(ctx context.Context, channel, stokes int, mask []bool, width int, out []float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	plane := l.plane(channel, stokes)
	if len(mask) > len(plane) || len(out) < len(mask) {
		return fmt.Errorf("loader: mask/out size mismatch")
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

func (l *MemoryLoader) GetCursorSpectralData(ctx context.Context, x, y, stokes, zStart, deltaZ int) ([]float64, error) {
	out := make([]float64, 0, deltaZ)
	for z := zStart; z < zStart+deltaZ && z < l.NumChannels; z++ {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		plane := l.plane(z, stokes)
		if y < 0 || y >= l.Height || x < 0 || x >= l.Width {
			out = append(out, math.NaN())
			continue
		}
		out = append(out, plane[y*l.Width+x])
	}
	return out, nil
}

func (l *MemoryLoader) GetRegionSpectralData(ctx context.Context, mask []bool, width int, stokes, zStart, deltaZ int, stat string) ([]float64, error) {
	out := make([]float64, 0, deltaZ)
	for z := zStart; z < zStart+deltaZ && z < l.NumChannels; z++ {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		plane := l.plane(z, stokes)
		var sum float64
		var count int
		var min, max = math.Inf(1), math.Inf(-1)
		for i, include := range mask {
			if !include || i >= len(plane) {
				continue
			}
			v := plane[i]
			if math.IsNaN(v) {
				continue
			}
			sum += v
			count++
			if v < min {
				min = v
			}
			if v > max {
				max = v
			}
		}
		switch stat {
		case "min":
			out = append(out, min)
		case "max":
			out = append(out, max)
		case "sum":
			out = append(out, sum)
		default: // "mean"
			if count == 0 {
				out = append(out, math.NaN())
			} else {
				out = append(out, sum/float64(count))
			}
		}
	}
	return out, nil
}

func (l *MemoryLoader) HasMip(n int) bool { return false }

func (l *MemoryLoader) GetImageStats(stokes, channel int) ImageStats {
	return ImageStats{Valid: false}
}

func (l *MemoryLoader) Close() error { return nil }
