package loader

import (
	"context"
	"math"
)

// momentGenerator implements MomentGenerator over a MemoryLoader's
// channel cube at a fixed stokes plane, collapsing along the channel
// axis the same way a real cube's spectral axis would be collapsed.
type momentGenerator struct {
	l       *MemoryLoader
	stokes  int
	moments []int
	axis    int

	includeLo, includeHi float64
	excludeRange         bool
	stopped              bool
}

// NewMomentGenerator returns a MomentGenerator over l's channel cube at
// the given stokes plane, the in-memory stand-in for a backend-specific
// moment generator (spec's FileLoader contract leaves the concrete
// implementation to the deployment).
func NewMomentGenerator(l *MemoryLoader, stokes int) MomentGenerator {
	return &momentGenerator{l: l, stokes: stokes}
}

func (g *momentGenerator) SetMoments(moments []int) { g.moments = moments }
func (g *momentGenerator) SetMomentAxis(axis int)   { g.axis = axis }
func (g *momentGenerator) SetInExcludeRange(lo, hi float64, exclude bool) {
	g.includeLo, g.includeHi, g.excludeRange = lo, hi, exclude
}
func (g *momentGenerator) StopCalculation() { g.stopped = true }

func (g *momentGenerator) included(v float64) bool {
	if math.IsNaN(v) {
		return false
	}
	if g.includeLo == 0 && g.includeHi == 0 {
		return true
	}
	inRange := v >= g.includeLo && v <= g.includeHi
	if g.excludeRange {
		return !inRange
	}
	return inRange
}

// CreateMoments collapses the channel axis into one image per requested
// moment order: 0 is integrated intensity, 1 is the intensity-weighted
// mean channel index, 2 is the intensity-weighted channel dispersion;
// any other order falls back to the dispersion formula.
func (g *momentGenerator) CreateMoments(ctx context.Context, progress MomentProgress) ([]MomentResult, error) {
	w, h, n := g.l.Width, g.l.Height, g.l.NumChannels
	results := make([]MomentResult, 0, len(g.moments))

	for mi, order := range g.moments {
		if g.stopped {
			return results, nil
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		sum := make([]float64, w*h)
		weightedZ := make([]float64, w*h)
		weightedZ2 := make([]float64, w*h)
		for z := 0; z < n; z++ {
			plane := g.l.plane(z, g.stokes)
			for i, v := range plane {
				if !g.included(v) {
					continue
				}
				sum[i] += v
				weightedZ[i] += v * float64(z)
				weightedZ2[i] += v * float64(z) * float64(z)
			}
		}

		data := make([]float64, w*h)
		for i := range data {
			switch {
			case order == 0:
				data[i] = sum[i]
			case sum[i] == 0:
				data[i] = math.NaN()
			case order == 1:
				data[i] = weightedZ[i] / sum[i]
			default:
				mean := weightedZ[i] / sum[i]
				variance := weightedZ2[i]/sum[i] - mean*mean
				if variance < 0 {
					variance = 0
				}
				data[i] = math.Sqrt(variance)
			}
		}

		if progress != nil {
			progress(float64(mi+1) / float64(len(g.moments)))
		}
		results = append(results, MomentResult{Moment: order, Width: w, Height: h, Data: data, Name: momentName(order)})
	}
	return results, nil
}

func momentName(order int) string {
	switch order {
	case 0:
		return "integrated"
	case 1:
		return "mean"
	case 2:
		return "dispersion"
	default:
		return "moment"
	}
}
