package frame

import (
	"context"

	"github.com/CARTAvis/carta-backend-sub003/internal/requirements"
	"github.com/CARTAvis/carta-backend-sub003/internal/stats"
	"github.com/CARTAvis/carta-backend-sub003/internal/wire"
)

// SpatialProfile is a 1-D slice of the current plane through a cursor
// point along x or y.
type SpatialProfile struct {
	Coordinate string // "x", "y", or "<stokes>x"/"<stokes>y" for a matched stokes plane
	Start, End int
	Values     []float64
}

// FillSpatialProfileData reads a row or column of the current plane
// through (x, y) for each requested coordinate.
func (f *Frame) FillSpatialProfileData(ctx context.Context, x, y int, coordinates []string) ([]SpatialProfile, error) {
	f.planeMu.RLock()
	plane := f.plane
	width, height := f.shape.Width, f.shape.Height
	f.planeMu.RUnlock()

	if x < 0 || x >= width || y < 0 || y >= height {
		return nil, wire.NewError(wire.ErrValidation, "cursor outside image bounds")
	}

	out := make([]SpatialProfile, 0, len(coordinates))
	for _, coord := range coordinates {
		axis := coord[len(coord)-1:]
		var values []float64
		switch axis {
		case "x":
			values = make([]float64, width)
			copy(values, plane[y*width:y*width+width])
			out = append(out, SpatialProfile{Coordinate: coord, Start: 0, End: width, Values: values})
		case "y":
			values = make([]float64, height)
			for row := 0; row < height; row++ {
				values[row] = plane[row*width+x]
			}
			out = append(out, SpatialProfile{Coordinate: coord, Start: 0, End: height, Values: values})
		default:
			return nil, wire.NewError(wire.ErrValidation, "unknown spatial coordinate")
		}
	}
	return out, nil
}

// FillRegionStatsData computes BasicStats over a region mask (or the
// full current plane if mask is nil), caching the result per stat kind.
func (f *Frame) FillRegionStatsData(ctx context.Context, regionID int32, mask []bool) (stats.BasicStats, error) {
	f.planeMu.RLock()
	plane := f.plane
	width, channel, stokes := f.shape.Width, f.curChannel, f.curStokes
	f.planeMu.RUnlock()

	cacheID := requirements.CacheID{FileID: f.FileID, RegionID: regionID, Stokes: int32(stokes), Channel: int32(channel)}
	if cached, ok := f.Requirements.GetStats(cacheID, "basic"); ok {
		return cached.(stats.BasicStats), nil
	}

	data := plane
	if mask != nil {
		out := make([]float64, len(mask))
		if err := f.loader.GetSubImage(ctx, channel, stokes, mask, width, out); err != nil {
			return stats.BasicStats{}, wire.NewError(wire.ErrInternal, err.Error())
		}
		data = out
	}

	acc := stats.NewBasicStatsAccumulator()
	acc.AddAll(data)
	f.Requirements.PutStats(cacheID, "basic", acc)
	return acc, nil
}
