package frame

import (
	"context"

	"github.com/CARTAvis/carta-backend-sub003/internal/requirements"
	"github.com/CARTAvis/carta-backend-sub003/internal/stats"
	"github.com/CARTAvis/carta-backend-sub003/internal/wire"
)

// HistogramResult is one fillRegionHistogramData outcome.
type HistogramResult struct {
	NumBins  int
	Min, Max float64
	BinWidth float64
	Counts   []int64
	Progress float64
}

// FillRegionHistogramData implements the loader-stats-first precedence
// (§9 Open Question 1): the loader's own cached stats are checked first
// and used only if num_bins matches; otherwise the frame's requirements
// cache is consulted, and only on a miss is a histogram freshly computed
// and cached for next time.
func (f *Frame) FillRegionHistogramData(ctx context.Context, regionID int32, numBins int) (HistogramResult, error) {
	f.planeMu.RLock()
	plane := f.plane
	channel, stokes := f.curChannel, f.curStokes
	f.planeMu.RUnlock()

	if loaderStats := f.loader.GetImageStats(stokes, channel); loaderStats.Valid && loaderStats.NumBins == numBins {
		return HistogramResult{
			NumBins: loaderStats.NumBins, Min: loaderStats.Min, Max: loaderStats.Max,
			BinWidth: loaderStats.BinWidth, Counts: loaderStats.Counts, Progress: 1,
		}, nil
	}

	cacheID := requirements.CacheID{FileID: f.FileID, RegionID: regionID, Stokes: int32(stokes), Channel: int32(channel)}
	if cached, ok := f.Requirements.GetHistogram(cacheID, int32(numBins)); ok {
		h := cached.(stats.Histogram)
		return HistogramResult{NumBins: h.NumBins(), Min: h.Min, Max: h.Max, BinWidth: h.BinWidth, Counts: h.Counts, Progress: 1}, nil
	}

	boundsStats := stats.NewBasicStatsAccumulator()
	boundsStats.AddAll(plane)
	if boundsStats.NumPixels == 0 {
		return HistogramResult{}, wire.NewError(wire.ErrValidation, "no finite pixels to histogram")
	}

	h := stats.NewHistogram(numBins, boundsStats.Min, boundsStats.Max)
	h.AddAll(plane)
	f.Requirements.PutHistogram(cacheID, int32(numBins), h)

	return HistogramResult{NumBins: h.NumBins(), Min: h.Min, Max: h.Max, BinWidth: h.BinWidth, Counts: h.Counts, Progress: 1}, nil
}

// FillCubeHistogram computes a cube-wide histogram with a channel-wise
// two-pass: a stats-only pass to find global min/max when bounds aren't
// fixed, then a histogram pass over the same channels, each emitting
// progress and checking the frame's cancel flag (Frame.cc's
// GetCubeHistogramData).
func (f *Frame) FillCubeHistogram(ctx context.Context, regionID int32, numBins int, fixedMin, fixedMax float64, fixedBounds bool, progress func(HistogramResult)) (HistogramResult, error) {
	f.planeMu.RLock()
	depth, stokes := f.shape.Depth, f.curStokes
	f.planeMu.RUnlock()

	minVal, maxVal := fixedMin, fixedMax
	if !fixedBounds {
		acc := stats.NewBasicStatsAccumulator()
		for ch := 0; ch < depth; ch++ {
			if f.cancelled() {
				return HistogramResult{}, wire.NewError(wire.ErrTransient, "task cancelled")
			}
			plane, err := f.loader.GetImage(ctx, ch, stokes)
			if err != nil {
				return HistogramResult{}, wire.NewError(wire.ErrInternal, err.Error())
			}
			acc.AddAll(plane)
			if progress != nil {
				progress(HistogramResult{Progress: float64(ch+1) / float64(depth) / 2})
			}
		}
		minVal, maxVal = acc.Min, acc.Max
	}

	if minVal >= maxVal {
		return HistogramResult{}, wire.NewError(wire.ErrValidation, "invalid histogram bounds")
	}

	h := stats.NewHistogram(numBins, minVal, maxVal)
	for ch := 0; ch < depth; ch++ {
		if f.cancelled() {
			return HistogramResult{}, wire.NewError(wire.ErrTransient, "task cancelled")
		}
		plane, err := f.loader.GetImage(ctx, ch, stokes)
		if err != nil {
			return HistogramResult{}, wire.NewError(wire.ErrInternal, err.Error())
		}
		h.AddAll(plane)
		if progress != nil {
			base := 0.5
			if fixedBounds {
				base = 0
			}
			progress(HistogramResult{Progress: base + (1-base)*float64(ch+1)/float64(depth)})
		}
	}

	result := HistogramResult{NumBins: h.NumBins(), Min: h.Min, Max: h.Max, BinWidth: h.BinWidth, Counts: h.Counts, Progress: 1}
	cacheID := requirements.CacheID{FileID: f.FileID, RegionID: regionID, Stokes: int32(stokes), Channel: -1}
	f.Requirements.PutHistogram(cacheID, int32(numBins), h)
	return result, nil
}
