package stats

import "math"

// BasicStats accumulates the scalar statistics Frame/RegionHandler fill
// requests ask for. NaN and ±Inf inputs are skipped.
type BasicStats struct {
	NumPixels int64
	Sum       float64
	Mean      float64
	StdDev    float64
	Min       float64
	Max       float64
	RMS       float64
	SumSq     float64
}

// NewBasicStatsAccumulator returns a BasicStats primed so the first Add
// establishes Min/Max correctly.
func NewBasicStatsAccumulator() BasicStats {
	return BasicStats{Min: math.Inf(1), Max: math.Inf(-1)}
}

// Add folds one value into the accumulator and recomputes the derived
// fields (Mean, StdDev, RMS). NaN/Inf values are skipped.
func (b *BasicStats) Add(v float64) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return
	}
	b.NumPixels++
	b.Sum += v
	b.SumSq += v * v
	if v < b.Min {
		b.Min = v
	}
	if v > b.Max {
		b.Max = v
	}
	b.recompute()
}

// AddAll folds a slice of values into the accumulator.
func (b *BasicStats) AddAll(values []float64) {
	for _, v := range values {
		b.Add(v)
	}
}

func (b *BasicStats) recompute() {
	if b.NumPixels == 0 {
		b.Mean, b.StdDev, b.RMS = 0, 0, 0
		return
	}
	n := float64(b.NumPixels)
	b.Mean = b.Sum / n
	variance := b.SumSq/n - b.Mean*b.Mean
	if variance < 0 {
		variance = 0
	}
	b.StdDev = math.Sqrt(variance)
	b.RMS = math.Sqrt(b.SumSq / n)
}

// Join composes two BasicStats accumulators into one, combining counts,
// sums, sums-of-squares and extrema, then deriving mean/stddev/rms from
// the combined totals. Join is associative and commutative.
func Join(a, b BasicStats) BasicStats {
	if a.NumPixels == 0 {
		return b
	}
	if b.NumPixels == 0 {
		return a
	}
	out := BasicStats{
		NumPixels: a.NumPixels + b.NumPixels,
		Sum:       a.Sum + b.Sum,
		SumSq:     a.SumSq + b.SumSq,
		Min:       math.Min(a.Min, b.Min),
		Max:       math.Max(a.Max, b.Max),
	}
	out.recompute()
	return out
}
