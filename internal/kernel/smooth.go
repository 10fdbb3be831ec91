package kernel

import "math"

// GaussianKernel1D builds a normalized 1-D Gaussian kernel of length
// 2R+1 with R = factor-1, sigma = (factor-1)/2, matching the contour
// smoothing preprocessing step.
func GaussianKernel1D(factor int) []float64 {
	r := factor - 1
	if r < 0 {
		r = 0
	}
	sigma := float64(factor-1) / 2
	if sigma <= 0 {
		return []float64{1}
	}
	n := 2*r + 1
	k := make([]float64, n)
	var sum float64
	for i := -r; i <= r; i++ {
		w := math.Exp(-float64(i*i) / (2 * sigma * sigma))
		k[i+r] = w
		sum += w
	}
	for i := range k {
		k[i] /= sum
	}
	return k
}

// GaussianSmooth2D applies a separable 2-D Gaussian blur to a w x h plane,
// NaN-safe: at every pixel, both weight and value contributions are
// zeroed wherever the source sample is NaN/Inf, and the result is
// normalized by the surviving weight sum (NaN if none survive). After
// both passes, any output pixel whose source apron center was NaN is
// forced back to NaN, so isolated NaNs don't get smeared into neighbors'
// output while still being correctly excluded from those neighbors' sums.
func GaussianSmooth2D(src []float64, w, h, factor int) []float64 {
	k := GaussianKernel1D(factor)
	r := len(k) / 2

	tmp := make([]float64, w*h)
	smoothAxis(src, tmp, w, h, k, r, true)

	out := make([]float64, w*h)
	smoothAxis(tmp, out, w, h, k, r, false)

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			idx := y*w + x
			v := src[idx]
			if math.IsNaN(v) || math.IsInf(v, 0) {
				out[idx] = math.NaN()
			}
		}
	}
	return out
}

// smoothAxis runs one 1-D pass (vertical when vertical=true, else
// horizontal) of the separable Gaussian blur.
func smoothAxis(src, dst []float64, w, h int, k []float64, r int, vertical bool) {
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var wsum, vsum float64
			for i := -r; i <= r; i++ {
				var sx, sy int
				if vertical {
					sx, sy = x, y+i
				} else {
					sx, sy = x+i, y
				}
				if sx < 0 || sx >= w || sy < 0 || sy >= h {
					continue
				}
				sv := src[sy*w+sx]
				if math.IsNaN(sv) || math.IsInf(sv, 0) {
					continue
				}
				weight := k[i+r]
				wsum += weight
				vsum += weight * sv
			}
			idx := y*w + x
			if wsum == 0 {
				dst[idx] = math.NaN()
			} else {
				dst[idx] = vsum / wsum
			}
		}
	}
}
