// Package fitter implements nonlinear least-squares 2-D multi-Gaussian
// fitting over an image region: Levenberg-Marquardt with per-parameter
// freeze, method-of-moments initial value seeding, MAD-based weighting
// and SNR-based analytical error estimation, translated from
// ImageFitter.cc's GSL-based solver.
package fitter

import (
	"context"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// sqFWHMToSigma converts a squared FWHM into the corresponding Gaussian
// variance scale: 1/(8 ln 2).
const sqFWHMToSigma = 1.0 / 8.0 / 0.6931471805599453

const degToRad = math.Pi / 180.0

// Component is one Gaussian's parameter set: center, amplitude, FWHM on
// each axis, and position angle in degrees.
type Component struct {
	CenterX, CenterY float64
	Amplitude        float64
	FWHMX, FWHMY     float64
	PA               float64
}

func (c Component) params() [6]float64 {
	return [6]float64{c.CenterX, c.CenterY, c.Amplitude, c.FWHMX, c.FWHMY, c.PA}
}

func fromParams(p [6]float64) Component {
	return Component{CenterX: p[0], CenterY: p[1], Amplitude: p[2], FWHMX: p[3], FWHMY: p[4], PA: p[5]}
}

// Request parameterizes one FitImage call.
type Request struct {
	Width, Height int
	Data          []float64 // row-major width*height, NaN excluded from the fit
	InitialValues []Component
	FixedParams   []bool // length 6*len(InitialValues)+1 (last entry is background); nil = none fixed
	Background    float64
	BeamArea      float64 // pixels^2, used by the SNR error model; 0 disables beam-area-based flux
	MaxIterations int

	// Cancel is polled between iterations; when it returns true the
	// solver stops and FuncF-style residual zeroing makes the next
	// evaluation a no-op, mirroring ImageFitter's stop_fitting flag.
	Cancel func() bool

	// Progress is called once per iteration with the 0-based iteration
	// number, mirroring the GSL callback.
	Progress func(iter int)
}

// Result is the FitImage outcome.
type Result struct {
	Success         bool
	Message         string
	Components      []Component
	ComponentErrors []Component
	Background      float64
	BackgroundError float64
	IntegratedFlux  []float64
	IntegratedFluxError []float64
	NumIterations   int
}

// indexMap assigns each of the 6*n+1 parameters either a free-vector
// index (>=0) or -1 if it is fixed at its initial value, the Go
// equivalent of ImageFitter's fit_values_indexes redirect table.
func buildIndexMap(numParams int, fixed []bool) []int {
	idx := make([]int, numParams)
	next := 0
	for i := 0; i < numParams; i++ {
		isFixed := i < len(fixed) && fixed[i]
		if isFixed {
			idx[i] = -1
		} else {
			idx[i] = next
			next++
		}
	}
	return idx
}

func numFree(idx []int) int {
	n := 0
	for _, v := range idx {
		if v >= 0 {
			n++
		}
	}
	return n
}

// FitImage runs the Levenberg-Marquardt solve. The Jacobian is estimated
// by central finite differences, the same substitution GSL performs
// internally when ImageFitter leaves fdf.df nil.
func FitImage(ctx context.Context, req Request) Result {
	n := req.Width * req.Height
	numComponents := len(req.InitialValues)
	numParams := 6*numComponents + 1

	allInitial := make([]float64, numParams)
	for i, c := range req.InitialValues {
		p := c.params()
		copy(allInitial[i*6:i*6+6], p[:])
	}
	allInitial[numParams-1] = req.Background

	idx := buildIndexMap(numParams, req.FixedParams)
	free := numFree(idx)
	if free == 0 {
		return Result{Success: false, Message: "no free parameters"}
	}

	numNotNaN := 0
	for _, v := range req.Data {
		if !math.IsNaN(v) {
			numNotNaN++
		}
	}
	if numNotNaN < free {
		return Result{Success: false, Message: "insufficient data points"}
	}

	x0 := make([]float64, free)
	for i, fi := range idx {
		if fi >= 0 {
			x0[fi] = allInitial[i]
		}
	}

	weight := madWeight(req.Data)

	residual := func(x []float64) []float64 {
		full := make([]float64, numParams)
		for i, fi := range idx {
			if fi >= 0 {
				full[i] = x[fi]
			} else {
				full[i] = allInitial[i]
			}
		}
		return evalResidual(req.Width, req.Height, req.Data, full, numComponents, weight, req.Cancel)
	}

	xFit, cov, numIter := levenbergMarquardt(x0, n, residual, req.MaxIterations, req.Progress, req.Cancel)

	full := make([]float64, numParams)
	fullErr := make([]float64, numParams)
	for i, fi := range idx {
		if fi >= 0 {
			full[i] = xFit[fi]
			if cov != nil {
				fullErr[i] = math.Sqrt(math.Abs(cov.At(fi, fi)))
			}
		} else {
			full[i] = allInitial[i]
		}
	}

	result := Result{Success: true, NumIterations: numIter}
	for i := 0; i < numComponents; i++ {
		var p, e [6]float64
		copy(p[:], full[i*6:i*6+6])
		copy(e[:], fullErr[i*6:i*6+6])
		result.Components = append(result.Components, fromParams(p))
		result.ComponentErrors = append(result.ComponentErrors, fromParams(e))

		flux, fluxErr := integratedFlux(fromParams(p), fromParams(e), req.BeamArea)
		result.IntegratedFlux = append(result.IntegratedFlux, flux)
		result.IntegratedFluxError = append(result.IntegratedFluxError, fluxErr)
	}
	result.Background = full[numParams-1]
	result.BackgroundError = fullErr[numParams-1]
	return result
}

// evalResidual computes data-model for every pixel, summing all
// components' contributions, matching ImageFitter::FuncF. NaN pixels and
// a cancelled fit both produce a zero residual.
func evalResidual(width, height int, data []float64, params []float64, numComponents int, weight float64, cancel func() bool) []float64 {
	n := width * height
	f := make([]float64, n)
	background := params[len(params)-1]

	if cancel != nil && cancel() {
		return f // all zero
	}

	for k := 0; k < numComponents; k++ {
		var p [6]float64
		copy(p[:], params[k*6:k*6+6])
		c := fromParams(p)

		dblSqStdX := 2 * c.FWHMX * c.FWHMX * sqFWHMToSigma
		dblSqStdY := 2 * c.FWHMY * c.FWHMY * sqFWHMToSigma
		theta := (c.PA - 90.0) * degToRad
		cosT, sinT := math.Cos(theta), math.Sin(theta)
		a := cosT*cosT/dblSqStdX + sinT*sinT/dblSqStdY
		b2 := 2 * (math.Sin(2*theta)/(2*dblSqStdX) - math.Sin(2*theta)/(2*dblSqStdY))
		cc := sinT*sinT/dblSqStdX + cosT*cosT/dblSqStdY

		for i := 0; i < n; i++ {
			di := data[i] - background
			if math.IsNaN(di) {
				f[i] = 0
				continue
			}
			dx := float64(i%width) - c.CenterX
			dy := float64(i/width) - c.CenterY
			model := c.Amplitude * math.Exp(-(a*dx*dx + b2*dx*dy + cc*dy*dy))
			if k == 0 {
				f[i] = (di - model) * weight
			} else {
				f[i] = f[i] - model*weight
			}
		}
	}
	return f
}

// madWeight returns 1/sigma from the median absolute deviation of the
// finite values in data, the fit's uniform weighting factor.
func madWeight(data []float64) float64 {
	finite := make([]float64, 0, len(data))
	for _, v := range data {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			finite = append(finite, v)
		}
	}
	if len(finite) == 0 {
		return 1
	}
	median := stat.Quantile(0.5, stat.Empirical, append([]float64(nil), finite...), nil)
	devs := make([]float64, len(finite))
	for i, v := range finite {
		devs[i] = math.Abs(v - median)
	}
	mad := stat.Quantile(0.5, stat.Empirical, devs, nil)
	sigma := mad * 1.4826
	if sigma <= 0 {
		return 1
	}
	return 1 / sigma
}

// integratedFlux computes 2*pi*fwhm_x*fwhm_y*(1/8ln2)*amp[/beam_area]
// and its propagated error from the component's parameter errors.
func integratedFlux(c, cErr Component, beamArea float64) (flux, fluxErr float64) {
	flux = 2 * math.Pi * c.FWHMX * c.FWHMY * sqFWHMToSigma * c.Amplitude
	if beamArea > 0 {
		flux /= beamArea
	}
	// relative error combines amplitude and FWHM terms in quadrature,
	// the same shape as ImageFitter's rho_square-based error model.
	var relErrSq float64
	if c.Amplitude != 0 {
		relErrSq += (cErr.Amplitude / c.Amplitude) * (cErr.Amplitude / c.Amplitude)
	}
	if c.FWHMX != 0 {
		relErrSq += (cErr.FWHMX / c.FWHMX) * (cErr.FWHMX / c.FWHMX)
	}
	if c.FWHMY != 0 {
		relErrSq += (cErr.FWHMY / c.FWHMY) * (cErr.FWHMY / c.FWHMY)
	}
	fluxErr = math.Abs(flux) * math.Sqrt(relErrSq)
	return flux, fluxErr
}

// levenbergMarquardt minimizes ||residual(x)||^2 starting from x0,
// building the Jacobian by central finite differences and solving the
// damped normal equations (J^T J + lambda*diag(J^T J)) delta = J^T r
// with gonum/mat at each step.
func levenbergMarquardt(x0 []float64, numResiduals int, residual func([]float64) []float64, maxIter int, progress func(iter int), cancel func() bool) (xFit []float64, covariance *mat.Dense, numIter int) {
	if maxIter <= 0 {
		maxIter = 100
	}
	p := len(x0)
	x := append([]float64(nil), x0...)
	lambda := 1e-3

	r := residual(x)
	cost := sumSquares(r)

	var jtjInv *mat.Dense

	for iter := 0; iter < maxIter; iter++ {
		numIter = iter + 1
		if progress != nil {
			progress(iter)
		}
		if cancel != nil && cancel() {
			break
		}

		J := jacobian(x, numResiduals, residual)

		var jt mat.Dense
		jt.CloneFrom(J.T())
		var jtj mat.Dense
		jtj.Mul(&jt, J)

		for i := 0; i < p; i++ {
			jtj.Set(i, i, jtj.At(i, i)*(1+lambda))
		}

		rVec := mat.NewVecDense(numResiduals, r)
		var jtr mat.VecDense
		jtr.MulVec(&jt, rVec)

		var delta mat.VecDense
		if err := delta.SolveVec(&jtj, &jtr); err != nil {
			lambda *= 10
			continue
		}

		xNew := make([]float64, p)
		for i := range x {
			xNew[i] = x[i] - delta.AtVec(i)
		}
		rNew := residual(xNew)
		costNew := sumSquares(rNew)

		if costNew < cost {
			improved := cost - costNew
			x = xNew
			r = rNew
			cost = costNew
			lambda = math.Max(lambda/10, 1e-12)

			var jtjFull mat.Dense
			jtjFull.Mul(&jt, J)
			inv := mat.NewDense(p, p, nil)
			if err := inv.Inverse(&jtjFull); err == nil {
				jtjInv = inv
			}

			if improved < 1e-12*(1+cost) {
				break
			}
		} else {
			lambda *= 10
			if lambda > 1e12 {
				break
			}
		}
	}

	return x, jtjInv, numIter
}

func sumSquares(v []float64) float64 {
	var s float64
	for _, x := range v {
		s += x * x
	}
	return s
}

// jacobian builds the numResiduals x len(x) Jacobian of residual at x
// using a central finite difference per parameter.
func jacobian(x []float64, numResiduals int, residual func([]float64) []float64) *mat.Dense {
	p := len(x)
	J := mat.NewDense(numResiduals, p, nil)
	for j := 0; j < p; j++ {
		h := 1e-6 * (math.Abs(x[j]) + 1e-6)
		xPlus := append([]float64(nil), x...)
		xMinus := append([]float64(nil), x...)
		xPlus[j] += h
		xMinus[j] -= h
		rPlus := residual(xPlus)
		rMinus := residual(xMinus)
		for i := 0; i < numResiduals; i++ {
			J.Set(i, j, (rPlus[i]-rMinus[i])/(2*h))
		}
	}
	return J
}

// MomentEstimate seeds a single Gaussian component from an image's
// intensity-weighted centroid and second moments, used when the caller
// supplies no initial values (ImageFitter's InitialValueCalculator).
func MomentEstimate(width, height int, data []float64) Component {
	var sum, sumX, sumY float64
	maxVal := math.Inf(-1)
	for i, v := range data {
		if math.IsNaN(v) || v <= 0 {
			continue
		}
		x := float64(i % width)
		y := float64(i / width)
		sum += v
		sumX += v * x
		sumY += v * y
		if v > maxVal {
			maxVal = v
		}
	}
	if sum == 0 {
		return Component{CenterX: float64(width) / 2, CenterY: float64(height) / 2, Amplitude: 1, FWHMX: 3, FWHMY: 3}
	}
	cx := sumX / sum
	cy := sumY / sum

	var sumVarX, sumVarY float64
	for i, v := range data {
		if math.IsNaN(v) || v <= 0 {
			continue
		}
		x := float64(i % width)
		y := float64(i / width)
		sumVarX += v * (x - cx) * (x - cx)
		sumVarY += v * (y - cy) * (y - cy)
	}
	sigmaX := math.Sqrt(sumVarX / sum)
	sigmaY := math.Sqrt(sumVarY / sum)
	const sigmaToFWHM = 2.3548200450309493 // 2*sqrt(2*ln2)

	return Component{
		CenterX: cx, CenterY: cy, Amplitude: maxVal,
		FWHMX: math.Max(sigmaX*sigmaToFWHM, 1e-3),
		FWHMY: math.Max(sigmaY*sigmaToFWHM, 1e-3),
	}
}
