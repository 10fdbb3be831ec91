package fitter

import (
	"context"
	"math"
	"testing"
)

func gaussianPlane(width, height int, c Component, background float64) []float64 {
	data := make([]float64, width*height)
	dblSqStdX := 2 * c.FWHMX * c.FWHMX * sqFWHMToSigma
	dblSqStdY := 2 * c.FWHMY * c.FWHMY * sqFWHMToSigma
	theta := (c.PA - 90.0) * degToRad
	cosT, sinT := math.Cos(theta), math.Sin(theta)
	a := cosT*cosT/dblSqStdX + sinT*sinT/dblSqStdY
	b2 := 2 * (math.Sin(2*theta)/(2*dblSqStdX) - math.Sin(2*theta)/(2*dblSqStdY))
	cc := sinT*sinT/dblSqStdX + cosT*cosT/dblSqStdY
	for i := range data {
		dx := float64(i%width) - c.CenterX
		dy := float64(i/width) - c.CenterY
		data[i] = background + c.Amplitude*math.Exp(-(a*dx*dx + b2*dx*dy + cc*dy*dy))
	}
	return data
}

func TestFitImageRecoversSymmetricGaussian(t *testing.T) {
	truth := Component{CenterX: 15, CenterY: 12, Amplitude: 10, FWHMX: 4, FWHMY: 4, PA: 0}
	data := gaussianPlane(30, 24, truth, 1.0)

	req := Request{
		Width: 30, Height: 24, Data: data,
		InitialValues: []Component{{CenterX: 14, CenterY: 13, Amplitude: 8, FWHMX: 3, FWHMY: 3, PA: 0}},
		Background:    0.5,
		MaxIterations: 60,
	}
	res := FitImage(context.Background(), req)
	if !res.Success {
		t.Fatalf("fit failed: %s", res.Message)
	}
	got := res.Components[0]
	if math.Abs(got.CenterX-truth.CenterX) > 0.2 {
		t.Errorf("CenterX = %v, want near %v", got.CenterX, truth.CenterX)
	}
	if math.Abs(got.CenterY-truth.CenterY) > 0.2 {
		t.Errorf("CenterY = %v, want near %v", got.CenterY, truth.CenterY)
	}
	if math.Abs(got.Amplitude-truth.Amplitude) > 1.0 {
		t.Errorf("Amplitude = %v, want near %v", got.Amplitude, truth.Amplitude)
	}
	if math.Abs(res.Background-1.0) > 0.5 {
		t.Errorf("Background = %v, want near 1.0", res.Background)
	}
}

func TestFitImageFixedParameterStaysAtInitialValue(t *testing.T) {
	truth := Component{CenterX: 10, CenterY: 10, Amplitude: 5, FWHMX: 3, FWHMY: 3, PA: 0}
	data := gaussianPlane(20, 20, truth, 0)

	fixed := make([]bool, 6+1)
	fixed[5] = true // PA fixed

	req := Request{
		Width: 20, Height: 20, Data: data,
		InitialValues: []Component{{CenterX: 9, CenterY: 9, Amplitude: 4, FWHMX: 2.5, FWHMY: 2.5, PA: 42}},
		FixedParams:   fixed,
		MaxIterations: 40,
	}
	res := FitImage(context.Background(), req)
	if !res.Success {
		t.Fatalf("fit failed: %s", res.Message)
	}
	if res.Components[0].PA != 42 {
		t.Fatalf("PA = %v, want the fixed initial value 42", res.Components[0].PA)
	}
}

func TestFitImageInsufficientDataPoints(t *testing.T) {
	req := Request{
		Width: 2, Height: 1,
		Data:          []float64{math.NaN(), math.NaN()},
		InitialValues: []Component{{CenterX: 1, CenterY: 0, Amplitude: 1, FWHMX: 1, FWHMY: 1}},
	}
	res := FitImage(context.Background(), req)
	if res.Success {
		t.Fatal("expected failure with all-NaN data")
	}
}

func TestFitImageCancellationStopsEarly(t *testing.T) {
	truth := Component{CenterX: 8, CenterY: 8, Amplitude: 5, FWHMX: 2, FWHMY: 2}
	data := gaussianPlane(16, 16, truth, 0)

	calls := 0
	req := Request{
		Width: 16, Height: 16, Data: data,
		InitialValues: []Component{{CenterX: 7, CenterY: 7, Amplitude: 4, FWHMX: 2, FWHMY: 2}},
		MaxIterations: 50,
		Cancel: func() bool {
			calls++
			return calls > 2
		},
	}
	res := FitImage(context.Background(), req)
	if res.NumIterations > 5 {
		t.Fatalf("expected cancellation to stop the solve quickly, ran %d iterations", res.NumIterations)
	}
}

func TestMomentEstimateFindsCentroid(t *testing.T) {
	truth := Component{CenterX: 5, CenterY: 5, Amplitude: 9, FWHMX: 2, FWHMY: 2}
	data := gaussianPlane(12, 12, truth, 0)

	est := MomentEstimate(12, 12, data)
	if math.Abs(est.CenterX-truth.CenterX) > 0.5 {
		t.Errorf("CenterX = %v, want near %v", est.CenterX, truth.CenterX)
	}
	if math.Abs(est.CenterY-truth.CenterY) > 0.5 {
		t.Errorf("CenterY = %v, want near %v", est.CenterY, truth.CenterY)
	}
}

func TestIntegratedFluxWithBeamArea(t *testing.T) {
	c := Component{FWHMX: 4, FWHMY: 4, Amplitude: 2}
	flux, _ := integratedFlux(c, Component{}, 10)
	want := 2 * math.Pi * 4 * 4 * sqFWHMToSigma * 2 / 10
	if math.Abs(flux-want) > 1e-9 {
		t.Fatalf("flux = %v, want %v", flux, want)
	}
}
