package loader

import (
	"context"
	"math"
	"testing"
)

func TestMemoryLoaderOpenFileValidatesShape(t *testing.T) {
	l := NewMemoryLoader(0, 0, 1, 1)
	if err := l.OpenFile("0"); err == nil {
		t.Fatal("expected an error opening a zero-sized image")
	}
}

func TestMemoryLoaderFindCoordinateAxes(t *testing.T) {
	l := NewMemoryLoader(640, 800, 25, 1)
	shape, zAxis, stokesAxis, err := l.FindCoordinateAxes()
	if err != nil {
		t.Fatalf("FindCoordinateAxes: %v", err)
	}
	if len(shape) != 3 || shape[0] != 640 || shape[1] != 800 || shape[2] != 25 {
		t.Fatalf("shape = %v, want [640 800 25]", shape)
	}
	if zAxis != 2 {
		t.Fatalf("zAxis = %d, want 2", zAxis)
	}
	if stokesAxis != -1 {
		t.Fatalf("stokesAxis = %d, want -1 for a single-stokes cube", stokesAxis)
	}
}

func TestMemoryLoaderGetImageReturnsInstalledPlane(t *testing.T) {
	l := NewMemoryLoader(2, 2, 1, 1)
	l.SetPlane(0, 0, []float64{1, 2, 3, 4})
	got, err := l.GetImage(context.Background(), 0, 0)
	if err != nil {
		t.Fatalf("GetImage: %v", err)
	}
	want := []float64{1, 2, 3, 4}
	for i, v := range want {
		if got[i] != v {
			t.Fatalf("index %d: got %v, want %v", i, got[i], v)
		}
	}
}

func TestMemoryLoaderGetSubImageMasksExcludedPixels(t *testing.T) {
	l := NewMemoryLoader(2, 2, 1, 1)
	l.SetPlane(0, 0, []float64{1, 2, 3, 4})
	mask := []bool{true, false, true, false}
	out := make([]float64, 4)
	if err := l.GetSubImage(context.Background(), 0, 0, mask, 2, out); err != nil {
		t.Fatalf("GetSubImage: %v", err)
	}
	if out[0] != 1 || out[2] != 3 {
		t.Fatalf("included pixels wrong: %v", out)
	}
	if !math.IsNaN(out[1]) || !math.IsNaN(out[3]) {
		t.Fatalf("excluded pixels should be NaN: %v", out)
	}
}

func TestMemoryLoaderCursorSpectralData(t *testing.T) {
	l := NewMemoryLoader(2, 2, 3, 1)
	for z := 0; z < 3; z++ {
		l.SetPlane(z, 0, []float64{float64(z), float64(z) + 1, float64(z) + 2, float64(z) + 3})
	}
	out, err := l.GetCursorSpectralData(context.Background(), 1, 1, 0, 0, 3)
	if err != nil {
		t.Fatalf("GetCursorSpectralData: %v", err)
	}
	want := []float64{3, 4, 5}
	for i, v := range want {
		if out[i] != v {
			t.Fatalf("index %d: got %v, want %v", i, out[i], v)
		}
	}
}

func TestMemoryLoaderRespectsCancellation(t *testing.T) {
	l := NewMemoryLoader(4, 4, 1, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := l.GetImage(ctx, 0, 0); err == nil {
		t.Fatal("expected GetImage to observe a cancelled context")
	}
}
