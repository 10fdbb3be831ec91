package fileinfo

import "testing"

func TestBuildScenario1(t *testing.T) {
	shape := Shape{Width: 640, Height: 800, Depth: 25, NumStokes: 1, HDU: "0"}
	info := Build(shape, map[string]string{"BITPIX": "-32"})

	if info.Shape.HDU != "0" {
		t.Fatalf("HDU = %q, want %q", info.Shape.HDU, "0")
	}
	if info.Shape.Depth != 25 {
		t.Fatalf("Depth = %d, want 25", info.Shape.Depth)
	}
	if info.Shape.NumStokes != 1 {
		t.Fatalf("NumStokes = %d, want 1", info.Shape.NumStokes)
	}
	if len(info.HeaderEntries) != 1 || info.HeaderEntries[0].Name != "BITPIX" {
		t.Fatalf("header entries = %+v", info.HeaderEntries)
	}
}

func TestBuildOmitsAbsentBeam(t *testing.T) {
	info := Build(Shape{Width: 10, Height: 10, Depth: 1, NumStokes: 1}, nil)
	for _, e := range info.ComputedEntries {
		if e.Name == "Restoring beam" {
			t.Fatal("unexpected beam entry for a shape with no beam")
		}
	}
}

func TestBuildIncludesBeamWhenPresent(t *testing.T) {
	shape := Shape{Width: 10, Height: 10, Depth: 1, NumStokes: 1, BeamMajor: 1.5, BeamMinor: 1.0, BeamPA: 45}
	info := Build(shape, nil)
	found := false
	for _, e := range info.ComputedEntries {
		if e.Name == "Restoring beam" {
			found = true
		}
	}
	if !found {
		t.Fatal("expected a beam entry when BeamMajor/BeamMinor are set")
	}
}
