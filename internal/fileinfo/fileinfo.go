// Package fileinfo builds the header and computed-entry metadata an
// OPEN_FILE_ACK carries from the shape and coordinate information a
// loader reports about an image.
package fileinfo

import "fmt"

// Shape describes an opened image's axis extents and which axes carry
// spectral channel and polarization stokes, as discovered by
// internal/loader.FileLoader.FindCoordinateAxes.
type Shape struct {
	Width      int
	Height     int
	Depth      int // number of spectral channels; 1 if the image has no spectral axis
	NumStokes  int // number of polarizations; 1 if the image has no stokes axis
	HDU        string
	CoordTypes []string
	BeamMajor  float64 // arcsec, 0 if absent
	BeamMinor  float64
	BeamPA     float64
	Units      string
}

// Entry is one computed or header-derived metadata row surfaced to the
// client's file-info panel.
type Entry struct {
	Name        string
	Value       string
	EntryType   string // "string", "int", "float"
	NumericType string
}

// Info is the full OPEN_FILE_ACK payload body beyond success/message.
type Info struct {
	Shape           Shape
	HeaderEntries   []Entry
	ComputedEntries []Entry
}

// Build assembles an Info from a discovered Shape, following the same
// header/computed split the viewer's file-info panel expects: raw header
// keywords pass through as HeaderEntries, everything derived (shape,
// channel/stokes counts, restoring beam, pixel unit) goes into
// ComputedEntries.
func Build(shape Shape, headerKeywords map[string]string) Info {
	info := Info{Shape: shape}

	for _, name := range sortedKeys(headerKeywords) {
		info.HeaderEntries = append(info.HeaderEntries, Entry{
			Name: name, Value: headerKeywords[name], EntryType: "string",
		})
	}

	info.ComputedEntries = append(info.ComputedEntries,
		Entry{Name: "Shape", Value: formatShape(shape), EntryType: "string"},
		Entry{Name: "Number of channels", Value: fmt.Sprintf("%d", shape.Depth), EntryType: "int"},
		Entry{Name: "Number of stokes", Value: fmt.Sprintf("%d", shape.NumStokes), EntryType: "int"},
	)
	if shape.BeamMajor > 0 && shape.BeamMinor > 0 {
		info.ComputedEntries = append(info.ComputedEntries, Entry{
			Name:      "Restoring beam",
			Value:     fmt.Sprintf("%.4g\" x %.4g\", %.4g deg", shape.BeamMajor, shape.BeamMinor, shape.BeamPA),
			EntryType: "string",
		})
	}
	if shape.Units != "" {
		info.ComputedEntries = append(info.ComputedEntries, Entry{Name: "Pixel unit", Value: shape.Units, EntryType: "string"})
	}
	return info
}

func formatShape(s Shape) string {
	dims := []int{s.Width, s.Height}
	if s.Depth > 1 {
		dims = append(dims, s.Depth)
	}
	if s.NumStokes > 1 {
		dims = append(dims, s.NumStokes)
	}
	out := fmt.Sprintf("%d", dims[0])
	for _, d := range dims[1:] {
		out += fmt.Sprintf(" x %d", d)
	}
	return out
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	// insertion sort is fine: header keyword counts are small (tens, not
	// thousands) and this keeps the output deterministic for tests.
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j-1] > keys[j]; j-- {
			keys[j-1], keys[j] = keys[j], keys[j-1]
		}
	}
	return keys
}
