// Package wcs implements the loader.CoordinateSystem contract from
// spec.md §6 and the pixel<->world translation region.Handler.ResolveForFile
// needs to evaluate a region defined on one file against another file's
// grid. It carries no FITS/casacore dependency: a System is the linear
// reference-pixel/reference-value/increment form every WCS reduces to
// once rotation and nonlinear projection terms are ignored, which is as
// far as internal/loader's in-memory reference implementation goes (see
// its package doc: no FITS/HDF5/CASA/MIRIAD bytes are read here either).
package wcs

import (
	"sync"

	"github.com/CARTAvis/carta-backend-sub003/internal/loader"
	"github.com/CARTAvis/carta-backend-sub003/internal/region"
)

// System is a per-file linear coordinate system: world = refValue +
// (pixel - refPixel) * increment, independently per axis. It satisfies
// loader.CoordinateSystem.
type System struct {
	axisTypes  []string
	projection string
	refPixel   []float64
	refValue   []float64
	increment  []float64
	equinox    string
	radesys    string
}

// NewIdentitySystem returns a System with a unit pixel-to-world mapping
// on ndim axes, the default assigned to a file whose loader doesn't
// implement loader.CoordinateSystem.
func NewIdentitySystem(ndim int) *System {
	s := &System{
		axisTypes:  make([]string, ndim),
		refPixel:   make([]float64, ndim),
		refValue:   make([]float64, ndim),
		increment:  make([]float64, ndim),
		projection: "LINEAR",
	}
	for i := 0; i < ndim; i++ {
		s.axisTypes[i] = "PIXEL"
		s.increment[i] = 1
	}
	return s
}

// FromLoader builds a System from l's loader.CoordinateSystem if it
// implements one, or an identity system on ndim axes otherwise.
func FromLoader(l loader.FileLoader, ndim int) *System {
	cs, ok := l.(loader.CoordinateSystem)
	if !ok {
		return NewIdentitySystem(ndim)
	}
	s := &System{
		axisTypes:  make([]string, ndim),
		refPixel:   make([]float64, ndim),
		refValue:   make([]float64, ndim),
		increment:  make([]float64, ndim),
		projection: cs.Projection(),
		equinox:    cs.Equinox(),
		radesys:    cs.RadeSys(),
	}
	for i := 0; i < ndim; i++ {
		s.axisTypes[i] = cs.AxisType(i)
		s.refPixel[i] = cs.ReferencePixel(i)
		s.refValue[i] = cs.ReferenceValue(i)
		inc := cs.Increment(i)
		if inc == 0 {
			inc = 1
		}
		s.increment[i] = inc
	}
	return s
}

func (s *System) AxisType(axis int) string {
	if axis < 0 || axis >= len(s.axisTypes) {
		return ""
	}
	return s.axisTypes[axis]
}

func (s *System) Projection() string { return s.projection }

func (s *System) ReferencePixel(axis int) float64 { return s.at(s.refPixel, axis) }
func (s *System) ReferenceValue(axis int) float64 { return s.at(s.refValue, axis) }
func (s *System) Increment(axis int) float64      { return s.at(s.increment, axis) }

func (s *System) Equinox() string { return s.equinox }
func (s *System) RadeSys() string { return s.radesys }

func (s *System) at(vals []float64, axis int) float64 {
	if axis < 0 || axis >= len(vals) {
		return 0
	}
	return vals[axis]
}

// PixelToWorld converts a pixel coordinate (one value per axis) to world
// coordinates under this system.
func (s *System) PixelToWorld(pix []float64) []float64 {
	out := make([]float64, len(pix))
	for axis, p := range pix {
		out[axis] = s.ReferenceValue(axis) + (p-s.ReferencePixel(axis))*s.Increment(axis)
	}
	return out
}

// WorldToPixel converts a world coordinate back to pixels under this
// system, the inverse of PixelToWorld.
func (s *System) WorldToPixel(world []float64) []float64 {
	out := make([]float64, len(world))
	for axis, w := range world {
		inc := s.Increment(axis)
		if inc == 0 {
			inc = 1
		}
		out[axis] = s.ReferencePixel(axis) + (w-s.ReferenceValue(axis))/inc
	}
	return out
}

// Translator holds one System per open file and implements the
// translate callback region.Handler.ResolveForFile expects.
type Translator struct {
	mu      sync.Mutex
	systems map[int32]*System
}

// NewTranslator returns an empty Translator.
func NewTranslator() *Translator {
	return &Translator{systems: make(map[int32]*System)}
}

// Register associates fileID with sys, replacing any prior system for
// that file (a re-OpenFile of the same id gets a fresh system).
func (t *Translator) Register(fileID int32, sys *System) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.systems[fileID] = sys
}

// Remove drops fileID's system, called on CloseFile.
func (t *Translator) Remove(fileID int32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.systems, fileID)
}

func (t *Translator) get(fileID int32) *System {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.systems[fileID]
}

// Translate converts pts defined on refFileID's grid to targetFileID's
// grid via each file's System, falling back to the identity (pts
// unchanged) when either file has no registered system — matching
// ResolveForFile's "only translate when needed" contract for the case
// where translation isn't yet possible.
func (t *Translator) Translate(refFileID, targetFileID int32, pts []region.ControlPoint) []region.ControlPoint {
	ref := t.get(refFileID)
	target := t.get(targetFileID)
	if ref == nil || target == nil {
		return pts
	}
	out := make([]region.ControlPoint, len(pts))
	for i, p := range pts {
		world := ref.PixelToWorld([]float64{p.X, p.Y})
		pix := target.WorldToPixel(world)
		out[i] = region.ControlPoint{X: pix[0], Y: pix[1]}
	}
	return out
}
