// Package cursor implements the per-file cursor-setting debounce slot:
// rapid SET_CURSOR messages for the same file collapse to the latest
// point before any spatial/spectral profile work is dispatched for it.
package cursor

import "sync"

// Point is an image-pixel coordinate.
type Point struct {
	X, Y float64
}

// Setting pairs a cursor position with the request id that produced it,
// so a late-arriving response can be matched back to its request.
type Setting struct {
	Point     Point
	RequestID uint32
}

// Debouncer holds one Setting slot per file id, always overwritten in
// place by the most recent SetCursor call for that file.
type Debouncer struct {
	mu     sync.Mutex
	byFile map[int32]Setting
}

func NewDebouncer() *Debouncer {
	return &Debouncer{byFile: make(map[int32]Setting)}
}

// Set overwrites the slot for fileID with the latest setting, discarding
// whatever was pending.
func (d *Debouncer) Set(fileID int32, s Setting) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.byFile[fileID] = s
}

// Latest returns the current slot for fileID, if any has been set.
func (d *Debouncer) Latest(fileID int32) (Setting, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.byFile[fileID]
	return s, ok
}

// Clear drops the slot for fileID, e.g. on file close.
func (d *Debouncer) Clear(fileID int32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.byFile, fileID)
}
