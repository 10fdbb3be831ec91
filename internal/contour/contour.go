// Package contour traces iso-level contour polylines out of an image
// plane using the marching-squares algorithm, adapted from the
// SAOImage DS9 contour tracer.
package contour

import (
	"math"
	"sync"
)

// Edge names a cell side a trace can enter or leave through. The cyclic
// order (Top, Right, Bottom, Left) matches the cell-walking direction.
type Edge int

const (
	TopEdge Edge = iota
	RightEdge
	BottomEdge
	LeftEdge
	noEdge
)

func (e Edge) next() Edge {
	e++
	if e == noEdge {
		return TopEdge
	}
	return e
}

// negInf stands in for NaN cell corners: a NaN is always treated as
// below every contour level, the same substitution the tracer uses.
var negInf = math.Inf(-1)

func cellValue(image []float64, width, x, y int64) float64 {
	v := image[y*width+x]
	if math.IsNaN(v) {
		return negInf
	}
	return v
}

// Result is one level's traced contour: a flat (x,y,x,y,...) vertex
// stream and, for each disjoint segment, the offset into Vertices (a
// float32 element index, i.e. twice the vertex number) where it starts.
type Result struct {
	Level    float64
	Vertices []float32
	Indices  []int32
}

// PartialCallback receives a level's vertices/indices once a chunk of
// output has accumulated, plus the fraction of the image checked so
// far. The callback owns the slices it receives and must not retain
// them past the call without copying.
type PartialCallback func(level float64, progress float64, vertices []float32, indices []int32)

// traceSegment walks a single contour starting at the cell (xCell,
// yCell) on the given side, following the boundary between pixels
// above and below level until it returns to its starting edge or
// leaves the image, matching DS9's TraceSegment.
func traceSegment(image []float64, visited []bool, width, height int64, scale, offset, level float64, xCell, yCell int64, side Edge, vertices *[]float32) {
	i, j := xCell, yCell
	origSide := side

	first := true
	done := i < 0 || i >= width-1 || j < 0 || j >= height-1

	for !done {
		a := cellValue(image, width, i, j)
		b := cellValue(image, width, i+1, j)
		c := cellValue(image, width, i+1, j+1)
		d := cellValue(image, width, i, j+1)

		var x, y float64

		if first {
			first = false
			switch side {
			case TopEdge:
				x = (level-a)/(b-a) + float64(i)
				y = float64(j)
			case RightEdge:
				x = float64(i + 1)
				y = (level-b)/(c-b) + float64(j)
			case BottomEdge:
				x = (level-c)/(d-c) + float64(i)
				y = float64(j + 1)
			case LeftEdge:
				x = float64(i)
				y = (level-a)/(d-a) + float64(j)
			}
		} else {
			if side == TopEdge {
				visited[j*width+i] = true
			}

			flag := false
			for !flag {
				side = side.next()
				switch side {
				case TopEdge:
					if a >= level && level > b {
						flag = true
						x = (level-a)/(b-a) + float64(i)
						y = float64(j)
						j--
					}
				case RightEdge:
					if b >= level && level > c {
						flag = true
						x = float64(i + 1)
						y = (level-b)/(c-b) + float64(j)
						i++
					}
				case BottomEdge:
					if c >= level && level > d {
						flag = true
						x = (level-d)/(c-d) + float64(i)
						y = float64(j + 1)
						j++
					}
				case LeftEdge:
					if d >= level && level > a {
						flag = true
						x = float64(i)
						y = (level-a)/(d-a) + float64(j)
						i--
					}
				}
			}

			side = side.next()
			side = side.next()
			if i == xCell && j == yCell && side == origSide {
				done = true
			}
			if i < 0 || i >= width-1 || j < 0 || j >= height-1 {
				done = true
			}
		}

		xVal := x + 0.5
		yVal := y + 0.5
		*vertices = append(*vertices, float32(scale*xVal+offset), float32(scale*yVal+offset))
	}
}

// TraceLevel traces every contour at a single level across the full
// image, emitting partial results through callback once the
// accumulated vertex count passes chunkSize*2 (0 disables chunking).
func TraceLevel(image []float64, width, height int64, scale, offset, level float64, chunkSize int, callback PartialCallback) {
	numPixels := width * height
	vertexCutoff := int64(2 * chunkSize)
	visited := make([]bool, numPixels)

	var vertices []float32
	var indices []int32
	var checkedPixels int64

	flush := func(progress float64) {
		if progress > 0.99 {
			progress = 0.99
		}
		callback(level, progress, vertices, indices)
		vertices = nil
		indices = nil
	}

	testOverflow := func() {
		if vertexCutoff > 0 && int64(len(vertices)) > vertexCutoff {
			flush(float64(checkedPixels) / float64(numPixels))
		}
	}

	var i, j int64

	// top edge
	for j, i = 0, 0; i < width-1; i++ {
		a := cellValue(image, width, i, j)
		b := cellValue(image, width, i+1, j)
		if a < level && level <= b {
			indices = append(indices, int32(len(vertices)))
			traceSegment(image, visited, width, height, scale, offset, level, i, j, TopEdge, &vertices)
			testOverflow()
		}
		checkedPixels++
	}

	// right edge
	for j = 0; j < height-1; j++ {
		a := cellValue(image, width, i, j)
		b := cellValue(image, width, i, j+1)
		if a < level && level <= b {
			indices = append(indices, int32(len(vertices)))
			traceSegment(image, visited, width, height, scale, offset, level, i-1, j, RightEdge, &vertices)
			testOverflow()
		}
		checkedPixels++
	}

	// bottom edge
	for i--; i >= 0; i-- {
		a := cellValue(image, width, i+1, j)
		b := cellValue(image, width, i, j)
		if a < level && level <= b {
			indices = append(indices, int32(len(vertices)))
			traceSegment(image, visited, width, height, scale, offset, level, i, j-1, BottomEdge, &vertices)
			testOverflow()
		}
		checkedPixels++
	}

	// left edge
	for i, j = 0, j-1; j >= 0; j-- {
		a := cellValue(image, width, i, j+1)
		b := cellValue(image, width, i, j)
		if a < level && level <= b {
			indices = append(indices, int32(len(vertices)))
			traceSegment(image, visited, width, height, scale, offset, level, i, j, LeftEdge, &vertices)
			testOverflow()
		}
		checkedPixels++
	}

	// interior rows
	for j = 1; j < height-1; j++ {
		for i = 0; i < width-1; i++ {
			a := cellValue(image, width, i, j)
			b := cellValue(image, width, i+1, j)
			if !visited[j*width+i] && a < level && level <= b {
				indices = append(indices, int32(len(vertices)))
				traceSegment(image, visited, width, height, scale, offset, level, i, j, TopEdge, &vertices)
				testOverflow()
			}
			checkedPixels++
		}
	}

	callback(level, 1.0, vertices, indices)
}

// TraceContours traces every requested level concurrently (one
// goroutine per level, the Go analogue of the `#pragma omp parallel
// for` the original tracer uses) and returns each level's full
// vertex/index stream. Per-level partial progress, if the caller
// wants it, should come from calling TraceLevel directly instead.
func TraceContours(image []float64, width, height int64, scale, offset float64, levels []float64) []Result {
	results := make([]Result, len(levels))
	var wg sync.WaitGroup
	for l, level := range levels {
		wg.Add(1)
		go func(l int, level float64) {
			defer wg.Done()
			var vertices []float32
			var indices []int32
			TraceLevel(image, width, height, scale, offset, level, 0, func(lv, progress float64, v []float32, idx []int32) {
				shift := int32(len(vertices))
				vertices = append(vertices, v...)
				for _, ix := range idx {
					indices = append(indices, ix+shift)
				}
			})
			results[l] = Result{Level: level, Vertices: vertices, Indices: indices}
		}(l, level)
	}
	wg.Wait()
	return results
}
