// Package tile implements the 32-bit (layer, x, y) tile address used to
// request and cache downsampled raster tiles of an image plane.
package tile

import "math"

// TileSize is the fixed footprint, in pixels, of a tile at any layer.
const TileSize = 256

// MaxLayer is the highest addressable mip layer.
const MaxLayer = 12

// Tile identifies a single downsampled rectangle of an image plane.
type Tile struct {
	X     int32
	Y     int32
	Layer int32
}

// Encode packs (layer, x, y) into a single 32-bit value as
// (layer<<24) | (y<<12) | x. It returns -1 if layer is out of
// [0, MaxLayer] or x/y are out of [0, 2^layer).
func Encode(x, y, layer int32) int32 {
	if layer < 0 || layer > MaxLayer {
		return -1
	}
	bound := int32(1) << uint(layer)
	if x < 0 || x >= bound || y < 0 || y >= bound {
		return -1
	}
	return (layer << 24) | (y << 12) | x
}

// Decode unpacks an encoded tile value back into (x, y, layer). It
// rejects values that did not round-trip through Encode, including
// negatively-packed values, by sign-extending the field extraction and
// re-validating bounds via modulo.
func Decode(encoded int32) (t Tile, ok bool) {
	layer := (encoded >> 24) & 0xF
	y := (encoded >> 12) & 0xFFF
	x := encoded & 0xFFF

	if layer < 0 || layer > MaxLayer {
		return Tile{}, false
	}
	bound := int32(1) << uint(layer)
	x = x % bound
	y = y % bound
	if x < 0 || y < 0 {
		return Tile{}, false
	}
	if Encode(x, y, layer) != encoded {
		return Tile{}, false
	}
	return Tile{X: x, Y: y, Layer: layer}, true
}

// numLayers returns the number of mip layers needed to cover an image of
// width w and height h with tiles of size ts, i.e. ceil(log2(max(ceil(w/ts), ceil(h/ts)))).
func numLayers(w, h, ts int) int {
	tilesX := ceilDiv(w, ts)
	tilesY := ceilDiv(h, ts)
	m := tilesX
	if tilesY > m {
		m = tilesY
	}
	if m <= 1 {
		return 0
	}
	return int(math.Ceil(math.Log2(float64(m))))
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}

// LayerToMip converts a tile layer into the integer pixel downsample
// factor ("mip") it represents for an image of the given dimensions.
func LayerToMip(layer, w, h, tileWidth, tileHeight int) int {
	n := numLayers(w, h, tileWidth)
	mip := 1 << uint(n-layer)
	if mip < 1 {
		mip = 1
	}
	return mip
}

// MipToLayer is the inverse of LayerToMip.
func MipToLayer(mip, w, h, tileWidth, tileHeight int) int {
	n := numLayers(w, h, tileWidth)
	layer := n - int(math.Round(math.Log2(float64(mip))))
	if layer < 0 {
		layer = 0
	}
	return layer
}
