package tile

import "testing"

func TestEncodeDecodeRoundTrip(t *testing.T) {
	for layer := int32(0); layer <= MaxLayer; layer++ {
		bound := int32(1) << uint(layer)
		for _, x := range []int32{0, bound - 1, bound / 2} {
			for _, y := range []int32{0, bound - 1, bound / 2} {
				enc := Encode(x, y, layer)
				if enc < 0 {
					t.Fatalf("Encode(%d,%d,%d) = -1, want valid", x, y, layer)
				}
				got, ok := Decode(enc)
				if !ok {
					t.Fatalf("Decode(%d) not ok", enc)
				}
				if got.X != x || got.Y != y || got.Layer != layer {
					t.Fatalf("round trip mismatch: got %+v, want (%d,%d,%d)", got, x, y, layer)
				}
			}
		}
	}
}

func TestEncodeRejectsOutOfBounds(t *testing.T) {
	cases := []struct {
		x, y, layer int32
	}{
		{0, 0, -1},
		{0, 0, MaxLayer + 1},
		{-1, 0, 2},
		{4, 0, 2}, // 2^2 == 4, out of range
		{0, 4, 2},
	}
	for _, c := range cases {
		if got := Encode(c.x, c.y, c.layer); got != -1 {
			t.Errorf("Encode(%d,%d,%d) = %d, want -1", c.x, c.y, c.layer, got)
		}
	}
}

func TestDecodeRejectsNegativePacking(t *testing.T) {
	if _, ok := Decode(-1); ok {
		t.Error("Decode(-1) should fail")
	}
}

func TestLayerMipRoundTrip(t *testing.T) {
	w, h, ts := 4096, 3000, TileSize
	n := numLayers(w, h, ts)
	for layer := 0; layer <= n; layer++ {
		mip := LayerToMip(layer, w, h, ts, ts)
		gotLayer := MipToLayer(mip, w, h, ts, ts)
		if gotLayer != layer {
			t.Errorf("MipToLayer(LayerToMip(%d)) = %d, want %d", layer, gotLayer, layer)
		}
	}
}
