package wire

import "testing"

func TestHeaderRoundTrip(t *testing.T) {
	h := Header{Type: EventOpenFile, ICDVersion: ICDVersion, RequestID: 42}
	buf := EncodeHeader(h)
	if len(buf) != HeaderSize {
		t.Fatalf("encoded length = %d, want %d", len(buf), HeaderSize)
	}
	got, ok := DecodeHeader(buf)
	if !ok {
		t.Fatal("DecodeHeader reported failure on a valid header")
	}
	if got != h {
		t.Fatalf("got %+v, want %+v", got, h)
	}
}

func TestHeaderRejectsVersionMismatch(t *testing.T) {
	h := Header{Type: EventOpenFile, ICDVersion: ICDVersion + 1, RequestID: 1}
	buf := EncodeHeader(h)
	_, ok := DecodeHeader(buf)
	if ok {
		t.Fatal("expected DecodeHeader to reject a mismatched ICD version")
	}
}

func TestHeaderRejectsShortBuffer(t *testing.T) {
	_, ok := DecodeHeader([]byte{1, 2, 3})
	if ok {
		t.Fatal("expected DecodeHeader to reject a short buffer")
	}
}

func TestErrorDataRoundTrip(t *testing.T) {
	e := NewError(ErrValidation, "unknown region type", "region_id=7")
	buf := EncodeErrorData(e)
	got, err := DecodeErrorData(buf)
	if err != nil {
		t.Fatalf("DecodeErrorData: %v", err)
	}
	if got.Kind != e.Kind || got.Message != e.Message || got.Severity != e.Severity {
		t.Fatalf("got %+v, want %+v", got, e)
	}
	if len(got.Tags) != 1 || got.Tags[0] != "region_id=7" {
		t.Fatalf("tags = %v, want [region_id=7]", got.Tags)
	}
}

func TestRasterTileDataRoundTrip(t *testing.T) {
	d := RasterTileData{
		FileID: 3, Channel: 5, Stokes: 0, AnimationID: 99,
		X: 1, Y: 2, Layer: 4, Width: 256, Height: 256,
		ImageData:   []byte{1, 2, 3, 4, 5},
		NaNEncoding: []byte{9, 9},
	}
	buf := EncodeRasterTileData(d)
	got, err := DecodeRasterTileData(buf)
	if err != nil {
		t.Fatalf("DecodeRasterTileData: %v", err)
	}
	if got.FileID != d.FileID || got.Channel != d.Channel || got.Layer != d.Layer {
		t.Fatalf("scalar fields mismatch: got %+v, want %+v", got, d)
	}
	if string(got.ImageData) != string(d.ImageData) {
		t.Fatalf("ImageData = %v, want %v", got.ImageData, d.ImageData)
	}
	if string(got.NaNEncoding) != string(d.NaNEncoding) {
		t.Fatalf("NaNEncoding = %v, want %v", got.NaNEncoding, d.NaNEncoding)
	}
}

func TestRasterTileSyncRoundTrip(t *testing.T) {
	s := RasterTileSync{FileID: 1, Channel: 2, Stokes: 0, AnimationID: 7, EndSync: true, TileCount: 12}
	buf := EncodeRasterTileSync(s)
	got, err := DecodeRasterTileSync(buf)
	if err != nil {
		t.Fatalf("DecodeRasterTileSync: %v", err)
	}
	if got != s {
		t.Fatalf("got %+v, want %+v", got, s)
	}
}

func TestOpenFileAckRoundTrip(t *testing.T) {
	a := OpenFileAck{Success: true, Message: "", FileID: 0, HDU: "0", Width: 640, Height: 800, Depth: 25, NumStokes: 1}
	buf := EncodeOpenFileAck(a)
	got, err := DecodeOpenFileAck(buf)
	if err != nil {
		t.Fatalf("DecodeOpenFileAck: %v", err)
	}
	if got != a {
		t.Fatalf("got %+v, want %+v", got, a)
	}
}

func TestRegionHistogramDataRoundTrip(t *testing.T) {
	h := RegionHistogramData{
		FileID: 0, RegionID: -1, Stokes: 0, Channel: 0, Progress: 1.0,
		NumBins: 5, Min: 0, Max: 10, BinWidth: 2,
		Counts: []int64{2, 1, 0, 4, 3},
	}
	buf := EncodeRegionHistogramData(h)
	got, err := DecodeRegionHistogramData(buf)
	if err != nil {
		t.Fatalf("DecodeRegionHistogramData: %v", err)
	}
	if got.FileID != h.FileID || got.RegionID != h.RegionID || got.Progress != h.Progress {
		t.Fatalf("scalar mismatch: got %+v, want %+v", got, h)
	}
	if len(got.Counts) != len(h.Counts) {
		t.Fatalf("counts = %v, want %v", got.Counts, h.Counts)
	}
	for i, c := range h.Counts {
		if got.Counts[i] != c {
			t.Fatalf("counts[%d] = %d, want %d", i, got.Counts[i], c)
		}
	}
}
