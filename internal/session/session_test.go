package session

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/CARTAvis/carta-backend-sub003/internal/animation"
	"github.com/CARTAvis/carta-backend-sub003/internal/fitter"
	"github.com/CARTAvis/carta-backend-sub003/internal/fsutil"
	"github.com/CARTAvis/carta-backend-sub003/internal/loader"
	"github.com/CARTAvis/carta-backend-sub003/internal/region"
	"github.com/CARTAvis/carta-backend-sub003/internal/requirements"
	"github.com/CARTAvis/carta-backend-sub003/internal/taskrun"
	"github.com/CARTAvis/carta-backend-sub003/internal/wire"
)

func memoryOpener(width, height, channels, stokes int) FileOpener {
	return func(ctx context.Context, key, hdu string) (loader.FileLoader, error) {
		ml := loader.NewMemoryLoader(width, height, channels, stokes)
		plane := make([]float64, width*height)
		for i := range plane {
			plane[i] = float64(i % 7)
		}
		ml.SetPlane(0, 0, plane)
		return ml, nil
	}
}

func newTestSession(t *testing.T, opener FileOpener) (*Session, *taskrun.Pool) {
	t.Helper()
	pool := taskrun.NewPool(2, 32)
	t.Cleanup(pool.Shutdown)
	s := New(opener, pool, func() {})
	t.Cleanup(s.Close)
	return s, pool
}

func TestOpenFileSendsAckAndHistogram(t *testing.T) {
	s, _ := newTestSession(t, memoryOpener(8, 8, 1, 1))
	s.OpenFile(context.Background(), 1, 0, "test/file", "0")

	batch := waitForBatch(t, s)
	// two frames queued (OPEN_FILE_ACK + REGION_HISTOGRAM_DATA), each at
	// least a bare 8-byte header.
	if len(batch) < 2*8 {
		t.Fatalf("batch too small for two frames: %d bytes", len(batch))
	}
}

func TestCloseFileRemovesFrame(t *testing.T) {
	s, _ := newTestSession(t, memoryOpener(4, 4, 1, 1))
	s.OpenFile(context.Background(), 1, 0, "test/file", "0")
	waitForBatch(t, s)

	s.CloseFile(0)
	if _, ok := s.frameFor(0); ok {
		t.Fatal("expected frame to be removed after CloseFile")
	}
}

func TestSetRegionAcksIncrementingID(t *testing.T) {
	s, _ := newTestSession(t, memoryOpener(4, 4, 1, 1))
	s.SetRegion(1, region.IDImage, region.State{Type: region.TypePoint})
	s.SetRegion(2, region.IDImage, region.State{Type: region.TypePoint})

	batch := waitForBatch(t, s)
	if len(batch) < 2*8 {
		t.Fatalf("batch too small for two acks: %d bytes", len(batch))
	}
}

func TestStartAndStopAnimation(t *testing.T) {
	s, _ := newTestSession(t, memoryOpener(4, 4, 5, 1))
	s.OpenFile(context.Background(), 1, 0, "test/file", "0")
	waitForBatch(t, s)

	obj := animation.NewObject(0, 0, 1, 4, 1, 500, 10, 1)
	if err := s.StartAnimation(context.Background(), 2, obj); err != nil {
		t.Fatalf("StartAnimation: %v", err)
	}
	time.Sleep(50 * time.Millisecond)
	s.StopAnimation(0)
	time.Sleep(50 * time.Millisecond)
}

func TestLiveSessionCountTracksOpenAndClose(t *testing.T) {
	before := LiveSessionCount()
	pool := taskrun.NewPool(1, 8)
	defer pool.Shutdown()
	s := New(memoryOpener(2, 2, 1, 1), pool, func() {})
	if LiveSessionCount() != before+1 {
		t.Fatalf("LiveSessionCount = %d, want %d", LiveSessionCount(), before+1)
	}
	s.Close()
	if LiveSessionCount() != before {
		t.Fatalf("LiveSessionCount after close = %d, want %d", LiveSessionCount(), before)
	}
}

func TestSetHistogramRequirementsFillsCacheAndSends(t *testing.T) {
	s, _ := newTestSession(t, memoryOpener(8, 8, 1, 1))
	s.OpenFile(context.Background(), 1, 0, "test/file", "0")
	waitForBatch(t, s)

	s.SetHistogramRequirements(context.Background(), 2, 0, region.IDImage,
		[]requirements.HistogramConfig{{NumBins: 10}})

	batch := waitForBatch(t, s)
	if len(batch) < 8 {
		t.Fatalf("expected a REGION_HISTOGRAM_DATA frame, got %d bytes", len(batch))
	}

	f, ok := s.frameFor(0)
	if !ok {
		t.Fatal("expected frame 0 to exist")
	}
	cfgs, ok := f.Requirements.GetConfigs(requirements.ConfigID{FileID: 0, RegionID: region.IDImage})
	if !ok || len(cfgs.Histogram) != 1 {
		t.Fatalf("expected the histogram config to be cached, got %+v (ok=%v)", cfgs, ok)
	}
}

func TestSetSpectralRequirementsStreamsProfile(t *testing.T) {
	s, _ := newTestSession(t, memoryOpener(4, 4, 3, 1))
	s.OpenFile(context.Background(), 1, 0, "test/file", "0")
	waitForBatch(t, s)

	s.SetSpectralRequirements(2, 0, region.IDImage, []requirements.SpectralConfig{{Coordinate: "z"}})

	batch := waitForBatch(t, s)
	if len(batch) < 8 {
		t.Fatalf("expected a SPECTRAL_PROFILE_DATA frame, got %d bytes", len(batch))
	}
}

func TestSetStatsRequirementsSendsRegionStats(t *testing.T) {
	s, _ := newTestSession(t, memoryOpener(4, 4, 1, 1))
	s.OpenFile(context.Background(), 1, 0, "test/file", "0")
	waitForBatch(t, s)

	s.SetStatsRequirements(context.Background(), 2, 0, region.IDImage, []requirements.StatsConfig{{Coordinate: "z"}})

	batch := waitForBatch(t, s)
	if len(batch) < 8 {
		t.Fatalf("expected a REGION_STATS_DATA frame, got %d bytes", len(batch))
	}
}

func TestSetSpatialRequirementsSendsProfile(t *testing.T) {
	s, _ := newTestSession(t, memoryOpener(6, 6, 1, 1))
	s.OpenFile(context.Background(), 1, 0, "test/file", "0")
	waitForBatch(t, s)

	s.SetSpatialRequirements(context.Background(), 2, 0, region.IDImage, []string{"x", "y"})

	batch := waitForBatch(t, s)
	if len(batch) < 8 {
		t.Fatalf("expected a SPATIAL_PROFILE_DATA frame, got %d bytes", len(batch))
	}
}

func TestSetSpatialRequirementsResolvesCrossFileRegion(t *testing.T) {
	s, _ := newTestSession(t, memoryOpener(6, 6, 1, 1))
	s.OpenFile(context.Background(), 1, 0, "test/file-a", "0")
	waitForBatch(t, s)
	s.OpenFile(context.Background(), 2, 1, "test/file-b", "0")
	waitForBatch(t, s)

	id, err := s.regions.SetRegion(0, region.State{
		Type:            region.TypePoint,
		FileID:          1,
		ReferenceFileID: 1,
		ControlPoints:   []region.ControlPoint{{X: 2, Y: 3}},
	})
	if err != nil {
		t.Fatalf("SetRegion: %v", err)
	}

	s.SetSpatialRequirements(context.Background(), 3, 0, id, []string{"x"})

	batch := waitForBatch(t, s)
	h, ok := wire.DecodeHeader(batch)
	if !ok || h.Type != wire.EventSpatialProfileData {
		t.Fatalf("expected a SpatialProfileData frame, got header %+v (ok=%v)", h, ok)
	}
	data, err := wire.DecodeSpatialProfileData(batch[wire.HeaderSize:])
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if data.X != 2 || data.Y != 3 {
		t.Fatalf("expected the region's own-file point (2, 3) through identity translation, got (%d, %d)", data.X, data.Y)
	}
}

func TestSetContourParametersStreamsContourImage(t *testing.T) {
	s, _ := newTestSession(t, memoryOpener(8, 8, 1, 1))
	s.OpenFile(context.Background(), 1, 0, "test/file", "0")
	waitForBatch(t, s)

	s.SetContourParameters(0, []float64{1, 3}, 0, 2, 4, 2)

	batch := waitForBatch(t, s)
	if len(batch) < 8 {
		t.Fatalf("expected a CONTOUR_IMAGE_DATA frame, got %d bytes", len(batch))
	}
}

func TestCalculateMomentsSendsResponse(t *testing.T) {
	s, _ := newTestSession(t, memoryOpener(4, 4, 5, 1))
	s.OpenFile(context.Background(), 1, 0, "test/file", "0")
	waitForBatch(t, s)

	s.CalculateMoments(2, 0, loader.MomentRequest{Moments: []int{0, 1}, Axis: 2})

	batch := waitForBatch(t, s)
	if len(batch) < 8 {
		t.Fatalf("expected a MOMENT_RESPONSE frame, got %d bytes", len(batch))
	}
}

func TestCalculatePvPreviewSendsPreviewData(t *testing.T) {
	s, _ := newTestSession(t, memoryOpener(6, 6, 4, 1))
	s.OpenFile(context.Background(), 1, 0, "test/file", "0")
	waitForBatch(t, s)

	id, err := s.regions.SetRegion(0, region.State{
		Type:          region.TypeLine,
		ControlPoints: []region.ControlPoint{{X: 0, Y: 0}, {X: 5, Y: 0}},
	})
	if err != nil {
		t.Fatalf("SetRegion: %v", err)
	}

	s.CalculatePv(2, 0, id, true)

	batch := waitForBatch(t, s)
	if len(batch) < 8 {
		t.Fatalf("expected a PV_PREVIEW_DATA frame, got %d bytes", len(batch))
	}
}

func TestFitRegionSendsResponse(t *testing.T) {
	s, _ := newTestSession(t, memoryOpener(20, 20, 1, 1))
	s.OpenFile(context.Background(), 1, 0, "test/file", "0")
	waitForBatch(t, s)

	id, err := s.regions.SetRegion(0, region.State{
		Type: region.TypeRectangle,
		ControlPoints: []region.ControlPoint{
			{X: 2, Y: 2}, {X: 18, Y: 18},
		},
	})
	if err != nil {
		t.Fatalf("SetRegion: %v", err)
	}

	s.FitRegion(2, 0, id, fitter.Request{
		InitialValues: []fitter.Component{{CenterX: 10, CenterY: 10, Amplitude: 3, FWHMX: 4, FWHMY: 4}},
		MaxIterations: 20,
	})

	batch := waitForBatch(t, s)
	if len(batch) < 8 {
		t.Fatalf("expected a FITTING_RESPONSE frame, got %d bytes", len(batch))
	}
}

func TestImportExportRegionRoundTrip(t *testing.T) {
	s, _ := newTestSession(t, memoryOpener(8, 8, 1, 1))
	fs := fsutil.NewMemoryFileSystem()
	s.SetFileSystem(fs)
	s.OpenFile(context.Background(), 1, 0, "test/file", "0")
	waitForBatch(t, s)

	id, err := s.regions.SetRegion(0, region.State{
		Type:          region.TypePoint,
		ControlPoints: []region.ControlPoint{{X: 3, Y: 4}},
	})
	if err != nil {
		t.Fatalf("SetRegion: %v", err)
	}

	dir := "/regions"
	s.ExportRegion(2, 0, dir, "saved.crtf", []int32{id})
	exportBatch := waitForBatch(t, s)
	if len(exportBatch) < 8 {
		t.Fatalf("expected an EXPORT_REGION_ACK frame, got %d bytes", len(exportBatch))
	}
	if !fs.Exists(filepath.Join(dir, "saved.crtf")) {
		t.Fatal("expected the export to write the region file")
	}

	s.ImportRegion(3, 0, dir, "saved.crtf")
	importBatch := waitForBatch(t, s)
	if len(importBatch) < 8 {
		t.Fatalf("expected an IMPORT_REGION_ACK frame, got %d bytes", len(importBatch))
	}
}

func TestSaveFileWritesPlaneAndAcks(t *testing.T) {
	s, _ := newTestSession(t, memoryOpener(4, 4, 1, 1))
	fs := fsutil.NewMemoryFileSystem()
	s.SetFileSystem(fs)
	s.OpenFile(context.Background(), 1, 0, "test/file", "0")
	waitForBatch(t, s)

	dir := t.TempDir()
	s.SaveFile(context.Background(), 2, 0, dir, "out.bin")

	batch := waitForBatch(t, s)
	if len(batch) < 8 {
		t.Fatalf("expected a SAVE_FILE_ACK frame, got %d bytes", len(batch))
	}
	if !fs.Exists(filepath.Join(dir, "out.bin")) {
		t.Fatal("expected SaveFile to write the plane data")
	}
}

func TestSendScriptingRequestResolvesOnMatchingResponse(t *testing.T) {
	s, _ := newTestSession(t, memoryOpener(4, 4, 1, 1))

	done := make(chan struct {
		resp wire.ScriptingResponseWire
		err  error
	}, 1)
	go func() {
		resp, err := s.SendScriptingRequest(context.Background(), "ping", []string{"1"}, false)
		done <- struct {
			resp wire.ScriptingResponseWire
			err  error
		}{resp, err}
	}()

	batch := waitForBatch(t, s)
	h, ok := wire.DecodeHeader(batch)
	if !ok || h.Type != wire.EventScriptingRequest {
		t.Fatalf("expected a SCRIPTING_REQUEST frame, got header %+v (ok=%v)", h, ok)
	}
	req, err := wire.DecodeScriptingRequestWire(batch[wire.HeaderSize:])
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if req.Target != "ping" || req.Async {
		t.Fatalf("unexpected request: %+v", req)
	}

	s.OnScriptingResponse(h.RequestID, wire.ScriptingResponseWire{Success: true, Message: "pong"})

	select {
	case out := <-done:
		if out.err != nil {
			t.Fatalf("SendScriptingRequest: %v", out.err)
		}
		if !out.resp.Success || out.resp.Message != "pong" {
			t.Fatalf("unexpected response: %+v", out.resp)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for SendScriptingRequest to resolve")
	}
}

func TestSendScriptingRequestAsyncDoesNotWait(t *testing.T) {
	s, _ := newTestSession(t, memoryOpener(4, 4, 1, 1))

	resp, err := s.SendScriptingRequest(context.Background(), "fire-and-forget", nil, true)
	if err != nil {
		t.Fatalf("SendScriptingRequest: %v", err)
	}
	if !resp.Success {
		t.Fatalf("expected an immediate success for an async request, got %+v", resp)
	}
	waitForBatch(t, s)
}

func TestSendScriptingRequestTimesOutWithoutResponse(t *testing.T) {
	s, _ := newTestSession(t, memoryOpener(4, 4, 1, 1))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := s.SendScriptingRequest(ctx, "never-answered", nil, false)
	if err == nil {
		t.Fatal("expected a context deadline error")
	}
}

// waitForBatch polls Drain until it returns a non-empty batch or the
// deadline passes.
func waitForBatch(t *testing.T, s *Session) []byte {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if b := s.Outbound().Drain(); len(b) > 0 {
			return b
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("timed out waiting for outbound batch")
	return nil
}
