// Package session implements the per-connection dispatcher (C7): it owns
// a session's Frames, loader LRU, region handler, animation objects and
// cursor debouncer, and turns wire events into Frame/RegionHandler calls
// or queued tasks, pushing every outgoing message onto its outbound
// queue.
package session

import (
	"context"
	"encoding/binary"
	"math"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/CARTAvis/carta-backend-sub003/internal/animation"
	"github.com/CARTAvis/carta-backend-sub003/internal/cursor"
	"github.com/CARTAvis/carta-backend-sub003/internal/fileinfo"
	"github.com/CARTAvis/carta-backend-sub003/internal/fitter"
	"github.com/CARTAvis/carta-backend-sub003/internal/frame"
	"github.com/CARTAvis/carta-backend-sub003/internal/fsutil"
	"github.com/CARTAvis/carta-backend-sub003/internal/loader"
	"github.com/CARTAvis/carta-backend-sub003/internal/monitoring"
	"github.com/CARTAvis/carta-backend-sub003/internal/region"
	"github.com/CARTAvis/carta-backend-sub003/internal/regionio"
	"github.com/CARTAvis/carta-backend-sub003/internal/requirements"
	"github.com/CARTAvis/carta-backend-sub003/internal/security"
	"github.com/CARTAvis/carta-backend-sub003/internal/taskrun"
	"github.com/CARTAvis/carta-backend-sub003/internal/tile"
	"github.com/CARTAvis/carta-backend-sub003/internal/wcs"
	"github.com/CARTAvis/carta-backend-sub003/internal/wire"
)

// liveSessionCount is the process-wide counter from spec.md §4.7's three
// process-wide counters; incremented by New, decremented by Close.
var liveSessionCount int64

// LiveSessionCount reports the number of open sessions across the
// process, for the exit-when-empty grace timer in cmd/carta-backend.
func LiveSessionCount() int64 {
	return atomic.LoadInt64(&liveSessionCount)
}

// FileOpener constructs a loader.FileLoader for a "dir/file" key; the
// session owns the resulting loader through its LRU but never knows the
// concrete backend (FITS/HDF5/CASA/MIRIAD), per §6.
type FileOpener func(ctx context.Context, key, hdu string) (loader.FileLoader, error)

// tileRequirement is the last AddRequiredTiles burst for a file, re-sent
// at the new (channel, stokes) on every subsequent SetImageChannels so a
// channel/stokes/animation step refreshes the same tiles the client is
// displaying without it having to re-request them.
type tileRequirement struct {
	tiles   []int32
	quality int
}

// Session is one connected viewer's state, matching spec.md §3's
// ownership list: Frames, RegionHandler, AnimationObject(s),
// LoaderCache, CursorSettings, out-queue.
type Session struct {
	ID uuid.UUID

	opener FileOpener
	pool   *taskrun.Pool
	cancel *taskrun.CancelContext
	refs   *taskrun.RefCounted

	loaders *loaderCache
	regions *region.Handler
	cursors *cursor.Debouncer
	coords  *wcs.Translator

	// fs is the session's file I/O boundary for region import/export and
	// SaveFile, swappable for a fsutil.MemoryFileSystem in tests.
	fs fsutil.FileSystem

	mu         sync.Mutex
	frames     map[int32]*frame.Frame
	animations map[int32]*animation.Object
	tileReqs   map[int32]*tileRequirement

	// scriptingMu/scriptingCallbacks is spec.md §5's scripting callback
	// table: mutex-protected, copy-under-lock-then-operate. Keyed by the
	// request id SendScriptingRequest pushes a SCRIPTING_REQUEST with,
	// resolved by OnScriptingResponse when the matching
	// SCRIPTING_RESPONSE frame arrives.
	scriptingMu        sync.Mutex
	scriptingCallbacks map[uint32]chan wire.ScriptingResponseWire
	nextScriptingID    uint32

	out *Outbound

	lastMessageMu sync.Mutex
	lastMessage   time.Time
}

// New builds a Session backed by pool for long-running tasks. onZero is
// called once the session's in-flight task refcount returns to zero
// after Close, resolving the cyclic session<->task ownership per §9.
func New(opener FileOpener, pool *taskrun.Pool, onZero func()) *Session {
	atomic.AddInt64(&liveSessionCount, 1)
	s := &Session{
		ID:         uuid.New(),
		opener:     opener,
		pool:       pool,
		cancel:     taskrun.NewCancelContext(context.Background()),
		loaders:    newLoaderCache(loaderCacheCapacity),
		regions:    region.NewHandler(),
		cursors:    cursor.NewDebouncer(),
		coords:     wcs.NewTranslator(),
		frames:             make(map[int32]*frame.Frame),
		animations:         make(map[int32]*animation.Object),
		tileReqs:           make(map[int32]*tileRequirement),
		scriptingCallbacks: make(map[uint32]chan wire.ScriptingResponseWire),
		fs:                 fsutil.OSFileSystem{},
		out:                newOutbound(),
	}
	s.refs = taskrun.NewRefCounted(onZero)
	s.regions.OnRegionChanged = s.onRegionChanged
	s.touch()
	return s
}

// SetFileSystem overrides the session's file I/O boundary, for tests
// that inject a fsutil.MemoryFileSystem instead of touching disk.
func (s *Session) SetFileSystem(fs fsutil.FileSystem) { s.fs = fs }

func (s *Session) touch() {
	s.lastMessageMu.Lock()
	s.lastMessage = time.Now()
	s.lastMessageMu.Unlock()
}

// IdleFor reports how long it has been since the last inbound message,
// for the session manager's PING/idle-disconnect timer.
func (s *Session) IdleFor() time.Duration {
	s.lastMessageMu.Lock()
	defer s.lastMessageMu.Unlock()
	return time.Since(s.lastMessage)
}

// Outbound returns the session's outbound queue for the socket loop to
// drain.
func (s *Session) Outbound() *Outbound { return s.out }

func (s *Session) send(t wire.EventType, requestID uint32, body []byte) {
	s.out.Push(outMessage{Header: wire.Header{Type: t, ICDVersion: wire.ICDVersion, RequestID: requestID}, Body: body})
}

func (s *Session) sendError(requestID uint32, err *wire.ErrorData) {
	monitoring.Logf("session %s: %s", s.ID, err.Error())
	s.send(wire.EventErrorData, requestID, wire.EncodeErrorData(err))
}

// RegisterViewer acknowledges the connection handshake with this
// session's id, per spec.md §6's REGISTER_VIEWER -> REGISTER_VIEWER_ACK
// pair.
func (s *Session) RegisterViewer(requestID uint32) {
	s.touch()
	s.send(wire.EventRegisterViewerAck, requestID, wire.EncodeRegisterViewerAck(wire.RegisterViewerAck{
		Success: true, SessionID: s.ID.String(),
	}))
}

// onRegionChanged is RegionHandler's post-condition hook: it clears this
// region's histogram, stats and profile caches on every open frame and
// marks the region's PV preview dirty. It does not queue any
// region-data-streams task.
func (s *Session) onRegionChanged(regionID int32) {
	s.mu.Lock()
	frames := make([]*frame.Frame, 0, len(s.frames))
	for _, f := range s.frames {
		frames = append(frames, f)
	}
	s.mu.Unlock()

	for _, f := range frames {
		f.Requirements.ClearHistograms(f.FileID, regionID)
		f.Requirements.ClearStats(f.FileID, regionID)
		f.Requirements.ClearProfiles(f.FileID, regionID)
	}
	s.regions.UpdatePvPreviewRegion(regionID)
}

// HistogramCacheHitRate averages each open frame's requirements-cache hit
// rate, for internal/dashboard's cache-effectiveness panel. It returns 0
// for a session with no open frames.
func (s *Session) HistogramCacheHitRate() float64 {
	s.mu.Lock()
	frames := make([]*frame.Frame, 0, len(s.frames))
	for _, f := range s.frames {
		frames = append(frames, f)
	}
	s.mu.Unlock()

	if len(frames) == 0 {
		return 0
	}
	var sum float64
	for _, f := range frames {
		sum += f.Requirements.HitRate()
	}
	return sum / float64(len(frames))
}

// OpenFile opens (or reuses, via the loader LRU) the image at key/hdu as
// fileID, building the OPEN_FILE_ACK payload.
func (s *Session) OpenFile(ctx context.Context, requestID uint32, fileID int32, key, hdu string) {
	s.touch()
	l, ok := s.loaders.Get(key)
	if !ok {
		var err error
		l, err = s.opener(ctx, key, hdu)
		if err != nil {
			s.sendError(requestID, wire.NewError(wire.ErrUnavailable, err.Error()))
			s.send(wire.EventOpenFileAck, requestID, wire.EncodeOpenFileAck(wire.OpenFileAck{Success: false, Message: err.Error(), FileID: fileID}))
			return
		}
		s.loaders.Put(key, l)
	}

	f, err := frame.Open(ctx, fileID, l, hdu)
	if err != nil {
		s.sendError(requestID, wire.NewError(wire.ErrUnavailable, err.Error()))
		s.send(wire.EventOpenFileAck, requestID, wire.EncodeOpenFileAck(wire.OpenFileAck{Success: false, Message: err.Error(), FileID: fileID}))
		return
	}

	s.mu.Lock()
	s.frames[fileID] = f
	s.mu.Unlock()

	shape := f.Shape()
	s.coords.Register(fileID, wcs.FromLoader(l, 2))
	s.send(wire.EventOpenFileAck, requestID, wire.EncodeOpenFileAck(wire.OpenFileAck{
		Success: true, FileID: fileID, HDU: hdu,
		Width: int32(shape.Width), Height: int32(shape.Height), Depth: int32(shape.Depth), NumStokes: int32(shape.NumStokes),
	}))

	// spec.md scenario #1: exactly one REGION_HISTOGRAM_DATA follows an
	// open, covering the whole image region at progress=1.
	hist, err := f.FillRegionHistogramData(ctx, region.IDImage, 100)
	if err != nil {
		s.sendError(requestID, wire.NewError(wire.ErrInternal, err.Error()))
		return
	}
	s.send(wire.EventRegionHistogramData, requestID, wire.EncodeRegionHistogramData(wire.RegionHistogramData{
		FileID: fileID, RegionID: region.IDImage, Progress: 1,
		NumBins: int32(hist.NumBins), Min: hist.Min, Max: hist.Max, BinWidth: hist.BinWidth, Counts: hist.Counts,
	}))
}

// CloseFile releases fileID's Frame and drops its region/animation state.
func (s *Session) CloseFile(fileID int32) {
	s.touch()
	s.mu.Lock()
	f, ok := s.frames[fileID]
	delete(s.frames, fileID)
	delete(s.animations, fileID)
	delete(s.tileReqs, fileID)
	s.mu.Unlock()
	s.coords.Remove(fileID)
	if !ok {
		return
	}
	if err := f.Close(); err != nil {
		monitoring.Logf("session %s: close file %d: %v", s.ID, fileID, err)
	}
	s.cursors.Clear(fileID)
}

func (s *Session) frameFor(fileID int32) (*frame.Frame, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.frames[fileID]
	return f, ok
}

// SetImageChannels rebuilds fileID's plane and re-streams its raster
// tiles and image histogram; contours are not re-sent. The raster
// burst re-fills whatever tile set the client last asked for via
// AddRequiredTiles at the new (channel, stokes), framed between
// RasterTileSync markers with a fresh animation id.
func (s *Session) SetImageChannels(ctx context.Context, requestID uint32, fileID int32, channel, stokes int, animationID uint32) error {
	s.touch()
	f, ok := s.frameFor(fileID)
	if !ok {
		err := wire.NewError(wire.ErrValidation, "unknown file id")
		s.sendError(requestID, err)
		return err
	}

	if _, err := f.SetImageChannels(ctx, channel, stokes); err != nil {
		s.sendError(requestID, wire.NewError(wire.ErrInternal, err.Error()))
		return err
	}

	s.mu.Lock()
	req := s.tileReqs[fileID]
	s.mu.Unlock()
	var tiles []int32
	quality := 0
	if req != nil {
		tiles, quality = req.tiles, req.quality
	}
	s.streamTiles(requestID, f, fileID, animationID, tiles, quality)

	hist, err := f.FillRegionHistogramData(ctx, region.IDImage, 100)
	if err != nil {
		s.sendError(requestID, wire.NewError(wire.ErrInternal, err.Error()))
		return err
	}
	s.send(wire.EventRegionHistogramData, requestID, wire.EncodeRegionHistogramData(wire.RegionHistogramData{
		FileID: fileID, RegionID: region.IDImage, Stokes: int32(stokes), Channel: int32(channel), Progress: 1,
		NumBins: int32(hist.NumBins), Min: hist.Min, Max: hist.Max, BinWidth: hist.BinWidth, Counts: hist.Counts,
	}))
	return nil
}

// streamTiles fills and sends one tile per entry of tiles at f's current
// (channel, stokes), bracketed by RasterTileSync start/end markers.
// Stale fills (the plane moved on mid-burst) are silently dropped, since
// a subsequent SetImageChannels call will re-stream this same tile list.
func (s *Session) streamTiles(requestID uint32, f *frame.Frame, fileID int32, animationID uint32, tiles []int32, compressionQuality int) {
	_, channel, stokes := f.CurrentPlane()
	shape := f.Shape()

	s.send(wire.EventRasterTileSync, requestID, wire.EncodeRasterTileSync(wire.RasterTileSync{
		FileID: fileID, Channel: int32(channel), Stokes: int32(stokes), AnimationID: animationID, TileCount: int32(len(tiles)),
	}))
	for _, encoded := range tiles {
		t, ok := tile.Decode(encoded)
		if !ok {
			continue
		}
		mip := tile.LayerToMip(int(t.Layer), shape.Width, shape.Height, tile.TileSize, tile.TileSize)
		rt, fresh, err := f.FillRasterTile(int(t.X)*tile.TileSize*mip, int(t.Y)*tile.TileSize*mip, mip, channel, stokes, compressionQuality)
		if err != nil || !fresh {
			continue
		}
		s.send(wire.EventRasterTileData, requestID, wire.EncodeRasterTileData(wire.RasterTileData{
			FileID: fileID, Channel: int32(channel), Stokes: int32(stokes), AnimationID: animationID,
			X: t.X, Y: t.Y, Layer: t.Layer, Width: int32(rt.Width), Height: int32(rt.Height),
			ImageData: rt.TileBytes, NaNEncoding: rt.NaNRLEBytes,
		}))
	}
	s.send(wire.EventRasterTileSync, requestID, wire.EncodeRasterTileSync(wire.RasterTileSync{
		FileID: fileID, Channel: int32(channel), Stokes: int32(stokes), AnimationID: animationID, EndSync: true,
	}))
}

// AddRequiredTiles fills and streams one burst of raster tiles for
// fileID at its current (channel, stokes), remembering the list so a
// later SetImageChannels call re-sends it at the new plane (spec.md
// scenario #2).
func (s *Session) AddRequiredTiles(requestID uint32, fileID int32, animationID uint32, compressionQuality int, tiles []int32) {
	s.touch()
	f, ok := s.frameFor(fileID)
	if !ok {
		monitoring.Logf("session %s: add required tiles: unknown file %d", s.ID, fileID)
		return
	}
	s.mu.Lock()
	s.tileReqs[fileID] = &tileRequirement{tiles: tiles, quality: compressionQuality}
	s.mu.Unlock()
	s.streamTiles(requestID, f, fileID, animationID, tiles, compressionQuality)
}

// SetCursor debounces a cursor update for fileID to its latest position.
func (s *Session) SetCursor(fileID int32, x, y float64, requestID uint32) {
	s.touch()
	s.cursors.Set(fileID, cursor.Setting{Point: cursor.Point{X: x, Y: y}, RequestID: requestID})
}

// SetRegion creates or updates a region, matching spec.md scenario #5's
// id allocation behaviour.
func (s *Session) SetRegion(requestID uint32, regionID int32, st region.State) {
	s.touch()
	id, err := s.regions.SetRegion(regionID, st)
	if err != nil {
		errData := err.(*wire.ErrorData)
		s.sendError(requestID, errData)
		s.send(wire.EventSetRegionAck, requestID, wire.EncodeSetRegionAck(wire.SetRegionAck{Success: false, Message: errData.Message}))
		return
	}
	s.send(wire.EventSetRegionAck, requestID, wire.EncodeSetRegionAck(wire.SetRegionAck{Success: true, RegionID: id}))
}

// RemoveRegion deletes a region.
func (s *Session) RemoveRegion(regionID int32) {
	s.touch()
	s.regions.RemoveRegion(regionID)
}

// StartAnimation begins playback for fileID, publishing one Step per
// tick by re-driving SetImageChannels for the matched frames.
func (s *Session) StartAnimation(ctx context.Context, requestID uint32, obj *animation.Object) error {
	s.touch()
	s.mu.Lock()
	s.animations[obj.FileID] = obj
	s.mu.Unlock()

	s.send(wire.EventStartAnimationAck, requestID, nil)

	animID := uint32(0)
	task := taskrun.TaskFunc(func(ctx context.Context) {
		err := obj.Run(ctx, func(ctx context.Context, step animation.Step) error {
			animID++
			return s.SetImageChannels(ctx, requestID, obj.FileID, step.Channel, step.Stokes, animID)
		})
		if err != nil && err != context.Canceled {
			monitoring.Logf("session %s: animation %d: %v", s.ID, obj.FileID, err)
		}
	})
	return s.pool.Enqueue(s.cancel.Context(taskrun.ScopeAnimation), task)
}

// StopAnimation halts fileID's in-flight animation, if any.
func (s *Session) StopAnimation(fileID int32) {
	s.touch()
	s.mu.Lock()
	obj, ok := s.animations[fileID]
	s.mu.Unlock()
	if ok {
		obj.Stop()
	}
}

// AnimationFlowControl slides fileID's animation flow window.
func (s *Session) AnimationFlowControl(fileID int32, ackedFrame int) {
	s.touch()
	s.mu.Lock()
	obj, ok := s.animations[fileID]
	s.mu.Unlock()
	if ok {
		obj.OnFlowControl(ackedFrame)
	}
}

// pointForRegion returns the pixel coordinate a spatial/spectral profile
// over regionID should be read through: the region's first control
// point if one is set, otherwise the image center.
// pointForRegion resolves regionID's first control point against f's
// file, translating through internal/wcs when the region was defined
// against a different reference file (spec's region-reference-file
// supplement), and falling back to the image center when the region
// carries no points at all.
func (s *Session) pointForRegion(f *frame.Frame, regionID int32) (int, int) {
	pts, err := s.regions.ResolveForFile(regionID, f.FileID, s.coords.Translate)
	if err == nil && len(pts) > 0 {
		return int(pts[0].X), int(pts[0].Y)
	}
	shape := f.Shape()
	return shape.Width / 2, shape.Height / 2
}

// SetHistogramRequirements installs fileID/regionID's live histogram
// config list and immediately fills and sends one REGION_HISTOGRAM_DATA
// per requested bin count.
func (s *Session) SetHistogramRequirements(ctx context.Context, requestID uint32, fileID, regionID int32, configs []requirements.HistogramConfig) {
	s.touch()
	f, ok := s.frameFor(fileID)
	if !ok {
		s.sendError(requestID, wire.NewError(wire.ErrValidation, "unknown file id"))
		return
	}
	f.Requirements.SetConfigs(requirements.ConfigID{FileID: fileID, RegionID: regionID}, requirements.Configs{Histogram: configs})

	for _, c := range configs {
		hist, err := f.FillRegionHistogramData(ctx, regionID, int(c.NumBins))
		if err != nil {
			s.sendError(requestID, wire.NewError(wire.ErrInternal, err.Error()))
			continue
		}
		_, channel, stokes := f.CurrentPlane()
		s.send(wire.EventRegionHistogramData, requestID, wire.EncodeRegionHistogramData(wire.RegionHistogramData{
			FileID: fileID, RegionID: regionID, Stokes: int32(stokes), Channel: int32(channel), Progress: 1,
			NumBins: int32(hist.NumBins), Min: hist.Min, Max: hist.Max, BinWidth: hist.BinWidth, Counts: hist.Counts,
		}))
	}
}

// SetSpectralRequirements installs fileID/regionID's live spectral
// config list and, if non-empty, queues a streaming spectral profile
// fill through the region's point.
func (s *Session) SetSpectralRequirements(requestID uint32, fileID, regionID int32, configs []requirements.SpectralConfig) {
	s.touch()
	f, ok := s.frameFor(fileID)
	if !ok {
		s.sendError(requestID, wire.NewError(wire.ErrValidation, "unknown file id"))
		return
	}
	f.Requirements.SetConfigs(requirements.ConfigID{FileID: fileID, RegionID: regionID}, requirements.Configs{Spectral: configs})
	if len(configs) == 0 {
		return
	}

	x, y := s.pointForRegion(f, regionID)
	_, _, stokes := f.CurrentPlane()
	task := taskrun.TaskFunc(func(ctx context.Context) {
		err := f.FillSpectralProfileData(ctx, x, y, stokes, func(chunk frame.SpectralChunk) {
			s.send(wire.EventSpectralProfileData, requestID, wire.EncodeSpectralProfileData(wire.SpectralProfileData{
				FileID: fileID, RegionID: regionID, Stokes: int32(stokes), Progress: chunk.Progress, Values: chunk.Values,
			}))
		})
		if err != nil && err != context.Canceled {
			monitoring.Logf("session %s: spectral profile %d: %v", s.ID, fileID, err)
		}
	})
	if err := s.pool.Enqueue(s.cancel.Context(taskrun.ScopeHistogram), task); err != nil {
		monitoring.Logf("session %s: enqueue spectral profile: %v", s.ID, err)
	}
}

// SetStatsRequirements installs fileID/regionID's live stats config list
// and, if non-empty, fills and sends one REGION_STATS_DATA for the
// region's current-plane basic stats.
func (s *Session) SetStatsRequirements(ctx context.Context, requestID uint32, fileID, regionID int32, configs []requirements.StatsConfig) {
	s.touch()
	f, ok := s.frameFor(fileID)
	if !ok {
		s.sendError(requestID, wire.NewError(wire.ErrValidation, "unknown file id"))
		return
	}
	f.Requirements.SetConfigs(requirements.ConfigID{FileID: fileID, RegionID: regionID}, requirements.Configs{Stats: configs})
	if len(configs) == 0 {
		return
	}

	st, err := f.FillRegionStatsData(ctx, regionID, nil)
	if err != nil {
		s.sendError(requestID, wire.NewError(wire.ErrInternal, err.Error()))
		return
	}
	s.send(wire.EventRegionStatsData, requestID, wire.EncodeRegionStatsData(wire.RegionStatsData{
		FileID: fileID, RegionID: regionID,
		Names:  []string{"NumPixels", "Sum", "Mean", "StdDev", "Min", "Max", "RMS", "SumSq"},
		Values: []float64{float64(st.NumPixels), st.Sum, st.Mean, st.StdDev, st.Min, st.Max, st.RMS, st.SumSq},
	})) // parallel arrays: the wire format has no native map support.
}

// SetSpatialRequirements fills and sends one SPATIAL_PROFILE_DATA for
// the requested coordinate cuts through regionID's point.
func (s *Session) SetSpatialRequirements(ctx context.Context, requestID uint32, fileID, regionID int32, coordinates []string) {
	s.touch()
	f, ok := s.frameFor(fileID)
	if !ok {
		s.sendError(requestID, wire.NewError(wire.ErrValidation, "unknown file id"))
		return
	}
	if len(coordinates) == 0 {
		return
	}

	x, y := s.pointForRegion(f, regionID)
	profiles, err := f.FillSpatialProfileData(ctx, x, y, coordinates)
	if err != nil {
		s.sendError(requestID, wire.NewError(wire.ErrInternal, err.Error()))
		return
	}
	wireProfiles := make([]wire.SpatialProfileWire, len(profiles))
	for i, p := range profiles {
		wireProfiles[i] = wire.SpatialProfileWire{Coordinate: p.Coordinate, Start: int32(p.Start), End: int32(p.End), Values: p.Values}
	}
	s.send(wire.EventSpatialProfileData, requestID, wire.EncodeSpatialProfileData(wire.SpatialProfileData{
		FileID: fileID, RegionID: regionID, X: int32(x), Y: int32(y), Profiles: wireProfiles,
	}))
}

// SetContourParameters queues a contour pass over fileID's current plane,
// streaming one CONTOUR_IMAGE_DATA per flushed chunk.
func (s *Session) SetContourParameters(fileID int32, levels []float64, smoothingMode frame.SmoothingMode, smoothingFactor, chunkSize int, requestID uint32) {
	s.touch()
	f, ok := s.frameFor(fileID)
	if !ok {
		s.sendError(requestID, wire.NewError(wire.ErrValidation, "unknown file id"))
		return
	}
	task := taskrun.TaskFunc(func(ctx context.Context) {
		err := f.ContourImage(levels, smoothingMode, smoothingFactor, chunkSize, func(chunk frame.ContourChunk) {
			s.send(wire.EventContourImageData, requestID, wire.EncodeContourImageData(wire.ContourImageData{
				FileID: fileID, Progress: chunk.Progress, Level: chunk.Level, Vertices: chunk.Vertices, Indices: chunk.Indices,
			}))
		})
		if err != nil {
			monitoring.Logf("session %s: contour %d: %v", s.ID, fileID, err)
		}
	})
	if err := s.pool.Enqueue(s.cancel.Context(taskrun.ScopeHistogram), task); err != nil {
		monitoring.Logf("session %s: enqueue contour: %v", s.ID, err)
	}
}

// CalculateMoments queues a moment-map generation run for fileID/regionID,
// streaming MOMENT_PROGRESS and finishing with one MOMENT_RESPONSE.
func (s *Session) CalculateMoments(requestID uint32, fileID int32, req loader.MomentRequest) {
	s.touch()
	f, ok := s.frameFor(fileID)
	if !ok {
		s.sendError(requestID, wire.NewError(wire.ErrValidation, "unknown file id"))
		return
	}
	ml, ok := f.Loader().(*loader.MemoryLoader)
	if !ok {
		s.send(wire.EventMomentResponse, requestID, wire.EncodeMomentResponseWire(wire.MomentResponseWire{
			FileID: fileID, Success: false, Message: "loader does not support moment generation",
		}))
		return
	}
	_, _, stokes := f.CurrentPlane()
	gen := loader.NewMomentGenerator(ml, stokes)

	task := taskrun.TaskFunc(func(ctx context.Context) {
		results, err := f.CalculateMoments(ctx, gen, req, func(p float64) {
			s.send(wire.EventMomentProgress, requestID, wire.EncodeMomentProgressWire(wire.MomentProgressWire{FileID: fileID, Progress: p}))
		})
		if err != nil {
			s.send(wire.EventMomentResponse, requestID, wire.EncodeMomentResponseWire(wire.MomentResponseWire{
				FileID: fileID, Success: false, Message: err.Error(),
			}))
			return
		}
		wireResults := make([]wire.MomentResultWire, len(results))
		for i, r := range results {
			wireResults[i] = wire.MomentResultWire{Moment: int32(r.Moment), Width: int32(r.Width), Height: int32(r.Height), Data: r.Data, Name: r.Name}
		}
		s.send(wire.EventMomentResponse, requestID, wire.EncodeMomentResponseWire(wire.MomentResponseWire{
			FileID: fileID, Success: true, Results: wireResults,
		}))
	})
	if err := s.pool.Enqueue(s.cancel.Context(taskrun.ScopeBase), task); err != nil {
		monitoring.Logf("session %s: enqueue moments: %v", s.ID, err)
	}
}

// CalculatePv queues a position-velocity image computation for regionID
// on fileID, answering with PV_PREVIEW_DATA in preview mode or
// PV_RESPONSE otherwise.
func (s *Session) CalculatePv(requestID uint32, fileID, regionID int32, preview bool) {
	s.touch()
	f, ok := s.frameFor(fileID)
	if !ok {
		s.sendError(requestID, wire.NewError(wire.ErrValidation, "unknown file id"))
		return
	}
	l := f.Loader()

	task := taskrun.TaskFunc(func(ctx context.Context) {
		result, err := s.regions.CalculatePvImage(ctx, l, f, regionID, preview)
		if err != nil {
			s.send(wire.EventPvResponse, requestID, wire.EncodePvResponseWire(wire.PvResponseWire{
				FileID: fileID, RegionID: regionID, Success: false, Message: err.Error(),
			}))
			return
		}
		if preview {
			s.send(wire.EventPvPreviewData, requestID, wire.EncodePvPreviewDataWire(wire.PvPreviewDataWire{
				FileID: fileID, RegionID: regionID, Width: int32(result.Width), Height: int32(result.Height), Data: result.Data,
			}))
			return
		}
		s.send(wire.EventPvResponse, requestID, wire.EncodePvResponseWire(wire.PvResponseWire{
			FileID: fileID, RegionID: regionID, Success: true, Width: int32(result.Width), Height: int32(result.Height), Data: result.Data,
		}))
	})
	if err := s.pool.Enqueue(s.cancel.Context(taskrun.ScopeBase), task); err != nil {
		monitoring.Logf("session %s: enqueue pv: %v", s.ID, err)
	}
}

// FitRegion queues a Gaussian fit over regionID's bounding box on
// fileID, streaming FITTING_PROGRESS and finishing with one
// FITTING_RESPONSE.
func (s *Session) FitRegion(requestID uint32, fileID, regionID int32, req fitter.Request) {
	s.touch()
	f, ok := s.frameFor(fileID)
	if !ok {
		s.sendError(requestID, wire.NewError(wire.ErrValidation, "unknown file id"))
		return
	}
	maxIter := req.MaxIterations
	if maxIter <= 0 {
		maxIter = 100
	}
	req.Progress = func(iter int) {
		s.send(wire.EventFittingProgress, requestID, wire.EncodeFittingProgressWire(wire.FittingProgressWire{
			FileID: fileID, Progress: float64(iter) / float64(maxIter),
		}))
	}

	task := taskrun.TaskFunc(func(ctx context.Context) {
		req.Cancel = func() bool { return ctx.Err() != nil }
		result, err := s.regions.FitImage(ctx, f, regionID, req)
		if err != nil {
			s.send(wire.EventFittingResponse, requestID, wire.EncodeFittingResponseWire(wire.FittingResponseWire{
				FileID: fileID, Success: false, Message: err.Error(),
			}))
			return
		}
		components := make([]wire.ComponentWire, len(result.Components))
		for i, c := range result.Components {
			components[i] = wire.ComponentWire{CenterX: c.CenterX, CenterY: c.CenterY, Amplitude: c.Amplitude, FWHMX: c.FWHMX, FWHMY: c.FWHMY, PA: c.PA}
		}
		s.send(wire.EventFittingResponse, requestID, wire.EncodeFittingResponseWire(wire.FittingResponseWire{
			FileID: fileID, Success: result.Success, Message: result.Message, Components: components,
			Background: result.Background, NumIter: int32(result.NumIterations),
		}))
	})
	if err := s.pool.Enqueue(s.cancel.Context(taskrun.ScopeBase), task); err != nil {
		monitoring.Logf("session %s: enqueue fit: %v", s.ID, err)
	}
}

// ImportRegion reads a region file from directory/file and installs its
// regions against fileID, rejecting any path that escapes directory.
func (s *Session) ImportRegion(requestID uint32, fileID int32, directory, file string) {
	s.touch()
	path := filepath.Join(directory, file)
	if err := security.ValidatePathWithinDirectory(path, directory); err != nil {
		s.sendImportExportAck(wire.EventImportRegionAck, requestID, fileID, err)
		return
	}
	data, err := s.fs.ReadFile(path)
	if err != nil {
		s.sendImportExportAck(wire.EventImportRegionAck, requestID, fileID, err)
		return
	}
	regions, err := regionio.Decode(data, fileID)
	if err != nil {
		s.sendImportExportAck(wire.EventImportRegionAck, requestID, fileID, err)
		return
	}

	ids := make([]int32, 0, len(regions))
	for _, st := range regions {
		id, err := s.regions.SetRegion(0, st)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	s.send(wire.EventImportRegionAck, requestID, wire.EncodeImportExportRegionAck(wire.ImportExportRegionAck{
		Success: true, FileID: fileID, RegionIDs: ids,
	}))
}

// ExportRegion writes the given regions of fileID to directory/file,
// restricted by internal/security.ValidateExportPath since the
// directory is client-supplied and the server has no single configured
// output root to validate it against.
func (s *Session) ExportRegion(requestID uint32, fileID int32, directory, file string, regionIDs []int32) {
	s.touch()
	path := filepath.Join(directory, file)
	if err := security.ValidateExportPath(path); err != nil {
		s.sendImportExportAck(wire.EventExportRegionAck, requestID, fileID, err)
		return
	}

	regions := make(map[int32]region.State, len(regionIDs))
	for _, id := range regionIDs {
		if st, ok := s.regions.Get(id); ok {
			regions[id] = st
		}
	}
	data := regionio.Encode(regions)
	if err := s.fs.WriteFile(path, data, 0o644); err != nil {
		s.sendImportExportAck(wire.EventExportRegionAck, requestID, fileID, err)
		return
	}
	s.send(wire.EventExportRegionAck, requestID, wire.EncodeImportExportRegionAck(wire.ImportExportRegionAck{
		Success: true, FileID: fileID, RegionIDs: regionIDs,
	}))
}

func (s *Session) sendImportExportAck(event wire.EventType, requestID uint32, fileID int32, err error) {
	s.sendError(requestID, wire.NewError(wire.ErrValidation, err.Error()))
	s.send(event, requestID, wire.EncodeImportExportRegionAck(wire.ImportExportRegionAck{
		Success: false, Message: err.Error(), FileID: fileID,
	}))
}

// SaveFile writes fileID's current plane to directory/fileName as raw
// little-endian float64 data, restricted by
// internal/security.ValidateExportPath.
func (s *Session) SaveFile(ctx context.Context, requestID uint32, fileID int32, directory, fileName string) {
	s.touch()
	f, ok := s.frameFor(fileID)
	if !ok {
		s.sendSaveFileAck(requestID, fileID, wire.NewError(wire.ErrValidation, "unknown file id"))
		return
	}
	path := filepath.Join(directory, fileName)
	if err := security.ValidateExportPath(path); err != nil {
		s.sendSaveFileAck(requestID, fileID, err)
		return
	}

	err := f.SaveFile(ctx, func(ctx context.Context, plane []float64, width, height int) error {
		data := make([]byte, len(plane)*8)
		for i, v := range plane {
			binary.LittleEndian.PutUint64(data[i*8:], math.Float64bits(v))
		}
		return s.fs.WriteFile(path, data, 0o644)
	})
	if err != nil {
		s.sendSaveFileAck(requestID, fileID, err)
		return
	}
	s.send(wire.EventSaveFileAck, requestID, wire.EncodeSaveFileAck(wire.SaveFileAck{FileID: fileID, Success: true}))
}

func (s *Session) sendSaveFileAck(requestID uint32, fileID int32, err error) {
	s.sendError(requestID, wire.NewError(wire.ErrInternal, err.Error()))
	s.send(wire.EventSaveFileAck, requestID, wire.EncodeSaveFileAck(wire.SaveFileAck{FileID: fileID, Success: false, Message: err.Error()}))
}

// SendScriptingRequest pushes a SCRIPTING_REQUEST asking the connected
// client to run target with parameters and blocks for the matching
// SCRIPTING_RESPONSE, or until ctx is done. It is the session-side half
// of internal/scripting's gRPC bridge: an external controller calls in
// over gRPC, this carries the request across the session's websocket
// and back, per src/Session/Session.cc's SendScriptingRequest/
// OnScriptingResponse pair. A request marked Async returns immediately
// once the push is queued, without waiting for a reply.
func (s *Session) SendScriptingRequest(ctx context.Context, target string, parameters []string, async bool) (wire.ScriptingResponseWire, error) {
	s.touch()
	ch := make(chan wire.ScriptingResponseWire, 1)

	s.scriptingMu.Lock()
	s.nextScriptingID++
	id := s.nextScriptingID
	if !async {
		s.scriptingCallbacks[id] = ch
	}
	s.scriptingMu.Unlock()

	s.send(wire.EventScriptingRequest, id, wire.EncodeScriptingRequestWire(wire.ScriptingRequestWire{
		Target: target, Parameters: parameters, Async: async,
	}))

	if async {
		return wire.ScriptingResponseWire{Success: true, Message: "dispatched"}, nil
	}

	select {
	case resp := <-ch:
		return resp, nil
	case <-ctx.Done():
		s.scriptingMu.Lock()
		delete(s.scriptingCallbacks, id)
		s.scriptingMu.Unlock()
		return wire.ScriptingResponseWire{}, ctx.Err()
	}
}

// OnScriptingResponse resolves the callback SendScriptingRequest
// registered for requestID, called from the session manager's dispatch
// when a SCRIPTING_RESPONSE frame arrives. A response with no matching
// callback (already timed out, or never registered because the
// request was async) is dropped.
func (s *Session) OnScriptingResponse(requestID uint32, resp wire.ScriptingResponseWire) {
	s.scriptingMu.Lock()
	ch, ok := s.scriptingCallbacks[requestID]
	if ok {
		delete(s.scriptingCallbacks, requestID)
	}
	s.scriptingMu.Unlock()
	if ok {
		ch <- resp
	}
}

// FileInfo builds the computed-entries payload for fileID, delegating to
// internal/fileinfo.
func (s *Session) FileInfo(fileID int32, headerKeywords map[string]string) (fileinfo.Info, error) {
	f, ok := s.frameFor(fileID)
	if !ok {
		return fileinfo.Info{}, wire.NewError(wire.ErrValidation, "unknown file id")
	}
	shape := f.Shape()
	return fileinfo.Build(fileinfo.Shape{
		Width: shape.Width, Height: shape.Height, Depth: shape.Depth, NumStokes: shape.NumStokes,
	}, headerKeywords), nil
}

// Close releases every open Frame, stops all animations, and drops the
// refcount that keeps the session alive while tasks are in flight; the
// caller (session manager) should remove the session from its table
// once onZero fires.
func (s *Session) Close() {
	s.mu.Lock()
	frames := s.frames
	s.frames = nil
	anims := s.animations
	s.animations = nil
	s.mu.Unlock()

	for _, obj := range anims {
		obj.Stop()
	}
	for _, f := range frames {
		f.SetCancel(true)
		if err := f.Close(); err != nil {
			monitoring.Logf("session %s: close: %v", s.ID, err)
		}
	}
	s.cancel.CancelAll()
	s.out.Close()
	atomic.AddInt64(&liveSessionCount, -1)
}

// AcquireTask and ReleaseTask implement the refcount gate from §9: every
// task enqueued on behalf of this session must bracket its work between
// these two calls so the session is only torn down once no task holds a
// reference.
func (s *Session) AcquireTask() { s.refs.Acquire() }
func (s *Session) ReleaseTask() { s.refs.Release() }
