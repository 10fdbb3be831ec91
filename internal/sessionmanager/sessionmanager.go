// Package sessionmanager implements the socket accept/upgrade layer
// (C10): it upgrades an incoming HTTP connection to a binary WebSocket,
// builds a Session for it, demultiplexes inbound wire frames to Session
// methods, and drains the Session's outbound queue back onto the
// socket, corking writes and applying the idle-disconnect PING policy
// from spec.md §5.
package sessionmanager

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/CARTAvis/carta-backend-sub003/internal/animation"
	"github.com/CARTAvis/carta-backend-sub003/internal/audit"
	"github.com/CARTAvis/carta-backend-sub003/internal/fitter"
	"github.com/CARTAvis/carta-backend-sub003/internal/frame"
	"github.com/CARTAvis/carta-backend-sub003/internal/loader"
	"github.com/CARTAvis/carta-backend-sub003/internal/monitoring"
	"github.com/CARTAvis/carta-backend-sub003/internal/region"
	"github.com/CARTAvis/carta-backend-sub003/internal/requirements"
	"github.com/CARTAvis/carta-backend-sub003/internal/session"
	"github.com/CARTAvis/carta-backend-sub003/internal/taskrun"
	"github.com/CARTAvis/carta-backend-sub003/internal/wire"
)

// drainInterval is how often the write loop checks the outbound queue
// and the idle clock between inbound frames.
const drainInterval = 20 * time.Millisecond

// Manager accepts WebSocket connections, owns the live session table,
// and wires each connection's frames to its Session.
type Manager struct {
	opener      session.FileOpener
	pool        *taskrun.Pool
	idleTimeout time.Duration
	audit       *audit.Store

	mu       sync.Mutex
	sessions map[uuid.UUID]*session.Session
}

// NewManager builds a Manager whose sessions open files via opener and
// run long tasks on pool. idleTimeout is spec.md §5's
// idle_session_wait_time; zero selects a 90s default.
func NewManager(opener session.FileOpener, pool *taskrun.Pool, idleTimeout time.Duration) *Manager {
	if idleTimeout <= 0 {
		idleTimeout = 90 * time.Second
	}
	return &Manager{
		opener:      opener,
		pool:        pool,
		idleTimeout: idleTimeout,
		sessions:    make(map[uuid.UUID]*session.Session),
	}
}

// SetAuditStore attaches an audit log that handleConn will record
// session open/close events to. Optional: a nil store (the default)
// disables audit logging entirely.
func (m *Manager) SetAuditStore(store *audit.Store) {
	m.audit = store
}

// ActiveSessions returns the number of connections this Manager is
// currently serving, for the exit-when-empty grace timer.
func (m *Manager) ActiveSessions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Session looks up a live session by its string id, for
// internal/scripting's gRPC bridge to resolve the viewer an external
// controller wants to drive.
func (m *Manager) Session(id string) (*session.Session, bool) {
	sid, err := uuid.Parse(id)
	if err != nil {
		return nil, false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sid]
	return s, ok
}

// MeanHistogramCacheHitRate averages HistogramCacheHitRate across every
// live session, for internal/dashboard's cache-effectiveness panel. It
// returns 0 when no session is connected.
func (m *Manager) MeanHistogramCacheHitRate() float64 {
	m.mu.Lock()
	sessions := make([]*session.Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.Unlock()

	if len(sessions) == 0 {
		return 0
	}
	var sum float64
	for _, s := range sessions {
		sum += s.HistogramCacheHitRate()
	}
	return sum / float64(len(sessions))
}

func (m *Manager) add(s *session.Session) {
	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()
}

func (m *Manager) remove(id uuid.UUID) {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
}

// ServeHTTP upgrades the connection and runs its lifetime, blocking
// until the socket closes or errors.
func (m *Manager) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		monitoring.Logf("sessionmanager: accept: %v", err)
		return
	}
	m.handleConn(r.Context(), conn, r.RemoteAddr)
}

func (m *Manager) handleConn(ctx context.Context, conn *websocket.Conn, remoteAddr string) {
	defer conn.CloseNow()

	s := session.New(m.opener, m.pool, func() {})
	m.add(s)
	if m.audit != nil {
		m.audit.RecordSessionOpen(s.ID.String(), remoteAddr, time.Now().UnixNano())
	}
	defer func() {
		m.remove(s.ID)
		s.Close()
		if m.audit != nil {
			m.audit.RecordSessionClose(s.ID.String(), time.Now().UnixNano())
		}
	}()

	writeDone := make(chan struct{})
	go m.writeLoop(ctx, conn, s, writeDone)
	defer func() { <-writeDone }()

	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		if typ != websocket.MessageBinary {
			continue
		}
		m.dispatch(ctx, s, data)
	}
}

// writeLoop periodically drains s's outbound queue onto the socket,
// corking everything accumulated since the last drain into one write,
// and closes the connection once the session has been idle for longer
// than idleTimeout.
func (m *Manager) writeLoop(ctx context.Context, conn *websocket.Conn, s *session.Session, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(drainInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if batch := s.Outbound().Drain(); len(batch) > 0 {
				if err := conn.Write(ctx, websocket.MessageBinary, batch); err != nil {
					return
				}
			}
			if s.IdleFor() > m.idleTimeout {
				conn.Close(websocket.StatusPolicyViolation, "idle timeout")
				return
			}
		}
	}
}

// dispatch decodes one inbound frame's header and routes its body to
// the matching Session method. Malformed frames (bad header, bad ICD
// version, undecodable body) are dropped with a log line rather than
// killing the connection, per §7's "never fatal to the session" policy.
func (m *Manager) dispatch(ctx context.Context, s *session.Session, rawFrame []byte) {
	h, ok := wire.DecodeHeader(rawFrame)
	if !ok {
		monitoring.Logf("sessionmanager: session %s: bad header", s.ID)
		return
	}
	body := rawFrame[wire.HeaderSize:]

	switch h.Type {
	case wire.EventRegisterViewer:
		if _, err := wire.DecodeRegisterViewerRequest(body); err != nil {
			return
		}
		s.RegisterViewer(h.RequestID)

	case wire.EventOpenFile:
		req, err := wire.DecodeOpenFileRequest(body)
		if err != nil {
			return
		}
		s.OpenFile(ctx, h.RequestID, req.FileID, req.Key, req.HDU)

	case wire.EventCloseFile:
		req, err := wire.DecodeCloseFileRequest(body)
		if err != nil {
			return
		}
		s.CloseFile(req.FileID)

	case wire.EventSetImageChannels:
		req, err := wire.DecodeSetImageChannelsRequest(body)
		if err != nil {
			return
		}
		_ = s.SetImageChannels(ctx, h.RequestID, req.FileID, int(req.Channel), int(req.Stokes), req.AnimationID)

	case wire.EventSetCursor:
		req, err := wire.DecodeSetCursorRequest(body)
		if err != nil {
			return
		}
		s.SetCursor(req.FileID, req.X, req.Y, h.RequestID)

	case wire.EventSetRegion:
		req, err := wire.DecodeSetRegionRequest(body)
		if err != nil {
			return
		}
		s.SetRegion(h.RequestID, req.RegionID, regionStateFromWire(req))

	case wire.EventRemoveRegion:
		req, err := wire.DecodeRemoveRegionRequest(body)
		if err != nil {
			return
		}
		s.RemoveRegion(req.RegionID)

	case wire.EventStartAnimation:
		req, err := wire.DecodeStartAnimationRequest(body)
		if err != nil {
			return
		}
		obj := animation.NewObject(req.FileID, int(req.First), int(req.Start), int(req.Last), int(req.Delta),
			req.FrameRate, req.WaitsPerSecond, req.WindowScale)
		obj.Looping = req.Looping
		obj.ReverseAtEnd = req.ReverseAtEnd
		if err := s.StartAnimation(ctx, h.RequestID, obj); err != nil {
			monitoring.Logf("sessionmanager: session %s: start animation: %v", s.ID, err)
		}

	case wire.EventStopAnimation:
		req, err := wire.DecodeStopAnimationRequest(body)
		if err != nil {
			return
		}
		s.StopAnimation(req.FileID)

	case wire.EventAnimationFlowControl:
		req, err := wire.DecodeAnimationFlowControlRequest(body)
		if err != nil {
			return
		}
		s.AnimationFlowControl(req.FileID, int(req.AckedFrame))

	case wire.EventAddRequiredTiles:
		req, err := wire.DecodeAddRequiredTilesRequest(body)
		if err != nil {
			return
		}
		s.AddRequiredTiles(h.RequestID, req.FileID, req.AnimationID, int(req.CompressionQuality), req.Tiles)

	case wire.EventSetHistogramRequirements:
		req, err := wire.DecodeSetHistogramRequirementsRequest(body)
		if err != nil {
			return
		}
		s.SetHistogramRequirements(ctx, h.RequestID, req.FileID, req.RegionID, histogramConfigsFromWire(req.Configs))

	case wire.EventSetSpectralRequirements:
		req, err := wire.DecodeSetSpectralRequirementsRequest(body)
		if err != nil {
			return
		}
		s.SetSpectralRequirements(h.RequestID, req.FileID, req.RegionID, spectralConfigsFromWire(req.Configs))

	case wire.EventSetStatsRequirements:
		req, err := wire.DecodeSetStatsRequirementsRequest(body)
		if err != nil {
			return
		}
		s.SetStatsRequirements(ctx, h.RequestID, req.FileID, req.RegionID, statsConfigsFromWire(req.Configs))

	case wire.EventSetSpatialRequirements:
		req, err := wire.DecodeSetSpatialRequirementsRequest(body)
		if err != nil {
			return
		}
		s.SetSpatialRequirements(ctx, h.RequestID, req.FileID, req.RegionID, req.Coordinates)

	case wire.EventSetContourParameters:
		req, err := wire.DecodeSetContourParametersRequest(body)
		if err != nil {
			return
		}
		s.SetContourParameters(req.FileID, req.Levels, frame.SmoothingMode(req.SmoothingMode), int(req.SmoothingFactor), int(req.ChunkSize), h.RequestID)

	case wire.EventMomentRequest:
		req, err := wire.DecodeMomentRequestWire(body)
		if err != nil {
			return
		}
		moments := make([]int, len(req.Moments))
		for i, m := range req.Moments {
			moments[i] = int(m)
		}
		s.CalculateMoments(h.RequestID, req.FileID, loader.MomentRequest{
			Moments: moments, Axis: int(req.Axis), IncludeLo: req.IncludeLo, IncludeHi: req.IncludeHi, ExcludeRange: req.ExcludeRange,
		})

	case wire.EventPvRequest:
		req, err := wire.DecodePvRequestWire(body)
		if err != nil {
			return
		}
		s.CalculatePv(h.RequestID, req.FileID, req.RegionID, req.Preview)

	case wire.EventFittingRequest:
		req, err := wire.DecodeFittingRequestWire(body)
		if err != nil {
			return
		}
		s.FitRegion(h.RequestID, req.FileID, req.RegionID, fitterRequestFromWire(req))

	case wire.EventImportRegion:
		req, err := wire.DecodeImportRegionRequest(body)
		if err != nil {
			return
		}
		s.ImportRegion(h.RequestID, req.FileID, req.Directory, req.File)

	case wire.EventExportRegion:
		req, err := wire.DecodeExportRegionRequest(body)
		if err != nil {
			return
		}
		s.ExportRegion(h.RequestID, req.FileID, req.Directory, req.File, req.RegionIDs)

	case wire.EventSaveFile:
		req, err := wire.DecodeSaveFileRequest(body)
		if err != nil {
			return
		}
		s.SaveFile(ctx, h.RequestID, req.FileID, req.OutputFileDirectory, req.OutputFileName)

	case wire.EventScriptingResponse:
		resp, err := wire.DecodeScriptingResponseWire(body)
		if err != nil {
			return
		}
		s.OnScriptingResponse(h.RequestID, resp)

	// EventScriptingRequest has no case here: per
	// src/Session/Session.cc's SendScriptingRequest, that event is
	// pushed server-to-client, never received from one. An external
	// controller drives it through internal/scripting's gRPC bridge,
	// which calls Session.SendScriptingRequest directly.

	default:
		monitoring.Logf("sessionmanager: session %s: unhandled event %d", s.ID, h.Type)
	}
}

func histogramConfigsFromWire(configs []wire.HistogramConfigWire) []requirements.HistogramConfig {
	out := make([]requirements.HistogramConfig, len(configs))
	for i, c := range configs {
		out[i] = requirements.HistogramConfig{Channel: c.Channel, NumBins: c.NumBins, FixedBounds: c.FixedBounds, BoundsMin: c.BoundsMin, BoundsMax: c.BoundsMax}
	}
	return out
}

func spectralConfigsFromWire(configs []wire.StatTypesConfigWire) []requirements.SpectralConfig {
	out := make([]requirements.SpectralConfig, len(configs))
	for i, c := range configs {
		out[i] = requirements.SpectralConfig{Coordinate: c.Coordinate, StatsTypes: c.StatsTypes}
	}
	return out
}

func statsConfigsFromWire(configs []wire.StatTypesConfigWire) []requirements.StatsConfig {
	out := make([]requirements.StatsConfig, len(configs))
	for i, c := range configs {
		out[i] = requirements.StatsConfig{Coordinate: c.Coordinate, StatsTypes: c.StatsTypes}
	}
	return out
}

func fitterRequestFromWire(req wire.FittingRequestWire) fitter.Request {
	initial := make([]fitter.Component, len(req.InitialValues))
	for i, c := range req.InitialValues {
		initial[i] = fitter.Component{CenterX: c.CenterX, CenterY: c.CenterY, Amplitude: c.Amplitude, FWHMX: c.FWHMX, FWHMY: c.FWHMY, PA: c.PA}
	}
	return fitter.Request{InitialValues: initial, FixedParams: req.FixedParams, Background: req.Background, BeamArea: req.BeamArea}
}

func regionStateFromWire(req wire.SetRegionRequest) region.State {
	points := make([]region.ControlPoint, len(req.ControlPoints))
	for i, p := range req.ControlPoints {
		points[i] = region.ControlPoint{X: p.X, Y: p.Y}
	}
	return region.State{
		FileID:          req.FileID,
		ReferenceFileID: req.ReferenceFileID,
		Type:            region.Type(req.Type),
		ControlPoints:   points,
		RotationDeg:     req.RotationDeg,
	}
}
