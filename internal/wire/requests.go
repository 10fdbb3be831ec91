package wire

import "google.golang.org/protobuf/encoding/protowire"

// RegisterViewerRequest is the first frame a client sends; the server
// replies with RegisterViewerAck carrying the session id it assigned.
type RegisterViewerRequest struct {
	APIKey             string
	ClientFeatureFlags uint32
}

const (
	fieldRegisterReqAPIKey = 1
	fieldRegisterReqFlags  = 2
)

func EncodeRegisterViewerRequest(r RegisterViewerRequest) []byte {
	var b []byte
	b = appendStringField(b, fieldRegisterReqAPIKey, r.APIKey)
	b = appendVarintField(b, fieldRegisterReqFlags, uint64(r.ClientFeatureFlags))
	return b
}

func DecodeRegisterViewerRequest(buf []byte) (RegisterViewerRequest, error) {
	var r RegisterViewerRequest
	return r, walkStringFields(buf, func(num protowire.Number, v uint64, s string) {
		switch num {
		case fieldRegisterReqAPIKey:
			r.APIKey = s
		case fieldRegisterReqFlags:
			r.ClientFeatureFlags = uint32(v)
		}
	})
}

// RegisterViewerAck answers REGISTER_VIEWER with the assigned session id.
type RegisterViewerAck struct {
	Success   bool
	Message   string
	SessionID string
}

const (
	fieldRegisterAckSuccess   = 1
	fieldRegisterAckMessage   = 2
	fieldRegisterAckSessionID = 3
)

func EncodeRegisterViewerAck(a RegisterViewerAck) []byte {
	var b []byte
	b = appendBoolField(b, fieldRegisterAckSuccess, a.Success)
	b = appendStringField(b, fieldRegisterAckMessage, a.Message)
	b = appendStringField(b, fieldRegisterAckSessionID, a.SessionID)
	return b
}

func DecodeRegisterViewerAck(buf []byte) (RegisterViewerAck, error) {
	var a RegisterViewerAck
	return a, walkStringFields(buf, func(num protowire.Number, v uint64, s string) {
		switch num {
		case fieldRegisterAckSuccess:
			a.Success = v != 0
		case fieldRegisterAckMessage:
			a.Message = s
		case fieldRegisterAckSessionID:
			a.SessionID = s
		}
	})
}

// OpenFileRequest asks the session to open key/hdu as fileID.
type OpenFileRequest struct {
	FileID int32
	Key    string
	HDU    string
}

const (
	fieldOpenReqFileID = 1
	fieldOpenReqKey    = 2
	fieldOpenReqHDU    = 3
)

func EncodeOpenFileRequest(r OpenFileRequest) []byte {
	var b []byte
	b = appendVarintField(b, fieldOpenReqFileID, uint64(r.FileID))
	b = appendStringField(b, fieldOpenReqKey, r.Key)
	b = appendStringField(b, fieldOpenReqHDU, r.HDU)
	return b
}

func DecodeOpenFileRequest(buf []byte) (OpenFileRequest, error) {
	var r OpenFileRequest
	return r, walkStringFields(buf, func(num protowire.Number, v uint64, s string) {
		switch num {
		case fieldOpenReqFileID:
			r.FileID = int32(v)
		case fieldOpenReqKey:
			r.Key = s
		case fieldOpenReqHDU:
			r.HDU = s
		}
	})
}

// CloseFileRequest asks the session to release fileID.
type CloseFileRequest struct {
	FileID int32
}

const fieldCloseReqFileID = 1

func EncodeCloseFileRequest(r CloseFileRequest) []byte {
	return appendVarintField(nil, fieldCloseReqFileID, uint64(r.FileID))
}

func DecodeCloseFileRequest(buf []byte) (CloseFileRequest, error) {
	var r CloseFileRequest
	return r, walkFields(buf, func(num protowire.Number, typ protowire.Type, v uint64, s string) {
		if num == fieldCloseReqFileID {
			r.FileID = int32(v)
		}
	})
}

// SetImageChannelsRequest asks the session to move fileID to a new
// (channel, stokes), optionally tagged with the animation that is
// driving the change.
type SetImageChannelsRequest struct {
	FileID      int32
	Channel     int32
	Stokes      int32
	AnimationID uint32
}

const (
	fieldChanReqFileID      = 1
	fieldChanReqChannel     = 2
	fieldChanReqStokes      = 3
	fieldChanReqAnimationID = 4
)

func EncodeSetImageChannelsRequest(r SetImageChannelsRequest) []byte {
	var b []byte
	b = appendVarintField(b, fieldChanReqFileID, uint64(r.FileID))
	b = appendVarintField(b, fieldChanReqChannel, uint64(r.Channel))
	b = appendVarintField(b, fieldChanReqStokes, uint64(r.Stokes))
	b = appendVarintField(b, fieldChanReqAnimationID, uint64(r.AnimationID))
	return b
}

func DecodeSetImageChannelsRequest(buf []byte) (SetImageChannelsRequest, error) {
	var r SetImageChannelsRequest
	return r, walkFields(buf, func(num protowire.Number, typ protowire.Type, v uint64, s string) {
		switch num {
		case fieldChanReqFileID:
			r.FileID = int32(v)
		case fieldChanReqChannel:
			r.Channel = int32(v)
		case fieldChanReqStokes:
			r.Stokes = int32(v)
		case fieldChanReqAnimationID:
			r.AnimationID = uint32(v)
		}
	})
}

// SetCursorRequest carries a new cursor position for fileID.
type SetCursorRequest struct {
	FileID int32
	X, Y   float64
}

const (
	fieldCursorReqFileID = 1
	fieldCursorReqX      = 2
	fieldCursorReqY      = 3
)

func EncodeSetCursorRequest(r SetCursorRequest) []byte {
	var b []byte
	b = appendVarintField(b, fieldCursorReqFileID, uint64(r.FileID))
	b = appendFixed64Field(b, fieldCursorReqX, r.X)
	b = appendFixed64Field(b, fieldCursorReqY, r.Y)
	return b
}

func DecodeSetCursorRequest(buf []byte) (SetCursorRequest, error) {
	var r SetCursorRequest
	err := walkAllFields(buf, func(num protowire.Number, typ protowire.Type, v uint64, f float64, bs []byte) {
		switch num {
		case fieldCursorReqFileID:
			r.FileID = int32(v)
		case fieldCursorReqX:
			r.X = f
		case fieldCursorReqY:
			r.Y = f
		}
	})
	return r, err
}

// ControlPointWire is one (x, y) vertex of a SetRegionRequest, encoded
// as a packed pair of fixed64 fields inside a length-delimited entry.
type ControlPointWire struct{ X, Y float64 }

func encodeControlPoint(p ControlPointWire) []byte {
	var b []byte
	b = appendFixed64Field(b, 1, p.X)
	b = appendFixed64Field(b, 2, p.Y)
	return b
}

func decodeControlPoint(buf []byte) (ControlPointWire, error) {
	var p ControlPointWire
	err := walkAllFields(buf, func(num protowire.Number, typ protowire.Type, v uint64, f float64, bs []byte) {
		switch num {
		case 1:
			p.X = f
		case 2:
			p.Y = f
		}
	})
	return p, err
}

// SetRegionRequest defines or updates a region, matching spec.md
// scenario #5's request shape: RegionID is 0 for "create new".
type SetRegionRequest struct {
	FileID          int32
	RegionID        int32
	ReferenceFileID int32
	Type            int32
	ControlPoints   []ControlPointWire
	RotationDeg     float64
}

const (
	fieldRegionReqFileID      = 1
	fieldRegionReqRegionID    = 2
	fieldRegionReqRefFileID   = 3
	fieldRegionReqType        = 4
	fieldRegionReqPoints      = 5
	fieldRegionReqRotationDeg = 6
)

func EncodeSetRegionRequest(r SetRegionRequest) []byte {
	var b []byte
	b = appendVarintField(b, fieldRegionReqFileID, uint64(r.FileID))
	b = appendVarintField(b, fieldRegionReqRegionID, uint64(uint32(r.RegionID)))
	b = appendVarintField(b, fieldRegionReqRefFileID, uint64(r.ReferenceFileID))
	b = appendVarintField(b, fieldRegionReqType, uint64(r.Type))
	for _, p := range r.ControlPoints {
		b = appendBytesField(b, fieldRegionReqPoints, encodeControlPoint(p))
	}
	b = appendFixed64Field(b, fieldRegionReqRotationDeg, r.RotationDeg)
	return b
}

func DecodeSetRegionRequest(buf []byte) (SetRegionRequest, error) {
	var r SetRegionRequest
	err := walkAllFields(buf, func(num protowire.Number, typ protowire.Type, v uint64, f float64, bs []byte) {
		switch num {
		case fieldRegionReqFileID:
			r.FileID = int32(v)
		case fieldRegionReqRegionID:
			r.RegionID = int32(v)
		case fieldRegionReqRefFileID:
			r.ReferenceFileID = int32(v)
		case fieldRegionReqType:
			r.Type = int32(v)
		case fieldRegionReqPoints:
			if p, err := decodeControlPoint(bs); err == nil {
				r.ControlPoints = append(r.ControlPoints, p)
			}
		case fieldRegionReqRotationDeg:
			r.RotationDeg = f
		}
	})
	return r, err
}

// RemoveRegionRequest deletes a region by id.
type RemoveRegionRequest struct {
	RegionID int32
}

const fieldRemoveRegionReqID = 1

func EncodeRemoveRegionRequest(r RemoveRegionRequest) []byte {
	return appendVarintField(nil, fieldRemoveRegionReqID, uint64(r.RegionID))
}

func DecodeRemoveRegionRequest(buf []byte) (RemoveRegionRequest, error) {
	var r RemoveRegionRequest
	return r, walkFields(buf, func(num protowire.Number, typ protowire.Type, v uint64, s string) {
		if num == fieldRemoveRegionReqID {
			r.RegionID = int32(v)
		}
	})
}

// StartAnimationRequest mirrors internal/animation.Object's construction
// fields, matching spec.md §3's animation state record.
type StartAnimationRequest struct {
	FileID         int32
	First          int32
	Start          int32
	Last           int32
	Delta          int32
	FrameRate      float64
	WaitsPerSecond float64
	WindowScale    float64
	Looping        bool
	ReverseAtEnd   bool
}

const (
	fieldAnimReqFileID         = 1
	fieldAnimReqFirst          = 2
	fieldAnimReqStart          = 3
	fieldAnimReqLast           = 4
	fieldAnimReqDelta          = 5
	fieldAnimReqFrameRate      = 6
	fieldAnimReqWaitsPerSecond = 7
	fieldAnimReqWindowScale    = 8
	fieldAnimReqLooping        = 9
	fieldAnimReqReverseAtEnd   = 10
)

func EncodeStartAnimationRequest(r StartAnimationRequest) []byte {
	var b []byte
	b = appendVarintField(b, fieldAnimReqFileID, uint64(r.FileID))
	b = appendVarintField(b, fieldAnimReqFirst, uint64(uint32(r.First)))
	b = appendVarintField(b, fieldAnimReqStart, uint64(uint32(r.Start)))
	b = appendVarintField(b, fieldAnimReqLast, uint64(uint32(r.Last)))
	b = appendVarintField(b, fieldAnimReqDelta, uint64(uint32(r.Delta)))
	b = appendFixed64Field(b, fieldAnimReqFrameRate, r.FrameRate)
	b = appendFixed64Field(b, fieldAnimReqWaitsPerSecond, r.WaitsPerSecond)
	b = appendFixed64Field(b, fieldAnimReqWindowScale, r.WindowScale)
	b = appendBoolField(b, fieldAnimReqLooping, r.Looping)
	b = appendBoolField(b, fieldAnimReqReverseAtEnd, r.ReverseAtEnd)
	return b
}

func DecodeStartAnimationRequest(buf []byte) (StartAnimationRequest, error) {
	var r StartAnimationRequest
	err := walkAllFields(buf, func(num protowire.Number, typ protowire.Type, v uint64, f float64, bs []byte) {
		switch num {
		case fieldAnimReqFileID:
			r.FileID = int32(v)
		case fieldAnimReqFirst:
			r.First = int32(v)
		case fieldAnimReqStart:
			r.Start = int32(v)
		case fieldAnimReqLast:
			r.Last = int32(v)
		case fieldAnimReqDelta:
			r.Delta = int32(v)
		case fieldAnimReqFrameRate:
			r.FrameRate = f
		case fieldAnimReqWaitsPerSecond:
			r.WaitsPerSecond = f
		case fieldAnimReqWindowScale:
			r.WindowScale = f
		case fieldAnimReqLooping:
			r.Looping = v != 0
		case fieldAnimReqReverseAtEnd:
			r.ReverseAtEnd = v != 0
		}
	})
	return r, err
}

// StopAnimationRequest halts fileID's animation.
type StopAnimationRequest struct {
	FileID int32
}

const fieldStopAnimReqFileID = 1

func EncodeStopAnimationRequest(r StopAnimationRequest) []byte {
	return appendVarintField(nil, fieldStopAnimReqFileID, uint64(r.FileID))
}

func DecodeStopAnimationRequest(buf []byte) (StopAnimationRequest, error) {
	var r StopAnimationRequest
	return r, walkFields(buf, func(num protowire.Number, typ protowire.Type, v uint64, s string) {
		if num == fieldStopAnimReqFileID {
			r.FileID = int32(v)
		}
	})
}

// AnimationFlowControlRequest acknowledges frames up to AckedFrame.
type AnimationFlowControlRequest struct {
	FileID     int32
	AckedFrame int32
}

const (
	fieldFlowReqFileID     = 1
	fieldFlowReqAckedFrame = 2
)

func EncodeAnimationFlowControlRequest(r AnimationFlowControlRequest) []byte {
	var b []byte
	b = appendVarintField(b, fieldFlowReqFileID, uint64(r.FileID))
	b = appendVarintField(b, fieldFlowReqAckedFrame, uint64(uint32(r.AckedFrame)))
	return b
}

func DecodeAnimationFlowControlRequest(buf []byte) (AnimationFlowControlRequest, error) {
	var r AnimationFlowControlRequest
	return r, walkFields(buf, func(num protowire.Number, typ protowire.Type, v uint64, s string) {
		switch num {
		case fieldFlowReqFileID:
			r.FileID = int32(v)
		case fieldFlowReqAckedFrame:
			r.AckedFrame = int32(v)
		}
	})
}

// AddRequiredTilesRequest asks the session to fill and stream one burst
// of raster tiles for fileID, each entry of Tiles being a
// internal/tile.Encode'd (layer, x, y) address.
type AddRequiredTilesRequest struct {
	FileID             int32
	AnimationID        uint32
	CompressionQuality int32
	Tiles              []int32
}

const (
	fieldTilesReqFileID      = 1
	fieldTilesReqAnimationID = 2
	fieldTilesReqQuality     = 3
	fieldTilesReqTiles       = 4
)

func EncodeAddRequiredTilesRequest(r AddRequiredTilesRequest) []byte {
	var b []byte
	b = appendVarintField(b, fieldTilesReqFileID, uint64(r.FileID))
	b = appendVarintField(b, fieldTilesReqAnimationID, uint64(r.AnimationID))
	b = appendVarintField(b, fieldTilesReqQuality, uint64(r.CompressionQuality))
	for _, t := range r.Tiles {
		b = appendVarintField(b, fieldTilesReqTiles, uint64(uint32(t)))
	}
	return b
}

func DecodeAddRequiredTilesRequest(buf []byte) (AddRequiredTilesRequest, error) {
	var r AddRequiredTilesRequest
	err := walkFields(buf, func(num protowire.Number, typ protowire.Type, v uint64, s string) {
		switch num {
		case fieldTilesReqFileID:
			r.FileID = int32(v)
		case fieldTilesReqAnimationID:
			r.AnimationID = uint32(v)
		case fieldTilesReqQuality:
			r.CompressionQuality = int32(v)
		case fieldTilesReqTiles:
			r.Tiles = append(r.Tiles, int32(v))
		}
	})
	return r, err
}

// HistogramConfigWire is one entry of a SetHistogramRequirementsRequest.
type HistogramConfigWire struct {
	Channel     int32
	NumBins     int32
	FixedBounds bool
	BoundsMin   float64
	BoundsMax   float64
	Coordinate  string
}

func encodeHistogramConfig(c HistogramConfigWire) []byte {
	var b []byte
	b = appendVarintField(b, 1, uint64(c.Channel))
	b = appendVarintField(b, 2, uint64(c.NumBins))
	b = appendBoolField(b, 3, c.FixedBounds)
	b = appendFixed64Field(b, 4, c.BoundsMin)
	b = appendFixed64Field(b, 5, c.BoundsMax)
	b = appendStringField(b, 6, c.Coordinate)
	return b
}

func decodeHistogramConfig(buf []byte) (HistogramConfigWire, error) {
	var c HistogramConfigWire
	err := walkAllFields(buf, func(num protowire.Number, typ protowire.Type, v uint64, f float64, bs []byte) {
		switch num {
		case 1:
			c.Channel = int32(v)
		case 2:
			c.NumBins = int32(v)
		case 3:
			c.FixedBounds = v != 0
		case 4:
			c.BoundsMin = f
		case 5:
			c.BoundsMax = f
		case 6:
			c.Coordinate = string(bs)
		}
	})
	return c, err
}

// SetHistogramRequirementsRequest installs the live histogram
// requirement list for (FileID, RegionID).
type SetHistogramRequirementsRequest struct {
	FileID   int32
	RegionID int32
	Configs  []HistogramConfigWire
}

const (
	fieldHistReqFileID   = 1
	fieldHistReqRegionID = 2
	fieldHistReqConfigs  = 3
)

func EncodeSetHistogramRequirementsRequest(r SetHistogramRequirementsRequest) []byte {
	var b []byte
	b = appendVarintField(b, fieldHistReqFileID, uint64(r.FileID))
	b = appendVarintField(b, fieldHistReqRegionID, uint64(uint32(r.RegionID)))
	for _, c := range r.Configs {
		b = appendBytesField(b, fieldHistReqConfigs, encodeHistogramConfig(c))
	}
	return b
}

func DecodeSetHistogramRequirementsRequest(buf []byte) (SetHistogramRequirementsRequest, error) {
	var r SetHistogramRequirementsRequest
	err := walkBytesFields(buf, func(num protowire.Number, v uint64, bs []byte) {
		switch num {
		case fieldHistReqFileID:
			r.FileID = int32(v)
		case fieldHistReqRegionID:
			r.RegionID = int32(v)
		case fieldHistReqConfigs:
			if c, err := decodeHistogramConfig(bs); err == nil {
				r.Configs = append(r.Configs, c)
			}
		}
	})
	return r, err
}

// StatTypesConfigWire is a (coordinate, requested stats) pair shared by
// the spectral and stats requirement lists.
type StatTypesConfigWire struct {
	Coordinate string
	StatsTypes []string
}

func encodeStatTypesConfig(c StatTypesConfigWire) []byte {
	var b []byte
	b = appendStringField(b, 1, c.Coordinate)
	for _, s := range c.StatsTypes {
		b = appendStringField(b, 2, s)
	}
	return b
}

func decodeStatTypesConfig(buf []byte) (StatTypesConfigWire, error) {
	var c StatTypesConfigWire
	err := walkStringFields(buf, func(num protowire.Number, v uint64, s string) {
		switch num {
		case 1:
			c.Coordinate = s
		case 2:
			c.StatsTypes = append(c.StatsTypes, s)
		}
	})
	return c, err
}

// SetSpectralRequirementsRequest installs the live spectral profile
// requirement list for (FileID, RegionID).
type SetSpectralRequirementsRequest struct {
	FileID   int32
	RegionID int32
	Configs  []StatTypesConfigWire
}

const (
	fieldSpecReqFileID   = 1
	fieldSpecReqRegionID = 2
	fieldSpecReqConfigs  = 3
)

func EncodeSetSpectralRequirementsRequest(r SetSpectralRequirementsRequest) []byte {
	var b []byte
	b = appendVarintField(b, fieldSpecReqFileID, uint64(r.FileID))
	b = appendVarintField(b, fieldSpecReqRegionID, uint64(uint32(r.RegionID)))
	for _, c := range r.Configs {
		b = appendBytesField(b, fieldSpecReqConfigs, encodeStatTypesConfig(c))
	}
	return b
}

func DecodeSetSpectralRequirementsRequest(buf []byte) (SetSpectralRequirementsRequest, error) {
	var r SetSpectralRequirementsRequest
	err := walkBytesFields(buf, func(num protowire.Number, v uint64, bs []byte) {
		switch num {
		case fieldSpecReqFileID:
			r.FileID = int32(v)
		case fieldSpecReqRegionID:
			r.RegionID = int32(v)
		case fieldSpecReqConfigs:
			if c, err := decodeStatTypesConfig(bs); err == nil {
				r.Configs = append(r.Configs, c)
			}
		}
	})
	return r, err
}

// SetStatsRequirementsRequest installs the live region-stats
// requirement list for (FileID, RegionID).
type SetStatsRequirementsRequest struct {
	FileID   int32
	RegionID int32
	Configs  []StatTypesConfigWire
}

const (
	fieldStatsReqFileID   = 1
	fieldStatsReqRegionID = 2
	fieldStatsReqConfigs  = 3
)

func EncodeSetStatsRequirementsRequest(r SetStatsRequirementsRequest) []byte {
	var b []byte
	b = appendVarintField(b, fieldStatsReqFileID, uint64(r.FileID))
	b = appendVarintField(b, fieldStatsReqRegionID, uint64(uint32(r.RegionID)))
	for _, c := range r.Configs {
		b = appendBytesField(b, fieldStatsReqConfigs, encodeStatTypesConfig(c))
	}
	return b
}

func DecodeSetStatsRequirementsRequest(buf []byte) (SetStatsRequirementsRequest, error) {
	var r SetStatsRequirementsRequest
	err := walkBytesFields(buf, func(num protowire.Number, v uint64, bs []byte) {
		switch num {
		case fieldStatsReqFileID:
			r.FileID = int32(v)
		case fieldStatsReqRegionID:
			r.RegionID = int32(v)
		case fieldStatsReqConfigs:
			if c, err := decodeStatTypesConfig(bs); err == nil {
				r.Configs = append(r.Configs, c)
			}
		}
	})
	return r, err
}

// SetSpatialRequirementsRequest installs the live spatial-profile
// coordinate list for (FileID, RegionID).
type SetSpatialRequirementsRequest struct {
	FileID      int32
	RegionID    int32
	Coordinates []string
}

const (
	fieldSpatialReqFileID      = 1
	fieldSpatialReqRegionID    = 2
	fieldSpatialReqCoordinates = 3
)

func EncodeSetSpatialRequirementsRequest(r SetSpatialRequirementsRequest) []byte {
	var b []byte
	b = appendVarintField(b, fieldSpatialReqFileID, uint64(r.FileID))
	b = appendVarintField(b, fieldSpatialReqRegionID, uint64(uint32(r.RegionID)))
	for _, c := range r.Coordinates {
		b = appendStringField(b, fieldSpatialReqCoordinates, c)
	}
	return b
}

func DecodeSetSpatialRequirementsRequest(buf []byte) (SetSpatialRequirementsRequest, error) {
	var r SetSpatialRequirementsRequest
	err := walkStringFields(buf, func(num protowire.Number, v uint64, s string) {
		switch num {
		case fieldSpatialReqFileID:
			r.FileID = int32(v)
		case fieldSpatialReqRegionID:
			r.RegionID = int32(v)
		case fieldSpatialReqCoordinates:
			r.Coordinates = append(r.Coordinates, s)
		}
	})
	return r, err
}

// SetContourParametersRequest configures the contour levels, smoothing
// and chunking Frame.ContourImage should use for fileID's next contour
// pass.
type SetContourParametersRequest struct {
	FileID          int32
	Levels          []float64
	SmoothingMode   int32
	SmoothingFactor int32
	ChunkSize       int32
}

const (
	fieldContourReqFileID          = 1
	fieldContourReqLevels          = 2
	fieldContourReqSmoothingMode   = 3
	fieldContourReqSmoothingFactor = 4
	fieldContourReqChunkSize       = 5
)

func EncodeSetContourParametersRequest(r SetContourParametersRequest) []byte {
	var b []byte
	b = appendVarintField(b, fieldContourReqFileID, uint64(r.FileID))
	for _, lv := range r.Levels {
		b = appendFixed64Field(b, fieldContourReqLevels, lv)
	}
	b = appendVarintField(b, fieldContourReqSmoothingMode, uint64(r.SmoothingMode))
	b = appendVarintField(b, fieldContourReqSmoothingFactor, uint64(r.SmoothingFactor))
	b = appendVarintField(b, fieldContourReqChunkSize, uint64(r.ChunkSize))
	return b
}

func DecodeSetContourParametersRequest(buf []byte) (SetContourParametersRequest, error) {
	var r SetContourParametersRequest
	err := walkAllFields(buf, func(num protowire.Number, typ protowire.Type, v uint64, f float64, bs []byte) {
		switch num {
		case fieldContourReqFileID:
			r.FileID = int32(v)
		case fieldContourReqLevels:
			r.Levels = append(r.Levels, f)
		case fieldContourReqSmoothingMode:
			r.SmoothingMode = int32(v)
		case fieldContourReqSmoothingFactor:
			r.SmoothingFactor = int32(v)
		case fieldContourReqChunkSize:
			r.ChunkSize = int32(v)
		}
	})
	return r, err
}

// MomentRequestWire asks the session to generate moment maps for
// fileID/regionID over the given spectral range.
type MomentRequestWire struct {
	FileID       int32
	RegionID     int32
	Moments      []int32
	Axis         int32
	IncludeLo    float64
	IncludeHi    float64
	ExcludeRange bool
}

const (
	fieldMomReqFileID       = 1
	fieldMomReqRegionID     = 2
	fieldMomReqMoments      = 3
	fieldMomReqAxis         = 4
	fieldMomReqIncludeLo    = 5
	fieldMomReqIncludeHi    = 6
	fieldMomReqExcludeRange = 7
)

func EncodeMomentRequestWire(r MomentRequestWire) []byte {
	var b []byte
	b = appendVarintField(b, fieldMomReqFileID, uint64(r.FileID))
	b = appendVarintField(b, fieldMomReqRegionID, uint64(uint32(r.RegionID)))
	for _, m := range r.Moments {
		b = appendVarintField(b, fieldMomReqMoments, uint64(m))
	}
	b = appendVarintField(b, fieldMomReqAxis, uint64(r.Axis))
	b = appendFixed64Field(b, fieldMomReqIncludeLo, r.IncludeLo)
	b = appendFixed64Field(b, fieldMomReqIncludeHi, r.IncludeHi)
	b = appendBoolField(b, fieldMomReqExcludeRange, r.ExcludeRange)
	return b
}

func DecodeMomentRequestWire(buf []byte) (MomentRequestWire, error) {
	var r MomentRequestWire
	err := walkAllFields(buf, func(num protowire.Number, typ protowire.Type, v uint64, f float64, bs []byte) {
		switch num {
		case fieldMomReqFileID:
			r.FileID = int32(v)
		case fieldMomReqRegionID:
			r.RegionID = int32(v)
		case fieldMomReqMoments:
			r.Moments = append(r.Moments, int32(v))
		case fieldMomReqAxis:
			r.Axis = int32(v)
		case fieldMomReqIncludeLo:
			r.IncludeLo = f
		case fieldMomReqIncludeHi:
			r.IncludeHi = f
		case fieldMomReqExcludeRange:
			r.ExcludeRange = v != 0
		}
	})
	return r, err
}

// PvRequestWire asks the session to compute (or refresh, for previews) a
// position-velocity image along a line region.
type PvRequestWire struct {
	FileID   int32
	RegionID int32
	Preview  bool
}

const (
	fieldPvReqFileID   = 1
	fieldPvReqRegionID = 2
	fieldPvReqPreview  = 3
)

func EncodePvRequestWire(r PvRequestWire) []byte {
	var b []byte
	b = appendVarintField(b, fieldPvReqFileID, uint64(r.FileID))
	b = appendVarintField(b, fieldPvReqRegionID, uint64(uint32(r.RegionID)))
	b = appendBoolField(b, fieldPvReqPreview, r.Preview)
	return b
}

func DecodePvRequestWire(buf []byte) (PvRequestWire, error) {
	var r PvRequestWire
	err := walkFields(buf, func(num protowire.Number, typ protowire.Type, v uint64, s string) {
		switch num {
		case fieldPvReqFileID:
			r.FileID = int32(v)
		case fieldPvReqRegionID:
			r.RegionID = int32(v)
		case fieldPvReqPreview:
			r.Preview = v != 0
		}
	})
	return r, err
}

// ComponentWire is one Gaussian component of a fitting request/response.
type ComponentWire struct {
	CenterX, CenterY float64
	Amplitude        float64
	FWHMX, FWHMY     float64
	PA               float64
}

func encodeComponent(c ComponentWire) []byte {
	var b []byte
	b = appendFixed64Field(b, 1, c.CenterX)
	b = appendFixed64Field(b, 2, c.CenterY)
	b = appendFixed64Field(b, 3, c.Amplitude)
	b = appendFixed64Field(b, 4, c.FWHMX)
	b = appendFixed64Field(b, 5, c.FWHMY)
	b = appendFixed64Field(b, 6, c.PA)
	return b
}

func decodeComponent(buf []byte) (ComponentWire, error) {
	var c ComponentWire
	err := walkAllFields(buf, func(num protowire.Number, typ protowire.Type, v uint64, f float64, bs []byte) {
		switch num {
		case 1:
			c.CenterX = f
		case 2:
			c.CenterY = f
		case 3:
			c.Amplitude = f
		case 4:
			c.FWHMX = f
		case 5:
			c.FWHMY = f
		case 6:
			c.PA = f
		}
	})
	return c, err
}

// FittingRequestWire asks the region handler to fit regionID's bounding
// box on fileID with the supplied initial Gaussian components.
type FittingRequestWire struct {
	FileID        int32
	RegionID      int32
	InitialValues []ComponentWire
	FixedParams   []bool
	Background    float64
	BeamArea      float64
}

const (
	fieldFitReqFileID        = 1
	fieldFitReqRegionID      = 2
	fieldFitReqInitialValues = 3
	fieldFitReqFixedParams   = 4
	fieldFitReqBackground    = 5
	fieldFitReqBeamArea      = 6
)

func EncodeFittingRequestWire(r FittingRequestWire) []byte {
	var b []byte
	b = appendVarintField(b, fieldFitReqFileID, uint64(r.FileID))
	b = appendVarintField(b, fieldFitReqRegionID, uint64(uint32(r.RegionID)))
	for _, c := range r.InitialValues {
		b = appendBytesField(b, fieldFitReqInitialValues, encodeComponent(c))
	}
	for _, fx := range r.FixedParams {
		b = appendBoolField(b, fieldFitReqFixedParams, fx)
	}
	b = appendFixed64Field(b, fieldFitReqBackground, r.Background)
	b = appendFixed64Field(b, fieldFitReqBeamArea, r.BeamArea)
	return b
}

func DecodeFittingRequestWire(buf []byte) (FittingRequestWire, error) {
	var r FittingRequestWire
	err := walkAllFields(buf, func(num protowire.Number, typ protowire.Type, v uint64, f float64, bs []byte) {
		switch num {
		case fieldFitReqFileID:
			r.FileID = int32(v)
		case fieldFitReqRegionID:
			r.RegionID = int32(v)
		case fieldFitReqInitialValues:
			if c, err := decodeComponent(bs); err == nil {
				r.InitialValues = append(r.InitialValues, c)
			}
		case fieldFitReqFixedParams:
			r.FixedParams = append(r.FixedParams, v != 0)
		case fieldFitReqBackground:
			r.Background = f
		case fieldFitReqBeamArea:
			r.BeamArea = f
		}
	})
	return r, err
}

// ImportRegionRequest asks the session to load a region file from disk
// and install its regions against fileID.
type ImportRegionRequest struct {
	FileID    int32
	Directory string
	File      string
	Format    int32
}

const (
	fieldImportReqFileID    = 1
	fieldImportReqDirectory = 2
	fieldImportReqFile      = 3
	fieldImportReqFormat    = 4
)

func EncodeImportRegionRequest(r ImportRegionRequest) []byte {
	var b []byte
	b = appendVarintField(b, fieldImportReqFileID, uint64(r.FileID))
	b = appendStringField(b, fieldImportReqDirectory, r.Directory)
	b = appendStringField(b, fieldImportReqFile, r.File)
	b = appendVarintField(b, fieldImportReqFormat, uint64(r.Format))
	return b
}

func DecodeImportRegionRequest(buf []byte) (ImportRegionRequest, error) {
	var r ImportRegionRequest
	err := walkStringFields(buf, func(num protowire.Number, v uint64, s string) {
		switch num {
		case fieldImportReqFileID:
			r.FileID = int32(v)
		case fieldImportReqDirectory:
			r.Directory = s
		case fieldImportReqFile:
			r.File = s
		case fieldImportReqFormat:
			r.Format = int32(v)
		}
	})
	return r, err
}

// ExportRegionRequest asks the session to write the given regions of
// fileID to a region file on disk.
type ExportRegionRequest struct {
	FileID    int32
	Directory string
	File      string
	Format    int32
	RegionIDs []int32
}

const (
	fieldExportReqFileID    = 1
	fieldExportReqDirectory = 2
	fieldExportReqFile      = 3
	fieldExportReqFormat    = 4
	fieldExportReqRegionIDs = 5
)

func EncodeExportRegionRequest(r ExportRegionRequest) []byte {
	var b []byte
	b = appendVarintField(b, fieldExportReqFileID, uint64(r.FileID))
	b = appendStringField(b, fieldExportReqDirectory, r.Directory)
	b = appendStringField(b, fieldExportReqFile, r.File)
	b = appendVarintField(b, fieldExportReqFormat, uint64(r.Format))
	for _, id := range r.RegionIDs {
		b = appendVarintField(b, fieldExportReqRegionIDs, uint64(uint32(id)))
	}
	return b
}

func DecodeExportRegionRequest(buf []byte) (ExportRegionRequest, error) {
	var r ExportRegionRequest
	err := walkStringFields(buf, func(num protowire.Number, v uint64, s string) {
		switch num {
		case fieldExportReqFileID:
			r.FileID = int32(v)
		case fieldExportReqDirectory:
			r.Directory = s
		case fieldExportReqFile:
			r.File = s
		case fieldExportReqFormat:
			r.Format = int32(v)
		case fieldExportReqRegionIDs:
			r.RegionIDs = append(r.RegionIDs, int32(v))
		}
	})
	return r, err
}

// SaveFileRequest asks the session to write fileID's current plane to
// disk under OutputFileDirectory, gated by read-only mode and
// internal/security path validation.
type SaveFileRequest struct {
	FileID              int32
	OutputFileDirectory string
	OutputFileName      string
}

const (
	fieldSaveReqFileID    = 1
	fieldSaveReqDirectory = 2
	fieldSaveReqFileName  = 3
)

func EncodeSaveFileRequest(r SaveFileRequest) []byte {
	var b []byte
	b = appendVarintField(b, fieldSaveReqFileID, uint64(r.FileID))
	b = appendStringField(b, fieldSaveReqDirectory, r.OutputFileDirectory)
	b = appendStringField(b, fieldSaveReqFileName, r.OutputFileName)
	return b
}

func DecodeSaveFileRequest(buf []byte) (SaveFileRequest, error) {
	var r SaveFileRequest
	err := walkStringFields(buf, func(num protowire.Number, v uint64, s string) {
		switch num {
		case fieldSaveReqFileID:
			r.FileID = int32(v)
		case fieldSaveReqDirectory:
			r.OutputFileDirectory = s
		case fieldSaveReqFileName:
			r.OutputFileName = s
		}
	})
	return r, err
}

// ScriptingRequestWire asks a session to run a named action on behalf
// of an external controller. SessionID addresses the target session
// for internal/scripting's gRPC bridge and is left empty (and ignored)
// when the request is pushed straight down a session's own websocket.
type ScriptingRequestWire struct {
	SessionID  string
	Target     string
	Parameters []string
	Async      bool
}

const (
	fieldScriptReqSessionID  = 1
	fieldScriptReqTarget     = 2
	fieldScriptReqParameters = 3
	fieldScriptReqAsync      = 4
)

func EncodeScriptingRequestWire(r ScriptingRequestWire) []byte {
	var b []byte
	b = appendStringField(b, fieldScriptReqSessionID, r.SessionID)
	b = appendStringField(b, fieldScriptReqTarget, r.Target)
	for _, p := range r.Parameters {
		b = appendStringField(b, fieldScriptReqParameters, p)
	}
	b = appendBoolField(b, fieldScriptReqAsync, r.Async)
	return b
}

func DecodeScriptingRequestWire(buf []byte) (ScriptingRequestWire, error) {
	var r ScriptingRequestWire
	err := walkStringFields(buf, func(num protowire.Number, v uint64, s string) {
		switch num {
		case fieldScriptReqSessionID:
			r.SessionID = s
		case fieldScriptReqTarget:
			r.Target = s
		case fieldScriptReqParameters:
			r.Parameters = append(r.Parameters, s)
		case fieldScriptReqAsync:
			r.Async = v != 0
		}
	})
	return r, err
}

// ScriptingResponseWire answers a ScriptingRequestWire, either pushed
// back from a connected client over the websocket or returned directly
// from the session to internal/scripting's gRPC bridge.
type ScriptingResponseWire struct {
	Success      bool
	Message      string
	ResponseData []byte
}

const (
	fieldScriptRespSuccess      = 1
	fieldScriptRespMessage      = 2
	fieldScriptRespResponseData = 3
)

func EncodeScriptingResponseWire(r ScriptingResponseWire) []byte {
	var b []byte
	b = appendBoolField(b, fieldScriptRespSuccess, r.Success)
	b = appendStringField(b, fieldScriptRespMessage, r.Message)
	b = appendBytesField(b, fieldScriptRespResponseData, r.ResponseData)
	return b
}

func DecodeScriptingResponseWire(buf []byte) (ScriptingResponseWire, error) {
	var r ScriptingResponseWire
	err := walkAllFields(buf, func(num protowire.Number, typ protowire.Type, v uint64, f float64, bs []byte) {
		switch num {
		case fieldScriptRespSuccess:
			r.Success = v != 0
		case fieldScriptRespMessage:
			r.Message = string(bs)
		case fieldScriptRespResponseData:
			r.ResponseData = bs
		}
	})
	return r, err
}
