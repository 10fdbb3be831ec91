package wire

import (
	"encoding/binary"
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// RasterTileSync brackets a burst of RasterTileData messages for one
// (channel, stokes, animation_id) tuple, so a client can discard tiles
// that arrive after the channel/stokes it cares about has moved on.
type RasterTileSync struct {
	FileID      int32
	Channel     int32
	Stokes      int32
	AnimationID uint32
	EndSync     bool
	TileCount   int32
}

const (
	fieldSyncFileID      = 1
	fieldSyncChannel     = 2
	fieldSyncStokes      = 3
	fieldSyncAnimationID = 4
	fieldSyncEnd         = 5
	fieldSyncTileCount   = 6
)

func EncodeRasterTileSync(s RasterTileSync) []byte {
	var b []byte
	b = appendVarintField(b, fieldSyncFileID, uint64(s.FileID))
	b = appendVarintField(b, fieldSyncChannel, uint64(s.Channel))
	b = appendVarintField(b, fieldSyncStokes, uint64(s.Stokes))
	b = appendVarintField(b, fieldSyncAnimationID, uint64(s.AnimationID))
	b = appendBoolField(b, fieldSyncEnd, s.EndSync)
	b = appendVarintField(b, fieldSyncTileCount, uint64(s.TileCount))
	return b
}

func DecodeRasterTileSync(buf []byte) (RasterTileSync, error) {
	var s RasterTileSync
	return s, walkFields(buf, func(num protowire.Number, typ protowire.Type, v uint64, str string) {
		switch num {
		case fieldSyncFileID:
			s.FileID = int32(v)
		case fieldSyncChannel:
			s.Channel = int32(v)
		case fieldSyncStokes:
			s.Stokes = int32(v)
		case fieldSyncAnimationID:
			s.AnimationID = uint32(v)
		case fieldSyncEnd:
			s.EndSync = v != 0
		case fieldSyncTileCount:
			s.TileCount = int32(v)
		}
	})
}

// RasterTileData is one compressed tile within a burst.
type RasterTileData struct {
	FileID      int32
	Channel     int32
	Stokes      int32
	AnimationID uint32
	X, Y, Layer int32
	Width       int32
	Height      int32
	ImageData   []byte
	NaNEncoding []byte
}

const (
	fieldTileFileID      = 1
	fieldTileChannel     = 2
	fieldTileStokes      = 3
	fieldTileAnimationID = 4
	fieldTileX           = 5
	fieldTileY           = 6
	fieldTileLayer       = 7
	fieldTileWidth       = 8
	fieldTileHeight      = 9
	fieldTileImageData   = 10
	fieldTileNaNEncoding = 11
)

func EncodeRasterTileData(d RasterTileData) []byte {
	var b []byte
	b = appendVarintField(b, fieldTileFileID, uint64(d.FileID))
	b = appendVarintField(b, fieldTileChannel, uint64(d.Channel))
	b = appendVarintField(b, fieldTileStokes, uint64(d.Stokes))
	b = appendVarintField(b, fieldTileAnimationID, uint64(d.AnimationID))
	b = appendVarintField(b, fieldTileX, uint64(d.X))
	b = appendVarintField(b, fieldTileY, uint64(d.Y))
	b = appendVarintField(b, fieldTileLayer, uint64(d.Layer))
	b = appendVarintField(b, fieldTileWidth, uint64(d.Width))
	b = appendVarintField(b, fieldTileHeight, uint64(d.Height))
	b = appendBytesField(b, fieldTileImageData, d.ImageData)
	b = appendBytesField(b, fieldTileNaNEncoding, d.NaNEncoding)
	return b
}

func DecodeRasterTileData(buf []byte) (RasterTileData, error) {
	var d RasterTileData
	return d, walkBytesFields(buf, func(num protowire.Number, v uint64, bs []byte) {
		switch num {
		case fieldTileFileID:
			d.FileID = int32(v)
		case fieldTileChannel:
			d.Channel = int32(v)
		case fieldTileStokes:
			d.Stokes = int32(v)
		case fieldTileAnimationID:
			d.AnimationID = uint32(v)
		case fieldTileX:
			d.X = int32(v)
		case fieldTileY:
			d.Y = int32(v)
		case fieldTileLayer:
			d.Layer = int32(v)
		case fieldTileWidth:
			d.Width = int32(v)
		case fieldTileHeight:
			d.Height = int32(v)
		case fieldTileImageData:
			d.ImageData = bs
		case fieldTileNaNEncoding:
			d.NaNEncoding = bs
		}
	})
}

// OpenFileAck answers OPEN_FILE with the file's computed HDU/shape info
// (the body of §6's OPEN_FILE_ACK, populated from internal/fileinfo).
type OpenFileAck struct {
	Success   bool
	Message   string
	FileID    int32
	HDU       string
	Width     int32
	Height    int32
	Depth     int32
	NumStokes int32
}

const (
	fieldOpenSuccess   = 1
	fieldOpenMessage   = 2
	fieldOpenFileID    = 3
	fieldOpenHDU       = 4
	fieldOpenWidth     = 5
	fieldOpenHeight    = 6
	fieldOpenDepth     = 7
	fieldOpenNumStokes = 8
)

func EncodeOpenFileAck(a OpenFileAck) []byte {
	var b []byte
	b = appendBoolField(b, fieldOpenSuccess, a.Success)
	b = appendStringField(b, fieldOpenMessage, a.Message)
	b = appendVarintField(b, fieldOpenFileID, uint64(a.FileID))
	b = appendStringField(b, fieldOpenHDU, a.HDU)
	b = appendVarintField(b, fieldOpenWidth, uint64(a.Width))
	b = appendVarintField(b, fieldOpenHeight, uint64(a.Height))
	b = appendVarintField(b, fieldOpenDepth, uint64(a.Depth))
	b = appendVarintField(b, fieldOpenNumStokes, uint64(a.NumStokes))
	return b
}

func DecodeOpenFileAck(buf []byte) (OpenFileAck, error) {
	var a OpenFileAck
	return a, walkStringFields(buf, func(num protowire.Number, v uint64, s string) {
		switch num {
		case fieldOpenSuccess:
			a.Success = v != 0
		case fieldOpenMessage:
			a.Message = s
		case fieldOpenFileID:
			a.FileID = int32(v)
		case fieldOpenHDU:
			a.HDU = s
		case fieldOpenWidth:
			a.Width = int32(v)
		case fieldOpenHeight:
			a.Height = int32(v)
		case fieldOpenDepth:
			a.Depth = int32(v)
		case fieldOpenNumStokes:
			a.NumStokes = int32(v)
		}
	})
}

// RegionHistogramData carries one computed (or loader-sourced) histogram
// for a file/region/channel/stokes tuple.
type RegionHistogramData struct {
	FileID   int32
	RegionID int32
	Stokes   int32
	Channel  int32
	Progress float64
	NumBins  int32
	Min, Max float64
	BinWidth float64
	Counts   []int64
}

const (
	fieldHistFileID   = 1
	fieldHistRegionID = 2
	fieldHistStokes   = 3
	fieldHistChannel  = 4
	fieldHistProgress = 5
	fieldHistNumBins  = 6
	fieldHistMin      = 7
	fieldHistMax      = 8
	fieldHistBinWidth = 9
	fieldHistCounts   = 10
)

func EncodeRegionHistogramData(h RegionHistogramData) []byte {
	var b []byte
	b = appendVarintField(b, fieldHistFileID, uint64(h.FileID))
	b = appendVarintField(b, fieldHistRegionID, uint64(h.RegionID))
	b = appendVarintField(b, fieldHistStokes, uint64(h.Stokes))
	b = appendVarintField(b, fieldHistChannel, uint64(h.Channel))
	b = appendFixed64Field(b, fieldHistProgress, h.Progress)
	b = appendVarintField(b, fieldHistNumBins, uint64(h.NumBins))
	b = appendFixed64Field(b, fieldHistMin, h.Min)
	b = appendFixed64Field(b, fieldHistMax, h.Max)
	b = appendFixed64Field(b, fieldHistBinWidth, h.BinWidth)
	for _, c := range h.Counts {
		b = appendVarintField(b, fieldHistCounts, uint64(c))
	}
	return b
}

func DecodeRegionHistogramData(buf []byte) (RegionHistogramData, error) {
	var h RegionHistogramData
	err := walkAllFields(buf, func(num protowire.Number, typ protowire.Type, v uint64, f float64, bs []byte) {
		switch num {
		case fieldHistFileID:
			h.FileID = int32(v)
		case fieldHistRegionID:
			h.RegionID = int32(v)
		case fieldHistStokes:
			h.Stokes = int32(v)
		case fieldHistChannel:
			h.Channel = int32(v)
		case fieldHistProgress:
			h.Progress = f
		case fieldHistNumBins:
			h.NumBins = int32(v)
		case fieldHistMin:
			h.Min = f
		case fieldHistMax:
			h.Max = f
		case fieldHistBinWidth:
			h.BinWidth = f
		case fieldHistCounts:
			h.Counts = append(h.Counts, int64(v))
		}
	})
	return h, err
}

// SetRegionAck answers SET_REGION with the region id the server
// assigned or updated, per spec.md scenario #5.
type SetRegionAck struct {
	Success  bool
	Message  string
	RegionID int32
}

const (
	fieldRegionAckSuccess  = 1
	fieldRegionAckMessage  = 2
	fieldRegionAckRegionID = 3
)

func EncodeSetRegionAck(a SetRegionAck) []byte {
	var b []byte
	b = appendBoolField(b, fieldRegionAckSuccess, a.Success)
	b = appendStringField(b, fieldRegionAckMessage, a.Message)
	b = appendVarintField(b, fieldRegionAckRegionID, uint64(a.RegionID))
	return b
}

func DecodeSetRegionAck(buf []byte) (SetRegionAck, error) {
	var a SetRegionAck
	return a, walkStringFields(buf, func(num protowire.Number, v uint64, s string) {
		switch num {
		case fieldRegionAckSuccess:
			a.Success = v != 0
		case fieldRegionAckMessage:
			a.Message = s
		case fieldRegionAckRegionID:
			a.RegionID = int32(v)
		}
	})
}

// ContourImageData is one (level, chunk) piece of a contour pass over
// fileID, matching Frame.ContourImage's ContourChunk callback shape.
type ContourImageData struct {
	FileID   int32
	Progress float64
	Level    float64
	Vertices []float32
	Indices  []int32
}

const (
	fieldContourFileID   = 1
	fieldContourProgress = 2
	fieldContourLevel    = 3
	fieldContourVertices = 4
	fieldContourIndices  = 5
)

func EncodeContourImageData(d ContourImageData) []byte {
	var b []byte
	b = appendVarintField(b, fieldContourFileID, uint64(d.FileID))
	b = appendFixed64Field(b, fieldContourProgress, d.Progress)
	b = appendFixed64Field(b, fieldContourLevel, d.Level)
	vb := make([]byte, 4*len(d.Vertices))
	for i, v := range d.Vertices {
		binary.BigEndian.PutUint32(vb[i*4:], math.Float32bits(v))
	}
	b = appendBytesField(b, fieldContourVertices, vb)
	ib := make([]byte, 4*len(d.Indices))
	for i, v := range d.Indices {
		binary.BigEndian.PutUint32(ib[i*4:], uint32(v))
	}
	b = appendBytesField(b, fieldContourIndices, ib)
	return b
}

func DecodeContourImageData(buf []byte) (ContourImageData, error) {
	var d ContourImageData
	err := walkAllFields(buf, func(num protowire.Number, typ protowire.Type, v uint64, f float64, bs []byte) {
		switch num {
		case fieldContourFileID:
			d.FileID = int32(v)
		case fieldContourProgress:
			d.Progress = f
		case fieldContourLevel:
			d.Level = f
		case fieldContourVertices:
			d.Vertices = make([]float32, len(bs)/4)
			for i := range d.Vertices {
				d.Vertices[i] = math.Float32frombits(binary.BigEndian.Uint32(bs[i*4:]))
			}
		case fieldContourIndices:
			d.Indices = make([]int32, len(bs)/4)
			for i := range d.Indices {
				d.Indices[i] = int32(binary.BigEndian.Uint32(bs[i*4:]))
			}
		}
	})
	return d, err
}

// SpatialProfileWire is one coordinate's slice of a
// SpatialProfileData message.
type SpatialProfileWire struct {
	Coordinate string
	Start, End int32
	Values     []float64
}

func encodeSpatialProfile(p SpatialProfileWire) []byte {
	var b []byte
	b = appendStringField(b, 1, p.Coordinate)
	b = appendVarintField(b, 2, uint64(uint32(p.Start)))
	b = appendVarintField(b, 3, uint64(uint32(p.End)))
	for _, v := range p.Values {
		b = appendFixed64Field(b, 4, v)
	}
	return b
}

func decodeSpatialProfile(buf []byte) (SpatialProfileWire, error) {
	var p SpatialProfileWire
	err := walkAllFields(buf, func(num protowire.Number, typ protowire.Type, v uint64, f float64, bs []byte) {
		switch num {
		case 1:
			p.Coordinate = string(bs)
		case 2:
			p.Start = int32(v)
		case 3:
			p.End = int32(v)
		case 4:
			p.Values = append(p.Values, f)
		}
	})
	return p, err
}

// SpatialProfileData carries one or more coordinate cuts through
// (X, Y) for FileID/RegionID.
type SpatialProfileData struct {
	FileID   int32
	RegionID int32
	X, Y     int32
	Profiles []SpatialProfileWire
}

const (
	fieldSpatialDataFileID   = 1
	fieldSpatialDataRegionID = 2
	fieldSpatialDataX        = 3
	fieldSpatialDataY        = 4
	fieldSpatialDataProfiles = 5
)

func EncodeSpatialProfileData(d SpatialProfileData) []byte {
	var b []byte
	b = appendVarintField(b, fieldSpatialDataFileID, uint64(d.FileID))
	b = appendVarintField(b, fieldSpatialDataRegionID, uint64(uint32(d.RegionID)))
	b = appendVarintField(b, fieldSpatialDataX, uint64(d.X))
	b = appendVarintField(b, fieldSpatialDataY, uint64(d.Y))
	for _, p := range d.Profiles {
		b = appendBytesField(b, fieldSpatialDataProfiles, encodeSpatialProfile(p))
	}
	return b
}

func DecodeSpatialProfileData(buf []byte) (SpatialProfileData, error) {
	var d SpatialProfileData
	err := walkBytesFields(buf, func(num protowire.Number, v uint64, bs []byte) {
		switch num {
		case fieldSpatialDataFileID:
			d.FileID = int32(v)
		case fieldSpatialDataRegionID:
			d.RegionID = int32(v)
		case fieldSpatialDataX:
			d.X = int32(v)
		case fieldSpatialDataY:
			d.Y = int32(v)
		case fieldSpatialDataProfiles:
			if p, err := decodeSpatialProfile(bs); err == nil {
				d.Profiles = append(d.Profiles, p)
			}
		}
	})
	return d, err
}

// SpectralProfileData streams one progress-tagged chunk of a spectral
// profile for FileID/RegionID at the current cursor/region.
type SpectralProfileData struct {
	FileID   int32
	RegionID int32
	Stokes   int32
	Progress float64
	Values   []float64
}

const (
	fieldSpecDataFileID   = 1
	fieldSpecDataRegionID = 2
	fieldSpecDataStokes   = 3
	fieldSpecDataProgress = 4
	fieldSpecDataValues   = 5
)

func EncodeSpectralProfileData(d SpectralProfileData) []byte {
	var b []byte
	b = appendVarintField(b, fieldSpecDataFileID, uint64(d.FileID))
	b = appendVarintField(b, fieldSpecDataRegionID, uint64(uint32(d.RegionID)))
	b = appendVarintField(b, fieldSpecDataStokes, uint64(d.Stokes))
	b = appendFixed64Field(b, fieldSpecDataProgress, d.Progress)
	for _, v := range d.Values {
		b = appendFixed64Field(b, fieldSpecDataValues, v)
	}
	return b
}

func DecodeSpectralProfileData(buf []byte) (SpectralProfileData, error) {
	var d SpectralProfileData
	err := walkAllFields(buf, func(num protowire.Number, typ protowire.Type, v uint64, f float64, bs []byte) {
		switch num {
		case fieldSpecDataFileID:
			d.FileID = int32(v)
		case fieldSpecDataRegionID:
			d.RegionID = int32(v)
		case fieldSpecDataStokes:
			d.Stokes = int32(v)
		case fieldSpecDataProgress:
			d.Progress = f
		case fieldSpecDataValues:
			d.Values = append(d.Values, f)
		}
	})
	return d, err
}

// RegionStatsData carries one basic-stats summary for FileID/RegionID as
// parallel (name, value) arrays, matching stats.BasicStats's field set.
type RegionStatsData struct {
	FileID   int32
	RegionID int32
	Names    []string
	Values   []float64
}

const (
	fieldStatsDataFileID   = 1
	fieldStatsDataRegionID = 2
	fieldStatsDataNames    = 3
	fieldStatsDataValues   = 4
)

func EncodeRegionStatsData(d RegionStatsData) []byte {
	var b []byte
	b = appendVarintField(b, fieldStatsDataFileID, uint64(d.FileID))
	b = appendVarintField(b, fieldStatsDataRegionID, uint64(uint32(d.RegionID)))
	for _, n := range d.Names {
		b = appendStringField(b, fieldStatsDataNames, n)
	}
	for _, v := range d.Values {
		b = appendFixed64Field(b, fieldStatsDataValues, v)
	}
	return b
}

func DecodeRegionStatsData(buf []byte) (RegionStatsData, error) {
	var d RegionStatsData
	err := walkAllFields(buf, func(num protowire.Number, typ protowire.Type, v uint64, f float64, bs []byte) {
		switch num {
		case fieldStatsDataFileID:
			d.FileID = int32(v)
		case fieldStatsDataRegionID:
			d.RegionID = int32(v)
		case fieldStatsDataNames:
			d.Names = append(d.Names, string(bs))
		case fieldStatsDataValues:
			d.Values = append(d.Values, f)
		}
	})
	return d, err
}

// MomentProgressWire reports fractional progress of an in-flight moment
// calculation.
type MomentProgressWire struct {
	FileID   int32
	Progress float64
}

const (
	fieldMomProgFileID   = 1
	fieldMomProgProgress = 2
)

func EncodeMomentProgressWire(p MomentProgressWire) []byte {
	var b []byte
	b = appendVarintField(b, fieldMomProgFileID, uint64(p.FileID))
	b = appendFixed64Field(b, fieldMomProgProgress, p.Progress)
	return b
}

func DecodeMomentProgressWire(buf []byte) (MomentProgressWire, error) {
	var p MomentProgressWire
	err := walkAllFields(buf, func(num protowire.Number, typ protowire.Type, v uint64, f float64, bs []byte) {
		switch num {
		case fieldMomProgFileID:
			p.FileID = int32(v)
		case fieldMomProgProgress:
			p.Progress = f
		}
	})
	return p, err
}

// MomentResultWire is one generated moment image.
type MomentResultWire struct {
	Moment        int32
	Width, Height int32
	Data          []float64
	Name          string
}

func encodeMomentResult(r MomentResultWire) []byte {
	var b []byte
	b = appendVarintField(b, 1, uint64(r.Moment))
	b = appendVarintField(b, 2, uint64(r.Width))
	b = appendVarintField(b, 3, uint64(r.Height))
	for _, v := range r.Data {
		b = appendFixed64Field(b, 4, v)
	}
	b = appendStringField(b, 5, r.Name)
	return b
}

func decodeMomentResult(buf []byte) (MomentResultWire, error) {
	var r MomentResultWire
	err := walkAllFields(buf, func(num protowire.Number, typ protowire.Type, v uint64, f float64, bs []byte) {
		switch num {
		case 1:
			r.Moment = int32(v)
		case 2:
			r.Width = int32(v)
		case 3:
			r.Height = int32(v)
		case 4:
			r.Data = append(r.Data, f)
		case 5:
			r.Name = string(bs)
		}
	})
	return r, err
}

// MomentResponseWire answers a MomentRequestWire with every generated
// moment image.
type MomentResponseWire struct {
	FileID  int32
	Success bool
	Message string
	Results []MomentResultWire
}

const (
	fieldMomRespFileID  = 1
	fieldMomRespSuccess = 2
	fieldMomRespMessage = 3
	fieldMomRespResults = 4
)

func EncodeMomentResponseWire(r MomentResponseWire) []byte {
	var b []byte
	b = appendVarintField(b, fieldMomRespFileID, uint64(r.FileID))
	b = appendBoolField(b, fieldMomRespSuccess, r.Success)
	b = appendStringField(b, fieldMomRespMessage, r.Message)
	for _, res := range r.Results {
		b = appendBytesField(b, fieldMomRespResults, encodeMomentResult(res))
	}
	return b
}

func DecodeMomentResponseWire(buf []byte) (MomentResponseWire, error) {
	var r MomentResponseWire
	err := walkBytesFields(buf, func(num protowire.Number, v uint64, bs []byte) {
		switch num {
		case fieldMomRespFileID:
			r.FileID = int32(v)
		case fieldMomRespSuccess:
			r.Success = v != 0
		case fieldMomRespMessage:
			r.Message = string(bs)
		case fieldMomRespResults:
			if res, err := decodeMomentResult(bs); err == nil {
				r.Results = append(r.Results, res)
			}
		}
	})
	return r, err
}

// PvProgressWire reports fractional progress of an in-flight PV
// computation.
type PvProgressWire struct {
	FileID   int32
	Progress float64
}

const (
	fieldPvProgFileID   = 1
	fieldPvProgProgress = 2
)

func EncodePvProgressWire(p PvProgressWire) []byte {
	var b []byte
	b = appendVarintField(b, fieldPvProgFileID, uint64(p.FileID))
	b = appendFixed64Field(b, fieldPvProgProgress, p.Progress)
	return b
}

func DecodePvProgressWire(buf []byte) (PvProgressWire, error) {
	var p PvProgressWire
	err := walkAllFields(buf, func(num protowire.Number, typ protowire.Type, v uint64, f float64, bs []byte) {
		switch num {
		case fieldPvProgFileID:
			p.FileID = int32(v)
		case fieldPvProgProgress:
			p.Progress = f
		}
	})
	return p, err
}

// pvResponseAndPreview is the shared body shape of PvResponseWire and
// PvPreviewDataWire: a position-velocity image plus its origin region.
type pvImageWire struct {
	FileID, RegionID int32
	Width, Height    int32
	Data             []float64
}

func encodePvImage(p pvImageWire) []byte {
	var b []byte
	b = appendVarintField(b, 1, uint64(p.FileID))
	b = appendVarintField(b, 2, uint64(uint32(p.RegionID)))
	b = appendVarintField(b, 3, uint64(p.Width))
	b = appendVarintField(b, 4, uint64(p.Height))
	for _, v := range p.Data {
		b = appendFixed64Field(b, 5, v)
	}
	return b
}

func decodePvImage(buf []byte) (pvImageWire, error) {
	var p pvImageWire
	err := walkAllFields(buf, func(num protowire.Number, typ protowire.Type, v uint64, f float64, bs []byte) {
		switch num {
		case 1:
			p.FileID = int32(v)
		case 2:
			p.RegionID = int32(v)
		case 3:
			p.Width = int32(v)
		case 4:
			p.Height = int32(v)
		case 5:
			p.Data = append(p.Data, f)
		}
	})
	return p, err
}

// PvResponseWire answers a non-preview PvRequestWire.
type PvResponseWire struct {
	FileID, RegionID int32
	Success          bool
	Message          string
	Width, Height    int32
	Data             []float64
}

const (
	fieldPvRespSuccess = 6
	fieldPvRespMessage = 7
)

func EncodePvResponseWire(r PvResponseWire) []byte {
	b := encodePvImage(pvImageWire{FileID: r.FileID, RegionID: r.RegionID, Width: r.Width, Height: r.Height, Data: r.Data})
	b = appendBoolField(b, fieldPvRespSuccess, r.Success)
	b = appendStringField(b, fieldPvRespMessage, r.Message)
	return b
}

func DecodePvResponseWire(buf []byte) (PvResponseWire, error) {
	img, err := decodePvImage(buf)
	r := PvResponseWire{FileID: img.FileID, RegionID: img.RegionID, Width: img.Width, Height: img.Height, Data: img.Data}
	if err != nil {
		return r, err
	}
	return r, walkStringFields(buf, func(num protowire.Number, v uint64, s string) {
		switch num {
		case fieldPvRespSuccess:
			r.Success = v != 0
		case fieldPvRespMessage:
			r.Message = s
		}
	})
}

// PvPreviewDataWire streams a throttled PV preview image for a line
// region, refreshed at most once per region move.
type PvPreviewDataWire struct {
	FileID, RegionID int32
	Width, Height    int32
	Data             []float64
}

func EncodePvPreviewDataWire(d PvPreviewDataWire) []byte {
	return encodePvImage(pvImageWire{FileID: d.FileID, RegionID: d.RegionID, Width: d.Width, Height: d.Height, Data: d.Data})
}

func DecodePvPreviewDataWire(buf []byte) (PvPreviewDataWire, error) {
	img, err := decodePvImage(buf)
	return PvPreviewDataWire{FileID: img.FileID, RegionID: img.RegionID, Width: img.Width, Height: img.Height, Data: img.Data}, err
}

// FittingProgressWire reports fractional progress of an in-flight fit.
type FittingProgressWire struct {
	FileID   int32
	Progress float64
}

const (
	fieldFitProgFileID   = 1
	fieldFitProgProgress = 2
)

func EncodeFittingProgressWire(p FittingProgressWire) []byte {
	var b []byte
	b = appendVarintField(b, fieldFitProgFileID, uint64(p.FileID))
	b = appendFixed64Field(b, fieldFitProgProgress, p.Progress)
	return b
}

func DecodeFittingProgressWire(buf []byte) (FittingProgressWire, error) {
	var p FittingProgressWire
	err := walkAllFields(buf, func(num protowire.Number, typ protowire.Type, v uint64, f float64, bs []byte) {
		switch num {
		case fieldFitProgFileID:
			p.FileID = int32(v)
		case fieldFitProgProgress:
			p.Progress = f
		}
	})
	return p, err
}

// FittingResponseWire answers a FittingRequestWire with the converged
// components and iteration count.
type FittingResponseWire struct {
	FileID     int32
	Success    bool
	Message    string
	Components []ComponentWire
	Background float64
	NumIter    int32
}

const (
	fieldFitRespFileID     = 1
	fieldFitRespSuccess    = 2
	fieldFitRespMessage    = 3
	fieldFitRespComponents = 4
	fieldFitRespBackground = 5
	fieldFitRespNumIter    = 6
)

func EncodeFittingResponseWire(r FittingResponseWire) []byte {
	var b []byte
	b = appendVarintField(b, fieldFitRespFileID, uint64(r.FileID))
	b = appendBoolField(b, fieldFitRespSuccess, r.Success)
	b = appendStringField(b, fieldFitRespMessage, r.Message)
	for _, c := range r.Components {
		b = appendBytesField(b, fieldFitRespComponents, encodeComponent(c))
	}
	b = appendFixed64Field(b, fieldFitRespBackground, r.Background)
	b = appendVarintField(b, fieldFitRespNumIter, uint64(r.NumIter))
	return b
}

func DecodeFittingResponseWire(buf []byte) (FittingResponseWire, error) {
	var r FittingResponseWire
	err := walkAllFields(buf, func(num protowire.Number, typ protowire.Type, v uint64, f float64, bs []byte) {
		switch num {
		case fieldFitRespFileID:
			r.FileID = int32(v)
		case fieldFitRespSuccess:
			r.Success = v != 0
		case fieldFitRespMessage:
			r.Message = string(bs)
		case fieldFitRespComponents:
			if c, err := decodeComponent(bs); err == nil {
				r.Components = append(r.Components, c)
			}
		case fieldFitRespBackground:
			r.Background = f
		case fieldFitRespNumIter:
			r.NumIter = int32(v)
		}
	})
	return r, err
}

// ImportExportRegionAck is the shared ack shape for IMPORT_REGION and
// EXPORT_REGION.
type ImportExportRegionAck struct {
	Success   bool
	Message   string
	FileID    int32
	RegionIDs []int32
}

const (
	fieldRegionIOAckSuccess   = 1
	fieldRegionIOAckMessage   = 2
	fieldRegionIOAckFileID    = 3
	fieldRegionIOAckRegionIDs = 4
)

func EncodeImportExportRegionAck(a ImportExportRegionAck) []byte {
	var b []byte
	b = appendBoolField(b, fieldRegionIOAckSuccess, a.Success)
	b = appendStringField(b, fieldRegionIOAckMessage, a.Message)
	b = appendVarintField(b, fieldRegionIOAckFileID, uint64(a.FileID))
	for _, id := range a.RegionIDs {
		b = appendVarintField(b, fieldRegionIOAckRegionIDs, uint64(uint32(id)))
	}
	return b
}

func DecodeImportExportRegionAck(buf []byte) (ImportExportRegionAck, error) {
	var a ImportExportRegionAck
	err := walkFields(buf, func(num protowire.Number, typ protowire.Type, v uint64, s string) {
		switch num {
		case fieldRegionIOAckSuccess:
			a.Success = v != 0
		case fieldRegionIOAckMessage:
			a.Message = s
		case fieldRegionIOAckFileID:
			a.FileID = int32(v)
		case fieldRegionIOAckRegionIDs:
			a.RegionIDs = append(a.RegionIDs, int32(v))
		}
	})
	return a, err
}

// SaveFileAck answers a SaveFileRequest.
type SaveFileAck struct {
	FileID  int32
	Success bool
	Message string
}

const (
	fieldSaveAckFileID  = 1
	fieldSaveAckSuccess = 2
	fieldSaveAckMessage = 3
)

func EncodeSaveFileAck(a SaveFileAck) []byte {
	var b []byte
	b = appendVarintField(b, fieldSaveAckFileID, uint64(a.FileID))
	b = appendBoolField(b, fieldSaveAckSuccess, a.Success)
	b = appendStringField(b, fieldSaveAckMessage, a.Message)
	return b
}

func DecodeSaveFileAck(buf []byte) (SaveFileAck, error) {
	var a SaveFileAck
	return a, walkStringFields(buf, func(num protowire.Number, v uint64, s string) {
		switch num {
		case fieldSaveAckFileID:
			a.FileID = int32(v)
		case fieldSaveAckSuccess:
			a.Success = v != 0
		case fieldSaveAckMessage:
			a.Message = s
		}
	})
}
