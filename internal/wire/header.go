// Package wire implements the 8-byte frame header, event type enumeration,
// error kinds and protobuf-wire-compatible message encodings exchanged
// between a session and its client.
package wire

import "encoding/binary"

// ICDVersion is the protocol version this server implements; a client
// handshake whose header carries a different value is rejected.
const ICDVersion uint16 = 28

// HeaderSize is the fixed byte length of every frame header.
const HeaderSize = 8

// Header is the 8-byte prefix of every frame: event type, ICD version,
// and a request id echoed back in correlated responses.
type Header struct {
	Type       EventType
	ICDVersion uint16
	RequestID  uint32
}

// EncodeHeader writes h into an 8-byte big-endian buffer.
func EncodeHeader(h Header) []byte {
	buf := make([]byte, HeaderSize)
	binary.BigEndian.PutUint16(buf[0:2], uint16(h.Type))
	binary.BigEndian.PutUint16(buf[2:4], h.ICDVersion)
	binary.BigEndian.PutUint32(buf[4:8], h.RequestID)
	return buf
}

// DecodeHeader parses the first HeaderSize bytes of buf. ok is false if
// buf is short or the ICD version does not match this server's.
func DecodeHeader(buf []byte) (h Header, ok bool) {
	if len(buf) < HeaderSize {
		return Header{}, false
	}
	h = Header{
		Type:       EventType(binary.BigEndian.Uint16(buf[0:2])),
		ICDVersion: binary.BigEndian.Uint16(buf[2:4]),
		RequestID:  binary.BigEndian.Uint32(buf[4:8]),
	}
	if h.ICDVersion != ICDVersion {
		return h, false
	}
	return h, true
}

// EventType enumerates the wire events the core's session dispatcher
// handles. Values are stable across client/server builds that share an
// ICDVersion.
type EventType uint16

const (
	EventRegisterViewer EventType = iota + 1
	EventRegisterViewerAck
	EventOpenFile
	EventOpenFileAck
	EventCloseFile
	EventSetImageChannels
	EventRasterTileSync
	EventRasterTileData
	EventAddRequiredTiles
	EventContourImageData
	EventSetCursor
	EventSpatialProfileData
	EventSpectralProfileData
	EventSetRegion
	EventSetRegionAck
	EventRemoveRegion
	EventSetHistogramRequirements
	EventSetSpectralRequirements
	EventSetStatsRequirements
	EventSetSpatialRequirements
	EventRegionHistogramData
	EventRegionStatsData
	EventSetContourParameters
	EventStartAnimation
	EventStartAnimationAck
	EventStopAnimation
	EventAnimationFlowControl
	EventMomentRequest
	EventMomentProgress
	EventMomentResponse
	EventPvRequest
	EventPvProgress
	EventPvResponse
	EventPvPreviewData
	EventFittingRequest
	EventFittingProgress
	EventFittingResponse
	EventScriptingRequest
	EventScriptingResponse
	EventImportRegion
	EventImportRegionAck
	EventExportRegion
	EventExportRegionAck
	EventSaveFile
	EventSaveFileAck
	EventErrorData
)
