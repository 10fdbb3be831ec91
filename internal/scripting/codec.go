// Package scripting implements SPEC_FULL.md's async external-control
// bridge behind SCRIPTING_REQUEST/SCRIPTING_RESPONSE (spec.md §6): a
// small gRPC service that lets an external controller ask a connected
// session to run a named action and wait for the client's answer, the
// same asynchronous request/response shape
// src/Session/Session.cc's SendScriptingRequest/OnScriptingResponse and
// its _scripting_callbacks table give the original server. Messages are
// carried with internal/wire's protowire-based ScriptingRequestWire/
// ScriptingResponseWire through a custom grpc encoding.Codec rather
// than protoc-generated types, so this stays a plain Go package with no
// .proto build step.
package scripting

import (
	"fmt"

	"google.golang.org/grpc/encoding"

	"github.com/CARTAvis/carta-backend-sub003/internal/wire"
)

// CodecName is the gRPC content-subtype a client must request (via
// grpc.CallContentSubtype) to have its messages marshalled with
// internal/wire instead of the default protobuf codec.
const CodecName = "cartawire"

func init() {
	encoding.RegisterCodec(wireCodec{})
}

// wireCodec adapts internal/wire's ScriptingRequestWire/
// ScriptingResponseWire encoders to grpc's encoding.Codec interface.
type wireCodec struct{}

func (wireCodec) Name() string { return CodecName }

func (wireCodec) Marshal(v any) ([]byte, error) {
	switch m := v.(type) {
	case *wire.ScriptingRequestWire:
		return wire.EncodeScriptingRequestWire(*m), nil
	case *wire.ScriptingResponseWire:
		return wire.EncodeScriptingResponseWire(*m), nil
	default:
		return nil, fmt.Errorf("scripting: codec cannot marshal %T", v)
	}
}

func (wireCodec) Unmarshal(data []byte, v any) error {
	switch m := v.(type) {
	case *wire.ScriptingRequestWire:
		r, err := wire.DecodeScriptingRequestWire(data)
		if err != nil {
			return err
		}
		*m = r
		return nil
	case *wire.ScriptingResponseWire:
		r, err := wire.DecodeScriptingResponseWire(data)
		if err != nil {
			return err
		}
		*m = r
		return nil
	default:
		return fmt.Errorf("scripting: codec cannot unmarshal into %T", v)
	}
}
