package scripting

import (
	"context"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/CARTAvis/carta-backend-sub003/internal/session"
	"github.com/CARTAvis/carta-backend-sub003/internal/wire"
)

// SessionLookup resolves a session id (uuid.UUID.String(), the same key
// sessionmanager.Manager keeps its table under) to a live Session.
// cmd/carta-backend wires this to Manager.Session so the scripting
// package never imports sessionmanager directly.
type SessionLookup func(sessionID string) (*session.Session, bool)

// ScriptingServer is the interface grpc.ServiceDesc's HandlerType
// checks Bridge against; kept separate from Bridge so the generated-
// code-free service registration in service.go has something concrete
// to assert against.
type ScriptingServer interface {
	Execute(ctx context.Context, req *wire.ScriptingRequestWire) (*wire.ScriptingResponseWire, error)
}

// Bridge implements ScriptingServer: Execute carries a named action and
// its parameters across the target session's websocket to its
// connected client and returns the client's answer, the gRPC call
// standing in for CARTA's separate Python scripting client process.
type Bridge struct {
	lookup SessionLookup
}

// NewBridge builds a Bridge that resolves sessions via lookup.
func NewBridge(lookup SessionLookup) *Bridge {
	return &Bridge{lookup: lookup}
}

// Execute resolves req.SessionID and forwards the request to that
// session's SendScriptingRequest, propagating ctx so an external
// controller's own deadline bounds how long it waits for the client.
func (b *Bridge) Execute(ctx context.Context, req *wire.ScriptingRequestWire) (*wire.ScriptingResponseWire, error) {
	s, ok := b.lookup(req.SessionID)
	if !ok {
		return nil, status.Errorf(codes.NotFound, "scripting: no session %q", req.SessionID)
	}
	resp, err := s.SendScriptingRequest(ctx, req.Target, req.Parameters, req.Async)
	if err != nil {
		return nil, status.Errorf(codes.DeadlineExceeded, "scripting: %v", err)
	}
	return &resp, nil
}
