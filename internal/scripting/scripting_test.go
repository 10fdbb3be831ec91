package scripting

import (
	"context"
	"testing"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/CARTAvis/carta-backend-sub003/internal/loader"
	"github.com/CARTAvis/carta-backend-sub003/internal/session"
	"github.com/CARTAvis/carta-backend-sub003/internal/taskrun"
	"github.com/CARTAvis/carta-backend-sub003/internal/wire"
)

func TestCodecRoundTripsRequestAndResponse(t *testing.T) {
	c := wireCodec{}

	req := &wire.ScriptingRequestWire{SessionID: "s1", Target: "ping", Parameters: []string{"a", "b"}, Async: true}
	data, err := c.Marshal(req)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	var gotReq wire.ScriptingRequestWire
	if err := c.Unmarshal(data, &gotReq); err != nil {
		t.Fatalf("unmarshal request: %v", err)
	}
	if gotReq.SessionID != req.SessionID || gotReq.Target != req.Target || !gotReq.Async || len(gotReq.Parameters) != 2 {
		t.Fatalf("request round trip mismatch: got %+v", gotReq)
	}

	resp := &wire.ScriptingResponseWire{Success: true, Message: "ok", ResponseData: []byte("data")}
	data, err = c.Marshal(resp)
	if err != nil {
		t.Fatalf("marshal response: %v", err)
	}
	var gotResp wire.ScriptingResponseWire
	if err := c.Unmarshal(data, &gotResp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if !gotResp.Success || gotResp.Message != "ok" || string(gotResp.ResponseData) != "data" {
		t.Fatalf("response round trip mismatch: got %+v", gotResp)
	}
}

func TestCodecRejectsUnknownType(t *testing.T) {
	c := wireCodec{}
	if _, err := c.Marshal("not a scripting message"); err == nil {
		t.Fatal("expected error marshalling an unsupported type")
	}
	if err := c.Unmarshal([]byte{}, new(int)); err == nil {
		t.Fatal("expected error unmarshalling into an unsupported type")
	}
}

func TestBridgeExecuteUnknownSessionReturnsNotFound(t *testing.T) {
	b := NewBridge(func(string) (*session.Session, bool) { return nil, false })
	_, err := b.Execute(context.Background(), &wire.ScriptingRequestWire{SessionID: "missing", Target: "ping"})
	if err == nil {
		t.Fatal("expected an error for an unknown session")
	}
	if st, ok := status.FromError(err); !ok || st.Code() != codes.NotFound {
		t.Fatalf("expected codes.NotFound, got %v", err)
	}
}

func TestBridgeExecuteForwardsThroughSessionAndBack(t *testing.T) {
	pool := taskrun.NewPool(2, 32)
	t.Cleanup(pool.Shutdown)
	opener := func(ctx context.Context, key, hdu string) (loader.FileLoader, error) {
		return loader.NewMemoryLoader(4, 4, 1, 1), nil
	}
	s := session.New(opener, pool, func() {})
	t.Cleanup(s.Close)

	b := NewBridge(func(id string) (*session.Session, bool) {
		if id != s.ID.String() {
			return nil, false
		}
		return s, true
	})

	// Simulate the connected client: read the pushed SCRIPTING_REQUEST
	// off the session's outbound queue and answer it.
	go func() {
		deadline := time.Now().Add(2 * time.Second)
		for time.Now().Before(deadline) {
			batch := s.Outbound().Drain()
			if len(batch) == 0 {
				time.Sleep(5 * time.Millisecond)
				continue
			}
			h, ok := wire.DecodeHeader(batch)
			if !ok || h.Type != wire.EventScriptingRequest {
				continue
			}
			req, err := wire.DecodeScriptingRequestWire(batch[wire.HeaderSize:])
			if err != nil || req.Target != "ping" {
				continue
			}
			s.OnScriptingResponse(h.RequestID, wire.ScriptingResponseWire{Success: true, Message: "pong"})
			return
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	resp, err := b.Execute(ctx, &wire.ScriptingRequestWire{SessionID: s.ID.String(), Target: "ping"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !resp.Success || resp.Message != "pong" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestBridgeExecuteAsyncReturnsWithoutWaiting(t *testing.T) {
	pool := taskrun.NewPool(2, 32)
	t.Cleanup(pool.Shutdown)
	opener := func(ctx context.Context, key, hdu string) (loader.FileLoader, error) {
		return loader.NewMemoryLoader(4, 4, 1, 1), nil
	}
	s := session.New(opener, pool, func() {})
	t.Cleanup(s.Close)

	b := NewBridge(func(id string) (*session.Session, bool) { return s, true })

	resp, err := b.Execute(context.Background(), &wire.ScriptingRequestWire{SessionID: s.ID.String(), Target: "fire-and-forget", Async: true})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !resp.Success {
		t.Fatalf("expected an immediate success ack for an async request, got %+v", resp)
	}
}
