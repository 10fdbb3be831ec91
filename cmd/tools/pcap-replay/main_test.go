//go:build pcap

package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coder/websocket"
)

// TestReplayReturnsErrorForMissingCapture exercises the error path without
// needing a real pcap fixture checked into the repo (the teacher's own
// cmd/pcap-test relies on a pcapng file outside version control too).
func TestReplayReturnsErrorForMissingCapture(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		conn.CloseNow()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+srv.URL[len("http"):], nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.CloseNow()

	if _, err := replay(ctx, "/nonexistent/capture.pcapng", 3002, conn); err == nil {
		t.Fatal("expected an error opening a nonexistent capture file")
	}
}
