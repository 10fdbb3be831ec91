package dashboard

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/CARTAvis/carta-backend-sub003/internal/audit"
	"github.com/CARTAvis/carta-backend-sub003/internal/sessionmanager"
	"github.com/CARTAvis/carta-backend-sub003/internal/taskrun"
)

func TestAttachServesDashboard(t *testing.T) {
	pool := taskrun.NewPool(1, 4)
	defer pool.Shutdown()

	mux := http.NewServeMux()
	if err := Attach(mux, Sources{Pool: pool}); err != nil {
		t.Fatalf("Attach: %v", err)
	}

	srv := httptest.NewServer(mux)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/debug/dashboard")
	if err != nil {
		t.Fatalf("GET /debug/dashboard: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Fatalf("Content-Type = %q, want text/html", ct)
	}
}

func TestAttachMountsTailsqlWhenAuditProvided(t *testing.T) {
	store, err := audit.Open(":memory:")
	if err != nil {
		t.Fatalf("audit.Open: %v", err)
	}
	defer store.Close()

	pool := taskrun.NewPool(1, 4)
	defer pool.Shutdown()

	mux := http.NewServeMux()
	if err := Attach(mux, Sources{Pool: pool, Audit: store}); err != nil {
		t.Fatalf("Attach: %v", err)
	}

	srv := httptest.NewServer(mux)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/debug/tailsql/")
	if err != nil {
		t.Fatalf("GET /debug/tailsql/: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		t.Fatal("expected tailsql to be mounted, got 404")
	}
}

func TestHandleDashboardReflectsPoolAndCacheStats(t *testing.T) {
	pool := taskrun.NewPool(2, 8)
	defer pool.Shutdown()

	done := make(chan struct{})
	pool.Enqueue(context.Background(), taskrun.TaskFunc(func(ctx context.Context) { close(done) }))
	<-done

	m := sessionmanager.NewManager(nil, pool, time.Second)

	mux := http.NewServeMux()
	if err := Attach(mux, Sources{Pool: pool, Manager: m}); err != nil {
		t.Fatalf("Attach: %v", err)
	}

	srv := httptest.NewServer(mux)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/debug/dashboard")
	if err != nil {
		t.Fatalf("GET /debug/dashboard: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}
