// Command carta-backend serves the CARTA websocket protocol: it accepts
// viewer connections, opens images through the in-memory reference
// loader (SPEC_FULL.md's Non-goals keep a real FITS/HDF5 backend out of
// scope), dispatches wire requests to a session, and exposes operator
// surfaces (a live dashboard, a SQL browser over the audit log, and a
// gRPC scripting control plane) alongside the websocket port. The
// top-level shape — flag parsing, a signal.NotifyContext'd shutdown, a
// WaitGroup of server goroutines each closing over ctx.Done() — follows
// the teacher's root main.go.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/CARTAvis/carta-backend-sub003/internal/audit"
	"github.com/CARTAvis/carta-backend-sub003/internal/config"
	"github.com/CARTAvis/carta-backend-sub003/internal/dashboard"
	"github.com/CARTAvis/carta-backend-sub003/internal/httputil"
	"github.com/CARTAvis/carta-backend-sub003/internal/loader"
	"github.com/CARTAvis/carta-backend-sub003/internal/monitoring"
	"github.com/CARTAvis/carta-backend-sub003/internal/scripting"
	"github.com/CARTAvis/carta-backend-sub003/internal/session"
	"github.com/CARTAvis/carta-backend-sub003/internal/sessionmanager"
	"github.com/CARTAvis/carta-backend-sub003/internal/taskrun"
	"github.com/CARTAvis/carta-backend-sub003/internal/version"
)

var (
	listen     = flag.String("listen", "", "websocket+debug listen address (overrides config's listen_address)")
	grpcListen = flag.String("grpc-listen", ":50051", "scripting control-plane gRPC listen address")
	configPath = flag.String("config", "", "path to a tuning config JSON file (defaults built in if empty)")
	auditDB    = flag.String("audit-db", "carta-audit.db", "path to the audit/telemetry SQLite database ('' disables it)")
	showVer    = flag.Bool("version", false, "print version information and exit")
)

func memoryOpener() session.FileOpener {
	return func(ctx context.Context, key, hdu string) (loader.FileLoader, error) {
		l := loader.NewMemoryLoader(64, 64, 1, 1)
		if err := l.OpenFile(hdu); err != nil {
			return nil, fmt.Errorf("open %s (hdu %s): %w", key, hdu, err)
		}
		return l, nil
	}
}

func main() {
	flag.Parse()

	if *showVer {
		fmt.Printf("carta-backend %s (%s, built %s)\n", version.Version, version.GitSHA, version.BuildTime)
		return
	}

	cfg := config.EmptyTuningConfig()
	if *configPath != "" {
		loaded, err := config.LoadTuningConfig(*configPath)
		if err != nil {
			log.Fatalf("load config %s: %v", *configPath, err)
		}
		cfg = loaded
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	listenAddr := cfg.GetListenAddress()
	if *listen != "" {
		listenAddr = *listen
	}

	var store *audit.Store
	if *auditDB != "" {
		var err error
		store, err = audit.Open(*auditDB)
		if err != nil {
			log.Fatalf("open audit db %s: %v", *auditDB, err)
		}
		defer store.Close()
	}

	pool := taskrun.NewPool(cfg.GetWorkerPoolSize(), cfg.GetTaskQueueCapacity())
	pool.OnPanic(func(r any) { monitoring.Logf("ERROR: carta-backend: task panic: %v", r) })
	defer pool.Shutdown()

	manager := sessionmanager.NewManager(memoryOpener(), pool, cfg.GetIdleSessionWaitTime())
	if store != nil {
		manager.SetAuditStore(store)
	}

	bridge := scripting.NewBridge(manager.Session)
	grpcServer := scripting.NewGRPCServer(bridge)

	mux := http.NewServeMux()
	mux.Handle("/", manager)
	mux.HandleFunc("/debug/version", func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSONOK(w, map[string]string{
			"version":    version.Version,
			"git_sha":    version.GitSHA,
			"build_time": version.BuildTime,
		})
	})
	if err := dashboard.Attach(mux, dashboard.Sources{Pool: pool, Manager: manager, Audit: store}); err != nil {
		log.Fatalf("attach dashboard: %v", err)
	}

	httpServer := &http.Server{Addr: listenAddr, Handler: mux}

	grpcLis, err := net.Listen("tcp", *grpcListen)
	if err != nil {
		log.Fatalf("listen %s: %v", *grpcListen, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		monitoring.Logf("carta-backend: websocket+debug listening on %s", listenAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server: %v", err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		monitoring.Logf("carta-backend: scripting gRPC listening on %s", *grpcListen)
		if err := grpcServer.Serve(grpcLis); err != nil {
			monitoring.Logf("carta-backend: grpc server stopped: %v", err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		watchExitWhenEmpty(ctx, manager, cfg.GetExitTimeout(), stop)
	}()

	<-ctx.Done()
	monitoring.Logf("carta-backend: shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		monitoring.Logf("carta-backend: http shutdown: %v", err)
	}
	grpcServer.GracefulStop()

	wg.Wait()
	monitoring.Logf("carta-backend: graceful shutdown complete")
}

// watchExitWhenEmpty implements spec.md §9's optional "exit when all
// sessions closed" process-wide timer: once a session has connected at
// least once and the connection count returns to zero, the process exits
// after timeout unless a new session arrives first. A server that never
// receives a single connection runs indefinitely.
func watchExitWhenEmpty(ctx context.Context, manager *sessionmanager.Manager, timeout time.Duration, stop context.CancelFunc) {
	if timeout <= 0 {
		return
	}
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	everConnected := false
	var emptySince time.Time

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			active := manager.ActiveSessions()
			if active > 0 {
				everConnected = true
				emptySince = time.Time{}
				continue
			}
			if !everConnected {
				continue
			}
			if emptySince.IsZero() {
				emptySince = time.Now()
				continue
			}
			if time.Since(emptySince) >= timeout {
				monitoring.Logf("carta-backend: idle for %s with no sessions, exiting", timeout)
				stop()
				return
			}
		}
	}
}
