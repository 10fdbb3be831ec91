// Package dashboard mounts the two operator-facing debug surfaces named
// in spec.md's ambient-observability expansion: a live echarts view of
// worker-pool occupancy and cache effectiveness, and a tailsql browser
// over the audit database, both under tsweb's /debug/ root the way
// internal/db/db.go's AttachAdminRoutes mounts them for the radar DB.
package dashboard

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/tailscale/tailsql/server/tailsql"
	"tailscale.com/tsweb"

	"github.com/CARTAvis/carta-backend-sub003/internal/audit"
	"github.com/CARTAvis/carta-backend-sub003/internal/sessionmanager"
	"github.com/CARTAvis/carta-backend-sub003/internal/taskrun"
)

// Sources bundles the live components the dashboard reads from. Manager
// and Audit are optional; a nil Manager just reports a 0 cache hit rate,
// and a nil Audit skips mounting the tailsql browser entirely.
type Sources struct {
	Pool    *taskrun.Pool
	Manager *sessionmanager.Manager
	Audit   *audit.Store
}

// Attach mounts the dashboard under mux's existing /debug/ tsweb root.
// cmd/carta-backend calls this once at startup alongside whatever other
// debug.Handle registrations it wants.
func Attach(mux *http.ServeMux, src Sources) error {
	debug := tsweb.Debugger(mux)
	debug.Handle("dashboard", "Worker pool occupancy and cache hit rate", http.HandlerFunc(src.handleDashboard))

	if src.Audit == nil {
		return nil
	}
	tsql, err := tailsql.NewServer(tailsql.Options{
		RoutePrefix: "/debug/tailsql/",
	})
	if err != nil {
		return fmt.Errorf("dashboard: tailsql: %w", err)
	}
	tsql.SetDB("sqlite://carta-audit.db", src.Audit.DB(), &tailsql.DBOptions{
		Label: "Session Audit Log",
	})
	debug.Handle("tailsql/", "SQL live debugging over the audit log", tsql.NewMux())
	return nil
}

func (src Sources) handleDashboard(w http.ResponseWriter, r *http.Request) {
	stats := src.Pool.Stats()
	var hitRate float64
	if src.Manager != nil {
		hitRate = src.Manager.MeanHistogramCacheHitRate()
	}

	occupancy := charts.NewBar()
	occupancy.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "420px"}),
		charts.WithTitleOpts(opts.Title{Title: "Worker Pool Occupancy", Subtitle: time.Now().Format(time.RFC3339)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	occupancy.SetXAxis([]string{"Active", "Idle", "Queued"}).
		AddSeries("workers", []opts.BarData{
			{Value: stats.ActiveWorkers},
			{Value: int64(stats.NumWorkers) - stats.ActiveWorkers},
			{Value: int64(stats.QueueDepth)},
		}, charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}))

	metrics := charts.NewBar()
	metrics.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "420px"}),
		charts.WithTitleOpts(opts.Title{Title: "Task Latency and Histogram Cache Hit Rate"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	metrics.SetXAxis([]string{"Mean latency (ms)", "Completed", "Panicked", "Hit rate (%)"}).
		AddSeries("metrics", []opts.BarData{
			{Value: float64(stats.MeanTaskLatency) / float64(time.Millisecond)},
			{Value: stats.TasksCompleted},
			{Value: stats.TasksPanicked},
			{Value: hitRate * 100},
		}, charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}))

	page := components.NewPage()
	page.AddCharts(occupancy, metrics)

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		http.Error(w, fmt.Sprintf("dashboard: render: %v", err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
