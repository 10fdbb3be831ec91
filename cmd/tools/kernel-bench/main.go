// Command kernel-bench times internal/kernel's pixel-pipeline primitives
// (C1: block-mean downsample, nearest-neighbor downsample, Gaussian
// smooth, ZFP compression) across a range of image sizes and plots
// latency-versus-size curves to PNG, the same gonum/plot shape the
// teacher's internal/lidar/monitor/gridplotter.go uses for per-ring
// background-grid time series, generalized from "frame index on X" to
// "image side length on X".
package main

import (
	"flag"
	"fmt"
	"image/color"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/CARTAvis/carta-backend-sub003/internal/kernel"
)

var (
	sizesFlag  = flag.String("sizes", "128,256,512,1024,2048", "comma-separated square image side lengths to benchmark")
	factor     = flag.Int("factor", 4, "downsample factor for block-mean/nearest-neighbor kernels")
	iterations = flag.Int("iterations", 5, "iterations per size, averaged")
	outputDir  = flag.String("output", "", "directory for the rendered PNGs (defaults to plots/kernel-bench/<timestamp>)")
)

type benchResult struct {
	size  int
	nanos map[string]int64
}

func synthPlane(size int, seed int64) []float64 {
	r := rand.New(rand.NewSource(seed))
	plane := make([]float64, size*size)
	for i := range plane {
		plane[i] = r.Float64() * 1000
	}
	return plane
}

func timeIt(fn func()) time.Duration {
	start := time.Now()
	fn()
	return time.Since(start)
}

func benchSize(size int) benchResult {
	plane := synthPlane(size, int64(size))
	outW, outH := size / *factor, size / *factor
	if outW < 1 {
		outW = 1
	}
	if outH < 1 {
		outH = 1
	}

	result := benchResult{size: size, nanos: make(map[string]int64)}
	kernels := map[string]func(){
		"block_mean": func() {
			kernel.BlockMeanDownsample(plane, size, size, *factor, 0, 0, outW, outH)
		},
		"nearest_neighbor": func() {
			kernel.NearestNeighborDownsample(plane, size, size, *factor, 0, 0, outW, outH)
		},
		"gaussian_smooth": func() {
			kernel.GaussianSmooth2D(plane, size, size, *factor)
		},
		"zfp_compress": func() {
			kernel.CompressZFP(plane, size, size, 16)
		},
	}

	for name, fn := range kernels {
		var total time.Duration
		for i := 0; i < *iterations; i++ {
			total += timeIt(fn)
		}
		result.nanos[name] = int64(total) / int64(*iterations)
	}
	return result
}

func parseSizes(s string) ([]int, error) {
	var sizes []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid size %q: %w", part, err)
		}
		sizes = append(sizes, n)
	}
	sort.Ints(sizes)
	return sizes, nil
}

func main() {
	flag.Parse()

	sizes, err := parseSizes(*sizesFlag)
	if err != nil {
		log.Fatalf("kernel-bench: %v", err)
	}
	if len(sizes) == 0 {
		log.Fatal("kernel-bench: no sizes given")
	}

	dir := *outputDir
	if dir == "" {
		dir = filepath.Join("plots", "kernel-bench", time.Now().Format("20060102_150405"))
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.Fatalf("kernel-bench: mkdir %s: %v", dir, err)
	}

	results := make([]benchResult, 0, len(sizes))
	for _, size := range sizes {
		log.Printf("kernel-bench: running size=%d (%d iterations)", size, *iterations)
		results = append(results, benchSize(size))
	}

	if err := plotResults(results, dir); err != nil {
		log.Fatalf("kernel-bench: plot: %v", err)
	}
	log.Printf("kernel-bench: wrote plots to %s", dir)
}

func plotResults(results []benchResult, dir string) error {
	names := []string{"block_mean", "nearest_neighbor", "gaussian_smooth", "zfp_compress"}
	colors := []color.Color{
		color.RGBA{R: 220, G: 50, B: 50, A: 255},
		color.RGBA{G: 150, B: 50, A: 255},
		color.RGBA{B: 200, A: 255},
		color.RGBA{R: 200, G: 150, A: 255},
	}

	p := plot.New()
	p.Title.Text = "internal/kernel latency vs image side length"
	p.X.Label.Text = "side length (px)"
	p.Y.Label.Text = "mean latency (ms)"

	for i, name := range names {
		pts := make(plotter.XYs, 0, len(results))
		for _, r := range results {
			ns, ok := r.nanos[name]
			if !ok {
				continue
			}
			pts = append(pts, plotter.XY{X: float64(r.size), Y: float64(ns) / float64(time.Millisecond)})
		}
		if len(pts) == 0 {
			continue
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return fmt.Errorf("line for %s: %w", name, err)
		}
		line.Color = colors[i%len(colors)]
		line.Width = vg.Points(2)
		p.Add(line)
		p.Legend.Add(name, line)
	}
	p.Legend.Top = true
	p.Legend.Left = false

	return p.Save(12*vg.Inch, 6*vg.Inch, filepath.Join(dir, "kernel_latency.png"))
}
