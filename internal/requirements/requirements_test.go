package requirements

import "testing"

func TestConfigsRoundTrip(t *testing.T) {
	c := NewCache()
	id := ConfigID{FileID: 0, RegionID: -1}
	cfg := Configs{Histogram: []HistogramConfig{{Channel: 0, NumBins: 100}}}
	c.SetConfigs(id, cfg)

	got, ok := c.GetConfigs(id)
	if !ok {
		t.Fatal("expected configs to be present")
	}
	if len(got.Histogram) != 1 || got.Histogram[0].NumBins != 100 {
		t.Fatalf("got %+v", got)
	}
}

func TestDiffNewStats(t *testing.T) {
	c := NewCache()
	id := ConfigID{FileID: 0, RegionID: -2}
	c.SetConfigs(id, Configs{Spectral: []SpectralConfig{{Coordinate: "z", StatsTypes: []string{"mean", "min"}}}})

	fresh := c.DiffNewStats(id, "z", []string{"mean", "min", "max", "rms"})
	want := map[string]bool{"max": true, "rms": true}
	if len(fresh) != 2 {
		t.Fatalf("fresh = %v, want 2 new stats", fresh)
	}
	for _, s := range fresh {
		if !want[s] {
			t.Fatalf("unexpected fresh stat %q", s)
		}
	}
}

func TestHistogramCacheRoundTrip(t *testing.T) {
	c := NewCache()
	id := CacheID{FileID: 0, RegionID: -1, Stokes: 0, Channel: 5}
	c.PutHistogram(id, 100, "histogram-payload")

	got, ok := c.GetHistogram(id, 100)
	if !ok || got != "histogram-payload" {
		t.Fatalf("got %v, ok=%v", got, ok)
	}
	if _, ok := c.GetHistogram(id, 50); ok {
		t.Fatal("expected a miss for a different num_bins")
	}
}

func TestClearHistogramsOnlyClearsHistograms(t *testing.T) {
	c := NewCache()
	id := CacheID{FileID: 0, RegionID: 1, Stokes: 0, Channel: 0}
	c.PutHistogram(id, 100, "h")
	c.PutSpectral(id, "mean", "s")

	c.ClearHistograms(0, 1)

	if _, ok := c.GetHistogram(id, 100); ok {
		t.Fatal("expected histogram to be cleared")
	}
	if _, ok := c.GetSpectral(id, "mean"); !ok {
		t.Fatal("spectral product should survive a histogram-only clear")
	}
}

func TestInvalidateChannelLeavesConfigsAlone(t *testing.T) {
	c := NewCache()
	configID := ConfigID{FileID: 0, RegionID: -1}
	c.SetConfigs(configID, Configs{Histogram: []HistogramConfig{{NumBins: 100}}})

	oldID := CacheID{FileID: 0, RegionID: -1, Stokes: 0, Channel: 3}
	c.PutHistogram(oldID, 100, "stale")

	c.InvalidateChannel(0, -1, 0, 7)

	if _, ok := c.GetHistogram(oldID, 100); ok {
		t.Fatal("expected stale channel's cached product to be invalidated")
	}
	if _, ok := c.GetConfigs(configID); !ok {
		t.Fatal("channel invalidation must not drop the requirement config")
	}
}

func TestHitRateTracksGetHistogramOutcomes(t *testing.T) {
	c := NewCache()
	if rate := c.HitRate(); rate != 0 {
		t.Fatalf("expected 0 hit rate with no lookups, got %v", rate)
	}

	id := CacheID{FileID: 0, RegionID: -1}
	c.GetHistogram(id, 100) // miss, nothing cached yet
	c.PutHistogram(id, 100, "computed")
	c.GetHistogram(id, 100) // hit
	c.GetHistogram(id, 100) // hit

	if rate := c.HitRate(); rate != 2.0/3.0 {
		t.Fatalf("HitRate() = %v, want %v", rate, 2.0/3.0)
	}
}
