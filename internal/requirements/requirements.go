// Package requirements implements the per-(file,region) and
// per-(file,region,stokes,channel) caches Frame and RegionHandler
// consult before recomputing a histogram, spectral profile or stats
// product, plus their invalidation on region and channel/stokes changes.
package requirements

import "sync"

// ConfigID identifies the live requirement configuration for a region
// of a file (histogram configs, spectral configs, etc.) independent of
// which plane is currently displayed.
type ConfigID struct {
	FileID   int32
	RegionID int32
}

// CacheID identifies one computed product: a specific file, region,
// stokes and channel combination.
type CacheID struct {
	FileID   int32
	RegionID int32
	Stokes   int32
	Channel  int32
}

// HistogramConfig is one entry of a SET_HISTOGRAM_REQUIREMENTS list.
type HistogramConfig struct {
	Channel     int32
	NumBins     int32
	FixedBounds bool
	BoundsMin   float64
	BoundsMax   float64
	Coordinate  string
}

// SpectralConfig is one entry of a SET_SPECTRAL_REQUIREMENTS list.
type SpectralConfig struct {
	Coordinate string
	StatsTypes []string
}

// StatsConfig is one entry of a SET_STATS_REQUIREMENTS list.
type StatsConfig struct {
	Coordinate string
	StatsTypes []string
}

// Configs is the live requirement set for one ConfigID.
type Configs struct {
	Histogram []HistogramConfig
	Spectral  []SpectralConfig
	Stats     []StatsConfig
}

// CachedProduct holds whatever has already been computed for a CacheID,
// keyed internally by the dimension that distinguishes entries of that
// kind (num_bins for histograms, stat name for spectral/stats).
type CachedProduct struct {
	HistogramByNumBins map[int32]interface{}
	SpectralByStat     map[string]interface{}
	StatsByStat        map[string]interface{}
}

func newCachedProduct() *CachedProduct {
	return &CachedProduct{
		HistogramByNumBins: make(map[int32]interface{}),
		SpectralByStat:     make(map[string]interface{}),
		StatsByStat:        make(map[string]interface{}),
	}
}

// Cache is the requirements cache owned by a Frame (for image/cube
// regions) or shared by a RegionHandler (for user-defined regions).
type Cache struct {
	mu         sync.Mutex
	configs    map[ConfigID]*Configs
	products   map[CacheID]*CachedProduct
	histHits   int64
	histMisses int64
}

func NewCache() *Cache {
	return &Cache{
		configs:  make(map[ConfigID]*Configs),
		products: make(map[CacheID]*CachedProduct),
	}
}

// HitRate reports the fraction of GetHistogram calls that found a cached
// product, for internal/dashboard's cache-effectiveness panel. It
// returns 0 when nothing has been looked up yet.
func (c *Cache) HitRate() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	total := c.histHits + c.histMisses
	if total == 0 {
		return 0
	}
	return float64(c.histHits) / float64(total)
}

// SetConfigs installs the requirement lists for a region, replacing
// whatever was there.
func (c *Cache) SetConfigs(id ConfigID, cfg Configs) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.configs[id] = &cfg
}

func (c *Cache) GetConfigs(id ConfigID) (Configs, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cfg, ok := c.configs[id]
	if !ok {
		return Configs{}, false
	}
	return *cfg, true
}

// DiffNewStats returns the subset of candidateStats not already present
// in the live SpectralConfig for id's coordinate, so only newly
// requested stats are computed on the next pass (§4.4).
func (c *Cache) DiffNewStats(id ConfigID, coordinate string, candidateStats []string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	cfg, ok := c.configs[id]
	if !ok {
		return append([]string(nil), candidateStats...)
	}
	live := map[string]bool{}
	for _, sc := range cfg.Spectral {
		if sc.Coordinate == coordinate {
			for _, s := range sc.StatsTypes {
				live[s] = true
			}
		}
	}
	var fresh []string
	for _, s := range candidateStats {
		if !live[s] {
			fresh = append(fresh, s)
		}
	}
	return fresh
}

func (c *Cache) productFor(id CacheID) *CachedProduct {
	p, ok := c.products[id]
	if !ok {
		p = newCachedProduct()
		c.products[id] = p
	}
	return p
}

// PutHistogram caches a computed histogram for (id, numBins).
func (c *Cache) PutHistogram(id CacheID, numBins int32, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.productFor(id).HistogramByNumBins[numBins] = value
}

// GetHistogram returns a previously cached histogram for (id, numBins).
func (c *Cache) GetHistogram(id CacheID, numBins int32) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.products[id]
	if !ok {
		c.histMisses++
		return nil, false
	}
	v, ok := p.HistogramByNumBins[numBins]
	if ok {
		c.histHits++
	} else {
		c.histMisses++
	}
	return v, ok
}

func (c *Cache) PutSpectral(id CacheID, stat string, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.productFor(id).SpectralByStat[stat] = value
}

func (c *Cache) GetSpectral(id CacheID, stat string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.products[id]
	if !ok {
		return nil, false
	}
	v, ok := p.SpectralByStat[stat]
	return v, ok
}

func (c *Cache) PutStats(id CacheID, stat string, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.productFor(id).StatsByStat[stat] = value
}

func (c *Cache) GetStats(id CacheID, stat string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.products[id]
	if !ok {
		return nil, false
	}
	v, ok := p.StatsByStat[stat]
	return v, ok
}

// ClearProfiles drops every cached spectral product across all channels
// and stokes for the given file/region, matching a region-state change's
// first post-condition.
func (c *Cache) ClearProfiles(fileID, regionID int32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, p := range c.products {
		if id.FileID == fileID && id.RegionID == regionID {
			p.SpectralByStat = make(map[string]interface{})
		}
	}
}

// ClearStats drops every cached stats product for the given file/region.
func (c *Cache) ClearStats(fileID, regionID int32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, p := range c.products {
		if id.FileID == fileID && id.RegionID == regionID {
			p.StatsByStat = make(map[string]interface{})
		}
	}
}

// ClearHistograms drops every cached histogram for the given file/region.
func (c *Cache) ClearHistograms(fileID, regionID int32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, p := range c.products {
		if id.FileID == fileID && id.RegionID == regionID {
			p.HistogramByNumBins = make(map[int32]interface{})
		}
	}
}

// InvalidateChannel drops all cached products keyed by CacheID for the
// given file whose channel or stokes no longer matches current, i.e. a
// channel/stokes change invalidates CacheID-keyed entries only, leaving
// ConfigID-keyed requirement lists untouched.
func (c *Cache) InvalidateChannel(fileID, regionID, currentStokes, currentChannel int32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id := range c.products {
		if id.FileID == fileID && id.RegionID == regionID &&
			(id.Stokes != currentStokes || id.Channel != currentChannel) {
			delete(c.products, id)
		}
	}
}
