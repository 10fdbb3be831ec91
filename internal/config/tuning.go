// Package config implements this backend's tuning surface: pointer-optional
// JSON fields so a partial file only overrides what it names, Get*
// defaulted accessors, Validate, and a parent-directory search for the
// canonical defaults file. Pattern and structure kept from the teacher's
// internal/config/tuning.go; the field set is this server's own (worker
// pool size, kernel parallelism, idle/ping timers, animation flow control,
// loader cache capacity, ZFP thresholds, read-only mode).
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
const DefaultConfigPath = "config/tuning.defaults.json"

// TuningConfig is this server's runtime tuning surface.
type TuningConfig struct {
	// Task runtime
	WorkerPoolSize        *int `json:"worker_pool_size,omitempty"`
	KernelParallelism     *int `json:"kernel_parallelism,omitempty"`
	TaskQueueCapacity     *int `json:"task_queue_capacity,omitempty"`

	// Session lifecycle
	IdleSessionWaitTime *string `json:"idle_session_wait_time,omitempty"` // duration string like "90s"
	PingInterval        *string `json:"ping_interval,omitempty"`          // duration string like "5s"
	ExitTimeout         *string `json:"exit_timeout,omitempty"`           // grace period once ActiveSessions hits 0

	// Animation
	AnimationWindowScale *float64 `json:"animation_window_scale,omitempty"`
	DefaultWaitsPerSec   *float64 `json:"default_waits_per_second,omitempty"`

	// Loader / tile pipeline
	LoaderCacheCapacity       *int     `json:"loader_cache_capacity,omitempty"`
	ZFPHighPrecisionThreshold *float64 `json:"zfp_high_precision_threshold,omitempty"` // compression ratio that triggers a 32-bit retry
	OutboundCorkThresholdKiB  *int     `json:"outbound_cork_threshold_kib,omitempty"`

	// Server
	ListenAddress *string `json:"listen_address,omitempty"`
	ReadOnlyMode  *bool   `json:"read_only_mode,omitempty"`
	TopLevelDir   *string `json:"top_level_folder,omitempty"`
}

func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyTuningConfig returns a TuningConfig with every field nil.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file. Fields omitted
// from the file retain their Get* default. The path is validated to
// guard against accidentally loading something other than a small JSON
// config (mirrors the teacher's extension/size checks).
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults, searching
// from the current directory up through common parent directories.
// Panics if the file cannot be found; intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,
		"../../../" + DefaultConfigPath,
		"../../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that any set fields hold sane values.
func (c *TuningConfig) Validate() error {
	if c.WorkerPoolSize != nil && *c.WorkerPoolSize <= 0 {
		return fmt.Errorf("worker_pool_size must be positive, got %d", *c.WorkerPoolSize)
	}
	if c.KernelParallelism != nil && *c.KernelParallelism <= 0 {
		return fmt.Errorf("kernel_parallelism must be positive, got %d", *c.KernelParallelism)
	}
	if c.TaskQueueCapacity != nil && *c.TaskQueueCapacity <= 0 {
		return fmt.Errorf("task_queue_capacity must be positive, got %d", *c.TaskQueueCapacity)
	}
	if c.IdleSessionWaitTime != nil && *c.IdleSessionWaitTime != "" {
		if _, err := time.ParseDuration(*c.IdleSessionWaitTime); err != nil {
			return fmt.Errorf("invalid idle_session_wait_time %q: %w", *c.IdleSessionWaitTime, err)
		}
	}
	if c.PingInterval != nil && *c.PingInterval != "" {
		if _, err := time.ParseDuration(*c.PingInterval); err != nil {
			return fmt.Errorf("invalid ping_interval %q: %w", *c.PingInterval, err)
		}
	}
	if c.ExitTimeout != nil && *c.ExitTimeout != "" {
		if _, err := time.ParseDuration(*c.ExitTimeout); err != nil {
			return fmt.Errorf("invalid exit_timeout %q: %w", *c.ExitTimeout, err)
		}
	}
	if c.AnimationWindowScale != nil && *c.AnimationWindowScale <= 0 {
		return fmt.Errorf("animation_window_scale must be positive, got %f", *c.AnimationWindowScale)
	}
	if c.LoaderCacheCapacity != nil && *c.LoaderCacheCapacity <= 0 {
		return fmt.Errorf("loader_cache_capacity must be positive, got %d", *c.LoaderCacheCapacity)
	}
	return nil
}

// GetWorkerPoolSize returns worker_pool_size or the default.
func (c *TuningConfig) GetWorkerPoolSize() int {
	if c.WorkerPoolSize == nil {
		return 8
	}
	return *c.WorkerPoolSize
}

// GetKernelParallelism returns kernel_parallelism or the default.
func (c *TuningConfig) GetKernelParallelism() int {
	if c.KernelParallelism == nil {
		return 4
	}
	return *c.KernelParallelism
}

// GetTaskQueueCapacity returns task_queue_capacity or the default.
func (c *TuningConfig) GetTaskQueueCapacity() int {
	if c.TaskQueueCapacity == nil {
		return 256
	}
	return *c.TaskQueueCapacity
}

// GetIdleSessionWaitTime parses idle_session_wait_time or returns the default.
func (c *TuningConfig) GetIdleSessionWaitTime() time.Duration {
	if c.IdleSessionWaitTime == nil || *c.IdleSessionWaitTime == "" {
		return 90 * time.Second
	}
	d, err := time.ParseDuration(*c.IdleSessionWaitTime)
	if err != nil {
		return 90 * time.Second
	}
	return d
}

// GetPingInterval parses ping_interval or returns the default.
func (c *TuningConfig) GetPingInterval() time.Duration {
	if c.PingInterval == nil || *c.PingInterval == "" {
		return 5 * time.Second
	}
	d, err := time.ParseDuration(*c.PingInterval)
	if err != nil {
		return 5 * time.Second
	}
	return d
}

// GetExitTimeout parses exit_timeout or returns the default.
func (c *TuningConfig) GetExitTimeout() time.Duration {
	if c.ExitTimeout == nil || *c.ExitTimeout == "" {
		return 5 * time.Second
	}
	d, err := time.ParseDuration(*c.ExitTimeout)
	if err != nil {
		return 5 * time.Second
	}
	return d
}

// GetAnimationWindowScale returns animation_window_scale or the default.
func (c *TuningConfig) GetAnimationWindowScale() float64 {
	if c.AnimationWindowScale == nil {
		return 4.0
	}
	return *c.AnimationWindowScale
}

// GetDefaultWaitsPerSecond returns default_waits_per_second or the default.
func (c *TuningConfig) GetDefaultWaitsPerSecond() float64 {
	if c.DefaultWaitsPerSec == nil {
		return 5.0
	}
	return *c.DefaultWaitsPerSec
}

// GetLoaderCacheCapacity returns loader_cache_capacity or the default
// (spec.md §3's 25-entry loader LRU).
func (c *TuningConfig) GetLoaderCacheCapacity() int {
	if c.LoaderCacheCapacity == nil {
		return 25
	}
	return *c.LoaderCacheCapacity
}

// GetZFPHighPrecisionThreshold returns zfp_high_precision_threshold or
// the default compression-ratio cutoff that triggers a 32-bit retry.
func (c *TuningConfig) GetZFPHighPrecisionThreshold() float64 {
	if c.ZFPHighPrecisionThreshold == nil {
		return 20.0
	}
	return *c.ZFPHighPrecisionThreshold
}

// GetOutboundCorkThresholdKiB returns outbound_cork_threshold_kib or the default.
func (c *TuningConfig) GetOutboundCorkThresholdKiB() int {
	if c.OutboundCorkThresholdKiB == nil {
		return 1
	}
	return *c.OutboundCorkThresholdKiB
}

// GetListenAddress returns listen_address or the default.
func (c *TuningConfig) GetListenAddress() string {
	if c.ListenAddress == nil || *c.ListenAddress == "" {
		return ":3002"
	}
	return *c.ListenAddress
}

// GetReadOnlyMode returns read_only_mode or the default.
func (c *TuningConfig) GetReadOnlyMode() bool {
	if c.ReadOnlyMode == nil {
		return false
	}
	return *c.ReadOnlyMode
}

// GetTopLevelDir returns top_level_folder or the default.
func (c *TuningConfig) GetTopLevelDir() string {
	if c.TopLevelDir == nil || *c.TopLevelDir == "" {
		return "."
	}
	return *c.TopLevelDir
}
