package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestEmptyTuningConfigAllNil(t *testing.T) {
	cfg := EmptyTuningConfig()
	if cfg.WorkerPoolSize != nil || cfg.IdleSessionWaitTime != nil || cfg.ListenAddress != nil {
		t.Fatal("expected all fields nil on an empty config")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("an all-nil config must validate: %v", err)
	}
}

func TestGetDefaults(t *testing.T) {
	cfg := EmptyTuningConfig()
	if got := cfg.GetWorkerPoolSize(); got != 8 {
		t.Errorf("GetWorkerPoolSize() = %d, want 8", got)
	}
	if got := cfg.GetIdleSessionWaitTime(); got != 90*time.Second {
		t.Errorf("GetIdleSessionWaitTime() = %v, want 90s", got)
	}
	if got := cfg.GetPingInterval(); got != 5*time.Second {
		t.Errorf("GetPingInterval() = %v, want 5s", got)
	}
	if got := cfg.GetLoaderCacheCapacity(); got != 25 {
		t.Errorf("GetLoaderCacheCapacity() = %d, want 25", got)
	}
	if got := cfg.GetListenAddress(); got != ":3002" {
		t.Errorf("GetListenAddress() = %q, want :3002", got)
	}
	if got := cfg.GetReadOnlyMode(); got != false {
		t.Errorf("GetReadOnlyMode() = %v, want false", got)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name string
		cfg  *TuningConfig
	}{
		{"negative worker pool", &TuningConfig{WorkerPoolSize: ptrInt(-1)}},
		{"zero kernel parallelism", &TuningConfig{KernelParallelism: ptrInt(0)}},
		{"bad idle duration", &TuningConfig{IdleSessionWaitTime: ptrString("not-a-duration")}},
		{"bad ping duration", &TuningConfig{PingInterval: ptrString("nope")}},
		{"negative window scale", &TuningConfig{AnimationWindowScale: ptrFloat64(-1)}},
		{"zero loader cache", &TuningConfig{LoaderCacheCapacity: ptrInt(0)}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.cfg.Validate(); err == nil {
				t.Errorf("expected Validate() to reject %+v", tc.cfg)
			}
		})
	}
}

func TestLoadTuningConfigRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "overrides.json")
	data, err := json.Marshal(&TuningConfig{
		WorkerPoolSize:      ptrInt(16),
		IdleSessionWaitTime: ptrString("30s"),
		ReadOnlyMode:        ptrBool(true),
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := LoadTuningConfig(path)
	if err != nil {
		t.Fatalf("LoadTuningConfig: %v", err)
	}
	if cfg.GetWorkerPoolSize() != 16 {
		t.Errorf("worker pool size = %d, want 16", cfg.GetWorkerPoolSize())
	}
	if cfg.GetIdleSessionWaitTime() != 30*time.Second {
		t.Errorf("idle session wait time = %v, want 30s", cfg.GetIdleSessionWaitTime())
	}
	if !cfg.GetReadOnlyMode() {
		t.Error("read only mode should be true")
	}
	// Fields absent from the override file still fall back to defaults.
	if cfg.GetKernelParallelism() != 4 {
		t.Errorf("kernel parallelism = %d, want default 4", cfg.GetKernelParallelism())
	}
}

func TestLoadTuningConfigRejectsNonJSONExtension(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "overrides.txt")
	if err := os.WriteFile(path, []byte("{}"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadTuningConfig(path); err == nil {
		t.Error("expected an error for a non-.json path")
	}
}

func TestMustLoadDefaultConfig(t *testing.T) {
	cfg := MustLoadDefaultConfig()
	if cfg.WorkerPoolSize == nil {
		t.Fatal("defaults file should set worker_pool_size")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults file must validate: %v", err)
	}
}
