// ABOUTME: Tests for configuration loading
// ABOUTME: Tests defaults, file values and environment overrides
package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != 8765 {
		t.Errorf("expected default port 8765, got %d", cfg.Port)
	}
	if cfg.Backend != "sim" {
		t.Errorf("expected sim backend, got %s", cfg.Backend)
	}
	if cfg.SamplesPerFrame != 8192 || cfg.FramesPerBuffer != 10 {
		t.Errorf("unexpected streaming defaults: %d / %d", cfg.SamplesPerFrame, cfg.FramesPerBuffer)
	}
	if cfg.DefaultVolume != 100 {
		t.Errorf("expected default volume 100, got %v", cfg.DefaultVolume)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wavedaq.yaml")
	data := "port: 9100\nbackend: oto\nsamples_per_frame: 4096\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != 9100 || cfg.Backend != "oto" || cfg.SamplesPerFrame != 4096 {
		t.Errorf("file values not applied: %+v", cfg)
	}
	// Untouched keys keep their defaults
	if cfg.FramesPerBuffer != 10 {
		t.Errorf("expected default frames_per_buffer, got %d", cfg.FramesPerBuffer)
	}
}

func TestEnvironmentOverride(t *testing.T) {
	t.Setenv("WAVEDAQ_PORT", "9200")
	t.Setenv("WAVEDAQ_NAME", "bench-rig")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != 9200 {
		t.Errorf("expected env port 9200, got %d", cfg.Port)
	}
	if cfg.Name != "bench-rig" {
		t.Errorf("expected env name, got %s", cfg.Name)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/wavedaq.yaml"); err == nil {
		t.Fatal("expected error for explicit missing file")
	}
}
