package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/GoSim-25-26J-441/readout-calibration/pkg/models"
)

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig("../../config/readout.yaml")
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.LogLevel != "info" {
		t.Errorf("Expected log_level 'info', got '%s'", cfg.LogLevel)
	}
	if cfg.Simulation.NumShots != 200 {
		t.Errorf("Expected 200 shots, got %d", cfg.Simulation.NumShots)
	}
	if cfg.Ranges.Amplitude != models.NewRange(0.5, 2.0) {
		t.Errorf("Unexpected amplitude range %v", cfg.Ranges.Amplitude)
	}
	if cfg.Ranges.Frequency != models.NewRange(6.4, 6.6) {
		t.Errorf("Unexpected frequency range %v", cfg.Ranges.Frequency)
	}
	if cfg.Optimization.Workers != 4 {
		t.Errorf("Expected 4 workers, got %d", cfg.Optimization.Workers)
	}
	pts, err := cfg.Optimization.ParsedPulseTypes()
	if err != nil {
		t.Fatalf("ParsedPulseTypes: %v", err)
	}
	if len(pts) != 3 || pts[2] != models.PulseDRAG {
		t.Errorf("Unexpected pulse types %v", pts)
	}
	if cfg.Storage.Driver != "sqlite" || cfg.Storage.Path == "" {
		t.Errorf("Unexpected storage config %+v", cfg.Storage)
	}
	if cfg.Server.RateLimitPerSecond != 20 {
		t.Errorf("Expected rate limit 20, got %d", cfg.Server.RateLimitPerSecond)
	}
	if cfg.Hardware != nil {
		t.Errorf("Expected no hardware section, got %+v", cfg.Hardware)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if !strings.Contains(err.Error(), "failed to read config file") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestLoadConfigInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("simulation:\n  num_shots: -1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestLoadOrDefault(t *testing.T) {
	cfg, err := LoadOrDefault("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Simulation.NumShots != DefaultNumShots {
		t.Errorf("expected default shots, got %d", cfg.Simulation.NumShots)
	}
}

func TestDefaultIsValid(t *testing.T) {
	if err := Validate(Default()); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}
