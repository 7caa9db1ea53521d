package config

import (
	"fmt"
	"os"
)

// LoadConfig loads and parses a configuration file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	cfg, err := ParseConfigYAML(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return cfg, nil
}

// LoadOrDefault loads path, or returns Default() when path is empty
func LoadOrDefault(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	return LoadConfig(path)
}

// Validate performs validation on the configuration
func Validate(cfg *Config) error {
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[cfg.LogLevel] {
		return fmt.Errorf("invalid log_level: %s (must be debug, info, warn, or error)", cfg.LogLevel)
	}

	if err := validateSimulation(&cfg.Simulation); err != nil {
		return fmt.Errorf("simulation validation failed: %w", err)
	}
	if err := validateRanges(&cfg.Ranges); err != nil {
		return fmt.Errorf("ranges validation failed: %w", err)
	}
	if err := validateOptimization(&cfg.Optimization); err != nil {
		return fmt.Errorf("optimization validation failed: %w", err)
	}
	if cfg.Hardware != nil {
		if err := validateHardware(cfg.Hardware); err != nil {
			return fmt.Errorf("hardware validation failed: %w", err)
		}
	}
	if err := validateStorage(&cfg.Storage); err != nil {
		return fmt.Errorf("storage validation failed: %w", err)
	}
	if err := validateServer(&cfg.Server); err != nil {
		return fmt.Errorf("server validation failed: %w", err)
	}
	return nil
}

func validateSimulation(s *Simulation) error {
	if s.NoiseLevel < 0 {
		return fmt.Errorf("noise_level cannot be negative, got %f", s.NoiseLevel)
	}
	if s.FrequencyShiftScale < 0 {
		return fmt.Errorf("frequency_shift_scale cannot be negative, got %f", s.FrequencyShiftScale)
	}
	if s.NumShots <= 0 {
		return fmt.Errorf("num_shots must be positive, got %d", s.NumShots)
	}
	return nil
}

func validateRanges(r *Ranges) error {
	if err := r.Amplitude.Validate(); err != nil {
		return fmt.Errorf("amplitude: %w", err)
	}
	if err := r.Frequency.Validate(); err != nil {
		return fmt.Errorf("frequency: %w", err)
	}
	if err := r.Beta.Validate(); err != nil {
		return fmt.Errorf("beta: %w", err)
	}
	return nil
}

func validateOptimization(o *Optimization) error {
	if len(o.PulseTypes) == 0 {
		return fmt.Errorf("at least one pulse type must be configured")
	}
	if _, err := o.ParsedPulseTypes(); err != nil {
		return err
	}
	if o.Steps <= 0 {
		return fmt.Errorf("steps must be positive, got %d", o.Steps)
	}
	if o.Workers <= 0 {
		return fmt.Errorf("workers must be positive, got %d", o.Workers)
	}
	if o.FailurePolicy != "abort" && o.FailurePolicy != "skip" {
		return fmt.Errorf("invalid failure_policy: %s (must be abort or skip)", o.FailurePolicy)
	}
	if o.AmplitudeScaling < 0 || o.AmplitudeScaling >= 1 {
		return fmt.Errorf("amplitude_scaling must be in [0, 1), got %f", o.AmplitudeScaling)
	}
	if o.FrequencyScaling < 0 || o.FrequencyScaling >= 1 {
		return fmt.Errorf("frequency_scaling must be in [0, 1), got %f", o.FrequencyScaling)
	}
	return nil
}

func validateHardware(h *Hardware) error {
	if h.ReadoutPort < 0 || h.DrivePort < 0 {
		return fmt.Errorf("ports cannot be negative")
	}
	if h.ReadoutPort != 0 && h.ReadoutPort == h.DrivePort {
		return fmt.Errorf("readout_port and drive_port must differ, both are %d", h.ReadoutPort)
	}
	if _, err := h.GetAcquireTimeout(); err != nil {
		return fmt.Errorf("invalid acquire_timeout %s: %w", h.AcquireTimeout, err)
	}
	if cb := h.CircuitBreaker; cb != nil {
		if cb.FailureThreshold < 0 || cb.SuccessThreshold < 0 {
			return fmt.Errorf("circuit_breaker thresholds cannot be negative")
		}
		if _, err := cb.GetOpenTimeout(); err != nil {
			return fmt.Errorf("invalid circuit_breaker open_timeout %s: %w", cb.OpenTimeout, err)
		}
	}
	return nil
}

func validateStorage(s *Storage) error {
	if s.Format != "json" && s.Format != "csv" {
		return fmt.Errorf("unsupported format: %s (must be json or csv)", s.Format)
	}
	switch s.Driver {
	case "", "none":
	case "sqlite", "badger":
		if s.Path == "" {
			return fmt.Errorf("path is required for %s storage", s.Driver)
		}
	default:
		return fmt.Errorf("invalid driver: %s (must be none, sqlite, or badger)", s.Driver)
	}
	if s.CompressionLevel < 1 || s.CompressionLevel > 4 {
		return fmt.Errorf("compression_level must be between 1 and 4, got %d", s.CompressionLevel)
	}
	return nil
}

func validateServer(s *Server) error {
	if s.Callbacks.MaxRetries < 0 {
		return fmt.Errorf("callbacks max_retries cannot be negative, got %d", s.Callbacks.MaxRetries)
	}
	if s.Callbacks.BaseMs < 0 {
		return fmt.Errorf("callbacks base_ms cannot be negative, got %d", s.Callbacks.BaseMs)
	}
	if s.Callbacks.Backoff != "exponential" && s.Callbacks.Backoff != "constant" {
		return fmt.Errorf("invalid callbacks backoff: %s (must be exponential or constant)", s.Callbacks.Backoff)
	}
	if s.RateLimitPerSecond < 0 {
		return fmt.Errorf("rate_limit_per_second cannot be negative, got %d", s.RateLimitPerSecond)
	}
	return nil
}
