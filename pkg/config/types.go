package config

import (
	"time"

	"github.com/GoSim-25-26J-441/readout-calibration/pkg/models"
)

// Config represents the readout calibration configuration
type Config struct {
	LogLevel     string       `yaml:"log_level"`
	Simulation   Simulation   `yaml:"simulation"`
	Ranges       Ranges       `yaml:"ranges"`
	Optimization Optimization `yaml:"optimization"`
	Hardware     *Hardware    `yaml:"hardware,omitempty"`
	Storage      Storage      `yaml:"storage"`
	Server       Server       `yaml:"server"`
}

// Simulation configures the synthetic IQ signal model
type Simulation struct {
	NoiseLevel          float64 `yaml:"noise_level"`
	FrequencyShiftScale float64 `yaml:"frequency_shift_scale"`
	NumShots            int     `yaml:"num_shots"`
	Seed                int64   `yaml:"seed"` // 0 seeds from the clock
}

// Ranges bounds the swept parameters. Amplitude and Frequency are also the
// validation ranges applied to every experiment.
type Ranges struct {
	Amplitude models.ParameterRange `yaml:"amplitude"`
	Frequency models.ParameterRange `yaml:"frequency"`
	Beta      models.ParameterRange `yaml:"beta"`
}

// Optimization configures the grid search
type Optimization struct {
	PulseTypes       []string `yaml:"pulse_types"`
	Steps            int      `yaml:"steps"`
	Workers          int      `yaml:"workers"`
	FailurePolicy    string   `yaml:"failure_policy"` // abort or skip
	AmplitudeScaling float64  `yaml:"amplitude_scaling"`
	FrequencyScaling float64  `yaml:"frequency_scaling"`
}

// Hardware selects a physical device backend. Absent means simulation.
type Hardware struct {
	DeviceID       string `yaml:"device_id"` // empty connects to the device emulator
	ReadoutPort    int    `yaml:"readout_port"`
	DrivePort      int    `yaml:"drive_port"`
	AcquireTimeout string `yaml:"acquire_timeout"` // e.g. "30s"

	CircuitBreaker *CircuitBreaker `yaml:"circuit_breaker,omitempty"`
}

// CircuitBreaker stops acquisitions after repeated device failures
type CircuitBreaker struct {
	FailureThreshold int    `yaml:"failure_threshold"` // 0 disables the breaker
	SuccessThreshold int    `yaml:"success_threshold"`
	OpenTimeout      string `yaml:"open_timeout"` // e.g. "30s"
}

// Storage configures result persistence
type Storage struct {
	ResultsDir       string `yaml:"results_dir"`
	Format           string `yaml:"format"` // json or csv
	Driver           string `yaml:"driver"` // none, sqlite or badger
	Path             string `yaml:"path"`
	CompressionLevel int    `yaml:"compression_level"`
}

// Server configures the calibration daemon
type Server struct {
	HTTPAddr  string   `yaml:"http_addr"`
	GRPCAddr  string   `yaml:"grpc_addr"`
	Callbacks Callback `yaml:"callbacks"`

	// RateLimitPerSecond caps experiment and calibration submissions per route; 0 is unlimited
	RateLimitPerSecond int `yaml:"rate_limit_per_second"`
}

// Callback configures completion notifications
type Callback struct {
	MaxRetries int    `yaml:"max_retries"`
	Backoff    string `yaml:"backoff"` // exponential, constant
	BaseMs     int    `yaml:"base_ms"`
	TimeoutMs  int    `yaml:"timeout_ms"`
}

// GetAcquireTimeout parses the hardware acquire timeout. Empty means no timeout.
func (h *Hardware) GetAcquireTimeout() (time.Duration, error) {
	if h.AcquireTimeout == "" {
		return 0, nil
	}
	return time.ParseDuration(h.AcquireTimeout)
}

// GetOpenTimeout parses the breaker open timeout. Empty means 30s.
func (c *CircuitBreaker) GetOpenTimeout() (time.Duration, error) {
	if c.OpenTimeout == "" {
		return 30 * time.Second, nil
	}
	return time.ParseDuration(c.OpenTimeout)
}

// ParsedPulseTypes resolves the configured pulse type names
func (o *Optimization) ParsedPulseTypes() ([]models.PulseType, error) {
	out := make([]models.PulseType, 0, len(o.PulseTypes))
	for _, name := range o.PulseTypes {
		pt, err := models.ParsePulseType(name)
		if err != nil {
			return nil, err
		}
		out = append(out, pt)
	}
	return out, nil
}
