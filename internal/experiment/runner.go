package experiment

import (
	"context"
	"fmt"

	"github.com/GoSim-25-26J-441/readout-calibration/internal/fidelity"
	"github.com/GoSim-25-26J-441/readout-calibration/internal/hardware"
	"github.com/GoSim-25-26J-441/readout-calibration/internal/iqsim"
	"github.com/GoSim-25-26J-441/readout-calibration/internal/policy"
	"github.com/GoSim-25-26J-441/readout-calibration/internal/pulse"
	"github.com/GoSim-25-26J-441/readout-calibration/pkg/config"
	"github.com/GoSim-25-26J-441/readout-calibration/pkg/logger"
	"github.com/GoSim-25-26J-441/readout-calibration/pkg/models"
	"github.com/GoSim-25-26J-441/readout-calibration/pkg/utils"
)

// Request is one readout experiment. Beta is only read for DRAG pulses and
// defaults to pulse.DefaultDRAGBeta. A zero NumShots uses the runner's default.
type Request struct {
	PulseType models.PulseType
	Amplitude float64
	Frequency float64
	Beta      *float64
	NumShots  int
}

// Runner executes single readout experiments.
type Runner interface {
	Run(ctx context.Context, req Request) (*models.ExperimentResult, error)
	Mode() Mode
}

// RunnerFunc adapts a function to a simulated-mode Runner.
type RunnerFunc func(ctx context.Context, req Request) (*models.ExperimentResult, error)

func (f RunnerFunc) Run(ctx context.Context, req Request) (*models.ExperimentResult, error) {
	return f(ctx, req)
}

func (f RunnerFunc) Mode() Mode { return ModeSimulated }

// Experiment is the Runner backed by a simulated or hardware Backend.
type Experiment struct {
	backend        Backend
	amplitudeRange models.ParameterRange
	frequencyRange models.ParameterRange
	numShots       int
}

// Option configures an Experiment.
type Option func(*Experiment)

// WithRanges sets the validation ranges for amplitude and frequency.
func WithRanges(amplitude, frequency models.ParameterRange) Option {
	return func(e *Experiment) {
		e.amplitudeRange = amplitude
		e.frequencyRange = frequency
	}
}

// WithNumShots sets the default shot count per state.
func WithNumShots(n int) Option {
	return func(e *Experiment) { e.numShots = n }
}

// NewRunner creates an Experiment over backend.
func NewRunner(backend Backend, opts ...Option) *Experiment {
	e := &Experiment{
		backend:        backend,
		amplitudeRange: config.DefaultAmplitudeRange,
		frequencyRange: config.DefaultFrequencyRange,
		numShots:       config.DefaultNumShots,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// NewRunnerFromConfig selects the backend from cfg. Without a hardware
// section the runner simulates. With one, session is used when given;
// otherwise an emulated device gets an EmulatorSession and any other device
// is rejected.
func NewRunnerFromConfig(cfg *config.Config, session hardware.Session) (*Experiment, error) {
	sim := iqsim.NewSimulator(
		iqsim.WithNoiseLevel(cfg.Simulation.NoiseLevel),
		iqsim.WithFrequencyShiftScale(cfg.Simulation.FrequencyShiftScale),
		iqsim.WithSeed(cfg.Simulation.Seed),
	)
	opts := []Option{
		WithRanges(cfg.Ranges.Amplitude, cfg.Ranges.Frequency),
		WithNumShots(cfg.Simulation.NumShots),
	}

	if cfg.Hardware == nil {
		return NewRunner(NewSimulatedBackend(sim), opts...), nil
	}

	setup, err := hardware.SetupFromConfig(cfg.Hardware)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrHardware, err)
	}
	timeout, err := cfg.Hardware.GetAcquireTimeout()
	if err != nil {
		return nil, fmt.Errorf("%w: acquire timeout: %w", ErrValidation, err)
	}
	if session == nil {
		if !setup.Emulated() {
			return nil, fmt.Errorf("%w: %w: %s", ErrHardware, hardware.ErrNoDriver, setup.Name())
		}
		session = hardware.NewEmulatorSession(sim)
	}
	breaker, err := policy.NewCircuitBreakerFromConfig(cfg.Hardware.CircuitBreaker)
	if err != nil {
		return nil, fmt.Errorf("%w: circuit breaker: %w", ErrValidation, err)
	}
	backend := NewHardwareBackend(session, setup, timeout)
	if breaker.Enabled() {
		backend.SetCircuitBreaker(breaker)
	}
	return NewRunner(backend, opts...), nil
}

// Mode reports the backend mode.
func (e *Experiment) Mode() Mode {
	return e.backend.Mode()
}

// Close releases the backend.
func (e *Experiment) Close() error {
	return e.backend.Close()
}

// Run executes one experiment and scores it.
func (e *Experiment) Run(ctx context.Context, req Request) (*models.ExperimentResult, error) {
	if !req.PulseType.Valid() {
		return nil, fmt.Errorf("%w %q", ErrInvalidPulseType, req.PulseType)
	}
	if err := validateValue("amplitude", req.Amplitude, e.amplitudeRange); err != nil {
		return nil, err
	}
	if err := validateValue("frequency", req.Frequency, e.frequencyRange); err != nil {
		return nil, err
	}
	var beta *float64
	if req.PulseType.HasBeta() && req.Beta != nil {
		if !utils.IsFinite(*req.Beta) {
			return nil, fmt.Errorf("%w: beta must be finite, got %v", ErrValidation, *req.Beta)
		}
		beta = req.Beta
	}
	shots := req.NumShots
	if shots == 0 {
		shots = e.numShots
	}
	if shots < 0 {
		return nil, fmt.Errorf("%w: shot count must be positive, got %d", ErrValidation, shots)
	}

	shape, err := pulse.New(req.PulseType, req.Amplitude, beta)
	if err != nil {
		return nil, err
	}

	c0, c1, err := e.backend.Acquire(ctx, shape, req.Frequency, shots)
	if err != nil {
		return nil, err
	}

	fid, err := fidelity.CalculateFidelity(c0, c1)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSimulation, err)
	}

	logger.Debug("experiment completed",
		"pulse_type", req.PulseType,
		"amplitude", req.Amplitude,
		"frequency", req.Frequency,
		"mode", e.backend.Mode(),
		"fidelity", fid)

	return &models.ExperimentResult{
		PulseType: req.PulseType,
		Amplitude: req.Amplitude,
		Frequency: req.Frequency,
		Beta:      models.CopyBeta(shape.Beta),
		IQData0:   c0,
		IQData1:   c1,
		Fidelity:  fid,
	}, nil
}

func validateValue(name string, v float64, r models.ParameterRange) error {
	if !utils.IsFinite(v) {
		return fmt.Errorf("%w: %s must be finite, got %v", ErrValidation, name, v)
	}
	if !r.Contains(v) {
		return fmt.Errorf("%w: %s %v outside valid range %s", ErrValidation, name, v, r)
	}
	return nil
}
