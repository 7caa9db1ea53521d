// Package iqsim generates synthetic IQ readout samples.
package iqsim

import (
	"errors"
	"fmt"
	"math"

	"github.com/GoSim-25-26J-441/readout-calibration/pkg/models"
	"github.com/GoSim-25-26J-441/readout-calibration/pkg/utils"
)

// State is a qubit basis state label.
type State string

const (
	StateGround  State = "0"
	StateExcited State = "1"
)

const (
	// DefaultNoiseLevel is the standard deviation of the additive Gaussian noise.
	DefaultNoiseLevel = 0.5
	// DefaultFrequencyShiftScale scales the frequency-dependent offset vector.
	DefaultFrequencyShiftScale = 0.1
)

var (
	// ErrInvalidState is returned for any state other than "0" or "1".
	ErrInvalidState = errors.New("invalid qubit state")
	// ErrSimulation is returned when a sample cannot be generated.
	ErrSimulation = errors.New("simulation failed")
)

// NormalSource draws a pair of independent normal variates.
type NormalSource interface {
	NormPair(mean, stddev float64) (float64, float64)
}

// SimulateIQResponse produces one noisy IQ sample for state at the given
// amplitude and frequency, using the default frequency shift scale.
func SimulateIQResponse(rng NormalSource, state State, amplitude, frequency, noiseLevel float64) (models.IQSample, error) {
	return simulate(rng, state, amplitude, frequency, noiseLevel, DefaultFrequencyShiftScale)
}

func simulate(rng NormalSource, state State, amplitude, frequency, noiseLevel, shiftScale float64) (models.IQSample, error) {
	var base float64
	switch state {
	case StateGround:
		base = 1
	case StateExcited:
		base = -1
	default:
		return models.IQSample{}, fmt.Errorf("%w %q: must be %q or %q", ErrInvalidState, state, StateGround, StateExcited)
	}
	if noiseLevel < 0 || math.IsNaN(noiseLevel) {
		return models.IQSample{}, fmt.Errorf("%w: noise level must be non-negative, got %v", ErrSimulation, noiseLevel)
	}

	phase := 2 * math.Pi * frequency
	i := base*amplitude + shiftScale*math.Cos(phase)
	q := shiftScale * math.Sin(phase)

	if noiseLevel > 0 {
		ni, nq := rng.NormPair(0, noiseLevel)
		i += ni
		q += nq
	}
	return models.IQSample{i, q}, nil
}

// Simulator draws IQ clouds with a fixed noise model.
type Simulator struct {
	noiseLevel float64
	shiftScale float64
	rng        *utils.RandSource
}

// Option configures a Simulator.
type Option func(*Simulator)

// WithNoiseLevel sets the noise standard deviation.
func WithNoiseLevel(level float64) Option {
	return func(s *Simulator) { s.noiseLevel = level }
}

// WithFrequencyShiftScale sets the scale of the frequency offset vector.
func WithFrequencyShiftScale(scale float64) Option {
	return func(s *Simulator) { s.shiftScale = scale }
}

// WithSeed makes the simulator's draws reproducible. Zero seeds from the clock.
func WithSeed(seed int64) Option {
	return func(s *Simulator) { s.rng = utils.NewRandSource(seed) }
}

// WithRandSource shares an existing random source.
func WithRandSource(rng *utils.RandSource) Option {
	return func(s *Simulator) { s.rng = rng }
}

// NewSimulator creates a simulator with the default noise model.
func NewSimulator(opts ...Option) *Simulator {
	s := &Simulator{
		noiseLevel: DefaultNoiseLevel,
		shiftScale: DefaultFrequencyShiftScale,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.rng == nil {
		s.rng = utils.NewRandSource(0)
	}
	return s
}

// NoiseLevel returns the configured noise standard deviation.
func (s *Simulator) NoiseLevel() float64 {
	return s.noiseLevel
}

// Sample draws a single IQ point.
func (s *Simulator) Sample(state State, amplitude, frequency float64) (models.IQSample, error) {
	return simulate(s.rng, state, amplitude, frequency, s.noiseLevel, s.shiftScale)
}

// Cloud draws n independent IQ points for state.
func (s *Simulator) Cloud(state State, amplitude, frequency float64, n int) (models.IQCloud, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: shot count must be positive, got %d", ErrSimulation, n)
	}
	cloud := make(models.IQCloud, n)
	for k := range cloud {
		p, err := s.Sample(state, amplitude, frequency)
		if err != nil {
			return nil, err
		}
		cloud[k] = p
	}
	return cloud, nil
}
