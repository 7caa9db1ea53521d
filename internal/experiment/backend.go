package experiment

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/GoSim-25-26J-441/readout-calibration/internal/hardware"
	"github.com/GoSim-25-26J-441/readout-calibration/internal/iqsim"
	"github.com/GoSim-25-26J-441/readout-calibration/internal/policy"
	"github.com/GoSim-25-26J-441/readout-calibration/internal/pulse"
	"github.com/GoSim-25-26J-441/readout-calibration/pkg/logger"
	"github.com/GoSim-25-26J-441/readout-calibration/pkg/models"
)

// Mode identifies where IQ data comes from.
type Mode string

const (
	ModeSimulated Mode = "simulated"
	ModeHardware  Mode = "hardware"
)

// Backend produces the ground and excited IQ clouds for one readout setting.
type Backend interface {
	Acquire(ctx context.Context, shape pulse.Shape, frequency float64, shots int) (models.IQCloud, models.IQCloud, error)
	Mode() Mode
	Close() error
}

// SimulatedBackend draws clouds from the synthetic signal model. It is safe
// for concurrent use.
type SimulatedBackend struct {
	sim *iqsim.Simulator
}

// NewSimulatedBackend wraps sim. A nil sim uses the default noise model.
func NewSimulatedBackend(sim *iqsim.Simulator) *SimulatedBackend {
	if sim == nil {
		sim = iqsim.NewSimulator()
	}
	return &SimulatedBackend{sim: sim}
}

func (b *SimulatedBackend) Mode() Mode { return ModeSimulated }

func (b *SimulatedBackend) Close() error { return nil }

// Acquire implements Backend.
func (b *SimulatedBackend) Acquire(ctx context.Context, shape pulse.Shape, frequency float64, shots int) (models.IQCloud, models.IQCloud, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	c0, err := b.sim.Cloud(iqsim.StateGround, shape.Amplitude, frequency, shots)
	if err != nil {
		return nil, nil, simulationError(err)
	}
	c1, err := b.sim.Cloud(iqsim.StateExcited, shape.Amplitude, frequency, shots)
	if err != nil {
		return nil, nil, simulationError(err)
	}
	return c0, c1, nil
}

func simulationError(err error) error {
	if errors.Is(err, ErrSimulation) || errors.Is(err, ErrInvalidState) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrSimulation, err)
}

// HardwareBackend runs programs on a device session. Acquisitions are
// serialised: only one program is ever in flight on the session.
type HardwareBackend struct {
	session hardware.Session
	setup   *hardware.DeviceSetup
	timeout time.Duration
	breaker *policy.CircuitBreaker

	mu        sync.Mutex
	connected bool
}

// NewHardwareBackend creates a backend that connects session to setup on first use.
// A zero timeout leaves acquisitions bounded only by the caller's context.
func NewHardwareBackend(session hardware.Session, setup *hardware.DeviceSetup, timeout time.Duration) *HardwareBackend {
	return &HardwareBackend{
		session: session,
		setup:   setup,
		timeout: timeout,
	}
}

func (b *HardwareBackend) Mode() Mode { return ModeHardware }

// SetCircuitBreaker fails acquisitions fast while cb is open.
func (b *HardwareBackend) SetCircuitBreaker(cb *policy.CircuitBreaker) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.breaker = cb
}

// Acquire implements Backend. Any device failure is reported as ErrHardware.
func (b *HardwareBackend) Acquire(ctx context.Context, shape pulse.Shape, frequency float64, shots int) (models.IQCloud, models.IQCloud, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.breaker != nil && !b.breaker.Allow() {
		return nil, nil, fmt.Errorf("%w: %s: %w", ErrHardware, b.setup.Name(), policy.ErrCircuitOpen)
	}
	c0, c1, err := b.acquireLocked(ctx, shape, frequency, shots)
	if b.breaker != nil {
		switch {
		case err == nil:
			b.breaker.RecordSuccess()
		case ctx.Err() == nil:
			b.breaker.RecordFailure()
		}
	}
	return c0, c1, err
}

func (b *HardwareBackend) acquireLocked(ctx context.Context, shape pulse.Shape, frequency float64, shots int) (models.IQCloud, models.IQCloud, error) {
	if !b.connected {
		if err := b.session.Connect(ctx, b.setup); err != nil {
			return nil, nil, fmt.Errorf("%w: connect %s: %w", ErrHardware, b.setup.Name(), err)
		}
		b.connected = true
		logger.Info("device session connected", "device", b.setup.Name())
	}

	runCtx := ctx
	if b.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}

	program := hardware.NewProgram(shape, frequency, shots)
	acq, err := b.session.Run(runCtx, program)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: run %s on %s: %w", ErrHardware, program.UID, b.setup.Name(), err)
	}
	c0, c1, err := acq.Clouds(shots)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: program %s: %w", ErrHardware, program.UID, err)
	}
	return c0, c1, nil
}

// Close releases the device session.
func (b *HardwareBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.connected {
		return nil
	}
	b.connected = false
	if err := b.session.Close(); err != nil {
		return fmt.Errorf("%w: close %s: %w", ErrHardware, b.setup.Name(), err)
	}
	return nil
}
