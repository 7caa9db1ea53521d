package hardware

import (
	"context"
	"fmt"
	"sync"

	"github.com/GoSim-25-26J-441/readout-calibration/internal/iqsim"
	"github.com/GoSim-25-26J-441/readout-calibration/pkg/logger"
)

// Session is a connection to one device.
type Session interface {
	Connect(ctx context.Context, setup *DeviceSetup) error
	Run(ctx context.Context, program Program) (Acquisition, error)
	Close() error
}

// EmulatorSession runs programs against the synthetic signal model.
type EmulatorSession struct {
	sim *iqsim.Simulator

	mu    sync.Mutex
	setup *DeviceSetup
}

// NewEmulatorSession creates an emulator backed by sim.
func NewEmulatorSession(sim *iqsim.Simulator) *EmulatorSession {
	if sim == nil {
		sim = iqsim.NewSimulator()
	}
	return &EmulatorSession{sim: sim}
}

// Connect attaches the emulator to an emulated setup with both channels wired.
func (s *EmulatorSession) Connect(ctx context.Context, setup *DeviceSetup) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if setup == nil {
		return fmt.Errorf("device setup is required")
	}
	if !setup.Emulated() {
		return fmt.Errorf("%w: %s", ErrNoDriver, setup.DeviceID)
	}
	if err := setup.RequireChannels(); err != nil {
		return err
	}

	s.mu.Lock()
	s.setup = setup
	s.mu.Unlock()
	logger.Debug("emulator session connected", "signals", setup.Signals())
	return nil
}

// Run acquires both handles for program.
func (s *EmulatorSession) Run(ctx context.Context, program Program) (Acquisition, error) {
	s.mu.Lock()
	connected := s.setup != nil
	s.mu.Unlock()
	if !connected {
		return nil, ErrNotConnected
	}
	if err := program.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	amp := program.Readout.Amplitude
	c0, err := s.sim.Cloud(iqsim.StateGround, amp, program.Frequency, program.Shots)
	if err != nil {
		return nil, err
	}
	c1, err := s.sim.Cloud(iqsim.StateExcited, amp, program.Frequency, program.Shots)
	if err != nil {
		return nil, err
	}
	return Acquisition{HandleGround: c0, HandleExcited: c1}, nil
}

// Close detaches the session. It is safe to call more than once.
func (s *EmulatorSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setup = nil
	return nil
}
