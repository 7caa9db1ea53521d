package hardware

import (
	"errors"
	"fmt"
	"sort"

	"github.com/GoSim-25-26J-441/readout-calibration/pkg/config"
)

const (
	SignalReadout = "readout_signal"
	SignalDrive   = "qubit_drive"

	DefaultReadoutPort = 1
	DefaultDrivePort   = 2
)

var (
	ErrNotConnected     = errors.New("device session is not connected")
	ErrChannelMissing   = errors.New("device channel not configured")
	ErrNoDriver         = errors.New("no driver available for device")
	ErrAcquisitionEmpty = errors.New("acquisition returned no data")
)

// DeviceSetup describes one device and its signal wiring.
type DeviceSetup struct {
	DeviceID string
	Channels map[string]int
}

// NewDeviceSetup returns an unwired setup. An empty id selects the emulator.
func NewDeviceSetup(deviceID string) *DeviceSetup {
	return &DeviceSetup{
		DeviceID: deviceID,
		Channels: make(map[string]int),
	}
}

// Emulated reports whether the setup targets the device emulator.
func (d *DeviceSetup) Emulated() bool {
	return d.DeviceID == ""
}

// Name is the device id, or "emulator".
func (d *DeviceSetup) Name() string {
	if d.Emulated() {
		return "emulator"
	}
	return d.DeviceID
}

// ConfigureChannel maps signal onto port. Ports must be positive and unique.
func (d *DeviceSetup) ConfigureChannel(signal string, port int) error {
	if signal == "" {
		return fmt.Errorf("signal name cannot be empty")
	}
	if port <= 0 {
		return fmt.Errorf("signal %s: port must be positive, got %d", signal, port)
	}
	for other, p := range d.Channels {
		if other != signal && p == port {
			return fmt.Errorf("signal %s: port %d already used by %s", signal, port, other)
		}
	}
	d.Channels[signal] = port
	return nil
}

// Port returns the port of a configured signal.
func (d *DeviceSetup) Port(signal string) (int, error) {
	p, ok := d.Channels[signal]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrChannelMissing, signal)
	}
	return p, nil
}

// Signals lists the configured signal names in sorted order.
func (d *DeviceSetup) Signals() []string {
	out := make([]string, 0, len(d.Channels))
	for s := range d.Channels {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// RequireChannels checks that both readout and drive are wired.
func (d *DeviceSetup) RequireChannels() error {
	for _, s := range []string{SignalReadout, SignalDrive} {
		if _, err := d.Port(s); err != nil {
			return err
		}
	}
	return nil
}

// Configure wires the readout and drive signals. Zero ports fall back to the defaults.
func Configure(d *DeviceSetup, readoutPort, drivePort int) error {
	if readoutPort == 0 {
		readoutPort = DefaultReadoutPort
	}
	if drivePort == 0 {
		drivePort = DefaultDrivePort
	}
	if err := d.ConfigureChannel(SignalReadout, readoutPort); err != nil {
		return err
	}
	return d.ConfigureChannel(SignalDrive, drivePort)
}

// SetupFromConfig builds and wires a setup from the hardware config section.
func SetupFromConfig(hw *config.Hardware) (*DeviceSetup, error) {
	if hw == nil {
		return nil, fmt.Errorf("hardware configuration is required")
	}
	setup := NewDeviceSetup(hw.DeviceID)
	if err := Configure(setup, hw.ReadoutPort, hw.DrivePort); err != nil {
		return nil, fmt.Errorf("configure device %s: %w", setup.Name(), err)
	}
	return setup, nil
}
