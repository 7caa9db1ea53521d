package hardware

import (
	"errors"
	"strings"
	"testing"

	"github.com/GoSim-25-26J-441/readout-calibration/pkg/config"
)

func TestConfigureDefaults(t *testing.T) {
	setup := NewDeviceSetup("")
	if !setup.Emulated() || setup.Name() != "emulator" {
		t.Fatalf("empty device id should select the emulator, got %q", setup.Name())
	}
	if err := Configure(setup, 0, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if p, _ := setup.Port(SignalReadout); p != DefaultReadoutPort {
		t.Errorf("expected readout on port %d, got %d", DefaultReadoutPort, p)
	}
	if p, _ := setup.Port(SignalDrive); p != DefaultDrivePort {
		t.Errorf("expected drive on port %d, got %d", DefaultDrivePort, p)
	}
	if got := strings.Join(setup.Signals(), ","); got != "qubit_drive,readout_signal" {
		t.Errorf("unexpected signals %s", got)
	}
	if err := setup.RequireChannels(); err != nil {
		t.Errorf("expected channels to be wired: %v", err)
	}
}

func TestConfigureChannelErrors(t *testing.T) {
	setup := NewDeviceSetup("dev8001")
	if err := setup.ConfigureChannel("", 1); err == nil {
		t.Error("expected error for empty signal")
	}
	if err := setup.ConfigureChannel(SignalReadout, 0); err == nil {
		t.Error("expected error for non-positive port")
	}
	if err := setup.ConfigureChannel(SignalReadout, 3); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := setup.ConfigureChannel(SignalDrive, 3); err == nil {
		t.Error("expected error for port collision")
	}
	if err := setup.ConfigureChannel(SignalReadout, 4); err != nil {
		t.Errorf("re-wiring a signal should be allowed: %v", err)
	}
}

func TestRequireChannelsMissing(t *testing.T) {
	setup := NewDeviceSetup("")
	_ = setup.ConfigureChannel(SignalReadout, 1)
	if err := setup.RequireChannels(); !errors.Is(err, ErrChannelMissing) {
		t.Fatalf("expected ErrChannelMissing, got %v", err)
	}
}

func TestSetupFromConfig(t *testing.T) {
	setup, err := SetupFromConfig(&config.Hardware{DeviceID: "dev8001", ReadoutPort: 5, DrivePort: 6})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if setup.Name() != "dev8001" {
		t.Errorf("unexpected device %s", setup.Name())
	}
	if p, _ := setup.Port(SignalDrive); p != 6 {
		t.Errorf("expected drive port 6, got %d", p)
	}

	if _, err := SetupFromConfig(nil); err == nil {
		t.Error("expected error for nil config")
	}
	if _, err := SetupFromConfig(&config.Hardware{ReadoutPort: 2}); err == nil {
		t.Error("expected collision between readout port 2 and default drive port 2")
	}
}
