package hardware

import (
	"fmt"

	"github.com/GoSim-25-26J-441/readout-calibration/internal/pulse"
	"github.com/GoSim-25-26J-441/readout-calibration/pkg/models"
	"github.com/GoSim-25-26J-441/readout-calibration/pkg/utils"
)

const (
	HandleGround  = "ground_state_handle"
	HandleExcited = "excited_state_handle"
)

// Program is one readout experiment as sent to a device.
type Program struct {
	UID       string
	Readout   pulse.Shape
	PiPulse   pulse.Shape
	Frequency float64
	Shots     int
}

// NewProgram builds the ground/excited readout sequence for shape.
func NewProgram(shape pulse.Shape, frequency float64, shots int) Program {
	return Program{
		UID:       utils.GenerateExperimentUID(string(shape.Type), shape.Amplitude, frequency),
		Readout:   shape,
		PiPulse:   pulse.PiPulse(),
		Frequency: frequency,
		Shots:     shots,
	}
}

// Validate checks the program before it is sent.
func (p Program) Validate() error {
	if p.Shots <= 0 {
		return fmt.Errorf("program %s: shots must be positive, got %d", p.UID, p.Shots)
	}
	if !p.Readout.Type.Valid() {
		return fmt.Errorf("program %s: %w %q", p.UID, models.ErrInvalidPulseType, p.Readout.Type)
	}
	return nil
}

// Acquisition holds the IQ clouds returned by a device, keyed by handle.
type Acquisition map[string]models.IQCloud

// Clouds extracts the ground and excited clouds, checking each holds shots points.
func (a Acquisition) Clouds(shots int) (models.IQCloud, models.IQCloud, error) {
	c0, ok := a[HandleGround]
	if !ok || len(c0) == 0 {
		return nil, nil, fmt.Errorf("%w: %s", ErrAcquisitionEmpty, HandleGround)
	}
	c1, ok := a[HandleExcited]
	if !ok || len(c1) == 0 {
		return nil, nil, fmt.Errorf("%w: %s", ErrAcquisitionEmpty, HandleExcited)
	}
	if len(c0) != shots || len(c1) != shots {
		return nil, nil, fmt.Errorf("expected %d shots per handle, got %d and %d", shots, len(c0), len(c1))
	}
	return c0, c1, nil
}
