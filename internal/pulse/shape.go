// Package pulse describes readout and control pulse shapes.
//
// A Shape is an immutable value built per experiment. Nothing in this package
// keeps per-process pulse state, so a DRAG beta supplied for one call cannot
// leak into the next.
package pulse

import (
	"fmt"
	"math"
	"time"

	"github.com/GoSim-25-26J-441/readout-calibration/pkg/models"
)

const (
	// ReadoutLength is the length of every readout pulse.
	ReadoutLength = time.Microsecond
	// PiPulseLength is the length of the x180 excitation pulse.
	PiPulseLength = 100 * time.Nanosecond
	// DefaultDRAGBeta is used when a DRAG shape is requested without a beta.
	DefaultDRAGBeta = 0.5
	// gaussianSigmas is the number of standard deviations spanned by half the pulse.
	gaussianSigmas = 3.0
)

// Shape is one pulse definition.
type Shape struct {
	Type      models.PulseType
	UID       string
	Length    time.Duration
	Amplitude float64
	Beta      *float64
}

// New builds the readout shape for pulseType at the given amplitude. beta is
// only honoured for DRAG pulses.
func New(pulseType models.PulseType, amplitude float64, beta *float64) (Shape, error) {
	s := Shape{Type: pulseType, Length: ReadoutLength, Amplitude: amplitude}
	switch pulseType {
	case models.PulseGaussian:
		s.UID = "readout_gaussian"
	case models.PulseSquare:
		s.UID = "readout_square"
	case models.PulseDRAG:
		s.UID = "readout_drag"
		if beta != nil {
			s.Beta = models.Float64(*beta)
		} else {
			s.Beta = models.Float64(DefaultDRAGBeta)
		}
	default:
		return Shape{}, fmt.Errorf("%w %q", models.ErrInvalidPulseType, pulseType)
	}
	return s, nil
}

// PiPulse returns the Gaussian x180 pulse that excites the qubit to |1>.
func PiPulse() Shape {
	return Shape{
		Type:      models.PulseGaussian,
		UID:       "x180",
		Length:    PiPulseLength,
		Amplitude: 1.0,
	}
}

// BetaValue returns the DRAG beta, or 0 for shapes without one.
func (s Shape) BetaValue() float64 {
	if s.Beta == nil {
		return 0
	}
	return *s.Beta
}

// Envelope samples the complex envelope at n evenly spaced points across the
// pulse. For DRAG the quadrature component is beta times the time derivative
// of the Gaussian in-phase component, with time measured in units of the
// pulse length.
func (s Shape) Envelope(n int) (i, q []float64) {
	if n <= 0 {
		return nil, nil
	}
	i = make([]float64, n)
	q = make([]float64, n)

	center := float64(n-1) / 2
	sigma := center / gaussianSigmas
	if sigma == 0 {
		sigma = 1
	}

	for k := 0; k < n; k++ {
		switch s.Type {
		case models.PulseSquare:
			i[k] = s.Amplitude
		case models.PulseGaussian, models.PulseDRAG:
			x := float64(k) - center
			g := s.Amplitude * math.Exp(-x*x/(2*sigma*sigma))
			i[k] = g
			if s.Type == models.PulseDRAG {
				// d/dt of the Gaussian, rescaled from sample index to pulse length
				dg := -x / (sigma * sigma) * g * float64(n)
				q[k] = s.BetaValue() * dg
			}
		}
	}
	return i, q
}
