package experiment

import (
	"context"
	"errors"

	"github.com/GoSim-25-26J-441/readout-calibration/internal/iqsim"
	"github.com/GoSim-25-26J-441/readout-calibration/pkg/models"
)

// Error kinds. Every error returned by a Runner wraps exactly one of these
// (or a context error), so callers branch with errors.Is.
var (
	ErrValidation       = errors.New("validation error")
	ErrHardware         = errors.New("hardware error")
	ErrSimulation       = iqsim.ErrSimulation
	ErrInvalidState     = iqsim.ErrInvalidState
	ErrInvalidPulseType = models.ErrInvalidPulseType
)

// Kind names an error kind for logs and API responses.
type Kind string

const (
	KindValidation       Kind = "validation"
	KindHardware         Kind = "hardware"
	KindSimulation       Kind = "simulation"
	KindInvalidState     Kind = "invalid_state"
	KindInvalidPulseType Kind = "invalid_pulse_type"
	KindCancelled        Kind = "cancelled"
	KindUnknown          Kind = "unknown"
)

// KindOf classifies err. nil maps to the empty kind.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrInvalidPulseType):
		return KindInvalidPulseType
	case errors.Is(err, ErrInvalidState):
		return KindInvalidState
	case errors.Is(err, ErrHardware):
		return KindHardware
	case errors.Is(err, ErrSimulation):
		return KindSimulation
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCancelled
	default:
		return KindUnknown
	}
}

// IsInputError reports whether err was caused by the caller's parameters.
func IsInputError(err error) bool {
	switch KindOf(err) {
	case KindValidation, KindInvalidPulseType, KindInvalidState:
		return true
	}
	return false
}
