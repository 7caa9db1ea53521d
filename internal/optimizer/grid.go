package optimizer

import (
	"fmt"

	"github.com/GoSim-25-26J-441/readout-calibration/internal/experiment"
	"github.com/GoSim-25-26J-441/readout-calibration/pkg/models"
	"github.com/GoSim-25-26J-441/readout-calibration/pkg/utils"
)

// Point is one parameter combination of the search grid. Index is its
// position in enumeration order and breaks fidelity ties.
type Point struct {
	Index     int
	PulseType models.PulseType
	Amplitude float64
	Frequency float64
	Beta      *float64
}

// Request converts the point into an experiment request.
func (p Point) Request() experiment.Request {
	return experiment.Request{
		PulseType: p.PulseType,
		Amplitude: p.Amplitude,
		Frequency: p.Frequency,
		Beta:      models.CopyBeta(p.Beta),
	}
}

func (p Point) String() string {
	s := fmt.Sprintf("#%d %s A=%.3f F=%.3f", p.Index, p.PulseType, p.Amplitude, p.Frequency)
	if p.Beta != nil {
		s += fmt.Sprintf(" B=%.3f", *p.Beta)
	}
	return s
}

// GridSize is the number of points BuildGrid produces.
func GridSize(pulseTypes []models.PulseType, steps int) int {
	if steps <= 0 {
		return 0
	}
	n := 0
	for _, pt := range pulseTypes {
		if pt.HasBeta() {
			n += steps * steps * steps
		} else {
			n += steps * steps
		}
	}
	return n
}

// BuildGrid enumerates pulse types in the given order, then amplitude,
// frequency and, for DRAG only, beta. Each axis holds steps linearly spaced
// values including both endpoints.
func BuildGrid(pulseTypes []models.PulseType, amplitude, frequency, beta models.ParameterRange, steps int) ([]Point, error) {
	if steps <= 0 {
		return nil, fmt.Errorf("%w: steps must be positive, got %d", experiment.ErrValidation, steps)
	}
	if len(pulseTypes) == 0 {
		return nil, fmt.Errorf("%w: at least one pulse type is required", experiment.ErrValidation)
	}
	for name, r := range map[string]models.ParameterRange{"amplitude": amplitude, "frequency": frequency, "beta": beta} {
		if err := r.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %s range: %w", experiment.ErrValidation, name, err)
		}
	}
	for _, pt := range pulseTypes {
		if !pt.Valid() {
			return nil, fmt.Errorf("%w %q", experiment.ErrInvalidPulseType, pt)
		}
	}

	amps := utils.Linspace(amplitude.Min, amplitude.Max, steps)
	freqs := utils.Linspace(frequency.Min, frequency.Max, steps)
	betas := utils.Linspace(beta.Min, beta.Max, steps)

	points := make([]Point, 0, GridSize(pulseTypes, steps))
	for _, pt := range pulseTypes {
		for _, a := range amps {
			for _, f := range freqs {
				if !pt.HasBeta() {
					points = append(points, Point{Index: len(points), PulseType: pt, Amplitude: a, Frequency: f})
					continue
				}
				for _, b := range betas {
					points = append(points, Point{Index: len(points), PulseType: pt, Amplitude: a, Frequency: f, Beta: models.Float64(b)})
				}
			}
		}
	}
	return points, nil
}

// RangeAround returns (center*(1-scaling), center*(1+scaling)), ordered so
// that Min <= Max for negative centers.
func RangeAround(center, scaling float64) models.ParameterRange {
	lo, hi := center*(1-scaling), center*(1+scaling)
	if lo > hi {
		lo, hi = hi, lo
	}
	return models.NewRange(lo, hi)
}

// ClampRange intersects r with bounds. A range entirely outside bounds
// collapses onto the nearest bound.
func ClampRange(r, bounds models.ParameterRange) models.ParameterRange {
	return models.NewRange(
		utils.ClampFloat64(r.Min, bounds.Min, bounds.Max),
		utils.ClampFloat64(r.Max, bounds.Min, bounds.Max),
	)
}
