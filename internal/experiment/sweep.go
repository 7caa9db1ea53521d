package experiment

import (
	"context"
	"fmt"

	"github.com/GoSim-25-26J-441/readout-calibration/pkg/models"
	"github.com/GoSim-25-26J-441/readout-calibration/pkg/utils"
)

// DefaultSweepPoints is the number of values a range sweep visits.
const DefaultSweepPoints = 4

// SweepParam names the parameter varied by RunRange.
type SweepParam string

const (
	SweepAmplitude SweepParam = "amplitude"
	SweepFrequency SweepParam = "frequency"
)

// ParseSweepParam resolves a sweep parameter name.
func ParseSweepParam(s string) (SweepParam, error) {
	switch SweepParam(s) {
	case SweepAmplitude, SweepFrequency:
		return SweepParam(s), nil
	}
	return "", fmt.Errorf("%w: sweep parameter must be amplitude or frequency, got %q", ErrValidation, s)
}

// RunSingle runs every pulse type once at the given amplitude and frequency.
func RunSingle(ctx context.Context, r Runner, pulseTypes []models.PulseType, amplitude, frequency float64) ([]*models.ExperimentResult, error) {
	results := make([]*models.ExperimentResult, 0, len(pulseTypes))
	for _, pt := range pulseTypes {
		res, err := r.Run(ctx, Request{PulseType: pt, Amplitude: amplitude, Frequency: frequency})
		if err != nil {
			return results, fmt.Errorf("%s at amplitude %v, frequency %v: %w", pt, amplitude, frequency, err)
		}
		results = append(results, res)
	}
	return results, nil
}

// RunRange sweeps param over span in points linearly spaced values for each
// pulse type, holding the other parameter at fixed. points <= 0 uses
// DefaultSweepPoints.
func RunRange(ctx context.Context, r Runner, pulseTypes []models.PulseType, param SweepParam, span models.ParameterRange, fixed float64, points int) ([]*models.ExperimentResult, error) {
	if err := span.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s range: %w", ErrValidation, param, err)
	}
	if points <= 0 {
		points = DefaultSweepPoints
	}
	values := utils.Linspace(span.Min, span.Max, points)

	results := make([]*models.ExperimentResult, 0, len(pulseTypes)*len(values))
	for _, pt := range pulseTypes {
		for _, v := range values {
			req := Request{PulseType: pt}
			switch param {
			case SweepAmplitude:
				req.Amplitude, req.Frequency = v, fixed
			case SweepFrequency:
				req.Amplitude, req.Frequency = fixed, v
			default:
				return results, fmt.Errorf("%w: unknown sweep parameter %q", ErrValidation, param)
			}
			res, err := r.Run(ctx, req)
			if err != nil {
				return results, fmt.Errorf("%s sweep of %s at %v: %w", param, pt, v, err)
			}
			results = append(results, res)
		}
	}
	return results, nil
}
