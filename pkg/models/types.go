package models

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// PulseType identifies a readout pulse shape
type PulseType string

const (
	PulseGaussian PulseType = "Gaussian"
	PulseSquare   PulseType = "Square"
	PulseDRAG     PulseType = "DRAG"
)

// ErrInvalidPulseType is returned for any pulse type outside the fixed set.
var ErrInvalidPulseType = errors.New("invalid pulse type")

// AllPulseTypes returns the pulse types in their canonical order.
func AllPulseTypes() []PulseType {
	return []PulseType{PulseGaussian, PulseSquare, PulseDRAG}
}

// ParsePulseType resolves a pulse type name. Matching is case-insensitive.
func ParsePulseType(s string) (PulseType, error) {
	for _, pt := range AllPulseTypes() {
		if strings.EqualFold(string(pt), strings.TrimSpace(s)) {
			return pt, nil
		}
	}
	return "", fmt.Errorf("%w %q: must be one of %v", ErrInvalidPulseType, s, AllPulseTypes())
}

// Valid reports whether p is one of the known pulse types.
func (p PulseType) Valid() bool {
	switch p {
	case PulseGaussian, PulseSquare, PulseDRAG:
		return true
	}
	return false
}

// HasBeta reports whether the pulse shape carries a beta parameter.
func (p PulseType) HasBeta() bool {
	return p == PulseDRAG
}

// ParameterRange is a closed interval [Min, Max]
type ParameterRange struct {
	Min float64 `json:"min" yaml:"min"`
	Max float64 `json:"max" yaml:"max"`
}

// NewRange builds a range; it does not validate.
func NewRange(min, max float64) ParameterRange {
	return ParameterRange{Min: min, Max: max}
}

// Validate checks that both bounds are finite and Min <= Max.
func (r ParameterRange) Validate() error {
	if math.IsNaN(r.Min) || math.IsNaN(r.Max) || math.IsInf(r.Min, 0) || math.IsInf(r.Max, 0) {
		return fmt.Errorf("range bounds must be finite, got (%v, %v)", r.Min, r.Max)
	}
	if r.Min > r.Max {
		return fmt.Errorf("range min %v is greater than max %v", r.Min, r.Max)
	}
	return nil
}

// Contains reports whether v lies within the closed range.
func (r ParameterRange) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

func (r ParameterRange) String() string {
	return fmt.Sprintf("(%g, %g)", r.Min, r.Max)
}

// IQSample is one demodulated measurement point (I, Q)
type IQSample [2]float64

// I returns the in-phase component
func (s IQSample) I() float64 { return s[0] }

// Q returns the quadrature component
func (s IQSample) Q() float64 { return s[1] }

// IQCloud is the set of shots taken for one qubit state
type IQCloud []IQSample

// ExperimentResult is the outcome of one parameter combination. Beta is set only for DRAG pulses.
type ExperimentResult struct {
	PulseType PulseType `json:"pulse_type"`
	Amplitude float64   `json:"amplitude"`
	Frequency float64   `json:"frequency"`
	Beta      *float64  `json:"beta,omitempty"`
	IQData0   IQCloud   `json:"iq_data_0,omitempty"`
	IQData1   IQCloud   `json:"iq_data_1,omitempty"`
	Fidelity  float64   `json:"fidelity"`
}

// Scalars drops the IQ clouds from the result.
func (r *ExperimentResult) Scalars() *OptimizationResult {
	return &OptimizationResult{
		PulseType: r.PulseType,
		Amplitude: r.Amplitude,
		Frequency: r.Frequency,
		Beta:      CopyBeta(r.Beta),
		Fidelity:  r.Fidelity,
	}
}

// OptimizationResult is the winning parameter tuple of a search
type OptimizationResult struct {
	PulseType PulseType `json:"pulse_type"`
	Amplitude float64   `json:"amplitude"`
	Frequency float64   `json:"frequency"`
	Beta      *float64  `json:"beta,omitempty"`
	Fidelity  float64   `json:"fidelity"`
}

func (r *OptimizationResult) String() string {
	s := fmt.Sprintf("%s pulse, Amplitude=%.3f, Frequency=%.3f", r.PulseType, r.Amplitude, r.Frequency)
	if r.Beta != nil {
		s += fmt.Sprintf(", Beta=%.3f", *r.Beta)
	}
	return s + fmt.Sprintf(", Fidelity=%.3f", r.Fidelity)
}

// Float64 returns a pointer to v.
func Float64(v float64) *float64 {
	return &v
}

// CopyBeta returns an independent copy of an optional beta.
func CopyBeta(b *float64) *float64 {
	if b == nil {
		return nil
	}
	return Float64(*b)
}
