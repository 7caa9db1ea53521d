package optimizer

import (
	"errors"
	"testing"

	"github.com/GoSim-25-26J-441/readout-calibration/internal/experiment"
	"github.com/GoSim-25-26J-441/readout-calibration/pkg/config"
	"github.com/GoSim-25-26J-441/readout-calibration/pkg/models"
)

func TestBuildGridSize(t *testing.T) {
	tests := []struct {
		name       string
		pulseTypes []models.PulseType
		steps      int
		want       int
	}{
		{"square only", []models.PulseType{models.PulseSquare}, 3, 9},
		{"drag only", []models.PulseType{models.PulseDRAG}, 3, 27},
		{"all shapes", models.AllPulseTypes(), 5, 25 + 25 + 125},
		{"single step", models.AllPulseTypes(), 1, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			points, err := BuildGrid(tt.pulseTypes, config.DefaultAmplitudeRange, config.DefaultFrequencyRange, config.DefaultBetaRange, tt.steps)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(points) != tt.want || GridSize(tt.pulseTypes, tt.steps) != tt.want {
				t.Fatalf("expected %d points, got %d (GridSize %d)", tt.want, len(points), GridSize(tt.pulseTypes, tt.steps))
			}
			for i, p := range points {
				if p.Index != i {
					t.Fatalf("point %d has index %d", i, p.Index)
				}
			}
		})
	}
}

func TestBuildGridOrder(t *testing.T) {
	points, err := BuildGrid([]models.PulseType{models.PulseDRAG, models.PulseSquare}, models.NewRange(0, 1), models.NewRange(6, 7), models.NewRange(0.1, 1.0), 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []Point{
		{PulseType: models.PulseDRAG, Amplitude: 0, Frequency: 6, Beta: models.Float64(0.1)},
		{PulseType: models.PulseDRAG, Amplitude: 0, Frequency: 6, Beta: models.Float64(1.0)},
		{PulseType: models.PulseDRAG, Amplitude: 0, Frequency: 7, Beta: models.Float64(0.1)},
		{PulseType: models.PulseDRAG, Amplitude: 0, Frequency: 7, Beta: models.Float64(1.0)},
		{PulseType: models.PulseDRAG, Amplitude: 1, Frequency: 6, Beta: models.Float64(0.1)},
		{PulseType: models.PulseDRAG, Amplitude: 1, Frequency: 6, Beta: models.Float64(1.0)},
		{PulseType: models.PulseDRAG, Amplitude: 1, Frequency: 7, Beta: models.Float64(0.1)},
		{PulseType: models.PulseDRAG, Amplitude: 1, Frequency: 7, Beta: models.Float64(1.0)},
		{PulseType: models.PulseSquare, Amplitude: 0, Frequency: 6},
		{PulseType: models.PulseSquare, Amplitude: 0, Frequency: 7},
		{PulseType: models.PulseSquare, Amplitude: 1, Frequency: 6},
		{PulseType: models.PulseSquare, Amplitude: 1, Frequency: 7},
	}
	if len(points) != len(want) {
		t.Fatalf("expected %d points, got %d", len(want), len(points))
	}
	for i, w := range want {
		p := points[i]
		if p.PulseType != w.PulseType || p.Amplitude != w.Amplitude || p.Frequency != w.Frequency {
			t.Errorf("point %d: got %s", i, p)
		}
		if (p.Beta == nil) != (w.Beta == nil) || (p.Beta != nil && *p.Beta != *w.Beta) {
			t.Errorf("point %d: beta got %v, want %v", i, p.Beta, w.Beta)
		}
	}
}

func TestBuildGridValidation(t *testing.T) {
	amp, freq, beta := config.DefaultAmplitudeRange, config.DefaultFrequencyRange, config.DefaultBetaRange
	tests := []struct {
		name string
		fn   func() error
		want error
	}{
		{"zero steps", func() error { _, err := BuildGrid(models.AllPulseTypes(), amp, freq, beta, 0); return err }, experiment.ErrValidation},
		{"negative steps", func() error { _, err := BuildGrid(models.AllPulseTypes(), amp, freq, beta, -2); return err }, experiment.ErrValidation},
		{"no pulse types", func() error { _, err := BuildGrid(nil, amp, freq, beta, 2); return err }, experiment.ErrValidation},
		{"inverted range", func() error {
			_, err := BuildGrid(models.AllPulseTypes(), models.NewRange(2, 1), freq, beta, 2)
			return err
		}, experiment.ErrValidation},
		{"unknown pulse", func() error {
			_, err := BuildGrid([]models.PulseType{"Sine"}, amp, freq, beta, 2)
			return err
		}, experiment.ErrInvalidPulseType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.fn(); !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestRangeAround(t *testing.T) {
	r := RangeAround(1.25, config.DefaultAmplitudeScaling)
	if !almostEqual(r.Min, 1.0) || !almostEqual(r.Max, 1.5) {
		t.Fatalf("unexpected amplitude range %s", r)
	}
	r = RangeAround(6.5, config.DefaultFrequencyScaling)
	if !almostEqual(r.Min, 6.175) || !almostEqual(r.Max, 6.825) {
		t.Fatalf("unexpected frequency range %s", r)
	}
	r = RangeAround(-2, 0.5)
	if r.Min > r.Max {
		t.Fatalf("negative center produced inverted range %s", r)
	}
}

func TestClampRange(t *testing.T) {
	r := ClampRange(RangeAround(6.5, 0.05), config.DefaultFrequencyRange)
	if r.Min != 6.4 || r.Max != 6.6 {
		t.Fatalf("expected clamp to (6.4, 6.6), got %s", r)
	}
	r = ClampRange(models.NewRange(3, 4), config.DefaultAmplitudeRange)
	if r.Min != 2 || r.Max != 2 {
		t.Fatalf("expected collapse onto 2, got %s", r)
	}
}

func almostEqual(a, b float64) bool {
	d := a - b
	return d < 1e-9 && d > -1e-9
}
