package utils

import (
	"math"
	"testing"
)

func TestLinspace(t *testing.T) {
	tests := []struct {
		name        string
		start, stop float64
		n           int
		want        []float64
	}{
		{"five points", 0.1, 1.0, 5, []float64{0.1, 0.325, 0.55, 0.775, 1.0}},
		{"single point yields start", 0.5, 2.0, 1, []float64{0.5}},
		{"two points are endpoints", 6.4, 6.6, 2, []float64{6.4, 6.6}},
		{"degenerate range", 1, 1, 3, []float64{1, 1, 1}},
		{"zero points", 0, 1, 0, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Linspace(tt.start, tt.stop, tt.n)
			if len(got) != len(tt.want) {
				t.Fatalf("expected %d values, got %d (%v)", len(tt.want), len(got), got)
			}
			for i := range got {
				if math.Abs(got[i]-tt.want[i]) > 1e-12 {
					t.Errorf("index %d: expected %v, got %v", i, tt.want[i], got[i])
				}
			}
		})
	}
}

func TestLinspaceEndpointsExact(t *testing.T) {
	got := Linspace(6.08, 6.72, 7)
	if got[0] != 6.08 || got[len(got)-1] != 6.72 {
		t.Fatalf("endpoints not exact: %v", got)
	}
}

func TestClampFloat64(t *testing.T) {
	if got := ClampFloat64(5, 0, 1); got != 1 {
		t.Errorf("expected 1, got %v", got)
	}
	if got := ClampFloat64(-5, 0, 1); got != 0 {
		t.Errorf("expected 0, got %v", got)
	}
	if got := ClampFloat64(0.5, 0, 1); got != 0.5 {
		t.Errorf("expected 0.5, got %v", got)
	}
}

func TestMeanStdDevSum(t *testing.T) {
	values := []float64{2, 4, 4, 4, 5, 5, 7, 9}
	if got := Mean(values); got != 5 {
		t.Errorf("Mean = %v, want 5", got)
	}
	if got := StdDev(values); got != 2 {
		t.Errorf("StdDev = %v, want 2", got)
	}
	if got := Sum(values); got != 40 {
		t.Errorf("Sum = %v, want 40", got)
	}
	if Mean(nil) != 0 || StdDev(nil) != 0 {
		t.Error("expected zero for empty input")
	}
}

func TestIsFinite(t *testing.T) {
	if !IsFinite(1.5) {
		t.Error("1.5 should be finite")
	}
	if IsFinite(math.NaN()) || IsFinite(math.Inf(1)) || IsFinite(math.Inf(-1)) {
		t.Error("NaN and Inf must not be finite")
	}
}
