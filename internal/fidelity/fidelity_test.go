package fidelity

import (
	"errors"
	"math"
	"testing"

	"github.com/GoSim-25-26J-441/readout-calibration/internal/iqsim"
	"github.com/GoSim-25-26J-441/readout-calibration/pkg/models"
	"github.com/GoSim-25-26J-441/readout-calibration/pkg/utils"
)

func TestCentroid(t *testing.T) {
	c, err := Centroid(models.IQCloud{{0, 0}, {2, 4}, {4, 2}})
	if err != nil {
		t.Fatal(err)
	}
	if c != (models.IQSample{2, 2}) {
		t.Fatalf("expected (2, 2), got %v", c)
	}
	if _, err := Centroid(nil); !errors.Is(err, ErrEmptyCloud) {
		t.Fatalf("expected ErrEmptyCloud, got %v", err)
	}
}

func TestCalculateFidelityPerfectSeparation(t *testing.T) {
	cloud0 := models.IQCloud{{1, 0}, {1.1, 0.1}, {0.9, -0.1}}
	cloud1 := models.IQCloud{{-1, 0}, {-1.1, 0.1}, {-0.9, -0.1}}
	f, err := CalculateFidelity(cloud0, cloud1)
	if err != nil {
		t.Fatal(err)
	}
	if f != 1.0 {
		t.Fatalf("expected fidelity 1.0, got %v", f)
	}
}

func TestCalculateFidelityTiesAreIncorrect(t *testing.T) {
	// Identical clouds share a centroid, so every point is a tie.
	cloud := models.IQCloud{{1, 1}, {-1, -1}}
	f, err := CalculateFidelity(cloud, cloud)
	if err != nil {
		t.Fatal(err)
	}
	if f != 0 {
		t.Fatalf("expected fidelity 0 when every point ties, got %v", f)
	}
}

func TestCalculateFidelityPartial(t *testing.T) {
	// centroid0 = (1, 0), centroid1 = (-1, 0); one point of cloud0 sits on the far side.
	cloud0 := models.IQCloud{{2, 0}, {2, 0}, {-1, 0}}
	cloud1 := models.IQCloud{{-1, 0}, {-1, 0}, {-1, 0}}
	r, err := Evaluate(cloud0, cloud1)
	if err != nil {
		t.Fatal(err)
	}
	if r.Centroid0 != (models.IQSample{1, 0}) || r.Centroid1 != (models.IQSample{-1, 0}) {
		t.Fatalf("unexpected centroids %v %v", r.Centroid0, r.Centroid1)
	}
	if r.Correct0 != 2 || r.Correct1 != 3 {
		t.Fatalf("expected 2/3 and 3/3 correct, got %d and %d", r.Correct0, r.Correct1)
	}
	if math.Abs(r.Fidelity-5.0/6.0) > 1e-12 {
		t.Fatalf("expected 5/6, got %v", r.Fidelity)
	}
}

func TestCalculateFidelityDifferentLengths(t *testing.T) {
	cloud0 := models.IQCloud{{1, 0}}
	cloud1 := models.IQCloud{{-1, 0}, {-1, 0.1}, {-1, -0.1}}
	r, err := Evaluate(cloud0, cloud1)
	if err != nil {
		t.Fatal(err)
	}
	if r.Total0 != 1 || r.Total1 != 3 || r.Fidelity != 1 {
		t.Fatalf("unexpected report %+v", r)
	}
}

func TestCalculateFidelityEmpty(t *testing.T) {
	if _, err := CalculateFidelity(nil, models.IQCloud{{1, 0}}); !errors.Is(err, ErrEmptyCloud) {
		t.Fatalf("expected ErrEmptyCloud, got %v", err)
	}
	if _, err := CalculateFidelity(models.IQCloud{{1, 0}}, models.IQCloud{}); !errors.Is(err, ErrEmptyCloud) {
		t.Fatalf("expected ErrEmptyCloud, got %v", err)
	}
}

func TestCalculateFidelityFarApartClouds(t *testing.T) {
	sim := iqsim.NewSimulator(iqsim.WithSeed(3), iqsim.WithNoiseLevel(0.1))
	c0, _ := sim.Cloud(iqsim.StateGround, 2.0, 6.5, 500)
	c1, _ := sim.Cloud(iqsim.StateExcited, 2.0, 6.5, 500)

	f, err := CalculateFidelity(c0, c1)
	if err != nil {
		t.Fatal(err)
	}
	if f < 0.999 {
		t.Fatalf("expected fidelity near 1 for well separated clouds, got %v", f)
	}
}

func TestCalculateFidelityIdenticalDistributions(t *testing.T) {
	rng := utils.NewRandSource(99)
	const trials = 40
	total := 0.0
	for k := 0; k < trials; k++ {
		c0 := make(models.IQCloud, 200)
		c1 := make(models.IQCloud, 200)
		for i := range c0 {
			a, b := rng.NormPair(0, 1)
			c0[i] = models.IQSample{a, b}
			a, b = rng.NormPair(0, 1)
			c1[i] = models.IQSample{a, b}
		}
		f, err := CalculateFidelity(c0, c1)
		if err != nil {
			t.Fatal(err)
		}
		if f < 0 || f > 1 {
			t.Fatalf("fidelity %v outside [0, 1]", f)
		}
		total += f
	}
	if mean := total / trials; math.Abs(mean-0.5) > 0.06 {
		t.Fatalf("expected mean fidelity ~0.5 for identical distributions, got %v", mean)
	}
}
