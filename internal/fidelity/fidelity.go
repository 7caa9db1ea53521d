// Package fidelity scores how well two IQ clouds can be told apart.
package fidelity

import (
	"errors"
	"fmt"
	"math"

	"github.com/GoSim-25-26J-441/readout-calibration/pkg/models"
)

// ErrEmptyCloud is returned when either cloud has no samples.
var ErrEmptyCloud = errors.New("iq cloud is empty")

// Report breaks a fidelity score down per prepared state.
type Report struct {
	Centroid0 models.IQSample
	Centroid1 models.IQSample
	Correct0  int
	Correct1  int
	Total0    int
	Total1    int
	Fidelity  float64
}

// Centroid returns the mean point of a cloud.
func Centroid(cloud models.IQCloud) (models.IQSample, error) {
	if len(cloud) == 0 {
		return models.IQSample{}, ErrEmptyCloud
	}
	var si, sq float64
	for _, p := range cloud {
		si += p[0]
		sq += p[1]
	}
	n := float64(len(cloud))
	return models.IQSample{si / n, sq / n}, nil
}

// Distance is the Euclidean distance between two IQ points.
func Distance(a, b models.IQSample) float64 {
	return math.Hypot(a[0]-b[0], a[1]-b[1])
}

// CalculateFidelity classifies every point by its nearest centroid and
// returns the fraction assigned to the state it was prepared in. A point
// equidistant from both centroids counts as misassigned.
func CalculateFidelity(cloud0, cloud1 models.IQCloud) (float64, error) {
	r, err := Evaluate(cloud0, cloud1)
	if err != nil {
		return 0, err
	}
	return r.Fidelity, nil
}

// Evaluate is CalculateFidelity with the per-state breakdown.
func Evaluate(cloud0, cloud1 models.IQCloud) (*Report, error) {
	c0, err := Centroid(cloud0)
	if err != nil {
		return nil, fmt.Errorf("state 0: %w", err)
	}
	c1, err := Centroid(cloud1)
	if err != nil {
		return nil, fmt.Errorf("state 1: %w", err)
	}

	r := &Report{
		Centroid0: c0,
		Centroid1: c1,
		Correct0:  countCloser(cloud0, c0, c1),
		Correct1:  countCloser(cloud1, c1, c0),
		Total0:    len(cloud0),
		Total1:    len(cloud1),
	}
	r.Fidelity = float64(r.Correct0+r.Correct1) / float64(r.Total0+r.Total1)
	return r, nil
}

// countCloser counts points strictly closer to own than to other.
func countCloser(cloud models.IQCloud, own, other models.IQSample) int {
	n := 0
	for _, p := range cloud {
		if Distance(p, own) < Distance(p, other) {
			n++
		}
	}
	return n
}
