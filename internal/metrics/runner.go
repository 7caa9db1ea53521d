package metrics

import (
	"context"
	"time"

	"github.com/GoSim-25-26J-441/readout-calibration/internal/experiment"
	"github.com/GoSim-25-26J-441/readout-calibration/pkg/models"
)

// Metric names recorded by InstrumentedRunner.
const (
	MetricFidelity          = "fidelity"
	MetricExperimentLatency = "experiment_latency_ms"
	MetricExperimentErrors  = "experiment_errors"

	LabelPulseType = "pulse_type"
)

// InstrumentedRunner records latency, fidelity and errors of every experiment
// run through it, labelled by pulse type.
type InstrumentedRunner struct {
	runner    experiment.Runner
	collector *Collector
}

func NewInstrumentedRunner(runner experiment.Runner, collector *Collector) *InstrumentedRunner {
	return &InstrumentedRunner{runner: runner, collector: collector}
}

func (r *InstrumentedRunner) Mode() experiment.Mode {
	return r.runner.Mode()
}

func (r *InstrumentedRunner) Run(ctx context.Context, req experiment.Request) (*models.ExperimentResult, error) {
	start := time.Now()
	res, err := r.runner.Run(ctx, req)
	now := time.Now()
	labels := PulseLabels(req.PulseType)

	if err != nil {
		// cancelled points are not experiment failures
		if ctx.Err() == nil {
			r.collector.Record(MetricExperimentErrors, 1, now, labels)
		}
		return nil, err
	}
	r.collector.Record(MetricExperimentLatency, float64(now.Sub(start).Microseconds())/1000, now, labels)
	r.collector.Record(MetricFidelity, res.Fidelity, now, labels)
	return res, nil
}

// PulseLabels creates a labels map for a pulse type
func PulseLabels(pt models.PulseType) map[string]string {
	return map[string]string{LabelPulseType: string(pt)}
}
