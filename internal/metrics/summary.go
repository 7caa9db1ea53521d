package metrics

import (
	"github.com/GoSim-25-26J-441/readout-calibration/pkg/models"
)

// PulseMetrics summarises the experiments of one pulse type.
type PulseMetrics struct {
	PulseType   models.PulseType `json:"pulse_type"`
	Experiments int64            `json:"experiments"`
	Errors      int64            `json:"errors"`
	Fidelity    *Aggregation     `json:"fidelity,omitempty"`
	LatencyMs   *Aggregation     `json:"latency_ms,omitempty"`
}

// SearchMetrics summarises a calibration search.
type SearchMetrics struct {
	Experiments     int64           `json:"experiments"`
	Errors          int64           `json:"errors"`
	LatencyP50Ms    float64         `json:"latency_p50_ms"`
	LatencyP95Ms    float64         `json:"latency_p95_ms"`
	LatencyMeanMs   float64         `json:"latency_mean_ms"`
	ExperimentsPerS float64         `json:"experiments_per_second"`
	PerPulse        []*PulseMetrics `json:"per_pulse,omitempty"`
}

// Summarize builds SearchMetrics from a collector fed by InstrumentedRunner.
// Per-pulse entries follow the canonical pulse order.
func Summarize(c *Collector) *SearchMetrics {
	s := &SearchMetrics{}
	if latency := c.AggregateAll(MetricExperimentLatency); latency != nil {
		s.Experiments = latency.Count
		s.LatencyP50Ms = latency.P50
		s.LatencyP95Ms = latency.P95
		s.LatencyMeanMs = latency.Mean
	}
	if errs := c.AggregateAll(MetricExperimentErrors); errs != nil {
		s.Errors = errs.Count
	}
	if d := c.Duration(); d > 0 {
		s.ExperimentsPerS = float64(s.Experiments) / d.Seconds()
	}

	for _, pt := range models.AllPulseTypes() {
		labels := PulseLabels(pt)
		pm := &PulseMetrics{
			PulseType: pt,
			Fidelity:  c.Aggregate(MetricFidelity, labels),
			LatencyMs: c.Aggregate(MetricExperimentLatency, labels),
		}
		if pm.LatencyMs != nil {
			pm.Experiments = pm.LatencyMs.Count
		}
		if errs := c.Aggregate(MetricExperimentErrors, labels); errs != nil {
			pm.Errors = errs.Count
		}
		if pm.Experiments == 0 && pm.Errors == 0 {
			continue
		}
		s.PerPulse = append(s.PerPulse, pm)
	}
	return s
}
