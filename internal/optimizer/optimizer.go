package optimizer

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/GoSim-25-26J-441/readout-calibration/internal/experiment"
	"github.com/GoSim-25-26J-441/readout-calibration/pkg/config"
	"github.com/GoSim-25-26J-441/readout-calibration/pkg/logger"
	"github.com/GoSim-25-26J-441/readout-calibration/pkg/models"
)

// FailurePolicy decides what a failing grid point does to the search.
type FailurePolicy string

const (
	// FailurePolicyAbort stops the search and returns the first error.
	FailurePolicyAbort FailurePolicy = "abort"
	// FailurePolicySkip records the failure and keeps searching.
	FailurePolicySkip FailurePolicy = "skip"
)

// ParseFailurePolicy resolves a policy name; empty means abort.
func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch FailurePolicy(s) {
	case "", FailurePolicyAbort:
		return FailurePolicyAbort, nil
	case FailurePolicySkip:
		return FailurePolicySkip, nil
	}
	return "", fmt.Errorf("%w: unknown failure policy %q", experiment.ErrValidation, s)
}

// Progress is reported after every evaluated grid point.
type Progress struct {
	Done     int
	Total    int
	Point    Point
	Fidelity float64
	Err      error
	Best     *models.OptimizationResult
}

// ProgressFunc observes search progress. Calls are serialised.
type ProgressFunc func(Progress)

// Failure is a grid point whose experiment returned an error.
type Failure struct {
	Point Point
	Err   error
}

// Report summarises a finished search.
type Report struct {
	Best      *models.OptimizationResult
	Total     int
	Evaluated int
	Failures  []Failure
	Workers   int
	Duration  time.Duration
}

// Optimizer runs exhaustive grid searches over an experiment runner.
type Optimizer struct {
	runner    experiment.Runner
	workers   int
	policy    FailurePolicy
	betaRange models.ParameterRange
	progress  ProgressFunc
}

// Option configures an Optimizer.
type Option func(*Optimizer)

// WithWorkers bounds the number of grid points evaluated concurrently.
func WithWorkers(n int) Option {
	return func(o *Optimizer) { o.workers = n }
}

// WithFailurePolicy sets the failure policy.
func WithFailurePolicy(p FailurePolicy) Option {
	return func(o *Optimizer) { o.policy = p }
}

// WithBetaRange sets the DRAG beta sweep range.
func WithBetaRange(r models.ParameterRange) Option {
	return func(o *Optimizer) { o.betaRange = r }
}

// WithProgressReporter registers a progress observer.
func WithProgressReporter(fn ProgressFunc) Option {
	return func(o *Optimizer) { o.progress = fn }
}

// New creates an optimizer. Defaults: one worker, abort policy, beta in [0.1, 1.0].
func New(runner experiment.Runner, opts ...Option) *Optimizer {
	o := &Optimizer{
		runner:    runner,
		workers:   1,
		policy:    FailurePolicyAbort,
		betaRange: config.DefaultBetaRange,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.workers < 1 {
		o.workers = 1
	}
	return o
}

// NewFromConfig creates an optimizer from the optimization settings in cfg.
func NewFromConfig(runner experiment.Runner, cfg *config.Config, extra ...Option) (*Optimizer, error) {
	policy, err := ParseFailurePolicy(cfg.Optimization.FailurePolicy)
	if err != nil {
		return nil, err
	}
	opts := []Option{
		WithWorkers(cfg.Optimization.Workers),
		WithFailurePolicy(policy),
		WithBetaRange(cfg.Ranges.Beta),
	}
	return New(runner, append(opts, extra...)...), nil
}

// BasicOptimization searches the full grid with default settings and returns the best point.
func BasicOptimization(ctx context.Context, runner experiment.Runner, pulseTypes []models.PulseType, amplitude, frequency models.ParameterRange, steps int) (*models.OptimizationResult, error) {
	return New(runner).BasicOptimization(ctx, pulseTypes, amplitude, frequency, steps)
}

// BasicOptimization returns the best point of a full grid search.
func (o *Optimizer) BasicOptimization(ctx context.Context, pulseTypes []models.PulseType, amplitude, frequency models.ParameterRange, steps int) (*models.OptimizationResult, error) {
	report, err := o.Search(ctx, pulseTypes, amplitude, frequency, steps)
	if err != nil {
		return nil, err
	}
	return report.Best, nil
}

// search holds the shared state of one Search call. All fields are guarded by mu.
type search struct {
	mu        sync.Mutex
	total     int
	evaluated int
	best      *models.OptimizationResult
	bestIndex int
	failures  []Failure
	abortErr  error
}

// Search evaluates every grid point and returns the highest-fidelity one.
// Equal fidelities resolve to the lowest enumeration index, so the result
// does not depend on the number of workers.
func (o *Optimizer) Search(ctx context.Context, pulseTypes []models.PulseType, amplitude, frequency models.ParameterRange, steps int) (*Report, error) {
	points, err := BuildGrid(pulseTypes, amplitude, frequency, o.betaRange, steps)
	if err != nil {
		return nil, err
	}

	workers := o.workers
	if o.runner.Mode() == experiment.ModeHardware {
		workers = 1
	}
	if workers > len(points) {
		workers = len(points)
	}

	log := logger.Component("optimizer")
	log.Info("grid search started",
		"points", len(points),
		"steps", steps,
		"workers", workers,
		"mode", o.runner.Mode(),
		"failure_policy", o.policy)

	start := time.Now()
	searchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	s := &search{total: len(points)}
	semaphore := make(chan struct{}, workers)
	var wg sync.WaitGroup

dispatch:
	for _, p := range points {
		select {
		case <-searchCtx.Done():
			break dispatch
		case semaphore <- struct{}{}:
		}
		if searchCtx.Err() != nil {
			<-semaphore
			break
		}

		wg.Add(1)
		go func(p Point) {
			defer wg.Done()
			defer func() { <-semaphore }()

			res, err := o.runner.Run(searchCtx, p.Request())
			o.record(searchCtx, s, p, res, err, cancel)
		}(p)
	}
	wg.Wait()

	sort.Slice(s.failures, func(i, j int) bool { return s.failures[i].Point.Index < s.failures[j].Point.Index })
	report := &Report{
		Best:      s.best,
		Total:     s.total,
		Evaluated: s.evaluated,
		Failures:  s.failures,
		Workers:   workers,
		Duration:  time.Since(start),
	}

	switch {
	case s.abortErr != nil:
		log.Warn("grid search aborted", "error", s.abortErr, "evaluated", s.evaluated)
		return report, s.abortErr
	case ctx.Err() != nil:
		log.Warn("grid search cancelled", "evaluated", s.evaluated)
		return report, ctx.Err()
	case s.best == nil && len(s.failures) == 0:
		return report, fmt.Errorf("no grid point was evaluated out of %d", s.total)
	case s.best == nil:
		last := s.failures[len(s.failures)-1]
		return report, fmt.Errorf("all %d grid points failed, last at %s: %w", len(s.failures), last.Point, last.Err)
	}

	log.Info("grid search finished",
		"best", s.best.String(),
		"evaluated", s.evaluated,
		"failures", len(s.failures),
		"duration", report.Duration)
	return report, nil
}

func (o *Optimizer) record(ctx context.Context, s *search, p Point, res *models.ExperimentResult, err error, cancel context.CancelFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		// points interrupted by an abort or by the caller are not failures;
		// a runner's own timeout on a live search is
		if s.abortErr != nil || ctx.Err() != nil {
			return
		}
		s.failures = append(s.failures, Failure{Point: p, Err: err})
		logger.Debug("grid point failed", "point", p.String(), "error", err)
		if o.policy == FailurePolicyAbort {
			s.abortErr = fmt.Errorf("grid point %s: %w", p, err)
			cancel()
		}
		o.report(s, p, 0, err)
		return
	}

	s.evaluated++
	if s.best == nil || res.Fidelity > s.best.Fidelity || (res.Fidelity == s.best.Fidelity && p.Index < s.bestIndex) {
		s.best = resultFor(p, res.Fidelity)
		s.bestIndex = p.Index
	}
	logger.Debug("grid point evaluated", "point", p.String(), "fidelity", res.Fidelity)
	o.report(s, p, res.Fidelity, nil)
}

func (o *Optimizer) report(s *search, p Point, fid float64, err error) {
	if o.progress == nil {
		return
	}
	var best *models.OptimizationResult
	if s.best != nil {
		cp := *s.best
		cp.Beta = models.CopyBeta(s.best.Beta)
		best = &cp
	}
	o.progress(Progress{
		Done:     s.evaluated + len(s.failures),
		Total:    s.total,
		Point:    p,
		Fidelity: fid,
		Err:      err,
		Best:     best,
	})
}

func resultFor(p Point, fid float64) *models.OptimizationResult {
	r := &models.OptimizationResult{
		PulseType: p.PulseType,
		Amplitude: p.Amplitude,
		Frequency: p.Frequency,
		Fidelity:  fid,
	}
	if p.PulseType.HasBeta() {
		r.Beta = models.CopyBeta(p.Beta)
	}
	return r
}
