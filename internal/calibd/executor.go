package calibd

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/GoSim-25-26J-441/readout-calibration/internal/experiment"
	"github.com/GoSim-25-26J-441/readout-calibration/internal/metrics"
	"github.com/GoSim-25-26J-441/readout-calibration/internal/optimizer"
	"github.com/GoSim-25-26J-441/readout-calibration/internal/policy"
	"github.com/GoSim-25-26J-441/readout-calibration/internal/results"
	"github.com/GoSim-25-26J-441/readout-calibration/pkg/config"
	"github.com/GoSim-25-26J-441/readout-calibration/pkg/logger"
	"github.com/GoSim-25-26J-441/readout-calibration/pkg/models"
)

// ErrRateLimited is returned when a route has used up its request budget.
var ErrRateLimited = errors.New("rate limit exceeded")

// Rate limiter keys.
const (
	RouteCalibrations = "calibrations"
	RouteExperiments  = "experiments"
)

// Executor runs calibration jobs asynchronously with per-job cancellation.
type Executor struct {
	store    *JobStore
	runner   experiment.Runner
	cfg      *config.Config
	notifier *Notifier
	records  results.Store
	limiter  *policy.RateLimiter

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
	wg      sync.WaitGroup
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithNotifier sends completion callbacks through n.
func WithNotifier(n *Notifier) ExecutorOption {
	return func(e *Executor) { e.notifier = n }
}

// WithResultStore persists experiment and best-point records to s.
func WithResultStore(s results.Store) ExecutorOption {
	return func(e *Executor) { e.records = s }
}

// WithRateLimiter applies l to job submissions and ad hoc experiments.
func WithRateLimiter(l *policy.RateLimiter) ExecutorOption {
	return func(e *Executor) { e.limiter = l }
}

func NewExecutor(store *JobStore, runner experiment.Runner, cfg *config.Config, opts ...ExecutorOption) *Executor {
	if cfg == nil {
		cfg = config.Default()
	}
	e := &Executor{
		store:   store,
		runner:  runner,
		cfg:     cfg,
		cancels: make(map[string]context.CancelFunc),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Submit validates params, creates a job and starts it.
func (e *Executor) Submit(id string, params JobParams) (*Job, error) {
	if err := e.admit(RouteCalibrations); err != nil {
		return nil, err
	}
	if err := e.validate(&params); err != nil {
		return nil, err
	}
	job, err := e.store.Create(id, params)
	if err != nil {
		return nil, err
	}
	return e.Start(job.ID)
}

func (e *Executor) validate(p *JobParams) error {
	if len(p.PulseTypes) == 0 {
		types, err := e.cfg.Optimization.ParsedPulseTypes()
		if err != nil {
			return fmt.Errorf("%w: %w", experiment.ErrValidation, err)
		}
		p.PulseTypes = types
	}
	if p.Steps == 0 {
		p.Steps = e.cfg.Optimization.Steps
	}
	if p.AmplitudeRange == (models.ParameterRange{}) {
		p.AmplitudeRange = e.cfg.Ranges.Amplitude
	}
	if p.FrequencyRange == (models.ParameterRange{}) {
		p.FrequencyRange = e.cfg.Ranges.Frequency
	}
	if p.Workers < 0 {
		return fmt.Errorf("%w: workers must not be negative", experiment.ErrValidation)
	}
	if p.FailurePolicy == "" {
		p.FailurePolicy = optimizer.FailurePolicy(e.cfg.Optimization.FailurePolicy)
	}
	fp, err := optimizer.ParseFailurePolicy(string(p.FailurePolicy))
	if err != nil {
		return err
	}
	p.FailurePolicy = fp
	if p.CallbackURL != "" {
		if err := validateCallbackURL(p.CallbackURL); err != nil {
			return fmt.Errorf("%w: callback_url: %w", experiment.ErrValidation, err)
		}
	}
	_, err = optimizer.BuildGrid(p.PulseTypes, p.AmplitudeRange, p.FrequencyRange, e.cfg.Ranges.Beta, p.Steps)
	return err
}

// Start begins executing a pending job.
func (e *Executor) Start(id string) (*Job, error) {
	if id == "" {
		return nil, ErrJobIDMissing
	}
	job, ok := e.store.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	switch {
	case job.Status == JobRunning:
		return job, nil
	case job.Status.Terminal():
		return nil, fmt.Errorf("%w: %s", ErrJobTerminal, id)
	}

	updated, err := e.store.SetStatus(id, JobRunning, "")
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	e.mu.Lock()
	if old, exists := e.cancels[id]; exists {
		old()
	}
	e.cancels[id] = cancel
	e.mu.Unlock()

	e.wg.Add(1)
	go e.run(ctx, id)
	return updated, nil
}

// Stop cancels a running job and marks it cancelled.
func (e *Executor) Stop(id string) (*Job, error) {
	if id == "" {
		return nil, ErrJobIDMissing
	}

	updated, err := e.store.SetStatus(id, JobCancelled, "")
	if err != nil {
		return updated, err
	}

	e.mu.Lock()
	cancel, ok := e.cancels[id]
	e.mu.Unlock()
	if ok {
		cancel()
	}
	return updated, nil
}

// StopAll cancels every running job.
func (e *Executor) StopAll() {
	e.mu.Lock()
	ids := make([]string, 0, len(e.cancels))
	for id := range e.cancels {
		ids = append(ids, id)
	}
	e.mu.Unlock()
	for _, id := range ids {
		if _, err := e.Stop(id); err != nil && !errors.Is(err, ErrJobTerminal) {
			logger.Warn("failed to stop job", "job_id", id, "error", err)
		}
	}
}

// Wait blocks until every started job has finished.
func (e *Executor) Wait() {
	e.wg.Wait()
}

func (e *Executor) cleanup(id string) {
	e.mu.Lock()
	if cancel, ok := e.cancels[id]; ok {
		cancel()
		delete(e.cancels, id)
	}
	e.mu.Unlock()
}

func (e *Executor) run(ctx context.Context, id string) {
	defer e.wg.Done()
	defer e.cleanup(id)

	job, ok := e.store.Get(id)
	if !ok {
		logger.Error("job not found", "job_id", id)
		return
	}
	p := job.Params
	log := logger.With("job_id", id)

	opts := []optimizer.Option{
		optimizer.WithProgressReporter(func(pr optimizer.Progress) { e.store.SetProgress(id, pr) }),
	}
	if p.Workers > 0 {
		opts = append(opts, optimizer.WithWorkers(p.Workers))
	}
	if p.FailurePolicy != "" {
		opts = append(opts, optimizer.WithFailurePolicy(p.FailurePolicy))
	}
	collector := metrics.NewCollector()
	opt, err := optimizer.NewFromConfig(metrics.NewInstrumentedRunner(e.runner, collector), e.cfg, opts...)
	if err != nil {
		e.finish(id, JobFailed, err.Error())
		return
	}

	log.Info("calibration started", "points", job.Progress.Total, "steps", p.Steps)
	collector.Start()
	report, err := opt.Search(ctx, p.PulseTypes, p.AmplitudeRange, p.FrequencyRange, p.Steps)
	collector.Stop()
	e.store.SetMetrics(id, metrics.Summarize(collector))
	if setErr := e.store.SetReport(id, report); setErr != nil {
		log.Error("failed to store report", "error", setErr)
	}

	switch {
	case ctx.Err() != nil:
		log.Info("calibration cancelled")
		e.finish(id, JobCancelled, "")
	case err != nil:
		log.Error("calibration failed", "error", err, "kind", experiment.KindOf(err))
		e.finish(id, JobFailed, err.Error())
	default:
		e.persist(ctx, id, results.FromOptimization(report.Best))
		log.Info("calibration completed", "best", report.Best.String(), "duration", report.Duration)
		e.finish(id, JobCompleted, "")
	}
}

func (e *Executor) finish(id string, status JobStatus, errMsg string) {
	if _, err := e.store.SetStatus(id, status, errMsg); err != nil && !errors.Is(err, ErrJobTerminal) {
		logger.Error("failed to set job status", "job_id", id, "status", status, "error", err)
	}
	job, ok := e.store.Get(id)
	if !ok || e.notifier == nil || job.Params.CallbackURL == "" {
		return
	}
	e.notifier.Notify(job.Params.CallbackURL, job.Params.CallbackSecret, job)
}

// RunExperiment runs a single experiment synchronously.
func (e *Executor) RunExperiment(ctx context.Context, req experiment.Request) (*models.ExperimentResult, error) {
	if err := e.admit(RouteExperiments); err != nil {
		return nil, err
	}
	res, err := e.runner.Run(ctx, req)
	if err != nil {
		return nil, err
	}
	e.persist(ctx, "", res)
	return res, nil
}

func (e *Executor) admit(route string) error {
	if e.limiter == nil || e.limiter.Allow(route, time.Now()) {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrRateLimited, route)
}

func (e *Executor) persist(ctx context.Context, jobID string, res *models.ExperimentResult) {
	if e.records == nil || res == nil {
		return
	}
	rec := results.NewRecord(jobID, res)
	if err := e.records.Put(context.WithoutCancel(ctx), rec); err != nil {
		logger.Error("failed to persist result", "job_id", jobID, "error", err)
	}
}

// Records exposes the configured result store, which may be nil.
func (e *Executor) Records() results.Store {
	return e.records
}
