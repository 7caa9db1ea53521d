package calibd

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/GoSim-25-26J-441/readout-calibration/internal/experiment"
	"github.com/GoSim-25-26J-441/readout-calibration/internal/metrics"
	"github.com/GoSim-25-26J-441/readout-calibration/internal/optimizer"
	"github.com/GoSim-25-26J-441/readout-calibration/pkg/models"
	"github.com/GoSim-25-26J-441/readout-calibration/pkg/utils"
)

// JobStatus is the lifecycle state of a calibration job.
type JobStatus string

const (
	JobPending   JobStatus = "PENDING"
	JobRunning   JobStatus = "RUNNING"
	JobCompleted JobStatus = "COMPLETED"
	JobFailed    JobStatus = "FAILED"
	JobCancelled JobStatus = "CANCELLED"
)

// Terminal reports whether no further transitions are possible.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed || s == JobCancelled
}

// ParseJobStatus resolves a status filter; unknown values return "".
func ParseJobStatus(s string) JobStatus {
	switch st := JobStatus(strings.ToUpper(s)); st {
	case JobPending, JobRunning, JobCompleted, JobFailed, JobCancelled:
		return st
	}
	return ""
}

var (
	ErrJobNotFound  = errors.New("job not found")
	ErrJobTerminal  = errors.New("job is terminal")
	ErrJobIDMissing = errors.New("job id is required")
	ErrJobExists    = errors.New("job already exists")
)

// JobParams describes one grid search.
type JobParams struct {
	PulseTypes     []models.PulseType      `json:"pulse_types"`
	AmplitudeRange models.ParameterRange   `json:"amplitude_range"`
	FrequencyRange models.ParameterRange   `json:"frequency_range"`
	Steps          int                     `json:"steps"`
	Workers        int                     `json:"workers,omitempty"`
	FailurePolicy  optimizer.FailurePolicy `json:"failure_policy,omitempty"`
	CallbackURL    string                  `json:"callback_url,omitempty"`
	CallbackSecret string                  `json:"-"`
}

// Progress counts evaluated grid points.
type Progress struct {
	Done  int `json:"done"`
	Total int `json:"total"`
}

// Job is a calibration job snapshot.
type Job struct {
	ID              string                     `json:"id"`
	Status          JobStatus                  `json:"status"`
	Params          JobParams                  `json:"params"`
	CreatedAtUnixMs int64                      `json:"created_at_unix_ms"`
	StartedAtUnixMs int64                      `json:"started_at_unix_ms,omitempty"`
	EndedAtUnixMs   int64                      `json:"ended_at_unix_ms,omitempty"`
	Error           string                     `json:"error,omitempty"`
	Progress        Progress                   `json:"progress"`
	Best            *models.OptimizationResult `json:"best,omitempty"`
	Evaluated       int                        `json:"evaluated"`
	Failures        int                        `json:"failures"`
	Metrics         *metrics.SearchMetrics     `json:"metrics,omitempty"`
}

func (j *Job) clone() *Job {
	cp := *j
	cp.Params.PulseTypes = append([]models.PulseType(nil), j.Params.PulseTypes...)
	if j.Best != nil {
		best := *j.Best
		best.Beta = models.CopyBeta(j.Best.Beta)
		cp.Best = &best
	}
	return &cp
}

// JobStore keeps calibration jobs in memory. Getters return copies.
type JobStore struct {
	mu    sync.RWMutex
	jobs  map[string]*Job
	order []string
}

func NewJobStore() *JobStore {
	return &JobStore{
		jobs: make(map[string]*Job),
	}
}

func nowUnixMs() int64 {
	return time.Now().UTC().UnixMilli()
}

// Create registers a pending job. An empty id is generated.
func (s *JobStore) Create(id string, params JobParams) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id == "" {
		id = utils.GenerateJobID()
	}
	if strings.ContainsAny(id, "/:") {
		return nil, fmt.Errorf("%w: job id cannot contain '/' or ':': %s", experiment.ErrValidation, id)
	}
	if _, exists := s.jobs[id]; exists {
		return nil, fmt.Errorf("%w: %s", ErrJobExists, id)
	}

	job := &Job{
		ID:              id,
		Status:          JobPending,
		Params:          params,
		CreatedAtUnixMs: nowUnixMs(),
		Progress:        Progress{Total: optimizer.GridSize(params.PulseTypes, params.Steps)},
	}
	s.jobs[id] = job
	s.order = append(s.order, id)
	return job.clone(), nil
}

func (s *JobStore) Get(id string) (*Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, false
	}
	return job.clone(), true
}

// List returns jobs in creation order, optionally filtered by status.
func (s *JobStore) List(limit, offset int, status JobStatus) []*Job {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}
	out := make([]*Job, 0, min(limit, len(s.jobs)))
	skipped := 0
	for _, id := range s.order {
		job := s.jobs[id]
		if status != "" && job.Status != status {
			continue
		}
		if skipped < offset {
			skipped++
			continue
		}
		out = append(out, job.clone())
		if len(out) >= limit {
			break
		}
	}
	return out
}

// SetStatus moves a job to status. Terminal jobs never change again.
func (s *JobStore) SetStatus(id string, status JobStatus, errMsg string) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	if job.Status.Terminal() {
		return job.clone(), fmt.Errorf("%w: %s is %s", ErrJobTerminal, id, job.Status)
	}

	job.Status = status
	if errMsg != "" {
		job.Error = errMsg
	}
	switch {
	case status == JobRunning:
		if job.StartedAtUnixMs == 0 {
			job.StartedAtUnixMs = nowUnixMs()
		}
	case status.Terminal():
		job.EndedAtUnixMs = nowUnixMs()
	}
	return job.clone(), nil
}

// SetProgress records search progress.
func (s *JobStore) SetProgress(id string, p optimizer.Progress) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return
	}
	job.Progress = Progress{Done: p.Done, Total: p.Total}
	job.Best = p.Best
}

// SetReport stores the final search report.
func (s *JobStore) SetReport(id string, report *optimizer.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	if report == nil {
		return nil
	}
	job.Best = report.Best
	job.Evaluated = report.Evaluated
	job.Failures = len(report.Failures)
	job.Progress = Progress{Done: report.Evaluated + len(report.Failures), Total: report.Total}
	return nil
}

// SetMetrics attaches the search metrics of a finished job.
func (s *JobStore) SetMetrics(id string, m *metrics.SearchMetrics) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job, ok := s.jobs[id]; ok {
		job.Metrics = m
	}
}
