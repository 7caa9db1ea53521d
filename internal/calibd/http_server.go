package calibd

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/GoSim-25-26J-441/readout-calibration/internal/experiment"
	"github.com/GoSim-25-26J-441/readout-calibration/internal/optimizer"
	"github.com/GoSim-25-26J-441/readout-calibration/internal/results"
	"github.com/GoSim-25-26J-441/readout-calibration/pkg/logger"
	"github.com/GoSim-25-26J-441/readout-calibration/pkg/models"
)

type HTTPServer struct {
	mux      *http.ServeMux
	store    *JobStore
	Executor *Executor
}

func NewHTTPServer(store *JobStore, executor *Executor) *HTTPServer {
	s := &HTTPServer{
		mux:      http.NewServeMux(),
		store:    store,
		Executor: executor,
	}

	s.mux.HandleFunc("/healthz", s.handleHealthz)
	s.mux.HandleFunc("/v1/calibrations", s.handleCalibrations)
	s.mux.HandleFunc("/v1/calibrations/", s.handleCalibrationByID)
	s.mux.HandleFunc("/v1/experiments", s.handleExperiments)
	s.mux.HandleFunc("/v1/results", s.handleResults)

	return s
}

func (s *HTTPServer) Handler() http.Handler {
	return s.mux
}

func (s *HTTPServer) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"mode":      s.Executor.runner.Mode(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// handleCalibrations handles /v1/calibrations
func (s *HTTPServer) handleCalibrations(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleCreateCalibration(w, r)
	case http.MethodGet:
		s.handleListCalibrations(w, r)
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleCalibrationByID handles /v1/calibrations/{id} and /v1/calibrations/{id}:stop
func (s *HTTPServer) handleCalibrationByID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/calibrations/")
	if path == "" {
		s.writeError(w, http.StatusBadRequest, "job ID is required")
		return
	}

	if strings.HasSuffix(path, ":stop") {
		if r.Method != http.MethodPost {
			s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		s.handleStopCalibration(w, strings.TrimSuffix(path, ":stop"))
		return
	}

	if strings.HasSuffix(path, "/results") {
		if r.Method != http.MethodGet {
			s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		s.listRecords(w, r, strings.TrimSuffix(path, "/results"))
		return
	}

	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	job, ok := s.store.Get(path)
	if !ok {
		s.writeError(w, http.StatusNotFound, "job not found")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"job": job})
}

type createCalibrationRequest struct {
	ID             string                 `json:"id,omitempty"`
	PulseTypes     []string               `json:"pulse_types"`
	AmplitudeRange *models.ParameterRange `json:"amplitude_range"`
	FrequencyRange *models.ParameterRange `json:"frequency_range"`
	Steps          int                    `json:"steps"`
	Workers        int                    `json:"workers"`
	FailurePolicy  string                 `json:"failure_policy"`
	CallbackURL    string                 `json:"callback_url"`
	CallbackSecret string                 `json:"callback_secret"`
}

func (req *createCalibrationRequest) params() (JobParams, error) {
	p := JobParams{
		Steps:          req.Steps,
		Workers:        req.Workers,
		FailurePolicy:  optimizer.FailurePolicy(req.FailurePolicy),
		CallbackURL:    req.CallbackURL,
		CallbackSecret: req.CallbackSecret,
	}
	for _, name := range req.PulseTypes {
		pt, err := models.ParsePulseType(name)
		if err != nil {
			return p, err
		}
		p.PulseTypes = append(p.PulseTypes, pt)
	}
	if req.AmplitudeRange != nil {
		p.AmplitudeRange = *req.AmplitudeRange
	}
	if req.FrequencyRange != nil {
		p.FrequencyRange = *req.FrequencyRange
	}
	return p, nil
}

// handleCreateCalibration handles POST /v1/calibrations
func (s *HTTPServer) handleCreateCalibration(w http.ResponseWriter, r *http.Request) {
	var req createCalibrationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	params, err := req.params()
	if err != nil {
		s.writeFailure(w, err)
		return
	}

	job, err := s.Executor.Submit(req.ID, params)
	if err != nil {
		s.writeFailure(w, err)
		return
	}

	logger.Info("calibration submitted (HTTP)", "job_id", job.ID)
	s.writeJSON(w, http.StatusCreated, map[string]any{"job": job})
}

// handleListCalibrations handles GET /v1/calibrations
func (s *HTTPServer) handleListCalibrations(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	status := ParseJobStatus(r.URL.Query().Get("status"))
	jobs := s.store.List(limit, offset, status)
	s.writeJSON(w, http.StatusOK, map[string]any{
		"jobs": jobs,
		"pagination": map[string]any{
			"limit":  limit,
			"offset": offset,
			"count":  len(jobs),
		},
	})
}

func pagination(r *http.Request) (limit, offset int) {
	limit = 50
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 {
		limit = min(v, 1000)
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && v >= 0 {
		offset = v
	}
	return limit, offset
}

// handleStopCalibration handles POST /v1/calibrations/{id}:stop
func (s *HTTPServer) handleStopCalibration(w http.ResponseWriter, id string) {
	job, err := s.Executor.Stop(id)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	logger.Info("calibration cancelled (HTTP)", "job_id", id)
	s.writeJSON(w, http.StatusOK, map[string]any{"job": job})
}

type experimentRequest struct {
	PulseType string   `json:"pulse_type"`
	Amplitude *float64 `json:"amplitude"`
	Frequency *float64 `json:"frequency"`
	Beta      *float64 `json:"beta,omitempty"`
	NumShots  int      `json:"num_shots,omitempty"`
}

func (req *experimentRequest) toRequest() (experiment.Request, error) {
	pt, err := models.ParsePulseType(req.PulseType)
	if err != nil {
		return experiment.Request{}, err
	}
	if req.Amplitude == nil || req.Frequency == nil {
		return experiment.Request{}, fmt.Errorf("%w: amplitude and frequency are required", experiment.ErrValidation)
	}
	return experiment.Request{
		PulseType: pt,
		Amplitude: *req.Amplitude,
		Frequency: *req.Frequency,
		Beta:      req.Beta,
		NumShots:  req.NumShots,
	}, nil
}

// handleExperiments handles POST /v1/experiments
func (s *HTTPServer) handleExperiments(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var body experimentRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	req, err := body.toRequest()
	if err != nil {
		s.writeFailure(w, err)
		return
	}

	res, err := s.Executor.RunExperiment(r.Context(), req)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

// handleResults handles GET /v1/results
func (s *HTTPServer) handleResults(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.listRecords(w, r, r.URL.Query().Get("job_id"))
}

func (s *HTTPServer) listRecords(w http.ResponseWriter, r *http.Request, jobID string) {
	store := s.Executor.Records()
	if store == nil {
		s.writeError(w, http.StatusPreconditionFailed, "result storage is not configured")
		return
	}
	limit, offset := pagination(r)
	recs, err := store.List(r.Context(), results.Filter{JobID: jobID, Limit: limit, Offset: offset})
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if recs == nil {
		recs = []*results.Record{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"results": recs})
}

// Helper functions

func (s *HTTPServer) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("failed to encode JSON response", "error", err)
	}
}

func (s *HTTPServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]any{
		"error": message,
	})
}

func (s *HTTPServer) writeFailure(w http.ResponseWriter, err error) {
	s.writeJSON(w, httpStatus(err), map[string]any{
		"error": err.Error(),
		"kind":  experiment.KindOf(err),
	})
}

func httpStatus(err error) int {
	switch {
	case errors.Is(err, ErrJobNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrJobIDMissing):
		return http.StatusBadRequest
	case errors.Is(err, ErrJobTerminal), errors.Is(err, ErrJobExists):
		return http.StatusConflict
	case experiment.IsInputError(err):
		return http.StatusBadRequest
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, experiment.ErrHardware):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
