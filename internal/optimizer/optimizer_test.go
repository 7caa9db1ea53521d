package optimizer

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/GoSim-25-26J-441/readout-calibration/internal/experiment"
	"github.com/GoSim-25-26J-441/readout-calibration/internal/iqsim"
	"github.com/GoSim-25-26J-441/readout-calibration/pkg/config"
	"github.com/GoSim-25-26J-441/readout-calibration/pkg/models"
)

// stubRunner scores requests with fn and records every call.
type stubRunner struct {
	mode experiment.Mode
	fn   func(experiment.Request) (float64, error)

	mu    sync.Mutex
	calls []experiment.Request
}

func (s *stubRunner) Run(ctx context.Context, req experiment.Request) (*models.ExperimentResult, error) {
	s.mu.Lock()
	s.calls = append(s.calls, req)
	s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fid, err := s.fn(req)
	if err != nil {
		return nil, err
	}
	return &models.ExperimentResult{PulseType: req.PulseType, Amplitude: req.Amplitude, Frequency: req.Frequency, Beta: req.Beta, Fidelity: fid}, nil
}

func (s *stubRunner) Mode() experiment.Mode {
	if s.mode == "" {
		return experiment.ModeSimulated
	}
	return s.mode
}

func constant(f float64) func(experiment.Request) (float64, error) {
	return func(experiment.Request) (float64, error) { return f, nil }
}

// peaked has a single maximum at amplitude 1.5, frequency 6.5, beta 0.55 on DRAG.
func peaked(req experiment.Request) (float64, error) {
	d := math.Abs(req.Amplitude-1.5) + math.Abs(req.Frequency-6.5)*10
	if req.Beta != nil {
		d += math.Abs(*req.Beta - 0.55)
	}
	if req.PulseType != models.PulseDRAG {
		d += 0.01
	}
	return 1 / (1 + d), nil
}

func TestCallCountMatchesGrid(t *testing.T) {
	for _, steps := range []int{1, 2, 3, 5} {
		r := &stubRunner{fn: constant(0.5)}
		if _, err := BasicOptimization(context.Background(), r, models.AllPulseTypes(), config.DefaultAmplitudeRange, config.DefaultFrequencyRange, steps); err != nil {
			t.Fatalf("steps=%d: unexpected error: %v", steps, err)
		}
		want := 2*steps*steps + steps*steps*steps
		if len(r.calls) != want {
			t.Errorf("steps=%d: expected %d runner calls, got %d", steps, want, len(r.calls))
		}
	}
}

func TestReturnsArgmax(t *testing.T) {
	r := &stubRunner{fn: peaked}
	best, err := BasicOptimization(context.Background(), r, models.AllPulseTypes(), models.NewRange(0.5, 2.0), models.NewRange(6.4, 6.6), 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if best.PulseType != models.PulseDRAG || !almostEqual(best.Amplitude, 1.625) || !almostEqual(best.Frequency, 6.5) {
		t.Fatalf("unexpected best %s", best)
	}
	if best.Beta == nil || !almostEqual(*best.Beta, 0.55) {
		t.Fatalf("expected beta 0.55, got %v", best.Beta)
	}

	maxFid := 0.0
	for _, c := range r.calls {
		f, _ := peaked(c)
		maxFid = math.Max(maxFid, f)
	}
	if best.Fidelity != maxFid {
		t.Fatalf("best fidelity %v is not the maximum %v", best.Fidelity, maxFid)
	}
}

func TestTieBreakLowestIndex(t *testing.T) {
	r := &stubRunner{fn: constant(0.7)}
	best, err := BasicOptimization(context.Background(), r, []models.PulseType{models.PulseSquare, models.PulseGaussian}, models.NewRange(0.5, 2.0), models.NewRange(6.4, 6.6), 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if best.PulseType != models.PulseSquare || best.Amplitude != 0.5 || best.Frequency != 6.4 {
		t.Fatalf("expected first point to win ties, got %s", best)
	}
}

func TestSingleStepUsesMinimum(t *testing.T) {
	r := &stubRunner{fn: constant(0.6)}
	if _, err := BasicOptimization(context.Background(), r, models.AllPulseTypes(), models.NewRange(0.7, 1.9), models.NewRange(6.41, 6.59), 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, c := range r.calls {
		if c.Amplitude != 0.7 || c.Frequency != 6.41 {
			t.Errorf("expected range minimum, got A=%v F=%v", c.Amplitude, c.Frequency)
		}
		if c.PulseType == models.PulseDRAG && (c.Beta == nil || *c.Beta != 0.1) {
			t.Errorf("expected DRAG beta 0.1, got %v", c.Beta)
		}
	}
}

func TestStubFidelityEndToEnd(t *testing.T) {
	r := &stubRunner{fn: constant(0.8)}
	best, err := BasicOptimization(context.Background(), r, []models.PulseType{models.PulseSquare}, models.NewRange(1, 1), models.NewRange(0, 0), 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := models.OptimizationResult{PulseType: models.PulseSquare, Amplitude: 1.0, Frequency: 0.0, Fidelity: 0.8}
	if best.PulseType != want.PulseType || best.Amplitude != want.Amplitude || best.Frequency != want.Frequency || best.Beta != nil || best.Fidelity != want.Fidelity {
		t.Fatalf("got %+v, want %+v", best, want)
	}
}

func TestDRAGBetaValues(t *testing.T) {
	r := &stubRunner{fn: constant(0.5)}
	if _, err := BasicOptimization(context.Background(), r, models.AllPulseTypes(), config.DefaultAmplitudeRange, config.DefaultFrequencyRange, 4); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	betas := make(map[float64]bool)
	for _, c := range r.calls {
		if c.PulseType != models.PulseDRAG {
			if c.Beta != nil {
				t.Fatalf("%s request carries beta %v", c.PulseType, *c.Beta)
			}
			continue
		}
		if c.Beta == nil {
			t.Fatal("DRAG request without beta")
		}
		if *c.Beta < 0.1 || *c.Beta > 1.0 {
			t.Fatalf("beta %v outside [0.1, 1.0]", *c.Beta)
		}
		betas[*c.Beta] = true
	}
	if len(betas) != 4 {
		t.Fatalf("expected 4 distinct beta values, got %d", len(betas))
	}

	r = &stubRunner{fn: func(req experiment.Request) (float64, error) {
		if req.PulseType == models.PulseGaussian {
			return 0.9, nil
		}
		return 0.1, nil
	}}
	best, err := BasicOptimization(context.Background(), r, models.AllPulseTypes(), config.DefaultAmplitudeRange, config.DefaultFrequencyRange, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if best.PulseType != models.PulseGaussian || best.Beta != nil {
		t.Fatalf("expected Gaussian winner without beta, got %s", best)
	}
}

func TestParallelMatchesSequential(t *testing.T) {
	// coarse fidelity values create many ties
	coarse := func(req experiment.Request) (float64, error) {
		f, _ := peaked(req)
		return math.Round(f*10) / 10, nil
	}
	ctx := context.Background()
	seq, err := New(&stubRunner{fn: coarse}).Search(ctx, models.AllPulseTypes(), config.DefaultAmplitudeRange, config.DefaultFrequencyRange, 4)
	if err != nil {
		t.Fatalf("sequential: %v", err)
	}
	for _, workers := range []int{2, 4, 16} {
		par, err := New(&stubRunner{fn: coarse}, WithWorkers(workers)).Search(ctx, models.AllPulseTypes(), config.DefaultAmplitudeRange, config.DefaultFrequencyRange, 4)
		if err != nil {
			t.Fatalf("workers=%d: %v", workers, err)
		}
		if par.Best.String() != seq.Best.String() {
			t.Errorf("workers=%d: got %s, sequential got %s", workers, par.Best, seq.Best)
		}
		if par.Evaluated != seq.Evaluated {
			t.Errorf("workers=%d: evaluated %d, sequential %d", workers, par.Evaluated, seq.Evaluated)
		}
	}
}

func TestHardwareModeForcesSingleWorker(t *testing.T) {
	var active, maxActive int32
	r := &stubRunner{mode: experiment.ModeHardware, fn: func(experiment.Request) (float64, error) {
		n := atomic.AddInt32(&active, 1)
		defer atomic.AddInt32(&active, -1)
		for {
			m := atomic.LoadInt32(&maxActive)
			if n <= m || atomic.CompareAndSwapInt32(&maxActive, m, n) {
				break
			}
		}
		return 0.5, nil
	}}
	report, err := New(r, WithWorkers(8)).Search(context.Background(), models.AllPulseTypes(), config.DefaultAmplitudeRange, config.DefaultFrequencyRange, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Workers != 1 || maxActive != 1 {
		t.Fatalf("expected a single worker, report says %d and saw %d concurrent", report.Workers, maxActive)
	}
}

func TestFailurePolicies(t *testing.T) {
	boom := errors.New("boom")
	failing := func(req experiment.Request) (float64, error) {
		if req.PulseType == models.PulseSquare {
			return 0, boom
		}
		return 0.6, nil
	}
	pulseTypes := []models.PulseType{models.PulseGaussian, models.PulseSquare, models.PulseDRAG}

	t.Run("abort", func(t *testing.T) {
		r := &stubRunner{fn: failing}
		report, err := New(r).Search(context.Background(), pulseTypes, config.DefaultAmplitudeRange, config.DefaultFrequencyRange, 2)
		if !errors.Is(err, boom) {
			t.Fatalf("expected boom, got %v", err)
		}
		// the four Gaussian points and the first Square point
		if len(r.calls) != 5 {
			t.Fatalf("expected search to stop after 5 calls, got %d", len(r.calls))
		}
		if report == nil || report.Evaluated != 4 || len(report.Failures) != 1 {
			t.Fatalf("unexpected report %+v", report)
		}
	})

	t.Run("skip", func(t *testing.T) {
		r := &stubRunner{fn: failing}
		report, err := New(r, WithFailurePolicy(FailurePolicySkip)).Search(context.Background(), pulseTypes, config.DefaultAmplitudeRange, config.DefaultFrequencyRange, 2)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(r.calls) != 4+4+8 {
			t.Fatalf("expected every point to run, got %d calls", len(r.calls))
		}
		if len(report.Failures) != 4 || report.Evaluated != 12 {
			t.Fatalf("unexpected report: %d failures, %d evaluated", len(report.Failures), report.Evaluated)
		}
		if report.Best.PulseType != models.PulseGaussian {
			t.Fatalf("expected Gaussian winner, got %s", report.Best)
		}
	})

	t.Run("skip with every point failing", func(t *testing.T) {
		r := &stubRunner{fn: func(experiment.Request) (float64, error) { return 0, boom }}
		_, err := New(r, WithFailurePolicy(FailurePolicySkip)).Search(context.Background(), []models.PulseType{models.PulseSquare}, config.DefaultAmplitudeRange, config.DefaultFrequencyRange, 2)
		if !errors.Is(err, boom) {
			t.Fatalf("expected boom, got %v", err)
		}
	})
}

func TestFailurePoliciesRunnerTimeout(t *testing.T) {
	timeout := fmt.Errorf("%w: acquire: %w", experiment.ErrHardware, context.DeadlineExceeded)
	squareTimesOut := func(req experiment.Request) (float64, error) {
		if req.PulseType == models.PulseSquare {
			return 0, timeout
		}
		return 0.6, nil
	}
	pulseTypes := []models.PulseType{models.PulseGaussian, models.PulseSquare}

	tests := []struct {
		name      string
		policy    FailurePolicy
		fn        func(experiment.Request) (float64, error)
		wantErr   bool
		failures  int
		evaluated int
	}{
		{"abort stops on device timeout", FailurePolicyAbort, squareTimesOut, true, 1, 4},
		{"skip records device timeout", FailurePolicySkip, squareTimesOut, false, 4, 4},
		{"skip with every point timing out", FailurePolicySkip, func(experiment.Request) (float64, error) { return 0, timeout }, true, 8, 0},
		{"abort with every point timing out", FailurePolicyAbort, func(experiment.Request) (float64, error) { return 0, timeout }, true, 1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &stubRunner{fn: tt.fn}
			report, err := New(r, WithFailurePolicy(tt.policy)).Search(context.Background(), pulseTypes, config.DefaultAmplitudeRange, config.DefaultFrequencyRange, 2)
			if tt.wantErr {
				if !errors.Is(err, experiment.ErrHardware) || !errors.Is(err, context.DeadlineExceeded) {
					t.Fatalf("expected the device timeout, got %v", err)
				}
			} else if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if report == nil {
				t.Fatal("expected a report")
			}
			if len(report.Failures) != tt.failures || report.Evaluated != tt.evaluated {
				t.Fatalf("expected %d failures and %d evaluated, got %d and %d",
					tt.failures, tt.evaluated, len(report.Failures), report.Evaluated)
			}
		})
	}
}

func TestSearchCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var n int32
	r := &stubRunner{fn: func(experiment.Request) (float64, error) {
		if atomic.AddInt32(&n, 1) == 3 {
			cancel()
		}
		return 0.5, nil
	}}
	report, err := New(r).Search(ctx, models.AllPulseTypes(), config.DefaultAmplitudeRange, config.DefaultFrequencyRange, 5)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if report.Evaluated >= report.Total {
		t.Fatalf("expected search to stop early, evaluated %d of %d", report.Evaluated, report.Total)
	}
}

func TestProgressReporter(t *testing.T) {
	var updates []Progress
	r := &stubRunner{fn: peaked}
	_, err := New(r, WithWorkers(3), WithProgressReporter(func(p Progress) { updates = append(updates, p) })).
		Search(context.Background(), models.AllPulseTypes(), config.DefaultAmplitudeRange, config.DefaultFrequencyRange, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	total := GridSize(models.AllPulseTypes(), 2)
	if len(updates) != total {
		t.Fatalf("expected %d progress updates, got %d", total, len(updates))
	}
	for i, u := range updates {
		if u.Done != i+1 || u.Total != total || u.Best == nil {
			t.Fatalf("update %d: unexpected %+v", i, u)
		}
	}
}

func TestSearchWithSimulatedRunner(t *testing.T) {
	sim := iqsim.NewSimulator(iqsim.WithNoiseLevel(0.5), iqsim.WithSeed(3))
	runner := experiment.NewRunner(experiment.NewSimulatedBackend(sim), experiment.WithNumShots(50))

	cfg := config.Default()
	cfg.Optimization.Workers = 4
	opt, err := NewFromConfig(runner, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	report, err := opt.Search(context.Background(), models.AllPulseTypes(), config.DefaultAmplitudeRange, config.DefaultFrequencyRange, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Evaluated != GridSize(models.AllPulseTypes(), 2) {
		t.Fatalf("expected every point evaluated, got %d", report.Evaluated)
	}
	if report.Best.Fidelity <= 0.5 {
		t.Errorf("expected separable clouds, best fidelity %v", report.Best.Fidelity)
	}
	if (report.Best.Beta != nil) != report.Best.PulseType.HasBeta() {
		t.Errorf("beta presence does not match pulse type: %s", report.Best)
	}
}

func TestParseFailurePolicy(t *testing.T) {
	for in, want := range map[string]FailurePolicy{"": FailurePolicyAbort, "abort": FailurePolicyAbort, "skip": FailurePolicySkip} {
		got, err := ParseFailurePolicy(in)
		if err != nil || got != want {
			t.Errorf("ParseFailurePolicy(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseFailurePolicy("retry"); !errors.Is(err, experiment.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}
