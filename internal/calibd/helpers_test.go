package calibd

import (
	"context"
	"testing"
	"time"

	"github.com/GoSim-25-26J-441/readout-calibration/internal/experiment"
	"github.com/GoSim-25-26J-441/readout-calibration/internal/iqsim"
	"github.com/GoSim-25-26J-441/readout-calibration/pkg/config"
	"github.com/GoSim-25-26J-441/readout-calibration/pkg/models"
)

func simulatedRunner() *experiment.Experiment {
	sim := iqsim.NewSimulator(iqsim.WithSeed(5))
	return experiment.NewRunner(experiment.NewSimulatedBackend(sim), experiment.WithNumShots(20))
}

// blockingRunner never finishes a point until its context is cancelled.
func blockingRunner() experiment.RunnerFunc {
	return func(ctx context.Context, req experiment.Request) (*models.ExperimentResult, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
}

func newTestExecutor(runner experiment.Runner, opts ...ExecutorOption) (*JobStore, *Executor) {
	store := NewJobStore()
	cfg := config.Default()
	cfg.Optimization.Steps = 2
	return store, NewExecutor(store, runner, cfg, opts...)
}

func waitForStatus(t *testing.T, store *JobStore, id string, want JobStatus) *Job {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, ok := store.Get(id)
		if ok && job.Status == want {
			return job
		}
		time.Sleep(5 * time.Millisecond)
	}
	job, _ := store.Get(id)
	t.Fatalf("job %s did not reach %s, last state %+v", id, want, job)
	return nil
}
