package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/GoSim-25-26J-441/readout-calibration/internal/results"
	"github.com/GoSim-25-26J-441/readout-calibration/pkg/config"
	"github.com/GoSim-25-26J-441/readout-calibration/pkg/logger"
	"github.com/GoSim-25-26J-441/readout-calibration/pkg/models"
)

// SaveOptions holds the result-file flags shared by optimize and run.
type SaveOptions struct {
	Save       bool
	SaveFormat string
	ResultsDir string
}

func (s *SaveOptions) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&s.Save, "save", false, "save results to a file")
	cmd.Flags().StringVar(&s.SaveFormat, "save-format", "", "file format for saved results (json|csv, default from config)")
	cmd.Flags().StringVar(&s.ResultsDir, "results-dir", "", "directory for saved results (default from config)")
}

// saver returns nil when saving is disabled.
func (s *SaveOptions) saver(cfg *config.Config) (*results.Saver, error) {
	if !s.Save {
		return nil, nil
	}
	format := s.SaveFormat
	if format == "" {
		format = cfg.Storage.Format
	}
	f, err := results.ParseFormat(format)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid save format", err)
	}
	dir := s.ResultsDir
	if dir == "" {
		dir = cfg.Storage.ResultsDir
	}
	return results.NewSaver(dir, f), nil
}

// record puts results into the configured result store, if any.
func record(ctx context.Context, cfg *config.Config, jobID string, res []*models.ExperimentResult) error {
	store, err := results.Open(cfg.Storage)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open result store", err)
	}
	if store == nil {
		return nil
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("error closing result store", "error", err)
		}
	}()
	for _, r := range res {
		if err := store.Put(ctx, results.NewRecord(jobID, r)); err != nil {
			return WrapExitError(ExitFailure, "failed to store result", err)
		}
	}
	logger.Info("results stored", "driver", cfg.Storage.Driver, "count", len(res), "job_id", jobID)
	return nil
}
