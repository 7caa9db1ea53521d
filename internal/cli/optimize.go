package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/GoSim-25-26J-441/readout-calibration/internal/metrics"
	"github.com/GoSim-25-26J-441/readout-calibration/internal/optimizer"
	"github.com/GoSim-25-26J-441/readout-calibration/internal/results"
	"github.com/GoSim-25-26J-441/readout-calibration/pkg/logger"
	"github.com/GoSim-25-26J-441/readout-calibration/pkg/models"
	"github.com/GoSim-25-26J-441/readout-calibration/pkg/utils"
)

// OptimizeOptions holds flags for the optimize command.
type OptimizeOptions struct {
	*RootOptions
	SaveOptions

	Pulse         string
	Amplitude     float64
	Frequency     float64
	Steps         int
	Workers       int
	FailurePolicy string
}

// NewOptimizeCommand creates the optimize command (automatic mode).
func NewOptimizeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &OptimizeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "optimize",
		Short: "Search pulse parameters around a starting point",
		Long: `Grid-search the pulse type, amplitude, frequency and (for DRAG) beta
for the highest readout fidelity.

The amplitude range is the starting amplitude scaled by 1 ± amplitude_scaling
and the frequency range the starting frequency scaled by 1 ± frequency_scaling,
both clamped to the configured validation ranges.

Example:
  readout optimize --pulse all --amplitude 1.25 --frequency 6.5 --steps 5
  readout optimize --pulse DRAG --amplitude 1.0 --frequency 6.5 --save --save-format csv`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOptimize(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Pulse, "pulse", "p", "all", "pulse shape (Gaussian, Square, DRAG or all)")
	cmd.Flags().Float64Var(&opts.Amplitude, "amplitude", 0, "starting amplitude (required)")
	cmd.Flags().Float64Var(&opts.Frequency, "frequency", 0, "starting frequency in GHz (required)")
	cmd.Flags().IntVar(&opts.Steps, "steps", 0, "grid steps per parameter (default from config)")
	cmd.Flags().IntVar(&opts.Workers, "workers", 0, "parallel grid workers (default from config)")
	cmd.Flags().StringVar(&opts.FailurePolicy, "failure-policy", "", "abort or skip failing grid points (default from config)")
	_ = cmd.MarkFlagRequired("amplitude")
	_ = cmd.MarkFlagRequired("frequency")
	opts.SaveOptions.register(cmd)

	return cmd
}

func runOptimize(cmd *cobra.Command, opts *OptimizeOptions) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	pulses, err := parsePulses(opts.Pulse)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid pulse", err)
	}
	steps := cfg.Optimization.Steps
	if cmd.Flags().Changed("steps") {
		steps = opts.Steps
	}
	if steps <= 0 {
		return NewExitError(ExitCommandError, fmt.Sprintf("--steps must be a positive integer, got %d", steps))
	}
	saver, err := opts.saver(cfg)
	if err != nil {
		return err
	}

	var extra []optimizer.Option
	if opts.Workers > 0 {
		extra = append(extra, optimizer.WithWorkers(opts.Workers))
	}
	if opts.FailurePolicy != "" {
		policy, err := optimizer.ParseFailurePolicy(opts.FailurePolicy)
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid failure policy", err)
		}
		extra = append(extra, optimizer.WithFailurePolicy(policy))
	}

	runner, closeRunner, err := opts.runner(cfg)
	if err != nil {
		return err
	}
	defer closeRunner()

	collector := metrics.NewCollector()
	opt, err := optimizer.NewFromConfig(metrics.NewInstrumentedRunner(runner, collector), cfg, extra...)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid optimization settings", err)
	}

	amplitude := optimizer.ClampRange(optimizer.RangeAround(opts.Amplitude, cfg.Optimization.AmplitudeScaling), cfg.Ranges.Amplitude)
	frequency := optimizer.ClampRange(optimizer.RangeAround(opts.Frequency, cfg.Optimization.FrequencyScaling), cfg.Ranges.Frequency)
	logger.Info("automatic optimization",
		"pulses", pulses,
		"amplitude_range", amplitude.String(),
		"frequency_range", frequency.String(),
		"steps", steps)

	collector.Start()
	report, err := opt.Search(cmd.Context(), pulses, amplitude, frequency, steps)
	collector.Stop()
	if err != nil {
		return commandError("optimization failed", err)
	}

	jobID := utils.GenerateJobID()
	best := results.FromOptimization(report.Best)
	if err := record(cmd.Context(), cfg, jobID, []*models.ExperimentResult{best}); err != nil {
		return err
	}
	var saved string
	if saver != nil {
		if saved, err = saver.SaveBest(report.Best); err != nil {
			return WrapExitError(ExitFailure, "failed to save results", err)
		}
	}

	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	return out.Success(map[string]any{
		"best":      report.Best,
		"total":     report.Total,
		"evaluated": report.Evaluated,
		"failures":  len(report.Failures),
		"metrics":   metrics.Summarize(collector),
	}, saved, func(w io.Writer) {
		fmt.Fprintf(w, "Best parameters are: %s\n", report.Best)
		if n := len(report.Failures); n > 0 {
			fmt.Fprintf(w, "%d of %d grid points failed\n", n, report.Total)
		}
	})
}
