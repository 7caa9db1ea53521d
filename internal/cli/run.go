package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/GoSim-25-26J-441/readout-calibration/internal/experiment"
	"github.com/GoSim-25-26J-441/readout-calibration/pkg/models"
)

// Manual experiment modes.
const (
	ManualSingle = "single"
	ManualRange  = "range"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	SaveOptions

	ManualMode string
	Pulse      string
	Amplitude  []float64
	Frequency  []float64
	SweepParam string
	Points     int
}

// NewRunCommand creates the run command (manual mode).
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run readout experiments for manual analysis",
		Long: `Run readout experiments at fixed parameters.

In single mode every selected pulse runs once at one amplitude and frequency.
In range mode the sweep parameter takes two values (min, max) and is visited
at evenly spaced points; the other parameter takes one value.

Example:
  readout run --mode single --pulse all --amplitude 1.0 --frequency 6.5
  readout run --mode range --pulse Gaussian --amplitude 0.5,2.0 --frequency 6.5
  readout run --mode range --sweep-param frequency --pulse DRAG --amplitude 1.0 --frequency 6.4,6.6 --save`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runManual(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.ManualMode, "mode", "m", ManualSingle, "manual mode (single|range)")
	cmd.Flags().StringVarP(&opts.Pulse, "pulse", "p", "all", "pulse shape (Gaussian, Square, DRAG or all)")
	cmd.Flags().Float64SliceVar(&opts.Amplitude, "amplitude", nil, "amplitude, or min,max when sweeping amplitude (required)")
	cmd.Flags().Float64SliceVar(&opts.Frequency, "frequency", nil, "frequency in GHz, or min,max when sweeping frequency (required)")
	cmd.Flags().StringVar(&opts.SweepParam, "sweep-param", string(experiment.SweepAmplitude), "parameter swept in range mode (amplitude|frequency)")
	cmd.Flags().IntVar(&opts.Points, "points", experiment.DefaultSweepPoints, "sweep points in range mode")
	_ = cmd.MarkFlagRequired("amplitude")
	_ = cmd.MarkFlagRequired("frequency")
	opts.SaveOptions.register(cmd)

	return cmd
}

func runManual(cmd *cobra.Command, opts *RunOptions) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	pulses, err := parsePulses(opts.Pulse)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid pulse", err)
	}
	saver, err := opts.saver(cfg)
	if err != nil {
		return err
	}

	var run func(r experiment.Runner) ([]*models.ExperimentResult, error)
	switch opts.ManualMode {
	case ManualSingle:
		if len(opts.Amplitude) != 1 || len(opts.Frequency) != 1 {
			return NewExitError(ExitCommandError, "single mode requires exactly one value for amplitude and frequency")
		}
		run = func(r experiment.Runner) ([]*models.ExperimentResult, error) {
			return experiment.RunSingle(cmd.Context(), r, pulses, opts.Amplitude[0], opts.Frequency[0])
		}
	case ManualRange:
		param, err := experiment.ParseSweepParam(opts.SweepParam)
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid sweep parameter", err)
		}
		swept, fixed := opts.Amplitude, opts.Frequency
		if param == experiment.SweepFrequency {
			swept, fixed = opts.Frequency, opts.Amplitude
		}
		if len(swept) != 2 || len(fixed) != 1 {
			return NewExitError(ExitCommandError, fmt.Sprintf("%s sweep requires two %s values (min, max) and one value for the other parameter", param, param))
		}
		run = func(r experiment.Runner) ([]*models.ExperimentResult, error) {
			return experiment.RunRange(cmd.Context(), r, pulses, param, models.NewRange(swept[0], swept[1]), fixed[0], opts.Points)
		}
	default:
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid mode %q: must be single or range", opts.ManualMode))
	}

	runner, closeRunner, err := opts.runner(cfg)
	if err != nil {
		return err
	}
	defer closeRunner()

	res, err := run(runner)
	if err != nil {
		return commandError("experiment failed", err)
	}

	if err := record(cmd.Context(), cfg, "", res); err != nil {
		return err
	}
	var saved string
	if saver != nil {
		if saved, err = saver.Save(res); err != nil {
			return WrapExitError(ExitFailure, "failed to save results", err)
		}
	}

	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	scalars := make([]*models.OptimizationResult, len(res))
	for i, r := range res {
		scalars[i] = r.Scalars()
	}
	return out.Success(scalars, saved, func(w io.Writer) {
		for _, s := range scalars {
			fmt.Fprintln(w, s)
		}
	})
}
