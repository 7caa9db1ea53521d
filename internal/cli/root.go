package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/GoSim-25-26J-441/readout-calibration/internal/experiment"
	"github.com/GoSim-25-26J-441/readout-calibration/pkg/config"
	"github.com/GoSim-25-26J-441/readout-calibration/pkg/logger"
	"github.com/GoSim-25-26J-441/readout-calibration/pkg/models"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	LogLevel   string
	Format     string // "json" | "text"

	// NewRunner overrides runner construction (for testing).
	// If nil, the runner is built from the loaded config.
	NewRunner func(cfg *config.Config) (experiment.Runner, error)
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the readout CLI.
func NewRootCommand() *cobra.Command {
	return NewRootCommandWithOptions(&RootOptions{})
}

// NewRootCommandWithOptions creates the root command around opts, so callers
// can preset fields such as NewRunner.
func NewRootCommandWithOptions(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "readout",
		Short: "Qubit readout pulse calibration",
		Long: `Simulate qubit readout experiments and search pulse parameters
for the configuration that best separates the |0> and |1> IQ clouds.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			logger.SetDefault(logger.NewText(opts.LogLevel, cmd.ErrOrStderr()))
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "path to YAML config (defaults when empty)")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewOptimizeCommand(opts))
	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewResultsCommand(opts))
	cmd.AddCommand(NewConfigCommand(opts))

	return cmd
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := NewRootCommand()
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return GetExitCode(err)
	}
	return ExitSuccess
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

func (o *RootOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.LoadOrDefault(o.ConfigPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	return cfg, nil
}

func (o *RootOptions) runner(cfg *config.Config) (experiment.Runner, func(), error) {
	if o.NewRunner != nil {
		r, err := o.NewRunner(cfg)
		if err != nil {
			return nil, nil, WrapExitError(ExitCommandError, "failed to create runner", err)
		}
		return r, func() {}, nil
	}
	r, err := experiment.NewRunnerFromConfig(cfg, nil)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "failed to create runner", err)
	}
	return r, func() {
		if err := r.Close(); err != nil {
			logger.Warn("failed to close runner", "error", err)
		}
	}, nil
}

// parsePulses resolves a pulse name, or "all" for every pulse type.
func parsePulses(s string) ([]models.PulseType, error) {
	if strings.EqualFold(strings.TrimSpace(s), "all") {
		return models.AllPulseTypes(), nil
	}
	pt, err := models.ParsePulseType(s)
	if err != nil {
		return nil, err
	}
	return []models.PulseType{pt}, nil
}

// commandError classifies err for the exit code: bad input is a command
// error, anything else a run failure.
func commandError(message string, err error) error {
	if experiment.IsInputError(err) {
		return WrapExitError(ExitCommandError, message, err)
	}
	return WrapExitError(ExitFailure, message, err)
}
