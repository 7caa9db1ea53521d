package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/GoSim-25-26J-441/readout-calibration/internal/results"
	"github.com/GoSim-25-26J-441/readout-calibration/pkg/logger"
)

// ResultsOptions holds flags for the results command.
type ResultsOptions struct {
	*RootOptions
	JobID string
	Limit int
}

// NewResultsCommand creates the results command, which lists stored records.
func NewResultsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ResultsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "results",
		Short: "List results from the configured result store",
		Long: `List experiment results persisted in the SQLite or Badger store named
by the storage section of the config.

Example:
  readout results --config config/readout.yaml --limit 20
  readout results --config config/readout.yaml --job-id cal-0190... --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return listResults(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.JobID, "job-id", "", "only results of this calibration job")
	cmd.Flags().IntVar(&opts.Limit, "limit", 50, "maximum number of results (0 for all)")

	return cmd
}

func listResults(cmd *cobra.Command, opts *ResultsOptions) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	store, err := results.Open(cfg.Storage)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open result store", err)
	}
	if store == nil {
		return NewExitError(ExitCommandError, "no result store configured (storage.driver is none)")
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("error closing result store", "error", err)
		}
	}()

	recs, err := store.List(cmd.Context(), results.Filter{JobID: opts.JobID, Limit: opts.Limit})
	if err != nil {
		return WrapExitError(ExitFailure, "failed to list results", err)
	}
	for _, r := range recs {
		r.Result = results.FromOptimization(r.Result.Scalars())
	}

	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	return out.Success(recs, "", func(w io.Writer) {
		if len(recs) == 0 {
			fmt.Fprintln(w, "No results")
			return
		}
		for _, r := range recs {
			fmt.Fprintf(w, "%s  %s  %s\n", r.CreatedAt.Format(time.RFC3339), r.ID, r.Result.Scalars())
		}
	})
}
