// Package main implements the runway CLI: fragility scoring, Monte Carlo projections
// and reproduction of exported runs from the command line.
package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/aristath/runway/internal/domain"
	"github.com/aristath/runway/pkg/logger"
)

// globalOptions are the persistent flags shared by every command
type globalOptions struct {
	verbose    bool
	policyFile string
	workers    int
	log        zerolog.Logger
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{log: zerolog.Nop()}

	root := &cobra.Command{
		Use:   "runway",
		Short: "Stochastic runway projections from company fundamentals",
		Long: `runway derives volatility, correlation and tail-risk parameters from a locked
baseline, scores its fragility and projects cash and ARR with a seeded Monte Carlo
ensemble. Identical inputs always produce identical output.

Baselines are YAML files; amounts may be written as "$1.2M", "150,000" or "85k" and
percentages as "4%" or "4".`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := "warn"
			if opts.verbose {
				level = "debug"
			}
			opts.log = logger.New(logger.Config{Level: level, Pretty: true, Output: cmd.ErrOrStderr()})
			return nil
		},
	}

	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&opts.policyFile, "policy", "", "Fragility policy YAML file (default policy when empty)")
	root.PersistentFlags().IntVar(&opts.workers, "workers", 0, "Simulation workers (0 = one per logical CPU)")

	root.AddCommand(
		newFragilityCmd(opts),
		newSimulateCmd(opts),
		newReplayCmd(opts),
	)
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, describeError(err))
		os.Exit(exitCode(err))
	}
}

// describeError turns the error taxonomy into a one-line message
func describeError(err error) string {
	switch {
	case domain.IsInputError(err):
		return "invalid baseline: " + err.Error()
	case domain.IsConfigurationError(err):
		return "invalid configuration: " + err.Error()
	case domain.IsNumericAnomaly(err):
		return "simulation produced no usable paths: " + err.Error()
	case domain.IsCancelled(err):
		return "cancelled"
	default:
		return "error: " + err.Error()
	}
}

func exitCode(err error) int {
	switch {
	case domain.IsInputError(err), domain.IsConfigurationError(err):
		return 2
	case domain.IsCancelled(err):
		return 130
	default:
		return 1
	}
}
