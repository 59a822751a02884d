package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/cobra"

	"github.com/aristath/runway/internal/modules/aggregation"
	"github.com/aristath/runway/internal/modules/export"
	"github.com/aristath/runway/internal/modules/simulation"
)

// errMismatch is returned when a replayed run does not reproduce its manifest
var errMismatch = errors.New("replay does not match the manifest")

func newReplayCmd(opts *globalOptions) *cobra.Command {
	var (
		iteration int
		asJSON    bool
	)

	cmd := &cobra.Command{
		Use:   "replay <manifest.json>",
		Short: "Reproduce an exported run, or a single path from it",
		Long: `Re-runs the ensemble recorded in a manifest with its own policy, config and
levers and checks that the run key and terminal ARR statistics are identical.

With --iteration, only that path is regenerated and printed month by month.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open manifest: %w", err)
			}
			m, err := export.DecodeManifest(f)
			f.Close()
			if err != nil {
				return err
			}

			svc, err := newService(opts, m.Policy, m.Config, pipelineOptions{
				buckets:     aggregation.DefaultBuckets,
				sensitivity: 0,
			})
			if err != nil {
				return err
			}
			defer svc.Close()

			req := simulation.Request{Baseline: m.Baseline, Config: &m.Config, Levers: m.Levers}
			out := cmd.OutOrStdout()

			if cmd.Flags().Changed("iteration") {
				path, err := svc.Replay(cmd.Context(), req, iteration)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(out, path)
				}
				fmt.Fprintf(out, "Iteration %d  survived=%t", path.Iteration, path.Survived)
				if path.DeathMonth > 0 {
					fmt.Fprintf(out, "  death_month=%d", path.DeathMonth)
				}
				fmt.Fprintln(out)
				fmt.Fprintf(out, "%5s %14s %14s %12s %8s\n", "month", "arr", "cash", "burn", "runway")
				for _, p := range path.Points {
					fmt.Fprintf(out, "%5d %14.0f %14.0f %12.0f %8.1f\n", p.Month, p.ARR, p.Cash, p.Burn, p.Runway)
				}
				return nil
			}

			res, err := svc.Simulate(cmd.Context(), req)
			if err != nil {
				return err
			}
			if err := verify(m, res); err != nil {
				return err
			}
			fmt.Fprintf(out, "reproduced %s (%d paths, P50 %.0f)\n", res.RunKey, res.Iterations, res.Percentiles.P50)
			return nil
		},
	}

	cmd.Flags().IntVar(&iteration, "iteration", 0, "Regenerate a single path by iteration index")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the path as JSON")
	return cmd
}

// verify compares the parts of a result that do not depend on histogram or
// sensitivity settings
func verify(m export.Manifest, res *aggregation.AggregateResult) error {
	if res.RunKey != m.RunKey {
		return fmt.Errorf("%w: run key %s, manifest has %s", errMismatch, res.RunKey, m.RunKey)
	}
	if m.Result == nil {
		return nil
	}
	if diff := cmp.Diff(m.Result.Percentiles, res.Percentiles); diff != "" {
		return fmt.Errorf("%w: percentiles (-manifest +replay):\n%s", errMismatch, diff)
	}
	if diff := cmp.Diff(m.Result.Distribution, res.Distribution); diff != "" {
		return fmt.Errorf("%w: distribution (-manifest +replay):\n%s", errMismatch, diff)
	}
	if m.Result.SurvivalRate != res.SurvivalRate {
		return fmt.Errorf("%w: survival rate %v, manifest has %v", errMismatch, res.SurvivalRate, m.Result.SurvivalRate)
	}
	return nil
}
