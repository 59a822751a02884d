package main

import (
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/aristath/runway/internal/config"
	"github.com/aristath/runway/internal/modules/aggregation"
	"github.com/aristath/runway/internal/modules/elasticity"
	"github.com/aristath/runway/internal/modules/export"
	"github.com/aristath/runway/internal/modules/montecarlo"
	"github.com/aristath/runway/internal/modules/simulation"
)

func newSimulateCmd(opts *globalOptions) *cobra.Command {
	var (
		cfg          montecarlo.Config
		buckets      int
		sensitivity  int
		asJSON       bool
		quiet        bool
		manifestPath string
		levers       leverFlags
	)

	cmd := &cobra.Command{
		Use:   "simulate <baseline.yaml>",
		Short: "Run a Monte Carlo projection of a locked baseline",
		Long: `Runs the ensemble and prints percentiles, the terminal ARR histogram, the survival
rate and the sensitivity ranking. Ctrl-C cancels the run; no partial result is printed.

--manifest writes a reproduction manifest that "runway replay" can verify later.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := loadBaseline(args[0])
			if err != nil {
				return err
			}
			policy, err := config.LoadPolicy(opts.policyFile)
			if err != nil {
				return err
			}

			po := pipelineOptions{buckets: buckets, sensitivity: sensitivity}
			if !quiet && !asJSON {
				po.progress = cmd.ErrOrStderr()
			}
			svc, err := newService(opts, policy, cfg, po)
			if err != nil {
				return err
			}
			defer svc.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			req := simulation.Request{Baseline: b, Config: &cfg, Levers: levers.levers(cmd)}
			res, err := svc.Simulate(ctx, req)
			if po.progress != nil {
				fmt.Fprintln(po.progress)
			}
			if err != nil {
				return err
			}

			if manifestPath != "" {
				if err := writeManifest(manifestPath, req, policy, res); err != nil {
					return err
				}
			}

			if asJSON {
				return writeJSON(cmd.OutOrStdout(), res)
			}
			printResult(cmd.OutOrStdout(), res)
			return nil
		},
	}

	f := cmd.Flags()
	f.IntVarP(&cfg.Iterations, "iterations", "n", 2000, "Number of simulated paths")
	f.IntVar(&cfg.HorizonMonths, "horizon", 36, "Projection horizon in months")
	f.IntVar(&buckets, "buckets", aggregation.DefaultBuckets, "Histogram buckets")
	f.IntVar(&sensitivity, "sensitivity", aggregation.DefaultSensitivityIterations, "Paths per sensitivity sub-ensemble (0 disables)")
	f.BoolVar(&asJSON, "json", false, "Print the aggregate result as JSON")
	f.BoolVarP(&quiet, "quiet", "q", false, "Do not print progress")
	f.StringVar(&manifestPath, "manifest", "", "Write a reproduction manifest to this path")
	levers.register(cmd)

	return cmd
}

func writeManifest(path string, req simulation.Request, policy elasticity.Policy, res *aggregation.AggregateResult) error {
	m := export.Manifest{
		Version:    export.ManifestVersion,
		ScenarioID: res.ScenarioID,
		RunKey:     res.RunKey,
		Seed:       res.Seed,
		Baseline:   req.Baseline,
		Config:     *req.Config,
		Levers:     req.Levers,
		Policy:     policy,
		Result:     res,
		ExportedAt: time.Now().UTC(),
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create manifest: %w", err)
	}
	if err := writeJSON(f, m); err != nil {
		f.Close()
		return fmt.Errorf("write manifest: %w", err)
	}
	return f.Close()
}
