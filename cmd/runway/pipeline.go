package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aristath/runway/internal/domain"
	"github.com/aristath/runway/internal/events"
	"github.com/aristath/runway/internal/modules/aggregation"
	"github.com/aristath/runway/internal/modules/elasticity"
	"github.com/aristath/runway/internal/modules/montecarlo"
	"github.com/aristath/runway/internal/modules/simulation"
)

// pipelineOptions tune aggregation for one invocation
type pipelineOptions struct {
	buckets     int
	sensitivity int
	progress    io.Writer // nil disables the progress line
}

// newService builds an in-process simulation service. Nothing is stored or exported;
// the caller decides what to do with the result.
func newService(opts *globalOptions, policy elasticity.Policy, cfg montecarlo.Config, po pipelineOptions) (*simulation.Service, error) {
	if po.sensitivity < 0 || po.sensitivity > montecarlo.MaxSensitivityIterations {
		return nil, &domain.ConfigurationError{Field: "sensitivity", Reason: fmt.Sprintf("must be in 0..%d", montecarlo.MaxSensitivityIterations)}
	}
	deriver, err := elasticity.NewDeriver(policy)
	if err != nil {
		return nil, err
	}
	engine := montecarlo.NewEngine(montecarlo.Options{Workers: opts.workers}, opts.log)
	agg := aggregation.NewAggregator(engine, aggregation.Options{
		Buckets:               po.buckets,
		SensitivityIterations: po.sensitivity,
	}, opts.log)

	var em *events.Manager
	if po.progress != nil {
		bus := events.NewBus()
		bus.Subscribe(events.SimulationProgress, func(e *events.Event) {
			fmt.Fprintf(po.progress, "\r%-12v %5.1f%%", e.Data["stage"], e.Data["percent"])
		})
		em = events.NewManager(bus, opts.log)
	}

	return simulation.NewService(simulation.Deps{
		Deriver:    deriver,
		Engine:     engine,
		Aggregator: agg,
		Events:     em,
		Defaults:   cfg,
	}, opts.log), nil
}

// leverFlags binds what-if overrides. Unset flags keep the baseline value.
type leverFlags struct {
	cash, burn, arr, growth, churn, margin float64
}

func (l *leverFlags) register(cmd *cobra.Command) {
	f := cmd.Flags()
	f.Float64Var(&l.cash, "cash", 0, "Override cash on hand")
	f.Float64Var(&l.burn, "burn", 0, "Override monthly burn")
	f.Float64Var(&l.arr, "arr", 0, "Override ARR")
	f.Float64Var(&l.growth, "growth", 0, "Override monthly growth (percent)")
	f.Float64Var(&l.churn, "churn", 0, "Override monthly churn (percent)")
	f.Float64Var(&l.margin, "margin", 0, "Override gross margin (percent)")
}

func (l *leverFlags) levers(cmd *cobra.Command) montecarlo.Levers {
	var out montecarlo.Levers
	set := func(name string, v float64, dst **float64) {
		if cmd.Flags().Changed(name) {
			*dst = &v
		}
	}
	set("cash", l.cash, &out.CashOnHand)
	set("burn", l.burn, &out.MonthlyBurn)
	set("arr", l.arr, &out.ARR)
	set("growth", l.growth, &out.MonthlyGrowthPct)
	set("churn", l.churn, &out.MonthlyChurnPct)
	set("margin", l.margin, &out.GrossMarginPct)
	return out
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printResult writes a plain-text summary of an aggregate
func printResult(w io.Writer, res *aggregation.AggregateResult) {
	fmt.Fprintf(w, "Scenario       %s\n", res.ScenarioID)
	fmt.Fprintf(w, "Run key        %s\n", res.RunKey)
	fmt.Fprintf(w, "Ensemble       %d paths x %d months", res.Iterations, res.HorizonMonths)
	if res.ExcludedPaths > 0 {
		fmt.Fprintf(w, " (%d excluded as non-finite)", res.ExcludedPaths)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Fragility      %d (%s)\n", res.Fragility, res.Band)
	fmt.Fprintf(w, "Survival       %.1f%%\n", 100*res.SurvivalRate)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Terminal ARR")
	fmt.Fprintf(w, "  P10 %14.0f\n  P50 %14.0f\n  P90 %14.0f\n", res.Percentiles.P10, res.Percentiles.P50, res.Percentiles.P90)
	fmt.Fprintf(w, "  mean %13.0f  std %.0f  skew %.3f\n", res.Distribution.Mean, res.Distribution.StdDev, res.Distribution.Skewness)
	fmt.Fprintln(w)

	peak := 0.0
	for _, b := range res.Histogram {
		peak = max(peak, b.Frequency)
	}
	for _, b := range res.Histogram {
		bar := 0
		if peak > 0 {
			bar = int(40 * b.Frequency / peak)
		}
		fmt.Fprintf(w, "  %14.0f .. %-14.0f %5.1f%% %s\n", b.Min, b.Max, 100*b.Frequency, strings.Repeat("#", bar))
	}

	if len(res.SensitivityFactors) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Sensitivity (one-at-a-time)")
		for _, f := range res.SensitivityFactors {
			fmt.Fprintf(w, "  %-24s %+.4f\n", f.Factor, f.ImpactScore)
		}
	}
}
