package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aristath/runway/internal/config"
	"github.com/aristath/runway/internal/modules/elasticity"
)

func newFragilityCmd(opts *globalOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "fragility <baseline.yaml>",
		Short: "Score a baseline and print its derived elasticity parameters",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := loadBaseline(args[0])
			if err != nil {
				return err
			}
			policy, err := config.LoadPolicy(opts.policyFile)
			if err != nil {
				return err
			}
			deriver, err := elasticity.NewDeriver(policy)
			if err != nil {
				return err
			}

			res, err := deriver.Derive(b)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, res)
			}

			fmt.Fprintf(out, "Fragility      %d (%s)\n", res.Fragility, res.Band)
			fmt.Fprintf(out, "Runway         %s months\n", formatRunway(res.RunwayMonths))
			fmt.Fprintf(out, "Burn multiple  %.2f\n", res.BurnMultiple)
			fmt.Fprintln(out)
			fmt.Fprintln(out, "Parameters")
			for _, f := range elasticity.Factors() {
				fmt.Fprintf(out, "  %-24s %.4f\n", f, res.Params.Get(f))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the result as JSON")
	return cmd
}

func formatRunway(months float64) string {
	if months >= elasticity.RunwaySentinel {
		return "unbounded"
	}
	return fmt.Sprintf("%.1f", months)
}
