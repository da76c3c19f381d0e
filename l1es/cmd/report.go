package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/sarchlab/l1es/simulation"
)

func newReportCmd(opts *globalOptions) *cobra.Command {
	var configs, scenarios []string

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Generate an attack effectiveness report.",
		Long: "Runs the selected attacks on the selected caches and prints " +
			"success, false positive, and false negative rates. Both lists " +
			"default to everything.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := simulation.ResolveReportConfigs(configs); err != nil {
				return err
			}

			if _, err := simulation.ResolveReportScenarios(scenarios); err != nil {
				return err
			}

			return opts.run(cmd, func(s *simulation.Simulation, w io.Writer) error {
				fmt.Fprintln(w, "=== Attack Effectiveness Report ===")

				report, err := s.RunReport(configs, scenarios)
				if err != nil {
					return err
				}

				return report.Render(w)
			})
		},
	}

	cmd.Flags().StringSliceVar(&configs, "configs", nil,
		"Comma-separated caches: direct-mapped, 2-way, 8-way, fully-associative")
	cmd.Flags().StringSliceVar(&scenarios, "scenarios", nil,
		"Comma-separated attacks: prime-probe, flush-reload, spectre, meltdown")

	return cmd
}
