package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sarchlab/l1es/simulation"
)

func newBenchmarkCmd(opts *globalOptions) *cobra.Command {
	var (
		iterations int
		detailed   bool
	)

	cmd := &cobra.Command{
		Use:   "benchmark",
		Short: "Replay a pseudo-random access stream on every preset.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.run(cmd, func(s *simulation.Simulation, w io.Writer) error {
				fmt.Fprintf(w, "Running benchmark suite with %d iterations...\n",
					iterations)

				rows, err := s.RunBenchmark(iterations, detailed)
				if err != nil {
					return err
				}

				tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "Configuration\tHit Rate\tAvg Cycles\tElapsed")

				for _, row := range rows {
					fmt.Fprintf(tw, "%s\t%.1f%%\t%.1f\t%s\n",
						row.Config.Name,
						row.Stats.HitRate*100,
						row.Stats.AverageAccessTime,
						row.Elapsed,
					)
				}

				return tw.Flush()
			})
		},
	}

	cmd.Flags().IntVarP(&iterations, "iterations", "i", 1000,
		"Accesses per configuration")
	cmd.Flags().BoolVar(&detailed, "detailed", false,
		"Keep per-access timing data")

	return cmd
}
