package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sarchlab/l1es/datarecording"
	"github.com/sarchlab/l1es/measurement"
)

func newResultsCmd() *cobra.Command {
	var (
		limit    int
		testName string
	)

	cmd := &cobra.Command{
		Use:   "results DATABASE",
		Short: "List the results recorded in an SQLite database.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reader, err := datarecording.NewReader(args[0])
			if err != nil {
				return err
			}
			defer reader.Close()

			reader.MapTable(measurement.SimulationTable,
				measurement.SimulationRecord{})

			params := datarecording.QueryParams{
				OrderBy: "SimulationID, Run",
				Limit:   limit,
			}

			if testName != "" {
				params.Where = "TestName = ?"
				params.Args = []any{testName}
			}

			rows, total, err := reader.Query(cmd.Context(),
				measurement.SimulationTable, params)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "Run\tTest\tConfiguration\tHit Rate\tAttack\tSuccess")

			for _, row := range rows {
				r := row.(*measurement.SimulationRecord)

				attack, success := "-", "-"
				if r.AttackType != "" {
					attack = r.AttackType
					success = fmt.Sprintf("%.1f%%", r.SuccessRate*100)
				}

				fmt.Fprintf(tw, "%d\t%s\t%s\t%.1f%%\t%s\t%s\n",
					r.Run, r.TestName, r.ConfigName, r.HitRate*100,
					attack, success)
			}

			if err := tw.Flush(); err != nil {
				return err
			}

			fmt.Fprintf(w, "Showing %d of %d results\n", len(rows), total)

			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0,
		"Maximum number of results, 0 shows all")
	cmd.Flags().StringVarP(&testName, "test", "t", "",
		"Only show results of this test, e.g. basic_test")

	return cmd
}
