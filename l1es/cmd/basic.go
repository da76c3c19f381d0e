package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/sarchlab/l1es/mem/cache"
	"github.com/sarchlab/l1es/simulation"
)

func newBasicCmd(opts *globalOptions) *cobra.Command {
	var sizeKB, lineSize, ways int

	cmd := &cobra.Command{
		Use:   "basic",
		Short: "Run the basic cache access test.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			config := cache.SetAssociativeConfig(
				sizeKB*1024, lineSize, ways, cache.LRU)
			if err := config.Validate(); err != nil {
				return err
			}

			return opts.run(cmd, func(s *simulation.Simulation, w io.Writer) error {
				fmt.Fprintf(w,
					"Running basic cache test: %dKB, %d-way, %d-byte lines\n",
					sizeKB, ways, lineSize)
				fmt.Fprintf(w, "Testing %s cache\n", config.Name)

				accesses, err := s.RunBasic(config)
				if err != nil {
					return err
				}

				hits := 0
				for _, a := range accesses {
					fmt.Fprintf(w, "Access 0x%x: %s (%d cycles)\n",
						a.Address, hitOrMiss(a.Hit), a.Cycles)

					if a.Hit {
						hits++
					}
				}

				fmt.Fprintf(w, "Final hit rate: %.1f%%\n",
					float64(hits)*100/float64(len(accesses)))

				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&sizeKB, "size", "s", 32, "Cache size in KB")
	cmd.Flags().IntVarP(&lineSize, "line-size", "l", 64,
		"Cache line size in bytes")
	cmd.Flags().IntVarP(&ways, "ways", "w", 4, "Associativity")

	return cmd
}
