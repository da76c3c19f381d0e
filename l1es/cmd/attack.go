package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/sarchlab/l1es/attack/flushreload"
	"github.com/sarchlab/l1es/mem/cache"
	"github.com/sarchlab/l1es/simulation"
)

const defaultAttackConfig = "8-way"

func newAttackCmd(opts *globalOptions) *cobra.Command {
	var configName string

	cmd := &cobra.Command{
		Use:   "attack",
		Short: "Run side-channel attack demonstrations.",
	}

	cmd.PersistentFlags().StringVarP(&configName, "config", "c",
		defaultAttackConfig,
		"Cache to attack: direct-mapped, 2-way, 8-way, fully-associative, "+
			"or a full configuration name")

	resolve := func() (cache.Config, error) {
		configs, err := simulation.ResolveReportConfigs([]string{configName})
		if err != nil {
			return cache.Config{}, err
		}

		return configs[0], nil
	}

	attackCmd := func(
		use, short string,
		attack func(s *simulation.Simulation, config cache.Config) (
			[]*simulation.AttackOutcome, error),
	) *cobra.Command {
		return &cobra.Command{
			Use:   use,
			Short: short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				config, err := resolve()
				if err != nil {
					return err
				}

				return opts.run(cmd, func(s *simulation.Simulation, w io.Writer) error {
					outcomes, err := attack(s, config)
					if err != nil {
						return err
					}

					for _, o := range outcomes {
						printOutcome(w, o)
					}

					return nil
				})
			},
		}
	}

	var targetSet int
	primeProbe := attackCmd("prime-probe", "Prime+Probe on one cache set.",
		func(s *simulation.Simulation, config cache.Config) (
			[]*simulation.AttackOutcome, error,
		) {
			o, err := s.RunPrimeProbe(config, targetSet)
			return single(o, err)
		})
	primeProbe.Flags().IntVarP(&targetSet, "target-set", "t",
		simulation.DefaultTargetSet, "Target cache set")

	var numAddresses int
	flushReload := attackCmd("flush-reload",
		"Flush+Reload on a shared lookup table.",
		func(s *simulation.Simulation, config cache.Config) (
			[]*simulation.AttackOutcome, error,
		) {
			if numAddresses <= 0 {
				return nil, fmt.Errorf("need at least one monitored address")
			}

			o, err := s.RunFlushReload(config, flushreload.Scenarios(),
				simulation.MonitoredAddresses(numAddresses))
			return single(o, err)
		})
	flushReload.Flags().IntVarP(&numAddresses, "addresses", "a", 5,
		"Number of monitored addresses")

	var (
		secret         string
		trainingRounds int
	)
	spectreCmd := attackCmd("spectre", "Spectre bounds check bypass.",
		func(s *simulation.Simulation, config cache.Config) (
			[]*simulation.AttackOutcome, error,
		) {
			o, err := s.RunSpectre(config, secret, trainingRounds)
			return single(o, err)
		})
	spectreCmd.Flags().StringVarP(&secret, "secret", "s",
		simulation.DefaultSecret, "Secret data to leak")
	spectreCmd.Flags().IntVarP(&trainingRounds, "training-rounds", "r",
		simulation.DefaultTrainingRounds,
		"Predictor training calls per leaked byte")

	var kernelData string
	meltdownCmd := attackCmd("meltdown", "Meltdown kernel memory dump.",
		func(s *simulation.Simulation, config cache.Config) (
			[]*simulation.AttackOutcome, error,
		) {
			o, err := s.RunMeltdown(config, kernelData)
			return single(o, err)
		})
	meltdownCmd.Flags().StringVarP(&kernelData, "kernel-data", "k",
		simulation.DefaultKernelData, "Kernel data to extract")

	all := attackCmd("all", "Run every attack with default parameters.",
		func(s *simulation.Simulation, config cache.Config) (
			[]*simulation.AttackOutcome, error,
		) {
			return s.RunAllAttacks(config)
		})

	cmd.AddCommand(primeProbe, flushReload, spectreCmd, meltdownCmd, all)

	return cmd
}

func single(
	o *simulation.AttackOutcome,
	err error,
) ([]*simulation.AttackOutcome, error) {
	if err != nil {
		return nil, err
	}

	return []*simulation.AttackOutcome{o}, nil
}

func printOutcome(w io.Writer, o *simulation.AttackOutcome) {
	fmt.Fprintf(w, "=== %s on %s ===\n", o.Attack, o.Config.Name)

	for _, t := range o.Trials {
		verdict := "ok"
		if t.Expected != t.Observed {
			verdict = "WRONG"
		}

		fmt.Fprintf(w, "  %-28s detected=%-5v expected=%-5v %s\n",
			t.Name, t.Observed, t.Expected, verdict)
	}

	if o.Expected != nil {
		fmt.Fprintf(w, "  Expected: %q\n", o.Expected)
		fmt.Fprintf(w, "  Leaked:   %q (%d/%d bytes)\n",
			o.Leaked, o.Results.LeakedBytes, o.Results.TotalBytes)
	}

	fmt.Fprintf(w, "  Success rate: %.1f%%\n", o.Results.SuccessRate*100)

	if len(o.Trials) > 0 {
		fmt.Fprintf(w, "  False positives: %.1f%%, false negatives: %.1f%%\n",
			o.Results.FalsePositiveRate*100, o.Results.FalseNegativeRate*100)
	}
}
