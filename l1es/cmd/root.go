// Package cmd provides the command-line interface of l1es.
package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"
)

// Environment variables that provide flag defaults. They can also be set in
// a .env file in the working directory.
const (
	OutputEnv = "L1ES_OUTPUT"
	LogEnv    = "L1ES_LOG"
)

type globalOptions struct {
	output   string
	csv      bool
	json     bool
	sqlite   bool
	verbose  bool
	logLevel string
}

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}

	return fallback
}

// NewRootCmd creates the l1es command tree.
func NewRootCmd() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:   "l1es",
		Short: "Cache simulator and timing side-channel attack demonstrations.",
		Long: `l1es simulates set-associative CPU caches and runs Prime+Probe, ` +
			`Flush+Reload, Spectre, and Meltdown against them. Results can be ` +
			`saved as JSON, CSV, or an SQLite database.`,
		Version:       "0.1.0",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			level, err := logrus.ParseLevel(opts.logLevel)
			if err != nil {
				return fmt.Errorf("invalid log level %q: %w", opts.logLevel, err)
			}

			logrus.SetLevel(level)

			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&opts.output, "output", "o",
		envOr(OutputEnv, "results"), "Output directory for results")
	flags.BoolVar(&opts.csv, "csv", false,
		"Save results.csv and timing.csv")
	flags.BoolVar(&opts.json, "json", false, "Save results.json")
	flags.BoolVar(&opts.sqlite, "sqlite", false,
		"Record results into an SQLite database")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false,
		"Print a summary of all results")
	flags.StringVar(&opts.logLevel, "log",
		envOr(LogEnv, "warning"), "Log level (trace, debug, info, warning, error)")

	root.AddCommand(
		newBasicCmd(opts),
		newCompareCmd(opts),
		newAttackCmd(opts),
		newBenchmarkCmd(opts),
		newReportCmd(opts),
		newServeCmd(opts),
		newResultsCmd(),
	)

	return root
}

// Execute runs the command line and exits. Functions registered with atexit
// run before the process ends.
func Execute() {
	// The .env file is optional.
	_ = godotenv.Load()

	if err := NewRootCmd().Execute(); err != nil {
		logrus.Error(err)
		atexit.Exit(1)
	}

	atexit.Exit(0)
}
