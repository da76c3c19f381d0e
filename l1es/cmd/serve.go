package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/browser"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sarchlab/l1es/mem/cache"
	"github.com/sarchlab/l1es/simulation"
)

func newServeCmd(_ *globalOptions) *cobra.Command {
	var (
		port       int
		open       bool
		configName string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve a cache over HTTP for interactive experiments.",
		Long: "Starts the monitoring server on a fresh cache. Accesses and " +
			"flushes can be issued through the API and the page. The server " +
			"runs until interrupted.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			configs, err := simulation.ResolveReportConfigs([]string{configName})
			if err != nil {
				return err
			}

			c, err := cache.NewFromConfig(configs[0])
			if err != nil {
				return err
			}

			s := simulation.MakeBuilder().
				WithMonitoring().
				WithMonitorPort(port).
				Build()
			s.GetMonitor().Attach(c)

			fmt.Fprintf(cmd.OutOrStdout(), "Serving %s at %s\n",
				configs[0].Name, s.MonitorURL())

			if open {
				if err := browser.OpenURL(s.MonitorURL()); err != nil {
					logrus.WithError(err).Warn("cannot open browser")
				}
			}

			ctx, stop := signal.NotifyContext(cmd.Context(),
				os.Interrupt, syscall.SIGTERM)
			defer stop()

			<-ctx.Done()

			return s.Terminate()
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0,
		"Port of the server, 0 picks a free one")
	cmd.Flags().BoolVar(&open, "open", false, "Open the page in a browser")
	cmd.Flags().StringVarP(&configName, "config", "c", defaultAttackConfig,
		"Cache to serve")

	return cmd
}
