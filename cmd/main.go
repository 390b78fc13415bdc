package main

import (
	"github.com/spf13/cobra"

	"netpulse/internal/logger"
)

func newRootCmd(log *logger.Logger) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "netpulse",
		Short:         "Network quality monitor",
		Long:          `netpulse probes a list of network hops, aggregates latency, jitter and loss into a quality score and serves the results over HTTP.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(newServeCmd(log))
	rootCmd.AddCommand(newSimulateCmd(log))
	return rootCmd
}

func main() {
	log := logger.NewDefault()
	if err := newRootCmd(log).Execute(); err != nil {
		log.Fatal("command failed", "error", err)
	}
}
