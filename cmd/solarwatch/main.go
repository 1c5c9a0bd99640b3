// Command solarwatch scores daily solar production for anomalies. It runs
// the HTTP API (serve) and offers offline commands for scoring record files,
// importing them into the local store, and browsing the bundled scenarios.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/HerbHall/solarwatch/internal/version"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "solarwatch",
		Short:         "Anomaly detection for daily solar energy production",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to solarwatch.yaml")

	root.AddCommand(
		newServeCmd(&configPath),
		newDetectCmd(),
		newScenariosCmd(),
		newImportCmd(&configPath),
		newSeedCmd(&configPath),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.Info())
		},
	}
}
