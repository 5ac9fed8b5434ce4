// Package cmd defines the CLI commands for the harvester executable.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "harvester",
		Short: "Harvests job postings from Mozambican listing sites.",
		Long: `harvester walks the supported job-listing sites, extracts structured
job records from each posting (structured data first, site markup second,
an AI model for whatever is left), and stores them as flat JSON files.
Re-running against an unchanged site is a no-op.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (optional; env vars with prefix HARVESTER also apply)")
	cmd.AddCommand(newRunCmd(), newSitesCmd())
	return cmd
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
