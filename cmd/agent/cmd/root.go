package cmd

import (
	"github.com/spf13/cobra"
)

var cfgFile string

// Execute builds and runs the root command.
func Execute() error {
	return rootCmd().Execute()
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "agent",
		Short: "Host intrusion detection agent",
		Long:  "agent collects process, network, log, and resource telemetry, evaluates it against a rule engine, and persists events and alerts to a local store.",
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "path to config file (defaults are used when omitted)")

	root.AddCommand(runCmd())
	root.AddCommand(versionCmd())
	root.AddCommand(checkConfigCmd())

	return root
}
