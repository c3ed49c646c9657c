package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AEP20/host-security-monitoring-dashboard-linux/pkg/config"
)

func checkConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check-config",
		Short: "Load the config and print the resolved values",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile, nil)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%+v\n", cfg)
			return nil
		},
	}
}
