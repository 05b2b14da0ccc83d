package main

import (
	"fmt"

	"github.com/aretw0/waypoint/internal/presentation/graph"
	"github.com/spf13/cobra"
)

var graphCmd = &cobra.Command{
	Use:   "graph [dir]",
	Short: "Print a lifecycle config as a Mermaid state diagram",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		configID, _ := cmd.Flags().GetString("config")
		tenant, _ := cmd.Flags().GetString("tenant")
		if tenant == "" {
			tenant = cfg.DefaultTenant
		}

		def, err := findDefinition(cmd.Context(), dirArg(cfg, args), tenant, configID)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), graph.GenerateMermaid(def, nil))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().StringP("config", "c", "", "Config id to draw")
	graphCmd.Flags().String("tenant", "", "Tenant owning the config (defaults to WAYPOINT_DEFAULT_TENANT)")
	_ = graphCmd.MarkFlagRequired("config")
}
