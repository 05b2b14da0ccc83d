package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/aretw0/waypoint/internal/presentation/tui"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var statusCmd = &cobra.Command{
	Use:   "status <object-id>",
	Short: "Show the lifecycle status of an object from the configured store",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		a, err := buildApp(cmd.Context(), cfg, cfg.Logger(), "")
		if err != nil {
			return err
		}
		defer a.Close()

		status, err := a.engine.GetStatus(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if tenant, _ := cmd.Flags().GetString("tenant"); tenant != "" && tenant != status.TenantID {
			return fmt.Errorf("object %s not found for tenant %s", args[0], tenant)
		}

		if output, _ := cmd.Flags().GetString("output"); output != "" {
			return printStructured(cmd.OutOrStdout(), output, status)
		}
		out, err := tui.NewRenderer(os.Stdout)(tui.StatusMarkdown(status))
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), out)
		return nil
	},
}

// printStructured writes v as json or yaml.
func printStructured(w io.Writer, format string, v any) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown output format %q (expected json or yaml)", format)
	}
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().String("tenant", "", "Only show the object when it belongs to this tenant")
	statusCmd.Flags().StringP("output", "o", "", "Output format: json or yaml (default is rendered markdown)")
}
