package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/aretw0/waypoint"
	"github.com/aretw0/waypoint/internal/presentation/tui"
	"github.com/spf13/cobra"
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate [dir]",
	Short: "Dry-run the guard of a transition against a JSON context",
	Long: `Evaluates every condition attached to a transition and reports which passed.
Nothing is enrolled or transitioned.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		configID, _ := cmd.Flags().GetString("config")
		transitionID, _ := cmd.Flags().GetString("transition")
		raw, _ := cmd.Flags().GetString("context")
		tenant, _ := cmd.Flags().GetString("tenant")
		if tenant == "" {
			tenant = cfg.DefaultTenant
		}

		data, err := parseContext(raw)
		if err != nil {
			return err
		}

		engine, err := waypoint.New(dirArg(cfg, args),
			waypoint.WithLogger(cfg.Logger()),
			waypoint.WithDefaultTenant(cfg.DefaultTenant),
		)
		if err != nil {
			return err
		}
		eval, err := engine.Evaluate(cmd.Context(), tenant, configID, transitionID, data)
		if err != nil {
			return err
		}

		if output, _ := cmd.Flags().GetString("output"); output != "" {
			return printStructured(cmd.OutOrStdout(), output, eval)
		}
		out, err := tui.NewRenderer(os.Stdout)(tui.EvaluationMarkdown(transitionID, eval))
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), out)
		return nil
	},
}

// parseContext decodes a JSON object keeping numbers as json.Number.
func parseContext(raw string) (map[string]any, error) {
	data := map[string]any{}
	if raw == "" {
		return data, nil
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()
	if err := dec.Decode(&data); err != nil {
		return nil, fmt.Errorf("invalid --context: %w", err)
	}
	return data, nil
}

func init() {
	rootCmd.AddCommand(evaluateCmd)
	evaluateCmd.Flags().StringP("config", "c", "", "Config id holding the transition")
	evaluateCmd.Flags().StringP("transition", "t", "", "Transition id to evaluate")
	evaluateCmd.Flags().String("context", "", "Evaluation context as a JSON object")
	evaluateCmd.Flags().String("tenant", "", "Tenant owning the config (defaults to WAYPOINT_DEFAULT_TENANT)")
	evaluateCmd.Flags().StringP("output", "o", "", "Output format: json or yaml (default is rendered markdown)")
	_ = evaluateCmd.MarkFlagRequired("config")
	_ = evaluateCmd.MarkFlagRequired("transition")
}
