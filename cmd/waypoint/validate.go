package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/aretw0/waypoint"
	"github.com/aretw0/waypoint/internal/presentation/tui"
	"github.com/aretw0/waypoint/pkg/domain"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate [dir]",
	Short: "Validate the lifecycle definitions of a directory",
	Long: `Checks every definition for structural errors: a single initial state,
known transition endpoints, unique identifiers and well-formed conditions and actions.
Unreachable states are reported as warnings.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		dir := dirArg(cfg, args)

		defs, err := loadDefinitions(cmd.Context(), dir, cfg.DefaultTenant)
		if err != nil {
			return err
		}
		if len(defs) == 0 {
			return fmt.Errorf("no definitions found in %s", dir)
		}

		render := tui.NewRenderer(os.Stdout)
		var sb strings.Builder
		failed := 0
		for _, def := range defs {
			report, err := waypoint.Validate(def)
			var verr *domain.ValidationError
			switch {
			case errors.As(err, &verr):
				failed++
				sb.WriteString(tui.ViolationsMarkdown(def.Config.ID, verr.Violations, report.Warnings))
			case err != nil:
				return err
			default:
				sb.WriteString(tui.ViolationsMarkdown(def.Config.ID, nil, report.Warnings))
			}
		}
		out, err := render(sb.String())
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), out)

		if failed > 0 {
			return fmt.Errorf("%d of %d definitions are invalid", failed, len(defs))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
