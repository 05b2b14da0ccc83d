package main

import (
	"fmt"
	"os"

	"github.com/aretw0/waypoint/internal/config"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "waypoint",
	Short: "Waypoint moves objects through tenant-defined lifecycles",
	Long: `Waypoint is an object lifecycle engine. Tenants describe finite state machines
(states, guarded transitions and state actions) and objects are moved through them
one named transition at a time.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("dir", "", "Directory containing lifecycle definitions")
	rootCmd.PersistentFlags().String("env-file", ".env", "Optional .env file loaded before the environment")
	rootCmd.PersistentFlags().String("log-level", "", "Override WAYPOINT_LOG_LEVEL (debug, info, warn, error)")
}

// loadConfig reads the environment and applies the persistent flag overrides.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	envFile, _ := cmd.Flags().GetString("env-file")
	cfg, err := config.Load(envFile)
	if err != nil {
		return config.Config{}, err
	}
	if dir, _ := cmd.Flags().GetString("dir"); dir != "" {
		cfg.DefinitionsDir = dir
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.LogLevel = level
	}
	return cfg, cfg.Validate()
}

// dirArg prefers a positional directory over --dir and the environment.
func dirArg(cfg config.Config, args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	if cfg.DefinitionsDir != "" {
		return cfg.DefinitionsDir
	}
	return "."
}
