package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/aretw0/waypoint"
	"github.com/aretw0/waypoint/pkg/adapters/mcp"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp [dir]",
	Short: "Run the Model Context Protocol (MCP) server",
	Long: `Exposes the lifecycle engine as MCP tools so agents can inspect objects,
dry-run guards and apply transitions.

Supported Transports:
- stdio (default): Uses Standard Input/Output. Ideal for local process integration.
- sse: Uses Server-Sent Events over HTTP. Ideal for remote agents or debuggers.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		transport, _ := cmd.Flags().GetString("transport")
		addr, _ := cmd.Flags().GetString("addr")
		actor, _ := cmd.Flags().GetString("actor")
		dir := ""
		if len(args) > 0 || cfg.DefinitionsDir != "" {
			dir = dirArg(cfg, args)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		logger := cfg.Logger()
		a, err := buildApp(ctx, cfg, logger, dir)
		if err != nil {
			return err
		}
		defer a.Close()

		srv := mcp.NewServer(a.engine.Admin(), waypoint.Version, mcp.WithActor(actor), mcp.WithLogger(logger))

		switch transport {
		case "stdio":
			logger.Info("starting waypoint MCP server", "transport", transport)
			return srv.ServeStdio()
		case "sse":
			logger.Info("starting waypoint MCP server", "transport", transport, "addr", addr)
			return srv.ServeSSE(ctx, addr, "")
		default:
			return fmt.Errorf("unknown transport %q (expected stdio or sse)", transport)
		}
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
	mcpCmd.Flags().StringP("transport", "t", "stdio", "Transport to use: stdio or sse")
	mcpCmd.Flags().String("addr", ":8081", "Listen address for the sse transport")
	mcpCmd.Flags().String("actor", mcp.DefaultActor, "Actor recorded on transitions applied through MCP")
}
