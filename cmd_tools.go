package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"velora/config"
	"velora/mcp"
	"velora/sandbox"
	"velora/tools"
)

const toolsEndpoint = "/mcp"

func toolsCmd() *cobra.Command {
	var httpAddr string

	cmd := &cobra.Command{
		Use:   "tools",
		Short: "Serve the workspace tools (echo, read_text) over MCP",
		Long: "Serve the workspace tools over MCP. Stdio is the default transport; " +
			"--http serves streamable HTTP instead, as does transport = \"http\" in config.toml.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			resolver, err := sandbox.NewResolver(cfg.WorkspaceRoot)
			if err != nil {
				return fmt.Errorf("failed to open workspace: %w", err)
			}
			registry, err := tools.NewRegistry(tools.Builtins(resolver)...)
			if err != nil {
				return fmt.Errorf("failed to register tools: %w", err)
			}
			srv := mcp.NewServer("velora-tools", Version, registry)

			if config.DebugLog != nil {
				config.DebugLog.Printf("[Tools] workspace root %s", resolver.Root())
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			addr := httpAddr
			if addr == "" && cfg.Tools.Transport == "http" {
				addr = cfg.Tools.Listen
			}
			if addr == "" {
				return mcp.ServeStdio(ctx, srv, os.Stdin, os.Stdout)
			}

			sessions := mcp.NewIdleSessions(cfg.SessionIdleTTL)
			go sessions.Run(ctx)
			return serveHTTP(ctx, addr, mcp.NewHTTPHandler(srv, sessions, toolsEndpoint))
		},
	}

	cmd.Flags().StringVar(&httpAddr, "http", "", "serve streamable HTTP on this address (e.g. :8001) instead of stdio")
	return cmd
}
