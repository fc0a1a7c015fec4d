package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"velora/agent"
	"velora/config"
	"velora/gateway"
	"velora/mcp"
	"velora/provider"
	"velora/storage"
)

const agentsEndpoint = "/api/mcp"

func gatewayCmd() *cobra.Command {
	var noMemory bool

	cmd := &cobra.Command{
		Use:   "gateway",
		Short: "Serve the agents and conversation actions over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := cfg.RequireResourceID(); err != nil {
				return err
			}

			agents, err := agent.FromConfig(cfg.Agents)
			if err != nil {
				return err
			}

			var store *storage.ThreadStorage
			if !noMemory {
				store, err = storage.NewThreadStorage(cfg.DataDir())
				if err != nil {
					return fmt.Errorf("failed to open thread store: %w", err)
				}
				defer store.Close()
			}

			p, err := provider.FromConfig(cfg)
			if err != nil {
				return fmt.Errorf("failed to create provider: %w", err)
			}

			toolClient, err := newToolClient(cfg)
			if err != nil {
				return err
			}
			defer toolClient.Close()

			svc, err := agent.NewService(p, toolClient, store, agents)
			if err != nil {
				return err
			}
			svc.TurnTimeout = cfg.TurnTimeout

			registry, err := agent.NewRegistry(svc)
			if err != nil {
				return fmt.Errorf("failed to register agent tools: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			sessions := mcp.NewIdleSessions(cfg.SessionIdleTTL)
			go sessions.Run(ctx)

			gw, err := gateway.New(gateway.Options{
				Service:    svc,
				ResourceID: cfg.ResourceID,
				APIKeyHash: cfg.Gateway.APIKeyHash,
				MCPHandler: mcp.NewHTTPHandler(mcp.NewServer("velora-gateway", Version, registry), sessions, agentsEndpoint),
			})
			if err != nil {
				return err
			}

			if config.DebugLog != nil {
				config.DebugLog.Printf("[Gateway] %d agent(s), provider %s, memory %v", len(agents), p.GetModel(), store != nil)
			}
			return serveHTTP(ctx, cfg.Gateway.Listen, gw.Handler())
		},
	}

	cmd.Flags().BoolVar(&noMemory, "no-memory", false, "run without the thread store; every turn is stateless")
	cmd.AddCommand(hashKeyCmd())
	return cmd
}

func hashKeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-key KEY",
		Short: "Print the api_key_hash for a gateway bearer token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := gateway.HashAPIKey(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}

// newToolClient connects the agents to the tool server: over streamable
// HTTP when configured, otherwise by spawning `velora tools` on stdio.
func newToolClient(cfg *config.Config) (*mcp.Client, error) {
	cc := mcp.ClientConfig{
		Name:        "velora-gateway",
		Version:     Version,
		CallTimeout: cfg.ToolCallTimeout,
	}

	switch cfg.Tools.Transport {
	case "http":
		cc.URL = cfg.Tools.URL
	case "stdio", "":
		cc.Command, cc.Args = cfg.Tools.Command, cfg.Tools.Args
		if cc.Command == "" {
			exe, err := os.Executable()
			if err != nil {
				return nil, fmt.Errorf("failed to locate velora binary: %w", err)
			}
			cc.Command, cc.Args = exe, []string{"tools"}
		}
	default:
		return nil, fmt.Errorf("unknown tools transport %q (want \"stdio\" or \"http\")", cfg.Tools.Transport)
	}

	client, err := mcp.NewClient(cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create tool client: %w", err)
	}
	return client, nil
}
