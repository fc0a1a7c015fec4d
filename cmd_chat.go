package main

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"velora/config"
	"velora/gateway"
	"velora/mcp"
	appmodel "velora/model"
	"velora/ui"
)

// Headroom for the gateway to answer after the agent's own turn timeout.
const gatewayTimeoutSlack = 15 * time.Second

func chatCmd() *cobra.Command {
	var useREST bool

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Open the terminal chat client",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := cfg.RequireResourceID(); err != nil {
				return err
			}

			client, err := gateway.NewClient(cfg.Gateway.URL, cfg.GatewayToken, cfg.TurnTimeout+gatewayTimeoutSlack)
			if err != nil {
				return err
			}

			var sender appmodel.TurnSender = client
			if !useREST {
				mcpClient, err := mcp.NewClient(mcp.ClientConfig{
					URL:         client.MCPURL(),
					Headers:     client.AuthHeaders(),
					Name:        "velora-chat",
					Version:     Version,
					CallTimeout: cfg.TurnTimeout,
				})
				if err != nil {
					return fmt.Errorf("failed to create agent client: %w", err)
				}
				defer mcpClient.Close()
				sender = mcpClient
			}

			engine := appmodel.NewEngine(client, sender)
			engine.TurnTimeout = cfg.TurnTimeout

			if config.DebugLog != nil {
				config.DebugLog.Printf("[Chat] gateway %s, turns over %s", cfg.Gateway.URL, map[bool]string{true: "REST", false: "MCP"}[useREST])
			}

			p := tea.NewProgram(ui.NewChatView(engine), tea.WithAltScreen())
			if _, err := p.Run(); err != nil {
				return fmt.Errorf("chat client failed: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&useREST, "rest", false, "send turns through the REST endpoint instead of the agents' MCP tools")
	return cmd
}
