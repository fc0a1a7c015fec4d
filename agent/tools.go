package agent

import (
	"context"
	"errors"
	"fmt"

	"velora/mcp"
	"velora/storage"
	"velora/tools"
)

// SendTool exposes one turn of agent a as <id>_send.
func SendTool(s *Service, a Agent) tools.Tool {
	return tools.Tool{
		Name:        mcp.SendToolName(a.ID),
		Description: fmt.Sprintf("Send a message to the %s agent and return its reply", a.Name),
		Schema: tools.Schema{Fields: []tools.Field{
			{Name: "message", Type: tools.TypeString, Required: true, Description: "The user message"},
			{Name: "thread_id", Type: tools.TypeString, Description: "Thread to continue; omit for a stateless turn"},
		}},
		Handler: func(ctx context.Context, args tools.Args) (tools.Result, error) {
			reply, err := s.Turn(ctx, a.ID, args.String("thread_id"), args.String("message"))
			if errors.Is(err, storage.ErrThreadNotFound) {
				return tools.Result{}, tools.NotFound("thread not found: %s", args.String("thread_id"))
			}
			if err != nil {
				return tools.Result{}, err
			}
			return tools.TextResult(reply), nil
		},
	}
}

// NewRegistry builds the registry served at the gateway's MCP endpoint.
func NewRegistry(s *Service) (*tools.Registry, error) {
	agentTools := make([]tools.Tool, 0, len(s.agents))
	for _, a := range s.agents {
		agentTools = append(agentTools, SendTool(s, a))
	}
	return tools.NewRegistry(agentTools...)
}
