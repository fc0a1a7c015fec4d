package model

import (
	"context"

	"velora/gateway"
)

// Actions is the conversation-facing collaborator: agent listing and the
// thread store behind the gateway. *gateway.Client implements it.
type Actions interface {
	GetAgents(ctx context.Context) ([]gateway.AgentInfo, error)
	GetThreads(ctx context.Context, q gateway.ListThreadsQuery) ([]gateway.ThreadInfo, error)
	CreateThread(ctx context.Context, title string) (gateway.ThreadInfo, error)
	GetThreadMessages(ctx context.Context, threadID string) ([]gateway.UIMessage, error)
}

// TurnSender delivers one user turn to an agent and returns its reply.
// *mcp.Client implements it through the agent's send tool and
// *gateway.Client through the REST turn endpoint. An empty threadID
// sends a stateless turn.
type TurnSender interface {
	SendTurn(ctx context.Context, agentID, threadID, message string) (string, error)
}
