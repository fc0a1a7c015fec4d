package testutil

import (
	mcptypes "github.com/mark3labs/mcp-go/mcp"

	"velora/provider"
)

// TestMessages returns a sample conversation for testing.
func TestMessages() []provider.Message {
	return []provider.Message{
		{Role: provider.RoleSystem, Content: "You are a file reader."},
		{Role: provider.RoleUser, Content: "Show me the README"},
		{
			Role:      provider.RoleAssistant,
			ToolCalls: []provider.ToolCall{{Name: "read_text", Arguments: map[string]any{"relpath": "./README.md"}}},
		},
		{Role: provider.RoleTool, ToolName: "read_text", Content: "# Project"},
		{Role: provider.RoleAssistant, Content: "The README starts with a heading."},
	}
}

// SingleUserMessage returns a single user message for simple tests.
func SingleUserMessage(content string) []provider.Message {
	return []provider.Message{{Role: provider.RoleUser, Content: content}}
}

// TestMCPTools returns the built-in tool definitions as the tool server
// advertises them.
func TestMCPTools() []mcptypes.Tool {
	return []mcptypes.Tool{
		{
			Name:        "echo",
			Description: "Echo back the provided text",
			InputSchema: mcptypes.ToolInputSchema{
				Type: "object",
				Properties: map[string]any{
					"text": map[string]any{"type": "string", "description": "Text to echo"},
				},
				Required: []string{"text"},
			},
		},
		{
			Name:        "read_text",
			Description: "Read a UTF-8 text file from the workspace",
			InputSchema: mcptypes.ToolInputSchema{
				Type: "object",
				Properties: map[string]any{
					"relpath": map[string]any{"type": "string", "description": "Path relative to the workspace"},
				},
				Required: []string{"relpath"},
			},
		},
	}
}
