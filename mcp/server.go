// Package mcp carries tool discovery and invocation over the Model Context
// Protocol: a server adapter for a tools.Registry, an idle-session policy
// for the streamable HTTP transport, and a reconnecting client.
package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/server"
	mcptypes "github.com/mark3labs/mcp-go/mcp"

	globalconfig "velora/config"
	"velora/tools"
)

// FailurePayload is the structuredContent of an isError tool result.
type FailurePayload struct {
	Code    int        `json:"code"`
	Kind    tools.Kind `json:"kind"`
	Message string     `json:"message"`
}

// NewServer exposes every tool in the registry. The registry stays the
// single source of truth: validation and panic containment happen in
// Registry.Call, and the protocol layer rejects unknown tool names.
func NewServer(name, version string, registry *tools.Registry) *server.MCPServer {
	hooks := &server.Hooks{}
	hooks.AddBeforeCallTool(func(ctx context.Context, id any, req *mcptypes.CallToolRequest) {
		switch {
		case globalconfig.DebugLog != nil:
			globalconfig.DebugLog.Printf("[MCP] call %s (id=%v)", req.Params.Name, id)
		}
	})
	hooks.AddOnError(func(ctx context.Context, id any, method mcptypes.MCPMethod, message any, err error) {
		switch {
		case globalconfig.DebugLog != nil:
			globalconfig.DebugLog.Printf("[MCP] %s failed (id=%v): %v", method, id, err)
		}
	})

	s := server.NewMCPServer(
		name,
		version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithHooks(hooks),
	)

	for _, t := range registry.List() {
		s.AddTool(ToMCPTool(t), toolHandler(registry, t.Name))
	}

	return s
}

func toolHandler(registry *tools.Registry, name string) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcptypes.CallToolRequest) (*mcptypes.CallToolResult, error) {
		res, err := registry.Call(ctx, name, req.GetArguments())
		if err != nil {
			return FailureResult(tools.AsFailure(err)), nil
		}
		return SuccessResult(res), nil
	}
}

// SuccessResult converts registry output to protocol content parts.
func SuccessResult(res tools.Result) *mcptypes.CallToolResult {
	content := make([]mcptypes.Content, 0, len(res.Content))
	for _, part := range res.Content {
		content = append(content, mcptypes.NewTextContent(part.Text))
	}
	return &mcptypes.CallToolResult{Content: content}
}

// FailureResult encodes a failure as an isError result whose structured
// content keeps the numeric code and kind, which a plain handler error
// would lose to a generic internal-error response.
func FailureResult(f *tools.Failure) *mcptypes.CallToolResult {
	res := mcptypes.NewToolResultStructured(FailurePayload{
		Code:    f.Code,
		Kind:    f.Kind,
		Message: f.Message,
	}, f.Message)
	res.IsError = true
	return res
}

// ToMCPTool translates a registry tool definition to its protocol form.
func ToMCPTool(t tools.Tool) mcptypes.Tool {
	opts := []mcptypes.ToolOption{
		mcptypes.WithDescription(t.Description),
		mcptypes.WithReadOnlyHintAnnotation(t.ReadOnly),
		mcptypes.WithDestructiveHintAnnotation(!t.ReadOnly),
	}
	for _, f := range t.Schema.Fields {
		opts = append(opts, withField(f))
	}
	return mcptypes.NewTool(t.Name, opts...)
}

func withField(f tools.Field) mcptypes.ToolOption {
	return func(t *mcptypes.Tool) {
		prop := map[string]any{"type": string(f.Type)}
		if f.Description != "" {
			prop["description"] = f.Description
		}
		t.InputSchema.Properties[f.Name] = prop
		if f.Required {
			t.InputSchema.Required = append(t.InputSchema.Required, f.Name)
		}
	}
}
