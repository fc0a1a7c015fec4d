// Package provider defines the abstract interface for LLM providers.
//
// The agent service talks to Ollama, OpenAI or Anthropic through the common
// Provider interface, so the tool loop never sees provider-specific types.
// Each implementation converts Message and ToolCall into its own wire
// types (see conversions.go) and converts tool definitions discovered on
// the tool server with the mcp package converters.
//
// # Usage
//
//	p, err := provider.NewProvider(provider.Config{
//	    Type:    provider.ProviderTypeOllama,
//	    BaseURL: "http://localhost:11434",
//	    Model:   "llama3.1:latest",
//	})
//	if err != nil {
//	    // handle error
//	}
//	err = p.ChatWithTools(ctx, messages, tools, callback)
package provider

import (
	"context"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
)

// ProviderType identifies the provider implementation.
type ProviderType string

const (
	ProviderTypeOllama    ProviderType = "ollama"
	ProviderTypeOpenAI    ProviderType = "openai"
	ProviderTypeAnthropic ProviderType = "anthropic"
)

// Config holds provider-specific configuration.
type Config struct {
	Type    ProviderType
	BaseURL string
	Model   string
	APIKey  string // For OpenAI/Anthropic (unused for Ollama)
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is one entry of the prompt sent to a provider.
type Message struct {
	Role      string
	Content   string
	ToolCalls []ToolCall // set on assistant messages that requested tools
	ToolName  string     // set on tool result messages
}

// ToolCall is a provider-agnostic tool request emitted by a model.
type ToolCall struct {
	Name      string
	Arguments map[string]any
}

// StreamCallback is called for each chunk of streamed response.
type StreamCallback func(chunk string, toolCalls []ToolCall) error

// Provider abstracts LLM provider implementations.
type Provider interface {
	// ChatWithTools sends messages with available tools and streams responses.
	ChatWithTools(ctx context.Context, messages []Message, tools []mcptypes.Tool, callback StreamCallback) error

	// GetModel returns the model name used for API calls.
	GetModel() string

	// Ping checks if the provider is reachable.
	Ping(ctx context.Context) error
}
