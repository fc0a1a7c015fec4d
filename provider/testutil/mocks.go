package testutil

import (
	"context"
	"fmt"
	"sync"

	mcptypes "github.com/mark3labs/mcp-go/mcp"

	"velora/provider"
)

// MockProvider implements provider.Provider for testing.
type MockProvider struct {
	ChatWithToolsFunc func(ctx context.Context, messages []provider.Message, tools []mcptypes.Tool, callback provider.StreamCallback) error
	PingFunc          func(ctx context.Context) error

	currentModel string
}

// NewMockProvider creates a mock provider with default implementations.
func NewMockProvider(modelName string) *MockProvider {
	mock := &MockProvider{currentModel: modelName}
	mock.ChatWithToolsFunc = mock.defaultChatWithTools
	mock.PingFunc = func(ctx context.Context) error { return nil }
	return mock
}

func (m *MockProvider) defaultChatWithTools(ctx context.Context, messages []provider.Message, tools []mcptypes.Tool, callback provider.StreamCallback) error {
	if callback == nil {
		return nil
	}
	return callback("Mock response", nil)
}

func (m *MockProvider) ChatWithTools(ctx context.Context, messages []provider.Message, tools []mcptypes.Tool, callback provider.StreamCallback) error {
	return m.ChatWithToolsFunc(ctx, messages, tools, callback)
}

func (m *MockProvider) GetModel() string {
	return m.currentModel
}

func (m *MockProvider) Ping(ctx context.Context) error {
	return m.PingFunc(ctx)
}

// Reply is one scripted model response.
type Reply struct {
	Chunks    []string
	ToolCalls []provider.ToolCall
	Err       error
}

// ScriptedProvider answers each ChatWithTools call with the next Reply and
// records what it was sent.
type ScriptedProvider struct {
	mu      sync.Mutex
	replies []Reply
	calls   [][]provider.Message
	tools   [][]mcptypes.Tool
}

func NewScriptedProvider(replies ...Reply) *ScriptedProvider {
	return &ScriptedProvider{replies: replies}
}

func (s *ScriptedProvider) ChatWithTools(ctx context.Context, messages []provider.Message, tools []mcptypes.Tool, callback provider.StreamCallback) error {
	s.mu.Lock()
	s.calls = append(s.calls, append([]provider.Message(nil), messages...))
	s.tools = append(s.tools, tools)
	if len(s.replies) == 0 {
		s.mu.Unlock()
		return fmt.Errorf("scripted provider: no reply left for call %d", len(s.calls))
	}
	reply := s.replies[0]
	s.replies = s.replies[1:]
	s.mu.Unlock()

	if reply.Err != nil {
		return reply.Err
	}
	for _, chunk := range reply.Chunks {
		if err := callback(chunk, nil); err != nil {
			return err
		}
	}
	if len(reply.ToolCalls) > 0 {
		return callback("", reply.ToolCalls)
	}
	return nil
}

func (s *ScriptedProvider) GetModel() string { return "scripted" }

func (s *ScriptedProvider) Ping(ctx context.Context) error { return nil }

// Calls returns the message lists received so far.
func (s *ScriptedProvider) Calls() [][]provider.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]provider.Message(nil), s.calls...)
}

// Tools returns the tool lists received so far.
func (s *ScriptedProvider) Tools() [][]mcptypes.Tool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]mcptypes.Tool(nil), s.tools...)
}
