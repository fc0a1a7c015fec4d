package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	mcptypes "github.com/mark3labs/mcp-go/mcp"

	"velora/config"
	"velora/provider"
	"velora/storage"
)

// DefaultMaxToolRounds bounds how many times a single turn may go back to
// the tool server.
const DefaultMaxToolRounds = 5

// ToolInvoker is the tool server as seen by the agent. *mcp.Client
// satisfies it.
type ToolInvoker interface {
	ListTools(ctx context.Context) ([]mcptypes.Tool, error)
	InvokeTool(ctx context.Context, name string, args map[string]any) (string, error)
}

type Service struct {
	provider provider.Provider
	tools    ToolInvoker // nil disables tool use
	store    *storage.ThreadStorage

	agents []Agent
	byID   map[string]Agent

	MaxToolRounds int
	TurnTimeout   time.Duration
	// ResourceID, when set, limits turns to threads it owns; other
	// threads are reported as not found.
	ResourceID string
	now           func() time.Time
}

func NewService(p provider.Provider, invoker ToolInvoker, store *storage.ThreadStorage, agents []Agent) (*Service, error) {
	if p == nil {
		return nil, fmt.Errorf("provider is required")
	}
	if len(agents) == 0 {
		return nil, fmt.Errorf("at least one agent is required")
	}

	byID := make(map[string]Agent, len(agents))
	for _, a := range agents {
		byID[a.ID] = a
	}

	return &Service{
		provider:      p,
		tools:         invoker,
		store:         store,
		agents:        agents,
		byID:          byID,
		MaxToolRounds: DefaultMaxToolRounds,
		now:           time.Now,
	}, nil
}

// Agents returns the agents in configuration order.
func (s *Service) Agents() []Agent {
	return append([]Agent(nil), s.agents...)
}

func (s *Service) Agent(id string) (Agent, bool) {
	a, ok := s.byID[id]
	return a, ok
}

// Store returns the thread store, or nil when memory is disabled.
func (s *Service) Store() *storage.ThreadStorage {
	return s.store
}

// Turn runs one user turn for agentID. With a thread id the earlier
// messages of the thread are sent as context and both sides of the turn
// are persisted; without one the turn is stateless.
func (s *Service) Turn(ctx context.Context, agentID, threadID, message string) (string, error) {
	a, ok := s.byID[agentID]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownAgent, agentID)
	}
	if strings.TrimSpace(message) == "" {
		return "", fmt.Errorf("message cannot be empty")
	}

	if s.TurnTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.TurnTimeout)
		defer cancel()
	}

	var messages []provider.Message
	if a.Instruction != "" {
		messages = append(messages, provider.Message{Role: provider.RoleSystem, Content: a.Instruction})
	}

	remember := threadID != "" && s.store != nil
	var thread *storage.Thread
	var priorTurns int
	if remember {
		var err error
		thread, err = s.store.GetThread(ctx, threadID)
		if err != nil {
			return "", err
		}
		if s.ResourceID != "" && thread.ResourceID != s.ResourceID {
			return "", fmt.Errorf("%w: %s", storage.ErrThreadNotFound, threadID)
		}
		history, err := s.store.Messages(ctx, threadID)
		if err != nil {
			return "", err
		}
		for _, m := range history {
			if m.Role != storage.RoleUser && m.Role != storage.RoleAssistant {
				continue
			}
			if m.Role == storage.RoleUser {
				priorTurns++
			}
			messages = append(messages, provider.Message{Role: m.Role, Content: m.Content})
		}
		if _, err := s.store.AppendMessage(ctx, threadID, storage.RoleUser, message); err != nil {
			return "", fmt.Errorf("failed to save user message: %w", err)
		}
	}
	messages = append(messages, provider.Message{Role: provider.RoleUser, Content: message})

	reply, err := s.runToolLoop(ctx, messages)
	if err != nil {
		if config.DebugLog != nil {
			config.DebugLog.Printf("[Agent] %s turn failed: %v", agentID, err)
		}
		return "", err
	}

	if remember {
		if _, err := s.store.AppendMessage(ctx, threadID, storage.RoleAssistant, reply); err != nil {
			return "", fmt.Errorf("failed to save reply: %w", err)
		}
		if priorTurns == 0 && thread.Title == storage.DefaultThreadTitle {
			title := storage.GenerateThreadTitle(message, s.now())
			if err := s.store.RenameThread(ctx, threadID, title); err != nil && config.DebugLog != nil {
				config.DebugLog.Printf("[Agent] failed to title thread %s: %v", threadID, err)
			}
		}
	}

	return reply, nil
}

func (s *Service) availableTools(ctx context.Context) []mcptypes.Tool {
	if s.tools == nil {
		return nil
	}
	available, err := s.tools.ListTools(ctx)
	if err != nil {
		if config.DebugLog != nil {
			config.DebugLog.Printf("[Agent] WARNING: no tools loaded: %v", err)
		}
		return nil
	}
	if config.DebugLog != nil {
		config.DebugLog.Printf("[Agent] Loaded %d tools", len(available))
	}
	return available
}

// runToolLoop asks the provider for a reply, executing requested tools and
// feeding their output back until the model answers in text. After
// MaxToolRounds the model is asked once more without tools.
func (s *Service) runToolLoop(ctx context.Context, messages []provider.Message) (string, error) {
	available := s.availableTools(ctx)

	rounds := s.MaxToolRounds
	if rounds <= 0 {
		rounds = DefaultMaxToolRounds
	}

	for round := 0; round < rounds; round++ {
		text, calls, err := s.complete(ctx, messages, available)
		if err != nil {
			return "", err
		}
		if len(calls) == 0 || len(available) == 0 {
			return text, nil
		}

		if config.DebugLog != nil {
			config.DebugLog.Printf("[Agent] Round %d: %d tool calls", round+1, len(calls))
		}

		messages = append(messages, provider.Message{Role: provider.RoleAssistant, Content: text, ToolCalls: calls})
		for _, call := range calls {
			messages = append(messages, provider.Message{
				Role:     provider.RoleTool,
				ToolName: call.Name,
				Content:  s.execute(ctx, call),
			})
		}
	}

	text, _, err := s.complete(ctx, messages, nil)
	return text, err
}

func (s *Service) complete(ctx context.Context, messages []provider.Message, available []mcptypes.Tool) (string, []provider.ToolCall, error) {
	var b strings.Builder
	var calls []provider.ToolCall
	startTime := time.Now()

	err := s.provider.ChatWithTools(ctx, messages, available, func(chunk string, toolCalls []provider.ToolCall) error {
		b.WriteString(chunk)
		calls = append(calls, toolCalls...)
		return nil
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", nil, fmt.Errorf("agent turn timed out: %w", err)
		}
		return "", nil, fmt.Errorf("failed to get model response: %w", err)
	}

	if config.DebugLog != nil {
		config.DebugLog.Printf("[Agent] %s responded after %v - %d chars", s.provider.GetModel(), time.Since(startTime), b.Len())
	}
	return b.String(), calls, nil
}

// execute runs one tool call. Failures are reported to the model as text
// so it can recover or explain.
func (s *Service) execute(ctx context.Context, call provider.ToolCall) string {
	out, err := s.tools.InvokeTool(ctx, call.Name, call.Arguments)
	if err != nil {
		if config.DebugLog != nil {
			config.DebugLog.Printf("[Agent] Error executing tool %s: %v", call.Name, err)
		}
		return fmt.Sprintf("Error executing %s: %v", call.Name, err)
	}
	if out == "" {
		return "Tool executed successfully (no output)"
	}
	return out
}
