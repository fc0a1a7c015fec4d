package provider

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/ollama/ollama/api"
	"github.com/openai/openai-go/v3"
)

// ConvertToOllamaMessages converts Message to Ollama api.Message. Tool
// calls requested by the assistant are carried over so the model sees its
// own request before the tool result.
func ConvertToOllamaMessages(messages []Message) []api.Message {
	result := make([]api.Message, len(messages))
	for i, msg := range messages {
		result[i] = api.Message{
			Role:      msg.Role,
			Content:   msg.Content,
			ToolCalls: ConvertFromProviderToolCalls(msg.ToolCalls),
		}
	}
	return result
}

// ConvertToProviderToolCalls converts Ollama api.ToolCall to ToolCall.
// Returns nil for an empty input.
func ConvertToProviderToolCalls(ollamaCalls []api.ToolCall) []ToolCall {
	if len(ollamaCalls) == 0 {
		return nil
	}

	result := make([]ToolCall, len(ollamaCalls))
	for i, call := range ollamaCalls {
		result[i] = ToolCall{
			Name:      call.Function.Name,
			Arguments: call.Function.Arguments,
		}
	}
	return result
}

// ConvertFromProviderToolCalls converts ToolCall to Ollama api.ToolCall.
// Returns nil for an empty input.
func ConvertFromProviderToolCalls(providerCalls []ToolCall) []api.ToolCall {
	if len(providerCalls) == 0 {
		return nil
	}

	result := make([]api.ToolCall, len(providerCalls))
	for i, call := range providerCalls {
		result[i] = api.ToolCall{
			Function: api.ToolCallFunction{
				Name:      call.Name,
				Arguments: call.Arguments,
			},
		}
	}
	return result
}

// ParseToolArguments parses a JSON arguments string into a map. Malformed
// input yields an empty map.
func ParseToolArguments(argsJSON string) map[string]any {
	var args map[string]any
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil || args == nil {
		return make(map[string]any)
	}
	return args
}

// ConvertToOpenAIMessages converts messages to OpenAI format. Tool traffic
// is flattened to plain text: the request becomes an assistant note and
// the result a user message naming the tool.
func ConvertToOpenAIMessages(messages []Message) []openai.ChatCompletionMessageParamUnion {
	result := make([]openai.ChatCompletionMessageParamUnion, len(messages))

	for i, msg := range messages {
		switch msg.Role {
		case RoleSystem:
			result[i] = openai.SystemMessage(msg.Content)
		case RoleAssistant:
			result[i] = openai.AssistantMessage(assistantText(msg))
		case RoleTool:
			result[i] = openai.UserMessage(toolResultText(msg))
		default:
			result[i] = openai.UserMessage(msg.Content)
		}
	}

	return result
}

// convertToAnthropicMessages converts messages to Anthropic format.
// System messages are returned separately since Anthropic takes them as a
// request parameter.
func convertToAnthropicMessages(messages []Message) ([]anthropic.MessageParam, []anthropic.TextBlockParam) {
	var systemBlocks []anthropic.TextBlockParam
	anthropicMsgs := make([]anthropic.MessageParam, 0, len(messages))

	for _, msg := range messages {
		switch msg.Role {
		case RoleSystem:
			systemBlocks = append(systemBlocks, anthropic.TextBlockParam{Text: msg.Content})
		case RoleAssistant:
			anthropicMsgs = append(anthropicMsgs,
				anthropic.NewAssistantMessage(anthropic.NewTextBlock(assistantText(msg))),
			)
		case RoleTool:
			anthropicMsgs = append(anthropicMsgs,
				anthropic.NewUserMessage(anthropic.NewTextBlock(toolResultText(msg))),
			)
		default:
			anthropicMsgs = append(anthropicMsgs,
				anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)),
			)
		}
	}

	return anthropicMsgs, systemBlocks
}

// extractToolCalls extracts tool calls from Anthropic message content.
func extractToolCalls(content []anthropic.ContentBlockUnion) []ToolCall {
	var toolCalls []ToolCall

	for _, block := range content {
		toolUse, ok := block.AsAny().(anthropic.ToolUseBlock)
		if !ok {
			continue
		}
		var args map[string]any
		if err := json.Unmarshal(toolUse.Input, &args); err != nil {
			continue
		}
		toolCalls = append(toolCalls, ToolCall{Name: toolUse.Name, Arguments: args})
	}

	return toolCalls
}

func assistantText(msg Message) string {
	if len(msg.ToolCalls) == 0 {
		return msg.Content
	}

	var b strings.Builder
	b.WriteString(msg.Content)
	for _, call := range msg.ToolCalls {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "[called %s(%s)]", call.Name, formatArguments(call.Arguments))
	}
	return b.String()
}

func toolResultText(msg Message) string {
	if msg.ToolName == "" {
		return "Tool result:\n" + msg.Content
	}
	return fmt.Sprintf("Tool result from %s:\n%s", msg.ToolName, msg.Content)
}

// formatArguments renders arguments in key order so prompts are stable.
func formatArguments(args map[string]any) string {
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		v, err := json.Marshal(args[k])
		if err != nil {
			v = []byte(fmt.Sprint(args[k]))
		}
		parts = append(parts, fmt.Sprintf("%s=%s", k, v))
	}
	return strings.Join(parts, ", ")
}
