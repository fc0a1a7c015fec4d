package provider

import (
	"encoding/json"
	"regexp"
	"strings"
)

// Some models served through OpenAI-compatible endpoints write the tool
// call into the message text instead of the tool_calls field. These
// parsers recover such calls after the stream ends.

var xmlToolCallPattern = regexp.MustCompile(`(?s)<tool_call>\s*(.*?)\s*</tool_call>`)

type leakedCall struct {
	Name       string         `json:"name"`
	Arguments  map[string]any `json:"arguments"`
	Parameters map[string]any `json:"parameters"`
}

func (c leakedCall) toolCall() (ToolCall, bool) {
	if c.Name == "" {
		return ToolCall{}, false
	}
	args := c.Arguments
	if args == nil {
		args = c.Parameters
	}
	if args == nil {
		args = map[string]any{}
	}
	return ToolCall{Name: c.Name, Arguments: args}, true
}

// ParseLeakedJSONToolCalls recovers calls written as a bare JSON object
// (or array of objects) with a "name" and "arguments"/"parameters".
func ParseLeakedJSONToolCalls(content string) []ToolCall {
	trimmed := strings.TrimSpace(content)
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")
	trimmed = strings.TrimSpace(trimmed)

	var calls []leakedCall
	switch {
	case strings.HasPrefix(trimmed, "{"):
		var single leakedCall
		if err := json.Unmarshal([]byte(trimmed), &single); err != nil {
			return nil
		}
		calls = []leakedCall{single}
	case strings.HasPrefix(trimmed, "["):
		if err := json.Unmarshal([]byte(trimmed), &calls); err != nil {
			return nil
		}
	default:
		return nil
	}

	var result []ToolCall
	for _, c := range calls {
		if call, ok := c.toolCall(); ok {
			result = append(result, call)
		}
	}
	return result
}

// ParseLeakedXMLToolCalls recovers calls wrapped in <tool_call> tags.
func ParseLeakedXMLToolCalls(content string) []ToolCall {
	var result []ToolCall
	for _, match := range xmlToolCallPattern.FindAllStringSubmatch(content, -1) {
		var c leakedCall
		if err := json.Unmarshal([]byte(match[1]), &c); err != nil {
			continue
		}
		if call, ok := c.toolCall(); ok {
			result = append(result, call)
		}
	}
	return result
}
