package mcp

import (
	"encoding/json"

	"github.com/anthropics/anthropic-sdk-go"
	mcptypes "github.com/mark3labs/mcp-go/mcp"
	"github.com/ollama/ollama/api"
	"github.com/openai/openai-go/v3"
)

// The agent discovers the tool server's tools over the protocol and hands
// them to whichever LLM provider is configured. Each provider wants the
// same JSON Schema in its own envelope.

// ConvertMCPToolsToOllama wraps each tool as an Ollama function tool.
func ConvertMCPToolsToOllama(mcpTools []mcptypes.Tool) []api.Tool {
	out := make([]api.Tool, 0, len(mcpTools))
	for _, t := range mcpTools {
		out = append(out, api.Tool{
			Type: "function",
			Function: api.ToolFunction{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  ollamaParameters(t.InputSchema),
			},
		})
	}
	return out
}

func ollamaParameters(schema mcptypes.ToolInputSchema) api.ToolFunctionParameters {
	params := api.ToolFunctionParameters{
		Type:       schema.Type,
		Required:   schema.Required,
		Properties: make(map[string]api.ToolProperty, len(schema.Properties)),
	}
	if schema.Defs != nil {
		params.Defs = schema.Defs
	}
	for name, prop := range schema.Properties {
		params.Properties[name] = ollamaProperty(prop)
	}
	return params
}

func ollamaProperty(raw any) api.ToolProperty {
	var prop api.ToolProperty

	m, ok := raw.(map[string]any)
	if !ok {
		// Typed schema values (structs) are normalized through JSON.
		data, err := json.Marshal(raw)
		if err != nil || json.Unmarshal(data, &m) != nil {
			return prop
		}
	}

	switch t := m["type"].(type) {
	case string:
		prop.Type = api.PropertyType{t}
	case []string:
		prop.Type = api.PropertyType(t)
	case []any:
		for _, v := range t {
			if s, ok := v.(string); ok {
				prop.Type = append(prop.Type, s)
			}
		}
	}

	if desc, ok := m["description"].(string); ok {
		prop.Description = desc
	}
	if enum, ok := m["enum"].([]any); ok {
		prop.Enum = enum
	}
	if items, ok := m["items"]; ok {
		prop.Items = items
	}
	if anyOf, ok := m["anyOf"].([]any); ok {
		for _, alt := range anyOf {
			prop.AnyOf = append(prop.AnyOf, ollamaProperty(alt))
		}
	}
	return prop
}

// ConvertMCPToolsToOpenAIFormat wraps each tool as a chat-completions
// function tool.
func ConvertMCPToolsToOpenAIFormat(mcpTools []mcptypes.Tool) []openai.ChatCompletionToolUnionParam {
	if len(mcpTools) == 0 {
		return nil
	}

	out := make([]openai.ChatCompletionToolUnionParam, 0, len(mcpTools))
	for _, t := range mcpTools {
		params := openai.FunctionParameters{
			"type":       t.InputSchema.Type,
			"properties": t.InputSchema.Properties,
		}
		if len(t.InputSchema.Required) > 0 {
			params["required"] = t.InputSchema.Required
		}
		if t.InputSchema.Defs != nil {
			params["$defs"] = t.InputSchema.Defs
		}

		out = append(out, openai.ChatCompletionFunctionTool(openai.FunctionDefinitionParam{
			Name:        t.Name,
			Description: openai.String(t.Description),
			Parameters:  params,
		}))
	}
	return out
}

// ConvertMCPToolsToAnthropicFormat wraps each tool as a Messages API tool.
func ConvertMCPToolsToAnthropicFormat(mcpTools []mcptypes.Tool) []anthropic.ToolUnionParam {
	if len(mcpTools) == 0 {
		return nil
	}

	out := make([]anthropic.ToolUnionParam, 0, len(mcpTools))
	for _, t := range mcpTools {
		schema := anthropic.ToolInputSchemaParam{Properties: t.InputSchema.Properties}
		if len(t.InputSchema.Required) > 0 {
			schema.Required = t.InputSchema.Required
		}
		if t.InputSchema.Defs != nil {
			schema.ExtraFields = map[string]any{"$defs": t.InputSchema.Defs}
		}

		tool := anthropic.ToolUnionParamOfTool(schema, t.Name)
		if t.Description != "" {
			tool.OfTool.Description = anthropic.String(t.Description)
		}
		out = append(out, tool)
	}
	return out
}
