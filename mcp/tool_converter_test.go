package mcp

import (
	"testing"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
	"github.com/ollama/ollama/api"

	"velora/tools"
)

func readTextTool() mcptypes.Tool {
	return ToMCPTool(tools.Tool{
		Name:        "read_text",
		Description: "Reads a text file from the workspace directory",
		ReadOnly:    true,
		Schema: tools.Schema{Fields: []tools.Field{
			{Name: "relpath", Type: tools.TypeString, Required: true, Description: "Path relative to the workspace root"},
		}},
	})
}

func TestConvertMCPToolsToOllama(t *testing.T) {
	tests := []struct {
		name     string
		input    []mcptypes.Tool
		expected int
		validate func(t *testing.T, result []api.Tool)
	}{
		{
			name:     "empty tools",
			input:    []mcptypes.Tool{},
			expected: 0,
		},
		{
			name:     "registry tool",
			input:    []mcptypes.Tool{readTextTool()},
			expected: 1,
			validate: func(t *testing.T, result []api.Tool) {
				fn := result[0].Function
				if result[0].Type != "function" || fn.Name != "read_text" {
					t.Errorf("unexpected tool %+v", result[0])
				}
				prop, ok := fn.Parameters.Properties["relpath"]
				if !ok {
					t.Fatal("relpath property missing")
				}
				if len(prop.Type) != 1 || prop.Type[0] != "string" {
					t.Errorf("relpath type = %v", prop.Type)
				}
				if len(fn.Parameters.Required) != 1 || fn.Parameters.Required[0] != "relpath" {
					t.Errorf("required = %v", fn.Parameters.Required)
				}
			},
		},
		{
			name: "union and enum properties",
			input: []mcptypes.Tool{{
				Name: "calc",
				InputSchema: mcptypes.ToolInputSchema{
					Type: "object",
					Properties: map[string]any{
						"op":    map[string]any{"type": "string", "enum": []any{"add", "sub"}},
						"value": map[string]any{"anyOf": []any{map[string]any{"type": "string"}, map[string]any{"type": "number"}}},
						"multi": map[string]any{"type": []any{"string", "null"}},
					},
				},
			}},
			expected: 1,
			validate: func(t *testing.T, result []api.Tool) {
				props := result[0].Function.Parameters.Properties
				if len(props["op"].Enum) != 2 {
					t.Errorf("enum = %v", props["op"].Enum)
				}
				if len(props["value"].AnyOf) != 2 {
					t.Errorf("anyOf = %v", props["value"].AnyOf)
				}
				if len(props["multi"].Type) != 2 {
					t.Errorf("multi type = %v", props["multi"].Type)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ConvertMCPToolsToOllama(tt.input)
			if len(result) != tt.expected {
				t.Fatalf("expected %d tools, got %d", tt.expected, len(result))
			}
			if tt.validate != nil {
				tt.validate(t, result)
			}
		})
	}
}

func TestConvertMCPToolsToOpenAIFormat(t *testing.T) {
	if got := ConvertMCPToolsToOpenAIFormat(nil); got != nil {
		t.Errorf("expected nil for no tools, got %v", got)
	}

	result := ConvertMCPToolsToOpenAIFormat([]mcptypes.Tool{readTextTool()})
	if len(result) != 1 {
		t.Fatalf("expected 1 tool, got %d", len(result))
	}
	fn := result[0].OfFunction
	if fn == nil {
		t.Fatal("expected a function tool")
	}
	if fn.Function.Name != "read_text" {
		t.Errorf("name = %q", fn.Function.Name)
	}
	if _, ok := fn.Function.Parameters["required"]; !ok {
		t.Error("required list missing from parameters")
	}
}

func TestConvertMCPToolsToAnthropicFormat(t *testing.T) {
	if got := ConvertMCPToolsToAnthropicFormat(nil); got != nil {
		t.Errorf("expected nil for no tools, got %v", got)
	}

	result := ConvertMCPToolsToAnthropicFormat([]mcptypes.Tool{readTextTool()})
	if len(result) != 1 || result[0].OfTool == nil {
		t.Fatalf("unexpected result %+v", result)
	}
	tool := result[0].OfTool
	if tool.Name != "read_text" {
		t.Errorf("name = %q", tool.Name)
	}
	if len(tool.InputSchema.Required) != 1 {
		t.Errorf("required = %v", tool.InputSchema.Required)
	}
}
