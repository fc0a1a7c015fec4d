package provider

import (
	"reflect"
	"testing"
)

func TestParseLeakedJSONToolCalls(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    []ToolCall
	}{
		{
			name:    "single object",
			content: `{"name": "read_text", "arguments": {"relpath": "./README.md"}}`,
			want:    []ToolCall{{Name: "read_text", Arguments: map[string]any{"relpath": "./README.md"}}},
		},
		{
			name:    "parameters key in fenced block",
			content: "```json\n{\"name\": \"echo\", \"parameters\": {\"text\": \"hi\"}}\n```",
			want:    []ToolCall{{Name: "echo", Arguments: map[string]any{"text": "hi"}}},
		},
		{
			name:    "array",
			content: `[{"name": "echo", "arguments": {"text": "a"}}, {"name": "echo"}]`,
			want: []ToolCall{
				{Name: "echo", Arguments: map[string]any{"text": "a"}},
				{Name: "echo", Arguments: map[string]any{}},
			},
		},
		{name: "prose", content: "The file says hello.", want: nil},
		{name: "object without name", content: `{"relpath": "x"}`, want: nil},
		{name: "broken json", content: `{"name": "echo",`, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseLeakedJSONToolCalls(tt.content)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseLeakedJSONToolCalls() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestParseLeakedXMLToolCalls(t *testing.T) {
	content := "Let me check.\n<tool_call>\n{\"name\": \"read_text\", \"arguments\": {\"relpath\": \"a.txt\"}}\n</tool_call>\n" +
		"<tool_call>not json</tool_call>"

	got := ParseLeakedXMLToolCalls(content)
	want := []ToolCall{{Name: "read_text", Arguments: map[string]any{"relpath": "a.txt"}}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ParseLeakedXMLToolCalls() = %#v, want %#v", got, want)
	}

	if got := ParseLeakedXMLToolCalls("no tags here"); got != nil {
		t.Errorf("expected nil, got %#v", got)
	}
}
