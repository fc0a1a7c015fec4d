package provider_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"velora/provider"
	"velora/provider/testutil"
)

var _ provider.Provider = (*provider.OllamaProvider)(nil)
var _ provider.Provider = (*provider.OpenAIProvider)(nil)
var _ provider.Provider = (*provider.AnthropicProvider)(nil)

// fakeOllama serves /api/chat as an NDJSON stream and /api/tags for Ping.
func fakeOllama(t *testing.T, lines []string, gotRequest *map[string]any) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/api/chat", func(w http.ResponseWriter, r *http.Request) {
		if gotRequest != nil {
			if err := json.NewDecoder(r.Body).Decode(gotRequest); err != nil {
				t.Errorf("failed to decode chat request: %v", err)
			}
		}
		w.Header().Set("Content-Type", "application/x-ndjson")
		for _, line := range lines {
			fmt.Fprintln(w, line)
		}
	})
	mux.HandleFunc("/api/tags", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"models":[{"name":"llama3.1:latest","size":1}]}`)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestOllamaProviderStreamsChunks(t *testing.T) {
	var req map[string]any
	srv := fakeOllama(t, []string{
		`{"model":"llama3.1:latest","message":{"role":"assistant","content":"Hel"},"done":false}`,
		`{"model":"llama3.1:latest","message":{"role":"assistant","content":"lo"},"done":false}`,
		`{"model":"llama3.1:latest","message":{"role":"assistant","content":""},"done":true}`,
	}, &req)

	p, err := provider.NewOllamaProvider(srv.URL, "")
	if err != nil {
		t.Fatal(err)
	}

	var b strings.Builder
	err = p.ChatWithTools(context.Background(), []provider.Message{{Role: provider.RoleUser, Content: "hi"}}, nil, func(chunk string, calls []provider.ToolCall) error {
		b.WriteString(chunk)
		if calls != nil {
			t.Errorf("unexpected tool calls %v", calls)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("ChatWithTools() error = %v", err)
	}
	if b.String() != "Hello" {
		t.Errorf("streamed %q, want %q", b.String(), "Hello")
	}

	if req["model"] != "llama3.1:latest" {
		t.Errorf("request model = %v", req["model"])
	}
	if _, ok := req["tools"]; ok {
		t.Errorf("request carried tools without any being offered: %v", req["tools"])
	}
}

func TestOllamaProviderReportsToolCalls(t *testing.T) {
	var req map[string]any
	srv := fakeOllama(t, []string{
		`{"model":"m","message":{"role":"assistant","content":"","tool_calls":[{"function":{"name":"read_text","arguments":{"relpath":"./README.md"}}}]},"done":false}`,
		`{"model":"m","message":{"role":"assistant","content":""},"done":true}`,
	}, &req)

	p, err := provider.NewOllamaProvider(srv.URL, "qwen2.5:7b")
	if err != nil {
		t.Fatal(err)
	}

	var calls []provider.ToolCall
	err = p.ChatWithTools(context.Background(), testutil.TestMessages(), testutil.TestMCPTools(), func(chunk string, tc []provider.ToolCall) error {
		calls = append(calls, tc...)
		return nil
	})
	if err != nil {
		t.Fatalf("ChatWithTools() error = %v", err)
	}

	if len(calls) != 1 || calls[0].Name != "read_text" || calls[0].Arguments["relpath"] != "./README.md" {
		t.Errorf("tool calls = %#v", calls)
	}

	tools, ok := req["tools"].([]any)
	if !ok || len(tools) != 2 {
		t.Fatalf("request tools = %#v", req["tools"])
	}
	msgs, ok := req["messages"].([]any)
	if !ok || len(msgs) != len(testutil.TestMessages()) {
		t.Errorf("request messages = %#v", req["messages"])
	}
}

func TestOllamaProviderCallbackErrorStopsStream(t *testing.T) {
	srv := fakeOllama(t, []string{
		`{"model":"m","message":{"role":"assistant","content":"a"},"done":false}`,
		`{"model":"m","message":{"role":"assistant","content":"b"},"done":true}`,
	}, nil)

	p, _ := provider.NewOllamaProvider(srv.URL, "m")
	stop := fmt.Errorf("stop")
	err := p.ChatWithTools(context.Background(), testutil.SingleUserMessage("x"), nil, func(string, []provider.ToolCall) error {
		return stop
	})
	if err == nil {
		t.Fatal("expected callback error to surface")
	}
}

func TestOllamaProviderServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"error":"model \"nope\" not found"}`)
	}))
	defer srv.Close()

	p, _ := provider.NewOllamaProvider(srv.URL, "nope")
	err := p.ChatWithTools(context.Background(), testutil.SingleUserMessage("x"), nil, func(string, []provider.ToolCall) error { return nil })
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("expected not found error, got %v", err)
	}
}

func TestOllamaProviderPing(t *testing.T) {
	srv := fakeOllama(t, nil, nil)
	p, _ := provider.NewOllamaProvider(srv.URL, "")
	if err := p.Ping(context.Background()); err != nil {
		t.Errorf("Ping() error = %v", err)
	}

	srv.Close()
	if err := p.Ping(context.Background()); err == nil {
		t.Error("Ping() against a stopped server should fail")
	}
}

func TestModelSupportsToolCalling(t *testing.T) {
	tests := []struct {
		model string
		want  bool
	}{
		{"llama3.1:latest", true},
		{"llama3.2:3b", true},
		{"Llama3.3", true},
		{"llama3:8b", false},
		{"llama3-gradient", false},
		{"qwen2.5-coder", true},
		{"gpt-oss:20b", true},
		{"gemma2", false},
		{"codellama", false},
		{"unknown-model", false},
	}

	for _, tt := range tests {
		if got := provider.ModelSupportsToolCalling(tt.model); got != tt.want {
			t.Errorf("ModelSupportsToolCalling(%q) = %v, want %v", tt.model, got, tt.want)
		}
	}
}
