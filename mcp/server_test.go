package mcp

import (
	"context"
	"errors"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/server"

	"velora/sandbox"
	"velora/tools"
)

func newToolServer(t *testing.T) *server.MCPServer {
	t.Helper()
	root := filepath.Join(t.TempDir(), "ws")
	if err := os.MkdirAll(root, 0700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "README.md"), []byte("# Velora\nhello\n"), 0600); err != nil {
		t.Fatal(err)
	}
	resolver, err := sandbox.NewResolver(root)
	if err != nil {
		t.Fatal(err)
	}

	builtins := tools.Builtins(resolver)
	builtins = append(builtins, tools.Tool{
		Name: "panic",
		Handler: func(ctx context.Context, args tools.Args) (tools.Result, error) {
			panic("boom")
		},
	}, tools.Tool{
		Name: "empty",
		Handler: func(ctx context.Context, args tools.Args) (tools.Result, error) {
			return tools.Result{}, nil
		},
	})

	reg, err := tools.NewRegistry(builtins...)
	if err != nil {
		t.Fatal(err)
	}
	return NewServer("velora-tools-test", "0.0.1", reg)
}

func inProcessClient(t *testing.T, srv *server.MCPServer) *Client {
	t.Helper()
	c, err := NewClient(ClientConfig{
		Connect: func(ctx context.Context) (*client.Client, error) {
			mc, err := client.NewInProcessClient(srv)
			if err != nil {
				return nil, err
			}
			return mc, mc.Start(ctx)
		},
		CallTimeout: 5 * time.Second,
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestListToolsStableOrder(t *testing.T) {
	c := inProcessClient(t, newToolServer(t))
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		list, err := c.ListTools(ctx)
		if err != nil {
			t.Fatalf("ListTools() error = %v", err)
		}
		var names []string
		for _, tool := range list {
			names = append(names, tool.Name)
		}
		if got := strings.Join(names, ","); got != "echo,empty,panic,read_text" {
			t.Errorf("ListTools() = %s", got)
		}

		if _, err := c.InvokeTool(ctx, "echo", map[string]any{"text": "again"}); err != nil {
			t.Fatal(err)
		}
	}
}

func TestListToolsSchema(t *testing.T) {
	c := inProcessClient(t, newToolServer(t))

	list, err := c.ListTools(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	for _, tool := range list {
		if tool.Name != "read_text" {
			continue
		}
		if tool.Description == "" {
			t.Error("description missing")
		}
		if len(tool.InputSchema.Required) != 1 || tool.InputSchema.Required[0] != "relpath" {
			t.Errorf("required = %v", tool.InputSchema.Required)
		}
		if _, ok := tool.InputSchema.Properties["relpath"]; !ok {
			t.Error("relpath property missing")
		}
		return
	}
	t.Fatal("read_text not listed")
}

func TestInvokeTool(t *testing.T) {
	c := inProcessClient(t, newToolServer(t))
	ctx := context.Background()

	tests := []struct {
		name  string
		tool  string
		args  map[string]any
		want  string
		check func(t *testing.T, err error)
	}{
		{name: "echo", tool: "echo", args: map[string]any{"text": "hi"}, want: "hi"},
		{name: "read file", tool: "read_text", args: map[string]any{"relpath": "workspace/README.md"}, want: "# Velora\nhello\n"},
		{
			name: "sandbox violation",
			tool: "read_text",
			args: map[string]any{"relpath": "../../etc/passwd"},
			check: func(t *testing.T, err error) {
				var te *ToolError
				if !errors.As(err, &te) {
					t.Fatalf("expected *ToolError, got %T: %v", err, err)
				}
				if te.Kind != tools.KindSandboxViolation || te.Code != tools.CodeInvalidParams {
					t.Errorf("tool error = %+v", te)
				}
				if te.Message != sandbox.ViolationMessage {
					t.Errorf("message = %q", te.Message)
				}
			},
		},
		{
			name: "missing file",
			tool: "read_text",
			args: map[string]any{"relpath": "nope.txt"},
			check: func(t *testing.T, err error) {
				var te *ToolError
				if !errors.As(err, &te) || te.Kind != tools.KindNotFound || te.Code != tools.CodeResourceNotFound {
					t.Errorf("expected not_found tool error, got %v", err)
				}
			},
		},
		{
			name: "validation failure",
			tool: "echo",
			args: map[string]any{},
			check: func(t *testing.T, err error) {
				var te *ToolError
				if !errors.As(err, &te) || te.Kind != tools.KindInvalid {
					t.Errorf("expected invalid tool error, got %v", err)
				}
			},
		},
		{
			name: "handler panic",
			tool: "panic",
			check: func(t *testing.T, err error) {
				var te *ToolError
				if !errors.As(err, &te) || te.Kind != tools.KindHandler || te.Code != tools.CodeInternalError {
					t.Errorf("expected handler tool error, got %v", err)
				}
			},
		},
		{
			name: "unknown tool",
			tool: "write_text",
			check: func(t *testing.T, err error) {
				var pe *ProtocolError
				if !errors.As(err, &pe) || pe.Code != tools.CodeInvalidParams {
					t.Errorf("expected protocol error -32602, got %v", err)
				}
				if IsRetryable(err) {
					t.Error("protocol errors are not retryable")
				}
			},
		},
		{
			name: "empty content",
			tool: "empty",
			check: func(t *testing.T, err error) {
				if !errors.Is(err, ErrEmptyContent) {
					t.Errorf("expected ErrEmptyContent, got %v", err)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.InvokeTool(ctx, tt.tool, tt.args)
			if tt.check != nil {
				if err == nil {
					t.Fatalf("InvokeTool() = %q, want error", got)
				}
				if got != "" {
					t.Errorf("failed call returned text %q", got)
				}
				tt.check(t, err)
				return
			}
			if err != nil {
				t.Fatalf("InvokeTool() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("InvokeTool() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestServerSurvivesConcurrentCalls(t *testing.T) {
	c := inProcessClient(t, newToolServer(t))
	ctx := context.Background()

	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		go func(i int) {
			tool, args := "echo", map[string]any{"text": "x"}
			if i%2 == 0 {
				tool, args = "panic", nil
			}
			_, err := c.InvokeTool(ctx, tool, args)
			if tool == "echo" {
				errs <- err
				return
			}
			var te *ToolError
			if !errors.As(err, &te) {
				errs <- err
				return
			}
			errs <- nil
		}(i)
	}
	for i := 0; i < 20; i++ {
		if err := <-errs; err != nil {
			t.Errorf("call %d: %v", i, err)
		}
	}
}

func newHTTPToolServer(t *testing.T, sessions *IdleSessions) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(NewHTTPHandler(newToolServer(t), sessions, "/mcp"))
	t.Cleanup(srv.Close)
	return srv
}

func TestStreamableHTTPRoundTrip(t *testing.T) {
	sessions := NewIdleSessions(time.Minute)
	srv := newHTTPToolServer(t, sessions)

	c, err := NewClient(ClientConfig{URL: srv.URL + "/mcp", CallTimeout: 5 * time.Second})
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	got, err := c.InvokeTool(context.Background(), "echo", map[string]any{"text": "over http"})
	if err != nil {
		t.Fatalf("InvokeTool() error = %v", err)
	}
	if got != "over http" {
		t.Errorf("InvokeTool() = %q", got)
	}
	if sessions.Len() != 1 {
		t.Errorf("expected one live session, got %d", sessions.Len())
	}

	// A second call reuses the session.
	if _, err := c.InvokeTool(context.Background(), "echo", map[string]any{"text": "again"}); err != nil {
		t.Fatal(err)
	}
	if sessions.Len() != 1 {
		t.Errorf("expected session reuse, got %d sessions", sessions.Len())
	}
}

func TestClientReconnectsAfterSessionExpiry(t *testing.T) {
	sessions := NewIdleSessions(time.Minute)
	srv := newHTTPToolServer(t, sessions)

	connects := 0
	c, err := NewClient(ClientConfig{
		Connect: func(ctx context.Context) (*client.Client, error) {
			connects++
			return dialHTTP(ctx, srv.URL+"/mcp", nil)
		},
		CallTimeout: 5 * time.Second,
	})
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	ctx := context.Background()
	if _, err := c.InvokeTool(ctx, "echo", map[string]any{"text": "one"}); err != nil {
		t.Fatal(err)
	}

	// Expire every session server-side without telling the client.
	sessions.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	if n := sessions.Sweep(); n != 1 {
		t.Fatalf("Sweep() = %d, want 1", n)
	}
	sessions.now = time.Now

	got, err := c.InvokeTool(ctx, "echo", map[string]any{"text": "two"})
	if err != nil {
		t.Fatalf("InvokeTool() after expiry error = %v", err)
	}
	if got != "two" {
		t.Errorf("InvokeTool() = %q", got)
	}
	if connects != 2 {
		t.Errorf("connects = %d, want 2", connects)
	}
}

func TestClientTransportFailure(t *testing.T) {
	sessions := NewIdleSessions(time.Minute)
	srv := newHTTPToolServer(t, sessions)
	url := srv.URL + "/mcp"
	srv.Close()

	c, err := NewClient(ClientConfig{URL: url, CallTimeout: 2 * time.Second})
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	_, err = c.InvokeTool(context.Background(), "echo", map[string]any{"text": "x"})
	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("expected *TransportError, got %T: %v", err, err)
	}
	if !IsRetryable(err) {
		t.Error("transport failures should be retryable")
	}
}

func TestClientClosed(t *testing.T) {
	c := inProcessClient(t, newToolServer(t))
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := c.InvokeTool(context.Background(), "echo", map[string]any{"text": "x"}); !errors.Is(err, ErrClientClosed) {
		t.Errorf("expected ErrClientClosed, got %v", err)
	}
}

func TestNewClientRequiresTarget(t *testing.T) {
	if _, err := NewClient(ClientConfig{}); err == nil {
		t.Error("expected error without URL or command")
	}
}
