package mcp

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	mcptypes "github.com/mark3labs/mcp-go/mcp"

	globalconfig "velora/config"
)

const (
	ProtocolVersion    = "2025-06-18"
	defaultCallTimeout = 30 * time.Second
)

// ConnectFunc opens a started, uninitialized protocol client.
type ConnectFunc func(ctx context.Context) (*client.Client, error)

type ClientConfig struct {
	// URL selects the streamable HTTP transport.
	URL     string
	Headers map[string]string

	// Command selects the stdio transport, spawning Command with Args.
	Command string
	Args    []string
	Env     []string

	// Connect overrides URL and Command.
	Connect ConnectFunc

	Name        string
	Version     string
	CallTimeout time.Duration
}

// Client owns one long-lived protocol session. The session is opened on
// first use, shared by every call, dropped after a transport failure and
// reopened by the next call. Close tears it down for good.
type Client struct {
	cfg     ClientConfig
	connect ConnectFunc

	mu      sync.Mutex
	session *client.Client
	cmd     *exec.Cmd
	closed  bool
}

func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = defaultCallTimeout
	}
	if cfg.Name == "" {
		cfg.Name = "velora"
	}
	if cfg.Version == "" {
		cfg.Version = "1.0.0"
	}

	c := &Client{cfg: cfg}
	switch {
	case cfg.Connect != nil:
		c.connect = cfg.Connect
	case cfg.URL != "":
		c.connect = func(ctx context.Context) (*client.Client, error) {
			return dialHTTP(ctx, cfg.URL, cfg.Headers)
		}
	case cfg.Command != "":
		c.connect = c.spawnStdio
	default:
		return nil, fmt.Errorf("mcp client needs a URL or a command")
	}
	return c, nil
}

func dialHTTP(ctx context.Context, url string, headers map[string]string) (*client.Client, error) {
	var opts []transport.StreamableHTTPCOption
	switch {
	case len(headers) > 0:
		opts = append(opts, transport.WithHTTPHeaders(headers))
	}

	mcpClient, err := client.NewStreamableHttpClient(url, opts...)
	if err != nil {
		return nil, err
	}
	if err := mcpClient.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start HTTP transport: %w", err)
	}

	switch {
	case globalconfig.DebugLog != nil:
		globalconfig.DebugLog.Printf("[MCP] Started streamable HTTP transport for %s", url)
	}
	return mcpClient, nil
}

func (c *Client) spawnStdio(ctx context.Context) (*client.Client, error) {
	var captured *exec.Cmd
	cmdFunc := func(ctx context.Context, command string, env []string, args []string) (*exec.Cmd, error) {
		cmd := exec.CommandContext(ctx, command, args...)
		cmd.Env = env
		captured = cmd
		return cmd, nil
	}

	mcpClient, err := client.NewStdioMCPClientWithOptions(
		c.cfg.Command,
		c.cfg.Env,
		c.cfg.Args,
		transport.WithCommandFunc(cmdFunc),
	)
	if err != nil {
		return nil, err
	}

	// Called with c.mu held from acquire.
	c.cmd = captured
	switch {
	case captured != nil && captured.Process != nil && globalconfig.DebugLog != nil:
		globalconfig.DebugLog.Printf("[MCP] Started tool server %s with PID %d", c.cfg.Command, captured.Process.Pid)
	}
	return mcpClient, nil
}

// acquire returns the live session, opening one if needed.
func (c *Client) acquire(ctx context.Context) (*client.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrClientClosed
	}
	if c.session != nil {
		return c.session, nil
	}

	// The session outlives this call, so the transport is started without
	// the caller's deadline; only the handshake is bounded by it.
	s, err := c.connect(context.WithoutCancel(ctx))
	if err != nil {
		return nil, &TransportError{Op: "connect", Err: err}
	}

	initReq := mcptypes.InitializeRequest{
		Params: mcptypes.InitializeParams{
			ProtocolVersion: ProtocolVersion,
			Capabilities:    mcptypes.ClientCapabilities{},
			ClientInfo: mcptypes.Implementation{
				Name:    c.cfg.Name,
				Version: c.cfg.Version,
			},
		},
	}
	if _, err := s.Initialize(ctx, initReq); err != nil {
		closeQuietly(s)
		return nil, classify("initialize", err)
	}

	switch {
	case globalconfig.DebugLog != nil:
		globalconfig.DebugLog.Printf("[MCP] Session initialized (%s)", c.cfg.Name)
	}

	c.session = s
	return s, nil
}

// drop discards s if it is still the current session.
func (c *Client) drop(s *client.Client) {
	c.mu.Lock()
	if c.session != s {
		c.mu.Unlock()
		return
	}
	c.session = nil
	cmd := c.cmd
	c.cmd = nil
	c.mu.Unlock()

	go func() {
		closeQuietly(s)
		killQuietly(cmd)
	}()
}

// do runs fn against the shared session under the call timeout. A session
// the server reports as terminated is replaced and fn retried once, since
// the server never executed the request.
func (c *Client) do(ctx context.Context, op string, fn func(ctx context.Context, s *client.Client) error) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.CallTimeout)
	defer cancel()

	for attempt := 0; ; attempt++ {
		s, err := c.acquire(ctx)
		if err != nil {
			return err
		}

		err = fn(ctx, s)
		if err == nil {
			return nil
		}

		if !isTransportFailure(err) && ctx.Err() == nil {
			return classify(op, err)
		}

		c.drop(s)
		switch {
		case globalconfig.DebugLog != nil:
			globalconfig.DebugLog.Printf("[MCP] %s: dropping session after transport failure: %v", op, err)
		}

		if attempt == 0 && errors.Is(err, transport.ErrSessionTerminated) && ctx.Err() == nil {
			continue
		}
		return &TransportError{Op: op, Err: err}
	}
}

// ListTools returns the server's tool definitions.
func (c *Client) ListTools(ctx context.Context) ([]mcptypes.Tool, error) {
	var tools []mcptypes.Tool
	err := c.do(ctx, "list tools", func(ctx context.Context, s *client.Client) error {
		res, err := s.ListTools(ctx, mcptypes.ListToolsRequest{})
		if err != nil {
			return err
		}
		tools = res.Tools
		return nil
	})
	return tools, err
}

// CallTool returns the raw result, including isError results.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]any) (*mcptypes.CallToolResult, error) {
	var result *mcptypes.CallToolResult
	err := c.do(ctx, "call "+name, func(ctx context.Context, s *client.Client) error {
		req := mcptypes.CallToolRequest{}
		req.Params.Name = name
		req.Params.Arguments = args
		res, err := s.CallTool(ctx, req)
		if err != nil {
			return err
		}
		result = res
		return nil
	})
	return result, err
}

// InvokeTool calls a tool and returns the text of its first content part.
// Failures are a *TransportError, *ProtocolError or *ToolError; a result
// with no content is ErrEmptyContent.
func (c *Client) InvokeTool(ctx context.Context, name string, args map[string]any) (string, error) {
	res, err := c.CallTool(ctx, name, args)
	if err != nil {
		return "", err
	}
	return TextOf(res)
}

// SendTurn invokes the messaging tool of an agent.
func (c *Client) SendTurn(ctx context.Context, agentID, threadID, message string) (string, error) {
	args := map[string]any{"message": message}
	if threadID != "" {
		args["thread_id"] = threadID
	}
	return c.InvokeTool(ctx, SendToolName(agentID), args)
}

// SendToolName is the name of the tool an agent exposes for one turn.
func SendToolName(agentID string) string {
	return agentID + "_send"
}

func (c *Client) Close() error {
	c.mu.Lock()
	c.closed = true
	s, cmd := c.session, c.cmd
	c.session, c.cmd = nil, nil
	c.mu.Unlock()

	if s == nil {
		return nil
	}

	closeCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	closeDone := make(chan struct{})
	go func() {
		closeQuietly(s)
		close(closeDone)
	}()

	select {
	case <-closeDone:
	case <-closeCtx.Done():
		switch {
		case globalconfig.DebugLog != nil:
			globalconfig.DebugLog.Printf("[MCP] Close: session close timed out")
		}
	}

	killQuietly(cmd)
	return nil
}

// TextOf unwraps a tool result to the text of its first part.
func TextOf(res *mcptypes.CallToolResult) (string, error) {
	if res == nil {
		return "", ErrEmptyContent
	}
	if res.IsError {
		return "", toolErrorFrom(res)
	}
	return firstText(res)
}

func firstText(res *mcptypes.CallToolResult) (string, error) {
	if len(res.Content) == 0 {
		return "", ErrEmptyContent
	}
	text, ok := mcptypes.AsTextContent(res.Content[0])
	if !ok {
		return "", ErrNonTextContent
	}
	return text.Text, nil
}

func closeQuietly(s *client.Client) {
	if err := s.Close(); err != nil && globalconfig.DebugLog != nil {
		globalconfig.DebugLog.Printf("[MCP] close: %v", err)
	}
}

func killQuietly(cmd *exec.Cmd) {
	if cmd == nil || cmd.Process == nil {
		return
	}
	_ = cmd.Process.Kill()
}
