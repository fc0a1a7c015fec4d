package mcp

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/mark3labs/mcp-go/server"

	globalconfig "velora/config"
)

const heartbeatInterval = 30 * time.Second

// ServeStdio serves srv over the given streams until ctx is cancelled or
// input reaches EOF. Nothing else may write to out.
func ServeStdio(ctx context.Context, srv *server.MCPServer, in io.Reader, out io.Writer) error {
	stdio := server.NewStdioServer(srv)
	if globalconfig.DebugLog != nil {
		stdio.SetErrorLogger(globalconfig.DebugLog)
	}
	return stdio.Listen(ctx, in, out)
}

// NewHTTPHandler serves srv over streamable HTTP with stateful sessions
// governed by sessions.
func NewHTTPHandler(srv *server.MCPServer, sessions *IdleSessions, endpoint string) http.Handler {
	return server.NewStreamableHTTPServer(
		srv,
		server.WithEndpointPath(endpoint),
		server.WithSessionIdManager(sessions),
		server.WithHeartbeatInterval(heartbeatInterval),
	)
}
