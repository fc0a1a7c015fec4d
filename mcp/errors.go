package mcp

import (
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/client/transport"
	mcptypes "github.com/mark3labs/mcp-go/mcp"

	"velora/tools"
)

var (
	ErrEmptyContent   = errors.New("tool returned no content")
	ErrNonTextContent = errors.New("tool returned non-text content")
	ErrClientClosed   = errors.New("mcp client is closed")
)

// TransportError means the call may never have reached the server: the
// connection failed, the session was lost, or the wait timed out.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport failure during %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Retryable is true for every transport failure; the next call reconnects.
func (e *TransportError) Retryable() bool { return true }

// ProtocolError is a JSON-RPC error response, such as an unknown tool.
type ProtocolError struct {
	Code int
	Err  error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol error %d: %v", e.Code, e.Err)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// ToolError is a tool call that reached its handler and failed there, or
// was rejected by validation or the sandbox.
type ToolError struct {
	Code    int
	Kind    tools.Kind
	Message string
}

func (e *ToolError) Error() string {
	return e.Message
}

// IsRetryable reports whether err is a transport failure worth retrying.
func IsRetryable(err error) bool {
	var te *TransportError
	return errors.As(err, &te) && te.Retryable()
}

func isTransportFailure(err error) bool {
	var te *transport.Error
	return errors.As(err, &te)
}

func classify(op string, err error) error {
	if isTransportFailure(err) {
		return &TransportError{Op: op, Err: err}
	}
	return &ProtocolError{Code: rpcCode(err), Err: err}
}

func rpcCode(err error) int {
	switch {
	case errors.Is(err, mcptypes.ErrParseError):
		return mcptypes.PARSE_ERROR
	case errors.Is(err, mcptypes.ErrInvalidRequest):
		return mcptypes.INVALID_REQUEST
	case errors.Is(err, mcptypes.ErrMethodNotFound):
		return mcptypes.METHOD_NOT_FOUND
	case errors.Is(err, mcptypes.ErrInvalidParams):
		return mcptypes.INVALID_PARAMS
	case errors.Is(err, mcptypes.ErrRequestInterrupted):
		return mcptypes.REQUEST_INTERRUPTED
	case errors.Is(err, mcptypes.ErrResourceNotFound):
		return mcptypes.RESOURCE_NOT_FOUND
	default:
		return mcptypes.INTERNAL_ERROR
	}
}

// toolErrorFrom decodes the structured failure written by FailureResult,
// falling back to the first text part for servers that send plain text.
func toolErrorFrom(res *mcptypes.CallToolResult) *ToolError {
	te := &ToolError{Code: tools.CodeInternalError, Kind: tools.KindHandler}

	if m, ok := res.StructuredContent.(map[string]any); ok {
		if code, ok := m["code"].(float64); ok {
			te.Code = int(code)
		}
		if kind, ok := m["kind"].(string); ok && kind != "" {
			te.Kind = tools.Kind(kind)
		}
		if msg, ok := m["message"].(string); ok {
			te.Message = msg
		}
	} else if p, ok := res.StructuredContent.(FailurePayload); ok {
		te.Code, te.Kind, te.Message = p.Code, p.Kind, p.Message
	}

	if te.Message == "" {
		if text, err := firstText(res); err == nil {
			te.Message = text
		} else {
			te.Message = "tool call failed"
		}
	}
	return te
}
