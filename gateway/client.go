package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"velora/storage"
)

// RequestError is a gateway call that never got an HTTP response.
type RequestError struct {
	Op  string
	Err error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("gateway %s: %v", e.Op, e.Err)
}

func (e *RequestError) Unwrap() error { return e.Err }

func (e *RequestError) Retryable() bool { return true }

// StatusError is a non-2xx gateway response.
type StatusError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("gateway returned %d", e.StatusCode)
	}
	return fmt.Sprintf("gateway returned %d: %s", e.StatusCode, e.Message)
}

// Retryable reports whether the failure is on the gateway side. A gateway
// without a thread store answers the same way every time.
func (e *StatusError) Retryable() bool {
	return e.StatusCode >= http.StatusInternalServerError && e.Code != codeNoStore
}

// Is matches storage.ErrNoStore for the gateway's missing-store response.
func (e *StatusError) Is(target error) bool {
	return target == storage.ErrNoStore && e.Code == codeNoStore
}

// Client calls the gateway's conversation actions.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func NewClient(baseURL, token string, timeout time.Duration) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid gateway URL: %q", baseURL)
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: timeout},
	}, nil
}

// MCPURL is the agents' MCP endpoint on this gateway.
func (c *Client) MCPURL() string {
	return c.baseURL + "/api/mcp"
}

// AuthHeaders returns the headers every gateway request carries.
func (c *Client) AuthHeaders() map[string]string {
	if c.token == "" {
		return nil
	}
	return map[string]string{"Authorization": "Bearer " + c.token}
}

func (c *Client) GetAgents(ctx context.Context) ([]AgentInfo, error) {
	var out []AgentInfo
	err := c.do(ctx, http.MethodGet, "/api/agents", nil, &out)
	return out, err
}

func (c *Client) GetThreads(ctx context.Context, q ListThreadsQuery) ([]ThreadInfo, error) {
	params := url.Values{}
	if q.OrderBy != "" {
		params.Set("orderBy", q.OrderBy)
	}
	if q.SortDirection != "" {
		params.Set("sortDirection", q.SortDirection)
	}
	path := "/api/threads"
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	var out []ThreadInfo
	err := c.do(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

func (c *Client) CreateThread(ctx context.Context, title string) (ThreadInfo, error) {
	var out ThreadInfo
	err := c.do(ctx, http.MethodPost, "/api/threads", CreateThreadRequest{Title: title}, &out)
	return out, err
}

func (c *Client) GetThreadMessages(ctx context.Context, threadID string) ([]UIMessage, error) {
	var out []UIMessage
	err := c.do(ctx, http.MethodGet, "/api/threads/"+url.PathEscape(threadID)+"/messages", nil, &out)
	return out, err
}

// SendTurn runs a turn through the REST action instead of the MCP tool.
func (c *Client) SendTurn(ctx context.Context, agentID, threadID, message string) (string, error) {
	var out TurnResponse
	err := c.do(ctx, http.MethodPost, "/api/turns", TurnRequest{Message: message, ThreadID: threadID, AgentID: agentID}, &out)
	return out.Text, err
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range c.AuthHeaders() {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &RequestError{Op: method + " " + path, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		statusErr := &StatusError{StatusCode: resp.StatusCode}
		var apiErr APIErrorBody
		if json.NewDecoder(resp.Body).Decode(&apiErr) == nil {
			statusErr.Code = apiErr.Error.Code
			statusErr.Message = apiErr.Error.Message
		}
		return statusErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}
