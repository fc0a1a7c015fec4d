package gateway

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
	"golang.org/x/crypto/bcrypt"

	"velora/agent"
	"velora/mcp"
	"velora/provider"
	"velora/provider/testutil"
	"velora/storage"
)

const testToken = "s3cret"

// echoProvider replies with the last user message.
func echoProvider() *testutil.MockProvider {
	p := testutil.NewMockProvider("echo")
	p.ChatWithToolsFunc = func(ctx context.Context, messages []provider.Message, tools []mcptypes.Tool, callback provider.StreamCallback) error {
		return callback("echo: "+messages[len(messages)-1].Content, nil)
	}
	return p
}

type testGateway struct {
	server *httptest.Server
	store  *storage.ThreadStorage
	client *Client
}

func newTestGateway(t *testing.T, withStore bool) *testGateway {
	t.Helper()

	var store *storage.ThreadStorage
	if withStore {
		var err error
		store, err = storage.NewThreadStorage(t.TempDir())
		if err != nil {
			t.Fatal(err)
		}
		t.Cleanup(func() { store.Close() })
	}

	svc, err := agent.NewService(echoProvider(), nil, store, []agent.Agent{
		{ID: "reader", Name: "Reader"},
		{ID: "echoer", Name: "Echoer"},
	})
	if err != nil {
		t.Fatal(err)
	}

	reg, err := agent.NewRegistry(svc)
	if err != nil {
		t.Fatal(err)
	}
	sessions := mcp.NewIdleSessions(time.Minute)
	mcpHandler := mcp.NewHTTPHandler(mcp.NewServer("velora-agents", "test", reg), sessions, "/api/mcp")

	hash, err := bcrypt.GenerateFromPassword([]byte(testToken), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}

	gw, err := New(Options{Service: svc, ResourceID: "owner", APIKeyHash: string(hash), MCPHandler: mcpHandler})
	if err != nil {
		t.Fatal(err)
	}

	srv := httptest.NewServer(gw.Handler())
	t.Cleanup(srv.Close)

	client, err := NewClient(srv.URL, testToken, 5*time.Second)
	if err != nil {
		t.Fatal(err)
	}
	return &testGateway{server: srv, store: store, client: client}
}

func TestHealthzNeedsNoAuth(t *testing.T) {
	gw := newTestGateway(t, true)

	resp, err := http.Get(gw.server.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func TestAPIRequiresToken(t *testing.T) {
	gw := newTestGateway(t, true)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"wrong", "Bearer nope", http.StatusUnauthorized},
		{"not bearer", "Basic " + testToken, http.StatusUnauthorized},
		{"valid", "Bearer " + testToken, http.StatusOK},
		{"lowercase scheme", "bearer " + testToken, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, _ := http.NewRequest(http.MethodGet, gw.server.URL+"/api/agents", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				t.Fatal(err)
			}
			resp.Body.Close()
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.want)
			}
		})
	}
}

func TestConversationFlow(t *testing.T) {
	gw := newTestGateway(t, true)
	ctx := context.Background()

	agents, err := gw.client.GetAgents(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(agents) != 2 || agents[0].ID != "reader" || agents[1].Name != "Echoer" {
		t.Errorf("GetAgents() = %#v", agents)
	}

	thread, err := gw.client.CreateThread(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	if thread.Title != storage.DefaultThreadTitle || thread.CreatedAt.IsZero() {
		t.Errorf("CreateThread() = %#v", thread)
	}

	text, err := gw.client.SendTurn(ctx, "", thread.ID, "hello there")
	if err != nil {
		t.Fatal(err)
	}
	if text != "echo: hello there" {
		t.Errorf("SendTurn() = %q", text)
	}

	msgs, err := gw.client.GetThreadMessages(ctx, thread.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
	if msgs[0].Role != "user" || msgs[1].Role != "assistant" {
		t.Errorf("roles = %s, %s", msgs[0].Role, msgs[1].Role)
	}
	if len(msgs[1].Parts) != 1 || msgs[1].Parts[0].Type != "text" || msgs[1].Parts[0].Text != "echo: hello there" {
		t.Errorf("parts = %#v", msgs[1].Parts)
	}

	threads, err := gw.client.GetThreads(ctx, ListThreadsQuery{OrderBy: "updatedAt", SortDirection: "DESC"})
	if err != nil {
		t.Fatal(err)
	}
	if len(threads) != 1 || threads[0].Title != "hello there" || threads[0].MessageCount != 2 {
		t.Errorf("GetThreads() = %#v", threads)
	}
}

func TestSendTurnOverMCP(t *testing.T) {
	gw := newTestGateway(t, true)
	ctx := context.Background()

	thread, err := gw.client.CreateThread(ctx, "via mcp")
	if err != nil {
		t.Fatal(err)
	}

	c, err := mcp.NewClient(mcp.ClientConfig{URL: gw.client.MCPURL(), Headers: gw.client.AuthHeaders(), CallTimeout: 5 * time.Second})
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	text, err := c.SendTurn(ctx, "echoer", thread.ID, "ping")
	if err != nil {
		t.Fatalf("SendTurn() error = %v", err)
	}
	if text != "echo: ping" {
		t.Errorf("SendTurn() = %q", text)
	}

	other, err := gw.store.CreateThread(ctx, "someone-else", "private")
	if err != nil {
		t.Fatal(err)
	}

	for _, id := range []string{"missing-thread", other.ID} {
		_, err = c.SendTurn(ctx, "echoer", id, "ping")
		var toolErr *mcp.ToolError
		if !errors.As(err, &toolErr) || toolErr.Code != -32002 {
			t.Errorf("SendTurn(%q) expected not-found tool error, got %v", id, err)
		}
	}

	msgs, err := gw.store.Messages(ctx, other.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 0 {
		t.Errorf("foreign thread has %d messages after a rejected turn", len(msgs))
	}
}

func TestErrorResponses(t *testing.T) {
	gw := newTestGateway(t, true)
	ctx := context.Background()

	other, err := gw.store.CreateThread(ctx, "someone-else", "private")
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		call   func() error
		status int
		code   string
	}{
		{"unknown thread", func() error { _, err := gw.client.GetThreadMessages(ctx, "nope"); return err }, 404, "not_found"},
		{"foreign thread", func() error { _, err := gw.client.GetThreadMessages(ctx, other.ID); return err }, 404, "not_found"},
		{"turn on foreign thread", func() error { _, err := gw.client.SendTurn(ctx, "", other.ID, "x"); return err }, 404, "not_found"},
		{"invalid order", func() error {
			_, err := gw.client.GetThreads(ctx, ListThreadsQuery{OrderBy: "title"})
			return err
		}, 400, "invalid_request"},
		{"unknown agent", func() error { _, err := gw.client.SendTurn(ctx, "writer", "", "x"); return err }, 404, "unknown_agent"},
		{"empty message", func() error { _, err := gw.client.SendTurn(ctx, "", "", "  "); return err }, 400, "invalid_request"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			var statusErr *StatusError
			if !errors.As(err, &statusErr) {
				t.Fatalf("expected *StatusError, got %v", err)
			}
			if statusErr.StatusCode != tt.status || statusErr.Code != tt.code {
				t.Errorf("got %d %s, want %d %s", statusErr.StatusCode, statusErr.Code, tt.status, tt.code)
			}
			if statusErr.Retryable() {
				t.Error("client errors should not be retryable")
			}
		})
	}
}

func TestMissingStore(t *testing.T) {
	gw := newTestGateway(t, false)
	ctx := context.Background()

	_, err := gw.client.CreateThread(ctx, "x")
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %v", err)
	}
	if !strings.Contains(statusErr.Message, storage.ErrNoStore.Error()) {
		t.Errorf("message = %q", statusErr.Message)
	}
	if !errors.Is(err, storage.ErrNoStore) {
		t.Error("expected error to match storage.ErrNoStore")
	}
	if statusErr.Retryable() {
		t.Error("missing store should not be retryable")
	}

	// Stateless turns still work without memory.
	if text, err := gw.client.SendTurn(ctx, "", "", "hi"); err != nil || text != "echo: hi" {
		t.Errorf("SendTurn() = %q, %v", text, err)
	}
}

func TestClientTransportFailureIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := NewClient(url, "", time.Second)
	if err != nil {
		t.Fatal(err)
	}
	_, err = c.GetAgents(context.Background())

	var reqErr *RequestError
	if !errors.As(err, &reqErr) || !reqErr.Retryable() {
		t.Errorf("expected retryable *RequestError, got %v", err)
	}

	if _, err := NewClient("not a url", "", 0); err == nil {
		t.Error("expected error for invalid base URL")
	}
}

func TestNewRequiresResourceID(t *testing.T) {
	svc, _ := agent.NewService(echoProvider(), nil, nil, []agent.Agent{{ID: "a"}})
	if _, err := New(Options{Service: svc}); err == nil {
		t.Error("expected error without resource id")
	}
	if _, err := New(Options{ResourceID: "owner"}); err == nil {
		t.Error("expected error without service")
	}
}

func TestHashAPIKey(t *testing.T) {
	hash, err := HashAPIKey("key")
	if err != nil {
		t.Fatal(err)
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte("key")) != nil {
		t.Error("hash does not verify")
	}
}
