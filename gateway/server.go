// Package gateway serves the conversation-facing actions over HTTP and
// mounts the agents' MCP endpoint next to them.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"velora/agent"
	"velora/config"
	"velora/storage"
)

type Options struct {
	Service    *agent.Service
	ResourceID string
	APIKeyHash string
	// MCPHandler serves the <agent>_send tools; nil leaves /api/mcp unmounted.
	MCPHandler http.Handler
}

type Server struct {
	service    *agent.Service
	store      *storage.ThreadStorage
	resourceID string
	apiKeyHash string
	mcpHandler http.Handler
}

func New(opts Options) (*Server, error) {
	if opts.Service == nil {
		return nil, fmt.Errorf("agent service is required")
	}
	if opts.ResourceID == "" {
		return nil, config.ErrMissingResourceID
	}
	// Turns arriving over MCP never pass checkOwner.
	opts.Service.ResourceID = opts.ResourceID
	return &Server{
		service:    opts.Service,
		store:      opts.Service.Store(),
		resourceID: opts.ResourceID,
		apiKeyHash: opts.APIKeyHash,
		mcpHandler: opts.MCPHandler,
	}, nil
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	if config.DebugLog != nil {
		r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{Logger: config.DebugLog, NoColor: true}))
	}
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealthz)

	r.Route("/api", func(api chi.Router) {
		api.Use(APIKey(s.apiKeyHash))

		api.Get("/agents", s.listAgents)
		api.Route("/threads", func(r chi.Router) {
			r.Get("/", s.listThreads)
			r.Post("/", s.createThread)
			r.Get("/{thread_id}/messages", s.getThreadMessages)
		})
		api.Post("/turns", s.sendTurn)

		if s.mcpHandler != nil {
			api.Handle("/mcp", s.mcpHandler)
		}
	})

	return r
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) listAgents(w http.ResponseWriter, r *http.Request) {
	agents := s.service.Agents()
	out := make([]AgentInfo, 0, len(agents))
	for _, a := range agents {
		out = append(out, agentInfo(a))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) listThreads(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	q := r.URL.Query()
	threads, err := s.store.ListThreads(r.Context(), s.resourceID, storage.ListOptions{
		OrderBy:       q.Get("orderBy"),
		SortDirection: q.Get("sortDirection"),
	})
	if err != nil {
		writeStoreErr(w, err)
		return
	}

	out := make([]ThreadInfo, 0, len(threads))
	for _, t := range threads {
		out = append(out, threadInfo(t))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) createThread(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	var req CreateThreadRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeErr(w, http.StatusBadRequest, "invalid_json", "invalid request body")
			return
		}
	}

	thread, err := s.store.CreateThread(r.Context(), s.resourceID, strings.TrimSpace(req.Title))
	if err != nil {
		writeStoreErr(w, err)
		return
	}
	if config.DebugLog != nil {
		config.DebugLog.Printf("[Gateway] Created thread %s", thread.ID)
	}
	writeJSON(w, http.StatusCreated, threadInfo(*thread))
}

func (s *Server) getThreadMessages(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	id := chi.URLParam(r, "thread_id")

	if err := s.checkOwner(r.Context(), id); err != nil {
		writeStoreErr(w, err)
		return
	}

	messages, err := s.store.Messages(r.Context(), id)
	if err != nil {
		writeStoreErr(w, err)
		return
	}

	out := make([]UIMessage, 0, len(messages))
	for _, m := range messages {
		if m.Role != storage.RoleUser && m.Role != storage.RoleAssistant {
			continue
		}
		out = append(out, uiMessage(m))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) sendTurn(w http.ResponseWriter, r *http.Request) {
	var req TurnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeErr(w, http.StatusBadRequest, "invalid_request", "message cannot be empty")
		return
	}
	if req.ThreadID != "" {
		if !s.requireStore(w) {
			return
		}
		if err := s.checkOwner(r.Context(), req.ThreadID); err != nil {
			writeStoreErr(w, err)
			return
		}
	}

	agentID := req.AgentID
	if agentID == "" {
		agentID = s.service.Agents()[0].ID
	}

	text, err := s.service.Turn(r.Context(), agentID, req.ThreadID, req.Message)
	switch {
	case errors.Is(err, agent.ErrUnknownAgent):
		writeErr(w, http.StatusNotFound, "unknown_agent", err.Error())
	case errors.Is(err, storage.ErrThreadNotFound):
		writeErr(w, http.StatusNotFound, "not_found", err.Error())
	case err != nil:
		writeErr(w, http.StatusBadGateway, "agent_error", err.Error())
	default:
		writeJSON(w, http.StatusOK, TurnResponse{Text: text})
	}
}

// checkOwner hides threads of other resource ids behind not-found.
func (s *Server) checkOwner(ctx context.Context, threadID string) error {
	thread, err := s.store.GetThread(ctx, threadID)
	if err != nil {
		return err
	}
	if thread.ResourceID != s.resourceID {
		return fmt.Errorf("%w: %s", storage.ErrThreadNotFound, threadID)
	}
	return nil
}

func (s *Server) requireStore(w http.ResponseWriter) bool {
	if s.store == nil {
		writeErr(w, http.StatusServiceUnavailable, codeNoStore, storage.ErrNoStore.Error())
		return false
	}
	return true
}

func writeStoreErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrThreadNotFound):
		writeErr(w, http.StatusNotFound, "not_found", "thread not found")
	case errors.Is(err, storage.ErrInvalidListOptions):
		writeErr(w, http.StatusBadRequest, "invalid_request", err.Error())
	default:
		writeErr(w, http.StatusInternalServerError, "store_error", err.Error())
	}
}

func writeJSON(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(data)
}

func writeErr(w http.ResponseWriter, code int, errCode, message string) {
	writeJSON(w, code, APIErrorBody{Error: APIError{Code: errCode, Message: message}})
}
