package gateway

import (
	"time"

	"velora/agent"
	"velora/storage"
)

// codeNoStore is the error code of a gateway running without a thread store.
const codeNoStore = "no_store"

// Wire types shared by the server handlers and Client.

type AgentInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type ThreadInfo struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
	Preview      string    `json:"preview,omitempty"`
	MessageCount int       `json:"messageCount"`
}

type TextPart struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// UIMessage is a persisted message as the conversation UI consumes it.
// Content duplicates the concatenated text parts.
type UIMessage struct {
	ID        string     `json:"id"`
	Role      string     `json:"role"`
	Content   string     `json:"content"`
	Parts     []TextPart `json:"parts"`
	CreatedAt time.Time  `json:"createdAt"`
}

type ListThreadsQuery struct {
	OrderBy       string
	SortDirection string
}

type CreateThreadRequest struct {
	Title string `json:"title"`
}

type TurnRequest struct {
	Message  string `json:"message"`
	ThreadID string `json:"threadId,omitempty"`
	AgentID  string `json:"agentId,omitempty"`
}

type TurnResponse struct {
	Text string `json:"text"`
}

type APIErrorBody struct {
	Error APIError `json:"error"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func agentInfo(a agent.Agent) AgentInfo {
	return AgentInfo{ID: a.ID, Name: a.Name}
}

func threadInfo(t storage.Thread) ThreadInfo {
	return ThreadInfo{
		ID:           t.ID,
		Title:        t.Title,
		CreatedAt:    t.CreatedAt.UTC(),
		UpdatedAt:    t.UpdatedAt.UTC(),
		Preview:      t.Preview,
		MessageCount: t.MessageCount,
	}
}

func uiMessage(m storage.Message) UIMessage {
	return UIMessage{
		ID:        m.ID,
		Role:      m.Role,
		Content:   m.Content,
		Parts:     []TextPart{{Type: "text", Text: m.Content}},
		CreatedAt: m.CreatedAt.UTC(),
	}
}
