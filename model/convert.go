package model

import (
	"strings"

	"velora/gateway"
)

func agentFromInfo(a gateway.AgentInfo) Agent {
	name := a.Name
	if name == "" {
		name = a.ID
	}
	return Agent{ID: a.ID, Name: name}
}

func threadFromInfo(t gateway.ThreadInfo) Thread {
	return Thread{
		ID:           t.ID,
		Title:        t.Title,
		Preview:      TruncatePreview(t.Preview),
		CreatedAt:    t.CreatedAt,
		UpdatedAt:    t.UpdatedAt,
		MessageCount: t.MessageCount,
	}
}

// messageFromUI converts a stored message. The text parts win over
// Content when both are present; assistant replies render as markdown.
func messageFromUI(threadID, assistantName string, m gateway.UIMessage) Message {
	msg := Message{
		ID:        m.ID,
		ThreadID:  threadID,
		Role:      m.Role,
		Content:   messageText(m),
		CreatedAt: m.CreatedAt,
	}
	switch m.Role {
	case RoleUser:
		msg.Name = UserName
	default:
		msg.Role = RoleAssistant
		msg.Name = assistantName
		msg.Markdown = true
	}
	return msg
}

func messageText(m gateway.UIMessage) string {
	var b strings.Builder
	for _, p := range m.Parts {
		if p.Type != "text" {
			continue
		}
		b.WriteString(p.Text)
	}
	if b.Len() == 0 {
		return m.Content
	}
	return b.String()
}
