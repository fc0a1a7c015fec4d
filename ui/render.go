package ui

import (
	"fmt"
	"strings"

	markdown "github.com/MichaelMure/go-term-markdown"
	"github.com/charmbracelet/lipgloss"
	gomarkdown "github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/parser"

	appmodel "velora/model"
)

func (a *ChatView) refreshViewport(gotoBottom bool) {
	if !a.ready {
		return
	}
	a.viewport.SetContent(a.renderMessages())
	if gotoBottom {
		a.viewport.GotoBottom()
	}
}

func (a *ChatView) renderMessages() string {
	activeID := a.engine.ActiveID()
	msgs := a.engine.ActiveMessages()

	if len(msgs) == 0 {
		if activeID != "" && a.engine.Loading(activeID) {
			return DimStyle.Render(a.spinner.View() + " Loading messages...")
		}
		return DimStyle.Render(fmt.Sprintf("Say hello to %s to get started.", a.agentName()))
	}

	var content strings.Builder
	for _, m := range msgs {
		a.renderMessage(&content, m)
	}

	if a.engine.Sending() && a.engine.SendingThread() == activeID {
		content.WriteString(fmt.Sprintf("%s %s\n", a.spinner.View(), DimStyle.Render(a.agentName()+" is thinking...")))
	}
	return content.String()
}

func (a *ChatView) renderMessage(b *strings.Builder, m appmodel.Message) {
	width := a.viewport.Width
	timestamp := DimStyle.Render(m.CreatedAt.Local().Format("[15:04]"))

	var name, body string
	switch {
	case m.Error:
		name = ErrorStyle.Bold(true).Render(m.Name)
		body = ErrorStyle.Width(width).Render("✗ " + m.Content)
		if m.Retryable {
			body += "\n" + DimStyle.Render("Press Ctrl+R to retry")
		}
	case m.Role == appmodel.RoleUser:
		name = UserStyle.Render(m.Name)
		body = lipgloss.NewStyle().Width(width).Render(m.Content)
	default:
		name = AssistantStyle.Bold(true).Render(m.Name)
		if m.Markdown {
			body = a.markdown(m)
		} else {
			body = lipgloss.NewStyle().Width(width).Render(m.Content)
		}
	}
	if m.Pending {
		name += DimStyle.Render(" (sending)")
	}

	fmt.Fprintf(b, "%s %s\n%s\n\n", timestamp, name, body)
}

func (a *ChatView) markdown(m appmodel.Message) string {
	if out, ok := a.rendered[m.ID]; ok {
		return out
	}
	out := renderMarkdown(m.Content, a.viewport.Width)
	a.rendered[m.ID] = out
	return out
}

// renderMarkdown renders assistant text for the terminal. Autolinks are
// off so terminals can detect plain URLs themselves.
func renderMarkdown(content string, width int) string {
	if width < minContentWidth {
		width = minContentWidth
	}
	ext := markdown.Extensions() &^ parser.Autolink
	p := parser.NewWithExtensions(ext)
	r := markdown.NewRenderer(width, 0)
	doc := p.Parse([]byte(content))
	return strings.TrimRight(string(gomarkdown.Render(doc, r)), "\n")
}

func (a ChatView) renderHeader() string {
	title := "New chat"
	if t, ok := a.engine.ActiveThread(); ok {
		title = t.DisplayTitle()
	}
	header := TitleStyle.Render("Velora") + DimStyle.Render(" | ") + title +
		DimStyle.Render(" | ") + AssistantStyle.Render(a.agentName())
	if a.engine.Storeless() {
		header += DimStyle.Render(" | no memory")
	}
	return header
}

func (a ChatView) renderStatus() string {
	if a.status != "" {
		return StatusStyle.Render(a.status)
	}
	return StatusStyle.Render(FormatFooter(
		"Enter", "Send",
		"Ctrl+N", "New chat",
		"Tab", "History",
		"Ctrl+A", "Agent",
		"Ctrl+Y", "Copy",
		"F1", "Help",
		"Ctrl+C", "Quit",
	))
}

func (a ChatView) agentName() string {
	if agent, ok := a.engine.SelectedAgent(); ok {
		return agent.Name
	}
	return "the agent"
}
