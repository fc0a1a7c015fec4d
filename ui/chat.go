package ui

import (
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	appmodel "velora/model"
)

type focusArea int

const (
	focusInput focusArea = iota
	focusSidebar
)

const (
	sidebarWidth = 34
	// Below this terminal width the history sidebar is hidden.
	minWidthForSidebar = 80
	minContentWidth    = 20
)

// ChatView is the terminal chat client: a history sidebar, the active
// thread's messages and an input box. All conversation state lives in the
// engine; ChatView only renders it and routes keys.
type ChatView struct {
	engine *appmodel.Engine

	textarea    textarea.Model
	viewport    viewport.Model
	spinner     spinner.Model
	filterInput textinput.Model

	width  int
	height int
	ready  bool

	focus      focusArea
	filterMode bool
	sidebarIdx int
	showHelp   bool
	status     string

	// rendered caches markdown output by message id for renderedWidth.
	rendered      map[string]string
	renderedWidth int
}

func NewChatView(engine *appmodel.Engine) ChatView {
	ta := textarea.New()
	ta.Placeholder = "Ask the agent something..."
	ta.Focus()
	ta.CharLimit = 0
	ta.ShowLineNumbers = false
	ta.SetHeight(3)
	ta.SetWidth(80)

	// Enter sends; Alt+Enter inserts a newline.
	ta.KeyMap.InsertNewline = key.NewBinding(key.WithKeys("alt+enter"))

	ta.SetPromptFunc(2, func(lineIdx int) string {
		if lineIdx == 0 {
			return "> "
		}
		return "| "
	})

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	filter := textinput.New()
	filter.Prompt = "Filter: "
	filter.CharLimit = 64

	return ChatView{
		engine:      engine,
		textarea:    ta,
		viewport:    viewport.New(0, 0),
		spinner:     sp,
		filterInput: filter,
		rendered:    make(map[string]string),
	}
}

func (a ChatView) Init() tea.Cmd {
	return tea.Batch(
		textarea.Blink,
		a.engine.LoadAgents(),
		a.engine.LoadThreads(),
	)
}

func (a ChatView) View() string {
	if !a.ready {
		return "Loading Velora..."
	}
	if a.showHelp {
		return renderHelpModal(a.width, a.height)
	}

	main := lipgloss.JoinVertical(
		lipgloss.Left,
		a.renderHeader(),
		"",
		a.viewport.View(),
		a.textarea.View(),
		a.renderStatus(),
	)

	sw := a.sidebarWidth()
	if sw == 0 {
		return main
	}
	side := SidebarStyle.
		Width(sw).
		Height(a.height).
		Render(a.renderSidebar(sw-1, a.height))
	return lipgloss.JoinHorizontal(lipgloss.Top, side, main)
}

func (a ChatView) sidebarWidth() int {
	if a.width < minWidthForSidebar {
		return 0
	}
	return sidebarWidth
}

func (a ChatView) mainWidth() int {
	w := a.width
	if sw := a.sidebarWidth(); sw > 0 {
		// The sidebar's right border takes one more column.
		w -= sw + 1
	}
	if w < minContentWidth {
		w = minContentWidth
	}
	return w
}

func (a *ChatView) layout() {
	w := a.mainWidth()

	// Header, blank line, textarea (3 lines) and status bar.
	viewportHeight := a.height - 6
	if viewportHeight < 1 {
		viewportHeight = 1
	}
	a.viewport.Width = w
	a.viewport.Height = viewportHeight
	a.textarea.SetWidth(w)

	if a.renderedWidth != w {
		a.rendered = make(map[string]string)
		a.renderedWidth = w
	}
}
