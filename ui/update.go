package ui

import (
	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"velora/config"
	appmodel "velora/model"
)

func (a ChatView) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.layout()
		a.ready = true
		a.refreshViewport(true)
		return a, nil

	case spinner.TickMsg:
		if !a.engine.Sending() {
			return a, nil
		}
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		a.refreshViewport(true)
		return a, cmd

	case appmodel.AgentsLoadedMsg, appmodel.ThreadsLoadedMsg, appmodel.MessagesLoadedMsg,
		appmodel.ThreadCreatedMsg, appmodel.SendResultMsg:
		cmd := a.engine.Update(msg)
		if err := a.engine.LastErr(); err != nil {
			if config.DebugLog != nil {
				config.DebugLog.Printf("[UI] %v", err)
			}
			a.status = err.Error()
			a.engine.ClearErr()
		}
		a.clampSidebar()
		a.refreshViewport(true)
		return a, cmd

	case tea.KeyMsg:
		return a.handleKey(msg)
	}

	var cmd tea.Cmd
	a.textarea, cmd = a.textarea.Update(msg)
	return a, cmd
}

func (a ChatView) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return a, tea.Quit
	case "f1":
		a.showHelp = !a.showHelp
		return a, nil
	}

	if a.showHelp {
		if msg.String() == "esc" {
			a.showHelp = false
		}
		return a, nil
	}

	switch msg.String() {
	case "tab":
		a.toggleFocus()
		return a, nil

	case "ctrl+n":
		return a.newChat()

	case "ctrl+a":
		a.engine.CycleAgent()
		if agent, ok := a.engine.SelectedAgent(); ok {
			a.status = "Talking to " + agent.Name
		}
		a.refreshViewport(false)
		return a, nil

	case "ctrl+r":
		cmd := a.engine.Retry()
		if cmd == nil {
			return a, nil
		}
		a.status = ""
		a.refreshViewport(true)
		return a, tea.Batch(cmd, a.spinner.Tick)

	case "ctrl+y":
		a.copyLastReply()
		return a, nil

	case "pgup", "pgdown":
		var cmd tea.Cmd
		a.viewport, cmd = a.viewport.Update(msg)
		return a, cmd
	}

	if a.focus == focusSidebar {
		return a.handleSidebarKey(msg)
	}

	if msg.String() == "enter" {
		return a.send()
	}

	var cmd tea.Cmd
	a.textarea, cmd = a.textarea.Update(msg)
	return a, cmd
}

func (a ChatView) handleSidebarKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if a.filterMode {
		switch msg.String() {
		case "esc":
			a.filterMode = false
			a.filterInput.Blur()
			a.filterInput.SetValue("")
			a.sidebarIdx = 0
			return a, nil
		case "enter":
			return a.openSelected()
		case "up":
			a.moveSelection(-1)
			return a, nil
		case "down":
			a.moveSelection(1)
			return a, nil
		}
		var cmd tea.Cmd
		a.filterInput, cmd = a.filterInput.Update(msg)
		a.sidebarIdx = 0
		return a, cmd
	}

	switch msg.String() {
	case "j", "down":
		a.moveSelection(1)
	case "k", "up":
		a.moveSelection(-1)
	case "enter":
		return a.openSelected()
	case "/":
		a.filterMode = true
		a.filterInput.SetValue("")
		a.filterInput.Focus()
		return a, textinput.Blink
	case "esc":
		a.toggleFocus()
	}
	return a, nil
}

func (a *ChatView) toggleFocus() {
	if a.focus == focusInput {
		a.focus = focusSidebar
		a.textarea.Blur()
		a.selectActiveInSidebar()
		return
	}
	a.focus = focusInput
	a.filterMode = false
	a.filterInput.Blur()
	a.textarea.Focus()
}

func (a ChatView) send() (tea.Model, tea.Cmd) {
	cmd := a.engine.Send(a.textarea.Value())
	if cmd == nil {
		return a, nil
	}
	a.textarea.Reset()
	a.status = ""
	a.clampSidebar()
	a.refreshViewport(true)
	return a, tea.Batch(cmd, a.spinner.Tick)
}

func (a ChatView) newChat() (tea.Model, tea.Cmd) {
	a.status = ""
	if a.engine.Storeless() {
		a.engine.NewChat()
		a.refreshViewport(true)
		return a, nil
	}
	return a, a.engine.CreateThread("")
}

func (a ChatView) openSelected() (tea.Model, tea.Cmd) {
	items := a.sidebarItems()
	if a.sidebarIdx < 0 || a.sidebarIdx >= len(items) {
		return a, nil
	}
	cmd := a.engine.SelectThread(items[a.sidebarIdx].ID)
	a.toggleFocus()
	a.refreshViewport(true)
	return a, cmd
}

func (a *ChatView) moveSelection(delta int) {
	a.sidebarIdx += delta
	a.clampSidebar()
}

func (a *ChatView) clampSidebar() {
	n := len(a.sidebarItems())
	if a.sidebarIdx >= n {
		a.sidebarIdx = n - 1
	}
	if a.sidebarIdx < 0 {
		a.sidebarIdx = 0
	}
}

func (a *ChatView) selectActiveInSidebar() {
	for i, item := range a.sidebarItems() {
		if item.ID == a.engine.ActiveID() {
			a.sidebarIdx = i
			return
		}
	}
	a.clampSidebar()
}

func (a *ChatView) copyLastReply() {
	msgs := a.engine.ActiveMessages()
	for i := len(msgs) - 1; i >= 0; i-- {
		m := msgs[i]
		if m.Role != appmodel.RoleAssistant || m.Error {
			continue
		}
		if err := clipboard.WriteAll(m.Content); err != nil {
			a.status = "Copy failed: " + err.Error()
			return
		}
		a.status = "Copied last reply"
		return
	}
	a.status = "Nothing to copy yet"
}
