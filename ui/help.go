package ui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

func renderHelpModal(width, height int) string {
	green := lipgloss.NewStyle().
		Bold(true).
		Foreground(successColor)

	title := green.Render("Velora - Keyboard Shortcuts")

	blue := lipgloss.NewStyle().Foreground(accentColor)

	line := func(key, desc string) string {
		return fmt.Sprintf("• %-13s %s", key, desc)
	}

	chat := lipgloss.JoinVertical(
		lipgloss.Left,
		blue.Render("## Chat"),
		line("Enter", "Send message"),
		line("Alt+Enter", "New line"),
		line("Ctrl+N", "New chat"),
		line("Ctrl+A", "Next agent"),
		line("Ctrl+R", "Retry failed message"),
		line("Ctrl+Y", "Copy last reply"),
		line("PgUp/PgDn", "Scroll messages"),
	)

	history := lipgloss.JoinVertical(
		lipgloss.Left,
		blue.Render("## History"),
		line("Tab", "Switch focus"),
		line("j/k", "Move selection"),
		line("Enter", "Open chat"),
		line("/", "Filter chats"),
		line("Esc", "Clear filter"),
	)

	global := lipgloss.JoinVertical(
		lipgloss.Left,
		blue.Render("## Global"),
		line("F1", "Toggle this help"),
		line("Ctrl+C", "Quit"),
	)

	columnStyle := lipgloss.NewStyle().Width(40).PaddingLeft(4)

	columns := lipgloss.JoinHorizontal(
		lipgloss.Top,
		columnStyle.Render(chat),
		columnStyle.Render(lipgloss.JoinVertical(lipgloss.Left, history, "", global)),
	)

	footer := DimStyle.Render("Press F1 or Esc to close this help")

	content := lipgloss.JoinVertical(
		lipgloss.Center,
		title,
		"",
		columns,
		"",
		footer,
	)

	helpBox := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("8")).
		Padding(1, 2)

	return lipgloss.Place(
		width,
		height,
		lipgloss.Center,
		lipgloss.Center,
		helpBox.Render(content),
	)
}
