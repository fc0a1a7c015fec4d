package ui

import (
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/sahilm/fuzzy"

	appmodel "velora/model"
)

// sidebarItems lists the selectable threads: every thread in history
// order, or the fuzzy matches while a filter is typed.
func (a ChatView) sidebarItems() []appmodel.ThreadSummary {
	var all []appmodel.ThreadSummary
	for _, g := range a.engine.Groups() {
		all = append(all, g.Threads...)
	}

	query := strings.TrimSpace(a.filterInput.Value())
	if !a.filterMode || query == "" {
		return all
	}

	targets := make([]string, len(all))
	for i, s := range all {
		targets[i] = s.DisplayTitle() + " " + s.Preview
	}
	matches := fuzzy.Find(query, targets)
	filtered := make([]appmodel.ThreadSummary, len(matches))
	for i, match := range matches {
		filtered[i] = all[match.Index]
	}
	return filtered
}

func (a ChatView) renderSidebar(width, height int) string {
	var lines []string
	selectedLine := 0

	lines = append(lines, TitleStyle.Render("History"))
	if a.filterMode {
		lines = append(lines, a.filterInput.View())
	}
	lines = append(lines, "")

	idx := 0
	entry := func(s appmodel.ThreadSummary) {
		selected := a.focus == focusSidebar && idx == a.sidebarIdx
		if selected {
			selectedLine = len(lines)
		}
		lines = append(lines, a.renderEntry(s, selected, width)...)
		idx++
	}

	query := strings.TrimSpace(a.filterInput.Value())
	switch {
	case a.filterMode && query != "":
		items := a.sidebarItems()
		if len(items) == 0 {
			lines = append(lines, DimStyle.Render("No matching chats"))
		}
		for _, s := range items {
			entry(s)
		}
	case len(a.engine.Groups()) == 0:
		lines = append(lines, DimStyle.Render("No chats yet"))
	default:
		for _, g := range a.engine.Groups() {
			lines = append(lines, GroupLabelStyle.Render(g.Label))
			for _, s := range g.Threads {
				entry(s)
			}
			lines = append(lines, "")
		}
	}

	// Scroll so the selection stays visible.
	if len(lines) > height && height > 0 {
		start := 0
		if selectedLine+3 > height {
			start = selectedLine + 3 - height
		}
		if start+height > len(lines) {
			start = len(lines) - height
		}
		lines = lines[start : start+height]
	}
	return strings.Join(lines, "\n")
}

func (a ChatView) renderEntry(s appmodel.ThreadSummary, selected bool, width int) []string {
	marker := "  "
	if s.ID == a.engine.ActiveID() {
		marker = HighlightStyle.Render("▌ ")
	}

	title := runewidth.Truncate(s.DisplayTitle(), width-2, "…")
	if selected {
		title = SelectedStyle.Render(title)
	}

	meta := s.RelativeTime
	if s.Preview != "" {
		meta += " · " + s.Preview
	}
	meta = runewidth.Truncate(meta, width-2, "…")

	return []string{
		marker + title,
		"  " + DimStyle.Render(meta),
	}
}
