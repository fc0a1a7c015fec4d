package storage

import (
	"fmt"
	"strings"
	"time"
)

// DefaultThreadTitle marks a thread that has not been named yet.
const DefaultThreadTitle = "New chat"

const maxTitleRunes = 30

// GenerateThreadTitle derives a title from the first user message.
func GenerateThreadTitle(firstMessage string, now time.Time) string {
	name := strings.Join(strings.Fields(firstMessage), " ")
	if name == "" {
		return fmt.Sprintf("Chat %s", now.Format("Jan 2, 3:04 PM"))
	}

	runes := []rune(name)
	if len(runes) > maxTitleRunes {
		name = strings.TrimSpace(string(runes[:maxTitleRunes])) + "..."
	}
	return name
}
