package model

import "time"

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"

	// UserName labels the local user's messages.
	UserName = "You"

	// UntitledChat is shown for threads without a title and for a new
	// chat that has not been saved yet.
	UntitledChat = "Untitled chat"
)

// Message is one entry of a thread as the chat view shows it
type Message struct {
	ID       string
	ThreadID string
	Role     string
	Name     string
	Content  string

	Markdown bool
	// Error marks an inline failure notice rather than an agent reply.
	Error bool
	// Retryable is set on error notices caused by transport failures.
	Retryable bool
	// Pending marks an optimistic message not yet confirmed by the store.
	Pending bool

	CreatedAt time.Time
}

// Thread is the cached view of a persisted conversation.
// Local threads exist only in memory and are sent without a thread id.
type Thread struct {
	ID           string
	Title        string
	Preview      string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	MessageCount int
	Local        bool
}

// DisplayTitle falls back to UntitledChat.
func (t Thread) DisplayTitle() string {
	if t.Title == "" {
		return UntitledChat
	}
	return t.Title
}

type Agent struct {
	ID   string
	Name string
}

// ThreadSummary is a thread as listed in a history group.
type ThreadSummary struct {
	Thread
	RelativeTime string
}

type HistoryGroup struct {
	Label   string
	Threads []ThreadSummary
}
