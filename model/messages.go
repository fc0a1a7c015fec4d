package model

type AgentsLoadedMsg struct {
	Agents []Agent
	Err    error
}

type ThreadsLoadedMsg struct {
	Seq     uint64
	Threads []Thread
	Err     error
}

// MessagesLoadedMsg carries a message fetch for ThreadID. It is applied
// only if Seq is still the latest fetch stamped for that thread.
type MessagesLoadedMsg struct {
	ThreadID string
	Seq      uint64
	Messages []Message
	Err      error
}

type ThreadCreatedMsg struct {
	Thread Thread
	Err    error
}

// SendResultMsg completes a send on ThreadID. Created is set when a local
// thread was saved to the store before the turn was sent; NoStore when the
// gateway has no store to save it in.
type SendResultMsg struct {
	ThreadID  string
	Created   *Thread
	NoStore   bool
	AgentName string
	Reply     string
	Err       error
}
