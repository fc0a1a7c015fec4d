package model

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"

	"velora/config"
	"velora/gateway"
	"velora/storage"
)

var ErrNoAgent = errors.New("no agent selected")

const (
	DefaultTurnTimeout  = 2 * time.Minute
	DefaultFetchTimeout = 15 * time.Second

	defaultAssistantName = "Assistant"
)

// Engine owns the chat client's conversation state: the thread cache, the
// per-thread message cache, the active thread and the single in-flight
// send. Operations return tea.Cmds that run the network calls off the UI
// goroutine; their results come back as *Msg values that Update applies.
// Engine itself is not safe for concurrent use and lives on the bubbletea
// event loop.
type Engine struct {
	actions Actions
	sender  TurnSender

	TurnTimeout  time.Duration
	FetchTimeout time.Duration

	agents   []Agent
	selected int

	threads  map[string]*Thread
	messages map[string][]Message
	activeID string
	groups   []HistoryGroup

	sending       bool
	sendingThread string
	// storeless is set once the gateway reports it has no thread store.
	storeless bool

	// fetchSeq holds the current fetch stamp per thread; a result whose
	// stamp is no longer current is dropped. Stamps come from fetchStamp,
	// which only grows, so forgetting a thread never revives an old stamp.
	fetchSeq      map[string]uint64
	fetchStamp    uint64
	loading       map[string]bool
	threadsSeq    uint64
	threadsLoaded bool

	lastErr error
	now     func() time.Time
}

// NewEngine creates an engine. actions may be nil, in which case every
// conversation is local and sent without a thread id.
func NewEngine(actions Actions, sender TurnSender) *Engine {
	return &Engine{
		actions:      actions,
		sender:       sender,
		TurnTimeout:  DefaultTurnTimeout,
		FetchTimeout: DefaultFetchTimeout,
		selected:     -1,
		threads:      make(map[string]*Thread),
		messages:     make(map[string][]Message),
		fetchSeq:     make(map[string]uint64),
		loading:      make(map[string]bool),
		storeless:    actions == nil,
		now:          time.Now,
	}
}

func (e *Engine) Agents() []Agent {
	return append([]Agent(nil), e.agents...)
}

// SetAgents replaces the agent list and selects the first agent.
func (e *Engine) SetAgents(agents []Agent) {
	e.agents = append([]Agent(nil), agents...)
	e.selected = -1
	if len(e.agents) > 0 {
		e.selected = 0
	}
}

func (e *Engine) SelectedAgent() (Agent, bool) {
	if e.selected < 0 || e.selected >= len(e.agents) {
		return Agent{}, false
	}
	return e.agents[e.selected], true
}

// CycleAgent selects the next agent, wrapping around.
func (e *Engine) CycleAgent() {
	if len(e.agents) == 0 {
		return
	}
	e.selected = (e.selected + 1) % len(e.agents)
}

func (e *Engine) Groups() []HistoryGroup { return e.groups }

// Threads lists known threads in history order.
func (e *Engine) Threads() []Thread { return FlattenHistory(e.groups) }

func (e *Engine) ActiveID() string { return e.activeID }

func (e *Engine) ActiveThread() (Thread, bool) {
	t, ok := e.threads[e.activeID]
	if !ok {
		return Thread{}, false
	}
	return *t, true
}

func (e *Engine) Messages(threadID string) []Message {
	return append([]Message(nil), e.messages[threadID]...)
}

func (e *Engine) ActiveMessages() []Message { return e.Messages(e.activeID) }

// Loading reports whether the thread's messages are being fetched and
// nothing is cached for it yet.
func (e *Engine) Loading(threadID string) bool { return e.loading[threadID] }

func (e *Engine) Sending() bool { return e.sending }

// SendingThread is the thread of the in-flight send, if any.
func (e *Engine) SendingThread() string { return e.sendingThread }

func (e *Engine) Storeless() bool { return e.storeless }

func (e *Engine) LastErr() error { return e.lastErr }

func (e *Engine) ClearErr() { e.lastErr = nil }

// LoadAgents fetches the agents the gateway serves.
func (e *Engine) LoadAgents() tea.Cmd {
	if e.actions == nil {
		return nil
	}
	actions, timeout := e.actions, e.FetchTimeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		infos, err := actions.GetAgents(ctx)
		if err != nil {
			return AgentsLoadedMsg{Err: fmt.Errorf("failed to load agents: %w", err)}
		}
		agents := make([]Agent, 0, len(infos))
		for _, info := range infos {
			agents = append(agents, agentFromInfo(info))
		}
		return AgentsLoadedMsg{Agents: agents}
	}
}

// LoadThreads fetches the authoritative thread list. Only the result of
// the latest call is applied.
func (e *Engine) LoadThreads() tea.Cmd {
	if e.actions == nil || e.storeless {
		return nil
	}
	e.threadsSeq++
	seq := e.threadsSeq
	actions, timeout := e.actions, e.FetchTimeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		infos, err := actions.GetThreads(ctx, gateway.ListThreadsQuery{OrderBy: "updatedAt", SortDirection: "DESC"})
		if err != nil {
			return ThreadsLoadedMsg{Seq: seq, Err: fmt.Errorf("failed to load threads: %w", err)}
		}
		threads := make([]Thread, 0, len(infos))
		for _, info := range infos {
			threads = append(threads, threadFromInfo(info))
		}
		return ThreadsLoadedMsg{Seq: seq, Threads: threads}
	}
}

// SelectThread makes id the active thread and fetches its messages when
// none are cached.
func (e *Engine) SelectThread(id string) tea.Cmd {
	t, ok := e.threads[id]
	if !ok {
		return nil
	}
	e.activeID = id
	if t.Local {
		return nil
	}
	if _, cached := e.messages[id]; cached {
		return nil
	}
	return e.fetchMessages(id)
}

// NewChat leaves the active thread; the next Send starts a new one.
func (e *Engine) NewChat() {
	e.activeID = ""
}

// CreateThread saves a new thread, makes it active and reloads the
// thread list.
func (e *Engine) CreateThread(title string) tea.Cmd {
	if e.actions == nil {
		return func() tea.Msg {
			return ThreadCreatedMsg{Err: storage.ErrNoStore}
		}
	}
	actions, timeout := e.actions, e.FetchTimeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		info, err := actions.CreateThread(ctx, title)
		if err != nil {
			return ThreadCreatedMsg{Err: fmt.Errorf("failed to create thread: %w", err)}
		}
		return ThreadCreatedMsg{Thread: threadFromInfo(info)}
	}
}

// Send appends text to the active thread as an optimistic user message
// and sends it to the selected agent. Blank text and sends while another
// send is in flight are ignored. Without an active thread a local one is
// started; it is saved to the store, when there is one, before the turn
// goes out.
func (e *Engine) Send(text string) tea.Cmd {
	text = strings.TrimSpace(text)
	if text == "" || e.sending || e.sender == nil {
		return nil
	}

	t, ok := e.threads[e.activeID]
	if !ok {
		t = e.startLocalThread()
	}
	e.messages[t.ID] = append(e.messages[t.ID], Message{
		ID:        uuid.NewString(),
		ThreadID:  t.ID,
		Role:      RoleUser,
		Name:      UserName,
		Content:   text,
		Pending:   true,
		CreatedAt: e.now(),
	})
	t.MessageCount++
	return e.dispatch(t, text)
}

// Retry resends the user message before the active thread's trailing
// error notice when that failure was retryable.
func (e *Engine) Retry() tea.Cmd {
	if e.sending {
		return nil
	}
	t, ok := e.threads[e.activeID]
	if !ok {
		return nil
	}
	msgs := e.messages[t.ID]
	if len(msgs) < 2 {
		return nil
	}
	last := msgs[len(msgs)-1]
	if !last.Error || !last.Retryable {
		return nil
	}
	prompt := msgs[len(msgs)-2]
	if prompt.Role != RoleUser {
		return nil
	}
	msgs = msgs[:len(msgs)-1]
	msgs[len(msgs)-1].Pending = true
	e.messages[t.ID] = msgs
	return e.dispatch(t, prompt.Content)
}

func (e *Engine) startLocalThread() *Thread {
	now := e.now()
	t := &Thread{
		ID:        "local-" + uuid.NewString(),
		CreatedAt: now,
		UpdatedAt: now,
		Local:     true,
	}
	e.threads[t.ID] = t
	e.messages[t.ID] = nil
	e.activeID = t.ID
	return t
}

func (e *Engine) dispatch(t *Thread, text string) tea.Cmd {
	t.Preview = TruncatePreview(text)
	t.UpdatedAt = e.now()
	e.rebucket()

	e.sending = true
	e.sendingThread = t.ID
	// A fetch started before this send would erase the optimistic message.
	e.fetchSeq[t.ID] = e.nextFetchStamp()
	delete(e.loading, t.ID)

	agent, hasAgent := e.SelectedAgent()
	threadID, local := t.ID, t.Local
	var actions Actions
	if local && !e.storeless {
		actions = e.actions
	}
	sender, timeout := e.sender, e.TurnTimeout

	return func() tea.Msg {
		res := SendResultMsg{ThreadID: threadID, AgentName: agent.Name}
		if !hasAgent {
			res.Err = ErrNoAgent
			return res
		}

		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		remoteID := threadID
		if local {
			remoteID = ""
			if actions != nil {
				info, err := actions.CreateThread(ctx, "")
				switch {
				case err == nil:
					created := threadFromInfo(info)
					res.Created = &created
					remoteID = created.ID
				case errors.Is(err, storage.ErrNoStore):
					res.NoStore = true
				case config.DebugLog != nil:
					config.DebugLog.Printf("[Engine] Saving new thread failed, sending without memory: %v", err)
				}
			}
		}

		reply, err := sender.SendTurn(ctx, agent.ID, remoteID, text)
		if err != nil {
			res.Err = fmt.Errorf("failed to send message: %w", err)
			return res
		}
		res.Reply = reply
		return res
	}
}

// Update applies a result produced by one of the engine's commands and
// returns any follow-up command. Other messages are ignored.
func (e *Engine) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case AgentsLoadedMsg:
		if msg.Err != nil {
			e.lastErr = msg.Err
			return nil
		}
		current, ok := e.SelectedAgent()
		e.SetAgents(msg.Agents)
		if ok {
			for i, a := range e.agents {
				if a.ID == current.ID {
					e.selected = i
					break
				}
			}
		}
		return nil

	case ThreadsLoadedMsg:
		if msg.Seq != e.threadsSeq {
			return nil
		}
		if msg.Err != nil {
			if errors.Is(msg.Err, storage.ErrNoStore) {
				e.storeless = true
				return nil
			}
			e.lastErr = msg.Err
			return nil
		}
		first := !e.threadsLoaded
		e.threadsLoaded = true
		e.applyThreads(msg.Threads)
		if first && e.activeID == "" && len(e.groups) > 0 {
			return e.SelectThread(e.groups[0].Threads[0].ID)
		}
		return nil

	case MessagesLoadedMsg:
		if msg.Seq != e.fetchSeq[msg.ThreadID] {
			if config.DebugLog != nil {
				config.DebugLog.Printf("[Engine] Dropping superseded fetch for thread %s", msg.ThreadID)
			}
			return nil
		}
		delete(e.loading, msg.ThreadID)
		if _, ok := e.threads[msg.ThreadID]; !ok {
			return nil
		}
		if msg.Err != nil {
			e.lastErr = msg.Err
			return nil
		}
		e.messages[msg.ThreadID] = msg.Messages
		return nil

	case ThreadCreatedMsg:
		if msg.Err != nil {
			if errors.Is(msg.Err, storage.ErrNoStore) {
				e.storeless = true
			}
			e.lastErr = msg.Err
			e.activeID = ""
			return nil
		}
		t := msg.Thread
		e.threads[t.ID] = &t
		e.messages[t.ID] = nil
		e.activeID = t.ID
		e.rebucket()
		return e.LoadThreads()

	case SendResultMsg:
		return e.applySend(msg)
	}
	return nil
}

func (e *Engine) applySend(msg SendResultMsg) tea.Cmd {
	e.sending = false
	e.sendingThread = ""

	id := msg.ThreadID
	if msg.NoStore {
		e.storeless = true
	}
	if msg.Created != nil {
		e.adoptLocal(id, *msg.Created)
		id = msg.Created.ID
	}

	t, ok := e.threads[id]
	if !ok {
		return nil
	}
	msgs := e.messages[id]
	for i := range msgs {
		msgs[i].Pending = false
	}

	name := msg.AgentName
	if name == "" {
		name = defaultAssistantName
	}
	if msg.Err != nil {
		e.lastErr = msg.Err
		e.messages[id] = append(msgs, Message{
			ID:        uuid.NewString(),
			ThreadID:  id,
			Role:      RoleAssistant,
			Name:      name,
			Content:   msg.Err.Error(),
			Error:     true,
			Retryable: isRetryable(msg.Err),
			CreatedAt: e.now(),
		})
		return nil
	}

	e.messages[id] = append(msgs, Message{
		ID:        uuid.NewString(),
		ThreadID:  id,
		Role:      RoleAssistant,
		Name:      name,
		Content:   msg.Reply,
		Markdown:  true,
		CreatedAt: e.now(),
	})
	t.MessageCount++
	t.UpdatedAt = e.now()
	e.rebucket()

	if t.Local {
		return nil
	}
	return tea.Batch(e.fetchMessages(id), e.LoadThreads())
}

// adoptLocal moves a local thread's messages under the id the store gave
// it.
func (e *Engine) adoptLocal(localID string, created Thread) {
	local, ok := e.threads[localID]
	if ok {
		created.Preview = local.Preview
		created.MessageCount = local.MessageCount
		delete(e.threads, localID)
	}
	msgs := e.messages[localID]
	for i := range msgs {
		msgs[i].ThreadID = created.ID
	}
	delete(e.messages, localID)
	delete(e.fetchSeq, localID)

	e.threads[created.ID] = &created
	e.messages[created.ID] = msgs
	if e.activeID == localID {
		e.activeID = created.ID
	}
	e.rebucket()
}

func (e *Engine) nextFetchStamp() uint64 {
	e.fetchStamp++
	return e.fetchStamp
}

func (e *Engine) fetchMessages(id string) tea.Cmd {
	if e.actions == nil {
		return nil
	}
	seq := e.nextFetchStamp()
	e.fetchSeq[id] = seq
	e.loading[id] = true

	actions, timeout := e.actions, e.FetchTimeout
	name := defaultAssistantName
	if a, ok := e.SelectedAgent(); ok {
		name = a.Name
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		items, err := actions.GetThreadMessages(ctx, id)
		if err != nil {
			return MessagesLoadedMsg{ThreadID: id, Seq: seq, Err: fmt.Errorf("failed to load messages: %w", err)}
		}
		msgs := make([]Message, 0, len(items))
		for _, item := range items {
			msgs = append(msgs, messageFromUI(id, name, item))
		}
		return MessagesLoadedMsg{ThreadID: id, Seq: seq, Messages: msgs}
	}
}

// applyThreads replaces the persisted threads with the fetched list.
// Local threads survive; caches of threads that disappeared are dropped.
func (e *Engine) applyThreads(threads []Thread) {
	next := make(map[string]*Thread, len(threads))
	for _, t := range threads {
		if cur, ok := e.threads[t.ID]; ok && e.sending && e.sendingThread == t.ID && cur.UpdatedAt.After(t.UpdatedAt) {
			t.Preview, t.UpdatedAt, t.MessageCount = cur.Preview, cur.UpdatedAt, cur.MessageCount
		}
		next[t.ID] = &t
	}
	for id, t := range e.threads {
		if t.Local {
			next[id] = t
		}
	}
	for id := range e.messages {
		if _, ok := next[id]; !ok {
			delete(e.messages, id)
			delete(e.fetchSeq, id)
			delete(e.loading, id)
		}
	}
	e.threads = next
	if _, ok := e.threads[e.activeID]; !ok {
		e.activeID = ""
	}
	e.rebucket()
}

func (e *Engine) rebucket() {
	threads := make([]Thread, 0, len(e.threads))
	for _, t := range e.threads {
		threads = append(threads, *t)
	}
	e.groups = RebucketHistory(threads, e.now())
}

// isRetryable reports transport-level failures, which the chat view
// offers to retry instead of just showing.
func isRetryable(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var r interface{ Retryable() bool }
	return errors.As(err, &r) && r.Retryable()
}
