package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

var (
	ErrThreadNotFound     = errors.New("thread not found")
	ErrInvalidListOptions = errors.New("invalid list options")
	// ErrNoStore is returned by callers that need thread memory when none
	// is configured.
	ErrNoStore = errors.New("no thread store configured")
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
	RoleTool      = "tool"
)

// Thread is a persisted conversation owned by a resource id.
type Thread struct {
	ID           string
	ResourceID   string
	Title        string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	Preview      string // content of the latest message
	MessageCount int
}

type Message struct {
	ID        string
	ThreadID  string
	Role      string
	Content   string
	CreatedAt time.Time
}

type ListOptions struct {
	OrderBy       string // "createdAt" or "updatedAt"
	SortDirection string // "ASC" or "DESC"
}

var orderColumns = map[string]string{
	"":          "updated_at",
	"updatedAt": "updated_at",
	"createdAt": "created_at",
}

var sortDirections = map[string]string{
	"":     "DESC",
	"DESC": "DESC",
	"desc": "DESC",
	"ASC":  "ASC",
	"asc":  "ASC",
}

// ThreadStorage keeps threads and their messages in sqlite.
// Timestamps are stored as unix nanoseconds so ordering is numeric.
type ThreadStorage struct {
	db  *sql.DB
	now func() time.Time
}

func NewThreadStorage(dataDir string) (*ThreadStorage, error) {
	return OpenThreadStorage(filepath.Join(dataDir, "threads.db"))
}

func OpenThreadStorage(dbPath string) (*ThreadStorage, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Writers serialize on the single connection instead of failing with
	// SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	ts := &ThreadStorage{db: db, now: time.Now}

	if err := ts.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return ts, nil
}

func (ts *ThreadStorage) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS threads (
		id TEXT PRIMARY KEY,
		resource_id TEXT NOT NULL,
		title TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_threads_resource ON threads(resource_id, updated_at);
	CREATE TABLE IF NOT EXISTS messages (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		thread_id TEXT NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_messages_thread ON messages(thread_id, seq);
	`

	_, err := ts.db.Exec(schema)
	return err
}

func (ts *ThreadStorage) CreateThread(ctx context.Context, resourceID, title string) (*Thread, error) {
	if resourceID == "" {
		return nil, fmt.Errorf("resource id cannot be empty")
	}
	if title == "" {
		title = DefaultThreadTitle
	}

	now := ts.now()
	t := &Thread{
		ID:         uuid.New().String(),
		ResourceID: resourceID,
		Title:      title,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	_, err := ts.db.ExecContext(ctx,
		`INSERT INTO threads (id, resource_id, title, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		t.ID, t.ResourceID, t.Title, now.UnixNano(), now.UnixNano(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create thread: %w", err)
	}
	return t, nil
}

const threadColumns = `
	t.id, t.resource_id, t.title, t.created_at, t.updated_at,
	COALESCE((SELECT m.content FROM messages m WHERE m.thread_id = t.id ORDER BY m.seq DESC LIMIT 1), ''),
	(SELECT COUNT(*) FROM messages m WHERE m.thread_id = t.id)
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanThread(row rowScanner) (*Thread, error) {
	var t Thread
	var created, updated int64
	if err := row.Scan(&t.ID, &t.ResourceID, &t.Title, &created, &updated, &t.Preview, &t.MessageCount); err != nil {
		return nil, err
	}
	t.CreatedAt = time.Unix(0, created)
	t.UpdatedAt = time.Unix(0, updated)
	return &t, nil
}

func (ts *ThreadStorage) GetThread(ctx context.Context, id string) (*Thread, error) {
	row := ts.db.QueryRowContext(ctx, `SELECT `+threadColumns+` FROM threads t WHERE t.id = ?`, id)
	t, err := scanThread(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrThreadNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load thread: %w", err)
	}
	return t, nil
}

// ListThreads returns the threads owned by resourceID. Ties on the sort
// column are broken by id so the order is total.
func (ts *ThreadStorage) ListThreads(ctx context.Context, resourceID string, opts ListOptions) ([]Thread, error) {
	column, ok := orderColumns[opts.OrderBy]
	if !ok {
		return nil, fmt.Errorf("%w: orderBy %q", ErrInvalidListOptions, opts.OrderBy)
	}
	direction, ok := sortDirections[opts.SortDirection]
	if !ok {
		return nil, fmt.Errorf("%w: sortDirection %q", ErrInvalidListOptions, opts.SortDirection)
	}

	query := fmt.Sprintf(`SELECT %s FROM threads t WHERE t.resource_id = ? ORDER BY t.%s %s, t.id ASC`,
		threadColumns, column, direction)

	rows, err := ts.db.QueryContext(ctx, query, resourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list threads: %w", err)
	}
	defer rows.Close()

	threads := []Thread{}
	for rows.Next() {
		t, err := scanThread(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan thread: %w", err)
		}
		threads = append(threads, *t)
	}
	return threads, rows.Err()
}

// AppendMessage stores a message and bumps the thread's update time.
func (ts *ThreadStorage) AppendMessage(ctx context.Context, threadID, role, content string) (*Message, error) {
	now := ts.now()
	m := &Message{
		ID:        uuid.New().String(),
		ThreadID:  threadID,
		Role:      role,
		Content:   content,
		CreatedAt: now,
	}

	tx, err := ts.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `UPDATE threads SET updated_at = ? WHERE id = ?`, now.UnixNano(), threadID)
	if err != nil {
		return nil, fmt.Errorf("failed to touch thread: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return nil, fmt.Errorf("failed to check affected rows: %w", err)
	} else if n == 0 {
		return nil, fmt.Errorf("%w: %s", ErrThreadNotFound, threadID)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO messages (id, thread_id, role, content, created_at) VALUES (?, ?, ?, ?, ?)`,
		m.ID, m.ThreadID, m.Role, m.Content, now.UnixNano(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert message: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit message: %w", err)
	}
	return m, nil
}

// Messages returns a thread's messages in insertion order.
func (ts *ThreadStorage) Messages(ctx context.Context, threadID string) ([]Message, error) {
	if _, err := ts.GetThread(ctx, threadID); err != nil {
		return nil, err
	}

	rows, err := ts.db.QueryContext(ctx,
		`SELECT id, thread_id, role, content, created_at FROM messages WHERE thread_id = ? ORDER BY seq ASC`,
		threadID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}
	defer rows.Close()

	messages := []Message{}
	for rows.Next() {
		var m Message
		var created int64
		if err := rows.Scan(&m.ID, &m.ThreadID, &m.Role, &m.Content, &created); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		m.CreatedAt = time.Unix(0, created)
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

func (ts *ThreadStorage) RenameThread(ctx context.Context, id, title string) error {
	res, err := ts.db.ExecContext(ctx, `UPDATE threads SET title = ? WHERE id = ?`, title, id)
	if err != nil {
		return fmt.Errorf("failed to rename thread: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrThreadNotFound, id)
	}
	return nil
}

func (ts *ThreadStorage) DeleteThread(ctx context.Context, id string) error {
	tx, err := ts.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM threads WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete thread: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrThreadNotFound, id)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE thread_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete messages: %w", err)
	}
	return tx.Commit()
}

func (ts *ThreadStorage) Close() error {
	if ts.db != nil {
		return ts.db.Close()
	}
	return nil
}
