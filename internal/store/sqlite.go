package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/sline-ai/agent-gateway/internal/model"
	"github.com/sline-ai/agent-gateway/pkg/logger"
	"github.com/sline-ai/agent-gateway/pkg/metrics"
)

// SQLiteStore implements Store over a local SQLite database.
type SQLiteStore struct {
	db     *sql.DB
	logger *logger.Logger
}

// NewSQLiteStore opens (or creates) the database at path and ensures the
// schema exists. Parent directories are created if needed.
func NewSQLiteStore(path string, log *logger.Logger) (*SQLiteStore, error) {
	if log == nil {
		log = logger.NewNop()
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// WAL for concurrent readers during a save transaction.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{db: db, logger: log}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	log.Info("sqlite store initialized", "path", path)
	return s, nil
}

func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS threads (
			id TEXT PRIMARY KEY,
			channel_id TEXT NOT NULL,
			thread_ts TEXT NOT NULL,
			title TEXT NOT NULL DEFAULT '',
			message_count INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,
			UNIQUE(channel_id, thread_ts)
		);

		CREATE INDEX IF NOT EXISTS idx_threads_channel_updated
			ON threads(channel_id, updated_at);

		CREATE TABLE IF NOT EXISTS messages (
			thread_id TEXT NOT NULL,
			position INTEGER NOT NULL,
			message_id TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			tool_calls TEXT NOT NULL DEFAULT '[]',
			truncated INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL,
			PRIMARY KEY (thread_id, position),
			FOREIGN KEY (thread_id) REFERENCES threads(id) ON DELETE CASCADE
		);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Load returns the ordered message history for a thread; empty if unknown.
func (s *SQLiteStore) Load(ctx context.Context, channelID, threadTS string) ([]*model.Message, error) {
	start := time.Now()
	defer func() {
		metrics.StoreOpDuration.WithLabelValues("load").Observe(time.Since(start).Seconds())
	}()

	var threadID string
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM threads WHERE channel_id = ? AND thread_ts = ?`,
		channelID, threadTS,
	).Scan(&threadID)
	if errors.Is(err, sql.ErrNoRows) {
		return []*model.Message{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("looking up thread: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT message_id, role, content, tool_calls, truncated, created_at
		 FROM messages WHERE thread_id = ? ORDER BY position`,
		threadID,
	)
	if err != nil {
		return nil, fmt.Errorf("loading messages: %w", err)
	}
	defer rows.Close()

	messages := []*model.Message{}
	for rows.Next() {
		var (
			msg       model.Message
			toolCalls string
			truncated int
		)
		if err := rows.Scan(&msg.ID, &msg.Role, &msg.Content, &toolCalls, &truncated, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		if toolCalls != "" && toolCalls != "[]" {
			if err := json.Unmarshal([]byte(toolCalls), &msg.ToolCalls); err != nil {
				return nil, fmt.Errorf("decoding tool calls: %w", err)
			}
		}
		msg.Truncated = truncated != 0
		messages = append(messages, &msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating messages: %w", err)
	}

	return messages, nil
}

// Save replaces the thread's message list in a single transaction. The
// thread row, its message rows, and message_count change together or not at
// all.
func (s *SQLiteStore) Save(ctx context.Context, channelID, threadTS string, messages []*model.Message) error {
	start := time.Now()
	defer func() {
		metrics.StoreOpDuration.WithLabelValues("save").Observe(time.Since(start).Seconds())
	}()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning save transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()

	var threadID string
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM threads WHERE channel_id = ? AND thread_ts = ?`,
		channelID, threadTS,
	).Scan(&threadID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		threadID = uuid.Must(uuid.NewV7()).String()
		title := deriveTitle(messages)
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO threads (id, channel_id, thread_ts, title, message_count, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			threadID, channelID, threadTS, title, len(messages), now, now,
		); err != nil {
			return fmt.Errorf("creating thread: %w", err)
		}
	case err != nil:
		return fmt.Errorf("looking up thread: %w", err)
	default:
		if _, err := tx.ExecContext(ctx,
			`UPDATE threads SET message_count = ?, updated_at = ? WHERE id = ?`,
			len(messages), now, threadID,
		); err != nil {
			return fmt.Errorf("updating thread: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE thread_id = ?`, threadID); err != nil {
		return fmt.Errorf("clearing messages: %w", err)
	}

	for i, msg := range messages {
		toolCalls := "[]"
		if len(msg.ToolCalls) > 0 {
			data, err := json.Marshal(msg.ToolCalls)
			if err != nil {
				return fmt.Errorf("encoding tool calls: %w", err)
			}
			toolCalls = string(data)
		}
		createdAt := msg.CreatedAt
		if createdAt.IsZero() {
			createdAt = now
		}
		truncated := 0
		if msg.Truncated {
			truncated = 1
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO messages (thread_id, position, message_id, role, content, tool_calls, truncated, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			threadID, i, msg.ID, string(msg.Role), msg.Content, toolCalls, truncated, createdAt,
		); err != nil {
			return fmt.Errorf("inserting message %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing save: %w", err)
	}

	return nil
}

// GetThread returns thread metadata.
func (s *SQLiteStore) GetThread(ctx context.Context, channelID, threadTS string) (*model.Thread, error) {
	var t model.Thread
	err := s.db.QueryRowContext(ctx,
		`SELECT id, channel_id, thread_ts, title, message_count, created_at, updated_at
		 FROM threads WHERE channel_id = ? AND thread_ts = ?`,
		channelID, threadTS,
	).Scan(&t.ID, &t.ChannelID, &t.ThreadTS, &t.Title, &t.MessageCount, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("looking up thread: %w", err)
	}
	return &t, nil
}

// ListThreads returns recent threads for a channel, most recent first, each
// with a preview of its last non-empty message. The preview cap is display
// convenience only; stored content is never truncated.
func (s *SQLiteStore) ListThreads(ctx context.Context, channelID string, limit int) ([]model.ThreadSummary, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT t.thread_ts, t.channel_id, t.title, t.message_count, t.updated_at,
			COALESCE((SELECT m.content FROM messages m
				WHERE m.thread_id = t.id AND m.content != ''
				ORDER BY m.position DESC LIMIT 1), '')
		 FROM threads t
		 WHERE t.channel_id = ?
		 ORDER BY t.updated_at DESC
		 LIMIT ?`,
		channelID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing threads: %w", err)
	}
	defer rows.Close()

	summaries := []model.ThreadSummary{}
	for rows.Next() {
		var sum model.ThreadSummary
		var preview string
		if err := rows.Scan(&sum.ThreadID, &sum.ChannelID, &sum.Title, &sum.MessageCount, &sum.UpdatedAt, &preview); err != nil {
			return nil, fmt.Errorf("scanning thread: %w", err)
		}
		if len(preview) > 100 {
			preview = clipRunes(preview, 100) + "..."
		}
		sum.LastMessagePreview = preview
		summaries = append(summaries, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating threads: %w", err)
	}

	return summaries, nil
}

// DeleteThread removes a thread and its messages.
func (s *SQLiteStore) DeleteThread(ctx context.Context, channelID, threadTS string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM threads WHERE channel_id = ? AND thread_ts = ?`,
		channelID, threadTS,
	)
	if err != nil {
		return fmt.Errorf("deleting thread: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting thread: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	s.logger.Info("thread deleted", "channel_id", channelID, "thread_ts", threadTS)
	return nil
}

// deriveTitle takes the first user message as the thread title.
func deriveTitle(messages []*model.Message) string {
	for _, msg := range messages {
		if msg.Role == model.RoleUser && msg.Content != "" {
			return clipRunes(msg.Content, 80)
		}
	}
	return ""
}

// clipRunes cuts s to at most limit bytes without splitting a multi-byte
// rune.
func clipRunes(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit]
}
