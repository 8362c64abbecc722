// Package store provides the durable per-thread conversation record.
package store

import (
	"context"
	"errors"

	"github.com/sline-ai/agent-gateway/internal/model"
)

// ErrNotFound is returned when a requested thread does not exist.
var ErrNotFound = errors.New("not found")

// Store persists thread transcripts. Save replaces the thread's full message
// list atomically; a reader never observes a message count inconsistent with
// the stored list. Threads are created lazily on first save and deleted only
// by explicit user action.
type Store interface {
	// Load returns the ordered message history for a thread. Unknown
	// threads yield an empty list, not an error.
	Load(ctx context.Context, channelID, threadTS string) ([]*model.Message, error)

	// Save atomically replaces the thread's message list and refreshes
	// updated_at, creating the thread if needed.
	Save(ctx context.Context, channelID, threadTS string, messages []*model.Message) error

	// GetThread returns thread metadata or ErrNotFound.
	GetThread(ctx context.Context, channelID, threadTS string) (*model.Thread, error)

	// ListThreads returns recent threads for a channel, most recent first.
	ListThreads(ctx context.Context, channelID string, limit int) ([]model.ThreadSummary, error)

	// DeleteThread removes a thread and its messages. ErrNotFound if absent.
	DeleteThread(ctx context.Context, channelID, threadTS string) error

	// Close releases any resources held by the store.
	Close() error
}
