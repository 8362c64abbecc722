package service

import (
	"context"
	"fmt"

	"github.com/sline-ai/agent-gateway/internal/model"
	"github.com/sline-ai/agent-gateway/internal/store"
	"github.com/sline-ai/agent-gateway/pkg/logger"
)

// ThreadService handles thread metadata operations.
type ThreadService struct {
	store  store.Store
	logger *logger.Logger
}

// NewThreadService creates a thread service.
func NewThreadService(st store.Store, log *logger.Logger) *ThreadService {
	if log == nil {
		log = logger.NewNop()
	}
	return &ThreadService{store: st, logger: log}
}

// List returns recent threads for a channel.
func (s *ThreadService) List(ctx context.Context, channelID string, limit int) (*model.ListThreadsResponse, error) {
	summaries, err := s.store.ListThreads(ctx, channelID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing threads: %w", err)
	}
	return &model.ListThreadsResponse{Threads: summaries}, nil
}

// Get returns thread metadata, or store.ErrNotFound.
func (s *ThreadService) Get(ctx context.Context, channelID, threadTS string) (*model.Thread, error) {
	return s.store.GetThread(ctx, channelID, threadTS)
}

// Delete removes a thread. Explicit user action is the only deletion path;
// the engine itself never deletes threads.
func (s *ThreadService) Delete(ctx context.Context, channelID, threadTS string) error {
	if err := s.store.DeleteThread(ctx, channelID, threadTS); err != nil {
		return err
	}
	s.logger.Info("thread deleted by user", "channel_id", channelID, "thread_id", threadTS)
	return nil
}
