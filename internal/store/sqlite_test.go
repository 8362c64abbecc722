package store

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sline-ai/agent-gateway/internal/model"
	"github.com/sline-ai/agent-gateway/pkg/logger"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "conversations.db"), logger.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func strptr(s string) *string { return &s }

func TestSaveLoadRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	messages := []*model.Message{
		{ID: "T1:user:0", Role: model.RoleUser, Content: "list the files"},
		{
			ID:      "T1:msg:0",
			Role:    model.RoleAssistant,
			Content: "Found 2 files",
			ToolCalls: []*model.ToolCall{{
				ID:     "R1:tool:0",
				Name:   "list_files",
				Args:   "{}",
				Result: strptr("[a.py,b.py]"),
				Status: model.ToolCallComplete,
			}},
		},
	}

	require.NoError(t, s.Save(ctx, "dashboard", "T1", messages))

	loaded, err := s.Load(ctx, "dashboard", "T1")
	require.NoError(t, err)
	require.Len(t, loaded, 2)

	assert.Equal(t, "T1:user:0", loaded[0].ID)
	assert.Equal(t, model.RoleUser, loaded[0].Role)
	assert.Equal(t, "list the files", loaded[0].Content)
	assert.Empty(t, loaded[0].ToolCalls)

	assistant := loaded[1]
	assert.Equal(t, "Found 2 files", assistant.Content)
	require.Len(t, assistant.ToolCalls, 1)
	tc := assistant.ToolCalls[0]
	assert.Equal(t, "list_files", tc.Name)
	require.NotNil(t, tc.Result)
	assert.Equal(t, "[a.py,b.py]", *tc.Result)
	assert.Equal(t, model.ToolCallComplete, tc.Status)
}

func TestLoadUnknownThreadIsEmptyNotError(t *testing.T) {
	s := newTestStore(t)

	loaded, err := s.Load(context.Background(), "dashboard", "never-seen")
	require.NoError(t, err)
	assert.Empty(t, loaded)
}

func TestSaveReplacesWholeList(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, "dashboard", "T1", []*model.Message{
		{ID: "T1:user:0", Role: model.RoleUser, Content: "first"},
		{ID: "T1:msg:0", Role: model.RoleAssistant, Content: "reply"},
	}))

	// A later save carries the full corrected transcript, not a delta.
	require.NoError(t, s.Save(ctx, "dashboard", "T1", []*model.Message{
		{ID: "T1:user:0", Role: model.RoleUser, Content: "first"},
		{ID: "T1:msg:0", Role: model.RoleAssistant, Content: "reply"},
		{ID: "T1:user:1", Role: model.RoleUser, Content: "second"},
		{ID: "T1:msg:1", Role: model.RoleAssistant, Content: "another"},
	}))

	loaded, err := s.Load(ctx, "dashboard", "T1")
	require.NoError(t, err)
	require.Len(t, loaded, 4)
	assert.Equal(t, "T1:msg:1", loaded[3].ID)

	thread, err := s.GetThread(ctx, "dashboard", "T1")
	require.NoError(t, err)
	assert.Equal(t, 4, thread.MessageCount)
}

func TestMessageCountMatchesStoredList(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, "dashboard", "T1", []*model.Message{
		{ID: "T1:user:0", Role: model.RoleUser, Content: "hi"},
	}))

	thread, err := s.GetThread(ctx, "dashboard", "T1")
	require.NoError(t, err)
	assert.Equal(t, 1, thread.MessageCount)

	// Shrinking the list shrinks the count with it.
	require.NoError(t, s.Save(ctx, "dashboard", "T1", []*model.Message{}))
	thread, err = s.GetThread(ctx, "dashboard", "T1")
	require.NoError(t, err)
	assert.Equal(t, 0, thread.MessageCount)

	loaded, err := s.Load(ctx, "dashboard", "T1")
	require.NoError(t, err)
	assert.Empty(t, loaded)
}

func TestTruncatedFlagSurvivesRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, "dashboard", "T1", []*model.Message{
		{ID: "T1:user:0", Role: model.RoleUser, Content: "hello"},
		{ID: "T1:msg:0", Role: model.RoleAssistant, Content: "partial answ", Truncated: true},
	}))

	loaded, err := s.Load(ctx, "dashboard", "T1")
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.True(t, loaded[1].Truncated)
}

func TestThreadsAreScopedByChannel(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, "dashboard", "T1", []*model.Message{
		{ID: "T1:user:0", Role: model.RoleUser, Content: "web"},
	}))
	require.NoError(t, s.Save(ctx, "C042ABC", "T1", []*model.Message{
		{ID: "T1:user:0", Role: model.RoleUser, Content: "slack"},
	}))

	web, err := s.Load(ctx, "dashboard", "T1")
	require.NoError(t, err)
	slack, err := s.Load(ctx, "C042ABC", "T1")
	require.NoError(t, err)

	require.Len(t, web, 1)
	require.Len(t, slack, 1)
	assert.Equal(t, "web", web[0].Content)
	assert.Equal(t, "slack", slack[0].Content)
}

func TestListThreadsOrdersByRecency(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, "dashboard", "T1", []*model.Message{
		{ID: "T1:user:0", Role: model.RoleUser, Content: "older thread"},
	}))
	time.Sleep(5 * time.Millisecond)
	require.NoError(t, s.Save(ctx, "dashboard", "T2", []*model.Message{
		{ID: "T2:user:0", Role: model.RoleUser, Content: "newer thread"},
		{ID: "T2:msg:0", Role: model.RoleAssistant, Content: "and its reply"},
	}))

	summaries, err := s.ListThreads(ctx, "dashboard", 10)
	require.NoError(t, err)
	require.Len(t, summaries, 2)

	assert.Equal(t, "T2", summaries[0].ThreadID)
	assert.Equal(t, "and its reply", summaries[0].LastMessagePreview)
	assert.Equal(t, 2, summaries[0].MessageCount)
	assert.Equal(t, "T1", summaries[1].ThreadID)
	assert.Equal(t, "older thread", summaries[1].Title)
}

func TestListThreadsPreviewIsCapped(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	long := make([]byte, 300)
	for i := range long {
		long[i] = 'x'
	}
	require.NoError(t, s.Save(ctx, "dashboard", "T1", []*model.Message{
		{ID: "T1:user:0", Role: model.RoleUser, Content: string(long)},
	}))

	summaries, err := s.ListThreads(ctx, "dashboard", 10)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Len(t, summaries[0].LastMessagePreview, 103)

	// The cap is presentation only; the stored message is intact.
	loaded, err := s.Load(ctx, "dashboard", "T1")
	require.NoError(t, err)
	assert.Len(t, loaded[0].Content, 300)
}

func TestPreviewAndTitleRespectRuneBoundaries(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// 3-byte runes: the byte caps of 100 and 80 land mid-rune.
	long := strings.Repeat("界", 120)
	require.NoError(t, s.Save(ctx, "dashboard", "T1", []*model.Message{
		{ID: "T1:user:0", Role: model.RoleUser, Content: long},
	}))

	summaries, err := s.ListThreads(ctx, "dashboard", 10)
	require.NoError(t, err)
	require.Len(t, summaries, 1)

	preview := summaries[0].LastMessagePreview
	assert.True(t, utf8.ValidString(preview))
	assert.True(t, strings.HasSuffix(preview, "..."))
	assert.Len(t, preview, 99+len("..."))

	title := summaries[0].Title
	assert.True(t, utf8.ValidString(title))
	assert.Len(t, title, 78)
}

func TestDeleteThread(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, "dashboard", "T1", []*model.Message{
		{ID: "T1:user:0", Role: model.RoleUser, Content: "hi"},
	}))

	require.NoError(t, s.DeleteThread(ctx, "dashboard", "T1"))

	_, err := s.GetThread(ctx, "dashboard", "T1")
	assert.ErrorIs(t, err, ErrNotFound)

	loaded, err := s.Load(ctx, "dashboard", "T1")
	require.NoError(t, err)
	assert.Empty(t, loaded)

	assert.ErrorIs(t, s.DeleteThread(ctx, "dashboard", "T1"), ErrNotFound)
}

func TestUpdatedAtAdvancesOnSave(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, "dashboard", "T1", []*model.Message{
		{ID: "T1:user:0", Role: model.RoleUser, Content: "hi"},
	}))
	first, err := s.GetThread(ctx, "dashboard", "T1")
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)
	require.NoError(t, s.Save(ctx, "dashboard", "T1", []*model.Message{
		{ID: "T1:user:0", Role: model.RoleUser, Content: "hi"},
		{ID: "T1:msg:0", Role: model.RoleAssistant, Content: "hello"},
	}))
	second, err := s.GetThread(ctx, "dashboard", "T1")
	require.NoError(t, err)

	assert.True(t, second.UpdatedAt.After(first.UpdatedAt))
	assert.Equal(t, first.CreatedAt.Unix(), second.CreatedAt.Unix())
}
