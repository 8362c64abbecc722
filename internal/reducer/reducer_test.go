package reducer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sline-ai/agent-gateway/internal/agui"
	"github.com/sline-ai/agent-gateway/internal/model"
)

func strptr(s string) *string { return &s }

func apply(s *State, events ...agui.Event) {
	for _, ev := range events {
		s.Apply(ev)
	}
}

func TestToolAssistedAnswer(t *testing.T) {
	s := New()
	apply(s,
		agui.RunStarted{ThreadID: "T1", RunID: "R1"},
		agui.TextMessageStart{MessageID: "T1:msg:0", Role: "assistant"},
		agui.ToolCallStart{ToolCallID: "R1:tool:0", ToolName: "list_files", ParentMessageID: "T1:msg:0"},
		agui.ToolCallArgs{ToolCallID: "R1:tool:0", Delta: "{}"},
		agui.ToolCallEnd{ToolCallID: "R1:tool:0", Result: strptr("[a.py,b.py]")},
		agui.TextMessageContent{MessageID: "T1:msg:0", Delta: "Found 2 files"},
		agui.TextMessageEnd{MessageID: "T1:msg:0"},
		agui.RunFinished{ThreadID: "T1", RunID: "R1"},
	)

	require.True(t, s.Finished)
	assert.Empty(t, s.Err)
	require.Len(t, s.Messages, 1)

	msg := s.Messages[0]
	assert.Equal(t, "T1:msg:0", msg.ID)
	assert.Equal(t, model.RoleAssistant, msg.Role)
	assert.Equal(t, "Found 2 files", msg.Content)
	assert.False(t, msg.Truncated)

	require.Len(t, msg.ToolCalls, 1)
	tc := msg.ToolCalls[0]
	assert.Equal(t, "R1:tool:0", tc.ID)
	assert.Equal(t, "list_files", tc.Name)
	assert.Equal(t, "{}", tc.Args)
	require.NotNil(t, tc.Result)
	assert.Equal(t, "[a.py,b.py]", *tc.Result)
	assert.Equal(t, model.ToolCallComplete, tc.Status)
}

func TestContentIsConcatenatedInOrder(t *testing.T) {
	s := New()
	apply(s,
		agui.RunStarted{ThreadID: "T1", RunID: "R1"},
		agui.TextMessageStart{MessageID: "T1:msg:0", Role: "assistant"},
		agui.TextMessageContent{MessageID: "T1:msg:0", Delta: "Hel"},
		agui.TextMessageContent{MessageID: "T1:msg:0", Delta: "lo "},
		agui.TextMessageContent{MessageID: "T1:msg:0", Delta: "world"},
		agui.TextMessageEnd{MessageID: "T1:msg:0"},
		agui.RunFinished{ThreadID: "T1", RunID: "R1"},
	)

	require.Len(t, s.Messages, 1)
	assert.Equal(t, "Hello world", s.Messages[0].Content)
}

func TestRunErrorKeepsPartialMessage(t *testing.T) {
	s := New()
	apply(s,
		agui.RunStarted{ThreadID: "T1", RunID: "R1"},
		agui.TextMessageStart{MessageID: "T1:msg:1", Role: "assistant"},
		agui.TextMessageContent{MessageID: "T1:msg:1", Delta: "partial answ"},
		agui.RunError{ThreadID: "T1", RunID: "R1", Message: "connection lost"},
	)

	require.True(t, s.Finished)
	assert.Equal(t, "connection lost", s.Err)

	// The partial message is finalized as truncated, never discarded, and
	// the error text is never appended into its content.
	require.Len(t, s.Messages, 1)
	msg := s.Messages[0]
	assert.Equal(t, "partial answ", msg.Content)
	assert.True(t, msg.Truncated)
}

func TestStaleContentIsIgnored(t *testing.T) {
	s := New()
	apply(s,
		agui.RunStarted{ThreadID: "T1", RunID: "R1"},
		agui.TextMessageStart{MessageID: "T1:msg:0", Role: "assistant"},
		agui.TextMessageContent{MessageID: "T1:msg:0", Delta: "done"},
		agui.TextMessageEnd{MessageID: "T1:msg:0"},
		// Deltas for a finished or unknown message must not crash or apply.
		agui.TextMessageContent{MessageID: "T1:msg:0", Delta: "late"},
		agui.TextMessageContent{MessageID: "T1:msg:9", Delta: "ghost"},
		agui.RunFinished{ThreadID: "T1", RunID: "R1"},
	)

	require.Len(t, s.Messages, 1)
	assert.Equal(t, "done", s.Messages[0].Content)
}

func TestDuplicateStartsAreIdempotent(t *testing.T) {
	s := New()
	apply(s,
		agui.RunStarted{ThreadID: "T1", RunID: "R1"},
		agui.TextMessageStart{MessageID: "T1:msg:0", Role: "assistant"},
		agui.TextMessageStart{MessageID: "T1:msg:0", Role: "assistant"},
		agui.ToolCallStart{ToolCallID: "R1:tool:0", ToolName: "grep"},
		agui.ToolCallStart{ToolCallID: "R1:tool:0", ToolName: "grep"},
		agui.RunFinished{ThreadID: "T1", RunID: "R1"},
	)

	require.Len(t, s.Messages, 1)
	assert.Len(t, s.Messages[0].ToolCalls, 1)
}

func TestCompleteToolCallIsImmutable(t *testing.T) {
	s := New()
	apply(s,
		agui.RunStarted{ThreadID: "T1", RunID: "R1"},
		agui.TextMessageStart{MessageID: "T1:msg:0", Role: "assistant"},
		agui.ToolCallStart{ToolCallID: "R1:tool:0", ToolName: "grep"},
		agui.ToolCallArgs{ToolCallID: "R1:tool:0", Delta: `{"q":`},
		agui.ToolCallArgs{ToolCallID: "R1:tool:0", Delta: `"x"}`},
		agui.ToolCallEnd{ToolCallID: "R1:tool:0", Result: strptr("hit")},
		agui.ToolCallArgs{ToolCallID: "R1:tool:0", Delta: "ignored"},
		agui.ToolCallEnd{ToolCallID: "R1:tool:0", Result: strptr("overwritten")},
	)

	tc := s.ToolCall("R1:tool:0")
	require.NotNil(t, tc)
	assert.Equal(t, `{"q":"x"}`, tc.Args)
	assert.Equal(t, "hit", *tc.Result)
}

func TestNoEventsApplyAfterTerminal(t *testing.T) {
	s := New()
	apply(s,
		agui.RunStarted{ThreadID: "T1", RunID: "R1"},
		agui.RunFinished{ThreadID: "T1", RunID: "R1"},
		agui.TextMessageStart{MessageID: "T1:msg:0", Role: "assistant"},
		agui.RunError{ThreadID: "T1", RunID: "R1", Message: "late"},
	)

	assert.True(t, s.Finished)
	assert.Empty(t, s.Messages)
	assert.Empty(t, s.Err)
}

func TestPendingToolCallSurvivesRunError(t *testing.T) {
	s := New()
	apply(s,
		agui.RunStarted{ThreadID: "T1", RunID: "R1"},
		agui.TextMessageStart{MessageID: "T1:msg:0", Role: "assistant"},
		agui.ToolCallStart{ToolCallID: "R1:tool:0", ToolName: "run_tests"},
		agui.ToolCallArgs{ToolCallID: "R1:tool:0", Delta: "{}"},
		agui.RunError{ThreadID: "T1", RunID: "R1", Message: "runtime crashed"},
	)

	tc := s.ToolCall("R1:tool:0")
	require.NotNil(t, tc)
	assert.Equal(t, model.ToolCallPending, tc.Status)
	assert.Nil(t, tc.Result)
}
