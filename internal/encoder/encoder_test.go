package encoder

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sline-ai/agent-gateway/internal/agui"
	"github.com/sline-ai/agent-gateway/internal/runtime"
	"github.com/sline-ai/agent-gateway/pkg/logger"
)

func collect() (EmitFunc, *[]agui.Event) {
	events := &[]agui.Event{}
	return func(ev agui.Event) error {
		*events = append(*events, ev)
		return nil
	}, events
}

func types(events []agui.Event) []agui.EventType {
	out := make([]agui.EventType, 0, len(events))
	for _, ev := range events {
		out = append(out, ev.Type())
	}
	return out
}

func TestRunEmitsWellFormedSequence(t *testing.T) {
	producer := &runtime.ScriptProducer{Facts: []runtime.Fact{
		runtime.TextStart{},
		runtime.TextDelta{Text: "Let me check. "},
		runtime.ToolStart{Ref: "a", Name: "list_files"},
		runtime.ToolArgs{Ref: "a", Delta: "{}"},
		runtime.ToolEnd{Ref: "a", Result: "[a.py,b.py]"},
		runtime.TextDelta{Text: "Found 2 files"},
		runtime.TextEnd{},
	}}

	emit, events := collect()
	rc := agui.NewRunContext("T1", "R1", 0)
	require.NoError(t, New(logger.NewNop()).Run(context.Background(), rc, producer, nil, emit))

	assert.Equal(t, []agui.EventType{
		agui.EventRunStarted,
		agui.EventTextMessageStart,
		agui.EventTextMessageContent,
		agui.EventStepStarted,
		agui.EventToolCallStart,
		agui.EventToolCallArgs,
		agui.EventToolCallEnd,
		agui.EventTextMessageContent,
		agui.EventStepFinished,
		agui.EventTextMessageEnd,
		agui.EventRunFinished,
	}, types(*events))

	// The same run context drives every id, so the sequence is replayable.
	assert.Equal(t, agui.TextMessageStart{MessageID: "T1:msg:0", Role: "assistant"}, (*events)[1])
	assert.Equal(t, agui.ToolCallStart{ToolCallID: "R1:tool:0", ToolName: "list_files", ParentMessageID: "T1:msg:0"}, (*events)[4])
}

func TestProducerErrorBecomesSingleRunError(t *testing.T) {
	producer := &runtime.ScriptProducer{
		Facts: []runtime.Fact{
			runtime.TextStart{},
			runtime.TextDelta{Text: "partial"},
		},
		Err: errors.New("model unavailable"),
	}

	emit, events := collect()
	rc := agui.NewRunContext("T1", "R1", 0)
	require.NoError(t, New(logger.NewNop()).Run(context.Background(), rc, producer, nil, emit))

	got := *events
	require.NotEmpty(t, got)
	last := got[len(got)-1]
	require.Equal(t, agui.EventRunError, last.Type())
	assert.Equal(t, "model unavailable", last.(agui.RunError).Message)

	terminals := 0
	for _, ev := range got {
		if agui.IsTerminal(ev) {
			terminals++
		}
	}
	assert.Equal(t, 1, terminals)
}

func TestProducerPanicBecomesRunError(t *testing.T) {
	producer := &runtime.ScriptProducer{
		Facts: []runtime.Fact{runtime.TextDelta{Text: "before the crash"}},
		Panic: "nil map write",
	}

	emit, events := collect()
	rc := agui.NewRunContext("T1", "R1", 0)
	require.NoError(t, New(logger.NewNop()).Run(context.Background(), rc, producer, nil, emit))

	got := *events
	last := got[len(got)-1]
	require.Equal(t, agui.EventRunError, last.Type())
	assert.Contains(t, last.(agui.RunError).Message, "nil map write")
}

func TestUnclosedEntitiesAreClosedOnSuccess(t *testing.T) {
	// The producer leaves the tool, step, and message all open; the encoder
	// must bracket them before RunFinished.
	producer := &runtime.ScriptProducer{Facts: []runtime.Fact{
		runtime.StepStart{Name: "analyze"},
		runtime.TextDelta{Text: "working"},
		runtime.ToolStart{Ref: "a", Name: "grep"},
		runtime.ToolArgs{Ref: "a", Delta: "{}"},
	}}

	emit, events := collect()
	rc := agui.NewRunContext("T1", "R1", 0)
	require.NoError(t, New(logger.NewNop()).Run(context.Background(), rc, producer, nil, emit))

	got := *events
	n := len(got)
	require.GreaterOrEqual(t, n, 4)
	assert.Equal(t, agui.EventRunFinished, got[n-1].Type())
	assert.Equal(t, agui.EventTextMessageEnd, got[n-2].Type())
	assert.Equal(t, agui.EventStepFinished, got[n-3].Type())

	end, ok := got[n-4].(agui.ToolCallEnd)
	require.True(t, ok)
	assert.Equal(t, "R1:tool:0", end.ToolCallID)
	assert.Nil(t, end.Result)
}

func TestRunStartedIsAlwaysFirst(t *testing.T) {
	producer := &runtime.ScriptProducer{Err: errors.New("immediate failure")}

	emit, events := collect()
	rc := agui.NewRunContext("T1", "R1", 0)
	require.NoError(t, New(logger.NewNop()).Run(context.Background(), rc, producer, nil, emit))

	got := *events
	require.Len(t, got, 2)
	assert.Equal(t, agui.RunStarted{ThreadID: "T1", RunID: "R1"}, got[0])
	assert.Equal(t, agui.EventRunError, got[1].Type())
}

func TestEmitFailureStopsTheRun(t *testing.T) {
	producer := &runtime.ScriptProducer{Facts: []runtime.Fact{
		runtime.TextDelta{Text: "a"},
		runtime.TextDelta{Text: "b"},
		runtime.TextDelta{Text: "c"},
	}}

	broken := errors.New("client went away")
	var emitted []agui.Event
	emit := func(ev agui.Event) error {
		if len(emitted) >= 2 {
			return broken
		}
		emitted = append(emitted, ev)
		return nil
	}

	rc := agui.NewRunContext("T1", "R1", 0)
	err := New(logger.NewNop()).Run(context.Background(), rc, producer, nil, emit)
	require.Error(t, err)

	// No terminal event is forced through a dead channel.
	for _, ev := range emitted {
		assert.False(t, agui.IsTerminal(ev))
	}
}

func TestToolFollowedByMoreReasoningStaysInOneMessage(t *testing.T) {
	// TextEnd mid-trace must not split the assistant turn; later phases
	// append to the same message.
	producer := &runtime.ScriptProducer{Facts: []runtime.Fact{
		runtime.TextStart{},
		runtime.TextDelta{Text: "first "},
		runtime.TextEnd{},
		runtime.TextStart{},
		runtime.TextDelta{Text: "second"},
		runtime.TextEnd{},
	}}

	emit, events := collect()
	rc := agui.NewRunContext("T1", "R1", 0)
	require.NoError(t, New(logger.NewNop()).Run(context.Background(), rc, producer, nil, emit))

	starts, ends := 0, 0
	for _, ev := range *events {
		switch ev.Type() {
		case agui.EventTextMessageStart:
			starts++
		case agui.EventTextMessageEnd:
			ends++
		}
	}
	assert.Equal(t, 1, starts)
	assert.Equal(t, 1, ends)
}
