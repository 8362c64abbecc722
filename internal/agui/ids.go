package agui

import (
	"fmt"
)

// Identifiers are derived, not random: a client that reconnects mid-run or
// reloads after completion recognizes the same entities without a
// correlation table. Message indices are scoped to the thread, tool and step
// indices to the run. Indices are monotonic and never reused.

// MessageID returns the stable id for the index-th assistant message of a
// thread.
func MessageID(threadID string, index int) string {
	return fmt.Sprintf("%s:msg:%d", threadID, index)
}

// UserMessageID returns the stable id for the index-th user message of a
// thread.
func UserMessageID(threadID string, index int) string {
	return fmt.Sprintf("%s:user:%d", threadID, index)
}

// ToolCallID returns the stable id for the index-th tool call of a run.
func ToolCallID(runID string, index int) string {
	return fmt.Sprintf("%s:tool:%d", runID, index)
}

// StepID returns the stable id for the index-th step of a run.
func StepID(runID string, index int) string {
	return fmt.Sprintf("%s:step:%d", runID, index)
}

// RunContext holds the per-run allocation state. It lives for one
// request/response cycle and is discarded at the terminal event.
type RunContext struct {
	ThreadID string
	RunID    string

	nextMessage int
	nextTool    int
	nextStep    int
}

// NewRunContext creates a run context for a thread. priorAssistantMessages
// seeds the message counter so ids allocated by this run never collide with
// ids from earlier runs in the same thread.
func NewRunContext(threadID, runID string, priorAssistantMessages int) *RunContext {
	return &RunContext{
		ThreadID:    threadID,
		RunID:       runID,
		nextMessage: priorAssistantMessages,
	}
}

// NextMessageID allocates the next assistant message id.
func (rc *RunContext) NextMessageID() string {
	id := MessageID(rc.ThreadID, rc.nextMessage)
	rc.nextMessage++
	return id
}

// NextToolCallID allocates the next tool call id.
func (rc *RunContext) NextToolCallID() string {
	id := ToolCallID(rc.RunID, rc.nextTool)
	rc.nextTool++
	return id
}

// NextStepID allocates the next step id.
func (rc *RunContext) NextStepID() string {
	id := StepID(rc.RunID, rc.nextStep)
	rc.nextStep++
	return id
}
