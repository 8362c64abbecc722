// Package agui implements the agent-response streaming protocol: the event
// taxonomy emitted during a run, its wire codec, and the deterministic
// identifier scheme that keeps entity identity stable across reconnects.
package agui

// EventType is the wire tag discriminating event variants.
type EventType string

const (
	// Run lifecycle
	EventRunStarted  EventType = "runStarted"
	EventRunFinished EventType = "runFinished"
	EventRunError    EventType = "runError"

	// Step grouping
	EventStepStarted  EventType = "stepStarted"
	EventStepFinished EventType = "stepFinished"

	// Text messages
	EventTextMessageStart   EventType = "textMessageStart"
	EventTextMessageContent EventType = "textMessageContent"
	EventTextMessageEnd     EventType = "textMessageEnd"

	// Tool calls
	EventToolCallStart EventType = "toolCallStart"
	EventToolCallArgs  EventType = "toolCallArgs"
	EventToolCallEnd   EventType = "toolCallEnd"
)

// Event is the closed set of stream events. Exactly one RunStarted opens a
// run and exactly one terminal event (RunFinished or RunError) closes it.
type Event interface {
	Type() EventType
}

// RunStarted opens a run's event sequence.
type RunStarted struct {
	ThreadID string
	RunID    string
}

// RunFinished terminates a run successfully.
type RunFinished struct {
	ThreadID string
	RunID    string
}

// RunError terminates a run with a fatal error. It may arrive after partial
// text or tool events; entities left without an end event are truncated,
// not corrupted.
type RunError struct {
	ThreadID string
	RunID    string
	Message  string
}

// StepStarted opens a step grouping tool calls or reasoning phases. At most
// one step is open at a time per run.
type StepStarted struct {
	StepID   string
	StepName string
}

// StepFinished closes the open step.
type StepFinished struct {
	StepID string
}

// TextMessageStart opens an assistant message.
type TextMessageStart struct {
	MessageID string
	Role      string
}

// TextMessageContent carries one content delta for an open message.
type TextMessageContent struct {
	MessageID string
	Delta     string
}

// TextMessageEnd closes a message; its content is final.
type TextMessageEnd struct {
	MessageID string
}

// ToolCallStart opens a tool call under the active message.
type ToolCallStart struct {
	ToolCallID      string
	ToolName        string
	ParentMessageID string
}

// ToolCallArgs carries one argument-string fragment for an open tool call.
type ToolCallArgs struct {
	ToolCallID string
	Delta      string
}

// ToolCallEnd closes a tool call with its result. Tool execution failures
// are reported here as an error result; they do not abort the run.
type ToolCallEnd struct {
	ToolCallID string
	Result     *string
}

func (RunStarted) Type() EventType         { return EventRunStarted }
func (RunFinished) Type() EventType        { return EventRunFinished }
func (RunError) Type() EventType           { return EventRunError }
func (StepStarted) Type() EventType        { return EventStepStarted }
func (StepFinished) Type() EventType       { return EventStepFinished }
func (TextMessageStart) Type() EventType   { return EventTextMessageStart }
func (TextMessageContent) Type() EventType { return EventTextMessageContent }
func (TextMessageEnd) Type() EventType     { return EventTextMessageEnd }
func (ToolCallStart) Type() EventType      { return EventToolCallStart }
func (ToolCallArgs) Type() EventType       { return EventToolCallArgs }
func (ToolCallEnd) Type() EventType        { return EventToolCallEnd }

// IsTerminal reports whether the event ends a run's sequence.
func IsTerminal(ev Event) bool {
	switch ev.(type) {
	case RunFinished, RunError:
		return true
	}
	return false
}
