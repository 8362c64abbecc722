package agui

import (
	"encoding/json"
	"fmt"
)

// envelope is the flat wire shape shared by all event kinds. Field names are
// wire-stable: new optional fields may be added, existing ones never renamed.
type envelope struct {
	Type            EventType `json:"type"`
	ThreadID        string    `json:"threadId,omitempty"`
	RunID           string    `json:"runId,omitempty"`
	MessageID       string    `json:"messageId,omitempty"`
	Role            string    `json:"role,omitempty"`
	Delta           string    `json:"delta,omitempty"`
	ToolCallID      string    `json:"toolCallId,omitempty"`
	ToolName        string    `json:"toolName,omitempty"`
	ParentMessageID string    `json:"parentMessageId,omitempty"`
	Result          *string   `json:"result,omitempty"`
	StepID          string    `json:"stepId,omitempty"`
	StepName        string    `json:"stepName,omitempty"`
	Error           string    `json:"error,omitempty"`
}

// Marshal serializes one event as a single JSON object tagged by type.
func Marshal(ev Event) ([]byte, error) {
	var env envelope
	env.Type = ev.Type()

	switch e := ev.(type) {
	case RunStarted:
		env.ThreadID = e.ThreadID
		env.RunID = e.RunID
	case RunFinished:
		env.ThreadID = e.ThreadID
		env.RunID = e.RunID
	case RunError:
		env.ThreadID = e.ThreadID
		env.RunID = e.RunID
		env.Error = e.Message
	case StepStarted:
		env.StepID = e.StepID
		env.StepName = e.StepName
	case StepFinished:
		env.StepID = e.StepID
	case TextMessageStart:
		env.MessageID = e.MessageID
		env.Role = e.Role
	case TextMessageContent:
		env.MessageID = e.MessageID
		env.Delta = e.Delta
	case TextMessageEnd:
		env.MessageID = e.MessageID
	case ToolCallStart:
		env.ToolCallID = e.ToolCallID
		env.ToolName = e.ToolName
		env.ParentMessageID = e.ParentMessageID
	case ToolCallArgs:
		env.ToolCallID = e.ToolCallID
		env.Delta = e.Delta
	case ToolCallEnd:
		env.ToolCallID = e.ToolCallID
		env.Result = e.Result
	default:
		return nil, fmt.Errorf("unknown event type %T", ev)
	}

	return json.Marshal(&env)
}

// Unmarshal parses a single JSON object into its event variant. Unknown or
// missing type tags are an error; the transport drops such frames and
// continues.
func Unmarshal(data []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("invalid event frame: %w", err)
	}

	switch env.Type {
	case EventRunStarted:
		return RunStarted{ThreadID: env.ThreadID, RunID: env.RunID}, nil
	case EventRunFinished:
		return RunFinished{ThreadID: env.ThreadID, RunID: env.RunID}, nil
	case EventRunError:
		return RunError{ThreadID: env.ThreadID, RunID: env.RunID, Message: env.Error}, nil
	case EventStepStarted:
		return StepStarted{StepID: env.StepID, StepName: env.StepName}, nil
	case EventStepFinished:
		return StepFinished{StepID: env.StepID}, nil
	case EventTextMessageStart:
		role := env.Role
		if role == "" {
			role = "assistant"
		}
		return TextMessageStart{MessageID: env.MessageID, Role: role}, nil
	case EventTextMessageContent:
		return TextMessageContent{MessageID: env.MessageID, Delta: env.Delta}, nil
	case EventTextMessageEnd:
		return TextMessageEnd{MessageID: env.MessageID}, nil
	case EventToolCallStart:
		return ToolCallStart{ToolCallID: env.ToolCallID, ToolName: env.ToolName, ParentMessageID: env.ParentMessageID}, nil
	case EventToolCallArgs:
		return ToolCallArgs{ToolCallID: env.ToolCallID, Delta: env.Delta}, nil
	case EventToolCallEnd:
		return ToolCallEnd{ToolCallID: env.ToolCallID, Result: env.Result}, nil
	case "":
		return nil, fmt.Errorf("event frame missing type tag")
	default:
		return nil, fmt.Errorf("unknown event type %q", env.Type)
	}
}
